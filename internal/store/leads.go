package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/starford/crmdesk/internal/apperr"
	"github.com/starford/crmdesk/internal/checksum"
	"github.com/starford/crmdesk/internal/models"
)

// LeadState is an immutable view of the lead collection. Callers must not
// modify the slices it holds.
type LeadState struct {
	Leads   []models.Lead
	Version uint64
	Loaded  bool
}

// LeadStore is the source of truth for leads and their nested meetings.
//
// Writers are serialized so operations apply in the order they were issued,
// including the data-source call each one makes. Readers never block: they
// load the current *LeadState.
type LeadStore struct {
	src  LeadSource
	opts options

	mu     sync.Mutex
	state  atomic.Pointer[LeadState]
	closed atomic.Bool
}

// NewLeads creates an empty lead store. Call FetchLeads to populate it.
func NewLeads(src LeadSource, opts ...Option) *LeadStore {
	s := &LeadStore{src: src, opts: buildOptions(opts)}
	s.state.Store(&LeadState{Leads: []models.Lead{}})
	return s
}

// Close detaches the store from its notifier. State stays readable.
func (s *LeadStore) Close() {
	s.closed.Store(true)
}

// Snapshot returns the current state.
func (s *LeadStore) Snapshot() *LeadState {
	return s.state.Load()
}

// Leads returns a copy of the lead collection.
func (s *LeadStore) Leads() []models.Lead {
	st := s.state.Load()
	out := make([]models.Lead, len(st.Leads))
	for i, l := range st.Leads {
		out[i] = l.Clone()
	}
	return out
}

// Lead returns a copy of the lead with the given id.
func (s *LeadStore) Lead(id int) (models.Lead, bool) {
	st := s.state.Load()
	if i := indexOfLead(st.Leads, id); i >= 0 {
		return st.Leads[i].Clone(), true
	}
	return models.Lead{}, false
}

// Meetings returns every meeting across all leads, in lead order.
func (s *LeadStore) Meetings() []models.Meeting {
	st := s.state.Load()
	var out []models.Meeting
	for _, l := range st.Leads {
		out = append(out, l.Meetings...)
	}
	if out == nil {
		out = []models.Meeting{}
	}
	return out
}

// Meeting looks up a meeting by its id.
func (s *LeadStore) Meeting(id int) (models.Meeting, bool) {
	for _, m := range s.Meetings() {
		if m.ID == id {
			return m, true
		}
	}
	return models.Meeting{}, false
}

// FilterLeads applies f to the current collection.
func (s *LeadStore) FilterLeads(f models.LeadFilters) []models.Lead {
	return FilterLeads(s.Leads(), f)
}

// FilterMeetings applies f to the flattened meetings.
func (s *LeadStore) FilterMeetings(f models.MeetingFilters) []models.Meeting {
	return FilterMeetings(s.Meetings(), f)
}

// FetchLeads (re)loads the whole collection from the source and replaces
// the current one wholesale. On error the previous state is kept.
func (s *LeadStore) FetchLeads(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	leads, err := s.src.GetLeads(ctx)
	if err != nil {
		return fmt.Errorf("store: fetch leads: %w", err)
	}
	next := make([]models.Lead, len(leads))
	for i, l := range leads {
		next[i] = normalizeLead(l)
	}
	s.commit(next, true)
	s.publish(LeadsFetched, map[string]int{"count": len(next)})
	return nil
}

// AddNewLead creates a lead through the source and appends it. Notes and
// meetings default to empty. Duplicate emails are allowed.
func (s *LeadStore) AddNewLead(ctx context.Context, in models.LeadInput) (models.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if in.Status == "" {
		in.Status = models.StatusNew
	}
	if in.Notes == nil {
		in.Notes = []string{}
	}
	if in.Meetings == nil {
		in.Meetings = []models.Meeting{}
	}
	created, err := s.src.CreateLead(ctx, in)
	if err != nil {
		return models.Lead{}, fmt.Errorf("store: add lead: %w", err)
	}
	created = normalizeLead(created)

	cur := s.state.Load()
	next := make([]models.Lead, 0, len(cur.Leads)+1)
	next = append(next, cur.Leads...)
	next = append(next, created)
	s.commit(next, cur.Loaded)
	s.publish(LeadCreated, created)
	return created.Clone(), nil
}

// UpdateExistingLead merges patch into the lead with the given id. Only the
// fields present in patch change; identity is preserved. An unknown id
// returns apperr.ErrNotFound and leaves the state untouched.
func (s *LeadStore) UpdateExistingLead(ctx context.Context, id int, patch models.LeadPatch) (models.Lead, error) {
	return s.updateLead(ctx, id, patch, "")
}

// UpdateLeadIfMatch is UpdateExistingLead guarded by the lead's ETag. An
// empty etag skips the check; a stale one returns apperr.ErrConflict.
func (s *LeadStore) UpdateLeadIfMatch(ctx context.Context, id int, patch models.LeadPatch, etag string) (models.Lead, error) {
	return s.updateLead(ctx, id, patch, etag)
}

func (s *LeadStore) updateLead(ctx context.Context, id int, patch models.LeadPatch, etag string) (models.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.state.Load()
	i := indexOfLead(cur.Leads, id)
	if i < 0 {
		return models.Lead{}, fmt.Errorf("store: update lead %d: %w", id, apperr.ErrNotFound)
	}
	if etag != "" && etag != ETag(cur.Leads[i]) {
		return models.Lead{}, fmt.Errorf("store: update lead %d: %w", id, apperr.ErrConflict)
	}

	saved, err := s.src.UpdateLead(ctx, patch.Apply(cur.Leads[i]))
	if err != nil {
		return models.Lead{}, fmt.Errorf("store: update lead %d: %w", id, err)
	}
	saved = normalizeLead(saved)
	s.replaceAt(cur, i, saved)
	s.publish(LeadUpdated, saved)
	return saved.Clone(), nil
}

// AddNewMeeting schedules a meeting under the lead leadID. The meeting's
// LeadID is always set to leadID. An unknown lead returns
// apperr.ErrNotFound and no lead's meetings change.
func (s *LeadStore) AddNewMeeting(ctx context.Context, leadID int, in models.MeetingInput) (models.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.state.Load()
	i := indexOfLead(cur.Leads, leadID)
	if i < 0 {
		return models.Meeting{}, fmt.Errorf("store: add meeting to lead %d: %w", leadID, apperr.ErrNotFound)
	}

	in.LeadID = leadID
	created, err := s.src.CreateMeeting(ctx, leadID, in)
	if err != nil {
		return models.Meeting{}, fmt.Errorf("store: add meeting to lead %d: %w", leadID, err)
	}
	created.LeadID = leadID

	lead := cur.Leads[i].Clone()
	lead.Meetings = append(lead.Meetings, created)
	s.replaceAt(cur, i, lead)
	s.publish(MeetingCreated, created)
	return created, nil
}

// UpdateExistingMeeting replaces fields of one meeting inside its lead.
func (s *LeadStore) UpdateExistingMeeting(ctx context.Context, leadID, meetingID int, patch models.MeetingPatch) (models.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.state.Load()
	i := indexOfLead(cur.Leads, leadID)
	if i < 0 {
		return models.Meeting{}, fmt.Errorf("store: update meeting of lead %d: %w", leadID, apperr.ErrNotFound)
	}
	lead := cur.Leads[i].Clone()
	j := -1
	for k, m := range lead.Meetings {
		if m.ID == meetingID {
			j = k
			break
		}
	}
	if j < 0 {
		return models.Meeting{}, fmt.Errorf("store: update meeting %d: %w", meetingID, apperr.ErrNotFound)
	}

	saved, err := s.src.UpdateMeeting(ctx, patch.Apply(lead.Meetings[j]))
	if err != nil {
		return models.Meeting{}, fmt.Errorf("store: update meeting %d: %w", meetingID, err)
	}
	saved.LeadID = leadID
	lead.Meetings[j] = saved
	s.replaceAt(cur, i, lead)
	s.publish(MeetingUpdated, saved)
	return saved, nil
}

// AddNote appends a free-text note to a lead.
func (s *LeadStore) AddNote(ctx context.Context, leadID int, note string) (models.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.state.Load()
	i := indexOfLead(cur.Leads, leadID)
	if i < 0 {
		return models.Lead{}, fmt.Errorf("store: add note to lead %d: %w", leadID, apperr.ErrNotFound)
	}
	if err := s.src.AddNote(ctx, leadID, note); err != nil {
		return models.Lead{}, fmt.Errorf("store: add note to lead %d: %w", leadID, err)
	}
	lead := cur.Leads[i].Clone()
	lead.Notes = append(lead.Notes, note)
	s.replaceAt(cur, i, lead)
	s.publish(NoteAdded, map[string]any{"leadId": leadID, "note": note})
	return lead.Clone(), nil
}

// replaceAt commits a copy of cur with the lead at i swapped for l.
// Must be called with s.mu held.
func (s *LeadStore) replaceAt(cur *LeadState, i int, l models.Lead) {
	next := make([]models.Lead, len(cur.Leads))
	copy(next, cur.Leads)
	next[i] = l
	s.commit(next, cur.Loaded)
}

// commit publishes a new state. Must be called with s.mu held.
func (s *LeadStore) commit(leads []models.Lead, loaded bool) {
	prev := s.state.Load()
	s.state.Store(&LeadState{Leads: leads, Version: prev.Version + 1, Loaded: loaded})
}

func (s *LeadStore) publish(kind string, data any) {
	if s.closed.Load() {
		return
	}
	s.opts.logger.Debug("store: change", slog.String("kind", kind))
	s.opts.notifier.PublishChange(kind, data)
}

// ETag returns the checksum clients send back in If-Match.
func ETag(l models.Lead) string {
	// Lead holds only strings, ints and slices of them, so encoding cannot fail.
	tag, _ := checksum.JSON(l)
	return tag
}

func indexOfLead(leads []models.Lead, id int) int {
	for i := range leads {
		if leads[i].ID == id {
			return i
		}
	}
	return -1
}

func normalizeLead(l models.Lead) models.Lead {
	l = l.Clone()
	for i := range l.Meetings {
		l.Meetings[i].LeadID = l.ID
	}
	return l
}
