package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/crmdesk/internal/apperr"
	"github.com/starford/crmdesk/internal/fixtures"
	"github.com/starford/crmdesk/internal/models"
	"github.com/starford/crmdesk/internal/source"
)

// recorder collects published change kinds.
type recorder struct {
	mu    sync.Mutex
	kinds []string
}

func (r *recorder) PublishChange(kind string, _ any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds = append(r.kinds, kind)
}

func (r *recorder) Kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.kinds...)
}

// scriptedSource serves queued GetLeads results before falling back to the
// embedded memory source.
type scriptedSource struct {
	*source.Memory
	fetches []func() ([]models.Lead, error)
}

func (s *scriptedSource) GetLeads(ctx context.Context) ([]models.Lead, error) {
	if len(s.fetches) > 0 {
		next := s.fetches[0]
		s.fetches = s.fetches[1:]
		return next()
	}
	return s.Memory.GetLeads(ctx)
}

func newLeadStore(t *testing.T, set *fixtures.Set) (*LeadStore, *recorder) {
	t.Helper()
	rec := &recorder{}
	s := NewLeads(source.NewMemory(set), WithNotifier(rec))
	t.Cleanup(s.Close)
	return s, rec
}

func strPtr(s string) *string { return &s }

func TestAddNewLead_AssignsUniqueIDs(t *testing.T) {
	s, _ := newLeadStore(t, nil)
	ctx := context.Background()

	const n = 25
	seen := make(map[int]bool)
	for i := 0; i < n; i++ {
		l, err := s.AddNewLead(ctx, models.LeadInput{Name: "Lead", Email: "dup@x.com"})
		if err != nil {
			t.Fatalf("AddNewLead: %v", err)
		}
		if seen[l.ID] {
			t.Fatalf("duplicate id %d", l.ID)
		}
		seen[l.ID] = true
	}
	if got := len(s.Leads()); got != n {
		t.Errorf("len = %d, want %d", got, n)
	}
}

func TestAddNewLead_DefaultsEmptyCollections(t *testing.T) {
	s, rec := newLeadStore(t, nil)
	l, err := s.AddNewLead(context.Background(), models.LeadInput{Name: "Ann", Email: "a@x.com"})
	if err != nil {
		t.Fatalf("AddNewLead: %v", err)
	}
	if l.Notes == nil || len(l.Notes) != 0 {
		t.Errorf("notes = %#v, want empty", l.Notes)
	}
	if l.Meetings == nil || len(l.Meetings) != 0 {
		t.Errorf("meetings = %#v, want empty", l.Meetings)
	}
	if l.Status != models.StatusNew {
		t.Errorf("status = %q, want New", l.Status)
	}
	if diff := cmp.Diff([]string{LeadCreated}, rec.Kinds()); diff != "" {
		t.Errorf("events (-want +got):\n%s", diff)
	}
}

func TestUpdateExistingLead_OnlyPatchedFields(t *testing.T) {
	s, _ := newLeadStore(t, fixtures.Sample())
	ctx := context.Background()
	if err := s.FetchLeads(ctx); err != nil {
		t.Fatal(err)
	}
	before, _ := s.Lead(3)

	status := models.StatusClosed
	got, err := s.UpdateExistingLead(ctx, 3, models.LeadPatch{Phone: strPtr("+1 555 9999"), Status: &status})
	if err != nil {
		t.Fatalf("UpdateExistingLead: %v", err)
	}

	want := before.Clone()
	want.Phone = "+1 555 9999"
	want.Status = models.StatusClosed
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("updated lead (-want +got):\n%s", diff)
	}
	stored, _ := s.Lead(3)
	if diff := cmp.Diff(want, stored); diff != "" {
		t.Errorf("stored lead (-want +got):\n%s", diff)
	}
}

func TestUpdateExistingLead_ReplacesMeetingsWhenPatched(t *testing.T) {
	s, _ := newLeadStore(t, fixtures.Sample())
	ctx := context.Background()
	_ = s.FetchLeads(ctx)

	got, err := s.UpdateExistingLead(ctx, 3, models.LeadPatch{
		Meetings: []models.Meeting{{ID: 2, Date: "2024-03-01", Time: "08:00", Description: "Moved"}},
	})
	if err != nil {
		t.Fatalf("UpdateExistingLead: %v", err)
	}
	if len(got.Meetings) != 1 || got.Meetings[0].LeadID != 3 || got.Meetings[0].Description != "Moved" {
		t.Errorf("meetings = %+v", got.Meetings)
	}
}

func TestMeetingIDs_UniqueAcrossLeads(t *testing.T) {
	s, _ := newLeadStore(t, fixtures.Sample())
	ctx := context.Background()
	if err := s.FetchLeads(ctx); err != nil {
		t.Fatal(err)
	}

	// Caller-supplied ids on create are replaced.
	a, err := s.AddNewLead(ctx, models.LeadInput{
		Name: "Ann", Email: "a@x.com",
		Meetings: []models.Meeting{{ID: 1, Date: "2024-04-01", Time: "09:00", Description: "pre"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	b, err := s.AddNewLead(ctx, models.LeadInput{Name: "Ben", Email: "b@x.com"})
	if err != nil {
		t.Fatal(err)
	}
	added, err := s.AddNewMeeting(ctx, b.ID, models.MeetingInput{Date: "2024-04-02", Time: "10:00", Description: "new"})
	if err != nil {
		t.Fatal(err)
	}

	// An id owned by another lead is replaced on update; the lead's own id is kept.
	updated, err := s.UpdateExistingLead(ctx, 3, models.LeadPatch{
		Meetings: []models.Meeting{
			{ID: 2, Date: "2024-02-02", Time: "14:30", Description: "Demo"},
			{ID: 1, Date: "2024-05-01", Time: "11:00", Description: "stolen"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	seen := make(map[int]string)
	for _, m := range s.Meetings() {
		if prev, dup := seen[m.ID]; dup {
			t.Fatalf("meeting id %d used by %q and %q", m.ID, prev, m.Description)
		}
		seen[m.ID] = m.Description
	}
	if a.Meetings[0].ID == 1 {
		t.Errorf("create kept caller id 1")
	}
	if got, ok := s.Meeting(added.ID); !ok || got.Description != "new" {
		t.Errorf("Meeting(%d) = %+v", added.ID, got)
	}
	if got, _ := s.Meeting(1); got.LeadID != 1 {
		t.Errorf("meeting 1 moved to lead %d", got.LeadID)
	}
	var kept bool
	for _, m := range updated.Meetings {
		kept = kept || (m.ID == 2 && m.Description == "Demo")
	}
	if !kept {
		t.Errorf("lead 3 lost its own meeting id 2: %+v", updated.Meetings)
	}
}

func TestUpdateExistingLead_NotFound(t *testing.T) {
	s, rec := newLeadStore(t, fixtures.Sample())
	ctx := context.Background()
	_ = s.FetchLeads(ctx)
	before := s.Snapshot()

	_, err := s.UpdateExistingLead(ctx, 999, models.LeadPatch{Name: strPtr("x")})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if s.Snapshot() != before {
		t.Error("state replaced on failed update")
	}
	if len(rec.Kinds()) != 1 {
		t.Errorf("events = %v, want only the fetch", rec.Kinds())
	}
}

func TestUpdateLeadIfMatch(t *testing.T) {
	s, _ := newLeadStore(t, fixtures.Sample())
	ctx := context.Background()
	_ = s.FetchLeads(ctx)

	l, _ := s.Lead(1)
	tag := ETag(l)

	if _, err := s.UpdateLeadIfMatch(ctx, 1, models.LeadPatch{Company: strPtr("Acme")}, tag); err != nil {
		t.Fatalf("first update: %v", err)
	}
	_, err := s.UpdateLeadIfMatch(ctx, 1, models.LeadPatch{Company: strPtr("Globex")}, tag)
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("stale etag err = %v, want ErrConflict", err)
	}
	l, _ = s.Lead(1)
	if l.Company != "Acme" {
		t.Errorf("company = %q, want Acme", l.Company)
	}
}

func TestAddNewMeeting_UnknownLeadLeavesMeetingsAlone(t *testing.T) {
	s, _ := newLeadStore(t, fixtures.Sample())
	ctx := context.Background()
	_ = s.FetchLeads(ctx)
	before := s.Leads()

	_, err := s.AddNewMeeting(ctx, 42, models.MeetingInput{Date: "2024-01-01", Time: "10:00", Description: "x"})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if diff := cmp.Diff(before, s.Leads()); diff != "" {
		t.Errorf("leads changed (-before +after):\n%s", diff)
	}
}

func TestScenario_AddLeadThenMeeting(t *testing.T) {
	s, rec := newLeadStore(t, nil)
	ctx := context.Background()

	lead, err := s.AddNewLead(ctx, models.LeadInput{
		Name: "Ann", Email: "a@x.com", Company: "X", Phone: "1", Status: models.StatusNew,
	})
	if err != nil {
		t.Fatal(err)
	}
	if lead.ID != 1 {
		t.Fatalf("lead id = %d, want 1", lead.ID)
	}

	m, err := s.AddNewMeeting(ctx, 1, models.MeetingInput{Date: "2024-01-01", Time: "10:00", Description: "Kickoff"})
	if err != nil {
		t.Fatalf("AddNewMeeting: %v", err)
	}
	if m.LeadID != 1 || m.ID == 0 {
		t.Errorf("meeting = %+v", m)
	}

	got, _ := s.Lead(1)
	if len(got.Meetings) != 1 {
		t.Fatalf("meetings = %d, want 1", len(got.Meetings))
	}
	if got.Meetings[0].LeadID != 1 {
		t.Errorf("leadId = %d, want 1", got.Meetings[0].LeadID)
	}
	if diff := cmp.Diff([]string{LeadCreated, MeetingCreated}, rec.Kinds()); diff != "" {
		t.Errorf("events (-want +got):\n%s", diff)
	}
}

func TestAddNewMeeting_OverridesInputLeadID(t *testing.T) {
	s, _ := newLeadStore(t, fixtures.Sample())
	ctx := context.Background()
	_ = s.FetchLeads(ctx)

	m, err := s.AddNewMeeting(ctx, 2, models.MeetingInput{LeadID: 3, Date: "2024-05-05", Time: "12:00", Description: "Lunch"})
	if err != nil {
		t.Fatal(err)
	}
	if m.LeadID != 2 {
		t.Errorf("leadId = %d, want 2", m.LeadID)
	}
	l3, _ := s.Lead(3)
	if len(l3.Meetings) != 2 {
		t.Errorf("lead 3 meetings = %d, want unchanged 2", len(l3.Meetings))
	}
}

func TestUpdateExistingMeeting(t *testing.T) {
	s, _ := newLeadStore(t, fixtures.Sample())
	ctx := context.Background()
	_ = s.FetchLeads(ctx)

	m, err := s.UpdateExistingMeeting(ctx, 3, 3, models.MeetingPatch{Time: strPtr("11:15")})
	if err != nil {
		t.Fatalf("UpdateExistingMeeting: %v", err)
	}
	if m.Time != "11:15" || m.Description != "Pricing review" {
		t.Errorf("meeting = %+v", m)
	}

	if _, err := s.UpdateExistingMeeting(ctx, 1, 3, models.MeetingPatch{}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("meeting under wrong lead: err = %v, want ErrNotFound", err)
	}
}

func TestAddNote(t *testing.T) {
	s, _ := newLeadStore(t, fixtures.Sample())
	ctx := context.Background()
	_ = s.FetchLeads(ctx)

	l, err := s.AddNote(ctx, 2, "Call back Friday")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"Call back Friday"}, l.Notes); diff != "" {
		t.Errorf("notes (-want +got):\n%s", diff)
	}
	if _, err := s.AddNote(ctx, 77, "x"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestFetchLeads_SecondFetchReplacesFirst(t *testing.T) {
	first := []models.Lead{
		{ID: 1, Name: "A", Meetings: []models.Meeting{{ID: 1, LeadID: 1}}},
		{ID: 2, Name: "B"},
	}
	second := []models.Lead{{ID: 9, Name: "Z"}}
	src := &scriptedSource{
		Memory: source.NewMemory(nil),
		fetches: []func() ([]models.Lead, error){
			func() ([]models.Lead, error) { return first, nil },
			func() ([]models.Lead, error) { return second, nil },
		},
	}
	s := NewLeads(src)
	ctx := context.Background()

	if err := s.FetchLeads(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.FetchLeads(ctx); err != nil {
		t.Fatal(err)
	}

	got := s.Leads()
	if len(got) != 1 || got[0].ID != 9 || got[0].Name != "Z" {
		t.Errorf("leads = %+v, want only the second data set", got)
	}
	if len(s.Meetings()) != 0 {
		t.Errorf("meetings leaked from first fetch: %+v", s.Meetings())
	}
}

func TestFetchLeads_ErrorKeepsPreviousState(t *testing.T) {
	boom := errors.New("network down")
	src := &scriptedSource{
		Memory: source.NewMemory(fixtures.Sample()),
		fetches: []func() ([]models.Lead, error){
			func() ([]models.Lead, error) { return []models.Lead{{ID: 1, Name: "kept"}}, nil },
			func() ([]models.Lead, error) { return nil, boom },
		},
	}
	s := NewLeads(src)
	ctx := context.Background()
	_ = s.FetchLeads(ctx)
	before := s.Snapshot()

	err := s.FetchLeads(ctx)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if s.Snapshot() != before {
		t.Error("state replaced after failed fetch")
	}
}

func TestMutations_ProduceNewCollection(t *testing.T) {
	s, _ := newLeadStore(t, fixtures.Sample())
	ctx := context.Background()
	_ = s.FetchLeads(ctx)

	old := s.Snapshot()
	oldLead := old.Leads[0]

	if _, err := s.UpdateExistingLead(ctx, oldLead.ID, models.LeadPatch{Name: strPtr("Renamed")}); err != nil {
		t.Fatal(err)
	}
	cur := s.Snapshot()
	if cur == old {
		t.Fatal("snapshot pointer unchanged after mutation")
	}
	if cur.Version <= old.Version {
		t.Errorf("version %d not greater than %d", cur.Version, old.Version)
	}
	if &cur.Leads[0] == &old.Leads[0] {
		t.Error("leads slice shared between snapshots")
	}
	if old.Leads[0].Name != oldLead.Name {
		t.Errorf("old snapshot mutated: %q", old.Leads[0].Name)
	}
}

func TestClose_StopsNotifications(t *testing.T) {
	s, rec := newLeadStore(t, nil)
	s.Close()
	if _, err := s.AddNewLead(context.Background(), models.LeadInput{Name: "x", Email: "x@x.com"}); err != nil {
		t.Fatal(err)
	}
	if len(rec.Kinds()) != 0 {
		t.Errorf("events after close: %v", rec.Kinds())
	}
	if len(s.Leads()) != 1 {
		t.Error("state should remain usable after close")
	}
}
