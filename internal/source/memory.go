package source

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/starford/crmdesk/internal/apperr"
	"github.com/starford/crmdesk/internal/fixtures"
	"github.com/starford/crmdesk/internal/models"
)

// Memory is an in-process Source seeded from a fixture set. It stands in
// for a remote data-access API and hands out copies only.
type Memory struct {
	mu          sync.Mutex
	leads       []models.Lead
	messages    []models.Message
	nextLead    int
	nextMeeting int
}

var _ Source = (*Memory)(nil)

// NewMemory creates a Memory source holding a copy of set (nil means empty).
func NewMemory(set *fixtures.Set) *Memory {
	m := &Memory{}
	m.Reset(set)
	return m
}

// Reset replaces all data with a copy of set and recomputes id counters.
func (m *Memory) Reset(set *fixtures.Set) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.leads = nil
	m.messages = nil
	m.nextLead, m.nextMeeting = 1, 1
	if set == nil {
		return
	}
	for _, l := range set.Leads {
		l = l.Clone()
		for i := range l.Meetings {
			l.Meetings[i].LeadID = l.ID
			if l.Meetings[i].ID >= m.nextMeeting {
				m.nextMeeting = l.Meetings[i].ID + 1
			}
		}
		if l.ID >= m.nextLead {
			m.nextLead = l.ID + 1
		}
		m.leads = append(m.leads, l)
	}
	m.messages = append(m.messages, set.Messages...)
	// Zero ids in fixtures are assigned after the explicit ones.
	for i := range m.leads {
		if m.leads[i].ID == 0 {
			m.leads[i].ID = m.nextLead
			m.nextLead++
		}
		for j := range m.leads[i].Meetings {
			m.leads[i].Meetings[j].LeadID = m.leads[i].ID
			if m.leads[i].Meetings[j].ID == 0 {
				m.leads[i].Meetings[j].ID = m.nextMeeting
				m.nextMeeting++
			}
		}
	}
	for i := range m.messages {
		if m.messages[i].ID == "" {
			m.messages[i].ID = uuid.NewString()
		}
	}
}

// GetLeads returns every lead in insertion order.
func (m *Memory) GetLeads(ctx context.Context) ([]models.Lead, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Lead, len(m.leads))
	for i, l := range m.leads {
		out[i] = l.Clone()
	}
	return out, nil
}

// GetLead returns the lead with the given id.
func (m *Memory) GetLead(ctx context.Context, id int) (models.Lead, error) {
	if err := ctx.Err(); err != nil {
		return models.Lead{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexOf(id)
	if i < 0 {
		return models.Lead{}, fmt.Errorf("source: lead %d: %w", id, apperr.ErrNotFound)
	}
	return m.leads[i].Clone(), nil
}

// CreateLead appends a lead with the next free id. Supplied meetings get
// fresh ids.
func (m *Memory) CreateLead(ctx context.Context, in models.LeadInput) (models.Lead, error) {
	if err := ctx.Err(); err != nil {
		return models.Lead{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	l := models.Lead{
		ID:       m.nextLead,
		Name:     in.Name,
		Email:    in.Email,
		Company:  in.Company,
		Phone:    in.Phone,
		Status:   in.Status,
		Notes:    append([]string{}, in.Notes...),
		Meetings: []models.Meeting{},
	}
	m.nextLead++
	for _, mt := range in.Meetings {
		mt.LeadID = l.ID
		mt.ID = m.nextMeeting
		m.nextMeeting++
		l.Meetings = append(l.Meetings, mt)
	}
	m.leads = append(m.leads, l)
	return l.Clone(), nil
}

// UpdateLead replaces the stored lead with the same id.
func (m *Memory) UpdateLead(ctx context.Context, lead models.Lead) (models.Lead, error) {
	if err := ctx.Err(); err != nil {
		return models.Lead{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexOf(lead.ID)
	if i < 0 {
		return models.Lead{}, fmt.Errorf("source: lead %d: %w", lead.ID, apperr.ErrNotFound)
	}
	// Meeting ids are kept only when they already belong to this lead.
	owned := make(map[int]bool, len(m.leads[i].Meetings))
	for _, mt := range m.leads[i].Meetings {
		owned[mt.ID] = true
	}
	lead = lead.Clone()
	for j := range lead.Meetings {
		mt := &lead.Meetings[j]
		mt.LeadID = lead.ID
		if !owned[mt.ID] {
			mt.ID = m.nextMeeting
			m.nextMeeting++
		}
		delete(owned, mt.ID)
		if mt.ID >= m.nextMeeting {
			m.nextMeeting = mt.ID + 1
		}
	}
	m.leads[i] = lead
	return lead.Clone(), nil
}

// AddNote appends a note to a lead.
func (m *Memory) AddNote(ctx context.Context, leadID int, note string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexOf(leadID)
	if i < 0 {
		return fmt.Errorf("source: lead %d: %w", leadID, apperr.ErrNotFound)
	}
	l := m.leads[i].Clone()
	l.Notes = append(l.Notes, note)
	m.leads[i] = l
	return nil
}

// GetMeetings returns the meetings of one lead.
func (m *Memory) GetMeetings(ctx context.Context, leadID int) ([]models.Meeting, error) {
	l, err := m.GetLead(ctx, leadID)
	if err != nil {
		return nil, err
	}
	return l.Meetings, nil
}

// CreateMeeting schedules a meeting under an existing lead.
func (m *Memory) CreateMeeting(ctx context.Context, leadID int, in models.MeetingInput) (models.Meeting, error) {
	if err := ctx.Err(); err != nil {
		return models.Meeting{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexOf(leadID)
	if i < 0 {
		return models.Meeting{}, fmt.Errorf("source: lead %d: %w", leadID, apperr.ErrNotFound)
	}
	mt := models.Meeting{
		ID:          m.nextMeeting,
		LeadID:      leadID,
		Date:        in.Date,
		Time:        in.Time,
		Description: in.Description,
	}
	m.nextMeeting++
	l := m.leads[i].Clone()
	l.Meetings = append(l.Meetings, mt)
	m.leads[i] = l
	return mt, nil
}

// UpdateMeeting replaces a meeting inside its lead.
func (m *Memory) UpdateMeeting(ctx context.Context, mt models.Meeting) (models.Meeting, error) {
	if err := ctx.Err(); err != nil {
		return models.Meeting{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexOf(mt.LeadID)
	if i < 0 {
		return models.Meeting{}, fmt.Errorf("source: lead %d: %w", mt.LeadID, apperr.ErrNotFound)
	}
	l := m.leads[i].Clone()
	for j := range l.Meetings {
		if l.Meetings[j].ID == mt.ID {
			l.Meetings[j] = mt
			m.leads[i] = l
			return mt, nil
		}
	}
	return models.Meeting{}, fmt.Errorf("source: meeting %d: %w", mt.ID, apperr.ErrNotFound)
}

// GetMessages returns every message in insertion order.
func (m *Memory) GetMessages(ctx context.Context) ([]models.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Message{}, m.messages...), nil
}

// CreateMessage appends a message with a fresh id.
func (m *Memory) CreateMessage(ctx context.Context, in models.MessageInput) (models.Message, error) {
	if err := ctx.Err(); err != nil {
		return models.Message{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	msg := models.Message{
		ID:        uuid.NewString(),
		Email:     in.Email,
		Subject:   in.Subject,
		Content:   in.Content,
		Timestamp: in.Timestamp,
	}
	m.messages = append(m.messages, msg)
	return msg, nil
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }

func (m *Memory) indexOf(id int) int {
	for i := range m.leads {
		if m.leads[i].ID == id {
			return i
		}
	}
	return -1
}
