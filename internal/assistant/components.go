package assistant

import (
	"context"
	"fmt"

	"github.com/starford/crmdesk/internal/apperr"
	"github.com/starford/crmdesk/internal/draft"
	"github.com/starford/crmdesk/internal/models"
	"github.com/starford/crmdesk/internal/store"
)

// Component names.
const (
	AddLeadForm     = "add-lead-form"
	EditLeadForm    = "edit-lead-form"
	LeadList        = "lead-list"
	LeadDetails     = "lead-details"
	LeadNotes       = "lead-notes"
	AddMeetingForm  = "add-meeting-form"
	EditMeetingForm = "edit-meeting-form"
	MeetingsList    = "meetings-list"
	MeetingDetails  = "meeting-details"
	AddMessageForm  = "add-message-form"
	MessagesList    = "messages-list"
	MessageDetails  = "message-details"
)

// LeadListView is rendered by lead-list.
type LeadListView struct {
	Filters models.LeadFilters `json:"filters"`
	Leads   []models.Lead      `json:"leads"`
	Total   int                `json:"total"`
}

// LeadNotesView is rendered by lead-notes.
type LeadNotesView struct {
	LeadID int      `json:"leadId"`
	Name   string   `json:"name"`
	Notes  []string `json:"notes"`
}

// MeetingsListView is rendered by meetings-list.
type MeetingsListView struct {
	Filters  models.MeetingFilters `json:"filters"`
	Meetings []models.Meeting      `json:"meetings"`
}

// MessagesListView is rendered by messages-list.
type MessagesListView struct {
	Filters  models.MessageFilters `json:"filters"`
	Messages []models.Message      `json:"messages"`
}

// crm binds the components to the stores they read and mutate.
type crm struct {
	reg      *Registry
	leads    *store.LeadStore
	messages *store.MessageStore
}

// RegisterCRM registers the lead, meeting and message components.
func RegisterCRM(r *Registry, leads *store.LeadStore, messages *store.MessageStore) error {
	c := &crm{reg: r, leads: leads, messages: messages}

	if err := RegisterForm(r, AddLeadForm,
		"A form for adding new leads. Use the users message to fill in lead info.",
		"lead", c.addLeadFields, c.submitAddLead); err != nil {
		return err
	}
	if err := RegisterForm(r, EditLeadForm,
		"A form for editing existing leads. Use the users message to update lead info.",
		"lead", c.editLeadFields, c.submitEditLead); err != nil {
		return err
	}
	if err := Register(r, LeadList, "A list of leads with filtering capabilities.", "filters", c.leadList); err != nil {
		return err
	}
	if err := Register(r, LeadDetails, "Detailed view of a lead's information.", "lead", c.leadDetails); err != nil {
		return err
	}
	if err := Register(r, LeadNotes, "Component for adding and viewing notes on a lead.", "lead", c.leadNotes); err != nil {
		return err
	}

	if err := RegisterForm(r, AddMeetingForm, "A form for scheduling meetings with leads.",
		"", c.addMeetingFields, c.submitAddMeeting); err != nil {
		return err
	}
	if err := RegisterForm(r, EditMeetingForm, "A form for editing meeting details.",
		"meeting", c.editMeetingFields, c.submitEditMeeting); err != nil {
		return err
	}
	if err := Register(r, MeetingsList, "A list of meetings with filtering capabilities.", "filters", c.meetingsList); err != nil {
		return err
	}
	if err := Register(r, MeetingDetails, "Detailed view of a meeting's information.", "meeting", c.meetingDetails); err != nil {
		return err
	}

	if err := RegisterForm(r, AddMessageForm, "A form for creating messages/emails.",
		"", c.addMessageFields, c.submitAddMessage); err != nil {
		return err
	}
	if err := Register(r, MessagesList, "A list of messages with filtering capabilities.", "filters", c.messagesList); err != nil {
		return err
	}
	return Register(r, MessageDetails, "Detailed view of a message's information.", "message", c.messageDetails)
}

func (c *crm) addLeadFields(_ context.Context, _ draft.Draft, p LeadForm) (map[string]any, error) {
	return present(map[string]any{
		"name":    p.Name,
		"email":   p.Email,
		"company": p.Company,
		"phone":   p.Phone,
		"status":  string(p.Status),
	}), nil
}

func (c *crm) submitAddLead(ctx context.Context, d draft.Draft) (any, error) {
	var f LeadForm
	if err := d.Decode(&f); err != nil {
		return nil, submitErr(AddLeadForm, err)
	}
	in := models.LeadInput{Name: f.Name, Email: f.Email, Company: f.Company, Phone: f.Phone, Status: f.Status}
	if err := in.Validate(); err != nil {
		return nil, submitErr(AddLeadForm, err)
	}
	return c.leads.AddNewLead(ctx, in)
}

// editLeadFields prefills the form from the stored lead whenever the
// assistant targets a lead other than the one being edited.
func (c *crm) editLeadFields(_ context.Context, d draft.Draft, p EditLeadProps) (map[string]any, error) {
	update := map[string]any{}
	if id, _ := d.Value("id"); !sameID(id, p.ID) {
		lead, ok := c.leads.Lead(p.ID)
		if !ok {
			return nil, fmt.Errorf("lead %d: %w", p.ID, apperr.ErrNotFound)
		}
		if err := c.reg.ResetDraft(EditLeadForm); err != nil {
			return nil, err
		}
		update = map[string]any{
			"id":      lead.ID,
			"name":    lead.Name,
			"email":   lead.Email,
			"company": lead.Company,
			"phone":   lead.Phone,
			"status":  string(lead.Status),
		}
	}
	for k, v := range present(map[string]any{
		"name":    p.Name,
		"email":   p.Email,
		"company": p.Company,
		"phone":   p.Phone,
		"status":  string(p.Status),
	}) {
		update[k] = v
	}
	return update, nil
}

func (c *crm) submitEditLead(ctx context.Context, d draft.Draft) (any, error) {
	var f EditLeadProps
	if err := d.Decode(&f); err != nil {
		return nil, submitErr(EditLeadForm, err)
	}
	if f.ID == 0 {
		return nil, submitErr(EditLeadForm, fmt.Errorf("no lead selected"))
	}
	// A field present in the draft is patched even when empty, so a user
	// can clear it.
	var patch models.LeadPatch
	has := func(field string) bool {
		_, ok := d.Value(field)
		return ok
	}
	if has("name") {
		patch.Name = &f.Name
	}
	if has("email") {
		patch.Email = &f.Email
	}
	if has("company") {
		patch.Company = &f.Company
	}
	if has("phone") {
		patch.Phone = &f.Phone
	}
	if has("status") && f.Status != "" {
		patch.Status = &f.Status
	}
	if err := patch.Validate(); err != nil {
		return nil, submitErr(EditLeadForm, err)
	}
	return c.leads.UpdateExistingLead(ctx, f.ID, patch)
}

func (c *crm) leadList(_ context.Context, f models.LeadFilters) (any, error) {
	return LeadListView{
		Filters: f,
		Leads:   c.leads.FilterLeads(f),
		Total:   len(c.leads.Snapshot().Leads),
	}, nil
}

func (c *crm) leadDetails(_ context.Context, p models.Lead) (any, error) {
	lead, ok := c.leads.Lead(p.ID)
	if !ok {
		return nil, fmt.Errorf("assistant: %s: lead %d: %w", LeadDetails, p.ID, apperr.ErrNotFound)
	}
	return lead, nil
}

func (c *crm) leadNotes(_ context.Context, p models.Lead) (any, error) {
	lead, ok := c.leads.Lead(p.ID)
	if !ok {
		return nil, fmt.Errorf("assistant: %s: lead %d: %w", LeadNotes, p.ID, apperr.ErrNotFound)
	}
	return LeadNotesView{LeadID: lead.ID, Name: lead.Name, Notes: lead.Notes}, nil
}

func (c *crm) addMeetingFields(_ context.Context, _ draft.Draft, p MeetingForm) (map[string]any, error) {
	update := present(map[string]any{"description": p.InitialDescription})
	if p.InitialDateTimeISO != "" {
		t, err := parseDateTime(p.InitialDateTimeISO)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", apperr.ErrInvalid, err)
		}
		update["date"] = t.Format("2006-01-02")
		update["time"] = t.Format("15:04")
	}
	if p.InitialLeadID != "" {
		id, err := parseLeadID(p.InitialLeadID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", apperr.ErrInvalid, err)
		}
		update["leadId"] = id
	}
	return update, nil
}

type meetingDraft struct {
	ID          int    `json:"id"`
	LeadID      int    `json:"leadId"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Description string `json:"description"`
}

func (c *crm) submitAddMeeting(ctx context.Context, d draft.Draft) (any, error) {
	var f meetingDraft
	if err := d.Decode(&f); err != nil {
		return nil, submitErr(AddMeetingForm, err)
	}
	if f.LeadID == 0 {
		return nil, submitErr(AddMeetingForm, fmt.Errorf("no lead selected"))
	}
	in := models.MeetingInput{LeadID: f.LeadID, Date: f.Date, Time: f.Time, Description: f.Description}
	if err := in.Validate(); err != nil {
		return nil, submitErr(AddMeetingForm, err)
	}
	return c.leads.AddNewMeeting(ctx, f.LeadID, in)
}

func (c *crm) editMeetingFields(_ context.Context, d draft.Draft, p models.Meeting) (map[string]any, error) {
	if id, _ := d.Value("id"); p.ID != 0 && !sameID(id, p.ID) {
		if err := c.reg.ResetDraft(EditMeetingForm); err != nil {
			return nil, err
		}
	}
	update := present(map[string]any{
		"date":        p.Date,
		"time":        p.Time,
		"description": p.Description,
	})
	if p.ID != 0 {
		update["id"] = p.ID
	}
	if p.LeadID != 0 {
		update["leadId"] = p.LeadID
	}
	return update, nil
}

func (c *crm) submitEditMeeting(ctx context.Context, d draft.Draft) (any, error) {
	var f meetingDraft
	if err := d.Decode(&f); err != nil {
		return nil, submitErr(EditMeetingForm, err)
	}
	if f.ID == 0 || f.LeadID == 0 {
		return nil, submitErr(EditMeetingForm, fmt.Errorf("no meeting selected"))
	}
	patch := models.MeetingPatch{Date: &f.Date, Time: &f.Time, Description: &f.Description}
	if err := patch.Validate(); err != nil {
		return nil, submitErr(EditMeetingForm, err)
	}
	return c.leads.UpdateExistingMeeting(ctx, f.LeadID, f.ID, patch)
}

func (c *crm) meetingsList(_ context.Context, f models.MeetingFilters) (any, error) {
	return MeetingsListView{Filters: f, Meetings: c.leads.FilterMeetings(f)}, nil
}

func (c *crm) meetingDetails(_ context.Context, p models.Meeting) (any, error) {
	if p.ID == 0 {
		return p, nil
	}
	m, ok := c.leads.Meeting(p.ID)
	if !ok {
		return nil, fmt.Errorf("assistant: %s: meeting %d: %w", MeetingDetails, p.ID, apperr.ErrNotFound)
	}
	return m, nil
}

func (c *crm) addMessageFields(_ context.Context, _ draft.Draft, p MessageForm) (map[string]any, error) {
	return present(map[string]any{
		"email":   p.InitialEmail,
		"subject": p.InitialSubject,
		"content": p.InitialContent,
	}), nil
}

func (c *crm) submitAddMessage(ctx context.Context, d draft.Draft) (any, error) {
	var in models.MessageInput
	if err := d.Decode(&in); err != nil {
		return nil, submitErr(AddMessageForm, err)
	}
	if err := in.Validate(); err != nil {
		return nil, submitErr(AddMessageForm, err)
	}
	return c.messages.AddNewMessage(ctx, in)
}

func (c *crm) messagesList(_ context.Context, f models.MessageFilters) (any, error) {
	return MessagesListView{Filters: f, Messages: c.messages.FilterMessages(f)}, nil
}

func (c *crm) messageDetails(_ context.Context, p MessageCard) (any, error) {
	if p.ID == "" {
		return p, nil
	}
	m, ok := c.messages.Message(p.ID)
	if !ok {
		return nil, fmt.Errorf("assistant: %s: message %s: %w", MessageDetails, p.ID, apperr.ErrNotFound)
	}
	return m, nil
}

// present drops empty string values so absent props never reach a draft.
func present(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if s, ok := v.(string); ok && s == "" {
			continue
		}
		out[k] = v
	}
	return out
}

// sameID compares a draft value, which is an int or a JSON number after a
// user edit, with id.
func sameID(v any, id int) bool {
	switch t := v.(type) {
	case int:
		return t == id
	case float64:
		return int(t) == id
	}
	return false
}

func submitErr(component string, err error) error {
	return fmt.Errorf("assistant: %s: %w: %v", component, apperr.ErrInvalid, err)
}
