// Package models defines the domain types for the CRM.
package models

import (
	"slices"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// LeadStatus is the pipeline stage of a lead.
type LeadStatus string

// Lead statuses.
const (
	StatusNew       LeadStatus = "New"
	StatusContacted LeadStatus = "Contacted"
	StatusQualified LeadStatus = "Qualified"
	StatusClosed    LeadStatus = "Closed"
)

// Statuses lists every valid status in pipeline order.
var Statuses = []LeadStatus{StatusNew, StatusContacted, StatusQualified, StatusClosed}

// Valid reports whether s is one of the known statuses.
func (s LeadStatus) Valid() bool {
	return slices.Contains(Statuses, s)
}

// Lead is a prospective customer. It owns its notes and meetings.
type Lead struct {
	ID       int        `json:"id" yaml:"id"`
	Name     string     `json:"name" yaml:"name"`
	Email    string     `json:"email" yaml:"email"`
	Company  string     `json:"company" yaml:"company"`
	Phone    string     `json:"phone" yaml:"phone"`
	Status   LeadStatus `json:"status" yaml:"status" jsonschema:"enum=New,enum=Contacted,enum=Qualified,enum=Closed"`
	Notes    []string   `json:"notes" yaml:"notes"`
	Meetings []Meeting  `json:"meetings" yaml:"meetings"`
}

// Clone returns a copy of l that shares no slices with it.
func (l Lead) Clone() Lead {
	out := l
	out.Notes = append([]string{}, l.Notes...)
	out.Meetings = append([]Meeting{}, l.Meetings...)
	return out
}

// Meeting is scheduled with exactly one lead. LeadID is a back-reference only.
type Meeting struct {
	ID          int    `json:"id,omitempty" yaml:"id"`
	LeadID      int    `json:"leadId" yaml:"lead_id"`
	Date        string `json:"date" yaml:"date"`
	Time        string `json:"time" yaml:"time"`
	Description string `json:"description" yaml:"description"`
}

// LeadInput carries the fields of a lead to be created.
type LeadInput struct {
	Name     string     `json:"name"`
	Email    string     `json:"email"`
	Company  string     `json:"company"`
	Phone    string     `json:"phone"`
	Status   LeadStatus `json:"status"`
	Notes    []string   `json:"notes,omitempty"`
	Meetings []Meeting  `json:"meetings,omitempty"`
}

// Validate applies the form-layer rules for a new lead.
func (in LeadInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required),
		validation.Field(&in.Email, validation.Required, is.EmailFormat),
		validation.Field(&in.Status, validation.By(validStatus)),
	)
}

// LeadPatch is a partial update. Nil fields are left untouched.
type LeadPatch struct {
	Name     *string     `json:"name,omitempty"`
	Email    *string     `json:"email,omitempty"`
	Company  *string     `json:"company,omitempty"`
	Phone    *string     `json:"phone,omitempty"`
	Status   *LeadStatus `json:"status,omitempty"`
	Notes    []string    `json:"notes,omitempty"`
	Meetings []Meeting   `json:"meetings,omitempty"`
}

// Validate checks the fields present in the patch.
func (p LeadPatch) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Name, validation.NilOrNotEmpty),
		validation.Field(&p.Email, validation.NilOrNotEmpty, is.EmailFormat),
		validation.Field(&p.Status, validation.By(validStatus)),
	)
}

// Apply returns l with the patched fields replaced. Identity is preserved.
func (p LeadPatch) Apply(l Lead) Lead {
	out := l.Clone()
	if p.Name != nil {
		out.Name = *p.Name
	}
	if p.Email != nil {
		out.Email = *p.Email
	}
	if p.Company != nil {
		out.Company = *p.Company
	}
	if p.Phone != nil {
		out.Phone = *p.Phone
	}
	if p.Status != nil {
		out.Status = *p.Status
	}
	if p.Notes != nil {
		out.Notes = append([]string{}, p.Notes...)
	}
	if p.Meetings != nil {
		out.Meetings = make([]Meeting, len(p.Meetings))
		for i, m := range p.Meetings {
			m.LeadID = l.ID
			out.Meetings[i] = m
		}
	}
	return out
}

// MeetingInput carries the fields of a meeting to be scheduled.
type MeetingInput struct {
	LeadID      int    `json:"leadId"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Description string `json:"description"`
}

// Validate applies the form-layer rules for a new meeting.
func (in MeetingInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Date, validation.Required, validation.Date("2006-01-02")),
		validation.Field(&in.Time, validation.Required, validation.Date("15:04")),
		validation.Field(&in.Description, validation.Required),
	)
}

// MeetingPatch is a partial update of a meeting.
type MeetingPatch struct {
	Date        *string `json:"date,omitempty"`
	Time        *string `json:"time,omitempty"`
	Description *string `json:"description,omitempty"`
}

// Validate checks the fields present in the patch.
func (p MeetingPatch) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Date, validation.NilOrNotEmpty, validation.Date("2006-01-02")),
		validation.Field(&p.Time, validation.NilOrNotEmpty, validation.Date("15:04")),
	)
}

// Apply returns m with the patched fields replaced.
func (p MeetingPatch) Apply(m Meeting) Meeting {
	if p.Date != nil {
		m.Date = *p.Date
	}
	if p.Time != nil {
		m.Time = *p.Time
	}
	if p.Description != nil {
		m.Description = *p.Description
	}
	return m
}

func validStatus(v any) error {
	var s LeadStatus
	switch t := v.(type) {
	case LeadStatus:
		s = t
	case *LeadStatus:
		if t == nil {
			return nil
		}
		s = *t
	default:
		return nil
	}
	if s == "" || s.Valid() {
		return nil
	}
	return validation.NewError("validation_lead_status", "must be one of New, Contacted, Qualified, Closed")
}
