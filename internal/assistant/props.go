package assistant

import (
	"fmt"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/crmdesk/internal/models"
)

// LeadForm is what the assistant streams into the add-lead form.
// Every field is optional so partial props can be merged.
type LeadForm struct {
	Name    string            `json:"name,omitempty" jsonschema:"description=Full name of the lead"`
	Email   string            `json:"email,omitempty" jsonschema:"description=Email address"`
	Company string            `json:"company,omitempty"`
	Phone   string            `json:"phone,omitempty"`
	Status  models.LeadStatus `json:"status,omitempty" jsonschema:"enum=New,enum=Contacted,enum=Qualified,enum=Closed"`
}

// Validate checks the fields that are present.
func (f LeadForm) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Email, is.EmailFormat),
		validation.Field(&f.Status, statusRule),
	)
}

// EditLeadProps targets an existing lead by ID.
type EditLeadProps struct {
	ID      int               `json:"id" jsonschema:"description=ID of the lead being edited"`
	Name    string            `json:"name,omitempty"`
	Email   string            `json:"email,omitempty"`
	Company string            `json:"company,omitempty"`
	Phone   string            `json:"phone,omitempty"`
	Status  models.LeadStatus `json:"status,omitempty" jsonschema:"enum=New,enum=Contacted,enum=Qualified,enum=Closed"`
}

// Validate checks the fields that are present.
func (f EditLeadProps) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.ID, validation.Required, validation.Min(1)),
		validation.Field(&f.Email, is.EmailFormat),
		validation.Field(&f.Status, statusRule),
	)
}

// MeetingForm seeds the add-meeting form.
type MeetingForm struct {
	InitialDateTimeISO string `json:"initialDateTimeISO,omitempty" jsonschema:"description=ISO date-time of the meeting in UTC"`
	InitialDescription string `json:"initialDescription,omitempty" jsonschema:"description=Meeting description"`
	InitialLeadID      string `json:"initialLeadId,omitempty" jsonschema:"description=ID of the lead to meet"`
}

// Validate checks the date-time and lead ID formats.
func (f MeetingForm) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.InitialDateTimeISO, validation.By(func(v any) error {
			s, _ := v.(string)
			if s == "" {
				return nil
			}
			_, err := parseDateTime(s)
			return err
		})),
		validation.Field(&f.InitialLeadID, is.Int),
	)
}

// MessageForm seeds the add-message form.
type MessageForm struct {
	InitialEmail   string `json:"initialEmail,omitempty" jsonschema:"description=Recipient email address"`
	InitialSubject string `json:"initialSubject,omitempty"`
	InitialContent string `json:"initialContent,omitempty"`
}

// Validate checks the recipient address when present.
func (f MessageForm) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.InitialEmail, is.EmailFormat),
	)
}

// MessageCard is a message as shown by message-details. A card without
// an ID is a preview of an unsaved message.
type MessageCard struct {
	ID        string `json:"id,omitempty"`
	Email     string `json:"email"`
	Subject   string `json:"subject"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp,omitempty" jsonschema:"format=date-time"`
}

var statusRule = validation.In(models.StatusNew, models.StatusContacted, models.StatusQualified, models.StatusClosed).
	Error("must be one of New, Contacted, Qualified, Closed")

var dateTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// parseDateTime accepts RFC 3339 and zone-less ISO date-times, the latter
// read as UTC.
func parseDateTime(s string) (time.Time, error) {
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%q is not an ISO date-time", s)
}

func parseLeadID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("%q is not a lead ID", s)
	}
	return id, nil
}
