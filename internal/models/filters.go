package models

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// Lead sort keys accepted by LeadFilters.SortBy.
const (
	SortByName    = "name"
	SortByCompany = "company"
	SortByStatus  = "status"
)

// LeadFilters narrows the lead list.
type LeadFilters struct {
	Status     LeadStatus `json:"status,omitempty" jsonschema:"description=Only leads in this status"`
	SearchTerm string     `json:"searchTerm,omitempty" jsonschema:"description=Case-insensitive match on name, email or company"`
	SortBy     string     `json:"sortBy,omitempty" jsonschema:"enum=name,enum=company,enum=status,description=Sort key"`
}

// MeetingFilters narrows the meetings list.
type MeetingFilters struct {
	LeadID   int    `json:"leadId,omitempty" jsonschema:"description=Filter meetings for a specific lead"`
	DateFrom string `json:"dateFrom,omitempty" jsonschema:"description=Filter meetings from this date (ISO format)"`
	DateTo   string `json:"dateTo,omitempty" jsonschema:"description=Filter meetings until this date (ISO format)"`
	Search   string `json:"search,omitempty" jsonschema:"description=Search meetings by description (case-insensitive partial match)"`
}

// MessageFilters narrows the messages list.
type MessageFilters struct {
	Email  string `json:"email,omitempty" jsonschema:"description=Only messages sent to this recipient"`
	Search string `json:"search,omitempty" jsonschema:"description=Case-insensitive match on subject or content"`
}

// Validate checks the status and sort key.
func (f LeadFilters) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Status, validation.By(validStatus)),
		validation.Field(&f.SortBy, validation.In(SortByName, SortByCompany, SortByStatus)),
	)
}

// Validate checks that the date bounds are dates.
func (f MeetingFilters) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.DateFrom, validation.By(isoDate)),
		validation.Field(&f.DateTo, validation.By(isoDate)),
	)
}

// Validate checks the recipient address when present.
func (f MessageFilters) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Email, is.EmailFormat),
	)
}

// isoDate accepts a YYYY-MM-DD date optionally followed by a time part.
func isoDate(v any) error {
	s, _ := v.(string)
	if s == "" {
		return nil
	}
	if len(s) < 10 {
		return validation.NewError("validation_iso_date", "must be an ISO date")
	}
	return validation.Date("2006-01-02").Validate(s[:10])
}
