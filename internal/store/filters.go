package store

import (
	"cmp"
	"slices"
	"strings"

	"github.com/starford/crmdesk/internal/models"
)

// FilterLeads returns the leads matching f, sorted by f.SortBy when set.
// Without a sort key the input order is kept.
func FilterLeads(leads []models.Lead, f models.LeadFilters) []models.Lead {
	term := strings.ToLower(strings.TrimSpace(f.SearchTerm))
	out := []models.Lead{}
	for _, l := range leads {
		if f.Status != "" && l.Status != f.Status {
			continue
		}
		if term != "" && !containsAny(term, l.Name, l.Email, l.Company) {
			continue
		}
		out = append(out, l)
	}

	switch f.SortBy {
	case models.SortByName:
		slices.SortStableFunc(out, func(a, b models.Lead) int {
			return cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		})
	case models.SortByCompany:
		slices.SortStableFunc(out, func(a, b models.Lead) int {
			return cmp.Compare(strings.ToLower(a.Company), strings.ToLower(b.Company))
		})
	case models.SortByStatus:
		slices.SortStableFunc(out, func(a, b models.Lead) int {
			return cmp.Compare(statusRank(a.Status), statusRank(b.Status))
		})
	}
	return out
}

// FilterMeetings returns the meetings matching f. Date bounds are inclusive
// and compared on the calendar date only.
func FilterMeetings(meetings []models.Meeting, f models.MeetingFilters) []models.Meeting {
	from, to := datePart(f.DateFrom), datePart(f.DateTo)
	term := strings.ToLower(strings.TrimSpace(f.Search))
	out := []models.Meeting{}
	for _, m := range meetings {
		if f.LeadID != 0 && m.LeadID != f.LeadID {
			continue
		}
		d := datePart(m.Date)
		if from != "" && d < from {
			continue
		}
		if to != "" && d > to {
			continue
		}
		if term != "" && !containsAny(term, m.Description) {
			continue
		}
		out = append(out, m)
	}
	return out
}

// FilterMessages returns the messages matching f.
func FilterMessages(msgs []models.Message, f models.MessageFilters) []models.Message {
	email := strings.ToLower(strings.TrimSpace(f.Email))
	term := strings.ToLower(strings.TrimSpace(f.Search))
	out := []models.Message{}
	for _, m := range msgs {
		if email != "" && strings.ToLower(m.Email) != email {
			continue
		}
		if term != "" && !containsAny(term, m.Subject, m.Content) {
			continue
		}
		out = append(out, m)
	}
	return out
}

func containsAny(term string, fields ...string) bool {
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), term) {
			return true
		}
	}
	return false
}

func statusRank(s models.LeadStatus) int {
	if i := slices.Index(models.Statuses, s); i >= 0 {
		return i
	}
	return len(models.Statuses)
}

// datePart trims an ISO date-time down to YYYY-MM-DD.
func datePart(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 10 {
		return s[:10]
	}
	return s
}
