package fixtures

import (
	"time"

	"github.com/starford/crmdesk/internal/models"
)

// Sample returns the demo data set shipped with the application.
func Sample() *Set {
	return &Set{
		Leads: []models.Lead{
			{
				ID: 1, Name: "Ann Lee", Email: "ann@northwind.example", Company: "Northwind",
				Phone: "+1 555 0100", Status: models.StatusNew,
				Notes: []string{"Met at the spring expo."},
				Meetings: []models.Meeting{
					{ID: 1, LeadID: 1, Date: "2024-01-10", Time: "10:00", Description: "Intro call"},
				},
			},
			{
				ID: 2, Name: "Ben Ortiz", Email: "ben@contoso.example", Company: "Contoso",
				Phone: "+1 555 0101", Status: models.StatusContacted,
				Notes: []string{}, Meetings: []models.Meeting{},
			},
			{
				ID: 3, Name: "Chloe Park", Email: "chloe@fabrikam.example", Company: "Fabrikam",
				Phone: "+1 555 0102", Status: models.StatusQualified,
				Notes: []string{"Needs pricing for 50 seats.", "Decision in Q2."},
				Meetings: []models.Meeting{
					{ID: 2, LeadID: 3, Date: "2024-02-02", Time: "14:30", Description: "Demo"},
					{ID: 3, LeadID: 3, Date: "2024-02-20", Time: "09:00", Description: "Pricing review"},
				},
			},
		},
		Messages: []models.Message{
			{
				ID: "welcome-ann", Email: "ann@northwind.example", Subject: "Great meeting you",
				Content:   "Thanks for stopping by our booth.",
				Timestamp: time.Date(2024, 1, 5, 16, 0, 0, 0, time.UTC),
			},
		},
	}
}
