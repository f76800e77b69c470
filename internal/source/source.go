// Package source implements the data-access API the stores load from and
// write through. Implementations assign identities.
package source

import (
	"context"

	"github.com/starford/crmdesk/internal/models"
)

// Source is the backing data-access API for leads, meetings and messages.
// Lookups of unknown identities return an error wrapping apperr.ErrNotFound.
type Source interface {
	GetLeads(ctx context.Context) ([]models.Lead, error)
	GetLead(ctx context.Context, id int) (models.Lead, error)
	CreateLead(ctx context.Context, in models.LeadInput) (models.Lead, error)
	UpdateLead(ctx context.Context, lead models.Lead) (models.Lead, error)
	AddNote(ctx context.Context, leadID int, note string) error

	GetMeetings(ctx context.Context, leadID int) ([]models.Meeting, error)
	CreateMeeting(ctx context.Context, leadID int, in models.MeetingInput) (models.Meeting, error)
	UpdateMeeting(ctx context.Context, m models.Meeting) (models.Meeting, error)

	GetMessages(ctx context.Context) ([]models.Message, error)
	CreateMessage(ctx context.Context, in models.MessageInput) (models.Message, error)

	Close() error
}

// Drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)
