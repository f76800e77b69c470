// Package store holds the application's in-memory view of leads, meetings
// and messages. Every mutation publishes a brand new state value, so a
// reader holding an older snapshot never observes a change and consumers can
// detect updates by comparing snapshot pointers or versions.
package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/starford/crmdesk/internal/models"
)

// Change kinds published to the Notifier.
const (
	LeadsFetched    = "leads.fetched"
	LeadCreated     = "lead.created"
	LeadUpdated     = "lead.updated"
	NoteAdded       = "note.added"
	MeetingCreated  = "meeting.created"
	MeetingUpdated  = "meeting.updated"
	MessagesFetched = "messages.fetched"
	MessageCreated  = "message.created"
)

// Notifier receives a change event after each successful fetch or mutation.
type Notifier interface {
	PublishChange(kind string, data any)
}

// LeadSource is the part of the data-access API the lead store calls into.
type LeadSource interface {
	GetLeads(ctx context.Context) ([]models.Lead, error)
	CreateLead(ctx context.Context, in models.LeadInput) (models.Lead, error)
	UpdateLead(ctx context.Context, lead models.Lead) (models.Lead, error)
	AddNote(ctx context.Context, leadID int, note string) error
	CreateMeeting(ctx context.Context, leadID int, in models.MeetingInput) (models.Meeting, error)
	UpdateMeeting(ctx context.Context, m models.Meeting) (models.Meeting, error)
}

// MessageSource is the part of the data-access API the message store calls into.
type MessageSource interface {
	GetMessages(ctx context.Context) ([]models.Message, error)
	CreateMessage(ctx context.Context, in models.MessageInput) (models.Message, error)
}

// Option configures a store.
type Option func(*options)

type options struct {
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// WithNotifier sets the change subscriber.
func WithNotifier(n Notifier) Option {
	return func(o *options) { o.notifier = n }
}

// WithLogger sets the logger used for change tracing.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithClock overrides the time source used for message timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{
		notifier: nopNotifier{},
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

type nopNotifier struct{}

func (nopNotifier) PublishChange(string, any) {}
