package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/starford/crmdesk/internal/models"
)

// MessageState is an immutable view of the message collection.
type MessageState struct {
	Messages []models.Message
	Version  uint64
	Loaded   bool
}

// MessageStore is the source of truth for the flat message collection.
type MessageStore struct {
	src  MessageSource
	opts options

	mu     sync.Mutex
	state  atomic.Pointer[MessageState]
	closed atomic.Bool
}

// NewMessages creates an empty message store.
func NewMessages(src MessageSource, opts ...Option) *MessageStore {
	s := &MessageStore{src: src, opts: buildOptions(opts)}
	s.state.Store(&MessageState{Messages: []models.Message{}})
	return s
}

// Close detaches the store from its notifier.
func (s *MessageStore) Close() {
	s.closed.Store(true)
}

// Snapshot returns the current state.
func (s *MessageStore) Snapshot() *MessageState {
	return s.state.Load()
}

// Messages returns a copy of the collection.
func (s *MessageStore) Messages() []models.Message {
	return append([]models.Message{}, s.state.Load().Messages...)
}

// Message looks up a message by id.
func (s *MessageStore) Message(id string) (models.Message, bool) {
	for _, m := range s.state.Load().Messages {
		if m.ID == id {
			return m, true
		}
	}
	return models.Message{}, false
}

// FilterMessages applies f to the current collection.
func (s *MessageStore) FilterMessages(f models.MessageFilters) []models.Message {
	return FilterMessages(s.Messages(), f)
}

// FetchMessages replaces the collection with the source's. On error the
// previous state is kept.
func (s *MessageStore) FetchMessages(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs, err := s.src.GetMessages(ctx)
	if err != nil {
		return fmt.Errorf("store: fetch messages: %w", err)
	}
	s.commit(append([]models.Message{}, msgs...), true)
	s.publish(MessagesFetched, map[string]int{"count": len(msgs)})
	return nil
}

// AddNewMessage saves a message and appends it. A zero timestamp is set to
// the store's clock.
func (s *MessageStore) AddNewMessage(ctx context.Context, in models.MessageInput) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if in.Timestamp.IsZero() {
		in.Timestamp = s.opts.now().UTC()
	}
	created, err := s.src.CreateMessage(ctx, in)
	if err != nil {
		return models.Message{}, fmt.Errorf("store: add message: %w", err)
	}

	cur := s.state.Load()
	next := make([]models.Message, 0, len(cur.Messages)+1)
	next = append(next, cur.Messages...)
	next = append(next, created)
	s.commit(next, cur.Loaded)
	s.publish(MessageCreated, created)
	return created, nil
}

func (s *MessageStore) commit(msgs []models.Message, loaded bool) {
	prev := s.state.Load()
	s.state.Store(&MessageState{Messages: msgs, Version: prev.Version + 1, Loaded: loaded})
}

func (s *MessageStore) publish(kind string, data any) {
	if s.closed.Load() {
		return
	}
	s.opts.logger.Debug("store: change", slog.String("kind", kind))
	s.opts.notifier.PublishChange(kind, data)
}
