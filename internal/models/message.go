package models

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// Message is an outgoing email draft. Messages are independent of leads.
type Message struct {
	ID        string    `json:"id,omitempty" yaml:"id"`
	Email     string    `json:"email" yaml:"email"`
	Subject   string    `json:"subject" yaml:"subject"`
	Content   string    `json:"content" yaml:"content"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

// MessageInput carries the fields of a message to be saved.
// A zero Timestamp is filled in by the store.
type MessageInput struct {
	Email     string    `json:"email"`
	Subject   string    `json:"subject"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// Validate applies the form-layer rules for a new message.
func (in MessageInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Email, validation.Required, is.EmailFormat),
		validation.Field(&in.Subject, validation.Required),
		validation.Field(&in.Content, validation.Required),
	)
}
