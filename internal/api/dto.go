package api

import (
	"github.com/starford/crmdesk/internal/assistant"
	"github.com/starford/crmdesk/internal/models"
)

// CreateLeadRequest is the request body for creating a lead.
type CreateLeadRequest = models.LeadInput

// UpdateLeadRequest is a partial lead update. Omitted fields are unchanged.
type UpdateLeadRequest = models.LeadPatch

// CreateMeetingRequest is the request body for scheduling a meeting.
type CreateMeetingRequest = models.MeetingInput

// UpdateMeetingRequest is a partial meeting update.
type UpdateMeetingRequest = models.MeetingPatch

// CreateMessageRequest is the request body for saving a message.
type CreateMessageRequest = models.MessageInput

// AddNoteRequest is the request body for appending a note.
type AddNoteRequest struct {
	Note string `json:"note" example:"Asked for a quote." validate:"required"`
}

// LeadListResponse wraps filtered lead listings.
type LeadListResponse struct {
	Leads []models.Lead `json:"leads" validate:"required"`
	Total int           `json:"total" example:"3" validate:"required"`
}

// MeetingListResponse wraps filtered meeting listings.
type MeetingListResponse struct {
	Meetings []models.Meeting `json:"meetings" validate:"required"`
}

// MessageListResponse wraps filtered message listings.
type MessageListResponse struct {
	Messages []models.Message `json:"messages" validate:"required"`
	Total    int              `json:"total" example:"1" validate:"required"`
}

// ComponentListResponse lists the registered assistant components.
type ComponentListResponse struct {
	Components []*assistant.Component `json:"components" validate:"required"`
}

// EditDraftRequest carries user edits to a form draft.
type EditDraftRequest struct {
	Fields map[string]any `json:"fields" validate:"required"`
}
