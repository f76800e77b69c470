package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/crmdesk/internal/assistant"
	"github.com/starford/crmdesk/internal/store"
)

// Services are the application components the API exposes.
type Services struct {
	Leads      *store.LeadStore
	Messages   *store.MessageStore
	Components *assistant.Registry
}

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc Services, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(LiftQueryToken)
	r.Use(AuthMiddleware(authEnabled, token))

	// Leads, with their notes and meetings.
	r.Get("/leads", h.ListLeads)
	r.Post("/leads", h.CreateLead)
	r.Post("/leads/refresh", h.RefreshLeads)
	r.Get("/leads/{id}", h.GetLead)
	r.Patch("/leads/{id}", h.UpdateLead)
	r.Post("/leads/{id}/notes", h.AddNote)
	r.Post("/leads/{id}/meetings", h.CreateMeeting)
	r.Patch("/leads/{id}/meetings/{meetingID}", h.UpdateMeeting)
	r.Get("/meetings", h.ListMeetings)

	// Messages.
	r.Get("/messages", h.ListMessages)
	r.Post("/messages", h.CreateMessage)
	r.Post("/messages/refresh", h.RefreshMessages)
	r.Get("/messages/{id}", h.GetMessage)

	// Assistant components and form drafts.
	r.Get("/components", h.ListComponents)
	r.Post("/components/{name}", h.InvokeComponent)
	r.Get("/components/{name}/draft", h.GetDraft)
	r.Patch("/components/{name}/draft", h.EditDraft)
	r.Delete("/components/{name}/draft", h.ResetDraft)
	r.Post("/components/{name}/submit", h.SubmitForm)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
