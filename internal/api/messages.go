package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/crmdesk/internal/models"
)

// ListMessages handles GET /api/messages.
//
//	@Summary		List saved messages
//	@Tags			messages
//	@Produce		json
//	@Param			email	query		string	false	"Only messages to this recipient"
//	@Param			search	query		string	false	"Match on subject or content"
//	@Success		200		{object}	MessageListResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/messages [get]
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := models.MessageFilters{Email: q.Get("email"), Search: q.Get("search")}
	if err := f.Validate(); err != nil {
		invalid(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageListResponse{
		Messages: h.svc.Messages.FilterMessages(f),
		Total:    len(h.svc.Messages.Snapshot().Messages),
	})
}

// GetMessage handles GET /api/messages/{id}.
//
//	@Summary		Get a single message
//	@Tags			messages
//	@Produce		json
//	@Param			id	path		string	true	"Message ID"
//	@Success		200	{object}	models.Message
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/messages/{id} [get]
func (h *Handler) GetMessage(w http.ResponseWriter, r *http.Request) {
	m, ok := h.svc.Messages.Message(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// CreateMessage handles POST /api/messages.
//
//	@Summary		Save an outgoing message
//	@Tags			messages
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateMessageRequest	true	"Message to save"
//	@Success		201		{object}	models.Message
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/messages [post]
func (h *Handler) CreateMessage(w http.ResponseWriter, r *http.Request) {
	var req CreateMessageRequest
	if !readJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		invalid(w, err)
		return
	}
	m, err := h.svc.Messages.AddNewMessage(r.Context(), req)
	if err != nil {
		writeError(w, "create message", err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// RefreshMessages handles POST /api/messages/refresh.
//
//	@Summary		Reload every message from the data source
//	@Tags			messages
//	@Produce		json
//	@Success		200	{object}	MessageListResponse
//	@Security		BearerAuth
//	@Router			/messages/refresh [post]
func (h *Handler) RefreshMessages(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Messages.FetchMessages(r.Context()); err != nil {
		writeError(w, "refresh messages", err)
		return
	}
	msgs := h.svc.Messages.Messages()
	writeJSON(w, http.StatusOK, MessageListResponse{Messages: msgs, Total: len(msgs)})
}
