package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// ListComponents handles GET /api/components.
//
//	@Summary		List the assistant's UI components and their input schemas
//	@Tags			components
//	@Produce		json
//	@Success		200	{object}	ComponentListResponse
//	@Security		BearerAuth
//	@Router			/components [get]
func (h *Handler) ListComponents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ComponentListResponse{Components: h.svc.Components.Components()})
}

// InvokeComponent handles POST /api/components/{name}.
//
//	@Summary		Validate props and render a component
//	@Tags			components
//	@Accept			json
//	@Produce		json
//	@Param			name	path		string	true	"Component name"
//	@Param			body	body		object	true	"Props matching the component's schema"
//	@Success		200		{object}	assistant.View
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/components/{name} [post]
func (h *Handler) InvokeComponent(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
		return
	}
	view, err := h.svc.Components.Invoke(r.Context(), chi.URLParam(r, "name"), json.RawMessage(body))
	if err != nil {
		writeError(w, "invoke component", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// GetDraft handles GET /api/components/{name}/draft.
//
//	@Summary		Get the current draft of a form component
//	@Tags			components
//	@Produce		json
//	@Param			name	path		string	true	"Form component name"
//	@Success		200		{object}	draft.Draft
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/components/{name}/draft [get]
func (h *Handler) GetDraft(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Components.Draft(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, "get draft", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// EditDraft handles PATCH /api/components/{name}/draft.
//
//	@Summary		Apply user edits to a form draft
//	@Tags			components
//	@Accept			json
//	@Produce		json
//	@Param			name	path		string				true	"Form component name"
//	@Param			body	body		EditDraftRequest	true	"Edited fields"
//	@Success		200		{object}	draft.Draft
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/components/{name}/draft [patch]
func (h *Handler) EditDraft(w http.ResponseWriter, r *http.Request) {
	var req EditDraftRequest
	if !readJSON(w, r, &req) {
		return
	}
	if len(req.Fields) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("fields are required"))
		return
	}
	d, err := h.svc.Components.EditDraft(chi.URLParam(r, "name"), req.Fields)
	if err != nil {
		writeError(w, "edit draft", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// ResetDraft handles DELETE /api/components/{name}/draft.
//
//	@Summary		Discard a form draft
//	@Tags			components
//	@Param			name	path	string	true	"Form component name"
//	@Success		204		"Draft discarded"
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/components/{name}/draft [delete]
func (h *Handler) ResetDraft(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Components.ResetDraft(chi.URLParam(r, "name")); err != nil {
		writeError(w, "reset draft", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SubmitForm handles POST /api/components/{name}/submit.
//
//	@Summary		Save a form's draft through the matching store operation
//	@Tags			components
//	@Produce		json
//	@Param			name	path		string	true	"Form component name"
//	@Success		201		{object}	object	"The created or updated record"
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/components/{name}/submit [post]
func (h *Handler) SubmitForm(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.Components.Submit(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, "submit form", err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}
