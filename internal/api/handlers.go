package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/crmdesk/internal/models"
	"github.com/starford/crmdesk/internal/store"
)

// Handler holds API route handlers.
type Handler struct {
	svc Services
}

// NewHandler creates a new Handler.
func NewHandler(svc Services) *Handler {
	return &Handler{svc: svc}
}

func intParam(r *http.Request, name string) (int, bool) {
	n, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

func setETag(w http.ResponseWriter, l models.Lead) {
	w.Header().Set("ETag", `"`+store.ETag(l)+`"`)
}

// ListLeads handles GET /api/leads.
//
//	@Summary		List leads with optional filtering and sorting
//	@Tags			leads
//	@Produce		json
//	@Param			status	query		string	false	"Filter by status"	Enums(New, Contacted, Qualified, Closed)
//	@Param			search	query		string	false	"Match on name, email or company"
//	@Param			sortBy	query		string	false	"Sort key"	Enums(name, company, status)
//	@Success		200		{object}	LeadListResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/leads [get]
func (h *Handler) ListLeads(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := models.LeadFilters{
		Status:     models.LeadStatus(q.Get("status")),
		SearchTerm: q.Get("search"),
		SortBy:     q.Get("sortBy"),
	}
	if err := f.Validate(); err != nil {
		invalid(w, err)
		return
	}
	writeJSON(w, http.StatusOK, LeadListResponse{
		Leads: h.svc.Leads.FilterLeads(f),
		Total: len(h.svc.Leads.Snapshot().Leads),
	})
}

// RefreshLeads handles POST /api/leads/refresh.
//
//	@Summary		Reload every lead from the data source
//	@Tags			leads
//	@Produce		json
//	@Success		200	{object}	LeadListResponse
//	@Security		BearerAuth
//	@Router			/leads/refresh [post]
func (h *Handler) RefreshLeads(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Leads.FetchLeads(r.Context()); err != nil {
		writeError(w, "refresh leads", err)
		return
	}
	leads := h.svc.Leads.Leads()
	writeJSON(w, http.StatusOK, LeadListResponse{Leads: leads, Total: len(leads)})
}

// GetLead handles GET /api/leads/{id}.
//
//	@Summary		Get a single lead with its notes and meetings
//	@Tags			leads
//	@Produce		json
//	@Param			id	path		int	true	"Lead ID"
//	@Success		200	{object}	models.Lead
//	@Header			200	{string}	ETag	"Version of the lead for If-Match"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/leads/{id} [get]
func (h *Handler) GetLead(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid lead id"))
		return
	}
	lead, found := h.svc.Leads.Lead(id)
	if !found {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	setETag(w, lead)
	writeJSON(w, http.StatusOK, lead)
}

// CreateLead handles POST /api/leads.
//
//	@Summary		Create a new lead
//	@Tags			leads
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateLeadRequest	true	"Lead to create"
//	@Success		201		{object}	models.Lead
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/leads [post]
func (h *Handler) CreateLead(w http.ResponseWriter, r *http.Request) {
	var req CreateLeadRequest
	if !readJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		invalid(w, err)
		return
	}
	lead, err := h.svc.Leads.AddNewLead(r.Context(), req)
	if err != nil {
		writeError(w, "create lead", err)
		return
	}
	slog.Info("lead created", slog.Int("id", lead.ID))
	setETag(w, lead)
	writeJSON(w, http.StatusCreated, lead)
}

// UpdateLead handles PATCH /api/leads/{id}.
//
//	@Summary		Update a lead with optional optimistic concurrency
//	@Tags			leads
//	@Accept			json
//	@Produce		json
//	@Param			id			path		int					true	"Lead ID"
//	@Param			If-Match	header		string				false	"ETag from a previous read"
//	@Param			body		body		UpdateLeadRequest	true	"Fields to change"
//	@Success		200			{object}	models.Lead
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/leads/{id} [patch]
func (h *Handler) UpdateLead(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid lead id"))
		return
	}
	var req UpdateLeadRequest
	if !readJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		invalid(w, err)
		return
	}

	// Strip surrounding quotes if present (standard ETag format).
	ifMatch := strings.Trim(r.Header.Get("If-Match"), `"`)

	lead, err := h.svc.Leads.UpdateLeadIfMatch(r.Context(), id, req, ifMatch)
	if err != nil {
		writeError(w, "update lead", err)
		return
	}
	setETag(w, lead)
	writeJSON(w, http.StatusOK, lead)
}

// AddNote handles POST /api/leads/{id}/notes.
//
//	@Summary		Append a note to a lead
//	@Tags			leads
//	@Accept			json
//	@Produce		json
//	@Param			id		path		int				true	"Lead ID"
//	@Param			body	body		AddNoteRequest	true	"Note text"
//	@Success		201		{object}	models.Lead
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/leads/{id}/notes [post]
func (h *Handler) AddNote(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid lead id"))
		return
	}
	var req AddNoteRequest
	if !readJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Note) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("note is required"))
		return
	}
	lead, err := h.svc.Leads.AddNote(r.Context(), id, req.Note)
	if err != nil {
		writeError(w, "add note", err)
		return
	}
	setETag(w, lead)
	writeJSON(w, http.StatusCreated, lead)
}

// CreateMeeting handles POST /api/leads/{id}/meetings.
//
//	@Summary		Schedule a meeting with a lead
//	@Tags			meetings
//	@Accept			json
//	@Produce		json
//	@Param			id		path		int						true	"Lead ID"
//	@Param			body	body		CreateMeetingRequest	true	"Meeting to schedule"
//	@Success		201		{object}	models.Meeting
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/leads/{id}/meetings [post]
func (h *Handler) CreateMeeting(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid lead id"))
		return
	}
	var req CreateMeetingRequest
	if !readJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		invalid(w, err)
		return
	}
	m, err := h.svc.Leads.AddNewMeeting(r.Context(), id, req)
	if err != nil {
		writeError(w, "create meeting", err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// UpdateMeeting handles PATCH /api/leads/{id}/meetings/{meetingID}.
//
//	@Summary		Update a meeting
//	@Tags			meetings
//	@Accept			json
//	@Produce		json
//	@Param			id			path		int						true	"Lead ID"
//	@Param			meetingID	path		int						true	"Meeting ID"
//	@Param			body		body		UpdateMeetingRequest	true	"Fields to change"
//	@Success		200			{object}	models.Meeting
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/leads/{id}/meetings/{meetingID} [patch]
func (h *Handler) UpdateMeeting(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(r, "id")
	meetingID, ok2 := intParam(r, "meetingID")
	if !ok || !ok2 {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid id"))
		return
	}
	var req UpdateMeetingRequest
	if !readJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		invalid(w, err)
		return
	}
	m, err := h.svc.Leads.UpdateExistingMeeting(r.Context(), id, meetingID, req)
	if err != nil {
		writeError(w, "update meeting", err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// ListMeetings handles GET /api/meetings.
//
//	@Summary		List meetings across all leads
//	@Tags			meetings
//	@Produce		json
//	@Param			leadId		query		int		false	"Only meetings with this lead"
//	@Param			dateFrom	query		string	false	"Earliest date, inclusive"
//	@Param			dateTo		query		string	false	"Latest date, inclusive"
//	@Param			search		query		string	false	"Match on description"
//	@Success		200			{object}	MeetingListResponse
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/meetings [get]
func (h *Handler) ListMeetings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := models.MeetingFilters{
		DateFrom: q.Get("dateFrom"),
		DateTo:   q.Get("dateTo"),
		Search:   q.Get("search"),
	}
	if v := q.Get("leadId"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid leadId"))
			return
		}
		f.LeadID = n
	}
	if err := f.Validate(); err != nil {
		invalid(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MeetingListResponse{Meetings: h.svc.Leads.FilterMeetings(f)})
}
