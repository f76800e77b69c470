package mcpserver

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/crmdesk/internal/apperr"
	"github.com/starford/crmdesk/internal/models"
)

func (s *Server) listLeads(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	f := models.LeadFilters{
		Status:     models.LeadStatus(req.GetString("status", "")),
		SearchTerm: req.GetString("searchTerm", ""),
		SortBy:     req.GetString("sortBy", ""),
	}
	if err := f.Validate(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(s.leads.FilterLeads(f))
}

func (s *Server) getLead(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireID(req, "id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	lead, ok := s.leads.Lead(id)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("lead %d not found", id)), nil
	}
	return jsonResult(lead)
}

func (s *Server) createLead(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in := models.LeadInput{
		Name:    req.GetString("name", ""),
		Email:   req.GetString("email", ""),
		Company: req.GetString("company", ""),
		Phone:   req.GetString("phone", ""),
		Status:  models.LeadStatus(req.GetString("status", "")),
	}
	if err := in.Validate(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	lead, err := s.leads.AddNewLead(ctx, in)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(lead)
}

func (s *Server) updateLead(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireID(req, "id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var patch models.LeadPatch
	args := req.GetArguments()
	for key, dst := range map[string]**string{
		"name":    &patch.Name,
		"email":   &patch.Email,
		"company": &patch.Company,
		"phone":   &patch.Phone,
	} {
		if v, ok := args[key].(string); ok {
			*dst = &v
		}
	}
	if v, ok := args["status"].(string); ok {
		st := models.LeadStatus(v)
		patch.Status = &st
	}
	if err := patch.Validate(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	lead, err := s.leads.UpdateExistingLead(ctx, id, patch)
	if err != nil {
		return notFoundOr(err), nil
	}
	return jsonResult(lead)
}

func (s *Server) getNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireID(req, "id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	lead, ok := s.leads.Lead(id)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("lead %d not found", id)), nil
	}
	return jsonResult(lead.Notes)
}

func (s *Server) addNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireID(req, "id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := req.RequireString("note")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	lead, err := s.leads.AddNote(ctx, id, note)
	if err != nil {
		return notFoundOr(err), nil
	}
	return jsonResult(lead.Notes)
}

func (s *Server) addMeeting(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	leadID, err := requireID(req, "leadId")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	in := models.MeetingInput{
		LeadID:      leadID,
		Date:        req.GetString("date", ""),
		Time:        req.GetString("time", ""),
		Description: req.GetString("description", ""),
	}
	if err := in.Validate(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	m, err := s.leads.AddNewMeeting(ctx, leadID, in)
	if err != nil {
		return notFoundOr(err), nil
	}
	return jsonResult(m)
}

func (s *Server) listMeetings(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	f := models.MeetingFilters{
		LeadID:   int(req.GetFloat("leadId", 0)),
		DateFrom: req.GetString("dateFrom", ""),
		DateTo:   req.GetString("dateTo", ""),
		Search:   req.GetString("search", ""),
	}
	if err := f.Validate(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(s.leads.FilterMeetings(f))
}

func (s *Server) listMessages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	f := models.MessageFilters{
		Email:  req.GetString("email", ""),
		Search: req.GetString("search", ""),
	}
	if err := f.Validate(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(s.messages.FilterMessages(f))
}

func (s *Server) addMessage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in := models.MessageInput{
		Email:   req.GetString("email", ""),
		Subject: req.GetString("subject", ""),
		Content: req.GetString("content", ""),
	}
	if err := in.Validate(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	msg, err := s.messages.AddNewMessage(ctx, in)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(msg)
}

func requireID(req mcp.CallToolRequest, key string) (int, error) {
	v, err := req.RequireFloat(key)
	if err != nil {
		return 0, err
	}
	if v < 1 || v != float64(int(v)) {
		return 0, errors.New(key + " must be a positive integer")
	}
	return int(v), nil
}

func notFoundOr(err error) *mcp.CallToolResult {
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %v", err))
	}
	return mcp.NewToolResultError(err.Error())
}
