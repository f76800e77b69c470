// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes the CRM components and data operations to LLM clients over stdio
// or streamable HTTP.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/crmdesk/internal/assistant"
	"github.com/starford/crmdesk/internal/models"
	"github.com/starford/crmdesk/internal/store"
)

// ComponentsURI lists the registered UI components and their input schemas.
const ComponentsURI = "crm://components"

// Server wraps the MCP server with CRM tools.
type Server struct {
	mcp      *server.MCPServer
	leads    *store.LeadStore
	messages *store.MessageStore
	registry *assistant.Registry
}

// New creates a new MCP server with every component and data tool registered.
func New(leads *store.LeadStore, messages *store.MessageStore, registry *assistant.Registry) (*Server, error) {
	s := &Server{leads: leads, messages: messages, registry: registry}

	s.mcp = server.NewMCPServer(
		"CRM Desk",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	for _, c := range registry.Components() {
		schema, err := c.SchemaJSON()
		if err != nil {
			return nil, fmt.Errorf("mcpserver: schema for %s: %w", c.Name, err)
		}
		s.mcp.AddTool(mcp.NewToolWithRawSchema(c.Name, c.Description, schema), s.invokeComponent(c.Name))
	}

	s.mcp.AddTool(mcp.NewTool("submit_form",
		mcp.WithDescription("Submit the current draft of a form component (add-lead-form, edit-lead-form, "+
			"add-meeting-form, edit-meeting-form, add-message-form)."),
		mcp.WithString("component", mcp.Required(), mcp.Description("Name of the form component")),
	), s.submitForm)

	s.mcp.AddTool(mcp.NewTool("list_leads",
		mcp.WithDescription("Get a list of all leads with optional filtering."),
		mcp.WithString("status", mcp.Description("Only leads in this status"),
			mcp.Enum(string(models.StatusNew), string(models.StatusContacted), string(models.StatusQualified), string(models.StatusClosed))),
		mcp.WithString("searchTerm", mcp.Description("Case-insensitive match on name, email or company")),
		mcp.WithString("sortBy", mcp.Description("Sort key"), mcp.Enum(models.SortByName, models.SortByCompany, models.SortByStatus)),
	), s.listLeads)

	s.mcp.AddTool(mcp.NewTool("get_lead",
		mcp.WithDescription("Get details of a specific lead by ID."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("The ID of the lead to retrieve")),
	), s.getLead)

	s.mcp.AddTool(mcp.NewTool("create_lead",
		mcp.WithDescription("Create a new lead with the provided information. "+
			"Read the usage contract first via get_usage_contract or the crm://usage resource."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Full name")),
		mcp.WithString("email", mcp.Required(), mcp.Description("Email address")),
		mcp.WithString("company", mcp.Description("Company name")),
		mcp.WithString("phone", mcp.Description("Phone number")),
		mcp.WithString("status", mcp.Description("Pipeline status, New when omitted")),
	), s.createLead)

	s.mcp.AddTool(mcp.NewTool("update_lead",
		mcp.WithDescription("Update an existing lead's information. Omitted fields are left unchanged."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("The ID of the lead to update")),
		mcp.WithString("name", mcp.Description("New name")),
		mcp.WithString("email", mcp.Description("New email address")),
		mcp.WithString("company", mcp.Description("New company")),
		mcp.WithString("phone", mcp.Description("New phone number")),
		mcp.WithString("status", mcp.Description("New pipeline status")),
	), s.updateLead)

	s.mcp.AddTool(mcp.NewTool("get_notes",
		mcp.WithDescription("Get all notes for a specific lead."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("The ID of the lead to get notes for")),
	), s.getNotes)

	s.mcp.AddTool(mcp.NewTool("add_note",
		mcp.WithDescription("Add a new note to a specific lead."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("The ID of the lead to add a note to")),
		mcp.WithString("note", mcp.Required(), mcp.Description("The content of the note")),
	), s.addNote)

	s.mcp.AddTool(mcp.NewTool("add_meeting",
		mcp.WithDescription("Schedule a meeting with a lead."),
		mcp.WithNumber("leadId", mcp.Required(), mcp.Description("The ID of the lead")),
		mcp.WithString("date", mcp.Required(), mcp.Description("Date as YYYY-MM-DD")),
		mcp.WithString("time", mcp.Required(), mcp.Description("Time as HH:MM")),
		mcp.WithString("description", mcp.Required(), mcp.Description("What the meeting is about")),
	), s.addMeeting)

	s.mcp.AddTool(mcp.NewTool("list_meetings",
		mcp.WithDescription("List meetings across all leads with optional filtering."),
		mcp.WithNumber("leadId", mcp.Description("Only meetings with this lead")),
		mcp.WithString("dateFrom", mcp.Description("Earliest date, inclusive (YYYY-MM-DD)")),
		mcp.WithString("dateTo", mcp.Description("Latest date, inclusive (YYYY-MM-DD)")),
		mcp.WithString("search", mcp.Description("Case-insensitive match on description")),
	), s.listMeetings)

	s.mcp.AddTool(mcp.NewTool("list_messages",
		mcp.WithDescription("List saved messages with optional filtering."),
		mcp.WithString("email", mcp.Description("Only messages to this recipient")),
		mcp.WithString("search", mcp.Description("Case-insensitive match on subject or content")),
	), s.listMessages)

	s.mcp.AddTool(mcp.NewTool("add_message",
		mcp.WithDescription("Save an outgoing message."),
		mcp.WithString("email", mcp.Required(), mcp.Description("Recipient email address")),
		mcp.WithString("subject", mcp.Required(), mcp.Description("Subject line")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Message body")),
	), s.addMessage)

	s.mcp.AddTool(mcp.NewTool("get_usage_contract",
		mcp.WithDescription("Returns the CRM data contract. "+
			"Call this before creating or updating records to ensure correct values."),
	), s.getUsageContract)

	s.mcp.AddResource(
		mcp.NewResource(UsageURI, "CRM Usage Contract",
			mcp.WithResourceDescription("Field formats and rules for leads, meetings and messages."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readUsageResource,
	)

	s.mcp.AddResource(
		mcp.NewResource(ComponentsURI, "UI Components",
			mcp.WithResourceDescription("Registered UI components with their input schemas."),
			mcp.WithMIMEType("application/json"),
		),
		s.readComponentsResource,
	)

	return s, nil
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// Handler returns the streamable HTTP transport for mounting under /mcp.
func (s *Server) Handler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcp, server.WithStateLess(true))
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) invokeComponent(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		if args == nil {
			args = map[string]any{}
		}
		raw, err := json.Marshal(args)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		view, err := s.registry.Invoke(ctx, name, raw)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(view)
	}
}

func (s *Server) submitForm(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("component")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, err := s.registry.Submit(ctx, name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(out)
}

func (s *Server) getUsageContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(UsageContract), nil
}

func (s *Server) readUsageResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      UsageURI,
			MIMEType: "text/markdown",
			Text:     UsageContract,
		},
	}, nil
}

func (s *Server) readComponentsResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	out, err := json.MarshalIndent(s.registry.Components(), "", "  ")
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      ComponentsURI,
			MIMEType: "application/json",
			Text:     string(out),
		},
	}, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}
