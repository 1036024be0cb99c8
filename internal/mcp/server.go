package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cast"

	"github.com/joescharf/issuetracker/internal/api"
	"github.com/joescharf/issuetracker/internal/models"
	"github.com/joescharf/issuetracker/internal/store"
	"github.com/joescharf/issuetracker/internal/tracker"
)

// Server exposes the issue tracker operations as MCP tools.
type Server struct {
	issues  *tracker.Service
	version string
}

// NewServer creates the MCP server wrapper over svc.
func NewServer(svc *tracker.Service, version string) *Server {
	if version == "" {
		version = "dev"
	}
	return &Server{issues: svc, version: version}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("issuetracker", s.version, server.WithToolCapabilities(true))

	srv.AddTool(s.listIssuesTool())
	srv.AddTool(s.createIssueTool())
	srv.AddTool(s.updateIssueTool())
	srv.AddTool(s.deleteIssueTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	stdioServer := server.NewStdioServer(s.MCPServer())
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

func withIssueFields(required bool) []mcp.ToolOption {
	str := func(name, desc string) mcp.ToolOption {
		if required {
			return mcp.WithString(name, mcp.Required(), mcp.Description(desc))
		}
		return mcp.WithString(name, mcp.Description(desc))
	}
	return []mcp.ToolOption{
		str(models.FieldTitle, "Issue title"),
		str(models.FieldText, "Issue text"),
		str(models.FieldCreatedBy, "Who reported the issue"),
	}
}

// issues_list
func (s *Server) listIssuesTool() (mcp.Tool, server.ToolHandlerFunc) {
	opts := []mcp.ToolOption{
		mcp.WithDescription("List a project's issues in creation order. Every other argument is an exact-match filter; open filters on the string \"true\"."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project name")),
		mcp.WithString(models.FieldID, mcp.Description("Issue ID")),
	}
	opts = append(opts, withIssueFields(false)...)
	opts = append(opts,
		mcp.WithString(models.FieldAssignedTo, mcp.Description("Assignee")),
		mcp.WithString(models.FieldStatusText, mcp.Description("Free-form status")),
		mcp.WithString(models.FieldOpen, mcp.Description("\"true\" for open issues, anything else for closed")),
	)
	return mcp.NewTool("issues_list", opts...), s.handleListIssues
}

func (s *Server) handleListIssues(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project, err := request.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: project"), nil
	}

	fields := argumentFields(request)
	delete(fields, "project")

	issues, err := s.issues.List(ctx, project, store.NewIssueFilter(fields))
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(issues)
}

// issues_create
func (s *Server) createIssueTool() (mcp.Tool, server.ToolHandlerFunc) {
	opts := []mcp.ToolOption{
		mcp.WithDescription("Create an issue in a project. Returns the stored issue as JSON, open and with fresh timestamps."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project name")),
	}
	opts = append(opts, withIssueFields(true)...)
	opts = append(opts,
		mcp.WithString(models.FieldAssignedTo, mcp.Description("Assignee")),
		mcp.WithString(models.FieldStatusText, mcp.Description("Free-form status")),
	)
	return mcp.NewTool("issues_create", opts...), s.handleCreateIssue
}

func (s *Server) handleCreateIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project, err := request.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: project"), nil
	}

	issue, err := s.issues.Create(ctx, project, tracker.CreateInputFromFields(argumentFields(request)))
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(issue)
}

// issues_update
func (s *Server) updateIssueTool() (mcp.Tool, server.ToolHandlerFunc) {
	opts := []mcp.ToolOption{
		mcp.WithDescription("Update an issue. Only the arguments you pass are changed; pass open=\"false\" to close the issue."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project name")),
		mcp.WithString(models.FieldID, mcp.Required(), mcp.Description("Issue ID")),
	}
	opts = append(opts, withIssueFields(false)...)
	opts = append(opts,
		mcp.WithString(models.FieldAssignedTo, mcp.Description("New assignee")),
		mcp.WithString(models.FieldStatusText, mcp.Description("New status text")),
		mcp.WithString(models.FieldOpen, mcp.Description("\"true\" keeps the issue open, anything else closes it")),
	)
	return mcp.NewTool("issues_update", opts...), s.handleUpdateIssue
}

func (s *Server) handleUpdateIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project, err := request.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: project"), nil
	}

	fields := argumentFields(request)
	id := fields[models.FieldID]
	if _, err := s.issues.Update(ctx, project, id, models.PatchFromFields(fields)); err != nil {
		return toolError(err), nil
	}
	return jsonResult(api.Result{Result: api.ResultUpdated, ID: id})
}

// issues_delete
func (s *Server) deleteIssueTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("issues_delete",
		mcp.WithDescription("Delete an issue from a project."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project name")),
		mcp.WithString(models.FieldID, mcp.Required(), mcp.Description("Issue ID")),
	)
	return tool, s.handleDeleteIssue
}

func (s *Server) handleDeleteIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project, err := request.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: project"), nil
	}

	id := request.GetString(models.FieldID, "")
	if err := s.issues.Delete(ctx, project, id); err != nil {
		return toolError(err), nil
	}
	return jsonResult(api.Result{Result: api.ResultDeleted, ID: id})
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// argumentFields flattens the call arguments to strings. Only arguments
// actually present end up in the map, which is what drives partial updates.
func argumentFields(request mcp.CallToolRequest) map[string]string {
	args := request.GetArguments()
	fields := make(map[string]string, len(args))
	for k, v := range args {
		if v == nil {
			continue
		}
		s, err := cast.ToStringE(v)
		if err != nil {
			continue
		}
		fields[k] = s
	}
	return fields
}

// toolError renders err with the same message the HTTP API would use.
func toolError(err error) *mcp.CallToolResult {
	var te *tracker.Error
	if !errors.As(err, &te) {
		return mcp.NewToolResultError(err.Error())
	}

	msg := te.Err.Error()
	if errors.Is(te.Err, tracker.ErrNotFound) {
		msg = api.ErrCouldNotUpdate
		if te.Op == tracker.OpDelete {
			msg = api.ErrCouldNotDelete
		}
	}
	if te.ID != "" {
		return mcp.NewToolResultError(fmt.Sprintf("%s (_id %s)", msg, te.ID))
	}
	return mcp.NewToolResultError(msg)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
