package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/joescharf/kan/internal/board"
	"github.com/joescharf/kan/internal/models"
	"github.com/joescharf/kan/internal/store"
	kansync "github.com/joescharf/kan/internal/sync"
)

// Server wraps the kan data layer and exposes it as MCP tools.
type Server struct {
	store  store.Store
	engine *kansync.Engine
	board  *board.Board
}

// NewServer creates the MCP server wrapper with all required dependencies.
func NewServer(s store.Store, e *kansync.Engine) *Server {
	return &Server{
		store:  s,
		engine: e,
		board:  board.New(s),
	}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("kan", "1.0.0", server.WithToolCapabilities(true))

	srv.AddTool(s.listProjectsTool())
	srv.AddTool(s.boardTool())
	srv.AddTool(s.listTasksTool())
	srv.AddTool(s.createTaskTool())
	srv.AddTool(s.moveTaskTool())
	srv.AddTool(s.syncTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// resolveProject accepts a project id or an owner/name repo reference.
func (s *Server) resolveProject(ctx context.Context, ref string) (*models.Project, error) {
	if p, err := s.store.GetProjectByRepo(ctx, ref); err == nil {
		return p, nil
	}
	return s.store.GetProject(ctx, ref)
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

// kan_list_projects
func (s *Server) listProjectsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("kan_list_projects",
		mcp.WithDescription("List all tracked kanban projects. Returns a JSON array with id, repo, description, and last sync time."),
	)
	return tool, s.handleListProjects
}

func (s *Server) handleListProjects(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projects, err := s.store.ListProjects(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list projects: %v", err)), nil
	}

	type projectOut struct {
		ID          string `json:"id"`
		Repo        string `json:"repo"`
		Description string `json:"description"`
		LastSynced  string `json:"last_synced,omitempty"`
		LastError   string `json:"last_error,omitempty"`
	}

	out := make([]projectOut, len(projects))
	for i, p := range projects {
		o := projectOut{
			ID:          p.ID,
			Repo:        p.Repo,
			Description: p.Description,
			LastError:   s.engine.State(p.ID).LastError,
		}
		if p.LastSynced != nil {
			o.LastSynced = p.LastSynced.Format("2006-01-02T15:04:05Z")
		}
		out[i] = o
	}

	data, err := json.Marshal(out)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal projects: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// kan_board
func (s *Server) boardTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("kan_board",
		mcp.WithDescription("Get the kanban board for a project: one column per status (backlog, todo, in_progress, blocked, review, done) with task counts and tasks."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project repo (owner/name) or project id")),
	)
	return tool, s.handleBoard
}

func (s *Server) handleBoard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := request.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: project"), nil
	}

	p, err := s.resolveProject(ctx, ref)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("project not found: %s", ref)), nil
	}

	snap, err := s.board.Snapshot(ctx, p.ID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to build board: %v", err)), nil
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal board: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// kan_list_tasks
func (s *Server) listTasksTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("kan_list_tasks",
		mcp.WithDescription("List a project's tasks. Each task has issue_number, title, body, status (backlog/todo/in_progress/blocked/review/done), labels, and url."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project repo (owner/name) or project id")),
		mcp.WithString("status", mcp.Description("Status filter: backlog, todo, in_progress, blocked, review, done")),
	)
	return tool, s.handleListTasks
}

func (s *Server) handleListTasks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := request.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: project"), nil
	}

	p, err := s.resolveProject(ctx, ref)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("project not found: %s", ref)), nil
	}

	tasks, err := s.store.ListTasks(ctx, p.ID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list tasks: %v", err)), nil
	}

	if status := request.GetString("status", ""); status != "" {
		want := models.ParseStatus(status)
		filtered := make([]*models.Task, 0, len(tasks))
		for _, t := range tasks {
			if t.Status == want {
				filtered = append(filtered, t)
			}
		}
		tasks = filtered
	}

	data, err := json.Marshal(tasks)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal tasks: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// kan_create_task
func (s *Server) createTaskTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("kan_create_task",
		mcp.WithDescription("Create a task on a project's board. Creates the backing GitHub issue and returns the cached task."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project repo (owner/name) or project id")),
		mcp.WithString("title", mcp.Required(), mcp.Description("Task title")),
		mcp.WithString("body", mcp.Description("Task body")),
		mcp.WithString("status", mcp.Description("Initial column: backlog, todo, in_progress, blocked, review, done (default todo)")),
	)
	return tool, s.handleCreateTask
}

func (s *Server) handleCreateTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := request.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: project"), nil
	}
	title, err := request.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: title"), nil
	}

	p, err := s.resolveProject(ctx, ref)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("project not found: %s", ref)), nil
	}

	status := models.StatusTodo
	if raw := request.GetString("status", ""); raw != "" {
		status = models.ParseStatus(raw)
	}

	task, err := s.engine.CreateTask(ctx, p.ID, title, request.GetString("body", ""), status)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to create task: %v", err)), nil
	}

	data, err := json.Marshal(task)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal task: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// kan_move_task
func (s *Server) moveTaskTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("kan_move_task",
		mcp.WithDescription("Move a task to another column. Updates the GitHub issue's status label, closing or reopening the issue when moving into or out of done."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project repo (owner/name) or project id")),
		mcp.WithNumber("issue_number", mcp.Required(), mcp.Description("Issue number of the task")),
		mcp.WithString("status", mcp.Required(), mcp.Description("Target column: backlog, todo, in_progress, blocked, review, done")),
	)
	return tool, s.handleMoveTask
}

func (s *Server) handleMoveTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := request.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: project"), nil
	}
	number, err := request.RequireInt("issue_number")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: issue_number"), nil
	}
	status, err := request.RequireString("status")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: status"), nil
	}

	p, err := s.resolveProject(ctx, ref)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("project not found: %s", ref)), nil
	}

	task, err := s.engine.MoveTask(ctx, p.ID, number, models.ParseStatus(status))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to move task: %v", err)), nil
	}

	data, err := json.Marshal(task)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal task: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// kan_sync
func (s *Server) syncTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("kan_sync",
		mcp.WithDescription("Pull the latest issues from GitHub into the local cache. Syncs one project when given, otherwise all projects."),
		mcp.WithString("project", mcp.Description("Project repo (owner/name) or project id")),
	)
	return tool, s.handleSync
}

func (s *Server) handleSync(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if ref := request.GetString("project", ""); ref != "" {
		p, err := s.resolveProject(ctx, ref)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("project not found: %s", ref)), nil
		}
		if err := s.engine.Pull(ctx, p.ID); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("sync failed: %v", err)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf(`{"synced":"%s"}`, p.Repo)), nil
	}

	results, err := s.engine.PullAll(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("sync failed: %v", err)), nil
	}
	data, err := json.Marshal(results)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
