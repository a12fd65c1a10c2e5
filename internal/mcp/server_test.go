package mcp

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/kan/internal/board"
	"github.com/joescharf/kan/internal/forge"
	"github.com/joescharf/kan/internal/models"
	"github.com/joescharf/kan/internal/store"
	kansync "github.com/joescharf/kan/internal/sync"
)

// ---------------------------------------------------------------------------
// Mock forge
// ---------------------------------------------------------------------------

// mockForge implements forge.Client over in-memory issues.
type mockForge struct {
	repos  map[string]*forge.Repo
	issues map[string][]forge.Issue
	next   int
}

func newMockForge() *mockForge {
	return &mockForge{
		repos:  make(map[string]*forge.Repo),
		issues: make(map[string][]forge.Issue),
		next:   1,
	}
}

func (m *mockForge) GetRepo(_ context.Context, owner, repo string) (*forge.Repo, error) {
	r, ok := m.repos[owner+"/"+repo]
	if !ok {
		return nil, &forge.APIError{Kind: forge.KindNotFound, StatusCode: 404}
	}
	return r, nil
}

func (m *mockForge) CreateRepo(_ context.Context, req forge.CreateRepoRequest) (*forge.Repo, error) {
	full := "owner/" + req.Name
	m.repos[full] = &forge.Repo{FullName: full, Description: req.Description}
	return m.repos[full], nil
}

func (m *mockForge) ListIssues(_ context.Context, owner, repo string) ([]forge.Issue, error) {
	return m.issues[owner+"/"+repo], nil
}

func (m *mockForge) ListIssuesSince(ctx context.Context, owner, repo string, _ time.Time) ([]forge.Issue, error) {
	return m.ListIssues(ctx, owner, repo)
}

func (m *mockForge) CreateIssue(_ context.Context, owner, repo string, req forge.CreateIssueRequest) (*forge.Issue, error) {
	issue := forge.Issue{
		Number:    m.next,
		Title:     req.Title,
		Body:      req.Body,
		State:     "open",
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	for _, l := range req.Labels {
		issue.Labels = append(issue.Labels, forge.Label{Name: l})
	}
	m.next++
	full := owner + "/" + repo
	m.issues[full] = append(m.issues[full], issue)
	return &issue, nil
}

func (m *mockForge) UpdateIssue(_ context.Context, owner, repo string, number int, req forge.UpdateIssueRequest) (*forge.Issue, error) {
	full := owner + "/" + repo
	for i := range m.issues[full] {
		issue := &m.issues[full][i]
		if issue.Number != number {
			continue
		}
		if req.Title != nil {
			issue.Title = *req.Title
		}
		if req.Body != nil {
			issue.Body = *req.Body
		}
		if req.State != nil {
			issue.State = *req.State
		}
		if req.Labels != nil {
			issue.Labels = nil
			for _, l := range *req.Labels {
				issue.Labels = append(issue.Labels, forge.Label{Name: l})
			}
		}
		return issue, nil
	}
	return nil, &forge.APIError{Kind: forge.KindNotFound, StatusCode: 404}
}

func (m *mockForge) ListLabels(_ context.Context, _, _ string) ([]forge.Label, error) {
	return nil, nil
}

func (m *mockForge) CreateLabel(_ context.Context, _, _ string, req forge.CreateLabelRequest) (*forge.Label, error) {
	return &forge.Label{Name: req.Name, Color: req.Color}, nil
}

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

func newTestServer(t *testing.T) (*Server, *mockForge) {
	t.Helper()

	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })

	f := newMockForge()
	srv := NewServer(s, kansync.New(s, f, kansync.Options{}))
	require.NotNil(t, srv)
	return srv, f
}

func seedProject(t *testing.T, srv *Server, f *mockForge, repo string) *models.Project {
	t.Helper()
	f.repos[repo] = &forge.Repo{FullName: repo}
	p, err := srv.engine.LinkProject(context.Background(), repo)
	require.NoError(t, err)
	return p
}

// callToolReq builds a mcpgo.CallToolRequest with the given name and arguments.
func callToolReq(name string, args map[string]any) mcpgo.CallToolRequest {
	return mcpgo.CallToolRequest{
		Params: mcpgo.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// resultText extracts the concatenated text from a CallToolResult.
func resultText(t *testing.T, result *mcpgo.CallToolResult) string {
	t.Helper()
	var b strings.Builder
	for _, c := range result.Content {
		tc, ok := c.(mcpgo.TextContent)
		if ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

// resultJSON parses the text result as JSON into the provided target.
func resultJSON(t *testing.T, result *mcpgo.CallToolResult, target any) {
	t.Helper()
	text := resultText(t, result)
	err := json.Unmarshal([]byte(text), target)
	require.NoError(t, err, "failed to parse result JSON: %s", text)
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestListProjectsTool(t *testing.T) {
	srv, f := newTestServer(t)
	seedProject(t, srv, f, "owner/repo")

	result, err := srv.handleListProjects(context.Background(), callToolReq("kan_list_projects", nil))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var projects []map[string]any
	resultJSON(t, result, &projects)
	require.Len(t, projects, 1)
	assert.Equal(t, "owner/repo", projects[0]["repo"])
}

func TestBoardTool(t *testing.T) {
	srv, f := newTestServer(t)
	p := seedProject(t, srv, f, "owner/repo")

	f.issues["owner/repo"] = []forge.Issue{
		{Number: 1, Title: "todo task", State: "open", UpdatedAt: time.Now().UTC()},
		{Number: 2, Title: "blocked task", State: "open", Labels: []forge.Label{{Name: "blocked"}}, UpdatedAt: time.Now().UTC()},
	}
	require.NoError(t, srv.engine.Pull(context.Background(), p.ID))

	result, err := srv.handleBoard(context.Background(), callToolReq("kan_board", map[string]any{
		"project": "owner/repo",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var snap board.Snapshot
	resultJSON(t, result, &snap)
	assert.Equal(t, 2, snap.Total)
	assert.Len(t, snap.Columns, 6)
}

func TestBoardTool_MissingProject(t *testing.T) {
	srv, _ := newTestServer(t)

	result, err := srv.handleBoard(context.Background(), callToolReq("kan_board", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, err = srv.handleBoard(context.Background(), callToolReq("kan_board", map[string]any{
		"project": "owner/unknown",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestCreateTaskTool(t *testing.T) {
	srv, f := newTestServer(t)
	seedProject(t, srv, f, "owner/repo")

	result, err := srv.handleCreateTask(context.Background(), callToolReq("kan_create_task", map[string]any{
		"project": "owner/repo",
		"title":   "new task",
		"status":  "backlog",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var task models.Task
	resultJSON(t, result, &task)
	assert.Equal(t, "new task", task.Title)
	assert.Equal(t, models.StatusBacklog, task.Status)
	assert.Equal(t, 1, task.IssueNumber)
}

func TestMoveTaskTool(t *testing.T) {
	srv, f := newTestServer(t)
	p := seedProject(t, srv, f, "owner/repo")

	f.issues["owner/repo"] = []forge.Issue{
		{Number: 1, Title: "task", State: "open", Labels: []forge.Label{{Name: "todo"}}, UpdatedAt: time.Now().UTC()},
	}
	require.NoError(t, srv.engine.Pull(context.Background(), p.ID))

	result, err := srv.handleMoveTask(context.Background(), callToolReq("kan_move_task", map[string]any{
		"project":      "owner/repo",
		"issue_number": 1,
		"status":       "done",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var task models.Task
	resultJSON(t, result, &task)
	assert.Equal(t, models.StatusDone, task.Status)
	assert.Equal(t, "closed", f.issues["owner/repo"][0].State)
}

func TestSyncTool_AllProjects(t *testing.T) {
	srv, f := newTestServer(t)
	seedProject(t, srv, f, "owner/a")
	seedProject(t, srv, f, "owner/b")

	result, err := srv.handleSync(context.Background(), callToolReq("kan_sync", nil))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var results []kansync.PullResult
	resultJSON(t, result, &results)
	assert.Len(t, results, 2)
}

func TestMCPServer_RegistersTools(t *testing.T) {
	srv, _ := newTestServer(t)
	assert.NotNil(t, srv.MCPServer())
}
