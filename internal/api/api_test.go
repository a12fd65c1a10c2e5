package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/kan/internal/board"
	"github.com/joescharf/kan/internal/forge"
	"github.com/joescharf/kan/internal/models"
	"github.com/joescharf/kan/internal/store"
	kansync "github.com/joescharf/kan/internal/sync"
)

// stubForge implements forge.Client over in-memory issues.
type stubForge struct {
	repos  map[string]*forge.Repo
	issues map[string][]forge.Issue
	next   int
	err    error
}

func newStubForge() *stubForge {
	return &stubForge{
		repos:  make(map[string]*forge.Repo),
		issues: make(map[string][]forge.Issue),
		next:   1,
	}
}

func (f *stubForge) GetRepo(_ context.Context, owner, repo string) (*forge.Repo, error) {
	if f.err != nil {
		return nil, f.err
	}
	r, ok := f.repos[owner+"/"+repo]
	if !ok {
		return nil, &forge.APIError{Kind: forge.KindNotFound, StatusCode: 404, Message: owner + "/" + repo}
	}
	return r, nil
}

func (f *stubForge) CreateRepo(_ context.Context, req forge.CreateRepoRequest) (*forge.Repo, error) {
	if f.err != nil {
		return nil, f.err
	}
	full := "owner/" + req.Name
	f.repos[full] = &forge.Repo{FullName: full, Description: req.Description}
	return f.repos[full], nil
}

func (f *stubForge) ListIssues(_ context.Context, owner, repo string) ([]forge.Issue, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.issues[owner+"/"+repo], nil
}

func (f *stubForge) ListIssuesSince(ctx context.Context, owner, repo string, _ time.Time) ([]forge.Issue, error) {
	return f.ListIssues(ctx, owner, repo)
}

func (f *stubForge) CreateIssue(_ context.Context, owner, repo string, req forge.CreateIssueRequest) (*forge.Issue, error) {
	if f.err != nil {
		return nil, f.err
	}
	issue := forge.Issue{
		Number:    f.next,
		Title:     req.Title,
		Body:      req.Body,
		State:     "open",
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	for _, l := range req.Labels {
		issue.Labels = append(issue.Labels, forge.Label{Name: l})
	}
	f.next++
	full := owner + "/" + repo
	f.issues[full] = append(f.issues[full], issue)
	return &issue, nil
}

func (f *stubForge) UpdateIssue(_ context.Context, owner, repo string, number int, req forge.UpdateIssueRequest) (*forge.Issue, error) {
	if f.err != nil {
		return nil, f.err
	}
	full := owner + "/" + repo
	for i := range f.issues[full] {
		issue := &f.issues[full][i]
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
		issue.UpdatedAt = time.Now().UTC()
		return issue, nil
	}
	return nil, &forge.APIError{Kind: forge.KindNotFound, StatusCode: 404}
}

func (f *stubForge) ListLabels(_ context.Context, _, _ string) ([]forge.Label, error) {
	return nil, f.err
}

func (f *stubForge) CreateLabel(_ context.Context, _, _ string, req forge.CreateLabelRequest) (*forge.Label, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &forge.Label{Name: req.Name, Color: req.Color}, nil
}

func setupTestServer(t *testing.T) (*Server, store.Store, *stubForge) {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	s, err := store.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })

	f := newStubForge()
	engine := kansync.New(s, f, kansync.Options{})
	srv := NewServer(s, engine)

	return srv, s, f
}

func linkProject(t *testing.T, router http.Handler, f *stubForge, repo string) projectResponse {
	t.Helper()
	f.repos[repo] = &forge.Repo{FullName: repo}

	body := `{"repo":"` + repo + `"}`
	req := httptest.NewRequest("POST", "/api/v1/projects", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created projectResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	return created
}

func TestListProjects_Empty(t *testing.T) {
	srv, _, _ := setupTestServer(t)
	router := srv.Router()

	req := httptest.NewRequest("GET", "/api/v1/projects", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var projects []projectResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &projects))
	assert.Empty(t, projects)
}

func TestProjectLifecycle_API(t *testing.T) {
	srv, _, f := setupTestServer(t)
	router := srv.Router()

	created := linkProject(t, router, f, "owner/repo")
	assert.Equal(t, "owner/repo", created.Repo)
	assert.NotEmpty(t, created.ID)

	// Get
	req := httptest.NewRequest("GET", "/api/v1/projects/"+created.ID, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	// List
	req = httptest.NewRequest("GET", "/api/v1/projects", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	var projects []projectResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &projects))
	assert.Len(t, projects, 1)

	// Delete
	req = httptest.NewRequest("DELETE", "/api/v1/projects/"+created.ID, nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestCreateProject_UnknownRepo(t *testing.T) {
	srv, _, _ := setupTestServer(t)
	router := srv.Router()

	body := `{"repo":"owner/missing"}`
	req := httptest.NewRequest("POST", "/api/v1/projects", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTaskLifecycle_API(t *testing.T) {
	srv, _, f := setupTestServer(t)
	router := srv.Router()

	p := linkProject(t, router, f, "owner/repo")

	// Create task
	body := `{"title":"new task","body":"details","status":"backlog"}`
	req := httptest.NewRequest("POST", "/api/v1/projects/"+p.ID+"/tasks", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var task models.Task
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &task))
	assert.Equal(t, "new task", task.Title)
	assert.Equal(t, models.StatusBacklog, task.Status)
	assert.Equal(t, 1, task.IssueNumber)

	// Move task
	body = `{"status":"in_progress"}`
	req = httptest.NewRequest("POST", "/api/v1/projects/"+p.ID+"/tasks/1/move", bytes.NewBufferString(body))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &task))
	assert.Equal(t, models.StatusInProgress, task.Status)

	// Edit task
	body = `{"title":"renamed","body":"updated"}`
	req = httptest.NewRequest("PUT", "/api/v1/projects/"+p.ID+"/tasks/1", bytes.NewBufferString(body))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &task))
	assert.Equal(t, "renamed", task.Title)
	assert.Equal(t, models.StatusInProgress, task.Status, "edit keeps status")

	// List with status filter
	req = httptest.NewRequest("GET", "/api/v1/projects/"+p.ID+"/tasks?status=in_progress", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	var tasks []*models.Task
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tasks))
	assert.Len(t, tasks, 1)
}

func TestCreateTask_Validation(t *testing.T) {
	srv, _, f := setupTestServer(t)
	router := srv.Router()
	p := linkProject(t, router, f, "owner/repo")

	req := httptest.NewRequest("POST", "/api/v1/projects/"+p.ID+"/tasks", bytes.NewBufferString(`{"body":"no title"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetBoard_API(t *testing.T) {
	srv, _, f := setupTestServer(t)
	router := srv.Router()
	p := linkProject(t, router, f, "owner/repo")

	f.issues["owner/repo"] = []forge.Issue{
		{Number: 1, Title: "open todo", State: "open", UpdatedAt: time.Now().UTC()},
		{Number: 2, Title: "closed", State: "closed", UpdatedAt: time.Now().UTC()},
	}

	// Sync first so the board has tasks
	req := httptest.NewRequest("POST", "/api/v1/projects/"+p.ID+"/sync", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	req = httptest.NewRequest("GET", "/api/v1/projects/"+p.ID+"/board", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	var snap board.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, 2, snap.Total)
	assert.Len(t, snap.Columns, 6)
}

func TestSyncErrors_API(t *testing.T) {
	srv, _, f := setupTestServer(t)
	router := srv.Router()
	p := linkProject(t, router, f, "owner/repo")

	f.err = &forge.APIError{Kind: forge.KindRateLimited, StatusCode: 429, RetryAfter: time.Minute}
	req := httptest.NewRequest("POST", "/api/v1/projects/"+p.ID+"/sync", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	f.err = nil

	// Sync status reports the stored error
	req = httptest.NewRequest("GET", "/api/v1/projects/"+p.ID+"/sync", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	var state kansync.ProjectState
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	assert.Contains(t, state.LastError, "rate limit")

	// Dismiss it
	req = httptest.NewRequest("DELETE", "/api/v1/projects/"+p.ID+"/sync/error", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)

	req = httptest.NewRequest("GET", "/api/v1/projects/"+p.ID+"/sync", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	state = kansync.ProjectState{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	assert.Empty(t, state.LastError)
}

func TestSyncAll_API(t *testing.T) {
	srv, _, f := setupTestServer(t)
	router := srv.Router()
	linkProject(t, router, f, "owner/a")
	linkProject(t, router, f, "owner/b")

	req := httptest.NewRequest("POST", "/api/v1/sync", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	var results []kansync.PullResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &results))
	assert.Len(t, results, 2)
}
