// Package sync keeps the local task cache consistent with GitHub. Pull
// merges remote deltas into the store; push sends a single user action to
// GitHub and mirrors the confirmed result locally. GitHub is the source of
// truth: a failed push changes nothing locally, and the next pull overwrites
// any local state that disagrees with the remote.
package sync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/joescharf/kan/internal/forge"
	"github.com/joescharf/kan/internal/models"
	"github.com/joescharf/kan/internal/store"
)

// Options configures engine behavior.
type Options struct {
	// AutoCreateLabels provisions missing status labels when a project is
	// linked.
	AutoCreateLabels bool
}

// ProjectState is the per-project sync status surfaced to presentation
// layers. LastError holds a user-facing message and stays set until the next
// successful operation or an explicit ClearError.
type ProjectState struct {
	LastError    string     `json:"last_error,omitempty"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
	BackoffUntil *time.Time `json:"backoff_until,omitempty"`
}

// Engine orchestrates pull and push between the forge client and the local
// store. Safe for concurrent use.
type Engine struct {
	store store.Store
	forge forge.Client
	opts  Options

	mu        sync.Mutex
	notBefore map[string]time.Time // project id -> earliest next remote call
	state     map[string]ProjectState
}

// New creates a sync engine over the given store and forge client.
func New(s store.Store, f forge.Client, opts Options) *Engine {
	return &Engine{
		store:     s,
		forge:     f,
		opts:      opts,
		notBefore: make(map[string]time.Time),
		state:     make(map[string]ProjectState),
	}
}

// State returns the current sync state for a project.
func (e *Engine) State(projectID string) ProjectState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state[projectID]
}

// ClearError dismisses a project's visible error state.
func (e *Engine) ClearError(projectID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := e.state[projectID]
	st.LastError = ""
	e.state[projectID] = st
}

// checkGate refuses remote work for a project still inside a rate-limit
// backoff window. No network call is made.
func (e *Engine) checkGate(projectID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if until, ok := e.notBefore[projectID]; ok {
		if wait := time.Until(until); wait > 0 {
			return fmt.Errorf("rate limited, retrying after %s", until.UTC().Format(time.RFC3339))
		}
		delete(e.notBefore, projectID)
	}
	return nil
}

// recordFailure stores the user-facing error and, for rate limits, the
// backoff deadline.
func (e *Engine) recordFailure(projectID string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.state[projectID]
	st.LastError = userMessage(err)

	if wait, ok := forge.RetryAfter(err); ok {
		until := time.Now().Add(wait)
		e.notBefore[projectID] = until
		st.BackoffUntil = &until
	}
	e.state[projectID] = st
}

// recordSuccess clears the error state and stamps the sync time.
func (e *Engine) recordSuccess(projectID string, at time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state[projectID] = ProjectState{LastSyncedAt: &at}
	delete(e.notBefore, projectID)
}

// --- Projects ---

// LinkProject registers an existing GitHub repository as a project. The
// repository must exist; its description seeds the project description.
// Status labels are provisioned when AutoCreateLabels is set.
func (e *Engine) LinkProject(ctx context.Context, repoRef string) (*models.Project, error) {
	owner, name, err := forge.SplitRepo(repoRef)
	if err != nil {
		return nil, err
	}

	repo, err := e.forge.GetRepo(ctx, owner, name)
	if err != nil {
		return nil, fmt.Errorf("verify repository: %w", err)
	}

	p := &models.Project{
		Repo:        repo.FullName,
		Description: repo.Description,
	}
	if existing, err := e.store.GetProjectByRepo(ctx, repo.FullName); err == nil {
		p.ID = existing.ID
		p.CreatedAt = existing.CreatedAt
		p.LastSynced = existing.LastSynced
	}
	if err := e.store.UpsertProject(ctx, p); err != nil {
		return nil, err
	}

	if e.opts.AutoCreateLabels {
		if err := e.EnsureStatusLabels(ctx, owner, name); err != nil {
			return nil, fmt.Errorf("provision status labels: %w", err)
		}
	}
	return p, nil
}

// CreateProject creates a new GitHub repository and links it as a project.
func (e *Engine) CreateProject(ctx context.Context, name, description string, private bool) (*models.Project, error) {
	repo, err := e.forge.CreateRepo(ctx, forge.CreateRepoRequest{
		Name:        name,
		Description: description,
		Private:     private,
		AutoInit:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("create repository: %w", err)
	}
	return e.LinkProject(ctx, repo.FullName)
}

// --- Pull ---

// Pull fetches changed issues for one project and merges them into the
// store. The first pull for a project is full; later pulls are deltas based
// on last_synced. Pull never deletes local tasks: a delta only reflects
// changed issues. Use FullPull to reconcile deletions.
func (e *Engine) Pull(ctx context.Context, projectID string) error {
	return e.pull(ctx, projectID, false)
}

// FullPull fetches every issue for the project and prunes local tasks whose
// issue no longer exists remotely.
func (e *Engine) FullPull(ctx context.Context, projectID string) error {
	return e.pull(ctx, projectID, true)
}

func (e *Engine) pull(ctx context.Context, projectID string, full bool) error {
	p, err := e.store.GetProject(ctx, projectID)
	if err != nil {
		return err
	}
	if err := e.checkGate(p.ID); err != nil {
		return err
	}
	owner, name, err := forge.SplitRepo(p.Repo)
	if err != nil {
		return err
	}

	// Stamped before the fetch so the next delta window overlaps this one
	// instead of leaving a gap.
	start := time.Now().UTC()

	var issues []forge.Issue
	if full || p.LastSynced == nil {
		issues, err = e.forge.ListIssues(ctx, owner, name)
	} else {
		issues, err = e.forge.ListIssuesSince(ctx, owner, name, *p.LastSynced)
	}
	if err != nil {
		e.recordFailure(p.ID, err)
		return err
	}

	for i := range issues {
		task := taskFromIssue(p.ID, &issues[i])
		if err := e.store.UpsertTask(ctx, task); err != nil {
			e.recordFailure(p.ID, err)
			return err
		}
	}

	if full {
		if err := e.pruneMissing(ctx, p.ID, issues); err != nil {
			e.recordFailure(p.ID, err)
			return err
		}
	}

	p.LastSynced = &start
	if err := e.store.UpsertProject(ctx, p); err != nil {
		e.recordFailure(p.ID, err)
		return err
	}

	e.recordSuccess(p.ID, start)
	return nil
}

// pruneMissing deletes local tasks whose issue number is absent from the
// full remote set.
func (e *Engine) pruneMissing(ctx context.Context, projectID string, issues []forge.Issue) error {
	remote := make(map[int]bool, len(issues))
	for i := range issues {
		remote[issues[i].Number] = true
	}

	tasks, err := e.store.ListTasks(ctx, projectID)
	if err != nil {
		return err
	}
	for _, t := range tasks {
		if !remote[t.IssueNumber] {
			if err := e.store.DeleteTask(ctx, projectID, t.IssueNumber); err != nil {
				return err
			}
		}
	}
	return nil
}

// PullResult summarizes one project's pull in PullAll.
type PullResult struct {
	ProjectID string `json:"project_id"`
	Repo      string `json:"repo"`
	Error     string `json:"error,omitempty"`
}

// PullAll pulls every tracked project, continuing past per-project failures.
func (e *Engine) PullAll(ctx context.Context) ([]PullResult, error) {
	projects, err := e.store.ListProjects(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]PullResult, 0, len(projects))
	for _, p := range projects {
		r := PullResult{ProjectID: p.ID, Repo: p.Repo}
		if err := e.Pull(ctx, p.ID); err != nil {
			r.Error = err.Error()
		}
		results = append(results, r)
	}
	return results, nil
}

// --- Push ---

// MoveTask pushes a status change: the status label set and, when crossing
// the done boundary, the issue state. The local cache is updated only after
// GitHub confirms. The stored status is the requested one, not re-derived;
// the next pull reconciles regardless.
func (e *Engine) MoveTask(ctx context.Context, projectID string, issueNumber int, status models.TaskStatus) (*models.Task, error) {
	p, task, err := e.projectTask(ctx, projectID, issueNumber)
	if err != nil {
		return nil, err
	}
	if task.Status == status {
		return task, nil
	}
	if err := e.checkGate(projectID); err != nil {
		return nil, err
	}
	owner, name, err := forge.SplitRepo(p.Repo)
	if err != nil {
		return nil, err
	}

	labels := models.MergeStatusLabels(task.Labels, status)
	req := forge.UpdateIssueRequest{Labels: forge.Strings(labels)}
	// Only cross the open/closed boundary when done is involved; moves
	// between open columns are label-only.
	if status == models.StatusDone || task.Status == models.StatusDone {
		req.State = forge.String(status.RemoteState())
	}

	issue, err := e.forge.UpdateIssue(ctx, owner, name, issueNumber, req)
	if err != nil {
		e.recordFailure(projectID, err)
		return nil, err
	}

	updated := taskFromIssue(projectID, issue)
	updated.ID = task.ID
	updated.Status = status
	if err := e.store.UpsertTask(ctx, updated); err != nil {
		e.recordFailure(projectID, err)
		return nil, err
	}
	e.recordSuccess(projectID, time.Now().UTC())
	return updated, nil
}

// CreateTask pushes a new issue and caches the result. GitHub assigns the
// issue number, which becomes the task's natural key.
func (e *Engine) CreateTask(ctx context.Context, projectID, title, body string, status models.TaskStatus) (*models.Task, error) {
	p, err := e.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := e.checkGate(projectID); err != nil {
		return nil, err
	}
	owner, name, err := forge.SplitRepo(p.Repo)
	if err != nil {
		return nil, err
	}

	issue, err := e.forge.CreateIssue(ctx, owner, name, forge.CreateIssueRequest{
		Title:  title,
		Body:   body,
		Labels: models.MergeStatusLabels(nil, status),
	})
	if err != nil {
		e.recordFailure(projectID, err)
		return nil, err
	}

	// Issues are created open; a task created straight into done needs a
	// follow-up close.
	if status == models.StatusDone {
		issue, err = e.forge.UpdateIssue(ctx, owner, name, issue.Number, forge.UpdateIssueRequest{
			State: forge.String("closed"),
		})
		if err != nil {
			e.recordFailure(projectID, err)
			return nil, err
		}
	}

	task := taskFromIssue(projectID, issue)
	task.Status = status
	if err := e.store.UpsertTask(ctx, task); err != nil {
		e.recordFailure(projectID, err)
		return nil, err
	}
	e.recordSuccess(projectID, time.Now().UTC())
	return task, nil
}

// EditTask pushes a title/body change, leaving status and labels untouched.
func (e *Engine) EditTask(ctx context.Context, projectID string, issueNumber int, title, body string) (*models.Task, error) {
	p, task, err := e.projectTask(ctx, projectID, issueNumber)
	if err != nil {
		return nil, err
	}
	if err := e.checkGate(projectID); err != nil {
		return nil, err
	}
	owner, name, err := forge.SplitRepo(p.Repo)
	if err != nil {
		return nil, err
	}

	issue, err := e.forge.UpdateIssue(ctx, owner, name, issueNumber, forge.UpdateIssueRequest{
		Title: forge.String(title),
		Body:  forge.String(body),
	})
	if err != nil {
		e.recordFailure(projectID, err)
		return nil, err
	}

	updated := taskFromIssue(projectID, issue)
	updated.ID = task.ID
	updated.Status = task.Status
	if err := e.store.UpsertTask(ctx, updated); err != nil {
		e.recordFailure(projectID, err)
		return nil, err
	}
	e.recordSuccess(projectID, time.Now().UTC())
	return updated, nil
}

// projectTask loads a project and one of its tasks by issue number.
func (e *Engine) projectTask(ctx context.Context, projectID string, issueNumber int) (*models.Project, *models.Task, error) {
	p, err := e.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, nil, err
	}
	tasks, err := e.store.ListTasks(ctx, projectID)
	if err != nil {
		return nil, nil, err
	}
	for _, t := range tasks {
		if t.IssueNumber == issueNumber {
			return p, t, nil
		}
	}
	return nil, nil, fmt.Errorf("task not found: issue #%d in project %s", issueNumber, projectID)
}

// taskFromIssue builds the local cache record for a remote issue, deriving
// status from state and labels.
func taskFromIssue(projectID string, issue *forge.Issue) *models.Task {
	labels := issue.LabelNames()
	return &models.Task{
		ProjectID:   projectID,
		IssueNumber: issue.Number,
		Title:       issue.Title,
		Body:        issue.Body,
		Status:      models.DeriveStatus(issue.State, labels),
		Labels:      labels,
		URL:         issue.HTMLURL,
		CreatedAt:   issue.CreatedAt,
		UpdatedAt:   issue.UpdatedAt,
	}
}

// userMessage translates an error into the message shown by presentation
// layers. The engine is the only layer doing this translation.
func userMessage(err error) string {
	switch forge.KindOf(err) {
	case forge.KindUnauthorized:
		return "GitHub authentication failed. Please sign in again."
	case forge.KindForbidden:
		return "You don't have permission to access this repository."
	case forge.KindNotFound:
		return "Repository or issue not found on GitHub."
	case forge.KindRateLimited:
		return "GitHub rate limit exceeded. Syncing will resume automatically."
	case forge.KindNetwork:
		return "Unable to reach GitHub. Check your internet connection."
	case forge.KindAPI:
		return "GitHub request failed. Please try again."
	}
	return err.Error()
}
