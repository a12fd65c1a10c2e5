package forge

import (
	"context"
	"time"
)

// Repo is a GitHub repository.
type Repo struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	FullName      string `json:"full_name"`
	Description   string `json:"description"`
	HTMLURL       string `json:"html_url"`
	Private       bool   `json:"private"`
	DefaultBranch string `json:"default_branch"`
	OpenIssues    int    `json:"open_issues_count"`
}

// Label is a GitHub issue label.
type Label struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Issue is a GitHub issue.
type Issue struct {
	ID        int64     `json:"id"`
	Number    int       `json:"number"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	State     string    `json:"state"`
	HTMLURL   string    `json:"html_url"`
	Labels    []Label   `json:"labels"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LabelNames returns the issue's label names in API order.
func (i *Issue) LabelNames() []string {
	names := make([]string, len(i.Labels))
	for n, l := range i.Labels {
		names[n] = l.Name
	}
	return names
}

// CreateRepoRequest is the body for POST /user/repos.
type CreateRepoRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Private     bool   `json:"private"`
	AutoInit    bool   `json:"auto_init,omitempty"`
}

// CreateIssueRequest is the body for POST /repos/{owner}/{repo}/issues.
type CreateIssueRequest struct {
	Title  string   `json:"title"`
	Body   string   `json:"body,omitempty"`
	Labels []string `json:"labels,omitempty"`
}

// UpdateIssueRequest is the body for PATCH /repos/{owner}/{repo}/issues/{n}.
// Nil fields are omitted so GitHub leaves them untouched.
type UpdateIssueRequest struct {
	Title  *string   `json:"title,omitempty"`
	Body   *string   `json:"body,omitempty"`
	State  *string   `json:"state,omitempty"`
	Labels *[]string `json:"labels,omitempty"`
}

// CreateLabelRequest is the body for POST /repos/{owner}/{repo}/labels.
type CreateLabelRequest struct {
	Name        string `json:"name"`
	Color       string `json:"color"`
	Description string `json:"description,omitempty"`
}

// Client is the GitHub API surface the sync engine depends on. The client is
// stateless per call and performs no retries; backoff policy belongs to the
// caller.
type Client interface {
	GetRepo(ctx context.Context, owner, repo string) (*Repo, error)
	CreateRepo(ctx context.Context, req CreateRepoRequest) (*Repo, error)

	ListIssues(ctx context.Context, owner, repo string) ([]Issue, error)
	ListIssuesSince(ctx context.Context, owner, repo string, since time.Time) ([]Issue, error)
	CreateIssue(ctx context.Context, owner, repo string, req CreateIssueRequest) (*Issue, error)
	UpdateIssue(ctx context.Context, owner, repo string, number int, req UpdateIssueRequest) (*Issue, error)

	ListLabels(ctx context.Context, owner, repo string) ([]Label, error)
	CreateLabel(ctx context.Context, owner, repo string, req CreateLabelRequest) (*Label, error)
}

// String helper for building UpdateIssueRequest fields inline.
func String(s string) *string { return &s }

// Strings helper for the Labels field of UpdateIssueRequest.
func Strings(s []string) *[]string { return &s }
