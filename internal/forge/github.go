package forge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/oauth2"
)

const (
	defaultBaseURL = "https://api.github.com"
	perPage        = 100
	requestTimeout = 30 * time.Second
)

// GitHubClient implements Client against the GitHub REST v3 API.
type GitHubClient struct {
	baseURL string
	http    *http.Client
	tokens  oauth2.TokenSource
}

// NewGitHubClient creates a client using tokens from the given source.
// baseURL overrides the API endpoint when non-empty (used for GitHub
// Enterprise and tests).
func NewGitHubClient(tokens oauth2.TokenSource, baseURL string) *GitHubClient {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &GitHubClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: requestTimeout},
		tokens:  tokens,
	}
}

// do executes one API request and decodes the JSON response into out.
func (c *GitHubClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	tok, err := c.tokens.Token()
	if err != nil {
		return &APIError{Kind: KindUnauthorized, Message: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &APIError{Kind: KindNetwork, Message: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apiErrorFromResponse(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &APIError{Kind: KindAPI, StatusCode: resp.StatusCode, Message: fmt.Sprintf("decode response: %v", err)}
	}
	return nil
}

// apiErrorFromResponse maps an HTTP error status to a typed error.
func apiErrorFromResponse(resp *http.Response) *APIError {
	msg := readErrorMessage(resp.Body)

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return &APIError{Kind: KindUnauthorized, StatusCode: resp.StatusCode, Message: msg}
	case http.StatusForbidden:
		// GitHub reports primary rate limit exhaustion as 403 with
		// X-RateLimit-Remaining: 0.
		if resp.Header.Get("X-RateLimit-Remaining") == "0" {
			return &APIError{
				Kind:       KindRateLimited,
				StatusCode: resp.StatusCode,
				Message:    msg,
				RetryAfter: rateLimitWait(resp.Header),
			}
		}
		return &APIError{Kind: KindForbidden, StatusCode: resp.StatusCode, Message: msg}
	case http.StatusNotFound:
		return &APIError{Kind: KindNotFound, StatusCode: resp.StatusCode, Message: msg}
	case http.StatusTooManyRequests:
		return &APIError{
			Kind:       KindRateLimited,
			StatusCode: resp.StatusCode,
			Message:    msg,
			RetryAfter: rateLimitWait(resp.Header),
		}
	}
	return &APIError{Kind: KindAPI, StatusCode: resp.StatusCode, Message: msg}
}

// rateLimitWait derives a wait duration from Retry-After or X-RateLimit-Reset.
func rateLimitWait(h http.Header) time.Duration {
	if ra := h.Get("Retry-After"); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	if reset := h.Get("X-RateLimit-Reset"); reset != "" {
		if unix, err := strconv.ParseInt(reset, 10, 64); err == nil {
			if wait := time.Until(time.Unix(unix, 0)); wait > 0 {
				return wait
			}
		}
	}
	return time.Minute
}

func readErrorMessage(r io.Reader) string {
	var body struct {
		Message string `json:"message"`
	}
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return ""
	}
	if err := json.Unmarshal(data, &body); err == nil && body.Message != "" {
		return body.Message
	}
	return string(bytes.TrimSpace(data))
}

func (c *GitHubClient) GetRepo(ctx context.Context, owner, repo string) (*Repo, error) {
	var r Repo
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/repos/%s/%s", owner, repo), nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *GitHubClient) CreateRepo(ctx context.Context, req CreateRepoRequest) (*Repo, error) {
	var r Repo
	if err := c.do(ctx, http.MethodPost, "/user/repos", req, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// listIssuePages collects all pages of an issue listing.
func (c *GitHubClient) listIssuePages(ctx context.Context, owner, repo, query string) ([]Issue, error) {
	var all []Issue
	for page := 1; ; page++ {
		path := fmt.Sprintf("/repos/%s/%s/issues?state=all&per_page=%d&page=%d%s",
			owner, repo, perPage, page, query)
		var batch []Issue
		if err := c.do(ctx, http.MethodGet, path, nil, &batch); err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if len(batch) < perPage {
			return all, nil
		}
	}
}

func (c *GitHubClient) ListIssues(ctx context.Context, owner, repo string) ([]Issue, error) {
	return c.listIssuePages(ctx, owner, repo, "")
}

func (c *GitHubClient) ListIssuesSince(ctx context.Context, owner, repo string, since time.Time) ([]Issue, error) {
	return c.listIssuePages(ctx, owner, repo, "&since="+since.UTC().Format(time.RFC3339))
}

func (c *GitHubClient) CreateIssue(ctx context.Context, owner, repo string, req CreateIssueRequest) (*Issue, error) {
	var issue Issue
	path := fmt.Sprintf("/repos/%s/%s/issues", owner, repo)
	if err := c.do(ctx, http.MethodPost, path, req, &issue); err != nil {
		return nil, err
	}
	return &issue, nil
}

func (c *GitHubClient) UpdateIssue(ctx context.Context, owner, repo string, number int, req UpdateIssueRequest) (*Issue, error) {
	var issue Issue
	path := fmt.Sprintf("/repos/%s/%s/issues/%d", owner, repo, number)
	if err := c.do(ctx, http.MethodPatch, path, req, &issue); err != nil {
		return nil, err
	}
	return &issue, nil
}

func (c *GitHubClient) ListLabels(ctx context.Context, owner, repo string) ([]Label, error) {
	var labels []Label
	path := fmt.Sprintf("/repos/%s/%s/labels?per_page=%d", owner, repo, perPage)
	if err := c.do(ctx, http.MethodGet, path, nil, &labels); err != nil {
		return nil, err
	}
	return labels, nil
}

func (c *GitHubClient) CreateLabel(ctx context.Context, owner, repo string, req CreateLabelRequest) (*Label, error) {
	var label Label
	path := fmt.Sprintf("/repos/%s/%s/labels", owner, repo)
	if err := c.do(ctx, http.MethodPost, path, req, &label); err != nil {
		return nil, err
	}
	return &label, nil
}
