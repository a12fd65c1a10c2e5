package models

import "time"

// TaskStatus is a kanban column. The set is closed; status is never stored
// on GitHub directly, it is derived from issue state and labels.
type TaskStatus string

const (
	StatusBacklog    TaskStatus = "backlog"
	StatusTodo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "in_progress"
	StatusBlocked    TaskStatus = "blocked"
	StatusReview     TaskStatus = "review"
	StatusDone       TaskStatus = "done"
)

// AllStatuses lists every column in board order.
func AllStatuses() []TaskStatus {
	return []TaskStatus{
		StatusBacklog,
		StatusTodo,
		StatusInProgress,
		StatusBlocked,
		StatusReview,
		StatusDone,
	}
}

// ParseStatus normalizes a user-supplied status string. Unrecognized input
// falls back to todo.
func ParseStatus(s string) TaskStatus {
	switch s {
	case "backlog":
		return StatusBacklog
	case "todo":
		return StatusTodo
	case "in_progress", "in-progress", "inprogress":
		return StatusInProgress
	case "blocked":
		return StatusBlocked
	case "review":
		return StatusReview
	case "done", "closed":
		return StatusDone
	}
	return StatusTodo
}

// Label returns the GitHub label token encoding this status, or "" for done
// (done is encoded by the closed issue state, not a label).
func (s TaskStatus) Label() string {
	switch s {
	case StatusBacklog:
		return "backlog"
	case StatusTodo:
		return "todo"
	case StatusInProgress:
		return "in-progress"
	case StatusBlocked:
		return "blocked"
	case StatusReview:
		return "review"
	}
	return ""
}

// LabelColor returns the hex color used when provisioning the status label.
func (s TaskStatus) LabelColor() string {
	switch s {
	case StatusBacklog:
		return "e0e0e0"
	case StatusTodo:
		return "0366d6"
	case StatusInProgress:
		return "fbca04"
	case StatusBlocked:
		return "d93f0b"
	case StatusReview:
		return "6f42c1"
	}
	return "0e8a16"
}

// RemoteState returns the GitHub issue state that encodes this status.
func (s TaskStatus) RemoteState() string {
	if s == StatusDone {
		return "closed"
	}
	return "open"
}

// statusPriority orders label checks during derivation. When an issue carries
// several status labels the highest-priority one wins, regardless of label
// order on the issue.
var statusPriority = []TaskStatus{
	StatusBlocked,
	StatusReview,
	StatusInProgress,
	StatusBacklog,
	StatusTodo,
}

// DeriveStatus computes the kanban status from a GitHub issue's state and
// label set. Closed issues are always done, whatever their labels. Open
// issues with no recognized status label default to todo.
func DeriveStatus(state string, labels []string) TaskStatus {
	if state == "closed" {
		return StatusDone
	}
	for _, st := range statusPriority {
		for _, l := range labels {
			if l == st.Label() {
				return st
			}
		}
	}
	return StatusTodo
}

// MergeStatusLabels computes the label set to push for a status change:
// every known status token is stripped from the current set and the new
// status's token (if any) is appended. Non-status labels are preserved.
func MergeStatusLabels(current []string, status TaskStatus) []string {
	known := make(map[string]bool, len(statusPriority))
	for _, st := range statusPriority {
		known[st.Label()] = true
	}

	merged := make([]string, 0, len(current)+1)
	for _, l := range current {
		if !known[l] {
			merged = append(merged, l)
		}
	}
	if tok := status.Label(); tok != "" {
		merged = append(merged, tok)
	}
	return merged
}

// Task is the local cache of a GitHub issue. Its natural key is
// (ProjectID, IssueNumber); the label set is a cached copy, GitHub holds the
// authoritative one.
type Task struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"project_id"`
	IssueNumber int        `json:"issue_number"`
	Title       string     `json:"title"`
	Body        string     `json:"body,omitempty"`
	Status      TaskStatus `json:"status"`
	Labels      []string   `json:"labels"`
	URL         string     `json:"url"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
