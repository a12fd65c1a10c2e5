// Package board projects the task cache into kanban columns. The projection
// is pure: it reads the store and groups, never talking to GitHub.
package board

import (
	"context"

	"github.com/joescharf/kan/internal/models"
	"github.com/joescharf/kan/internal/store"
)

// Column is one kanban column with its tasks in issue-number order.
type Column struct {
	Status models.TaskStatus `json:"status"`
	Count  int               `json:"count"`
	Tasks  []*models.Task    `json:"tasks"`
}

// Snapshot is a full board view for one project. Every status gets a column
// even when empty, in fixed board order.
type Snapshot struct {
	Project *models.Project `json:"project"`
	Columns []Column        `json:"columns"`
	Total   int             `json:"total"`
}

// Board builds snapshots over a store.
type Board struct {
	store store.Store
}

// New creates a board over the given store.
func New(s store.Store) *Board {
	return &Board{store: s}
}

// Snapshot groups a project's cached tasks into columns. Tasks within a
// column keep the store's issue-number ordering.
func (b *Board) Snapshot(ctx context.Context, projectID string) (*Snapshot, error) {
	p, err := b.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	tasks, err := b.store.ListTasks(ctx, projectID)
	if err != nil {
		return nil, err
	}

	byStatus := make(map[models.TaskStatus][]*models.Task)
	for _, t := range tasks {
		byStatus[t.Status] = append(byStatus[t.Status], t)
	}

	snap := &Snapshot{Project: p, Total: len(tasks)}
	for _, st := range models.AllStatuses() {
		col := Column{Status: st, Tasks: byStatus[st], Count: len(byStatus[st])}
		snap.Columns = append(snap.Columns, col)
	}
	return snap, nil
}

// Column returns a single column for a project.
func (b *Board) Column(ctx context.Context, projectID string, status models.TaskStatus) (*Column, error) {
	snap, err := b.Snapshot(ctx, projectID)
	if err != nil {
		return nil, err
	}
	for i := range snap.Columns {
		if snap.Columns[i].Status == status {
			return &snap.Columns[i], nil
		}
	}
	return &Column{Status: status}, nil
}
