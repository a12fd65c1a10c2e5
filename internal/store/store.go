package store

import (
	"context"

	"github.com/joescharf/kan/internal/models"
)

// Store defines the persistence interface for kan. It is a local cache:
// implementations never touch the network, and reads reflect only what has
// been upserted.
type Store interface {
	// Projects. UpsertProject is keyed by the repository reference; applying
	// the same project twice updates the existing row in place.
	UpsertProject(ctx context.Context, p *models.Project) error
	GetProject(ctx context.Context, id string) (*models.Project, error)
	GetProjectByRepo(ctx context.Context, repo string) (*models.Project, error)
	ListProjects(ctx context.Context) ([]*models.Project, error)
	// DeleteProject cascades to the project's tasks.
	DeleteProject(ctx context.Context, id string) error

	// Tasks. UpsertTask is keyed by (project id, issue number) and is
	// idempotent.
	UpsertTask(ctx context.Context, t *models.Task) error
	ListTasks(ctx context.Context, projectID string) ([]*models.Task, error)
	DeleteTask(ctx context.Context, projectID string, issueNumber int) error
	CountTasksByStatus(ctx context.Context, projectID string) (map[models.TaskStatus]int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
