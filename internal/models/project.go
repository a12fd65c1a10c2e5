package models

import "time"

// Project is a locally tracked kanban project backed by a single GitHub
// repository. Repo is the "owner/name" reference and is unique across
// projects.
type Project struct {
	ID          string     `json:"id"`
	Repo        string     `json:"repo"`
	Description string     `json:"description,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	LastSynced  *time.Time `json:"last_synced,omitempty"`
}
