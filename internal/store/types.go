package store

import "time"

// RunID is a type-safe identifier for saved analysis runs.
type RunID string

// Run summarizes one saved analysis run.
type Run struct {
	ID        RunID     `json:"id"`
	Label     string    `json:"label,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	SuFiles   int       `json:"su_files"`
	Records   int       `json:"records"`
	Skipped   int       `json:"skipped_lines"`
	Edges     int       `json:"edges"`
	Paths     int       `json:"paths"`
}

// Edge is one persisted caller→callee relation.
type Edge struct {
	Caller string `json:"caller"`
	Callee string `json:"callee"`
}

// StoredPath is one persisted worst-case path.
type StoredPath struct {
	Entry      string   `json:"entry"`
	TotalBytes int      `json:"total_bytes"`
	Chain      []string `json:"chain"`
}
