// Package repository holds the per-session figure snapshots served to
// dashboard clients.
package repository

import (
	"context"
	"time"

	"github.com/okian/epidash/internal/domain/figure"
)

// Snapshot is the latest published figure set of a session.
// Version 0 means nothing has been published yet.
type Snapshot struct {
	SessionID   string
	Version     uint64
	Figures     figure.Figures
	CreatedAt   time.Time
	PublishedAt time.Time
}

// Ready reports whether figures were published for the session.
func (s Snapshot) Ready() bool { return s.Version > 0 }

// Store provides read/write access to session snapshots.
type Store interface {
	// Create registers a new session with an empty snapshot.
	// Returns ErrExists if the id is taken.
	Create(ctx context.Context, sessionID string) error

	// Publish replaces the session snapshot if version is newer than the
	// published one. Returns true if the store replaced it.
	// Returns ErrNotFound if the session is unknown.
	Publish(ctx context.Context, sessionID string, version uint64, figs figure.Figures) (bool, error)

	// Get returns the current snapshot and refreshes the session's idle timer.
	Get(ctx context.Context, sessionID string) (Snapshot, error)

	// Touch refreshes the session's idle timer.
	Touch(ctx context.Context, sessionID string) error

	// Delete removes a session. Returns false if it was unknown.
	Delete(ctx context.Context, sessionID string) bool

	// Count returns the number of live sessions.
	Count(ctx context.Context) int

	// Close stops background maintenance.
	Close() error
}
