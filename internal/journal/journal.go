// Package journal persists the change events watchdogd observes so that
// operators can ask "what changed, when" after the fact. Two backends exist:
// an embedded WAL-mode SQLite database for single-host deployments and a
// PostgreSQL store for fleets that aggregate several daemons into one
// database. Both implement the Journal interface.
package journal

import (
	"context"
	"time"
)

// Change is one recorded change event.
type Change struct {
	// ID is the backend-assigned row identifier, monotonically increasing
	// in recording order.
	ID int64 `json:"id"`

	// WatchName is the configured name of the watch that detected the
	// change.
	WatchName string `json:"watch_name"`

	// WatchPath is the watched path as registered, wildcard included.
	WatchPath string `json:"watch_path"`

	// Path is the path the watch callback received. For wildcard watches
	// this is the combined directory+pattern path.
	Path string `json:"path"`

	// DetectedAt is when the change callback fired.
	DetectedAt time.Time `json:"detected_at"`
}

// Journal is the persistence surface shared by both backends. All methods
// are safe for concurrent use.
type Journal interface {
	// Record persists one change event.
	Record(ctx context.Context, c Change) error

	// Recent returns up to limit events, newest first.
	Recent(ctx context.Context, limit int) ([]Change, error)

	// Prune deletes events detected before cutoff and returns how many
	// rows were removed.
	Prune(ctx context.Context, cutoff time.Time) (int64, error)

	// Close flushes any buffered events and releases the backend.
	Close(ctx context.Context) error
}
