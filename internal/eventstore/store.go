// Package eventstore persists the build audit trail. Every job lifecycle
// transition and progress event is appended to a SQLite-backed log so the
// history of a site deployment survives daemon restarts.
package eventstore

import (
	"context"
	"time"
)

// Event is one persisted entry in a job's audit trail.
type Event struct {
	ID        int64             `json:"id"`
	JobID     string            `json:"job_id"`
	Type      string            `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	Payload   []byte            `json:"payload,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Well-known event types.
const (
	TypeJobQueued    = "job_queued"
	TypeJobStarted   = "job_started"
	TypeProgress     = "build_progress"
	TypeJobCompleted = "job_completed"
	TypeJobFailed    = "job_failed"
	TypeJobCancelled = "job_cancelled"
)

// Store persists and retrieves audit events.
type Store interface {
	// Append adds one event to the log.
	Append(ctx context.Context, jobID, eventType string, payload []byte, metadata map[string]string) error

	// JobEvents returns all events for one job in append order.
	JobEvents(ctx context.Context, jobID string) ([]Event, error)

	// Range returns events within a time window in append order.
	Range(ctx context.Context, start, end time.Time) ([]Event, error)

	// Close releases the underlying storage.
	Close() error
}
