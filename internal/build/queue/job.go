package queue

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/blogsmith/internal/build"
)

// Status is the lifecycle state of a build job. A job moves strictly
// forward: queued -> running -> completed|failed, or queued -> cancelled.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Job is one build request and its full lifecycle record. The Progress
// slice is the append-only audit trail of the underlying build.
type Job struct {
	ID          string           `json:"id"`
	RequesterID string           `json:"requester_id,omitempty"`
	Status      Status           `json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
	StartedAt   *time.Time       `json:"started_at,omitempty"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	Duration    time.Duration    `json:"duration,omitempty"`
	Retries     int              `json:"retries,omitempty"`
	Progress    []build.Progress `json:"progress,omitempty"`
	Result      *build.Result    `json:"result,omitempty"`
}

func newJob(requesterID string) *Job {
	return &Job{
		ID:          uuid.NewString(),
		RequesterID: requesterID,
		Status:      StatusQueued,
		CreatedAt:   time.Now(),
	}
}

// snapshot returns a deep enough copy that callers can never mutate queue
// state through it.
func (j *Job) snapshot() *Job {
	cp := *j
	if j.Progress != nil {
		cp.Progress = make([]build.Progress, len(j.Progress))
		copy(cp.Progress, j.Progress)
	}
	if j.Result != nil {
		r := *j.Result
		cp.Result = &r
	}
	return &cp
}

// BacklogError is returned by Enqueue when the queue already holds the
// maximum number of waiting jobs.
type BacklogError struct {
	Limit int
}

func (e *BacklogError) Error() string {
	return fmt.Sprintf("build queue backlog full (%d jobs waiting)", e.Limit)
}

// IsBacklogFull reports whether err is a backlog rejection.
func IsBacklogFull(err error) bool {
	var be *BacklogError
	return errors.As(err, &be)
}
