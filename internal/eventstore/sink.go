package eventstore

import (
	"context"
	"encoding/json"
	"fmt"

	"git.home.luguber.info/inful/blogsmith/internal/build"
	"git.home.luguber.info/inful/blogsmith/internal/build/queue"
)

// Sink adapts a Store to the queue's lifecycle notifications, turning every
// job transition into a persisted audit event.
type Sink struct {
	store Store
}

// NewSink wraps store as a queue event sink.
func NewSink(store Store) *Sink {
	return &Sink{store: store}
}

type startedPayload struct {
	RequesterID string `json:"requester_id,omitempty"`
}

type finishedPayload struct {
	Status   string      `json:"status"`
	Message  string      `json:"message,omitempty"`
	Duration string      `json:"duration"`
	Retries  int         `json:"retries,omitempty"`
	Stats    build.Stats `json:"stats"`
	Error    string      `json:"error,omitempty"`
}

// JobStarted records the job_started event.
func (s *Sink) JobStarted(ctx context.Context, job *queue.Job) error {
	payload, err := json.Marshal(startedPayload{RequesterID: job.RequesterID})
	if err != nil {
		return fmt.Errorf("marshal started payload: %w", err)
	}
	return s.store.Append(ctx, job.ID, TypeJobStarted, payload, nil)
}

// JobProgress records one build_progress event.
func (s *Sink) JobProgress(ctx context.Context, jobID string, p build.Progress) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal progress payload: %w", err)
	}
	return s.store.Append(ctx, jobID, TypeProgress, payload, map[string]string{
		"phase": string(p.Phase),
	})
}

// JobFinished records the terminal event for a job.
func (s *Sink) JobFinished(ctx context.Context, job *queue.Job) error {
	fp := finishedPayload{
		Status:   string(job.Status),
		Duration: job.Duration.String(),
		Retries:  job.Retries,
	}
	if job.Result != nil {
		fp.Message = job.Result.Message
		fp.Stats = job.Result.Stats
		if job.Result.Err != nil {
			fp.Error = job.Result.Err.Error()
		}
	}
	payload, err := json.Marshal(fp)
	if err != nil {
		return fmt.Errorf("marshal finished payload: %w", err)
	}

	eventType := TypeJobCompleted
	switch job.Status {
	case queue.StatusFailed:
		eventType = TypeJobFailed
	case queue.StatusCancelled:
		eventType = TypeJobCancelled
	}
	return s.store.Append(ctx, job.ID, eventType, payload, nil)
}
