package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/blogsmith/internal/build"
	"git.home.luguber.info/inful/blogsmith/internal/build/queue"
	"git.home.luguber.info/inful/blogsmith/internal/config"
)

const defaultSubject = "blogsmith.builds"

// NATSPublisher publishes job lifecycle events to a NATS subject so other
// systems (cache purgers, notification bots) can react to deployments.
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
}

// NewNATSPublisher connects to the configured NATS server.
func NewNATSPublisher(cfg config.NATSConfig) (*NATSPublisher, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("nats publishing is disabled")
	}
	conn, err := nats.Connect(cfg.URL,
		nats.Name("blogsmith"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	subject := cfg.Subject
	if subject == "" {
		subject = defaultSubject
	}
	slog.Info("NATS publisher connected", "url", cfg.URL, "subject", subject)
	return &NATSPublisher{conn: conn, subject: subject}, nil
}

type buildEvent struct {
	Event       string    `json:"event"`
	JobID       string    `json:"job_id"`
	RequesterID string    `json:"requester_id,omitempty"`
	Status      string    `json:"status,omitempty"`
	Phase       string    `json:"phase,omitempty"`
	Percent     int       `json:"percent,omitempty"`
	Message     string    `json:"message,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

func (p *NATSPublisher) publish(ev buildEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal build event: %w", err)
	}
	if err := p.conn.Publish(p.subject+"."+ev.Event, data); err != nil {
		return fmt.Errorf("publish build event: %w", err)
	}
	return nil
}

// JobStarted implements queue.EventSink.
func (p *NATSPublisher) JobStarted(_ context.Context, job *queue.Job) error {
	return p.publish(buildEvent{
		Event:       "started",
		JobID:       job.ID,
		RequesterID: job.RequesterID,
		Status:      string(job.Status),
		Timestamp:   time.Now(),
	})
}

// JobProgress implements queue.EventSink.
func (p *NATSPublisher) JobProgress(_ context.Context, jobID string, pr build.Progress) error {
	return p.publish(buildEvent{
		Event:     "progress",
		JobID:     jobID,
		Phase:     string(pr.Phase),
		Percent:   pr.Percent,
		Message:   pr.Message,
		Timestamp: pr.Timestamp,
	})
}

// JobFinished implements queue.EventSink.
func (p *NATSPublisher) JobFinished(_ context.Context, job *queue.Job) error {
	ev := buildEvent{
		Event:       "finished",
		JobID:       job.ID,
		RequesterID: job.RequesterID,
		Status:      string(job.Status),
		Timestamp:   time.Now(),
	}
	if job.Result != nil {
		ev.Message = job.Result.Message
	}
	return p.publish(ev)
}

// Close drains and closes the connection.
func (p *NATSPublisher) Close() {
	if err := p.conn.Drain(); err != nil {
		slog.Warn("NATS drain failed", "err", err)
	}
}
