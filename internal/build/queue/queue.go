package queue

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"git.home.luguber.info/inful/blogsmith/internal/build"
	"git.home.luguber.info/inful/blogsmith/internal/metrics"
	"git.home.luguber.info/inful/blogsmith/internal/observability"
	"git.home.luguber.info/inful/blogsmith/internal/retry"
)

const (
	// DefaultBacklogLimit caps the number of jobs waiting behind the
	// running one. Builds are whole-site and idempotent, so a deep backlog
	// only delays the newest request without adding information.
	DefaultBacklogLimit = 5

	// DefaultRetention is how long finished jobs stay queryable.
	DefaultRetention = 24 * time.Hour

	defaultHistorySize = 50
)

// Builder executes one build attempt for a job, streaming progress through
// fn. The job argument is a snapshot; mutating it has no effect.
type Builder interface {
	Build(ctx context.Context, job *Job, fn build.ProgressFunc) *build.Result
}

// BuilderFunc adapts a plain function to the Builder interface.
type BuilderFunc func(ctx context.Context, job *Job, fn build.ProgressFunc) *build.Result

func (f BuilderFunc) Build(ctx context.Context, job *Job, fn build.ProgressFunc) *build.Result {
	return f(ctx, job, fn)
}

// EventSink receives job lifecycle notifications. Implementations must not
// block the queue; failures are logged and never affect the job outcome.
type EventSink interface {
	JobStarted(ctx context.Context, job *Job) error
	JobProgress(ctx context.Context, jobID string, p build.Progress) error
	JobFinished(ctx context.Context, job *Job) error
}

// Queue serializes build jobs: exactly one build runs at a time, waiting
// jobs run in submission order, and the backlog is bounded. Finished jobs
// stay queryable until the retention window expires.
type Queue struct {
	jobs     chan *Job
	stopChan chan struct{}
	wg       sync.WaitGroup

	mu        sync.RWMutex
	byID      map[string]*Job
	queued    int
	current   *Job
	history   []*Job
	subs      map[string]map[int]build.ProgressFunc
	nextSubID int

	backlogLimit int
	historySize  int
	retention    time.Duration

	builder     Builder
	retryPolicy retry.Policy
	recorder    metrics.Recorder
	sink        EventSink
}

// Option configures a Queue.
type Option func(*Queue)

// WithBacklogLimit overrides the waiting-job cap.
func WithBacklogLimit(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.backlogLimit = n
		}
	}
}

// WithRetention overrides how long finished jobs remain queryable.
func WithRetention(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.retention = d
		}
	}
}

// WithRetryPolicy sets the transient-failure retry policy.
func WithRetryPolicy(p retry.Policy) Option {
	return func(q *Queue) { q.retryPolicy = p }
}

// WithRecorder injects a metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(q *Queue) {
		if r != nil {
			q.recorder = r
		}
	}
}

// WithEventSink injects a lifecycle event sink.
func WithEventSink(s EventSink) Option {
	return func(q *Queue) { q.sink = s }
}

// New creates a build queue around the given builder.
func New(builder Builder, opts ...Option) *Queue {
	if builder == nil {
		panic("queue.New: builder is required")
	}
	q := &Queue{
		stopChan:     make(chan struct{}),
		byID:         make(map[string]*Job),
		subs:         make(map[string]map[int]build.ProgressFunc),
		backlogLimit: DefaultBacklogLimit,
		historySize:  defaultHistorySize,
		retention:    DefaultRetention,
		builder:      builder,
		retryPolicy:  retry.DefaultPolicy(),
		recorder:     metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(q)
	}
	// extra capacity absorbs cancelled jobs still waiting to be drained
	q.jobs = make(chan *Job, 2*q.backlogLimit)
	return q
}

// Start launches the single consumer goroutine. Jobs run strictly one at a
// time in submission order.
func (q *Queue) Start(ctx context.Context) {
	slog.Info("Starting build queue", "backlog_limit", q.backlogLimit, "retention", q.retention)
	q.wg.Add(1)
	go q.consume(ctx)
}

// Stop shuts the queue down. The running job's context is not cancelled
// here; cancel the context passed to Start for that.
func (q *Queue) Stop() {
	close(q.stopChan)
	q.wg.Wait()
}

// Enqueue admits a new build request. It returns the job snapshot on
// success and a BacklogError when too many jobs are already waiting.
func (q *Queue) Enqueue(requesterID string) (*Job, error) {
	q.mu.Lock()
	if q.queued >= q.backlogLimit {
		q.mu.Unlock()
		return nil, &BacklogError{Limit: q.backlogLimit}
	}
	job := newJob(requesterID)
	q.byID[job.ID] = job
	q.queued++
	depth := q.queued
	q.mu.Unlock()

	select {
	case q.jobs <- job:
	default:
		// slots are full of cancelled jobs the consumer has not drained yet
		q.mu.Lock()
		delete(q.byID, job.ID)
		q.queued--
		q.mu.Unlock()
		return nil, &BacklogError{Limit: q.backlogLimit}
	}
	q.recorder.SetQueueDepth(depth)
	slog.Info("Build job queued", "job_id", job.ID, "requester", requesterID, "depth", depth)
	return job.snapshot(), nil
}

// Cancel cancels a job that has not started yet. Running and finished jobs
// cannot be cancelled.
func (q *Queue) Cancel(jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.byID[jobID]
	if !ok {
		return errors.New("unknown job")
	}
	if job.Status != StatusQueued {
		return errors.New("only queued jobs can be cancelled")
	}
	now := time.Now()
	job.Status = StatusCancelled
	job.CompletedAt = &now
	q.queued--
	q.moveToHistoryLocked(job)
	slog.Info("Build job cancelled", "job_id", jobID)
	return nil
}

// Job returns a snapshot of the job with the given id.
func (q *Queue) Job(jobID string) (*Job, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	job, ok := q.byID[jobID]
	if !ok {
		return nil, false
	}
	return job.snapshot(), true
}

// Current returns the running job, if any.
func (q *Queue) Current() (*Job, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.current == nil {
		return nil, false
	}
	return q.current.snapshot(), true
}

// Backlog returns snapshots of all waiting jobs, oldest first.
func (q *Queue) Backlog() []*Job {
	q.mu.RLock()
	defer q.mu.RUnlock()
	waiting := make([]*Job, 0, q.queued)
	for _, job := range q.byID {
		if job.Status == StatusQueued {
			waiting = append(waiting, job.snapshot())
		}
	}
	sortJobsByCreation(waiting)
	return waiting
}

// Recent returns snapshots of finished jobs inside the retention window,
// newest first.
func (q *Queue) Recent() []*Job {
	q.mu.Lock()
	q.sweepLocked()
	out := make([]*Job, 0, len(q.history))
	for i := len(q.history) - 1; i >= 0; i-- {
		out = append(out, q.history[i].snapshot())
	}
	q.mu.Unlock()
	return out
}

// Depth returns the number of waiting jobs.
func (q *Queue) Depth() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.queued
}

// Subscribe registers fn for progress events of one job. The returned token
// is passed to Unsubscribe. Subscribing to a finished or unknown job
// returns false.
func (q *Queue) Subscribe(jobID string, fn build.ProgressFunc) (int, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.byID[jobID]
	if !ok || job.Status.Terminal() {
		return 0, false
	}
	q.nextSubID++
	token := q.nextSubID
	if q.subs[jobID] == nil {
		q.subs[jobID] = make(map[int]build.ProgressFunc)
	}
	q.subs[jobID][token] = fn
	return token, true
}

// Unsubscribe removes a progress subscription.
func (q *Queue) Unsubscribe(jobID string, token int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if m, ok := q.subs[jobID]; ok {
		delete(m, token)
		if len(m) == 0 {
			delete(q.subs, jobID)
		}
	}
}

func (q *Queue) consume(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.stopChan:
			return
		case job := <-q.jobs:
			if job == nil {
				continue
			}
			q.mu.Lock()
			if job.Status != StatusQueued {
				// cancelled while waiting
				q.mu.Unlock()
				continue
			}
			now := time.Now()
			job.Status = StatusRunning
			job.StartedAt = &now
			q.current = job
			q.queued--
			depth := q.queued
			q.mu.Unlock()
			q.recorder.SetQueueDepth(depth)

			q.runJob(ctx, job)
		}
	}
}

func (q *Queue) runJob(ctx context.Context, job *Job) {
	ctx = observability.WithJobID(ctx, job.ID)
	observability.InfoContext(ctx, "Build job started", slog.String("requester", job.RequesterID))
	q.notifyStarted(ctx, job)

	res := q.executeWithRetry(ctx, job)

	now := time.Now()
	q.mu.Lock()
	job.CompletedAt = &now
	if job.StartedAt != nil {
		job.Duration = now.Sub(*job.StartedAt)
	}
	job.Result = res
	if res != nil && res.Success {
		job.Status = StatusCompleted
	} else {
		job.Status = StatusFailed
	}
	q.current = nil
	q.moveToHistoryLocked(job)
	delete(q.subs, job.ID)
	q.mu.Unlock()

	// Build outcomes are recorded by the orchestrator, which knows whether
	// a failure was rolled back; counting here again would double-book.
	observability.InfoContext(ctx, "Build job finished",
		slog.String("status", string(job.Status)), slog.Duration("duration", job.Duration))
	q.notifyFinished(ctx, job)
}

// executeWithRetry runs the build, retrying on transient failures per the
// configured policy. Only asset-stage failures are considered transient.
func (q *Queue) executeWithRetry(ctx context.Context, job *Job) *build.Result {
	retries := 0
	for {
		q.mu.RLock()
		snap := job.snapshot()
		q.mu.RUnlock()
		res := q.builder.Build(ctx, snap, func(p build.Progress) {
			q.recordProgress(ctx, job, p)
		})
		if res == nil || res.Success {
			return res
		}

		var pe *build.PhaseError
		transient := errors.As(res.Err, &pe) && pe.Transient()
		if !transient || retries >= q.retryPolicy.MaxRetries {
			if transient && retries > 0 {
				q.recorder.IncBuildRetryExhausted(string(pe.Phase))
			}
			return res
		}

		retries++
		q.mu.Lock()
		job.Retries = retries
		q.mu.Unlock()
		q.recorder.IncBuildRetry(string(pe.Phase))
		delay := q.retryPolicy.Delay(retries)
		observability.WarnContext(ctx, "Transient build failure, retrying",
			slog.Int("retry", retries),
			slog.Int("max_retries", q.retryPolicy.MaxRetries),
			slog.String("phase", string(pe.Phase)),
			slog.Duration("delay", delay),
			slog.Any("err", res.Err),
		)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return res
		}
	}
}

// recordProgress appends the event to the job's audit trail and fans it out
// to subscribers outside the lock.
func (q *Queue) recordProgress(ctx context.Context, job *Job, p build.Progress) {
	q.mu.Lock()
	job.Progress = append(job.Progress, p)
	fns := make([]build.ProgressFunc, 0, len(q.subs[job.ID]))
	for _, fn := range q.subs[job.ID] {
		fns = append(fns, fn)
	}
	q.mu.Unlock()

	for _, fn := range fns {
		fn(p)
	}
	if q.sink != nil {
		if err := q.sink.JobProgress(ctx, job.ID, p); err != nil {
			slog.Warn("Event sink rejected progress event", "job_id", job.ID, "err", err)
		}
	}
}

func (q *Queue) notifyStarted(ctx context.Context, job *Job) {
	if q.sink == nil {
		return
	}
	if err := q.sink.JobStarted(ctx, job.snapshot()); err != nil {
		slog.Warn("Event sink rejected start event", "job_id", job.ID, "err", err)
	}
}

func (q *Queue) notifyFinished(ctx context.Context, job *Job) {
	if q.sink == nil {
		return
	}
	q.mu.RLock()
	snap := job.snapshot()
	q.mu.RUnlock()
	if err := q.sink.JobFinished(ctx, snap); err != nil {
		slog.Warn("Event sink rejected finish event", "job_id", job.ID, "err", err)
	}
}

// moveToHistoryLocked retires a finished job into the bounded history and
// drops expired entries. Caller holds q.mu.
func (q *Queue) moveToHistoryLocked(job *Job) {
	q.history = append(q.history, job)
	q.sweepLocked()
	if len(q.history) > q.historySize {
		drop := q.history[:len(q.history)-q.historySize]
		for _, old := range drop {
			delete(q.byID, old.ID)
		}
		copy(q.history, q.history[len(q.history)-q.historySize:])
		q.history = q.history[:q.historySize]
	}
}

// sweepLocked drops history entries older than the retention window.
// Caller holds q.mu.
func (q *Queue) sweepLocked() {
	cutoff := time.Now().Add(-q.retention)
	kept := q.history[:0]
	for _, job := range q.history {
		if job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			delete(q.byID, job.ID)
			continue
		}
		kept = append(kept, job)
	}
	q.history = kept
}

func sortJobsByCreation(jobs []*Job) {
	sort.SliceStable(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
	})
}
