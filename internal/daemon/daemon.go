// Package daemon runs the blog builder as a long-lived service: an HTTP job
// API, optional content watching, periodic rebuilds, and build event fanout
// to the audit store and NATS.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"git.home.luguber.info/inful/blogsmith/internal/assets"
	"git.home.luguber.info/inful/blogsmith/internal/build"
	"git.home.luguber.info/inful/blogsmith/internal/build/queue"
	"git.home.luguber.info/inful/blogsmith/internal/cache"
	"git.home.luguber.info/inful/blogsmith/internal/config"
	"git.home.luguber.info/inful/blogsmith/internal/eventstore"
	"git.home.luguber.info/inful/blogsmith/internal/gitsync"
	"git.home.luguber.info/inful/blogsmith/internal/metrics"
	"git.home.luguber.info/inful/blogsmith/internal/posts"
	"git.home.luguber.info/inful/blogsmith/internal/render"
	"git.home.luguber.info/inful/blogsmith/internal/retry"
)

const defaultListen = ":8080"

// Daemon owns every long-running component and their shutdown order.
type Daemon struct {
	cfg    *config.Config
	queue  *queue.Queue
	server *Server
	sched  *Scheduler
	store  eventstore.Store
	nats   *NATSPublisher
	rec    *metrics.PrometheusRecorder
}

// multiSink fans lifecycle events out to every configured sink.
type multiSink []queue.EventSink

func (m multiSink) JobStarted(ctx context.Context, job *queue.Job) error {
	var last error
	for _, s := range m {
		if err := s.JobStarted(ctx, job); err != nil {
			last = err
		}
	}
	return last
}

func (m multiSink) JobProgress(ctx context.Context, jobID string, p build.Progress) error {
	var last error
	for _, s := range m {
		if err := s.JobProgress(ctx, jobID, p); err != nil {
			last = err
		}
	}
	return last
}

func (m multiSink) JobFinished(ctx context.Context, job *queue.Job) error {
	var last error
	for _, s := range m {
		if err := s.JobFinished(ctx, job); err != nil {
			last = err
		}
	}
	return last
}

// New wires a daemon from configuration.
func New(cfg *config.Config) (*Daemon, error) {
	d := &Daemon{cfg: cfg}

	rec := metrics.NewPrometheusRecorder(nil)
	d.rec = rec

	dataDir := cfg.Daemon.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	store, err := eventstore.NewSQLiteStore(filepath.Join(dataDir, "events.db"))
	if err != nil {
		return nil, fmt.Errorf("open event store: %w", err)
	}
	d.store = store

	sinks := multiSink{eventstore.NewSink(store)}
	if cfg.Daemon.NATS.Enabled {
		pub, err := NewNATSPublisher(cfg.Daemon.NATS)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		d.nats = pub
		sinks = append(sinks, pub)
	}

	renderer := render.New(cfg.Site,
		cache.NewTemplateCache(cfg.Build.TemplatesDir, cfg.Build.TemplateCacheSize),
		cache.NewRenderCache(cfg.Build.RenderCacheSize))
	orch := build.NewOrchestrator(cfg.Build,
		posts.NewDirProvider(cfg.Build.PostsDir),
		renderer,
		assets.NewSyncer(cfg.Build.Assets))
	orch.SetRecorder(rec)

	builder := &jobBuilder{orchestrator: orch, renderer: renderer, recorder: rec}
	if cfg.Git.Enabled {
		builder.syncer = gitsync.New(cfg.Git, cfg.Build.PostsDir)
	}

	opts := []queue.Option{
		queue.WithRecorder(rec),
		queue.WithEventSink(sinks),
		queue.WithRetryPolicy(retry.FromBuildConfig(cfg.Build)),
	}
	if cfg.Daemon.JobRetention > 0 {
		opts = append(opts, queue.WithRetention(cfg.Daemon.JobRetention))
	}
	d.queue = queue.New(builder, opts...)

	listen := cfg.Daemon.Listen
	if listen == "" {
		listen = defaultListen
	}
	d.server = NewServer(listen, d.queue, rec.Handler())

	if cfg.Daemon.BuildInterval > 0 {
		sched, err := NewScheduler()
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		if err := sched.SchedulePeriodicBuild(cfg.Daemon.BuildInterval, func(requesterID string) error {
			_, qerr := d.queue.Enqueue(requesterID)
			return qerr
		}); err != nil {
			_ = store.Close()
			return nil, err
		}
		d.sched = sched
	}

	return d, nil
}

// Run starts everything and blocks until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	slog.Info("Starting daemon",
		"listen", d.cfg.Daemon.Listen,
		"watch_content", d.cfg.Daemon.WatchContent,
		"build_interval", d.cfg.Daemon.BuildInterval)

	d.queue.Start(ctx)
	if d.sched != nil {
		d.sched.Start()
	}

	var wg sync.WaitGroup

	if d.cfg.Daemon.WatchContent {
		watcher, err := NewContentWatcher(
			d.cfg.Build.PostsDir,
			d.cfg.Daemon.QuietWindow,
			d.cfg.Daemon.MaxDelay,
			func(reason string) {
				if _, err := d.queue.Enqueue("watcher:" + reason); err != nil {
					slog.Debug("Watcher build not enqueued", "err", err)
				}
			})
		if err != nil {
			return fmt.Errorf("start content watcher: %w", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			watcher.Run(ctx)
		}()
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- d.server.Start() }()

	// initial build on startup so the site is current immediately
	if _, err := d.queue.Enqueue("startup"); err != nil {
		slog.Warn("Startup build not enqueued", "err", err)
	}

	var err error
	select {
	case <-ctx.Done():
	case err = <-serveErr:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if serr := d.server.Shutdown(shutdownCtx); serr != nil {
		slog.Warn("Server shutdown failed", "err", serr)
	}
	if d.sched != nil {
		if serr := d.sched.Stop(); serr != nil {
			slog.Warn("Scheduler shutdown failed", "err", serr)
		}
	}
	d.queue.Stop()
	wg.Wait()
	if d.nats != nil {
		d.nats.Close()
	}
	if serr := d.store.Close(); serr != nil {
		slog.Warn("Event store close failed", "err", serr)
	}
	slog.Info("Daemon stopped")
	return err
}
