package daemon

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/blogsmith/internal/build"
	"git.home.luguber.info/inful/blogsmith/internal/build/queue"
	"git.home.luguber.info/inful/blogsmith/internal/gitsync"
	"git.home.luguber.info/inful/blogsmith/internal/metrics"
	"git.home.luguber.info/inful/blogsmith/internal/render"
)

// jobBuilder adapts the build orchestrator to the queue's Builder interface,
// optionally syncing the content repository first. A sync failure does not
// fail the build: the previous checkout is still a valid content source.
type jobBuilder struct {
	orchestrator *build.Orchestrator
	renderer     *render.Renderer
	syncer       *gitsync.Syncer
	recorder     metrics.Recorder
}

func (b *jobBuilder) Build(ctx context.Context, job *queue.Job, fn build.ProgressFunc) *build.Result {
	if b.syncer != nil {
		if hash, err := b.syncer.Sync(ctx); err != nil {
			slog.Warn("Content sync failed, building from existing checkout", "job_id", job.ID, "err", err)
		} else {
			slog.Info("Content synced", "job_id", job.ID, "commit", hash)
		}
	}
	res := b.orchestrator.Run(ctx, fn)
	b.reportCacheStats()
	return res
}

func (b *jobBuilder) reportCacheStats() {
	if b.recorder == nil || b.renderer == nil {
		return
	}
	ts := b.renderer.Templates().Stats()
	b.recorder.SetCacheStats("template", ts.Hits, ts.Misses, ts.Evictions, ts.Size)
	rs := b.renderer.Renders().Stats()
	b.recorder.SetCacheStats("render", rs.Hits, rs.Misses, rs.Evictions, rs.Size)
}
