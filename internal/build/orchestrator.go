package build

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/blogsmith/internal/assets"
	"git.home.luguber.info/inful/blogsmith/internal/config"
	"git.home.luguber.info/inful/blogsmith/internal/metrics"
	"git.home.luguber.info/inful/blogsmith/internal/observability"
	"git.home.luguber.info/inful/blogsmith/internal/posts"
	"git.home.luguber.info/inful/blogsmith/internal/render"
)

// Orchestrator sequences a full build as an ordered series of phases. All
// collaborators are injected at construction; the orchestrator holds no
// process-wide state and knows nothing about jobs or queuing.
type Orchestrator struct {
	cfg      config.BuildConfig
	provider posts.Provider
	renderer *render.Renderer
	syncer   *assets.Syncer
	recorder metrics.Recorder
}

// NewOrchestrator wires an orchestrator from its collaborators.
func NewOrchestrator(cfg config.BuildConfig, provider posts.Provider, renderer *render.Renderer, syncer *assets.Syncer) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		provider: provider,
		renderer: renderer,
		syncer:   syncer,
		recorder: metrics.NoopRecorder{},
	}
}

// SetRecorder injects a metrics recorder (optional).
func (o *Orchestrator) SetRecorder(r metrics.Recorder) {
	if r == nil {
		r = metrics.NoopRecorder{}
	}
	o.recorder = r
}

// buildState carries mutable state across phases of one build.
type buildState struct {
	docs   []*posts.Document
	bodies map[string][]byte // slug -> converted HTML body
	stats  Stats
}

// phaseStep is one entry of the happy-path transition table that runs after
// backup creation.
type phaseStep struct {
	phase Phase
	msg   string
	fn    func(ctx context.Context, st *buildState) error
}

// Run executes one complete build attempt and returns its terminal Result.
// Any error raised from BackupCreation through Verification is caught once,
// here, and converted into a rollback attempt; the original error is always
// preserved in the result.
func (o *Orchestrator) Run(ctx context.Context, progress ProgressFunc) *Result {
	start := time.Now()
	rep := newReporter(progress)
	st := &buildState{bodies: make(map[string][]byte)}

	if o.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.Timeout)
		defer cancel()
	}

	// Preconditions run before anything destructive; failure here needs no
	// rollback because nothing has been touched.
	rep.emit(PhaseInitializing, "validating build preconditions", nil)
	if err := o.initialize(ctx); err != nil {
		rep.emit(PhaseFailed, "build aborted: "+err.Error(), nil)
		return &Result{
			Success:  false,
			Message:  fmt.Sprintf("build aborted before backup: %v", err),
			Duration: time.Since(start),
			Err:      err,
		}
	}

	rep.emit(PhaseBackupCreation, "backing up previous output tree", nil)
	moved, err := o.createBackup()
	if err != nil {
		err = phaseError(KindBackup, PhaseBackupCreation, err)
		if !moved {
			// The previous output tree never left its place, so the live
			// site is still intact. Rolling back here would delete it.
			return o.failWithoutRollback(rep, start, err)
		}
		return o.failWithRollback(ctx, rep, st, start, err)
	}
	observability.DebugContext(ctx, "Backup phase done", slog.Bool("had_previous_output", moved))

	steps := []phaseStep{
		{PhaseContentProcessing, "converting document bodies", o.processContent},
		{PhaseTemplateRendering, "rendering pages", o.renderPages},
		{PhaseAssetCopying, "copying static assets", o.copyAssets},
		{PhaseVerification, "verifying output tree", o.verify},
	}

	for _, step := range steps {
		if cerr := ctx.Err(); cerr != nil {
			err = phaseError(KindCanceled, step.phase, cerr)
			return o.failWithRollback(ctx, rep, st, start, err)
		}
		rep.emit(step.phase, step.msg, nil)
		phaseCtx := observability.WithPhase(ctx, string(step.phase))
		t0 := time.Now()
		serr := step.fn(phaseCtx, st)
		o.recorder.ObservePhaseDuration(string(step.phase), time.Since(t0))
		if serr != nil {
			return o.failWithRollback(phaseCtx, rep, st, start, serr)
		}
	}

	rep.emit(PhaseCleanup, "removing backup", nil)
	o.cleanupBackup()

	duration := time.Since(start)
	o.recorder.ObserveBuildDuration(duration)
	o.recorder.IncBuildOutcome("success")
	rep.emit(PhaseCompleted, "build completed", map[string]any{
		"documents": st.stats.DocumentsProcessed,
		"pages":     st.stats.PagesRendered,
		"assets":    st.stats.AssetsCopied,
	})
	return &Result{
		Success:   true,
		Message:   "build completed successfully",
		Duration:  duration,
		OutputDir: o.cfg.OutputDir,
		Stats:     st.stats,
	}
}

// failWithoutRollback composes a failed result for errors raised while the
// previous output tree is still in place. No rollback runs: the tree being
// served is the previous good deployment and must stay untouched.
func (o *Orchestrator) failWithoutRollback(rep *reporter, start time.Time, cause error) *Result {
	msg := fmt.Sprintf("build failed before backup completed, previous site untouched: %v", cause)
	rep.emit(PhaseFailed, msg, nil)
	duration := time.Since(start)
	o.recorder.ObserveBuildDuration(duration)
	o.recorder.IncBuildOutcome("failed")
	return &Result{
		Success:  false,
		Message:  msg,
		Duration: duration,
		Err:      cause,
	}
}

// failWithRollback drives the rollback excursion and composes the failed
// result. The rollback outcome decides the message and which path is
// reported; the triggering error is surfaced unchanged.
func (o *Orchestrator) failWithRollback(ctx context.Context, rep *reporter, st *buildState, start time.Time, cause error) *Result {
	rep.emit(PhaseRollback, "restoring previous output tree", map[string]any{"error": cause.Error()})
	restored, hadBackup := o.rollback(ctx)

	res := &Result{
		Success:  false,
		Duration: time.Since(start),
		Stats:    st.stats,
		Err:      cause,
	}
	switch {
	case restored && hadBackup:
		res.Message = fmt.Sprintf("build failed, previous site restored: %v", cause)
		res.OutputDir = o.cfg.OutputDir
		o.recorder.IncBuildOutcome("rolled_back")
	case restored && !hadBackup:
		res.Message = fmt.Sprintf("build failed, no backup to restore: %v", cause)
		o.recorder.IncBuildOutcome("failed")
	default:
		res.Message = fmt.Sprintf("build failed and rollback failed, backup preserved at %s: %v", o.cfg.BackupDir, cause)
		res.BackupDir = o.cfg.BackupDir
		o.recorder.IncBuildOutcome("failed")
	}
	rep.emit(PhaseFailed, res.Message, nil)
	o.recorder.ObserveBuildDuration(res.Duration)
	return res
}

// initialize validates preconditions: the output parent is creatable, the
// template directory exists and every well-known template compiles, and the
// posts tree is present.
func (o *Orchestrator) initialize(ctx context.Context) error {
	parent := filepath.Dir(filepath.Clean(o.cfg.OutputDir))
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return preconditionError(fmt.Errorf("output parent not creatable: %w", err))
	}

	if _, err := os.Stat(o.provider.RootPath()); err != nil {
		return preconditionError(fmt.Errorf("posts directory: %w", err))
	}

	tc := o.renderer.Templates()
	if _, err := os.Stat(tc.Dir()); err != nil {
		return preconditionError(fmt.Errorf("template directory: %w", err))
	}
	for _, name := range render.RequiredTemplates {
		if err := tc.Validate(name); err != nil {
			return preconditionError(err)
		}
	}
	return ctx.Err()
}

// processContent converts every published document's body to HTML. A single
// failing document does not stop the pass, but any failure aborts the phase
// before rendering: a partially processed content set must never reach the
// rendering phase.
func (o *Orchestrator) processContent(ctx context.Context, st *buildState) error {
	docs, err := o.provider.ListPublished()
	if err != nil {
		return phaseError(KindContent, PhaseContentProcessing, fmt.Errorf("list documents: %w", err))
	}
	st.docs = docs

	failures := 0
	for _, doc := range docs {
		body, cerr := render.ConvertBody(doc.Body)
		if cerr != nil {
			observability.WarnContext(ctx, "Document body conversion failed",
				slog.String("slug", doc.Slug), slog.Any("error", cerr))
			failures++
			continue
		}
		st.bodies[doc.Slug] = body
		st.stats.DocumentsProcessed++
	}
	if failures > 0 {
		return phaseError(KindContent, PhaseContentProcessing,
			fmt.Errorf("%d of %d documents failed to convert", failures, len(docs)))
	}

	// The document set changed relative to whatever the caches last saw.
	o.renderer.InvalidateAll()
	return nil
}

// renderPages writes every page to the output tree as it is produced. Each
// artifact renders independently; an aggregate error is raised after all
// have been attempted.
func (o *Orchestrator) renderPages(ctx context.Context, st *buildState) error {
	failures := 0
	write := func(relPath string, out []byte, rerr error) {
		if rerr != nil {
			observability.WarnContext(ctx, "Artifact render failed",
				slog.String("artifact", relPath), slog.Any("error", rerr))
			failures++
			return
		}
		path := filepath.Join(o.cfg.OutputDir, relPath)
		if werr := os.WriteFile(path, out, 0o644); werr != nil {
			observability.WarnContext(ctx, "Artifact write failed",
				slog.String("artifact", relPath), slog.Any("error", werr))
			failures++
			return
		}
		st.stats.PagesRendered++
	}

	out, err := o.renderer.Home(st.docs)
	write("index.html", out, err)

	for _, doc := range st.docs {
		out, err := o.renderer.Post(doc, st.bodies[doc.Slug])
		write(filepath.Join("posts", doc.Slug+".html"), out, err)
	}

	out, err = o.renderer.Archive(st.docs)
	write("archive.html", out, err)

	for _, tag := range render.DistinctTags(st.docs) {
		out, err := o.renderer.Tag(tag, st.docs)
		write(filepath.Join("tags", tag+".html"), out, err)
	}

	out, err = o.renderer.Feed(st.docs)
	write("feed.xml", out, err)

	if failures > 0 {
		return phaseError(KindRendering, PhaseTemplateRendering,
			fmt.Errorf("%d artifacts failed to render", failures))
	}
	return nil
}

// copyAssets delegates to the asset syncer and propagates its aggregate
// error.
func (o *Orchestrator) copyAssets(ctx context.Context, st *buildState) error {
	copied, _, err := o.syncer.CopyAllAssets(o.cfg.OutputDir)
	st.stats.AssetsCopied = copied
	if err != nil {
		return phaseError(KindAssets, PhaseAssetCopying, err)
	}
	return nil
}

// verify runs the post-build integrity check.
func (o *Orchestrator) verify(ctx context.Context, st *buildState) error {
	if err := o.verifyOutput(); err != nil {
		return phaseError(KindVerification, PhaseVerification, err)
	}
	return nil
}

// IsPrecondition reports whether err is a precondition failure (no backup
// was attempted).
func IsPrecondition(err error) bool {
	var pe *PhaseError
	return errors.As(err, &pe) && pe.Kind == KindPrecondition
}
