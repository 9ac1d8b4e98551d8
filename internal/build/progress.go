package build

import (
	"log/slog"
	"time"
)

// Progress is one immutable event in a build's audit trail. Events form an
// append-only, time-ordered sequence for the lifetime of a single build.
type Progress struct {
	Phase     Phase          `json:"phase"`
	Message   string         `json:"message"`
	Percent   int            `json:"percent"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// ProgressFunc receives progress events. Implementations may be slow or
// broken; the orchestrator never lets a callback abort a build.
type ProgressFunc func(Progress)

// reporter fans progress events out to the registered callback. Panics from
// the callback are recovered and logged, never propagated, and the callback
// is invoked outside any orchestrator lock.
type reporter struct {
	fn ProgressFunc
}

func newReporter(fn ProgressFunc) *reporter { return &reporter{fn: fn} }

func (r *reporter) emit(phase Phase, message string, details map[string]any) {
	p := Progress{
		Phase:     phase,
		Message:   message,
		Percent:   percent[phase],
		Details:   details,
		Timestamp: time.Now(),
	}
	slog.Info("Build progress", "phase", p.Phase, "percent", p.Percent, "message", p.Message)
	if r.fn == nil {
		return
	}
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				slog.Warn("Progress callback panicked", "phase", phase, "panic", rec)
			}
		}()
		r.fn(p)
	}()
}
