package metrics

import "time"

// Recorder defines observability hooks for build, queue and cache metrics.
// Implementations may forward to Prometheus or elsewhere; NoopRecorder is
// used when metrics are not configured.
type Recorder interface {
	ObservePhaseDuration(phase string, d time.Duration)
	ObserveBuildDuration(d time.Duration)
	IncBuildOutcome(outcome string) // success|failed|rolled_back
	IncBuildRetry(phase string)
	IncBuildRetryExhausted(phase string)
	SetQueueDepth(n int)
	SetCacheStats(cache string, hits, misses, evictions uint64, size int)
}

// NoopRecorder is a Recorder that does nothing.
type NoopRecorder struct{}

func (NoopRecorder) ObservePhaseDuration(string, time.Duration)             {}
func (NoopRecorder) ObserveBuildDuration(time.Duration)                     {}
func (NoopRecorder) IncBuildOutcome(string)                                 {}
func (NoopRecorder) IncBuildRetry(string)                                   {}
func (NoopRecorder) IncBuildRetryExhausted(string)                          {}
func (NoopRecorder) SetQueueDepth(int)                                      {}
func (NoopRecorder) SetCacheStats(string, uint64, uint64, uint64, int)      {}
