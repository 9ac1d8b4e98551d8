package metrics

import (
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNoopRecorder_Implements(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.ObservePhaseDuration("Verification", time.Second)
	r.IncBuildOutcome("success")
	r.SetQueueDepth(3)
}

func TestPrometheusRecorder_Counters(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)

	pr.IncBuildOutcome("success")
	pr.IncBuildOutcome("success")
	pr.IncBuildOutcome("failed")
	pr.IncBuildRetry("AssetCopying")
	pr.SetQueueDepth(2)
	pr.SetCacheStats("render", 10, 4, 1, 7)

	if got := testutil.ToFloat64(pr.buildOutcome.WithLabelValues("success")); got != 2 {
		t.Fatalf("success outcomes = %v, want 2", got)
	}
	if got := testutil.ToFloat64(pr.buildOutcome.WithLabelValues("failed")); got != 1 {
		t.Fatalf("failed outcomes = %v, want 1", got)
	}
	if got := testutil.ToFloat64(pr.queueDepth); got != 2 {
		t.Fatalf("queue depth = %v, want 2", got)
	}
	if got := testutil.ToFloat64(pr.cacheHits.WithLabelValues("render")); got != 10 {
		t.Fatalf("cache hits = %v, want 10", got)
	}
}
