package observability

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

// capture swaps the default logger for one writing JSON to a buffer and
// restores it when the test ends.
func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestInfoContext_AttachesJobIDAndPhase(t *testing.T) {
	buf := capture(t)

	ctx := WithJobID(context.Background(), "job-1")
	ctx = WithPhase(ctx, "Verification")
	InfoContext(ctx, "checking output", slog.String("artifact", "index.html"))

	line := buf.String()
	for _, want := range []string{`"job.id":"job-1"`, `"phase":"Verification"`, `"artifact":"index.html"`} {
		if !strings.Contains(line, want) {
			t.Fatalf("log line missing %s: %s", want, line)
		}
	}
}

func TestWithPhase_PreservesJobID(t *testing.T) {
	buf := capture(t)

	ctx := WithJobID(context.Background(), "job-2")
	ctx = WithPhase(ctx, "Cleanup")
	WarnContext(ctx, "cleanup slow")

	if line := buf.String(); !strings.Contains(line, `"job.id":"job-2"`) {
		t.Fatalf("job id lost after WithPhase: %s", line)
	}
}

func TestLevelHelpers_OmitEmptyContext(t *testing.T) {
	buf := capture(t)

	DebugContext(context.Background(), "plain")
	ErrorContext(context.Background(), "also plain")

	if line := buf.String(); strings.Contains(line, "job.id") || strings.Contains(line, `"phase"`) {
		t.Fatalf("empty context produced attrs: %s", line)
	}
}
