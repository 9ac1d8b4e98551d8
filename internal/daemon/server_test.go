package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/blogsmith/internal/build"
	"git.home.luguber.info/inful/blogsmith/internal/build/queue"
)

// blockingBuilder parks every build until released.
type blockingBuilder struct {
	gate chan struct{}
}

func (b *blockingBuilder) Build(ctx context.Context, job *queue.Job, fn build.ProgressFunc) *build.Result {
	select {
	case <-b.gate:
	case <-ctx.Done():
	}
	return &build.Result{Success: true, Message: "ok"}
}

func newTestServer(t *testing.T) (*Server, *blockingBuilder) {
	t.Helper()
	b := &blockingBuilder{gate: make(chan struct{})}
	q := queue.New(b, queue.WithBacklogLimit(2))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	q.Start(ctx)
	t.Cleanup(q.Stop)
	return NewServer(":0", q, nil), b
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServer_EnqueueAndFetchJob(t *testing.T) {
	s, b := newTestServer(t)
	h := s.Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/builds", `{"requester_id":"alice"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var job queue.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, "alice", job.RequesterID)

	rec = doJSON(t, h, http.MethodGet, "/api/builds/"+job.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/builds/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	close(b.gate)
}

func TestServer_BacklogRejectionIs429(t *testing.T) {
	s, b := newTestServer(t)
	h := s.Handler()

	// first job starts running, then fill the backlog of 2
	rec := doJSON(t, h, http.MethodPost, "/api/builds", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	var first queue.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))
	waitForRunning(t, s, first.ID)

	for range 2 {
		rec = doJSON(t, h, http.MethodPost, "/api/builds", "")
		require.Equal(t, http.StatusAccepted, rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/builds", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	close(b.gate)
}

func TestServer_CancelQueuedJob(t *testing.T) {
	s, b := newTestServer(t)
	h := s.Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/builds", "")
	var running queue.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &running))
	waitForRunning(t, s, running.ID)

	rec = doJSON(t, h, http.MethodPost, "/api/builds", "")
	var waiting queue.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &waiting))

	rec = doJSON(t, h, http.MethodDelete, "/api/builds/"+waiting.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// running jobs cannot be cancelled
	rec = doJSON(t, h, http.MethodDelete, "/api/builds/"+running.ID, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, h, http.MethodDelete, "/api/builds/ghost", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	close(b.gate)
}

func TestServer_ListAndHealth(t *testing.T) {
	s, b := newTestServer(t)
	h := s.Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/builds", "")
	var job queue.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	waitForRunning(t, s, job.ID)

	rec = doJSON(t, h, http.MethodGet, "/api/builds", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list listResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.NotNil(t, list.Current)
	assert.Equal(t, job.ID, list.Current.ID)

	rec = doJSON(t, h, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var health healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)

	close(b.gate)
}

func waitForRunning(t *testing.T, s *Server, jobID string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cur, ok := s.queue.Current(); ok && cur.ID == jobID {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s never started running", jobID)
}
