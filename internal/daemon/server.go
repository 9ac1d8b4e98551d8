package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"git.home.luguber.info/inful/blogsmith/internal/build/queue"
)

// Server exposes the daemon's job API: trigger builds, inspect job status
// and history, cancel waiting jobs, health and metrics.
type Server struct {
	queue   *queue.Queue
	srv     *http.Server
	metrics http.Handler
	started time.Time
}

// NewServer builds the HTTP layer around the job queue. metricsHandler may
// be nil when metrics are not exposed.
func NewServer(listen string, q *queue.Queue, metricsHandler http.Handler) *Server {
	s := &Server{
		queue:   q,
		metrics: metricsHandler,
		started: time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/builds", s.handleEnqueue)
	mux.HandleFunc("GET /api/builds", s.handleList)
	mux.HandleFunc("GET /api/builds/{id}", s.handleJob)
	mux.HandleFunc("DELETE /api/builds/{id}", s.handleCancel)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if metricsHandler != nil {
		mux.Handle("GET /metrics", metricsHandler)
	}

	s.srv = &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	slog.Info("Status server listening", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

type enqueueRequest struct {
	RequesterID string `json:"requester_id,omitempty"`
}

func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if req.RequesterID == "" {
		req.RequesterID = r.RemoteAddr
	}

	job, err := s.queue.Enqueue(req.RequesterID)
	if err != nil {
		if queue.IsBacklogFull(err) {
			writeError(w, http.StatusTooManyRequests, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

type listResponse struct {
	Current *queue.Job   `json:"current,omitempty"`
	Backlog []*queue.Job `json:"backlog"`
	Recent  []*queue.Job `json:"recent"`
}

func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	resp := listResponse{
		Backlog: s.queue.Backlog(),
		Recent:  s.queue.Recent(),
	}
	if cur, ok := s.queue.Current(); ok {
		resp.Current = cur
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.queue.Job(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown job")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.queue.Cancel(id); err != nil {
		if _, ok := s.queue.Job(id); !ok {
			writeError(w, http.StatusNotFound, "unknown job")
			return
		}
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type healthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
	Depth  int    `json:"queue_depth"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status: "ok",
		Uptime: time.Since(s.started).Round(time.Second).String(),
		Depth:  s.queue.Depth(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to encode response", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
