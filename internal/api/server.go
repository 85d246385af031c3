// Package api exposes the HTTP interface for the log analyzer service.
package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sigmetapp/seohqs-sub000/internal/clock"
	"github.com/sigmetapp/seohqs-sub000/internal/config"
	"github.com/sigmetapp/seohqs-sub000/internal/metrics"
	"github.com/sigmetapp/seohqs-sub000/internal/queue"
	"github.com/sigmetapp/seohqs-sub000/internal/ratelimit"
	"github.com/sigmetapp/seohqs-sub000/internal/store"
)

// IDGenerator creates run identifiers.
type IDGenerator interface {
	NewRawID() (uuid.UUID, error)
}

// Canceler aborts in-flight analyses.
type Canceler interface {
	Cancel(id uuid.UUID) bool
}

// Server wires HTTP handlers to the queue and run store.
type Server struct {
	router   chi.Router
	repo     store.RunRepository
	queue    queue.Queue
	canceler Canceler
	idGen    IDGenerator
	clock    clock.Clock
	cfg      config.Config
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	repo store.RunRepository,
	q queue.Queue,
	canceler Canceler,
	idGen IDGenerator,
	clk clock.Clock,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		repo:     repo,
		queue:    q,
		canceler: canceler,
		idGen:    idGen,
		clock:    clk,
		cfg:      cfg,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	timeout := time.Duration(cfg.Server.RequestTimeoutS) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	r.Use(timeoutMiddleware(timeout))
	if cfg.Server.RateLimitRPS > 0 {
		r.Use(rateLimitMiddleware(ratelimit.New(ratelimit.Config{
			DefaultRPS:   cfg.Server.RateLimitRPS,
			DefaultBurst: cfg.Server.RateLimitBurst,
		})))
	}
	if cfg.Auth.Enabled {
		r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/analyses", func(r chi.Router) {
			r.Post("/", s.submitAnalysis)
			r.Get("/", s.listAnalyses)
			r.Route("/{run_id}", func(r chi.Router) {
				r.Get("/status", s.getStatus)
				r.Get("/result", s.getResult)
				r.Post("/cancel", s.cancelAnalysis)
			})
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// submitAnalysis accepts a raw log payload, registers the run, and
// queues it for a worker.
func (s *Server) submitAnalysis(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			metrics.ObserveSubmission("rejected", 0)
			writeError(w, http.StatusRequestEntityTooLarge, "payload exceeds size limit")
			return
		}
		writeError(w, http.StatusBadRequest, "read payload failed")
		return
	}

	runID, err := s.idGen.NewRawID()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "generate run id failed")
		return
	}
	now := s.clock.Now()
	if err := s.repo.CreateRun(r.Context(), runID, now); err != nil {
		s.logger.Error("create run failed", zap.String("run_id", runID.String()), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "register run failed")
		return
	}

	item := queue.Item{RunID: runID, Text: string(body), Submitted: now.Unix()}
	if err := s.queue.Enqueue(r.Context(), item); err != nil {
		if errors.Is(err, queue.ErrQueueFull) {
			metrics.ObserveSubmission("queue_full", 0)
			msg := "queue is full"
			if repoErr := s.repo.CompleteRun(r.Context(), runID, s.clock.Now(), store.RunError, &msg); repoErr != nil {
				s.logger.Error("mark rejected run failed", zap.Error(repoErr))
			}
			writeError(w, http.StatusServiceUnavailable, "analysis queue is full")
			return
		}
		writeError(w, http.StatusInternalServerError, "enqueue failed")
		return
	}
	metrics.ObserveSubmission("accepted", len(body))
	writeJSON(w, http.StatusAccepted, map[string]string{
		"run_id": runID.String(),
		"status": string(store.RunRunning),
	})
}

func (s *Server) listAnalyses(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	runs, err := s.repo.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list runs failed")
		return
	}
	if runs == nil {
		runs = []store.AnalysisRun{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	runID, ok := s.runID(w, r)
	if !ok {
		return
	}
	run, err := s.repo.GetRun(r.Context(), runID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "fetch run failed")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) getResult(w http.ResponseWriter, r *http.Request) {
	runID, ok := s.runID(w, r)
	if !ok {
		return
	}
	run, err := s.repo.GetRun(r.Context(), runID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "fetch run failed")
		return
	}
	res, err := s.repo.GetResult(r.Context(), runID)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusConflict, map[string]string{
			"run_id": runID.String(),
			"status": string(run.Status),
			"error":  "result not available",
		})
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "fetch result failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) cancelAnalysis(w http.ResponseWriter, r *http.Request) {
	runID, ok := s.runID(w, r)
	if !ok {
		return
	}
	run, err := s.repo.GetRun(r.Context(), runID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "fetch run failed")
		return
	}
	if run.Status != store.RunRunning {
		writeError(w, http.StatusConflict, "run already finished")
		return
	}
	if s.canceler == nil || !s.canceler.Cancel(runID) {
		// Still queued, not yet picked up by a worker. Mark it directly.
		msg := "canceled via API"
		if err := s.repo.CompleteRun(r.Context(), runID, s.clock.Now(), store.RunCanceled, &msg); err != nil {
			writeError(w, http.StatusInternalServerError, "cancel failed")
			return
		}
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"run_id": runID.String(),
		"status": string(store.RunCanceled),
	})
}

func (s *Server) runID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "run_id")
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid run id")
		return uuid.Nil, false
	}
	return id, true
}
