package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"courtedge/internal/metrics"
	"courtedge/internal/models"
	"courtedge/internal/persistence"
)

// RunSource serves archived runs; typically the persistence store.
type RunSource interface {
	LatestRun(ctx context.Context) (models.RunOutput, error)
}

// Server is the read-only serving surface: health, metrics and the
// latest run. It never mutates pipeline state.
type Server struct {
	addr  string
	store RunSource

	mu     sync.RWMutex
	latest *models.RunOutput

	srv *http.Server
}

// NewServer creates the server. store may be nil; /runs/latest then
// serves only runs published in-process.
func NewServer(addr string, store RunSource) *Server {
	return &Server{addr: addr, store: store}
}

// Publish records a finished run for the health and latest-run
// endpoints.
func (s *Server) Publish(run models.RunOutput) {
	s.mu.Lock()
	s.latest = &run
	s.mu.Unlock()
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/runs/latest", s.handleLatestRun).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	return r
}

// Start serves until ctx is canceled, then drains connections.
func (s *Server) Start(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.addr).Msg("http server listening")
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

type healthResponse struct {
	Status     string                `json:"status"`
	RunID      string                `json:"run_id,omitempty"`
	FinishedAt *time.Time            `json:"finished_at,omitempty"`
	Health     models.HealthSnapshot `json:"health"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	latest := s.latest
	s.mu.RUnlock()

	resp := healthResponse{Status: "ok"}
	if latest == nil {
		resp.Status = "no_runs"
	} else {
		resp.RunID = latest.RunID
		resp.FinishedAt = &latest.FinishedAt
		resp.Health = latest.Health
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLatestRun(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	latest := s.latest
	s.mu.RUnlock()
	if latest != nil {
		writeJSON(w, http.StatusOK, latest)
		return
	}

	if s.store != nil {
		run, err := s.store.LatestRun(r.Context())
		if err == nil {
			writeJSON(w, http.StatusOK, run)
			return
		}
		if !errors.Is(err, persistence.ErrNoRuns) {
			log.Warn().Err(err).Msg("latest run lookup failed")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "archive unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "no runs yet"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("response encode failed")
	}
}
