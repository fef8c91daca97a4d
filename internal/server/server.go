// Package server exposes the REST surface: newsletter generation, manual
// article submission, and K8s probes.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cpeq/infolettre-automatique/internal/adapters/database"
	"github.com/cpeq/infolettre-automatique/internal/service"
	"github.com/cpeq/infolettre-automatique/pkg/logger"
	"github.com/cpeq/infolettre-automatique/pkg/models"
)

// Server is the HTTP front end.
type Server struct {
	server     *http.Server
	svc        *service.Service
	db         *database.DB
	runTimeout time.Duration
	ready      bool
	readyMu    sync.RWMutex
	startTime  time.Time
}

// NewServer wires the REST routes.
func NewServer(port string, svc *service.Service, db *database.DB, runTimeout time.Duration) *Server {
	mux := http.NewServeMux()

	s := &Server{
		server: &http.Server{
			Addr:         ":" + port,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		svc:        svc,
		db:         db,
		runTimeout: runTimeout,
		startTime:  time.Now(),
	}

	mux.HandleFunc("GET /generate-newsletter", s.handleGenerate)
	mux.HandleFunc("POST /add-news", s.handleAddNews)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", s.handleReadiness)

	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	logger.Info("http server starting", zap.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully stops the server.
func (s *Server) Stop(ctx context.Context) error {
	logger.Info("stopping http server...")
	return s.server.Shutdown(ctx)
}

// SetReady marks the service as ready.
func (s *Server) SetReady(ready bool) {
	s.readyMu.Lock()
	defer s.readyMu.Unlock()
	s.ready = ready
}

// handleGenerate launches a generation run in the background and answers
// immediately; a run can take many minutes.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.runTimeout)
		defer cancel()

		if _, err := s.svc.GenerateNewsletter(ctx, "api"); err != nil {
			if errors.Is(err, service.ErrRunInProgress) {
				logger.Warn("generation request ignored, run already in progress")
				return
			}
			logger.Error("newsletter generation failed", zap.Error(err))
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "accepted",
	})
}

func (s *Server) handleAddNews(w http.ResponseWriter, r *http.Request) {
	var news models.News
	if err := json.NewDecoder(r.Body).Decode(&news); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if news.Title == "" || news.Content == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "title and content are required"})
		return
	}

	produced, err := s.svc.AddNews(r.Context(), news)
	if err != nil {
		logger.Error("failed to add news", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to process article"})
		return
	}

	writeJSON(w, http.StatusCreated, produced)
}

// handleHealth is the liveness probe: 200 as long as the process runs.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"uptime": time.Since(s.startTime).Round(time.Second).String(),
	})
}

// handleReadiness is the readiness probe: 200 once startup completed and the
// database answers.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	s.readyMu.RLock()
	ready := s.ready
	s.readyMu.RUnlock()

	checks := make(map[string]string)
	if err := s.db.Health(); err != nil {
		checks["database"] = "unhealthy: " + err.Error()
		ready = false
	} else {
		checks["database"] = "healthy"
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]interface{}{
		"ready":  ready,
		"checks": checks,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
