// Package api exposes a small read-only status surface over HTTP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/ctxguard-project/ctxguard/internal/core"
	"github.com/ctxguard-project/ctxguard/internal/keystroke"
)

// Server serves engine status, detector diagnostics, and the active config.
type Server struct {
	engine   *core.Engine
	detector *keystroke.Detector
	cfg      *core.Config
	server   *http.Server
	logger   zerolog.Logger
	started  time.Time
}

// NewServer creates the status server.
func NewServer(engine *core.Engine, detector *keystroke.Detector, cfg *core.Config, logger zerolog.Logger) *Server {
	s := &Server{
		engine:   engine,
		detector: detector,
		cfg:      cfg,
		logger:   logger.With().Str("component", "api_server").Logger(),
		started:  time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/baseline", s.handleBaseline)
	mux.HandleFunc("/api/v1/config", s.handleConfig)

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Start begins serving in a background goroutine.
func (s *Server) Start() {
	go func() {
		s.logger.Info().Str("addr", s.server.Addr).Msg("status API listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("status API server failed")
		}
	}()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := map[string]interface{}{
		"running":        s.engine.Running(),
		"uptime_seconds": int(time.Since(s.started).Seconds()),
		"current":        s.engine.Current(),
	}
	writeJSON(w, resp, s.logger)
}

func (s *Server) handleBaseline(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.detector == nil {
		http.Error(w, "detector not configured", http.StatusNotFound)
		return
	}

	b := s.detector.Baseline()
	resp := map[string]interface{}{
		"baseline": map[string]interface{}{
			"mean_dwell_ms":  b.MeanDwellMs,
			"dwell_var":      b.DwellVar,
			"mean_flight_ms": b.MeanFlightMs,
			"flight_var":     b.FlightVar,
			"count":          b.Count,
		},
		"established": b.Established(s.cfg.Keystroke.MinBaselineSamples),
		"wpm":         s.detector.WPM(),
		"accuracy":    s.detector.Accuracy(),
		"debug":       s.detector.DebugSnapshot(),
	}
	writeJSON(w, resp, s.logger)
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// The webhook URL may embed a token; don't echo it.
	sanitized := *s.cfg
	if sanitized.Respond.WebhookURL != "" {
		sanitized.Respond.WebhookURL = "(configured)"
	}
	writeJSON(w, sanitized, s.logger)
}

func writeJSON(w http.ResponseWriter, v interface{}, logger zerolog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error().Err(err).Msg("failed to encode response")
	}
}
