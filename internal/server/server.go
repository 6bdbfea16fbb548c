// Package server exposes the analysis pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/joss/saferoute/internal/logging"
	"github.com/joss/saferoute/internal/metrics"
	"github.com/joss/saferoute/internal/pipeline"
	"github.com/joss/saferoute/internal/route"
	"github.com/joss/saferoute/internal/session"
)

// Server wires the HTTP API over an orchestrator and its stores.
type Server struct {
	orchestrator *pipeline.Orchestrator
	sessions     *session.Store
	stats        *metrics.Metrics
	log          *logging.Logger
	srv          *http.Server
}

// New builds the server on the given port. Metrics may be nil.
func New(port int, o *pipeline.Orchestrator, sessions *session.Store, stats *metrics.Metrics) *Server {
	s := &Server{
		orchestrator: o,
		sessions:     sessions,
		stats:        stats,
		log:          logging.New("server"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/analyze-route", s.handleAnalyze)
	mux.HandleFunc("POST /api/batch-analyze", s.handleBatch)
	mux.HandleFunc("GET /api/session/{id}/history", s.handleHistory)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	if stats != nil {
		mux.HandleFunc("GET /metrics", stats.Handler())
	}

	s.srv = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	return s
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Start serves in the background.
func (s *Server) Start() error {
	go s.srv.ListenAndServe()
	s.log.Info("server_started", map[string]any{"addr": s.srv.Addr})
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

type analyzeRequest struct {
	Start       string `json:"start"`
	Destination string `json:"destination"`
	RouteType   string `json:"route_type"`
	SessionID   string `json:"session_id"`
}

type batchRequest struct {
	Routes []struct {
		Start       string `json:"start"`
		Destination string `json:"destination"`
	} `json:"routes"`
	RouteType string `json:"route_type"`
	SessionID string `json:"session_id"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// writeError always sends a well-formed failure body; callers never see
// a raw fault.
func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (r analyzeRequest) toPipeline() (pipeline.Request, error) {
	start, err := route.ParsePoint(r.Start)
	if err != nil {
		return pipeline.Request{}, err
	}
	dest, err := route.ParsePoint(r.Destination)
	if err != nil {
		return pipeline.Request{}, err
	}

	profile := r.RouteType
	if profile == "" {
		profile = "driving-car"
	}
	sessionID := r.SessionID
	if sessionID == "" {
		sessionID = "default"
	}
	if err := session.ValidateID(sessionID); err != nil {
		return pipeline.Request{}, fmt.Errorf("session id %q: %w", sessionID, err)
	}
	return pipeline.Request{
		SessionID:   sessionID,
		Start:       start,
		Destination: dest,
		Profile:     profile,
	}, nil
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var body analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req, err := body.toPipeline()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res := s.orchestrator.Analyze(r.Context(), req)
	status := http.StatusOK
	if !res.OK {
		status = http.StatusUnprocessableEntity
	}
	s.writeJSON(w, status, res)
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var body batchRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(body.Routes) == 0 {
		s.writeError(w, http.StatusBadRequest, "no routes supplied")
		return
	}

	reqs := make([]pipeline.Request, 0, len(body.Routes))
	for i, item := range body.Routes {
		req, err := analyzeRequest{
			Start:       item.Start,
			Destination: item.Destination,
			RouteType:   body.RouteType,
			SessionID:   body.SessionID,
		}.toPipeline()
		if err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("route %d: %s", i, err))
			return
		}
		reqs = append(reqs, req)
	}

	results := s.orchestrator.AnalyzeBatch(r.Context(), reqs)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"count":   len(results),
		"results": results,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := session.ValidateID(id); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("session id %q: %s", id, err))
		return
	}
	history := s.sessions.History(id)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"session_id": id,
		"count":      len(history),
		"history":    history,
		"statistics": s.sessions.Statistics(id),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"service": "saferoute",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}
