package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/joss/saferoute/internal/metrics"
	"github.com/joss/saferoute/internal/pipeline"
	"github.com/joss/saferoute/internal/route"
	"github.com/joss/saferoute/internal/safety"
	"github.com/joss/saferoute/internal/session"
)

type staticRoutes struct{}

func (staticRoutes) GetRoute(_ context.Context, start, end route.Point, profile string) route.Result {
	return route.Result{Route: &route.Route{
		DistanceKm:  8,
		DurationMin: 16,
		Coordinates: []route.Point{start, end},
		Waypoints:   []route.Waypoint{{Lat: start.Lat, Lon: start.Lon, Index: 0}, {Lat: end.Lat, Lon: end.Lon, Index: 1}},
		Profile:     profile,
	}}
}

type calmSafety struct{}

func (calmSafety) Gather(_ context.Context, _ []route.Waypoint) safety.Report {
	return safety.Report{Signals: safety.Signals{Weather: 0.5, Crime: 0.5, Lighting: 0.5, Time: 0.5}}
}

func newTestServer(t *testing.T) (*Server, *session.Store) {
	t.Helper()
	store, err := session.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	o := pipeline.New(pipeline.Deps{
		Routes:   staticRoutes{},
		Safety:   calmSafety{},
		Sessions: store,
	})
	return New(0, o, store, metrics.New()), store
}

func postJSON(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAnalyzeEndpoint(t *testing.T) {
	s, store := newTestServer(t)

	rec := postJSON(t, s.Handler(), "/api/analyze-route",
		`{"start":"40.7,-74.0","destination":"40.8,-73.9","route_type":"driving-car","session_id":"sess-1"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var res struct {
		Success bool `json:"success"`
		Summary struct {
			DistanceKm float64 `json:"distance_km"`
			RiskLevel  string  `json:"risk_level"`
		} `json:"summary"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !res.Success || res.Summary.DistanceKm != 8 || res.Summary.RiskLevel != "Safe" {
		t.Errorf("response = %+v", res)
	}
	if got := len(store.History("sess-1")); got != 1 {
		t.Errorf("session history = %d, want 1", got)
	}
}

func TestAnalyzeEndpointBadCoordinate(t *testing.T) {
	s, _ := newTestServer(t)

	rec := postJSON(t, s.Handler(), "/api/analyze-route",
		`{"start":"not-a-point","destination":"40.8,-73.9"}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	var res errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Success || res.Error == "" {
		t.Errorf("response = %+v, want well-formed failure", res)
	}
}

func TestBatchEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	rec := postJSON(t, s.Handler(), "/api/batch-analyze",
		`{"routes":[{"start":"40.7,-74.0","destination":"40.8,-73.9"},{"start":"40.7,-74.0","destination":"40.9,-73.8"}],"route_type":"foot-walking"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var res struct {
		Success bool              `json:"success"`
		Count   int               `json:"count"`
		Results []pipeline.Result `json:"results"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !res.Success || res.Count != 2 || len(res.Results) != 2 {
		t.Errorf("response = %+v", res)
	}
}

func TestBatchEndpointEmpty(t *testing.T) {
	s, _ := newTestServer(t)
	rec := postJSON(t, s.Handler(), "/api/batch-analyze", `{"routes":[]}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	postJSON(t, s.Handler(), "/api/analyze-route",
		`{"start":"40.7,-74.0","destination":"40.8,-73.9","session_id":"sess-h"}`)

	req := httptest.NewRequest(http.MethodGet, "/api/session/sess-h/history", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var res struct {
		Success bool `json:"success"`
		Count   int  `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !res.Success || res.Count != 1 {
		t.Errorf("response = %+v", res)
	}
}

func TestHistoryEndpointUnknownSession(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/session/missing/history", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var res struct {
		Success bool `json:"success"`
		Count   int  `json:"count"`
	}
	json.Unmarshal(rec.Body.Bytes(), &res)
	if !res.Success || res.Count != 0 {
		t.Errorf("unknown session must return empty history, got %+v", res)
	}
}

func TestAnalyzeEndpointRejectsEscapingSessionID(t *testing.T) {
	s, _ := newTestServer(t)

	rec := postJSON(t, s.Handler(), "/api/analyze-route",
		`{"start":"40.7,-74.0","destination":"40.8,-73.9","session_id":"../outside"}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var res errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Success || res.Error == "" {
		t.Errorf("response = %+v, want well-formed failure", res)
	}
}

func TestHistoryEndpointRejectsEscapingSessionID(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/session/..%2Foutside/history", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var res errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Success || res.Error == "" {
		t.Errorf("response = %+v, want well-formed failure", res)
	}
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	s, _ := newTestServer(t)

	for _, path := range []string{"/api/health", "/metrics"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("%s: status = %d", path, rec.Code)
		}
	}
}
