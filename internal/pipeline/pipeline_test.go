package pipeline

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/joss/saferoute/internal/alert"
	"github.com/joss/saferoute/internal/logging"
	"github.com/joss/saferoute/internal/optimize"
	"github.com/joss/saferoute/internal/risk"
	"github.com/joss/saferoute/internal/route"
	"github.com/joss/saferoute/internal/safety"
	"github.com/joss/saferoute/internal/session"
	"github.com/joss/saferoute/internal/trace"
)

type routeFunc func(ctx context.Context, start, end route.Point, profile string) route.Result

func (f routeFunc) GetRoute(ctx context.Context, start, end route.Point, profile string) route.Result {
	return f(ctx, start, end, profile)
}

type fakeSafety struct {
	signals safety.Signals
	panics  bool
}

func (f *fakeSafety) Gather(_ context.Context, _ []route.Waypoint) safety.Report {
	if f.panics {
		panic("safety provider exploded")
	}
	return safety.Report{Signals: f.signals}
}

type fakeOptimizer struct {
	alt   optimize.Alternative
	err   error
	calls int
}

func (f *fakeOptimizer) FindAlternative(_ context.Context, _, _ route.Point, _ route.Route, _ float64) (optimize.Alternative, error) {
	f.calls++
	if f.err != nil {
		return optimize.Alternative{}, f.err
	}
	return f.alt, nil
}

type fakeSink struct {
	delivered []alert.Notification
}

func (f *fakeSink) Deliver(_ string, n alert.Notification) alert.Record {
	f.delivered = append(f.delivered, n)
	return alert.Record{ID: "alert-test"}
}

func liveRoute() route.Result {
	return route.Result{Route: &route.Route{
		DistanceKm:  10,
		DurationMin: 20,
		Coordinates: []route.Point{{Lat: 40.7, Lon: -74.0}, {Lat: 40.8, Lon: -73.9}},
		Waypoints:   []route.Waypoint{{Lat: 40.7, Lon: -74.0, Index: 0}, {Lat: 40.8, Lon: -73.9, Index: 1}},
		Profile:     "driving-car",
	}}
}

func staticRoutes(res route.Result) routeFunc {
	return func(context.Context, route.Point, route.Point, string) route.Result { return res }
}

func newOrchestrator(t *testing.T, routes RouteProvider, sfty SafetyProvider, opt OptimizationProvider, sink AlertSink) (*Orchestrator, *session.Store, *trace.Tracer) {
	t.Helper()
	store, err := session.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	tracer := trace.New(true)
	o := New(Deps{
		Routes:    routes,
		Safety:    sfty,
		Optimizer: opt,
		Alerts:    sink,
		Sessions:  store,
		Tracer:    tracer,
		Logger:    logging.New("pipeline").WithOutput(io.Discard),
	})
	return o, store, tracer
}

func request() Request {
	return Request{
		SessionID:   "sess-1",
		Start:       route.Point{Lat: 40.7, Lon: -74.0},
		Destination: route.Point{Lat: 40.8, Lon: -73.9},
		Profile:     "driving-car",
	}
}

func TestAnalyzeSafeRoute(t *testing.T) {
	opt := &fakeOptimizer{}
	sink := &fakeSink{}
	o, store, _ := newOrchestrator(t, staticRoutes(liveRoute()),
		&fakeSafety{signals: safety.Signals{Weather: 0.5, Crime: 0.5, Lighting: 0.5, Time: 0.5}}, opt, sink)

	res := o.Analyze(context.Background(), request())
	if !res.OK {
		t.Fatalf("Analyze failed: %s", res.Reason)
	}
	if res.Risk.Breakdown.Level != risk.LevelSafe {
		t.Errorf("level = %s, want Safe", res.Risk.Breakdown.Level)
	}
	if res.Optimization != nil {
		t.Error("optimization stage must be absent below the gate")
	}
	if opt.calls != 0 {
		t.Errorf("optimizer called %d times below the gate", opt.calls)
	}
	if res.Alert == nil {
		t.Fatal("alert stage must always run")
	}
	if len(sink.delivered) != 1 {
		t.Errorf("delivered = %d notifications, want 1", len(sink.delivered))
	}
	if res.Summary == nil || res.Summary.DistanceKm != 10 || res.Summary.RiskScore != 2 {
		t.Errorf("summary = %+v", res.Summary)
	}
	if res.Summary.Narrative == "" {
		t.Error("summary narrative missing")
	}
	if got := len(store.History("sess-1")); got != 1 {
		t.Errorf("session history = %d records, want 1", got)
	}
}

func TestAnalyzeFallbackSubstitution(t *testing.T) {
	fallback := route.Result{
		Fallback: &route.Route{
			DistanceKm:  5,
			DurationMin: 10,
			Coordinates: []route.Point{{Lat: 40.7, Lon: -74.0}, {Lat: 40.8, Lon: -73.9}},
			Waypoints:   []route.Waypoint{{Index: 0}, {Index: 1}},
			Profile:     "driving-car",
		},
		Err: errors.New("ORS API key not configured"),
	}
	o, store, _ := newOrchestrator(t, staticRoutes(fallback),
		&fakeSafety{signals: safety.Signals{Weather: 0.5, Crime: 0.5, Lighting: 0.5, Time: 0.5}}, nil, nil)

	res := o.Analyze(context.Background(), request())
	if !res.OK {
		t.Fatalf("recovered failure must not abort: %s", res.Reason)
	}
	if !res.Route.IsFallback || !res.Summary.UsedFallback {
		t.Error("fallback substitution must be flagged")
	}
	if got := len(store.History("sess-1")); got != 1 {
		t.Errorf("fallback success must still append, got %d records", got)
	}
}

func TestAnalyzeAbortsWithoutFallback(t *testing.T) {
	o, store, _ := newOrchestrator(t, staticRoutes(route.Result{Err: errors.New("boom")}),
		&fakeSafety{}, nil, nil)

	res := o.Analyze(context.Background(), request())
	if res.OK {
		t.Fatal("expected failure")
	}
	if res.Reason != "route analysis failed" {
		t.Errorf("reason = %q", res.Reason)
	}
	if got := len(store.History("sess-1")); got != 0 {
		t.Errorf("failed run must not append, got %d records", got)
	}
}

func TestAnalyzeAbortsOnEmptyCoordinates(t *testing.T) {
	empty := route.Result{Route: &route.Route{DistanceKm: 3, Profile: "driving-car"}}
	o, store, _ := newOrchestrator(t, staticRoutes(empty), &fakeSafety{}, nil, nil)

	res := o.Analyze(context.Background(), request())
	if res.OK {
		t.Fatal("expected failure")
	}
	if res.Reason != "no coordinates" {
		t.Errorf("reason = %q", res.Reason)
	}
	if res.Route == nil {
		t.Error("partial route stage should be carried on the failure")
	}
	if got := len(store.History("sess-1")); got != 0 {
		t.Errorf("failed run must not append, got %d records", got)
	}
}

func TestOptimizationGateBoundary(t *testing.T) {
	cases := []struct {
		name    string
		signals safety.Signals
		gated   bool
	}{
		{"below", safety.Signals{Weather: 1, Crime: 1, Lighting: 1, Time: 0.9}, false},
		{"at threshold", safety.Signals{Weather: 1, Crime: 1, Lighting: 1, Time: 1}, true},
		{"above", safety.Signals{Weather: 3, Crime: 2, Lighting: 2, Time: 2}, true},
	}
	for _, tc := range cases {
		opt := &fakeOptimizer{alt: optimize.Alternative{Comparison: optimize.Comparison{RiskImprovement: 1.5, IsBetter: true}}}
		o, _, _ := newOrchestrator(t, staticRoutes(liveRoute()), &fakeSafety{signals: tc.signals}, opt, nil)

		res := o.Analyze(context.Background(), request())
		if !res.OK {
			t.Fatalf("%s: Analyze failed: %s", tc.name, res.Reason)
		}
		if tc.gated && res.Optimization == nil {
			t.Errorf("%s: optimization stage missing at total %.1f", tc.name, res.Risk.Breakdown.Total)
		}
		if !tc.gated && res.Optimization != nil {
			t.Errorf("%s: optimization stage present at total %.1f", tc.name, res.Risk.Breakdown.Total)
		}
		if tc.gated && !res.Summary.AlternativeRecommended {
			t.Errorf("%s: better alternative must be recommended", tc.name)
		}
	}
}

func TestOptimizationFailureIsNonFatal(t *testing.T) {
	opt := &fakeOptimizer{err: errors.New("no alternative route found")}
	o, _, _ := newOrchestrator(t, staticRoutes(liveRoute()),
		&fakeSafety{signals: safety.Signals{Weather: 2, Crime: 2, Lighting: 1, Time: 1}}, opt, nil)

	res := o.Analyze(context.Background(), request())
	if !res.OK {
		t.Fatalf("optimization failure must not abort: %s", res.Reason)
	}
	if res.Optimization == nil || !res.Optimization.Needed {
		t.Fatal("optimization stage must be present and marked needed")
	}
	if res.Optimization.Err == "" || res.Optimization.Alternative != nil {
		t.Errorf("stage = %+v, want captured error and no alternative", res.Optimization)
	}
	if res.Summary.AlternativeRecommended {
		t.Error("failed search must not recommend an alternative")
	}
}

func TestAnalyzeConvertsPanics(t *testing.T) {
	o, store, _ := newOrchestrator(t, staticRoutes(liveRoute()), &fakeSafety{panics: true}, nil, nil)

	res := o.Analyze(context.Background(), request())
	if res.OK {
		t.Fatal("panic must surface as failure")
	}
	if !strings.Contains(res.Reason, "safety provider exploded") {
		t.Errorf("reason = %q, want the panic message", res.Reason)
	}
	if got := len(store.History("sess-1")); got != 0 {
		t.Errorf("panicked run must not append, got %d records", got)
	}
}

type explodingWeather struct{}

func (explodingWeather) Current(context.Context, float64, float64) (safety.WeatherObservation, error) {
	panic("weather provider exploded")
}

type explodingLighting struct{}

func (explodingLighting) Conditions(context.Context, float64, float64, time.Time) (safety.LightingObservation, error) {
	panic("lighting provider exploded")
}

type explodingCrime struct{}

func (explodingCrime) Assess(context.Context, float64, float64, float64) (safety.CrimeObservation, error) {
	panic("crime provider exploded")
}

func TestAnalyzeSurvivesPanickingProviders(t *testing.T) {
	noon := func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	gatherer := safety.NewGatherer(explodingWeather{}, explodingLighting{}, explodingCrime{}, noon)
	o, store, _ := newOrchestrator(t, staticRoutes(liveRoute()), gatherer, nil, nil)

	res := o.Analyze(context.Background(), request())
	if !res.OK {
		t.Fatalf("provider panics must not fail the analysis: %s", res.Reason)
	}

	want := safety.Signals{Weather: 0.5, Crime: 0.5, Lighting: 0.5, Time: 0.5}
	if res.Safety == nil || res.Safety.Report.Signals != want {
		t.Fatalf("safety stage = %+v, want default signals %+v", res.Safety, want)
	}
	if res.Risk.Breakdown.Level != risk.LevelSafe {
		t.Errorf("level = %s, want Safe", res.Risk.Breakdown.Level)
	}
	if got := len(store.History("sess-1")); got != 1 {
		t.Errorf("session history = %d records, want 1", got)
	}
}

func TestAnalyzeTracesStages(t *testing.T) {
	o, _, tracer := newOrchestrator(t, staticRoutes(liveRoute()),
		&fakeSafety{signals: safety.Signals{Weather: 0.5, Crime: 0.5, Lighting: 0.5, Time: 0.5}}, nil, nil)

	o.Analyze(context.Background(), request())

	for _, op := range []string{"pipeline.analyze", "pipeline.route", "pipeline.safety_data", "pipeline.risk_scoring", "pipeline.alert"} {
		if len(tracer.Entries(op)) != 1 {
			t.Errorf("operation %s: %d entries, want 1", op, len(tracer.Entries(op)))
		}
	}
	if len(tracer.Entries("pipeline.optimization")) != 0 {
		t.Error("skipped optimization must not record a span")
	}
}

func TestSessionStatisticsAccumulate(t *testing.T) {
	o, store, _ := newOrchestrator(t, staticRoutes(liveRoute()),
		&fakeSafety{signals: safety.Signals{Weather: 0.5, Crime: 0.5, Lighting: 0.5, Time: 0.5}}, nil, nil)

	for i := 0; i < 4; i++ {
		if res := o.Analyze(context.Background(), request()); !res.OK {
			t.Fatalf("Analyze failed: %s", res.Reason)
		}
	}

	stats := store.Statistics("sess-1")
	if stats.TotalRoutes != 4 {
		t.Errorf("total routes = %d, want 4", stats.TotalRoutes)
	}
	if stats.AverageRiskScore != 2 {
		t.Errorf("average risk = %v, want 2", stats.AverageRiskScore)
	}
}
