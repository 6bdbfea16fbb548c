// Package pipeline sequences the five-stage route safety analysis:
// route, safety data, risk scoring, conditional optimization, alert.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/joss/saferoute/internal/alert"
	"github.com/joss/saferoute/internal/archive"
	"github.com/joss/saferoute/internal/config"
	"github.com/joss/saferoute/internal/logging"
	"github.com/joss/saferoute/internal/metrics"
	"github.com/joss/saferoute/internal/narrative"
	"github.com/joss/saferoute/internal/optimize"
	"github.com/joss/saferoute/internal/risk"
	"github.com/joss/saferoute/internal/route"
	"github.com/joss/saferoute/internal/safety"
	"github.com/joss/saferoute/internal/session"
	"github.com/joss/saferoute/internal/trace"
)

// Abort reasons surfaced to callers as Failure results.
const (
	reasonRouteFailed   = "route analysis failed"
	reasonNoCoordinates = "no coordinates"
)

// Request describes one route to analyze.
type Request struct {
	SessionID   string      `json:"session_id"`
	Start       route.Point `json:"start"`
	Destination route.Point `json:"destination"`
	Profile     string      `json:"route_type"`
}

// RouteStage is stage 1 output. IsFallback marks geometry substituted
// from a direct-line estimate after a recovered provider failure.
type RouteStage struct {
	Route      route.Route `json:"route"`
	IsFallback bool        `json:"is_fallback"`
}

// SafetyStage is stage 2 output.
type SafetyStage struct {
	Report safety.Report `json:"report"`
}

// RiskStage is stage 3 output.
type RiskStage struct {
	Breakdown risk.Breakdown `json:"breakdown"`
}

// OptimizationStage is stage 4 output, present only when the risk gate
// fired. An internal failure is carried in Err and never aborts the
// pipeline.
type OptimizationStage struct {
	Needed         bool                  `json:"needed"`
	Alternative    *optimize.Alternative `json:"alternative,omitempty"`
	UseAlternative bool                  `json:"use_alternative"`
	Err            string                `json:"error,omitempty"`
}

// AlertStage is stage 5 output.
type AlertStage struct {
	Notification alert.Notification `json:"notification"`
	Delivered    bool               `json:"delivered"`
}

// Summary is the caller-facing digest of a successful run.
type Summary struct {
	DistanceKm             float64    `json:"distance_km"`
	DurationMin            float64    `json:"duration_minutes"`
	RiskScore              float64    `json:"risk_score"`
	RiskLevel              risk.Level `json:"risk_level"`
	Recommendation         string     `json:"recommendation"`
	AlternativeRecommended bool       `json:"alternative_recommended"`
	UsedFallback           bool       `json:"used_fallback"`
	Narrative              string     `json:"narrative,omitempty"`
}

// Result is the discriminated outcome of one pipeline run. OK selects
// between the Success shape (all stages plus Summary) and the Failure
// shape (Reason plus whatever stages completed).
type Result struct {
	OK           bool               `json:"success"`
	Reason       string             `json:"reason,omitempty"`
	Route        *RouteStage        `json:"route_stage,omitempty"`
	Safety       *SafetyStage       `json:"safety_stage,omitempty"`
	Risk         *RiskStage         `json:"risk_stage,omitempty"`
	Optimization *OptimizationStage `json:"optimization_stage,omitempty"`
	Alert        *AlertStage        `json:"alert_stage,omitempty"`
	Summary      *Summary           `json:"summary,omitempty"`
}

// RouteProvider resolves route geometry. A failed lookup may carry
// fallback geometry in its Result.
type RouteProvider interface {
	GetRoute(ctx context.Context, start, end route.Point, profile string) route.Result
}

// SafetyProvider gathers per-waypoint safety signals.
type SafetyProvider interface {
	Gather(ctx context.Context, waypoints []route.Waypoint) safety.Report
}

// OptimizationProvider searches for a lower-risk alternative.
type OptimizationProvider interface {
	FindAlternative(ctx context.Context, start, end route.Point, primary route.Route, primaryRisk float64) (optimize.Alternative, error)
}

// AlertSink persists composed notifications.
type AlertSink interface {
	Deliver(sessionID string, n alert.Notification) alert.Record
}

// Orchestrator drives the pipeline. Sessions and the tracer are
// side-channels written by the orchestrator, never read by stages.
type Orchestrator struct {
	routes    RouteProvider
	safety    SafetyProvider
	optimizer OptimizationProvider
	narrator  narrative.Generator
	alerts    AlertSink

	sessions *session.Store
	tracer   *trace.Tracer
	log      *logging.Logger
	stats    *metrics.Metrics
	archive  *archive.Archive

	recovery *logging.RecoveryHandler
}

// Deps collects the orchestrator's collaborators. Routes, Safety, and
// Sessions are required; the rest are optional side-channels.
type Deps struct {
	Routes    RouteProvider
	Safety    SafetyProvider
	Optimizer OptimizationProvider
	Narrator  narrative.Generator
	Alerts    AlertSink
	Sessions  *session.Store
	Tracer    *trace.Tracer
	Logger    *logging.Logger
	Metrics   *metrics.Metrics
	Archive   *archive.Archive
}

// New builds an orchestrator. A nil tracer is replaced with a disabled
// one and a nil narrator with the deterministic template generator.
func New(d Deps) *Orchestrator {
	if d.Tracer == nil {
		d.Tracer = trace.New(false)
	}
	if d.Logger == nil {
		d.Logger = logging.New("pipeline")
	}
	if d.Narrator == nil {
		d.Narrator = narrative.TemplateGenerator{}
	}
	return &Orchestrator{
		routes:    d.Routes,
		safety:    d.Safety,
		optimizer: d.Optimizer,
		narrator:  d.Narrator,
		alerts:    d.Alerts,
		sessions:  d.Sessions,
		tracer:    d.Tracer,
		log:       d.Logger,
		stats:     d.Metrics,
		archive:   d.Archive,
		recovery:  logging.NewRecoveryHandler("pipeline"),
	}
}

// Analyze runs the full pipeline for one request. It never panics: any
// uncaught fault is converted into a Failure result at this boundary.
func (o *Orchestrator) Analyze(ctx context.Context, req Request) Result {
	started := time.Now()
	outer := o.tracer.Start("pipeline.analyze", map[string]any{
		"session": req.SessionID,
		"profile": req.Profile,
	})

	var res Result
	panicErr := o.recovery.WrapError(func() error {
		res = o.run(ctx, req)
		return nil
	})
	if panicErr != nil {
		res = Result{OK: false, Reason: panicErr.Error()}
	}

	var spanErr error
	if !res.OK {
		spanErr = errors.New(res.Reason)
		o.log.Error("analysis_failed", map[string]any{"session": req.SessionID, "reason": res.Reason}, nil)
	} else {
		o.log.TimedEvent("analysis_complete", started, map[string]any{
			"session":    req.SessionID,
			"risk_score": res.Summary.RiskScore,
			"risk_level": res.Summary.RiskLevel,
			"fallback":   res.Summary.UsedFallback,
		})
	}
	outer.End(spanErr)

	if o.stats != nil {
		usedFallback := res.Summary != nil && res.Summary.UsedFallback
		o.stats.RecordAnalysis(res.OK, usedFallback, time.Since(started).Milliseconds())
	}
	return res
}

// run executes the stage sequence. Panics escape to Analyze's boundary.
func (o *Orchestrator) run(ctx context.Context, req Request) Result {
	res := Result{}

	// Stage 1: route.
	routeStage, ok := o.routeStage(ctx, req)
	if !ok {
		return Result{OK: false, Reason: reasonRouteFailed}
	}
	res.Route = routeStage

	// Stage 2: safety data. Empty geometry is fatal, nothing downstream
	// has meaningful input.
	if len(routeStage.Route.Coordinates) == 0 {
		return Result{OK: false, Reason: reasonNoCoordinates, Route: routeStage}
	}
	res.Safety = o.safetyStage(ctx, routeStage.Route.Waypoints)

	// Stage 3: risk scoring.
	res.Risk = o.riskStage(res.Safety.Report.Signals)

	// Stage 4: optimization, gated on the moderate threshold.
	if res.Risk.Breakdown.Total >= config.RiskThresholdModerate {
		res.Optimization = o.optimizationStage(ctx, req, routeStage.Route, res.Risk.Breakdown.Total)
	}

	// Stage 5: alert, always.
	res.Alert = o.alertStage(req.SessionID, res.Risk.Breakdown)

	res.OK = true
	res.Summary = o.summarize(res)

	o.recordSuccess(ctx, req, res)
	return res
}

func (o *Orchestrator) routeStage(ctx context.Context, req Request) (*RouteStage, bool) {
	var result route.Result
	span := o.tracer.Start("pipeline.route", map[string]any{"profile": req.Profile})
	defer func() { span.End(result.Err) }()
	result = o.routes.GetRoute(ctx, req.Start, req.Destination, req.Profile)

	switch {
	case result.OK():
		return &RouteStage{Route: *result.Route}, true
	case result.Fallback != nil:
		// Recovered failure: substitute the estimate and continue.
		o.log.Warn("route_fallback", map[string]any{"session": req.SessionID}, result.Err)
		return &RouteStage{Route: *result.Fallback, IsFallback: true}, true
	default:
		return nil, false
	}
}

func (o *Orchestrator) safetyStage(ctx context.Context, waypoints []route.Waypoint) *SafetyStage {
	span := o.tracer.Start("pipeline.safety_data", map[string]any{"waypoints": len(waypoints)})
	defer span.End(nil)
	report := o.safety.Gather(ctx, waypoints)
	return &SafetyStage{Report: report}
}

func (o *Orchestrator) riskStage(s safety.Signals) *RiskStage {
	span := o.tracer.Start("pipeline.risk_scoring", nil)
	b := risk.Score(s.Weather, s.Crime, s.Lighting, s.Time)
	span.End(nil)
	return &RiskStage{Breakdown: b}
}

func (o *Orchestrator) optimizationStage(ctx context.Context, req Request, primary route.Route, score float64) *OptimizationStage {
	stage := &OptimizationStage{Needed: true}
	if o.optimizer == nil {
		stage.Err = "no optimization provider configured"
		return stage
	}

	var err error
	var alt optimize.Alternative
	span := o.tracer.Start("pipeline.optimization", map[string]any{"risk_score": score})
	defer func() { span.End(err) }()
	alt, err = o.optimizer.FindAlternative(ctx, req.Start, req.Destination, primary, score)

	if err != nil {
		// Non-fatal: surfaced on the stage, never aborts the run.
		stage.Err = err.Error()
		return stage
	}
	stage.Alternative = &alt
	stage.UseAlternative = alt.Comparison.IsBetter
	if o.stats != nil {
		o.stats.RecordOptimization()
	}
	return stage
}

func (o *Orchestrator) alertStage(sessionID string, b risk.Breakdown) *AlertStage {
	span := o.tracer.Start("pipeline.alert", map[string]any{"risk_level": b.Level})
	n := alert.Compose(b, time.Now())
	stage := &AlertStage{Notification: n}
	if o.alerts != nil {
		o.alerts.Deliver(sessionID, n)
		stage.Delivered = true
		if o.stats != nil {
			o.stats.RecordAlert()
		}
	}
	span.End(nil)
	return stage
}

func (o *Orchestrator) summarize(res Result) *Summary {
	b := res.Risk.Breakdown
	s := &Summary{
		DistanceKm:     res.Route.Route.DistanceKm,
		DurationMin:    res.Route.Route.DurationMin,
		RiskScore:      b.Total,
		RiskLevel:      b.Level,
		Recommendation: b.Recommendation,
		UsedFallback:   res.Route.IsFallback,
	}
	if res.Optimization != nil {
		s.AlternativeRecommended = res.Optimization.UseAlternative
	}
	s.Narrative = o.narrator.Summarize(res.Route.Route, b, res.Route.IsFallback)
	return s
}

// recordSuccess writes the session record and archive entry. Failure
// results never reach here, so a failed run leaves no session trace.
func (o *Orchestrator) recordSuccess(ctx context.Context, req Request, res Result) {
	record := session.RouteRecord{
		Timestamp:   time.Now().UTC(),
		Start:       formatPoint(req.Start),
		Destination: formatPoint(req.Destination),
		RouteType:   req.Profile,
		RiskScore:   res.Risk.Breakdown.Total,
		RiskLevel:   string(res.Risk.Breakdown.Level),
		DistanceKm:  res.Route.Route.DistanceKm,
		DurationMin: res.Route.Route.DurationMin,
	}
	if o.sessions != nil {
		if err := o.sessions.AppendRecord(req.SessionID, record); err != nil {
			o.log.Error("session_append_failed", map[string]any{"session": req.SessionID}, err)
		}
	}

	if o.archive != nil {
		entry := archive.Entry{
			ID:           uuid.NewString(),
			SessionID:    req.SessionID,
			Start:        record.Start,
			Destination:  record.Destination,
			Profile:      req.Profile,
			RiskScore:    record.RiskScore,
			RiskLevel:    record.RiskLevel,
			DistanceKm:   record.DistanceKm,
			DurationMin:  record.DurationMin,
			UsedFallback: res.Route.IsFallback,
			Breakdown:    archive.MarshalBreakdown(res.Risk.Breakdown),
		}
		if err := o.archive.Record(ctx, entry); err != nil {
			o.log.Error("archive_failed", map[string]any{"session": req.SessionID}, err)
		}
	}
}

func formatPoint(p route.Point) string {
	return fmt.Sprintf("%.6f,%.6f", p.Lat, p.Lon)
}
