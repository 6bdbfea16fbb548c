// Package render provides output formatting for CLI commands.
package render

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/joss/saferoute/internal/pipeline"
	"github.com/joss/saferoute/internal/risk"
	"github.com/joss/saferoute/internal/session"
	"github.com/joss/saferoute/internal/trace"
)

// Renderer handles output formatting.
type Renderer struct {
	pretty bool
}

// New creates a renderer. Pretty output adds color and layout.
func New(pretty bool) *Renderer {
	return &Renderer{pretty: pretty}
}

// IsTerminal reports whether stdout is a tty, the default for pretty.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func levelString(l risk.Level) string {
	switch l {
	case risk.LevelSafe:
		return color.GreenString(string(l))
	case risk.LevelModerate:
		return color.YellowString(string(l))
	default:
		return color.RedString(string(l))
	}
}

// Result formats one analysis outcome.
func (r *Renderer) Result(res pipeline.Result) string {
	var sb strings.Builder

	if !res.OK {
		if r.pretty {
			fmt.Fprintf(&sb, "%s %s\n", color.RedString("✗"), res.Reason)
		} else {
			fmt.Fprintf(&sb, "FAILED: %s\n", res.Reason)
		}
		return sb.String()
	}

	s := res.Summary
	if r.pretty {
		sb.WriteString(color.CyanString("Route Analysis\n"))
		sb.WriteString(strings.Repeat("─", 60) + "\n")
		fmt.Fprintf(&sb, "  Distance: %.1f km   Duration: %.0f min\n", s.DistanceKm, s.DurationMin)
		fmt.Fprintf(&sb, "  Risk:     %.1f/10 %s\n", s.RiskScore, levelString(s.RiskLevel))
		if s.UsedFallback {
			fmt.Fprintf(&sb, "  %s\n", color.HiBlackString("(direct-line estimate, routing service unavailable)"))
		}
	} else {
		fmt.Fprintf(&sb, "distance_km=%.1f duration_min=%.0f risk=%.1f level=%s fallback=%t\n",
			s.DistanceKm, s.DurationMin, s.RiskScore, s.RiskLevel, s.UsedFallback)
	}

	r.breakdown(&sb, res.Risk.Breakdown)

	if res.Optimization != nil {
		r.optimization(&sb, res.Optimization)
	}

	if s.Narrative != "" {
		if r.pretty {
			sb.WriteString("\n" + s.Narrative + "\n")
		} else {
			fmt.Fprintf(&sb, "narrative: %s\n", s.Narrative)
		}
	}
	return sb.String()
}

func (r *Renderer) breakdown(sb *strings.Builder, b risk.Breakdown) {
	rows := []struct {
		name    string
		score   float64
		ceiling float64
	}{
		{"weather", b.Weather, 3},
		{"crime", b.Crime, 3},
		{"lighting", b.Lighting, 2},
		{"time", b.Time, 2},
	}

	if r.pretty {
		sb.WriteString("\n")
		for _, row := range rows {
			bar := strings.Repeat("█", int(row.score*4))
			fmt.Fprintf(sb, "  %-9s %4.1f/%.0f %s\n", row.name, row.score, row.ceiling, bar)
		}
		fmt.Fprintf(sb, "  %s\n", b.Recommendation)
	} else {
		fmt.Fprintf(sb, "weather=%.1f crime=%.1f lighting=%.1f time=%.1f\n", b.Weather, b.Crime, b.Lighting, b.Time)
		fmt.Fprintf(sb, "recommendation: %s\n", b.Recommendation)
	}
}

func (r *Renderer) optimization(sb *strings.Builder, o *pipeline.OptimizationStage) {
	if o.Err != "" {
		if r.pretty {
			fmt.Fprintf(sb, "\n  Alternative: %s\n", color.HiBlackString("none found ("+o.Err+")"))
		} else {
			fmt.Fprintf(sb, "alternative: none (%s)\n", o.Err)
		}
		return
	}
	if o.Alternative == nil {
		return
	}

	c := o.Alternative.Comparison
	if r.pretty {
		verdict := color.HiBlackString("not recommended")
		if o.UseAlternative {
			verdict = color.GreenString("recommended")
		}
		fmt.Fprintf(sb, "\n  Alternative: %s\n", verdict)
		fmt.Fprintf(sb, "    risk %.1f (%+.1f)   distance %+.1f km   time %+.0f min\n",
			o.Alternative.RiskScore, -c.RiskImprovement, c.DistanceDeltaKm, c.DurationDeltaMin)
	} else {
		fmt.Fprintf(sb, "alternative: risk=%.1f better=%t distance_delta=%.1f duration_delta=%.0f\n",
			o.Alternative.RiskScore, o.UseAlternative, c.DistanceDeltaKm, c.DurationDeltaMin)
	}
}

// History formats a session's route records.
func (r *Renderer) History(id string, records []session.RouteRecord, stats session.Statistics) string {
	if len(records) == 0 {
		return fmt.Sprintf("No routes recorded for session %s\n", id)
	}

	var sb strings.Builder
	if r.pretty {
		sb.WriteString(color.CyanString(fmt.Sprintf("Session %s\n", id)))
		sb.WriteString(strings.Repeat("─", 60) + "\n")
	}

	for _, rec := range records {
		timeStr := rec.Timestamp.Format("2006-01-02 15:04")
		if r.pretty {
			fmt.Fprintf(&sb, "  %s  %s → %s  %.1f/10 %s\n",
				color.HiBlackString(timeStr), rec.Start, rec.Destination,
				rec.RiskScore, levelString(risk.Level(rec.RiskLevel)))
		} else {
			fmt.Fprintf(&sb, "[%s] %s -> %s risk=%.1f level=%s\n",
				timeStr, rec.Start, rec.Destination, rec.RiskScore, rec.RiskLevel)
		}
	}

	if r.pretty {
		fmt.Fprintf(&sb, "\n  %d routes, average risk %.1f, %d high-risk\n",
			stats.TotalRoutes, stats.AverageRiskScore, stats.HighRiskRoutes)
	} else {
		fmt.Fprintf(&sb, "total=%d avg_risk=%.1f high_risk=%d\n",
			stats.TotalRoutes, stats.AverageRiskScore, stats.HighRiskRoutes)
	}
	return sb.String()
}

// TraceStats formats per-operation tracer statistics.
func (r *Renderer) TraceStats(stats map[string]trace.OperationStats) string {
	if len(stats) == 0 {
		return "No trace entries\n"
	}

	ops := make([]string, 0, len(stats))
	for op := range stats {
		ops = append(ops, op)
	}
	sort.Strings(ops)

	var sb strings.Builder
	if r.pretty {
		sb.WriteString(color.CyanString("Trace Summary\n"))
		sb.WriteString(strings.Repeat("─", 60) + "\n")
	}
	for _, op := range ops {
		s := stats[op]
		if r.pretty {
			fmt.Fprintf(&sb, "  %-28s %4d calls  avg %s  max %s\n", op, s.Count, s.AvgDuration, s.MaxDuration)
		} else {
			fmt.Fprintf(&sb, "%s count=%d avg=%s max=%s\n", op, s.Count, s.AvgDuration, s.MaxDuration)
		}
	}
	return sb.String()
}
