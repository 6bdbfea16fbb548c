// Package narrative renders a human-readable summary of an analysis.
package narrative

import (
	"fmt"
	"strings"

	"github.com/joss/saferoute/internal/risk"
	"github.com/joss/saferoute/internal/route"
)

// Generator turns an analyzed route into prose. Implementations may call
// out to an external model; the default is a deterministic template.
type Generator interface {
	Summarize(r route.Route, b risk.Breakdown, usedFallback bool) string
}

// TemplateGenerator is the default deterministic Generator.
type TemplateGenerator struct{}

// Summarize renders a fixed-form summary of the route and its risks.
func (TemplateGenerator) Summarize(r route.Route, b risk.Breakdown, usedFallback bool) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Your %.1f km route (about %.0f min) is rated %s with a risk score of %.1f out of 10.",
		r.DistanceKm, r.DurationMin, strings.ToLower(string(b.Level)), b.Total)

	if len(b.PrimaryRisks) > 0 {
		names := make([]string, len(b.PrimaryRisks))
		for i, p := range b.PrimaryRisks {
			names[i] = string(p.Factor)
		}
		fmt.Fprintf(&sb, " The main contributing factors are %s.", strings.Join(names, " and "))
	}

	fmt.Fprintf(&sb, " %s.", b.Recommendation)

	if usedFallback {
		sb.WriteString(" Route details are estimated from a direct-line approximation; distances and times may differ from road routing.")
	}
	return sb.String()
}
