// Package alert composes and persists route safety notifications.
package alert

import (
	"fmt"
	"strings"
	"time"

	"github.com/joss/saferoute/internal/risk"
)

// Severity mirrors the risk level on the notification side.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Urgency tells the user how soon to act.
type Urgency string

const (
	UrgencyNone      Urgency = "none"
	UrgencyAdvisory  Urgency = "advisory"
	UrgencyImmediate Urgency = "immediate"
)

// Notification is the composed safety message for one analyzed route.
type Notification struct {
	Severity     Severity   `json:"severity"`
	Urgency      Urgency    `json:"urgency"`
	Title        string     `json:"title"`
	Message      string     `json:"message"`
	Actions      []string   `json:"recommended_actions"`
	RiskScore    float64    `json:"risk_score"`
	RiskLevel    risk.Level `json:"risk_level"`
	PrimaryRisks []string   `json:"primary_risks,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

var levelActions = map[risk.Level][]string{
	risk.LevelSafe: {
		"Proceed with your planned route",
	},
	risk.LevelModerate: {
		"Stay alert along the route",
		"Share your location with a contact",
		"Prefer well-lit main roads",
	},
	risk.LevelHazardous: {
		"Consider the suggested alternative route",
		"Delay travel if possible",
		"Share your live location with a contact",
		"Keep to populated, well-lit areas",
	},
}

// Compose builds the notification for a scored route. It is a pure
// function of the breakdown; every route at a given level gets the same
// severity, urgency, and action list.
func Compose(b risk.Breakdown, now time.Time) Notification {
	n := Notification{
		RiskScore: b.Total,
		RiskLevel: b.Level,
		Actions:   levelActions[b.Level],
		CreatedAt: now.UTC(),
	}
	for _, p := range b.PrimaryRisks {
		n.PrimaryRisks = append(n.PrimaryRisks, string(p.Factor))
	}

	switch b.Level {
	case risk.LevelSafe:
		n.Severity = SeverityInfo
		n.Urgency = UrgencyNone
		n.Title = "Route is safe"
	case risk.LevelModerate:
		n.Severity = SeverityWarning
		n.Urgency = UrgencyAdvisory
		n.Title = "Moderate risk on your route"
	default:
		n.Severity = SeverityCritical
		n.Urgency = UrgencyImmediate
		n.Title = "Hazardous route"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (risk %.1f/10). %s.", n.Title, b.Total, b.Recommendation)
	if len(n.PrimaryRisks) > 0 {
		fmt.Fprintf(&sb, " Main concerns: %s.", strings.Join(n.PrimaryRisks, ", "))
	}
	n.Message = sb.String()
	return n
}
