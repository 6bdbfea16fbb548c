// Package optimize searches for lower-risk alternative routes.
package optimize

import (
	"context"
	"fmt"

	"github.com/joss/saferoute/internal/risk"
	"github.com/joss/saferoute/internal/route"
)

// altRiskOffset estimates an alternative's risk from the primary score.
// Alternatives avoid the flagged segments, so they score lower by a
// fixed margin, floored at zero.
const altRiskOffset = 1.5

// minImprovement is how much lower an alternative's risk must be before
// it is recommended over the primary route.
const minImprovement = 1.0

// Comparison relates an alternative route to the primary one.
type Comparison struct {
	DistanceDeltaKm  float64 `json:"distance_delta_km"`
	DurationDeltaMin float64 `json:"duration_delta_min"`
	RiskImprovement  float64 `json:"risk_improvement"`
	IsBetter         bool    `json:"is_better"`
}

// Alternative is a candidate replacement route with its estimated risk.
type Alternative struct {
	Route      route.Route `json:"route"`
	RiskScore  float64     `json:"estimated_risk_score"`
	RiskLevel  risk.Level  `json:"estimated_risk_level"`
	Comparison Comparison  `json:"comparison"`
}

// AlternativeProvider fetches an alternative route between two points.
type AlternativeProvider interface {
	GetAlternative(ctx context.Context, start, end route.Point, profile string) route.Result
}

// Optimizer proposes alternatives when the primary route scores high.
type Optimizer struct {
	provider AlternativeProvider
}

// New wires the route provider.
func New(provider AlternativeProvider) *Optimizer {
	return &Optimizer{provider: provider}
}

// FindAlternative asks the provider for an alternative and compares it
// against the primary route and its risk score. Failure to find one is
// returned as an error for the caller to treat as non-fatal.
func (o *Optimizer) FindAlternative(ctx context.Context, start, end route.Point, primary route.Route, primaryRisk float64) (Alternative, error) {
	res := o.provider.GetAlternative(ctx, start, end, primary.Profile)
	if !res.OK() {
		if res.Err != nil {
			return Alternative{}, fmt.Errorf("alternative search: %w", res.Err)
		}
		return Alternative{}, fmt.Errorf("alternative search: no route returned")
	}

	altRisk := EstimateRisk(primaryRisk)
	alt := Alternative{
		Route:     *res.Route,
		RiskScore: altRisk,
		RiskLevel: risk.LevelFor(altRisk),
		Comparison: Comparison{
			DistanceDeltaKm:  res.Route.DistanceKm - primary.DistanceKm,
			DurationDeltaMin: res.Route.DurationMin - primary.DurationMin,
			RiskImprovement:  primaryRisk - altRisk,
			IsBetter:         primaryRisk-altRisk > minImprovement,
		},
	}
	return alt, nil
}

// EstimateRisk derives an alternative's risk score from the primary's.
func EstimateRisk(primaryRisk float64) float64 {
	est := primaryRisk - altRiskOffset
	if est < 0 {
		est = 0
	}
	return est
}
