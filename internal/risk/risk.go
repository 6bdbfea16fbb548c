// Package risk computes combined route risk scores from safety signals.
package risk

import (
	"math"

	"github.com/joss/saferoute/internal/config"
)

// Factor identifies one risk component.
type Factor string

const (
	FactorWeather  Factor = "weather"
	FactorCrime    Factor = "crime"
	FactorLighting Factor = "lighting"
	FactorTime     Factor = "time"
)

// factorOrder is the fixed precedence used to break ties when ranking
// primary risks, so results stay deterministic.
var factorOrder = []Factor{FactorWeather, FactorCrime, FactorLighting, FactorTime}

// Per-component ceilings. Input above a ceiling is discarded, not an error.
const (
	CeilingWeather  = 3.0
	CeilingCrime    = 3.0
	CeilingLighting = 2.0
	CeilingTime     = 2.0
)

// Level categorizes a total score.
type Level string

const (
	LevelSafe      Level = "Safe"
	LevelModerate  Level = "Moderate"
	LevelHazardous Level = "Hazardous"
)

// Recommendation text is a pure function of the level: two routes at the
// same level always get the same text.
var recommendations = map[Level]string{
	LevelSafe:      "Route is safe to travel",
	LevelModerate:  "Exercise caution",
	LevelHazardous: "Consider alternative route or delay travel",
}

// FactorScore pairs a factor with its clamped contribution.
type FactorScore struct {
	Factor Factor  `json:"factor"`
	Score  float64 `json:"score"`
}

// Breakdown is the full output of one scoring pass.
type Breakdown struct {
	Weather        float64       `json:"weather"`
	Crime          float64       `json:"crime"`
	Lighting       float64       `json:"lighting"`
	Time           float64       `json:"time"`
	Total          float64       `json:"total"`
	Level          Level         `json:"level"`
	PrimaryRisks   []FactorScore `json:"primary_risks"`
	Recommendation string        `json:"recommendation"`
}

// Score combines the four safety signals into a total risk score.
// Each input is clamped to its component ceiling; the total is capped
// at config.RiskMaxScore.
func Score(weather, crime, lighting, timeOfDay float64) Breakdown {
	b := Breakdown{
		Weather:  clamp(weather, CeilingWeather),
		Crime:    clamp(crime, CeilingCrime),
		Lighting: clamp(lighting, CeilingLighting),
		Time:     clamp(timeOfDay, CeilingTime),
	}

	b.Total = math.Min(b.Weather+b.Crime+b.Lighting+b.Time, config.RiskMaxScore)
	b.Level = LevelFor(b.Total)
	b.PrimaryRisks = primaryRisks(b)
	b.Recommendation = recommendations[b.Level]
	return b
}

// LevelFor maps a total score to its level. Boundaries are inclusive on
// the lower tier: 3 is Safe, 6 is Moderate.
func LevelFor(total float64) Level {
	switch {
	case total <= 3:
		return LevelSafe
	case total <= 6:
		return LevelModerate
	default:
		return LevelHazardous
	}
}

// For returns the clamped score of a single factor from the breakdown.
func (b Breakdown) For(f Factor) float64 {
	switch f {
	case FactorWeather:
		return b.Weather
	case FactorCrime:
		return b.Crime
	case FactorLighting:
		return b.Lighting
	case FactorTime:
		return b.Time
	}
	return 0
}

// primaryRisks returns the two highest-scoring factors. Equal scores keep
// factorOrder precedence (sort is stable over the fixed order).
func primaryRisks(b Breakdown) []FactorScore {
	ranked := make([]FactorScore, 0, len(factorOrder))
	for _, f := range factorOrder {
		ranked = append(ranked, FactorScore{Factor: f, Score: b.For(f)})
	}

	// Insertion sort by score descending; strict > keeps the precedence
	// order for ties.
	for i := 1; i < len(ranked); i++ {
		for j := i; j > 0 && ranked[j].Score > ranked[j-1].Score; j-- {
			ranked[j], ranked[j-1] = ranked[j-1], ranked[j]
		}
	}

	return ranked[:2]
}

func clamp(v, ceiling float64) float64 {
	if v < 0 {
		return 0
	}
	if v > ceiling {
		return ceiling
	}
	return v
}
