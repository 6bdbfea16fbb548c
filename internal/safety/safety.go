// Package safety gathers weather, crime, lighting, and time-of-day signals
// for a route's waypoints.
package safety

import (
	"context"
	"sync"
	"time"

	"github.com/joss/saferoute/internal/logging"
	"github.com/joss/saferoute/internal/route"
)

// defaultRisk is substituted for any signal whose provider fails.
const defaultRisk = 0.5

// sampleSize bounds how many waypoints are queried per analysis.
const sampleSize = 5

// Signals are the aggregated per-factor risk values handed to scoring.
type Signals struct {
	Weather  float64 `json:"weather"`
	Crime    float64 `json:"crime"`
	Lighting float64 `json:"lighting"`
	Time     float64 `json:"time"`
}

// WeatherObservation is one waypoint's weather lookup.
type WeatherObservation struct {
	Condition    string  `json:"condition"`
	TempC        float64 `json:"temperature_c"`
	WindMS       float64 `json:"wind_speed_ms"`
	VisibilityKm float64 `json:"visibility_km"`
	Description  string  `json:"description,omitempty"`
	Risk         float64 `json:"risk_factor"`
}

// LightingObservation is the sunrise/sunset assessment, shared by the
// whole route.
type LightingObservation struct {
	Sunrise string  `json:"sunrise"`
	Sunset  string  `json:"sunset"`
	IsDark  bool    `json:"is_dark"`
	Risk    float64 `json:"lighting_risk"`
}

// CrimeObservation is one waypoint's crime assessment.
type CrimeObservation struct {
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	RadiusKm float64 `json:"radius_km"`
	Risk     float64 `json:"crime_risk"`
	Source   string  `json:"source"`
}

// TimeAssessment is the time-of-day risk band.
type TimeAssessment struct {
	Hour   int     `json:"hour"`
	Period string  `json:"period"`
	Risk   float64 `json:"time_risk"`
}

// Report is the full output of one gathering pass.
type Report struct {
	Signals   Signals              `json:"aggregated_risks"`
	Weather   []WeatherObservation `json:"weather_data"`
	Lighting  *LightingObservation `json:"lighting_data,omitempty"`
	Crime     []CrimeObservation   `json:"crime_data"`
	TimeOfDay TimeAssessment       `json:"time_data"`
}

// WeatherProvider looks up current conditions at a point.
type WeatherProvider interface {
	Current(ctx context.Context, lat, lon float64) (WeatherObservation, error)
}

// LightingProvider resolves sunrise/sunset for a point.
type LightingProvider interface {
	Conditions(ctx context.Context, lat, lon float64, at time.Time) (LightingObservation, error)
}

// CrimeProvider assesses crime risk around a point.
type CrimeProvider interface {
	Assess(ctx context.Context, lat, lon, radiusKm float64) (CrimeObservation, error)
}

// Gatherer fans out per-waypoint lookups and aggregates the results.
type Gatherer struct {
	weather  WeatherProvider
	lighting LightingProvider
	crime    CrimeProvider
	now      func() time.Time
	recovery *logging.RecoveryHandler
}

// NewGatherer wires the three providers. A nil now uses time.Now.
func NewGatherer(weather WeatherProvider, lighting LightingProvider, crime CrimeProvider, now func() time.Time) *Gatherer {
	if now == nil {
		now = time.Now
	}
	return &Gatherer{
		weather:  weather,
		lighting: lighting,
		crime:    crime,
		now:      now,
		recovery: logging.NewRecoveryHandler("safety"),
	}
}

// Gather queries up to sampleSize waypoints concurrently. Each waypoint's
// weather and crime lookups run in their own goroutine; lighting is
// resolved once from the first waypoint. All lookups complete (or
// default) before Gather returns.
func (g *Gatherer) Gather(ctx context.Context, waypoints []route.Waypoint) Report {
	sampled := sample(waypoints, sampleSize)

	// Pre-sized slots, one per sampled waypoint, each written only by
	// its own goroutine.
	weatherSlots := make([]*WeatherObservation, len(sampled))
	crimeSlots := make([]*CrimeObservation, len(sampled))
	var lighting *LightingObservation

	var wg sync.WaitGroup
	for i, wp := range sampled {
		wg.Add(1)
		go func(i int, wp route.Waypoint) {
			defer wg.Done()

			// A panicking provider must not take down the process; its
			// slot stays nil and the signal defaults.
			g.recovery.Wrap(func() {
				if obs, err := g.weather.Current(ctx, wp.Lat, wp.Lon); err == nil {
					weatherSlots[i] = &obs
				}
			})
			g.recovery.Wrap(func() {
				if obs, err := g.crime.Assess(ctx, wp.Lat, wp.Lon, 1.0); err == nil {
					crimeSlots[i] = &obs
				}
			})
		}(i, wp)
	}

	if len(sampled) > 0 {
		wg.Add(1)
		go func(wp route.Waypoint) {
			defer wg.Done()
			g.recovery.Wrap(func() {
				if obs, err := g.lighting.Conditions(ctx, wp.Lat, wp.Lon, g.now()); err == nil {
					lighting = &obs
				}
			})
		}(sampled[0])
	}

	wg.Wait()

	report := Report{
		Lighting:  lighting,
		TimeOfDay: AssessTime(g.now().Hour()),
	}
	for _, w := range weatherSlots {
		if w != nil {
			report.Weather = append(report.Weather, *w)
		}
	}
	for _, c := range crimeSlots {
		if c != nil {
			report.Crime = append(report.Crime, *c)
		}
	}

	report.Signals = Signals{
		Weather:  meanWeatherRisk(report.Weather),
		Crime:    meanCrimeRisk(report.Crime),
		Lighting: lightingRisk(lighting),
		Time:     report.TimeOfDay.Risk,
	}
	return report
}

// sample picks exactly max evenly spaced waypoints, endpoints included,
// when the route carries more than max.
func sample(waypoints []route.Waypoint, max int) []route.Waypoint {
	if len(waypoints) <= max {
		return waypoints
	}
	stride := float64(len(waypoints)-1) / float64(max-1)
	out := make([]route.Waypoint, 0, max)
	for i := 0; i < max; i++ {
		out = append(out, waypoints[int(float64(i)*stride+0.5)])
	}
	return out
}

func meanWeatherRisk(obs []WeatherObservation) float64 {
	if len(obs) == 0 {
		return defaultRisk
	}
	var sum float64
	for _, o := range obs {
		sum += o.Risk
	}
	return sum / float64(len(obs))
}

func meanCrimeRisk(obs []CrimeObservation) float64 {
	if len(obs) == 0 {
		return defaultRisk
	}
	var sum float64
	for _, o := range obs {
		sum += o.Risk
	}
	return sum / float64(len(obs))
}

func lightingRisk(obs *LightingObservation) float64 {
	if obs == nil {
		return defaultRisk
	}
	return obs.Risk
}
