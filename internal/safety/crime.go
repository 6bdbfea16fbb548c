package safety

import "context"

// StaticCrimeSource reports a flat baseline risk for every point. It
// stands in until a real incident feed is wired.
type StaticCrimeSource struct {
	Baseline float64
}

// NewStaticCrimeSource returns a source with the default baseline.
func NewStaticCrimeSource() *StaticCrimeSource {
	return &StaticCrimeSource{Baseline: defaultRisk}
}

// Assess returns the baseline risk regardless of location.
func (s *StaticCrimeSource) Assess(_ context.Context, lat, lon, radiusKm float64) (CrimeObservation, error) {
	return CrimeObservation{
		Lat:      lat,
		Lon:      lon,
		RadiusKm: radiusKm,
		Risk:     s.Baseline,
		Source:   "static-baseline",
	}, nil
}
