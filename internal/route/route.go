// Package route resolves route geometry between two points.
package route

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Point is a geographic coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Waypoint is a sampled point along a route, kept with its position in
// the full coordinate sequence.
type Waypoint struct {
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	Index int     `json:"index"`
}

// Route is resolved geometry with distance and duration.
type Route struct {
	DistanceKm  float64    `json:"distance_km"`
	DurationMin float64    `json:"duration_minutes"`
	Coordinates []Point    `json:"coordinates"`
	Waypoints   []Waypoint `json:"waypoints"`
	Profile     string     `json:"route_type"`
}

// Result is the sum-typed outcome of a route lookup. Exactly one of
// three shapes holds: Route set (live data), Fallback set with Err
// (degraded estimate), or only Err (unrecoverable).
type Result struct {
	Route    *Route `json:"route,omitempty"`
	Fallback *Route `json:"fallback,omitempty"`
	Err      error  `json:"-"`
}

// OK reports whether live route data is available.
func (r Result) OK() bool { return r.Err == nil && r.Route != nil }

// ParsePoint parses a "lat,lon" string.
func ParsePoint(s string) (Point, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return Point{}, fmt.Errorf("invalid coordinate %q: want \"lat,lon\"", s)
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return Point{}, fmt.Errorf("invalid latitude in %q: %w", s, err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return Point{}, fmt.Errorf("invalid longitude in %q: %w", s, err)
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return Point{}, fmt.Errorf("coordinate %q out of range", s)
	}
	return Point{Lat: lat, Lon: lon}, nil
}

const earthRadiusKm = 6371.0

// HaversineKm returns the great-circle distance between two points.
func HaversineKm(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

// maxWaypoints bounds how many waypoints later stages query providers for.
const maxWaypoints = 10

// SampleWaypoints picks up to maxWaypoints evenly spaced points, always
// including the final coordinate.
func SampleWaypoints(coords []Point) []Waypoint {
	if len(coords) == 0 {
		return nil
	}

	if len(coords) <= maxWaypoints {
		out := make([]Waypoint, len(coords))
		for i, c := range coords {
			out[i] = Waypoint{Lat: c.Lat, Lon: c.Lon, Index: i}
		}
		return out
	}

	// Exactly maxWaypoints, endpoints always included. The stride is
	// over 1 here, so rounded indices never repeat.
	stride := float64(len(coords)-1) / float64(maxWaypoints-1)
	out := make([]Waypoint, 0, maxWaypoints)
	for i := 0; i < maxWaypoints; i++ {
		idx := int(float64(i)*stride + 0.5)
		out = append(out, Waypoint{Lat: coords[idx].Lat, Lon: coords[idx].Lon, Index: idx})
	}
	return out
}

// straightLine builds the degraded two-point estimate used when live
// routing is unavailable.
func straightLine(start, end Point, profile string) *Route {
	return &Route{
		DistanceKm:  round2(HaversineKm(start, end)),
		Coordinates: []Point{start, end},
		Waypoints: []Waypoint{
			{Lat: start.Lat, Lon: start.Lon, Index: 0},
			{Lat: end.Lat, Lon: end.Lon, Index: 1},
		},
		Profile: profile,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
