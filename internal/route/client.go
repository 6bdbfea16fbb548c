package route

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client is a thin OpenRouteService client. Without an API key every
// lookup degrades to a straight-line fallback instead of failing.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a route client. An empty apiKey is allowed; lookups
// then always return fallback geometry.
func NewClient(apiKey, baseURL string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

type directionsRequest struct {
	Coordinates  [][]float64        `json:"coordinates"`
	Alternatives *alternativeRoutes `json:"alternative_routes,omitempty"`
}

type alternativeRoutes struct {
	TargetCount int `json:"target_count"`
}

type directionsResponse struct {
	Features []struct {
		Geometry struct {
			Coordinates [][]float64 `json:"coordinates"`
		} `json:"geometry"`
		Properties struct {
			Summary struct {
				Distance float64 `json:"distance"`
				Duration float64 `json:"duration"`
			} `json:"summary"`
		} `json:"properties"`
	} `json:"features"`
}

// GetRoute resolves live geometry between start and end. Failures carry
// a straight-line fallback so the caller can continue degraded.
func (c *Client) GetRoute(ctx context.Context, start, end Point, profile string) Result {
	if c.apiKey == "" {
		return Result{
			Fallback: straightLine(start, end, profile),
			Err:      fmt.Errorf("ORS API key not configured"),
		}
	}

	features, err := c.directions(ctx, start, end, profile, false)
	if err != nil {
		return Result{
			Fallback: straightLine(start, end, profile),
			Err:      fmt.Errorf("directions request: %w", err),
		}
	}
	if len(features) == 0 {
		return Result{
			Fallback: straightLine(start, end, profile),
			Err:      fmt.Errorf("directions response contained no routes"),
		}
	}

	return Result{Route: features[0]}
}

// GetAlternative requests an alternative route distinct from the primary
// one. No fallback: an alternative either exists or it does not.
func (c *Client) GetAlternative(ctx context.Context, start, end Point, profile string) Result {
	if c.apiKey == "" {
		return Result{Err: fmt.Errorf("ORS API key not configured")}
	}

	features, err := c.directions(ctx, start, end, profile, true)
	if err != nil {
		return Result{Err: fmt.Errorf("alternative request: %w", err)}
	}

	// Index 1 is the true alternative when the service offers one;
	// otherwise the primary route is all there is.
	switch {
	case len(features) > 1:
		return Result{Route: features[1]}
	case len(features) == 1:
		return Result{Route: features[0]}
	default:
		return Result{Err: fmt.Errorf("no alternative route found")}
	}
}

func (c *Client) directions(ctx context.Context, start, end Point, profile string, alternatives bool) ([]*Route, error) {
	reqBody := directionsRequest{
		// ORS expects lon,lat ordering
		Coordinates: [][]float64{{start.Lon, start.Lat}, {end.Lon, end.Lat}},
	}
	if alternatives {
		reqBody.Alternatives = &alternativeRoutes{TargetCount: 2}
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/directions/%s/geojson", c.baseURL, profile)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var parsed directionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	routes := make([]*Route, 0, len(parsed.Features))
	for _, f := range parsed.Features {
		coords := make([]Point, 0, len(f.Geometry.Coordinates))
		for _, c := range f.Geometry.Coordinates {
			if len(c) < 2 {
				continue
			}
			coords = append(coords, Point{Lat: c[1], Lon: c[0]})
		}

		routes = append(routes, &Route{
			DistanceKm:  round2(f.Properties.Summary.Distance / 1000),
			DurationMin: round2(f.Properties.Summary.Duration / 60),
			Coordinates: coords,
			Waypoints:   SampleWaypoints(coords),
			Profile:     profile,
		})
	}
	return routes, nil
}
