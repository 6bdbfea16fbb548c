package safety

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const (
	darkRisk = 2.0
	dayRisk  = defaultRisk
)

// SunriseSunsetClient resolves daylight windows via sunrise-sunset.org.
type SunriseSunsetClient struct {
	baseURL string
	http    *http.Client
	now     func() time.Time
}

// NewSunriseSunsetClient builds a client. A nil now uses time.Now.
func NewSunriseSunsetClient(baseURL string, now func() time.Time) *SunriseSunsetClient {
	if now == nil {
		now = time.Now
	}
	return &SunriseSunsetClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		now:     now,
	}
}

type sunriseSunsetResponse struct {
	Results struct {
		Sunrise string `json:"sunrise"`
		Sunset  string `json:"sunset"`
	} `json:"results"`
	Status string `json:"status"`
}

// Conditions reports whether at falls outside the daylight window at
// (lat, lon) and the corresponding lighting risk.
func (c *SunriseSunsetClient) Conditions(ctx context.Context, lat, lon float64, at time.Time) (LightingObservation, error) {
	q := url.Values{}
	q.Set("lat", fmt.Sprintf("%f", lat))
	q.Set("lng", fmt.Sprintf("%f", lon))
	q.Set("formatted", "0")
	q.Set("date", at.UTC().Format("2006-01-02"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return LightingObservation{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return LightingObservation{}, fmt.Errorf("lighting lookup: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return LightingObservation{}, fmt.Errorf("lighting lookup: status %d", resp.StatusCode)
	}

	var payload sunriseSunsetResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return LightingObservation{}, fmt.Errorf("lighting lookup: %w", err)
	}
	if payload.Status != "OK" {
		return LightingObservation{}, fmt.Errorf("lighting lookup: status %q", payload.Status)
	}

	sunrise, err := time.Parse(time.RFC3339, payload.Results.Sunrise)
	if err != nil {
		return LightingObservation{}, fmt.Errorf("lighting lookup: %w", err)
	}
	sunset, err := time.Parse(time.RFC3339, payload.Results.Sunset)
	if err != nil {
		return LightingObservation{}, fmt.Errorf("lighting lookup: %w", err)
	}

	utc := at.UTC()
	dark := utc.Before(sunrise) || utc.After(sunset)
	obs := LightingObservation{
		Sunrise: payload.Results.Sunrise,
		Sunset:  payload.Results.Sunset,
		IsDark:  dark,
		Risk:    dayRisk,
	}
	if dark {
		obs.Risk = darkRisk
	}
	return obs, nil
}
