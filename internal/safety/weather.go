package safety

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxWeatherRisk caps the combined weather contribution for one waypoint.
const maxWeatherRisk = 3.0

// OpenWeatherClient looks up current conditions via the OpenWeatherMap
// current-weather endpoint.
type OpenWeatherClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewOpenWeatherClient builds a client for baseURL (the /data/2.5 root).
func NewOpenWeatherClient(apiKey, baseURL string) *OpenWeatherClient {
	return &OpenWeatherClient{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

type openWeatherResponse struct {
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp float64 `json:"temp"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Visibility *float64 `json:"visibility"`
}

// Current returns the observation at (lat, lon) with its risk factor.
func (c *OpenWeatherClient) Current(ctx context.Context, lat, lon float64) (WeatherObservation, error) {
	if c.apiKey == "" {
		return WeatherObservation{}, errors.New("OpenWeather API key not configured")
	}

	q := url.Values{}
	q.Set("lat", fmt.Sprintf("%f", lat))
	q.Set("lon", fmt.Sprintf("%f", lon))
	q.Set("appid", c.apiKey)
	q.Set("units", "metric")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/weather?"+q.Encode(), nil)
	if err != nil {
		return WeatherObservation{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return WeatherObservation{}, fmt.Errorf("weather lookup: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return WeatherObservation{}, fmt.Errorf("weather lookup: status %d", resp.StatusCode)
	}

	var payload openWeatherResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return WeatherObservation{}, fmt.Errorf("weather lookup: %w", err)
	}

	// OpenWeather omits visibility above 10 km; treat absence as clear.
	visibilityKm := 10.0
	if payload.Visibility != nil {
		visibilityKm = *payload.Visibility / 1000
	}
	obs := WeatherObservation{
		TempC:        payload.Main.Temp,
		WindMS:       payload.Wind.Speed,
		VisibilityKm: visibilityKm,
	}
	if len(payload.Weather) > 0 {
		obs.Condition = payload.Weather[0].Main
		obs.Description = payload.Weather[0].Description
	}
	obs.Risk = weatherRisk(obs)
	return obs, nil
}

// weatherRisk scores one observation. Condition, temperature, wind, and
// visibility factors are summed; a fully benign observation scores
// defaultRisk and the total is capped at maxWeatherRisk.
func weatherRisk(obs WeatherObservation) float64 {
	var risk float64

	switch strings.ToLower(obs.Condition) {
	case "rain", "thunderstorm", "snow", "extreme":
		risk += 2.0
	case "drizzle", "mist", "fog":
		risk += 1.5
	}

	if obs.TempC < 0 || obs.TempC > 35 {
		risk += 1.5
	}
	if obs.WindMS > 15 {
		risk += 1.3
	}
	switch {
	case obs.VisibilityKm < 1:
		risk += 2.0
	case obs.VisibilityKm < 3:
		risk += 1.5
	}

	if risk == 0 {
		return defaultRisk
	}
	if risk > maxWeatherRisk {
		risk = maxWeatherRisk
	}
	return risk
}
