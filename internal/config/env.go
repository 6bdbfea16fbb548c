// Package config provides centralized configuration management.
// All environment lookups live here instead of scattered os.Getenv calls.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

// Risk scoring thresholds. A route at or above RiskThresholdModerate triggers
// the optimization stage; at or above RiskThresholdHazardous it counts as a
// high-risk route in session statistics.
const (
	RiskThresholdModerate  = 4.0
	RiskThresholdHazardous = 7.0
	RiskMaxScore           = 10.0
)

// Environment holds all saferoute environment variables.
type Environment struct {
	// ORSKey is the OpenRouteService API key (ORS_API_KEY)
	ORSKey string

	// ORSBaseURL overrides the OpenRouteService endpoint (ORS_BASE_URL)
	ORSBaseURL string

	// OpenWeatherKey is the OpenWeather API key (OPENWEATHER_API_KEY)
	OpenWeatherKey string

	// OpenWeatherBaseURL overrides the OpenWeather endpoint (OPENWEATHER_BASE_URL)
	OpenWeatherBaseURL string

	// SunriseSunsetURL is the sunrise-sunset.org endpoint (SUNRISE_SUNSET_URL)
	SunriseSunsetURL string

	// SessionID is a fixed session identifier (SAFEROUTE_SESSION_ID)
	SessionID string

	// TracingEnabled toggles operation tracing (SAFEROUTE_TRACING, default on)
	TracingEnabled bool

	// ServerPort is the HTTP API port (SAFEROUTE_PORT)
	ServerPort int
}

var (
	env     *Environment
	envOnce sync.Once
)

// Env returns the singleton environment configuration.
// Thread-safe, loads once on first call.
func Env() *Environment {
	envOnce.Do(func() {
		env = &Environment{
			ORSKey:             os.Getenv("ORS_API_KEY"),
			ORSBaseURL:         getEnvDefault("ORS_BASE_URL", "https://api.openrouteservice.org/v2"),
			OpenWeatherKey:     os.Getenv("OPENWEATHER_API_KEY"),
			OpenWeatherBaseURL: getEnvDefault("OPENWEATHER_BASE_URL", "https://api.openweathermap.org/data/2.5"),
			SunriseSunsetURL:   getEnvDefault("SUNRISE_SUNSET_URL", "https://api.sunrise-sunset.org/json"),
			SessionID:          os.Getenv("SAFEROUTE_SESSION_ID"),
			TracingEnabled:     os.Getenv("SAFEROUTE_TRACING") != "0",
			ServerPort:         getEnvInt("SAFEROUTE_PORT", 8000),
		}
	})
	return env
}

// ResetEnv resets the cached environment (for testing).
func ResetEnv() {
	envOnce = sync.Once{}
	env = nil
}

func getEnvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// Paths holds standard saferoute directory paths.
type Paths struct {
	// Home is the saferoute home directory (~/.saferoute)
	Home string

	// Sessions is the session snapshot directory (~/.saferoute/sessions)
	Sessions string

	// Alerts is the alert output directory (~/.saferoute/alerts)
	Alerts string

	// Data is the analysis archive directory (~/.saferoute/data)
	Data string
}

var (
	paths     *Paths
	pathsOnce sync.Once
)

// GetPaths returns the singleton paths configuration.
func GetPaths() *Paths {
	pathsOnce.Do(func() {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		root := filepath.Join(home, ".saferoute")

		paths = &Paths{
			Home:     root,
			Sessions: filepath.Join(root, "sessions"),
			Alerts:   filepath.Join(root, "alerts"),
			Data:     filepath.Join(root, "data"),
		}
	})
	return paths
}

// EnsureDir creates a directory if it doesn't exist.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}
