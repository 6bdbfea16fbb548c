package config

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnv(t *testing.T) {
	// Reset env for clean test
	ResetEnv()

	// Set test environment
	os.Setenv("ORS_API_KEY", "ors-key-123")
	os.Setenv("OPENWEATHER_API_KEY", "ow-key-456")
	os.Setenv("SAFEROUTE_SESSION_ID", "sess-123")
	os.Setenv("SAFEROUTE_TRACING", "0")
	os.Setenv("SAFEROUTE_PORT", "9000")
	defer func() {
		os.Unsetenv("ORS_API_KEY")
		os.Unsetenv("OPENWEATHER_API_KEY")
		os.Unsetenv("SAFEROUTE_SESSION_ID")
		os.Unsetenv("SAFEROUTE_TRACING")
		os.Unsetenv("SAFEROUTE_PORT")
		ResetEnv()
	}()

	env := Env()

	assert.Equal(t, "ors-key-123", env.ORSKey)
	assert.Equal(t, "ow-key-456", env.OpenWeatherKey)
	assert.Equal(t, "sess-123", env.SessionID)
	assert.False(t, env.TracingEnabled)
	assert.Equal(t, 9000, env.ServerPort)
}

func TestEnvDefaults(t *testing.T) {
	ResetEnv()

	os.Unsetenv("ORS_BASE_URL")
	os.Unsetenv("OPENWEATHER_BASE_URL")
	os.Unsetenv("SAFEROUTE_TRACING")
	os.Unsetenv("SAFEROUTE_PORT")
	defer ResetEnv()

	env := Env()

	assert.Equal(t, "https://api.openrouteservice.org/v2", env.ORSBaseURL)
	assert.Equal(t, "https://api.openweathermap.org/data/2.5", env.OpenWeatherBaseURL)
	assert.True(t, env.TracingEnabled)
	assert.Equal(t, 8000, env.ServerPort)
}

func TestEnvSingleton(t *testing.T) {
	ResetEnv()
	defer ResetEnv()

	env1 := Env()
	env2 := Env()

	assert.Same(t, env1, env2)
}

func TestGetPaths(t *testing.T) {
	p := GetPaths()

	assert.True(t, strings.HasSuffix(p.Home, ".saferoute"))
	assert.Contains(t, p.Sessions, p.Home)
	assert.Contains(t, p.Alerts, p.Home)
	assert.Contains(t, p.Data, p.Home)
}

func TestThresholds(t *testing.T) {
	assert.Less(t, RiskThresholdModerate, RiskThresholdHazardous)
	assert.LessOrEqual(t, RiskThresholdHazardous, RiskMaxScore)
}
