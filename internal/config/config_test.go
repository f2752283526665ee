package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itinera-ai/itinera/internal/trip"
	"github.com/itinera-ai/itinera/internal/types"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// TestLoadValidConfig tests loading a complete document.
func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `
trip:
  destination: Tokyo
  days: 5
  budget: 12000
  depart: "2026-09-01"
  pace: packed
  preferences: [culture, food]
  must_include: [Senso-ji]
  party:
    adults: 2
    children: 1
engine:
  top_k: 5
  loop_cap: 2
log:
  level: debug
  format: json
`)

	cfg, err := NewLoader(NewValidator()).Load(path)
	require.NoError(t, err)

	assert.Equal(t, "Tokyo", cfg.Trip.Destination)
	assert.Equal(t, 5, cfg.Trip.Days)
	assert.Equal(t, "packed", cfg.Trip.Pace)
	assert.Equal(t, []string{"culture", "food"}, cfg.Trip.Preferences)
	assert.Equal(t, 5, cfg.Engine.TopK)
	assert.Equal(t, 2, cfg.Engine.LoopCap)
	assert.Equal(t, "debug", cfg.Log.Level)

	// Engine knobs absent from the file pick up defaults.
	assert.Equal(t, DefaultConfig().Engine.StageTimeout, cfg.Engine.StageTimeout)
	assert.Equal(t, DefaultConfig().Engine.BeamWidth, cfg.Engine.BeamWidth)
}

// TestLoadRejectsInvalidConfig tests fatal validation before a run.
func TestLoadRejectsInvalidConfig(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"missing destination", "trip:\n  days: 3\n  budget: 1000\n"},
		{"zero budget", "trip:\n  destination: Tokyo\n  days: 3\n  budget: 0\n"},
		{"bad pace", "trip:\n  destination: Tokyo\n  days: 3\n  budget: 1000\n  pace: frantic\n"},
		{"bad date", "trip:\n  destination: Tokyo\n  days: 3\n  budget: 1000\n  depart: tomorrow\n"},
		{"too many days", "trip:\n  destination: Tokyo\n  days: 90\n  budget: 1000\n"},
	}

	loader := NewLoader(NewValidator())
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := loader.Load(writeConfig(t, tc.body))
			require.Error(t, err)
			assert.Equal(t, types.CONFIG_VALIDATION_FAILED, types.CodeOf(err))
		})
	}
}

// TestParseDefersValidation tests that a partial file parses cleanly so
// flags can fill required fields before validation.
func TestParseDefersValidation(t *testing.T) {
	path := writeConfig(t, "trip:\n  days: 3\n  budget: 1000\n")
	loader := NewLoader(NewValidator())

	cfg, err := loader.Parse(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.Trip.Destination)
	assert.Equal(t, DefaultConfig().Engine.TopK, cfg.Engine.TopK,
		"engine defaults still apply without validation")

	cfg.Trip.Destination = "Tokyo"
	assert.NoError(t, NewValidator().Validate(cfg))

	_, err = loader.Load(path)
	require.Error(t, err, "the one-shot path still rejects the partial file")
	assert.Equal(t, types.CONFIG_VALIDATION_FAILED, types.CodeOf(err))
}

// TestLoadEnvInterpolation tests ${VAR} interpolation.
func TestLoadEnvInterpolation(t *testing.T) {
	t.Setenv("TRIP_CITY", "Osaka")

	path := writeConfig(t, `
trip:
  destination: ${TRIP_CITY}
  days: 3
  budget: 2000
`)

	cfg, err := NewLoader(NewValidator()).Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Osaka", cfg.Trip.Destination)
}

// TestLoadWithDefaultsMissingFile tests the fallback to defaults.
func TestLoadWithDefaultsMissingFile(t *testing.T) {
	cfg, err := NewLoader(NewValidator()).LoadWithDefaults(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Trip.Days)
	assert.Equal(t, 3, cfg.Engine.TopK)
}

// TestTripConstraintsConversion tests the conversion into engine
// constraints.
func TestTripConstraintsConversion(t *testing.T) {
	tc := TripConfig{
		Destination: "Paris",
		Days:        4,
		Budget:      6000,
		Depart:      "2026-09-01",
		MustInclude: []string{"Louvre"},
	}

	constraints, err := tc.Constraints()
	require.NoError(t, err)

	assert.InDelta(t, 6000, constraints.BudgetTotal, 0.001)
	assert.Equal(t, time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), constraints.Depart)
	assert.Equal(t, 4, constraints.Days())
	assert.Equal(t, 1, constraints.Party.Size(), "empty party defaults to one adult")
	assert.Equal(t, []string{"Louvre"}, constraints.MustInclude)
}

// TestTripProfileConversion tests preference ordering and weight
// defaulting.
func TestTripProfileConversion(t *testing.T) {
	tc := TripConfig{
		Destination: "Paris",
		Days:        4,
		Budget:      6000,
		Preferences: []string{"museum", "food", "nature"},
		Pace:        "relaxed",
	}

	profile := tc.Profile()
	assert.Equal(t, trip.PaceRelaxed, profile.Pace)
	assert.Greater(t, profile.ThemeWeights["museum"], profile.ThemeWeights["food"],
		"earlier preferences weigh more")
	assert.Greater(t, profile.ThemeWeights["food"], profile.ThemeWeights["nature"])
	assert.Equal(t, trip.DefaultWeights(), profile.Weights, "zero weights fall back to even")
}
