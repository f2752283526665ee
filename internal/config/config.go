// Package config defines the run configuration surface: the trip request
// itself plus the engine tuning knobs, loaded from YAML with environment
// variable interpolation and validated before a run starts.
package config

import (
	"fmt"
	"time"

	"github.com/itinera-ai/itinera/internal/trip"
	"github.com/itinera-ai/itinera/internal/types"
)

// Config is the top-level configuration document.
type Config struct {
	Trip   TripConfig   `mapstructure:"trip" yaml:"trip" validate:"required"`
	Engine EngineConfig `mapstructure:"engine" yaml:"engine"`
	Log    LogConfig    `mapstructure:"log" yaml:"log"`
}

// TripConfig is the traveller's request.
type TripConfig struct {
	Destination string  `mapstructure:"destination" yaml:"destination" validate:"required"`
	Days        int     `mapstructure:"days" yaml:"days" validate:"required,gte=1,lte=30"`
	Budget      float64 `mapstructure:"budget" yaml:"budget" validate:"required,gt=0"`

	// Depart is an ISO date; empty means a placeholder date one month out.
	Depart string `mapstructure:"depart" yaml:"depart" validate:"omitempty,datetime=2006-01-02"`

	Preferences []string `mapstructure:"preferences" yaml:"preferences"`
	Pace        string   `mapstructure:"pace" yaml:"pace" validate:"omitempty,oneof=relaxed moderate packed"`
	MustInclude []string `mapstructure:"must_include" yaml:"must_include"`
	MustExclude []string `mapstructure:"must_exclude" yaml:"must_exclude"`
	Avoid       []string `mapstructure:"avoid" yaml:"avoid"`

	Party   PartyConfig   `mapstructure:"party" yaml:"party"`
	Weights WeightsConfig `mapstructure:"weights" yaml:"weights"`
}

// PartyConfig describes who is travelling.
type PartyConfig struct {
	Adults   int `mapstructure:"adults" yaml:"adults" validate:"gte=0"`
	Children int `mapstructure:"children" yaml:"children" validate:"gte=0"`
	Seniors  int `mapstructure:"seniors" yaml:"seniors" validate:"gte=0"`
}

// WeightsConfig is the objective weight vector. All zeros means even
// weighting.
type WeightsConfig struct {
	Cost     float64 `mapstructure:"cost" yaml:"cost" validate:"gte=0"`
	Time     float64 `mapstructure:"time" yaml:"time" validate:"gte=0"`
	Interest float64 `mapstructure:"interest" yaml:"interest" validate:"gte=0"`
	Comfort  float64 `mapstructure:"comfort" yaml:"comfort" validate:"gte=0"`
	Risk     float64 `mapstructure:"risk" yaml:"risk" validate:"gte=0"`
}

// EngineConfig tunes the scheduler and optimizer.
type EngineConfig struct {
	TopK          int           `mapstructure:"top_k" yaml:"top_k" validate:"gte=0,lte=20"`
	LoopCap       int           `mapstructure:"loop_cap" yaml:"loop_cap" validate:"gte=0,lte=10"`
	WallBudget    time.Duration `mapstructure:"wall_budget" yaml:"wall_budget"`
	StageTimeout  time.Duration `mapstructure:"stage_timeout" yaml:"stage_timeout"`
	MaxParallel   int           `mapstructure:"max_parallel" yaml:"max_parallel" validate:"gte=0,lte=64"`
	BeamWidth     int           `mapstructure:"beam_width" yaml:"beam_width" validate:"gte=0,lte=10"`
	MovesPerRound int           `mapstructure:"moves_per_round" yaml:"moves_per_round" validate:"gte=0,lte=50"`
}

// LogConfig controls structured logging output.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"omitempty,oneof=text json"`
}

// Constraints converts the trip request into the engine's constraint set.
func (t TripConfig) Constraints() (*trip.Constraints, error) {
	depart := time.Now().AddDate(0, 1, 0).Truncate(24 * time.Hour)
	if t.Depart != "" {
		parsed, err := time.Parse("2006-01-02", t.Depart)
		if err != nil {
			return nil, types.WrapError(types.CONFIG_PARSE_FAILED,
				fmt.Sprintf("invalid departure date %q", t.Depart), err)
		}
		depart = parsed
	}

	party := trip.PartyComposition{
		Adults:   t.Party.Adults,
		Children: t.Party.Children,
		Seniors:  t.Party.Seniors,
	}
	if party.Size() == 0 {
		party.Adults = 1
	}

	constraints := &trip.Constraints{
		BudgetTotal: t.Budget,
		Depart:      depart,
		Return:      depart.AddDate(0, 0, t.Days-1),
		Party:       party,
		MustInclude: append([]string(nil), t.MustInclude...),
		MustExclude: append([]string(nil), t.MustExclude...),
	}
	if err := constraints.Validate(); err != nil {
		return nil, types.WrapError(types.CONFIG_VALIDATION_FAILED,
			"trip constraints are invalid", err)
	}
	return constraints, nil
}

// Profile converts the trip request into the traveller profile.
func (t TripConfig) Profile() *trip.UserProfile {
	themeWeights := make(map[string]float64, len(t.Preferences))
	for i, pref := range t.Preferences {
		// Earlier preferences weigh more.
		themeWeights[pref] = float64(len(t.Preferences) - i)
	}

	weights := trip.ObjectiveWeights{
		Cost:     t.Weights.Cost,
		Time:     t.Weights.Time,
		Interest: t.Weights.Interest,
		Comfort:  t.Weights.Comfort,
		Risk:     t.Weights.Risk,
	}
	if weights.Total() <= 0 {
		weights = trip.DefaultWeights()
	}

	return &trip.UserProfile{
		ThemeWeights: themeWeights,
		Pace:         trip.Pace(t.Pace),
		AvoidList:    append([]string(nil), t.Avoid...),
		Weights:      weights,
	}
}
