package config

import "time"

// DefaultConfig returns the baseline configuration. The trip section has
// no usable default destination; callers must supply one via file or
// flags.
func DefaultConfig() *Config {
	return &Config{
		Trip: TripConfig{
			Days:   3,
			Budget: 2000,
			Pace:   "moderate",
			Party:  PartyConfig{Adults: 1},
		},
		Engine: EngineConfig{
			TopK:          3,
			LoopCap:       3,
			WallBudget:    2 * time.Minute,
			StageTimeout:  30 * time.Second,
			MaxParallel:   4,
			BeamWidth:     3,
			MovesPerRound: 5,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// applyEngineDefaults fills zero-valued engine knobs from the defaults,
// so a sparse config file still yields a fully tuned engine.
func applyEngineDefaults(cfg *Config) {
	def := DefaultConfig().Engine
	if cfg.Engine.TopK == 0 {
		cfg.Engine.TopK = def.TopK
	}
	if cfg.Engine.LoopCap == 0 {
		cfg.Engine.LoopCap = def.LoopCap
	}
	if cfg.Engine.WallBudget == 0 {
		cfg.Engine.WallBudget = def.WallBudget
	}
	if cfg.Engine.StageTimeout == 0 {
		cfg.Engine.StageTimeout = def.StageTimeout
	}
	if cfg.Engine.MaxParallel == 0 {
		cfg.Engine.MaxParallel = def.MaxParallel
	}
	if cfg.Engine.BeamWidth == 0 {
		cfg.Engine.BeamWidth = def.BeamWidth
	}
	if cfg.Engine.MovesPerRound == 0 {
		cfg.Engine.MovesPerRound = def.MovesPerRound
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultConfig().Log.Level
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultConfig().Log.Format
	}
}
