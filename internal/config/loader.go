package config

import (
	"os"
	"regexp"
	"strings"

	"github.com/spf13/viper"

	"github.com/itinera-ai/itinera/internal/types"
)

// Loader loads configuration documents from YAML files.
type Loader interface {
	Load(path string) (*Config, error)
	Parse(path string) (*Config, error)
	LoadWithDefaults(path string) (*Config, error)
}

type viperLoader struct {
	validator Validator
}

// NewLoader creates a Loader backed by viper.
func NewLoader(validator Validator) Loader {
	return &viperLoader{validator: validator}
}

// Load reads, interpolates and validates the config file at path.
func (l *viperLoader) Load(path string) (*Config, error) {
	cfg, err := l.Parse(path)
	if err != nil {
		return nil, err
	}
	if err := l.validator.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse reads and interpolates the config file at path without
// validating it, so callers can layer overrides (flags, environment)
// on top before validation.
func (l *viperLoader) Parse(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, types.WrapError(types.CONFIG_LOAD_FAILED,
			"failed to read config file", err)
	}

	// Interpolate ${VAR} references before unmarshalling so values like
	// trip.budget can come from the environment.
	interpolated, ok := interpolateEnvVars(v.AllSettings()).(map[string]any)
	if ok {
		if err := v.MergeConfigMap(interpolated); err != nil {
			return nil, types.WrapError(types.CONFIG_PARSE_FAILED,
				"failed to merge interpolated settings", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, types.WrapError(types.CONFIG_PARSE_FAILED,
			"failed to unmarshal config", err)
	}

	applyEngineDefaults(&cfg)
	return &cfg, nil
}

// LoadWithDefaults falls back to DefaultConfig when the file is absent.
func (l *viperLoader) LoadWithDefaults(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()
		if err := l.validator.Validate(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return l.Load(path)
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// interpolateEnvVars recursively replaces ${VAR} references in string
// values. Unset variables leave the reference intact so validation can
// point at it.
func interpolateEnvVars(data any) any {
	switch v := data.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, value := range v {
			out[key] = interpolateEnvVars(value)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, value := range v {
			out[i] = interpolateEnvVars(value)
		}
		return out
	case string:
		return interpolateString(v)
	default:
		return v
	}
}

func interpolateString(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		if value := os.Getenv(name); value != "" {
			return value
		}
		return match
	})
}
