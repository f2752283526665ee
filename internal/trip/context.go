// Package trip defines the data model for a planning run: the immutable
// run context, the user profile and constraints captured during
// clarification, supply-side offers, and candidate itineraries with their
// derived metrics and cost ledger.
package trip

import (
	"time"

	"github.com/itinera-ai/itinera/internal/types"
)

// TripContext holds the immutable per-run identifiers.
// Created once at run start and never mutated afterwards.
type TripContext struct {
	RunID     types.ID  `json:"run_id" yaml:"run_id"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	Locale    string    `json:"locale" yaml:"locale"`
}

// NewTripContext creates a TripContext with a fresh run ID.
func NewTripContext(locale string) TripContext {
	if locale == "" {
		locale = "en"
	}
	return TripContext{
		RunID:     types.NewID(),
		CreatedAt: time.Now(),
		Locale:    locale,
	}
}
