// Package pipeline provides the built-in planning stages and the default
// graph that wires them together: clarify the request, resolve the
// destination, query supply concurrently, assemble candidate plans,
// validate them, rank them, decide, and render the winner.
package pipeline

import (
	"log/slog"

	"github.com/itinera-ai/itinera/internal/blackboard"
	"github.com/itinera-ai/itinera/internal/supply"
	"github.com/itinera-ai/itinera/internal/trip"
)

// Stage node names used across the default graph and feedback edges.
const (
	StageClarify         = "clarify"
	StageDestination     = "destination"
	StageTransportSearch = "transport-search"
	StageLodgingSearch   = "lodging-search"
	StagePOISearch       = "poi-search"
	StageAssemble        = "assemble"
	StageFeasibility     = "feasibility"
	StageOptimize        = "optimize"
	StageDecide          = "decide"
	StagePresent         = "present"
)

// groupSearch labels the concurrent supply-query group.
const groupSearch = "search"

// Budget shares used to slice the trip ceiling across supply categories
// when building query criteria.
const (
	transportShare = 0.35
	lodgingShare   = 0.30
	activityShare  = 0.35
)

// Deps carries the shared collaborators stages need.
type Deps struct {
	Provider supply.Provider
	Static   *supply.StaticProvider
	Logger   *slog.Logger
}

func (d Deps) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// Destination is the resolved target written to the blackboard by the
// destination stage.
type Destination struct {
	City  string          `json:"city" yaml:"city"`
	Known bool            `json:"known" yaml:"known"`
	Info  supply.CityInfo `json:"info" yaml:"info"`
}

// constraintsOf reads the trip constraints from a snapshot.
func constraintsOf(snap *blackboard.Snapshot) (*trip.Constraints, bool) {
	return blackboard.TypedValue[*trip.Constraints](snap, blackboard.KeyConstraints)
}

// profileOf reads the traveller profile from a snapshot.
func profileOf(snap *blackboard.Snapshot) (*trip.UserProfile, bool) {
	return blackboard.TypedValue[*trip.UserProfile](snap, blackboard.KeyProfile)
}

// destinationOf reads the resolved destination from a snapshot.
func destinationOf(snap *blackboard.Snapshot) (Destination, bool) {
	return blackboard.TypedValue[Destination](snap, blackboard.KeyDestination)
}

// poolOf reads the candidate pool from a snapshot.
func poolOf(snap *blackboard.Snapshot) []*trip.CandidateItinerary {
	pool, _ := blackboard.TypedValue[[]*trip.CandidateItinerary](snap, blackboard.KeyPool)
	return pool
}

// offersOf collects the three offer pools from a snapshot.
func offersOf(snap *blackboard.Snapshot) (transport, lodging, activities []trip.Offer) {
	transport, _ = blackboard.TypedValue[[]trip.Offer](snap, blackboard.KeyTransportOffers)
	lodging, _ = blackboard.TypedValue[[]trip.Offer](snap, blackboard.KeyLodgingOffers)
	activities, _ = blackboard.TypedValue[[]trip.Offer](snap, blackboard.KeyActivityOffers)
	return transport, lodging, activities
}
