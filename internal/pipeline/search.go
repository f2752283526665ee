package pipeline

import (
	"context"

	"github.com/itinera-ai/itinera/internal/blackboard"
	"github.com/itinera-ai/itinera/internal/stage"
	"github.com/itinera-ai/itinera/internal/supply"
	"github.com/itinera-ai/itinera/internal/trip"
	"github.com/itinera-ai/itinera/internal/types"
)

// SearchStage queries one supply category and publishes the offers under
// that category's blackboard key. The three instances form a concurrent
// group; each failure or timeout degrades independently so one slow
// provider never blocks the others.
type SearchStage struct {
	name  string
	kind  trip.OfferKind
	key   string
	slice float64
	deps  Deps
}

func NewTransportSearchStage(deps Deps) *SearchStage {
	return &SearchStage{
		name:  StageTransportSearch,
		kind:  trip.OfferTransport,
		key:   blackboard.KeyTransportOffers,
		slice: transportShare,
		deps:  deps,
	}
}

func NewLodgingSearchStage(deps Deps) *SearchStage {
	return &SearchStage{
		name:  StageLodgingSearch,
		kind:  trip.OfferLodging,
		key:   blackboard.KeyLodgingOffers,
		slice: lodgingShare,
		deps:  deps,
	}
}

func NewPOISearchStage(deps Deps) *SearchStage {
	return &SearchStage{
		name:  StagePOISearch,
		kind:  trip.OfferActivity,
		key:   blackboard.KeyActivityOffers,
		slice: activityShare,
		deps:  deps,
	}
}

func (s *SearchStage) Name() string { return s.name }

func (s *SearchStage) criteria(snap *blackboard.Snapshot, params stage.Params) (supply.Criteria, bool) {
	constraints, ok := constraintsOf(snap)
	if !ok {
		return supply.Criteria{}, false
	}
	dest, ok := destinationOf(snap)
	if !ok {
		return supply.Criteria{}, false
	}
	return supply.Criteria{
		Kind:        s.kind,
		City:        dest.City,
		WindowStart: constraints.Depart,
		WindowEnd:   constraints.Return,
		BudgetSlice: constraints.BudgetTotal * s.slice,
		Exclude:     params.StringSlice("exclude"),
	}, true
}

func (s *SearchStage) Invoke(ctx context.Context, snap *blackboard.Snapshot, params stage.Params) (*stage.Outcome, error) {
	criteria, ok := s.criteria(snap, params)
	if !ok {
		return stage.FailureOutcome(types.NewError(types.DATA_GAP,
			"constraints or destination missing, cannot query supply")), nil
	}

	offers, err := s.deps.Provider.Query(ctx, criteria)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		// A failed query is a data gap, not a fatal error; a narrowed
		// re-run over a feedback edge may succeed, so the failure is
		// marked retryable.
		fail := types.NewRetryableError(types.SUPPLY_QUERY_FAILED, "supply query failed")
		fail.Cause = err
		return stage.FailureOutcome(fail), nil
	}

	s.deps.logger().DebugContext(ctx, "supply query complete",
		"stage", s.name,
		"city", criteria.City,
		"offers", len(offers),
	)

	confidence := poolConfidence(offers)
	patch := (&blackboard.Patch{}).Add(s.key, offers, confidence)
	return stage.PatchOutcome(patch), nil
}

// Fallback synthesizes low-confidence template offers when the live
// query timed out. The scheduler merges them tagged degraded so the
// presentation layer can mark affected entries as tentative.
func (s *SearchStage) Fallback(snap *blackboard.Snapshot, params stage.Params) *blackboard.Patch {
	criteria, ok := s.criteria(snap, params)
	if !ok {
		return nil
	}
	fallback := supply.NewStaticProvider()
	offers, err := fallback.Query(context.Background(), criteria)
	if err != nil || len(offers) == 0 {
		return nil
	}
	return (&blackboard.Patch{}).Add(s.key, offers, 0)
}

// poolConfidence is the minimum offer confidence in the pool, so one
// synthesized record is enough to mark the whole key as shaky.
func poolConfidence(offers []trip.Offer) float64 {
	if len(offers) == 0 {
		return 0
	}
	min := offers[0].Confidence
	for _, o := range offers[1:] {
		if o.Confidence < min {
			min = o.Confidence
		}
	}
	return min
}
