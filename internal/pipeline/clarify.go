package pipeline

import (
	"context"
	"fmt"

	"github.com/itinera-ai/itinera/internal/blackboard"
	"github.com/itinera-ai/itinera/internal/stage"
	"github.com/itinera-ai/itinera/internal/trip"
	"github.com/itinera-ai/itinera/internal/types"
)

// ClarifyStage normalizes the raw request into a consistent profile and
// constraint set: default weights where the traveller gave none, a
// default pace, and validated constraint invariants. A contradiction
// between hard constraints is surfaced as a conflict here rather than
// discovered mid-run.
type ClarifyStage struct {
	deps Deps
}

func NewClarifyStage(deps Deps) *ClarifyStage {
	return &ClarifyStage{deps: deps}
}

func (s *ClarifyStage) Name() string { return StageClarify }

func (s *ClarifyStage) Invoke(ctx context.Context, snap *blackboard.Snapshot, params stage.Params) (*stage.Outcome, error) {
	constraints, ok := constraintsOf(snap)
	if !ok {
		return stage.FailureOutcome(types.NewError(types.CONSTRAINT_CONFLICT,
			"no trip constraints on the blackboard")), nil
	}
	if err := constraints.Validate(); err != nil {
		return stage.FailureOutcome(types.WrapError(types.CONSTRAINT_CONFLICT,
			"trip constraints are inconsistent", err)), nil
	}

	profile, ok := profileOf(snap)
	if !ok {
		profile = &trip.UserProfile{}
	}
	normalized := *profile
	if normalized.Pace == "" {
		normalized.Pace = trip.PaceModerate
	}
	if normalized.Weights.Total() <= 0 {
		normalized.Weights = trip.DefaultWeights()
	}
	if err := normalized.Validate(); err != nil {
		return stage.FailureOutcome(types.WrapError(types.CONSTRAINT_CONFLICT,
			"traveller profile is invalid", err)), nil
	}

	// must_include entries that are also excluded are a hard
	// contradiction the search stages cannot repair.
	excluded := make(map[string]bool, len(constraints.MustExclude))
	for _, name := range constraints.MustExclude {
		excluded[name] = true
	}
	for _, name := range constraints.MustInclude {
		if excluded[name] {
			return stage.FailureOutcome(types.NewError(types.CONSTRAINT_CONFLICT,
				fmt.Sprintf("%q is both required and excluded", name))), nil
		}
	}

	patch := (&blackboard.Patch{}).
		Add(blackboard.KeyProfile, &normalized, 1.0)
	if _, ok := snap.Get(blackboard.KeyTripContext); !ok {
		tc := trip.NewTripContext("")
		patch.Add(blackboard.KeyTripContext, tc, 1.0)
	}
	return stage.PatchOutcome(patch), nil
}

// DestinationStage resolves the requested city against the provider's
// knowledge base. Unknown cities are not an error: the stage records a
// low-confidence generic destination and the search stages synthesize
// template offers for it.
type DestinationStage struct {
	deps Deps
}

func NewDestinationStage(deps Deps) *DestinationStage {
	return &DestinationStage{deps: deps}
}

func (s *DestinationStage) Name() string { return StageDestination }

func (s *DestinationStage) Invoke(ctx context.Context, snap *blackboard.Snapshot, params stage.Params) (*stage.Outcome, error) {
	city := params.String("destination")
	if city == "" {
		return stage.FailureOutcome(types.NewError(types.DATA_GAP,
			"no destination requested")), nil
	}

	dest := Destination{City: city}
	confidence := 0.5
	if s.deps.Static != nil {
		if info, ok := s.deps.Static.City(city); ok {
			dest.Known = true
			dest.Info = info
			confidence = 0.95
		}
	}
	if !dest.Known {
		s.deps.logger().InfoContext(ctx, "destination not in knowledge base, using generic template",
			"city", city)
	}

	patch := (&blackboard.Patch{}).Add(blackboard.KeyDestination, dest, confidence)
	return stage.PatchOutcome(patch), nil
}
