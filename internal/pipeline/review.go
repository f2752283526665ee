package pipeline

import (
	"context"
	"fmt"
	"sort"

	"github.com/itinera-ai/itinera/internal/blackboard"
	"github.com/itinera-ai/itinera/internal/feasibility"
	"github.com/itinera-ai/itinera/internal/stage"
	"github.com/itinera-ai/itinera/internal/trip"
	"github.com/itinera-ai/itinera/internal/types"
)

// FeasibilityStage validates every candidate in the pool and annotates it
// with structured conflicts. When the entire pool is infeasible the stage
// redirects back to assembly with the repair hints folded into a narrowed
// parameter set; otherwise advisory findings are published as run risks.
type FeasibilityStage struct {
	deps Deps
}

func NewFeasibilityStage(deps Deps) *FeasibilityStage {
	return &FeasibilityStage{deps: deps}
}

func (s *FeasibilityStage) Name() string { return StageFeasibility }

func (s *FeasibilityStage) Invoke(ctx context.Context, snap *blackboard.Snapshot, params stage.Params) (*stage.Outcome, error) {
	constraints, ok := constraintsOf(snap)
	if !ok {
		return stage.FailureOutcome(types.NewError(types.DATA_GAP,
			"no constraints to validate against")), nil
	}
	pool := poolOf(snap)
	if len(pool) == 0 {
		return stage.FailureOutcome(types.NewError(types.DATA_GAP,
			"no candidates to validate")), nil
	}

	transport, lodging, activities := offersOf(snap)
	checker := feasibility.NewChecker(transport, lodging, activities)

	annotated := make([]*trip.CandidateItinerary, len(pool))
	feasibleCount := 0
	var risks []trip.ConflictRecord

	for i, candidate := range pool {
		c := candidate.CloneWithDays(candidate.Seq, candidate.CloneDays(), candidate.Provenance)
		c.Conflicts = checker.Check(c, constraints)
		annotated[i] = c
		if c.Feasible() {
			feasibleCount++
		}
		for _, rec := range c.Conflicts {
			if !rec.IsHard() {
				risks = append(risks, rec)
			}
		}
	}

	s.deps.logger().DebugContext(ctx, "feasibility check complete",
		"candidates", len(annotated),
		"feasible", feasibleCount,
	)

	patch := (&blackboard.Patch{}).
		Add(blackboard.KeyPool, annotated, 1.0).
		Add(blackboard.KeyRisks, risks, 1.0)

	if feasibleCount > 0 {
		return stage.PatchOutcome(patch), nil
	}

	// Every candidate is broken: hand the repair hints back to assembly.
	exclude := repairExcludes(annotated)
	return stage.RedirectOutcome(patch, &stage.Redirect{
		Targets: []string{StageAssemble},
		Params: stage.Params{
			"exclude_titles": exclude,
		},
		Reason: fmt.Sprintf("all %d candidates carry hard conflicts", len(annotated)),
	}), nil
}

// repairExcludes collects the offer titles the conflict repair hints
// suggest swapping or dropping, deduplicated and sorted.
func repairExcludes(pool []*trip.CandidateItinerary) []string {
	seen := map[string]bool{}
	for _, candidate := range pool {
		for _, rec := range trip.HardConflicts(candidate.Conflicts) {
			switch rec.Repair.Action {
			case trip.RepairSwapOffer, trip.RepairDropItem:
				if rec.Repair.TargetName != "" {
					seen[rec.Repair.TargetName] = true
				}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
