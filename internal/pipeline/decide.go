package pipeline

import (
	"context"

	"github.com/itinera-ai/itinera/internal/blackboard"
	"github.com/itinera-ai/itinera/internal/optimize"
	"github.com/itinera-ai/itinera/internal/stage"
	"github.com/itinera-ai/itinera/internal/trip"
	"github.com/itinera-ai/itinera/internal/types"
)

// DecideStage accepts the best feasible shortlisted candidate. When no
// shortlisted candidate is feasible it asks for another assembly pass;
// once that feedback budget runs out the scheduler ends the run on the
// best available candidate instead.
type DecideStage struct {
	deps Deps
}

func NewDecideStage(deps Deps) *DecideStage {
	return &DecideStage{deps: deps}
}

func (s *DecideStage) Name() string { return StageDecide }

func (s *DecideStage) Invoke(ctx context.Context, snap *blackboard.Snapshot, params stage.Params) (*stage.Outcome, error) {
	ranked, ok := blackboard.TypedValue[*optimize.Ranked](snap, blackboard.KeyRanked)
	if !ok || len(ranked.Top) == 0 {
		return stage.FailureOutcome(types.NewError(types.DATA_GAP,
			"no ranked candidates to decide between")), nil
	}

	var winner *trip.CandidateItinerary
	for _, candidate := range ranked.Top {
		if candidate.Feasible() {
			winner = candidate
			break
		}
	}

	if winner == nil {
		return stage.RedirectOutcome(nil, &stage.Redirect{
			Targets: []string{StageAssemble},
			Params: stage.Params{
				"exclude_titles": repairExcludes(ranked.Top),
			},
			Reason: "no feasible candidate in the shortlist",
		}), nil
	}

	s.deps.logger().InfoContext(ctx, "candidate accepted",
		"candidate", winner.ID.String(),
		"score", winner.Score,
		"cost", winner.Metrics.CostTotal,
	)

	patch := (&blackboard.Patch{}).Add(blackboard.KeyAccepted, winner, 1.0)
	return stage.PatchOutcome(patch), nil
}

// BestScored is the degrade selector for runs that end without an
// accept: the highest-scoring candidate from the last ranking, feasible
// or not.
func BestScored(snap *blackboard.Snapshot) any {
	if ranked, ok := blackboard.TypedValue[*optimize.Ranked](snap, blackboard.KeyRanked); ok {
		if best := ranked.Best(); best != nil {
			return best
		}
	}
	pool := poolOf(snap)
	var best *trip.CandidateItinerary
	for _, candidate := range pool {
		if best == nil || candidate.Score > best.Score {
			best = candidate
		}
	}
	if best == nil {
		return nil
	}
	return best
}
