package pipeline

import (
	"context"
	"strconv"

	"github.com/itinera-ai/itinera/internal/blackboard"
	"github.com/itinera-ai/itinera/internal/feasibility"
	"github.com/itinera-ai/itinera/internal/optimize"
	"github.com/itinera-ai/itinera/internal/stage"
	"github.com/itinera-ai/itinera/internal/trip"
	"github.com/itinera-ai/itinera/internal/types"
)

// DefaultTopK is the shortlist size when the node params give none.
const DefaultTopK = 3

// OptimizeStage refines the candidate pool with bounded local search and
// ranks the result: Pareto frontier plus a weighted Top-K shortlist.
type OptimizeStage struct {
	deps Deps
}

func NewOptimizeStage(deps Deps) *OptimizeStage {
	return &OptimizeStage{deps: deps}
}

func (s *OptimizeStage) Name() string { return StageOptimize }

func (s *OptimizeStage) Invoke(ctx context.Context, snap *blackboard.Snapshot, params stage.Params) (*stage.Outcome, error) {
	constraints, ok := constraintsOf(snap)
	if !ok {
		return stage.FailureOutcome(types.NewError(types.DATA_GAP,
			"no constraints to optimize against")), nil
	}
	pool := poolOf(snap)
	if len(pool) == 0 {
		return stage.FailureOutcome(types.NewError(types.DATA_GAP,
			"no candidates to optimize")), nil
	}

	profile, _ := profileOf(snap)
	weights := trip.DefaultWeights()
	if profile != nil && profile.Weights.Total() > 0 {
		weights = profile.Weights
	}

	transport, lodging, activities := offersOf(snap)
	checker := feasibility.NewChecker(transport, lodging, activities)
	spare := append(append([]trip.Offer(nil), activities...), transport...)
	spare = append(spare, lodging...)

	opts := []optimize.Option{optimize.WithLogger(s.deps.logger())}
	if n := paramInt(params, "beam_width"); n > 0 {
		opts = append(opts, optimize.WithBeamWidth(n))
	}
	if n := paramInt(params, "moves_per_round"); n > 0 {
		opts = append(opts, optimize.WithMovesPerRound(n))
	}
	optimizer := optimize.NewOptimizer(checker, constraints, spare, opts...)

	refined, err := optimizer.Refine(pool, weights)
	if err != nil {
		return stage.FailureOutcome(types.WrapError(types.STAGE_INVOKE_FAILED,
			"candidate refinement failed", err)), nil
	}

	topK := paramInt(params, "top_k")
	if topK <= 0 {
		topK = DefaultTopK
	}
	ranked, err := optimizer.Optimize(refined, weights, topK)
	if err != nil {
		return stage.FailureOutcome(types.WrapError(types.STAGE_INVOKE_FAILED,
			"candidate ranking failed", err)), nil
	}

	s.deps.logger().DebugContext(ctx, "optimization complete",
		"pool", len(ranked.Pool),
		"frontier", len(ranked.Frontier),
		"top", len(ranked.Top),
	)

	patch := (&blackboard.Patch{}).
		Add(blackboard.KeyPool, ranked.Pool, 1.0).
		Add(blackboard.KeyRanked, ranked, 1.0)
	return stage.PatchOutcome(patch), nil
}

// paramInt reads an integer node parameter; YAML-loaded params may carry
// ints, floats or strings.
func paramInt(params stage.Params, key string) int {
	switch v := params[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}
