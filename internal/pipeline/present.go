package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/itinera-ai/itinera/internal/blackboard"
	"github.com/itinera-ai/itinera/internal/export"
	"github.com/itinera-ai/itinera/internal/stage"
	"github.com/itinera-ai/itinera/internal/trip"
	"github.com/itinera-ai/itinera/internal/types"
)

// PresentStage renders the accepted candidate into the export plan. When
// the run is degrading it falls back to the best scored candidate and
// marks the plan accordingly.
type PresentStage struct {
	deps Deps
}

func NewPresentStage(deps Deps) *PresentStage {
	return &PresentStage{deps: deps}
}

func (s *PresentStage) Name() string { return StagePresent }

func (s *PresentStage) Invoke(ctx context.Context, snap *blackboard.Snapshot, params stage.Params) (*stage.Outcome, error) {
	candidate, degraded := s.pick(snap)
	if candidate == nil {
		return stage.FailureOutcome(types.NewError(types.DATA_GAP,
			"no candidate available to present")), nil
	}

	constraints, _ := constraintsOf(snap)
	profile, _ := profileOf(snap)
	dest, _ := destinationOf(snap)
	risks, _ := blackboard.TypedValue[[]trip.ConflictRecord](snap, blackboard.KeyRisks)

	opts := export.BuildOptions{
		Destination: dest.City,
		Degraded:    degraded,
	}
	if constraints != nil {
		opts.Budget = constraints.BudgetTotal
	}
	if profile != nil {
		opts.Preferences = themeNames(profile.ThemeWeights)
	}
	if dest.Known {
		opts.BestTime = dest.Info.BestTime
		opts.CostBand = dest.Info.CostBand
		opts.TransitNote = dest.Info.TransitNote
		opts.Tips = cityTips(dest)
	}

	var depart time.Time
	if constraints != nil {
		depart = constraints.Depart
	}
	plan := export.Build(candidate, depart, opts, risks)

	s.deps.logger().InfoContext(ctx, "plan rendered",
		"destination", plan.Destination,
		"days", plan.Days,
		"cost_total", plan.CostTotal,
		"degraded", plan.Degraded,
	)

	patch := (&blackboard.Patch{}).Add(blackboard.KeyPlan, plan, confidenceFor(degraded))
	return stage.PatchOutcome(patch), nil
}

func (s *PresentStage) pick(snap *blackboard.Snapshot) (*trip.CandidateItinerary, bool) {
	if accepted, ok := blackboard.TypedValue[*trip.CandidateItinerary](snap, blackboard.KeyAccepted); ok {
		return accepted, false
	}
	if best, ok := BestScored(snap).(*trip.CandidateItinerary); ok {
		return best, true
	}
	return nil, false
}

func confidenceFor(degraded bool) float64 {
	if degraded {
		return 0.4
	}
	return 1.0
}

func themeNames(weights map[string]float64) []string {
	names := make([]string, 0, len(weights))
	for name := range weights {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if weights[names[i]] != weights[names[j]] {
			return weights[names[i]] > weights[names[j]]
		}
		return names[i] < names[j]
	})
	return names
}

func cityTips(dest Destination) []string {
	var tips []string
	if dest.Info.BestTime != "" {
		tips = append(tips, fmt.Sprintf("Best time to visit %s: %s", dest.City, dest.Info.BestTime))
	}
	if dest.Info.TransitNote != "" {
		tips = append(tips, dest.Info.TransitNote)
	}
	return tips
}
