package pipeline

import (
	"github.com/itinera-ai/itinera/internal/graph"
	"github.com/itinera-ai/itinera/internal/stage"
)

// GraphConfig tunes the default planning graph.
type GraphConfig struct {
	Destination   string
	TopK          int
	LoopCap       int
	BeamWidth     int
	MovesPerRound int
}

// NewRegistry registers the built-in stages against shared dependencies.
func NewRegistry(deps Deps) *stage.Registry {
	return stage.NewRegistry(
		NewClarifyStage(deps),
		NewDestinationStage(deps),
		NewTransportSearchStage(deps),
		NewLodgingSearchStage(deps),
		NewPOISearchStage(deps),
		NewAssembleStage(deps),
		NewFeasibilityStage(deps),
		NewOptimizeStage(deps),
		NewDecideStage(deps),
		NewPresentStage(deps),
	)
}

// DefaultGraph builds the standard planning pipeline: clarification and
// destination resolution, a concurrent search group, assembly,
// validation, ranking, decision and presentation, with bounded feedback
// from validation and decision back to assembly.
func DefaultGraph(cfg GraphConfig) (*graph.Graph, error) {
	optimizeParams := stage.Params{}
	if cfg.TopK > 0 {
		optimizeParams["top_k"] = cfg.TopK
	}
	if cfg.BeamWidth > 0 {
		optimizeParams["beam_width"] = cfg.BeamWidth
	}
	if cfg.MovesPerRound > 0 {
		optimizeParams["moves_per_round"] = cfg.MovesPerRound
	}

	return graph.NewGraph("plan").
		AddStage(StageClarify).
		AddStage(StageDestination, StageClarify).
		AddGroupedStage(StageTransportSearch, groupSearch, StageDestination).
		AddGroupedStage(StageLodgingSearch, groupSearch, StageDestination).
		AddGroupedStage(StagePOISearch, groupSearch, StageDestination).
		AddStage(StageAssemble, StageTransportSearch, StageLodgingSearch, StagePOISearch).
		AddStage(StageFeasibility, StageAssemble).
		AddStage(StageOptimize, StageFeasibility).
		AddStage(StageDecide, StageOptimize).
		AddStage(StagePresent, StageDecide).
		WithPriority(StageTransportSearch, 1).
		WithPriority(StageLodgingSearch, 2).
		WithPriority(StagePOISearch, 3).
		WithParams(StageDestination, stage.Params{"destination": cfg.Destination}).
		WithParams(StageOptimize, optimizeParams).
		AddFeedback(StageFeasibility, StageAssemble, cfg.LoopCap).
		AddFeedback(StageDecide, StageAssemble, cfg.LoopCap).
		Build()
}
