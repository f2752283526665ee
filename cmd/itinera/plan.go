package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/itinera-ai/itinera/internal/blackboard"
	"github.com/itinera-ai/itinera/internal/config"
	"github.com/itinera-ai/itinera/internal/export"
	"github.com/itinera-ai/itinera/internal/graph"
	"github.com/itinera-ai/itinera/internal/pipeline"
	"github.com/itinera-ai/itinera/internal/stage"
	"github.com/itinera-ai/itinera/internal/supply"
	"github.com/itinera-ai/itinera/internal/trip"
)

var (
	planDestination string
	planDays        int
	planBudget      float64
	planPrefs       []string
	planOutput      string
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Plan a trip",
	Long: `Plan runs the full planning pipeline for one trip request and
prints the resulting itinerary. Request fields come from the config
file; flags override individual fields.`,
	RunE: runPlan,
}

func init() {
	planCmd.Flags().StringVarP(&planDestination, "destination", "d", "", "Destination city")
	planCmd.Flags().IntVar(&planDays, "days", 0, "Trip length in days")
	planCmd.Flags().Float64Var(&planBudget, "budget", 0, "Total budget ceiling")
	planCmd.Flags().StringSliceVarP(&planPrefs, "prefer", "p", nil, "Preference themes, strongest first")
	planCmd.Flags().StringVarP(&planOutput, "output", "o", "yaml", "Output format (yaml or json)")
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := loadPlanConfig()
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Log.Level, cfg.Log.Format)
	tracer := otel.Tracer("itinera")

	constraints, err := cfg.Trip.Constraints()
	if err != nil {
		return err
	}
	profile := cfg.Trip.Profile()

	provider := supply.NewStaticProvider()
	deps := pipeline.Deps{
		Provider: provider,
		Static:   provider,
		Logger:   logger,
	}

	g, err := pipeline.DefaultGraph(pipeline.GraphConfig{
		Destination:   cfg.Trip.Destination,
		TopK:          cfg.Engine.TopK,
		LoopCap:       cfg.Engine.LoopCap,
		BeamWidth:     cfg.Engine.BeamWidth,
		MovesPerRound: cfg.Engine.MovesPerRound,
	})
	if err != nil {
		return err
	}

	board := blackboard.New()
	board.Set(blackboard.KeyConstraints, constraints, "intake", 1.0)
	board.Set(blackboard.KeyProfile, profile, "intake", 1.0)
	board.Set(blackboard.KeyTripContext, trip.NewTripContext(""), "intake", 1.0)

	runner := stage.NewRunner(
		stage.WithLogger(logger),
		stage.WithTracer(tracer),
	)
	scheduler := graph.NewScheduler(pipeline.NewRegistry(deps), runner,
		graph.WithLogger(logger),
		graph.WithTracer(tracer),
		graph.WithStageTimeout(cfg.Engine.StageTimeout),
		graph.WithWallClockBudget(cfg.Engine.WallBudget),
		graph.WithMaxParallel(cfg.Engine.MaxParallel),
		graph.WithDegradeSelector(pipeline.BestScored),
	)

	result, err := scheduler.Run(cmd.Context(), g, board)
	if err != nil {
		return err
	}

	plan, ok := blackboard.TypedValue[*export.Plan](result.Final, blackboard.KeyPlan)
	if !ok {
		return fmt.Errorf("run finished (%s) but produced no plan", result.Reason)
	}
	if result.Degraded {
		plan.Degraded = true
	}

	var out []byte
	if planOutput == "json" {
		out, err = plan.MarshalJSONDoc()
	} else {
		out, err = plan.MarshalYAMLDoc()
	}
	if err != nil {
		return fmt.Errorf("failed to render plan: %w", err)
	}
	cmd.Println(string(out))

	logger.Info("run complete",
		"reason", result.Reason,
		"degraded", result.Degraded,
		"duration", result.Duration,
	)
	return nil
}

// loadPlanConfig loads the config file, layers flag overrides on top,
// and validates the result. Validation runs last so a partial file plus
// flags is a valid request.
func loadPlanConfig() (*config.Config, error) {
	validator := config.NewValidator()

	var cfg *config.Config
	if configFile != "" {
		parsed, err := config.NewLoader(validator).Parse(configFile)
		if err != nil {
			return nil, err
		}
		cfg = parsed
	} else {
		cfg = config.DefaultConfig()
	}

	if planDestination != "" {
		cfg.Trip.Destination = planDestination
	}
	if planDays > 0 {
		cfg.Trip.Days = planDays
	}
	if planBudget > 0 {
		cfg.Trip.Budget = planBudget
	}
	if len(planPrefs) > 0 {
		cfg.Trip.Preferences = planPrefs
	}

	if cfg.Trip.Destination == "" {
		return nil, fmt.Errorf("no destination given: set trip.destination or use --destination")
	}
	if err := validator.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
