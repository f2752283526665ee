package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itinera-ai/itinera/internal/blackboard"
	"github.com/itinera-ai/itinera/internal/export"
	"github.com/itinera-ai/itinera/internal/feasibility"
	"github.com/itinera-ai/itinera/internal/graph"
	"github.com/itinera-ai/itinera/internal/optimize"
	"github.com/itinera-ai/itinera/internal/stage"
	"github.com/itinera-ai/itinera/internal/supply"
	"github.com/itinera-ai/itinera/internal/trip"
	"github.com/itinera-ai/itinera/internal/types"
)

func testDeps() Deps {
	static := supply.NewStaticProvider()
	return Deps{
		Provider: static,
		Static:   static,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func testConstraints() *trip.Constraints {
	depart := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	return &trip.Constraints{
		BudgetTotal: 12000,
		Depart:      depart,
		Return:      depart.AddDate(0, 0, 2),
		Party:       trip.PartyComposition{Adults: 1},
	}
}

func testProfile() *trip.UserProfile {
	return &trip.UserProfile{Pace: trip.PaceModerate, Weights: trip.DefaultWeights()}
}

// snapWith builds a snapshot holding the given entries.
func snapWith(entries map[string]any) *blackboard.Snapshot {
	board := blackboard.New()
	for key, value := range entries {
		board.Set(key, value, "test", 1.0)
	}
	return board.Snapshot()
}

// patchValue extracts one key from a patch, or nil.
func patchValue(patch *blackboard.Patch, key string) any {
	if patch == nil {
		return nil
	}
	for _, e := range patch.Entries {
		if e.Key == key {
			return e.Value
		}
	}
	return nil
}

func tokyoOffers(t *testing.T, deps Deps, kind trip.OfferKind) []trip.Offer {
	t.Helper()
	c := testConstraints()
	offers, err := deps.Provider.Query(context.Background(), supply.Criteria{
		Kind:        kind,
		City:        "Tokyo",
		WindowStart: c.Depart,
		WindowEnd:   c.Return,
	})
	require.NoError(t, err)
	return offers
}

// fullSnap is a snapshot as the assemble stage sees it: constraints,
// profile, destination and all three offer pools.
func fullSnap(t *testing.T, deps Deps, constraints *trip.Constraints) *blackboard.Snapshot {
	t.Helper()
	info, ok := deps.Static.City("Tokyo")
	require.True(t, ok)
	return snapWith(map[string]any{
		blackboard.KeyConstraints:     constraints,
		blackboard.KeyProfile:         testProfile(),
		blackboard.KeyDestination:     Destination{City: "Tokyo", Known: true, Info: info},
		blackboard.KeyTransportOffers: tokyoOffers(t, deps, trip.OfferTransport),
		blackboard.KeyLodgingOffers:   tokyoOffers(t, deps, trip.OfferLodging),
		blackboard.KeyActivityOffers:  tokyoOffers(t, deps, trip.OfferActivity),
	})
}

// TestClarifyStageFillsProfileDefaults verifies the clarify stage
// normalizes a missing profile to moderate pace and even weights, and
// seeds the trip context when absent.
func TestClarifyStageFillsProfileDefaults(t *testing.T) {
	s := NewClarifyStage(testDeps())
	snap := snapWith(map[string]any{blackboard.KeyConstraints: testConstraints()})

	outcome, err := s.Invoke(context.Background(), snap, nil)
	require.NoError(t, err)
	require.Equal(t, stage.OutcomePatch, outcome.Kind)

	profile, ok := patchValue(outcome.Patch, blackboard.KeyProfile).(*trip.UserProfile)
	require.True(t, ok)
	assert.Equal(t, trip.PaceModerate, profile.Pace)
	assert.Equal(t, trip.DefaultWeights(), profile.Weights)
	assert.NotNil(t, patchValue(outcome.Patch, blackboard.KeyTripContext))
}

// TestClarifyStageRejectsContradiction verifies an item that is both
// required and excluded fails clarification.
func TestClarifyStageRejectsContradiction(t *testing.T) {
	s := NewClarifyStage(testDeps())
	constraints := testConstraints()
	constraints.MustInclude = []string{"Louvre Museum"}
	constraints.MustExclude = []string{"Louvre Museum"}
	snap := snapWith(map[string]any{blackboard.KeyConstraints: constraints})

	outcome, err := s.Invoke(context.Background(), snap, nil)
	require.NoError(t, err)
	require.Equal(t, stage.OutcomeFailure, outcome.Kind)
	assert.Equal(t, types.CONSTRAINT_CONFLICT, outcome.Failure.Code)
}

// TestClarifyStageRequiresConstraints verifies clarification fails when
// the blackboard carries no constraints at all.
func TestClarifyStageRequiresConstraints(t *testing.T) {
	s := NewClarifyStage(testDeps())

	outcome, err := s.Invoke(context.Background(), snapWith(nil), nil)
	require.NoError(t, err)
	require.Equal(t, stage.OutcomeFailure, outcome.Kind)
	assert.Equal(t, types.CONSTRAINT_CONFLICT, outcome.Failure.Code)
}

// TestDestinationStageResolvesKnownCity verifies a knowledge-base hit is
// published at high confidence with the city info attached.
func TestDestinationStageResolvesKnownCity(t *testing.T) {
	s := NewDestinationStage(testDeps())

	outcome, err := s.Invoke(context.Background(), snapWith(nil), stage.Params{"destination": "Tokyo"})
	require.NoError(t, err)
	require.Equal(t, stage.OutcomePatch, outcome.Kind)

	require.Len(t, outcome.Patch.Entries, 1)
	assert.Equal(t, 0.95, outcome.Patch.Entries[0].Confidence)
	dest, ok := outcome.Patch.Entries[0].Value.(Destination)
	require.True(t, ok)
	assert.True(t, dest.Known)
	assert.NotEmpty(t, dest.Info.TransitNote)
}

// TestDestinationStageUnknownCity verifies an unknown city degrades to a
// low-confidence generic destination instead of failing.
func TestDestinationStageUnknownCity(t *testing.T) {
	s := NewDestinationStage(testDeps())

	outcome, err := s.Invoke(context.Background(), snapWith(nil), stage.Params{"destination": "Atlantis"})
	require.NoError(t, err)
	require.Equal(t, stage.OutcomePatch, outcome.Kind)
	assert.Equal(t, 0.5, outcome.Patch.Entries[0].Confidence)
	dest := outcome.Patch.Entries[0].Value.(Destination)
	assert.False(t, dest.Known)
	assert.Equal(t, "Atlantis", dest.City)
}

// TestDestinationStageRequiresParam verifies a missing destination
// parameter is a data gap.
func TestDestinationStageRequiresParam(t *testing.T) {
	s := NewDestinationStage(testDeps())

	outcome, err := s.Invoke(context.Background(), snapWith(nil), nil)
	require.NoError(t, err)
	require.Equal(t, stage.OutcomeFailure, outcome.Kind)
	assert.Equal(t, types.DATA_GAP, outcome.Failure.Code)
}

// TestSearchStagePublishesOffers verifies the transport search stage
// writes the provider's offers under its key at pool confidence.
func TestSearchStagePublishesOffers(t *testing.T) {
	deps := testDeps()
	s := NewTransportSearchStage(deps)
	info, _ := deps.Static.City("Tokyo")
	snap := snapWith(map[string]any{
		blackboard.KeyConstraints: testConstraints(),
		blackboard.KeyDestination: Destination{City: "Tokyo", Known: true, Info: info},
	})

	outcome, err := s.Invoke(context.Background(), snap, nil)
	require.NoError(t, err)
	require.Equal(t, stage.OutcomePatch, outcome.Kind)

	offers, ok := patchValue(outcome.Patch, blackboard.KeyTransportOffers).([]trip.Offer)
	require.True(t, ok)
	assert.Len(t, offers, 3)
	assert.Equal(t, 0.9, outcome.Patch.Entries[0].Confidence)
}

// TestSearchStageRequiresDestination verifies a search without a resolved
// destination fails as a data gap rather than querying blind.
func TestSearchStageRequiresDestination(t *testing.T) {
	s := NewPOISearchStage(testDeps())
	snap := snapWith(map[string]any{blackboard.KeyConstraints: testConstraints()})

	outcome, err := s.Invoke(context.Background(), snap, nil)
	require.NoError(t, err)
	require.Equal(t, stage.OutcomeFailure, outcome.Kind)
	assert.Equal(t, types.DATA_GAP, outcome.Failure.Code)
}

type failingProvider struct{ err error }

func (p failingProvider) Query(ctx context.Context, criteria supply.Criteria) ([]trip.Offer, error) {
	return nil, p.err
}

// TestSearchStageProviderError verifies a hard provider error becomes a
// typed failure outcome, not a runner error.
func TestSearchStageProviderError(t *testing.T) {
	deps := testDeps()
	deps.Provider = failingProvider{err: errors.New("upstream down")}
	s := NewLodgingSearchStage(deps)
	info, _ := deps.Static.City("Tokyo")
	snap := snapWith(map[string]any{
		blackboard.KeyConstraints: testConstraints(),
		blackboard.KeyDestination: Destination{City: "Tokyo", Known: true, Info: info},
	})

	outcome, err := s.Invoke(context.Background(), snap, nil)
	require.NoError(t, err)
	require.Equal(t, stage.OutcomeFailure, outcome.Kind)
	assert.Equal(t, types.SUPPLY_QUERY_FAILED, outcome.Failure.Code)
	assert.True(t, types.IsRetryable(outcome.Failure), "a narrowed re-run may succeed")
	assert.ErrorContains(t, outcome.Failure, "upstream down")
}

// TestSearchStageFallback verifies the timeout fallback synthesizes a
// template patch tagged at zero confidence.
func TestSearchStageFallback(t *testing.T) {
	deps := testDeps()
	s := NewPOISearchStage(deps)
	info, _ := deps.Static.City("Tokyo")
	snap := snapWith(map[string]any{
		blackboard.KeyConstraints: testConstraints(),
		blackboard.KeyDestination: Destination{City: "Tokyo", Known: true, Info: info},
	})

	patch := s.Fallback(snap, nil)
	require.NotNil(t, patch)
	require.Len(t, patch.Entries, 1)
	assert.Equal(t, blackboard.KeyActivityOffers, patch.Entries[0].Key)
	assert.Equal(t, 0.0, patch.Entries[0].Confidence)
	assert.NotEmpty(t, patch.Entries[0].Value.([]trip.Offer))
}

// TestAssembleStageBuildsFeasiblePool verifies assembly yields one
// candidate per budget tier, each with a consistent ledger and no hard
// conflicts against a generous budget.
func TestAssembleStageBuildsFeasiblePool(t *testing.T) {
	deps := testDeps()
	constraints := testConstraints()
	s := NewAssembleStage(deps)
	snap := fullSnap(t, deps, constraints)

	outcome, err := s.Invoke(context.Background(), snap, nil)
	require.NoError(t, err)
	require.Equal(t, stage.OutcomePatch, outcome.Kind)

	pool, ok := patchValue(outcome.Patch, blackboard.KeyPool).([]*trip.CandidateItinerary)
	require.True(t, ok)
	require.Len(t, pool, 3)

	checker := feasibility.NewChecker(
		tokyoOffers(t, deps, trip.OfferTransport),
		tokyoOffers(t, deps, trip.OfferLodging),
		tokyoOffers(t, deps, trip.OfferActivity),
	)
	for _, candidate := range pool {
		require.NoError(t, candidate.ValidateLedger())
		assert.Len(t, candidate.Days, constraints.Days())
		conflicts := checker.Check(candidate, constraints)
		assert.Empty(t, trip.HardConflicts(conflicts),
			"candidate %d should have no hard conflicts", candidate.Seq)
	}

	// Tiers are paired cheapest-first, so cost rises across the pool.
	assert.Less(t, pool[0].Metrics.CostTotal, pool[2].Metrics.CostTotal)
}

// TestAssembleStageHonorsExcludeTitles verifies a feedback-narrowed
// exclude list keeps the named offer out of every candidate.
func TestAssembleStageHonorsExcludeTitles(t *testing.T) {
	deps := testDeps()
	s := NewAssembleStage(deps)
	snap := fullSnap(t, deps, testConstraints())
	params := stage.Params{"exclude_titles": []string{"Senso-ji and Kaminarimon"}}

	outcome, err := s.Invoke(context.Background(), snap, params)
	require.NoError(t, err)
	require.Equal(t, stage.OutcomePatch, outcome.Kind)

	pool := patchValue(outcome.Patch, blackboard.KeyPool).([]*trip.CandidateItinerary)
	for _, candidate := range pool {
		for _, day := range candidate.Days {
			for _, item := range day.Items {
				assert.NotEqual(t, "Senso-ji and Kaminarimon", item.Title)
			}
		}
	}
}

// TestAssembleStageKeepsFeasiblePrior verifies re-assembly extends the
// surviving pool instead of restarting candidate numbering.
func TestAssembleStageKeepsFeasiblePrior(t *testing.T) {
	deps := testDeps()
	s := NewAssembleStage(deps)
	constraints := testConstraints()

	day := trip.Day{Index: 1, Items: []trip.Item{{
		Type:  trip.ItemPOI,
		Title: "Existing walk",
		Start: constraints.Depart.Add(10 * time.Hour),
		End:   constraints.Depart.Add(12 * time.Hour),
	}}}
	prior := trip.NewCandidate(7, []trip.Day{day})

	board := blackboard.New()
	snap := fullSnap(t, deps, constraints)
	for _, key := range snap.Keys() {
		entry, _ := snap.Get(key)
		board.Set(key, entry.Value, "test", entry.Confidence)
	}
	board.Set(blackboard.KeyPool, []*trip.CandidateItinerary{prior}, "test", 1.0)

	outcome, err := s.Invoke(context.Background(), board.Snapshot(), nil)
	require.NoError(t, err)

	pool := patchValue(outcome.Patch, blackboard.KeyPool).([]*trip.CandidateItinerary)
	require.Len(t, pool, 4)
	assert.Equal(t, 7, pool[0].Seq)
	for _, candidate := range pool[1:] {
		assert.Greater(t, candidate.Seq, 7)
	}
}

// TestFeasibilityStageAnnotatesPool verifies a healthy pool is annotated
// and republished, with advisory findings collected as run risks.
func TestFeasibilityStageAnnotatesPool(t *testing.T) {
	deps := testDeps()
	constraints := testConstraints()
	snapOffers := fullSnap(t, deps, constraints)

	assembleOutcome, err := NewAssembleStage(deps).Invoke(context.Background(), snapOffers, nil)
	require.NoError(t, err)
	pool := patchValue(assembleOutcome.Patch, blackboard.KeyPool).([]*trip.CandidateItinerary)

	board := blackboard.New()
	for _, key := range snapOffers.Keys() {
		entry, _ := snapOffers.Get(key)
		board.Set(key, entry.Value, "test", entry.Confidence)
	}
	board.Set(blackboard.KeyPool, pool, "test", 1.0)

	outcome, err := NewFeasibilityStage(deps).Invoke(context.Background(), board.Snapshot(), nil)
	require.NoError(t, err)
	require.Equal(t, stage.OutcomePatch, outcome.Kind)

	annotated := patchValue(outcome.Patch, blackboard.KeyPool).([]*trip.CandidateItinerary)
	require.Len(t, annotated, len(pool))
	for _, candidate := range annotated {
		assert.True(t, candidate.Feasible())
	}

	risks, _ := patchValue(outcome.Patch, blackboard.KeyRisks).([]trip.ConflictRecord)
	for _, rec := range risks {
		assert.False(t, rec.IsHard())
	}
	// Input candidates are not mutated in place.
	for _, candidate := range pool {
		assert.Nil(t, candidate.Conflicts)
	}
}

// TestFeasibilityStageRedirectsWhenAllBroken verifies a pool where every
// candidate busts the budget ceiling triggers a repair redirect back to
// assembly carrying the swap hints.
func TestFeasibilityStageRedirectsWhenAllBroken(t *testing.T) {
	deps := testDeps()
	constraints := testConstraints()
	snapOffers := fullSnap(t, deps, constraints)

	assembleOutcome, err := NewAssembleStage(deps).Invoke(context.Background(), snapOffers, nil)
	require.NoError(t, err)
	pool := patchValue(assembleOutcome.Patch, blackboard.KeyPool).([]*trip.CandidateItinerary)

	tight := testConstraints()
	tight.BudgetTotal = 100

	board := blackboard.New()
	for _, key := range snapOffers.Keys() {
		entry, _ := snapOffers.Get(key)
		board.Set(key, entry.Value, "test", entry.Confidence)
	}
	board.Set(blackboard.KeyConstraints, tight, "test", 1.0)
	board.Set(blackboard.KeyPool, pool, "test", 1.0)

	outcome, err := NewFeasibilityStage(deps).Invoke(context.Background(), board.Snapshot(), nil)
	require.NoError(t, err)
	require.Equal(t, stage.OutcomeRedirect, outcome.Kind)
	require.NotNil(t, outcome.Redirect)
	assert.Equal(t, []string{StageAssemble}, outcome.Redirect.Targets)
	assert.NotEmpty(t, outcome.Redirect.Params.StringSlice("exclude_titles"))
	// The annotated pool still rides along with the redirect.
	assert.NotNil(t, patchValue(outcome.Patch, blackboard.KeyPool))
}

// TestDecideStageAcceptsFeasibleTop verifies the decide stage accepts the
// first feasible shortlist member.
func TestDecideStageAcceptsFeasibleTop(t *testing.T) {
	deps := testDeps()
	constraints := testConstraints()
	winner := trip.NewCandidate(0, []trip.Day{{Index: 1, Items: []trip.Item{{
		Type:  trip.ItemPOI,
		Title: "City walk",
		Start: constraints.Depart.Add(10 * time.Hour),
		End:   constraints.Depart.Add(12 * time.Hour),
	}}}})
	ranked := &optimize.Ranked{
		Pool:     []*trip.CandidateItinerary{winner},
		Frontier: []*trip.CandidateItinerary{winner},
		Top:      []*trip.CandidateItinerary{winner},
	}
	snap := snapWith(map[string]any{blackboard.KeyRanked: ranked})

	outcome, err := NewDecideStage(deps).Invoke(context.Background(), snap, nil)
	require.NoError(t, err)
	require.Equal(t, stage.OutcomePatch, outcome.Kind)

	accepted, ok := patchValue(outcome.Patch, blackboard.KeyAccepted).(*trip.CandidateItinerary)
	require.True(t, ok)
	assert.Same(t, winner, accepted)
}

// TestDecideStageRedirectsWhenTopInfeasible verifies an all-infeasible
// shortlist produces a redirect with the repair exclusions attached.
func TestDecideStageRedirectsWhenTopInfeasible(t *testing.T) {
	deps := testDeps()
	constraints := testConstraints()
	broken := trip.NewCandidate(0, []trip.Day{{Index: 1, Items: []trip.Item{{
		Type:  trip.ItemPOI,
		Title: "Crowded tower",
		Start: constraints.Depart.Add(10 * time.Hour),
		End:   constraints.Depart.Add(12 * time.Hour),
	}}}})
	broken.Conflicts = []trip.ConflictRecord{{
		Category: trip.ConflictInventory,
		Severity: trip.SeverityBlocking,
		Repair:   trip.RepairHint{Action: trip.RepairSwapOffer, TargetName: "Crowded tower"},
	}}
	ranked := &optimize.Ranked{Top: []*trip.CandidateItinerary{broken}}
	snap := snapWith(map[string]any{blackboard.KeyRanked: ranked})

	outcome, err := NewDecideStage(deps).Invoke(context.Background(), snap, nil)
	require.NoError(t, err)
	require.Equal(t, stage.OutcomeRedirect, outcome.Kind)
	assert.Equal(t, []string{StageAssemble}, outcome.Redirect.Targets)
	assert.Equal(t, []string{"Crowded tower"}, outcome.Redirect.Params.StringSlice("exclude_titles"))
}

// TestDecideStageNoRanking verifies deciding without a ranking fails as a
// data gap.
func TestDecideStageNoRanking(t *testing.T) {
	outcome, err := NewDecideStage(testDeps()).Invoke(context.Background(), snapWith(nil), nil)
	require.NoError(t, err)
	require.Equal(t, stage.OutcomeFailure, outcome.Kind)
	assert.Equal(t, types.DATA_GAP, outcome.Failure.Code)
}

// TestBestScoredSelector verifies the degrade selector prefers the last
// ranking and falls back to the raw pool's best score.
func TestBestScoredSelector(t *testing.T) {
	constraints := testConstraints()
	mk := func(seq int, score float64) *trip.CandidateItinerary {
		c := trip.NewCandidate(seq, []trip.Day{{Index: 1, Items: []trip.Item{{
			Type:  trip.ItemPOI,
			Title: "Walk",
			Start: constraints.Depart.Add(10 * time.Hour),
			End:   constraints.Depart.Add(11 * time.Hour),
		}}}})
		c.Score = score
		return c
	}

	top := mk(0, 0.9)
	ranked := &optimize.Ranked{Top: []*trip.CandidateItinerary{top}}
	got := BestScored(snapWith(map[string]any{blackboard.KeyRanked: ranked}))
	assert.Same(t, top, got)

	low, high := mk(1, 0.2), mk(2, 0.7)
	got = BestScored(snapWith(map[string]any{
		blackboard.KeyPool: []*trip.CandidateItinerary{low, high},
	}))
	assert.Same(t, high, got)

	assert.Nil(t, BestScored(snapWith(nil)))
}

// TestPresentStageRendersAcceptedPlan verifies presentation renders the
// accepted candidate at full confidence.
func TestPresentStageRendersAcceptedPlan(t *testing.T) {
	deps := testDeps()
	constraints := testConstraints()
	info, _ := deps.Static.City("Tokyo")
	accepted := trip.NewCandidate(0, []trip.Day{{Index: 1, Items: []trip.Item{{
		Type:  trip.ItemPOI,
		Title: "Shibuya Crossing and Shinjuku views",
		Start: constraints.Depart.Add(10 * time.Hour),
		End:   constraints.Depart.Add(12 * time.Hour),
	}}}})
	snap := snapWith(map[string]any{
		blackboard.KeyConstraints: constraints,
		blackboard.KeyProfile:     testProfile(),
		blackboard.KeyDestination: Destination{City: "Tokyo", Known: true, Info: info},
		blackboard.KeyAccepted:    accepted,
	})

	outcome, err := NewPresentStage(deps).Invoke(context.Background(), snap, nil)
	require.NoError(t, err)
	require.Equal(t, stage.OutcomePatch, outcome.Kind)
	require.Len(t, outcome.Patch.Entries, 1)
	assert.Equal(t, 1.0, outcome.Patch.Entries[0].Confidence)

	plan, ok := outcome.Patch.Entries[0].Value.(*export.Plan)
	require.True(t, ok)
	assert.Equal(t, "Tokyo", plan.Destination)
	assert.False(t, plan.Degraded)
	assert.NotEmpty(t, plan.Tips)
}

// TestPresentStageDegradesToBestScored verifies that without an accepted
// candidate, presentation renders the best scored one as degraded.
func TestPresentStageDegradesToBestScored(t *testing.T) {
	deps := testDeps()
	constraints := testConstraints()
	candidate := trip.NewCandidate(0, []trip.Day{{Index: 1, Items: []trip.Item{{
		Type:  trip.ItemPOI,
		Title: "City walk",
		Start: constraints.Depart.Add(10 * time.Hour),
		End:   constraints.Depart.Add(12 * time.Hour),
	}}}})
	candidate.Score = 0.4
	snap := snapWith(map[string]any{
		blackboard.KeyConstraints: constraints,
		blackboard.KeyPool:        []*trip.CandidateItinerary{candidate},
		blackboard.KeyDestination: Destination{City: "Tokyo"},
	})

	outcome, err := NewPresentStage(deps).Invoke(context.Background(), snap, nil)
	require.NoError(t, err)
	require.Equal(t, stage.OutcomePatch, outcome.Kind)
	assert.Equal(t, 0.4, outcome.Patch.Entries[0].Confidence)
	plan := outcome.Patch.Entries[0].Value.(*export.Plan)
	assert.True(t, plan.Degraded)
}

// TestDefaultGraphBuilds verifies the default graph wires every built-in
// stage with the expected feedback edges and loop caps.
func TestDefaultGraphBuilds(t *testing.T) {
	cfg := GraphConfig{Destination: "Tokyo", TopK: 3, LoopCap: 2}
	g, err := DefaultGraph(cfg)
	require.NoError(t, err)

	names := []string{
		StageClarify, StageDestination,
		StageTransportSearch, StageLodgingSearch, StagePOISearch,
		StageAssemble, StageFeasibility, StageOptimize, StageDecide, StagePresent,
	}
	registry := NewRegistry(testDeps())
	for _, name := range names {
		assert.NotNil(t, g.Node(name), "node %s", name)
		_, ok := registry.Get(name)
		assert.True(t, ok, "registry covers %s", name)
	}

	review := g.FeedbackEdgeBetween(StageFeasibility, StageAssemble)
	require.NotNil(t, review)
	assert.Equal(t, 2, review.MaxLoops)
	require.NotNil(t, g.FeedbackEdgeBetween(StageDecide, StageAssemble))
	assert.Nil(t, g.FeedbackEdgeBetween(StagePresent, StageAssemble))
}

// runPlanGraph executes the full default pipeline against the static
// provider and returns the result and final board.
func runPlanGraph(t *testing.T, city string) *graph.RunResult {
	t.Helper()
	deps := testDeps()
	g, err := DefaultGraph(GraphConfig{Destination: city, TopK: 3, LoopCap: 2})
	require.NoError(t, err)

	board := blackboard.New()
	board.Set(blackboard.KeyConstraints, testConstraints(), "intake", 1.0)
	board.Set(blackboard.KeyProfile, testProfile(), "intake", 1.0)

	runner := stage.NewRunner(stage.WithLogger(deps.logger()))
	scheduler := graph.NewScheduler(NewRegistry(deps), runner,
		graph.WithLogger(deps.logger()),
		graph.WithStageTimeout(10*time.Second),
		graph.WithDegradeSelector(BestScored),
	)

	result, err := scheduler.Run(context.Background(), g, board)
	require.NoError(t, err)
	return result
}

// TestPlanEndToEnd runs the full pipeline for a knowledge-base city and
// expects a clean accept with a rendered plan.
func TestPlanEndToEnd(t *testing.T) {
	result := runPlanGraph(t, "Tokyo")

	assert.Equal(t, graph.ReasonAccepted, result.Reason)
	assert.False(t, result.Degraded)
	require.NotNil(t, result.Accepted)

	plan, ok := blackboard.TypedValue[*export.Plan](result.Final, blackboard.KeyPlan)
	require.True(t, ok)
	assert.Equal(t, "Tokyo", plan.Destination)
	assert.Equal(t, 3, plan.Days)
	assert.Len(t, plan.Itinerary, 3)
	assert.False(t, plan.Degraded)
	assert.Greater(t, plan.CostTotal, 0.0)

	for _, name := range []string{StageAssemble, StageDecide, StagePresent} {
		record, ok := result.Stages[name]
		require.True(t, ok, "stage record for %s", name)
		assert.GreaterOrEqual(t, record.Runs, 1)
	}
}

// TestPlanEndToEndUnknownCity verifies a city outside the knowledge base
// still plans end to end on generic template offers.
func TestPlanEndToEndUnknownCity(t *testing.T) {
	result := runPlanGraph(t, "Reykjavik")

	assert.Equal(t, graph.ReasonAccepted, result.Reason)
	plan, ok := blackboard.TypedValue[*export.Plan](result.Final, blackboard.KeyPlan)
	require.True(t, ok)
	assert.Equal(t, "Reykjavik", plan.Destination)
	assert.NotEmpty(t, plan.Itinerary)
}
