package stage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itinera-ai/itinera/internal/blackboard"
	"github.com/itinera-ai/itinera/internal/types"
)

type fakeStage struct {
	name     string
	delay    time.Duration
	outcome  *Outcome
	err      error
	fallback *blackboard.Patch
}

func (f *fakeStage) Name() string { return f.name }

func (f *fakeStage) Invoke(ctx context.Context, snap *blackboard.Snapshot, params Params) (*Outcome, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.outcome, f.err
}

func (f *fakeStage) Fallback(snap *blackboard.Snapshot, params Params) *blackboard.Patch {
	return f.fallback
}

// TestRunnerCompletesInTime tests the happy path: outcome passed through
// untouched.
func TestRunnerCompletesInTime(t *testing.T) {
	patch := (&blackboard.Patch{}).Add(blackboard.KeyDestination, "Tokyo", 0.9)
	s := &fakeStage{name: "destination", outcome: PatchOutcome(patch)}

	inv := NewRunner().Run(context.Background(), s, blackboard.New().Snapshot(), nil, time.Second)

	require.NoError(t, inv.Err)
	require.NotNil(t, inv.Outcome)
	assert.Equal(t, OutcomePatch, inv.Outcome.Kind)
	assert.False(t, inv.TimedOut)
	assert.False(t, inv.Outcome.Degraded)
	assert.Same(t, patch, inv.Outcome.Patch)
}

// TestRunnerTimeoutAppliesFallback tests that a slow stage degrades to
// its fallback patch with the low-confidence tag.
func TestRunnerTimeoutAppliesFallback(t *testing.T) {
	fallback := (&blackboard.Patch{}).Add(blackboard.KeyLodgingOffers, "template", 0.9)
	s := &fakeStage{
		name:     "lodging-search",
		delay:    time.Second,
		fallback: fallback,
	}

	inv := NewRunner().Run(context.Background(), s, blackboard.New().Snapshot(), nil, 20*time.Millisecond)

	require.NoError(t, inv.Err)
	require.NotNil(t, inv.Outcome)
	assert.True(t, inv.TimedOut)
	assert.True(t, inv.Outcome.Degraded)
	require.Len(t, inv.Outcome.Patch.Entries, 1)
	assert.Equal(t, blackboard.KeyLodgingOffers, inv.Outcome.Patch.Entries[0].Key)
	assert.InDelta(t, fallbackConfidence, inv.Outcome.Patch.Entries[0].Confidence, 0.001,
		"fallback entries are re-tagged with low confidence")
}

// TestRunnerTimeoutWithoutFallback tests that a stage with no fallback
// degrades to an empty patch instead of failing the run.
func TestRunnerTimeoutWithoutFallback(t *testing.T) {
	s := &fakeStage{name: "slow", delay: time.Second, fallback: nil}

	inv := NewRunner().Run(context.Background(), s, blackboard.New().Snapshot(), nil, 20*time.Millisecond)

	require.NoError(t, inv.Err)
	require.NotNil(t, inv.Outcome)
	assert.True(t, inv.TimedOut)
	assert.True(t, inv.Outcome.Patch.IsEmpty())
}

// TestRunnerNilOutcome tests that a stage returning neither an outcome
// nor an error does not crash the runner; the scheduler decides what a
// missing outcome means.
func TestRunnerNilOutcome(t *testing.T) {
	s := &fakeStage{name: "silent"}

	inv := NewRunner().Run(context.Background(), s, blackboard.New().Snapshot(), nil, time.Second)

	require.NoError(t, inv.Err)
	assert.Nil(t, inv.Outcome)
	assert.False(t, inv.TimedOut)
	assert.Contains(t, inv.Describe(), "none")
}

// TestRunnerCancellation tests that run-level cancellation is an error,
// not a degrade.
func TestRunnerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &fakeStage{name: "slow", delay: time.Second}

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	inv := NewRunner().Run(ctx, s, blackboard.New().Snapshot(), nil, time.Minute)

	require.Error(t, inv.Err)
	assert.Equal(t, types.RUN_CANCELLED, types.CodeOf(inv.Err))
}

// TestRegistry tests registration and lookup.
func TestRegistry(t *testing.T) {
	a := &fakeStage{name: "a"}
	b := &fakeStage{name: "b"}
	r := NewRegistry(a, b)

	got, ok := r.Get("a")
	require.True(t, ok)
	assert.Same(t, a, got)

	_, ok = r.Get("missing")
	assert.False(t, ok)

	assert.Equal(t, []string{"a", "b"}, r.Names())
}
