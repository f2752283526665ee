package graph

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/itinera-ai/itinera/internal/blackboard"
	"github.com/itinera-ai/itinera/internal/stage"
	"github.com/itinera-ai/itinera/internal/types"
)

// DegradeSelector picks the best-available candidate from the final
// state when a run ends without an explicit accept.
type DegradeSelector func(snap *blackboard.Snapshot) any

// Scheduler executes a stage graph over a blackboard. It is the sole
// mutator of record: stages return patches, and the scheduler merges
// them one at a time in a deterministic order (priority, then name), so
// the merged state is identical across runs given identical stage
// outputs regardless of completion order.
type Scheduler struct {
	runner         *stage.Runner
	registry       *stage.Registry
	logger         *slog.Logger
	tracer         trace.Tracer
	maxParallel    int
	defaultTimeout time.Duration
	wallBudget     time.Duration
	selector       DegradeSelector
}

// SchedulerOption is a functional option for configuring a Scheduler.
type SchedulerOption func(*Scheduler)

// WithLogger configures the scheduler to use the specified structured logger.
func WithLogger(logger *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// WithTracer configures the scheduler to emit OpenTelemetry spans for
// the run and each dispatch batch.
func WithTracer(tracer trace.Tracer) SchedulerOption {
	return func(s *Scheduler) {
		s.tracer = tracer
	}
}

// WithMaxParallel bounds how many stages execute concurrently within a
// batch.
func WithMaxParallel(n int) SchedulerOption {
	return func(s *Scheduler) {
		if n > 0 {
			s.maxParallel = n
		}
	}
}

// WithStageTimeout sets the default per-stage timeout, used when a node
// carries no override.
func WithStageTimeout(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.defaultTimeout = d
		}
	}
}

// WithWallClockBudget bounds the total run time. When it elapses,
// in-flight stages are cancelled cooperatively and the run degrades to
// the best available candidate.
func WithWallClockBudget(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.wallBudget = d
		}
	}
}

// WithDegradeSelector sets the picker used for the best-available
// candidate on non-accept termination.
func WithDegradeSelector(sel DegradeSelector) SchedulerOption {
	return func(s *Scheduler) {
		s.selector = sel
	}
}

// NewScheduler creates a Scheduler dispatching to the given registry.
func NewScheduler(registry *stage.Registry, runner *stage.Runner, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		runner:         runner,
		registry:       registry,
		logger:         slog.Default(),
		maxParallel:    4,
		defaultTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// nodeState tracks one node during a run.
type nodeState struct {
	status StageStatus
	params stage.Params
	record *StageRecord
}

// Run executes the graph to termination. The run ends when the decision
// stage accepts a candidate, when all feedback budgets are exhausted, or
// when the wall-clock budget elapses; in the non-accept cases the result
// carries the best scored candidate available and the degraded flag.
// Only an invalid graph or an outright cancellation yields an error.
func (s *Scheduler) Run(ctx context.Context, g *Graph, board *blackboard.Blackboard) (*RunResult, error) {
	if err := Validate(g); err != nil {
		return nil, err
	}
	for name := range g.Nodes {
		if _, ok := s.registry.Get(name); !ok {
			return nil, types.NewError(types.STAGE_NOT_FOUND,
				fmt.Sprintf("graph references stage %q with no registered implementation", name))
		}
	}

	var span trace.Span
	if s.tracer != nil {
		ctx, span = s.tracer.Start(ctx, "graph.run",
			trace.WithAttributes(
				attribute.String("graph.name", g.Name),
				attribute.Int("graph.node_count", len(g.Nodes)),
			),
		)
		defer span.End()
	}

	if s.wallBudget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.wallBudget)
		defer cancel()
	}

	s.logger.InfoContext(ctx, "starting graph run",
		"graph", g.Name,
		"nodes", len(g.Nodes),
		"entries", g.EntryNodes(),
		"wall_budget", s.wallBudget,
	)

	states := make(map[string]*nodeState, len(g.Nodes))
	for name, node := range g.Nodes {
		states[name] = &nodeState{
			status: StagePending,
			params: node.Params.Clone(),
			record: &StageRecord{Name: name, Status: StagePending},
		}
	}
	loopCounts := make(map[string]int)
	start := time.Now()

	accepted := false
	budgetExhausted := false

	for {
		select {
		case <-ctx.Done():
			reason := ReasonWallClock
			if ctx.Err() == context.Canceled {
				reason = ReasonCancelled
			}
			s.logger.WarnContext(ctx, "graph run stopped early",
				"graph", g.Name,
				"reason", reason,
				"elapsed", time.Since(start),
			)
			board.RecordDecision("scheduler", "terminate", string(reason))
			if span != nil {
				span.SetStatus(codes.Error, string(reason))
			}
			if reason == ReasonCancelled {
				return s.buildResult(g, board, states, reason, true, start),
					types.WrapError(types.RUN_CANCELLED, "graph run cancelled", ctx.Err())
			}
			return s.buildResult(g, board, states, reason, true, start), nil
		default:
		}

		ready := s.readyNodes(g, states)
		if len(ready) == 0 {
			if !s.allTerminal(states) {
				err := types.NewError(types.GRAPH_DEADLOCK,
					"no runnable stages but graph is not complete")
				if span != nil {
					span.SetStatus(codes.Error, err.Error())
				}
				return s.buildResult(g, board, states, ReasonBudgetExhausted, true, start), err
			}
			break
		}

		batch := s.dispatch(ctx, g, board, states, ready)
		accepted = s.merge(ctx, g, board, states, loopCounts, batch, &budgetExhausted) || accepted
	}

	// An acceptance reached over an exhausted feedback edge is
	// best-available, not a clean pass.
	reason := ReasonAccepted
	degraded := budgetExhausted
	if !accepted {
		reason = ReasonBudgetExhausted
		degraded = true
	}
	board.RecordDecision("scheduler", "terminate", string(reason))

	s.logger.InfoContext(ctx, "graph run finished",
		"graph", g.Name,
		"reason", reason,
		"degraded", degraded,
		"duration", time.Since(start),
	)
	if span != nil {
		span.SetStatus(codes.Ok, string(reason))
	}

	return s.buildResult(g, board, states, reason, degraded, start), nil
}

// readyNodes returns pending nodes whose dependencies have all
// completed, sorted by (priority, name).
func (s *Scheduler) readyNodes(g *Graph, states map[string]*nodeState) []string {
	var ready []string
	for name, st := range states {
		if st.status != StagePending {
			continue
		}
		ok := true
		for _, dep := range g.Nodes[name].DependsOn {
			if states[dep].status != StageCompleted {
				ok = false
				break
			}
		}
		if ok {
			ready = append(ready, name)
		}
	}
	sortByPriority(g, ready)
	return ready
}

func (s *Scheduler) allTerminal(states map[string]*nodeState) bool {
	for _, st := range states {
		if st.status == StagePending || st.status == StageRunning {
			return false
		}
	}
	return true
}

// dispatch runs a ready batch concurrently, bounded by maxParallel. The
// whole batch (a concurrent group plus any other ready stages) is waited
// for before results are merged, so dependents only ever observe
// complete group output.
func (s *Scheduler) dispatch(ctx context.Context, g *Graph, board *blackboard.Blackboard, states map[string]*nodeState, ready []string) []*stage.Invocation {
	// Every stage in the batch reads the same pre-batch snapshot.
	snap := board.Snapshot()

	sem := make(chan struct{}, s.maxParallel)
	var wg sync.WaitGroup
	results := make([]*stage.Invocation, len(ready))

	for i, name := range ready {
		states[name].status = StageRunning
		states[name].record.Status = StageRunning

		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, nodeName string) {
			defer wg.Done()
			defer func() { <-sem }()

			node := g.Nodes[nodeName]
			impl, _ := s.registry.Get(nodeName)
			timeout := node.Timeout
			if timeout == 0 {
				timeout = s.defaultTimeout
			}
			results[idx] = s.runner.Run(ctx, impl, snap, states[nodeName].params, timeout)
		}(i, name)
	}
	wg.Wait()

	return results
}

// merge applies a batch's outcomes in deterministic (priority, name)
// order: patches first, then redirects. Returns whether an accept was
// observed in this batch.
func (s *Scheduler) merge(
	ctx context.Context,
	g *Graph,
	board *blackboard.Blackboard,
	states map[string]*nodeState,
	loopCounts map[string]int,
	batch []*stage.Invocation,
	budgetExhausted *bool,
) bool {
	ordered := make([]*stage.Invocation, 0, len(batch))
	for _, inv := range batch {
		if inv != nil {
			ordered = append(ordered, inv)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := g.Nodes[ordered[i].Stage], g.Nodes[ordered[j].Stage]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		return a.Name < b.Name
	})

	accepted := false

	for _, inv := range ordered {
		st := states[inv.Stage]
		st.record.Runs++
		st.record.TotalTime += inv.Duration
		if inv.TimedOut {
			st.record.Timeouts++
		}

		if inv.Err != nil {
			// A cancelled stage means the whole run is stopping; anything
			// else degrades in place so dependents still run on prior state.
			if types.CodeOf(inv.Err) == types.RUN_CANCELLED {
				st.status = StageFailed
				st.record.Status = StageFailed
				board.RecordDecision(inv.Stage, "fail", inv.Err.Error())
				continue
			}
			st.status = StageCompleted
			st.record.Status = StageCompleted
			board.RecordDecision(inv.Stage, "degrade", inv.Err.Error())
			continue
		}

		st.status = StageCompleted
		st.record.Status = StageCompleted

		outcome := inv.Outcome
		if outcome == nil {
			board.RecordDecision(inv.Stage, "fail", "stage returned no outcome")
			continue
		}

		switch outcome.Kind {
		case stage.OutcomeFailure:
			// Non-fatal by policy: record and carry on with prior state.
			board.RecordDecision(inv.Stage, "degrade", outcome.Failure.Error())

		case stage.OutcomePatch, stage.OutcomeRedirect:
			if !outcome.Patch.IsEmpty() {
				board.Apply(outcome.Patch, inv.Stage)
				if s.patchAccepts(outcome.Patch) {
					accepted = true
				}
			}
			if outcome.Degraded {
				board.RecordDecision(inv.Stage, "degrade",
					"stage timed out, fallback patch merged with low confidence")
			}
			if outcome.Kind == stage.OutcomeRedirect && outcome.Redirect != nil {
				s.applyRedirect(ctx, g, board, states, loopCounts, inv.Stage, outcome.Redirect, budgetExhausted)
			}
		}
	}

	return accepted
}

// patchAccepts reports whether a merged patch carried the accept key.
func (s *Scheduler) patchAccepts(patch *blackboard.Patch) bool {
	for _, pe := range patch.Entries {
		if pe.Key == blackboard.KeyAccepted && pe.Value != nil {
			return true
		}
	}
	return false
}

// applyRedirect re-arms redirect targets (and their transitive
// dependents) within the per-edge loop budget. An exhausted edge forces
// the degrade path: the redirect is dropped and the run proceeds to
// completion with what it has.
func (s *Scheduler) applyRedirect(
	ctx context.Context,
	g *Graph,
	board *blackboard.Blackboard,
	states map[string]*nodeState,
	loopCounts map[string]int,
	from string,
	redirect *stage.Redirect,
	budgetExhausted *bool,
) {
	targets := append([]string(nil), redirect.Targets...)
	sort.Strings(targets)

	for _, target := range targets {
		edge := g.FeedbackEdgeBetween(from, target)
		if edge == nil {
			board.RecordDecision(from, "reject-redirect",
				fmt.Sprintf("no feedback edge to %q", target))
			continue
		}

		key := from + "->" + target
		if loopCounts[key] >= edge.MaxLoops {
			*budgetExhausted = true
			board.RecordDecision(from, "degrade",
				fmt.Sprintf("feedback budget for %s exhausted after %d loops, accepting best available", key, edge.MaxLoops))
			s.logger.WarnContext(ctx, "feedback budget exhausted",
				"edge", key,
				"max_loops", edge.MaxLoops,
			)
			continue
		}
		loopCounts[key]++

		board.RecordDecision(from, "redirect",
			redirect.Reason, target)
		s.logger.InfoContext(ctx, "feedback redirect",
			"from", from,
			"to", target,
			"loop", loopCounts[key],
			"reason", redirect.Reason,
		)

		s.rearm(states, target, redirect.Params)
		for dependent := range g.Dependents(target) {
			s.rearm(states, dependent, nil)
		}
	}
}

// rearm resets a node to pending, merging narrowed params on top of its
// current set.
func (s *Scheduler) rearm(states map[string]*nodeState, name string, narrowed stage.Params) {
	st, ok := states[name]
	if !ok {
		return
	}
	st.status = StagePending
	st.record.Status = StagePending
	for k, v := range narrowed {
		st.params[k] = v
	}
}

func (s *Scheduler) buildResult(
	g *Graph,
	board *blackboard.Blackboard,
	states map[string]*nodeState,
	reason TerminationReason,
	degraded bool,
	start time.Time,
) *RunResult {
	snap := board.Snapshot()

	var acceptedValue any
	if entry, ok := snap.Get(blackboard.KeyAccepted); ok {
		acceptedValue = entry.Value
	} else if s.selector != nil {
		acceptedValue = s.selector(snap)
	}

	records := make(map[string]*StageRecord, len(states))
	for name, st := range states {
		records[name] = st.record
	}

	return &RunResult{
		Final:     snap,
		Reason:    reason,
		Degraded:  degraded,
		Accepted:  acceptedValue,
		Stages:    records,
		Decisions: board.Decisions(),
		Duration:  time.Since(start),
	}
}
