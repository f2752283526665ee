// Package stage defines the contract every reasoning stage satisfies and
// the runner that executes one stage invocation with timeout and
// degrade-to-fallback handling.
//
// A stage is an opaque function over a read-only blackboard snapshot. It
// returns a patch to merge, a redirect naming upstream stages to re-run
// with narrowed parameters, or a typed failure. LLM-backed stages live
// behind the same interface as the deterministic built-ins, so a
// rule-based stub is always substitutable for testing.
package stage

import (
	"context"
	"sort"

	"github.com/itinera-ai/itinera/internal/blackboard"
	"github.com/itinera-ai/itinera/internal/types"
)

// Params is the stage-specific parameter set. Redirects narrow it for the
// re-run (e.g., "exclude these already-rejected offers").
type Params map[string]any

// Clone returns a shallow copy of the parameter set.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// StringSlice fetches a []string parameter, tolerating absence.
func (p Params) StringSlice(key string) []string {
	if v, ok := p[key].([]string); ok {
		return v
	}
	return nil
}

// String fetches a string parameter, or the empty string when absent.
func (p Params) String(key string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return ""
}

// OutcomeKind discriminates the three stage outcomes.
type OutcomeKind string

const (
	OutcomePatch    OutcomeKind = "patch"
	OutcomeRedirect OutcomeKind = "redirect"
	OutcomeFailure  OutcomeKind = "failure"
)

// Redirect asks the scheduler to re-run one or more upstream stages with
// a narrowed parameter set. Every redirect consumes one unit of the
// per-edge feedback budget.
type Redirect struct {
	Targets []string `json:"targets"`
	Params  Params   `json:"params,omitempty"`
	Reason  string   `json:"reason"`
}

// Outcome is the result of one stage invocation.
type Outcome struct {
	Kind     OutcomeKind        `json:"kind"`
	Patch    *blackboard.Patch  `json:"patch,omitempty"`
	Redirect *Redirect          `json:"redirect,omitempty"`
	Failure  *types.EngineError `json:"failure,omitempty"`

	// Degraded marks an outcome produced by the fallback path rather
	// than the stage proper; its patch entries carry low confidence.
	Degraded bool `json:"degraded,omitempty"`
}

// PatchOutcome wraps a patch in a successful outcome.
func PatchOutcome(patch *blackboard.Patch) *Outcome {
	return &Outcome{Kind: OutcomePatch, Patch: patch}
}

// RedirectOutcome builds a redirect outcome. The redirect may also carry
// a patch to merge before the re-run (e.g., annotated candidates).
func RedirectOutcome(patch *blackboard.Patch, redirect *Redirect) *Outcome {
	return &Outcome{Kind: OutcomeRedirect, Patch: patch, Redirect: redirect}
}

// FailureOutcome wraps a typed failure.
func FailureOutcome(err *types.EngineError) *Outcome {
	return &Outcome{Kind: OutcomeFailure, Failure: err}
}

// Stage is one unit of the workflow graph.
type Stage interface {
	// Name returns the stage's graph node name.
	Name() string

	// Invoke runs the stage against a read-only snapshot. Blocking work
	// must respect ctx; the runner enforces the invocation timeout.
	Invoke(ctx context.Context, snap *blackboard.Snapshot, params Params) (*Outcome, error)
}

// FallbackProvider is implemented by stages that can produce a cached or
// template-derived patch when the real invocation times out. The runner
// tags fallback entries with low confidence instead of failing the run.
type FallbackProvider interface {
	Fallback(snap *blackboard.Snapshot, params Params) *blackboard.Patch
}

// Registry maps stage names to implementations.
type Registry struct {
	stages map[string]Stage
}

// NewRegistry creates a registry from the given stages.
func NewRegistry(stages ...Stage) *Registry {
	r := &Registry{stages: make(map[string]Stage, len(stages))}
	for _, s := range stages {
		r.stages[s.Name()] = s
	}
	return r
}

// Register adds or replaces a stage.
func (r *Registry) Register(s Stage) {
	r.stages[s.Name()] = s
}

// Get returns the stage registered under name.
func (r *Registry) Get(name string) (Stage, bool) {
	s, ok := r.stages[name]
	return s, ok
}

// Names returns all registered stage names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.stages))
	for name := range r.stages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
