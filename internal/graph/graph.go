// Package graph holds the stage dependency graph and the scheduler that
// executes it: partial-order dispatch with concurrent groups,
// deterministic patch merging, bounded feedback loops, and the
// termination/degrade policy.
package graph

import (
	"time"

	"github.com/itinera-ai/itinera/internal/stage"
)

// DefaultLoopCap bounds re-runs per feedback edge when a graph does not
// set its own. Small by design: it is the core property preventing
// non-termination.
const DefaultLoopCap = 3

// Node is one stage entry in the graph. Nodes sharing a Group label with
// a common direct predecessor form a concurrent group and are dispatched
// together; the scheduler waits for all members (or their individual
// timeouts) before admitting dependents. Group membership follows from
// the dependency edges alone (the scheduler batches every ready node),
// so the label is descriptive and surfaces in configs and diagnostics
// rather than driving dispatch.
type Node struct {
	Name string `json:"name" yaml:"name"`

	// Priority orders patch merges within a batch; lower merges first.
	// Name breaks ties, so merged state is identical across runs given
	// identical stage outputs.
	Priority int `json:"priority" yaml:"priority"`

	DependsOn []string `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
	Group     string   `json:"group,omitempty" yaml:"group,omitempty"`

	// Timeout overrides the run-level default per-stage timeout when set.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// Params is the stage's base parameter set; feedback redirects merge
	// narrowed parameters on top of it for re-runs.
	Params stage.Params `json:"params,omitempty" yaml:"params,omitempty"`
}

// FeedbackEdge allows a later stage to re-trigger an earlier one, at most
// MaxLoops times. Exceeding the cap forces the degrade path instead of
// looping.
type FeedbackEdge struct {
	From     string `json:"from" yaml:"from"`
	To       string `json:"to" yaml:"to"`
	MaxLoops int    `json:"max_loops" yaml:"max_loops"`
}

// Graph is the static stage topology: dependency edges, concurrent
// groups, and feedback edges. Topology is configuration data, fixed
// before the run starts; nothing is discovered at runtime.
type Graph struct {
	Name     string           `json:"name" yaml:"name"`
	Nodes    map[string]*Node `json:"nodes" yaml:"nodes"`
	Feedback []FeedbackEdge   `json:"feedback,omitempty" yaml:"feedback,omitempty"`
}

// Node returns the named node, or nil when absent.
func (g *Graph) Node(name string) *Node {
	if g.Nodes == nil {
		return nil
	}
	return g.Nodes[name]
}

// FeedbackEdgeBetween returns the feedback edge from one stage to
// another, or nil if the graph does not allow that redirect.
func (g *Graph) FeedbackEdgeBetween(from, to string) *FeedbackEdge {
	for i := range g.Feedback {
		if g.Feedback[i].From == from && g.Feedback[i].To == to {
			return &g.Feedback[i]
		}
	}
	return nil
}

// Dependents returns the set of nodes that transitively depend on the
// given node. Used when a feedback re-run invalidates downstream results.
func (g *Graph) Dependents(name string) map[string]bool {
	direct := make(map[string][]string)
	for _, node := range g.Nodes {
		for _, dep := range node.DependsOn {
			direct[dep] = append(direct[dep], node.Name)
		}
	}

	visited := make(map[string]bool)
	queue := []string{name}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, dependent := range direct[current] {
			if !visited[dependent] {
				visited[dependent] = true
				queue = append(queue, dependent)
			}
		}
	}
	return visited
}

// EntryNodes returns the names of nodes without dependencies, sorted by
// priority then name.
func (g *Graph) EntryNodes() []string {
	var entries []string
	for name, node := range g.Nodes {
		if len(node.DependsOn) == 0 {
			entries = append(entries, name)
		}
	}
	sortByPriority(g, entries)
	return entries
}
