package graph

import (
	"fmt"

	"github.com/itinera-ai/itinera/internal/types"
)

// Validate checks the structural invariants of a stage graph:
//   - at least one node
//   - every dependency references a known node
//   - the dependency edges form no cycle (feedback edges are exempt,
//     they are bounded separately by loop caps)
//   - every feedback edge references known nodes and a positive cap
func Validate(g *Graph) error {
	if g == nil || len(g.Nodes) == 0 {
		return types.NewError(types.GRAPH_INVALID, "graph must contain at least one stage")
	}

	for name, node := range g.Nodes {
		if node == nil {
			return types.NewError(types.GRAPH_INVALID, fmt.Sprintf("stage %q is nil", name))
		}
		for _, dep := range node.DependsOn {
			if g.Node(dep) == nil {
				return types.NewError(types.GRAPH_MISSING_DEPENDENCY,
					fmt.Sprintf("stage %q depends on unknown stage %q", name, dep))
			}
			if dep == name {
				return types.NewError(types.GRAPH_CYCLE_DETECTED,
					fmt.Sprintf("stage %q depends on itself", name))
			}
		}
	}

	for _, edge := range g.Feedback {
		if g.Node(edge.From) == nil || g.Node(edge.To) == nil {
			return types.NewError(types.GRAPH_INVALID,
				fmt.Sprintf("feedback edge %s->%s references an unknown stage", edge.From, edge.To))
		}
		if edge.MaxLoops <= 0 {
			return types.NewError(types.GRAPH_INVALID,
				fmt.Sprintf("feedback edge %s->%s must have a positive loop cap", edge.From, edge.To))
		}
	}

	if cycle := findCycle(g); cycle != "" {
		return types.NewError(types.GRAPH_CYCLE_DETECTED,
			fmt.Sprintf("dependency cycle involving stage %q", cycle))
	}

	return nil
}

// findCycle runs a three-color depth-first search over the dependency
// edges and returns a node on a cycle, or "" when the graph is acyclic.
func findCycle(g *Graph) string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(g.Nodes))

	var visit func(name string) string
	visit = func(name string) string {
		color[name] = gray
		for _, dep := range g.Nodes[name].DependsOn {
			switch color[dep] {
			case gray:
				return dep
			case white:
				if hit := visit(dep); hit != "" {
					return hit
				}
			}
		}
		color[name] = black
		return ""
	}

	for name := range g.Nodes {
		if color[name] == white {
			if hit := visit(name); hit != "" {
				return hit
			}
		}
	}
	return ""
}
