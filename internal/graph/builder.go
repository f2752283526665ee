package graph

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/itinera-ai/itinera/internal/stage"
)

// Builder provides a fluent API for constructing stage graphs. It
// accumulates errors during building and reports them all at Build time.
type Builder struct {
	graph  *Graph
	errors []error
}

// NewGraph creates a Builder for a named graph.
func NewGraph(name string) *Builder {
	return &Builder{
		graph: &Graph{
			Name:  name,
			Nodes: make(map[string]*Node),
		},
	}
}

// AddStage adds a stage node with its dependencies.
func (b *Builder) AddStage(name string, dependsOn ...string) *Builder {
	return b.addNode(&Node{Name: name, DependsOn: dependsOn})
}

// AddGroupedStage adds a stage node that belongs to a concurrent group.
func (b *Builder) AddGroupedStage(name, group string, dependsOn ...string) *Builder {
	return b.addNode(&Node{Name: name, Group: group, DependsOn: dependsOn})
}

func (b *Builder) addNode(node *Node) *Builder {
	if node.Name == "" {
		b.errors = append(b.errors, fmt.Errorf("stage node must have a name"))
		return b
	}
	if _, exists := b.graph.Nodes[node.Name]; exists {
		b.errors = append(b.errors, fmt.Errorf("stage node %q already exists", node.Name))
		return b
	}
	b.graph.Nodes[node.Name] = node
	return b
}

// WithPriority sets the merge priority of an existing node.
func (b *Builder) WithPriority(name string, priority int) *Builder {
	node := b.graph.Node(name)
	if node == nil {
		b.errors = append(b.errors, fmt.Errorf("cannot set priority: unknown stage %q", name))
		return b
	}
	node.Priority = priority
	return b
}

// WithTimeout sets a per-node timeout override.
func (b *Builder) WithTimeout(name string, timeout time.Duration) *Builder {
	node := b.graph.Node(name)
	if node == nil {
		b.errors = append(b.errors, fmt.Errorf("cannot set timeout: unknown stage %q", name))
		return b
	}
	node.Timeout = timeout
	return b
}

// WithParams sets the base parameter set of an existing node.
func (b *Builder) WithParams(name string, params stage.Params) *Builder {
	node := b.graph.Node(name)
	if node == nil {
		b.errors = append(b.errors, fmt.Errorf("cannot set params: unknown stage %q", name))
		return b
	}
	node.Params = params
	return b
}

// AddFeedback adds a bounded feedback edge. maxLoops <= 0 applies
// DefaultLoopCap.
func (b *Builder) AddFeedback(from, to string, maxLoops int) *Builder {
	if from == "" || to == "" {
		b.errors = append(b.errors, fmt.Errorf("feedback edge must name both endpoints"))
		return b
	}
	if maxLoops <= 0 {
		maxLoops = DefaultLoopCap
	}
	b.graph.Feedback = append(b.graph.Feedback, FeedbackEdge{From: from, To: to, MaxLoops: maxLoops})
	return b
}

// Build validates the accumulated graph and returns it. All accumulated
// construction errors and validation failures are reported together.
func (b *Builder) Build() (*Graph, error) {
	if len(b.errors) > 0 {
		return nil, errors.Join(b.errors...)
	}
	if err := Validate(b.graph); err != nil {
		return nil, err
	}
	return b.graph, nil
}

// sortByPriority orders node names by (priority, name).
func sortByPriority(g *Graph, names []string) {
	sort.SliceStable(names, func(i, j int) bool {
		a, b := g.Nodes[names[i]], g.Nodes[names[j]]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		return a.Name < b.Name
	})
}
