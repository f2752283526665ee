// YAML-based stage graph definitions.
//
// Graph topology is static configuration, so it can be written in a
// human-readable YAML file and loaded before the run starts:
//
//	name: travel-plan
//	stages:
//	  - name: clarify
//	  - name: destination
//	    depends_on: [clarify]
//	  - name: transport-search
//	    group: search
//	    depends_on: [destination]
//	    timeout: 20s
//	  - name: lodging-search
//	    group: search
//	    depends_on: [destination]
//	feedback:
//	  - from: feasibility
//	    to: assemble
//	    max_loops: 3
//
// Timeout values use Go duration format ("300ms", "20s", "2m").
package graph

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/itinera-ai/itinera/internal/stage"
	"github.com/itinera-ai/itinera/internal/types"
)

// YAMLGraph is the top-level structure of a graph YAML file.
type YAMLGraph struct {
	Name     string         `yaml:"name"`
	Stages   []YAMLStage    `yaml:"stages"`
	Feedback []YAMLFeedback `yaml:"feedback,omitempty"`
}

// YAMLStage is one stage node definition in YAML form.
type YAMLStage struct {
	Name      string         `yaml:"name"`
	Priority  int            `yaml:"priority,omitempty"`
	DependsOn []string       `yaml:"depends_on,omitempty"`
	Group     string         `yaml:"group,omitempty"`
	Timeout   string         `yaml:"timeout,omitempty"`
	Params    map[string]any `yaml:"params,omitempty"`
}

// YAMLFeedback is one feedback edge definition in YAML form.
type YAMLFeedback struct {
	From     string `yaml:"from"`
	To       string `yaml:"to"`
	MaxLoops int    `yaml:"max_loops,omitempty"`
}

// ParseYAML converts YAML bytes into a validated Graph.
func ParseYAML(data []byte) (*Graph, error) {
	var spec YAMLGraph
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, types.WrapError(types.CONFIG_PARSE_FAILED, "failed to parse graph YAML", err)
	}

	builder := NewGraph(spec.Name)
	for _, s := range spec.Stages {
		if s.Group != "" {
			builder.AddGroupedStage(s.Name, s.Group, s.DependsOn...)
		} else {
			builder.AddStage(s.Name, s.DependsOn...)
		}
		if s.Priority != 0 {
			builder.WithPriority(s.Name, s.Priority)
		}
		if s.Timeout != "" {
			timeout, err := time.ParseDuration(s.Timeout)
			if err != nil {
				return nil, types.WrapError(types.CONFIG_PARSE_FAILED,
					fmt.Sprintf("invalid timeout %q for stage %q", s.Timeout, s.Name), err)
			}
			builder.WithTimeout(s.Name, timeout)
		}
		if len(s.Params) > 0 {
			builder.WithParams(s.Name, stage.Params(s.Params))
		}
	}
	for _, f := range spec.Feedback {
		builder.AddFeedback(f.From, f.To, f.MaxLoops)
	}

	return builder.Build()
}

// LoadYAMLFile reads and parses a graph definition from disk.
func LoadYAMLFile(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, types.WrapError(types.CONFIG_LOAD_FAILED,
			fmt.Sprintf("failed to read graph file %q", path), err)
	}
	return ParseYAML(data)
}
