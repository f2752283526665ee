package graph

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itinera-ai/itinera/internal/types"
)

const sampleGraphYAML = `
name: travel-plan
stages:
  - name: clarify
  - name: destination
    depends_on: [clarify]
  - name: transport-search
    group: search
    depends_on: [destination]
    priority: 1
    timeout: 20s
  - name: lodging-search
    group: search
    depends_on: [destination]
    priority: 2
  - name: assemble
    depends_on: [transport-search, lodging-search]
    params:
      max_candidates: 3
  - name: feasibility
    depends_on: [assemble]
feedback:
  - from: feasibility
    to: assemble
    max_loops: 2
`

// TestParseYAML verifies a full graph document round-trips into a
// validated topology with priorities, timeouts, params and feedback.
func TestParseYAML(t *testing.T) {
	g, err := ParseYAML([]byte(sampleGraphYAML))
	require.NoError(t, err)

	assert.Equal(t, "travel-plan", g.Name)
	assert.Len(t, g.Nodes, 6)

	transport := g.Node("transport-search")
	require.NotNil(t, transport)
	assert.Equal(t, "search", transport.Group)
	assert.Equal(t, 1, transport.Priority)
	assert.Equal(t, 20*time.Second, transport.Timeout)

	assemble := g.Node("assemble")
	require.NotNil(t, assemble)
	assert.Equal(t, 3, assemble.Params["max_candidates"])

	edge := g.FeedbackEdgeBetween("feasibility", "assemble")
	require.NotNil(t, edge)
	assert.Equal(t, 2, edge.MaxLoops)
}

// TestParseYAMLErrors verifies malformed documents surface typed parse
// errors rather than half-built graphs.
func TestParseYAMLErrors(t *testing.T) {
	_, err := ParseYAML([]byte("stages: {not: a list}"))
	require.Error(t, err)
	assert.Equal(t, types.CONFIG_PARSE_FAILED, types.CodeOf(err))

	_, err = ParseYAML([]byte(`
name: bad-timeout
stages:
  - name: a
    timeout: soon
`))
	require.Error(t, err)
	assert.Equal(t, types.CONFIG_PARSE_FAILED, types.CodeOf(err))

	// Structural problems are caught by graph validation.
	_, err = ParseYAML([]byte(`
name: dangling
stages:
  - name: a
    depends_on: [missing]
`))
	assert.Error(t, err)
}

// TestLoadYAMLFile verifies loading from disk and the missing-file error
// code.
func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleGraphYAML), 0o644))

	g, err := LoadYAMLFile(path)
	require.NoError(t, err)
	assert.Equal(t, "travel-plan", g.Name)

	_, err = LoadYAMLFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Equal(t, types.CONFIG_LOAD_FAILED, types.CodeOf(err))
}
