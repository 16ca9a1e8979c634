package depgraph_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BIGmindz/ChainBridge-sub000/pkg/depgraph"
)

func TestStatusQuery(t *testing.T) {
	g := depgraph.New()
	g.AddNode("task-a")

	status, ok := g.NodeStatus("task-a")
	require.True(t, ok)
	assert.Equal(t, depgraph.NodePending, status)

	require.NoError(t, g.SetStatus("task-a", depgraph.NodeFinalized))
	status, _ = g.NodeStatus("task-a")
	assert.Equal(t, depgraph.NodeFinalized, status)

	_, ok = g.NodeStatus("unknown")
	assert.False(t, ok)
}

func TestCycleRefused(t *testing.T) {
	g := depgraph.New()
	for _, n := range []string{"a", "b", "c"} {
		g.AddNode(n)
	}
	require.NoError(t, g.AddEdge("a", "b"))
	require.NoError(t, g.AddEdge("b", "c"))

	err := g.AddEdge("c", "a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")

	err = g.AddEdge("a", "a")
	require.Error(t, err)
}

func TestUpstreamBlocked(t *testing.T) {
	g := depgraph.New()
	for _, n := range []string{"a", "b", "c"} {
		g.AddNode(n)
	}
	require.NoError(t, g.AddEdge("a", "b"))
	require.NoError(t, g.AddEdge("b", "c"))

	assert.False(t, g.UpstreamBlocked("a"))

	require.NoError(t, g.SetStatus("c", depgraph.NodeBlocked))
	assert.True(t, g.UpstreamBlocked("a"), "blockage must propagate transitively")
	assert.True(t, g.UpstreamBlocked("b"))
	assert.False(t, g.UpstreamBlocked("c"), "a node is not its own upstream")
}
