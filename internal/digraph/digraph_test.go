package digraph

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chain(t *testing.T) *Graph[string, int] {
	t.Helper()
	g := New[string, int]()
	keys := []Key{{0, 1}, {1, 1}, {2, 1}, {2, 2}}
	for _, k := range keys {
		require.True(t, g.AddNode(k, k.String()))
	}
	require.NoError(t, g.AddEdge(Key{0, 1}, Key{1, 1}, 10))
	require.NoError(t, g.AddEdge(Key{1, 1}, Key{2, 1}, 20))
	require.NoError(t, g.AddEdge(Key{1, 1}, Key{2, 2}, 30))
	return g
}

func TestAddNodeRejectsDuplicates(t *testing.T) {
	g := New[int, struct{}]()
	assert.True(t, g.AddNode(Key{0, 0}, 1))
	assert.False(t, g.AddNode(Key{0, 0}, 2))

	n, ok := g.Node(Key{0, 0})
	require.True(t, ok)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, g.NumNodes())
}

func TestAddEdgeRequiresEndpoints(t *testing.T) {
	g := New[int, struct{}]()
	g.AddNode(Key{0, 0}, 0)

	err := g.AddEdge(Key{0, 0}, Key{1, 0}, struct{}{})
	assert.True(t, errors.Is(err, ErrNodeNotFound))
	assert.Equal(t, 0, g.NumEdges())
}

func TestAdjacencyQueries(t *testing.T) {
	g := chain(t)

	assert.Equal(t, []Key{{2, 1}, {2, 2}}, g.Successors(Key{1, 1}))
	assert.Equal(t, []Key{{0, 1}}, g.Predecessors(Key{1, 1}))
	assert.Equal(t, 2, g.OutDegree(Key{1, 1}))
	assert.Equal(t, 1, g.InDegree(Key{2, 2}))
	assert.Equal(t, 0, g.InDegree(Key{9, 9}))

	e, ok := g.Edge(Key{1, 1}, Key{2, 2})
	require.True(t, ok)
	assert.Equal(t, 30, e)
}

func TestAddEdgeReplacesPayload(t *testing.T) {
	g := chain(t)
	require.NoError(t, g.AddEdge(Key{0, 1}, Key{1, 1}, 99))

	e, _ := g.Edge(Key{0, 1}, Key{1, 1})
	assert.Equal(t, 99, e)
	assert.Equal(t, 3, g.NumEdges())
}

func TestRemoveNodeDropsIncidentEdges(t *testing.T) {
	g := chain(t)

	require.True(t, g.RemoveNode(Key{1, 1}))
	assert.False(t, g.Has(Key{1, 1}))
	assert.Equal(t, 3, g.NumNodes())
	assert.Equal(t, 0, g.NumEdges())
	assert.Empty(t, g.Successors(Key{0, 1}))
	assert.Empty(t, g.Predecessors(Key{2, 2}))
	assert.False(t, g.RemoveNode(Key{1, 1}))

	// The key can be reused after removal.
	require.True(t, g.AddNode(Key{1, 1}, "again"))
	require.NoError(t, g.AddEdge(Key{1, 1}, Key{2, 1}, 1))
	assert.Equal(t, 1, g.NumEdges())
}

func TestRemoveEdge(t *testing.T) {
	g := chain(t)
	assert.True(t, g.RemoveEdge(Key{1, 1}, Key{2, 1}))
	assert.False(t, g.RemoveEdge(Key{1, 1}, Key{2, 1}))
	assert.Equal(t, 2, g.NumEdges())
	assert.False(t, g.HasEdge(Key{1, 1}, Key{2, 1}))
}

func TestKeysAndEdgesAreOrdered(t *testing.T) {
	g := New[int, int]()
	for _, k := range []Key{{3, 0}, {0, 5}, {0, 2}, {1, 7}} {
		g.AddNode(k, 0)
	}
	require.NoError(t, g.AddEdge(Key{1, 7}, Key{3, 0}, 2))
	require.NoError(t, g.AddEdge(Key{0, 5}, Key{1, 7}, 1))
	require.NoError(t, g.AddEdge(Key{0, 2}, Key{1, 7}, 0))

	assert.Equal(t, []Key{{0, 2}, {0, 5}, {1, 7}, {3, 0}}, g.Keys())

	edges := g.Edges()
	require.Len(t, edges, 3)
	assert.Equal(t, Key{0, 2}, edges[0].From)
	assert.Equal(t, Key{0, 5}, edges[1].From)
	assert.Equal(t, Key{1, 7}, edges[2].From)
	assert.Equal(t, 2, edges[2].Value)
}

func TestSelfLoopRemoval(t *testing.T) {
	g := New[int, int]()
	g.AddNode(Key{0, 0}, 0)
	require.NoError(t, g.AddEdge(Key{0, 0}, Key{0, 0}, 1))
	assert.Equal(t, 1, g.NumEdges())
	g.RemoveNode(Key{0, 0})
	assert.Equal(t, 0, g.NumEdges())
}
