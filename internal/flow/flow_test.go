package flow

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeIvanCervantes/hytra/internal/config"
	"github.com/JaimeIvanCervantes/hytra/internal/digraph"
)

func node(t, id, uuid int, center ...float64) Node {
	return Node{Key: digraph.Key{Timestep: t, ID: id}, ID: uuid, Center: center}
}

func TestAssignSquare(t *testing.T) {
	cost := [][]float64{
		{4, 1, 3},
		{2, 0, 5},
		{3, 2, 2},
	}
	assert.Equal(t, []int{1, 0, 2}, assign(cost))
}

func TestAssignRectangularAndForbidden(t *testing.T) {
	// More rows than columns: one row stays unassigned.
	got := assign([][]float64{{1}, {0}, {5}})
	assert.Equal(t, []int{-1, 0, -1}, got)

	// A forbidden pair is never returned even when nothing else is left.
	got = assign([][]float64{{forbidden, 1}, {forbidden, forbidden}})
	assert.Equal(t, []int{1, -1}, got)

	assert.Nil(t, assign(nil))
	assert.Equal(t, []int{-1}, assign([][]float64{{}}))
}

func TestAssignMoreRowsThanColumns(t *testing.T) {
	// The cheaper row must win the single column.
	assert.Equal(t, []int{-1, 0}, assign([][]float64{{19.51}, {6.62}}))
	assert.Equal(t, []int{0, -1, -1}, assign([][]float64{{0.5}, {2.3}, {9}}))
	assert.Equal(t, []int{-1, 1, 0}, assign([][]float64{{4, 4}, {3, 0.1}, {0.2, 3}}))
}

// bestMatching enumerates every partial matching of cost and returns the
// largest number of allowed pairs and the lowest total cost among matchings
// of that size.
func bestMatching(cost [][]float64) (int, float64) {
	cols := len(cost[0])
	used := make([]bool, cols)
	bestN, bestCost := -1, math.Inf(1)
	var walk func(i, n int, total float64)
	walk = func(i, n int, total float64) {
		if i == len(cost) {
			if n > bestN || (n == bestN && total < bestCost) {
				bestN, bestCost = n, total
			}
			return
		}
		walk(i+1, n, total)
		for j := 0; j < cols; j++ {
			if used[j] || cost[i][j] >= forbidden {
				continue
			}
			used[j] = true
			walk(i+1, n+1, total+cost[i][j])
			used[j] = false
		}
	}
	walk(0, 0, 0)
	return bestN, bestCost
}

func TestAssignMatchesExhaustiveSearch(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 2000; trial++ {
		rows, cols := 1+rng.Intn(4), 1+rng.Intn(4)
		cost := make([][]float64, rows)
		for i := range cost {
			cost[i] = make([]float64, cols)
			for j := range cost[i] {
				if rng.Float64() < 0.3 {
					cost[i][j] = forbidden
				} else {
					cost[i][j] = rng.Float64() * 20
				}
			}
		}

		got := assign(cost)
		require.Len(t, got, rows)
		n, total := 0, 0.0
		seen := map[int]bool{}
		for i, j := range got {
			if j < 0 {
				continue
			}
			require.Less(t, cost[i][j], forbidden, "trial %d: forbidden pair %d,%d", trial, i, j)
			require.False(t, seen[j], "trial %d: column %d reused", trial, j)
			seen[j] = true
			n++
			total += cost[i][j]
		}

		wantN, wantCost := bestMatching(cost)
		require.Equal(t, wantN, n, "trial %d: %v", trial, cost)
		require.InDelta(t, wantCost, total, 1e-9, "trial %d: %v", trial, cost)
	}
}

func TestDistanceClassifierAndCost(t *testing.T) {
	c := DistanceClassifier{Parameter: 5}
	p := c.Score(node(0, 1, 1, 0, 0), node(1, 1, 2, 3, 4))
	assert.InDelta(t, math.Exp(-1), p, 1e-12)
	assert.InDelta(t, 1.0, Cost(p, 1e-9), 1e-12)

	// Missing centers score zero and hit the floor.
	assert.Equal(t, 0.0, c.Score(node(0, 1, 1), node(1, 1, 2, 1, 1)))
	assert.InDelta(t, -math.Log(1e-9), Cost(0, 1e-9), 1e-9)
}

func TestAssignmentSolverCrossingTracks(t *testing.T) {
	// Two split objects at t=0 fan out to two split objects at t=1; the
	// nearest pairs must be selected.
	req := &Request{
		Nodes: []Node{
			node(0, 10, 100, 0, 0),
			node(0, 11, 101, 10, 10),
			node(1, 12, 102, 10, 11),
			node(1, 13, 103, 0, 1),
		},
		Arcs: []Arc{
			{Src: 100, Dest: 102}, {Src: 100, Dest: 103},
			{Src: 101, Dest: 102}, {Src: 101, Dest: 103},
		},
	}
	s := NewAssignmentSolver(config.EmptyResolverConfig())
	res, err := s.Solve(context.Background(), req)
	require.NoError(t, err)

	want := map[ArcKey]int{
		{Src: 100, Dest: 102}: 0,
		{Src: 100, Dest: 103}: 1,
		{Src: 101, Dest: 102}: 1,
		{Src: 101, Dest: 103}: 0,
	}
	if diff := cmp.Diff(want, res.ArcFlow); diff != "" {
		t.Errorf("arc flow mismatch (-want +got):\n%s", diff)
	}
	for _, n := range req.Nodes {
		v, err := res.Node(n.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, v)
	}
}

func TestAssignmentSolverDivision(t *testing.T) {
	parent := node(0, 1, 1, 5, 5)
	parent.Division = true
	req := &Request{
		Nodes: []Node{parent, node(1, 2, 2, 4, 5), node(1, 3, 3, 6, 5)},
		Arcs:  []Arc{{Src: 1, Dest: 2}, {Src: 1, Dest: 3}},
	}
	res, err := NewAssignmentSolver(config.EmptyResolverConfig()).Solve(context.Background(), req)
	require.NoError(t, err)

	v, err := res.Arc(1, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	v, err = res.Arc(1, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	// Without division only one child is reached.
	req.Nodes[0].Division = false
	res, err = NewAssignmentSolver(config.EmptyResolverConfig()).Solve(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, res.ArcFlow[ArcKey{1, 2}]+res.ArcFlow[ArcKey{1, 3}])
}

func TestAssignmentSolverNearestSourceWins(t *testing.T) {
	// Two split objects compete for one successor sitting on top of the
	// second one.
	req := &Request{
		Nodes: []Node{
			node(0, 3, 3, 0, 0),
			node(0, 4, 4, 10, 0),
			node(1, 2, 2, 10, 0),
		},
		Arcs: []Arc{{Src: 3, Dest: 2}, {Src: 4, Dest: 2}},
	}
	res, err := NewAssignmentSolver(config.EmptyResolverConfig()).Solve(context.Background(), req)
	require.NoError(t, err)

	want := map[ArcKey]int{
		{Src: 3, Dest: 2}: 0,
		{Src: 4, Dest: 2}: 1,
	}
	if diff := cmp.Diff(want, res.ArcFlow); diff != "" {
		t.Errorf("arc flow mismatch (-want +got):\n%s", diff)
	}
}

type constClassifier float64

func (c constClassifier) Score(a, b Node) float64 { return float64(c) }

func TestAssignmentSolverUsesRequestClassifier(t *testing.T) {
	req := &Request{
		Nodes:      []Node{node(0, 1, 1), node(1, 1, 2)},
		Arcs:       []Arc{{Src: 1, Dest: 2}},
		Classifier: constClassifier(0.9),
	}
	s := &AssignmentSolver{MinProbability: 1e-9}
	res, err := s.Solve(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, res.ArcFlow[ArcKey{1, 2}])

	req.Classifier = nil
	_, err = s.Solve(context.Background(), req)
	assert.Error(t, err)
}

func TestAssignmentSolverErrors(t *testing.T) {
	s := NewAssignmentSolver(config.EmptyResolverConfig())

	_, err := s.Solve(context.Background(), &Request{
		Nodes: []Node{node(0, 1, 1)},
		Arcs:  []Arc{{Src: 1, Dest: 7}},
	})
	assert.ErrorIs(t, err, ErrUnknownNode)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Solve(ctx, &Request{
		Nodes: []Node{node(0, 1, 1), node(1, 1, 2)},
		Arcs:  []Arc{{Src: 1, Dest: 2}},
	})
	assert.ErrorIs(t, err, context.Canceled)

	res := &Result{NodeFlow: map[int]int{}, ArcFlow: map[ArcKey]int{}}
	_, err = res.Arc(1, 2)
	assert.ErrorIs(t, err, ErrMissingArcFlow)
	_, err = res.Node(1)
	assert.ErrorIs(t, err, ErrMissingNodeFlow)
}
