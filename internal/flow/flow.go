// Package flow re-solves the selected flow over the small sub-graph
// produced by merger resolution.
//
// A Request lists the sub-graph's nodes and arcs under their optimizer ids.
// A Solver returns how many objects occupy every node and traverse every
// arc. The default AssignmentSolver matches objects between consecutive
// timesteps by minimum transition cost.
package flow

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/JaimeIvanCervantes/hytra/internal/digraph"
)

var (
	// ErrMissingArcFlow is returned when a flow value is looked up for an
	// arc the solver did not report.
	ErrMissingArcFlow = errors.New("no flow for arc")
	// ErrMissingNodeFlow is returned when a flow value is looked up for a
	// node the solver did not report.
	ErrMissingNodeFlow = errors.New("no flow for node")
	// ErrUnknownNode is returned for a request arc whose endpoint is not a
	// request node.
	ErrUnknownNode = errors.New("arc endpoint is not a request node")
)

// Node is one object of the re-solve.
type Node struct {
	Key digraph.Key
	// ID is the optimizer id the result is keyed by.
	ID int
	// Division allows the node to send flow to two successors.
	Division bool
	// Center is the spatial center of the object.
	Center []float64
}

// Arc is a candidate transition between two request nodes.
type Arc struct {
	Src  int
	Dest int
}

// Request is the flow problem handed to a Solver.
type Request struct {
	Nodes []Node
	Arcs  []Arc
	// Classifier scores transitions. Nil selects the solver's default.
	Classifier TransitionClassifier
}

// ArcKey identifies an arc by the optimizer ids of its endpoints.
type ArcKey struct {
	Src  int
	Dest int
}

// Result holds the selected flow per node and per arc.
type Result struct {
	NodeFlow map[int]int
	ArcFlow  map[ArcKey]int
}

// Arc returns the flow along src -> dest.
func (r *Result) Arc(src, dest int) (int, error) {
	v, ok := r.ArcFlow[ArcKey{Src: src, Dest: dest}]
	if !ok {
		return 0, fmt.Errorf("arc %d -> %d: %w", src, dest, ErrMissingArcFlow)
	}
	return v, nil
}

// Node returns the flow through node id.
func (r *Result) Node(id int) (int, error) {
	v, ok := r.NodeFlow[id]
	if !ok {
		return 0, fmt.Errorf("node %d: %w", id, ErrMissingNodeFlow)
	}
	return v, nil
}

// Solver solves a flow Request.
type Solver interface {
	Solve(ctx context.Context, req *Request) (*Result, error)
}

// TransitionClassifier scores how likely a transition a -> b is. Scores
// are probabilities in [0, 1].
type TransitionClassifier interface {
	Score(a, b Node) float64
}

// DistanceClassifier scores a transition by exp(-d/Parameter) where d is
// the euclidean distance between the two centers.
type DistanceClassifier struct {
	Parameter float64
}

// Score implements TransitionClassifier.
func (c DistanceClassifier) Score(a, b Node) float64 {
	if len(a.Center) == 0 || len(a.Center) != len(b.Center) {
		return 0
	}
	return math.Exp(-floats.Distance(a.Center, b.Center, 2) / c.Parameter)
}

// Cost turns a transition probability into a negative log-likelihood,
// flooring the probability at minProbability.
func Cost(probability, minProbability float64) float64 {
	return -math.Log(math.Max(probability, minProbability))
}
