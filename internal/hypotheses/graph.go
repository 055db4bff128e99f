// Package hypotheses holds the hypotheses graph: every candidate detection
// and transition of a tracking problem together with the currently selected
// solution and the cost tables handed to the optimizer.
//
// Nodes are keyed by (timestep, traxel id). Each node carries its Traxel and
// the optimizer uuid used to match solver results back onto the graph.
package hypotheses

import (
	"fmt"

	"github.com/JaimeIvanCervantes/hytra/internal/digraph"
)

// NodeKey identifies a node by timestep and traxel id.
type NodeKey = digraph.Key

// NoUUID marks a node that has not been assigned an optimizer uuid yet.
const NoUUID = -1

// Traxel is one detected object at one timestep.
type Traxel struct {
	ID       int
	Timestep int
	Features map[string][]float64
}

// NewTraxel returns a traxel with an empty feature map.
func NewTraxel(t, id int) *Traxel {
	return &Traxel{ID: id, Timestep: t, Features: make(map[string][]float64)}
}

// Key is the graph key of the traxel.
func (tr *Traxel) Key() NodeKey {
	return NodeKey{Timestep: tr.Timestep, ID: tr.ID}
}

// Feature returns the named feature vector.
func (tr *Traxel) Feature(name string) ([]float64, bool) {
	v, ok := tr.Features[name]
	return v, ok
}

// Node is one detection hypothesis.
type Node struct {
	Traxel *Traxel
	// UUID is the optimizer identifier, NoUUID if unassigned.
	UUID int
	// Value is the selected state count.
	Value int
	// DivisionValue is 0 or 1 once a solution was inserted, nil otherwise.
	DivisionValue *int

	Features              [][]float64
	DivisionFeatures      [][]float64
	AppearanceFeatures    [][]float64
	DisappearanceFeatures [][]float64

	// Lineage is zero until ComputeLineage assigns one.
	Lineage int
	// Tracklet lists the traxels collapsed into this node, in time order.
	// Only set on nodes of a tracklet graph.
	Tracklet []*Traxel
}

// Divides reports whether the node's division value is set to 1.
func (n *Node) Divides() bool {
	return n.DivisionValue != nil && *n.DivisionValue == 1
}

// Edge is one transition hypothesis.
type Edge struct {
	Value    int
	Features [][]float64
}

// Graph is the hypotheses graph.
type Graph struct {
	g *digraph.Graph[*Node, *Edge]
}

// NewGraph returns an empty hypotheses graph.
func NewGraph() *Graph {
	return &Graph{g: digraph.New[*Node, *Edge]()}
}

// AddNode inserts n under key k. If k exists the existing node is returned
// unchanged.
func (h *Graph) AddNode(k NodeKey, n *Node) *Node {
	if existing, ok := h.g.Node(k); ok {
		return existing
	}
	h.g.AddNode(k, n)
	return n
}

// AddNodeFromTraxel inserts a node for tr with the given selected value.
func (h *Graph) AddNodeFromTraxel(tr *Traxel, value int) *Node {
	return h.AddNode(tr.Key(), &Node{Traxel: tr, UUID: NoUUID, Value: value})
}

// AddPath inserts the given keys as a path, creating missing nodes with a
// bare traxel.
func (h *Graph) AddPath(keys ...NodeKey) error {
	for i, k := range keys {
		if !h.g.Has(k) {
			h.AddNodeFromTraxel(NewTraxel(k.Timestep, k.ID), 0)
		}
		if i > 0 {
			if _, err := h.AddEdge(keys[i-1], k); err != nil {
				return err
			}
		}
	}
	return nil
}

// AddEdge inserts from -> to, or returns the existing edge.
func (h *Graph) AddEdge(from, to NodeKey) (*Edge, error) {
	if e, ok := h.g.Edge(from, to); ok {
		return e, nil
	}
	e := &Edge{}
	if err := h.g.AddEdge(from, to, e); err != nil {
		return nil, fmt.Errorf("hypotheses graph: %w", err)
	}
	return e, nil
}

// RemoveNode deletes k and all edges touching it.
func (h *Graph) RemoveNode(k NodeKey) bool { return h.g.RemoveNode(k) }

// Node returns the node stored at k.
func (h *Graph) Node(k NodeKey) (*Node, bool) { return h.g.Node(k) }

// Edge returns the edge from -> to.
func (h *Graph) Edge(from, to NodeKey) (*Edge, bool) { return h.g.Edge(from, to) }

// HasNode reports whether k is in the graph.
func (h *Graph) HasNode(k NodeKey) bool { return h.g.Has(k) }

// Keys returns all node keys in (timestep, id) order.
func (h *Graph) Keys() []NodeKey { return h.g.Keys() }

// Edges returns all edges in key order.
func (h *Graph) Edges() []digraph.EdgeRef[*Edge] { return h.g.Edges() }

// Successors returns the targets of k's outgoing edges.
func (h *Graph) Successors(k NodeKey) []NodeKey { return h.g.Successors(k) }

// Predecessors returns the sources of k's incoming edges.
func (h *Graph) Predecessors(k NodeKey) []NodeKey { return h.g.Predecessors(k) }

// CountNodes is the number of nodes.
func (h *Graph) CountNodes() int { return h.g.NumNodes() }

// CountArcs is the number of edges.
func (h *Graph) CountArcs() int { return h.g.NumEdges() }

func (h *Graph) mustNode(k NodeKey) *Node {
	n, _ := h.g.Node(k)
	return n
}
