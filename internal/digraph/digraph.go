// Package digraph is a small arena-backed directed graph used by the
// hypotheses graph and by the working graphs of a merger-resolution run.
//
// Nodes are addressed by a stable Key (timestep, object id). Internally each
// key maps to an integer handle into the node arena, and adjacency is kept
// per handle in both directions so removing a node drops its incident edges
// without scanning the whole graph.
package digraph

import (
	"errors"
	"fmt"
	"sort"
)

// ErrNodeNotFound is returned when an operation refers to a key that is not
// present in the graph.
var ErrNodeNotFound = errors.New("node not found")

// Key identifies a node by timestep and object id.
type Key struct {
	Timestep int `json:"timestep"`
	ID       int `json:"id"`
}

// Less orders keys by timestep, then id.
func (k Key) Less(o Key) bool {
	if k.Timestep != o.Timestep {
		return k.Timestep < o.Timestep
	}
	return k.ID < o.ID
}

func (k Key) String() string {
	return fmt.Sprintf("(%d, %d)", k.Timestep, k.ID)
}

type handle int

// EdgeRef is a snapshot of one edge and its payload.
type EdgeRef[E any] struct {
	From  Key
	To    Key
	Value E
}

// Graph is a directed graph with node payload N and edge payload E.
// The zero value is not usable; call New.
type Graph[N, E any] struct {
	index map[Key]handle
	keys  []Key
	nodes []N
	live  []bool
	out   []map[handle]E
	in    []map[handle]E

	numNodes int
	numEdges int
}

// New returns an empty graph.
func New[N, E any]() *Graph[N, E] {
	return &Graph[N, E]{index: make(map[Key]handle)}
}

// AddNode inserts a node. It returns false and leaves the graph untouched if
// the key already exists.
func (g *Graph[N, E]) AddNode(k Key, n N) bool {
	if _, ok := g.index[k]; ok {
		return false
	}
	h := handle(len(g.nodes))
	g.index[k] = h
	g.keys = append(g.keys, k)
	g.nodes = append(g.nodes, n)
	g.live = append(g.live, true)
	g.out = append(g.out, make(map[handle]E))
	g.in = append(g.in, make(map[handle]E))
	g.numNodes++
	return true
}

// Node returns the payload stored for k.
func (g *Graph[N, E]) Node(k Key) (N, bool) {
	h, ok := g.index[k]
	if !ok {
		var zero N
		return zero, false
	}
	return g.nodes[h], true
}

// SetNode replaces the payload of an existing node.
func (g *Graph[N, E]) SetNode(k Key, n N) error {
	h, ok := g.index[k]
	if !ok {
		return fmt.Errorf("set node %v: %w", k, ErrNodeNotFound)
	}
	g.nodes[h] = n
	return nil
}

// Has reports whether k is a node of the graph.
func (g *Graph[N, E]) Has(k Key) bool {
	_, ok := g.index[k]
	return ok
}

// RemoveNode deletes k together with all of its incident edges.
func (g *Graph[N, E]) RemoveNode(k Key) bool {
	h, ok := g.index[k]
	if !ok {
		return false
	}
	for succ := range g.out[h] {
		delete(g.in[succ], h)
		g.numEdges--
	}
	for pred := range g.in[h] {
		if pred == h {
			continue // self loop already counted above
		}
		delete(g.out[pred], h)
		g.numEdges--
	}
	g.out[h] = nil
	g.in[h] = nil
	g.live[h] = false
	var zero N
	g.nodes[h] = zero
	delete(g.index, k)
	g.numNodes--
	return true
}

// AddEdge inserts or replaces the edge from -> to.
func (g *Graph[N, E]) AddEdge(from, to Key, e E) error {
	hf, ok := g.index[from]
	if !ok {
		return fmt.Errorf("add edge %v -> %v: source: %w", from, to, ErrNodeNotFound)
	}
	ht, ok := g.index[to]
	if !ok {
		return fmt.Errorf("add edge %v -> %v: target: %w", from, to, ErrNodeNotFound)
	}
	if _, exists := g.out[hf][ht]; !exists {
		g.numEdges++
	}
	g.out[hf][ht] = e
	g.in[ht][hf] = e
	return nil
}

// Edge returns the payload of from -> to.
func (g *Graph[N, E]) Edge(from, to Key) (E, bool) {
	var zero E
	hf, ok := g.index[from]
	if !ok {
		return zero, false
	}
	ht, ok := g.index[to]
	if !ok {
		return zero, false
	}
	e, ok := g.out[hf][ht]
	return e, ok
}

// HasEdge reports whether from -> to exists.
func (g *Graph[N, E]) HasEdge(from, to Key) bool {
	_, ok := g.Edge(from, to)
	return ok
}

// RemoveEdge deletes from -> to if present.
func (g *Graph[N, E]) RemoveEdge(from, to Key) bool {
	hf, ok := g.index[from]
	if !ok {
		return false
	}
	ht, ok := g.index[to]
	if !ok {
		return false
	}
	if _, exists := g.out[hf][ht]; !exists {
		return false
	}
	delete(g.out[hf], ht)
	delete(g.in[ht], hf)
	g.numEdges--
	return true
}

// Successors returns the targets of k's outgoing edges in key order.
func (g *Graph[N, E]) Successors(k Key) []Key {
	h, ok := g.index[k]
	if !ok {
		return nil
	}
	return g.sortedKeys(g.out[h])
}

// Predecessors returns the sources of k's incoming edges in key order.
func (g *Graph[N, E]) Predecessors(k Key) []Key {
	h, ok := g.index[k]
	if !ok {
		return nil
	}
	return g.sortedKeys(g.in[h])
}

// OutDegree is the number of outgoing edges of k.
func (g *Graph[N, E]) OutDegree(k Key) int {
	if h, ok := g.index[k]; ok {
		return len(g.out[h])
	}
	return 0
}

// InDegree is the number of incoming edges of k.
func (g *Graph[N, E]) InDegree(k Key) int {
	if h, ok := g.index[k]; ok {
		return len(g.in[h])
	}
	return 0
}

// Keys returns all node keys ordered by timestep, then id.
func (g *Graph[N, E]) Keys() []Key {
	keys := make([]Key, 0, g.numNodes)
	for h, k := range g.keys {
		if g.live[h] {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

// Edges returns all edges ordered by source key, then target key.
func (g *Graph[N, E]) Edges() []EdgeRef[E] {
	edges := make([]EdgeRef[E], 0, g.numEdges)
	for _, from := range g.Keys() {
		h := g.index[from]
		for _, to := range g.sortedKeys(g.out[h]) {
			edges = append(edges, EdgeRef[E]{From: from, To: to, Value: g.out[h][g.index[to]]})
		}
	}
	return edges
}

// NumNodes is the number of live nodes.
func (g *Graph[N, E]) NumNodes() int { return g.numNodes }

// NumEdges is the number of edges.
func (g *Graph[N, E]) NumEdges() int { return g.numEdges }

func (g *Graph[N, E]) sortedKeys(adj map[handle]E) []Key {
	keys := make([]Key, 0, len(adj))
	for h := range adj {
		keys = append(keys, g.keys[h])
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}
