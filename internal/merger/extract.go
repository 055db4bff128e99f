package merger

import (
	"fmt"
	"sort"

	"github.com/JaimeIvanCervantes/hytra/internal/digraph"
	"github.com/JaimeIvanCervantes/hytra/internal/jsongraph"
)

// extract builds the unresolved graph from the solved result and prepares
// the resolved graph as a copy of it.
func (e *Engine) extract() error {
	sel, err := jsongraph.MergersDetectionsLinksDivisions(e.result, e.mappings)
	if err != nil {
		return err
	}
	ts := e.mappings.Timesteps
	e.mergers = jsongraph.GroupMergers(sel.Mergers, ts)
	e.detections = jsongraph.GroupDetections(sel.Detections, ts)
	links := jsongraph.GroupLinks(sel.Links, ts)
	divisions, err := jsongraph.GroupDivisions(sel.Divisions, links, ts)
	if err != nil {
		return err
	}
	mergerLinks := jsongraph.MergerLinks(links, e.mergers, ts)

	if err := e.buildUnresolvedGraph(mergerLinks, divisions); err != nil {
		return err
	}
	return e.prepareResolvedGraph()
}

// buildUnresolvedGraph adds every merger link with its endpoints, then the
// mergers without any selected link. A node divides in the graph only when
// both of its selected children are linked to it here.
func (e *Engine) buildUnresolvedGraph(mergerLinks []jsongraph.Link, divisions jsongraph.DivisionsPerTimestep) error {
	g := digraph.New[*UnresolvedNode, struct{}]()
	add := func(k digraph.Key) error {
		if g.Has(k) {
			return nil
		}
		n, err := newUnresolvedNode(k, e.mergers.Count(k), false)
		if err != nil {
			return err
		}
		g.AddNode(k, n)
		return nil
	}

	for _, l := range mergerLinks {
		if err := add(l.Src); err != nil {
			return err
		}
		if err := add(l.Dest); err != nil {
			return err
		}
		if err := g.AddEdge(l.Src, l.Dest, struct{}{}); err != nil {
			return err
		}
	}

	timesteps := make([]int, 0, len(e.mergers))
	for t := range e.mergers {
		timesteps = append(timesteps, t)
	}
	sort.Ints(timesteps)
	for _, t := range timesteps {
		ids := make([]int, 0, len(e.mergers[t]))
		for id := range e.mergers[t] {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		for _, id := range ids {
			if err := add(digraph.Key{Timestep: t, ID: id}); err != nil {
				return err
			}
		}
	}

	for _, k := range g.Keys() {
		children, ok := divisions[k.Timestep][k.ID]
		if !ok || !g.HasEdge(k, children[0]) || !g.HasEdge(k, children[1]) {
			continue
		}
		n, _ := g.Node(k)
		if n.Count > 1 {
			return fmt.Errorf("node %v with count %d: %w", k, n.Count, ErrMergerDivision)
		}
		n.Division = true
	}

	e.unresolved = g
	return nil
}

func (e *Engine) prepareResolvedGraph() error {
	g := digraph.New[*ResolvedNode, struct{}]()
	for _, k := range e.unresolved.Keys() {
		n, _ := e.unresolved.Node(k)
		g.AddNode(k, newPassThroughNode(n))
	}
	for _, edge := range e.unresolved.Edges() {
		if err := g.AddEdge(edge.From, edge.To, struct{}{}); err != nil {
			return err
		}
	}
	e.resolved = g
	return nil
}
