package merger

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/JaimeIvanCervantes/hytra/internal/digraph"
	"github.com/JaimeIvanCervantes/hytra/internal/fitting"
	"github.com/JaimeIvanCervantes/hytra/internal/monitoring"
)

// FitTimestep fits the unresolved nodes of timestep t and splits the
// mergers among them in the resolved graph. coords maps traxel id to the
// pixel coordinates of its region. New ids are drawn from ids after it was
// raised above every label of the frame.
func (e *Engine) FitTimestep(coords map[int]*mat.Dense, t int, ids *IDCounter) error {
	if e.finished {
		return ErrFinished
	}
	if e.fittedAny && t <= e.lastTimestep {
		return fmt.Errorf("timestep %d after %d: %w", t, e.lastTimestep, ErrTimestepOrder)
	}
	detections, ok := e.detections[t]
	if !ok {
		return fmt.Errorf("timestep %d: %w", t, ErrUnknownTimestep)
	}

	labels := make([]int, 0, len(coords))
	for id := range coords {
		labels = append(labels, id)
	}
	sort.Ints(labels)
	if len(labels) > 0 {
		ids.Reserve(labels[len(labels)-1])
	}

	for _, id := range labels {
		if !detections[id] {
			continue
		}
		k := digraph.Key{Timestep: t, ID: id}
		n, ok := e.unresolved.Node(k)
		if !ok || !e.resolved.Has(k) {
			continue
		}

		fits, err := e.plugin.ResolveMergerForCoords(coords[id], n.Count, e.initializations(k))
		if err != nil {
			return fmt.Errorf("fit node %v: %w", k, err)
		}
		if len(fits) != n.Count {
			return fmt.Errorf("node %v: plugin returned %d fits for count %d: %w", k, len(fits), n.Count, ErrFitCountMismatch)
		}

		var newIDs []int
		if n.Count > 1 {
			newIDs = ids.Take(n.Count)
			if err := e.split(n, newIDs); err != nil {
				return err
			}
			monitoring.Debugf("merger: split %v into %v", k, newIDs)
		}
		if err := n.record(fits, newIDs); err != nil {
			return err
		}
	}

	e.lastTimestep = t
	e.fittedAny = true
	return nil
}

// initializations concatenates the fits of k's predecessors in key order.
func (e *Engine) initializations(k digraph.Key) []fitting.Fit {
	var inits []fitting.Fit
	for _, p := range e.unresolved.Predecessors(k) {
		pn, _ := e.unresolved.Node(p)
		inits = append(inits, pn.Fits...)
	}
	return inits
}

// split replaces n in the resolved graph by one node per new id. Every new
// node keeps n's outgoing edges. An incoming edge from a split predecessor
// is fanned out from each of the predecessor's objects.
func (e *Engine) split(n *UnresolvedNode, newIDs []int) error {
	k := n.Key
	for _, id := range newIDs {
		nk := digraph.Key{Timestep: k.Timestep, ID: id}
		if !e.resolved.AddNode(nk, newSplitNode(nk, k)) {
			return fmt.Errorf("split %v: id %d already in use at timestep %d", k, id, k.Timestep)
		}
		for _, succ := range e.unresolved.Successors(k) {
			if err := e.resolved.AddEdge(nk, succ, struct{}{}); err != nil {
				return fmt.Errorf("split %v: %w", k, err)
			}
		}
		for _, pred := range e.unresolved.Predecessors(k) {
			pn, _ := e.unresolved.Node(pred)
			if !pn.Split() {
				if err := e.resolved.AddEdge(pred, nk, struct{}{}); err != nil {
					return fmt.Errorf("split %v: %w", k, err)
				}
				continue
			}
			for _, pid := range pn.NewIDs {
				src := digraph.Key{Timestep: pred.Timestep, ID: pid}
				if err := e.resolved.AddEdge(src, nk, struct{}{}); err != nil {
					return fmt.Errorf("split %v: %w", k, err)
				}
			}
		}
	}
	e.resolved.RemoveNode(k)
	return nil
}
