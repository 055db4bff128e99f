package merger

import (
	"fmt"

	"github.com/JaimeIvanCervantes/hytra/internal/digraph"
	"github.com/JaimeIvanCervantes/hytra/internal/flow"
	"github.com/JaimeIvanCervantes/hytra/internal/jsongraph"
)

// objectCenters returns the region center of every object present after
// splitting: one per new id of a split merger, one per other node. Rich
// object features are not recomputed.
func (e *Engine) objectCenters() (map[digraph.Key][]float64, error) {
	centers := make(map[digraph.Key][]float64, e.resolved.NumNodes())
	for _, k := range e.unresolved.Keys() {
		n, _ := e.unresolved.Node(k)
		if !n.Fitted() {
			return nil, fmt.Errorf("node %v: %w", k, ErrMissingFit)
		}
		keys := []digraph.Key{k}
		if n.Split() {
			keys = keys[:0]
			for _, id := range n.NewIDs {
				keys = append(keys, digraph.Key{Timestep: k.Timestep, ID: id})
			}
		}
		if len(keys) != len(n.Fits) {
			return nil, fmt.Errorf("node %v: %d objects, %d fits: %w", k, len(keys), len(n.Fits), ErrFitCountMismatch)
		}
		for i, key := range keys {
			centers[key] = n.Fits[i].RegionCenter()
		}
	}
	return centers, nil
}

// assignOptimizerIDs gives pass-through nodes their model uuid and split
// objects fresh uuids after the largest one in use.
func (e *Engine) assignOptimizerIDs() error {
	next := e.mappings.MaxUUID() + 1
	for _, k := range e.resolved.Keys() {
		n, _ := e.resolved.Node(k)
		if n.IsSplit() {
			n.OptimizerID = next
			next++
			continue
		}
		uuid, ok := e.mappings.UUID(k)
		if !ok {
			return fmt.Errorf("resolved node %v: %w", k, jsongraph.ErrUnknownUUID)
		}
		n.OptimizerID = uuid
	}
	return nil
}

func (e *Engine) flowRequest(centers map[digraph.Key][]float64) *flow.Request {
	req := &flow.Request{Classifier: e.classifier}
	for _, k := range e.resolved.Keys() {
		n, _ := e.resolved.Node(k)
		req.Nodes = append(req.Nodes, flow.Node{
			Key:      k,
			ID:       n.OptimizerID,
			Division: n.Division,
			Center:   centers[k],
		})
	}
	for _, edge := range e.resolved.Edges() {
		req.Arcs = append(req.Arcs, flow.Arc{Src: e.optimizerID(edge.From), Dest: e.optimizerID(edge.To)})
	}
	return req
}

func (e *Engine) optimizerID(k digraph.Key) int {
	n, _ := e.resolved.Node(k)
	return n.OptimizerID
}
