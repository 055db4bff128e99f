package merger

import (
	"context"
	"fmt"

	"github.com/JaimeIvanCervantes/hytra/internal/flow"
	"github.com/JaimeIvanCervantes/hytra/internal/hypotheses"
	"github.com/JaimeIvanCervantes/hytra/internal/monitoring"
)

// NewGraphResolver builds an Engine over a solved hypotheses graph. The
// model and result are exported from hg, and once refined the split
// objects and their links are written back onto hg before any
// AfterRefine hook of opts runs.
func NewGraphResolver(hg *hypotheses.Graph, opts Options) (*Engine, error) {
	model := hg.ToTrackingGraph(true)
	result := hg.SolutionDictionary()

	hook := opts.Policy.AfterRefine
	opts.Policy.AfterRefine = func(ctx context.Context, e *Engine, flows *flow.Result) error {
		if err := e.UpdateHypothesesGraph(hg, flows); err != nil {
			return err
		}
		if hook != nil {
			return hook(ctx, e, flows)
		}
		return nil
	}
	return NewEngine(model, result, opts)
}

// UpdateHypothesesGraph replaces every split merger of hg by its objects
// and inserts the resolved edges with their selected flow. New nodes carry
// their region center, value 1 and their optimizer uuid.
func (e *Engine) UpdateHypothesesGraph(hg *hypotheses.Graph, flows *flow.Result) error {
	added, removed := 0, 0
	for _, k := range e.unresolved.Keys() {
		n, _ := e.unresolved.Node(k)
		if len(n.NewIDs) < 2 {
			continue
		}
		if len(n.NewIDs) != n.Count || len(n.Fits) != n.Count {
			return fmt.Errorf("node %v: %d new ids, %d fits for count %d: %w", k, len(n.NewIDs), len(n.Fits), n.Count, ErrFitCountMismatch)
		}
		for i, id := range n.NewIDs {
			tr := hypotheses.NewTraxel(k.Timestep, id)
			tr.Features[RegionCenterFeature] = n.Fits[i].RegionCenter()
			node := hg.AddNodeFromTraxel(tr, 1)
			if rn, ok := e.resolved.Node(tr.Key()); ok {
				node.UUID = rn.OptimizerID
			}
			added++
		}
		if hg.RemoveNode(k) {
			removed++
		}
	}

	for _, edge := range e.resolved.Edges() {
		v, err := flows.Arc(e.optimizerID(edge.From), e.optimizerID(edge.To))
		if err != nil {
			return fmt.Errorf("edge %v -> %v: %w", edge.From, edge.To, err)
		}
		he, err := hg.AddEdge(edge.From, edge.To)
		if err != nil {
			return err
		}
		he.Value = v
	}
	monitoring.Debugf("merger: hypotheses graph: %d nodes added, %d removed, %d edges set", added, removed, e.resolved.NumEdges())
	return nil
}
