package merger

import (
	"strconv"

	"github.com/JaimeIvanCervantes/hytra/internal/flow"
	"github.com/JaimeIvanCervantes/hytra/internal/jsongraph"
)

// MergerFilters keeps a hypothesis only if none of its traxels is a merger,
// and a link only if both of its endpoints are kept. Every uuid of the model
// is known to mp once NewEngine succeeded; an unknown one has no traxels and
// so holds no merger.
func MergerFilters(mergers jsongraph.MergersPerTimestep, mp *jsongraph.Mappings) (jsongraph.NodeFilter, jsongraph.LinkFilter) {
	hasMerger := func(uuid int) bool {
		traxels, err := mp.Traxels(uuid)
		if err != nil {
			return false
		}
		for _, tr := range traxels {
			if mergers.IsMerger(tr) {
				return true
			}
		}
		return false
	}
	keepNode := func(uuid int) bool { return !hasMerger(uuid) }
	keepLink := func(src, dest int) bool { return !hasMerger(src) && !hasMerger(dest) }
	return keepNode, keepLink
}

// refineModel keeps the hypotheses accepted by the filters, drops the
// traxels of rejected hypotheses from the uuid table and adds the split
// objects and every resolved edge.
func (e *Engine) refineModel(keepNode jsongraph.NodeFilter, keepLink jsongraph.LinkFilter) *jsongraph.Model {
	out := jsongraph.FilterModel(e.model, keepNode, keepLink)

	for uuid, traxels := range e.mappings.UUIDToTraxels {
		if keepNode(uuid) {
			continue
		}
		for _, tr := range traxels {
			ts := strconv.Itoa(tr.Timestep)
			delete(out.TraxelToUniqueID[ts], strconv.Itoa(tr.ID))
		}
	}

	for _, k := range e.resolved.Keys() {
		n, _ := e.resolved.Node(k)
		if !n.IsSplit() {
			continue
		}
		out.SegmentationHypotheses = append(out.SegmentationHypotheses, jsongraph.SegmentationHypothesis{
			ID:       n.OptimizerID,
			Timestep: [2]int{k.Timestep, k.Timestep},
		})
		out.SetUniqueID(k.Timestep, k.ID, n.OptimizerID)
	}

	existing := make(map[flow.ArcKey]bool, len(out.LinkingHypotheses))
	for _, l := range out.LinkingHypotheses {
		existing[flow.ArcKey{Src: l.Src, Dest: l.Dest}] = true
	}
	for _, edge := range e.resolved.Edges() {
		key := flow.ArcKey{Src: e.optimizerID(edge.From), Dest: e.optimizerID(edge.To)}
		if existing[key] {
			continue
		}
		existing[key] = true
		out.LinkingHypotheses = append(out.LinkingHypotheses, jsongraph.LinkingHypothesis{Src: key.Src, Dest: key.Dest})
	}
	return out
}

// refineResult is the union of the filtered result and the flow of the
// resolved graph. Resolved entries win.
func (e *Engine) refineResult(flows *flow.Result, keepNode jsongraph.NodeFilter, keepLink jsongraph.LinkFilter) (*jsongraph.Result, error) {
	base := jsongraph.FilterResult(e.result, keepNode, keepLink)

	resolved := &jsongraph.Result{}
	for _, k := range e.resolved.Keys() {
		id := e.optimizerID(k)
		v, err := flows.Node(id)
		if err != nil {
			return nil, err
		}
		resolved.DetectionResults = append(resolved.DetectionResults, jsongraph.DetectionResult{ID: id, Value: v})
	}
	for _, edge := range e.resolved.Edges() {
		src, dest := e.optimizerID(edge.From), e.optimizerID(edge.To)
		v, err := flows.Arc(src, dest)
		if err != nil {
			return nil, err
		}
		resolved.LinkingResults = append(resolved.LinkingResults, jsongraph.LinkingResult{Src: src, Dest: dest, Value: v})
	}
	return jsongraph.UnionResults(base, resolved), nil
}
