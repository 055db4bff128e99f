package hypotheses

import (
	"github.com/JaimeIvanCervantes/hytra/internal/jsongraph"
)

func (h *Graph) uuidIndex() map[int]NodeKey {
	idx := make(map[int]NodeKey, h.CountNodes())
	for _, k := range h.Keys() {
		if n := h.mustNode(k); n.UUID != NoUUID {
			idx[n.UUID] = k
		}
	}
	return idx
}

// InsertSolution writes the selected values of r onto the nodes and edges
// whose uuids it mentions. Entries without a matching node or edge are
// ignored, as are nodes and edges that r does not mention: upstream pruning
// legitimately leaves the two out of step. Nothing is created or removed.
func (h *Graph) InsertSolution(r *jsongraph.Result) {
	idx := h.uuidIndex()

	for _, d := range r.DetectionResults {
		if k, ok := idx[d.ID]; ok {
			h.mustNode(k).Value = d.Value
		}
	}
	for _, l := range r.LinkingResults {
		src, ok := idx[l.Src]
		if !ok {
			continue
		}
		dest, ok := idx[l.Dest]
		if !ok {
			continue
		}
		if e, ok := h.Edge(src, dest); ok {
			e.Value = l.Value
		}
	}
	for _, d := range r.DivisionResults {
		k, ok := idx[d.ID]
		if !ok {
			continue
		}
		v := 0
		if d.Value {
			v = 1
		}
		h.mustNode(k).DivisionValue = &v
	}
}

// SolutionDictionary exports the selected values of all nodes and edges
// that carry optimizer uuids.
func (h *Graph) SolutionDictionary() *jsongraph.Result {
	r := &jsongraph.Result{}
	for _, k := range h.Keys() {
		n := h.mustNode(k)
		if n.UUID == NoUUID {
			continue
		}
		r.DetectionResults = append(r.DetectionResults, jsongraph.DetectionResult{ID: n.UUID, Value: n.Value})
		if n.DivisionValue != nil {
			r.DivisionResults = append(r.DivisionResults, jsongraph.DivisionResult{ID: n.UUID, Value: *n.DivisionValue == 1})
		}
	}
	for _, e := range h.Edges() {
		src, dest := h.mustNode(e.From), h.mustNode(e.To)
		if src.UUID == NoUUID || dest.UUID == NoUUID {
			continue
		}
		r.LinkingResults = append(r.LinkingResults, jsongraph.LinkingResult{Src: src.UUID, Dest: dest.UUID, Value: e.Value.Value})
	}
	return r
}

// ToTrackingGraph assigns uuids to nodes that lack one, continuing after
// the largest uuid in use, and exports the optimization model. Tracklet
// nodes map every member traxel to the node's uuid. With noFeatures the
// cost tables are omitted.
func (h *Graph) ToTrackingGraph(noFeatures bool) *jsongraph.Model {
	next := 0
	for _, k := range h.Keys() {
		if n := h.mustNode(k); n.UUID >= next {
			next = n.UUID + 1
		}
	}

	m := &jsongraph.Model{TraxelToUniqueID: make(map[string]map[string]int)}
	for _, k := range h.Keys() {
		n := h.mustNode(k)
		if n.UUID == NoUUID {
			n.UUID = next
			next++
		}

		members := n.Tracklet
		if len(members) == 0 {
			members = []*Traxel{{ID: k.ID, Timestep: k.Timestep}}
		}
		for _, tr := range members {
			m.SetUniqueID(tr.Timestep, tr.ID, n.UUID)
		}

		seg := jsongraph.SegmentationHypothesis{
			ID:       n.UUID,
			Timestep: [2]int{members[0].Timestep, members[len(members)-1].Timestep},
		}
		if !noFeatures {
			seg.Features = n.Features
			seg.DivisionFeatures = n.DivisionFeatures
			seg.AppearanceFeatures = n.AppearanceFeatures
			seg.DisappearanceFeatures = n.DisappearanceFeatures
		}
		m.SegmentationHypotheses = append(m.SegmentationHypotheses, seg)
	}
	for _, e := range h.Edges() {
		link := jsongraph.LinkingHypothesis{Src: h.mustNode(e.From).UUID, Dest: h.mustNode(e.To).UUID}
		if !noFeatures {
			link.Features = e.Value.Features
		}
		m.LinkingHypotheses = append(m.LinkingHypotheses, link)
	}
	return m
}
