package jsongraph

import "sort"

// NodeFilter reports whether the hypothesis with the given uuid is kept.
type NodeFilter func(uuid int) bool

// LinkFilter reports whether the link src -> dest is kept.
type LinkFilter func(src, dest int) bool

// FilterModel returns a copy of m holding only the hypotheses accepted by
// the filters. The traxel mapping is copied in full.
func FilterModel(m *Model, keepNode NodeFilter, keepLink LinkFilter) *Model {
	out := &Model{
		Exclusions:       m.Exclusions,
		TraxelToUniqueID: make(map[string]map[string]int, len(m.TraxelToUniqueID)),
	}
	for _, s := range m.SegmentationHypotheses {
		if keepNode(s.ID) {
			out.SegmentationHypotheses = append(out.SegmentationHypotheses, s)
		}
	}
	for _, l := range m.LinkingHypotheses {
		if keepLink(l.Src, l.Dest) {
			out.LinkingHypotheses = append(out.LinkingHypotheses, l)
		}
	}
	for t, ids := range m.TraxelToUniqueID {
		cp := make(map[string]int, len(ids))
		for id, uuid := range ids {
			cp[id] = uuid
		}
		out.TraxelToUniqueID[t] = cp
	}
	return out
}

// FilterResult returns a copy of r holding only the entries accepted by
// the filters.
func FilterResult(r *Result, keepNode NodeFilter, keepLink LinkFilter) *Result {
	out := &Result{}
	for _, d := range r.DetectionResults {
		if keepNode(d.ID) {
			out.DetectionResults = append(out.DetectionResults, d)
		}
	}
	for _, l := range r.LinkingResults {
		if keepLink(l.Src, l.Dest) {
			out.LinkingResults = append(out.LinkingResults, l)
		}
	}
	for _, d := range r.DivisionResults {
		if keepNode(d.ID) {
			out.DivisionResults = append(out.DivisionResults, d)
		}
	}
	return out
}

// UnionResults merges overlay into base. Entries of overlay replace base
// entries with the same id or (src, dest). Output entries are sorted.
func UnionResults(base, overlay *Result) *Result {
	dets := make(map[int]int)
	for _, d := range base.DetectionResults {
		dets[d.ID] = d.Value
	}
	for _, d := range overlay.DetectionResults {
		dets[d.ID] = d.Value
	}
	type arc struct{ src, dest int }
	links := make(map[arc]int)
	for _, l := range base.LinkingResults {
		links[arc{l.Src, l.Dest}] = l.Value
	}
	for _, l := range overlay.LinkingResults {
		links[arc{l.Src, l.Dest}] = l.Value
	}
	divs := make(map[int]bool)
	for _, d := range base.DivisionResults {
		divs[d.ID] = d.Value
	}
	for _, d := range overlay.DivisionResults {
		divs[d.ID] = d.Value
	}

	out := &Result{}
	for id, v := range dets {
		out.DetectionResults = append(out.DetectionResults, DetectionResult{ID: id, Value: v})
	}
	for a, v := range links {
		out.LinkingResults = append(out.LinkingResults, LinkingResult{Src: a.src, Dest: a.dest, Value: v})
	}
	for id, v := range divs {
		out.DivisionResults = append(out.DivisionResults, DivisionResult{ID: id, Value: v})
	}
	sort.Slice(out.DetectionResults, func(i, j int) bool {
		return out.DetectionResults[i].ID < out.DetectionResults[j].ID
	})
	sort.Slice(out.LinkingResults, func(i, j int) bool {
		a, b := out.LinkingResults[i], out.LinkingResults[j]
		if a.Src != b.Src {
			return a.Src < b.Src
		}
		return a.Dest < b.Dest
	})
	sort.Slice(out.DivisionResults, func(i, j int) bool {
		return out.DivisionResults[i].ID < out.DivisionResults[j].ID
	})
	return out
}
