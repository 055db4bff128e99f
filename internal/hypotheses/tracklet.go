package hypotheses

// GenerateTrackletGraph collapses every maximal chain of non-branching
// nodes (in-degree and out-degree at most one) into a single node keyed by
// the chain's first traxel. Branching nodes always stay on their own. The
// receiver is not modified.
func (h *Graph) GenerateTrackletGraph() *Graph {
	simple := func(k NodeKey) bool {
		return h.g.InDegree(k) <= 1 && h.g.OutDegree(k) <= 1
	}
	// next returns the successor a chain continues into, if any.
	next := func(k NodeKey) (NodeKey, bool) {
		if !simple(k) {
			return NodeKey{}, false
		}
		succ := h.Successors(k)
		if len(succ) != 1 || !simple(succ[0]) {
			return NodeKey{}, false
		}
		return succ[0], true
	}

	isHead := func(k NodeKey) bool {
		for _, p := range h.Predecessors(k) {
			if n, ok := next(p); ok && n == k {
				return false
			}
		}
		return true
	}

	tg := NewGraph()
	tailToHead := make(map[NodeKey]NodeKey)
	for _, k := range h.Keys() {
		if !isHead(k) {
			continue
		}
		head := h.mustNode(k)
		members := []*Traxel{head.Traxel}
		tail := k
		for {
			n, ok := next(tail)
			if !ok {
				break
			}
			tail = n
			members = append(members, h.mustNode(n).Traxel)
		}
		last := h.mustNode(tail)
		tg.AddNode(k, &Node{
			Traxel:        head.Traxel,
			UUID:          NoUUID,
			Value:         head.Value,
			DivisionValue: last.DivisionValue,
			Tracklet:      members,
		})
		tailToHead[tail] = k
	}

	for tail, head := range tailToHead {
		for _, succ := range h.Successors(tail) {
			if !tg.HasNode(succ) {
				continue
			}
			orig, _ := h.Edge(tail, succ)
			e, err := tg.AddEdge(head, succ)
			if err != nil {
				continue
			}
			e.Value = orig.Value
			e.Features = orig.Features
		}
	}
	return tg
}
