package hypotheses

// ComputeLineage assigns lineage ids, starting at 1, to every node with a
// positive value. A lineage is propagated along edges with positive value.
// A dividing node with two active outgoing edges ends its lineage and each
// child starts a new one. Nodes with value zero keep Lineage 0.
//
// It returns the number of lineages created.
func (h *Graph) ComputeLineage() int {
	for _, k := range h.Keys() {
		h.mustNode(k).Lineage = 0
	}

	next := 1
	// Keys are in timestep order, so every predecessor is visited before
	// its successors.
	for _, k := range h.Keys() {
		n := h.mustNode(k)
		if n.Value <= 0 {
			continue
		}
		if n.Lineage == 0 {
			n.Lineage = next
			next++
		}

		var active []*Node
		for _, s := range h.Successors(k) {
			e, _ := h.Edge(k, s)
			child := h.mustNode(s)
			if e.Value > 0 && child.Value > 0 {
				active = append(active, child)
			}
		}

		divides := n.Divides() && len(active) == 2
		for _, child := range active {
			if child.Lineage != 0 {
				continue
			}
			if divides {
				child.Lineage = next
				next++
			} else {
				child.Lineage = n.Lineage
			}
		}
	}
	return next - 1
}
