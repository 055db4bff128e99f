package merger

import (
	"fmt"

	"github.com/JaimeIvanCervantes/hytra/internal/digraph"
	"github.com/JaimeIvanCervantes/hytra/internal/fitting"
)

// UnresolvedNode is a merger, or a direct neighbor of one, together with
// the fits recorded for it during the per-timestep pass.
type UnresolvedNode struct {
	Key digraph.Key
	// Count is the number of objects in the region, 1 for neighbors.
	Count int
	// Division is set when the node divides into two nodes of the graph.
	Division bool
	// Fits holds Count fits once the node's timestep was processed.
	Fits []fitting.Fit
	// NewIDs holds Count fresh traxel ids once a merger was split.
	NewIDs []int
}

func newUnresolvedNode(k digraph.Key, count int, division bool) (*UnresolvedNode, error) {
	if count < 1 {
		return nil, fmt.Errorf("node %v: count %d below one", k, count)
	}
	if division && count > 1 {
		return nil, fmt.Errorf("node %v with count %d: %w", k, count, ErrMergerDivision)
	}
	return &UnresolvedNode{Key: k, Count: count, Division: division}, nil
}

// Split reports whether the node was replaced by new objects.
func (n *UnresolvedNode) Split() bool {
	return len(n.NewIDs) > 0
}

// Fitted reports whether the node's fits were recorded.
func (n *UnresolvedNode) Fitted() bool {
	return n.Fits != nil
}

// record stores the outcome of fitting the node.
func (n *UnresolvedNode) record(fits []fitting.Fit, newIDs []int) error {
	if len(fits) != n.Count {
		return fmt.Errorf("node %v: %d fits for count %d: %w", n.Key, len(fits), n.Count, ErrFitCountMismatch)
	}
	if newIDs != nil && len(newIDs) != n.Count {
		return fmt.Errorf("node %v: %d new ids for count %d: %w", n.Key, len(newIDs), n.Count, ErrFitCountMismatch)
	}
	n.Fits = fits
	n.NewIDs = newIDs
	return nil
}

// ResolvedNode is a node of the post-split graph: either one object cut
// out of a merger or an unresolved node passed through unchanged.
type ResolvedNode struct {
	Key      digraph.Key
	Count    int
	Division bool
	// Origin is the merger the object was split from, nil for pass-through
	// nodes.
	Origin *digraph.Key
	// OptimizerID is assigned before the flow re-solve.
	OptimizerID int
}

func newSplitNode(k digraph.Key, origin digraph.Key) *ResolvedNode {
	return &ResolvedNode{Key: k, Count: 1, Origin: &origin, OptimizerID: -1}
}

func newPassThroughNode(u *UnresolvedNode) *ResolvedNode {
	return &ResolvedNode{Key: u.Key, Count: u.Count, Division: u.Division, OptimizerID: -1}
}

// IsSplit reports whether the node was cut out of a merger.
func (n *ResolvedNode) IsSplit() bool {
	return n.Origin != nil
}

// IDCounter hands out traxel ids that are unique for a whole run.
type IDCounter struct {
	next int
}

// NewIDCounter returns a counter whose first id is start.
func NewIDCounter(start int) *IDCounter {
	return &IDCounter{next: start}
}

// Reserve makes sure every following id is greater than floor.
func (c *IDCounter) Reserve(floor int) {
	if c.next <= floor {
		c.next = floor + 1
	}
}

// Next returns a fresh id.
func (c *IDCounter) Next() int {
	id := c.next
	c.next++
	return id
}

// Take returns n consecutive fresh ids.
func (c *IDCounter) Take(n int) []int {
	ids := make([]int, n)
	for i := range ids {
		ids[i] = c.Next()
	}
	return ids
}

// Peek returns the id Next would return.
func (c *IDCounter) Peek() int {
	return c.next
}
