// Package evaluation compares two tracking solutions over the same
// detections by the transitions they select.
package evaluation

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/JaimeIvanCervantes/hytra/internal/digraph"
	"github.com/JaimeIvanCervantes/hytra/internal/hypotheses"
	"github.com/JaimeIvanCervantes/hytra/internal/jsongraph"
)

var (
	// ErrTooFewTimesteps is returned when a solution spans less than two
	// timesteps, so it holds no transitions.
	ErrTooFewTimesteps = errors.New("at least two timesteps needed")
	// ErrDetectionMismatch is returned when the two solutions do not share
	// the same detections at a timestep.
	ErrDetectionMismatch = errors.New("solutions have different detections")
)

// Kind classifies a selected transition.
type Kind int

const (
	// Move is a transition from a non-dividing node.
	Move Kind = iota
	// Division is one of the transitions leaving a dividing node.
	Division
)

func (k Kind) String() string {
	switch k {
	case Move:
		return "move"
	case Division:
		return "division"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Event is one selected transition.
type Event struct {
	Kind Kind
	Link jsongraph.Link
}

// Taxonomy sorts the events of two solutions into those both select and
// those only one of them selects.
type Taxonomy struct {
	Matched        []Event
	BaseOnly       []Event
	ContestantOnly []Event
}

// Union concatenates two taxonomies.
func (t Taxonomy) Union(o Taxonomy) Taxonomy {
	return Taxonomy{
		Matched:        append(append([]Event(nil), t.Matched...), o.Matched...),
		BaseOnly:       append(append([]Event(nil), t.BaseOnly...), o.BaseOnly...),
		ContestantOnly: append(append([]Event(nil), t.ContestantOnly...), o.ContestantOnly...),
	}
}

// Elements is the number of events of both solutions.
func (t Taxonomy) Elements() int {
	return 2*len(t.Matched) + len(t.BaseOnly) + len(t.ContestantOnly)
}

// Precision is the fraction of contestant events the base confirms.
func (t Taxonomy) Precision() float64 {
	return ratio(len(t.Matched), len(t.Matched)+len(t.ContestantOnly))
}

// Recall is the fraction of base events the contestant finds.
func (t Taxonomy) Recall() float64 {
	return ratio(len(t.Matched), len(t.Matched)+len(t.BaseOnly))
}

// FMeasure is the harmonic mean of precision and recall.
func (t Taxonomy) FMeasure() float64 {
	p, r := t.Precision(), t.Recall()
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

// Counts returns the number of matched, base-only and contestant-only
// events of one kind.
func (t Taxonomy) Counts(k Kind) (matched, baseOnly, contestantOnly int) {
	return countKind(t.Matched, k), countKind(t.BaseOnly, k), countKind(t.ContestantOnly, k)
}

// String renders a per-kind table followed by the overall scores.
func (t Taxonomy) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-10s %8s %8s %11s\n", "kind", "matched", "base", "contestant")
	for _, k := range []Kind{Move, Division} {
		m, bo, co := t.Counts(k)
		fmt.Fprintf(&b, "%-10s %8d %8d %11d\n", k, m, bo, co)
	}
	fmt.Fprintf(&b, "precision %.3f recall %.3f f-measure %.3f", t.Precision(), t.Recall(), t.FMeasure())
	return b.String()
}

// Line renders the scores on one line.
func (t Taxonomy) Line() string {
	return fmt.Sprintf("%.3f %.3f %.3f %d %d %d",
		t.Precision(), t.Recall(), t.FMeasure(), len(t.Matched), len(t.BaseOnly), len(t.ContestantOnly))
}

// SelectedEvents lists the selected transitions of hg grouped by the
// timestep of their target. A transition is selected when the edge and
// both endpoints carry a positive value.
func SelectedEvents(hg *hypotheses.Graph) map[int][]Event {
	out := make(map[int][]Event)
	for _, e := range hg.Edges() {
		if e.Value.Value <= 0 {
			continue
		}
		src, _ := hg.Node(e.From)
		dest, _ := hg.Node(e.To)
		if src.Value <= 0 || dest.Value <= 0 {
			continue
		}
		kind := Move
		if src.Divides() {
			kind = Division
		}
		out[e.To.Timestep] = append(out[e.To.Timestep], Event{Kind: kind, Link: jsongraph.Link{Src: e.From, Dest: e.To}})
	}
	return out
}

// Compare builds one taxonomy per transition target timestep shared by
// both solutions and their union. Only the first maxTimesteps timesteps
// are compared when maxTimesteps is positive. Both solutions must hold the
// same detections at every compared timestep.
func Compare(base, contestant *hypotheses.Graph, maxTimesteps int) ([]Taxonomy, Taxonomy, error) {
	baseSteps := nodesPerTimestep(base)
	contSteps := nodesPerTimestep(contestant)
	timesteps := sortedTimesteps(baseSteps)
	if maxTimesteps > 0 && len(timesteps) > maxTimesteps {
		timesteps = timesteps[:maxTimesteps]
	}
	if len(timesteps) < 2 {
		return nil, Taxonomy{}, fmt.Errorf("base: %w", ErrTooFewTimesteps)
	}
	if len(contSteps) < 2 {
		return nil, Taxonomy{}, fmt.Errorf("contestant: %w", ErrTooFewTimesteps)
	}
	if n := len(contSteps); len(timesteps) > n {
		timesteps = timesteps[:n]
	}

	for _, t := range timesteps {
		if !sameKeys(baseSteps[t], contSteps[t]) {
			return nil, Taxonomy{}, fmt.Errorf("timestep %d: %w", t, ErrDetectionMismatch)
		}
	}

	baseEvents := SelectedEvents(base)
	contEvents := SelectedEvents(contestant)

	var perStep []Taxonomy
	var overall Taxonomy
	for _, t := range timesteps[1:] {
		tax := taxonomy(baseEvents[t], contEvents[t])
		perStep = append(perStep, tax)
		overall = overall.Union(tax)
	}
	return perStep, overall, nil
}

func taxonomy(base, contestant []Event) Taxonomy {
	inBase := make(map[Event]bool, len(base))
	for _, e := range base {
		inBase[e] = true
	}
	inCont := make(map[Event]bool, len(contestant))
	for _, e := range contestant {
		inCont[e] = true
	}

	var t Taxonomy
	for _, e := range base {
		if inCont[e] {
			t.Matched = append(t.Matched, e)
		} else {
			t.BaseOnly = append(t.BaseOnly, e)
		}
	}
	for _, e := range contestant {
		if !inBase[e] {
			t.ContestantOnly = append(t.ContestantOnly, e)
		}
	}
	return t
}

func nodesPerTimestep(hg *hypotheses.Graph) map[int][]digraph.Key {
	out := make(map[int][]digraph.Key)
	for _, k := range hg.Keys() {
		out[k.Timestep] = append(out[k.Timestep], k)
	}
	return out
}

func sortedTimesteps(m map[int][]digraph.Key) []int {
	out := make([]int, 0, len(m))
	for t := range m {
		out = append(out, t)
	}
	sort.Ints(out)
	return out
}

// sameKeys compares two key lists that are both in Keys order.
func sameKeys(a, b []digraph.Key) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func countKind(events []Event, k Kind) int {
	n := 0
	for _, e := range events {
		if e.Kind == k {
			n++
		}
	}
	return n
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
