package hypotheses

import (
	"errors"
	"fmt"
	"math"
)

// ErrProbabilityLength is returned when a probability function yields fewer
// entries than there are states.
var ErrProbabilityLength = errors.New("probability vector shorter than number of states")

// ProbabilityFunc returns one probability per state for a traxel.
type ProbabilityFunc func(tr *Traxel) []float64

// TransitionProbabilityFunc returns one probability per state for a
// transition from a to b.
type TransitionProbabilityFunc func(a, b *Traxel) []float64

// BoundaryCostFunc returns the cost of an object appearing or disappearing
// at a traxel.
type BoundaryCostFunc func(tr *Traxel) float64

// InsertEnergies fills the cost tables of every node and edge for states
// 0..numStates. Costs are negative log-likelihoods, so a lower cost means a
// more likely state. Appearance and disappearance cost nothing in state 0.
// divProb may be nil, in which case division costs are left untouched.
func (h *Graph) InsertEnergies(
	numStates int,
	detProb ProbabilityFunc,
	transProb TransitionProbabilityFunc,
	boundaryCost BoundaryCostFunc,
	divProb ProbabilityFunc,
) error {
	for _, k := range h.Keys() {
		n := h.mustNode(k)

		det, err := negLogStates(detProb(n.Traxel), numStates)
		if err != nil {
			return fmt.Errorf("detection energies of %v: %w", k, err)
		}
		n.Features = det

		if divProb != nil {
			div, err := negLogStates(divProb(n.Traxel), numStates)
			if err != nil {
				return fmt.Errorf("division energies of %v: %w", k, err)
			}
			n.DivisionFeatures = div
		}

		boundary := boundaryCost(n.Traxel)
		n.AppearanceFeatures = make([][]float64, numStates+1)
		n.DisappearanceFeatures = make([][]float64, numStates+1)
		for s := 0; s <= numStates; s++ {
			cost := 0.0
			if s > 0 {
				cost = boundary
			}
			n.AppearanceFeatures[s] = []float64{cost}
			n.DisappearanceFeatures[s] = []float64{cost}
		}
	}

	for _, e := range h.Edges() {
		a, b := h.mustNode(e.From), h.mustNode(e.To)
		trans, err := negLogStates(transProb(a.Traxel, b.Traxel), numStates)
		if err != nil {
			return fmt.Errorf("transition energies of %v -> %v: %w", e.From, e.To, err)
		}
		e.Value.Features = trans
	}
	return nil
}

func negLogStates(probs []float64, numStates int) ([][]float64, error) {
	if len(probs) < numStates+1 {
		return nil, fmt.Errorf("got %d, need %d: %w", len(probs), numStates+1, ErrProbabilityLength)
	}
	out := make([][]float64, numStates+1)
	for s := 0; s <= numStates; s++ {
		out[s] = []float64{-math.Log(probs[s])}
	}
	return out, nil
}
