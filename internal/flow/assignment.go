package flow

import (
	"context"
	"fmt"
	"sort"

	"github.com/JaimeIvanCervantes/hytra/internal/config"
	"github.com/JaimeIvanCervantes/hytra/internal/monitoring"
)

// AssignmentSolver selects one detection per node and, for every source
// timestep, the minimum-cost matching between the objects leaving that
// timestep and their candidate targets. Every target receives at most one
// object. A dividing node offers two objects, any other node one.
type AssignmentSolver struct {
	// Classifier is used when the request carries none.
	Classifier     TransitionClassifier
	MinProbability float64
}

// NewAssignmentSolver builds a solver scoring transitions by distance.
func NewAssignmentSolver(cfg *config.ResolverConfig) *AssignmentSolver {
	return &AssignmentSolver{
		Classifier:     DistanceClassifier{Parameter: cfg.GetTransitionParameter()},
		MinProbability: cfg.GetMinTransitionProbability(),
	}
}

// Solve implements Solver. Every request arc gets an entry in the arc
// flow map, zero when not selected.
func (s *AssignmentSolver) Solve(ctx context.Context, req *Request) (*Result, error) {
	classifier := req.Classifier
	if classifier == nil {
		classifier = s.Classifier
	}
	if classifier == nil {
		return nil, fmt.Errorf("assignment solver: no transition classifier")
	}

	nodes := make(map[int]Node, len(req.Nodes))
	res := &Result{
		NodeFlow: make(map[int]int, len(req.Nodes)),
		ArcFlow:  make(map[ArcKey]int, len(req.Arcs)),
	}
	for _, n := range req.Nodes {
		nodes[n.ID] = n
		res.NodeFlow[n.ID] = 1
	}

	bySource := make(map[int][]Arc)
	for _, a := range req.Arcs {
		src, ok := nodes[a.Src]
		if !ok {
			return nil, fmt.Errorf("arc %d -> %d: source: %w", a.Src, a.Dest, ErrUnknownNode)
		}
		if _, ok := nodes[a.Dest]; !ok {
			return nil, fmt.Errorf("arc %d -> %d: target: %w", a.Src, a.Dest, ErrUnknownNode)
		}
		res.ArcFlow[ArcKey{Src: a.Src, Dest: a.Dest}] = 0
		bySource[src.Key.Timestep] = append(bySource[src.Key.Timestep], a)
	}

	timesteps := make([]int, 0, len(bySource))
	for t := range bySource {
		timesteps = append(timesteps, t)
	}
	sort.Ints(timesteps)

	for _, t := range timesteps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		selected := s.matchTimestep(bySource[t], nodes, classifier)
		for _, a := range selected {
			res.ArcFlow[ArcKey{Src: a.Src, Dest: a.Dest}]++
		}
		monitoring.Debugf("flow: timestep %d: %d of %d arcs selected", t, len(selected), len(bySource[t]))
	}
	return res, nil
}

// matchTimestep assigns the objects leaving one timestep to their targets.
func (s *AssignmentSolver) matchTimestep(arcs []Arc, nodes map[int]Node, classifier TransitionClassifier) []Arc {
	var sources, targets []int
	seenSrc := make(map[int]bool)
	targetCol := make(map[int]int)
	for _, a := range arcs {
		if !seenSrc[a.Src] {
			seenSrc[a.Src] = true
			sources = append(sources, a.Src)
		}
		if _, ok := targetCol[a.Dest]; !ok {
			targetCol[a.Dest] = -1
			targets = append(targets, a.Dest)
		}
	}
	sort.Ints(sources)
	sort.Ints(targets)
	for j, id := range targets {
		targetCol[id] = j
	}

	// One row per object leaving a source.
	var slots []int
	for _, id := range sources {
		slots = append(slots, id)
		if nodes[id].Division {
			slots = append(slots, id)
		}
	}

	cost := make([][]float64, len(slots))
	for i := range cost {
		cost[i] = make([]float64, len(targets))
		for j := range cost[i] {
			cost[i][j] = forbidden
		}
	}
	for _, a := range arcs {
		c := Cost(classifier.Score(nodes[a.Src], nodes[a.Dest]), s.MinProbability)
		for i, id := range slots {
			if id == a.Src {
				cost[i][targetCol[a.Dest]] = c
			}
		}
	}

	var selected []Arc
	for i, j := range assign(cost) {
		if j >= 0 {
			selected = append(selected, Arc{Src: slots[i], Dest: targets[j]})
		}
	}
	return selected
}
