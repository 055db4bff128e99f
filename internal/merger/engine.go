// Package merger resolves merger detections in a solved tracking result.
//
// A merger is a detection the solver assigned more than one object to. The
// Engine extracts the mergers and their direct neighbors into an unresolved
// graph, fits every merger's pixel region into the right number of objects
// one timestep at a time, re-solves the flow over the split sub-graph and
// folds the outcome back into the optimization model and result.
//
// Timesteps must be fitted in increasing order: the fits recorded at t are
// the initializations of t+1.
package merger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/JaimeIvanCervantes/hytra/internal/digraph"
	"github.com/JaimeIvanCervantes/hytra/internal/fitting"
	"github.com/JaimeIvanCervantes/hytra/internal/flow"
	"github.com/JaimeIvanCervantes/hytra/internal/jsongraph"
	"github.com/JaimeIvanCervantes/hytra/internal/monitoring"
)

var (
	// ErrFitCountMismatch is returned when the fitting plugin does not
	// return exactly the requested number of fits.
	ErrFitCountMismatch = errors.New("fit count does not match merger count")
	// ErrMissingFit is returned when a node reaches feature synthesis
	// without fits, usually because its frame was never provided.
	ErrMissingFit = errors.New("node has no fits")
	// ErrMergerDivision is returned for a merger that divides.
	ErrMergerDivision = errors.New("merger cannot divide")
	// ErrTimestepOrder is returned when timesteps are not fitted in
	// increasing order.
	ErrTimestepOrder = errors.New("timesteps must be fitted in increasing order")
	// ErrUnknownTimestep is returned for a timestep without detections.
	ErrUnknownTimestep = errors.New("timestep not in result")
	// ErrFinished is returned when an engine is used after Finish.
	ErrFinished = errors.New("merger resolution already finished")
)

// RegionCenterFeature is the feature name of the spatial center
// synthesized for new objects.
const RegionCenterFeature = "RegionCenter"

// Report maps timestep -> original merger id -> ids of the objects it was
// split into.
type Report map[int]map[int][]int

// FilterBuilder derives the keep predicates of model/result refinement
// from the merger table.
type FilterBuilder func(mergers jsongraph.MergersPerTimestep, mp *jsongraph.Mappings) (jsongraph.NodeFilter, jsongraph.LinkFilter)

// AfterRefineFunc runs once the refined model and result are in place.
type AfterRefineFunc func(ctx context.Context, e *Engine, flows *flow.Result) error

// Policy customizes an Engine.
type Policy struct {
	// Filters defaults to MergerFilters.
	Filters FilterBuilder
	// AfterRefine is optional.
	AfterRefine AfterRefineFunc
}

// Options configures NewEngine.
type Options struct {
	Plugin fitting.Plugin
	Solver flow.Solver
	// Classifier scores transitions in the re-solve. Nil keeps the
	// solver's default.
	Classifier flow.TransitionClassifier
	Policy     Policy
	// Progress receives the progress bar of Run. Nil disables it.
	Progress io.Writer
}

// Engine runs one merger resolution.
type Engine struct {
	model    *jsongraph.Model
	result   *jsongraph.Result
	mappings *jsongraph.Mappings

	mergers    jsongraph.MergersPerTimestep
	detections jsongraph.DetectionsPerTimestep

	unresolved *digraph.Graph[*UnresolvedNode, struct{}]
	resolved   *digraph.Graph[*ResolvedNode, struct{}]

	plugin     fitting.Plugin
	solver     flow.Solver
	classifier flow.TransitionClassifier
	policy     Policy
	progress   io.Writer

	lastTimestep int
	fittedAny    bool
	finished     bool
}

// NewEngine extracts the unresolved graph of a solved model.
func NewEngine(model *jsongraph.Model, result *jsongraph.Result, opts Options) (*Engine, error) {
	if opts.Plugin == nil {
		return nil, errors.New("merger: no fitting plugin")
	}
	if opts.Solver == nil {
		return nil, errors.New("merger: no flow solver")
	}
	mp, err := jsongraph.NewMappings(model)
	if err != nil {
		return nil, fmt.Errorf("merger: %w", err)
	}
	if err := mp.CheckModel(model); err != nil {
		return nil, fmt.Errorf("merger: %w", err)
	}
	e := &Engine{
		model:      model,
		result:     result,
		mappings:   mp,
		plugin:     opts.Plugin,
		solver:     opts.Solver,
		classifier: opts.Classifier,
		policy:     opts.Policy,
		progress:   opts.Progress,
	}
	if e.policy.Filters == nil {
		e.policy.Filters = MergerFilters
	}
	if err := e.extract(); err != nil {
		return nil, fmt.Errorf("merger: %w", err)
	}
	monitoring.Debugf("merger: %d unresolved nodes, %d merger links", e.unresolved.NumNodes(), e.unresolved.NumEdges())
	return e, nil
}

// Model returns the current model, refined once Finish succeeded.
func (e *Engine) Model() *jsongraph.Model { return e.model }

// Result returns the current result, refined once Finish succeeded.
func (e *Engine) Result() *jsongraph.Result { return e.result }

// Mergers returns the merger table of the input result.
func (e *Engine) Mergers() jsongraph.MergersPerTimestep { return e.mergers }

// Unresolved returns the graph of mergers and their neighbors.
func (e *Engine) Unresolved() *digraph.Graph[*UnresolvedNode, struct{}] { return e.unresolved }

// Resolved returns the post-split graph.
func (e *Engine) Resolved() *digraph.Graph[*ResolvedNode, struct{}] { return e.resolved }

// FitTimesteps returns, in increasing order, the timesteps holding
// unresolved nodes. Only these need coordinates.
func (e *Engine) FitTimesteps() []int {
	seen := make(map[int]bool)
	var out []int
	for _, k := range e.unresolved.Keys() {
		if !seen[k.Timestep] {
			seen[k.Timestep] = true
			out = append(out, k.Timestep)
		}
	}
	return out
}

// FirstFreeID returns an id above every traxel id of the model.
func (e *Engine) FirstFreeID() int {
	maxID := -1
	for _, ids := range e.mappings.TraxelToUUID {
		for id := range ids {
			if id > maxID {
				maxID = id
			}
		}
	}
	return maxID + 1
}

// Run fits every timestep with coordinates from provider, then finishes
// the resolution and returns its report.
func (e *Engine) Run(ctx context.Context, provider CoordinateProvider) (Report, error) {
	ids := NewIDCounter(e.FirstFreeID())
	timesteps := e.FitTimesteps()
	bar := monitoring.NewProgressBar(e.progress, 0, len(timesteps))

	for _, t := range timesteps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		coords, err := provider.Coordinates(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("coordinates of timestep %d: %w", t, err)
		}
		if err := e.FitTimestep(coords, t, ids); err != nil {
			return nil, err
		}
		bar.Show(1)
	}

	if err := e.Finish(ctx); err != nil {
		return nil, err
	}
	report := e.Report()
	monitoring.Logf("merger: resolved %d mergers over %d timesteps", report.Mergers(), len(timesteps))
	return report, nil
}

// Finish synthesizes the features of the split objects, re-solves the
// flow over the resolved graph and refines the model and result.
func (e *Engine) Finish(ctx context.Context) error {
	if e.finished {
		return ErrFinished
	}
	centers, err := e.objectCenters()
	if err != nil {
		return fmt.Errorf("merger: %w", err)
	}
	if err := e.assignOptimizerIDs(); err != nil {
		return fmt.Errorf("merger: %w", err)
	}

	req := e.flowRequest(centers)
	flows, err := e.solver.Solve(ctx, req)
	if err != nil {
		return fmt.Errorf("merger: flow re-solve: %w", err)
	}

	keepNode, keepLink := e.policy.Filters(e.mergers, e.mappings)
	model := e.refineModel(keepNode, keepLink)
	result, err := e.refineResult(flows, keepNode, keepLink)
	if err != nil {
		return fmt.Errorf("merger: refine result: %w", err)
	}
	e.model, e.result = model, result
	e.finished = true

	if hook := e.policy.AfterRefine; hook != nil {
		if err := hook(ctx, e, flows); err != nil {
			return fmt.Errorf("merger: after refine: %w", err)
		}
	}
	return nil
}

// Report lists every merger that was split into at least two objects.
func (e *Engine) Report() Report {
	report := make(Report)
	for _, k := range e.unresolved.Keys() {
		n, _ := e.unresolved.Node(k)
		if len(n.NewIDs) < 2 {
			continue
		}
		if report[k.Timestep] == nil {
			report[k.Timestep] = make(map[int][]int)
		}
		report[k.Timestep][k.ID] = append([]int(nil), n.NewIDs...)
	}
	return report
}

// Mergers counts the mergers in the report.
func (r Report) Mergers() int {
	n := 0
	for _, ids := range r {
		n += len(ids)
	}
	return n
}

// Timesteps returns the report's timesteps in increasing order.
func (r Report) Timesteps() []int {
	out := make([]int, 0, len(r))
	for t := range r {
		out = append(out, t)
	}
	sort.Ints(out)
	return out
}
