package cli

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/spf13/cobra"

	"github.com/JaimeIvanCervantes/hytra/internal/config"
	"github.com/JaimeIvanCervantes/hytra/internal/flow"
	"github.com/JaimeIvanCervantes/hytra/internal/hypotheses"
	"github.com/JaimeIvanCervantes/hytra/internal/merger"
)

// Traxel features read by export. A missing probability feature falls
// back to defaultStateProbabilities.
const (
	DetectionProbabilityFeature = "detProb"
	DivisionProbabilityFeature  = "divProb"
)

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	Graph     string
	Out       string
	Result    string
	Tracklets bool
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the optimization model of a hypotheses graph",
		Long: `Fill the cost tables of a hypotheses graph and write its optimization
model as JSON. Detection and division probabilities come from the traxel
features "detProb" and "divProb"; transition probabilities from the
distance between region centers.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(rootOpts, opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Graph, "graph", "", "hypotheses graph JSON (required)")
	cmd.Flags().StringVarP(&opts.Out, "out", "o", "", "output model JSON (required)")
	cmd.Flags().StringVar(&opts.Result, "result", "", "also write the selected solution as result JSON")
	cmd.Flags().BoolVar(&opts.Tracklets, "tracklets", false, "collapse non-branching chains into tracklets first")
	_ = cmd.MarkFlagRequired("graph")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}

func runExport(rootOpts *RootOptions, opts *ExportOptions, cmd *cobra.Command) error {
	cfg := rootOpts.ResolverConfig()

	hg, err := hypotheses.LoadGraphFile(opts.Graph)
	if err != nil {
		return err
	}
	if opts.Tracklets {
		hg = hg.GenerateTrackletGraph()
	}

	numStates := cfg.GetNumStates()
	if err := hg.InsertEnergies(
		numStates,
		featureProbabilities(DetectionProbabilityFeature, numStates),
		transitionProbabilities(cfg),
		func(*hypotheses.Traxel) float64 { return cfg.GetBoundaryCost() },
		divisionProbabilities(numStates),
	); err != nil {
		return fmt.Errorf("insert energies: %w", err)
	}

	model := hg.ToTrackingGraph(false)
	if err := writeJSON(opts.Out, model); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote model with %d segmentation and %d linking hypotheses to %s\n",
		len(model.SegmentationHypotheses), len(model.LinkingHypotheses), opts.Out)

	if opts.Result != "" {
		if err := writeJSON(opts.Result, hg.SolutionDictionary()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote result to %s\n", opts.Result)
	}
	return nil
}

// defaultStateProbabilities puts most of the mass on a single object.
func defaultStateProbabilities(numStates int) []float64 {
	probs := make([]float64, numStates+1)
	probs[1] = 0.8
	rest := 0.2 / float64(numStates)
	for s := range probs {
		if s != 1 {
			probs[s] = rest
		}
	}
	return probs
}

func featureProbabilities(feature string, numStates int) hypotheses.ProbabilityFunc {
	return func(tr *hypotheses.Traxel) []float64 {
		if v, ok := tr.Feature(feature); ok {
			return v
		}
		return defaultStateProbabilities(numStates)
	}
}

// divisionProbabilities repeats the dividing probability of the traxel for
// every state above 0. Traxels without a division feature get 0.5.
func divisionProbabilities(numStates int) hypotheses.ProbabilityFunc {
	return func(tr *hypotheses.Traxel) []float64 {
		pNot, pDiv := 0.5, 0.5
		if v, ok := tr.Feature(DivisionProbabilityFeature); ok && len(v) >= 2 {
			pNot, pDiv = v[0], v[1]
		}
		probs := make([]float64, numStates+1)
		probs[0] = pNot
		for s := 1; s <= numStates; s++ {
			probs[s] = pDiv
		}
		return probs
	}
}

// transitionProbabilities scores a link by the distance of the region
// centers; state 0 gets the complement. Traxels without centers get 0.5.
func transitionProbabilities(cfg *config.ResolverConfig) hypotheses.TransitionProbabilityFunc {
	classifier := flow.DistanceClassifier{Parameter: cfg.GetTransitionParameter()}
	minP := cfg.GetMinTransitionProbability()
	numStates := cfg.GetNumStates()

	return func(a, b *hypotheses.Traxel) []float64 {
		p := 0.5
		ca, okA := a.Feature(merger.RegionCenterFeature)
		cb, okB := b.Feature(merger.RegionCenterFeature)
		if okA && okB && len(ca) == len(cb) {
			p = classifier.Score(flow.Node{Center: ca}, flow.Node{Center: cb})
		}
		p = math.Min(math.Max(p, minP), 1-minP)

		probs := make([]float64, numStates+1)
		probs[0] = 1 - p
		for s := 1; s <= numStates; s++ {
			probs[s] = p
		}
		return probs
	}
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
