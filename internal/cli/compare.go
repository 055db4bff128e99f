package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JaimeIvanCervantes/hytra/internal/evaluation"
	"github.com/JaimeIvanCervantes/hytra/internal/hypotheses"
)

// CompareOptions holds flags for the compare command.
type CompareOptions struct {
	MaxTimesteps int
	PerTimestep  bool
	JSON         bool
}

type compareOutput struct {
	Precision      float64 `json:"precision"`
	Recall         float64 `json:"recall"`
	FMeasure       float64 `json:"f_measure"`
	Matched        int     `json:"matched"`
	BaseOnly       int     `json:"base_only"`
	ContestantOnly int     `json:"contestant_only"`
}

// NewCompareCommand creates the compare command.
func NewCompareCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompareOptions{}

	cmd := &cobra.Command{
		Use:   "compare <base-graph> <contestant-graph>",
		Short: "Compare the selected links of two solved graphs",
		Long: `Compare the moves and divisions selected in a contestant graph against a
base graph, timestep by timestep, and print precision, recall and
F-measure of the contestant. Both graphs must hold the same detections.`,
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompare(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().IntVar(&opts.MaxTimesteps, "max-ts", 0, "compare only the first n timesteps (0 for all)")
	cmd.Flags().BoolVar(&opts.PerTimestep, "per-timestep", false, "print one line per timestep pair")
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "print the overall result as JSON")

	return cmd
}

func runCompare(opts *CompareOptions, basePath, contestantPath string, cmd *cobra.Command) error {
	out := cmd.OutOrStdout()

	base, err := hypotheses.LoadGraphFile(basePath)
	if err != nil {
		return fmt.Errorf("base: %w", err)
	}
	contestant, err := hypotheses.LoadGraphFile(contestantPath)
	if err != nil {
		return fmt.Errorf("contestant: %w", err)
	}

	perTimestep, overall, err := evaluation.Compare(base, contestant, opts.MaxTimesteps)
	if err != nil {
		return err
	}

	if opts.PerTimestep {
		for i, tx := range perTimestep {
			fmt.Fprintf(out, "%d %s\n", i, tx.Line())
		}
	}

	if opts.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(compareOutput{
			Precision:      overall.Precision(),
			Recall:         overall.Recall(),
			FMeasure:       overall.FMeasure(),
			Matched:        len(overall.Matched),
			BaseOnly:       len(overall.BaseOnly),
			ContestantOnly: len(overall.ContestantOnly),
		})
	}
	fmt.Fprintln(out, overall.String())
	return nil
}
