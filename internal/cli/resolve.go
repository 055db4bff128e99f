package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JaimeIvanCervantes/hytra/internal/db"
	"github.com/JaimeIvanCervantes/hytra/internal/fitting"
	"github.com/JaimeIvanCervantes/hytra/internal/flow"
	"github.com/JaimeIvanCervantes/hytra/internal/hypotheses"
	"github.com/JaimeIvanCervantes/hytra/internal/merger"
	"github.com/JaimeIvanCervantes/hytra/internal/monitor"
	"github.com/JaimeIvanCervantes/hytra/internal/storage/sqlite"
)

// ResolveOptions holds flags for the resolve command.
type ResolveOptions struct {
	Graph  string
	Coords string
	Out    string
	DB     string
	Plot   string
	Quiet  bool
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResolveOptions{}

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Split the mergers of a solved hypotheses graph",
		Long: `Load a hypotheses graph with its selected solution, split every merger
using the label frames in --coords (one <timestep>.json per frame), re-solve
the links around the split objects and write the refined graph to --out.

With --db the run and its merger report are recorded. With --plot the
resolved tracks are drawn to a PNG.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(rootOpts, opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Graph, "graph", "", "hypotheses graph JSON (required)")
	cmd.Flags().StringVar(&opts.Coords, "coords", "", "directory of per-timestep label frames (required)")
	cmd.Flags().StringVarP(&opts.Out, "out", "o", "", "output graph JSON (required)")
	cmd.Flags().StringVar(&opts.DB, "db", "", "record the run in this SQLite database")
	cmd.Flags().StringVar(&opts.Plot, "plot", "", "write a track plot PNG")
	cmd.Flags().BoolVarP(&opts.Quiet, "quiet", "q", false, "hide the progress bar")
	_ = cmd.MarkFlagRequired("graph")
	_ = cmd.MarkFlagRequired("coords")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}

func runResolve(rootOpts *RootOptions, opts *ResolveOptions, cmd *cobra.Command) error {
	cfg := rootOpts.ResolverConfig()
	out := cmd.OutOrStdout()

	hg, err := hypotheses.LoadGraphFile(opts.Graph)
	if err != nil {
		return err
	}

	engineOpts := merger.Options{
		Plugin: fitting.NewKMeansPlugin(cfg),
		Solver: flow.NewAssignmentSolver(cfg),
	}
	if !opts.Quiet {
		engineOpts.Progress = cmd.ErrOrStderr()
	}
	engine, err := merger.NewGraphResolver(hg, engineOpts)
	if err != nil {
		return fmt.Errorf("build resolver: %w", err)
	}

	report, err := engine.Run(cmd.Context(), merger.DirectoryProvider{Dir: opts.Coords})
	if err != nil {
		return fmt.Errorf("resolve: %w", err)
	}
	if err := hg.WriteGraphFile(opts.Out); err != nil {
		return err
	}
	fmt.Fprintf(out, "Resolved %d mergers in %d timesteps, wrote %s\n", report.Mergers(), len(report), opts.Out)
	fmt.Fprintf(out, "%d lineages\n", hg.ComputeLineage())

	plotPath := ""
	if opts.Plot != "" {
		n, err := monitor.PlotTracks(hg, opts.Plot)
		if err != nil {
			return err
		}
		if n > 0 {
			plotPath = opts.Plot
			fmt.Fprintf(out, "Plotted %d detections to %s\n", n, opts.Plot)
		}
	}

	if opts.DB == "" {
		return nil
	}
	database, err := db.Open(opts.DB)
	if err != nil {
		return err
	}
	defer database.Close()

	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	run := &sqlite.Run{
		GraphPath:  opts.Graph,
		PlotPath:   plotPath,
		ConfigJSON: cfgJSON,
	}
	if err := sqlite.NewRunStore(database.DB).Insert(run, report); err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	fmt.Fprintf(out, "Recorded run %s\n", run.RunID)
	return nil
}
