package cli

import (
	"fmt"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/JaimeIvanCervantes/hytra/internal/db"
	"github.com/JaimeIvanCervantes/hytra/internal/storage/sqlite"
)

// RunsOptions holds flags for the runs command.
type RunsOptions struct {
	DB     string
	Show   string
	Delete string
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded resolution runs",
		Long: `List the resolution runs recorded with "resolve --db", newest first.
--show prints the merger report of one run, --delete removes a run.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DB, "db", "", "SQLite database (required)")
	cmd.Flags().StringVar(&opts.Show, "show", "", "print the merger report of this run")
	cmd.Flags().StringVar(&opts.Delete, "delete", "", "delete this run")
	cmd.MarkFlagsMutuallyExclusive("show", "delete")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runRuns(opts *RunsOptions, cmd *cobra.Command) error {
	out := cmd.OutOrStdout()

	database, err := db.Open(opts.DB)
	if err != nil {
		return err
	}
	defer database.Close()
	store := sqlite.NewRunStore(database.DB)

	switch {
	case opts.Delete != "":
		if err := store.Delete(opts.Delete); err != nil {
			return err
		}
		fmt.Fprintf(out, "Deleted run %s\n", opts.Delete)
		return nil

	case opts.Show != "":
		report, err := store.Report(opts.Show)
		if err != nil {
			return err
		}
		for _, t := range report.Timesteps() {
			ids := make([]int, 0, len(report[t]))
			for id := range report[t] {
				ids = append(ids, id)
			}
			sort.Ints(ids)
			for _, id := range ids {
				fmt.Fprintf(out, "t=%d merger=%d -> %v\n", t, id, report[t][id])
			}
		}
		return nil
	}

	runs, err := store.List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN ID\tCREATED\tMERGERS\tNEW OBJECTS\tTIMESTEPS\tGRAPH")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\n",
			r.RunID,
			time.Unix(0, r.CreatedAt).UTC().Format(time.RFC3339),
			r.MergerCount, r.NewObjectCount, r.TimestepCount, r.GraphPath)
	}
	return tw.Flush()
}
