// Package cli implements the hytra command line.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JaimeIvanCervantes/hytra/internal/config"
	"github.com/JaimeIvanCervantes/hytra/internal/monitoring"
	"github.com/JaimeIvanCervantes/hytra/internal/version"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Config  string // path to a resolver config JSON, defaults when empty

	cfg *config.ResolverConfig
}

// ResolverConfig returns the config loaded for the running command.
func (o *RootOptions) ResolverConfig() *config.ResolverConfig {
	if o.cfg == nil {
		return config.DefaultResolverConfig()
	}
	return o.cfg
}

// NewRootCommand creates the root command for the hytra CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:     "hytra",
		Version: version.String(),
		Short:   "hytra - merger resolution for cell tracking",
		Long: `Resolve mergers in a solved tracking hypotheses graph.

A merger is a detection the tracking solution explains with more than one
object. hytra splits each merger into its objects, re-solves the links
around them and writes the refined solution back.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.DefaultResolverConfig()
			if opts.Config != "" {
				loaded, err := config.LoadResolverConfig(opts.Config)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				cfg = loaded
			}
			opts.cfg = cfg
			monitoring.SetVerbose(opts.Verbose || cfg.GetVerbose())
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "resolver config JSON file")

	cmd.AddCommand(NewResolveCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewCompareCommand(opts))
	cmd.AddCommand(NewRunsCommand(opts))

	return cmd
}
