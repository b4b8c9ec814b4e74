package commands

import (
	"github.com/spf13/cobra"

	"github.com/c-wilkinson/T4Toolbox/logger"
	"github.com/c-wilkinson/T4Toolbox/output"
)

// Version is the t4out release, set at build time.
var Version = "dev"

// RootCmd creates and returns the root command for the t4out CLI
func RootCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "t4out",
		Short: "Manage the outputs of multi-file code generation",
		Long: `t4out renders templates that emit several named output files and keeps
the solution in sync with them.

Each run:
• Deletes outputs the template no longer produces
• Writes only the files whose content changed
• Adds new outputs to the right project and folder
• Records the outputs so the next run can clean up after it`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			output.SetVerbose(verbose)
			if verbose {
				logger.Default().SetLevel(logger.LevelDebug)
			}
		},
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output for debugging")
	cmd.PersistentFlags().StringP("config", "c", "", "Path to the configuration file (default ./"+configFileName+")")
	cmd.PersistentFlags().Bool("dry-run", false, "Show what would change without touching any file")
	cmd.PersistentFlags().Bool("diff", false, "Print a diff of every changed file (with --dry-run)")

	return cmd
}
