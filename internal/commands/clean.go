package commands

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/c-wilkinson/T4Toolbox/output"
	"github.com/c-wilkinson/T4Toolbox/reconcile"
)

// CleanCmd deletes every output recorded for a template
func CleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean <template>",
		Short: "Delete the recorded outputs of a template",
		Long: `Deletes every file recorded in the template's manifest, removes it from the
solution, prunes the folders left empty and clears the manifest. The primary output is left alone.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := openEnv(ctx, cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			input, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			deleted, err := e.clean(ctx, input, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if err := e.save(ctx); err != nil {
				return err
			}
			output.Success(fmt.Sprintf("%s: %d outputs removed", e.display(input), deleted))
			return nil
		},
	}
}

func (e *env) clean(ctx context.Context, input string, out io.Writer) (int, error) {
	engine := reconcile.New(e.sln.Workspace(), e.meta, nil, reconcile.Options{
		FS:     e.fs,
		DryRun: e.dryRun,
		Out:    out,
		Logger: e.log,
	})
	res, err := engine.Clean(ctx, input)
	if err != nil {
		return 0, err
	}
	for _, w := range res.Warnings {
		output.Warning(w)
	}
	return len(res.Deleted), nil
}
