package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/c-wilkinson/T4Toolbox/manifest"
)

// ManifestCmd prints the outputs recorded for a template
func ManifestCmd() *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "manifest <template>",
		Short: "Print the outputs recorded for a template",
		Args:  cobra.ExactArgs(1),
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
			store := manifest.NewStore(e.meta)
			w := cmd.OutOrStdout()
			if raw {
				text, err := store.LoadRaw(ctx, input)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%q\n", text)
				return nil
			}
			entries, err := store.Load(ctx, input)
			if err != nil {
				return err
			}
			for _, entry := range entries {
				fmt.Fprintln(w, entry)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "Print the stored text quoted, separators included")

	return cmd
}
