package commands

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/c-wilkinson/T4Toolbox/artifact"
	"github.com/c-wilkinson/T4Toolbox/generator"
	"github.com/c-wilkinson/T4Toolbox/manifest"
	"github.com/c-wilkinson/T4Toolbox/registry"
)

// Output states printed by status.
const (
	stateStale     = "stale"
	stateNew       = "new"
	stateChanged   = "changed"
	stateUnchanged = "unchanged"
	statePreserved = "preserved"
)

// outputStatus is one line of the status report.
type outputStatus struct {
	State string
	Path  string
}

// StatusCmd shows the recorded outputs of a template and what a run would do
func StatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <template>",
		Short: "Show the outputs of a template and which are stale",
		Long: `Renders the template without writing anything and compares the result with
the outputs recorded by the previous run.

States:
  stale      recorded but no longer produced; the next run deletes it
  new        produced but not on disk yet
  changed    produced with different content
  unchanged  produced with identical content
  preserved  produced but never overwritten`,
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
			statuses, err := e.status(ctx, input)
			if err != nil {
				return err
			}
			printStatus(cmd.OutOrStdout(), e.display(input), statuses)
			return nil
		},
	}
}

func (e *env) status(ctx context.Context, input string) ([]outputStatus, error) {
	reg := registry.New(&bytes.Buffer{})
	if err := generator.NewRenderer(e.fs).RenderFile(input, e.templateData(ctx, input), reg); err != nil {
		return nil, err
	}
	plan, err := e.plan(ctx, input, reg.Outputs())
	if err != nil {
		return nil, err
	}
	recorded, err := manifest.NewStore(e.meta).Load(ctx, input)
	if err != nil {
		return nil, err
	}

	produced := make(map[string]bool, len(plan))
	var statuses []outputStatus
	for _, p := range plan {
		produced[artifact.Key(p.path)] = true
		statuses = append(statuses, outputStatus{State: e.compare(p), Path: e.display(p.path)})
	}

	for _, entry := range recorded {
		abs := manifest.Absolute(input, entry)
		if produced[artifact.Key(abs)] {
			continue
		}
		statuses = append(statuses, outputStatus{State: stateStale, Path: e.display(abs)})
	}
	return statuses, nil
}

func (e *env) compare(p planned) string {
	existing, err := afero.ReadFile(e.fs, p.path)
	switch {
	case err != nil:
		return stateNew
	case p.preserve:
		return statePreserved
	case bytes.Equal(existing, p.content):
		return stateUnchanged
	default:
		return stateChanged
	}
}

func printStatus(w io.Writer, input string, statuses []outputStatus) {
	fmt.Fprintf(w, "%s\n", input)
	if len(statuses) == 0 {
		fmt.Fprintln(w, "  no outputs")
		return
	}
	for _, s := range statuses {
		fmt.Fprintf(w, "  %-10s %s\n", s.State, s.Path)
	}
}
