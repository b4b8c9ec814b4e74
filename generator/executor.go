package generator

import (
	"context"
	"fmt"
	"io"
)

// ExecuteOptions configures execution behavior
type ExecuteOptions struct {
	DryRun bool
	Writer io.Writer // where to describe operations, nil for silence
}

// Execute validates every operation, then runs them in order. The first
// failure or a cancelled ctx stops execution; earlier operations are not
// undone.
func Execute(ctx context.Context, ops []Operation, opts ExecuteOptions) error {
	if opts.Writer == nil {
		opts.Writer = io.Discard
	}

	for _, op := range ops {
		if err := op.Validate(ctx); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
	}

	done := 0
	for _, op := range ops {
		if opts.DryRun {
			fmt.Fprintf(opts.Writer, "✓ [DRY RUN] %s\n", op.Description())
			continue
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("stopped after %d of %d operations: %w", done, len(ops), err)
		}
		if err := op.Execute(ctx); err != nil {
			return fmt.Errorf("%s: %w", op.Description(), err)
		}
		done++
		fmt.Fprintf(opts.Writer, "✓ %s\n", op.Description())
	}

	return nil
}
