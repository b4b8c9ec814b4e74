package checkout

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/afero"
)

// FileCheckout treats read-only files as checked in. Checking them out
// makes them writable for the owner once the strategy approves.
type FileCheckout struct {
	fs       afero.Fs
	strategy Strategy
}

// NewFileCheckout creates a checkout over fs.
func NewFileCheckout(fs afero.Fs, strategy Strategy) *FileCheckout {
	return &FileCheckout{fs: fs, strategy: strategy}
}

// RequestEdit asks the strategy about the files that are read-only and
// unlocks them. Files that do not exist yet or are already writable need
// no checkout.
func (c *FileCheckout) RequestEdit(ctx context.Context, paths []string) (Outcome, error) {
	locked, err := c.Locked(paths)
	if err != nil {
		return Failed, err
	}
	if len(locked) == 0 {
		return OK, nil
	}

	approved, err := c.strategy.Approve(ctx, locked)
	if err != nil {
		return Failed, fmt.Errorf("checkout prompt: %w", err)
	}
	if !approved {
		return Cancelled, nil
	}

	for _, path := range locked {
		info, err := c.fs.Stat(path)
		if err != nil {
			return Failed, fmt.Errorf("check out %s: %w", path, err)
		}
		if err := c.fs.Chmod(path, info.Mode().Perm()|0200); err != nil {
			return Failed, fmt.Errorf("check out %s: %w", path, err)
		}
	}
	return OK, nil
}

// Locked returns the paths that exist and are not writable by the owner.
func (c *FileCheckout) Locked(paths []string) ([]string, error) {
	var locked []string
	for _, path := range paths {
		info, err := c.fs.Stat(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}
		if info.Mode().Perm()&0200 == 0 {
			locked = append(locked, path)
		}
	}
	return locked, nil
}
