package generator

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// Operation represents a file system operation that can be validated and executed.
//
// Validate checks if the operation would succeed without executing it.
//
// Execute performs the actual operation. This should only be called after Validate succeeds.
//
// Description returns a human-readable description for output (e.g., "Write Foo.cs (234 bytes)").
type Operation interface {
	Validate(ctx context.Context) error
	Execute(ctx context.Context) error
	Description() string
}

// WriteOp writes a whole file, creating parent directories.
type WriteOp struct {
	Fs      afero.Fs
	Path    string
	Content []byte      // may be empty, must not be nil
	Mode    fs.FileMode // defaults to 0644

	// Done runs after a successful write, e.g. to reload an open editor.
	Done func(path string)
}

func (op *WriteOp) Validate(ctx context.Context) error {
	if op.Content == nil {
		return fmt.Errorf("content is nil for file: %s", op.Path)
	}
	info, err := op.Fs.Stat(op.Path)
	if err == nil && info.IsDir() {
		return fmt.Errorf("cannot write %s: is a directory", op.Path)
	}
	return nil
}

func (op *WriteOp) Execute(ctx context.Context) error {
	dir := filepath.Dir(op.Path)
	if err := op.Fs.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("cannot create directory %s: %w", dir, err)
	}
	mode := op.Mode
	if mode == 0 {
		mode = 0644
	}
	if err := afero.WriteFile(op.Fs, op.Path, op.Content, mode); err != nil {
		return fmt.Errorf("write %s: %w", op.Path, err)
	}
	if op.Done != nil {
		op.Done(op.Path)
	}
	return nil
}

func (op *WriteOp) Description() string {
	return fmt.Sprintf("Write %s (%d bytes)", op.Path, len(op.Content))
}

// DeleteOp removes a file. A file that is already gone is not an error.
type DeleteOp struct {
	Fs   afero.Fs
	Path string
}

func (op *DeleteOp) Validate(ctx context.Context) error {
	info, err := op.Fs.Stat(op.Path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", op.Path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("cannot delete %s: is a directory", op.Path)
	}
	return nil
}

func (op *DeleteOp) Execute(ctx context.Context) error {
	if err := op.Fs.Remove(op.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete %s: %w", op.Path, err)
	}
	return nil
}

func (op *DeleteOp) Description() string {
	return fmt.Sprintf("Delete %s", op.Path)
}
