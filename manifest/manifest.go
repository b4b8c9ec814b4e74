// Package manifest persists the list of outputs produced by the previous
// run of a template, so the next run can find outputs it no longer
// produces.
//
// The list lives in a single metadata field of the input item. Paths are
// relative to the input file's directory and separated by CRLF. A list with
// more than one entry is wrapped in a leading and trailing separator, which
// keeps it on its own lines in project files:
//
//	""                           no outputs
//	"Foo.Designer.cs"            one output
//	"\r\nA.cs\r\nB.cs\r\n"       two outputs
package manifest

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Field is the metadata key holding the manifest.
const Field = "LastOutputs"

// Separator joins manifest entries.
const Separator = "\r\n"

// Metadata reads and writes item metadata by absolute item path.
type Metadata interface {
	Get(ctx context.Context, itemPath, key string) (string, error)
	Set(ctx context.Context, itemPath, key, value string) error
}

// Store loads and saves manifests.
type Store struct {
	meta Metadata
}

// NewStore creates a store backed by meta.
func NewStore(meta Metadata) *Store {
	return &Store{meta: meta}
}

// Load returns the relative paths recorded for inputPath. A missing
// manifest yields an empty list.
func (s *Store) Load(ctx context.Context, inputPath string) ([]string, error) {
	text, err := s.meta.Get(ctx, inputPath, Field)
	if err != nil {
		return nil, fmt.Errorf("read manifest of %s: %w", inputPath, err)
	}
	return Decode(text), nil
}

// LoadRaw returns the stored text unchanged.
func (s *Store) LoadRaw(ctx context.Context, inputPath string) (string, error) {
	text, err := s.meta.Get(ctx, inputPath, Field)
	if err != nil {
		return "", fmt.Errorf("read manifest of %s: %w", inputPath, err)
	}
	return text, nil
}

// Save records paths for inputPath. Paths are stored in the given order;
// callers sort them first.
func (s *Store) Save(ctx context.Context, inputPath string, paths []string) error {
	if err := s.meta.Set(ctx, inputPath, Field, Encode(paths)); err != nil {
		return fmt.Errorf("write manifest of %s: %w", inputPath, err)
	}
	return nil
}

// Encode renders paths in the stored format.
func Encode(paths []string) string {
	switch len(paths) {
	case 0:
		return ""
	case 1:
		return paths[0]
	default:
		return Separator + strings.Join(paths, Separator) + Separator
	}
}

// Decode parses the stored format. Blank lines are ignored and both CRLF
// and LF separators are accepted.
func Decode(text string) []string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	paths := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			paths = append(paths, line)
		}
	}
	return paths
}

// Sort orders paths case-insensitively, the way they are saved.
func Sort(paths []string) {
	sort.SliceStable(paths, func(i, j int) bool {
		a, b := strings.ToLower(paths[i]), strings.ToLower(paths[j])
		if a == b {
			return paths[i] < paths[j]
		}
		return a < b
	})
}

// Relative converts an absolute output path to the form stored in the
// manifest of inputPath.
func Relative(inputPath, outputPath string) (string, error) {
	rel, err := filepath.Rel(filepath.Dir(inputPath), outputPath)
	if err != nil {
		return "", fmt.Errorf("relative path of %s: %w", outputPath, err)
	}
	return rel, nil
}

// Absolute resolves a manifest entry of inputPath.
func Absolute(inputPath, entry string) string {
	entry = filepath.FromSlash(entry)
	if filepath.IsAbs(entry) {
		return filepath.Clean(entry)
	}
	return filepath.Join(filepath.Dir(inputPath), entry)
}
