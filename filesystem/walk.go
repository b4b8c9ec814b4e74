package filesystem

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// DefaultIgnoreDirs are directories skipped during traversal
var DefaultIgnoreDirs = []string{
	"bin", "obj", "packages", "node_modules",
	".git", ".svn", ".hg", ".vs", ".idea", ".vscode",
}

// WalkOptions configures directory traversal behavior
type WalkOptions struct {
	IgnoreDirs []string // directory names to skip (default: DefaultIgnoreDirs)
	// IgnorePatterns skip files. A pattern with a '/' is matched against
	// the slash path relative to the root ("Legacy/*.tt"), any other
	// against the file name ("*.generated.tt").
	IgnorePatterns []string
	IncludeHidden  bool
}

// Walk traverses a directory tree on fs. The visitor is called for each
// file and directory that is not ignored. Return filepath.SkipDir from the
// visitor to skip a directory.
func Walk(fs afero.Fs, rootPath string, opts WalkOptions, visitor func(path string, info os.FileInfo) error) error {
	ignoreDirs := opts.IgnoreDirs
	if ignoreDirs == nil {
		ignoreDirs = DefaultIgnoreDirs
	}

	return afero.Walk(fs, rootPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		// Skip hidden files/directories unless explicitly included
		if !opts.IncludeHidden && strings.HasPrefix(info.Name(), ".") && path != rootPath {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if info.IsDir() {
			if path != rootPath {
				for _, ignore := range ignoreDirs {
					if strings.EqualFold(info.Name(), ignore) {
						return filepath.SkipDir
					}
				}
			}
		} else if ignored(opts.IgnorePatterns, rootPath, path) {
			return nil
		}

		return visitor(path, info)
	})
}

func ignored(patterns []string, root, path string) bool {
	var byName, byPath []string
	for _, p := range patterns {
		if strings.Contains(p, "/") {
			byPath = append(byPath, p)
		} else {
			byName = append(byName, p)
		}
	}
	if Match(byName, filepath.Base(path)) {
		return true
	}
	if len(byPath) == 0 {
		return false
	}
	rel, err := filepath.Rel(root, path)
	return err == nil && Match(byPath, filepath.ToSlash(rel))
}

// Match reports whether name matches any of the glob patterns, ignoring
// case.
func Match(patterns []string, name string) bool {
	lower := strings.ToLower(name)
	for _, pattern := range patterns {
		if matched, _ := filepath.Match(strings.ToLower(pattern), lower); matched {
			return true
		}
	}
	return false
}
