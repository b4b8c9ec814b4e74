package host

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// DefaultCacheSize is the number of parsed project documents kept.
const DefaultCacheSize = 64

type cachedProject struct {
	modTime time.Time
	size    int64
	doc     *ProjectFile
}

// Loader reads and writes solution and project documents. Parsed projects
// are cached until their file changes.
type Loader struct {
	fs    afero.Fs
	cache *lru.Cache[string, cachedProject]
}

// NewLoader creates a loader caching up to size projects.
func NewLoader(fs afero.Fs, size int) (*Loader, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, cachedProject](size)
	if err != nil {
		return nil, fmt.Errorf("create project cache: %w", err)
	}
	return &Loader{fs: fs, cache: cache}, nil
}

// Solution parses a solution file.
func (l *Loader) Solution(path string) (*SolutionFile, error) {
	data, err := afero.ReadFile(l.fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read solution: %w", err)
	}
	var sln SolutionFile
	if err := yaml.Unmarshal(data, &sln); err != nil {
		return nil, fmt.Errorf("failed to parse solution %s: %w", path, err)
	}
	return &sln, nil
}

// Project parses a project file. The returned document is shared with the
// cache and must not be modified.
func (l *Loader) Project(path string) (*ProjectFile, error) {
	info, err := l.fs.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read project: %w", err)
	}
	key := cacheKey(path)
	if c, ok := l.cache.Get(key); ok && c.modTime.Equal(info.ModTime()) && c.size == info.Size() {
		return c.doc, nil
	}

	data, err := afero.ReadFile(l.fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read project: %w", err)
	}
	var doc ProjectFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse project %s: %w", path, err)
	}
	l.cache.Add(key, cachedProject{modTime: info.ModTime(), size: info.Size(), doc: &doc})
	return &doc, nil
}

// StoreProject writes a project file and refreshes the cache.
func (l *Loader) StoreProject(path string, doc *ProjectFile) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode project %s: %w", path, err)
	}
	if err := afero.WriteFile(l.fs, path, data, 0644); err != nil {
		return fmt.Errorf("failed to write project %s: %w", path, err)
	}
	info, err := l.fs.Stat(path)
	if err != nil {
		l.cache.Remove(cacheKey(path))
		return nil
	}
	l.cache.Add(cacheKey(path), cachedProject{modTime: info.ModTime(), size: info.Size(), doc: doc})
	return nil
}

// Cached reports whether a project document is cached.
func (l *Loader) Cached(path string) bool {
	return l.cache.Contains(cacheKey(path))
}

func cacheKey(path string) string {
	return strings.ToLower(filepath.Clean(path))
}
