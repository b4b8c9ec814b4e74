package filesystem

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/afero"
)

// DefaultTemplatePatterns match the template files t4out renders.
var DefaultTemplatePatterns = []string{"*.tt", "*.tmpl"}

// TemplateOptions configures template discovery
type TemplateOptions struct {
	Patterns []string // default: DefaultTemplatePatterns
	Ignore   []string // file patterns to skip
	Walk     WalkOptions
}

// FindTemplates returns the sorted paths of template files below root.
func FindTemplates(fs afero.Fs, root string, opts TemplateOptions) ([]string, error) {
	patterns := opts.Patterns
	if len(patterns) == 0 {
		patterns = DefaultTemplatePatterns
	}
	walkOpts := opts.Walk
	walkOpts.IgnorePatterns = append(append([]string(nil), walkOpts.IgnorePatterns...), opts.Ignore...)

	var templates []string
	err := Walk(fs, root, walkOpts, func(path string, info os.FileInfo) error {
		if !info.IsDir() && Match(patterns, info.Name()) {
			templates = append(templates, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find templates in %s: %w", root, err)
	}
	sort.Strings(templates)
	return templates, nil
}
