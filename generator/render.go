package generator

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"text/template"

	"github.com/spf13/afero"

	"github.com/c-wilkinson/T4Toolbox/artifact"
	"github.com/c-wilkinson/T4Toolbox/registry"
)

// Renderer parses templates once and renders them into a registry.
//
// Inline template text goes to the registry's default output. The output
// helpers build descriptors and emit routes a named sub-template to one:
//
//	{{emit (output "Foo.Designer.cs" | encoding "utf-8" | meta "AutoGen" "True") "designer" .}}
type Renderer struct {
	fs    afero.Fs
	cache map[string]*template.Template
	mu    sync.RWMutex // Protect cache for concurrent access
}

// NewRenderer creates a renderer reading template files from fs.
func NewRenderer(fs afero.Fs) *Renderer {
	return &Renderer{
		fs:    fs,
		cache: make(map[string]*template.Template),
	}
}

// RenderFile renders the template file at path into reg.
func (r *Renderer) RenderFile(path string, data any, reg *registry.Registry) error {
	r.mu.RLock()
	tmpl, ok := r.cache["file:"+path]
	r.mu.RUnlock()

	if !ok {
		text, err := afero.ReadFile(r.fs, path)
		if err != nil {
			return fmt.Errorf("failed to read template file '%s': %w", path, err)
		}
		tmpl, err = r.parse("file:"+path, path, string(text))
		if err != nil {
			return err
		}
	}
	return r.execute(tmpl, data, reg)
}

// RenderString renders template text into reg. The name is used for
// caching and error messages.
func (r *Renderer) RenderString(name, text string, data any, reg *registry.Registry) error {
	r.mu.RLock()
	tmpl, ok := r.cache["string:"+name]
	r.mu.RUnlock()

	if !ok {
		var err error
		tmpl, err = r.parse("string:"+name, name, text)
		if err != nil {
			return err
		}
	}
	return r.execute(tmpl, data, reg)
}

// ClearCache clears the template cache (useful for testing)
func (r *Renderer) ClearCache() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[string]*template.Template)
}

func (r *Renderer) parse(key, name, text string) (*template.Template, error) {
	tmpl, err := template.New(name).Funcs(funcMap(nil, nil)).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template '%s': %w", name, err)
	}
	r.mu.Lock()
	r.cache[key] = tmpl
	r.mu.Unlock()
	return tmpl, nil
}

// execute binds the registry-aware helpers to a private clone of the
// cached template and runs it.
func (r *Renderer) execute(cached *template.Template, data any, reg *registry.Registry) error {
	tmpl, err := cached.Clone()
	if err != nil {
		return fmt.Errorf("clone template '%s': %w", cached.Name(), err)
	}
	tmpl.Funcs(funcMap(tmpl, reg))

	w := &defaultWriter{reg: reg}
	if err := tmpl.Execute(w, data); err != nil {
		return fmt.Errorf("failed to render template '%s': %w", tmpl.Name(), err)
	}
	return w.err
}

// defaultWriter forwards inline template text to the default output.
type defaultWriter struct {
	reg *registry.Registry
	err error
}

func (w *defaultWriter) Write(p []byte) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	if err := w.reg.WriteDefault(string(p)); err != nil {
		w.err = err
		return 0, err
	}
	return len(p), nil
}

// funcMap returns the template helpers. With a nil registry the output
// helpers still build descriptors but emit fails; this variant is only
// used for parsing.
func funcMap(tmpl *template.Template, reg *registry.Registry) template.FuncMap {
	emitText := func(d *artifact.Descriptor, text string) (string, error) {
		if reg == nil {
			return "", fmt.Errorf("emit called outside of a render")
		}
		return "", reg.Write(d, text)
	}

	return template.FuncMap{
		// Case conversion
		"pascalCase": PascalCase,
		"camelCase":  CamelCase,
		"snakeCase":  SnakeCase,
		"identifier": Identifier,

		// String manipulation
		"quote":     Quote,
		"upper":     strings.ToUpper,
		"lower":     strings.ToLower,
		"trim":      strings.TrimSpace,
		"join":      strings.Join,
		"replace":   strings.ReplaceAll,
		"hasPrefix": strings.HasPrefix,
		"hasSuffix": strings.HasSuffix,
		"dict":      Dict,

		// Output descriptors
		"output": func(path string) *artifact.Descriptor { return artifact.New(path) },
		"encoding": func(name string, d *artifact.Descriptor) *artifact.Descriptor {
			d.Encoding = name
			return d
		},
		"directory": func(dir string, d *artifact.Descriptor) *artifact.Descriptor {
			d.Directory = filepath.Join(filepath.FromSlash(dir), d.Directory)
			return d
		},
		"project": func(path string, d *artifact.Descriptor) *artifact.Descriptor {
			d.Project = path
			return d
		},
		"itemType": func(t string, d *artifact.Descriptor) *artifact.Descriptor {
			d.Properties.ItemType = t
			return d
		},
		"customTool": func(tool string, d *artifact.Descriptor) *artifact.Descriptor {
			d.Properties.CustomTool = tool
			return d
		},
		"customToolNamespace": func(ns string, d *artifact.Descriptor) *artifact.Descriptor {
			d.Properties.CustomToolNamespace = ns
			return d
		},
		"meta": func(key, value string, d *artifact.Descriptor) *artifact.Descriptor {
			d.Properties.Set(key, value)
			return d
		},
		"reference": func(name string, d *artifact.Descriptor) *artifact.Descriptor {
			d.AddReference(name)
			return d
		},
		"preserve": func(d *artifact.Descriptor) *artifact.Descriptor {
			d.PreserveExisting = true
			return d
		},

		// Routing
		"emitText": emitText,
		"emit": func(d *artifact.Descriptor, name string, data any) (string, error) {
			if tmpl == nil {
				return "", fmt.Errorf("emit called outside of a render")
			}
			var buf bytes.Buffer
			if err := tmpl.ExecuteTemplate(&buf, name, data); err != nil {
				return "", err
			}
			return emitText(d, buf.String())
		},
		"configure": func(d *artifact.Descriptor) (string, error) {
			return emitText(d, "")
		},
	}
}
