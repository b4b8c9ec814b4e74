// Package registry collects the outputs of one generation run.
//
// Every write names an artifact by path. The first write creates the entry;
// later writes to the same path (ignoring case) must agree with it about
// encoding, item type, metadata and the preserve flag, and then extend its
// content. Text written to the default output is forwarded to the primary
// output stream instead of being buffered.
package registry

import (
	"fmt"
	"io"
	"sync"

	"github.com/c-wilkinson/T4Toolbox/artifact"
)

// Registry accumulates artifacts for a single run.
type Registry struct {
	mu      sync.Mutex
	byKey   map[string]*artifact.Descriptor
	order   []*artifact.Descriptor
	def     *artifact.Descriptor
	primary io.Writer

	// defSet is false until the first explicit write to the default output,
	// so the implicit entry does not pin its properties.
	defSet bool
}

// New creates a registry whose default output forwards to primary.
// A nil primary discards default text.
func New(primary io.Writer) *Registry {
	if primary == nil {
		primary = io.Discard
	}
	def := artifact.New("")
	return &Registry{
		byKey:   make(map[string]*artifact.Descriptor),
		order:   []*artifact.Descriptor{def},
		def:     def,
		primary: primary,
	}
}

// Write validates desc, merges it into the matching entry and appends text.
// desc itself is never retained.
func (r *Registry) Write(desc *artifact.Descriptor, text string) error {
	if err := desc.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, err := r.entryFor(desc)
	if err != nil {
		return err
	}

	if entry.IsDefault() {
		if _, err := io.WriteString(r.primary, text); err != nil {
			return fmt.Errorf("write default output: %w", err)
		}
		return nil
	}
	entry.Append(text)
	return nil
}

// WriteDefault forwards text to the primary output without touching the
// default entry's properties.
func (r *Registry) WriteDefault(text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := io.WriteString(r.primary, text); err != nil {
		return fmt.Errorf("write default output: %w", err)
	}
	return nil
}

func (r *Registry) entryFor(desc *artifact.Descriptor) (*artifact.Descriptor, error) {
	var existing *artifact.Descriptor
	if desc.IsDefault() {
		if !r.defSet {
			r.defSet = true
			r.def.Encoding = desc.Encoding
			r.def.Properties = desc.Clone().Properties
			r.def.MergeReferences(desc)
			return r.def, nil
		}
		existing = r.def
	} else {
		existing = r.byKey[artifact.Key(desc.Path())]
	}

	if existing == nil {
		entry := desc.Clone()
		r.byKey[artifact.Key(entry.Path())] = entry
		r.order = append(r.order, entry)
		return entry, nil
	}

	if err := checkConsistent(existing, desc); err != nil {
		return nil, err
	}
	existing.MergeReferences(desc)
	existing.Properties.Merge(&desc.Properties)
	return existing, nil
}

// checkConsistent compares desc with the entry established by earlier writes.
func checkConsistent(existing, desc *artifact.Descriptor) error {
	conflict := func(property, value, previous string) error {
		return &artifact.PropertyConflictError{
			Property: property,
			Value:    value,
			Previous: previous,
			Path:     existing.Path(),
		}
	}

	if artifact.CanonicalEncoding(desc.Encoding) != artifact.CanonicalEncoding(existing.Encoding) {
		return conflict("Encoding", artifact.CanonicalEncoding(desc.Encoding), artifact.CanonicalEncoding(existing.Encoding))
	}
	if desc.Properties.ItemType != existing.Properties.ItemType {
		return conflict(artifact.KeyItemType, desc.Properties.ItemType, existing.Properties.ItemType)
	}
	for _, key := range desc.Properties.Keys() {
		if key == artifact.KeyItemType {
			continue
		}
		value, _ := desc.Properties.Get(key)
		previous, ok := existing.Properties.Get(key)
		if ok && previous != value {
			return conflict(key, value, previous)
		}
	}
	if desc.PreserveExisting != existing.PreserveExisting {
		return conflict("PreserveExisting", fmt.Sprint(desc.PreserveExisting), fmt.Sprint(existing.PreserveExisting))
	}
	return nil
}

// Default returns the default output entry.
func (r *Registry) Default() *artifact.Descriptor {
	return r.def
}

// Get returns the entry for path, or nil.
func (r *Registry) Get(path string) *artifact.Descriptor {
	r.mu.Lock()
	defer r.mu.Unlock()
	if path == "" {
		return r.def
	}
	return r.byKey[artifact.Key(path)]
}

// Outputs returns every entry in first-write order, default first.
func (r *Registry) Outputs() []*artifact.Descriptor {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*artifact.Descriptor, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of entries including the default output.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

// Warnings lists named outputs that never received any content.
func (r *Registry) Warnings() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var warnings []string
	for _, d := range r.order {
		if !d.IsDefault() && d.Len() == 0 {
			warnings = append(warnings, fmt.Sprintf("output %q is empty", d.Path()))
		}
	}
	return warnings
}
