package artifact

import (
	"sort"
)

// Well-known property keys. Setting one of these changes how the workspace
// treats the item, so they are stored in dedicated fields.
const (
	KeyItemType            = "ItemType"
	KeyCustomTool          = "CustomTool"
	KeyCustomToolNamespace = "CustomToolNamespace"
)

// Properties holds the workspace metadata of an artifact.
//
// The well-known keys live in their own fields; every other key is kept in
// an open map. Get, Set and Keys address both tiers by name.
type Properties struct {
	ItemType            string
	CustomTool          string
	CustomToolNamespace string

	extra map[string]string
}

// IsWellKnown reports whether key has a dedicated field.
func IsWellKnown(key string) bool {
	switch key {
	case KeyItemType, KeyCustomTool, KeyCustomToolNamespace:
		return true
	}
	return false
}

// Get returns the value stored under key and whether it is set.
// An empty well-known field counts as unset.
func (p *Properties) Get(key string) (string, bool) {
	switch key {
	case KeyItemType:
		return p.ItemType, p.ItemType != ""
	case KeyCustomTool:
		return p.CustomTool, p.CustomTool != ""
	case KeyCustomToolNamespace:
		return p.CustomToolNamespace, p.CustomToolNamespace != ""
	}
	v, ok := p.extra[key]
	return v, ok
}

// Set stores value under key.
func (p *Properties) Set(key, value string) {
	switch key {
	case KeyItemType:
		p.ItemType = value
	case KeyCustomTool:
		p.CustomTool = value
	case KeyCustomToolNamespace:
		p.CustomToolNamespace = value
	default:
		if p.extra == nil {
			p.extra = make(map[string]string)
		}
		p.extra[key] = value
	}
}

// Keys returns every set key, well-known keys first, the rest sorted.
func (p *Properties) Keys() []string {
	keys := make([]string, 0, 3+len(p.extra))
	for _, k := range []string{KeyItemType, KeyCustomTool, KeyCustomToolNamespace} {
		if _, ok := p.Get(k); ok {
			keys = append(keys, k)
		}
	}
	return append(keys, p.MetadataKeys()...)
}

// MetadataKeys returns the sorted keys of the open map only.
func (p *Properties) MetadataKeys() []string {
	keys := make([]string, 0, len(p.extra))
	for k := range p.extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Merge copies every key of other that p does not have yet.
func (p *Properties) Merge(other *Properties) {
	for _, k := range other.Keys() {
		if _, ok := p.Get(k); ok {
			continue
		}
		v, _ := other.Get(k)
		p.Set(k, v)
	}
}

func (p *Properties) clone() Properties {
	c := Properties{
		ItemType:            p.ItemType,
		CustomTool:          p.CustomTool,
		CustomToolNamespace: p.CustomToolNamespace,
	}
	for k, v := range p.extra {
		c.Set(k, v)
	}
	return c
}
