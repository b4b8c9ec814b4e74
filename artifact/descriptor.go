package artifact

import (
	"path/filepath"
	"sort"
	"strings"
)

// Descriptor is one output artifact of a generation run.
//
// File, Directory and Project are relative paths as written by the template
// author; they are resolved against the input file by the placement logic.
// The zero value is the default output.
type Descriptor struct {
	file      string
	Directory string // relative to the input file, or to Project when set
	Project   string // project file path, relative to the input file

	Encoding         string
	PreserveExisting bool
	Properties       Properties

	references map[string]string // key -> original spelling
	content    strings.Builder
}

// New creates a descriptor for the given file name. See SetFile.
func New(file string) *Descriptor {
	d := &Descriptor{}
	d.SetFile(file)
	return d
}

// File returns the file name component.
func (d *Descriptor) File() string {
	return d.file
}

// SetFile assigns the file name. When name has a directory part, that part
// is appended to Directory and only the base name is kept.
//
//	d := artifact.New("")
//	d.Directory = "Generated"
//	d.SetFile("Models/User.cs") // Directory "Generated/Models", File "User.cs"
func (d *Descriptor) SetFile(name string) {
	name = filepath.FromSlash(name)
	dir, base := filepath.Split(name)
	if dir != "" {
		d.Directory = filepath.Join(d.Directory, dir)
	}
	d.file = base
}

// Path returns Directory joined with File. The default output has an empty
// path.
func (d *Descriptor) Path() string {
	if d.file == "" {
		return ""
	}
	return filepath.Join(filepath.FromSlash(d.Directory), d.file)
}

// IsDefault reports whether d is the default output.
func (d *Descriptor) IsDefault() bool {
	return d.file == ""
}

// ItemType is shorthand for Properties.ItemType.
func (d *Descriptor) ItemType() string {
	return d.Properties.ItemType
}

// AddReference records an assembly or library the artifact needs from its
// project. Duplicates are ignored ignoring case.
func (d *Descriptor) AddReference(name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	if d.references == nil {
		d.references = make(map[string]string)
	}
	k := strings.ToLower(name)
	if _, ok := d.references[k]; !ok {
		d.references[k] = name
	}
}

// References returns the sorted reference list.
func (d *Descriptor) References() []string {
	refs := make([]string, 0, len(d.references))
	for _, name := range d.references {
		refs = append(refs, name)
	}
	sort.Slice(refs, func(i, j int) bool {
		return strings.ToLower(refs[i]) < strings.ToLower(refs[j])
	})
	return refs
}

// Append adds text to the content buffer.
func (d *Descriptor) Append(text string) {
	d.content.WriteString(text)
}

// Content returns the accumulated text.
func (d *Descriptor) Content() string {
	return d.content.String()
}

// Len returns the content length in bytes.
func (d *Descriptor) Len() int {
	return d.content.Len()
}

// Encode returns the content converted to the descriptor's encoding.
func (d *Descriptor) Encode() ([]byte, error) {
	return EncodeString(d.Encoding, d.content.String())
}

// Validate checks the rules that do not need a workspace.
func (d *Descriptor) Validate() error {
	if !d.IsDefault() {
		if _, err := ResolveEncoding(d.Encoding); err != nil {
			return NewValidationError(KindInvalidEncoding, d.Path(), "output %q: %v", d.Path(), err)
		}
		return nil
	}
	switch {
	case d.Directory != "":
		return NewValidationError(KindDefaultOutputMisuse, "",
			"Directory property cannot be set for the default output")
	case d.Project != "":
		return NewValidationError(KindDefaultOutputMisuse, "",
			"Project property cannot be set for the default output")
	case d.PreserveExisting:
		return NewValidationError(KindDefaultOutputMisuse, "",
			"PreserveExisting property cannot be set for the default output")
	}
	return nil
}

// Clone copies everything except content.
func (d *Descriptor) Clone() *Descriptor {
	c := &Descriptor{
		file:             d.file,
		Directory:        d.Directory,
		Project:          d.Project,
		Encoding:         d.Encoding,
		PreserveExisting: d.PreserveExisting,
		Properties:       d.Properties.clone(),
	}
	for k, v := range d.references {
		if c.references == nil {
			c.references = make(map[string]string, len(d.references))
		}
		c.references[k] = v
	}
	return c
}

// MergeReferences adds every reference of other to d.
func (d *Descriptor) MergeReferences(other *Descriptor) {
	for _, name := range other.references {
		d.AddReference(name)
	}
}

// Key normalizes a path for case-insensitive identity comparison.
func Key(path string) string {
	if path == "" {
		return ""
	}
	return strings.ToLower(filepath.Clean(path))
}
