package host

// SolutionFile is the on-disk solution: a list of project files relative
// to the solution file.
type SolutionFile struct {
	Projects []string `yaml:"projects"`
}

// ProjectFile is the on-disk project document.
//
//	itemTypes: [Compile, Content, None]
//	references: [System.Data]
//	items:
//	  - path: Foo.tt
//	    metadata: {LastGenOutput: Foo.cs}
//	    items:
//	      - path: Foo.cs
//	  - path: Models
//	    folder: true
type ProjectFile struct {
	ItemTypes  []string    `yaml:"itemTypes"`
	References []string    `yaml:"references,omitempty"`
	Items      []*ItemFile `yaml:"items,omitempty"`
}

// ItemFile is a file or folder of a project. Path is relative to the
// project file's directory and uses forward slashes.
type ItemFile struct {
	Path                string            `yaml:"path"`
	Folder              bool              `yaml:"folder,omitempty"`
	ItemType            string            `yaml:"itemType,omitempty"`
	CustomTool          string            `yaml:"customTool,omitempty"`
	CustomToolNamespace string            `yaml:"customToolNamespace,omitempty"`
	Metadata            map[string]string `yaml:"metadata,omitempty"`
	Items               []*ItemFile       `yaml:"items,omitempty"`
}
