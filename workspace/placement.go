package workspace

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/c-wilkinson/T4Toolbox/artifact"
)

// Placement is the resolved destination of one output.
type Placement struct {
	Output *artifact.Descriptor
	Path   string // absolute path of the output file

	// Project receives the output's references and validates its item type.
	// It is nil when the input file is not part of any project.
	Project *Node
	// Container is the node the output joins, before descending RelDir.
	Container Node
	// RelDir is the folder chain below Container, empty for none.
	RelDir string
	// Directory is true for outputs placed with Project or Directory; they
	// must stay inside Project's directory.
	Directory bool
}

// Placer resolves output destinations for one input file. It holds the
// solution-wide project map built when it was created.
type Placer struct {
	ws       Workspace
	projects ProjectMap

	inputPath string
	input     *Node // the input item, nil when not in the workspace
	current   *Node // project containing the input file
}

// NewPlacer builds the project map and locates the input file.
func NewPlacer(ctx context.Context, ws Workspace, inputPath string) (*Placer, error) {
	projects, err := BuildProjectMap(ctx, ws)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	input, err := ws.FindItem(ctx, inputPath)
	if err != nil {
		return nil, fmt.Errorf("find input %s: %w", inputPath, err)
	}
	current, err := ws.ProjectOf(ctx, inputPath)
	if err != nil {
		return nil, fmt.Errorf("find project of %s: %w", inputPath, err)
	}
	return &Placer{
		ws:        ws,
		projects:  projects,
		inputPath: inputPath,
		input:     input,
		current:   current,
	}, nil
}

// Projects returns the project map.
func (p *Placer) Projects() ProjectMap {
	return p.projects
}

// CurrentProject returns the project containing the input file, or nil.
func (p *Placer) CurrentProject() *Node {
	return p.current
}

// Resolve computes where d goes. defaultPath is the absolute path of the
// primary output, used for the default descriptor.
func (p *Placer) Resolve(d *artifact.Descriptor, defaultPath string) (*Placement, error) {
	inputDir := filepath.Dir(p.inputPath)
	pl := &Placement{Output: d}

	switch {
	case d.IsDefault():
		pl.Path = defaultPath
		pl.Project = p.current
		return p.inInputCollection(pl)

	case d.Project != "":
		projectPath := resolve(inputDir, d.Project)
		project, ok := p.projects.Lookup(projectPath)
		if !ok {
			return nil, artifact.NewValidationError(artifact.KindMissingTargetProject, d.Path(),
				"target project %q of output %q is not part of the solution", d.Project, d.Path())
		}
		pl.Path = filepath.Join(project.Dir(), filepath.FromSlash(d.Directory), d.File())
		pl.Project = &project
		pl.Container = project
		pl.Directory = true
		pl.RelDir = relDir(project.Dir(), pl.Path)
		return pl, nil

	case d.Directory != "":
		pl.Path = resolve(inputDir, d.Path())
		if p.current == nil {
			return nil, artifact.NewValidationError(artifact.KindMissingTargetProject, d.Path(),
				"output %q sets a directory but %s is not part of a project", d.Path(), filepath.Base(p.inputPath))
		}
		pl.Project = p.current
		pl.Container = *p.current
		pl.Directory = true
		pl.RelDir = relDir(p.current.Dir(), pl.Path)
		return pl, nil

	default:
		pl.Path = resolve(inputDir, d.File())
		pl.Project = p.current
		return p.inInputCollection(pl)
	}
}

// inInputCollection nests the output under the input item. When the input
// is not in the workspace the output joins the current project's folder
// chain instead.
func (p *Placer) inInputCollection(pl *Placement) (*Placement, error) {
	if p.input != nil {
		pl.Container = *p.input
		return pl, nil
	}
	if p.current != nil {
		pl.Container = *p.current
		pl.RelDir = relDir(p.current.Dir(), pl.Path)
		return pl, nil
	}
	// Not in any project: the file is written but never joins a container.
	return pl, nil
}

// HasContainer reports whether the placement can join the workspace.
func (pl *Placement) HasContainer() bool {
	return pl.Container.Kind != 0
}

// Validate checks pl against the workspace without changing anything.
func (p *Placer) Validate(ctx context.Context, pl *Placement) error {
	d := pl.Output
	if pl.Directory && pl.Project != nil && !within(pl.Project.Dir(), pl.Path) {
		return artifact.NewValidationError(artifact.KindOutsideProjectDirectory, d.Path(),
			"output %q resolves to %s, outside the directory of project %s",
			d.Path(), pl.Path, filepath.Base(pl.Project.Path))
	}

	itemType := d.ItemType()
	if itemType == "" {
		return nil
	}
	if pl.Project == nil {
		return artifact.NewValidationError(artifact.KindUnsupportedItemType, d.Path(),
			"output %q sets item type %q but does not belong to a project", displayPath(pl), itemType)
	}
	types, err := p.ws.RecognizedItemTypes(ctx, *pl.Project)
	if err != nil {
		return fmt.Errorf("item types of %s: %w", pl.Project.Path, err)
	}
	for _, t := range types {
		if strings.EqualFold(t, itemType) {
			return nil
		}
	}
	return artifact.NewValidationError(artifact.KindUnsupportedItemType, d.Path(),
		"item type %q of output %q is not supported by project %s (supported: %s)",
		itemType, displayPath(pl), filepath.Base(pl.Project.Path), strings.Join(types, ", "))
}

// EnsureContainer walks RelDir below Container, reusing folders that exist
// and creating the rest. A folder that exists on disk but not in the
// workspace is imported.
func (p *Placer) EnsureContainer(ctx context.Context, pl *Placement) (Node, error) {
	current := pl.Container
	if pl.RelDir == "" {
		return current, nil
	}
	for _, segment := range strings.Split(pl.RelDir, string(filepath.Separator)) {
		if segment == "" || segment == "." {
			continue
		}
		next, err := p.folder(ctx, current, segment)
		if err != nil {
			return Node{}, err
		}
		current = next
	}
	return current, nil
}

func (p *Placer) folder(ctx context.Context, parent Node, name string) (Node, error) {
	children, err := p.ws.Children(ctx, parent)
	if err != nil {
		return Node{}, fmt.Errorf("list %s: %w", parent.Path, err)
	}
	for _, c := range children {
		if c.Kind == KindFolder && strings.EqualFold(filepath.Base(c.Path), name) {
			return c, nil
		}
	}

	folder, err := p.ws.AddFolder(ctx, parent, name)
	if errors.Is(err, ErrFolderExists) {
		folder, err = p.ws.ImportFolder(ctx, parent, filepath.Join(parent.Dir(), name))
	}
	if err != nil {
		return Node{}, fmt.Errorf("add folder %s to %s: %w", name, parent.Path, err)
	}
	return folder, nil
}

func resolve(base, rel string) string {
	rel = filepath.FromSlash(rel)
	if filepath.IsAbs(rel) {
		return filepath.Clean(rel)
	}
	return filepath.Join(base, rel)
}

// relDir returns the directory of path relative to root, or "" when path
// sits directly in root.
func relDir(root, path string) string {
	rel, err := filepath.Rel(root, filepath.Dir(path))
	if err != nil || rel == "." {
		return ""
	}
	return rel
}

func displayPath(pl *Placement) string {
	if pl.Output.IsDefault() {
		return filepath.Base(pl.Path)
	}
	return pl.Output.Path()
}
