// Package workspace defines the host project model the reconciliation
// engine works against, an in-memory implementation of it, and the
// placement rules that decide which container an output joins.
//
// A workspace is a set of projects. Each project holds files and folders;
// a file may itself hold nested files (outputs listed under the template
// that produced them). Every node is addressed by its absolute path.
package workspace

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
)

// Kind is the type of a workspace node.
type Kind int

const (
	KindProject Kind = iota + 1
	KindFolder
	KindFile
)

// String returns the kind name
func (k Kind) String() string {
	switch k {
	case KindProject:
		return "project"
	case KindFolder:
		return "folder"
	case KindFile:
		return "file"
	default:
		return "unknown"
	}
}

// Node is a handle to a project, folder or file.
//
// For projects Path is the project file; Dir returns the directory the
// project's items are relative to.
type Node struct {
	Path    string
	Kind    Kind
	Project string // path of the owning project file
}

// Dir returns the directory that holds the node's children on disk.
func (n Node) Dir() string {
	if n.Kind == KindFile || n.Kind == KindProject {
		return filepath.Dir(n.Path)
	}
	return n.Path
}

// Same reports whether two nodes address the same path, ignoring case.
func (n Node) Same(other Node) bool {
	return n.Kind == other.Kind && strings.EqualFold(filepath.Clean(n.Path), filepath.Clean(other.Path))
}

var (
	// ErrNotFound is returned when a node does not exist.
	ErrNotFound = errors.New("workspace: item not found")
	// ErrFolderExists is returned by AddFolder when the directory is
	// already on disk but not part of the workspace. Callers import it
	// with ImportFolder instead.
	ErrFolderExists = errors.New("workspace: folder already exists on disk")
	// ErrNotContainer is returned when adding children to a node that
	// cannot hold them.
	ErrNotContainer = errors.New("workspace: node cannot contain items")
)

// Workspace is the host project model.
type Workspace interface {
	// FindItem returns the file or folder at path, or nil when the path is
	// not part of any project.
	FindItem(ctx context.Context, path string) (*Node, error)
	// Parent returns the container holding node.
	Parent(ctx context.Context, node Node) (Node, error)
	// Children lists the direct children of a container.
	Children(ctx context.Context, container Node) ([]Node, error)

	// AddFile adds an existing file to container.
	AddFile(ctx context.Context, container Node, path string) (Node, error)
	// AddFolder creates a folder named name on disk and in container.
	AddFolder(ctx context.Context, container Node, name string) (Node, error)
	// ImportFolder adds a directory that already exists on disk.
	ImportFolder(ctx context.Context, container Node, path string) (Node, error)
	// RemoveItem removes node and its descendants from the workspace.
	// Files on disk are left alone.
	RemoveItem(ctx context.Context, node Node) error

	SetItemType(ctx context.Context, item Node, itemType string) error
	SetCustomTool(ctx context.Context, item Node, tool string) error
	SetCustomToolNamespace(ctx context.Context, item Node, namespace string) error
	SetMetadata(ctx context.Context, item Node, key, value string) error
	AddReference(ctx context.Context, project Node, name string) error

	// Projects lists every project in the solution.
	Projects(ctx context.Context) ([]Node, error)
	// ProjectOf returns the project containing path, or nil.
	ProjectOf(ctx context.Context, path string) (*Node, error)
	// RecognizedItemTypes lists the item types a project accepts.
	RecognizedItemTypes(ctx context.Context, project Node) ([]string, error)
}

// ProjectMap indexes the solution's projects by path. It is built once per
// reconciliation and never mutated afterwards.
type ProjectMap map[string]Node

// BuildProjectMap lists the projects of ws.
func BuildProjectMap(ctx context.Context, ws Workspace) (ProjectMap, error) {
	projects, err := ws.Projects(ctx)
	if err != nil {
		return nil, err
	}
	m := make(ProjectMap, len(projects))
	for _, p := range projects {
		m[pathKey(p.Path)] = p
	}
	return m, nil
}

// Lookup finds a project by absolute path, ignoring case.
func (m ProjectMap) Lookup(path string) (Node, bool) {
	n, ok := m[pathKey(path)]
	return n, ok
}

func pathKey(path string) string {
	return strings.ToLower(filepath.Clean(path))
}
