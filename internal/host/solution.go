// Package host loads a solution and its projects from YAML files into an
// in-memory workspace and writes them back after a reconciliation.
package host

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/c-wilkinson/T4Toolbox/workspace"
)

// Solution is an opened solution file.
type Solution struct {
	Path string

	loader   *Loader
	ws       *workspace.Memory
	projects []workspace.Node
}

// Open reads the solution at path and every project it lists.
func Open(ctx context.Context, fs afero.Fs, loader *Loader, path string) (*Solution, error) {
	if loader == nil {
		var err error
		if loader, err = NewLoader(fs, DefaultCacheSize); err != nil {
			return nil, err
		}
	}
	path = filepath.Clean(path)
	sln, err := loader.Solution(path)
	if err != nil {
		return nil, err
	}

	s := &Solution{Path: path, loader: loader, ws: workspace.NewMemory(fs)}
	for _, rel := range sln.Projects {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		projectPath := filepath.Join(filepath.Dir(path), filepath.FromSlash(rel))
		if err := s.loadProject(ctx, projectPath); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Workspace returns the workspace built from the solution.
func (s *Solution) Workspace() *workspace.Memory {
	return s.ws
}

// Projects returns the project nodes in solution order.
func (s *Solution) Projects() []workspace.Node {
	return append([]workspace.Node(nil), s.projects...)
}

func (s *Solution) loadProject(ctx context.Context, path string) error {
	doc, err := s.loader.Project(path)
	if err != nil {
		return err
	}
	project := s.ws.AddProject(path, doc.ItemTypes...)
	if err := s.ws.SetReferences(project, doc.References); err != nil {
		return err
	}
	if err := s.attach(ctx, project, project.Dir(), doc.Items); err != nil {
		return fmt.Errorf("project %s: %w", path, err)
	}
	s.projects = append(s.projects, project)
	return nil
}

func (s *Solution) attach(ctx context.Context, container workspace.Node, dir string, items []*ItemFile) error {
	for _, item := range items {
		if item == nil || item.Path == "" {
			continue
		}
		kind := workspace.KindFile
		if item.Folder {
			kind = workspace.KindFolder
		}
		node, err := s.ws.Attach(container, filepath.Join(dir, filepath.FromSlash(item.Path)), kind)
		if err != nil {
			return err
		}
		if err := s.restore(ctx, node, item); err != nil {
			return err
		}
		if err := s.attach(ctx, node, dir, item.Items); err != nil {
			return err
		}
	}
	return nil
}

func (s *Solution) restore(ctx context.Context, node workspace.Node, item *ItemFile) error {
	if item.ItemType != "" {
		if err := s.ws.SetItemType(ctx, node, item.ItemType); err != nil {
			return err
		}
	}
	if item.CustomTool != "" {
		if err := s.ws.SetCustomTool(ctx, node, item.CustomTool); err != nil {
			return err
		}
	}
	if item.CustomToolNamespace != "" {
		if err := s.ws.SetCustomToolNamespace(ctx, node, item.CustomToolNamespace); err != nil {
			return err
		}
	}
	for k, v := range item.Metadata {
		if err := s.ws.SetMetadata(ctx, node, k, v); err != nil {
			return err
		}
	}
	return nil
}

// Save writes every project back to its file.
func (s *Solution) Save(ctx context.Context) error {
	docs := make(map[string]*ProjectFile, len(s.projects))
	for _, p := range s.projects {
		types, err := s.ws.RecognizedItemTypes(ctx, p)
		if err != nil {
			return err
		}
		docs[key(p.Path)] = &ProjectFile{ItemTypes: types, References: s.ws.References(p)}
	}

	items := make(map[string]*ItemFile)
	err := s.ws.Walk(func(info workspace.ItemInfo) error {
		if info.Kind == workspace.KindProject {
			return nil
		}
		rel, err := filepath.Rel(filepath.Dir(info.Project), info.Path)
		if err != nil {
			return err
		}
		item := &ItemFile{
			Path:                filepath.ToSlash(rel),
			Folder:              info.Kind == workspace.KindFolder,
			ItemType:            info.ItemType,
			CustomTool:          info.CustomTool,
			CustomToolNamespace: info.CustomToolNamespace,
		}
		if len(info.Metadata) > 0 {
			item.Metadata = info.Metadata
		}
		items[key(info.Path)] = item

		if doc, ok := docs[key(info.Parent)]; ok {
			doc.Items = append(doc.Items, item)
		} else if parent, ok := items[key(info.Parent)]; ok {
			parent.Items = append(parent.Items, item)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, p := range s.projects {
		if err := s.loader.StoreProject(p.Path, docs[key(p.Path)]); err != nil {
			return err
		}
	}
	return nil
}

func key(path string) string {
	return strings.ToLower(filepath.Clean(path))
}
