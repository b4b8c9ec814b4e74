package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/afero"
)

// ItemInfo is a read-only snapshot of a node and its properties.
type ItemInfo struct {
	Node
	Parent              string
	ItemType            string
	CustomTool          string
	CustomToolNamespace string
	Metadata            map[string]string
}

type entry struct {
	node     Node
	parent   string   // key of the parent, empty for projects
	children []string // keys in insertion order

	itemType            string
	customTool          string
	customToolNamespace string
	metadata            map[string]string

	// projects only
	itemTypes  []string
	references []string
}

// Memory is an in-memory workspace. Nodes live in an arena addressed by
// lower-cased path; parents and children refer to each other by key.
// Folder creation goes through fs so it can be backed by a real disk or by
// afero.NewMemMapFs in tests.
type Memory struct {
	mu       sync.RWMutex
	fs       afero.Fs
	nodes    map[string]*entry
	projects []string
}

// NewMemory creates an empty workspace.
func NewMemory(fs afero.Fs) *Memory {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Memory{
		fs:    fs,
		nodes: make(map[string]*entry),
	}
}

// AddProject registers a project file with the item types it accepts.
func (m *Memory) AddProject(path string, itemTypes ...string) Node {
	m.mu.Lock()
	defer m.mu.Unlock()

	path = filepath.Clean(path)
	key := pathKey(path)
	if e, ok := m.nodes[key]; ok {
		return e.node
	}
	node := Node{Path: path, Kind: KindProject, Project: path}
	m.nodes[key] = &entry{
		node:      node,
		itemTypes: append([]string(nil), itemTypes...),
		metadata:  make(map[string]string),
	}
	m.projects = append(m.projects, key)
	return node
}

// Item returns a snapshot of the node at path.
func (m *Memory) Item(path string) (ItemInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.nodes[pathKey(path)]
	if !ok {
		return ItemInfo{}, false
	}
	return m.info(e), true
}

// References returns the references of a project.
func (m *Memory) References(project Node) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.nodes[pathKey(project.Path)]
	if !ok {
		return nil
	}
	return append([]string(nil), e.references...)
}

// Walk visits every node depth first, projects in registration order.
func (m *Memory) Walk(fn func(ItemInfo) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var visit func(key string) error
	visit = func(key string) error {
		e := m.nodes[key]
		if err := fn(m.info(e)); err != nil {
			return err
		}
		for _, c := range e.children {
			if err := visit(c); err != nil {
				return err
			}
		}
		return nil
	}
	for _, p := range m.projects {
		if err := visit(p); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) info(e *entry) ItemInfo {
	info := ItemInfo{
		Node:                e.node,
		ItemType:            e.itemType,
		CustomTool:          e.customTool,
		CustomToolNamespace: e.customToolNamespace,
		Metadata:            make(map[string]string, len(e.metadata)),
	}
	if p, ok := m.nodes[e.parent]; ok {
		info.Parent = p.node.Path
	}
	for k, v := range e.metadata {
		info.Metadata[k] = v
	}
	return info
}

func (m *Memory) FindItem(_ context.Context, path string) (*Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.nodes[pathKey(path)]
	if !ok || e.node.Kind == KindProject {
		return nil, nil
	}
	n := e.node
	return &n, nil
}

func (m *Memory) Parent(_ context.Context, node Node) (Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.nodes[pathKey(node.Path)]
	if !ok {
		return Node{}, fmt.Errorf("%w: %s", ErrNotFound, node.Path)
	}
	p, ok := m.nodes[e.parent]
	if !ok {
		return Node{}, fmt.Errorf("%w: parent of %s", ErrNotFound, node.Path)
	}
	return p.node, nil
}

func (m *Memory) Children(_ context.Context, container Node) ([]Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.nodes[pathKey(container.Path)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, container.Path)
	}
	out := make([]Node, 0, len(e.children))
	for _, c := range e.children {
		out = append(out, m.nodes[c].node)
	}
	return out, nil
}

func (m *Memory) AddFile(_ context.Context, container Node, path string) (Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.add(container, filepath.Clean(path), KindFile)
}

func (m *Memory) AddFolder(_ context.Context, container Node, name string) (Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	parent, ok := m.nodes[pathKey(container.Path)]
	if !ok {
		return Node{}, fmt.Errorf("%w: %s", ErrNotFound, container.Path)
	}
	path := filepath.Join(parent.node.Dir(), name)
	if _, ok := m.nodes[pathKey(path)]; ok {
		return Node{}, fmt.Errorf("folder %s is already in the workspace", path)
	}
	if info, err := m.fs.Stat(path); err == nil && info.IsDir() {
		return Node{}, fmt.Errorf("%w: %s", ErrFolderExists, path)
	}
	if err := m.fs.MkdirAll(path, 0755); err != nil {
		return Node{}, fmt.Errorf("create folder %s: %w", path, err)
	}
	return m.add(container, path, KindFolder)
}

func (m *Memory) ImportFolder(_ context.Context, container Node, path string) (Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	info, err := m.fs.Stat(path)
	if err != nil {
		return Node{}, fmt.Errorf("import folder %s: %w", path, err)
	}
	if !info.IsDir() {
		return Node{}, fmt.Errorf("import folder %s: %w", path, os.ErrInvalid)
	}
	return m.add(container, filepath.Clean(path), KindFolder)
}

// Attach adds a node recorded by a host file without touching the disk.
// It is used to restore a saved workspace.
func (m *Memory) Attach(container Node, path string, kind Kind) (Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if kind == KindProject {
		return Node{}, fmt.Errorf("attach %s: use AddProject for projects", path)
	}
	return m.add(container, filepath.Clean(path), kind)
}

// SetReferences replaces the references of a project.
func (m *Memory) SetReferences(project Node, refs []string) error {
	return m.update(project, func(e *entry) {
		e.references = append([]string(nil), refs...)
	})
}

func (m *Memory) add(container Node, path string, kind Kind) (Node, error) {
	parentKey := pathKey(container.Path)
	parent, ok := m.nodes[parentKey]
	if !ok {
		return Node{}, fmt.Errorf("%w: %s", ErrNotFound, container.Path)
	}
	if kind == KindFolder && parent.node.Kind == KindFile {
		return Node{}, fmt.Errorf("%w: folder under file %s", ErrNotContainer, container.Path)
	}
	key := pathKey(path)
	if e, ok := m.nodes[key]; ok {
		if e.parent == parentKey {
			return e.node, nil
		}
		return Node{}, fmt.Errorf("%s already belongs to %s", path, m.nodes[e.parent].node.Path)
	}
	node := Node{Path: path, Kind: kind, Project: parent.node.Project}
	m.nodes[key] = &entry{node: node, parent: parentKey, metadata: make(map[string]string)}
	parent.children = append(parent.children, key)
	return node, nil
}

func (m *Memory) RemoveItem(_ context.Context, node Node) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := pathKey(node.Path)
	e, ok := m.nodes[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, node.Path)
	}
	if e.node.Kind == KindProject {
		return fmt.Errorf("cannot remove project %s", node.Path)
	}
	if p, ok := m.nodes[e.parent]; ok {
		p.children = removeKey(p.children, key)
	}
	m.drop(key)
	return nil
}

func (m *Memory) drop(key string) {
	e := m.nodes[key]
	for _, c := range e.children {
		m.drop(c)
	}
	delete(m.nodes, key)
}

func removeKey(keys []string, key string) []string {
	out := keys[:0]
	for _, k := range keys {
		if k != key {
			out = append(out, k)
		}
	}
	return out
}

func (m *Memory) update(node Node, fn func(e *entry)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.nodes[pathKey(node.Path)]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, node.Path)
	}
	fn(e)
	return nil
}

func (m *Memory) SetItemType(_ context.Context, item Node, itemType string) error {
	return m.update(item, func(e *entry) { e.itemType = itemType })
}

func (m *Memory) SetCustomTool(_ context.Context, item Node, tool string) error {
	return m.update(item, func(e *entry) { e.customTool = tool })
}

func (m *Memory) SetCustomToolNamespace(_ context.Context, item Node, namespace string) error {
	return m.update(item, func(e *entry) { e.customToolNamespace = namespace })
}

func (m *Memory) SetMetadata(_ context.Context, item Node, key, value string) error {
	return m.update(item, func(e *entry) {
		if value == "" {
			delete(e.metadata, key)
			return
		}
		e.metadata[key] = value
	})
}

func (m *Memory) AddReference(_ context.Context, project Node, name string) error {
	return m.update(project, func(e *entry) {
		for _, r := range e.references {
			if strings.EqualFold(r, name) {
				return
			}
		}
		e.references = append(e.references, name)
	})
}

func (m *Memory) Projects(_ context.Context) ([]Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Node, 0, len(m.projects))
	for _, p := range m.projects {
		out = append(out, m.nodes[p].node)
	}
	return out, nil
}

// ProjectOf prefers the project that lists path as an item, then the
// project whose directory most closely contains path.
func (m *Memory) ProjectOf(_ context.Context, path string) (*Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if e, ok := m.nodes[pathKey(path)]; ok {
		p := m.nodes[pathKey(e.node.Project)].node
		return &p, nil
	}
	var best *Node
	for _, key := range m.projects {
		p := m.nodes[key].node
		if !within(p.Dir(), path) {
			continue
		}
		if best == nil || len(p.Dir()) > len(best.Dir()) {
			n := p
			best = &n
		}
	}
	return best, nil
}

func (m *Memory) RecognizedItemTypes(_ context.Context, project Node) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.nodes[pathKey(project.Path)]
	if !ok || e.node.Kind != KindProject {
		return nil, fmt.Errorf("%w: project %s", ErrNotFound, project.Path)
	}
	types := append([]string(nil), e.itemTypes...)
	sort.Strings(types)
	return types, nil
}

// Get implements manifest.Metadata. Paths outside the workspace have no
// metadata.
func (m *Memory) Get(_ context.Context, itemPath, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.nodes[pathKey(itemPath)]
	if !ok {
		return "", nil
	}
	return e.metadata[key], nil
}

// Set implements manifest.Metadata.
func (m *Memory) Set(ctx context.Context, itemPath, key, value string) error {
	return m.SetMetadata(ctx, Node{Path: itemPath}, key, value)
}

// within reports whether path is dir or lies below it.
func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
