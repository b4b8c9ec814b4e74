package reconcile

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/c-wilkinson/T4Toolbox/artifact"
	"github.com/c-wilkinson/T4Toolbox/checkout"
	"github.com/c-wilkinson/T4Toolbox/generator"
	"github.com/c-wilkinson/T4Toolbox/logger"
	"github.com/c-wilkinson/T4Toolbox/manifest"
	"github.com/c-wilkinson/T4Toolbox/workspace"
)

func (r *run) execOptions() generator.ExecuteOptions {
	return generator.ExecuteOptions{DryRun: r.opts.DryRun, Writer: r.opts.Out}
}

// deleteStale removes the outputs of the previous run that this run did
// not produce, then prunes the folders they leave empty.
func (r *run) deleteStale(ctx context.Context) error {
	previous, err := r.store.Load(ctx, r.in.InputPath)
	if err != nil {
		return err
	}

	current := map[string]bool{artifact.Key(r.in.InputPath): true}
	if r.in.DefaultOutputPath != "" {
		current[artifact.Key(r.in.DefaultOutputPath)] = true
	}
	for _, pl := range r.placements {
		current[artifact.Key(pl.Path)] = true
	}

	var ops []generator.Operation
	var parents []workspace.Node
	for _, entry := range previous {
		path := manifest.Absolute(r.in.InputPath, entry)
		if current[artifact.Key(path)] {
			continue
		}
		if !r.opts.DryRun {
			parent, err := r.removeItem(ctx, path)
			if err != nil {
				return err
			}
			if parent != nil {
				parents = append(parents, *parent)
			}
		}
		ops = append(ops, &generator.DeleteOp{Fs: r.opts.FS, Path: path})
		r.res.Deleted = append(r.res.Deleted, path)
		r.log.Debug("stale output", logger.F("path", path))
	}

	if err := generator.Execute(ctx, ops, r.execOptions()); err != nil {
		return err
	}
	for _, folder := range parents {
		if err := r.prune(ctx, folder); err != nil {
			return err
		}
	}
	return nil
}

// removeItem drops path from the workspace and returns its former parent.
func (r *run) removeItem(ctx context.Context, path string) (*workspace.Node, error) {
	item, err := r.ws.FindItem(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", path, err)
	}
	if item == nil {
		return nil, nil
	}
	parent, err := r.ws.Parent(ctx, *item)
	if err != nil {
		return nil, fmt.Errorf("parent of %s: %w", path, err)
	}
	if err := r.ws.RemoveItem(ctx, *item); err != nil {
		return nil, fmt.Errorf("remove %s: %w", path, err)
	}
	return &parent, nil
}

// prune removes folder and its ancestors while they are plain folders that
// are empty both in the workspace and on disk. Projects stop the walk.
func (r *run) prune(ctx context.Context, folder workspace.Node) error {
	for folder.Kind == workspace.KindFolder {
		// An earlier prune may have removed it already.
		if n, err := r.ws.FindItem(ctx, folder.Path); err != nil || n == nil {
			return err
		}
		children, err := r.ws.Children(ctx, folder)
		if err != nil {
			return fmt.Errorf("list %s: %w", folder.Path, err)
		}
		if len(children) > 0 {
			return nil
		}
		entries, err := afero.ReadDir(r.opts.FS, folder.Path)
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("read %s: %w", folder.Path, err)
		}
		if len(entries) > 0 {
			return nil
		}

		parent, err := r.ws.Parent(ctx, folder)
		if err != nil {
			return fmt.Errorf("parent of %s: %w", folder.Path, err)
		}
		if err := r.ws.RemoveItem(ctx, folder); err != nil {
			return fmt.Errorf("remove folder %s: %w", folder.Path, err)
		}
		if err := r.opts.FS.Remove(folder.Path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove folder %s: %w", folder.Path, err)
		}
		r.log.Debug("removed empty folder", logger.F("path", folder.Path))
		folder = parent
	}
	return nil
}

type status int

const (
	statusChanged status = iota
	statusUnchanged
	statusPreserved
)

// pending is an output whose bytes differ from the disk.
type pending struct {
	path    string
	old     []byte // nil when the file does not exist
	content []byte
}

// detect compares every named output with the disk. Reads run in
// parallel; results keep the output order.
func (r *run) detect(ctx context.Context) ([]pending, error) {
	type detection struct {
		status  status
		pending pending
	}
	results := make([]detection, len(r.placements))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Concurrency)
	for i, pl := range r.placements {
		g.Go(func() error {
			st, p, err := r.compare(gctx, pl)
			if err != nil {
				return err
			}
			results[i] = detection{status: st, pending: p}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var writes []pending
	for i, d := range results {
		path := r.placements[i].Path
		switch d.status {
		case statusPreserved:
			r.res.Preserved = append(r.res.Preserved, path)
		case statusUnchanged:
			r.res.Unchanged = append(r.res.Unchanged, path)
		default:
			writes = append(writes, d.pending)
		}
	}
	return writes, nil
}

func (r *run) compare(ctx context.Context, pl *workspace.Placement) (status, pending, error) {
	if err := ctx.Err(); err != nil {
		return 0, pending{}, err
	}
	exists, err := afero.Exists(r.opts.FS, pl.Path)
	if err != nil {
		return 0, pending{}, fmt.Errorf("stat %s: %w", pl.Path, err)
	}
	if exists && pl.Output.PreserveExisting {
		return statusPreserved, pending{}, nil
	}

	content, err := pl.Output.Encode()
	if err != nil {
		return 0, pending{}, fmt.Errorf("encode %s: %w", pl.Path, err)
	}
	p := pending{path: pl.Path, content: content}
	if !exists {
		return statusChanged, p, nil
	}

	old, err := afero.ReadFile(r.opts.FS, pl.Path)
	if err != nil {
		return 0, pending{}, fmt.Errorf("read %s: %w", pl.Path, err)
	}
	if bytes.Equal(old, content) {
		return statusUnchanged, pending{}, nil
	}
	p.old = old
	return statusChanged, p, nil
}

// requestCheckout asks for all files about to be written in one batch.
func (r *run) requestCheckout(ctx context.Context, writes []pending) error {
	if len(writes) == 0 || r.opts.DryRun {
		return nil
	}
	paths := make([]string, len(writes))
	for i, w := range writes {
		paths[i] = w.path
	}

	outcome, err := r.checkout.RequestEdit(ctx, paths)
	if err != nil {
		return fmt.Errorf("%w (%s): %w", ErrCheckoutAborted, outcome, err)
	}
	if outcome != checkout.OK {
		return fmt.Errorf("%w: %s", ErrCheckoutAborted, outcome)
	}
	return nil
}

func (r *run) write(ctx context.Context, writes []pending) error {
	ops := make([]generator.Operation, 0, len(writes))
	for _, w := range writes {
		if r.opts.DryRun && r.opts.ShowDiff {
			fmt.Fprint(r.opts.Out, generator.Diff(w.path, w.path, w.old, w.content, nil))
		}
		ops = append(ops, &generator.WriteOp{
			Fs:      r.opts.FS,
			Path:    w.path,
			Content: w.content,
			Done:    r.opts.Editor.Reload,
		})
	}
	if err := generator.Execute(ctx, ops, r.execOptions()); err != nil {
		return err
	}
	for _, w := range writes {
		r.res.Written = append(r.res.Written, w.path)
	}
	return nil
}

// waitPrimary waits for the renderer's primary output. A primary output
// that never appears is reported as a warning and left unconfigured.
func (r *run) waitPrimary(ctx context.Context) bool {
	if r.primary == nil || r.opts.DryRun {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, r.opts.WaitTimeout)
	defer cancel()

	if err := r.opts.Waiter.WaitFor(ctx, r.primary.Path); err != nil {
		r.res.Warnings = append(r.res.Warnings,
			fmt.Sprintf("primary output %s was not found: %v", filepath.Base(r.primary.Path), err))
		return false
	}
	return true
}

// configure puts every output into its container and applies its
// properties.
func (r *run) configure(ctx context.Context, primaryReady bool) error {
	if r.opts.DryRun {
		return nil
	}
	if primaryReady {
		if err := r.configureItem(ctx, r.primary); err != nil {
			return err
		}
		if err := r.linkInput(ctx); err != nil {
			return err
		}
	}
	for _, pl := range r.placements {
		if err := r.configureItem(ctx, pl); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) configureItem(ctx context.Context, pl *workspace.Placement) error {
	if !pl.HasContainer() {
		return nil
	}
	container, err := r.placer.EnsureContainer(ctx, pl)
	if err != nil {
		return err
	}

	item, err := r.ws.FindItem(ctx, pl.Path)
	if err != nil {
		return fmt.Errorf("find %s: %w", pl.Path, err)
	}
	var node workspace.Node
	switch {
	case item == nil:
		if node, err = r.ws.AddFile(ctx, container, pl.Path); err != nil {
			return fmt.Errorf("add %s to %s: %w", pl.Path, container.Path, err)
		}
	default:
		parent, err := r.ws.Parent(ctx, *item)
		if err != nil {
			return fmt.Errorf("parent of %s: %w", pl.Path, err)
		}
		node = *item
		if !parent.Same(container) {
			if node, err = r.move(ctx, *item, container); err != nil {
				return err
			}
		}
	}

	d := pl.Output
	if t := d.Properties.ItemType; t != "" {
		if err := r.ws.SetItemType(ctx, node, t); err != nil {
			return fmt.Errorf("set item type of %s: %w", pl.Path, err)
		}
	}
	if tool := d.Properties.CustomTool; tool != "" {
		if err := r.ws.SetCustomTool(ctx, node, tool); err != nil {
			return fmt.Errorf("set custom tool of %s: %w", pl.Path, err)
		}
	}
	if ns := d.Properties.CustomToolNamespace; ns != "" {
		if err := r.ws.SetCustomToolNamespace(ctx, node, ns); err != nil {
			return fmt.Errorf("set custom tool namespace of %s: %w", pl.Path, err)
		}
	}
	for _, key := range d.Properties.MetadataKeys() {
		value, _ := d.Properties.Get(key)
		if err := r.ws.SetMetadata(ctx, node, key, value); err != nil {
			return fmt.Errorf("set %s of %s: %w", key, pl.Path, err)
		}
	}
	if !d.IsDefault() {
		if rel, err := filepath.Rel(filepath.Dir(pl.Path), r.in.InputPath); err == nil {
			if err := r.ws.SetMetadata(ctx, node, MetaTemplate, filepath.ToSlash(rel)); err != nil {
				return fmt.Errorf("link %s: %w", pl.Path, err)
			}
		}
	}
	if pl.Project != nil {
		for _, ref := range d.References() {
			if err := r.ws.AddReference(ctx, *pl.Project, ref); err != nil {
				return fmt.Errorf("add reference %s to %s: %w", ref, pl.Project.Path, err)
			}
		}
	}

	r.res.Configured = append(r.res.Configured, pl.Path)
	return nil
}

// move re-parents item under container. The file is renamed out of the
// way while it leaves its old container so the host does not delete it,
// then renamed back and added to the new one.
func (r *run) move(ctx context.Context, item workspace.Node, container workspace.Node) (workspace.Node, error) {
	fs := r.opts.FS
	tmp := fmt.Sprintf("%s.%s.tmp", item.Path, uuid.NewString()[:8])

	onDisk, err := afero.Exists(fs, item.Path)
	if err != nil {
		return workspace.Node{}, fmt.Errorf("stat %s: %w", item.Path, err)
	}
	if onDisk {
		if err := fs.Rename(item.Path, tmp); err != nil {
			return workspace.Node{}, fmt.Errorf("move %s aside: %w", item.Path, err)
		}
	}
	if err := r.ws.RemoveItem(ctx, item); err != nil {
		if onDisk {
			_ = fs.Rename(tmp, item.Path)
		}
		return workspace.Node{}, fmt.Errorf("remove %s from its container: %w", item.Path, err)
	}
	if onDisk {
		if err := fs.Rename(tmp, item.Path); err != nil {
			return workspace.Node{}, fmt.Errorf("restore %s: %w", item.Path, err)
		}
	}

	node, err := r.ws.AddFile(ctx, container, item.Path)
	if err != nil {
		return workspace.Node{}, fmt.Errorf("add %s to %s: %w", item.Path, container.Path, err)
	}
	r.log.Debug("moved item", logger.F("path", item.Path), logger.F("container", container.Path))
	return node, nil
}

// linkInput records the primary output's file name on the input item.
func (r *run) linkInput(ctx context.Context) error {
	input, err := r.ws.FindItem(ctx, r.in.InputPath)
	if err != nil || input == nil {
		return err
	}
	if err := r.ws.SetMetadata(ctx, *input, MetaLastGenOutput, filepath.Base(r.in.DefaultOutputPath)); err != nil {
		return fmt.Errorf("link %s: %w", r.in.InputPath, err)
	}
	return nil
}
