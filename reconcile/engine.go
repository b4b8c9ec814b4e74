package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/c-wilkinson/T4Toolbox/artifact"
	"github.com/c-wilkinson/T4Toolbox/checkout"
	"github.com/c-wilkinson/T4Toolbox/logger"
	"github.com/c-wilkinson/T4Toolbox/manifest"
	"github.com/c-wilkinson/T4Toolbox/workspace"
)

// Defaults applied by New.
const (
	DefaultWaitTimeout = 10 * time.Second
	DefaultConcurrency = 4
)

// Metadata keys linking generated items and their template.
const (
	// MetaTemplate is set on generated items: the input file relative to
	// the item's directory.
	MetaTemplate = "Template"
	// MetaLastGenOutput is set on the input item: the file name of its
	// primary output.
	MetaLastGenOutput = "LastGenOutput"
)

// Editor is told about files rewritten on disk so open buffers can be
// reloaded without an undo entry.
type Editor interface {
	Reload(path string)
}

type nopEditor struct{}

func (nopEditor) Reload(string) {}

// Options configures an Engine. The zero value writes to the OS
// filesystem.
type Options struct {
	FS          afero.Fs
	WaitTimeout time.Duration // how long to wait for the primary output
	Concurrency int           // parallel reads during change detection

	// DryRun reports what would change without touching the disk, the
	// workspace or the manifest.
	DryRun bool
	// ShowDiff prints a diff of every changed file in dry-run mode.
	ShowDiff bool
	// Out receives operation descriptions, nil for silence.
	Out io.Writer

	Logger  logger.Logger
	Metrics *Metrics
	Editor  Editor
	Waiter  Waiter
}

// Input is one finished generation run.
type Input struct {
	// InputPath is the absolute path of the template file.
	InputPath string
	// DefaultOutputPath is the absolute path of the primary output, written
	// by the renderer. Empty when the run has none.
	DefaultOutputPath string
	// Outputs are the artifacts of the run, usually registry.Outputs().
	Outputs []*artifact.Descriptor
}

// Result describes what a run did. Paths are absolute.
type Result struct {
	RunID      string
	Deleted    []string
	Written    []string
	Unchanged  []string
	Preserved  []string
	Configured []string
	Manifest   []string // relative entries as stored
	Warnings   []string
}

// Engine reconciles generation runs against a workspace.
type Engine struct {
	ws       workspace.Workspace
	store    *manifest.Store
	checkout checkout.Checkout
	opts     Options
	locks    *keyedMutex
}

// New creates an engine. meta stores manifests; a nil checkout approves
// every request.
func New(ws workspace.Workspace, meta manifest.Metadata, co checkout.Checkout, opts Options) *Engine {
	if opts.FS == nil {
		opts.FS = afero.NewOsFs()
	}
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = DefaultWaitTimeout
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	if opts.Logger == nil {
		opts.Logger = logger.Default()
	}
	if opts.Editor == nil {
		opts.Editor = nopEditor{}
	}
	if opts.Waiter == nil {
		opts.Waiter = &NotifyWaiter{Fs: opts.FS}
	}
	if co == nil {
		co = checkout.Always(checkout.OK)
	}
	return &Engine{
		ws:       ws,
		store:    manifest.NewStore(meta),
		checkout: co,
		opts:     opts,
		locks:    newKeyedMutex(),
	}
}

// Reconcile converges the disk, the workspace and the manifest with in.
// The returned Result is never nil and describes the steps completed
// before a failure.
func (e *Engine) Reconcile(ctx context.Context, in Input) (*Result, error) {
	res := &Result{RunID: uuid.NewString()}
	if in.InputPath == "" {
		return res, errors.New("reconcile: input path is required")
	}
	in.InputPath = filepath.Clean(in.InputPath)
	if in.DefaultOutputPath != "" {
		in.DefaultOutputPath = filepath.Clean(in.DefaultOutputPath)
	}

	unlock := e.locks.Lock(in.InputPath)
	defer unlock()

	r := &run{
		Engine: e,
		in:     in,
		res:    res,
		log:    e.opts.Logger.WithFields(logger.F("run", res.RunID), logger.F("input", in.InputPath)),
	}

	start := time.Now()
	err := r.execute(ctx)
	e.opts.Metrics.observe(res, err, time.Since(start))

	if err != nil {
		r.log.Error("reconciliation failed", logger.Err(err))
		return res, err
	}
	r.log.Info("reconciled",
		logger.F("written", len(res.Written)),
		logger.F("unchanged", len(res.Unchanged)),
		logger.F("deleted", len(res.Deleted)),
		logger.F("dry_run", e.opts.DryRun))
	return res, nil
}

// run holds the state of one reconciliation.
type run struct {
	*Engine
	in  Input
	res *Result
	log logger.Logger

	placer     *workspace.Placer
	placements []*workspace.Placement // named outputs, first-write order
	primary    *workspace.Placement   // nil without a primary output
}

func (r *run) execute(ctx context.Context) error {
	if err := r.place(ctx); err != nil {
		return &StepError{Step: StepProjects, Err: err}
	}
	// Nothing is touched until every output passes validation.
	if err := r.validate(ctx); err != nil {
		return &StepError{Step: StepValidate, Err: err}
	}
	r.collectWarnings()

	if err := r.deleteStale(ctx); err != nil {
		return &StepError{Step: StepDelete, Err: err}
	}

	writes, err := r.detect(ctx)
	if err != nil {
		return &StepError{Step: StepDetect, Err: err}
	}
	if err := r.requestCheckout(ctx, writes); err != nil {
		return &StepError{Step: StepCheckout, Err: err}
	}

	// Once files are checked out the run completes regardless of the
	// caller giving up.
	ctx = context.WithoutCancel(ctx)

	if err := r.write(ctx, writes); err != nil {
		return &StepError{Step: StepWrite, Err: err}
	}
	primaryReady := r.waitPrimary(ctx)

	if err := r.configure(ctx, primaryReady); err != nil {
		return &StepError{Step: StepConfigure, Err: err}
	}
	if err := r.saveManifest(ctx); err != nil {
		return &StepError{Step: StepManifest, Err: err}
	}
	return nil
}

// place builds the project map and resolves every output. Resolution is
// pure; nothing changes when it fails.
func (r *run) place(ctx context.Context) error {
	placer, err := workspace.NewPlacer(ctx, r.ws, r.in.InputPath)
	if err != nil {
		return err
	}
	r.placer = placer

	seen := make(map[string]bool)
	for _, d := range r.in.Outputs {
		if d == nil {
			continue
		}
		if d.IsDefault() {
			if r.in.DefaultOutputPath == "" || r.primary != nil {
				continue
			}
			if r.primary, err = placer.Resolve(d, r.in.DefaultOutputPath); err != nil {
				return err
			}
			continue
		}

		pl, err := placer.Resolve(d, r.in.DefaultOutputPath)
		if err != nil {
			return err
		}
		key := artifact.Key(pl.Path)
		if seen[key] {
			r.log.Warn("duplicate output ignored", logger.F("path", pl.Path))
			continue
		}
		seen[key] = true
		r.placements = append(r.placements, pl)
	}

	if r.primary == nil && r.in.DefaultOutputPath != "" {
		if r.primary, err = placer.Resolve(artifact.New(""), r.in.DefaultOutputPath); err != nil {
			return err
		}
	}
	r.log.Debug("outputs resolved", logger.F("count", len(r.placements)))
	return nil
}

func (r *run) collectWarnings() {
	for _, pl := range r.placements {
		if pl.Output.Len() == 0 {
			r.res.Warnings = append(r.res.Warnings, fmt.Sprintf("output %s is empty", pl.Output.Path()))
		}
	}
}

func (r *run) validate(ctx context.Context) error {
	if r.primary != nil {
		if err := r.placer.Validate(ctx, r.primary); err != nil {
			return err
		}
	}
	for _, pl := range r.placements {
		if err := r.placer.Validate(ctx, pl); err != nil {
			return err
		}
	}
	return nil
}

// saveManifest records every named, non-preserved output except the files
// the manifest must never list: the primary output and the input itself.
func (r *run) saveManifest(ctx context.Context) error {
	skip := map[string]bool{artifact.Key(r.in.InputPath): true}
	if r.in.DefaultOutputPath != "" {
		skip[artifact.Key(r.in.DefaultOutputPath)] = true
	}

	entries := make([]string, 0, len(r.placements))
	for _, pl := range r.placements {
		if pl.Output.PreserveExisting || skip[artifact.Key(pl.Path)] {
			continue
		}
		rel, err := manifest.Relative(r.in.InputPath, pl.Path)
		if err != nil {
			return err
		}
		entries = append(entries, rel)
	}
	manifest.Sort(entries)
	r.res.Manifest = entries

	if r.opts.DryRun {
		return nil
	}
	previous, err := r.store.LoadRaw(ctx, r.in.InputPath)
	if err != nil {
		return err
	}
	if previous == manifest.Encode(entries) {
		return nil
	}
	err = r.store.Save(ctx, r.in.InputPath, entries)
	if errors.Is(err, workspace.ErrNotFound) {
		r.res.Warnings = append(r.res.Warnings,
			fmt.Sprintf("%s is not part of the workspace; its outputs are not tracked", filepath.Base(r.in.InputPath)))
		return nil
	}
	return err
}
