package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/c-wilkinson/T4Toolbox/artifact"
	"github.com/c-wilkinson/T4Toolbox/internal/config"
	"github.com/c-wilkinson/T4Toolbox/internal/host"
	"github.com/c-wilkinson/T4Toolbox/logger"
	"github.com/c-wilkinson/T4Toolbox/manifest"
	"github.com/c-wilkinson/T4Toolbox/workspace"
)

const configFileName = config.FileName

// env is everything a command needs once the configuration is loaded.
type env struct {
	cfg  *config.Config
	fs   afero.Fs
	log  logger.Logger
	sln  *host.Solution
	meta manifest.Metadata

	dryRun   bool
	showDiff bool

	closers []func() error
}

// openEnv loads the configuration named by the command's flags, the
// solution and the metadata backend.
func openEnv(ctx context.Context, cmd *cobra.Command) (*env, error) {
	path, _ := cmd.Flags().GetString("config")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	showDiff, _ := cmd.Flags().GetBool("diff")
	verbose, _ := cmd.Flags().GetBool("verbose")

	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path, wd)
	if err != nil {
		return nil, err
	}

	log := logger.Default()
	if !verbose {
		level, err := logger.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, err
		}
		log.SetLevel(level)
	}

	fs := afero.NewOsFs()
	loader, err := host.NewLoader(fs, cfg.Cache.Projects)
	if err != nil {
		return nil, err
	}
	sln, err := host.Open(ctx, fs, loader, cfg.Resolve(cfg.Solution))
	if err != nil {
		return nil, err
	}

	e := &env{cfg: cfg, fs: fs, log: log, sln: sln, dryRun: dryRun, showDiff: showDiff}
	switch cfg.Metadata.Backend {
	case "badger":
		store, err := host.OpenBadgerMetadata(cfg.Resolve(cfg.Metadata.Path), log)
		if err != nil {
			return nil, err
		}
		e.meta = store
		e.closers = append(e.closers, store.Close)
	default:
		e.meta = sln.Workspace()
	}
	log.Debug("environment ready",
		logger.F("solution", sln.Path),
		logger.F("metadata", cfg.Metadata.Backend),
		logger.F("dry_run", dryRun))
	return e, nil
}

// Close releases the metadata backend.
func (e *env) Close() error {
	var errs []error
	for _, c := range e.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// save writes the project files back unless this is a dry run.
func (e *env) save(ctx context.Context) error {
	if e.dryRun {
		return nil
	}
	if err := e.sln.Save(ctx); err != nil {
		return fmt.Errorf("failed to save solution: %w", err)
	}
	return nil
}

// inputs resolves template arguments, or discovers every template below
// the solution directory when there are none.
func (e *env) inputs(args []string) ([]string, error) {
	if len(args) == 0 {
		return findTemplates(e.fs, filepath.Dir(e.sln.Path), e.cfg)
	}
	paths := make([]string, 0, len(args))
	for _, a := range args {
		abs, err := filepath.Abs(a)
		if err != nil {
			return nil, err
		}
		paths = append(paths, abs)
	}
	return paths, nil
}

// defaultOutput is the primary output of a template: the input path with
// its extension replaced.
func (e *env) defaultOutput(input string) string {
	return strings.TrimSuffix(input, filepath.Ext(input)) + e.cfg.DefaultExtension
}

// planned is where an output would be written.
type planned struct {
	path     string
	content  []byte
	preserve bool
}

// plan resolves the destinations of outputs without changing anything.
func (e *env) plan(ctx context.Context, input string, outputs []*artifact.Descriptor) ([]planned, error) {
	placer, err := workspace.NewPlacer(ctx, e.sln.Workspace(), input)
	if err != nil {
		return nil, err
	}
	var out []planned
	for _, d := range outputs {
		if d == nil || d.IsDefault() {
			continue
		}
		pl, err := placer.Resolve(d, e.defaultOutput(input))
		if err != nil {
			return nil, err
		}
		content, err := d.Encode()
		if err != nil {
			return nil, err
		}
		out = append(out, planned{path: pl.Path, content: content, preserve: d.PreserveExisting})
	}
	return out, nil
}
