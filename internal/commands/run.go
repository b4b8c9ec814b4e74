package commands

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/c-wilkinson/T4Toolbox/artifact"
	"github.com/c-wilkinson/T4Toolbox/checkout"
	"github.com/c-wilkinson/T4Toolbox/filesystem"
	"github.com/c-wilkinson/T4Toolbox/generator"
	"github.com/c-wilkinson/T4Toolbox/internal/config"
	"github.com/c-wilkinson/T4Toolbox/logger"
	"github.com/c-wilkinson/T4Toolbox/output"
	"github.com/c-wilkinson/T4Toolbox/reconcile"
	"github.com/c-wilkinson/T4Toolbox/registry"
)

// RunCmd renders templates and reconciles their outputs
func RunCmd() *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "run [template...]",
		Short: "Render templates and reconcile their outputs",
		Long: `Renders each template and brings the solution in line with what it produced.

Without arguments every template below the solution directory is rendered.

Examples:
  t4out run                      # Render all templates
  t4out run App/Foo.tt           # Render one template
  t4out run --dry-run --diff     # Show what would change
  t4out run --checkout force     # Unlock read-only outputs without asking`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := openEnv(ctx, cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			if mode == "" {
				mode = e.cfg.Checkout.Mode
			}
			return runTemplates(ctx, e, args, mode, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&mode, "checkout", "", "Checkout mode for read-only files: interactive, force or deny")

	return cmd
}

func runTemplates(ctx context.Context, e *env, args []string, mode string, out io.Writer) error {
	inputs, err := e.inputs(args)
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		output.Warning("No templates found")
		return nil
	}

	pv := newPreviews(e.fs)
	strategy, err := checkout.NewStrategy(mode, pv.diff)
	if err != nil {
		return err
	}
	co := checkout.NewFileCheckout(e.fs, strategy)

	metrics := reconcile.NewMetrics()
	engine := reconcile.New(e.sln.Workspace(), e.meta, co, reconcile.Options{
		FS:          e.fs,
		WaitTimeout: e.cfg.WaitTimeout,
		Concurrency: e.cfg.Concurrency,
		DryRun:      e.dryRun,
		ShowDiff:    e.showDiff,
		Out:         out,
		Logger:      e.log,
		Metrics:     metrics,
	})
	renderer := generator.NewRenderer(e.fs)
	reporter := &output.Reporter{}

	failed := 0
	for _, input := range inputs {
		if err := ctx.Err(); err != nil {
			return err
		}
		output.Step("Rendering " + e.display(input))

		res, err := e.runOne(ctx, engine, renderer, co, pv, reporter, input, out)
		if err != nil {
			failed++
			continue
		}
		output.Success(fmt.Sprintf("%s: %d written, %d unchanged, %d deleted",
			e.display(input), len(res.Written), len(res.Unchanged), len(res.Deleted)))
	}

	if err := e.save(ctx); err != nil {
		return err
	}
	if path := e.cfg.Metrics.Textfile; path != "" && !e.dryRun {
		if err := metrics.WriteTextfile(e.cfg.Resolve(path)); err != nil {
			e.log.Warn("failed to write metrics", logger.Err(err))
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d templates failed", failed, len(inputs))
	}
	return nil
}

func (e *env) runOne(ctx context.Context, engine *reconcile.Engine, renderer *generator.Renderer,
	co checkout.Checkout, pv *previews, reporter *output.Reporter, input string, out io.Writer) (*reconcile.Result, error) {
	var primary bytes.Buffer
	reg := registry.New(&primary)
	if err := renderer.RenderFile(input, e.templateData(ctx, input), reg); err != nil {
		reporter.Error(input, err.Error())
		return nil, err
	}

	defaultPath := e.defaultOutput(input)
	if err := e.writePrimary(ctx, co, reg.Default(), primary.String(), defaultPath, out); err != nil {
		reporter.Error(input, err.Error())
		return nil, err
	}

	if plan, err := e.plan(ctx, input, reg.Outputs()); err == nil {
		pv.add(plan)
	}

	return engine.Report(ctx, reconcile.Input{
		InputPath:         input,
		DefaultOutputPath: defaultPath,
		Outputs:           reg.Outputs(),
	}, reporter)
}

// writePrimary writes the default output, which the engine only
// configures. It goes through checkout like any other changed file.
func (e *env) writePrimary(ctx context.Context, co checkout.Checkout, def *artifact.Descriptor, text, path string, out io.Writer) error {
	content, err := artifact.EncodeString(def.Encoding, text)
	if err != nil {
		return err
	}
	existing, err := afero.ReadFile(e.fs, path)
	if err == nil && bytes.Equal(existing, content) {
		return nil
	}
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("read %s: %w", path, err)
	}

	if !e.dryRun && err == nil {
		outcome, err := co.RequestEdit(ctx, []string{path})
		if err != nil {
			return fmt.Errorf("%w (%s): %w", reconcile.ErrCheckoutAborted, outcome, err)
		}
		if outcome != checkout.OK {
			return fmt.Errorf("%w (%s)", reconcile.ErrCheckoutAborted, outcome)
		}
	}
	if e.dryRun && e.showDiff {
		fmt.Fprint(out, generator.Diff(path, path, existing, content, nil))
	}

	ops := []generator.Operation{&generator.WriteOp{Fs: e.fs, Path: path, Content: content}}
	return generator.Execute(ctx, ops, generator.ExecuteOptions{DryRun: e.dryRun, Writer: out})
}

// templateData is the dot of every template.
type templateData struct {
	Template  string // absolute path of the template
	Name      string // template file name without extension
	Dir       string
	Namespace string // project name followed by the folders below it
}

func (e *env) templateData(ctx context.Context, input string) templateData {
	data := templateData{
		Template: input,
		Name:     strings.TrimSuffix(filepath.Base(input), filepath.Ext(input)),
		Dir:      filepath.Dir(input),
	}
	project, err := e.sln.Workspace().ProjectOf(ctx, input)
	if err != nil || project == nil {
		return data
	}
	parts := []string{strings.TrimSuffix(filepath.Base(project.Path), filepath.Ext(project.Path))}
	if rel, err := filepath.Rel(project.Dir(), data.Dir); err == nil && rel != "." {
		parts = append(parts, strings.Split(filepath.ToSlash(rel), "/")...)
	}
	data.Namespace = strings.Join(parts, ".")
	return data
}

// display shortens path relative to the configuration directory.
func (e *env) display(path string) string {
	if rel, err := filepath.Rel(e.cfg.Dir, path); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return path
}

func findTemplates(fs afero.Fs, root string, cfg *config.Config) ([]string, error) {
	return filesystem.FindTemplates(fs, root, filesystem.TemplateOptions{
		Patterns: cfg.Templates.Patterns,
		Ignore:   cfg.Templates.Ignore,
	})
}

// previews holds the pending content of outputs so the checkout prompt
// can show what would change.
type previews struct {
	fs      afero.Fs
	mu      sync.Mutex
	pending map[string][]byte
}

func newPreviews(fs afero.Fs) *previews {
	return &previews{fs: fs, pending: make(map[string][]byte)}
}

func (p *previews) add(plan []planned) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, pl := range plan {
		p.pending[artifact.Key(pl.path)] = pl.content
	}
}

func (p *previews) diff(path string) string {
	p.mu.Lock()
	content, ok := p.pending[artifact.Key(path)]
	p.mu.Unlock()
	if !ok {
		return "No preview available for " + path
	}
	existing, _ := afero.ReadFile(p.fs, path)
	return generator.Diff(path, path, existing, content, &generator.DiffOptions{Color: true})
}
