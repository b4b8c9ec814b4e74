package reconcile

import (
	"bytes"
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c-wilkinson/T4Toolbox/artifact"
	"github.com/c-wilkinson/T4Toolbox/checkout"
	"github.com/c-wilkinson/T4Toolbox/logger"
	"github.com/c-wilkinson/T4Toolbox/manifest"
	"github.com/c-wilkinson/T4Toolbox/registry"
	"github.com/c-wilkinson/T4Toolbox/workspace"
)

func p(parts ...string) string {
	return filepath.Join(append([]string{string(filepath.Separator)}, parts...)...)
}

var (
	inputPath   = p("sln", "App", "Foo.tt")
	primaryPath = p("sln", "App", "Foo.cs")
)

// recordingCheckout remembers every batch it was asked for.
type recordingCheckout struct {
	mu      sync.Mutex
	outcome checkout.Outcome
	batches [][]string
}

func (c *recordingCheckout) RequestEdit(_ context.Context, paths []string) (checkout.Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches = append(c.batches, append([]string(nil), paths...))
	return c.outcome, nil
}

type recordingEditor struct {
	reloaded []string
}

func (e *recordingEditor) Reload(path string) {
	e.reloaded = append(e.reloaded, path)
}

type fixture struct {
	fs       afero.Fs
	ws       *workspace.Memory
	project  workspace.Node
	input    workspace.Node
	checkout *recordingCheckout
	editor   *recordingEditor
	engine   *Engine
}

func newFixture(t *testing.T, opts ...func(*Options)) *fixture {
	t.Helper()
	ctx := context.Background()

	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll(p("sln", "App"), 0755))
	require.NoError(t, afero.WriteFile(fs, inputPath, []byte("<#@ template #>"), 0644))
	require.NoError(t, afero.WriteFile(fs, primaryPath, []byte("// primary"), 0644))

	ws := workspace.NewMemory(fs)
	project := ws.AddProject(p("sln", "App", "App.proj"), "Compile", "Content", "None")
	input, err := ws.AddFile(ctx, project, inputPath)
	require.NoError(t, err)

	f := &fixture{
		fs:       fs,
		ws:       ws,
		project:  project,
		input:    input,
		checkout: &recordingCheckout{outcome: checkout.OK},
		editor:   &recordingEditor{},
	}
	o := Options{
		FS:     fs,
		Logger: logger.NewSilentLogger(),
		Editor: f.editor,
	}
	for _, fn := range opts {
		fn(&o)
	}
	f.engine = New(ws, ws, f.checkout, o)
	return f
}

// newOutput builds a descriptor with content.
func newOutput(path, content string) *artifact.Descriptor {
	d := artifact.New(path)
	d.Append(content)
	return d
}

func (f *fixture) run(t *testing.T, outputs ...*artifact.Descriptor) *Result {
	t.Helper()
	res, err := f.engine.Reconcile(context.Background(), Input{
		InputPath:         inputPath,
		DefaultOutputPath: primaryPath,
		Outputs:           append([]*artifact.Descriptor{artifact.New("")}, outputs...),
	})
	require.NoError(t, err)
	return res
}

func (f *fixture) read(t *testing.T, path string) string {
	t.Helper()
	b, err := afero.ReadFile(f.fs, path)
	require.NoError(t, err)
	return string(b)
}

func (f *fixture) exists(path string) bool {
	ok, _ := afero.Exists(f.fs, path)
	return ok
}

func (f *fixture) manifest(t *testing.T) string {
	t.Helper()
	text, err := f.ws.Get(context.Background(), inputPath, manifest.Field)
	require.NoError(t, err)
	return text
}

func TestReconcile_FooScenario(t *testing.T) {
	f := newFixture(t)

	res := f.run(t,
		newOutput("Foo.Generated.cs", "// generated"),
		newOutput("Foo.Designer.cs", "// designer"),
	)

	designer := p("sln", "App", "Foo.Designer.cs")
	generated := p("sln", "App", "Foo.Generated.cs")

	assert.Equal(t, "// designer", f.read(t, designer))
	assert.Equal(t, "// generated", f.read(t, generated))
	assert.ElementsMatch(t, []string{designer, generated}, res.Written)

	for _, path := range []string{designer, generated} {
		info, ok := f.ws.Item(path)
		require.True(t, ok, path)
		assert.Equal(t, inputPath, info.Parent, "nested under the template")
		assert.Empty(t, info.ItemType, "no item type override")
		assert.Equal(t, "Foo.tt", info.Metadata[MetaTemplate])
	}

	assert.Equal(t, "\r\nFoo.Designer.cs\r\nFoo.Generated.cs\r\n", f.manifest(t))
	assert.Equal(t, []string{"Foo.Designer.cs", "Foo.Generated.cs"}, res.Manifest)

	require.Len(t, f.checkout.batches, 1, "one batched checkout")
	assert.ElementsMatch(t, []string{designer, generated}, f.checkout.batches[0])

	primary, ok := f.ws.Item(primaryPath)
	require.True(t, ok, "primary output joins the workspace")
	assert.Equal(t, inputPath, primary.Parent)
	assert.Equal(t, "// primary", f.read(t, primaryPath), "primary output bytes belong to the renderer")

	in, _ := f.ws.Item(inputPath)
	assert.Equal(t, "Foo.cs", in.Metadata[MetaLastGenOutput])

	assert.ElementsMatch(t, []string{designer, generated}, f.editor.reloaded)
	assert.NotEmpty(t, res.RunID)
}

func TestReconcile_Idempotent(t *testing.T) {
	f := newFixture(t)
	outputs := func() []*artifact.Descriptor {
		return []*artifact.Descriptor{newOutput("A.cs", "a"), newOutput("B.cs", "b")}
	}

	first := f.run(t, outputs()...)
	require.Len(t, first.Written, 2)

	second := f.run(t, outputs()...)
	assert.Empty(t, second.Written)
	assert.Len(t, second.Unchanged, 2)
	assert.Len(t, f.checkout.batches, 1, "no checkout when nothing changes")
	assert.Equal(t, "\r\nA.cs\r\nB.cs\r\n", f.manifest(t))
}

func TestReconcile_StaleDeletion(t *testing.T) {
	f := newFixture(t)
	a, b := p("sln", "App", "A.cs"), p("sln", "App", "B.cs")

	f.run(t, newOutput("A.cs", "a"), newOutput("B.cs", "b"))
	require.True(t, f.exists(b))

	res := f.run(t, newOutput("A.cs", "a"))

	assert.Equal(t, []string{b}, res.Deleted)
	assert.False(t, f.exists(b))
	_, ok := f.ws.Item(b)
	assert.False(t, ok)
	assert.True(t, f.exists(a))
	assert.Equal(t, "A.cs", f.manifest(t), "a single entry is stored bare")

	res = f.run(t)
	assert.Equal(t, []string{a}, res.Deleted)
	assert.Empty(t, f.manifest(t))
}

func TestReconcile_StaleDeletionPrunesFolders(t *testing.T) {
	f := newFixture(t)
	gen := p("sln", "App", "Gen")
	deep := p("sln", "App", "Gen", "Sub", "B.cs")

	f.run(t, newOutput("Gen/Sub/B.cs", "b"), newOutput("Gen/Keep.cs", "k"))
	require.True(t, f.exists(deep))
	_, ok := f.ws.Item(p("sln", "App", "Gen", "Sub"))
	require.True(t, ok)

	f.run(t, newOutput("Gen/Keep.cs", "k"))
	assert.False(t, f.exists(deep))
	assert.False(t, f.exists(p("sln", "App", "Gen", "Sub")), "empty folder removed from disk")
	_, ok = f.ws.Item(p("sln", "App", "Gen", "Sub"))
	assert.False(t, ok, "empty folder removed from the workspace")
	_, ok = f.ws.Item(gen)
	assert.True(t, ok, "folder with remaining items is kept")

	f.run(t)
	_, ok = f.ws.Item(gen)
	assert.False(t, ok)
	assert.False(t, f.exists(gen))
	_, ok = f.ws.Item(f.project.Path)
	assert.True(t, ok, "project root is never removed")
}

func TestClean(t *testing.T) {
	ctx := context.Background()

	t.Run("removes outputs and prunes folders", func(t *testing.T) {
		f := newFixture(t)
		gen := p("sln", "App", "Gen")
		f.run(t, newOutput("Gen/Sub/B.cs", "b"), newOutput("A.cs", "a"))

		res, err := f.engine.Clean(ctx, inputPath)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{p("sln", "App", "A.cs"), p("sln", "App", "Gen", "Sub", "B.cs")}, res.Deleted)
		assert.False(t, f.exists(p("sln", "App", "A.cs")))
		assert.False(t, f.exists(gen), "empty folders removed from disk")
		_, ok := f.ws.Item(gen)
		assert.False(t, ok, "empty folders removed from the workspace")
		assert.Empty(t, f.manifest(t))

		assert.True(t, f.exists(primaryPath), "primary output kept")
		_, ok = f.ws.Item(f.project.Path)
		assert.True(t, ok)
	})

	t.Run("dry run", func(t *testing.T) {
		f := newFixture(t)
		f.run(t, newOutput("Gen/B.cs", "b"))
		dry := New(f.ws, f.ws, nil, Options{FS: f.fs, DryRun: true, Logger: logger.NewSilentLogger()})

		res, err := dry.Clean(ctx, inputPath)
		require.NoError(t, err)
		assert.Equal(t, []string{p("sln", "App", "Gen", "B.cs")}, res.Deleted)
		assert.True(t, f.exists(p("sln", "App", "Gen", "B.cs")))
		assert.Equal(t, filepath.Join("Gen", "B.cs"), f.manifest(t))
	})

	t.Run("requires input path", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.engine.Clean(ctx, "")
		assert.Error(t, err)
	})
}

func TestReconcile_PreserveExisting(t *testing.T) {
	f := newFixture(t)
	path := p("sln", "App", "Partial.cs")
	require.NoError(t, afero.WriteFile(f.fs, path, []byte("user edits"), 0644))

	preserved := func() *artifact.Descriptor {
		d := newOutput("Partial.cs", "generated stub")
		d.PreserveExisting = true
		return d
	}

	for i := 0; i < 3; i++ {
		res := f.run(t, preserved(), newOutput("Other.cs", "o"))
		assert.Equal(t, []string{path}, res.Preserved)
		assert.Equal(t, "user edits", f.read(t, path))
		assert.Equal(t, []string{"Other.cs"}, res.Manifest)
	}

	res := f.run(t)
	assert.NotContains(t, res.Deleted, path)
	assert.True(t, f.exists(path), "preserved outputs are never deleted")
}

func TestReconcile_PreserveCreatesMissingFile(t *testing.T) {
	f := newFixture(t)
	d := newOutput("Partial.cs", "stub")
	d.PreserveExisting = true

	res := f.run(t, d)

	assert.Equal(t, []string{p("sln", "App", "Partial.cs")}, res.Written)
	assert.Equal(t, "stub", f.read(t, p("sln", "App", "Partial.cs")))
	assert.Empty(t, res.Manifest)
}

func TestReconcile_CheckoutAborted(t *testing.T) {
	for _, outcome := range []checkout.Outcome{checkout.Cancelled, checkout.Failed} {
		t.Run(outcome.String(), func(t *testing.T) {
			f := newFixture(t)
			f.checkout.outcome = outcome

			res, err := f.engine.Reconcile(context.Background(), Input{
				InputPath: inputPath,
				Outputs:   []*artifact.Descriptor{newOutput("A.cs", "a")},
			})

			require.Error(t, err)
			assert.ErrorIs(t, err, ErrCheckoutAborted)
			var serr *StepError
			require.ErrorAs(t, err, &serr)
			assert.Equal(t, StepCheckout, serr.Step)
			assert.Empty(t, res.Written)
			assert.False(t, f.exists(p("sln", "App", "A.cs")))
			assert.Empty(t, f.manifest(t))
		})
	}
}

func TestReconcile_ProjectRetarget(t *testing.T) {
	f := newFixture(t)
	lib := f.ws.AddProject(p("sln", "Lib", "Lib.proj"), "Compile")
	require.NoError(t, f.fs.MkdirAll(p("sln", "Lib"), 0755))

	d := newOutput("Foo.cs", "lib code")
	d.Project = "../Lib/Lib.proj"
	d.Directory = "Generated"
	d.Properties.ItemType = "Compile"
	d.AddReference("System.Data")

	res := f.run(t, d)

	target := p("sln", "Lib", "Generated", "Foo.cs")
	assert.Equal(t, []string{target}, res.Written)
	assert.Equal(t, "lib code", f.read(t, target))

	info, ok := f.ws.Item(target)
	require.True(t, ok)
	assert.Equal(t, p("sln", "Lib", "Generated"), info.Parent)
	assert.Equal(t, "Compile", info.ItemType)
	assert.Equal(t, lib.Path, info.Project)

	folder, ok := f.ws.Item(p("sln", "Lib", "Generated"))
	require.True(t, ok)
	assert.Equal(t, lib.Path, folder.Parent)

	assert.Equal(t, []string{"System.Data"}, f.ws.References(lib))
	assert.Empty(t, f.ws.References(f.project))
	assert.Equal(t, []string{filepath.Join("..", "Lib", "Generated", "Foo.cs")}, res.Manifest)
}

func TestReconcile_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		output func() *artifact.Descriptor
		want   error
	}{
		{
			name: "outside project directory",
			output: func() *artifact.Descriptor {
				d := newOutput("Foo.cs", "x")
				d.Directory = "../Outside"
				return d
			},
			want: artifact.ErrOutsideProjectDirectory,
		},
		{
			name: "outside target project directory",
			output: func() *artifact.Descriptor {
				d := newOutput("Foo.cs", "x")
				d.Project = "../Lib/Lib.proj"
				d.Directory = "../../Elsewhere"
				return d
			},
			want: artifact.ErrOutsideProjectDirectory,
		},
		{
			name: "unsupported item type",
			output: func() *artifact.Descriptor {
				d := newOutput("Foo.resx", "x")
				d.Properties.ItemType = "EmbeddedResource"
				return d
			},
			want: artifact.ErrUnsupportedItemType,
		},
		{
			name: "missing target project",
			output: func() *artifact.Descriptor {
				d := newOutput("Foo.cs", "x")
				d.Project = "../Missing/Missing.proj"
				return d
			},
			want: artifact.ErrMissingTargetProject,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.ws.AddProject(p("sln", "Lib", "Lib.proj"), "Compile")

			previous := p("sln", "App", "Previous.cs")
			f.run(t, newOutput("Previous.cs", "old"))
			require.True(t, f.exists(previous))
			f.checkout.batches = nil

			res, err := f.engine.Reconcile(context.Background(), Input{
				InputPath:         inputPath,
				DefaultOutputPath: primaryPath,
				Outputs:           []*artifact.Descriptor{newOutput("Ok.cs", "ok"), tt.output()},
			})

			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, artifact.IsValidation(err))
			assert.Empty(t, res.Written)
			assert.False(t, f.exists(p("sln", "App", "Ok.cs")), "nothing is written")
			assert.Empty(t, f.checkout.batches)

			assert.Empty(t, res.Deleted)
			assert.True(t, f.exists(previous), "previous output kept on disk")
			_, ok := f.ws.Item(previous)
			assert.True(t, ok, "previous output kept in the workspace")
			assert.Equal(t, "Previous.cs", f.manifest(t))
		})
	}
}

func TestReconcile_MovesItemToResolvedContainer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	path := p("sln", "App", "Foo.Generated.cs")
	require.NoError(t, afero.WriteFile(f.fs, path, []byte("same"), 0644))
	_, err := f.ws.AddFile(ctx, f.project, path)
	require.NoError(t, err)

	res := f.run(t, newOutput("Foo.Generated.cs", "same"))

	assert.Equal(t, []string{path}, res.Unchanged)
	info, ok := f.ws.Item(path)
	require.True(t, ok)
	assert.Equal(t, inputPath, info.Parent, "moved under the template")
	assert.Equal(t, "same", f.read(t, path), "the file survives the move")

	entries, err := afero.ReadDir(f.fs, p("sln", "App"))
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp", "temporary file cleaned up")
	}
}

func TestReconcile_Properties(t *testing.T) {
	f := newFixture(t)

	d := newOutput("Foo.resx", "<root/>")
	d.Properties.ItemType = "Content"
	d.Properties.CustomTool = "ResXFileCodeGenerator"
	d.Properties.CustomToolNamespace = "App.Resources"
	d.Properties.Set("DependentUpon", "Foo.tt")
	d.AddReference("System.Xml")

	f.run(t, d)

	info, ok := f.ws.Item(p("sln", "App", "Foo.resx"))
	require.True(t, ok)
	assert.Equal(t, "Content", info.ItemType)
	assert.Equal(t, "ResXFileCodeGenerator", info.CustomTool)
	assert.Equal(t, "App.Resources", info.CustomToolNamespace)
	assert.Equal(t, "Foo.tt", info.Metadata["DependentUpon"])
	assert.Equal(t, []string{"System.Xml"}, f.ws.References(f.project))
}

func TestReconcile_DefaultOutputProperties(t *testing.T) {
	f := newFixture(t)
	def := artifact.New("")
	def.Properties.ItemType = "None"

	_, err := f.engine.Reconcile(context.Background(), Input{
		InputPath:         inputPath,
		DefaultOutputPath: primaryPath,
		Outputs:           []*artifact.Descriptor{def},
	})
	require.NoError(t, err)

	info, ok := f.ws.Item(primaryPath)
	require.True(t, ok)
	assert.Equal(t, "None", info.ItemType)
	assert.Empty(t, f.manifest(t))
}

func TestReconcile_Encoding(t *testing.T) {
	f := newFixture(t)
	outputs := func() *artifact.Descriptor {
		d := newOutput("Wide.txt", "hi")
		d.Encoding = "utf-16le"
		return d
	}

	f.run(t, outputs())
	assert.Equal(t, []byte{'h', 0, 'i', 0}, []byte(f.read(t, p("sln", "App", "Wide.txt"))))

	res := f.run(t, outputs())
	assert.Len(t, res.Unchanged, 1)
}

func TestReconcile_DryRun(t *testing.T) {
	var out bytes.Buffer
	f := newFixture(t, func(o *Options) {
		o.DryRun = true
		o.ShowDiff = true
		o.Out = &out
	})
	existing := p("sln", "App", "A.cs")
	require.NoError(t, afero.WriteFile(f.fs, existing, []byte("old\n"), 0644))

	res := f.run(t, newOutput("A.cs", "new\n"), newOutput("B.cs", "b\n"))

	assert.Len(t, res.Written, 2)
	assert.Equal(t, "old\n", f.read(t, existing))
	assert.False(t, f.exists(p("sln", "App", "B.cs")))
	assert.Empty(t, f.manifest(t))
	assert.Empty(t, f.checkout.batches)
	_, ok := f.ws.Item(existing)
	assert.False(t, ok, "workspace untouched")

	assert.Contains(t, out.String(), "[DRY RUN]")
	assert.Contains(t, out.String(), "-old")
	assert.Contains(t, out.String(), "+new")
}

func TestReconcile_Warnings(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.fs.Remove(primaryPath))

	res := f.run(t, artifact.New("Empty.cs"))

	require.Len(t, res.Warnings, 2)
	assert.Contains(t, res.Warnings[0], "Empty.cs")
	assert.Contains(t, res.Warnings[1], "Foo.cs")
	_, ok := f.ws.Item(primaryPath)
	assert.False(t, ok, "missing primary output is not configured")
}

func TestReconcile_CancelledBeforeCheckout(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.engine.Reconcile(ctx, Input{
		InputPath: inputPath,
		Outputs:   []*artifact.Descriptor{newOutput("A.cs", "a")},
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, f.exists(p("sln", "App", "A.cs")))
}

func TestReconcile_InputOutsideWorkspace(t *testing.T) {
	f := newFixture(t)
	loose := p("tmp", "Loose.tt")
	require.NoError(t, afero.WriteFile(f.fs, loose, []byte(""), 0644))

	res, err := f.engine.Reconcile(context.Background(), Input{
		InputPath: loose,
		Outputs:   []*artifact.Descriptor{newOutput("Loose.cs", "x")},
	})

	require.NoError(t, err)
	assert.Equal(t, "x", f.read(t, p("tmp", "Loose.cs")))
	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[len(res.Warnings)-1], "not part of the workspace")
}

func TestReconcile_FromRegistry(t *testing.T) {
	f := newFixture(t)
	var primary bytes.Buffer
	reg := registry.New(&primary)
	require.NoError(t, reg.Write(artifact.New("Foo.Designer.cs"), "partial "))
	require.NoError(t, reg.Write(artifact.New("foo.designer.cs"), "class Foo {}"))

	_, err := f.engine.Reconcile(context.Background(), Input{
		InputPath:         inputPath,
		DefaultOutputPath: primaryPath,
		Outputs:           reg.Outputs(),
	})
	require.NoError(t, err)
	assert.Equal(t, "partial class Foo {}", f.read(t, p("sln", "App", "Foo.Designer.cs")))
}

func TestReconcile_RequiresInputPath(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Reconcile(context.Background(), Input{})
	assert.Error(t, err)
}
