package generator

import (
	"bytes"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c-wilkinson/T4Toolbox/artifact"
	"github.com/c-wilkinson/T4Toolbox/registry"
)

const designerTemplate = `{{define "designer"}}partial class {{.Name}} {}{{end}}// {{.Name}}
{{emit (output "Foo.Designer.cs" | itemType "Compile") "designer" .}}{{emitText (output "Foo.Generated.cs" | meta "AutoGen" "True" | reference "System.Data") "generated"}}`

func TestRenderString_RoutesOutputs(t *testing.T) {
	var primary bytes.Buffer
	reg := registry.New(&primary)
	r := NewRenderer(afero.NewMemMapFs())

	err := r.RenderString("Foo.tt", designerTemplate, map[string]any{"Name": "Foo"}, reg)
	require.NoError(t, err)

	assert.Equal(t, "// Foo\n", primary.String())

	designer := reg.Get("Foo.Designer.cs")
	require.NotNil(t, designer)
	assert.Equal(t, "partial class Foo {}", designer.Content())
	assert.Equal(t, "Compile", designer.ItemType())

	generated := reg.Get("Foo.Generated.cs")
	require.NotNil(t, generated)
	assert.Equal(t, "generated", generated.Content())
	v, ok := generated.Properties.Get("AutoGen")
	assert.True(t, ok)
	assert.Equal(t, "True", v)
	assert.Equal(t, []string{"System.Data"}, generated.References())
}

func TestRenderString_DescriptorHelpers(t *testing.T) {
	reg := registry.New(nil)
	r := NewRenderer(afero.NewMemMapFs())

	tmpl := `{{emitText (output "User.cs" | directory "Models" | project "../Lib/Lib.csproj" | encoding "utf-16" | customTool "TextTemplatingFilePreprocessor" | customToolNamespace "Lib" | preserve) "x"}}`
	require.NoError(t, r.RenderString("helpers", tmpl, nil, reg))

	d := reg.Get("Models/User.cs")
	require.NotNil(t, d)
	assert.Equal(t, "Models", d.Directory)
	assert.Equal(t, "../Lib/Lib.csproj", d.Project)
	assert.Equal(t, "utf-16", d.Encoding)
	assert.Equal(t, "TextTemplatingFilePreprocessor", d.Properties.CustomTool)
	assert.Equal(t, "Lib", d.Properties.CustomToolNamespace)
	assert.True(t, d.PreserveExisting)
}

func TestRenderString_ConfigureDefault(t *testing.T) {
	var primary bytes.Buffer
	reg := registry.New(&primary)
	r := NewRenderer(afero.NewMemMapFs())

	tmpl := `before {{configure (output "" | itemType "None")}}after`
	require.NoError(t, r.RenderString("default", tmpl, nil, reg))

	assert.Equal(t, "before after", primary.String())
	assert.Equal(t, "None", reg.Default().ItemType())
}

func TestRenderString_PropertyConflict(t *testing.T) {
	reg := registry.New(nil)
	r := NewRenderer(afero.NewMemMapFs())

	tmpl := `{{emitText (output "A.cs" | itemType "Compile") "1"}}{{emitText (output "a.cs" | itemType "Content") "2"}}`
	err := r.RenderString("conflict", tmpl, nil, reg)

	require.Error(t, err)
	assert.ErrorIs(t, err, artifact.ErrPropertyConflict)
}

func TestRenderString_DefaultMisuse(t *testing.T) {
	reg := registry.New(nil)
	r := NewRenderer(afero.NewMemMapFs())

	err := r.RenderString("misuse", `{{configure (output "" | preserve)}}`, nil, reg)
	assert.ErrorIs(t, err, artifact.ErrDefaultOutputMisuse)
}

func TestRenderString_SyntaxError(t *testing.T) {
	r := NewRenderer(afero.NewMemMapFs())

	err := r.RenderString("bad", "{{ .Name }", nil, registry.New(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse template")
}

func TestRenderString_Caches(t *testing.T) {
	r := NewRenderer(afero.NewMemMapFs())

	require.NoError(t, r.RenderString("cached", "x", nil, registry.New(nil)))
	require.NoError(t, r.RenderString("cached", "ignored", nil, registry.New(nil)))
	assert.Len(t, r.cache, 1)

	r.ClearCache()
	assert.Empty(t, r.cache)
}

func TestRenderFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/proj/Foo.tt", []byte(`{{emitText (output "Foo.cs") (pascalCase .)}}`), 0644))

	reg := registry.New(nil)
	r := NewRenderer(fs)
	require.NoError(t, r.RenderFile("/proj/Foo.tt", "foo_bar", reg))

	d := reg.Get("Foo.cs")
	require.NotNil(t, d)
	assert.Equal(t, "FooBar", d.Content())

	err := r.RenderFile("/proj/Missing.tt", nil, registry.New(nil))
	assert.Error(t, err)
}

func TestRender_ConcurrentRegistries(t *testing.T) {
	r := NewRenderer(afero.NewMemMapFs())

	var wg sync.WaitGroup
	regs := make([]*registry.Registry, 8)
	for i := range regs {
		regs[i] = registry.New(nil)
		wg.Add(1)
		go func(reg *registry.Registry, n int) {
			defer wg.Done()
			_ = r.RenderString("shared", `{{emitText (output "Out.cs") (printf "%d" .)}}`, n, reg)
		}(regs[i], i)
	}
	wg.Wait()

	for i, reg := range regs {
		d := reg.Get("Out.cs")
		require.NotNil(t, d)
		assert.Equal(t, string(rune('0'+i)), d.Content())
	}
}
