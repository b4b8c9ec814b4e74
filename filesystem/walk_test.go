package filesystem

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTree(t *testing.T, files ...string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for _, f := range files {
		require.NoError(t, afero.WriteFile(fs, filepath.FromSlash(f), []byte("x"), 0644))
	}
	return fs
}

func TestWalk_IgnoreDefaults(t *testing.T) {
	fs := newTree(t,
		"/sln/App/Foo.tt",
		"/sln/App/bin/Debug/Foo.tt",
		"/sln/App/OBJ/Foo.tt",
		"/sln/.git/config",
		"/sln/App/.hidden.tt",
	)

	var visited []string
	err := Walk(fs, filepath.FromSlash("/sln"), WalkOptions{}, func(path string, info os.FileInfo) error {
		if !info.IsDir() {
			visited = append(visited, filepath.ToSlash(path))
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"/sln/App/Foo.tt"}, visited)
}

func TestWalk_IncludeHidden(t *testing.T) {
	fs := newTree(t, "/sln/.hidden.tt")

	var visited []string
	err := Walk(fs, filepath.FromSlash("/sln"), WalkOptions{IncludeHidden: true}, func(path string, info os.FileInfo) error {
		if !info.IsDir() {
			visited = append(visited, info.Name())
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{".hidden.tt"}, visited)
}

func TestWalk_SkipDir(t *testing.T) {
	fs := newTree(t, "/sln/A/one.tt", "/sln/B/two.tt")

	var visited []string
	err := Walk(fs, filepath.FromSlash("/sln"), WalkOptions{}, func(path string, info os.FileInfo) error {
		if info.IsDir() && info.Name() == "A" {
			return filepath.SkipDir
		}
		if !info.IsDir() {
			visited = append(visited, info.Name())
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"two.tt"}, visited)
}

func TestFindTemplates(t *testing.T) {
	fs := newTree(t,
		"/sln/App/Foo.tt",
		"/sln/App/Models/User.TT",
		"/sln/App/Models/User.cs",
		"/sln/App/Views.tmpl",
		"/sln/App/Skip.include.tt",
		"/sln/App/obj/Gen.tt",
	)

	templates, err := FindTemplates(fs, filepath.FromSlash("/sln"), TemplateOptions{
		Ignore: []string{"*.include.tt"},
	})
	require.NoError(t, err)

	want := []string{"/sln/App/Foo.tt", "/sln/App/Models/User.TT", "/sln/App/Views.tmpl"}
	for i := range want {
		want[i] = filepath.FromSlash(want[i])
	}
	assert.Equal(t, want, templates)
}

func TestFindTemplates_CustomPatterns(t *testing.T) {
	fs := newTree(t, "/sln/a.tt", "/sln/b.gotmpl")

	templates, err := FindTemplates(fs, filepath.FromSlash("/sln"), TemplateOptions{Patterns: []string{"*.gotmpl"}})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.FromSlash("/sln/b.gotmpl")}, templates)
}

func TestFindTemplates_IgnoreByPath(t *testing.T) {
	fs := newTree(t, "/sln/App/Foo.tt", "/sln/Legacy/Old.tt", "/sln/App/Legacy/Keep.tt")

	templates, err := FindTemplates(fs, filepath.FromSlash("/sln"), TemplateOptions{
		Ignore: []string{"Legacy/*.tt"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.FromSlash("/sln/App/Foo.tt"),
		filepath.FromSlash("/sln/App/Legacy/Keep.tt"),
	}, templates)
}

func TestMatch(t *testing.T) {
	assert.True(t, Match([]string{"*.tt"}, "Foo.TT"))
	assert.False(t, Match([]string{"*.tt"}, "Foo.cs"))
	assert.False(t, Match(nil, "Foo.tt"))
}
