package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load("", dir)
	require.NoError(t, err)

	assert.Equal(t, "solution.yml", cfg.Solution)
	assert.Equal(t, ".cs", cfg.DefaultExtension)
	assert.Equal(t, 10*time.Second, cfg.WaitTimeout)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, "interactive", cfg.Checkout.Mode)
	assert.Equal(t, "project", cfg.Metadata.Backend)
	assert.Equal(t, 64, cfg.Cache.Projects)
	assert.Equal(t, []string{"*.tt", "*.tmpl"}, cfg.Templates.Patterns)
	assert.Equal(t, filepath.Join(cfg.Dir, "solution.yml"), cfg.Resolve(cfg.Solution))
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, FileName, `
solution: App.sln.yml
defaultExtension: .txt
waitTimeout: 2s
concurrency: 2
checkout:
  mode: force
metadata:
  backend: badger
  path: meta
templates:
  patterns: ["*.tt"]
  ignore: ["*.include.tt"]
`)

	cfg, err := Load("", dir)
	require.NoError(t, err)

	assert.Equal(t, "App.sln.yml", cfg.Solution)
	assert.Equal(t, ".txt", cfg.DefaultExtension)
	assert.Equal(t, 2*time.Second, cfg.WaitTimeout)
	assert.Equal(t, 2, cfg.Concurrency)
	assert.Equal(t, "force", cfg.Checkout.Mode)
	assert.Equal(t, "badger", cfg.Metadata.Backend)
	assert.Equal(t, filepath.Join(cfg.Dir, "meta"), cfg.Resolve(cfg.Metadata.Path))
	assert.Equal(t, []string{"*.include.tt"}, cfg.Templates.Ignore)
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, FileName, "checkout:\n  mode: force\n")
	t.Setenv("T4OUT_CHECKOUT_MODE", "deny")
	t.Setenv("T4OUT_CONCURRENCY", "8")

	cfg, err := Load("", dir)
	require.NoError(t, err)
	assert.Equal(t, "deny", cfg.Checkout.Mode)
	assert.Equal(t, 8, cfg.Concurrency)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".env", "T4OUT_DEFAULTEXTENSION=.vb\n")
	t.Cleanup(func() { os.Unsetenv("T4OUT_DEFAULTEXTENSION") })

	cfg, err := Load("", dir)
	require.NoError(t, err)
	assert.Equal(t, ".vb", cfg.DefaultExtension)
}

func TestLoad_ExplicitPathMustExist(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yml"), "")
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"unknown checkout mode", "checkout:\n  mode: sometimes\n", "Checkout.Mode must be one of"},
		{"bad extension", "defaultExtension: cs\n", "DefaultExtension"},
		{"zero concurrency", "concurrency: 0\n", "Concurrency"},
		{"unknown backend", "metadata:\n  backend: redis\n", "Metadata.Backend"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, FileName, tt.content)

			_, err := Load("", dir)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
