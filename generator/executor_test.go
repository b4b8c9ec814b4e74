package generator_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/c-wilkinson/T4Toolbox/generator"
)

func TestExecute_DryRun(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()

	ops := []generator.Operation{
		&generator.WriteOp{Fs: fs, Path: "/proj/test.txt", Content: []byte("hello")},
	}

	var buf bytes.Buffer
	err := generator.Execute(ctx, ops, generator.ExecuteOptions{DryRun: true, Writer: &buf})
	if err != nil {
		t.Fatalf("dry run failed: %v", err)
	}

	if ok, _ := afero.Exists(fs, "/proj/test.txt"); ok {
		t.Error("dry run created file")
	}
	if !strings.Contains(buf.String(), "[DRY RUN]") {
		t.Errorf("output missing [DRY RUN] marker, got: %s", buf.String())
	}
}

func TestExecute_RealRun(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()

	var done []string
	ops := []generator.Operation{
		&generator.WriteOp{
			Fs:      fs,
			Path:    "/proj/sub/test.txt",
			Content: []byte("hello"),
			Done:    func(p string) { done = append(done, p) },
		},
	}

	if err := generator.Execute(ctx, ops, generator.ExecuteOptions{}); err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	content, err := afero.ReadFile(fs, "/proj/sub/test.txt")
	if err != nil {
		t.Fatalf("file not created: %v", err)
	}
	if string(content) != "hello" {
		t.Errorf("wrong content: got %q, want %q", content, "hello")
	}
	if len(done) != 1 || done[0] != "/proj/sub/test.txt" {
		t.Errorf("Done callback not run, got %v", done)
	}
}

func TestExecute_ValidationStopsEverything(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	if err := fs.MkdirAll("/proj/dir", 0755); err != nil {
		t.Fatal(err)
	}

	ops := []generator.Operation{
		&generator.WriteOp{Fs: fs, Path: "/proj/first.txt", Content: []byte("1")},
		&generator.WriteOp{Fs: fs, Path: "/proj/dir", Content: []byte("2")},
	}

	err := generator.Execute(ctx, ops, generator.ExecuteOptions{})
	if err == nil || !strings.Contains(err.Error(), "validation failed") {
		t.Fatalf("expected validation error, got %v", err)
	}
	if ok, _ := afero.Exists(fs, "/proj/first.txt"); ok {
		t.Error("first operation ran although validation failed")
	}
}

func TestExecute_NilContent(t *testing.T) {
	ops := []generator.Operation{
		&generator.WriteOp{Fs: afero.NewMemMapFs(), Path: "/x.txt"},
	}
	if err := generator.Execute(context.Background(), ops, generator.ExecuteOptions{}); err == nil {
		t.Fatal("expected error for nil content")
	}
}

func TestDeleteOp(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/proj/old.cs", []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	ops := []generator.Operation{
		&generator.DeleteOp{Fs: fs, Path: "/proj/old.cs"},
		&generator.DeleteOp{Fs: fs, Path: "/proj/missing.cs"},
	}
	if err := generator.Execute(ctx, ops, generator.ExecuteOptions{}); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if ok, _ := afero.Exists(fs, "/proj/old.cs"); ok {
		t.Error("file still exists")
	}
}

func TestExecute_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fs := afero.NewMemMapFs()

	ops := []generator.Operation{
		&generator.WriteOp{Fs: fs, Path: "/proj/a.cs", Content: []byte("a")},
	}
	err := generator.Execute(ctx, ops, generator.ExecuteOptions{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if ok, _ := afero.Exists(fs, "/proj/a.cs"); ok {
		t.Error("cancelled run wrote a file")
	}
}
