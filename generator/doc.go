// Package generator turns templates into registry writes and applies the
// resulting file changes.
//
// # Features
//
//   - Template rendering with helpers that route text into named outputs
//   - File operations with a dry-run executor
//   - Myers line diff for previews
//
// # Rendering
//
// A template writes its inline text to the default output and uses emit to
// send a sub-template to another file:
//
//	{{define "designer"}}// designer part{{end}}
//	// main part
//	{{emit (output "Foo.Designer.cs" | itemType "Compile") "designer" .}}
//
// # Operations
//
// The reconciliation engine expresses writes and deletions as Operations
// and runs them through Execute:
//
//	ops := []generator.Operation{
//	    &generator.WriteOp{Fs: fs, Path: "Foo.cs", Content: data},
//	    &generator.DeleteOp{Fs: fs, Path: "Old.cs"},
//	}
//	err := generator.Execute(ctx, ops, generator.ExecuteOptions{DryRun: true})
//
// Execution is not transactional: when an operation fails, the ones before
// it stay applied. Re-running the generation converges.
package generator
