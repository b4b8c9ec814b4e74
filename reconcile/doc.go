// Package reconcile converges the disk and the workspace with the outputs
// of one generation run.
//
// A run hands the engine the input file, the path of its primary output and
// the artifacts the renderer produced. The engine:
//
//  1. deletes the artifacts recorded by the previous run that are no longer
//     produced,
//  2. validates where every artifact goes,
//  3. compares the new bytes with what is on disk,
//  4. asks the checkout collaborator to unlock the files about to change,
//  5. writes them,
//  6. waits for the primary output,
//  7. adds every artifact to its container in the workspace,
//  8. records the new manifest.
//
// A failed step stops the run. Nothing is rolled back: a re-run with the
// same outputs converges.
//
// Runs for the same input file are serialized; runs for different inputs
// proceed independently.
package reconcile
