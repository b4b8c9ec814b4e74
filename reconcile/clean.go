package reconcile

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/c-wilkinson/T4Toolbox/logger"
)

// Clean deletes every output recorded for inputPath, prunes the folders
// they leave empty and clears the manifest. The input and its primary
// output are never recorded, so they are left alone.
func (e *Engine) Clean(ctx context.Context, inputPath string) (*Result, error) {
	res := &Result{RunID: uuid.NewString()}
	if inputPath == "" {
		return res, errors.New("reconcile: input path is required")
	}
	inputPath = filepath.Clean(inputPath)

	unlock := e.locks.Lock(inputPath)
	defer unlock()

	r := &run{
		Engine: e,
		in:     Input{InputPath: inputPath},
		res:    res,
		log:    e.opts.Logger.WithFields(logger.F("run", res.RunID), logger.F("input", inputPath)),
	}

	// With no placements every manifest entry is stale.
	if err := r.deleteStale(ctx); err != nil {
		err = &StepError{Step: StepDelete, Err: err}
		r.log.Error("clean failed", logger.Err(err))
		return res, err
	}
	if err := r.saveManifest(ctx); err != nil {
		err = &StepError{Step: StepManifest, Err: err}
		r.log.Error("clean failed", logger.Err(err))
		return res, err
	}
	r.log.Info("cleaned",
		logger.F("deleted", len(res.Deleted)),
		logger.F("dry_run", e.opts.DryRun))
	return res, nil
}
