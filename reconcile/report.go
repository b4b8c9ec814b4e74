package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/c-wilkinson/T4Toolbox/artifact"
)

// ErrCheckoutAborted is returned when the checkout collaborator cancels or
// fails. Nothing has been written when it is returned.
var ErrCheckoutAborted = errors.New("checkout aborted")

// Step names a reconciliation step.
type Step string

const (
	StepProjects  Step = "project map"
	StepDelete    Step = "stale deletion"
	StepValidate  Step = "placement validation"
	StepDetect    Step = "change detection"
	StepCheckout  Step = "checkout"
	StepWrite     Step = "write"
	StepConfigure Step = "workspace configuration"
	StepManifest  Step = "manifest"
)

// StepError records the step a run failed in.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Reporter receives the user-facing messages of a run, attributed to the
// input file.
type Reporter interface {
	Error(input, message string)
	Warning(input, message string)
}

// Report runs Reconcile and routes its outcome to r. Validation errors are
// reported as their message alone; anything else includes the step and the
// run id.
func (e *Engine) Report(ctx context.Context, in Input, r Reporter) (*Result, error) {
	res, err := e.Reconcile(ctx, in)
	if res != nil {
		for _, w := range res.Warnings {
			r.Warning(in.InputPath, w)
		}
	}
	if err != nil {
		r.Error(in.InputPath, describe(res, err))
	}
	return res, err
}

func describe(res *Result, err error) string {
	var verr *artifact.ValidationError
	if errors.As(err, &verr) {
		return verr.Error()
	}
	var perr *artifact.PropertyConflictError
	if errors.As(err, &perr) {
		return perr.Error()
	}

	msg := err.Error()
	var serr *StepError
	if errors.As(err, &serr) {
		msg = fmt.Sprintf("reconciliation failed during %s: %v", serr.Step, serr.Err)
	}
	if res != nil && res.RunID != "" {
		msg += fmt.Sprintf(" (run %s)", res.RunID)
	}
	return msg
}
