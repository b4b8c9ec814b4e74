// Package checkout asks for permission to modify files before they are
// written.
//
// Hosts under source control usually keep files read-only until they are
// checked out. The reconciliation engine requests one batched checkout for
// every file it is about to write; a cancelled or failed checkout aborts the
// run.
//
// # Strategies
//
// A Strategy decides whether a batch is approved:
//
//	strategy, err := checkout.NewStrategy("interactive", nil)
//	co := checkout.NewFileCheckout(afero.NewOsFs(), strategy)
//	outcome, err := co.RequestEdit(ctx, paths)
package checkout

import (
	"context"
	"fmt"
	"strings"
)

// Outcome is the result of a checkout request.
type Outcome int

const (
	OK Outcome = iota
	Cancelled
	Failed
)

// String returns the outcome name
func (o Outcome) String() string {
	switch o {
	case OK:
		return "ok"
	case Cancelled:
		return "cancelled"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Checkout requests edit permission for a batch of files.
type Checkout interface {
	RequestEdit(ctx context.Context, paths []string) (Outcome, error)
}

// Strategy approves or rejects a batch of files that need checkout.
type Strategy interface {
	Approve(ctx context.Context, paths []string) (bool, error)
}

// Modes accepted by NewStrategy.
const (
	ModeInteractive = "interactive"
	ModeForce       = "force"
	ModeDeny        = "deny"
)

// NewStrategy returns the strategy for mode. preview renders a file's
// pending change for the interactive prompt and may be nil.
func NewStrategy(mode string, preview PreviewFunc) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", ModeInteractive:
		return &InteractiveStrategy{Preview: preview}, nil
	case ModeForce:
		return &ForceStrategy{}, nil
	case ModeDeny:
		return &DenyStrategy{}, nil
	default:
		return nil, fmt.Errorf("unknown checkout mode %q (expected interactive, force or deny)", mode)
	}
}

// ForceStrategy approves every batch without asking.
type ForceStrategy struct{}

// Approve always returns true
func (s *ForceStrategy) Approve(ctx context.Context, paths []string) (bool, error) {
	return true, nil
}

// DenyStrategy rejects every batch, leaving protected files untouched.
type DenyStrategy struct{}

// Approve always returns false
func (s *DenyStrategy) Approve(ctx context.Context, paths []string) (bool, error) {
	return false, nil
}

// Func adapts a function to the Checkout interface.
type Func func(ctx context.Context, paths []string) (Outcome, error)

// RequestEdit calls f.
func (f Func) RequestEdit(ctx context.Context, paths []string) (Outcome, error) {
	return f(ctx, paths)
}

// Always returns a Checkout that answers every request with outcome.
func Always(outcome Outcome) Checkout {
	return Func(func(context.Context, []string) (Outcome, error) {
		return outcome, nil
	})
}
