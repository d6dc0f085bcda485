// Package steps runs a fixed sequence of side-effecting operations, stopping
// at the first failure and reporting which operation failed.
package steps

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Step is one operation in a sequence.
type Step struct {
	// Name identifies the step in logs and errors, e.g. "enable service".
	Name string

	// Target is the path or unit the step acts on.
	Target string

	// Run performs the step.
	Run func(ctx context.Context) error

	// Undo reverses a completed Run. Optional; only used when the Runner
	// rolls back.
	Undo func(ctx context.Context) error
}

// StepError reports the step that stopped a sequence.
type StepError struct {
	Step   string
	Target string
	Err    error

	// RolledBack is set when compensations ran after the failure.
	RolledBack bool

	// UndoErr joins any errors returned by compensations.
	UndoErr error
}

func (e *StepError) Error() string {
	msg := fmt.Sprintf("step %q", e.Step)
	if e.Target != "" {
		msg += fmt.Sprintf(" (%s)", e.Target)
	}
	msg += " failed: " + e.Err.Error()
	if e.UndoErr != nil {
		msg += "; rollback incomplete: " + e.UndoErr.Error()
	}
	return msg
}

func (e *StepError) Unwrap() error { return e.Err }

// Result lists the steps that completed, in order.
type Result struct {
	Completed []string
}

// Runner executes step sequences.
type Runner struct {
	logger   *slog.Logger
	timeout  time.Duration
	rollback bool
}

// Option configures a Runner.
type Option func(*Runner)

// WithTimeout bounds each step's Run and Undo. Zero means no bound.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) { r.timeout = d }
}

// WithRollback makes the Runner undo completed steps, newest first, when a
// later step fails.
func WithRollback(enabled bool) Option {
	return func(r *Runner) { r.rollback = enabled }
}

// NewRunner returns a Runner that logs through logger.
func NewRunner(logger *slog.Logger, opts ...Option) *Runner {
	r := &Runner{logger: logger}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run executes seq in order. On the first failure it stops, optionally
// rolls back, and returns a *StepError. Steps after the failing one are
// never invoked.
func (r *Runner) Run(ctx context.Context, seq []Step) (Result, error) {
	var res Result
	for i, s := range seq {
		r.logger.Debug("running step", "step", s.Name, "target", s.Target)
		if err := r.call(ctx, s.Run); err != nil {
			r.logger.Error("step failed", "step", s.Name, "target", s.Target, "error", err)
			stepErr := &StepError{Step: s.Name, Target: s.Target, Err: err}
			if r.rollback {
				stepErr.RolledBack = true
				stepErr.UndoErr = r.undo(ctx, seq[:i])
			}
			return res, stepErr
		}
		res.Completed = append(res.Completed, s.Name)
		r.logger.Info("step completed", "step", s.Name, "target", s.Target)
	}
	return res, nil
}

// undo runs compensations for done in reverse. It keeps going past
// failures and returns them joined.
func (r *Runner) undo(ctx context.Context, done []Step) error {
	// A canceled invocation still gets its compensations.
	ctx = context.WithoutCancel(ctx)

	var errs []error
	for i := len(done) - 1; i >= 0; i-- {
		s := done[i]
		if s.Undo == nil {
			continue
		}
		if err := r.call(ctx, s.Undo); err != nil {
			r.logger.Warn("rollback failed", "step", s.Name, "target", s.Target, "error", err)
			errs = append(errs, fmt.Errorf("undo %q: %w", s.Name, err))
			continue
		}
		r.logger.Info("step rolled back", "step", s.Name, "target", s.Target)
	}
	return errors.Join(errs...)
}

func (r *Runner) call(ctx context.Context, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	return fn(ctx)
}
