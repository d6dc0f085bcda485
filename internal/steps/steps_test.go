package steps

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recorder builds steps that append to a shared call log.
type recorder struct {
	calls []string
}

func (rec *recorder) step(name string, err error) Step {
	return Step{
		Name:   name,
		Target: name + "-target",
		Run: func(context.Context) error {
			rec.calls = append(rec.calls, name)
			return err
		},
		Undo: func(context.Context) error {
			rec.calls = append(rec.calls, "undo "+name)
			return nil
		},
	}
}

func TestRunner_AllSucceed(t *testing.T) {
	rec := &recorder{}
	r := NewRunner(testLogger())

	res, err := r.Run(context.Background(), []Step{
		rec.step("a", nil),
		rec.step("b", nil),
		rec.step("c", nil),
	})

	if err != nil {
		t.Fatalf("Run() = %v", err)
	}
	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(res.Completed, want) {
		t.Errorf("Completed = %q, want %q", res.Completed, want)
	}
	if !reflect.DeepEqual(rec.calls, want) {
		t.Errorf("calls = %q, want %q", rec.calls, want)
	}
}

func TestRunner_StopsAtFirstFailure(t *testing.T) {
	rec := &recorder{}
	boom := errors.New("boom")
	r := NewRunner(testLogger())

	res, err := r.Run(context.Background(), []Step{
		rec.step("a", nil),
		rec.step("b", boom),
		rec.step("c", nil),
	})

	if !errors.Is(err, boom) {
		t.Fatalf("Run() = %v, want wrapping boom", err)
	}
	var stepErr *StepError
	if !errors.As(err, &stepErr) {
		t.Fatalf("Run() = %T, want *StepError", err)
	}
	if stepErr.Step != "b" || stepErr.Target != "b-target" {
		t.Errorf("StepError = {%q, %q}, want {b, b-target}", stepErr.Step, stepErr.Target)
	}
	if stepErr.RolledBack {
		t.Error("RolledBack = true without rollback enabled")
	}
	if !reflect.DeepEqual(res.Completed, []string{"a"}) {
		t.Errorf("Completed = %q, want [a]", res.Completed)
	}
	// No step after the failing one runs, and nothing is undone.
	if want := []string{"a", "b"}; !reflect.DeepEqual(rec.calls, want) {
		t.Errorf("calls = %q, want %q", rec.calls, want)
	}
	if !strings.Contains(err.Error(), `step "b" (b-target) failed: boom`) {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestRunner_RollbackReversesCompletedSteps(t *testing.T) {
	rec := &recorder{}
	r := NewRunner(testLogger(), WithRollback(true))

	_, err := r.Run(context.Background(), []Step{
		rec.step("a", nil),
		{Name: "no-undo", Run: func(context.Context) error { rec.calls = append(rec.calls, "no-undo"); return nil }},
		rec.step("b", nil),
		rec.step("c", errors.New("boom")),
		rec.step("d", nil),
	})

	var stepErr *StepError
	if !errors.As(err, &stepErr) {
		t.Fatalf("Run() = %v, want *StepError", err)
	}
	if !stepErr.RolledBack {
		t.Error("RolledBack = false")
	}
	if stepErr.UndoErr != nil {
		t.Errorf("UndoErr = %v", stepErr.UndoErr)
	}
	want := []string{"a", "no-undo", "b", "c", "undo b", "undo a"}
	if !reflect.DeepEqual(rec.calls, want) {
		t.Errorf("calls = %q, want %q", rec.calls, want)
	}
}

func TestRunner_RollbackErrorsAreJoined(t *testing.T) {
	undoErr := errors.New("undo broke")
	var undone []string
	r := NewRunner(testLogger(), WithRollback(true))

	_, err := r.Run(context.Background(), []Step{
		{
			Name: "first",
			Run:  func(context.Context) error { return nil },
			Undo: func(context.Context) error { undone = append(undone, "first"); return nil },
		},
		{
			Name: "second",
			Run:  func(context.Context) error { return nil },
			Undo: func(context.Context) error { undone = append(undone, "second"); return undoErr },
		},
		{Name: "third", Run: func(context.Context) error { return errors.New("boom") }},
	})

	var stepErr *StepError
	if !errors.As(err, &stepErr) {
		t.Fatalf("Run() = %v, want *StepError", err)
	}
	if stepErr.Step != "third" {
		t.Errorf("Step = %q, want third", stepErr.Step)
	}
	if !errors.Is(stepErr.UndoErr, undoErr) {
		t.Errorf("UndoErr = %v, want %v", stepErr.UndoErr, undoErr)
	}
	// Rollback continues past a failing undo.
	if want := []string{"second", "first"}; !reflect.DeepEqual(undone, want) {
		t.Errorf("undone = %q, want %q", undone, want)
	}
	if !strings.Contains(err.Error(), "rollback incomplete") {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestRunner_TimeoutAppliesPerStep(t *testing.T) {
	r := NewRunner(testLogger(), WithTimeout(10*time.Millisecond))

	_, err := r.Run(context.Background(), []Step{{
		Name: "slow",
		Run: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}})

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run() = %v, want context.DeadlineExceeded", err)
	}
}

func TestRunner_ZeroTimeoutLeavesStepsUnbounded(t *testing.T) {
	r := NewRunner(testLogger(), WithTimeout(0))

	_, err := r.Run(context.Background(), []Step{{
		Name: "unbounded",
		Run: func(ctx context.Context) error {
			if _, ok := ctx.Deadline(); ok {
				return errors.New("step context has a deadline")
			}
			return nil
		},
	}})

	if err != nil {
		t.Errorf("Run() = %v", err)
	}
}

func TestRunner_CanceledContextRunsNothing(t *testing.T) {
	rec := &recorder{}
	r := NewRunner(testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Run(ctx, []Step{rec.step("a", nil)})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() = %v, want context.Canceled", err)
	}
	if len(rec.calls) != 0 {
		t.Errorf("calls = %q, want none", rec.calls)
	}
}

func TestRunner_RollbackRunsAfterCancel(t *testing.T) {
	rec := &recorder{}
	r := NewRunner(testLogger(), WithRollback(true))
	ctx, cancel := context.WithCancel(context.Background())

	_, err := r.Run(ctx, []Step{
		rec.step("a", nil),
		{Name: "interrupted", Run: func(context.Context) error {
			cancel()
			return context.Canceled
		}},
	})

	if err == nil {
		t.Fatal("Run() = nil, want error")
	}
	if want := []string{"a", "undo a"}; !reflect.DeepEqual(rec.calls, want) {
		t.Errorf("calls = %q, want %q", rec.calls, want)
	}
}

func TestRunner_EmptySequence(t *testing.T) {
	res, err := NewRunner(testLogger()).Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if len(res.Completed) != 0 {
		t.Errorf("Completed = %q, want none", res.Completed)
	}
}
