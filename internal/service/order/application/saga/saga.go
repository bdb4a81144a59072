// Package saga executes an ordered list of steps with compensating actions.
// Compensation order is a structural property of the list: completed steps are
// unwound strictly last-in first-out, so "release before refund" is guaranteed
// by construction rather than by hand-written cleanup code.
package saga

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"orderflow/internal/pkg/logger"
	"orderflow/internal/pkg/metrics"
)

// Step is one unit of forward work and its undo. Compensate may be nil for
// steps with no external side effect.
type Step struct {
	Name       string
	Run        func(ctx context.Context) error
	Compensate func(ctx context.Context) error
}

// StepError reports which step broke the saga. The orchestrator maps the step
// name to a failure state.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("saga step %s failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Runner drives a step list.
type Runner struct {
	tracer trace.Tracer
}

func NewRunner(tracer trace.Tracer) *Runner {
	return &Runner{tracer: tracer}
}

// Execute runs the steps in order. On the first failure it compensates in
// reverse order, starting with the failing step itself: a step that partially
// succeeded may have side effects to undo, and compensations are expected to
// guard against work that never happened. Returns a StepError wrapping the
// original failure; compensation failures are logged, never returned.
func (r *Runner) Execute(ctx context.Context, orderID string, steps []Step) error {
	var completed []Step
	for _, step := range steps {
		stepCtx, span := r.tracer.Start(ctx, "saga."+step.Name)
		err := step.Run(stepCtx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "saga step failed")
			span.End()
			r.compensate(ctx, orderID, append(completed, step))
			return &StepError{Step: step.Name, Err: err}
		}
		span.End()
		completed = append(completed, step)
	}
	return nil
}

// compensate unwinds completed steps LIFO. It runs on a context that survives
// cancellation of the triggering operation: a payment timeout must not also
// abort the cleanup it caused.
func (r *Runner) compensate(ctx context.Context, orderID string, completed []Step) {
	compCtx := context.WithoutCancel(ctx)
	logger.Ctx(ctx).Info().
		Str("order_id", orderID).
		Int("steps", len(completed)).
		Msg("compensating completed saga steps")

	for i := len(completed) - 1; i >= 0; i-- {
		step := completed[i]
		if step.Compensate == nil {
			continue
		}
		stepCtx, span := r.tracer.Start(compCtx, "saga.compensate."+step.Name)
		metrics.Compensations.WithLabelValues(step.Name).Inc()
		if err := step.Compensate(stepCtx); err != nil {
			// Needs operator attention, but must not mask the original error.
			span.RecordError(err)
			logger.Ctx(stepCtx).Error().
				Err(err).
				Str("order_id", orderID).
				Str("step", step.Name).
				Msg("compensation failed")
		}
		span.End()
	}
}
