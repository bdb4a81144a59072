package saga

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func testRunner() *Runner {
	return NewRunner(otel.Tracer("saga-test"))
}

func TestExecute_AllStepsSucceed(t *testing.T) {
	var trace []string
	step := func(name string) Step {
		return Step{
			Name:       name,
			Run:        func(context.Context) error { trace = append(trace, "run:"+name); return nil },
			Compensate: func(context.Context) error { trace = append(trace, "comp:"+name); return nil },
		}
	}

	err := testRunner().Execute(context.Background(), "ord-1", []Step{step("payment"), step("inventory"), step("shipping")})

	require.NoError(t, err)
	assert.Equal(t, []string{"run:payment", "run:inventory", "run:shipping"}, trace)
}

func TestExecute_CompensatesLIFOIncludingFailingStep(t *testing.T) {
	var trace []string
	boom := errors.New("no capacity")

	steps := []Step{
		{
			Name:       "payment",
			Run:        func(context.Context) error { trace = append(trace, "run:payment"); return nil },
			Compensate: func(context.Context) error { trace = append(trace, "comp:payment"); return nil },
		},
		{
			Name:       "inventory",
			Run:        func(context.Context) error { trace = append(trace, "run:inventory"); return nil },
			Compensate: func(context.Context) error { trace = append(trace, "comp:inventory"); return nil },
		},
		{
			Name:       "shipping",
			Run:        func(context.Context) error { trace = append(trace, "run:shipping"); return boom },
			Compensate: func(context.Context) error { trace = append(trace, "comp:shipping"); return nil },
		},
	}

	err := testRunner().Execute(context.Background(), "ord-1", steps)

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "shipping", stepErr.Step)
	assert.ErrorIs(t, err, boom)

	// the failing step is compensated too, then the completed ones in reverse
	assert.Equal(t, []string{
		"run:payment", "run:inventory", "run:shipping",
		"comp:shipping", "comp:inventory", "comp:payment",
	}, trace)
}

func TestExecute_NilCompensateIsSkipped(t *testing.T) {
	var trace []string

	steps := []Step{
		{
			Name:       "payment",
			Run:        func(context.Context) error { return nil },
			Compensate: func(context.Context) error { trace = append(trace, "comp:payment"); return nil },
		},
		{
			Name: "shipping",
			Run:  func(context.Context) error { return errors.New("rejected") },
		},
	}

	err := testRunner().Execute(context.Background(), "ord-1", steps)

	require.Error(t, err)
	assert.Equal(t, []string{"comp:payment"}, trace)
}

func TestExecute_CompensationFailureDoesNotMaskOriginalError(t *testing.T) {
	boom := errors.New("gateway fault")
	var refundTried bool

	steps := []Step{
		{
			Name:       "payment",
			Run:        func(context.Context) error { return nil },
			Compensate: func(context.Context) error { refundTried = true; return errors.New("refund failed") },
		},
		{
			Name: "inventory",
			Run:  func(context.Context) error { return boom },
		},
	}

	err := testRunner().Execute(context.Background(), "ord-1", steps)

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "inventory", stepErr.Step)
	assert.ErrorIs(t, err, boom)
	assert.True(t, refundTried)
}

func TestExecute_StopsAtFirstFailure(t *testing.T) {
	var shippingRan bool

	steps := []Step{
		{
			Name: "payment",
			Run:  func(context.Context) error { return errors.New("declined") },
		},
		{
			Name: "shipping",
			Run:  func(context.Context) error { shippingRan = true; return nil },
		},
	}

	err := testRunner().Execute(context.Background(), "ord-1", steps)

	require.Error(t, err)
	assert.False(t, shippingRan)
}

func TestExecute_CompensationSurvivesCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var compCtxErr error

	steps := []Step{
		{
			Name: "payment",
			Run:  func(context.Context) error { return nil },
			Compensate: func(compCtx context.Context) error {
				compCtxErr = compCtx.Err()
				return nil
			},
		},
		{
			Name: "inventory",
			Run: func(context.Context) error {
				cancel()
				return ctx.Err()
			},
		},
	}

	err := testRunner().Execute(ctx, "ord-1", steps)

	require.Error(t, err)
	assert.NoError(t, compCtxErr, "compensation context must outlive the cancelled saga context")
}
