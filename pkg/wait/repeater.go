package wait

import (
	"context"
	"fmt"
	"time"

	"github.com/devicelab-dev/basil/pkg/core"
	"github.com/devicelab-dev/basil/pkg/metrics"
)

// Action is performed between two evaluations of a Repeater's condition.
type Action func(ctx core.SearchContext) error

// Repeater performs an action until a condition holds. It stops after a
// number of tries or a timeout, whichever was configured.
type Repeater struct {
	input    core.SearchContext
	times    int
	timeout  time.Duration
	interval time.Duration
	ignored  []error
}

// NewRepeater returns an unconfigured repeater on input.
func NewRepeater(input core.SearchContext) Repeater {
	return Repeater{input: input}
}

// Times limits the repeater to n actions.
func (r Repeater) Times(n int) Repeater {
	r.times = n
	return r
}

// Timeout limits the repeater to d.
func (r Repeater) Timeout(d time.Duration) Repeater {
	r.timeout = d
	return r
}

// Every sets the pause before each action.
func (r Repeater) Every(d time.Duration) Repeater {
	r.interval = d
	return r
}

// Ignoring keeps repeating when the action or condition fails with errs.
func (r Repeater) Ignoring(errs ...error) Repeater {
	r.ignored = append(append([]error(nil), r.ignored...), errs...)
	return r
}

func (r Repeater) validate() error {
	switch {
	case r.times <= 0 && r.timeout <= 0:
		return core.ErrIllegalState.WithMessage("Either times or timeout must be set.")
	case r.times > 0 && r.timeout > 0:
		return core.ErrIllegalState.WithMessage("The times and timeout cannot be set at the same time.")
	case r.interval <= 0:
		return core.ErrIllegalState.WithMessage("The interval must be set.")
	}
	return nil
}

func (r Repeater) ignores(err error) bool {
	return Wait{ignored: r.ignored}.ignores(err)
}

// Repeat evaluates cond and, while it does not hold, sleeps and performs
// action. It returns the satisfying value, or core.ErrWaitTimeout once the
// tries or the time are used up.
func Repeat[T any](ctx context.Context, r Repeater, action Action, cond Condition[T]) (T, error) {
	var zero T
	if err := r.validate(); err != nil {
		return zero, err
	}

	start := time.Now()
	deadline := start.Add(r.timeout)
	tries := 0
	var last error

	for {
		v, err := cond.Apply(r.input)
		switch {
		case err == nil && !isZero(v):
			metrics.ObserveWait(cond.String(), metrics.OutcomeSatisfied, time.Since(start))
			return v, nil
		case err != nil && !r.ignores(err):
			return zero, err
		case err != nil:
			last = err
		}

		if (r.times > 0 && tries >= r.times) || (r.timeout > 0 && !time.Now().Before(deadline)) {
			metrics.ObserveWait(cond.String(), metrics.OutcomeTimeout, time.Since(start))
			msg := fmt.Sprintf("Expected condition failed: %s (tried %d times with %s interval)", cond, tries, r.interval)
			timeout := core.ErrWaitTimeout.WithMessage(msg)
			if last != nil {
				timeout = timeout.WithCause(last)
			}
			return zero, timeout
		}

		if err := sleep(ctx, r.interval); err != nil {
			return zero, err
		}
		tries++
		if err := action(r.input); err != nil {
			if !r.ignores(err) {
				return zero, err
			}
			last = err
		}
	}
}
