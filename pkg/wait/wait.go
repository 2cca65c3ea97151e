// Package wait polls conditions against a search context until they are
// satisfied or time runs out.
package wait

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/devicelab-dev/basil/pkg/config"
	"github.com/devicelab-dev/basil/pkg/core"
	"github.com/devicelab-dev/basil/pkg/logger"
	"github.com/devicelab-dev/basil/pkg/metrics"
)

// DefaultInterval is the poll interval when none is configured.
const DefaultInterval = 500 * time.Millisecond

// Condition is evaluated against a search context. It is satisfied once it
// returns a non-zero value without error.
type Condition[T any] struct {
	Description string
	Apply       func(ctx core.SearchContext) (T, error)
}

func (c Condition[T]) String() string {
	if c.Description == "" {
		return "condition"
	}
	return c.Description
}

// Wait is an immutable polling configuration. Builder methods return copies.
type Wait struct {
	input    core.SearchContext
	timeout  time.Duration
	interval time.Duration
	ignored  []error
	message  string
}

// New returns a wait on input polling every DefaultInterval. NotFound is
// ignored while polling.
func New(input core.SearchContext, timeout time.Duration) Wait {
	return Wait{
		input:    input,
		timeout:  timeout,
		interval: DefaultInterval,
		ignored:  []error{core.ErrNoSuchElement},
	}
}

// FromConfig builds a wait from the wait section of the configuration.
func FromConfig(input core.SearchContext, cfg config.WaitConfig) Wait {
	w := Wait{input: input, timeout: cfg.Timeout, interval: cfg.Interval}
	if w.interval <= 0 {
		w.interval = DefaultInterval
	}
	if cfg.NotFound != config.NotFoundThrow {
		w.ignored = []error{core.ErrNoSuchElement}
	}
	return w
}

func (w Wait) Input() core.SearchContext { return w.input }
func (w Wait) Timeout() time.Duration    { return w.timeout }
func (w Wait) Interval() time.Duration   { return w.interval }

// On returns a copy waiting on another search context.
func (w Wait) On(input core.SearchContext) Wait {
	w.input = input
	return w
}

// WithTimeout returns a copy with another timeout.
func (w Wait) WithTimeout(d time.Duration) Wait {
	w.timeout = d
	return w
}

// PollingEvery returns a copy with another poll interval.
func (w Wait) PollingEvery(d time.Duration) Wait {
	w.interval = d
	return w
}

// Ignoring returns a copy that also keeps polling on errs.
func (w Wait) Ignoring(errs ...error) Wait {
	w.ignored = append(append([]error(nil), w.ignored...), errs...)
	return w
}

// WithMessage returns a copy whose timeout error starts with msg.
func (w Wait) WithMessage(msg string) Wait {
	w.message = msg
	return w
}

func (w Wait) ignores(err error) bool {
	for _, ign := range w.ignored {
		if errors.Is(err, ign) {
			return true
		}
	}
	return false
}

func (w Wait) timeoutError(desc string, last error) error {
	msg := fmt.Sprintf("Expected condition failed: waiting for %s (tried for %s with %s interval)", desc, w.timeout, w.interval)
	if w.message != "" {
		msg = w.message + ": " + msg
	}
	err := core.ErrWaitTimeout.WithMessage(msg)
	if last != nil {
		err = err.WithCause(last)
	}
	return err
}

// Until polls cond until it returns a non-zero value. Errors the wait does
// not ignore are returned at once. A timeout returns core.ErrWaitTimeout
// carrying the last ignored error.
func Until[T any](ctx context.Context, w Wait, cond Condition[T]) (T, error) {
	var zero T
	start := time.Now()
	deadline := start.Add(w.timeout)
	var last error

	for {
		v, err := cond.Apply(w.input)
		switch {
		case err == nil && !isZero(v):
			metrics.ObserveWait(cond.String(), metrics.OutcomeSatisfied, time.Since(start))
			return v, nil
		case err != nil && !w.ignores(err):
			metrics.ObserveWait(cond.String(), metrics.OutcomeError, time.Since(start))
			return zero, err
		case err != nil:
			last = err
		}

		if !time.Now().Before(deadline) {
			metrics.ObserveWait(cond.String(), metrics.OutcomeTimeout, time.Since(start))
			logger.Debug("wait timed out after %s: %s", time.Since(start), cond)
			return zero, w.timeoutError(cond.String(), last)
		}
		if err := sleep(ctx, w.interval); err != nil {
			return zero, err
		}
	}
}

// Satisfied waits for cond and only reports whether it held in time.
func Satisfied[T any](ctx context.Context, w Wait, cond Condition[T]) bool {
	_, err := Until(ctx, w, cond)
	return err == nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func isZero[T any](v T) bool {
	rv := reflect.ValueOf(&v).Elem()
	if rv.Kind() == reflect.Interface && !rv.IsNil() {
		inner := rv.Elem()
		if inner.Kind() == reflect.Ptr {
			return inner.IsNil()
		}
		return false
	}
	return rv.IsZero()
}
