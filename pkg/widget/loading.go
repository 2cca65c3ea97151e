package widget

import (
	"context"
	"time"

	"github.com/devicelab-dev/basil/pkg/by"
	"github.com/devicelab-dev/basil/pkg/core"
	"github.com/devicelab-dev/basil/pkg/wait"
)

// LoadingStatus is the state of a loading indicator.
type LoadingStatus int

const (
	// LoadingUnavailable means the indicator is not in the document yet.
	LoadingUnavailable LoadingStatus = iota
	// LoadingIdle means the indicator is present but hidden.
	LoadingIdle
	// LoadingInProgress means the indicator is displayed.
	LoadingInProgress
)

func (s LoadingStatus) String() string {
	switch s {
	case LoadingIdle:
		return "idle"
	case LoadingInProgress:
		return "in progress"
	}
	return "unavailable"
}

const (
	BeginInterval  = 50 * time.Millisecond
	FinishInterval = 500 * time.Millisecond
)

// Loading tracks a loading indicator, given either by locator or as an
// element.
type Loading struct {
	loc               by.Locator
	el                core.WebElement
	wait              wait.Wait
	unavailableAsIdle bool
	begin, finish     time.Duration
}

// NewLoading tracks the indicator located by loc in sc.
func NewLoading(sc core.SearchContext, loc by.Locator, timeout time.Duration, unavailableAsIdle bool) *Loading {
	return &Loading{
		loc:               loc,
		wait:              wait.New(sc, timeout),
		unavailableAsIdle: unavailableAsIdle,
		begin:             BeginInterval,
		finish:            FinishInterval,
	}
}

// NewLoadingElement tracks el.
func NewLoadingElement(sc core.SearchContext, el core.WebElement, timeout time.Duration) *Loading {
	return &Loading{el: el, wait: wait.New(sc, timeout), begin: BeginInterval, finish: FinishInterval}
}

// SetTimeout changes how long the waits last.
func (l *Loading) SetTimeout(d time.Duration) {
	l.wait = l.wait.WithTimeout(d)
}

// SetIntervals changes the polling of WaitUntilBegin and WaitUntilFinish.
func (l *Loading) SetIntervals(begin, finish time.Duration) {
	l.begin, l.finish = begin, finish
}

// Element returns the indicator once known.
func (l *Loading) Element() core.WebElement { return l.el }

// Status reports the current state of the indicator.
func (l *Loading) Status() (LoadingStatus, error) {
	if l.el == nil {
		return LoadingUnavailable, nil
	}
	shown, err := l.el.IsDisplayed()
	if err != nil {
		return LoadingUnavailable, err
	}
	if shown {
		return LoadingInProgress, nil
	}
	return LoadingIdle, nil
}

func (l *Loading) unavailable() error {
	return core.NoSuchElement("The loading is unavailable.")
}

// WaitUntilBegin waits for the indicator to show.
func (l *Loading) WaitUntilBegin(ctx context.Context) (core.WebElement, error) {
	w := l.wait.PollingEvery(l.begin)
	status, err := l.Status()
	if err != nil {
		return nil, err
	}
	switch status {
	case LoadingUnavailable:
		if !l.unavailableAsIdle || l.loc.IsZero() {
			return nil, l.unavailable()
		}
		el, err := wait.Until(ctx, w, wait.VisibilityOfElementLocated(l.loc))
		if err != nil {
			return nil, err
		}
		l.el = el
		return el, nil
	case LoadingIdle:
		return wait.Until(ctx, w, wait.VisibilityOf(l.el))
	}
	return l.el, nil
}

// WaitUntilFinish waits for the indicator to hide.
func (l *Loading) WaitUntilFinish(ctx context.Context) error {
	_, err := wait.Until(ctx, l.wait.PollingEvery(l.finish), wait.InvisibilityOf(l.el))
	return err
}

// WaitImplicitly waits for the loading to finish only when it is in
// progress, after delay. An unavailable indicator counts as idle when so
// configured.
func (l *Loading) WaitImplicitly(ctx context.Context, delay time.Duration) error {
	status, err := l.Status()
	if err != nil {
		return err
	}
	switch status {
	case LoadingUnavailable:
		if l.unavailableAsIdle {
			return nil
		}
		return l.unavailable()
	case LoadingIdle:
		return nil
	}
	if delay > 0 {
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return l.WaitUntilFinish(ctx)
}

// WaitExplicitly waits for the loading to begin and then to finish.
func (l *Loading) WaitExplicitly(ctx context.Context) error {
	if _, err := l.WaitUntilBegin(ctx); err != nil {
		return err
	}
	return l.WaitUntilFinish(ctx)
}
