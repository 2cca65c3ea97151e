package interact

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/devicelab-dev/basil/pkg/core"
	"github.com/devicelab-dev/basil/pkg/wait"
)

// Pessimistic timing: the UI is assumed to react slowly or drop clicks.
const (
	PessimisticTimeout  = 2500 * time.Millisecond
	PessimisticInterval = 125 * time.Millisecond
)

// Pessimist repeats a click until the page shows it took effect.
type Pessimist struct {
	timeout  time.Duration
	interval time.Duration
}

// Pessimistically returns a Pessimist with the default timing.
func Pessimistically() Pessimist {
	return Pessimist{timeout: PessimisticTimeout, interval: PessimisticInterval}
}

// WithTiming returns a copy with other timing.
func (p Pessimist) WithTiming(timeout, interval time.Duration) Pessimist {
	p.timeout, p.interval = timeout, interval
	return p
}

func (p Pessimist) repeater(input core.SearchContext) wait.Repeater {
	return wait.NewRepeater(input).
		Timeout(p.timeout).
		Every(p.interval).
		Ignoring(core.ErrNotInteractable, core.ErrClickIntercepted, core.ErrStaleElement)
}

func clickAction(el core.WebElement) wait.Action {
	return func(core.SearchContext) error { return el.Click() }
}

func clickOnce(el core.WebElement) error {
	err := el.Click()
	if err == nil || errors.Is(err, core.ErrStaleElement) ||
		errors.Is(err, core.ErrNotInteractable) || errors.Is(err, core.ErrClickIntercepted) {
		// the first click may land while the element is going away
		return nil
	}
	return err
}

func unclickable(el core.WebElement) wait.Condition[bool] {
	clickable := wait.ElementToBeClickable(el)
	return wait.Condition[bool]{
		Description: "element to be unclickable",
		Apply: func(ctx core.SearchContext) (bool, error) {
			found, err := clickable.Apply(ctx)
			if core.IsStale(err) || core.IsNotFound(err) {
				return true, nil
			}
			return err == nil && found == nil, err
		},
	}
}

// Click clicks el until it is no longer clickable.
func (p Pessimist) Click(ctx context.Context, el core.WebElement) error {
	if err := clickOnce(el); err != nil {
		return err
	}
	_, err := wait.Repeat(ctx, p.repeater(nil), clickAction(el), unclickable(el))
	return err
}

// ClickAndHasClass clicks el until its class contains class.
func (p Pessimist) ClickAndHasClass(ctx context.Context, el core.WebElement, class string) error {
	if err := clickOnce(el); err != nil {
		return err
	}
	_, err := wait.Repeat(ctx, p.repeater(nil), clickAction(el), hasClass(el, class, true))
	return err
}

// ClickAndHasNoClass clicks el until its class no longer contains class.
func (p Pessimist) ClickAndHasNoClass(ctx context.Context, el core.WebElement, class string) error {
	if err := clickOnce(el); err != nil {
		return err
	}
	_, err := wait.Repeat(ctx, p.repeater(nil), clickAction(el), hasClass(el, class, false))
	return err
}

// ClickGetAttribute clicks el until the attribute has a value and returns it.
func (p Pessimist) ClickGetAttribute(ctx context.Context, el core.WebElement, attr string) (string, error) {
	if err := clickOnce(el); err != nil {
		return "", err
	}
	return wait.Repeat(ctx, p.repeater(nil), clickAction(el), wait.AttributeValueInElement(el, attr))
}

func hasClass(el core.WebElement, class string, want bool) wait.Condition[bool] {
	desc := "class to contain " + class
	if !want {
		desc = "class not to contain " + class
	}
	return wait.Condition[bool]{
		Description: desc,
		Apply: func(core.SearchContext) (bool, error) {
			v, err := el.Attribute("class")
			if err != nil {
				return false, err
			}
			return strings.Contains(v, class) == want, nil
		},
	}
}
