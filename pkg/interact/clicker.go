package interact

import (
	"context"
	"time"

	"github.com/devicelab-dev/basil/pkg/core"
	"github.com/devicelab-dev/basil/pkg/wait"
)

// Clicker is one way of clicking an element.
type Clicker interface {
	Click(ctx context.Context, el core.WebElement) error
}

// ClickerFunc adapts a function into a Clicker.
type ClickerFunc func(ctx context.Context, el core.WebElement) error

func (f ClickerFunc) Click(ctx context.Context, el core.WebElement) error { return f(ctx, el) }

// Native clicks with the element's own click.
var Native = ClickerFunc(func(_ context.Context, el core.WebElement) error {
	return el.Click()
})

// JavaScript clicks through a script.
func (s *Service) JavaScript() Clicker {
	return ClickerFunc(func(_ context.Context, el core.WebElement) error {
		return s.JavaScriptClick(el)
	})
}

// Actions moves the pointer onto el and clicks there.
func (s *Service) Actions() Clicker {
	return ClickerFunc(func(_ context.Context, el core.WebElement) error {
		if err := s.driver.MoveTo(el); err != nil {
			return err
		}
		return s.driver.MouseClick()
	})
}

// ActionsHover hovers el before a native click, for menus that only accept
// clicks while hovered.
func (s *Service) ActionsHover() Clicker {
	return ClickerFunc(func(_ context.Context, el core.WebElement) error {
		if err := s.driver.MoveTo(el); err != nil {
			return err
		}
		return el.Click()
	})
}

// Link clicks through ClickLink.
func (s *Service) Link() Clicker { return ClickerFunc(s.ClickLink) }

// Button clicks through ClickButton.
func (s *Service) Button() Clicker { return ClickerFunc(s.ClickButton) }

// Satisfies clicks with c, then keeps clicking up to eight times, 125ms
// apart, until cond holds.
func Satisfies[T any](c Clicker, cond wait.Condition[T]) Clicker {
	return ClickerFunc(func(ctx context.Context, el core.WebElement) error {
		if err := c.Click(ctx, el); err != nil {
			return err
		}
		r := wait.NewRepeater(nil).Times(8).Every(125 * time.Millisecond).
			Ignoring(core.ErrNotInteractable, core.ErrClickIntercepted)
		_, err := wait.Repeat(ctx, r, func(core.SearchContext) error { return c.Click(ctx, el) }, cond)
		return err
	})
}
