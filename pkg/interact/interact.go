// Package interact performs validated user actions on elements: clicking
// links and buttons, toggling checkboxes, typing text, and walking the DOM
// with small browser scripts.
package interact

import (
	"context"
	"strings"
	"time"

	"github.com/devicelab-dev/basil/pkg/config"
	"github.com/devicelab-dev/basil/pkg/core"
	"github.com/devicelab-dev/basil/pkg/logger"
	"github.com/devicelab-dev/basil/pkg/validator"
	"github.com/devicelab-dev/basil/pkg/wait"
)

// Service performs actions for one driver session.
type Service struct {
	driver       core.WebDriver
	validator    *validator.Validator
	waitCfg      config.WaitConfig
	latency      time.Duration
	precondition wait.Precondition
}

// New creates a Service from the webElement and wait settings.
func New(d core.WebDriver, cfg *config.Config) *Service {
	if cfg == nil {
		cfg = config.Defaults()
	}
	p, err := wait.ParsePrecondition(cfg.WebElement.InteractibilityCondition)
	if err != nil {
		logger.Warn("%v, using %s", err, wait.Visible)
		p = wait.Visible
	}
	return &Service{
		driver:       d,
		validator:    validator.FromConfig(cfg.WebElement),
		waitCfg:      cfg.Wait,
		latency:      cfg.WebElement.EnableLatency,
		precondition: p,
	}
}

// Driver returns the session driver.
func (s *Service) Driver() core.WebDriver { return s.driver }

// Validator returns the validator configured for the session.
func (s *Service) Validator() *validator.Validator { return s.validator }

// Wait returns the configured polling wait on the driver.
func (s *Service) Wait() wait.Wait {
	return wait.FromConfig(s.driver, s.waitCfg)
}

// IsEnabled reports whether el is displayed, enabled and has no class
// containing "isable". The configured latency is waited first.
func (s *Service) IsEnabled(el core.WebElement) (bool, error) {
	if s.latency > 0 {
		time.Sleep(s.latency)
	}
	shown, err := el.IsDisplayed()
	if err != nil || !shown {
		return false, err
	}
	enabled, err := el.IsEnabled()
	if err != nil || !enabled {
		return false, err
	}
	class, err := el.Attribute("class")
	if err != nil {
		return false, err
	}
	return !strings.Contains(class, "isable"), nil
}

// IsDisabled is the negation of IsEnabled.
func (s *Service) IsDisabled(el core.WebElement) (bool, error) {
	ok, err := s.IsEnabled(el)
	return !ok, err
}

// WaitUntilInteractible waits for el to reach the configured precondition.
func (s *Service) WaitUntilInteractible(ctx context.Context, el core.WebElement) error {
	_, err := wait.Until(ctx, s.Wait(), wait.ElementToBeInteractible(el, s.precondition))
	return err
}

func (s *Service) click(ctx context.Context, el core.WebElement, rules ...validator.Rule) error {
	if err := s.validator.Validate(el, rules...); err != nil {
		return err
	}
	if err := s.WaitUntilInteractible(ctx, el); err != nil {
		return err
	}
	return el.Click()
}

// ClickLink clicks an <a>.
func (s *Service) ClickLink(ctx context.Context, el core.WebElement) error {
	return s.click(ctx, el, validator.IsLink())
}

// ClickButton clicks a button.
func (s *Service) ClickButton(ctx context.Context, el core.WebElement) error {
	return s.click(ctx, el, validator.IsButton())
}

func (s *Service) setSelected(ctx context.Context, el core.WebElement, want bool, rule validator.Rule) error {
	if err := s.validator.Validate(el, rule); err != nil {
		return err
	}
	selected, err := el.IsSelected()
	if err != nil {
		return err
	}
	if selected == want {
		return nil
	}
	if err := s.WaitUntilInteractible(ctx, el); err != nil {
		return err
	}
	return el.Click()
}

// CheckCheckBox checks a checkbox unless it is checked.
func (s *Service) CheckCheckBox(ctx context.Context, el core.WebElement) error {
	return s.setSelected(ctx, el, true, validator.IsCheckbox())
}

// UncheckCheckBox unchecks a checkbox unless it is unchecked.
func (s *Service) UncheckCheckBox(ctx context.Context, el core.WebElement) error {
	return s.setSelected(ctx, el, false, validator.IsCheckbox())
}

// SelectRadioButton selects a radio button unless it is selected.
func (s *Service) SelectRadioButton(ctx context.Context, el core.WebElement) error {
	return s.setSelected(ctx, el, true, validator.IsRadio())
}

// InputText replaces the text of a textual input. An empty text only
// clears it.
func (s *Service) InputText(ctx context.Context, el core.WebElement, text string) error {
	if err := s.validator.Validate(el, validator.IsTextualInput()); err != nil {
		return err
	}
	if err := s.WaitUntilInteractible(ctx, el); err != nil {
		return err
	}
	if err := el.Clear(); err != nil {
		return err
	}
	if text == "" {
		return nil
	}
	return el.SendKeys(text)
}
