// Package widget wraps common form controls, loading indicators and tables
// on top of the interaction service.
package widget

import (
	"context"
	"fmt"
	"strings"

	"github.com/devicelab-dev/basil/pkg/aria"
	"github.com/devicelab-dev/basil/pkg/by"
	"github.com/devicelab-dev/basil/pkg/core"
	"github.com/devicelab-dev/basil/pkg/interact"
	"github.com/devicelab-dev/basil/pkg/logger"
	"github.com/devicelab-dev/basil/pkg/validator"
	"github.com/devicelab-dev/basil/pkg/wait"
)

// Widget is a control backed by one element.
type Widget struct {
	el      core.WebElement
	service *interact.Service
}

// New wraps el.
func New(s *interact.Service, el core.WebElement) Widget {
	return Widget{el: el, service: s}
}

// Element returns the backing element.
func (w Widget) Element() core.WebElement { return w.el }

func (w Widget) SendKeys(text string) error { return w.el.SendKeys(text) }
func (w Widget) Clear() error               { return w.el.Clear() }

func (w Widget) Attribute(name string) (string, error) { return w.el.Attribute(name) }
func (w Widget) ID() (string, error)                   { return w.el.Attribute("id") }
func (w Widget) Name() (string, error)                 { return w.el.Attribute("name") }
func (w Widget) Value() (string, error)                { return w.el.Attribute("value") }

// IsDisabled reports whether the element is hidden, disabled or styled as
// disabled.
func (w Widget) IsDisabled() (bool, error) { return w.service.IsDisabled(w.el) }

// HasValue reports whether the value attribute is non-empty.
func (w Widget) HasValue() (bool, error) {
	v, err := w.Value()
	return v != "", err
}

// TextBox is a textual <input>.
type TextBox struct {
	Widget
}

// NewTextBox wraps el after checking it is a textual input.
func NewTextBox(s *interact.Service, el core.WebElement) (*TextBox, error) {
	if err := s.Validator().Validate(el, validator.IsTextualInput()); err != nil {
		return nil, err
	}
	return &TextBox{Widget: New(s, el)}, nil
}

// Input replaces the text once the box is interactible.
func (t *TextBox) Input(ctx context.Context, text string) error {
	return t.service.InputText(ctx, t.el, text)
}

// SetText clears the box and types text without waiting.
func (t *TextBox) SetText(text string) error {
	if err := t.el.Clear(); err != nil {
		return err
	}
	if text == "" {
		return nil
	}
	return t.el.SendKeys(text)
}

// Textarea is a <textarea>.
type Textarea struct {
	TextBox
}

// NewTextarea wraps el after checking its tag.
func NewTextarea(s *interact.Service, el core.WebElement) (*Textarea, error) {
	if err := s.Validator().Validate(el, validator.IsTextarea()); err != nil {
		return nil, err
	}
	return &Textarea{TextBox{Widget: New(s, el)}}, nil
}

// CheckState is the tri-state of a checkbox, plus unavailable.
type CheckState int

const (
	Unavailable CheckState = iota
	Unchecked
	Mixed
	Checked
)

func (s CheckState) String() string {
	switch s {
	case Unchecked:
		return "unchecked"
	case Mixed:
		return "mixed"
	case Checked:
		return "checked"
	}
	return "unavailable"
}

// ParseCheckState reads true/yes, false/no, mixed and unavailable in any
// case.
func ParseCheckState(text string) (CheckState, error) {
	switch strings.ToLower(text) {
	case "true", "yes":
		return Checked, nil
	case "false", "no":
		return Unchecked, nil
	case "mixed":
		return Mixed, nil
	case "unavailable":
		return Unavailable, nil
	}
	return Unavailable, fmt.Errorf("CheckBox.State cannot parse from:%q.", text)
}

// CheckStateFromBool maps true to Checked and false to Unchecked.
func CheckStateFromBool(b bool) CheckState {
	if b {
		return Checked
	}
	return Unchecked
}

// AriaCheckState reads aria-checked from el.
func AriaCheckState(el core.WebElement) (CheckState, error) {
	v, ok, err := el.LookupAttribute(aria.Checked.Name())
	if err != nil || !ok {
		return Unavailable, err
	}
	return ParseCheckState(v)
}

// Verify reports whether the aria attribute of el reads "true".
func Verify(el core.WebElement, attr aria.Attribute) (bool, error) {
	return wait.AttributeValueToPresentInElement(el, attr.Name(), "true").Apply(nil)
}

// AriaOwns clicks associated, which is el itself when nil, and waits for el
// to carry aria-owns. It returns the owned id.
func AriaOwns(ctx context.Context, w wait.Wait, el, associated core.WebElement) (string, error) {
	if associated == nil {
		associated = el
	}
	if err := associated.Click(); err != nil {
		return "", err
	}
	id, err := wait.Until(ctx, w, wait.AttributeValueInElement(el, aria.Owns.Name()))
	if err != nil {
		logger.Warn("cannot retrieve aria-owns from %v", el)
		return "", err
	}
	return id, nil
}

// AriaOwnsElement returns the element whose id AriaOwns reports.
func AriaOwnsElement(ctx context.Context, w wait.Wait, sc core.SearchContext, el, associated core.WebElement) (core.WebElement, error) {
	id, err := AriaOwns(ctx, w, el, associated)
	if err != nil {
		return nil, err
	}
	return sc.FindElement(by.ID(id))
}
