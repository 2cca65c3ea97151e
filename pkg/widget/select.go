package widget

import (
	"github.com/devicelab-dev/basil/pkg/by"
	"github.com/devicelab-dev/basil/pkg/core"
	"github.com/devicelab-dev/basil/pkg/interact"
	"github.com/devicelab-dev/basil/pkg/validator"
)

// Option is one choice of a Select.
type Option interface {
	Index() int
	Value() string
}

// Select is a control choosing one Option.
type Select interface {
	SelectOption(opt Option) error
	SelectedOption() (Option, error)
}

type option struct {
	index int
	value string
	text  string
	el    core.WebElement
}

func (o option) Index() int    { return o.index }
func (o option) Value() string { return o.value }
func (o option) Text() string  { return o.text }

// NativeSelect drives a <select> element.
type NativeSelect struct {
	Widget
}

var _ Select = (*NativeSelect)(nil)

// NewNativeSelect wraps el after checking its tag.
func NewNativeSelect(s *interact.Service, el core.WebElement) (*NativeSelect, error) {
	if err := s.Validator().Validate(el, validator.IsTag("select")); err != nil {
		return nil, err
	}
	return &NativeSelect{Widget: New(s, el)}, nil
}

func (s *NativeSelect) options() ([]option, error) {
	els, err := s.el.FindElements(by.TagName("option"))
	if err != nil {
		return nil, err
	}
	out := make([]option, 0, len(els))
	for i, el := range els {
		v, err := el.Attribute("value")
		if err != nil {
			return nil, err
		}
		text, err := el.Text()
		if err != nil {
			return nil, err
		}
		out = append(out, option{index: i, value: v, text: text, el: el})
	}
	return out, nil
}

// Options returns every option in document order.
func (s *NativeSelect) Options() ([]Option, error) {
	opts, err := s.options()
	if err != nil {
		return nil, err
	}
	out := make([]Option, len(opts))
	for i, o := range opts {
		out[i] = o
	}
	return out, nil
}

// SelectByIndex clicks the i-th option.
func (s *NativeSelect) SelectByIndex(i int) error {
	opts, err := s.options()
	if err != nil {
		return err
	}
	if i < 0 || i >= len(opts) {
		return core.NoSuchElement("Cannot locate option with index: %d", i)
	}
	return s.choose(opts[i])
}

// SelectByValue clicks the first option with value v.
func (s *NativeSelect) SelectByValue(v string) error {
	opts, err := s.options()
	if err != nil {
		return err
	}
	for _, o := range opts {
		if o.value == v {
			return s.choose(o)
		}
	}
	return core.NoSuchElement("Cannot locate option with value: %s", v)
}

// SelectOption selects by the option's index.
func (s *NativeSelect) SelectOption(opt Option) error {
	return s.SelectByIndex(opt.Index())
}

func (s *NativeSelect) choose(o option) error {
	selected, err := o.el.IsSelected()
	if err != nil || selected {
		return err
	}
	return o.el.Click()
}

// SelectedOption returns the first selected option.
func (s *NativeSelect) SelectedOption() (Option, error) {
	opts, err := s.options()
	if err != nil {
		return nil, err
	}
	for _, o := range opts {
		ok, err := o.el.IsSelected()
		if err != nil {
			return nil, err
		}
		if ok {
			return o, nil
		}
	}
	return nil, core.NoSuchElement("No options are selected")
}
