package validator

import (
	"strings"

	"github.com/devicelab-dev/basil/pkg/core"
)

type rule struct {
	typ string
	fn  func(el core.WebElement) error
}

func (r rule) Type() string                      { return r.typ }
func (r rule) Validate(el core.WebElement) error { return r.fn(el) }

// NewRule adapts a function into a Rule.
func NewRule(typ string, fn func(el core.WebElement) error) Rule {
	return rule{typ: typ, fn: fn}
}

// IsTag requires the element tag to be tag.
func IsTag(tag string) Rule {
	return NewRule("tag", func(el core.WebElement) error {
		got, err := el.TagName()
		if err != nil {
			return err
		}
		if !strings.EqualFold(got, tag) {
			return core.ErrInvalidTagName.WithMessagef("Tag name %q is expected.", tag)
		}
		return nil
	})
}

// HasAttribute requires the attribute to be present.
func HasAttribute(name string) Rule {
	return NewRule("attribute-exists", func(el core.WebElement) error {
		_, ok, err := el.LookupAttribute(name)
		if err != nil {
			return err
		}
		if !ok {
			return core.ErrInvalidAttribute.WithMessagef("Attribute %q is expected.", name)
		}
		return nil
	})
}

// AttributeIs requires the attribute to equal value.
func AttributeIs(name, value string) Rule {
	return NewRule("attribute-is", func(el core.WebElement) error {
		got, err := el.Attribute(name)
		if err != nil {
			return err
		}
		if got != value {
			return core.ErrInvalidAttribute.WithMessagef("Attribute %q is expected to be %q, but it is %q.", name, value, got)
		}
		return nil
	})
}

// HasClass requires the class attribute to contain class.
func HasClass(class string) Rule {
	return NewRule("class-contains", func(el core.WebElement) error {
		got, err := el.Attribute("class")
		if err != nil {
			return err
		}
		if !strings.Contains(got, class) {
			return core.ErrInvalidAttribute.WithMessagef("Class %q is expected.", class)
		}
		return nil
	})
}

// IsInput requires an <input>.
func IsInput() Rule {
	tag := IsTag("input")
	return NewRule("input", tag.Validate)
}

// Input types.
const (
	InputButton   = "button"
	InputCheckbox = "checkbox"
	InputFile     = "file"
	InputNumber   = "number"
	InputPassword = "password"
	InputRadio    = "radio"
	InputReset    = "reset"
	InputSearch   = "search"
	InputSubmit   = "submit"
	InputText     = "text"
)

func inputType(el core.WebElement) (string, error) {
	t, ok, err := el.LookupAttribute("type")
	if err != nil {
		return "", err
	}
	if !ok || t == "" {
		return InputText, nil
	}
	return strings.ToLower(t), nil
}

// IsInputType requires an <input> of the given type. A missing type
// attribute counts as "text".
func IsInputType(typ string) Rule {
	return NewRule("input-type", func(el core.WebElement) error {
		if err := IsTag("input").Validate(el); err != nil {
			return err
		}
		got, err := inputType(el)
		if err != nil {
			return err
		}
		if got != typ {
			return core.ErrInvalidAttribute.WithMessagef("Input type %q is expected, but it is %q.", typ, got)
		}
		return nil
	})
}

func IsButtonInput() Rule   { return IsInputType(InputButton) }
func IsCheckbox() Rule      { return IsInputType(InputCheckbox) }
func IsFileInput() Rule     { return IsInputType(InputFile) }
func IsNumberInput() Rule   { return IsInputType(InputNumber) }
func IsPasswordInput() Rule { return IsInputType(InputPassword) }
func IsRadio() Rule         { return IsInputType(InputRadio) }
func IsResetInput() Rule    { return IsInputType(InputReset) }
func IsSearchInput() Rule   { return IsInputType(InputSearch) }
func IsSubmitInput() Rule   { return IsInputType(InputSubmit) }
func IsTextInput() Rule     { return IsInputType(InputText) }

// IsTextarea requires a <textarea>.
func IsTextarea() Rule {
	tag := IsTag("textarea")
	return NewRule("textarea", tag.Validate)
}

// IsTextualInput accepts a text, number or password <input>, or a
// <textarea>.
func IsTextualInput() Rule {
	return NewRule("textual-input", func(el core.WebElement) error {
		tag, err := el.TagName()
		if err != nil {
			return err
		}
		switch strings.ToLower(tag) {
		case "textarea":
			return nil
		case "input":
			t, err := inputType(el)
			if err != nil {
				return err
			}
			switch t {
			case InputText, InputNumber, InputPassword:
				return nil
			}
			return core.ErrInvalidAttribute.WithMessagef("Input type %q is not textual.", t)
		}
		return core.ErrInvalidTagName.WithMessage(`Tag name "input" or "textarea" is expected.`)
	})
}

// IsButton accepts a <button>, or an <input> of type button, submit or
// reset.
func IsButton() Rule {
	return NewRule("button", func(el core.WebElement) error {
		tag, err := el.TagName()
		if err != nil {
			return err
		}
		switch strings.ToLower(tag) {
		case "button":
			return nil
		case "input":
			t, err := inputType(el)
			if err != nil {
				return err
			}
			switch t {
			case InputButton, InputSubmit, InputReset:
				return nil
			}
		}
		return core.ErrInvalidElement.WithMessage("A button is expected.")
	})
}

// IsLink requires an <a>.
func IsLink() Rule {
	tag := IsTag("a")
	return NewRule("link", tag.Validate)
}

// IsLinkOrLabel accepts an <a> or a <label>.
func IsLinkOrLabel() Rule {
	return NewRule("link-or-label", func(el core.WebElement) error {
		tag, err := el.TagName()
		if err != nil {
			return err
		}
		switch strings.ToLower(tag) {
		case "a", "label":
			return nil
		}
		return core.ErrInvalidTagName.WithMessage(`Tag name "a" or "label" is expected.`)
	})
}
