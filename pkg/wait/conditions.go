package wait

import (
	"fmt"
	"strings"

	"github.com/devicelab-dev/basil/pkg/aria"
	"github.com/devicelab-dev/basil/pkg/by"
	"github.com/devicelab-dev/basil/pkg/core"
)

// Precondition is the state an element must reach before basil interacts
// with it.
type Precondition string

const (
	Present   Precondition = "present"
	Visible   Precondition = "visible"
	Clickable Precondition = "clickable"
)

// ParsePrecondition parses a precondition name, case-insensitively.
func ParsePrecondition(s string) (Precondition, error) {
	switch p := Precondition(strings.ToLower(strings.TrimSpace(s))); p {
	case Present, Visible, Clickable:
		return p, nil
	}
	return "", fmt.Errorf("unknown interactibility precondition %q", s)
}

func describe(format string, args ...interface{}) string {
	return fmt.Sprintf(format, args...)
}

// PresenceOfElementLocated waits for loc to match an element.
func PresenceOfElementLocated(loc by.Locator) Condition[core.WebElement] {
	return Condition[core.WebElement]{
		Description: describe("presence of element located by: %s", loc),
		Apply: func(ctx core.SearchContext) (core.WebElement, error) {
			return ctx.FindElement(loc)
		},
	}
}

// PresenceOf waits for el to be attached to the document.
func PresenceOf(el core.WebElement) Condition[core.WebElement] {
	return Condition[core.WebElement]{
		Description: describe("presence of %v", el),
		Apply: func(core.SearchContext) (core.WebElement, error) {
			if _, err := el.TagName(); err != nil {
				return nil, err
			}
			return el, nil
		},
	}
}

// VisibilityOf waits for el to be displayed.
func VisibilityOf(el core.WebElement) Condition[core.WebElement] {
	return Condition[core.WebElement]{
		Description: describe("visibility of %v", el),
		Apply: func(core.SearchContext) (core.WebElement, error) {
			ok, err := el.IsDisplayed()
			if err != nil || !ok {
				return nil, err
			}
			return el, nil
		},
	}
}

// InvisibilityOf waits for el to be hidden or gone.
func InvisibilityOf(el core.WebElement) Condition[bool] {
	return Condition[bool]{
		Description: describe("invisibility of %v", el),
		Apply: func(core.SearchContext) (bool, error) {
			ok, err := el.IsDisplayed()
			if core.IsNotFound(err) || core.IsStale(err) {
				return true, nil
			}
			return !ok, err
		},
	}
}

// VisibilityOfElementLocated waits for the first match of loc to be
// displayed.
func VisibilityOfElementLocated(loc by.Locator) Condition[core.WebElement] {
	return Condition[core.WebElement]{
		Description: describe("visibility of element located by: %s", loc),
		Apply: func(ctx core.SearchContext) (core.WebElement, error) {
			el, err := ctx.FindElement(loc)
			if err != nil {
				return nil, err
			}
			return VisibilityOf(el).Apply(ctx)
		},
	}
}

// InvisibilityOfElementLocated waits until no match of loc is displayed.
func InvisibilityOfElementLocated(loc by.Locator) Condition[bool] {
	return Condition[bool]{
		Description: describe("invisibility of element located by: %s", loc),
		Apply: func(ctx core.SearchContext) (bool, error) {
			els, err := ctx.FindElements(loc)
			if core.IsNotFound(err) {
				return true, nil
			}
			if err != nil {
				return false, err
			}
			for _, el := range els {
				ok, err := el.IsDisplayed()
				if core.IsStale(err) {
					continue
				}
				if err != nil || ok {
					return false, err
				}
			}
			return true, nil
		},
	}
}

// VisibilityOfFirstVisibleElementLocated waits for any match of loc to be
// displayed and returns the first one that is.
func VisibilityOfFirstVisibleElementLocated(loc by.Locator) Condition[core.WebElement] {
	return Condition[core.WebElement]{
		Description: describe("visibility of the first visible element located by: %s", loc),
		Apply: func(ctx core.SearchContext) (core.WebElement, error) {
			els, err := ctx.FindElements(loc)
			if err != nil {
				return nil, err
			}
			for _, el := range els {
				if ok, err := el.IsDisplayed(); err == nil && ok {
					return el, nil
				}
			}
			return nil, nil
		},
	}
}

// AttributePresentInElement waits for el to carry the attribute.
func AttributePresentInElement(el core.WebElement, attr string) Condition[bool] {
	return Condition[bool]{
		Description: describe("attribute %q to be present in %v", attr, el),
		Apply: func(core.SearchContext) (bool, error) {
			_, ok, err := el.LookupAttribute(attr)
			return ok, err
		},
	}
}

// AttributePresentInElementLocated waits for the first match of loc to carry
// the attribute.
func AttributePresentInElementLocated(loc by.Locator, attr string) Condition[core.WebElement] {
	return located(loc, describe("attribute %q to be present in element located by: %s", attr, loc),
		func(el core.WebElement) (bool, error) {
			return AttributePresentInElement(el, attr).Apply(nil)
		})
}

// AttributeValueInElement waits for a non-empty attribute value and
// returns it.
func AttributeValueInElement(el core.WebElement, attr string) Condition[string] {
	return Condition[string]{
		Description: describe("value of attribute %q in %v", attr, el),
		Apply: func(core.SearchContext) (string, error) {
			return el.Attribute(attr)
		},
	}
}

// AttributeValueToPresentInElement waits for the attribute to contain value.
func AttributeValueToPresentInElement(el core.WebElement, attr, value string) Condition[bool] {
	return Condition[bool]{
		Description: describe("%q to be present in attribute %q of %v", value, attr, el),
		Apply: func(core.SearchContext) (bool, error) {
			v, err := el.Attribute(attr)
			return err == nil && strings.Contains(v, value), err
		},
	}
}

// AttributeValueToPresentInElementLocated is AttributeValueToPresentInElement
// for the first match of loc.
func AttributeValueToPresentInElementLocated(loc by.Locator, attr, value string) Condition[core.WebElement] {
	return located(loc, describe("%q to be present in attribute %q of element located by: %s", value, attr, loc),
		func(el core.WebElement) (bool, error) {
			return AttributeValueToPresentInElement(el, attr, value).Apply(nil)
		})
}

// AttributeValueToAbsentInElement waits for the attribute to stop
// containing value.
func AttributeValueToAbsentInElement(el core.WebElement, attr, value string) Condition[bool] {
	return Condition[bool]{
		Description: describe("%q to be absent in attribute %q of %v", value, attr, el),
		Apply: func(core.SearchContext) (bool, error) {
			v, err := el.Attribute(attr)
			return err == nil && !strings.Contains(v, value), err
		},
	}
}

// AttributeValueToAbsentInElementLocated is AttributeValueToAbsentInElement
// for the first match of loc.
func AttributeValueToAbsentInElementLocated(loc by.Locator, attr, value string) Condition[core.WebElement] {
	return located(loc, describe("%q to be absent in attribute %q of element located by: %s", value, attr, loc),
		func(el core.WebElement) (bool, error) {
			return AttributeValueToAbsentInElement(el, attr, value).Apply(nil)
		})
}

func located(loc by.Locator, desc string, check func(core.WebElement) (bool, error)) Condition[core.WebElement] {
	return Condition[core.WebElement]{
		Description: desc,
		Apply: func(ctx core.SearchContext) (core.WebElement, error) {
			el, err := ctx.FindElement(loc)
			if err != nil {
				return nil, err
			}
			ok, err := check(el)
			if err != nil || !ok {
				return nil, err
			}
			return el, nil
		},
	}
}

// TextToPresentInElement waits for the visible text to contain text.
func TextToPresentInElement(el core.WebElement, text string) Condition[bool] {
	return Condition[bool]{
		Description: describe("text %q to be present in %v", text, el),
		Apply: func(core.SearchContext) (bool, error) {
			v, err := el.Text()
			return err == nil && strings.Contains(v, text), err
		},
	}
}

// TextToAbsentInElement waits for the visible text to stop containing text.
func TextToAbsentInElement(el core.WebElement, text string) Condition[bool] {
	return Condition[bool]{
		Description: describe("text %q to be absent in %v", text, el),
		Apply: func(core.SearchContext) (bool, error) {
			v, err := el.Text()
			return err == nil && !strings.Contains(v, text), err
		},
	}
}

func ariaState(el core.WebElement, attr aria.Attribute, want bool) Condition[bool] {
	return Condition[bool]{
		Description: describe("%s to be %t in %v", attr, want, el),
		Apply: func(core.SearchContext) (bool, error) {
			if !attr.IsState() {
				return false, core.ErrInvalidAttribute.WithMessagef("%s is not an ARIA state", attr)
			}
			v, err := el.Attribute(attr.Name())
			if err != nil {
				return false, err
			}
			if want {
				return v == "true", nil
			}
			return v != "true", nil
		},
	}
}

// AriaStateToBeTrue waits for an aria-* state to read "true".
func AriaStateToBeTrue(el core.WebElement, attr aria.Attribute) Condition[bool] {
	return ariaState(el, attr, true)
}

// AriaStateToBeFalse waits for an aria-* state to be anything but "true".
func AriaStateToBeFalse(el core.WebElement, attr aria.Attribute) Condition[bool] {
	return ariaState(el, attr, false)
}

// ElementToBeClickable waits for el to be displayed and enabled.
func ElementToBeClickable(el core.WebElement) Condition[core.WebElement] {
	return Condition[core.WebElement]{
		Description: describe("element to be clickable: %v", el),
		Apply: func(core.SearchContext) (core.WebElement, error) {
			shown, err := el.IsDisplayed()
			if err != nil || !shown {
				return nil, err
			}
			enabled, err := el.IsEnabled()
			if err != nil || !enabled {
				return nil, err
			}
			return el, nil
		},
	}
}

// ElementToBeInteractible waits for el to reach precondition p. Clickable
// also requires the class to carry no "disabled" marker.
func ElementToBeInteractible(el core.WebElement, p Precondition) Condition[core.WebElement] {
	switch p {
	case Present:
		return PresenceOf(el)
	case Visible:
		return VisibilityOf(el)
	}
	clickable := ElementToBeClickable(el)
	return Condition[core.WebElement]{
		Description: describe("element to be interactible: %v", el),
		Apply: func(ctx core.SearchContext) (core.WebElement, error) {
			found, err := clickable.Apply(ctx)
			if err != nil || found == nil {
				return nil, err
			}
			class, err := el.Attribute("class")
			if err != nil || strings.Contains(class, "isabled") {
				return nil, err
			}
			return el, nil
		},
	}
}

// StalenessOf waits for el to leave the document.
func StalenessOf(el core.WebElement) Condition[bool] {
	return Condition[bool]{
		Description: describe("element to become stale: %v", el),
		Apply: func(core.SearchContext) (bool, error) {
			raw, err := core.Unwrap(el)
			if err != nil {
				return core.IsStale(err), nil
			}
			_, err = raw.IsEnabled()
			return core.IsStale(err), nil
		},
	}
}

// Relocatable is an element that can be looked up again, such as a lazy
// basil element.
type Relocatable interface {
	core.WebElement
	Reset()
}

// ElementToBeStaledThenLocated waits for el to go stale, then for its
// locator to find a replacement.
func ElementToBeStaledThenLocated(el Relocatable) Condition[core.WebElement] {
	stale := StalenessOf(el)
	staled := false
	return Condition[core.WebElement]{
		Description: describe("element to be staled then located: %v", el),
		Apply: func(ctx core.SearchContext) (core.WebElement, error) {
			if !staled {
				ok, _ := stale.Apply(ctx)
				if !ok {
					return nil, nil
				}
				staled = true
				el.Reset()
			}
			if _, err := el.TagName(); err != nil {
				return nil, err
			}
			return el, nil
		},
	}
}

// Holds turns any condition into a boolean one.
func Holds[T any](c Condition[T]) Condition[bool] {
	return Condition[bool]{
		Description: c.Description,
		Apply: func(ctx core.SearchContext) (bool, error) {
			v, err := c.Apply(ctx)
			return err == nil && !isZero(v), err
		},
	}
}

func joined(conds []Condition[bool], sep string) string {
	parts := make([]string, len(conds))
	for i, c := range conds {
		parts[i] = c.String()
	}
	return "(" + strings.Join(parts, sep) + ")"
}

// SatisfiesAll holds when every condition holds.
func SatisfiesAll(conds ...Condition[bool]) Condition[bool] {
	return Condition[bool]{
		Description: joined(conds, " and "),
		Apply: func(ctx core.SearchContext) (bool, error) {
			for _, c := range conds {
				ok, err := c.Apply(ctx)
				if err != nil || !ok {
					return false, err
				}
			}
			return true, nil
		},
	}
}

// SatisfiesOne holds when any condition holds.
func SatisfiesOne(conds ...Condition[bool]) Condition[bool] {
	return Condition[bool]{
		Description: joined(conds, " or "),
		Apply: func(ctx core.SearchContext) (bool, error) {
			var first error
			for _, c := range conds {
				ok, err := c.Apply(ctx)
				if err == nil && ok {
					return true, nil
				}
				if first == nil {
					first = err
				}
			}
			return false, first
		},
	}
}

// SatisfiesNone holds when no condition holds.
func SatisfiesNone(conds ...Condition[bool]) Condition[bool] {
	return Condition[bool]{
		Description: "not " + joined(conds, " or "),
		Apply: func(ctx core.SearchContext) (bool, error) {
			for _, c := range conds {
				ok, err := c.Apply(ctx)
				if err != nil {
					return false, err
				}
				if ok {
					return false, nil
				}
			}
			return true, nil
		},
	}
}
