package basil

import (
	"strings"
	"sync"

	"github.com/devicelab-dev/basil/pkg/by"
	"github.com/devicelab-dev/basil/pkg/core"
	"github.com/devicelab-dev/basil/pkg/logger"
	"github.com/devicelab-dev/basil/pkg/xpath"
)

// ResolveWhen tells when an Element binds to the DOM.
type ResolveWhen int

const (
	// Initialization binds when the Element is created.
	Initialization ResolveWhen = iota
	// Invocation binds on first use.
	Invocation
)

// ResolveFrom tells what an Element is resolved from.
type ResolveFrom int

const (
	FromBy ResolveFrom = iota
	FromLabel
	FromElement
)

// Element is a lazily located web element. It implements core.WebElement;
// every element method resolves the element first.
type Element struct {
	*Context

	when  ResolveWhen
	from  ResolveFrom
	label string

	resolveMu sync.Mutex
	element   core.WebElement
}

// New returns an element located by loc under parent on first use.
func New(parent *Context, loc by.Locator) *Element {
	e := &Element{when: Invocation, from: FromBy}
	e.Context = NewContext(parent, KindBasilElement, e)
	e.SetLocator(loc)
	return e
}

// NewLabeled returns an element located through the label whose text is
// label. The label's "for" attribute names the element id.
func NewLabeled(parent *Context, label string) *Element {
	e := &Element{when: Invocation, from: FromLabel, label: label}
	e.Context = NewContext(parent, KindBasilElement, e)
	return e
}

// Wrap adopts an element found elsewhere. Its parent is the driver context.
func Wrap(d core.WebDriver, el core.WebElement) *Element {
	return NewResolved(NewDriverContext(d), by.Locator{}, el)
}

// NewResolved returns an element already bound to el. A non-zero loc is
// remembered as the element's locator.
func NewResolved(parent *Context, loc by.Locator, el core.WebElement) *Element {
	e := &Element{when: Initialization, from: FromElement, element: el}
	e.Context = NewContext(parent, KindBasilElement, e)
	if !loc.IsZero() {
		e.SetLocator(loc)
	}
	e.Bind(el)
	return e
}

// When reports when the element binds.
func (e *Element) When() ResolveWhen { return e.when }

// From reports what the element is resolved from.
func (e *Element) From() ResolveFrom { return e.from }

// Resolve binds the element, looking it up through its parent if needed.
func (e *Element) Resolve() error {
	e.resolveMu.Lock()
	defer e.resolveMu.Unlock()

	if e.element != nil {
		return nil
	}

	if e.from == FromLabel {
		if err := e.resolveLabel(); err != nil {
			return err
		}
	}

	loc := e.rawLocator()
	if loc.IsZero() {
		return core.ErrIllegalState.WithMessage("element has no locator to resolve")
	}
	if loc.HasXPath() {
		if xp, err := loc.ToXPath(); err == nil {
			loc = xp
		}
	}

	found, err := e.Parent().FindElement(loc)
	if err != nil {
		return err
	}
	raw, err := core.Unwrap(found)
	if err != nil {
		return err
	}
	e.element = raw
	e.Bind(raw)
	logger.Debug("resolved %s", e.rawLocator())
	return nil
}

func (e *Element) resolveLabel() error {
	if !e.rawLocator().IsZero() {
		return nil
	}
	loc := by.XPath("//*[text()=" + xpath.Literal(e.label) + "]")
	lbl, err := e.Parent().FindElement(loc)
	if err != nil {
		return err
	}
	forID, err := lbl.Attribute("for")
	if err != nil {
		return err
	}
	if forID == "" {
		return core.NoSuchElement("Label %q is not bound to an element.", e.label)
	}
	e.SetLocator(by.ID(forID))
	return nil
}

// Reset unbinds the element so the next use looks it up again. Elements
// without a locator cannot be looked up and stay bound.
func (e *Element) Reset() {
	if !e.HasLocator() {
		return
	}
	e.resolveMu.Lock()
	e.element = nil
	e.resolveMu.Unlock()
	e.Bind(nil)
}

// WrappedElement returns the bound backend element.
func (e *Element) WrappedElement() (core.WebElement, error) {
	if err := e.Resolve(); err != nil {
		return nil, err
	}
	e.resolveMu.Lock()
	defer e.resolveMu.Unlock()
	return e.element, nil
}

func (e *Element) base() (by.Locator, error) {
	if loc := e.rawLocator(); loc.HasXPath() {
		return loc, nil
	}
	return e.ConfidentLocator()
}

// FindElements finds every match below the element.
func (e *Element) FindElements(loc by.Locator) ([]core.WebElement, error) {
	el, err := e.WrappedElement()
	if err != nil {
		return nil, err
	}
	if !loc.HasXPath() {
		return el.FindElements(loc)
	}

	base, err := e.base()
	if err != nil {
		return nil, err
	}
	target, err := base.Concat(loc)
	if err != nil {
		return nil, err
	}
	if !target.IsConfident() {
		if target, err = e.concat(loc); err != nil {
			return nil, err
		}
	}
	return e.driver.FindElements(target)
}

// FindElement returns a lazy element for loc below this element.
func (e *Element) FindElement(loc by.Locator) (core.WebElement, error) {
	return e.Find(loc)
}

// Find is FindElement with a concrete return type.
func (e *Element) Find(loc by.Locator) (*Element, error) {
	if err := e.Resolve(); err != nil {
		return nil, err
	}
	target := loc
	if loc.HasXPath() && !loc.IsConfident() {
		base, err := e.base()
		if err != nil {
			return nil, err
		}
		if target, err = base.Concat(loc); err != nil {
			return nil, err
		}
	}
	if target.IsConfident() {
		return New(e.root, target), nil
	}
	return New(e.Context, loc), nil
}

func (e *Element) Click() error {
	el, err := e.WrappedElement()
	if err != nil {
		return err
	}
	return el.Click()
}

func (e *Element) Clear() error {
	el, err := e.WrappedElement()
	if err != nil {
		return err
	}
	return el.Clear()
}

func (e *Element) SendKeys(text string) error {
	el, err := e.WrappedElement()
	if err != nil {
		return err
	}
	return el.SendKeys(text)
}

func (e *Element) TagName() (string, error) {
	el, err := e.WrappedElement()
	if err != nil {
		return "", err
	}
	return el.TagName()
}

func (e *Element) Text() (string, error) {
	el, err := e.WrappedElement()
	if err != nil {
		return "", err
	}
	return el.Text()
}

func (e *Element) Attribute(name string) (string, error) {
	el, err := e.WrappedElement()
	if err != nil {
		return "", err
	}
	return el.Attribute(name)
}

func (e *Element) LookupAttribute(name string) (string, bool, error) {
	el, err := e.WrappedElement()
	if err != nil {
		return "", false, err
	}
	return el.LookupAttribute(name)
}

func (e *Element) CSSValue(property string) (string, error) {
	el, err := e.WrappedElement()
	if err != nil {
		return "", err
	}
	return el.CSSValue(property)
}

func (e *Element) IsDisplayed() (bool, error) {
	el, err := e.WrappedElement()
	if err != nil {
		return false, err
	}
	return el.IsDisplayed()
}

func (e *Element) IsEnabled() (bool, error) {
	el, err := e.WrappedElement()
	if err != nil {
		return false, err
	}
	return el.IsEnabled()
}

func (e *Element) IsSelected() (bool, error) {
	el, err := e.WrappedElement()
	if err != nil {
		return false, err
	}
	return el.IsSelected()
}

func (e *Element) Rect() (core.Bounds, error) {
	el, err := e.WrappedElement()
	if err != nil {
		return core.Bounds{}, err
	}
	return el.Rect()
}

func (e *Element) Screenshot() ([]byte, error) {
	el, err := e.WrappedElement()
	if err != nil {
		return nil, err
	}
	return el.Screenshot()
}

// HasAttribute reports whether the attribute has a non-empty value.
func (e *Element) HasAttribute(name string) (bool, error) {
	v, err := e.Attribute(name)
	return v != "", err
}

// ID returns the id attribute.
func (e *Element) ID() (string, error) { return e.Attribute("id") }

// HasID reports whether the element carries an id.
func (e *Element) HasID() (bool, error) { return e.HasAttribute("id") }

// Class returns the class attribute.
func (e *Element) Class() (string, error) { return e.Attribute("class") }

// HasClass reports whether the class attribute contains class.
func (e *Element) HasClass(class string) (bool, error) {
	v, err := e.Class()
	return strings.Contains(v, class), err
}

// Title returns the title attribute.
func (e *Element) Title() (string, error) { return e.Attribute("title") }

// HasTitle reports whether the element carries a title.
func (e *Element) HasTitle() (bool, error) { return e.HasAttribute("title") }

// Value returns the value attribute.
func (e *Element) Value() (string, error) { return e.Attribute("value") }

// InnerHTML returns the element's inner HTML.
func (e *Element) InnerHTML() (string, error) { return e.Attribute("innerHTML") }

func (e *Element) String() string {
	if loc := e.rawLocator(); !loc.IsZero() {
		return "Element{" + loc.String() + "}"
	}
	if e.from == FromLabel {
		return "Element{label: " + e.label + "}"
	}
	return "Element{}"
}

var (
	_ core.WebElement = (*Element)(nil)
	_ core.Wrapper    = (*Element)(nil)
	_ Resolver        = (*Element)(nil)
)
