// Package basil binds locators to elements lazily.
//
// A Context is anything elements can be searched from: the driver, a resolved
// element, a lazy Element, or a page object. Each context remembers the
// locator it was created with and, when that locator cannot address the
// element on its own, an XPath generated from the resolved element. Children
// found through a context concatenate onto that confident locator so they can
// be looked up from the driver in a single query.
package basil

import (
	"sync"

	"github.com/devicelab-dev/basil/pkg/by"
	"github.com/devicelab-dev/basil/pkg/core"
	"github.com/devicelab-dev/basil/pkg/logger"
	"github.com/devicelab-dev/basil/pkg/metrics"
)

// Kind tells what a Context stands for.
type Kind int

const (
	KindDriver Kind = iota
	KindElement
	KindBasilElement
	KindPageObject
)

func (k Kind) String() string {
	switch k {
	case KindDriver:
		return "driver"
	case KindElement:
		return "element"
	case KindBasilElement:
		return "basil element"
	case KindPageObject:
		return "page object"
	}
	return "unknown"
}

// Resolver binds a context to its element on demand.
type Resolver interface {
	Resolve() error
}

// Context carries the driver, the bound search context, the parent and the
// locator state of one node in a page model.
type Context struct {
	driver core.WebDriver
	root   *Context
	kind   Kind
	owner  Resolver

	mu        sync.Mutex
	parent    *Context
	search    core.SearchContext
	locator   by.Locator
	confident by.Locator
	generated by.Locator
}

// NewDriverContext returns the root context searching the whole document.
func NewDriverContext(d core.WebDriver) *Context {
	c := &Context{driver: d, kind: KindDriver, search: d}
	c.root = c
	return c
}

// NewContext creates an unbound context below parent. The owner, when not
// nil, is asked to resolve the context before anything needs its element.
func NewContext(parent *Context, kind Kind, owner Resolver) *Context {
	return &Context{
		driver: parent.driver,
		root:   parent.root,
		kind:   kind,
		owner:  owner,
		parent: parent,
	}
}

// NewElementContext wraps an already located element.
func NewElementContext(parent *Context, el core.WebElement) *Context {
	c := NewContext(parent, KindElement, nil)
	c.search = el
	return c
}

// Driver returns the session driver.
func (c *Context) Driver() core.WebDriver { return c.driver }

// DriverContext returns the root context of the session.
func (c *Context) DriverContext() *Context { return c.root }

// Kind reports what the context stands for.
func (c *Context) Kind() Kind { return c.kind }

func (c *Context) IsDriver() bool       { return c.kind == KindDriver }
func (c *Context) IsElement() bool      { return c.kind == KindElement }
func (c *Context) IsBasilElement() bool { return c.kind == KindBasilElement }
func (c *Context) IsPageObject() bool   { return c.kind == KindPageObject }

// Parent returns the parent context, defaulting to the driver context.
func (c *Context) Parent() *Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.parent == nil {
		return c.root
	}
	return c.parent
}

// SetParent moves the context under p.
func (c *Context) SetParent(p *Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.parent = p
}

// SearchContext returns the bound search context, or nil before resolution.
func (c *Context) SearchContext() core.SearchContext {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.search
}

// Bind sets the search context. Binding nil unresolves the context and
// drops the generated locator.
func (c *Context) Bind(sc core.SearchContext) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.search = sc
	if sc == nil {
		c.generated = by.Locator{}
		if !c.locator.IsConfident() {
			c.confident = by.Locator{}
		}
	}
}

// IsResolved reports whether a search context is bound.
func (c *Context) IsResolved() bool {
	return c.SearchContext() != nil
}

// SetLocator sets the locator. A confident locator also becomes the
// confident locator.
func (c *Context) SetLocator(loc by.Locator) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.locator = loc
	if loc.IsConfident() {
		c.confident = loc
	}
}

func (c *Context) rawLocator() by.Locator {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.locator
}

// HasLocator reports whether a locator was set.
func (c *Context) HasLocator() bool {
	return !c.rawLocator().IsZero()
}

// Locator returns the locator the context was created with. When none was
// set it falls back to the confident locator.
func (c *Context) Locator() by.Locator {
	if loc := c.rawLocator(); !loc.IsZero() {
		return loc
	}
	if c.IsDriver() {
		return by.Locator{}
	}
	logger.Warn("%s has no locator, using its confident locator", c.kind)
	loc, err := c.ConfidentLocator()
	if err != nil {
		logger.Error("cannot compute confident locator for %s: %v", c.kind, err)
		return by.Locator{}
	}
	return loc
}

// ConfidentLocator returns the locator when it is confident, otherwise the
// generated locator.
func (c *Context) ConfidentLocator() (by.Locator, error) {
	c.mu.Lock()
	if !c.confident.IsZero() {
		loc := c.confident
		c.mu.Unlock()
		return loc, nil
	}
	c.mu.Unlock()

	loc, err := c.GeneratedLocator()
	if err != nil {
		return by.Locator{}, err
	}
	c.mu.Lock()
	c.confident = loc
	c.mu.Unlock()
	return loc, nil
}

// GeneratedLocator returns an absolute XPath locator for the bound element.
// The driver context generates the empty expression, which every
// concatenation passes through unchanged.
func (c *Context) GeneratedLocator() (by.Locator, error) {
	if c.IsDriver() {
		return by.XPath(""), nil
	}

	c.mu.Lock()
	if !c.generated.IsZero() {
		loc := c.generated
		c.mu.Unlock()
		return loc, nil
	}
	c.mu.Unlock()

	sc, err := c.bound()
	if err != nil {
		return by.Locator{}, err
	}
	el, ok := sc.(core.WebElement)
	if !ok {
		return by.Locator{}, core.ErrIllegalState.WithMessagef("cannot generate a locator for %T", sc)
	}
	expr, err := GenerateXPath(el)
	if err != nil {
		return by.Locator{}, err
	}
	loc := by.XPath(expr)

	c.mu.Lock()
	c.generated = loc
	c.mu.Unlock()
	logger.Debug("generated %s for %s", loc, c.kind)
	return loc, nil
}

// SetConfidentLocator overrides the confident locator, for example with an
// id read from the resolved element.
func (c *Context) SetConfidentLocator(loc by.Locator) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.confident = loc
}

// Bound returns the search context, resolving through the owner first.
func (c *Context) Bound() (core.SearchContext, error) {
	return c.bound()
}

func (c *Context) bound() (core.SearchContext, error) {
	if sc := c.SearchContext(); sc != nil {
		return sc, nil
	}
	if c.owner == nil {
		return nil, core.ErrIllegalState.WithMessagef("%s is not bound to an element", c.kind)
	}
	if err := c.owner.Resolve(); err != nil {
		return nil, err
	}
	if sc := c.SearchContext(); sc != nil {
		return sc, nil
	}
	return nil, core.ErrIllegalState.WithMessagef("%s did not bind after resolution", c.kind)
}

// FindElements finds every element matching loc. Locators expressible as
// XPath are concatenated onto the confident locator and run from the driver.
func (c *Context) FindElements(loc by.Locator) ([]core.WebElement, error) {
	if loc.HasXPath() {
		target, err := c.concat(loc)
		if err != nil {
			return nil, err
		}
		metrics.ObserveLocate(string(target.Strategy))
		return c.driver.FindElements(target)
	}
	sc, err := c.bound()
	if err != nil {
		return nil, err
	}
	return sc.FindElements(loc)
}

// FindElement finds the first element matching loc and returns it as a
// resolved Element.
func (c *Context) FindElement(loc by.Locator) (core.WebElement, error) {
	switch {
	case loc.IsConfident():
		metrics.ObserveLocate(string(loc.Strategy))
		el, err := c.driver.FindElement(loc)
		if err != nil {
			return nil, err
		}
		return NewResolved(c.root, loc, el), nil
	case loc.IsByXPath():
		target, err := c.concat(loc)
		if err != nil {
			return nil, err
		}
		metrics.ObserveLocate(string(target.Strategy))
		el, err := c.driver.FindElement(target)
		if err != nil {
			return nil, err
		}
		return NewResolved(c, loc, el), nil
	}
	sc, err := c.bound()
	if err != nil {
		return nil, err
	}
	el, err := sc.FindElement(loc)
	if err != nil {
		return nil, err
	}
	return NewResolved(c, loc, el), nil
}

// FirstVisibleByXPath returns the first displayed element matching expr.
func (c *Context) FirstVisibleByXPath(expr string) (core.WebElement, error) {
	loc := by.XPath(expr)
	els, err := c.FindElements(loc)
	if err != nil {
		return nil, err
	}
	for _, el := range els {
		if visible, err := el.IsDisplayed(); err == nil && visible {
			return NewResolved(c, loc, el), nil
		}
	}
	desc := loc
	if own := c.rawLocator(); !own.IsZero() {
		if appended, err := own.Append(expr); err == nil {
			desc = appended
		}
	}
	return nil, core.NoSuchElement("No visible elements are found with: %s", desc)
}

func (c *Context) concat(loc by.Locator) (by.Locator, error) {
	confident, err := c.ConfidentLocator()
	if err != nil {
		return by.Locator{}, err
	}
	return confident.Concat(loc)
}
