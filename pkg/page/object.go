// Package page models a region of the UI as a page object: a root element
// located once, a lookup bound to that root, and the elements a test needs.
package page

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/devicelab-dev/basil/pkg/basil"
	"github.com/devicelab-dev/basil/pkg/by"
	"github.com/devicelab-dev/basil/pkg/config"
	"github.com/devicelab-dev/basil/pkg/core"
	"github.com/devicelab-dev/basil/pkg/interact"
	"github.com/devicelab-dev/basil/pkg/logger"
	"github.com/devicelab-dev/basil/pkg/metrics"
	"github.com/devicelab-dev/basil/pkg/wait"
)

// TimerStyle selects how much of the initialization timing is logged.
type TimerStyle int

const (
	Concise TimerStyle = iota
	Verbose
)

// ParseTimerStyle parses "concise" or "verbose", case-insensitively.
func ParseTimerStyle(s string) (TimerStyle, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "concise", "":
		return Concise, nil
	case "verbose":
		return Verbose, nil
	}
	return Concise, fmt.Errorf("unknown timer style %q", s)
}

func (s TimerStyle) String() string {
	if s == Verbose {
		return "verbose"
	}
	return "concise"
}

// Options tune one page object.
type Options struct {
	// Name appears in the timer message. Defaults to "PageObject".
	Name string
	// OnTheFly defers initialization until Initialize or first use.
	OnTheFly bool
	// RegenerateLocator skips the lookup when the locator equals the
	// parent's confident locator.
	RegenerateLocator bool
	// Root presets the root element; it is only waited on.
	Root core.WebElement
	// Elements runs after the root is bound, to set up child elements.
	Elements func(o *Object) error
	// Params are free-form values for the Elements hook.
	Params map[string]string
}

// Object is a page object. It is a basil context rooted at its element.
type Object struct {
	*basil.Context

	cfg     *config.Config
	opts    Options
	id      string
	style   TimerStyle
	service *interact.Service

	mu          sync.Mutex
	initialized bool
	root        core.WebElement
	lookup      *ElementLookup
	token       time.Duration
	elements    time.Duration
}

// New creates a page object located by loc under parent and initializes it
// unless opts.OnTheFly is set.
func New(parent *basil.Context, loc by.Locator, cfg *config.Config, opts Options) (*Object, error) {
	if cfg == nil {
		cfg = config.Defaults()
	}
	if opts.Name == "" {
		opts.Name = "PageObject"
	}
	style, err := ParseTimerStyle(cfg.PageObject.TimerStyle)
	if err != nil {
		logger.Warn("%v, using %s", err, Concise)
	}

	o := &Object{
		cfg:     cfg,
		opts:    opts,
		id:      uuid.NewString()[:8],
		style:   style,
		service: interact.New(parent.Driver(), cfg),
		root:    opts.Root,
	}
	o.Context = basil.NewContext(parent, basil.KindPageObject, o)
	o.SetLocator(loc)

	if opts.OnTheFly {
		return o, nil
	}
	if err := o.construct(); err != nil {
		return nil, err
	}
	return o, nil
}

// Name returns the page object name.
func (o *Object) Name() string { return o.opts.Name }

// Param returns a parameter set through Options.
func (o *Object) Param(key string) string { return o.opts.Params[key] }

// Service returns the interaction service of the session.
func (o *Object) Service() *interact.Service { return o.service }

func (o *Object) construct() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.initialized {
		return nil
	}

	start := time.Now()
	root, err := o.locateRoot()
	if err != nil {
		return err
	}
	raw, err := core.Unwrap(root)
	if err != nil {
		return err
	}
	o.root = root
	o.lookup = NewElementLookup(o.Context, o.pageWait().WithTimeout(o.cfg.PageObject.LocateTimeout), o.cfg.Lookup.Concurrency)
	o.Bind(raw)
	o.initialized = true
	o.token = time.Since(start)
	metrics.ObservePageObject(o.opts.Name, "token", o.token)

	if o.cfg.PageObject.LocateByID && !(o.HasLocator() && o.Locator().IsConfident()) {
		if id, err := root.Attribute("id"); err == nil && id != "" {
			o.SetConfidentLocator(by.ID(id))
		}
	}

	start = time.Now()
	if o.opts.Elements != nil {
		o.mu.Unlock()
		err = o.opts.Elements(o)
		o.mu.Lock()
		if err != nil {
			return err
		}
	}
	o.elements = time.Since(start)
	metrics.ObservePageObject(o.opts.Name, "elements", o.elements)

	logger.Info("%s", o.timerMessage())
	return nil
}

func (o *Object) timerMessage() string {
	total := (o.token + o.elements).Milliseconds()
	msg := fmt.Sprintf("[%s @ %s] initialized in %d ms", o.opts.Name, o.id, total)
	if o.style == Verbose {
		msg += fmt.Sprintf(" (token: %d ms elements: %d ms)", o.token.Milliseconds(), o.elements.Milliseconds())
	}
	return msg
}

// TimerMessage returns the initialization timing line.
func (o *Object) TimerMessage() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.timerMessage()
}

func (o *Object) pageWait() wait.Wait {
	w := wait.FromConfig(o.Parent(), o.cfg.Wait)
	if t := o.cfg.PageObject.WaitTimeout; t > 0 {
		w = w.WithTimeout(t)
	}
	return w
}

func (o *Object) locateRoot() (core.WebElement, error) {
	ctx := context.Background()
	if o.root != nil {
		if _, err := wait.Until(ctx, o.pageWait(), wait.VisibilityOf(o.root)); err != nil {
			return nil, err
		}
		return o.root, nil
	}
	if !o.HasLocator() {
		return nil, core.ErrPageObjectInit.WithMessage("page object has neither a locator nor a root element")
	}

	loc := o.Locator()
	parent := o.Parent()
	lookup := NewElementLookup(parent, o.pageWait().WithTimeout(o.cfg.PageObject.LocateTimeout), o.cfg.Lookup.Concurrency)

	var (
		root core.WebElement
		err  error
	)
	switch {
	case loc.IsConfident():
		root, err = lookup.VisibleElement(loc)
	case loc.IsByXPath() && !parent.IsDriver():
		if el, ok := o.sameAsParent(parent, loc); ok {
			return el, nil
		}
		root, err = lookup.FirstVisibleElement(loc)
	default:
		root, err = lookup.FirstVisibleElement(loc)
	}
	if err != nil {
		if core.IsNotFound(err) || isTimeout(err) {
			return nil, core.NoSuchElement("Cannot locate page object by: %s", loc).WithCause(err)
		}
		return nil, err
	}
	return root, nil
}

// sameAsParent returns the parent's element when loc addresses the parent
// itself.
func (o *Object) sameAsParent(parent *basil.Context, loc by.Locator) (core.WebElement, bool) {
	parentLoc := parent.Locator()
	parentConfident, _ := parent.ConfidentLocator()
	if loc != parentLoc && loc != parentConfident {
		return nil, false
	}
	logger.Error("page object %s uses the locator of its parent: %s", o.opts.Name, loc)
	if loc != parentLoc && !o.opts.RegenerateLocator {
		return nil, false
	}
	sc, err := parent.Bound()
	if err != nil {
		return nil, false
	}
	el, ok := sc.(core.WebElement)
	return el, ok
}

func isTimeout(err error) bool {
	return core.CategoryOf(err) == core.ErrCategoryTimeout
}

// Resolve initializes the page object on first use.
func (o *Object) Resolve() error {
	return o.construct()
}

// Initialize initializes an on-the-fly page object.
func (o *Object) Initialize() error {
	if !o.opts.OnTheFly {
		return core.ErrIllegalState.WithMessage("Only on-the-fly page objects can be initialized explicitly.")
	}
	return o.construct()
}

// IsInitialized reports whether the root element is bound.
func (o *Object) IsInitialized() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.initialized
}

// Root returns the root element, initializing first.
func (o *Object) Root() (core.WebElement, error) {
	if err := o.construct(); err != nil {
		return nil, err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.root, nil
}

// Lookup returns the element lookup bound to the root.
func (o *Object) Lookup() (*ElementLookup, error) {
	if err := o.construct(); err != nil {
		return nil, err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lookup, nil
}

// Find starts a fluent search under the page object.
func (o *Object) Find() Finder {
	return In(o.Context)
}

// Element returns a lazy element located by loc under the page object.
func (o *Object) Element(loc by.Locator) *basil.Element {
	return basil.New(o.Context, loc)
}

// IsEnabled reports whether the root is displayed, enabled and not marked
// disabled by class.
func (o *Object) IsEnabled() (bool, error) {
	root, err := o.Root()
	if err != nil {
		return false, err
	}
	return o.service.IsEnabled(root)
}

// IsDisabled is the negation of IsEnabled.
func (o *Object) IsDisabled() (bool, error) {
	ok, err := o.IsEnabled()
	return !ok, err
}

// WaitUntilVisible waits for the root to be displayed.
func (o *Object) WaitUntilVisible(ctx context.Context) error {
	root, err := o.Root()
	if err != nil {
		return err
	}
	_, err = wait.Until(ctx, o.pageWait(), wait.VisibilityOf(root))
	return err
}

// WaitUntilInvisible waits for the root to be hidden or removed.
func (o *Object) WaitUntilInvisible(ctx context.Context) error {
	root, err := o.Root()
	if err != nil {
		return err
	}
	_, err = wait.Until(ctx, o.pageWait(), wait.InvisibilityOf(root))
	return err
}

// ClickAndExit clicks button until it goes away, then waits for the page
// object to disappear.
func (o *Object) ClickAndExit(ctx context.Context, button core.WebElement) error {
	if err := interact.Pessimistically().Click(ctx, button); err != nil {
		return err
	}
	return o.WaitUntilInvisible(ctx)
}

// NullToNoSuch turns a missing element into a NoSuchElement error.
func NullToNoSuch(el core.WebElement, desc string) (core.WebElement, error) {
	if el == nil {
		return nil, core.NoSuchElement("The %q is not available.", desc)
	}
	return el, nil
}

func (o *Object) String() string {
	if !o.HasLocator() {
		return o.opts.Name + "{root}"
	}
	return fmt.Sprintf("%s{%s}", o.opts.Name, o.Locator())
}
