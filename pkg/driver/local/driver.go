// Package local drives a browser on this machine over the DevTools protocol
// and exposes it as a core.WebDriver.
package local

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"

	"github.com/devicelab-dev/basil/pkg/by"
	"github.com/devicelab-dev/basil/pkg/core"
	"github.com/devicelab-dev/basil/pkg/logger"
	"github.com/devicelab-dev/basil/pkg/xpath"
)

// Options configures how the browser is launched.
type Options struct {
	// Bin is the browser executable. Empty lets the launcher find or
	// download one.
	Bin      string
	Headless bool
	// ControlURL connects to an already running browser instead of
	// launching.
	ControlURL string
	// Timeout bounds each command. Zero means no per-command deadline.
	Timeout time.Duration
}

// Driver implements core.WebDriver on a single page of a local browser.
type Driver struct {
	id       string
	launch   *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	ctx      context.Context
	timeout  time.Duration
	quitOnce bool
}

var _ core.WebDriver = (*Driver)(nil)

// Start launches (or connects to) a browser and opens a blank page.
func Start(ctx context.Context, opts Options) (*Driver, error) {
	d := &Driver{id: uuid.NewString(), ctx: ctx, timeout: opts.Timeout}

	controlURL := opts.ControlURL
	if controlURL == "" {
		d.launch = launcher.New().Headless(opts.Headless)
		if opts.Bin != "" {
			d.launch = d.launch.Bin(opts.Bin)
		}
		u, err := d.launch.Launch()
		if err != nil {
			return nil, core.ErrServerUnreachable.WithMessage("cannot launch browser").WithCause(err)
		}
		controlURL = u
	}

	d.browser = rod.New().ControlURL(controlURL).Context(ctx)
	if err := d.browser.Connect(); err != nil {
		d.cleanup()
		return nil, core.ErrServerUnreachable.WithMessage("cannot connect to browser").WithCause(err)
	}

	page, err := d.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = d.browser.Close()
		d.cleanup()
		return nil, fmt.Errorf("create page: %w", err)
	}
	d.page = page
	logger.Info("local browser session %s started at %s", d.id, controlURL)
	return d, nil
}

func (d *Driver) cleanup() {
	if d.launch != nil {
		d.launch.Kill()
		d.launch.Cleanup()
	}
}

// p returns the page bound to the command deadline.
func (d *Driver) p() *rod.Page {
	page := d.page.Context(d.ctx)
	if d.timeout > 0 {
		page = page.Timeout(d.timeout)
	}
	return page
}

// SessionID implements core.WebDriver. The id is generated per launch.
func (d *Driver) SessionID() string { return d.id }

// Page exposes the underlying page.
func (d *Driver) Page() *rod.Page { return d.page }

func (d *Driver) FindElement(loc by.Locator) (core.WebElement, error) {
	els, err := d.FindElements(loc)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, core.NoSuchElement("Unable to locate element: %s", loc)
	}
	return els[0], nil
}

func (d *Driver) FindElements(loc by.Locator) ([]core.WebElement, error) {
	q, err := query(loc)
	if err != nil {
		return nil, err
	}
	page := d.p()
	var els rod.Elements
	if q.xpath {
		els, err = page.ElementsX(q.value)
	} else {
		els, err = page.Elements(q.value)
	}
	if err != nil {
		return nil, mapError(err)
	}
	return d.wrap(els), nil
}

func (d *Driver) wrap(els rod.Elements) []core.WebElement {
	out := make([]core.WebElement, len(els))
	for i, el := range els {
		out[i] = &Element{driver: d, el: el}
	}
	return out
}

type selector struct {
	xpath bool
	value string
}

// query turns a locator into a CSS selector or an XPath. Link text has no
// selector form and becomes XPath over anchors.
func query(loc by.Locator) (selector, error) {
	switch loc.Strategy {
	case by.StrategyCSSSelector:
		return selector{value: loc.Value}, nil
	case by.StrategyTagName:
		return selector{value: loc.Value}, nil
	case by.StrategyLinkText:
		return selector{xpath: true, value: ".//a[normalize-space(.)=" + xpath.Literal(strings.TrimSpace(loc.Value)) + "]"}, nil
	case by.StrategyPartialLinkText:
		return selector{xpath: true, value: ".//a[contains(., " + xpath.Literal(loc.Value) + ")]"}, nil
	}
	expr, err := loc.XPathValue()
	if err != nil {
		return selector{}, core.ErrInvalidSelector.WithMessagef("unsupported locator %s", loc).WithCause(err)
	}
	return selector{xpath: true, value: expr}, nil
}

// Navigate implements core.WebDriver.
func (d *Driver) Navigate(url string) error {
	page := d.p()
	if err := page.Navigate(url); err != nil {
		return err
	}
	return page.WaitLoad()
}

func (d *Driver) CurrentURL() (string, error) {
	info, err := d.p().Info()
	if err != nil {
		return "", err
	}
	return info.URL, nil
}

func (d *Driver) Title() (string, error) {
	info, err := d.p().Info()
	if err != nil {
		return "", err
	}
	return info.Title, nil
}

func (d *Driver) PageSource() (string, error) { return d.p().HTML() }

func (d *Driver) Screenshot() ([]byte, error) { return d.p().Screenshot(false, nil) }

// ExecuteScript runs script as the body of a function, so it reads its
// arguments from arguments[i] and hands back its result with return.
func (d *Driver) ExecuteScript(script string, args ...interface{}) (interface{}, error) {
	jsArgs := make([]interface{}, len(args))
	for i, a := range args {
		v, err := d.toJS(a)
		if err != nil {
			return nil, err
		}
		jsArgs[i] = v
	}

	page := d.p()
	res, err := page.Evaluate(&rod.EvalOptions{
		JS:     "function() {\n" + script + "\n}",
		JSArgs: jsArgs,
	})
	if err != nil {
		return nil, mapError(err)
	}
	return d.fromJS(page, res)
}

func (d *Driver) toJS(arg interface{}) (interface{}, error) {
	switch v := arg.(type) {
	case core.WebElement:
		el, err := d.elementOf(v)
		if err != nil {
			return nil, err
		}
		return el.el.Object, nil
	case []core.WebElement:
		// arrays of remote objects cannot travel as one argument
		return nil, core.ErrUnsupported.WithMessage("element slices cannot be passed to a local script")
	}
	return arg, nil
}

func (d *Driver) elementOf(el core.WebElement) (*Element, error) {
	raw, err := core.Unwrap(el)
	if err != nil {
		return nil, err
	}
	e, ok := raw.(*Element)
	if !ok {
		return nil, core.ErrInvalidElement.WithMessagef("element %T does not belong to a local browser", raw)
	}
	return e, nil
}

// fromJS converts a remote result. Nodes become elements, arrays made only
// of nodes become element slices and everything else is copied by value.
func (d *Driver) fromJS(page *rod.Page, res *proto.RuntimeRemoteObject) (interface{}, error) {
	switch res.Subtype {
	case proto.RuntimeRemoteObjectSubtypeNode:
		el, err := page.ElementFromObject(res)
		if err != nil {
			return nil, mapError(err)
		}
		return &Element{driver: d, el: el}, nil
	case proto.RuntimeRemoteObjectSubtypeArray:
		nodes, err := page.Evaluate(rod.Eval(`(a) => a.length > 0 && a.every(e => e instanceof Node)`, res))
		if err != nil {
			return nil, mapError(err)
		}
		if nodes.Value.Bool() {
			els, err := page.ElementsByJS(rod.Eval(`(a) => a`, res))
			if err != nil {
				return nil, mapError(err)
			}
			out := make([]interface{}, len(els))
			for i, el := range els {
				out[i] = &Element{driver: d, el: el}
			}
			return out, nil
		}
	}
	if res.Type != proto.RuntimeRemoteObjectTypeObject || res.ObjectID == "" {
		return res.Value.Val(), nil
	}
	byValue, err := page.Evaluate(rod.Eval(`(a) => a`, res))
	if err != nil {
		return nil, mapError(err)
	}
	return byValue.Value.Val(), nil
}

// MoveTo implements core.WebDriver.
func (d *Driver) MoveTo(el core.WebElement) error {
	e, err := d.elementOf(el)
	if err != nil {
		return err
	}
	return mapError(e.handle().Hover())
}

// MouseClick implements core.WebDriver.
func (d *Driver) MouseClick() error {
	return mapError(d.p().Mouse.Click(proto.InputMouseButtonLeft, 1))
}

// SetWindowSize implements core.WebDriver.
func (d *Driver) SetWindowSize(width, height int) error {
	return d.p().SetWindow(&proto.BrowserBounds{
		Width:       &width,
		Height:      &height,
		WindowState: proto.BrowserWindowStateNormal,
	})
}

// MaximizeWindow implements core.WebDriver.
func (d *Driver) MaximizeWindow() error {
	return d.p().SetWindow(&proto.BrowserBounds{WindowState: proto.BrowserWindowStateMaximized})
}

// Quit closes the browser and removes the launcher's profile directory.
func (d *Driver) Quit() error {
	if d.quitOnce {
		return nil
	}
	d.quitOnce = true
	err := d.browser.Close()
	d.cleanup()
	return err
}

// mapError translates DevTools failures into basil errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var (
		covered   *rod.CoveredError
		gone      *rod.ObjectNotFoundError
		blocked   *rod.NotInteractableError
		invisible *rod.InvisibleShapeError
		eval      *rod.EvalError
	)
	switch {
	case errors.As(err, &covered):
		return core.ErrClickIntercepted.WithCause(err)
	case errors.As(err, &blocked), errors.As(err, &invisible):
		return core.ErrNotInteractable.WithCause(err)
	case errors.As(err, &gone), isDetached(err):
		return core.ErrStaleElement.WithCause(err)
	case errors.As(err, &eval):
		return core.ErrScriptFailed.WithMessage(err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return core.ErrTimeout.WithCause(err)
	}
	return err
}

func isDetached(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "Could not find node") ||
		strings.Contains(msg, "Cannot find context with specified id") ||
		strings.Contains(msg, "Node is detached")
}
