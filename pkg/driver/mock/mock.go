// Package mock provides an in-memory DOM driver for testing without a browser.
//
// Elements form a tree rooted at <html>. Lookups by id, name, tag, class and
// link text search that tree. XPath and CSS lookups are answered from locators
// registered with On, which keeps tests explicit about the queries basil sends.
package mock

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/devicelab-dev/basil/pkg/by"
	"github.com/devicelab-dev/basil/pkg/core"
	"github.com/devicelab-dev/basil/pkg/jsengine"
)

// Driver is a mock implementation of core.WebDriver for testing.
type Driver struct {
	// Configuration
	Config Config

	mu        sync.Mutex
	root      *Element
	body      *Element
	registry  map[string][]*Element
	scripts   map[string]ScriptFunc
	engine    *jsengine.Engine
	pointer   *Element
	calls     []string
	url       string
	width     int
	height    int
	maximized bool
	quit      bool
}

// Config configures mock driver behavior.
type Config struct {
	// CallDelay adds artificial delay per find call
	CallDelay time.Duration
	SessionID string
	Title     string
}

// ScriptFunc answers an ExecuteScript call.
type ScriptFunc func(args []interface{}) (interface{}, error)

// New creates a new mock driver with an empty <html><body> document.
func New(cfg Config) *Driver {
	if cfg.SessionID == "" {
		cfg.SessionID = "mock-session"
	}
	d := &Driver{
		Config:   cfg,
		registry: make(map[string][]*Element),
		scripts:  make(map[string]ScriptFunc),
		engine:   jsengine.New(),
		width:    1024,
		height:   768,
	}
	d.body = NewElement("body")
	d.root = NewElement("html").Append(d.body)
	d.root.adopt(d)
	d.engine.SetDocument(d.root)
	return d
}

// Root returns the <html> element.
func (d *Driver) Root() *Element { return d.root }

// Body returns the <body> element.
func (d *Driver) Body() *Element { return d.body }

// On registers the elements returned for loc at driver level.
func (d *Driver) On(loc by.Locator, els ...*Element) *Driver {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, el := range els {
		el.adopt(d)
	}
	d.registry[loc.String()] = els
	return d
}

// HandleScript answers ExecuteScript calls whose body equals script.
func (d *Driver) HandleScript(script string, fn ScriptFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scripts[script] = fn
}

// Calls returns the recorded driver calls, such as "find By.id: login".
func (d *Driver) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

// CallCount counts recorded calls with the given prefix.
func (d *Driver) CallCount(prefix string) int {
	n := 0
	for _, c := range d.Calls() {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func (d *Driver) record(format string, args ...interface{}) {
	d.mu.Lock()
	d.calls = append(d.calls, fmt.Sprintf(format, args...))
	d.mu.Unlock()
}

func (d *Driver) lookup(loc by.Locator) ([]*Element, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	els, ok := d.registry[loc.String()]
	return els, ok
}

// FindElement finds the first element matching loc.
func (d *Driver) FindElement(loc by.Locator) (core.WebElement, error) {
	els, err := d.find(loc)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, notFound(loc)
	}
	return els[0], nil
}

// FindElements finds every element matching loc.
func (d *Driver) FindElements(loc by.Locator) ([]core.WebElement, error) {
	els, err := d.find(loc)
	if err != nil {
		return nil, err
	}
	return toWebElements(els), nil
}

func (d *Driver) find(loc by.Locator) ([]*Element, error) {
	d.record("find %s", loc)
	if d.Config.CallDelay > 0 {
		time.Sleep(d.Config.CallDelay)
	}
	if els, ok := d.lookup(loc); ok {
		return els, nil
	}
	return d.root.search(loc, true)
}

// SessionID returns the configured session id.
func (d *Driver) SessionID() string { return d.Config.SessionID }

// Navigate records the URL.
func (d *Driver) Navigate(url string) error {
	d.record("navigate %s", url)
	d.mu.Lock()
	d.url = url
	d.mu.Unlock()
	return nil
}

// CurrentURL returns the last navigated URL.
func (d *Driver) CurrentURL() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.url, nil
}

// Title returns the configured title.
func (d *Driver) Title() (string, error) { return d.Config.Title, nil }

// PageSource renders the document.
func (d *Driver) PageSource() (string, error) {
	return d.root.OuterHTML(), nil
}

// Screenshot returns a mock PNG image.
func (d *Driver) Screenshot() ([]byte, error) {
	return pngPixel(), nil
}

// ExecuteScript answers from handlers registered with HandleScript, and runs
// everything else in a goja engine against the element tree.
func (d *Driver) ExecuteScript(script string, args ...interface{}) (interface{}, error) {
	d.record("script %s", firstLine(script))

	d.mu.Lock()
	fn, ok := d.scripts[script]
	d.mu.Unlock()
	if ok {
		return fn(args)
	}

	in := make([]interface{}, len(args))
	for i, a := range args {
		if el, isEl := a.(core.WebElement); isEl {
			raw, err := core.Unwrap(el)
			if err != nil {
				return nil, err
			}
			m, isMock := raw.(*Element)
			if !isMock {
				return nil, fmt.Errorf("mock: argument %d is %T, not a mock element", i, raw)
			}
			if err := m.check(); err != nil {
				return nil, err
			}
			in[i] = m
			continue
		}
		in[i] = a
	}

	out, err := d.engine.Run(script, in...)
	if err != nil {
		return nil, core.ErrScriptFailed.WithCause(err)
	}
	if el, ok := out.(*Element); ok {
		return el, nil
	}
	return out, nil
}

// MoveTo hovers the pointer over el.
func (d *Driver) MoveTo(el core.WebElement) error {
	raw, err := core.Unwrap(el)
	if err != nil {
		return err
	}
	m, ok := raw.(*Element)
	if !ok {
		return fmt.Errorf("mock: cannot move to %T", raw)
	}
	if err := m.check(); err != nil {
		return err
	}
	d.record("move %s", m)
	d.mu.Lock()
	d.pointer = m
	d.mu.Unlock()
	return nil
}

// MouseClick clicks the element under the pointer.
func (d *Driver) MouseClick() error {
	d.mu.Lock()
	target := d.pointer
	d.mu.Unlock()
	d.record("mouse click")
	if target == nil {
		return nil
	}
	return target.Click()
}

// SetWindowSize records the window size.
func (d *Driver) SetWindowSize(width, height int) error {
	d.record("window %dx%d", width, height)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.width, d.height = width, height
	d.maximized = false
	return nil
}

// MaximizeWindow records maximization.
func (d *Driver) MaximizeWindow() error {
	d.record("maximize")
	d.mu.Lock()
	defer d.mu.Unlock()
	d.maximized = true
	return nil
}

// WindowSize returns the last size set and whether the window is maximized.
func (d *Driver) WindowSize() (width, height int, maximized bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.width, d.height, d.maximized
}

// Quit ends the session.
func (d *Driver) Quit() error {
	d.record("quit")
	d.mu.Lock()
	defer d.mu.Unlock()
	d.quit = true
	return nil
}

// IsQuit reports whether Quit was called.
func (d *Driver) IsQuit() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.quit
}

func notFound(loc by.Locator) error {
	return core.NoSuchElement("no such element: Unable to locate element: %s", loc)
}

func toWebElements(els []*Element) []core.WebElement {
	out := make([]core.WebElement, len(els))
	for i, e := range els {
		out[i] = e
	}
	return out
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// pngPixel is a minimal valid PNG (1x1 transparent pixel).
func pngPixel() []byte {
	return []byte{
		0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, // PNG signature
		0x00, 0x00, 0x00, 0x0D, 0x49, 0x48, 0x44, 0x52, // IHDR chunk
		0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
		0x08, 0x06, 0x00, 0x00, 0x00, 0x1F, 0x15, 0xC4,
		0x89, 0x00, 0x00, 0x00, 0x0A, 0x49, 0x44, 0x41,
		0x54, 0x78, 0x9C, 0x63, 0x00, 0x01, 0x00, 0x00,
		0x05, 0x00, 0x01, 0x0D, 0x0A, 0x2D, 0xB4, 0x00,
		0x00, 0x00, 0x00, 0x49, 0x45, 0x4E, 0x44, 0xAE,
		0x42, 0x60, 0x82,
	}
}
