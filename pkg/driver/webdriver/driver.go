package webdriver

import (
	"context"
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"github.com/devicelab-dev/basil/pkg/by"
	"github.com/devicelab-dev/basil/pkg/core"
)

// DefaultCommandTimeout bounds a single protocol round trip.
const DefaultCommandTimeout = 60 * time.Second

// Driver implements core.WebDriver on a remote WebDriver session.
type Driver struct {
	client  *Client
	ctx     context.Context
	timeout time.Duration
}

var _ core.WebDriver = (*Driver)(nil)

// NewDriver creates a session on serverURL with the given capabilities.
func NewDriver(ctx context.Context, serverURL string, capabilities map[string]interface{}, opts ...Option) (*Driver, error) {
	client := NewClient(serverURL, opts...)
	if err := client.Connect(ctx, capabilities); err != nil {
		return nil, err
	}
	return Attach(ctx, client), nil
}

// Attach wraps a client that already holds a session.
func Attach(ctx context.Context, client *Client) *Driver {
	return &Driver{client: client, ctx: ctx, timeout: DefaultCommandTimeout}
}

// Client exposes the wire client.
func (d *Driver) Client() *Client { return d.client }

// SetCommandTimeout changes the per-command deadline.
func (d *Driver) SetCommandTimeout(t time.Duration) { d.timeout = t }

func (d *Driver) call() (context.Context, context.CancelFunc) {
	return context.WithTimeout(d.ctx, d.timeout)
}

// SessionID implements core.WebDriver.
func (d *Driver) SessionID() string { return d.client.SessionID() }

// FindElement implements core.SearchContext.
func (d *Driver) FindElement(loc by.Locator) (core.WebElement, error) {
	return d.findElement("", loc)
}

// FindElements implements core.SearchContext.
func (d *Driver) FindElements(loc by.Locator) ([]core.WebElement, error) {
	return d.findElements("", loc)
}

func (d *Driver) findElement(from string, loc by.Locator) (core.WebElement, error) {
	using, value, err := wireLocator(loc)
	if err != nil {
		return nil, err
	}
	ctx, cancel := d.call()
	defer cancel()
	id, err := d.client.FindElement(ctx, from, using, value)
	if err != nil {
		if core.IsNotFound(err) {
			return nil, core.NoSuchElement("Unable to locate element: %s", loc)
		}
		return nil, err
	}
	return &Element{driver: d, id: id}, nil
}

func (d *Driver) findElements(from string, loc by.Locator) ([]core.WebElement, error) {
	using, value, err := wireLocator(loc)
	if err != nil {
		return nil, err
	}
	ctx, cancel := d.call()
	defer cancel()
	ids, err := d.client.FindElements(ctx, from, using, value)
	if err != nil {
		return nil, err
	}
	out := make([]core.WebElement, len(ids))
	for i, id := range ids {
		out[i] = &Element{driver: d, id: id}
	}
	return out, nil
}

// wireLocator maps a locator onto the five W3C strategies. id, name and
// class have no wire strategy and travel as XPath.
func wireLocator(loc by.Locator) (string, string, error) {
	switch loc.Strategy {
	case by.StrategyID, by.StrategyName, by.StrategyClassName:
		expr, err := loc.XPathValue()
		if err != nil {
			return "", "", err
		}
		return string(by.StrategyXPath), expr, nil
	case by.StrategyXPath, by.StrategyTagName, by.StrategyCSSSelector,
		by.StrategyLinkText, by.StrategyPartialLinkText:
		return string(loc.Strategy), loc.Value, nil
	}
	return "", "", core.ErrInvalidSelector.WithMessagef("unsupported strategy %q", loc.Strategy)
}

// Navigate implements core.WebDriver.
func (d *Driver) Navigate(url string) error {
	ctx, cancel := d.call()
	defer cancel()
	return d.client.OpenURL(ctx, url)
}

func (d *Driver) sessionString(endpoint string) (string, error) {
	ctx, cancel := d.call()
	defer cancel()
	return d.client.SessionString(ctx, endpoint)
}

func (d *Driver) CurrentURL() (string, error) { return d.sessionString("url") }
func (d *Driver) Title() (string, error)      { return d.sessionString("title") }
func (d *Driver) PageSource() (string, error) { return d.sessionString("source") }

// Screenshot implements core.WebDriver.
func (d *Driver) Screenshot() ([]byte, error) {
	ctx, cancel := d.call()
	defer cancel()
	return d.client.Screenshot(ctx)
}

// ExecuteScript implements core.WebDriver. Element arguments are sent as
// element references and element results come back as *Element.
func (d *Driver) ExecuteScript(script string, args ...interface{}) (interface{}, error) {
	wire := make([]interface{}, len(args))
	for i, a := range args {
		v, err := d.toWire(a)
		if err != nil {
			return nil, err
		}
		wire[i] = v
	}
	ctx, cancel := d.call()
	defer cancel()
	res, err := d.client.ExecuteScript(ctx, script, wire)
	if err != nil {
		return nil, err
	}
	return d.fromWire(res), nil
}

func (d *Driver) toWire(arg interface{}) (interface{}, error) {
	switch v := arg.(type) {
	case core.WebElement:
		el, err := d.elementOf(v)
		if err != nil {
			return nil, err
		}
		return ElementRef(el.id), nil
	case []core.WebElement:
		out := make([]interface{}, len(v))
		for i, e := range v {
			w, err := d.toWire(e)
			if err != nil {
				return nil, err
			}
			out[i] = w
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, e := range v {
			w, err := d.toWire(e)
			if err != nil {
				return nil, err
			}
			out[i] = w
		}
		return out, nil
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
		return nil, core.ErrInvalidElement.WithMessagef("element %T does not belong to a webdriver session", raw)
	}
	return e, nil
}

func (d *Driver) fromWire(v gjson.Result) interface{} {
	switch {
	case v.IsArray():
		items := v.Array()
		out := make([]interface{}, len(items))
		for i, item := range items {
			out[i] = d.fromWire(item)
		}
		return out
	case v.IsObject():
		if id := extractElementID(v); id != "" {
			return &Element{driver: d, id: id}
		}
		out := make(map[string]interface{})
		v.ForEach(func(k, item gjson.Result) bool {
			out[k.String()] = d.fromWire(item)
			return true
		})
		return out
	}
	return v.Value()
}

// MoveTo implements core.WebDriver.
func (d *Driver) MoveTo(el core.WebElement) error {
	e, err := d.elementOf(el)
	if err != nil {
		return err
	}
	ctx, cancel := d.call()
	defer cancel()
	return d.client.MoveTo(ctx, e.id)
}

// MouseClick implements core.WebDriver.
func (d *Driver) MouseClick() error {
	ctx, cancel := d.call()
	defer cancel()
	return d.client.MouseClick(ctx)
}

// SetWindowSize implements core.WebDriver.
func (d *Driver) SetWindowSize(width, height int) error {
	ctx, cancel := d.call()
	defer cancel()
	return d.client.SetWindowRect(ctx, width, height)
}

// MaximizeWindow implements core.WebDriver.
func (d *Driver) MaximizeWindow() error {
	ctx, cancel := d.call()
	defer cancel()
	return d.client.MaximizeWindow(ctx)
}

// Quit deletes the session.
func (d *Driver) Quit() error {
	ctx, cancel := d.call()
	defer cancel()
	return d.client.Disconnect(ctx)
}

// Detach forgets the session without deleting it, so another process can
// reattach.
func (d *Driver) Detach() string {
	id := d.client.SessionID()
	d.client.Attach("")
	return id
}

// Element is a remote element reference.
type Element struct {
	driver *Driver
	id     string
}

var _ core.WebElement = (*Element)(nil)

// ID returns the remote element reference.
func (e *Element) ID() string { return e.id }

func (e *Element) String() string { return fmt.Sprintf("webdriver.Element(%s)", e.id) }

func (e *Element) FindElement(loc by.Locator) (core.WebElement, error) {
	return e.driver.findElement(e.id, loc)
}

func (e *Element) FindElements(loc by.Locator) ([]core.WebElement, error) {
	return e.driver.findElements(e.id, loc)
}

func (e *Element) Click() error {
	ctx, cancel := e.driver.call()
	defer cancel()
	return e.driver.client.ClickElement(ctx, e.id)
}

func (e *Element) Clear() error {
	ctx, cancel := e.driver.call()
	defer cancel()
	return e.driver.client.ClearElement(ctx, e.id)
}

func (e *Element) SendKeys(text string) error {
	ctx, cancel := e.driver.call()
	defer cancel()
	return e.driver.client.SendKeys(ctx, e.id, text)
}

func (e *Element) property(endpoint string) (gjson.Result, error) {
	ctx, cancel := e.driver.call()
	defer cancel()
	return e.driver.client.ElementProperty(ctx, e.id, endpoint)
}

func (e *Element) TagName() (string, error) {
	v, err := e.property("name")
	return v.String(), err
}

func (e *Element) Text() (string, error) {
	v, err := e.property("text")
	return v.String(), err
}

func (e *Element) Attribute(name string) (string, error) {
	v, _, err := e.LookupAttribute(name)
	return v, err
}

// LookupAttribute treats a null attribute value as absent.
func (e *Element) LookupAttribute(name string) (string, bool, error) {
	v, err := e.property("attribute/" + name)
	if err != nil {
		return "", false, err
	}
	if !v.Exists() || v.Type == gjson.Null {
		return "", false, nil
	}
	return v.String(), true, nil
}

func (e *Element) CSSValue(property string) (string, error) {
	v, err := e.property("css/" + property)
	return v.String(), err
}

func (e *Element) IsDisplayed() (bool, error) {
	v, err := e.property("displayed")
	return v.Bool(), err
}

func (e *Element) IsEnabled() (bool, error) {
	v, err := e.property("enabled")
	return v.Bool(), err
}

func (e *Element) IsSelected() (bool, error) {
	v, err := e.property("selected")
	return v.Bool(), err
}

func (e *Element) Rect() (core.Bounds, error) {
	ctx, cancel := e.driver.call()
	defer cancel()
	return e.driver.client.GetElementRect(ctx, e.id)
}

func (e *Element) Screenshot() ([]byte, error) {
	ctx, cancel := e.driver.call()
	defer cancel()
	return e.driver.client.ElementScreenshot(ctx, e.id)
}
