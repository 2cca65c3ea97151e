package local

import (
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/devicelab-dev/basil/pkg/by"
	"github.com/devicelab-dev/basil/pkg/core"
)

// Element is a node of the local page.
type Element struct {
	driver *Driver
	el     *rod.Element
}

var _ core.WebElement = (*Element)(nil)

func (e *Element) handle() *rod.Element {
	el := e.el.Context(e.driver.ctx)
	if e.driver.timeout > 0 {
		el = el.Timeout(e.driver.timeout)
	}
	return el
}

// Rod exposes the underlying element.
func (e *Element) Rod() *rod.Element { return e.el }

func (e *Element) FindElement(loc by.Locator) (core.WebElement, error) {
	els, err := e.FindElements(loc)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, core.NoSuchElement("Unable to locate element: %s", loc)
	}
	return els[0], nil
}

func (e *Element) FindElements(loc by.Locator) ([]core.WebElement, error) {
	q, err := query(loc)
	if err != nil {
		return nil, err
	}
	var els rod.Elements
	if q.xpath {
		els, err = e.handle().ElementsX(q.value)
	} else {
		els, err = e.handle().Elements(q.value)
	}
	if err != nil {
		return nil, mapError(err)
	}
	return e.driver.wrap(els), nil
}

func (e *Element) Click() error {
	return mapError(e.handle().Click(proto.InputMouseButtonLeft, 1))
}

// Clear empties the value and fires an input event like typing would.
func (e *Element) Clear() error {
	_, err := e.handle().Eval(`() => {
		this.value = '';
		this.dispatchEvent(new Event('input', {bubbles: true}));
		this.dispatchEvent(new Event('change', {bubbles: true}));
	}`)
	return mapError(err)
}

func (e *Element) SendKeys(text string) error {
	return mapError(e.handle().Input(text))
}

func (e *Element) eval(js string, args ...interface{}) (*proto.RuntimeRemoteObject, error) {
	res, err := e.handle().Eval(js, args...)
	return res, mapError(err)
}

func (e *Element) TagName() (string, error) {
	res, err := e.eval(`() => this.tagName.toLowerCase()`)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

func (e *Element) Text() (string, error) {
	res, err := e.eval(`() => this.innerText === undefined ? this.textContent : this.innerText`)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

func (e *Element) Attribute(name string) (string, error) {
	v, _, err := e.LookupAttribute(name)
	return v, err
}

func (e *Element) LookupAttribute(name string) (string, bool, error) {
	v, err := e.handle().Attribute(name)
	if err != nil {
		return "", false, mapError(err)
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}

func (e *Element) CSSValue(property string) (string, error) {
	res, err := e.eval(`(p) => getComputedStyle(this).getPropertyValue(p)`, property)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

func (e *Element) IsDisplayed() (bool, error) {
	v, err := e.handle().Visible()
	return v, mapError(err)
}

func (e *Element) IsEnabled() (bool, error) {
	res, err := e.eval(`() => !this.disabled`)
	if err != nil {
		return false, err
	}
	return res.Value.Bool(), nil
}

func (e *Element) IsSelected() (bool, error) {
	res, err := e.eval(`() => !!(this.checked || this.selected)`)
	if err != nil {
		return false, err
	}
	return res.Value.Bool(), nil
}

func (e *Element) Rect() (core.Bounds, error) {
	res, err := e.eval(`() => {
		const r = this.getBoundingClientRect();
		return {x: r.x, y: r.y, width: r.width, height: r.height};
	}`)
	if err != nil {
		return core.Bounds{}, err
	}
	v := res.Value
	return core.Bounds{
		X:      int(v.Get("x").Num()),
		Y:      int(v.Get("y").Num()),
		Width:  int(v.Get("width").Num()),
		Height: int(v.Get("height").Num()),
	}, nil
}

func (e *Element) Screenshot() ([]byte, error) {
	b, err := e.handle().Screenshot(proto.PageCaptureScreenshotFormatPng, 0)
	return b, mapError(err)
}
