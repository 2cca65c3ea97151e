package mock

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/devicelab-dev/basil/pkg/by"
	"github.com/devicelab-dev/basil/pkg/core"
	"github.com/devicelab-dev/basil/pkg/jsengine"
)

// tree guards element state and structure across the whole package.
var tree sync.RWMutex

var handles atomic.Int64

// Element is a node of the mock DOM. It implements core.WebElement.
type Element struct {
	handle    string
	tag       string
	attrs     map[string]string
	css       map[string]string
	text      string
	displayed bool
	enabled   bool
	selected  bool
	stale     bool
	bounds    core.Bounds

	parent   *Element
	children []*Element
	registry map[string][]*Element
	driver   *Driver

	clickErr error
	onClick  func(*Element) error
	clicks   int
	typed    []string
}

// NewElement creates a displayed, enabled element.
func NewElement(tag string) *Element {
	return &Element{
		handle:    fmt.Sprintf("mock-%d", handles.Add(1)),
		tag:       strings.ToLower(tag),
		attrs:     make(map[string]string),
		css:       make(map[string]string),
		displayed: true,
		enabled:   true,
		bounds:    core.Bounds{Width: 100, Height: 20},
		registry:  make(map[string][]*Element),
	}
}

// WithID sets the id attribute.
func (e *Element) WithID(id string) *Element { return e.WithAttr("id", id) }

// WithName sets the name attribute.
func (e *Element) WithName(name string) *Element { return e.WithAttr("name", name) }

// WithClass sets the class attribute.
func (e *Element) WithClass(class string) *Element { return e.WithAttr("class", class) }

// WithAttr sets an attribute.
func (e *Element) WithAttr(name, value string) *Element {
	tree.Lock()
	defer tree.Unlock()
	e.attrs[name] = value
	return e
}

// WithCSS sets a computed style value.
func (e *Element) WithCSS(property, value string) *Element {
	tree.Lock()
	defer tree.Unlock()
	e.css[property] = value
	return e
}

// WithText sets the element's own text.
func (e *Element) WithText(text string) *Element {
	tree.Lock()
	defer tree.Unlock()
	e.text = text
	return e
}

// WithBounds sets the element rectangle.
func (e *Element) WithBounds(b core.Bounds) *Element {
	tree.Lock()
	defer tree.Unlock()
	e.bounds = b
	return e
}

// Hidden marks the element as not displayed.
func (e *Element) Hidden() *Element {
	e.SetDisplayed(false)
	return e
}

// Disabled marks the element as not enabled.
func (e *Element) Disabled() *Element {
	e.SetEnabled(false)
	return e
}

// Checked marks the element as selected.
func (e *Element) Checked() *Element {
	tree.Lock()
	defer tree.Unlock()
	e.selected = true
	return e
}

// Append adds children in document order.
func (e *Element) Append(children ...*Element) *Element {
	tree.Lock()
	defer tree.Unlock()
	for _, c := range children {
		c.parent = e
		e.children = append(e.children, c)
		if e.driver != nil {
			c.adoptLocked(e.driver)
		}
	}
	return e
}

// On registers the elements returned for loc when searching from e.
func (e *Element) On(loc by.Locator, els ...*Element) *Element {
	tree.Lock()
	defer tree.Unlock()
	e.registry[loc.String()] = els
	if e.driver != nil {
		for _, el := range els {
			el.adoptLocked(e.driver)
		}
	}
	return e
}

// OnClick runs fn after every successful click.
func (e *Element) OnClick(fn func(*Element) error) *Element {
	tree.Lock()
	defer tree.Unlock()
	e.onClick = fn
	return e
}

// SetClickError makes every click fail with err until cleared with nil.
func (e *Element) SetClickError(err error) {
	tree.Lock()
	defer tree.Unlock()
	e.clickErr = err
}

// SetDisplayed changes visibility.
func (e *Element) SetDisplayed(v bool) {
	tree.Lock()
	defer tree.Unlock()
	e.displayed = v
}

// SetEnabled changes the enabled state.
func (e *Element) SetEnabled(v bool) {
	tree.Lock()
	defer tree.Unlock()
	e.enabled = v
}

// SetSelected changes the selected state.
func (e *Element) SetSelected(v bool) {
	tree.Lock()
	defer tree.Unlock()
	e.selected = v
}

// SetStale detaches the element: every later call fails as stale.
func (e *Element) SetStale(v bool) {
	tree.Lock()
	defer tree.Unlock()
	e.stale = v
}

// SetText replaces the element's own text.
func (e *Element) SetText(text string) { e.WithText(text) }

// SetAttr sets an attribute.
func (e *Element) SetAttr(name, value string) { e.WithAttr(name, value) }

// RemoveAttr deletes an attribute.
func (e *Element) RemoveAttr(name string) {
	tree.Lock()
	defer tree.Unlock()
	delete(e.attrs, name)
}

// Clicks returns how many clicks succeeded.
func (e *Element) Clicks() int {
	tree.RLock()
	defer tree.RUnlock()
	return e.clicks
}

// Typed returns every SendKeys payload.
func (e *Element) Typed() []string {
	tree.RLock()
	defer tree.RUnlock()
	return append([]string(nil), e.typed...)
}

// Parent returns the parent element, or nil for the root.
func (e *Element) Parent() *Element {
	tree.RLock()
	defer tree.RUnlock()
	return e.parent
}

// Handle returns the element reference id.
func (e *Element) Handle() string { return e.handle }

func (e *Element) String() string {
	tree.RLock()
	defer tree.RUnlock()
	if id := e.attrs["id"]; id != "" {
		return e.tag + "#" + id
	}
	return e.tag + "(" + e.handle + ")"
}

func (e *Element) adopt(d *Driver) {
	tree.Lock()
	defer tree.Unlock()
	e.adoptLocked(d)
}

func (e *Element) adoptLocked(d *Driver) {
	e.driver = d
	for _, c := range e.children {
		c.adoptLocked(d)
	}
	for _, els := range e.registry {
		for _, el := range els {
			if el.driver == nil {
				el.adoptLocked(d)
			}
		}
	}
}

func (e *Element) check() error {
	tree.RLock()
	defer tree.RUnlock()
	return e.checkLocked()
}

func (e *Element) checkLocked() error {
	if e.stale {
		return core.ErrStaleElement.WithMessagef("stale element reference: %s is no longer attached to the DOM", e.tag)
	}
	return nil
}

func (e *Element) recordCall(format string, args ...interface{}) {
	tree.RLock()
	d := e.driver
	tree.RUnlock()
	if d != nil {
		d.record(format, args...)
	}
}

// FindElement finds the first match below e.
func (e *Element) FindElement(loc by.Locator) (core.WebElement, error) {
	els, err := e.find(loc)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, notFound(loc)
	}
	return els[0], nil
}

// FindElements finds every match below e.
func (e *Element) FindElements(loc by.Locator) ([]core.WebElement, error) {
	els, err := e.find(loc)
	if err != nil {
		return nil, err
	}
	return toWebElements(els), nil
}

func (e *Element) find(loc by.Locator) ([]*Element, error) {
	if err := e.check(); err != nil {
		return nil, err
	}
	e.recordCall("find %s from %s", loc, e)

	tree.RLock()
	els, ok := e.registry[loc.String()]
	tree.RUnlock()
	if ok {
		return els, nil
	}
	return e.search(loc, false)
}

var (
	precedingSibling = regexp.MustCompile(`^preceding-sibling::([\w*-]+)$`)
	followingSibling = regexp.MustCompile(`^following-sibling::([\w*-]+)$`)
	descendantTag    = regexp.MustCompile(`^\.//([\w-]+)$`)
	descendantAttr   = regexp.MustCompile(`^\.?//([\w*-]+)\[@(id|name)='([^']*)'\]$`)
)

// search evaluates the locator forms the mock understands.
func (e *Element) search(loc by.Locator, fromDocument bool) ([]*Element, error) {
	tree.RLock()
	defer tree.RUnlock()

	v := loc.Value
	switch loc.Strategy {
	case by.StrategyID:
		return e.collect(fromDocument, func(n *Element) bool { return n.attrs["id"] == v }), nil
	case by.StrategyName:
		return e.collect(fromDocument, func(n *Element) bool { return n.attrs["name"] == v }), nil
	case by.StrategyTagName:
		return e.collect(fromDocument, func(n *Element) bool { return n.tag == strings.ToLower(v) }), nil
	case by.StrategyClassName:
		return e.collect(fromDocument, func(n *Element) bool { return hasClass(n.attrs["class"], v) }), nil
	case by.StrategyLinkText:
		return e.collect(fromDocument, func(n *Element) bool { return n.tag == "a" && strings.TrimSpace(n.textLocked()) == v }), nil
	case by.StrategyPartialLinkText:
		return e.collect(fromDocument, func(n *Element) bool { return n.tag == "a" && strings.Contains(n.textLocked(), v) }), nil
	case by.StrategyCSSSelector:
		switch {
		case strings.HasPrefix(v, "#"):
			return e.collect(fromDocument, func(n *Element) bool { return n.attrs["id"] == v[1:] }), nil
		case strings.HasPrefix(v, "."):
			return e.collect(fromDocument, func(n *Element) bool { return hasClass(n.attrs["class"], v[1:]) }), nil
		default:
			return e.collect(fromDocument, func(n *Element) bool { return n.tag == strings.ToLower(v) }), nil
		}
	case by.StrategyXPath:
		return e.searchXPath(v, fromDocument)
	}
	return nil, core.ErrInvalidSelector.WithMessagef("invalid selector: %s", loc)
}

func (e *Element) searchXPath(v string, fromDocument bool) ([]*Element, error) {
	if v == "/html" || v == ".//html" {
		root := e
		for root.parent != nil {
			root = root.parent
		}
		return []*Element{root}, nil
	}
	if v == "parent::*" || v == ".." {
		if e.parent == nil {
			return nil, nil
		}
		return []*Element{e.parent}, nil
	}
	if m := precedingSibling.FindStringSubmatch(v); m != nil {
		var out []*Element
		for _, s := range e.siblingsLocked() {
			if s == e {
				break
			}
			if m[1] == "*" || s.tag == m[1] {
				out = append(out, s)
			}
		}
		// nearest first, like the axis
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
		return out, nil
	}
	if m := followingSibling.FindStringSubmatch(v); m != nil {
		var out []*Element
		seen := false
		for _, s := range e.siblingsLocked() {
			if s == e {
				seen = true
				continue
			}
			if seen && (m[1] == "*" || s.tag == m[1]) {
				out = append(out, s)
			}
		}
		return out, nil
	}
	if m := descendantTag.FindStringSubmatch(v); m != nil {
		return e.collect(fromDocument, func(n *Element) bool { return n.tag == m[1] }), nil
	}
	if m := descendantAttr.FindStringSubmatch(v); m != nil {
		return e.collect(fromDocument, func(n *Element) bool {
			return (m[1] == "*" || n.tag == m[1]) && n.attrs[m[2]] == m[3]
		}), nil
	}
	return nil, nil
}

func (e *Element) siblingsLocked() []*Element {
	if e.parent == nil {
		return []*Element{e}
	}
	return e.parent.children
}

func (e *Element) collect(includeSelf bool, match func(*Element) bool) []*Element {
	var out []*Element
	var walk func(n *Element, self bool)
	walk = func(n *Element, self bool) {
		if !self && match(n) {
			out = append(out, n)
		}
		for _, c := range n.children {
			walk(c, false)
		}
	}
	walk(e, !includeSelf)
	return out
}

func hasClass(class, token string) bool {
	for _, c := range strings.Fields(class) {
		if c == token {
			return true
		}
	}
	return false
}

// Click clicks the element. Hidden elements fail as not interactable.
func (e *Element) Click() error {
	tree.Lock()
	if err := e.checkLocked(); err != nil {
		tree.Unlock()
		return err
	}
	if !e.displayed {
		tree.Unlock()
		return core.ErrNotInteractable.WithMessagef("element not interactable: %s is not visible", e.tag)
	}
	if e.clickErr != nil {
		err := e.clickErr
		tree.Unlock()
		return err
	}
	e.clicks++
	if e.tag == "input" {
		switch e.attrs["type"] {
		case "checkbox":
			e.selected = !e.selected
		case "radio":
			e.selected = true
		}
	}
	fn := e.onClick
	tree.Unlock()

	e.recordCall("click %s", e)
	if fn != nil {
		return fn(e)
	}
	return nil
}

// Clear empties the value.
func (e *Element) Clear() error {
	tree.Lock()
	defer tree.Unlock()
	if err := e.checkLocked(); err != nil {
		return err
	}
	e.attrs["value"] = ""
	return nil
}

// SendKeys appends text to the value.
func (e *Element) SendKeys(text string) error {
	tree.Lock()
	defer tree.Unlock()
	if err := e.checkLocked(); err != nil {
		return err
	}
	if !e.displayed || !e.enabled {
		return core.ErrNotInteractable.WithMessagef("element not interactable: %s", e.tag)
	}
	e.typed = append(e.typed, text)
	e.attrs["value"] += text
	return nil
}

// TagName returns the lower-case tag.
func (e *Element) TagName() (string, error) {
	tree.RLock()
	defer tree.RUnlock()
	if err := e.checkLocked(); err != nil {
		return "", err
	}
	return e.tag, nil
}

// Text returns the visible text of e and its displayed descendants.
func (e *Element) Text() (string, error) {
	tree.RLock()
	defer tree.RUnlock()
	if err := e.checkLocked(); err != nil {
		return "", err
	}
	if !e.displayed {
		return "", nil
	}
	return e.textLocked(), nil
}

func (e *Element) textLocked() string {
	parts := []string{}
	if t := strings.TrimSpace(e.text); t != "" {
		parts = append(parts, t)
	}
	for _, c := range e.children {
		if !c.displayed {
			continue
		}
		if t := c.textLocked(); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// Attribute returns the attribute value or "".
func (e *Element) Attribute(name string) (string, error) {
	v, _, err := e.LookupAttribute(name)
	return v, err
}

// LookupAttribute returns the attribute and whether it is present.
func (e *Element) LookupAttribute(name string) (string, bool, error) {
	tree.RLock()
	defer tree.RUnlock()
	if err := e.checkLocked(); err != nil {
		return "", false, err
	}
	if name == "innerHTML" {
		return e.innerHTMLLocked(), true, nil
	}
	v, ok := e.attrs[name]
	return v, ok, nil
}

// CSSValue returns a style set with WithCSS.
func (e *Element) CSSValue(property string) (string, error) {
	tree.RLock()
	defer tree.RUnlock()
	if err := e.checkLocked(); err != nil {
		return "", err
	}
	return e.css[property], nil
}

// IsDisplayed reports visibility.
func (e *Element) IsDisplayed() (bool, error) {
	tree.RLock()
	defer tree.RUnlock()
	if err := e.checkLocked(); err != nil {
		return false, err
	}
	return e.displayed, nil
}

// IsEnabled reports whether the element is enabled.
func (e *Element) IsEnabled() (bool, error) {
	tree.RLock()
	defer tree.RUnlock()
	if err := e.checkLocked(); err != nil {
		return false, err
	}
	_, disabled := e.attrs["disabled"]
	return e.enabled && !disabled, nil
}

// IsSelected reports the selected state.
func (e *Element) IsSelected() (bool, error) {
	tree.RLock()
	defer tree.RUnlock()
	if err := e.checkLocked(); err != nil {
		return false, err
	}
	return e.selected, nil
}

// Rect returns the bounds.
func (e *Element) Rect() (core.Bounds, error) {
	tree.RLock()
	defer tree.RUnlock()
	if err := e.checkLocked(); err != nil {
		return core.Bounds{}, err
	}
	return e.bounds, nil
}

// Screenshot returns a mock PNG image.
func (e *Element) Screenshot() ([]byte, error) {
	if err := e.check(); err != nil {
		return nil, err
	}
	return pngPixel(), nil
}

// NodeTag implements jsengine.Node.
func (e *Element) NodeTag() string {
	tree.RLock()
	defer tree.RUnlock()
	return e.tag
}

// NodeAttribute implements jsengine.Node.
func (e *Element) NodeAttribute(name string) (string, bool) {
	tree.RLock()
	defer tree.RUnlock()
	v, ok := e.attrs[name]
	return v, ok
}

// NodeParent implements jsengine.Node.
func (e *Element) NodeParent() jsengine.Node {
	tree.RLock()
	defer tree.RUnlock()
	if e.parent == nil {
		return nil
	}
	return e.parent
}

// NodeChildren implements jsengine.Node.
func (e *Element) NodeChildren() []jsengine.Node {
	tree.RLock()
	defer tree.RUnlock()
	out := make([]jsengine.Node, len(e.children))
	for i, c := range e.children {
		out[i] = c
	}
	return out
}

// NodeHTML implements jsengine.Node and renders the inner HTML.
func (e *Element) NodeHTML() string {
	tree.RLock()
	defer tree.RUnlock()
	return e.innerHTMLLocked()
}

// NodeClick implements jsengine.Node. Script clicks ignore visibility.
func (e *Element) NodeClick() error {
	tree.Lock()
	if err := e.checkLocked(); err != nil {
		tree.Unlock()
		return err
	}
	e.clicks++
	fn := e.onClick
	tree.Unlock()
	if fn != nil {
		return fn(e)
	}
	return nil
}

// OuterHTML renders e and its subtree.
func (e *Element) OuterHTML() string {
	tree.RLock()
	defer tree.RUnlock()
	var sb strings.Builder
	e.renderLocked(&sb)
	return sb.String()
}

func (e *Element) innerHTMLLocked() string {
	var sb strings.Builder
	sb.WriteString(e.text)
	for _, c := range e.children {
		c.renderLocked(&sb)
	}
	return sb.String()
}

func (e *Element) renderLocked(sb *strings.Builder) {
	sb.WriteString("<" + e.tag)
	keys := make([]string, 0, len(e.attrs))
	for k := range e.attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(sb, ` %s="%s"`, k, e.attrs[k])
	}
	sb.WriteString(">")
	sb.WriteString(e.innerHTMLLocked())
	sb.WriteString("</" + e.tag + ">")
}
