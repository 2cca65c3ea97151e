// Package by defines element locators and the rules that decide whether a
// locator can address an element without help from its parent.
//
// A locator is confident when it carries an id or a name, or when it points at
// the document root. Confident locators are looked up from the driver directly.
// Every other locator is resolved relative to a parent by concatenating XPath.
package by

import (
	"fmt"
	"strings"

	"github.com/devicelab-dev/basil/pkg/xpath"
)

// Strategy is a W3C-style location strategy name.
type Strategy string

const (
	StrategyID              Strategy = "id"
	StrategyName            Strategy = "name"
	StrategyTagName         Strategy = "tag name"
	StrategyXPath           Strategy = "xpath"
	StrategyClassName       Strategy = "class name"
	StrategyCSSSelector     Strategy = "css selector"
	StrategyLinkText        Strategy = "link text"
	StrategyPartialLinkText Strategy = "partial link text"
)

// Locator is a strategy paired with its query value.
type Locator struct {
	Strategy Strategy
	Value    string
}

// ID locates by the id attribute.
func ID(id string) Locator { return Locator{StrategyID, id} }

// Name locates by the name attribute.
func Name(name string) Locator { return Locator{StrategyName, name} }

// TagName locates by element tag.
func TagName(tag string) Locator { return Locator{StrategyTagName, tag} }

// XPath locates by an XPath expression.
func XPath(expr string) Locator { return Locator{StrategyXPath, expr} }

// ClassName locates by a single class token.
func ClassName(class string) Locator { return Locator{StrategyClassName, class} }

// CSSSelector locates by a CSS selector.
func CSSSelector(selector string) Locator { return Locator{StrategyCSSSelector, selector} }

// LinkText locates anchors by their exact visible text.
func LinkText(text string) Locator { return Locator{StrategyLinkText, text} }

// PartialLinkText locates anchors whose visible text contains text.
func PartialLinkText(text string) Locator { return Locator{StrategyPartialLinkText, text} }

// Parse builds a locator from a strategy name such as "id" or "css".
func Parse(strategy, value string) (Locator, error) {
	switch strings.ToLower(strings.TrimSpace(strategy)) {
	case "id":
		return ID(value), nil
	case "name":
		return Name(value), nil
	case "tag", "tagname", "tag name":
		return TagName(value), nil
	case "xpath":
		return XPath(value), nil
	case "class", "classname", "class name":
		return ClassName(value), nil
	case "css", "cssselector", "css selector":
		return CSSSelector(value), nil
	case "link", "linktext", "link text":
		return LinkText(value), nil
	case "partiallink", "partiallinktext", "partial link text":
		return PartialLinkText(value), nil
	}
	return Locator{}, fmt.Errorf("unknown locator strategy %q", strategy)
}

// IsZero reports whether the locator is unset.
func (l Locator) IsZero() bool {
	return l.Strategy == ""
}

func (l Locator) String() string {
	if l.IsZero() {
		return "<nil>"
	}
	return "By." + string(l.Strategy) + ": " + l.Value
}

// IsByID reports whether the strategy is id.
func (l Locator) IsByID() bool { return l.Strategy == StrategyID }

// IsByName reports whether the strategy is name.
func (l Locator) IsByName() bool { return l.Strategy == StrategyName }

// IsByXPath reports whether the strategy is xpath.
func (l Locator) IsByXPath() bool { return l.Strategy == StrategyXPath }

// HasID reports whether the locator pins an id.
func (l Locator) HasID() bool {
	switch l.Strategy {
	case StrategyID:
		return true
	case StrategyXPath:
		return strings.Contains(l.Value, "@id=")
	}
	return false
}

// HasName reports whether the locator pins a name.
func (l Locator) HasName() bool {
	switch l.Strategy {
	case StrategyName:
		return true
	case StrategyXPath:
		return strings.Contains(l.Value, "@name")
	}
	return false
}

// IsDriver reports whether the locator addresses the document root.
func (l Locator) IsDriver() bool {
	return l.Strategy == StrategyXPath && (l.Value == "/html" || l.Value == ".//html")
}

// IsConfident reports whether the locator can be resolved without a parent.
func (l Locator) IsConfident() bool {
	return l.HasID() || l.HasName() || l.IsDriver()
}

// HasXPath reports whether the locator can be expressed as XPath.
func (l Locator) HasXPath() bool {
	switch l.Strategy {
	case StrategyID, StrategyName, StrategyTagName, StrategyXPath, StrategyClassName:
		return true
	}
	return false
}

// XPathValue returns the locator as an XPath expression.
func (l Locator) XPathValue() (string, error) {
	switch l.Strategy {
	case StrategyID:
		return ".//*[@id=" + xpath.Literal(l.Value) + "]", nil
	case StrategyName:
		return ".//*[@name=" + xpath.Literal(l.Value) + "]", nil
	case StrategyTagName:
		return ".//" + l.Value, nil
	case StrategyClassName:
		return ".//*[" + xpath.ClassContains(l.Value) + "]", nil
	case StrategyXPath:
		return l.Value, nil
	}
	return "", fmt.Errorf("locator %s cannot be converted to xpath", l)
}

// ToXPath converts the locator into an xpath locator.
func (l Locator) ToXPath() (Locator, error) {
	if l.IsByXPath() {
		return l, nil
	}
	expr, err := l.XPathValue()
	if err != nil {
		return Locator{}, err
	}
	return XPath(expr), nil
}

// Append joins a raw XPath expression onto this locator.
func (l Locator) Append(expr string) (Locator, error) {
	return l.Concat(XPath(expr))
}

// Concat resolves other relative to this locator.
//
// A confident locator stands on its own and is returned unchanged, as is a
// locator whose XPath already starts with this one.
func (l Locator) Concat(other Locator) (Locator, error) {
	if other.IsConfident() {
		return other, nil
	}
	self, err := l.XPathValue()
	if err != nil {
		return Locator{}, err
	}
	rel, err := other.XPathValue()
	if err != nil {
		return Locator{}, err
	}
	if strings.HasPrefix(rel, self) {
		return other, nil
	}
	return XPath(xpath.Append(self, rel)), nil
}

// Concat chains every locator onto the first one.
func Concat(first Locator, rest ...Locator) (Locator, error) {
	out := first
	for _, next := range rest {
		var err error
		if out, err = out.Concat(next); err != nil {
			return Locator{}, err
		}
	}
	return out, nil
}

// AppendLocators joins the XPath of every locator with xpath.Append. Unlike
// Concat, confident locators do not reset the path.
func AppendLocators(locs ...Locator) (Locator, error) {
	exprs := make([]string, 0, len(locs))
	for _, l := range locs {
		expr, err := l.XPathValue()
		if err != nil {
			return Locator{}, err
		}
		exprs = append(exprs, expr)
	}
	return XPath(xpath.Append(exprs...)), nil
}
