package interact

import (
	"fmt"
	"strings"

	"github.com/devicelab-dev/basil/pkg/by"
	"github.com/devicelab-dev/basil/pkg/core"
	"github.com/devicelab-dev/basil/pkg/jsengine"
	"github.com/devicelab-dev/basil/pkg/xpath"
)

func (s *Service) scriptElement(script jsengine.Script, desc string, args ...interface{}) (core.WebElement, error) {
	out, err := s.driver.ExecuteScript(jsengine.Source(script), args...)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, core.NoSuchElement("%s", desc)
	}
	el, ok := out.(core.WebElement)
	if !ok {
		return nil, core.ErrScriptFailed.WithMessagef("%s script returned %T", script, out)
	}
	return el, nil
}

// PreviousSibling returns the element right before el.
func (s *Service) PreviousSibling(el core.WebElement) (core.WebElement, error) {
	return s.scriptElement(jsengine.ScriptPreviousSibling, "The element has no previous sibling.", el)
}

// NextSibling returns the element right after el.
func (s *Service) NextSibling(el core.WebElement) (core.WebElement, error) {
	return s.scriptElement(jsengine.ScriptNextSibling, "The element has no next sibling.", el)
}

// Parent returns the parent element of el.
func (s *Service) Parent(el core.WebElement) (core.WebElement, error) {
	return s.scriptElement(jsengine.ScriptParent, "The element has no parent.", el)
}

// Child returns the i-th child element of el.
func (s *Service) Child(el core.WebElement, i int) (core.WebElement, error) {
	return s.scriptElement(jsengine.ScriptChild, "The element has no such child.", el, i)
}

// InnerHTML reads innerHTML through a script.
func (s *Service) InnerHTML(el core.WebElement) (string, error) {
	out, err := s.driver.ExecuteScript(jsengine.Source(jsengine.ScriptInnerHTML), el)
	if err != nil {
		return "", err
	}
	html, _ := out.(string)
	return html, nil
}

// JavaScriptClick clicks el with a script, skipping the visibility checks of
// a native click.
func (s *Service) JavaScriptClick(el core.WebElement) error {
	_, err := s.driver.ExecuteScript(jsengine.Source(jsengine.ScriptClick), el)
	return err
}

// FindElementsByLabel returns the elements named by the "for" attribute of
// every label reading label under ctx.
func (s *Service) FindElementsByLabel(ctx core.SearchContext, label string) ([]core.WebElement, error) {
	labels, err := ctx.FindElements(by.XPath(".//label[text()=" + xpath.Literal(label) + "]"))
	if err != nil {
		return nil, err
	}
	var out []core.WebElement
	for _, l := range labels {
		forID, err := l.Attribute("for")
		if err != nil {
			return nil, err
		}
		if forID == "" {
			continue
		}
		els, err := s.driver.FindElements(by.ID(forID))
		if err != nil {
			return nil, err
		}
		out = append(out, els...)
	}
	if len(out) == 0 {
		return nil, core.NoSuchElement("No elements can be found by label %q.", label)
	}
	return out, nil
}

// XPathStatistics counts the matches of each expression under ctx.
func XPathStatistics(ctx core.SearchContext, exprs ...string) (map[string]int, error) {
	stats := make(map[string]int, len(exprs))
	for _, expr := range exprs {
		els, err := ctx.FindElements(by.XPath(expr))
		if err != nil && !core.IsNotFound(err) {
			return nil, err
		}
		stats[expr] = len(els)
	}
	return stats, nil
}

// FormatStatistics renders statistics one "expr: n" line per expression in
// the given order.
func FormatStatistics(stats map[string]int, order ...string) string {
	var sb strings.Builder
	for _, expr := range order {
		fmt.Fprintf(&sb, "%s: %d\n", expr, stats[expr])
	}
	return sb.String()
}
