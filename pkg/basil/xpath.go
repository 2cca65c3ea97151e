package basil

import (
	"fmt"
	"strings"

	"github.com/devicelab-dev/basil/pkg/by"
	"github.com/devicelab-dev/basil/pkg/core"
	"github.com/devicelab-dev/basil/pkg/jsengine"
	"github.com/devicelab-dev/basil/pkg/xpath"
)

// GenerateXPath walks up from el and builds an absolute XPath for it.
//
// An element with an id is addressed by tag and id. The root is /html.
// Anything else is its parent's path plus its position among siblings
// sharing its tag.
func GenerateXPath(el core.WebElement) (string, error) {
	tag, err := el.TagName()
	if err != nil {
		return "", err
	}
	tag = strings.ToLower(tag)

	id, err := el.Attribute("id")
	if err != nil {
		return "", err
	}
	if id != "" {
		return "//" + tag + "[@id=" + xpath.Literal(id) + "]", nil
	}
	if tag == "html" {
		return "/html", nil
	}

	parent, err := el.FindElement(by.XPath("parent::*"))
	if err != nil {
		return "", err
	}
	prefix, err := GenerateXPath(parent)
	if err != nil {
		return "", err
	}
	preceding, err := el.FindElements(by.XPath("preceding-sibling::" + tag))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%s[%d]", prefix, tag, len(preceding)+1), nil
}

// ScriptXPath computes the same path as GenerateXPath in one script call.
func ScriptXPath(d core.WebDriver, el core.WebElement) (string, error) {
	out, err := d.ExecuteScript(jsengine.Source(jsengine.ScriptXPath), el)
	if err != nil {
		return "", err
	}
	s, ok := out.(string)
	if !ok {
		return "", core.ErrScriptFailed.WithMessagef("xpath script returned %T", out)
	}
	return s, nil
}
