package mock

import (
	"errors"
	"testing"

	"github.com/devicelab-dev/basil/pkg/by"
	"github.com/devicelab-dev/basil/pkg/core"
	"github.com/devicelab-dev/basil/pkg/jsengine"
)

func TestDriver_FindByTree(t *testing.T) {
	d := New(Config{})
	login := NewElement("input").WithID("login").WithName("user")
	d.Body().Append(NewElement("form").WithClass("auth main").Append(login))

	for _, loc := range []by.Locator{by.ID("login"), by.Name("user"), by.TagName("input"), by.CSSSelector("#login")} {
		got, err := d.FindElement(loc)
		if err != nil {
			t.Fatalf("FindElement(%s) error = %v", loc, err)
		}
		if got != login {
			t.Errorf("FindElement(%s) = %v, want login", loc, got)
		}
	}

	forms, err := d.FindElements(by.ClassName("main"))
	if err != nil || len(forms) != 1 {
		t.Errorf("FindElements(class) = %v, %v", forms, err)
	}

	_, err = d.FindElement(by.ID("missing"))
	if !errors.Is(err, core.ErrNoSuchElement) {
		t.Errorf("FindElement(missing) error = %v, want no such element", err)
	}
}

func TestDriver_RegisteredXPath(t *testing.T) {
	d := New(Config{})
	cell := NewElement("td")
	d.On(by.XPath("//table//td"), cell)

	got, err := d.FindElement(by.XPath("//table//td"))
	if err != nil {
		t.Fatalf("FindElement() error = %v", err)
	}
	if got != cell {
		t.Errorf("FindElement() = %v, want registered cell", got)
	}
	if n := d.CallCount("find By.xpath: //table//td"); n != 1 {
		t.Errorf("CallCount() = %d, want 1", n)
	}

	els, err := d.FindElements(by.XPath("//unregistered"))
	if err != nil || len(els) != 0 {
		t.Errorf("FindElements(unregistered) = %v, %v", els, err)
	}
}

func TestElement_Axes(t *testing.T) {
	d := New(Config{})
	a, b, c := NewElement("td"), NewElement("th"), NewElement("td")
	row := NewElement("tr").Append(a, b, c)
	d.Body().Append(row)

	prev, err := c.FindElements(by.XPath("preceding-sibling::td"))
	if err != nil || len(prev) != 1 || prev[0] != a {
		t.Errorf("preceding-sibling::td = %v, %v", prev, err)
	}

	parent, err := c.FindElement(by.XPath("parent::*"))
	if err != nil || parent != row {
		t.Errorf("parent::* = %v, %v", parent, err)
	}

	_, err = d.Root().FindElement(by.XPath("parent::*"))
	if !errors.Is(err, core.ErrNoSuchElement) {
		t.Errorf("parent of root error = %v", err)
	}
}

func TestElement_StateAndStale(t *testing.T) {
	box := NewElement("input").WithAttr("type", "checkbox")
	if err := box.Click(); err != nil {
		t.Fatalf("Click() error = %v", err)
	}
	if sel, _ := box.IsSelected(); !sel {
		t.Error("checkbox should toggle on click")
	}

	hidden := NewElement("button").Hidden()
	if err := hidden.Click(); !errors.Is(err, core.ErrNotInteractable) {
		t.Errorf("Click(hidden) error = %v", err)
	}

	box.SetStale(true)
	if _, err := box.IsDisplayed(); !core.IsStale(err) {
		t.Errorf("IsDisplayed(stale) error = %v", err)
	}
}

func TestElement_TextAndAttributes(t *testing.T) {
	div := NewElement("div").WithText("Hello").Append(
		NewElement("span").WithText("world"),
		NewElement("span").WithText("secret").Hidden(),
	)

	if got, _ := div.Text(); got != "Hello world" {
		t.Errorf("Text() = %q, want %q", got, "Hello world")
	}

	in := NewElement("input")
	if err := in.SendKeys("abc"); err != nil {
		t.Fatal(err)
	}
	if v, ok, _ := in.LookupAttribute("value"); !ok || v != "abc" {
		t.Errorf("value = %q, %v", v, ok)
	}
	if _, ok, _ := in.LookupAttribute("title"); ok {
		t.Error("title should be absent")
	}
}

func TestDriver_ExecuteScript(t *testing.T) {
	d := New(Config{})
	target := NewElement("div")
	d.Body().Append(NewElement("div"), target)

	got, err := d.ExecuteScript(jsengine.Source(jsengine.ScriptXPath), target)
	if err != nil {
		t.Fatalf("ExecuteScript() error = %v", err)
	}
	if got != "/html/body[1]/div[2]" {
		t.Errorf("xpath script = %v", got)
	}

	if _, err := d.ExecuteScript(jsengine.Source(jsengine.ScriptClick), target); err != nil {
		t.Fatalf("click script error = %v", err)
	}
	if target.Clicks() != 1 {
		t.Errorf("Clicks() = %d, want 1", target.Clicks())
	}

	d.HandleScript("return 42;", func([]interface{}) (interface{}, error) { return 42, nil })
	if v, _ := d.ExecuteScript("return 42;"); v != 42 {
		t.Errorf("handled script = %v", v)
	}
}

func TestDriver_Pointer(t *testing.T) {
	d := New(Config{})
	btn := NewElement("button")
	d.Body().Append(btn)

	if err := d.MoveTo(btn); err != nil {
		t.Fatal(err)
	}
	if err := d.MouseClick(); err != nil {
		t.Fatal(err)
	}
	if btn.Clicks() != 1 {
		t.Errorf("Clicks() = %d, want 1", btn.Clicks())
	}
}
