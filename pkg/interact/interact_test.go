package interact

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devicelab-dev/basil/pkg/by"
	"github.com/devicelab-dev/basil/pkg/config"
	"github.com/devicelab-dev/basil/pkg/core"
	"github.com/devicelab-dev/basil/pkg/driver/mock"
	"github.com/devicelab-dev/basil/pkg/wait"
)

func newService(t *testing.T, precondition string) (*Service, *mock.Driver) {
	t.Helper()
	cfg := config.Defaults()
	cfg.Wait.Interval = time.Millisecond
	cfg.Wait.Timeout = 30 * time.Millisecond
	cfg.WebElement.InteractibilityCondition = precondition
	d := mock.New(mock.Config{})
	return New(d, cfg), d
}

func TestService_IsEnabled(t *testing.T) {
	s, _ := newService(t, "visible")

	tests := []struct {
		name string
		el   *mock.Element
		want bool
	}{
		{"plain", mock.NewElement("button"), true},
		{"hidden", mock.NewElement("button").Hidden(), false},
		{"disabled attribute", mock.NewElement("button").WithAttr("disabled", ""), false},
		{"disabled class", mock.NewElement("span").WithClass("dijitDisabled"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.IsEnabled(tt.el)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestService_ClickLinkAndButton(t *testing.T) {
	s, _ := newService(t, "clickable")
	ctx := context.Background()

	link := mock.NewElement("a")
	require.NoError(t, s.ClickLink(ctx, link))
	assert.Equal(t, 1, link.Clicks())

	err := s.ClickLink(ctx, mock.NewElement("div"))
	assert.ErrorIs(t, err, core.ErrInvalidTagName)

	btn := mock.NewElement("button").WithClass("btn btnDisabled")
	err = s.ClickButton(ctx, btn)
	assert.ErrorIs(t, err, core.ErrWaitTimeout)
	assert.Zero(t, btn.Clicks())
}

func TestService_Checkboxes(t *testing.T) {
	s, _ := newService(t, "visible")
	ctx := context.Background()
	box := mock.NewElement("input").WithAttr("type", "checkbox")

	require.NoError(t, s.CheckCheckBox(ctx, box))
	require.NoError(t, s.CheckCheckBox(ctx, box))
	assert.Equal(t, 1, box.Clicks())

	require.NoError(t, s.UncheckCheckBox(ctx, box))
	selected, _ := box.IsSelected()
	assert.False(t, selected)

	radio := mock.NewElement("input").WithAttr("type", "radio")
	require.NoError(t, s.SelectRadioButton(ctx, radio))
	selected, _ = radio.IsSelected()
	assert.True(t, selected)

	assert.ErrorIs(t, s.SelectRadioButton(ctx, box), core.ErrInvalidAttribute)
}

func TestService_InputText(t *testing.T) {
	s, _ := newService(t, "visible")
	ctx := context.Background()
	in := mock.NewElement("input").WithAttr("value", "old")

	require.NoError(t, s.InputText(ctx, in, "new"))
	v, _ := in.Attribute("value")
	assert.Equal(t, "new", v)

	require.NoError(t, s.InputText(ctx, in, ""))
	v, _ = in.Attribute("value")
	assert.Empty(t, v)
	assert.Equal(t, []string{"new"}, in.Typed())

	err := s.InputText(ctx, mock.NewElement("input").WithAttr("type", "checkbox"), "x")
	assert.ErrorIs(t, err, core.ErrInvalidAttribute)
}

func TestService_DOMScripts(t *testing.T) {
	s, d := newService(t, "visible")
	first, second, third := mock.NewElement("li"), mock.NewElement("li"), mock.NewElement("li")
	list := mock.NewElement("ul").Append(first, second, third)
	d.Body().Append(list)

	prev, err := s.PreviousSibling(second)
	require.NoError(t, err)
	assert.Same(t, first, prev)

	next, err := s.NextSibling(second)
	require.NoError(t, err)
	assert.Same(t, third, next)

	parent, err := s.Parent(second)
	require.NoError(t, err)
	assert.Same(t, list, parent)

	child, err := s.Child(list, 2)
	require.NoError(t, err)
	assert.Same(t, third, child)

	_, err = s.PreviousSibling(first)
	assert.True(t, core.IsNotFound(err))

	require.NoError(t, s.JavaScriptClick(first))
	assert.Equal(t, 1, first.Clicks())
}

func TestService_FindElementsByLabel(t *testing.T) {
	s, d := newService(t, "visible")
	email := mock.NewElement("input").WithID("email")
	d.Body().Append(email)
	d.On(by.XPath(".//label[text()='Email']"),
		mock.NewElement("label").WithAttr("for", "email"),
		mock.NewElement("label"))

	els, err := s.FindElementsByLabel(d, "Email")
	require.NoError(t, err)
	require.Len(t, els, 1)
	assert.Same(t, email, els[0])

	_, err = s.FindElementsByLabel(d, "Phone")
	require.Error(t, err)
	assert.Equal(t, `No elements can be found by label "Phone".`, err.Error())
}

func TestXPathStatistics(t *testing.T) {
	d := mock.New(mock.Config{})
	d.Body().Append(mock.NewElement("td"), mock.NewElement("td"))

	stats, err := XPathStatistics(d, ".//td", ".//th")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{".//td": 2, ".//th": 0}, stats)
	assert.Equal(t, ".//td: 2\n.//th: 0\n", FormatStatistics(stats, ".//td", ".//th"))
}

func TestPessimist_Click(t *testing.T) {
	p := Pessimistically().WithTiming(100*time.Millisecond, time.Millisecond)
	ctx := context.Background()

	// the dialog button closes on the second click
	btn := mock.NewElement("button").OnClick(func(e *mock.Element) error {
		if e.Clicks() >= 2 {
			e.SetDisplayed(false)
		}
		return nil
	})
	require.NoError(t, p.Click(ctx, btn))
	assert.Equal(t, 2, btn.Clicks())

	stuck := mock.NewElement("button")
	assert.ErrorIs(t, p.Click(ctx, stuck), core.ErrWaitTimeout)
}

func TestPessimist_ClickClassAndAttribute(t *testing.T) {
	p := Pessimistically().WithTiming(100*time.Millisecond, time.Millisecond)
	ctx := context.Background()

	toggle := mock.NewElement("div").WithClass("tab").OnClick(func(e *mock.Element) error {
		if e.Clicks() == 3 {
			e.SetAttr("class", "tab selected")
		}
		return nil
	})
	require.NoError(t, p.ClickAndHasClass(ctx, toggle, "selected"))
	assert.Equal(t, 3, toggle.Clicks())

	require.NoError(t, p.ClickAndHasNoClass(ctx, mock.NewElement("div").WithClass("tab"), "selected"))

	menu := mock.NewElement("div").OnClick(func(e *mock.Element) error {
		e.SetAttr("aria-owns", "menu-1")
		return nil
	})
	owns, err := p.ClickGetAttribute(ctx, menu, "aria-owns")
	require.NoError(t, err)
	assert.Equal(t, "menu-1", owns)
}

func TestClickers(t *testing.T) {
	s, d := newService(t, "visible")
	ctx := context.Background()
	btn := mock.NewElement("button")
	d.Body().Append(btn)

	require.NoError(t, s.Actions().Click(ctx, btn))
	assert.Equal(t, 1, btn.Clicks())
	assert.Equal(t, 1, d.CallCount("mouse click"))

	require.NoError(t, s.ActionsHover().Click(ctx, btn))
	require.NoError(t, s.JavaScript().Click(ctx, btn))
	require.NoError(t, s.Button().Click(ctx, btn))
	require.NoError(t, Native.Click(ctx, btn))
	assert.Equal(t, 5, btn.Clicks())

	assert.ErrorIs(t, s.Link().Click(ctx, btn), core.ErrInvalidTagName)
}

func TestSatisfies(t *testing.T) {
	ctx := context.Background()
	counter := mock.NewElement("button")
	third := wait.Condition[bool]{Apply: func(core.SearchContext) (bool, error) {
		return counter.Clicks() >= 3, nil
	}}

	require.NoError(t, Satisfies(Native, third).Click(ctx, counter))
	assert.Equal(t, 3, counter.Clicks())
}
