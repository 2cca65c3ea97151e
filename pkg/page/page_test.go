package page

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/devicelab-dev/basil/pkg/basil"
	"github.com/devicelab-dev/basil/pkg/by"
	"github.com/devicelab-dev/basil/pkg/config"
	"github.com/devicelab-dev/basil/pkg/core"
	"github.com/devicelab-dev/basil/pkg/driver/mock"
	"github.com/devicelab-dev/basil/pkg/wait"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fixture struct {
	d      *mock.Driver
	ctx    *basil.Context
	cfg    *config.Config
	form   *mock.Element
	user   *mock.Element
	submit *mock.Element
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := config.Defaults()
	cfg.Wait.Interval = time.Millisecond
	cfg.Wait.Timeout = 30 * time.Millisecond
	cfg.PageObject.LocateTimeout = 30 * time.Millisecond
	cfg.PageObject.WaitTimeout = 30 * time.Millisecond

	f := &fixture{d: mock.New(mock.Config{}), cfg: cfg}
	f.user = mock.NewElement("input").WithID("user").WithName("user")
	f.submit = mock.NewElement("button").WithText("Sign in")
	f.form = mock.NewElement("form").WithID("login").Append(f.user, f.submit)
	f.d.Body().Append(f.form)
	f.ctx = basil.NewDriverContext(f.d)
	return f
}

func TestParseTimerStyle(t *testing.T) {
	tests := []struct {
		in      string
		want    TimerStyle
		wantErr bool
	}{
		{"concise", Concise, false},
		{"VERBOSE", Verbose, false},
		{" Verbose ", Verbose, false},
		{"", Concise, false},
		{"chatty", Concise, true},
	}
	for _, tt := range tests {
		got, err := ParseTimerStyle(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseTimerStyle(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseTimerStyle(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestObject_InitializesByID(t *testing.T) {
	f := newFixture(t)
	hooked := false

	o, err := New(f.ctx, by.ID("login"), f.cfg, Options{
		Name: "Login",
		Elements: func(o *Object) error {
			hooked = true
			assert.True(t, o.IsInitialized())
			return nil
		},
	})
	require.NoError(t, err)
	assert.True(t, hooked)

	root, err := o.Root()
	require.NoError(t, err)
	raw, err := core.Unwrap(root)
	require.NoError(t, err)
	assert.Same(t, f.form, raw)

	assert.Regexp(t, `^\[Login @ [0-9a-f]{8}\] initialized in \d+ ms$`, o.TimerMessage())
	assert.Equal(t, "Login{By.id: login}", o.String())

	user := o.Element(by.Name("user"))
	require.NoError(t, user.Click())
	assert.Equal(t, 1, f.user.Clicks())
}

func TestObject_VerboseTimer(t *testing.T) {
	f := newFixture(t)
	f.cfg.PageObject.TimerStyle = "Verbose"

	o, err := New(f.ctx, by.ID("login"), f.cfg, Options{})
	require.NoError(t, err)
	assert.Regexp(t, `^\[PageObject @ \w{8}\] initialized in \d+ ms \(token: \d+ ms elements: \d+ ms\)$`, o.TimerMessage())
}

func TestObject_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := New(f.ctx, by.ID("missing"), f.cfg, Options{})
	require.Error(t, err)
	assert.True(t, core.IsNotFound(err), "got %v", err)
	assert.Contains(t, err.Error(), "Cannot locate page object by: By.id: missing")
}

func TestObject_HookError(t *testing.T) {
	f := newFixture(t)
	_, err := New(f.ctx, by.ID("login"), f.cfg, Options{
		Elements: func(*Object) error { return core.ErrInvalidElement },
	})
	assert.ErrorIs(t, err, core.ErrInvalidElement)
}

func TestObject_OnTheFly(t *testing.T) {
	f := newFixture(t)

	o, err := New(f.ctx, by.ID("login"), f.cfg, Options{OnTheFly: true})
	require.NoError(t, err)
	assert.False(t, o.IsInitialized())
	assert.Equal(t, 0, f.d.CallCount("find"))

	require.NoError(t, o.Initialize())
	assert.True(t, o.IsInitialized())

	eager, err := New(f.ctx, by.ID("login"), f.cfg, Options{})
	require.NoError(t, err)
	assert.ErrorIs(t, eager.Initialize(), core.ErrIllegalState)
}

func TestObject_OnTheFlyResolvesOnUse(t *testing.T) {
	f := newFixture(t)
	o, err := New(f.ctx, by.ID("login"), f.cfg, Options{OnTheFly: true})
	require.NoError(t, err)

	sc, err := o.Bound()
	require.NoError(t, err)
	assert.Same(t, f.form, sc)
	assert.True(t, o.IsInitialized())
}

func TestObject_PresetRoot(t *testing.T) {
	f := newFixture(t)

	o, err := New(f.ctx, by.Locator{}, f.cfg, Options{Root: f.form})
	require.NoError(t, err)
	assert.Equal(t, "PageObject{root}", o.String())

	hidden := mock.NewElement("div").Hidden()
	f.d.Body().Append(hidden)
	_, err = New(f.ctx, by.Locator{}, f.cfg, Options{Root: hidden})
	assert.ErrorIs(t, err, core.ErrWaitTimeout)

	_, err = New(f.ctx, by.Locator{}, f.cfg, Options{})
	assert.ErrorIs(t, err, core.ErrPageObjectInit)
}

func TestObject_LocateByID(t *testing.T) {
	f := newFixture(t)
	f.cfg.PageObject.LocateByID = true

	o, err := New(f.ctx, by.TagName("form"), f.cfg, Options{})
	require.NoError(t, err)
	loc, err := o.ConfidentLocator()
	require.NoError(t, err)
	assert.Equal(t, by.ID("login"), loc)
	assert.Equal(t, by.TagName("form"), o.Locator())
}

func TestObject_SameLocatorAsParent(t *testing.T) {
	f := newFixture(t)
	parent, err := New(f.ctx, by.XPath(".//form"), f.cfg, Options{Name: "Outer"})
	require.NoError(t, err)
	calls := f.d.CallCount("find")

	child, err := New(parent.Context, by.XPath(".//form"), f.cfg, Options{Name: "Inner"})
	require.NoError(t, err)
	assert.Equal(t, calls, f.d.CallCount("find"))

	root, err := child.Root()
	require.NoError(t, err)
	assert.Same(t, f.form, root)
}

func TestObject_EnabledAndVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o, err := New(f.ctx, by.ID("login"), f.cfg, Options{})
	require.NoError(t, err)

	enabled, err := o.IsEnabled()
	require.NoError(t, err)
	assert.True(t, enabled)

	f.form.SetAttr("class", "formDisabled")
	disabled, err := o.IsDisabled()
	require.NoError(t, err)
	assert.True(t, disabled)

	require.NoError(t, o.WaitUntilVisible(ctx))
	assert.ErrorIs(t, o.WaitUntilInvisible(ctx), core.ErrWaitTimeout)

	f.form.SetDisplayed(false)
	require.NoError(t, o.WaitUntilInvisible(ctx))
}

func TestObject_ClickAndExit(t *testing.T) {
	f := newFixture(t)
	o, err := New(f.ctx, by.ID("login"), f.cfg, Options{})
	require.NoError(t, err)

	f.submit.OnClick(func(e *mock.Element) error {
		e.SetDisplayed(false)
		f.form.SetDisplayed(false)
		return nil
	})
	require.NoError(t, o.ClickAndExit(context.Background(), f.submit))
	assert.Equal(t, 1, f.submit.Clicks())
}

func TestNullToNoSuch(t *testing.T) {
	_, err := NullToNoSuch(nil, "save button")
	require.Error(t, err)
	assert.True(t, core.IsNotFound(err))
	assert.Equal(t, `The "save button" is not available.`, err.Error())

	el := mock.NewElement("button")
	got, err := NullToNoSuch(el, "save button")
	require.NoError(t, err)
	assert.Same(t, el, got)
}

func TestBaseLookup(t *testing.T) {
	f := newFixture(t)
	email := mock.NewElement("input").WithID("email").WithAttr("data-role", "mail")
	f.d.Body().Append(
		mock.NewElement("label").WithAttr("for", "email").WithText(" Email "),
		mock.NewElement("label").WithText("Loose"),
		email,
		mock.NewElement("a").WithText("Forgot password"),
	)
	l := NewBaseLookup(f.d)

	btn, err := l.ByTagAndText("button", "Sign in")
	require.NoError(t, err)
	assert.Same(t, f.submit, btn)

	btn, err = l.ByPartialText(by.TagName("button"), "Sign")
	require.NoError(t, err)
	assert.Same(t, f.submit, btn)

	_, err = l.ByText(by.TagName("button"), "Sign")
	assert.True(t, core.IsNotFound(err))

	got, err := l.ByLabelText("Email")
	require.NoError(t, err)
	assert.Same(t, email, got)

	got, err = l.ByPartialLabel("Ema")
	require.NoError(t, err)
	assert.Same(t, email, got)

	_, err = l.ByLabelText("Loose")
	assert.True(t, core.IsNotFound(err))

	got, err = l.ByAttribute(by.TagName("input"), "data-role", "mail")
	require.NoError(t, err)
	assert.Same(t, email, got)

	link, err := l.PartialLink("Forgot")
	require.NoError(t, err)
	text, _ := link.Text()
	assert.Equal(t, "Forgot password", text)
}

func TestCachedLookup(t *testing.T) {
	f := newFixture(t)
	first := mock.NewElement("li").WithText("Apple")
	hidden := mock.NewElement("li").WithText("Banana").Hidden()
	second := mock.NewElement("li").WithText("Apple")
	empty := mock.NewElement("li")
	f.d.Body().Append(mock.NewElement("ul").Append(first, hidden, second, empty))

	l := NewCachedLookup(f.d, 2)
	got, err := l.ByText(by.TagName("li"), "Apple")
	require.NoError(t, err)
	assert.Same(t, first, got)

	_, err = l.ByText(by.TagName("li"), "Banana")
	assert.True(t, core.IsNotFound(err))

	got, err = l.ByPartialText(by.TagName("li"), "ppl")
	require.NoError(t, err)
	assert.Same(t, first, got)

	// served from the snapshot until invalidated
	calls := f.d.CallCount("find")
	hidden.SetDisplayed(true)
	_, err = l.ByText(by.TagName("li"), "Banana")
	assert.True(t, core.IsNotFound(err))
	assert.Equal(t, calls, f.d.CallCount("find"))

	l.Invalidate(by.TagName("li"))
	got, err = l.ByText(by.TagName("li"), "Banana")
	require.NoError(t, err)
	assert.Same(t, hidden, got)

	_, err = l.ByLabel(nil)
	assert.ErrorIs(t, err, core.ErrNoSuchElement)
}

func TestElementLookup(t *testing.T) {
	f := newFixture(t)
	email := mock.NewElement("input").WithID("email")
	label := mock.NewElement("label").WithAttr("for", "email").WithText("Email")
	f.d.Body().Append(label, email, mock.NewElement("a").WithText("Help"))
	f.d.On(by.XPath("//*[text()='Email']"), label)
	f.d.On(by.XPath("//label[contains(text(), 'Ema')]"), label)

	w := wait.New(nil, 30*time.Millisecond).PollingEvery(time.Millisecond)
	l := NewElementLookup(f.ctx, w, 2)

	btn, err := l.ByText(by.TagName("button"), "Sign in")
	require.NoError(t, err)
	assert.Same(t, f.submit, btn)

	// a miss refreshes the cache on the next poll
	later := mock.NewElement("button").WithText("Later")
	f.d.Body().Append(later)
	got, err := l.ByText(by.TagName("button"), "Later")
	require.NoError(t, err)
	assert.Same(t, later, got)

	lazy, err := l.ByLabelText("Email")
	require.NoError(t, err)
	require.NoError(t, lazy.Click())
	assert.Equal(t, 1, email.Clicks())

	lbl, err := l.Label("Email")
	require.NoError(t, err)
	assert.Same(t, label, lbl)
	tag, err := lbl.TagName()
	require.NoError(t, err)
	assert.Equal(t, "label", tag)

	bound, err := l.ByLabel(lbl)
	require.NoError(t, err)
	require.NoError(t, bound.Click())
	assert.Equal(t, 2, email.Clicks())

	partial, err := l.ByPartialLabel("Ema")
	require.NoError(t, err)
	require.NoError(t, partial.SendKeys("a@b.c"))
	assert.Equal(t, []string{"a@b.c"}, email.Typed())

	link, err := l.Link("Help")
	require.NoError(t, err)
	require.NoError(t, link.Click())

	_, err = l.ByText(by.TagName("button"), "Nope")
	assert.ErrorIs(t, err, core.ErrWaitTimeout)

	root, err := l.FirstVisibleElement(by.TagName("form"))
	require.NoError(t, err)
	raw, err := core.Unwrap(root)
	require.NoError(t, err)
	assert.Same(t, f.form, raw)
}

func TestObject_Lookup(t *testing.T) {
	f := newFixture(t)
	o, err := New(f.ctx, by.ID("login"), f.cfg, Options{})
	require.NoError(t, err)
	f.d.On(by.XPath(".//*[@id='login']//button"), f.submit)

	l, err := o.Lookup()
	require.NoError(t, err)
	btn, err := l.ByTagAndText("button", "Sign in")
	require.NoError(t, err)
	assert.Same(t, f.submit, btn)
}

func TestFind(t *testing.T) {
	f := newFixture(t)
	one := mock.NewElement("li").WithText("One").WithAttr("data-x", "1")
	two := mock.NewElement("li").WithText("Two").WithAttr("data-x", "2")
	three := mock.NewElement("li").WithText("Three")
	f.d.Body().Append(mock.NewElement("ul").Append(one, two, three))

	res := In(f.d).ByTagName("li")
	assert.Equal(t, 3, res.Len())

	got, err := res.Filter(WithText("Two")).Get()
	require.NoError(t, err)
	assert.Same(t, two, got)

	got, err = res.Filter(WithPartialText("hre")).Get()
	require.NoError(t, err)
	assert.Same(t, three, got)

	all, err := res.Filter(WithAttribute("data-x")).All()
	require.NoError(t, err)
	assert.Len(t, all, 2)

	got, err = res.Filter(WithAttributeValue("data-x", "1")).Get()
	require.NoError(t, err)
	assert.Same(t, one, got)

	_, err = res.GetAt(5)
	require.Error(t, err)
	assert.Equal(t, "The search only resulted 3 elements.", err.Error())

	_, err = res.Filter(WithAttributeValue("data-x", "9")).Get()
	require.Error(t, err)
	assert.Equal(t, "Unable to find elements with: Filter.withAttributeValue: data-x=9", err.Error())

	empty := In(f.d).ByID("none")
	assert.Equal(t, 0, empty.Len())
	assert.Equal(t, "Unable to find elements with: By.id: none", empty.Err().Error())
	_, err = empty.Filter(WithText("x")).Get()
	assert.Same(t, empty.Err(), err)
}

func TestFilter_String(t *testing.T) {
	tests := []struct {
		f    Filter
		want string
	}{
		{WithText("x"), "Filter.withText: x"},
		{WithPartialText("x"), "Filter.withPartialText: x"},
		{WithAttribute("x"), "Filter.withAttribute: x"},
		{WithAttributeValue("a", "v"), "Filter.withAttributeValue: a=v"},
	}
	for _, tt := range tests {
		if got := tt.f.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
