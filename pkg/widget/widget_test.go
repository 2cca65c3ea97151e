package widget

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devicelab-dev/basil/pkg/aria"
	"github.com/devicelab-dev/basil/pkg/basil"
	"github.com/devicelab-dev/basil/pkg/by"
	"github.com/devicelab-dev/basil/pkg/config"
	"github.com/devicelab-dev/basil/pkg/core"
	"github.com/devicelab-dev/basil/pkg/driver/mock"
	"github.com/devicelab-dev/basil/pkg/interact"
	"github.com/devicelab-dev/basil/pkg/wait"
)

func newService(t *testing.T) (*interact.Service, *mock.Driver) {
	t.Helper()
	cfg := config.Defaults()
	cfg.Wait.Interval = time.Millisecond
	cfg.Wait.Timeout = 30 * time.Millisecond
	d := mock.New(mock.Config{})
	return interact.New(d, cfg), d
}

func TestParseCheckState(t *testing.T) {
	tests := []struct {
		in      string
		want    CheckState
		wantErr bool
	}{
		{"true", Checked, false},
		{"YES", Checked, false},
		{"false", Unchecked, false},
		{"No", Unchecked, false},
		{"mixed", Mixed, false},
		{"unavailable", Unavailable, false},
		{"maybe", Unavailable, true},
	}
	for _, tt := range tests {
		got, err := ParseCheckState(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseCheckState(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseCheckState(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if CheckStateFromBool(true) != Checked || CheckStateFromBool(false) != Unchecked {
		t.Error("CheckStateFromBool mismatch")
	}
}

func TestAria(t *testing.T) {
	box := mock.NewElement("div").WithAttr("aria-checked", "mixed").WithAttr("aria-expanded", "true")

	state, err := AriaCheckState(box)
	require.NoError(t, err)
	assert.Equal(t, Mixed, state)

	state, err = AriaCheckState(mock.NewElement("div"))
	require.NoError(t, err)
	assert.Equal(t, Unavailable, state)

	ok, err := Verify(box, aria.Expanded)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Verify(box, aria.Pressed)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAriaOwns(t *testing.T) {
	_, d := newService(t)
	menu := mock.NewElement("ul").WithID("menu-1")
	combo := mock.NewElement("div").OnClick(func(e *mock.Element) error {
		e.SetAttr("aria-owns", "menu-1")
		return nil
	})
	d.Body().Append(combo, menu)
	w := wait.New(d, 30*time.Millisecond).PollingEvery(time.Millisecond)

	got, err := AriaOwnsElement(context.Background(), w, d, combo, nil)
	require.NoError(t, err)
	assert.Same(t, menu, got)

	_, err = AriaOwns(context.Background(), w, mock.NewElement("div"), nil)
	assert.ErrorIs(t, err, core.ErrWaitTimeout)
}

func TestWidget(t *testing.T) {
	s, _ := newService(t)
	el := mock.NewElement("input").WithID("q").WithName("query")
	w := New(s, el)

	id, _ := w.ID()
	name, _ := w.Name()
	assert.Equal(t, "q", id)
	assert.Equal(t, "query", name)

	has, err := w.HasValue()
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, w.SendKeys("go"))
	v, _ := w.Value()
	assert.Equal(t, "go", v)
	require.NoError(t, w.Clear())

	disabled, err := w.IsDisabled()
	require.NoError(t, err)
	assert.False(t, disabled)
}

func TestTextBox(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()

	in := mock.NewElement("input").WithAttr("value", "old")
	box, err := NewTextBox(s, in)
	require.NoError(t, err)
	require.NoError(t, box.Input(ctx, "new"))
	v, _ := box.Value()
	assert.Equal(t, "new", v)

	require.NoError(t, box.SetText(""))
	v, _ = box.Value()
	assert.Empty(t, v)

	_, err = NewTextBox(s, mock.NewElement("input").WithAttr("type", "radio"))
	assert.ErrorIs(t, err, core.ErrInvalidAttribute)

	area, err := NewTextarea(s, mock.NewElement("textarea"))
	require.NoError(t, err)
	require.NoError(t, area.SetText("notes"))
	v, _ = area.Value()
	assert.Equal(t, "notes", v)

	_, err = NewTextarea(s, in)
	assert.ErrorIs(t, err, core.ErrInvalidTagName)
}

func TestNativeSelect(t *testing.T) {
	s, _ := newService(t)
	opts := []*mock.Element{
		mock.NewElement("option").WithAttr("value", "a").WithText("Apple").Checked(),
		mock.NewElement("option").WithAttr("value", "b").WithText("Banana"),
		mock.NewElement("option").WithAttr("value", "c").WithText("Cherry"),
	}
	for _, o := range opts {
		o.OnClick(func(e *mock.Element) error {
			for _, other := range opts {
				other.SetSelected(other == e)
			}
			return nil
		})
	}
	sel, err := NewNativeSelect(s, mock.NewElement("select").Append(opts...))
	require.NoError(t, err)

	all, err := sel.Options()
	require.NoError(t, err)
	assert.Len(t, all, 3)

	got, err := sel.SelectedOption()
	require.NoError(t, err)
	assert.Equal(t, "a", got.Value())

	require.NoError(t, sel.SelectByValue("c"))
	got, err = sel.SelectedOption()
	require.NoError(t, err)
	assert.Equal(t, 2, got.Index())

	require.NoError(t, sel.SelectOption(all[1]))
	got, _ = sel.SelectedOption()
	assert.Equal(t, "b", got.Value())

	assert.True(t, core.IsNotFound(sel.SelectByIndex(7)))
	assert.True(t, core.IsNotFound(sel.SelectByValue("z")))

	_, err = NewNativeSelect(s, mock.NewElement("div"))
	assert.ErrorIs(t, err, core.ErrInvalidTagName)
}

func TestLoading(t *testing.T) {
	_, d := newService(t)
	ctx := context.Background()
	spinner := mock.NewElement("div").WithClass("spinner").Hidden()
	d.Body().Append(spinner)

	l := NewLoadingElement(d, spinner, 50*time.Millisecond)
	l.SetIntervals(time.Millisecond, time.Millisecond)

	status, err := l.Status()
	require.NoError(t, err)
	assert.Equal(t, LoadingIdle, status)
	require.NoError(t, l.WaitImplicitly(ctx, 0))

	spinner.SetDisplayed(true)
	status, _ = l.Status()
	assert.Equal(t, LoadingInProgress, status)

	go func() {
		time.Sleep(5 * time.Millisecond)
		spinner.SetDisplayed(false)
	}()
	require.NoError(t, l.WaitImplicitly(ctx, time.Millisecond))
	status, _ = l.Status()
	assert.Equal(t, LoadingIdle, status)
}

func TestLoading_Unavailable(t *testing.T) {
	_, d := newService(t)
	ctx := context.Background()

	strict := NewLoading(d, by.ClassName("spinner"), 20*time.Millisecond, false)
	assert.True(t, core.IsNotFound(strict.WaitImplicitly(ctx, 0)))
	_, err := strict.WaitUntilBegin(ctx)
	assert.True(t, core.IsNotFound(err))

	lenient := NewLoading(d, by.ClassName("spinner"), 50*time.Millisecond, true)
	lenient.SetIntervals(time.Millisecond, time.Millisecond)
	require.NoError(t, lenient.WaitImplicitly(ctx, 0))

	spinner := mock.NewElement("div").WithClass("spinner")
	d.Body().Append(spinner)
	got, err := lenient.WaitUntilBegin(ctx)
	require.NoError(t, err)
	assert.Same(t, spinner, got)

	spinner.SetDisplayed(false)
	require.NoError(t, lenient.WaitUntilFinish(ctx))
}

// newTable builds a table with an id and registers the XPath queries the
// table driver issues for it.
func newTable(d *mock.Driver, rows [][]string) *mock.Element {
	table := mock.NewElement("table").WithID("t")
	base := "//table[@id='t']"
	var trs []*mock.Element
	for r, row := range rows {
		tr := mock.NewElement("tr")
		var tds []*mock.Element
		for c, text := range row {
			td := mock.NewElement("td").WithText(text)
			tds = append(tds, td)
			d.On(by.XPath(fmt.Sprintf("%s/tr[%d]/td[%d]", base, r+1, c+1)), td)
		}
		tr.Append(tds...)
		trs = append(trs, tr)
		d.On(by.XPath(fmt.Sprintf("%s/tr[%d]", base, r+1)), tr)
		if r == 0 {
			d.On(by.XPath(base+"/tr[1]/td"), tds...)
		}
	}
	table.Append(trs...)
	d.On(by.XPath(base+"/tr"), trs...)
	d.Body().Append(table)
	return table
}

func TestTable(t *testing.T) {
	_, d := newService(t)
	el := newTable(d, [][]string{
		{"Alice", "30"},
		{"Bob", "25"},
		{"Carol", "41"},
	})
	d.On(by.XPath("//table[@id='t']/tr[td[1][.='Bob']]/td[2]"), mock.NewElement("td").WithText("25"))
	d.On(by.XPath("//table[@id='t']/tr[td[1][.='Carol'] and td[2][.='41']]/td[1]"), mock.NewElement("td").WithText("Carol"))

	table, err := NewTable(basil.NewDriverContext(d), el, "")
	require.NoError(t, err)
	assert.Equal(t, "//table[@id='t']", table.XPath())
	assert.Equal(t, 3, table.RowCount())
	assert.Equal(t, 2, table.ColumnCount())

	values, err := table.Row(2).Values()
	require.NoError(t, err)
	assert.Equal(t, []string{"Bob", "25"}, values)

	column, err := table.Column(1).Values()
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice", "Bob", "Carol"}, column)

	age, err := table.RowWhere(1, "Bob").Cell(2).Value()
	require.NoError(t, err)
	assert.Equal(t, "25", age)
	assert.Equal(t, -1, table.RowWhere(1, "Bob").Index())

	name, err := table.RowWhere2(1, "Carol", 2, "41").Cell(1).Value()
	require.NoError(t, err)
	assert.Equal(t, "Carol", name)
}

func TestTable_Snapshot(t *testing.T) {
	_, d := newService(t)
	el := newTable(d, [][]string{{"x", "y"}})
	table, err := NewTable(basil.NewDriverContext(d), el, "")
	require.NoError(t, err)
	table.EnableSnapshot(true)

	v, err := table.Row(1).Cell(2).Value()
	require.NoError(t, err)
	assert.Equal(t, "y", v)
	assert.Equal(t, map[[2]int]string{{1, 2}: "y"}, table.Snapshot())

	calls := d.CallCount("find")
	v, err = table.Column(2).Cell(1).Value()
	require.NoError(t, err)
	assert.Equal(t, "y", v)
	assert.Equal(t, calls, d.CallCount("find"))

	table.Invalidate()
	assert.Empty(t, table.Snapshot())
}

func TestColumnCount_Colspan(t *testing.T) {
	cells := []core.WebElement{
		mock.NewElement("td").WithAttr("colspan", "2"),
		mock.NewElement("td"),
		mock.NewElement("td").WithAttr("colspan", "3"),
	}
	n, err := columnCount(cells)
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	_, err = columnCount([]core.WebElement{mock.NewElement("td").WithAttr("colspan", "wide")})
	assert.Error(t, err)
}

func TestTable_Empty(t *testing.T) {
	_, d := newService(t)
	el := mock.NewElement("table").WithID("t")
	d.Body().Append(el)

	table, err := NewTable(basil.NewDriverContext(d), el, "")
	require.NoError(t, err)
	assert.Zero(t, table.RowCount())
	assert.Zero(t, table.ColumnCount())
}
