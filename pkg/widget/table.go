package widget

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/devicelab-dev/basil/pkg/basil"
	"github.com/devicelab-dev/basil/pkg/by"
	"github.com/devicelab-dev/basil/pkg/core"
	"github.com/devicelab-dev/basil/pkg/logger"
	"github.com/devicelab-dev/basil/pkg/xpath"
)

// Table reads a plain <table> through XPath. Row and column indexes start
// at 1, like XPath positions.
type Table struct {
	ctx   *basil.Context
	xpath string
	rows  int
	cols  int

	mu       sync.Mutex
	snapshot map[[2]int]string
	caching  bool
}

// NewTable detects the size of table. Cells are looked up from ctx, which
// is best the driver context so each cell costs one query. rel is appended
// to the generated path of table, for example "/tbody".
func NewTable(ctx *basil.Context, table core.WebElement, rel string) (*Table, error) {
	raw, err := core.Unwrap(table)
	if err != nil {
		return nil, err
	}
	root, err := basil.GenerateXPath(raw)
	if err != nil {
		return nil, err
	}
	t := &Table{ctx: ctx, xpath: root + rel, snapshot: make(map[[2]int]string)}

	rows, err := ctx.FindElements(by.XPath(t.xpath + "/tr"))
	if err != nil {
		return nil, err
	}
	t.rows = len(rows)
	if t.rows == 0 {
		logger.Warn("Unable to detect column size because there are no rows in the table.")
		return t, nil
	}
	cells, err := ctx.FindElements(by.XPath(t.xpath + "/tr[1]/td"))
	if err != nil {
		return nil, err
	}
	if t.cols, err = columnCount(cells); err != nil {
		return nil, err
	}
	logger.Info("Table (%d x %d) detected at location %s.", t.rows, t.cols, t.xpath)
	return t, nil
}

func columnCount(cells []core.WebElement) (int, error) {
	n := 0
	for _, c := range cells {
		span, ok, err := c.LookupAttribute("colspan")
		if err != nil {
			return 0, err
		}
		if !ok || span == "" {
			n++
			continue
		}
		v, err := strconv.Atoi(span)
		if err != nil {
			return 0, fmt.Errorf("invalid colspan %q: %w", span, err)
		}
		n += v
	}
	return n, nil
}

func (t *Table) XPath() string   { return t.xpath }
func (t *Table) RowCount() int    { return t.rows }
func (t *Table) ColumnCount() int { return t.cols }

// EnableSnapshot makes cells remember the text read on first access.
func (t *Table) EnableSnapshot(on bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.caching = on
}

// Invalidate forgets every remembered cell.
func (t *Table) Invalidate() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snapshot = make(map[[2]int]string)
}

// Snapshot returns a copy of the remembered cells keyed by row and column.
func (t *Table) Snapshot() map[[2]int]string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[[2]int]string, len(t.snapshot))
	for k, v := range t.snapshot {
		out[k] = v
	}
	return out
}

// Row addresses the row at index.
func (t *Table) Row(index int) Row {
	return Row{table: t, index: index, xpath: fmt.Sprintf("%s/tr[%d]", t.xpath, index)}
}

// RowWhere addresses the first row whose column reads value.
func (t *Table) RowWhere(column int, value string) Row {
	return Row{table: t, index: -1,
		xpath: fmt.Sprintf("%s/tr[td[%d][.=%s]]", t.xpath, column, xpath.Literal(value))}
}

// RowWhere2 addresses the first row matching two column values.
func (t *Table) RowWhere2(column1 int, value1 string, column2 int, value2 string) Row {
	return Row{table: t, index: -1,
		xpath: fmt.Sprintf("%s/tr[td[%d][.=%s] and td[%d][.=%s]]",
			t.xpath, column1, xpath.Literal(value1), column2, xpath.Literal(value2))}
}

// Column addresses the column at index.
func (t *Table) Column(index int) Column {
	return Column{table: t, index: index}
}

// Row is one table row.
type Row struct {
	table *Table
	index int
	xpath string
}

// Index returns the row index, or -1 for rows found by value.
func (r Row) Index() int { return r.index }

func (r Row) XPath() string { return r.xpath }

// Cell returns the cell of the row in column.
func (r Row) Cell(column int) Cell {
	return Cell{table: r.table, row: r.index, column: column, xpath: fmt.Sprintf("%s/td[%d]", r.xpath, column)}
}

// Element returns the lazy row element.
func (r Row) Element() *basil.Element {
	return basil.New(r.table.ctx, by.XPath(r.xpath))
}

// Values reads every cell of the row.
func (r Row) Values() ([]string, error) {
	out := make([]string, 0, r.table.cols)
	for c := 1; c <= r.table.cols; c++ {
		v, err := r.Cell(c).Value()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Column is one table column.
type Column struct {
	table *Table
	index int
}

func (c Column) Index() int { return c.index }

// Cell returns the cell of the column in row.
func (c Column) Cell(row int) Cell {
	return Cell{table: c.table, row: row, column: c.index,
		xpath: fmt.Sprintf("%s/tr[%d]/td[%d]", c.table.xpath, row, c.index)}
}

// Values reads every cell of the column.
func (c Column) Values() ([]string, error) {
	out := make([]string, 0, c.table.rows)
	for r := 1; r <= c.table.rows; r++ {
		v, err := c.Cell(r).Value()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Cell is one table cell.
type Cell struct {
	table       *Table
	row, column int
	xpath       string
}

func (c Cell) XPath() string { return c.xpath }

// Element returns the lazy cell element.
func (c Cell) Element() *basil.Element {
	return basil.New(c.table.ctx, by.XPath(c.xpath))
}

// Value returns the cell text, from the snapshot when enabled.
func (c Cell) Value() (string, error) {
	t := c.table
	t.mu.Lock()
	caching := t.caching && c.row > 0
	v, ok := t.snapshot[[2]int{c.row, c.column}]
	t.mu.Unlock()
	if caching && ok {
		return v, nil
	}

	v, err := c.Element().Text()
	if err != nil {
		return "", err
	}
	if caching {
		t.mu.Lock()
		t.snapshot[[2]int{c.row, c.column}] = v
		t.mu.Unlock()
	}
	return v, nil
}
