// Package dataset provides the in-memory tabular snapshot that rule checkers
// and the quality calculator read. A Dataset is immutable for the duration of
// a validation call; checkers must never modify the cells they are handed.
package dataset

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrMissingColumn is returned when a rule targets a column the dataset does
// not have. The executor turns it into an ERRORED outcome for that rule only.
var ErrMissingColumn = errors.New("column not found")

// Dataset is a named, column-major table. A nil cell represents a null.
type Dataset struct {
	name    string
	columns []string
	index   map[string]int
	cells   [][]any // cells[col][row]
	rows    int
	asOf    time.Time
}

// Option configures dataset construction.
type Option func(*options)

type options struct {
	columns []string
	asOf    time.Time
}

// WithColumns fixes the column set and order. Records may carry extra keys;
// they are ignored. Missing keys become nulls.
func WithColumns(cols ...string) Option {
	return func(o *options) { o.columns = cols }
}

// WithAsOf records when the data was produced, used by the timeliness
// dimension. Defaults to the time of construction.
func WithAsOf(t time.Time) Option {
	return func(o *options) { o.asOf = t }
}

// FromRecords builds a dataset from row-oriented records. Without WithColumns
// the column set is the sorted union of all record keys, so ordering stays
// deterministic across runs.
func FromRecords(name string, records []map[string]any, opts ...Option) *Dataset {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	cols := o.columns
	if len(cols) == 0 {
		seen := make(map[string]struct{})
		for _, rec := range records {
			for k := range rec {
				seen[k] = struct{}{}
			}
		}
		for k := range seen {
			cols = append(cols, k)
		}
		sort.Strings(cols)
	}

	d := newDataset(name, cols, len(records), o.asOf)
	for i, col := range cols {
		for r, rec := range records {
			if v, ok := rec[col]; ok {
				d.cells[i][r] = v
			}
		}
	}
	return d
}

// FromColumns builds a dataset from column-oriented data. Every column slice
// must have the same length.
func FromColumns(name string, columns []string, data [][]any, opts ...Option) (*Dataset, error) {
	if len(columns) != len(data) {
		return nil, fmt.Errorf("dataset %s: %d column names for %d columns", name, len(columns), len(data))
	}
	rows := 0
	if len(data) > 0 {
		rows = len(data[0])
	}
	for i, col := range data {
		if len(col) != rows {
			return nil, fmt.Errorf("dataset %s: column %s has %d rows, want %d", name, columns[i], len(col), rows)
		}
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	d := newDataset(name, columns, rows, o.asOf)
	for i := range data {
		copy(d.cells[i], data[i])
	}
	return d, nil
}

func newDataset(name string, columns []string, rows int, asOf time.Time) *Dataset {
	if asOf.IsZero() {
		asOf = time.Now()
	}
	d := &Dataset{
		name:    name,
		columns: append([]string(nil), columns...),
		index:   make(map[string]int, len(columns)),
		cells:   make([][]any, len(columns)),
		rows:    rows,
		asOf:    asOf,
	}
	for i, c := range columns {
		d.index[c] = i
		d.cells[i] = make([]any, rows)
	}
	return d
}

// Name returns the dataset identifier.
func (d *Dataset) Name() string { return d.name }

// Rows returns the number of rows.
func (d *Dataset) Rows() int { return d.rows }

// AsOf returns the data production timestamp.
func (d *Dataset) AsOf() time.Time { return d.asOf }

// Columns returns the column names in order.
func (d *Dataset) Columns() []string {
	return append([]string(nil), d.columns...)
}

// HasColumn reports whether the dataset has the named column.
func (d *Dataset) HasColumn(name string) bool {
	_, ok := d.index[name]
	return ok
}

// Column returns the cells of one column. The returned slice is the backing
// storage; callers must treat it as read-only.
func (d *Dataset) Column(name string) ([]any, error) {
	i, ok := d.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
	}
	return d.cells[i], nil
}

// NullCells counts nil cells across the whole table.
func (d *Dataset) NullCells() int {
	n := 0
	for _, col := range d.cells {
		for _, v := range col {
			if v == nil {
				n++
			}
		}
	}
	return n
}

// CellCount returns rows multiplied by columns.
func (d *Dataset) CellCount() int {
	return d.rows * len(d.columns)
}

// DistinctRows counts distinct value tuples over the given columns, or over
// all columns when none are given. Nulls participate as a distinct marker.
func (d *Dataset) DistinctRows(columns ...string) (int, error) {
	if len(columns) == 0 {
		columns = d.columns
	}
	cols := make([][]any, len(columns))
	for i, name := range columns {
		c, err := d.Column(name)
		if err != nil {
			return 0, err
		}
		cols[i] = c
	}

	seen := make(map[string]struct{}, d.rows)
	for r := 0; r < d.rows; r++ {
		seen[rowKey(cols, r)] = struct{}{}
	}
	return len(seen), nil
}

// rowKey builds a composite key for one row over the given columns. The unit
// separator keeps adjacent values from colliding and the type prefix keeps a
// null distinct from any string value.
func rowKey(cols [][]any, row int) string {
	key := ""
	for i, col := range cols {
		if i > 0 {
			key += "\x1f"
		}
		if col[row] == nil {
			key += "\x00"
		} else {
			key += "\x01" + fmt.Sprintf("%v", col[row])
		}
	}
	return key
}
