// Package table holds the column-oriented projection of a kline series.
//
// A Table is built once from fully decoded klines and never changes
// afterwards: every accessor hands out copies of the column buffers.
package table

import (
	"fmt"

	"klinefetch/internal/ports"
)

// DataType identifies the element type of a column.
type DataType int

const (
	Int64 DataType = iota
	Float64
	Int32
)

// String returns the string representation of the DataType.
func (t DataType) String() string {
	switch t {
	case Int64:
		return "i64"
	case Float64:
		return "f64"
	case Int32:
		return "i32"
	default:
		return "unknown"
	}
}

// Column is a named, homogeneously typed sequence of values.
type Column struct {
	name     string
	dtype    DataType
	int64s   []int64
	float64s []float64
	int32s   []int32
}

// NewInt64Column creates an i64 column. The values slice is copied.
func NewInt64Column(name string, values []int64) Column {
	return Column{name: name, dtype: Int64, int64s: append([]int64{}, values...)}
}

// NewFloat64Column creates an f64 column. The values slice is copied.
func NewFloat64Column(name string, values []float64) Column {
	return Column{name: name, dtype: Float64, float64s: append([]float64{}, values...)}
}

// NewInt32Column creates an i32 column. The values slice is copied.
func NewInt32Column(name string, values []int32) Column {
	return Column{name: name, dtype: Int32, int32s: append([]int32{}, values...)}
}

// Name returns the column name.
func (c Column) Name() string { return c.name }

// Type returns the element type.
func (c Column) Type() DataType { return c.dtype }

// Len returns the number of elements.
func (c Column) Len() int {
	switch c.dtype {
	case Int64:
		return len(c.int64s)
	case Float64:
		return len(c.float64s)
	case Int32:
		return len(c.int32s)
	default:
		return 0
	}
}

// Field describes one column of a table schema.
type Field struct {
	Name string
	Type DataType
}

// Table is an immutable set of equally long, uniquely named columns.
type Table struct {
	columns []Column
	index   map[string]int
	height  int
}

// New assembles columns into a Table. All columns must have the same length
// and distinct non-empty names; otherwise ports.ErrTableBuildFailed is returned.
func New(columns ...Column) (*Table, error) {
	t := &Table{
		columns: make([]Column, 0, len(columns)),
		index:   make(map[string]int, len(columns)),
	}
	for i, c := range columns {
		if c.name == "" {
			return nil, fmt.Errorf("%w: column %d has no name", ports.ErrTableBuildFailed, i)
		}
		if _, dup := t.index[c.name]; dup {
			return nil, fmt.Errorf("%w: duplicate column %q", ports.ErrTableBuildFailed, c.name)
		}
		if i == 0 {
			t.height = c.Len()
		} else if c.Len() != t.height {
			return nil, fmt.Errorf("%w: column %q has length %d, expected %d", ports.ErrTableBuildFailed, c.name, c.Len(), t.height)
		}
		t.index[c.name] = i
		t.columns = append(t.columns, c)
	}
	return t, nil
}

// Height returns the number of rows.
func (t *Table) Height() int { return t.height }

// Width returns the number of columns.
func (t *Table) Width() int { return len(t.columns) }

// ColumnNames returns the column names in table order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.name
	}
	return names
}

// Schema returns name and type of every column in table order.
func (t *Table) Schema() []Field {
	fields := make([]Field, len(t.columns))
	for i, c := range t.columns {
		fields[i] = Field{Name: c.name, Type: c.dtype}
	}
	return fields
}

// Column returns the named column.
func (t *Table) Column(name string) (Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return Column{}, false
	}
	return t.columns[i], true
}

// Int64s returns a copy of the named i64 column.
func (t *Table) Int64s(name string) ([]int64, error) {
	c, err := t.lookup(name, Int64)
	if err != nil {
		return nil, err
	}
	return append([]int64{}, c.int64s...), nil
}

// Float64s returns a copy of the named f64 column.
func (t *Table) Float64s(name string) ([]float64, error) {
	c, err := t.lookup(name, Float64)
	if err != nil {
		return nil, err
	}
	return append([]float64{}, c.float64s...), nil
}

// Int32s returns a copy of the named i32 column.
func (t *Table) Int32s(name string) ([]int32, error) {
	c, err := t.lookup(name, Int32)
	if err != nil {
		return nil, err
	}
	return append([]int32{}, c.int32s...), nil
}

func (t *Table) lookup(name string, want DataType) (*Column, error) {
	i, ok := t.index[name]
	if !ok {
		return nil, fmt.Errorf("column %q not found", name)
	}
	c := &t.columns[i]
	if c.dtype != want {
		return nil, fmt.Errorf("column %q has type %s, not %s", name, c.dtype, want)
	}
	return c, nil
}
