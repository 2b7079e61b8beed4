// Package dataset wraps the gota dataframe behind the toolkit's tabular
// Dataset type. A Dataset is owned by exactly one component at a time and
// every transforming operation produces a fresh value, so nothing here is
// safe for concurrent mutation and nothing needs to be.
package dataset

import (
	"fmt"
	"io"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// Dataset is an in-memory table of named, typed columns.
type Dataset struct {
	df dataframe.DataFrame
}

// New wraps a gota dataframe, surfacing any deferred load error.
func New(df dataframe.DataFrame) (*Dataset, error) {
	if df.Err != nil {
		return nil, fmt.Errorf("invalid dataframe: %w", df.Err)
	}
	return &Dataset{df: df}, nil
}

// FromRecords builds a Dataset from string records. The first row is the
// header. Column types are detected unless overridden via options.
func FromRecords(records [][]string, options ...dataframe.LoadOption) (*Dataset, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("no records provided")
	}
	return New(dataframe.LoadRecords(records, options...))
}

// FromMaps builds a Dataset from a slice of column-keyed maps.
func FromMaps(maps []map[string]interface{}, options ...dataframe.LoadOption) (*Dataset, error) {
	if len(maps) == 0 {
		return nil, fmt.Errorf("no rows provided")
	}
	return New(dataframe.LoadMaps(maps, options...))
}

// Frame returns the underlying gota dataframe.
func (d *Dataset) Frame() dataframe.DataFrame {
	return d.df
}

// NumRows returns the row count.
func (d *Dataset) NumRows() int {
	return d.df.Nrow()
}

// NumCols returns the column count.
func (d *Dataset) NumCols() int {
	return d.df.Ncol()
}

// Columns returns the column names in order.
func (d *Dataset) Columns() []string {
	return d.df.Names()
}

// HasColumn reports whether the named column exists.
func (d *Dataset) HasColumn(name string) bool {
	for _, n := range d.df.Names() {
		if n == name {
			return true
		}
	}
	return false
}

// Column returns the named column.
func (d *Dataset) Column(name string) (series.Series, error) {
	if !d.HasColumn(name) {
		return series.Series{}, fmt.Errorf("column %q not found", name)
	}
	s := d.df.Col(name)
	if s.Err != nil {
		return series.Series{}, s.Err
	}
	return s, nil
}

// Floats returns the named column as float64 values. Non-numeric entries
// come back as NaN, matching gota's coercion rules.
func (d *Dataset) Floats(name string) ([]float64, error) {
	s, err := d.Column(name)
	if err != nil {
		return nil, err
	}
	return s.Float(), nil
}

// Strings returns the named column rendered as strings.
func (d *Dataset) Strings(name string) ([]string, error) {
	s, err := d.Column(name)
	if err != nil {
		return nil, err
	}
	return s.Records(), nil
}

// NumericColumns returns the names of int and float columns in order.
func (d *Dataset) NumericColumns() []string {
	var numeric []string
	names := d.df.Names()
	for i, t := range d.df.Types() {
		if t == series.Int || t == series.Float {
			numeric = append(numeric, names[i])
		}
	}
	return numeric
}

// Records returns the table as string records, header row first.
func (d *Dataset) Records() [][]string {
	return d.df.Records()
}

// Head returns a Dataset holding at most n leading rows.
func (d *Dataset) Head(n int) *Dataset {
	if n >= d.df.Nrow() {
		return d.Copy()
	}
	indexes := make([]int, n)
	for i := range indexes {
		indexes[i] = i
	}
	return &Dataset{df: d.df.Subset(indexes)}
}

// Copy returns a deep copy of the Dataset.
func (d *Dataset) Copy() *Dataset {
	return &Dataset{df: d.df.Copy()}
}

// MissingCounts returns the number of missing values per column.
func (d *Dataset) MissingCounts() map[string]int {
	counts := make(map[string]int, d.df.Ncol())
	for _, name := range d.df.Names() {
		n := 0
		for _, isNaN := range d.df.Col(name).IsNaN() {
			if isNaN {
				n++
			}
		}
		counts[name] = n
	}
	return counts
}

// Equal reports whether two Datasets have the same shape, column names and
// string-rendered values. Rendering makes the comparison stable across type
// coercion, so a CSV round-trip compares equal.
func (d *Dataset) Equal(other *Dataset) bool {
	if other == nil {
		return false
	}
	if d.NumRows() != other.NumRows() || d.NumCols() != other.NumCols() {
		return false
	}
	a, b := d.Records(), other.Records()
	for i := range a {
		for j := range a[i] {
			if a[i][j] != b[i][j] {
				return false
			}
		}
	}
	return true
}

// WriteCSV writes the Dataset as CSV with a header row.
func (d *Dataset) WriteCSV(w io.Writer) error {
	return d.df.WriteCSV(w)
}

// WriteJSON writes the Dataset as a JSON array of row objects.
func (d *Dataset) WriteJSON(w io.Writer) error {
	return d.df.WriteJSON(w)
}

// String renders the Dataset in gota's table form, useful in logs and the
// demo binary.
func (d *Dataset) String() string {
	return d.df.String()
}
