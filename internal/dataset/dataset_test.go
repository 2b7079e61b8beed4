package dataset

import (
	"bytes"
	"strings"
	"testing"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func salesRecords() [][]string {
	return [][]string{
		{"category", "quantity", "unit_price"},
		{"Electronics", "2", "399.99"},
		{"Clothing", "5", "19.99"},
		{"Electronics", "1", "899.00"},
	}
}

func TestFromRecords(t *testing.T) {
	ds, err := FromRecords(salesRecords())
	require.NoError(t, err)

	assert.Equal(t, 3, ds.NumRows())
	assert.Equal(t, 3, ds.NumCols())
	assert.Equal(t, []string{"category", "quantity", "unit_price"}, ds.Columns())
}

func TestFromRecords_Empty(t *testing.T) {
	_, err := FromRecords(nil)
	assert.Error(t, err)
}

func TestHasColumn(t *testing.T) {
	ds, err := FromRecords(salesRecords())
	require.NoError(t, err)

	assert.True(t, ds.HasColumn("quantity"))
	assert.False(t, ds.HasColumn("missing"))
}

func TestColumn_Missing(t *testing.T) {
	ds, err := FromRecords(salesRecords())
	require.NoError(t, err)

	_, err = ds.Column("nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestFloats(t *testing.T) {
	ds, err := FromRecords(salesRecords())
	require.NoError(t, err)

	got, err := ds.Floats("unit_price")
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{399.99, 19.99, 899.00}, got, 1e-9)
}

func TestNumericColumns(t *testing.T) {
	ds, err := FromRecords(salesRecords())
	require.NoError(t, err)

	assert.Equal(t, []string{"quantity", "unit_price"}, ds.NumericColumns())
}

func TestHead(t *testing.T) {
	ds, err := FromRecords(salesRecords())
	require.NoError(t, err)

	head := ds.Head(2)
	assert.Equal(t, 2, head.NumRows())
	assert.Equal(t, ds.Columns(), head.Columns())

	// Asking for more rows than exist returns everything.
	all := ds.Head(10)
	assert.Equal(t, 3, all.NumRows())
}

func TestCopy_Independent(t *testing.T) {
	ds, err := FromRecords(salesRecords())
	require.NoError(t, err)

	cp := ds.Copy()
	require.True(t, ds.Equal(cp))
	assert.NotSame(t, ds, cp)
}

func TestMissingCounts(t *testing.T) {
	df := dataframe.New(
		series.New([]string{"a", "b", "c"}, series.String, "name"),
		series.New([]interface{}{1.5, nil, 2.5}, series.Float, "score"),
	)
	ds, err := New(df)
	require.NoError(t, err)

	counts := ds.MissingCounts()
	assert.Equal(t, 0, counts["name"])
	assert.Equal(t, 1, counts["score"])
}

func TestEqual(t *testing.T) {
	a, err := FromRecords(salesRecords())
	require.NoError(t, err)
	b, err := FromRecords(salesRecords())
	require.NoError(t, err)

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(nil))

	c := b.Head(2)
	assert.False(t, a.Equal(c))
}

func TestCSVRoundTrip(t *testing.T) {
	ds, err := FromRecords(salesRecords())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, ds.WriteCSV(&buf))

	reloaded, err := New(dataframe.ReadCSV(strings.NewReader(buf.String())))
	require.NoError(t, err)

	assert.True(t, ds.Equal(reloaded))
}

func TestWriteJSON(t *testing.T) {
	ds, err := FromRecords(salesRecords())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, ds.WriteJSON(&buf))
	assert.Contains(t, buf.String(), "Electronics")
}
