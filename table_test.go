package tabular

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTableRejectsMismatchedLengths(t *testing.T) {
	_, err := NewTable(
		[]string{"a", "b"},
		[]Column{&NumberColumn{Values: []float32{1, 2}}},
	)
	require.Error(t, err)
	assert.True(t, Is(err, ErrTable))
}

func TestNewTableRejectsDifferingColumnLengths(t *testing.T) {
	_, err := NewTable(
		[]string{"a", "b"},
		[]Column{
			&NumberColumn{Values: []float32{1, 2}},
			&NumberColumn{Values: []float32{1, 2, 3}},
		},
	)
	require.Error(t, err)
}

func TestTableViewMissingColumnIsSchemaError(t *testing.T) {
	tbl, err := NewTable([]string{"a"}, []Column{&NumberColumn{Values: []float32{1}}})
	require.NoError(t, err)

	_, err = tbl.View("a", "missing")
	require.Error(t, err)

	var engErr *EngineError
	require.ErrorAs(t, err, &engErr)
	assert.Equal(t, KindSchema, engErr.Kind)
}

func TestFromPathParsesMixedColumns(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "tabular-*.csv")
	require.NoError(t, err)

	_, err = f.WriteString("x,label\n1.0,a\n2.0,b\n,a\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	tbl, err := FromPath(f.Name(), ParseOptions{}, nil)
	require.NoError(t, err)

	assert.Equal(t, 3, tbl.Nrows())

	xCol, ok := tbl.Column("x").(*NumberColumn)
	require.True(t, ok)
	assert.InDelta(t, 1.0, xCol.Values[0], 1e-6)
	assert.False(t, xCol.At(2).IsValid()) // empty cell -> NaN -> invalid

	labelCol, ok := tbl.Column("label").(*EnumColumn)
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, labelCol.Variants)
}

func TestFromPathTooManyMalformedRowsFails(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "tabular-*.csv")
	require.NoError(t, err)

	_, err = f.WriteString("x,y\n1,2\n1,2,3\n1,2,3\n1,2,3\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = FromPath(f.Name(), ParseOptions{MaxMalformedRowsFraction: 0.1}, nil)
	require.Error(t, err)
}

func TestTableValueIsValid(t *testing.T) {
	assert.True(t, NumberValue(1).IsValid())
	assert.False(t, EnumValue(0).IsValid())
	assert.True(t, EnumValue(1).IsValid())
	assert.True(t, TextValue("").IsValid())
	assert.False(t, UnknownValue("x").IsValid())
}
