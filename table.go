package tabular

// table.go implements the typed columnar container described in spec.md §3
// and §4.1: TableValue, Column (Number/Enum/Text/Unknown), Table, and the
// non-owning TableView/TableColumnView. Adapted from the teacher's data.go
// (Raw, Any2* coercions) and ch.go (stream-parse-then-classify CSV loop),
// generalized from seafan's gorgonia-batch pipeline to the fixed Table value
// described in the spec.

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// ValueKind tags a TableValue.
type ValueKind int

const (
	KindUnknownValue ValueKind = iota
	KindNumber
	KindEnum
	KindText
)

// TableValue is the tagged value described in spec.md §3. Enum holds the
// 1-indexed variant, or 0 for invalid/absent.
type TableValue struct {
	Kind   ValueKind
	Number float32
	Enum   uint32
	Text   string
}

// NumberValue builds a Number TableValue.
func NumberValue(v float32) TableValue { return TableValue{Kind: KindNumber, Number: v} }

// EnumValue builds an Enum TableValue; variant 0 means invalid.
func EnumValue(variant uint32) TableValue { return TableValue{Kind: KindEnum, Enum: variant} }

// TextValue builds a Text TableValue.
func TextValue(s string) TableValue { return TableValue{Kind: KindText, Text: s} }

// UnknownValue builds an Unknown TableValue, verbatim string preserved.
func UnknownValue(s string) TableValue { return TableValue{Kind: KindUnknownValue, Text: s} }

// IsValid reports whether the value carries usable data (not NaN, not
// enum-0, not Unknown; every Unknown value is invalid).
func (v TableValue) IsValid() bool {
	switch v.Kind {
	case KindNumber:
		return !math.IsNaN(float64(v.Number))
	case KindEnum:
		return v.Enum != 0
	case KindText:
		return true
	default:
		return false
	}
}

// ColumnKind tags a Column.
type ColumnKind int

const (
	ColumnUnknownKind ColumnKind = iota
	ColumnNumberKind
	ColumnEnumKind
	ColumnTextKind
)

// Column is the tagged union of spec.md §3. Exactly one of the typed
// accessors below is meaningful, selected by Kind().
type Column interface {
	Kind() ColumnKind
	Len() int
	At(row int) TableValue
}

// NumberColumn is an ordered sequence of f32; NaN denotes invalid.
type NumberColumn struct {
	Values []float32
}

func (c *NumberColumn) Kind() ColumnKind { return ColumnNumberKind }
func (c *NumberColumn) Len() int         { return len(c.Values) }
func (c *NumberColumn) At(row int) TableValue {
	return NumberValue(c.Values[row])
}

// EnumColumn has a fixed, immutable variant list and per-row optional
// 1-indexed variant (0 == absent).
type EnumColumn struct {
	Variants []string
	Values   []uint32
}

func (c *EnumColumn) Kind() ColumnKind { return ColumnEnumKind }
func (c *EnumColumn) Len() int         { return len(c.Values) }
func (c *EnumColumn) At(row int) TableValue {
	return EnumValue(c.Values[row])
}

// VariantIndex returns the 1-indexed variant for name, or 0 if unknown.
func (c *EnumColumn) VariantIndex(name string) uint32 {
	for i, v := range c.Variants {
		if v == name {
			return uint32(i + 1)
		}
	}

	return 0
}

// TextColumn is a sequence of raw strings.
type TextColumn struct {
	Values []string
}

func (c *TextColumn) Kind() ColumnKind { return ColumnTextKind }
func (c *TextColumn) Len() int         { return len(c.Values) }
func (c *TextColumn) At(row int) TableValue {
	return TextValue(c.Values[row])
}

// UnknownColumn preserves opaque strings verbatim; used for columns the
// caller did not classify and the engine does not need.
type UnknownColumn struct {
	Values []string
}

func (c *UnknownColumn) Kind() ColumnKind { return ColumnUnknownKind }
func (c *UnknownColumn) Len() int         { return len(c.Values) }
func (c *UnknownColumn) At(row int) TableValue {
	return UnknownValue(c.Values[row])
}

// Table is an immutable, column-major typed container. All columns share
// length, per spec.md §3 invariants.
type Table struct {
	names   []string
	columns []Column
	nrows   int
}

// NewTable builds a Table from parallel name/column slices, validating the
// row-count invariant.
func NewTable(names []string, columns []Column) (*Table, error) {
	if len(names) != len(columns) {
		return nil, Wrapper(ErrTable, "NewTable: names and columns have different lengths")
	}

	n := -1
	for i, c := range columns {
		if n < 0 {
			n = c.Len()
		} else if c.Len() != n {
			return nil, Wrapper(ErrTable, "NewTable: columns have differing lengths")
		}

		if names[i] == "" {
			return nil, Wrapper(ErrTable, "NewTable: column name cannot be empty")
		}
	}

	if n < 0 {
		n = 0
	}

	return &Table{names: names, columns: columns, nrows: n}, nil
}

// Nrows returns the row count.
func (t *Table) Nrows() int { return t.nrows }

// ColumnNames returns the ordered column names.
func (t *Table) ColumnNames() []string { return t.names }

// Column returns the named column, or nil.
func (t *Table) Column(name string) Column {
	for i, n := range t.names {
		if n == name {
			return t.columns[i]
		}
	}

	return nil
}

// View returns a TableView over the named columns, in the order given.
// Missing names produce a fatal SchemaError, per spec.md §7: a column
// referenced by a feature group that is absent from the table is fatal.
func (t *Table) View(names ...string) (*TableView, error) {
	cols := make([]Column, 0, len(names))

	for _, n := range names {
		c := t.Column(n)
		if c == nil {
			return nil, WrapperKind(KindSchema, ErrTable, "Table.View: missing column "+n)
		}

		cols = append(cols, c)
	}

	return &TableView{names: names, columns: cols, nrows: t.nrows}, nil
}

// TableView is non-owning access to a subset of a Table's columns.
type TableView struct {
	names   []string
	columns []Column
	nrows   int
}

func (v *TableView) Nrows() int           { return v.nrows }
func (v *TableView) Columns() []Column    { return v.columns }
func (v *TableView) ColumnNames() []string { return v.names }

// ColumnView returns a TableColumnView for column i.
func (v *TableView) ColumnView(i int) TableColumnView {
	return TableColumnView{col: v.columns[i]}
}

// TableColumnView wraps a Column with typed downcasts, mirroring the
// teacher's as_number()/as_enum()/as_text() access pattern.
type TableColumnView struct {
	col Column
}

func (cv TableColumnView) Kind() ColumnKind { return cv.col.Kind() }
func (cv TableColumnView) Len() int         { return cv.col.Len() }

func (cv TableColumnView) AsNumber() (*NumberColumn, bool) {
	c, ok := cv.col.(*NumberColumn)
	return c, ok
}

func (cv TableColumnView) AsEnum() (*EnumColumn, bool) {
	c, ok := cv.col.(*EnumColumn)
	return c, ok
}

func (cv TableColumnView) AsText() (*TextColumn, bool) {
	c, ok := cv.col.(*TextColumn)
	return c, ok
}

// Iter calls fn for every row's TableValue, in row order.
func (cv TableColumnView) Iter(fn func(row int, v TableValue)) {
	for i := 0; i < cv.col.Len(); i++ {
		fn(i, cv.col.At(i))
	}
}

// ToRows materializes a row-major [][]TableValue, used by tree inference
// per spec.md §4.1. Training avoids this copy and reads columns directly.
func (t *Table) ToRows() [][]TableValue {
	rows := make([][]TableValue, t.nrows)
	for r := 0; r < t.nrows; r++ {
		row := make([]TableValue, len(t.columns))
		for c, col := range t.columns {
			row[c] = col.At(r)
		}

		rows[r] = row
	}

	return rows
}

// ParseOptions controls CSV ingestion.
type ParseOptions struct {
	// ColumnKinds overrides type inference for named columns.
	ColumnKinds map[string]ColumnKind
	// MaxMalformedRowsFraction is the tolerance before FromPath gives up
	// with an IoError (spec.md §4.1: "fails with ParseError on malformed
	// rows beyond a tolerance").
	MaxMalformedRowsFraction float64
}

// FromPath stream-parses an RFC 4180 CSV file at path into a Table. Column
// type overrides are applied where given in options.ColumnKinds; otherwise
// the column is inferred: numeric if every non-empty cell parses as a
// float, enum otherwise. Invalid numeric cells become NaN; unknown enum
// values are assigned a new variant on first sight during this pass (no
// prior frozen variant list exists yet at ingestion time).
func FromPath(path string, options ParseOptions, progress ProgressFunc) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, WrapperKind(KindIO, ErrTable, "FromPath: "+err.Error())
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, WrapperKind(KindIO, ErrTable, "FromPath: reading header: "+err.Error())
	}

	rawCols := make([][]string, len(header))
	nrows, malformed := 0, 0

	for {
		rec, rerr := r.Read()
		if rerr == io.EOF {
			break
		}

		if rerr != nil {
			malformed++
			continue
		}

		if len(rec) != len(header) {
			malformed++
			continue
		}

		for i, cell := range rec {
			rawCols[i] = append(rawCols[i], cell)
		}

		nrows++

		if Verbose && nrows%100000 == 0 {
			reportProgress(progress, ProgressEvent{Kind: EventRoundComplete, Message: "rows read: " + strconv.Itoa(nrows)})
		}
	}

	total := nrows + malformed
	if total > 0 {
		tol := options.MaxMalformedRowsFraction
		if tol == 0 {
			tol = 0.01
		}

		if float64(malformed)/float64(total) > tol {
			return nil, WrapperKind(KindIO, ErrTable, "FromPath: too many malformed rows")
		}
	}

	columns := make([]Column, len(header))

	for i, name := range header {
		kind, overridden := options.ColumnKinds[name]
		if !overridden {
			kind = inferColumnKind(rawCols[i])
		}

		columns[i] = buildColumn(kind, rawCols[i])
	}

	return NewTable(header, columns)
}

// inferColumnKind classifies a raw string column the way ch.go's Init
// classifies a freshly-read field: numeric if it parses as a float
// everywhere it is non-empty, else treated as a categorical/enum column.
func inferColumnKind(cells []string) ColumnKind {
	sawAny := false

	for _, c := range cells {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}

		if _, err := strconv.ParseFloat(c, 32); err != nil {
			return ColumnEnumKind
		}

		sawAny = true
	}

	if !sawAny {
		return ColumnEnumKind
	}

	return ColumnNumberKind
}

func buildColumn(kind ColumnKind, cells []string) Column {
	switch kind {
	case ColumnNumberKind:
		vals := make([]float32, len(cells))
		for i, c := range cells {
			c = strings.TrimSpace(c)
			if c == "" {
				vals[i] = float32(math.NaN())
				continue
			}

			v, err := strconv.ParseFloat(c, 32)
			if err != nil {
				vals[i] = float32(math.NaN())
				continue
			}

			vals[i] = float32(v)
		}

		return &NumberColumn{Values: vals}
	case ColumnTextKind:
		return &TextColumn{Values: append([]string(nil), cells...)}
	default:
		variants := make([]string, 0)
		index := make(map[string]uint32)
		vals := make([]uint32, len(cells))

		for i, c := range cells {
			if c == "" {
				vals[i] = 0
				continue
			}

			idx, ok := index[c]
			if !ok {
				variants = append(variants, c)
				idx = uint32(len(variants))
				index[c] = idx
			}

			vals[i] = idx
		}

		return &EnumColumn{Variants: variants, Values: vals}
	}
}
