// Package table lays a spreadsheet (ordered columns, ordered rows,
// typed cells) out on tabula lists and maps, in one of two schemas.
package table

import (
	"strings"

	"github.com/drpcorg/tabula"
	"github.com/drpcorg/tabula/tabula_errors"
	"github.com/drpcorg/tabula/utils"
	"github.com/pkg/errors"
)

// Schema picks how cells are stored.
type Schema byte

const (
	// Flat keeps all cells in one root map under "row:col" keys.
	Flat Schema = iota
	// Nested makes every row a map that owns its own cell map.
	Nested
)

func (s Schema) String() string {
	if s == Nested {
		return "nested"
	}
	return "flat"
}

func ParseSchema(name string) (Schema, error) {
	switch strings.ToLower(name) {
	case "flat", "a":
		return Flat, nil
	case "nested", "b":
		return Nested, nil
	}
	return Flat, errors.Errorf("unknown schema %q", name)
}

type Options struct {
	tabula.Options
	Schema Schema
}

// TableDocument is a table on a replicated document. Both schemas
// implement it, so callers do not care which one they hold.
type TableDocument interface {
	Schema() Schema
	Doc() *tabula.Doc

	Import(r RecordReader) (int, error)
	Encode() ([]byte, error)
	EncodeShallow() ([]byte, error)
	Merge(data []byte) error

	Columns() []Column
	Rows() Rows
	RowCount() int
	ColCount() int
	Cell(row Row, col Column) (Cell, bool)

	AddColumn(name string) (Column, error)
	SetCell(row Row, col Column, c Cell) error
	DeleteRow(i int) error
	DeleteColumn(i int) error

	Close() error
}

// layout is the schema-specific part of a table.
type layout interface {
	pushRow(id int64, colIDs []int64, cells []Cell) error
	deleteRowCells(row Row) error
	deleteColumnCells(col Column) error
}

// table holds what both schemas share.
type table struct {
	doc    *tabula.Doc
	cols   tabula.List
	rows   tabula.List
	schema Schema
	lay    layout
	log    utils.Logger
}

// New makes an empty table document.
func New(opts Options) (TableDocument, error) {
	doc, err := tabula.New(opts.Options)
	if err != nil {
		return nil, err
	}
	if stored, ok := storedSchema(doc); !ok || stored != opts.Schema {
		err = doc.Map(MetaName).Set(SchemaKey, tabula.String(opts.Schema.String()))
		if err != nil {
			_ = doc.Close()
			return nil, err
		}
	}
	return wrap(doc, opts.Schema), nil
}

// Decode rebuilds a table from Encode or EncodeShallow output. The
// schema is the stored one; without it, it is read off the stored
// rows, and an empty table gets opts.Schema.
func Decode(data []byte, opts Options) (TableDocument, error) {
	doc, err := tabula.Decode(data, opts.Options)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	return wrap(doc, detectSchema(doc, opts.Schema)), nil
}

func storedSchema(doc *tabula.Doc) (Schema, bool) {
	v, ok := doc.Map(MetaName).Get(SchemaKey)
	if !ok {
		return Flat, false
	}
	name, ok := v.AsString()
	if !ok {
		return Flat, false
	}
	schema, err := ParseSchema(name)
	return schema, err == nil
}

func detectSchema(doc *tabula.Doc, fallback Schema) Schema {
	if schema, ok := storedSchema(doc); ok {
		return schema
	}
	if first, ok := doc.List(RowsName).Get(0); ok {
		if _, _, isc := first.Container(); isc {
			return Nested
		}
		return Flat
	}
	if doc.Map(CellsName).Len() > 0 {
		return Flat
	}
	return fallback
}

// Open wraps an existing document.
func Open(doc *tabula.Doc, schema Schema) TableDocument {
	return wrap(doc, schema)
}

func wrap(doc *tabula.Doc, schema Schema) TableDocument {
	t := &table{
		doc:    doc,
		cols:   doc.List(ColsName),
		rows:   doc.List(RowsName),
		schema: schema,
		log:    doc.Logger().With("schema", schema.String()),
	}
	if schema == Nested {
		nt := &NestedTable{table: t}
		t.lay = nt
		return nt
	}
	ft := &FlatTable{table: t, cells: doc.Map(CellsName)}
	t.lay = ft
	return ft
}

func (t *table) Schema() Schema {
	return t.schema
}

func (t *table) Doc() *tabula.Doc {
	return t.doc
}

func (t *table) Encode() ([]byte, error) {
	return t.doc.Export(tabula.ExportFull)
}

func (t *table) EncodeShallow() ([]byte, error) {
	return t.doc.Export(tabula.ExportShallow)
}

func (t *table) Merge(data []byte) error {
	return t.doc.Merge(data)
}

func (t *table) Close() error {
	return t.doc.Close()
}

// Columns reads the column sequence as it is now.
func (t *table) Columns() []Column {
	vals := t.cols.Values()
	cols := make([]Column, 0, len(vals))
	for _, v := range vals {
		cols = append(cols, columnFromValue(v))
	}
	return cols
}

func (t *table) Rows() Rows {
	return Rows{doc: t.doc, list: t.rows}
}

func (t *table) RowCount() int {
	return t.rows.Len()
}

func (t *table) ColCount() int {
	return t.cols.Len()
}

// AddColumn appends a column with a fresh id. Existing rows have no
// cell for it until one is set.
func (t *table) AddColumn(name string) (Column, error) {
	taken := make([]int64, 0, t.ColCount())
	for _, c := range t.Columns() {
		taken = append(taken, c.ID)
	}
	col := Column{ID: NewIDGenerator(taken...).Next(), Name: name, Width: DefaultWidth}
	return col, t.cols.Push(col.value())
}

func (t *table) DeleteRow(i int) error {
	row, ok := t.Rows().Get(i)
	if !ok {
		return errors.Wrapf(tabula_errors.ErrOutOfBounds, "row %d of %d", i, t.RowCount())
	}
	if err := t.lay.deleteRowCells(row); err != nil {
		return err
	}
	return t.rows.Delete(i)
}

func (t *table) DeleteColumn(i int) error {
	v, ok := t.cols.Get(i)
	if !ok {
		return errors.Wrapf(tabula_errors.ErrOutOfBounds, "column %d of %d", i, t.ColCount())
	}
	if err := t.lay.deleteColumnCells(columnFromValue(v)); err != nil {
		return err
	}
	return t.cols.Delete(i)
}
