package table

import (
	"iter"

	"github.com/drpcorg/tabula"
	"github.com/drpcorg/tabula/tabula_errors"
	"github.com/pkg/errors"
)

type Row struct {
	ID     int64
	Height uint32

	// nested schema only: the row container and its cell map
	node  tabula.Map
	cells tabula.Map
}

// rowFromValue maps a stored row tolerantly: a plain record (flat
// schema) or a map container (nested schema).
func rowFromValue(doc *tabula.Doc, v tabula.Value) Row {
	if ck, ref, ok := v.Container(); ok {
		if ck != tabula.MapContainer {
			return Row{}
		}
		node := doc.MapAt(ref)
		row := Row{
			ID:     intField(node.Get, "id"),
			Height: uint32(intField(node.Get, "height")),
			node:   node,
		}
		row.cells, _ = node.GetMap(CellsName)
		return row
	}
	return Row{
		ID:     intField(v.Get, "id"),
		Height: uint32(intField(v.Get, "height")),
	}
}

// ReadCells returns the row's cells in column order. A missing cell
// means the document is inconsistent and panics.
func (r Row) ReadCells(doc TableDocument) []Cell {
	cols := doc.Columns()
	cells := make([]Cell, 0, len(cols))
	for _, col := range cols {
		c, ok := doc.Cell(r, col)
		if !ok {
			panic(errors.Wrapf(tabula_errors.ErrCellMissing, "row %x column %x", uint32(r.ID), uint32(col.ID)))
		}
		cells = append(cells, c)
	}
	return cells
}

// Rows is a lazy view of the row sequence. Every read goes to the
// document, so a view sees later mutations.
type Rows struct {
	doc  *tabula.Doc
	list tabula.List
}

func (rs Rows) Len() int {
	return rs.list.Len()
}

func (rs Rows) Get(i int) (Row, bool) {
	v, ok := rs.list.Get(i)
	if !ok {
		return Row{}, false
	}
	return rowFromValue(rs.doc, v), true
}

// Iterate starts a cursor at the first row.
func (rs Rows) Iterate() *RowIterator {
	return &RowIterator{rows: rs}
}

// All yields rows by index until the sequence runs out.
func (rs Rows) All() iter.Seq[Row] {
	return func(yield func(Row) bool) {
		for i := 0; ; i++ {
			row, ok := rs.Get(i)
			if !ok || !yield(row) {
				return
			}
		}
	}
}

type RowIterator struct {
	rows Rows
	next int
	row  Row
}

func (it *RowIterator) Next() bool {
	row, ok := it.rows.Get(it.next)
	if !ok {
		return false
	}
	it.row = row
	it.next++
	return true
}

func (it *RowIterator) Row() Row {
	return it.row
}
