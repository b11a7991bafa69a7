package table

import "github.com/drpcorg/tabula"

// FlatTable keeps rows as plain records and every cell in the root
// "cells" map under CompositeKey(row, column).
type FlatTable struct {
	*table
	cells tabula.Map
}

func (t *FlatTable) pushRow(id int64, colIDs []int64, cells []Cell) error {
	err := t.rows.Push(tabula.Record(
		tabula.F("id", tabula.Int(id)),
		tabula.F("height", tabula.Int(DefaultHeight)),
	))
	for i := 0; i < len(cells) && err == nil; i++ {
		err = t.cells.Set(CompositeKey(id, colIDs[i]), cells[i].value())
	}
	return err
}

func (t *FlatTable) Cell(row Row, col Column) (Cell, bool) {
	v, ok := t.cells.Get(CompositeKey(row.ID, col.ID))
	if !ok {
		return nil, false
	}
	return cellFromValue(v)
}

func (t *FlatTable) SetCell(row Row, col Column, c Cell) error {
	return t.cells.Set(CompositeKey(row.ID, col.ID), c.value())
}

// deleteRowCells removes the row's keys so no cell outlives its row.
func (t *FlatTable) deleteRowCells(row Row) error {
	for _, col := range t.Columns() {
		if err := t.cells.Delete(CompositeKey(row.ID, col.ID)); err != nil {
			return err
		}
	}
	return nil
}

func (t *FlatTable) deleteColumnCells(col Column) error {
	for row := range t.Rows().All() {
		if err := t.cells.Delete(CompositeKey(row.ID, col.ID)); err != nil {
			return err
		}
	}
	return nil
}
