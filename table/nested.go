package table

import (
	"github.com/drpcorg/tabula"
	"github.com/drpcorg/tabula/tabula_errors"
	"github.com/pkg/errors"
)

// NestedTable makes each row a map container {id, height, cells}
// whose own cell map is keyed by CellKey(column). Deleting a row
// container takes its cells along.
type NestedTable struct {
	*table
}

func (t *NestedTable) pushRow(id int64, colIDs []int64, cells []Cell) error {
	node, err := t.rows.PushMap()
	if err != nil {
		return err
	}
	if err = node.Set("id", tabula.Int(id)); err != nil {
		return err
	}
	if err = node.Set("height", tabula.Int(DefaultHeight)); err != nil {
		return err
	}
	cm, err := node.SetMap(CellsName)
	for i := 0; i < len(cells) && err == nil; i++ {
		err = cm.Set(CellKey(colIDs[i]), cells[i].value())
	}
	return err
}

func (t *NestedTable) Cell(row Row, col Column) (Cell, bool) {
	if row.cells.IsZero() {
		return nil, false
	}
	v, ok := row.cells.Get(CellKey(col.ID))
	if !ok {
		return nil, false
	}
	return cellFromValue(v)
}

func (t *NestedTable) SetCell(row Row, col Column, c Cell) error {
	if row.node.IsZero() {
		return errors.Wrapf(tabula_errors.ErrUnknownContainer, "row %x", uint32(row.ID))
	}
	cm := row.cells
	if cm.IsZero() {
		var err error
		if cm, err = row.node.SetMap(CellsName); err != nil {
			return err
		}
	}
	return cm.Set(CellKey(col.ID), c.value())
}

func (t *NestedTable) deleteRowCells(Row) error {
	return nil
}

func (t *NestedTable) deleteColumnCells(col Column) error {
	for row := range t.Rows().All() {
		if row.cells.IsZero() {
			continue
		}
		if err := row.cells.Delete(CellKey(col.ID)); err != nil {
			return err
		}
	}
	return nil
}
