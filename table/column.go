package table

import "github.com/drpcorg/tabula"

const (
	DefaultWidth  = 130
	DefaultHeight = 30
)

// Root container names.
const (
	ColsName  = "cols"
	RowsName  = "rows"
	CellsName = "cells"
	// MetaName is the root map holding the table's schema under
	// SchemaKey, so a table without rows still decodes as itself.
	MetaName  = "meta"
	SchemaKey = "schema"
)

type Column struct {
	ID    int64
	Name  string
	Width uint32
}

func (c Column) value() tabula.Value {
	return tabula.Record(
		tabula.F("id", tabula.Int(c.ID)),
		tabula.F("name", tabula.String(c.Name)),
		tabula.F("width", tabula.Int(int64(c.Width))),
	)
}

// intField reads an integer attribute, zero if absent or mistyped.
func intField(get func(string) (tabula.Value, bool), key string) int64 {
	v, _ := get(key)
	i, _ := v.AsInt()
	return i
}

// columnFromValue never fails: missing attributes stay zero.
func columnFromValue(v tabula.Value) Column {
	name, _ := v.Get("name")
	s, _ := name.AsString()
	return Column{
		ID:    intField(v.Get, "id"),
		Name:  s,
		Width: uint32(intField(v.Get, "width")),
	}
}
