package tabula

import (
	"testing"

	"github.com/drpcorg/tabula/protocol"
	"github.com/drpcorg/tabula/rdx"
	"github.com/drpcorg/tabula/tabula_errors"
	"github.com/stretchr/testify/assert"
)

func TestValueTLV(t *testing.T) {
	vals := []Value{
		None(),
		Int(0),
		Int(-12345678901),
		Float(2.5),
		String(""),
		String("bob"),
		Record(F("id", Int(7)), F("name", String("x"))),
	}
	for _, v := range vals {
		back, rest, err := parseValue(v.TLV())
		assert.Nil(t, err, v.String())
		assert.Empty(t, rest)
		assert.Equal(t, v, back)
	}
}

func TestValueAccessors(t *testing.T) {
	i, ok := Int(3).AsInt()
	assert.True(t, ok)
	assert.Equal(t, int64(3), i)
	_, ok = Int(3).AsFloat()
	assert.False(t, ok)
	s, ok := String("a").AsString()
	assert.True(t, ok)
	assert.Equal(t, "a", s)

	rec := Record(F("h", Int(30)))
	h, ok := rec.Get("h")
	assert.True(t, ok)
	assert.Equal(t, Int(30), h)
	_, ok = rec.Get("w")
	assert.False(t, ok)
	assert.Equal(t, `{h:30}`, rec.String())
	assert.Equal(t, "null", Value{}.String())
	assert.True(t, Value{}.IsNone())
}

func TestContainerValue(t *testing.T) {
	id := rdx.NewID(5, 7, 0)
	v := containerValue(MapContainer, id)
	back, _, err := parseValue(v.TLV())
	assert.Nil(t, err)
	ck, ref, ok := back.Container()
	assert.True(t, ok)
	assert.Equal(t, MapContainer, ck)
	assert.Equal(t, rdx.ID0, ref)
	assert.Equal(t, "{5-7}", v.String())
}

func TestParseValueRejects(t *testing.T) {
	_, _, err := parseValue(protocol.Record('Q'))
	assert.ErrorIs(t, err, tabula_errors.ErrBadValue)

	nested := Record(F("m", containerValue(MapContainer, rdx.ID0)))
	_, _, err = parseValue(nested.TLV())
	assert.ErrorIs(t, err, tabula_errors.ErrBadValue)

	_, _, err = parseValue(protocol.Record('C', []byte{'Z'}))
	assert.ErrorIs(t, err, tabula_errors.ErrBadValue)

	_, _, err = parseValue(String("truncated").TLV()[:4])
	assert.ErrorIs(t, err, protocol.ErrIncomplete)
}

func TestOpTLV(t *testing.T) {
	ops := []op{
		{kind: OpInsert, id: rdx.NewID(1, 2, 0), ref: rdx.NewID(0, 99, 0), anchor: rdx.NewID(1, 1, 0), val: Int(5)},
		{kind: OpDelete, id: rdx.NewID(1, 3, 0), ref: rdx.NewID(0, 99, 0), anchor: rdx.NewID(1, 2, 0)},
		{kind: OpEntry, id: rdx.NewID(2, 4, 0), ref: rdx.NewID(1, 2, 0), key: "c1f", val: None()},
	}
	for _, o := range ops {
		back, err := parseOp(o.TLV())
		assert.Nil(t, err)
		assert.Equal(t, o, back)
	}

	nested := op{kind: OpEntry, id: rdx.NewID(2, 5, 0), ref: rdx.NewID(0, 1, 0), key: "cells", val: containerValue(MapContainer, rdx.ID0)}
	back, err := parseOp(nested.TLV())
	assert.Nil(t, err)
	_, ref, _ := back.val.Container()
	assert.Equal(t, nested.id, ref)

	root := op{kind: OpEntry, id: rdx.NewID(0, 5, 0), ref: rdx.NewID(0, 1, 0), key: "k", val: Int(1)}
	_, err = parseOp(root.TLV())
	assert.ErrorIs(t, err, tabula_errors.ErrBadOp)

	empty := op{kind: OpInsert, id: rdx.NewID(1, 2, 0), ref: rdx.NewID(0, 99, 0)}
	_, err = parseOp(empty.TLV())
	assert.ErrorIs(t, err, tabula_errors.ErrBadOp)
}
