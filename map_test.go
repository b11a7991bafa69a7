package tabula

import (
	"testing"

	"github.com/drpcorg/tabula/tabula_errors"
	"github.com/stretchr/testify/assert"
)

func TestMapSetGetDelete(t *testing.T) {
	d := newDoc(t, 1)
	m := d.Map("cells")
	_, ok := m.Get("a")
	assert.False(t, ok)

	assert.Nil(t, m.Set("b", String("bob")))
	assert.Nil(t, m.Set("a", Int(1)))
	assert.Nil(t, m.Set("a", Float(1.5)))
	v, ok := m.Get("a")
	assert.True(t, ok)
	assert.Equal(t, Float(1.5), v)
	assert.Equal(t, []string{"a", "b"}, m.Keys())
	assert.Equal(t, 2, m.Len())

	assert.Nil(t, m.Delete("a"))
	_, ok = m.Get("a")
	assert.False(t, ok)
	assert.Equal(t, []string{"b"}, m.Keys())

	n := d.OpCount()
	assert.Nil(t, m.Delete("missing"))
	assert.Equal(t, n, d.OpCount())

	assert.ErrorIs(t, m.Set("c", containerValue(MapContainer, d.Map("x").ID())), tabula_errors.ErrBadValue)
}

func TestMapNested(t *testing.T) {
	d := newDoc(t, 1)
	row, err := d.Map("rows").SetMap("r1")
	assert.Nil(t, err)
	cells, err := row.SetMap("cells")
	assert.Nil(t, err)
	assert.Nil(t, cells.Set("c1", Int(7)))

	r, ok := d.Map("rows").GetMap("r1")
	assert.True(t, ok)
	c, ok := r.GetMap("cells")
	assert.True(t, ok)
	v, ok := c.Get("c1")
	assert.True(t, ok)
	assert.Equal(t, Int(7), v)

	// a replaced container is unreachable, its contents go with it
	_, err = d.Map("rows").SetMap("r1")
	assert.Nil(t, err)
	r, _ = d.Map("rows").GetMap("r1")
	_, ok = r.GetMap("cells")
	assert.False(t, ok)
}

func TestMapLastWriterWins(t *testing.T) {
	a := newDoc(t, 1)
	b := newDoc(t, 2)
	assert.Nil(t, a.Map("m").Set("k", Int(1)))
	exchange(t, a, b)

	assert.Nil(t, a.Map("m").Set("k", String("from a")))
	assert.Nil(t, b.Map("m").Set("k", String("from b")))
	assert.Nil(t, b.Map("m").Set("only b", Int(2)))
	exchange(t, a, b)

	// equal clocks, the greater source wins
	for _, d := range []*Doc{a, b} {
		v, ok := d.Map("m").Get("k")
		assert.True(t, ok)
		assert.Equal(t, String("from b"), v)
		assert.Equal(t, []string{"k", "only b"}, d.Map("m").Keys())
	}

	// a later write wins regardless of source
	assert.Nil(t, a.Map("m").Delete("k"))
	exchange(t, a, b)
	_, ok := b.Map("m").Get("k")
	assert.False(t, ok)
}

func TestRootContainersByKind(t *testing.T) {
	d := newDoc(t, 1)
	assert.NotEqual(t, d.List("x").ID(), d.Map("x").ID())
	assert.Equal(t, d.List("x").ID(), d.List("x").ID())
	assert.Equal(t, uint64(0), d.Map("x").ID().Src())
}
