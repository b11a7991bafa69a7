package tabula

import (
	"testing"

	"github.com/drpcorg/tabula/rdx"
	"github.com/drpcorg/tabula/tabula_errors"
	"github.com/drpcorg/tabula/utils"
	"github.com/stretchr/testify/assert"
)

func newDoc(t *testing.T, src uint64) *Doc {
	d, err := New(Options{Src: src, Logger: utils.NopLogger()})
	assert.Nil(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

// exchange swaps full snapshots both ways.
func exchange(t *testing.T, a, b *Doc) {
	fa, err := a.Export(ExportFull)
	assert.Nil(t, err)
	fb, err := b.Export(ExportFull)
	assert.Nil(t, err)
	assert.Nil(t, a.Merge(fb))
	assert.Nil(t, b.Merge(fa))
}

func TestListInsertDelete(t *testing.T) {
	d := newDoc(t, 1)
	l := d.List("rows")
	assert.Equal(t, 0, l.Len())
	assert.Nil(t, l.Push(Int(1)))
	assert.Nil(t, l.Push(Int(2)))
	assert.Nil(t, l.Push(Int(3)))
	assert.Nil(t, l.Insert(0, Int(0)))
	assert.Equal(t, []Value{Int(0), Int(1), Int(2), Int(3)}, l.Values())

	assert.Nil(t, l.Delete(1))
	assert.Equal(t, []Value{Int(0), Int(2), Int(3)}, l.Values())
	assert.Equal(t, 3, l.Len())
	v, ok := l.Get(2)
	assert.True(t, ok)
	assert.Equal(t, Int(3), v)
	_, ok = l.Get(3)
	assert.False(t, ok)

	assert.ErrorIs(t, l.Insert(10, Int(9)), tabula_errors.ErrOutOfBounds)
	assert.ErrorIs(t, l.Delete(3), tabula_errors.ErrOutOfBounds)
	assert.ErrorIs(t, l.Push(None()), tabula_errors.ErrBadValue)

	// push after a deleted tail still lands at the end
	assert.Nil(t, l.Delete(2))
	assert.Nil(t, l.Push(Int(4)))
	assert.Equal(t, []Value{Int(0), Int(2), Int(4)}, l.Values())
	assert.Equal(t, uint64(7), d.OpCount())
}

func TestListNestedMap(t *testing.T) {
	d := newDoc(t, 1)
	l := d.List("rows")
	row, err := l.PushMap()
	assert.Nil(t, err)
	assert.Nil(t, row.Set("id", Int(42)))
	back, ok := l.GetMap(0)
	assert.True(t, ok)
	assert.Equal(t, row.ID(), back.ID())
	v, ok := back.Get("id")
	assert.True(t, ok)
	assert.Equal(t, Int(42), v)

	_, ok = d.List("other").GetMap(0)
	assert.False(t, ok)
}

func TestListConcurrentInserts(t *testing.T) {
	a := newDoc(t, 1)
	b := newDoc(t, 2)
	la, lb := a.List("l"), b.List("l")
	assert.Nil(t, la.Push(String("x")))
	assert.Nil(t, la.Push(String("y")))
	exchange(t, a, b)
	assert.Equal(t, la.Values(), lb.Values())

	assert.Nil(t, la.Insert(1, String("A")))
	assert.Nil(t, lb.Insert(1, String("B")))
	assert.Nil(t, lb.Insert(0, String("B0")))
	assert.Nil(t, la.Delete(0))
	exchange(t, a, b)

	va := la.Values()
	assert.Equal(t, va, lb.Values())
	assert.Equal(t, la.IDs(), lb.IDs())
	assert.Len(t, va, 4)
	assert.Equal(t, String("B0"), va[0])
	assert.Equal(t, String("y"), va[3])
	assert.Equal(t, a.VersionVector(), b.VersionVector())
}

func TestRebuildMatchesIntegrate(t *testing.T) {
	li := newListIndex()
	var all []elem
	for n := uint64(1); n <= 40; n++ {
		id := rdx.NewID(1+n%3, n, 0)
		anchor := rdx.ID0
		if len(li.elems) > 0 {
			anchor = li.elems[int(n*7)%len(li.elems)].id
		}
		if n%5 == 0 {
			anchor = rdx.ID0
		}
		li.integrate(id, anchor, false)
		all = append(all, elem{id: id, anchor: anchor})
	}
	li.kill(3)
	all2 := make([]elem, len(all))
	copy(all2, all)
	for i := range all2 {
		if all2[i].id == li.elems[3].id {
			all2[i].dead = true
		}
	}
	re := rebuildList(all2)
	assert.Equal(t, li.elems, re.elems)
	assert.Equal(t, li.Len(), re.Len())
	assert.Equal(t, 39, re.Len())
}

func TestListCacheEviction(t *testing.T) {
	d, err := New(Options{Src: 3, Logger: utils.NopLogger(), ListCacheSize: 1})
	assert.Nil(t, err)
	defer d.Close()
	a, b := d.List("a"), d.List("b")
	for i := 0; i < 20; i++ {
		assert.Nil(t, a.Insert(i/2, Int(int64(i))))
		assert.Nil(t, b.Insert(i/3, Int(int64(-i))))
	}
	assert.Nil(t, a.Delete(5))
	va, vb := a.Values(), b.Values()
	d.lists.Purge()
	assert.Equal(t, va, a.Values())
	assert.Equal(t, vb, b.Values())
	assert.Nil(t, d.Flush())
	d.lists.Purge()
	assert.Equal(t, va, a.Values())
	assert.Equal(t, 19, a.Len())
}

func TestWrongContainerKind(t *testing.T) {
	d := newDoc(t, 1)
	list, err := d.Map("meta").SetList("l")
	assert.Nil(t, err)
	assert.ErrorIs(t, d.MapAt(list.ID()).Set("k", Int(1)), tabula_errors.ErrWrongContainerKind)
	assert.Nil(t, list.Push(Int(1)))
	got, ok := d.Map("meta").GetList("l")
	assert.True(t, ok)
	assert.Equal(t, []Value{Int(1)}, got.Values())
}
