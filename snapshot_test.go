package tabula

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/cespare/xxhash"
	"github.com/drpcorg/tabula/protocol"
	"github.com/drpcorg/tabula/rdx"
	"github.com/drpcorg/tabula/tabula_errors"
	"github.com/drpcorg/tabula/utils"
	"github.com/stretchr/testify/assert"
)

func fill(t *testing.T, d *Doc) {
	l := d.List("rows")
	for i := 0; i < 50; i++ {
		row, err := l.PushMap()
		assert.Nil(t, err)
		assert.Nil(t, row.Set("id", Int(int64(i))))
		assert.Nil(t, row.Set("name", String(fmt.Sprintf("row %d", i))))
	}
	for i := 0; i < 20; i++ {
		assert.Nil(t, l.Delete(i))
	}
	m := d.Map("cols")
	for i := 0; i < 10; i++ {
		assert.Nil(t, m.Set("c", Int(int64(i))))
	}
	assert.Nil(t, m.Set("w", Record(F("width", Int(130)))))
}

func rowIDs(d *Doc) (ids []int64) {
	l := d.List("rows")
	for i := 0; i < l.Len(); i++ {
		row, _ := l.GetMap(i)
		v, _ := row.Get("id")
		id, _ := v.AsInt()
		ids = append(ids, id)
	}
	return
}

func TestFullSnapshotRoundTrip(t *testing.T) {
	d := newDoc(t, 1)
	fill(t, d)
	data, err := d.Export(ExportFull)
	assert.Nil(t, err)

	back, err := Decode(data, Options{Src: 2, Logger: utils.NopLogger()})
	assert.Nil(t, err)
	defer back.Close()
	assert.Equal(t, rowIDs(d), rowIDs(back))
	assert.Len(t, rowIDs(back), 30)
	assert.Equal(t, d.VersionVector(), back.VersionVector())
	assert.Equal(t, d.OpCount(), back.OpCount())
	w, ok := back.Map("cols").Get("w")
	assert.True(t, ok)
	assert.Equal(t, Record(F("width", Int(130))), w)

	// the decoded replica writes with its own source, after the clock
	assert.Nil(t, back.Map("cols").Set("c", Int(100)))
	assert.Equal(t, d.Clock()+1, back.Clock())
}

func TestShallowSnapshot(t *testing.T) {
	d := newDoc(t, 1)
	fill(t, d)
	full, err := d.Export(ExportFull)
	assert.Nil(t, err)
	shallow, err := d.Export(ExportShallow)
	assert.Nil(t, err)
	assert.Less(t, len(shallow), len(full))

	back, err := Decode(shallow, Options{Src: 2, Logger: utils.NopLogger()})
	assert.Nil(t, err)
	defer back.Close()
	assert.Equal(t, rowIDs(d), rowIDs(back))
	c, _ := back.Map("cols").Get("c")
	assert.Equal(t, Int(9), c)
	assert.Equal(t, d.VersionVector(), back.VersionVector())
	assert.Less(t, back.OpCount(), d.OpCount())

	// shallow of shallow is stable
	again, err := back.Export(ExportShallow)
	assert.Nil(t, err)
	back2, err := Decode(again, Options{Src: 3, Logger: utils.NopLogger()})
	assert.Nil(t, err)
	defer back2.Close()
	assert.Equal(t, rowIDs(d), rowIDs(back2))

	// later ops that do not touch dropped history merge fine
	assert.Nil(t, d.Map("cols").Set("c", Int(10)))
	full, err = d.Export(ExportFull)
	assert.Nil(t, err)
	assert.Nil(t, back.Merge(full))
	c, _ = back.Map("cols").Get("c")
	assert.Equal(t, Int(10), c)
}

func TestShallowRefusesDroppedHistory(t *testing.T) {
	d := newDoc(t, 1)
	l := d.List("l")
	assert.Nil(t, l.Push(String("x")))
	assert.Nil(t, l.Push(String("y")))
	assert.Nil(t, l.Delete(1))
	shallow, err := d.Export(ExportShallow)
	assert.Nil(t, err)
	back, err := Decode(shallow, Options{Src: 2, Logger: utils.NopLogger()})
	assert.Nil(t, err)
	defer back.Close()

	// anchored on the deleted "y", which the shallow replica never saw
	assert.Nil(t, l.Push(String("z")))
	full, err := d.Export(ExportFull)
	assert.Nil(t, err)
	assert.ErrorIs(t, back.Merge(full), tabula_errors.ErrCausalityBroken)
	assert.Equal(t, []Value{String("x")}, back.List("l").Values())
}

func TestMergeIdempotent(t *testing.T) {
	a := newDoc(t, 1)
	b := newDoc(t, 2)
	fill(t, a)
	data, err := a.Export(ExportFull)
	assert.Nil(t, err)
	assert.Nil(t, b.Merge(data))
	n := b.OpCount()
	assert.Nil(t, b.Merge(data))
	assert.Equal(t, n, b.OpCount())
	assert.Equal(t, rowIDs(a), rowIDs(b))

	shallow, err := a.Export(ExportShallow)
	assert.Nil(t, err)
	assert.Nil(t, b.Merge(shallow))
	assert.Equal(t, n, b.OpCount())
}

func TestDecodeCorrupt(t *testing.T) {
	d := newDoc(t, 1)
	fill(t, d)
	data, err := d.Export(ExportFull)
	assert.Nil(t, err)
	opts := Options{Src: 2, Logger: utils.NopLogger()}

	_, err = Decode(nil, opts)
	assert.ErrorIs(t, err, tabula_errors.ErrCorrupt)
	_, err = Decode(data[:len(data)/2], opts)
	assert.ErrorIs(t, err, tabula_errors.ErrCorrupt)
	_, err = Decode([]byte("definitely not a snapshot"), opts)
	assert.ErrorIs(t, err, tabula_errors.ErrCorrupt)

	flipped := append([]byte{}, data...)
	flipped[len(flipped)/2] ^= 0x40
	_, err = Decode(flipped, opts)
	assert.ErrorIs(t, err, tabula_errors.ErrCorrupt)

	assert.ErrorIs(t, d.Merge(flipped), tabula_errors.ErrCorrupt)
}

func TestReopen(t *testing.T) {
	dir := t.TempDir()
	d, err := New(Options{Src: 5, Dir: dir, Logger: utils.NopLogger()})
	assert.Nil(t, err)
	fill(t, d)
	ids, clock := rowIDs(d), d.Clock()
	assert.Nil(t, d.Close())
	assert.ErrorIs(t, d.Close(), tabula_errors.ErrClosed)

	d, err = New(Options{Src: 5, Dir: dir, Logger: utils.NopLogger()})
	assert.Nil(t, err)
	defer d.Close()
	assert.Equal(t, ids, rowIDs(d))
	assert.Equal(t, clock, d.Clock())
	assert.Nil(t, d.List("rows").Push(Int(1)))
	assert.Equal(t, clock+1, d.Clock())
}

func TestShallowMergeKeepsClock(t *testing.T) {
	d := newDoc(t, 1)
	fill(t, d)
	shallow, err := d.Export(ExportShallow)
	assert.Nil(t, err)

	dir := t.TempDir()
	x, err := New(Options{Src: 7, Dir: dir, Logger: utils.NopLogger()})
	assert.Nil(t, err)
	assert.Nil(t, x.Merge(shallow))
	assert.Equal(t, rowIDs(d), rowIDs(x))
	// nothing from a shallow snapshot enters the vector
	assert.Empty(t, x.VersionVector())
	clock := x.Clock()
	assert.Equal(t, d.Clock(), clock)
	assert.Nil(t, x.Close())

	x, err = New(Options{Src: 7, Dir: dir, Logger: utils.NopLogger()})
	assert.Nil(t, err)
	defer x.Close()
	assert.Equal(t, clock, x.Clock())
	assert.Nil(t, x.Map("cols").Set("c", Int(11)))
	c, _ := x.Map("cols").Get("c")
	assert.Equal(t, Int(11), c)

	// the full log fills in what the shallow one cut
	full, err := d.Export(ExportFull)
	assert.Nil(t, err)
	assert.Nil(t, x.Merge(full))
	assert.Equal(t, rowIDs(d), rowIDs(x))
	c, _ = x.Map("cols").Get("c")
	assert.Equal(t, Int(11), c)
}

// seal wraps raw ops into a checksummed full snapshot.
func seal(ops ...[]byte) []byte {
	bm, buf := protocol.OpenHeader(nil, 'Y')
	buf = protocol.Append(buf, 'm', []byte{byte(ExportFull)})
	buf = append(buf, rdx.VV{}.TLV()...)
	protocol.CloseHeader(buf, bm)
	for _, o := range ops {
		buf = append(buf, o...)
	}
	return protocol.Append(buf, 'Z', binary.BigEndian.AppendUint64(nil, xxhash.Sum64(buf)))
}

func TestDecodeIntoDir(t *testing.T) {
	list := rootID(ListContainer, "l")
	var ops [][]byte
	anchor := rdx.ID0
	for n := uint64(1); n <= 10; n++ {
		id := rdx.NewID(1, n, 0)
		ops = append(ops, (&op{kind: OpInsert, id: id, ref: list, anchor: anchor, val: Int(int64(n))}).TLV())
		anchor = id
	}
	good := seal(ops...)
	bad := seal(append(ops, (&op{kind: OpInsert, id: rdx.NewID(1, 11, 0), ref: list,
		anchor: rdx.NewID(9, 9, 0), val: Int(11)}).TLV())...)

	dir := filepath.Join(t.TempDir(), "store")
	opts := Options{Src: 2, Dir: dir, MaxBatchLen: 2, Logger: utils.NopLogger()}
	_, err := Decode(bad, opts)
	assert.ErrorIs(t, err, tabula_errors.ErrCorrupt)
	assert.ErrorContains(t, err, "unknown op")
	entries, err := os.ReadDir(dir)
	assert.Nil(t, err)
	assert.Empty(t, entries)

	d, err := Decode(good, opts)
	assert.Nil(t, err)
	assert.Equal(t, 10, d.List("l").Len())
	assert.Nil(t, d.Close())

	// an existing store is never decoded over
	_, err = Decode(good, opts)
	assert.Error(t, err)
	d, err = New(opts)
	assert.Nil(t, err)
	defer d.Close()
	assert.Equal(t, 10, d.List("l").Len())
}
