package tabula

import (
	"encoding/binary"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/cespare/xxhash"
	"github.com/drpcorg/tabula/protocol"
	"github.com/drpcorg/tabula/rdx"
	"github.com/drpcorg/tabula/tabula_errors"
	"github.com/pkg/errors"
)

// ExportMode selects what a snapshot keeps.
type ExportMode byte

const (
	// ExportFull keeps the whole op log: mergeable with any replica.
	ExportFull ExportMode = 'F'
	// ExportShallow keeps only ops that contribute to the current
	// state. Replicas decoded from it cannot take ops that depend on
	// the dropped history.
	ExportShallow ExportMode = 'S'
)

func (m ExportMode) String() string {
	switch m {
	case ExportFull:
		return "full"
	case ExportShallow:
		return "shallow"
	}
	return "unknown"
}

// Snapshot layout:
//
//	Y{ m:mode V... }  header: mode and version vector
//	L|D|E ...         ops in apply order
//	Z{ xxhash64 }     checksum of everything before it
const hashLen = 8

// Export encodes the replica into a self-contained snapshot.
func (d *Doc) Export(mode ExportMode) ([]byte, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.db == nil {
		return nil, tabula_errors.ErrClosed
	}
	bm, buf := protocol.OpenHeader(nil, 'Y')
	buf = protocol.Append(buf, 'm', []byte{byte(mode)})
	buf = append(buf, d.vv.TLV()...)
	protocol.CloseHeader(buf, bm)
	var err error
	switch mode {
	case ExportFull:
		buf, err = d.exportLog(buf)
	case ExportShallow:
		buf, err = d.exportState(buf)
	default:
		return nil, errors.Errorf("unknown export mode %q", mode)
	}
	if err != nil {
		return nil, err
	}
	sum := binary.BigEndian.AppendUint64(nil, xxhash.Sum64(buf))
	buf = protocol.Append(buf, 'Z', sum)
	SnapshotBytes.WithLabelValues(mode.String(), "export").Observe(float64(len(buf)))
	d.log.Debug("snapshot exported", "mode", mode.String(), "bytes", len(buf), "ops", d.logLen)
	return buf, nil
}

func (d *Doc) exportLog(buf []byte) ([]byte, error) {
	err := d.scan([]byte{logPrefix}, func(_, val []byte) error {
		buf = append(buf, val...)
		return nil
	})
	return buf, err
}

// exportState re-emits the live state as ops that keep their original
// ids. Each live list element is anchored on the previous live one,
// so tombstones and the ops that made them are dropped.
func (d *Doc) exportState(buf []byte) ([]byte, error) {
	var roots []rdx.ID
	d.kinds.Range(func(id rdx.ID, _ ContainerKind) bool {
		if id.Src() == 0 {
			roots = append(roots, id)
		}
		return true
	})
	slices.SortFunc(roots, func(a, b rdx.ID) int { return a.Compare(b) })
	var err error
	for _, root := range roots {
		ck, _ := d.kindOf(root)
		if buf, err = d.exportContainer(buf, root, ck); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func (d *Doc) exportContainer(buf []byte, cid rdx.ID, ck ContainerKind) ([]byte, error) {
	if ck == MapContainer {
		return d.exportMap(buf, cid)
	}
	return d.exportList(buf, cid)
}

func (d *Doc) exportList(buf []byte, cid rdx.ID) ([]byte, error) {
	li, err := d.listIndex(cid)
	if err != nil {
		return nil, err
	}
	l := List{doc: d, id: cid}
	anchor := rdx.ID0
	li.ensureLive()
	for _, p := range slices.Clone(li.live) {
		e := li.elems[p]
		val, err := l.value(e)
		if err != nil {
			return nil, err
		}
		o := op{kind: OpInsert, id: e.id, ref: cid, anchor: anchor, val: val}
		buf = append(buf, o.TLV()...)
		anchor = e.id
		if ck, _, ok := val.Container(); ok {
			if buf, err = d.exportContainer(buf, e.id, ck); err != nil {
				return nil, err
			}
		}
	}
	return buf, nil
}

func (d *Doc) exportMap(buf []byte, cid rdx.ID) ([]byte, error) {
	var entries []op
	err := d.scan(containerPrefix(entryPrefix, cid), func(key, data []byte) error {
		id, val, err := parseEntry(data)
		if err != nil {
			return err
		}
		if !val.IsNone() {
			entries = append(entries, op{kind: OpEntry, id: id, ref: cid, key: entryKeyName(key), val: val})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, o := range entries {
		buf = append(buf, o.TLV()...)
		if ck, _, ok := o.val.Container(); ok {
			if buf, err = d.exportContainer(buf, o.id, ck); err != nil {
				return nil, err
			}
		}
	}
	return buf, nil
}

type snapshot struct {
	mode ExportMode
	vv   rdx.VV
	ops  protocol.Records
}

// parseSnapshot checks the envelope of untrusted snapshot bytes.
func parseSnapshot(data []byte) (*snapshot, error) {
	if len(data) < hashLen+2 {
		return nil, errors.Wrap(tabula_errors.ErrCorrupt, "too short")
	}
	body := data[:len(data)-hashLen-2]
	sum, rest, err := protocol.TakeWary('Z', data[len(body):])
	if err != nil || len(rest) != 0 || len(sum) != hashLen {
		return nil, errors.Wrap(tabula_errors.ErrCorrupt, "no checksum")
	}
	if binary.BigEndian.Uint64(sum) != xxhash.Sum64(body) {
		return nil, errors.Wrap(tabula_errors.ErrCorrupt, "checksum mismatch")
	}
	hdr, rest, err := protocol.TakeWary('Y', body)
	if err != nil {
		return nil, errors.Wrap(tabula_errors.ErrCorrupt, "no header")
	}
	mode, vvs, err := protocol.TakeWary('M', hdr)
	if err != nil || len(mode) != 1 {
		return nil, errors.Wrap(tabula_errors.ErrCorrupt, "no mode")
	}
	snap := &snapshot{mode: ExportMode(mode[0])}
	if snap.mode != ExportFull && snap.mode != ExportShallow {
		return nil, errors.Wrapf(tabula_errors.ErrCorrupt, "unknown mode %q", mode[0])
	}
	if snap.vv, err = rdx.VVFromTLV(vvs); err != nil {
		return nil, errors.Wrap(tabula_errors.ErrCorrupt, err.Error())
	}
	if snap.ops, err = protocol.Split(rest); err != nil {
		return nil, errors.Wrap(tabula_errors.ErrCorrupt, err.Error())
	}
	return snap, nil
}

// Decode builds a new replica from a snapshot. The replica gets its
// own source from opts; it does not reuse the exporter's. A store
// directory must be empty or absent, and is emptied again if the
// snapshot fails to apply.
func Decode(data []byte, opts Options) (*Doc, error) {
	snap, err := parseSnapshot(data)
	if err != nil {
		return nil, err
	}
	if err = checkEmptyDir(opts.Dir); err != nil {
		return nil, err
	}
	d, err := New(opts)
	if err != nil {
		return nil, err
	}
	d.lock.Lock()
	defer d.lock.Unlock()
	// a fresh replica has seen nothing, whatever order the log is in
	for _, rec := range snap.ops {
		if _, err = d.apply(rec, nil); err != nil {
			break
		}
	}
	if err == nil {
		d.vv.Merge(snap.vv)
		d.clock = max(d.clock, d.vv.MaxSeq())
		err = d.flush()
	}
	if err != nil {
		_ = d.batch.Close()
		_ = d.db.Close()
		d.db = nil
		clearDir(opts.Dir)
		return nil, errors.Wrap(tabula_errors.ErrCorrupt, err.Error())
	}
	SnapshotBytes.WithLabelValues(snap.mode.String(), "decode").Observe(float64(len(data)))
	d.log.Info("snapshot decoded", "mode", snap.mode.String(), "bytes", len(data), "ops", d.logLen)
	return d, nil
}

func checkEmptyDir(dir string) error {
	if dir == "" {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(entries) != 0 {
		return errors.Errorf("store directory %s is not empty", dir)
	}
	return nil
}

func clearDir(dir string) {
	if dir == "" {
		return
	}
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		_ = os.RemoveAll(filepath.Join(dir, e.Name()))
	}
}

// Merge applies the ops of another replica's snapshot. Ops covered
// by this replica's vector are skipped, the rest are deduplicated one
// by one. An op that refers to history this replica lacks fails the
// merge with ErrCausalityBroken; ops applied before it stay.
func (d *Doc) Merge(data []byte) error {
	snap, err := parseSnapshot(data)
	if err != nil {
		return err
	}
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.db == nil {
		return tabula_errors.ErrClosed
	}
	seen := d.vv.Clone()
	applied := 0
	for n, rec := range snap.ops {
		fresh, err := d.apply(rec, seen)
		if err != nil {
			if snap.mode == ExportShallow {
				d.vv = seen.Clone()
			}
			_ = d.flush()
			return errors.Wrapf(err, "merge op %d of %d", n, len(snap.ops))
		}
		if fresh {
			applied++
		}
	}
	// A shallow snapshot omits ops its vector covers, so only a
	// full one may advance ours. Ops taken from a shallow one stay
	// out of the vector too: a later full merge redelivers them along
	// with the history they were cut from.
	if snap.mode == ExportFull {
		d.vv.Merge(snap.vv)
	} else {
		d.vv = seen
	}
	d.clock = max(d.clock, d.vv.MaxSeq())
	SnapshotBytes.WithLabelValues(snap.mode.String(), "merge").Observe(float64(len(data)))
	d.log.Debug("snapshot merged", "mode", snap.mode.String(), "ops", len(snap.ops), "applied", applied)
	return d.flush()
}
