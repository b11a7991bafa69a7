package tabula

import (
	"github.com/drpcorg/tabula/rdx"
	"github.com/drpcorg/tabula/tabula_errors"
	"github.com/pkg/errors"
)

// commit stamps a local op with the next id and applies it.
func (d *Doc) commit(o *op) (rdx.ID, error) {
	o.id = rdx.NewID(d.src, d.clock+1, 0)
	if ck, _, ok := o.val.Container(); ok {
		o.val = containerValue(ck, o.id)
	}
	_, err := d.apply(o.TLV(), nil)
	return o.id, err
}

func opContainerKind(kind byte) ContainerKind {
	if kind == OpEntry {
		return MapContainer
	}
	return ListContainer
}

// apply is the single entry point for ops, local or remote. Ops
// covered by seen, the vector as it was before the batch started, are
// skipped. A log need not be in per-replica sequence order, so
// anything past seen is deduplicated op by op. Returns whether the op
// was new.
func (d *Doc) apply(rec []byte, seen rdx.VV) (bool, error) {
	o, err := parseOp(rec)
	if err != nil {
		return false, err
	}
	if seen.Seen(o.id) {
		return false, nil
	}
	if err = d.checkContainer(o.ref, opContainerKind(o.kind)); err != nil {
		return false, err
	}
	var fresh bool
	switch o.kind {
	case OpInsert:
		fresh, err = d.applyInsert(&o)
	case OpDelete:
		fresh, err = d.applyDelete(&o)
	case OpEntry:
		fresh, err = d.applyEntry(&o)
	}
	if err != nil || !fresh {
		return false, err
	}
	if ck, _, ok := o.val.Container(); ok {
		if err = d.registerContainer(o.id, ck); err != nil {
			return false, err
		}
	}
	if err = d.batch.Set(logKey(d.logLen), rec, nil); err != nil {
		return false, err
	}
	d.logLen++
	d.vv.PutID(o.id)
	if o.id.Seq() > d.clock {
		d.clock = o.id.Seq()
	}
	OpsApplied.WithLabelValues(string(o.kind)).Inc()
	if int(d.batch.Count()) >= d.opts.MaxBatchLen {
		err = d.flush()
	}
	return true, err
}

func (d *Doc) applyInsert(o *op) (bool, error) {
	li, err := d.listIndex(o.ref)
	if err != nil {
		return false, err
	}
	if li.contains(o.id) {
		return false, nil
	}
	if !o.anchor.IsZero() && !li.contains(o.anchor) {
		return false, errors.Wrapf(tabula_errors.ErrCausalityBroken, "anchor %s", o.anchor.String())
	}
	li.integrate(o.id, o.anchor, false)
	return true, d.batch.Set(elemKey(o.ref, o.id), elemRecord(o.anchor, o.val), nil)
}

func (d *Doc) applyDelete(o *op) (bool, error) {
	li, err := d.listIndex(o.ref)
	if err != nil {
		return false, err
	}
	p := li.find(o.anchor)
	if p < 0 {
		return false, errors.Wrapf(tabula_errors.ErrCausalityBroken, "deleted element %s", o.anchor.String())
	}
	if !li.kill(p) {
		return false, nil
	}
	return true, d.batch.Merge(elemKey(o.ref, o.anchor), tombstone, nil)
}

func (d *Doc) applyEntry(o *op) (bool, error) {
	key := entryKey(o.ref, o.key)
	data, ok, err := d.get(key)
	if err != nil {
		return false, err
	}
	if ok {
		// the stored winner already beats or is this op
		if id, _, perr := parseEntry(data); perr == nil && id.Compare(o.id) >= 0 {
			return false, nil
		}
	}
	return true, d.batch.Merge(key, entryRecord(o.id, o.val), nil)
}
