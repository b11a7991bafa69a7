package tabula

import (
	"io"

	"github.com/cockroachdb/pebble"
	"github.com/drpcorg/tabula/rdx"
)

// mergeAdaptor collects pebble merge operands for one key and folds
// them with the CRDT rule of the key's prefix. All the rules are
// commutative, so operand order is irrelevant.
type mergeAdaptor struct {
	prefix byte
	vals   [][]byte
}

func merger(key, value []byte) (pebble.ValueMerger, error) {
	ma := &mergeAdaptor{}
	if len(key) > 0 {
		ma.prefix = key[0]
	}
	_ = ma.MergeNewer(value)
	return ma, nil
}

func (a *mergeAdaptor) MergeNewer(value []byte) error {
	target := make([]byte, len(value))
	copy(target, value)
	a.vals = append(a.vals, target)
	return nil
}

func (a *mergeAdaptor) MergeOlder(value []byte) error {
	return a.MergeNewer(value)
}

func (a *mergeAdaptor) Finish(includesBase bool) (res []byte, cl io.Closer, err error) {
	if len(a.vals) == 0 {
		return nil, nil, nil
	}
	switch a.prefix {
	case entryPrefix:
		res = mergeEntries(a.vals)
	case elemPrefix:
		res = mergeElems(a.vals)
	case metaPrefix:
		res = mergeVV(a.vals)
	default:
		res = a.vals[len(a.vals)-1]
	}
	return res, nil, nil
}

// mergeEntries is last-writer-wins by op id.
func mergeEntries(vals [][]byte) []byte {
	var win []byte
	var winID rdx.ID
	for _, val := range vals {
		id, _, err := parseEntry(val)
		if err != nil {
			continue
		}
		if win == nil || id.Compare(winID) > 0 {
			win, winID = val, id
		}
	}
	if win == nil {
		return vals[0]
	}
	return win
}

// mergeElems joins an element with its tombstones. The element
// record itself never changes once inserted.
func mergeElems(vals [][]byte) []byte {
	var base []byte
	dead := false
	for _, val := range vals {
		if isTombstone(val) {
			dead = true
			continue
		}
		if len(val) >= len(tombstone) && isTombstone(val[len(val)-len(tombstone):]) {
			if _, _, d, err := parseElem(val); err == nil && d {
				dead = true
				val = val[:len(val)-len(tombstone)]
			}
		}
		if base == nil {
			base = val
		}
	}
	switch {
	case base == nil:
		return tombstone
	case dead:
		return append(append([]byte{}, base...), tombstone...)
	}
	return base
}

func mergeVV(vals [][]byte) []byte {
	vv := make(rdx.VV)
	for _, val := range vals {
		_ = vv.PutTLV(val)
	}
	return vv.TLV()
}
