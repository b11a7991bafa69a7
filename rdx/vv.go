package rdx

import (
	"errors"
	"slices"
	"strings"

	"github.com/drpcorg/tabula/protocol"
)

// VV is a version vector: the max progress seen from each replica.
type VV map[uint64]uint64

var ErrBadVRecord = errors.New("bad V record")

func (vv VV) Get(src uint64) uint64 {
	return vv[src]
}

// Put records the src-pro pair, returns whether it was unseen.
func (vv VV) Put(src, pro uint64) bool {
	pre, ok := vv[src]
	if ok && pre >= pro {
		return false
	}
	vv[src] = pro
	return true
}

func (vv VV) PutID(id ID) bool {
	return vv.Put(id.Src(), id.Pro())
}

// Seen tells whether the op id is covered by this vector: its
// progress for the op's source is at or past the op. A nil vector
// covers nothing.
func (vv VV) Seen(id ID) bool {
	pro, ok := vv[id.Src()]
	return ok && id.Pro() <= pro
}

func (vv VV) Clone() VV {
	ret := make(VV, len(vv))
	ret.Merge(vv)
	return ret
}

// Merge takes the entry-wise maximum.
func (vv VV) Merge(b VV) {
	for src, pro := range b {
		vv.Put(src, pro)
	}
}

// Covers tells whether vv has seen everything b has.
func (vv VV) Covers(b VV) bool {
	for src, pro := range b {
		if vv[src] < pro {
			return false
		}
	}
	return true
}

// MaxSeq is the largest Lamport sequence in the vector.
func (vv VV) MaxSeq() (seq uint64) {
	for src, pro := range vv {
		if s := IDfromSrcPro(src, pro).Seq(); s > seq {
			seq = s
		}
	}
	return
}

func (vv VV) IDs() (ids []ID) {
	for src, pro := range vv {
		ids = append(ids, IDfromSrcPro(src, pro))
	}
	slices.SortFunc(ids, func(a, b ID) int {
		switch {
		case a.src < b.src:
			return -1
		case a.src > b.src:
			return 1
		}
		return 0
	})
	return
}

// TLV is a sequence of V records, one per replica, nil for empty.
func (vv VV) TLV() (ret []byte) {
	for _, id := range vv.IDs() {
		ret = protocol.Append(ret, 'V', id.ZipBytes())
	}
	return
}

// PutTLV consumes V records produced by TLV.
func (vv VV) PutTLV(rec []byte) error {
	rest := rec
	for len(rest) > 0 {
		var val []byte
		var err error
		val, rest, err = protocol.TakeWary('V', rest)
		if err != nil {
			return errors.Join(ErrBadVRecord, err)
		}
		id, ok := IDFromZipBytesWary(val)
		if !ok {
			return ErrBadVRecord
		}
		vv.PutID(id)
	}
	return nil
}

func (vv VV) String() string {
	ids := vv.IDs()
	strs := make([]string, 0, len(ids))
	for _, id := range ids {
		strs = append(strs, id.String())
	}
	return strings.Join(strs, ",")
}

func VVFromTLV(tlv []byte) (vv VV, err error) {
	vv = make(VV)
	err = vv.PutTLV(tlv)
	return
}
