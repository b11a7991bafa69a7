package tabula

import (
	"encoding/binary"

	"github.com/drpcorg/tabula/protocol"
	"github.com/drpcorg/tabula/rdx"
	"github.com/drpcorg/tabula/tabula_errors"
)

// Key space. One letter prefix per kind of record.
const (
	entryPrefix = 'E' // E cid key -> I winner id, value
	elemPrefix  = 'L' // L cid eid -> A anchor, value [, X]
	logPrefix   = 'G' // G n -> op record
	kindPrefix  = 'K' // K cid -> container kind
	metaPrefix  = 'M'
)

var (
	vvKey    = []byte{metaPrefix, 'V'}
	clockKey = []byte{metaPrefix, 'C'}
)

var tombstone = protocol.Record('X')

func entryKey(cid rdx.ID, key string) []byte {
	ret := make([]byte, 0, 17+len(key))
	ret = append(ret, entryPrefix)
	ret = append(ret, cid.Bytes()...)
	return append(ret, key...)
}

func entryKeyName(key []byte) string {
	return string(key[17:])
}

func elemKey(cid, eid rdx.ID) []byte {
	ret := make([]byte, 0, 33)
	ret = append(ret, elemPrefix)
	ret = append(ret, cid.Bytes()...)
	return append(ret, eid.Bytes()...)
}

func elemKeyID(key []byte) rdx.ID {
	if len(key) != 33 {
		return rdx.BadId
	}
	return rdx.IDFromBytes(key[17:])
}

func logKey(n uint64) []byte {
	ret := [9]byte{logPrefix}
	binary.BigEndian.PutUint64(ret[1:], n)
	return ret[:]
}

func kindKey(cid rdx.ID) []byte {
	return append([]byte{kindPrefix}, cid.Bytes()...)
}

// containerPrefix is the key prefix of all entries or elements of cid.
func containerPrefix(prefix byte, cid rdx.ID) []byte {
	return append([]byte{prefix}, cid.Bytes()...)
}

// upperBound is the least key above every key starting with prefix.
func upperBound(prefix []byte) []byte {
	hi := append([]byte{}, prefix...)
	for i := len(hi) - 1; i >= 0; i-- {
		hi[i]++
		if hi[i] != 0 {
			return hi[:i+1]
		}
	}
	return nil
}

func entryRecord(id rdx.ID, val Value) []byte {
	ret := protocol.Append(nil, 'i', id.ZipBytes())
	return val.appendTLV(ret)
}

func parseEntry(data []byte) (id rdx.ID, val Value, err error) {
	id, rest, err := takeID('I', data)
	if err != nil {
		return
	}
	val, rest, err = parseValue(rest)
	if err == nil && len(rest) != 0 {
		err = tabula_errors.ErrBadValue
	}
	if ck, _, ok := val.Container(); ok {
		val = containerValue(ck, id)
	}
	return
}

func elemRecord(anchor rdx.ID, val Value) []byte {
	ret := protocol.Append(nil, 'a', anchor.ZipBytes())
	return val.appendTLV(ret)
}

// parseElem reads a stored list element: its anchor, its value and
// whether a tombstone was merged in. The value may be None when only
// the tombstone got through a partial merge.
func parseElem(data []byte) (anchor rdx.ID, val Value, dead bool, err error) {
	if isTombstone(data) {
		return rdx.ID0, None(), true, nil
	}
	anchor, rest, err := takeID('A', data)
	if err != nil {
		return
	}
	val, rest, err = parseValue(rest)
	if err != nil {
		return
	}
	switch {
	case len(rest) == 0:
	case isTombstone(rest):
		dead = true
	default:
		err = tabula_errors.ErrBadValue
	}
	return
}

func isTombstone(data []byte) bool {
	return len(data) == len(tombstone) && data[0] == tombstone[0] && data[1] == tombstone[1]
}
