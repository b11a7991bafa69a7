package rdx

import (
	"encoding/binary"
	"strconv"
)

/*
ID is a 128-bit op locator: the replica that made the op and the
op's position in that replica's progress.

	src: replica id (64 bits, small numbers in practice)
	pro: sequence (52 bits) << 12 | offset (12 bits)

Sequence numbers are Lamport times: a replica stamps a new op with
one more than the largest sequence it has seen from anyone. Hence
Compare gives a total order consistent with causality, which is
what list ordering and map last-writer-wins rely on.
*/
type ID struct {
	src uint64
	pro uint64
}

const offBits = 12
const OffMask = uint64(1<<offBits) - 1
const ProInc = uint64(1) << offBits

var ID0 ID = ID{}

var BadId = ID{^uint64(0), ^uint64(0)}

func NewID(src uint64, seq uint64, off uint64) ID {
	return ID{src, seq<<offBits | (off & OffMask)}
}

func IDfromSrcPro(src, pro uint64) ID {
	return ID{src, pro}
}

// Src is the replica id.
func (id ID) Src() uint64 {
	return id.src
}

// Seq is the Lamport sequence number of the op.
func (id ID) Seq() uint64 {
	return id.pro >> offBits
}

func (id ID) Off() uint64 {
	return id.pro & OffMask
}

func (id ID) Pro() uint64 {
	return id.pro
}

func (id ID) IsZero() bool {
	return id == ID0
}

// Compare orders ids by Lamport time, replica id breaking ties.
func (id ID) Compare(b ID) int {
	switch {
	case id.pro < b.pro:
		return -1
	case id.pro > b.pro:
		return 1
	case id.src < b.src:
		return -1
	case id.src > b.src:
		return 1
	}
	return 0
}

// Bytes is a fixed-width big-endian form, used in store keys so
// that keys of one container sort together.
func (id ID) Bytes() []byte {
	var ret [16]byte
	binary.BigEndian.PutUint64(ret[:8], id.src)
	binary.BigEndian.PutUint64(ret[8:], id.pro)
	return ret[:]
}

func IDFromBytes(by []byte) ID {
	if len(by) < 16 {
		return BadId
	}
	return ID{
		src: binary.BigEndian.Uint64(by[:8]),
		pro: binary.BigEndian.Uint64(by[8:16]),
	}
}

func (id ID) ZipBytes() []byte {
	return ZipUint64Pair(id.src, id.pro)
}

// IDFromZipBytesWary returns false for a body that no ZipBytes
// call could have produced.
func IDFromZipBytesWary(zip []byte) (ID, bool) {
	if !ValidZipPairLen(len(zip)) {
		return BadId, false
	}
	src, pro := UnzipUint64Pair(zip)
	return ID{src, pro}, true
}

// String gives the src-seq[-off] hex form, e.g. "1a-2f" or "1a-2f-3".
func (id ID) String() string {
	var buf [48]byte
	b := strconv.AppendUint(buf[:0], id.src, 16)
	b = append(b, '-')
	b = strconv.AppendUint(b, id.Seq(), 16)
	if off := id.Off(); off != 0 {
		b = append(b, '-')
		b = strconv.AppendUint(b, off, 16)
	}
	return string(b)
}

// IDFromString parses the String form; BadId on failure.
func IDFromString(idstr string) ID {
	var parts [3]uint64
	p := 0
	for i := 0; i < len(idstr); i++ {
		c := idstr[i]
		switch {
		case c >= '0' && c <= '9':
			parts[p] = parts[p]<<4 | uint64(c-'0')
		case c >= 'a' && c <= 'f':
			parts[p] = parts[p]<<4 | uint64(10+c-'a')
		case c >= 'A' && c <= 'F':
			parts[p] = parts[p]<<4 | uint64(10+c-'A')
		case c == '-' && p < 2:
			p++
		default:
			return BadId
		}
	}
	if p == 0 || parts[2] > OffMask || parts[1] >= 1<<(64-offBits) {
		return BadId
	}
	return NewID(parts[0], parts[1], parts[2])
}
