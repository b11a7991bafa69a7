package rdx

import (
	"encoding/binary"
	"math"
	"math/bits"
)

// byteWidth is the number of bytes (0, 1, 2, 4 or 8) needed for n.
func byteWidth(n uint64) int {
	switch {
	case n == 0:
		return 0
	case n <= 0xff:
		return 1
	case n <= 0xffff:
		return 2
	case n <= 0xffffffff:
		return 4
	}
	return 8
}

// pairWidths maps the total length of a zipped pair to the widths
// of its halves. Every length is unique, so the pair needs no header.
var pairWidths = map[int][2]int{
	0: {0, 0}, 1: {1, 0}, 2: {1, 1}, 3: {2, 1},
	4: {2, 2}, 5: {4, 1}, 6: {4, 2}, 8: {4, 4},
	9: {8, 1}, 10: {8, 2}, 12: {8, 4}, 16: {8, 8},
}

func ValidZipPairLen(n int) bool {
	_, ok := pairWidths[n]
	return ok
}

func putWidth(buf []byte, v uint64, width int) {
	switch width {
	case 1:
		buf[0] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(buf, uint16(v))
	case 4:
		binary.LittleEndian.PutUint32(buf, uint32(v))
	case 8:
		binary.LittleEndian.PutUint64(buf, v)
	}
}

func getWidth(buf []byte, width int) uint64 {
	switch width {
	case 1:
		return uint64(buf[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(buf))
	case 4:
		return uint64(binary.LittleEndian.Uint32(buf))
	case 8:
		return binary.LittleEndian.Uint64(buf)
	}
	return 0
}

// ZipUint64Pair packs two uint64s into 0..16 bytes; the smaller the
// numbers the shorter the string.
func ZipUint64Pair(big, lil uint64) []byte {
	bw, lw := byteWidth(big), byteWidth(lil)
	if bw < lw {
		bw = lw
	}
	if lw == 0 && bw > 1 {
		lw = 1
	}
	ret := make([]byte, bw+lw)
	putWidth(ret, big, bw)
	putWidth(ret[bw:], lil, lw)
	return ret
}

// UnzipUint64Pair reverses ZipUint64Pair; malformed input gives zeros.
func UnzipUint64Pair(buf []byte) (big, lil uint64) {
	w, ok := pairWidths[len(buf)]
	if !ok {
		return 0, 0
	}
	return getWidth(buf, w[0]), getWidth(buf[w[0]:], w[1])
}

// ZipUint64 packs a uint64 into the shortest little-endian string.
func ZipUint64(v uint64) []byte {
	buf := [8]byte{}
	i := 0
	for v > 0 {
		buf[i] = uint8(v)
		v >>= 8
		i++
	}
	return append([]byte(nil), buf[:i]...)
}

func UnzipUint64(zip []byte) (v uint64) {
	for i := len(zip) - 1; i >= 0; i-- {
		v = v<<8 | uint64(zip[i])
	}
	return
}

func ZigZagInt64(i int64) uint64 {
	return uint64(i<<1) ^ uint64(i>>63)
}

func ZagZigUint64(u uint64) int64 {
	return int64(u>>1) ^ -int64(u&1)
}

func ZipInt64(v int64) []byte {
	return ZipUint64(ZigZagInt64(v))
}

func UnzipInt64(zip []byte) int64 {
	return ZagZigUint64(UnzipUint64(zip))
}

// ZipFloat64 stores the bit-reversed IEEE form, so the frequent
// "round" floats (zero low mantissa bits) come out short.
func ZipFloat64(f float64) []byte {
	return ZipUint64(bits.Reverse64(math.Float64bits(f)))
}

func UnzipFloat64(zip []byte) float64 {
	return math.Float64frombits(bits.Reverse64(UnzipUint64(zip)))
}
