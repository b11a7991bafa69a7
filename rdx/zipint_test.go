package rdx

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestZipUint64Pair(t *testing.T) {
	cases := [][2]uint64{
		{0, 0}, {1, 0}, {0, 1}, {0xff, 0xff}, {0x100, 1},
		{0x100, 0}, {0x10000, 0x10}, {0x10000, 0x100},
		{0xffffffff, 0xffffffff}, {math.MaxUint64, 0},
		{math.MaxUint64, 0x1234}, {1, math.MaxUint64},
	}
	for _, c := range cases {
		zip := ZipUint64Pair(c[0], c[1])
		assert.True(t, ValidZipPairLen(len(zip)))
		big, lil := UnzipUint64Pair(zip)
		assert.Equal(t, c[0], big)
		assert.Equal(t, c[1], lil)
	}
	assert.Len(t, ZipUint64Pair(0, 0), 0)
	assert.Len(t, ZipUint64Pair(5, 0), 1)
	assert.Len(t, ZipUint64Pair(0x1ff, 0), 3)
}

func TestZipInt64(t *testing.T) {
	for _, i := range []int64{0, 1, -1, 42, -11, math.MaxInt64, math.MinInt64} {
		assert.Equal(t, i, UnzipInt64(ZipInt64(i)))
	}
	assert.Len(t, ZipInt64(0), 0)
	assert.Len(t, ZipInt64(-1), 1)
}

func TestZipFloat64(t *testing.T) {
	for _, f := range []float64{0, 1, -1, 3.14, 9.5, math.Inf(1), math.SmallestNonzeroFloat64} {
		assert.Equal(t, f, UnzipFloat64(ZipFloat64(f)))
	}
	assert.Less(t, len(ZipFloat64(1)), 8)
}
