package table

import (
	"math/rand/v2"
	"strconv"
)

// NextUniqueID draws random 32-bit ids until one is not in existing,
// records it there and returns it.
func NextUniqueID(existing map[uint32]struct{}) uint32 {
	for {
		id := rand.Uint32()
		if _, ok := existing[id]; !ok {
			existing[id] = struct{}{}
			return id
		}
	}
}

// IDGenerator mints ids unique within one namespace (columns or rows).
type IDGenerator struct {
	seen map[uint32]struct{}
}

// NewIDGenerator starts a namespace that already holds the given ids.
func NewIDGenerator(taken ...int64) *IDGenerator {
	g := &IDGenerator{seen: make(map[uint32]struct{}, len(taken))}
	for _, id := range taken {
		g.seen[uint32(id)] = struct{}{}
	}
	return g
}

// Next returns a fresh id, sign-extended for storage.
func (g *IDGenerator) Next() int64 {
	return int64(int32(NextUniqueID(g.seen)))
}

func (g *IDGenerator) Len() int {
	return len(g.seen)
}

func hex32(id int64) string {
	return strconv.FormatUint(uint64(uint32(id)), 16)
}

// CompositeKey addresses a cell of the flat cell map. Both ids go in
// as their unsigned 32-bit hex; ':' is not a hex digit.
func CompositeKey(rowID, colID int64) string {
	return hex32(rowID) + ":" + hex32(colID)
}

// CellKey addresses a cell in a row's own cell map.
func CellKey(colID int64) string {
	return "c" + hex32(colID)
}
