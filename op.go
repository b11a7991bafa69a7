package tabula

import (
	"github.com/drpcorg/tabula/protocol"
	"github.com/drpcorg/tabula/rdx"
	"github.com/drpcorg/tabula/tabula_errors"
	"github.com/pkg/errors"
)

// Op record types.
const (
	OpInsert = 'L' // list insert: I id, R list, A left neighbour, value
	OpDelete = 'D' // list delete: I id, R list, A deleted element
	OpEntry  = 'E' // map entry: I id, R map, K key, value (N deletes)
)

type op struct {
	kind   byte
	id     rdx.ID
	ref    rdx.ID
	anchor rdx.ID
	key    string
	val    Value
}

func (o *op) TLV() []byte {
	bm, buf := protocol.OpenHeader(nil, o.kind)
	buf = protocol.Append(buf, 'i', o.id.ZipBytes())
	buf = protocol.Append(buf, 'r', o.ref.ZipBytes())
	switch o.kind {
	case OpInsert:
		buf = protocol.Append(buf, 'a', o.anchor.ZipBytes())
		buf = o.val.appendTLV(buf)
	case OpDelete:
		buf = protocol.Append(buf, 'a', o.anchor.ZipBytes())
	case OpEntry:
		buf = protocol.Append(buf, 'k', []byte(o.key))
		buf = o.val.appendTLV(buf)
	}
	protocol.CloseHeader(buf, bm)
	return buf
}

func takeID(lit byte, data []byte) (id rdx.ID, rest []byte, err error) {
	var body []byte
	body, rest, err = protocol.TakeWary(lit, data)
	if err != nil {
		return
	}
	var ok bool
	if id, ok = rdx.IDFromZipBytesWary(body); !ok {
		err = tabula_errors.ErrBadOp
	}
	return
}

// parseOp reads exactly one op record.
func parseOp(rec []byte) (o op, err error) {
	lit, body, rest, err := protocol.TakeAnyWary(rec)
	if err != nil {
		return o, errors.Wrap(tabula_errors.ErrBadOp, err.Error())
	}
	if len(rest) != 0 {
		return o, tabula_errors.ErrBadOp
	}
	o.kind = lit
	if o.id, body, err = takeID('I', body); err != nil {
		return o, errors.Wrap(tabula_errors.ErrBadOp, "id")
	}
	if o.ref, body, err = takeID('R', body); err != nil {
		return o, errors.Wrap(tabula_errors.ErrBadOp, "ref")
	}
	if o.id.Src() == 0 {
		return o, errors.Wrap(tabula_errors.ErrBadOp, "op from the root replica")
	}
	switch o.kind {
	case OpInsert, OpDelete:
		if o.anchor, body, err = takeID('A', body); err != nil {
			return o, errors.Wrap(tabula_errors.ErrBadOp, "anchor")
		}
		if o.kind == OpDelete {
			if len(body) != 0 || o.anchor.IsZero() {
				return o, tabula_errors.ErrBadOp
			}
			return o, nil
		}
	case OpEntry:
		var key []byte
		if key, body, err = protocol.TakeWary('K', body); err != nil {
			return o, errors.Wrap(tabula_errors.ErrBadOp, "key")
		}
		o.key = string(key)
	default:
		return o, errors.Wrapf(tabula_errors.ErrBadOp, "unknown op type %q", lit)
	}
	if o.val, body, err = parseValue(body); err != nil {
		return o, errors.Wrap(tabula_errors.ErrBadOp, err.Error())
	}
	if len(body) != 0 {
		return o, tabula_errors.ErrBadOp
	}
	if o.kind == OpInsert && o.val.IsNone() {
		return o, errors.Wrap(tabula_errors.ErrBadOp, "inserting nothing")
	}
	if ck, _, ok := o.val.Container(); ok {
		o.val = containerValue(ck, o.id)
	}
	return o, nil
}
