package tabula

import (
	"strconv"
	"strings"

	"github.com/drpcorg/tabula/protocol"
	"github.com/drpcorg/tabula/rdx"
	"github.com/drpcorg/tabula/tabula_errors"
)

// Kind is the type letter of a value record.
type Kind byte

const (
	KindNone      Kind = 'N'
	KindInt       Kind = 'I'
	KindFloat     Kind = 'F'
	KindString    Kind = 'S'
	KindRecord    Kind = 'O'
	KindContainer Kind = 'C'
)

// ContainerKind tells a nested list from a nested map.
type ContainerKind byte

const (
	ListContainer ContainerKind = 'L'
	MapContainer  ContainerKind = 'M'
)

// Value is what lists and maps hold: a scalar, a plain record of
// scalars, or a reference to a nested container. The zero Value is
// None, which in a map means "no entry".
type Value struct {
	kind   Kind
	i      int64
	f      float64
	s      string
	fields []Field
	ck     ContainerKind
	ref    rdx.ID
}

// Field is one key of a plain record.
type Field struct {
	Key   string
	Value Value
}

func None() Value                 { return Value{kind: KindNone} }
func Int(i int64) Value           { return Value{kind: KindInt, i: i} }
func Float(f float64) Value       { return Value{kind: KindFloat, f: f} }
func String(s string) Value       { return Value{kind: KindString, s: s} }
func F(key string, v Value) Field { return Field{Key: key, Value: v} }

// Record makes a plain (non-container) record. Field order is kept.
func Record(fields ...Field) Value {
	return Value{kind: KindRecord, fields: fields}
}

func containerValue(ck ContainerKind, ref rdx.ID) Value {
	return Value{kind: KindContainer, ck: ck, ref: ref}
}

func (v Value) Kind() Kind {
	if v.kind == 0 {
		return KindNone
	}
	return v.kind
}

func (v Value) IsNone() bool {
	return v.Kind() == KindNone
}

func (v Value) AsInt() (int64, bool) {
	return v.i, v.kind == KindInt
}

func (v Value) AsFloat() (float64, bool) {
	return v.f, v.kind == KindFloat
}

func (v Value) AsString() (string, bool) {
	return v.s, v.kind == KindString
}

func (v Value) AsRecord() ([]Field, bool) {
	return v.fields, v.kind == KindRecord
}

// Container returns the kind and id of a nested container reference.
func (v Value) Container() (ContainerKind, rdx.ID, bool) {
	return v.ck, v.ref, v.kind == KindContainer
}

// Get looks a key up in a plain record.
func (v Value) Get(key string) (Value, bool) {
	for _, f := range v.fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return None(), false
}

func (v Value) String() string {
	switch v.Kind() {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return strconv.Quote(v.s)
	case KindRecord:
		var b strings.Builder
		b.WriteByte('{')
		for n, f := range v.fields {
			if n > 0 {
				b.WriteByte(',')
			}
			b.WriteString(f.Key)
			b.WriteByte(':')
			b.WriteString(f.Value.String())
		}
		b.WriteByte('}')
		return b.String()
	case KindContainer:
		if v.ck == ListContainer {
			return "[" + v.ref.String() + "]"
		}
		return "{" + v.ref.String() + "}"
	}
	return "null"
}

// TLV encodes the value as one record.
func (v Value) TLV() []byte {
	return v.appendTLV(nil)
}

func (v Value) appendTLV(into []byte) []byte {
	switch v.Kind() {
	case KindInt:
		return protocol.Append(into, 'I', rdx.ZipInt64(v.i))
	case KindFloat:
		return protocol.Append(into, 'F', rdx.ZipFloat64(v.f))
	case KindString:
		return protocol.Append(into, 'S', []byte(v.s))
	case KindRecord:
		bm, buf := protocol.OpenHeader(into, 'O')
		for _, f := range v.fields {
			buf = protocol.Append(buf, 'k', []byte(f.Key))
			buf = f.Value.appendTLV(buf)
		}
		protocol.CloseHeader(buf, bm)
		return buf
	case KindContainer:
		return protocol.Append(into, 'C', []byte{byte(v.ck)})
	}
	return protocol.Append(into, 'N')
}

// parseValue reads one value record off untrusted data.
// Container references come back without an id: the id is the
// op that created the container, known only to the caller.
func parseValue(data []byte) (v Value, rest []byte, err error) {
	var lit byte
	var body []byte
	lit, body, rest, err = protocol.TakeAnyWary(data)
	if err != nil {
		return None(), nil, err
	}
	switch Kind(lit) {
	case KindNone:
		v = None()
	case KindInt:
		if len(body) > 8 {
			return None(), nil, tabula_errors.ErrBadValue
		}
		v = Int(rdx.UnzipInt64(body))
	case KindFloat:
		if len(body) > 8 {
			return None(), nil, tabula_errors.ErrBadValue
		}
		v = Float(rdx.UnzipFloat64(body))
	case KindString:
		v = String(string(body))
	case KindRecord:
		v, err = parseRecord(body)
	case KindContainer:
		if len(body) != 1 || (body[0] != byte(ListContainer) && body[0] != byte(MapContainer)) {
			return None(), nil, tabula_errors.ErrBadValue
		}
		v = containerValue(ContainerKind(body[0]), rdx.ID0)
	default:
		err = tabula_errors.ErrBadValue
	}
	return
}

func parseRecord(body []byte) (Value, error) {
	var fields []Field
	for len(body) > 0 {
		key, rest, err := protocol.TakeWary('K', body)
		if err != nil {
			return None(), err
		}
		var val Value
		val, body, err = parseValue(rest)
		if err != nil {
			return None(), err
		}
		if val.Kind() == KindContainer || val.Kind() == KindRecord {
			return None(), tabula_errors.ErrBadValue
		}
		fields = append(fields, Field{Key: string(key), Value: val})
	}
	return Record(fields...), nil
}
