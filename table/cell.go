package table

import (
	"strconv"
	"strings"

	"github.com/drpcorg/tabula"
	"github.com/pkg/errors"
)

// Cell is a single table value: Int, Float or Text.
type Cell interface {
	String() string
	value() tabula.Value
}

type Int int64

type Float float64

type Text string

func (c Int) String() string   { return strconv.FormatInt(int64(c), 10) }
func (c Float) String() string { return strconv.FormatFloat(float64(c), 'g', -1, 64) }
func (c Text) String() string  { return string(c) }

func (c Int) value() tabula.Value   { return tabula.Int(int64(c)) }
func (c Float) value() tabula.Value { return tabula.Float(float64(c)) }
func (c Text) value() tabula.Value  { return tabula.String(string(c)) }

// ParseCell types a raw field: an integer if it parses as int64,
// else a float if it parses as a plain decimal float64, else text.
// "007" is Int(7); hex floats and digit underscores stay text;
// out-of-range floats saturate to infinity or zero.
func ParseCell(field string) Cell {
	if i, err := strconv.ParseInt(field, 10, 64); err == nil {
		return Int(i)
	}
	if !plainFloat(field) {
		return Text(field)
	}
	f, err := strconv.ParseFloat(field, 64)
	if err == nil || errors.Is(err, strconv.ErrRange) {
		return Float(f)
	}
	return Text(field)
}

// plainFloat rules out the Go-only literal forms ParseFloat takes.
func plainFloat(field string) bool {
	if strings.ContainsRune(field, '_') {
		return false
	}
	digits := strings.TrimLeft(field, "+-")
	return !(len(digits) > 1 && digits[0] == '0' && (digits[1] == 'x' || digits[1] == 'X'))
}

func cellFromValue(v tabula.Value) (Cell, bool) {
	switch v.Kind() {
	case tabula.KindInt:
		i, _ := v.AsInt()
		return Int(i), true
	case tabula.KindFloat:
		f, _ := v.AsFloat()
		return Float(f), true
	case tabula.KindString:
		s, _ := v.AsString()
		return Text(s), true
	}
	return nil, false
}
