package table

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedRecord = errors.New("malformed record")
	ErrShapeMismatch   = errors.New("record shape mismatch")
)

type ImportErrorKind int

const (
	MalformedRecord ImportErrorKind = iota
	ShapeMismatch
)

func (k ImportErrorKind) sentinel() error {
	if k == ShapeMismatch {
		return ErrShapeMismatch
	}
	return ErrMalformedRecord
}

// ImportError stops an import. Record is the input record number,
// 0 for the header.
type ImportError struct {
	Kind   ImportErrorKind
	Record int
	Err    error
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("import: record %d: %v: %v", e.Record, e.Kind.sentinel(), e.Err)
}

func (e *ImportError) Unwrap() []error {
	return []error{e.Kind.sentinel(), e.Err}
}

// DecodeError means the snapshot bytes could not become a document.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return "decode: " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
