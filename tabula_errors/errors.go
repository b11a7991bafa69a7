// Provides common tabula errors definitions.
package tabula_errors

import "errors"

var (
	ErrClosed             = errors.New("tabula: document closed")
	ErrCorrupt            = errors.New("tabula: corrupt snapshot")
	ErrCausalityBroken    = errors.New("tabula: op refers to an unknown op")
	ErrUnknownContainer   = errors.New("tabula: unknown container")
	ErrWrongContainerKind = errors.New("tabula: wrong container kind")
	ErrOutOfBounds        = errors.New("tabula: index out of bounds")
	ErrBadOp              = errors.New("tabula: bad op record")
	ErrBadValue           = errors.New("tabula: bad value record")

	ErrCellMissing = errors.New("tabula: cell missing for a column")
)
