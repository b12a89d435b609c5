package protocol

import "errors"

var (
	ErrEndOfStream     = errors.New("protocol: end of stream")
	ErrVarIntTooBig    = errors.New("protocol: varint too big")
	ErrVarLongTooBig   = errors.New("protocol: varlong too big")
	ErrInvalidEncoding = errors.New("protocol: invalid utf-8 encoding")
	ErrIO              = errors.New("protocol: io error")
	ErrInvalidLength   = errors.New("protocol: invalid length")
	ErrStringTooLong   = errors.New("protocol: string too long")
)
