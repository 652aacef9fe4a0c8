package wire

import "errors"

var (
	errShortWrite = errors.New("wire: short write")
	errShortRead  = errors.New("wire: short read")
)
