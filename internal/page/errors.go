package page

import "errors"

var (
	errShortBuffer = errors.New("page: buffer is not exactly one page long")
	errCorrupt     = errors.New("page: checksum mismatch")
)
