package cdb

import "errors"

var (
	// ErrIO wraps an underlying filesystem or mapping error. Use
	// errors.Is(err, ErrIO) to test for it.
	ErrIO = errors.New("cdb: i/o error")

	// ErrBadFormat is returned when a file is too small or too large to be
	// a cdb file, or when a decoded offset or length would read past the
	// end of the file.
	ErrBadFormat = errors.New("cdb: invalid file format")

	// ErrTooBig is returned when a key or value is too large to store, or
	// when the running write position or the final subtable region would
	// overflow a 32-bit offset.
	ErrTooBig = errors.New("cdb: file too big")
)
