package checkpoint

import "errors"

// Common errors.
var (
	ErrChecksumMismatch   = errors.New("checksum mismatch: file may be corrupted")
	ErrInvalidMagic       = errors.New("invalid magic bytes")
	ErrUnsupportedVersion = errors.New("unsupported format version")
	ErrHeaderTooLarge     = errors.New("header exceeds maximum size")
	ErrTooManyTensors     = errors.New("too many tensors in file")
	ErrOutOfBounds        = errors.New("tensor extends beyond data section")
	ErrInvalidShape       = errors.New("invalid tensor shape")
)
