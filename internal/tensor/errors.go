package tensor

import (
	"errors"
	"fmt"
)

// ErrShapeMismatch is returned when a tensor's shape disagrees with the shape
// an operation or a target parameter requires.
var ErrShapeMismatch = errors.New("shape mismatch")

// ShapeError provides detail about a shape mismatch.
//
// It matches ErrShapeMismatch under errors.Is.
type ShapeError struct {
	Op   string // Operation or target that rejected the shape
	Want Shape
	Got  Shape
}

// Error implements the error interface.
func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: %s: want %v, got %v", ErrShapeMismatch, e.Op, e.Want, e.Got)
}

// Is reports whether target is ErrShapeMismatch.
func (e *ShapeError) Is(target error) bool {
	return target == ErrShapeMismatch
}
