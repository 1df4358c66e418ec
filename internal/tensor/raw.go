package tensor

import (
	"fmt"
)

// RawTensor is the low-level tensor representation: a dense row-major
// float32 buffer with a shape and the device it lives on.
//
// Tensors are compared by identity. The autodiff tape and the optimizers key
// their bookkeeping on *RawTensor pointers, so a parameter's tensor must be
// updated in place (see CopyFrom) rather than replaced.
type RawTensor struct {
	data   []float32
	shape  Shape
	device Device
}

// NewRaw creates a zero-filled tensor with the given shape on device.
func NewRaw(shape Shape, device Device) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	return &RawTensor{
		data:   make([]float32, shape.NumElements()),
		shape:  shape.Clone(),
		device: device,
	}, nil
}

// FromSlice creates a tensor from a Go slice. The slice is copied.
func FromSlice(data []float32, shape Shape, device Device) (*RawTensor, error) {
	if shape.NumElements() != len(data) {
		return nil, &ShapeError{Op: "from slice", Want: shape, Got: Shape{len(data)}}
	}
	raw, err := NewRaw(shape, device)
	if err != nil {
		return nil, err
	}
	copy(raw.data, data)
	return raw, nil
}

// Full creates a tensor filled with value.
func Full(shape Shape, value float32, device Device) (*RawTensor, error) {
	raw, err := NewRaw(shape, device)
	if err != nil {
		return nil, err
	}
	for i := range raw.data {
		raw.data[i] = value
	}
	return raw, nil
}

// Scalar creates a 0-D tensor holding v.
func Scalar(v float32, device Device) *RawTensor {
	return &RawTensor{data: []float32{v}, shape: Shape{}, device: device}
}

// Shape returns the tensor's shape.
func (r *RawTensor) Shape() Shape {
	return r.shape
}

// Device returns the tensor's compute device.
func (r *RawTensor) Device() Device {
	return r.device
}

// NumElements returns the total number of elements.
func (r *RawTensor) NumElements() int {
	return len(r.data)
}

// Data returns the underlying buffer (zero-copy).
//
// WARNING: Modifications to the returned slice modify the tensor.
func (r *RawTensor) Data() []float32 {
	return r.data
}

// Item returns the value of a single-element tensor.
// Panics if the tensor holds more than one element.
func (r *RawTensor) Item() float32 {
	if len(r.data) != 1 {
		panic(fmt.Sprintf("Item() only works for single-element tensors, got shape %v", r.shape))
	}
	return r.data[0]
}

// Clone returns a deep copy on the same device.
func (r *RawTensor) Clone() *RawTensor {
	data := make([]float32, len(r.data))
	copy(data, r.data)
	return &RawTensor{data: data, shape: r.shape.Clone(), device: r.device}
}

// To returns a copy of the tensor placed on device.
// The receiver is left untouched.
func (r *RawTensor) To(device Device) *RawTensor {
	c := r.Clone()
	c.device = device
	return c
}

// Relocate changes the device of the tensor in place, keeping its identity.
// Used when a parameter migrates: its buffer is re-homed on the target device.
func (r *RawTensor) Relocate(device Device) {
	if r.device == device {
		return
	}
	data := make([]float32, len(r.data))
	copy(data, r.data)
	r.data = data
	r.device = device
}

// CopyFrom overwrites the tensor's values with src's values.
// Shapes must match exactly; the device of r is kept.
func (r *RawTensor) CopyFrom(src *RawTensor) error {
	if !r.shape.Equal(src.shape) {
		return &ShapeError{Op: "copy", Want: r.shape, Got: src.shape}
	}
	copy(r.data, src.data)
	return nil
}

// String returns a short description for debugging.
func (r *RawTensor) String() string {
	return fmt.Sprintf("RawTensor(shape=%v, device=%s)", r.shape, r.device)
}
