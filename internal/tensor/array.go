package tensor

// Array is the backend-neutral numeric form of a tensor: a shape plus a flat
// row-major float32 slice. It carries no device and no engine state, so it
// can cross a process boundary (msgpack, JSON, checkpoint files).
type Array struct {
	Shape []int     `msgpack:"shape" json:"shape"`
	Data  []float32 `msgpack:"data" json:"data"`
}

// ToArray copies the tensor into its neutral form.
func (r *RawTensor) ToArray() Array {
	data := make([]float32, len(r.data))
	copy(data, r.data)
	return Array{Shape: []int(r.shape.Clone()), Data: data}
}

// FromArray materializes a neutral array as a native tensor on device.
// Returns a ShapeError when the data length disagrees with the shape.
func FromArray(a Array, device Device) (*RawTensor, error) {
	return FromSlice(a.Data, Shape(a.Shape), device)
}

// NumElements returns the element count implied by the array's shape.
func (a Array) NumElements() int {
	return Shape(a.Shape).NumElements()
}
