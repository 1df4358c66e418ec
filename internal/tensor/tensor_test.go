package tensor

import (
	"errors"
	"math"
	"testing"
)

// Test helpers

func assertEqualFloat32(t *testing.T, expected, actual float32, msg string) {
	t.Helper()
	if math.Abs(float64(expected-actual)) > 1e-6 {
		t.Errorf("%s: expected %v, got %v", msg, expected, actual)
	}
}

func assertEqualShape(t *testing.T, expected, actual Shape, msg string) {
	t.Helper()
	if !expected.Equal(actual) {
		t.Errorf("%s: expected shape %v, got %v", msg, expected, actual)
	}
}

// Shape Tests

func TestShapeNumElements(t *testing.T) {
	tests := []struct {
		shape Shape
		want  int
	}{
		{Shape{}, 1},
		{Shape{5}, 5},
		{Shape{3, 4}, 12},
		{Shape{2, 3, 4}, 24},
	}

	for _, tt := range tests {
		if got := tt.shape.NumElements(); got != tt.want {
			t.Errorf("Shape%v.NumElements() = %d, want %d", tt.shape, got, tt.want)
		}
	}
}

func TestShapeValidation(t *testing.T) {
	for _, s := range []Shape{{}, {1}, {3, 4}, {2, 3, 4}} {
		if err := s.Validate(); err != nil {
			t.Errorf("Shape%v.Validate() failed: %v", s, err)
		}
	}

	for _, s := range []Shape{{0}, {3, 0}, {-1}, {3, -4}} {
		if err := s.Validate(); err == nil {
			t.Errorf("Shape%v.Validate() should fail but didn't", s)
		}
	}
}

func TestComputeStrides(t *testing.T) {
	tests := []struct {
		shape    Shape
		expected []int
	}{
		{Shape{4}, []int{1}},
		{Shape{3, 4}, []int{4, 1}},
		{Shape{2, 3, 4}, []int{12, 4, 1}},
	}

	for _, tt := range tests {
		got := tt.shape.ComputeStrides()
		if len(got) != len(tt.expected) {
			t.Fatalf("Shape%v.ComputeStrides() length = %d, want %d", tt.shape, len(got), len(tt.expected))
		}
		for i := range got {
			if got[i] != tt.expected[i] {
				t.Errorf("Shape%v.ComputeStrides()[%d] = %d, want %d", tt.shape, i, got[i], tt.expected[i])
			}
		}
	}
}

func TestBroadcastShapes(t *testing.T) {
	tests := []struct {
		a, b      Shape
		expected  Shape
		shouldErr bool
	}{
		{Shape{3, 1}, Shape{3, 5}, Shape{3, 5}, false},
		{Shape{5}, Shape{3, 5}, Shape{3, 5}, false},
		{Shape{3, 4}, Shape{3, 4}, Shape{3, 4}, false},
		{Shape{}, Shape{3, 4}, Shape{3, 4}, false},
		{Shape{3, 4}, Shape{3, 5}, nil, true},
	}

	for _, tt := range tests {
		got, _, err := BroadcastShapes(tt.a, tt.b)
		if tt.shouldErr {
			if !errors.Is(err, ErrShapeMismatch) {
				t.Errorf("BroadcastShapes(%v, %v) error = %v, want ErrShapeMismatch", tt.a, tt.b, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("BroadcastShapes(%v, %v) failed: %v", tt.a, tt.b, err)
		}
		assertEqualShape(t, tt.expected, got, "BroadcastShapes")
	}
}

// Device Tests

func TestDeviceStringRoundTrip(t *testing.T) {
	for _, d := range []Device{CPU, Accelerator(0), Accelerator(3)} {
		parsed, err := ParseDevice(d.String())
		if err != nil {
			t.Fatalf("ParseDevice(%q): %v", d.String(), err)
		}
		if parsed != d {
			t.Errorf("ParseDevice(%q) = %v, want %v", d.String(), parsed, d)
		}
	}

	if _, err := ParseDevice("gpu"); err == nil {
		t.Error("ParseDevice(\"gpu\") should fail")
	}
	if _, err := ParseDevice("accelerator:-1"); err == nil {
		t.Error("ParseDevice(\"accelerator:-1\") should fail")
	}
}

// RawTensor Tests

func TestNewRaw(t *testing.T) {
	raw, err := NewRaw(Shape{3, 4}, CPU)
	if err != nil {
		t.Fatalf("NewRaw failed: %v", err)
	}
	assertEqualShape(t, Shape{3, 4}, raw.Shape(), "NewRaw shape")
	if raw.NumElements() != 12 {
		t.Errorf("NumElements = %d, want 12", raw.NumElements())
	}
	for i, v := range raw.Data() {
		if v != 0 {
			t.Fatalf("element %d = %v, want 0", i, v)
		}
	}

	if _, err := NewRaw(Shape{0, 2}, CPU); err == nil {
		t.Error("NewRaw with zero dimension should fail")
	}
}

func TestFromSliceCopies(t *testing.T) {
	src := []float32{1, 2, 3, 4}
	raw, err := FromSlice(src, Shape{2, 2}, CPU)
	if err != nil {
		t.Fatalf("FromSlice failed: %v", err)
	}
	src[0] = 100
	assertEqualFloat32(t, 1, raw.Data()[0], "FromSlice must copy")

	_, err = FromSlice([]float32{1, 2, 3}, Shape{2, 2}, CPU)
	if !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("FromSlice length mismatch error = %v, want ErrShapeMismatch", err)
	}
}

func TestRawTensorCloneIsDeep(t *testing.T) {
	a, _ := FromSlice([]float32{1, 2}, Shape{2}, Accelerator(1))
	b := a.Clone()
	b.Data()[0] = 42

	assertEqualFloat32(t, 1, a.Data()[0], "clone must not alias")
	if b.Device() != Accelerator(1) {
		t.Errorf("clone device = %v, want accelerator:1", b.Device())
	}
}

func TestRawTensorRelocateKeepsIdentity(t *testing.T) {
	a, _ := FromSlice([]float32{1, 2}, Shape{2}, CPU)
	ptr := a
	a.Relocate(Accelerator(0))

	if ptr != a || a.Device() != Accelerator(0) {
		t.Fatalf("Relocate changed identity or missed device: %v", a)
	}
	assertEqualFloat32(t, 2, a.Data()[1], "Relocate must keep values")
}

func TestRawTensorCopyFrom(t *testing.T) {
	dst, _ := NewRaw(Shape{2}, CPU)
	src, _ := FromSlice([]float32{5, 6}, Shape{2}, CPU)
	if err := dst.CopyFrom(src); err != nil {
		t.Fatalf("CopyFrom failed: %v", err)
	}
	assertEqualFloat32(t, 6, dst.Data()[1], "CopyFrom value")

	wrong, _ := NewRaw(Shape{3}, CPU)
	if err := dst.CopyFrom(wrong); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("CopyFrom error = %v, want ErrShapeMismatch", err)
	}
}

func TestScalarItem(t *testing.T) {
	s := Scalar(2.5, CPU)
	assertEqualFloat32(t, 2.5, s.Item(), "Item")
	if len(s.Shape()) != 0 {
		t.Errorf("scalar shape = %v, want []", s.Shape())
	}
}

// Array Tests

func TestArrayRoundTrip(t *testing.T) {
	raw, _ := FromSlice([]float32{1, 2, 3, 4, 5, 6}, Shape{2, 3}, Accelerator(2))
	arr := raw.ToArray()

	back, err := FromArray(arr, CPU)
	if err != nil {
		t.Fatalf("FromArray failed: %v", err)
	}
	assertEqualShape(t, raw.Shape(), back.Shape(), "round trip shape")
	for i := range raw.Data() {
		assertEqualFloat32(t, raw.Data()[i], back.Data()[i], "round trip data")
	}
	if back.Device() != CPU {
		t.Errorf("FromArray device = %v, want cpu", back.Device())
	}
}

func TestFromArrayRejectsBadLength(t *testing.T) {
	_, err := FromArray(Array{Shape: []int{2, 2}, Data: []float32{1}}, CPU)
	var shapeErr *ShapeError
	if !errors.As(err, &shapeErr) {
		t.Fatalf("FromArray error = %v, want *ShapeError", err)
	}
}
