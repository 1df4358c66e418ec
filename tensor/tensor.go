// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public tensor types of the learner.
//
// Tensors are dense float32 buffers tagged with the device they live on:
//   - RawTensor: the tensor values, shape and device
//   - Array: the device-independent form used for weights and batches
//   - Backend: interface for compute implementations
//
// Example:
//
//	x, err := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{2, 2}, tensor.CPU)
//	arr := x.ToArray() // neutral form, safe to ship to another process
package tensor

import (
	"github.com/born-ml/learner/internal/tensor"
)

// Shape represents tensor dimensions.
type Shape = tensor.Shape

// Device identifies where a tensor lives.
type Device = tensor.Device

// DeviceKind distinguishes CPU and accelerator devices.
type DeviceKind = tensor.DeviceKind

// Device kinds.
const (
	CPUKind         = tensor.CPUKind
	AcceleratorKind = tensor.AcceleratorKind
)

// RawTensor is a float32 tensor on a device.
type RawTensor = tensor.RawTensor

// Array is the device-independent form of a tensor.
type Array = tensor.Array

// Backend defines the compute operations tensors run on.
type Backend = tensor.Backend

// ShapeError describes a shape mismatch.
type ShapeError = tensor.ShapeError

// ErrShapeMismatch is matched by every ShapeError.
var ErrShapeMismatch = tensor.ErrShapeMismatch

// CPU is the host device.
var CPU = tensor.CPU

// Accelerator returns the accelerator device with the given index.
func Accelerator(index int) Device { return tensor.Accelerator(index) }

// ParseDevice parses a device string as produced by Device.String.
func ParseDevice(s string) (Device, error) { return tensor.ParseDevice(s) }

// NewRaw creates a zero-filled tensor.
func NewRaw(shape Shape, device Device) (*RawTensor, error) { return tensor.NewRaw(shape, device) }

// FromSlice creates a tensor from a copy of data.
func FromSlice(data []float32, shape Shape, device Device) (*RawTensor, error) {
	return tensor.FromSlice(data, shape, device)
}

// Full creates a tensor filled with value.
func Full(shape Shape, value float32, device Device) (*RawTensor, error) {
	return tensor.Full(shape, value, device)
}

// Scalar creates a 0-D tensor.
func Scalar(v float32, device Device) *RawTensor { return tensor.Scalar(v, device) }

// FromArray converts an Array to a tensor on device.
func FromArray(a Array, device Device) (*RawTensor, error) { return tensor.FromArray(a, device) }

// BroadcastShapes computes the broadcast shape of a and b.
func BroadcastShapes(a, b Shape) (Shape, bool, error) { return tensor.BroadcastShapes(a, b) }
