package tensor

import (
	"fmt"
	"strconv"
	"strings"
)

// DeviceKind distinguishes host memory from accelerator memory.
type DeviceKind int

// Supported device kinds.
const (
	CPUKind DeviceKind = iota
	AcceleratorKind
)

// Device is a compute placement: the host CPU, or the accelerator at Index
// among the accelerators visible to the process.
type Device struct {
	Kind  DeviceKind
	Index int
}

// CPU is the host device.
var CPU = Device{Kind: CPUKind}

// Accelerator returns the accelerator device with the given local index.
func Accelerator(index int) Device {
	return Device{Kind: AcceleratorKind, Index: index}
}

// IsAccelerator reports whether d is an accelerator device.
func (d Device) IsAccelerator() bool {
	return d.Kind == AcceleratorKind
}

// String returns "cpu" or "accelerator:N".
func (d Device) String() string {
	if d.Kind == AcceleratorKind {
		return "accelerator:" + strconv.Itoa(d.Index)
	}
	return "cpu"
}

// ParseDevice parses the String form of a device.
func ParseDevice(s string) (Device, error) {
	if s == "cpu" {
		return CPU, nil
	}
	idx, ok := strings.CutPrefix(s, "accelerator:")
	if !ok {
		return Device{}, fmt.Errorf("unknown device %q", s)
	}
	n, err := strconv.Atoi(idx)
	if err != nil || n < 0 {
		return Device{}, fmt.Errorf("invalid accelerator index in %q", s)
	}
	return Accelerator(n), nil
}
