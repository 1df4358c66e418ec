//go:build webgpu

package device

import (
	"fmt"

	"github.com/go-webgpu/webgpu/wgpu"
)

func init() {
	register(webgpuEnumerator{})
}

// webgpuEnumerator counts WebGPU adapters. WebGPU exposes a single preferred
// adapter per instance, so the count is 0 or 1.
type webgpuEnumerator struct{}

func (webgpuEnumerator) Name() string { return "webgpu" }

func (webgpuEnumerator) Count() (n int, err error) {
	// Recover from panic if wgpu_native library is not found.
	defer func() {
		if r := recover(); r != nil {
			n = 0
			err = fmt.Errorf("webgpu: native library not available: %v", r)
		}
	}()

	instance := wgpu.CreateInstance(nil)
	defer instance.Release()

	adapter, adapterErr := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if adapterErr != nil {
		return 0, nil
	}
	adapter.Release()
	return 1, nil
}
