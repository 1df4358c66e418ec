//go:build cuda

package device

import (
	"fmt"

	"gorgonia.org/cu"
)

func init() {
	register(cudaEnumerator{})
}

// cudaEnumerator counts CUDA devices through the driver API.
type cudaEnumerator struct{}

func (cudaEnumerator) Name() string { return "cuda" }

func (cudaEnumerator) Count() (int, error) {
	n, err := cu.NumDevices()
	if err != nil {
		return 0, fmt.Errorf("cuda: %w", err)
	}
	return n, nil
}
