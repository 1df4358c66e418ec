package device

import (
	"fmt"
	"runtime"

	"github.com/klauspost/cpuid/v2"
)

// CPUInfo describes the host processor.
type CPUInfo struct {
	Brand         string
	Vendor        string
	PhysicalCores int
	LogicalCores  int
	Features      []string
}

// DescribeCPU reports the host processor as detected by cpuid.
func DescribeCPU() CPUInfo {
	logical := cpuid.CPU.LogicalCores
	if logical <= 0 {
		logical = runtime.NumCPU()
	}
	return CPUInfo{
		Brand:         cpuid.CPU.BrandName,
		Vendor:        cpuid.CPU.VendorString,
		PhysicalCores: cpuid.CPU.PhysicalCores,
		LogicalCores:  logical,
		Features:      cpuid.CPU.FeatureSet(),
	}
}

// HasAVX512 reports whether the AVX-512 foundation and DQ extensions are present.
func (c CPUInfo) HasAVX512() bool {
	return cpuid.CPU.Supports(cpuid.AVX512F, cpuid.AVX512DQ)
}

// String formats the brand and core counts.
func (c CPUInfo) String() string {
	brand := c.Brand
	if brand == "" {
		brand = runtime.GOARCH
	}
	return fmt.Sprintf("%s (%d physical / %d logical cores)", brand, c.PhysicalCores, c.LogicalCores)
}
