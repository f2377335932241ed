// Package gpu owns the OpenCL device lifecycle and the two kernel launches
// the distance engine needs: the n×k distance matrix and the per-row arg-min
// reduction. It is adapted from the teacher's internal/fit/gpu package, which
// carries the same platform/device enumeration and cgo binding shape but
// never implemented a real kernel; this package completes that scaffolding
// for the k-means distance kernels.
package gpu

// DeviceType describes the class of an OpenCL device.
type DeviceType string

const (
	DeviceTypeGPU         DeviceType = "GPU"
	DeviceTypeCPU         DeviceType = "CPU"
	DeviceTypeAccelerator DeviceType = "Accelerator"
	DeviceTypeDefault     DeviceType = "Default"
	DeviceTypeUnknown     DeviceType = "Unknown"
)

// DeviceInfo captures metadata about an OpenCL device.
type DeviceInfo struct {
	Name            string
	Vendor          string
	Version         string
	Type            DeviceType
	MaxComputeUnits uint32
}

// PlatformInfo captures metadata about an OpenCL platform and its devices.
type PlatformInfo struct {
	Name    string
	Vendor  string
	Version string
	Devices []DeviceInfo
}

// GlobalWorkSize is the fixed work-item count partitioning a shard across the
// accelerator (spec.md §4.C "implementation-defined, e.g. 1024").
const GlobalWorkSize = 1024
