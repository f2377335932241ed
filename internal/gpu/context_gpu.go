//go:build gpu

package gpu

/*
#define CL_TARGET_OPENCL_VERSION 120
#include <CL/cl.h>
#include <stdlib.h>
*/
import "C"

import (
	"fmt"
	"unsafe"
)

// kernelTemplate wraps a per-pair scalar distance function body (supplied by
// internal/distance's Func.Kernel) into two independent kernels: one writes
// the full n×k matrix, the other computes each row's arg-min index directly,
// evaluating the distances itself in a single launch without reading or
// writing an n×k matrix. D is baked in via #define so indexing is unrolled-friendly;
// spec.md §4.C requires recompilation whenever d changes.
const kernelTemplate = `
#define D %d
typedef %s oocmeans_idx_t;

%s

__kernel void oocmeans_distances(
	__global const float* points,
	__global const float* centroids,
	__global float* out,
	const unsigned int rowsPerWorker,
	const unsigned int n,
	const unsigned int k)
{
	unsigned int gid = get_global_id(0);
	unsigned int start = gid * rowsPerWorker;
	unsigned int end = start + rowsPerWorker;
	if (end > n) end = n;
	for (unsigned int row = start; row < end; row++) {
		__global const float* p = points + row * D;
		for (unsigned int c = 0; c < k; c++) {
			__global const float* cen = centroids + c * D;
			out[row * k + c] = oocmeans_distance(p, cen, D);
		}
	}
}

// idx's element type is baked in at compile time (uchar/ushort/uint,
// matching internal/shard.AssignmentWidth(k)) so the arg-min reduction
// writes the narrow-width result straight back to host (spec.md §3, §5).
__kernel void oocmeans_nearest_index(
	__global const float* points,
	__global const float* centroids,
	__global oocmeans_idx_t* idx,
	const unsigned int rowsPerWorker,
	const unsigned int n,
	const unsigned int k)
{
	unsigned int gid = get_global_id(0);
	unsigned int start = gid * rowsPerWorker;
	unsigned int end = start + rowsPerWorker;
	if (end > n) end = n;
	for (unsigned int row = start; row < end; row++) {
		__global const float* p = points + row * D;
		float best = 0.0f;
		unsigned int bestIdx = 0;
		for (unsigned int c = 0; c < k; c++) {
			__global const float* cen = centroids + c * D;
			float dist = oocmeans_distance(p, cen, D);
			if (c == 0 || dist < best) {
				best = dist;
				bestIdx = c;
			}
		}
		idx[row] = (oocmeans_idx_t)bestIdx;
	}
}
`

// indexWidth mirrors internal/shard.AssignmentWidth's rule without
// importing the shard package: 1 byte if k < 2^8, 2 if k < 2^16, else 4
// (spec.md §3). Duplicated rather than imported — this package stays a
// thin, domain-free wrapper over raw float32/byte buffers, matching the
// teacher's internal/fit/gpu, which never imports a domain type either.
func indexWidth(k int) int {
	switch {
	case k < 1<<8:
		return 1
	case k < 1<<16:
		return 2
	default:
		return 4
	}
}

// clIndexType maps an assignment-vector byte width (indexWidth) onto the
// matching OpenCL C scalar type.
func clIndexType(width int) string {
	switch width {
	case 1:
		return "uchar"
	case 2:
		return "ushort"
	default:
		return "uint"
	}
}

// BuildLogError carries an OpenCL kernel build log, satisfying spec.md §4.C
// "the engine exposes the build log on compile error".
type BuildLogError struct {
	Log string
	Err error
}

func (e *BuildLogError) Error() string { return fmt.Sprintf("%v\nbuild log:\n%s", e.Err, e.Log) }
func (e *BuildLogError) Unwrap() error { return e.Err }

// Context owns a built program specialized for one distance key, one d and
// one assignment-vector width; callers rebuild when any of the three
// changes (spec.md §4.C).
type Context struct {
	rt              *Runtime
	program         C.cl_program
	kernelDistances C.cl_kernel
	kernelNearest   C.cl_kernel
	d               int
	idxWidth        int
}

// NewContext compiles distanceFuncBody (an OpenCL function named
// oocmeans_distance(a, b, d) -> float) specialized for dims d and for k, the
// cluster count, which fixes the nearest_index kernel's output width
// (spec.md §3 AssignmentWidth).
func NewContext(rt *Runtime, distanceFuncBody string, dims, k int) (*Context, error) {
	idxWidth := indexWidth(k)
	source := fmt.Sprintf(kernelTemplate, dims, clIndexType(idxWidth), distanceFuncBody)
	csrc := C.CString(source)
	defer C.free(unsafe.Pointer(csrc))

	var status C.cl_int
	length := C.size_t(len(source))
	program := C.clCreateProgramWithSource(rt.context, 1, &csrc, &length, &status)
	if status != C.CL_SUCCESS {
		return nil, statusError("clCreateProgramWithSource", status)
	}

	status = C.clBuildProgram(program, 1, &rt.deviceID, nil, nil, nil)
	if status != C.CL_SUCCESS {
		log := buildLog(program, rt.deviceID)
		C.clReleaseProgram(program)
		return nil, &BuildLogError{Log: log, Err: statusError("clBuildProgram", status)}
	}

	kd := C.CString("oocmeans_distances")
	defer C.free(unsafe.Pointer(kd))
	kernelDistances := C.clCreateKernel(program, kd, &status)
	if status != C.CL_SUCCESS {
		C.clReleaseProgram(program)
		return nil, statusError("clCreateKernel(distances)", status)
	}

	kn := C.CString("oocmeans_nearest_index")
	defer C.free(unsafe.Pointer(kn))
	kernelNearest := C.clCreateKernel(program, kn, &status)
	if status != C.CL_SUCCESS {
		C.clReleaseKernel(kernelDistances)
		C.clReleaseProgram(program)
		return nil, statusError("clCreateKernel(nearest_index)", status)
	}

	return &Context{rt: rt, program: program, kernelDistances: kernelDistances, kernelNearest: kernelNearest, d: dims, idxWidth: idxWidth}, nil
}

func buildLog(program C.cl_program, device C.cl_device_id) string {
	var size C.size_t
	C.clGetProgramBuildInfo(program, device, C.CL_PROGRAM_BUILD_LOG, 0, nil, &size)
	if size == 0 {
		return ""
	}
	buf := make([]byte, int(size))
	C.clGetProgramBuildInfo(program, device, C.CL_PROGRAM_BUILD_LOG, size, unsafe.Pointer(&buf[0]), nil)
	return trimNull(buf)
}

// Dims reports the d this context was compiled for.
func (c *Context) Dims() int { return c.d }

// Close releases the kernels and program. The owning Runtime is released
// separately by its caller (process-wide lifetime, spec.md §5).
func (c *Context) Close() {
	if c == nil {
		return
	}
	if c.kernelNearest != nil {
		C.clReleaseKernel(c.kernelNearest)
	}
	if c.kernelDistances != nil {
		C.clReleaseKernel(c.kernelDistances)
	}
	if c.program != nil {
		C.clReleaseProgram(c.program)
	}
}

// DeviceBuffer is an opaque read-only device-side float32 buffer — the
// accelerator facet of internal/centroid.Table (spec.md §4.B).
type DeviceBuffer struct {
	mem  C.cl_mem
	rows int
	cols int
}

// UploadCentroids acquires a scoped read-only device buffer for a k×d
// centroid table. Callers release it via ReleaseBuffer on every exit path.
func (c *Context) UploadCentroids(flat []float32, k, d int) (*DeviceBuffer, error) {
	var status C.cl_int
	size := C.size_t(len(flat)) * C.size_t(unsafe.Sizeof(C.float(0)))
	mem := C.clCreateBuffer(c.rt.context, C.CL_MEM_READ_ONLY|C.CL_MEM_COPY_HOST_PTR, size, unsafe.Pointer(&flat[0]), &status)
	if status != C.CL_SUCCESS {
		return nil, statusError("clCreateBuffer(centroids)", status)
	}
	return &DeviceBuffer{mem: mem, rows: k, cols: d}, nil
}

// ReleaseBuffer releases a device buffer. Safe to call on nil.
func ReleaseBuffer(b *DeviceBuffer) {
	if b == nil || b.mem == nil {
		return
	}
	C.clReleaseMemObject(b.mem)
	b.mem = nil
}

func (c *Context) uploadPoints(flat []float32) (C.cl_mem, error) {
	var status C.cl_int
	size := C.size_t(len(flat)) * C.size_t(unsafe.Sizeof(C.float(0)))
	mem := C.clCreateBuffer(c.rt.context, C.CL_MEM_READ_ONLY|C.CL_MEM_COPY_HOST_PTR, size, unsafe.Pointer(&flat[0]), &status)
	if status != C.CL_SUCCESS {
		return nil, statusError("clCreateBuffer(points)", status)
	}
	return mem, nil
}

func rowsPerWorker(n int) uint32 {
	w := (n + GlobalWorkSize - 1) / GlobalWorkSize
	if w < 1 {
		w = 1
	}
	return uint32(w)
}

// Distances launches the distances kernel, producing the n×k matrix.
func (c *Context) Distances(points []float32, n int, centroids *DeviceBuffer) ([]float32, error) {
	pointsMem, err := c.uploadPoints(points)
	if err != nil {
		return nil, err
	}
	defer C.clReleaseMemObject(pointsMem)

	k := centroids.rows
	var status C.cl_int
	outSize := C.size_t(n*k) * C.size_t(unsafe.Sizeof(C.float(0)))
	outMem := C.clCreateBuffer(c.rt.context, C.CL_MEM_WRITE_ONLY, outSize, nil, &status)
	if status != C.CL_SUCCESS {
		return nil, statusError("clCreateBuffer(out)", status)
	}
	defer C.clReleaseMemObject(outMem)

	rpw := rowsPerWorker(n)
	nArg := C.uint(n)
	kArg := C.uint(k)

	C.clSetKernelArg(c.kernelDistances, 0, C.size_t(unsafe.Sizeof(pointsMem)), unsafe.Pointer(&pointsMem))
	C.clSetKernelArg(c.kernelDistances, 1, C.size_t(unsafe.Sizeof(centroids.mem)), unsafe.Pointer(&centroids.mem))
	C.clSetKernelArg(c.kernelDistances, 2, C.size_t(unsafe.Sizeof(outMem)), unsafe.Pointer(&outMem))
	C.clSetKernelArg(c.kernelDistances, 3, C.size_t(unsafe.Sizeof(rpw)), unsafe.Pointer(&rpw))
	C.clSetKernelArg(c.kernelDistances, 4, C.size_t(unsafe.Sizeof(nArg)), unsafe.Pointer(&nArg))
	C.clSetKernelArg(c.kernelDistances, 5, C.size_t(unsafe.Sizeof(kArg)), unsafe.Pointer(&kArg))

	global := C.size_t(GlobalWorkSize)
	status = C.clEnqueueNDRangeKernel(c.rt.queue, c.kernelDistances, 1, nil, &global, nil, 0, nil, nil)
	if status != C.CL_SUCCESS {
		return nil, statusError("clEnqueueNDRangeKernel(distances)", status)
	}
	C.clFinish(c.rt.queue)

	out := make([]float32, n*k)
	status = C.clEnqueueReadBuffer(c.rt.queue, outMem, C.CL_TRUE, 0, outSize, unsafe.Pointer(&out[0]), 0, nil, nil)
	if status != C.CL_SUCCESS {
		return nil, statusError("clEnqueueReadBuffer(out)", status)
	}
	return out, nil
}

// NearestIndex launches the nearest_index kernel once. No n×k matrix is
// materialized, on device or host, and the arg-min result itself crosses
// the bus at the width this Context was built for (IndexWidth), not a
// blanket 32 bits (spec.md §3, §5). The returned bytes are little-endian,
// IndexWidth() bytes per row — decode with internal/shard.DecodeAssignmentsLE.
func (c *Context) NearestIndex(points []float32, n int, centroids *DeviceBuffer) ([]byte, error) {
	pointsMem, err := c.uploadPoints(points)
	if err != nil {
		return nil, err
	}
	defer C.clReleaseMemObject(pointsMem)

	k := centroids.rows
	var status C.cl_int
	outSize := C.size_t(n * c.idxWidth)
	outMem := C.clCreateBuffer(c.rt.context, C.CL_MEM_WRITE_ONLY, outSize, nil, &status)
	if status != C.CL_SUCCESS {
		return nil, statusError("clCreateBuffer(idx)", status)
	}
	defer C.clReleaseMemObject(outMem)

	rpw := rowsPerWorker(n)
	nArg := C.uint(n)
	kArg := C.uint(k)

	C.clSetKernelArg(c.kernelNearest, 0, C.size_t(unsafe.Sizeof(pointsMem)), unsafe.Pointer(&pointsMem))
	C.clSetKernelArg(c.kernelNearest, 1, C.size_t(unsafe.Sizeof(centroids.mem)), unsafe.Pointer(&centroids.mem))
	C.clSetKernelArg(c.kernelNearest, 2, C.size_t(unsafe.Sizeof(outMem)), unsafe.Pointer(&outMem))
	C.clSetKernelArg(c.kernelNearest, 3, C.size_t(unsafe.Sizeof(rpw)), unsafe.Pointer(&rpw))
	C.clSetKernelArg(c.kernelNearest, 4, C.size_t(unsafe.Sizeof(nArg)), unsafe.Pointer(&nArg))
	C.clSetKernelArg(c.kernelNearest, 5, C.size_t(unsafe.Sizeof(kArg)), unsafe.Pointer(&kArg))

	global := C.size_t(GlobalWorkSize)
	status = C.clEnqueueNDRangeKernel(c.rt.queue, c.kernelNearest, 1, nil, &global, nil, 0, nil, nil)
	if status != C.CL_SUCCESS {
		return nil, statusError("clEnqueueNDRangeKernel(nearest_index)", status)
	}
	C.clFinish(c.rt.queue)

	out := make([]byte, outSize)
	status = C.clEnqueueReadBuffer(c.rt.queue, outMem, C.CL_TRUE, 0, outSize, unsafe.Pointer(&out[0]), 0, nil, nil)
	if status != C.CL_SUCCESS {
		return nil, statusError("clEnqueueReadBuffer(idx)", status)
	}
	return out, nil
}

// IndexWidth reports the byte width (1, 2 or 4) this Context's
// nearest_index kernel was compiled to emit.
func (c *Context) IndexWidth() int { return c.idxWidth }
