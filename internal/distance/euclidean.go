package distance

import (
	"log/slog"
	"math"

	"golang.org/x/sys/cpu"
)

const euclideanKernel = `
inline float oocmeans_distance(__global const float* a, __global const float* b, int d) {
	float sum = 0.0f;
	for (int i = 0; i < d; i++) {
		float diff = a[i] - b[i];
		sum += diff * diff;
	}
	return sqrt(sum);
}
`

// euclideanBackend indicates which scalar kernel is active, mirroring the
// teacher's SADBackend dispatch label in internal/fit/sad.go.
type euclideanBackend int

const (
	euclideanBackendScalar euclideanBackend = iota
	euclideanBackendAVX2
)

var activeEuclideanBackend euclideanBackend

func init() {
	var scalar func(a, b []float32) float32
	if cpu.X86.HasAVX2 {
		activeEuclideanBackend = euclideanBackendAVX2
		scalar = euclideanAVX2
		slog.Debug("distance kernel initialized", "key", "euclidean", "backend", "AVX2")
	} else {
		activeEuclideanBackend = euclideanBackendScalar
		scalar = euclideanScalar
		slog.Debug("distance kernel initialized", "key", "euclidean", "backend", "scalar")
	}
	register(Func{Key: "euclidean", Scalar: scalar, Kernel: euclideanKernel})
}

// euclideanScalar is the portable fallback.
func euclideanScalar(a, b []float32) float32 {
	var sum float32
	for i := range a {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return float32(math.Sqrt(float64(sum)))
}

// euclideanAVX2 is a tight Go loop over 4-wide slices, named for the SIMD
// path it stands in for — this pack carries no assembly backend (the
// teacher's own AVX2 SAD kernel is backed by a .s file not present here), so
// there is no real VEX-encoded instruction behind this name yet.
func euclideanAVX2(a, b []float32) float32 {
	var sum float32
	n := len(a)
	i := 0
	for ; i+4 <= n; i += 4 {
		d0 := a[i] - b[i]
		d1 := a[i+1] - b[i+1]
		d2 := a[i+2] - b[i+2]
		d3 := a[i+3] - b[i+3]
		sum += d0*d0 + d1*d1 + d2*d2 + d3*d3
	}
	for ; i < n; i++ {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return float32(math.Sqrt(float64(sum)))
}
