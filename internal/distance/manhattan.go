package distance

import (
	"log/slog"

	"golang.org/x/sys/cpu"
)

const manhattanKernel = `
inline float oocmeans_distance(__global const float* a, __global const float* b, int d) {
	float sum = 0.0f;
	for (int i = 0; i < d; i++) {
		sum += fabs(a[i] - b[i]);
	}
	return sum;
}
`

func init() {
	var scalar func(a, b []float32) float32
	if cpu.X86.HasAVX2 {
		scalar = manhattanAVX2
		slog.Debug("distance kernel initialized", "key", "manhattan", "backend", "AVX2")
	} else {
		scalar = manhattanScalar
		slog.Debug("distance kernel initialized", "key", "manhattan", "backend", "scalar")
	}
	register(Func{Key: "manhattan", Scalar: scalar, Kernel: manhattanKernel})
}

func manhattanScalar(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += abs32(a[i] - b[i])
	}
	return sum
}

// manhattanAVX2 is a tight Go loop over 4-wide slices — see euclideanAVX2 for
// why this pack has no real SIMD backend behind the name.
func manhattanAVX2(a, b []float32) float32 {
	var sum float32
	n := len(a)
	i := 0
	for ; i+4 <= n; i += 4 {
		sum += abs32(a[i]-b[i]) + abs32(a[i+1]-b[i+1]) + abs32(a[i+2]-b[i+2]) + abs32(a[i+3]-b[i+3])
	}
	for ; i < n; i++ {
		sum += abs32(a[i] - b[i])
	}
	return sum
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
