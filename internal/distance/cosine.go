package distance

import "math"

func init() {
	// cosine has no entry in the accelerator kernel catalog — documents the
	// "kernel source for accelerated keys" partiality from spec.md §1; the
	// engine falls back to the scalar loop whenever this key is configured.
	register(Func{Key: "cosine", Scalar: cosineScalar, Kernel: ""})
}

func cosineScalar(a, b []float32) float32 {
	var dot, normA, normB float32
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	denom := float32(math.Sqrt(float64(normA))) * float32(math.Sqrt(float64(normB)))
	if denom == 0 {
		return 1
	}
	return 1 - dot/denom
}
