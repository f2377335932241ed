package distance

const emdKernel = `
inline float oocmeans_distance(__global const float* a, __global const float* b, int d) {
	float running = 0.0f;
	float total = 0.0f;
	for (int i = 0; i < d; i++) {
		running += a[i] - b[i];
		total += fabs(running);
	}
	return total;
}
`

func init() {
	register(Func{Key: "emd", Scalar: emdScalar, Kernel: emdKernel})
}

// emdScalar treats each row as a histogram over its d coordinates and
// computes the cumulative absolute-difference distance
// ∑_i |∑_{j≤i}(a_j − b_j)| (spec.md §4.C, Glossary).
func emdScalar(a, b []float32) float32 {
	var running, total float32
	for i := range a {
		running += a[i] - b[i]
		total += abs32(running)
	}
	return total
}
