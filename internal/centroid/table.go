// Package centroid implements the centroid table (spec.md §3, §4.B): a k×d
// float32 matrix with a host-side immutable view and a scoped accelerator
// buffer acquired for the duration of one Lloyd pass or seeding chain.
package centroid

import (
	"math"

	"github.com/cwbudde/oocmeans/internal/gpu"
	"github.com/cwbudde/oocmeans/internal/xerrors"
)

// Table is a k×d float32 matrix, row-addressable and immutable once built.
// Replacing a centroid table (e.g. after a Lloyd pass) means constructing a
// new Table, never mutating rows in place — the driver swaps the whole value.
type Table struct {
	k    int
	d    int
	rows []float32 // row-major, len == k*d
}

// New builds a Table from k rows of length d. Returns ShapeError if any row's
// length does not equal d.
func New(rows [][]float32, d int) (Table, error) {
	flat := make([]float32, 0, len(rows)*d)
	for _, r := range rows {
		if len(r) != d {
			return Table{}, xerrors.New(xerrors.ShapeError, "centroid row length mismatch")
		}
		flat = append(flat, r...)
	}
	return Table{k: len(rows), d: d, rows: flat}, nil
}

// FromFlat wraps an already row-major k*d slice without copying.
func FromFlat(flat []float32, k, d int) Table {
	return Table{k: k, d: d, rows: flat}
}

// K reports the cluster count.
func (t Table) K() int { return t.k }

// D reports the feature dimensionality.
func (t Table) D() int { return t.d }

// Row returns the i-th centroid row (shares storage with the table; callers
// must not mutate it).
func (t Table) Row(i int) []float32 {
	return t.rows[i*t.d : (i+1)*t.d]
}

// Flat returns the row-major backing slice (shares storage; callers must not
// mutate it).
func (t Table) Flat() []float32 { return t.rows }

// Rows materializes the table as [][]float32, copying each row.
func (t Table) Rows() [][]float32 {
	out := make([][]float32, t.k)
	for i := range out {
		row := make([]float32, t.d)
		copy(row, t.Row(i))
		out[i] = row
	}
	return out
}

// MaxAbs returns the largest absolute component across the whole table, used
// to scale the stabilization tolerance τ = 1e-6·max(|C|) (spec.md §9).
func (t Table) MaxAbs() float32 {
	var m float32
	for _, v := range t.rows {
		a := v
		if a < 0 {
			a = -a
		}
		if a > m {
			m = a
		}
	}
	return m
}

// Equal reports bitwise equality, the strict stabilization backstop (spec.md
// §4.E, §9).
func (t Table) Equal(o Table) bool {
	if t.k != o.k || t.d != o.d {
		return false
	}
	for i, v := range t.rows {
		if v != o.rows[i] {
			return false
		}
	}
	return true
}

// MaxRowL2Change returns the largest row-wise Euclidean distance between
// corresponding rows of t and o — the tightened stabilization criterion from
// spec.md §9.
func (t Table) MaxRowL2Change(o Table) float32 {
	var maxDist float32
	for i := 0; i < t.k; i++ {
		a, b := t.Row(i), o.Row(i)
		var sum float32
		for j := 0; j < t.d; j++ {
			diff := a[j] - b[j]
			sum += diff * diff
		}
		dist := float32(math.Sqrt(float64(sum)))
		if dist > maxDist {
			maxDist = dist
		}
	}
	return maxDist
}

// DeviceHandle is the accelerator-side facet of a Table: an opaque, scoped
// read-only buffer produced by internal/gpu.
type DeviceHandle struct {
	buf *gpu.DeviceBuffer
}

// AcquireDevice uploads t into a read-only device buffer for the duration of
// one pass. The caller must defer the returned release func on every exit
// path, including error — the scope-guard idiom from the teacher's
// profiling setup in cmd/run.go, generalized to a resource that must release
// unconditionally (spec.md §4.B, §9).
func AcquireDevice(gctx *gpu.Context, t Table) (*DeviceHandle, func(), error) {
	noop := func() {}
	if gctx == nil {
		return nil, noop, nil
	}
	buf, err := gctx.UploadCentroids(t.Flat(), t.k, t.d)
	if err != nil {
		return nil, noop, xerrors.Wrap(xerrors.AcceleratorError, "upload centroids", err)
	}
	h := &DeviceHandle{buf: buf}
	release := func() {
		gpu.ReleaseBuffer(h.buf)
		h.buf = nil
	}
	return h, release, nil
}

// Buffer exposes the underlying device buffer to internal/distance.
func (h *DeviceHandle) Buffer() *gpu.DeviceBuffer {
	if h == nil {
		return nil
	}
	return h.buf
}
