package distance

import (
	"github.com/cwbudde/oocmeans/internal/centroid"
	"github.com/cwbudde/oocmeans/internal/gpu"
	"github.com/cwbudde/oocmeans/internal/shard"
	"github.com/cwbudde/oocmeans/internal/xerrors"
)

// Engine evaluates one Func over shards, against an accelerator when gctx is
// non-nil and the Func carries kernel source, or a per-row scalar loop
// otherwise (spec.md §4.C "otherwise").
type Engine struct {
	fn   Func
	gctx *gpu.Context
	d    int
}

// NewEngine builds an engine for fn. If gctx is nil or fn.Kernel == "", every
// method falls back to the scalar loop.
func NewEngine(fn Func, gctx *gpu.Context) *Engine {
	return &Engine{fn: fn, gctx: gctx}
}

// UsesAccelerator reports whether this engine will dispatch to the device.
func (e *Engine) UsesAccelerator() bool {
	return e.gctx != nil && e.fn.Kernel != ""
}

// Func exposes the underlying distance function (e.g. for warnings about the
// default emd key not guaranteeing convergence, spec.md §9).
func (e *Engine) Func() Func { return e.fn }

func rowsOf(s shard.Shard) [][]float32 {
	n := s.Rows()
	rows := make([][]float32, n)
	for i := 0; i < n; i++ {
		rows[i] = s.Row(i)
	}
	return rows
}

func flatten(rows [][]float32) []float32 {
	if len(rows) == 0 {
		return nil
	}
	d := len(rows[0])
	flat := make([]float32, 0, len(rows)*d)
	for _, r := range rows {
		flat = append(flat, r...)
	}
	return flat
}

// Distances computes the n×k matrix for shard s against t, returned as one
// []float32 of length k per row.
func (e *Engine) Distances(s shard.Shard, t centroid.Table) ([][]float32, error) {
	n := s.Rows()
	k := t.K()
	if len(s.Data) != t.D() {
		return nil, xerrors.New(xerrors.ShapeError, "shard/centroid column count mismatch")
	}
	if e.UsesAccelerator() {
		h, release, err := centroid.AcquireDevice(e.gctx, t)
		if err != nil {
			return nil, err
		}
		defer release()
		flat := flatten(rowsOf(s))
		out, err := e.gctx.Distances(flat, n, h.Buffer())
		if err != nil {
			return nil, xerrors.Wrap(xerrors.AcceleratorError, "distances kernel launch", err)
		}
		result := make([][]float32, n)
		for i := 0; i < n; i++ {
			result[i] = out[i*k : (i+1)*k]
		}
		return result, nil
	}
	rows := rowsOf(s)
	result := make([][]float32, n)
	for i, row := range rows {
		d := make([]float32, k)
		for c := 0; c < k; c++ {
			d[c] = e.fn.Scalar(row, t.Row(c))
		}
		result[i] = d
	}
	return result, nil
}

// MinimumDistance computes, per row, the distance to its nearest centroid
// (used for the objective and the D² weights in seeding).
func (e *Engine) MinimumDistance(s shard.Shard, t centroid.Table) ([]float32, error) {
	rows := rowsOf(s)
	out := make([]float32, len(rows))
	if e.UsesAccelerator() {
		matrix, err := e.Distances(s, t)
		if err != nil {
			return nil, err
		}
		for i, d := range matrix {
			out[i] = minOf(d)
		}
		return out, nil
	}
	k := t.K()
	for i, row := range rows {
		best := e.fn.Scalar(row, t.Row(0))
		for c := 1; c < k; c++ {
			d := e.fn.Scalar(row, t.Row(c))
			if d < best {
				best = d
			}
		}
		out[i] = best
	}
	return out, nil
}

// NearestIndex computes, per row, the index of its nearest centroid, with
// smallest-index tie-break (spec.md §4.C). The result is width-encoded per
// spec.md §3 (1/2/4 bytes depending on k) rather than a blanket uint32.
func (e *Engine) NearestIndex(s shard.Shard, t centroid.Table) (*shard.Assignments, error) {
	n := s.Rows()
	k := t.K()
	if e.UsesAccelerator() {
		h, release, err := centroid.AcquireDevice(e.gctx, t)
		if err != nil {
			return nil, err
		}
		defer release()
		flat := flatten(rowsOf(s))
		raw, err := e.gctx.NearestIndex(flat, n, h.Buffer())
		if err != nil {
			return nil, xerrors.Wrap(xerrors.AcceleratorError, "nearest_index kernel launch", err)
		}
		return shard.DecodeAssignmentsLE(raw, k, n), nil
	}
	rows := rowsOf(s)
	out := shard.NewAssignments(k, n)
	for i, row := range rows {
		bestIdx := 0
		best := e.fn.Scalar(row, t.Row(0))
		for c := 1; c < k; c++ {
			d := e.fn.Scalar(row, t.Row(c))
			if d < best {
				best = d
				bestIdx = c
			}
		}
		out.Set(i, uint32(bestIdx))
	}
	return out, nil
}

// AcquireForPass uploads t once for the duration of an entire Lloyd pass
// (spec.md §4.E step 1 "scoped acquire"), instead of once per shard. The
// caller must defer the returned release on every exit path. When the
// engine has no accelerator, this is a no-op and every *Using method below
// falls back to the scalar loop.
func (e *Engine) AcquireForPass(t centroid.Table) (*centroid.DeviceHandle, func(), error) {
	if !e.UsesAccelerator() {
		return nil, func() {}, nil
	}
	return centroid.AcquireDevice(e.gctx, t)
}

// NearestIndexUsing is NearestIndex against an already-acquired pass handle,
// avoiding a redundant re-upload of the centroid table per shard.
func (e *Engine) NearestIndexUsing(h *centroid.DeviceHandle, s shard.Shard, t centroid.Table) (*shard.Assignments, error) {
	if h == nil || !e.UsesAccelerator() {
		return e.scalarNearestIndex(s, t)
	}
	n := s.Rows()
	flat := flatten(rowsOf(s))
	raw, err := e.gctx.NearestIndex(flat, n, h.Buffer())
	if err != nil {
		return nil, xerrors.Wrap(xerrors.AcceleratorError, "nearest_index kernel launch", err)
	}
	return shard.DecodeAssignmentsLE(raw, t.K(), n), nil
}

// MinimumDistanceUsing is MinimumDistance against an already-acquired pass
// handle.
func (e *Engine) MinimumDistanceUsing(h *centroid.DeviceHandle, s shard.Shard, t centroid.Table) ([]float32, error) {
	if h == nil || !e.UsesAccelerator() {
		return e.scalarMinimumDistance(s, t)
	}
	n := s.Rows()
	k := t.K()
	flat := flatten(rowsOf(s))
	out, err := e.gctx.Distances(flat, n, h.Buffer())
	if err != nil {
		return nil, xerrors.Wrap(xerrors.AcceleratorError, "distances kernel launch", err)
	}
	result := make([]float32, n)
	for i := 0; i < n; i++ {
		result[i] = minOf(out[i*k : (i+1)*k])
	}
	return result, nil
}

func (e *Engine) scalarNearestIndex(s shard.Shard, t centroid.Table) (*shard.Assignments, error) {
	rows := rowsOf(s)
	k := t.K()
	out := shard.NewAssignments(k, len(rows))
	for i, row := range rows {
		bestIdx := 0
		best := e.fn.Scalar(row, t.Row(0))
		for c := 1; c < k; c++ {
			d := e.fn.Scalar(row, t.Row(c))
			if d < best {
				best = d
				bestIdx = c
			}
		}
		out.Set(i, uint32(bestIdx))
	}
	return out, nil
}

func (e *Engine) scalarMinimumDistance(s shard.Shard, t centroid.Table) ([]float32, error) {
	rows := rowsOf(s)
	k := t.K()
	out := make([]float32, len(rows))
	for i, row := range rows {
		best := e.fn.Scalar(row, t.Row(0))
		for c := 1; c < k; c++ {
			d := e.fn.Scalar(row, t.Row(c))
			if d < best {
				best = d
			}
		}
		out[i] = best
	}
	return out, nil
}

func minOf(v []float32) float32 {
	m := v[0]
	for _, x := range v[1:] {
		if x < m {
			m = x
		}
	}
	return m
}
