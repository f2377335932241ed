package seed

import (
	"path/filepath"

	"github.com/cwbudde/oocmeans/internal/centroid"
	"github.com/cwbudde/oocmeans/internal/config"
	"github.com/cwbudde/oocmeans/internal/distance"
	"github.com/cwbudde/oocmeans/internal/sample"
	"github.com/cwbudde/oocmeans/internal/shard"
	"github.com/cwbudde/oocmeans/internal/xerrors"
)

type afkmc2Seeder struct{}

// NewAFKMC2 is the two-phase afk-mc² seeder (spec.md §4.D.5): phase 1
// computes and persists the proposal distribution q(x) with respect to a
// uniformly chosen c₁; phase 2 pre-draws a pool weighted by q(x) and walks a
// Markov chain of length m per remaining centroid over a slice of the pool.
func NewAFKMC2() Seeder { return afkmc2Seeder{} }

func (afkmc2Seeder) Seed(cfg *config.Config, eng *distance.Engine, shards func() (shard.Stream, error)) (centroid.Table, error) {
	d, err := dimOf(shards)
	if err != nil {
		return centroid.Table{}, err
	}
	r := rng(cfg)
	fn := eng.Func()

	// Ordering guarantee (i): the initial uniform sample is drawn before q
	// is computed, so c₁ does not depend on q.
	first, err := shards()
	if err != nil {
		return centroid.Table{}, err
	}
	c1Rows, err := sample.ReservoirUniform(first, 1, r)
	first.Close()
	if err != nil {
		return centroid.Table{}, err
	}
	c1 := c1Rows[0]

	z, nHat, err := sumSquaredDistanceAndCount(shards, c1, fn)
	if err != nil {
		return centroid.Table{}, err
	}
	if cfg.NHat > 1 {
		nHat = cfg.NHat
	}
	if z == 0 {
		return centroid.Table{}, xerrors.New(xerrors.InternalInvariantError, "afk-mc2: Z=0, all points coincide with c1")
	}
	alpha := 1.0 / (2.0 * float64(nHat))

	qxPath := filepath.Join(filepath.Dir(cfg.Path), "qx."+cfg.Format)
	if err := writeQX(shards, qxPath, c1, fn, z, alpha); err != nil {
		return centroid.Table{}, err
	}

	m, err := resolveChainLength(cfg, shards)
	if err != nil {
		return centroid.Table{}, err
	}
	if m < 1 {
		m = 1
	}
	poolSize := m * (cfg.K - 1)

	pointsStream, err := shards()
	if err != nil {
		return centroid.Table{}, err
	}
	qxStream, err := shard.Open(qxPath)
	if err != nil {
		pointsStream.Close()
		return centroid.Table{}, err
	}
	merged := &mergedQXStream{points: pointsStream, qx: newRowCursor(qxStream), qxStream: qxStream}

	// Ordering guarantee (ii): pool slicing is deterministic given the pool,
	// so reproducibility only requires seeding the uniform/weighted samplers.
	pool, err := sample.ReservoirWeighted(merged, poolSize, func(row sample.Row) float64 {
		return float64(row[len(row)-1])
	}, r)
	merged.Close()
	if err != nil {
		return centroid.Table{}, err
	}
	if len(pool) < poolSize {
		return centroid.Table{}, xerrors.New(xerrors.ShapeError, "afk-mc2: weighted pool smaller than m*(k-1)")
	}

	centroids := [][]float32{c1}
	for i := 0; i < cfg.K-1; i++ {
		slice := pool[i*m : (i+1)*m]
		current := centroids
		weightOf := func(row []float32) float64 {
			q := float64(row[len(row)-1])
			return minSqDist(row[:len(row)-1], current, fn) * q
		}
		chosen := walkChain(slice, weightOf, r)
		centroids = append(centroids, chosen[:len(chosen)-1])
	}

	return centroid.New(centroids, d)
}

// sumSquaredDistanceAndCount is afk-mc²'s phase-1 first pass: Z = Σ d(c1,x)²
// and, when cfg.NHat is unset, a row count to use in its place.
func sumSquaredDistanceAndCount(shards func() (shard.Stream, error), c1 []float32, fn distance.Func) (float64, int64, error) {
	s, err := shards()
	if err != nil {
		return 0, 0, err
	}
	defer s.Close()

	var z float64
	var n int64
	for {
		sh, ok, err := s.Next()
		if err != nil {
			return 0, 0, err
		}
		if !ok {
			break
		}
		for i := 0; i < sh.Rows(); i++ {
			dist := fn.Scalar(sh.Row(i), c1)
			z += float64(dist) * float64(dist)
			n++
		}
	}
	return z, n, nil
}

// writeQX is afk-mc²'s phase-1 second pass: stream the points again,
// compute q(x) = d(c1,x)²/(2Z) + α per row, and persist it as an auxiliary
// shard stream aligned 1:1 with points (spec.md §4.D.5).
func writeQX(shards func() (shard.Stream, error), qxPath string, c1 []float32, fn distance.Func, z, alpha float64) error {
	s, err := shards()
	if err != nil {
		return err
	}
	defer s.Close()
	qxSrc := &qxComputeStream{src: s, c1: c1, fn: fn, z: z, alpha: alpha}
	return shard.Write(qxPath, qxSrc)
}

// qxComputeStream wraps a points stream, yielding single-column "q(x)"
// shards row-aligned with the source.
type qxComputeStream struct {
	src        shard.Stream
	c1         []float32
	fn         distance.Func
	z, alpha   float64
}

func (q *qxComputeStream) Next() (shard.Shard, bool, error) {
	sh, ok, err := q.src.Next()
	if err != nil || !ok {
		return shard.Shard{}, ok, err
	}
	n := sh.Rows()
	vals := make([]float32, n)
	for i := 0; i < n; i++ {
		dist := q.fn.Scalar(sh.Row(i), q.c1)
		qx := float64(dist)*float64(dist)/(2*q.z) + q.alpha
		vals[i] = float32(qx)
	}
	return shard.Shard{Columns: []string{shard.ReservedQX}, Data: [][]float32{vals}}, true, nil
}

func (q *qxComputeStream) Close() error { return q.src.Close() }

// mergedQXStream zips a points stream with an independently-opened q(x)
// stream by row, row by row, regardless of how differently the two files
// happen to be chunked (spec.md §4.D.5 "aligned 1:1 with points").
type mergedQXStream struct {
	points   shard.Stream
	qx       *rowCursor
	qxStream shard.Stream
}

func (m *mergedQXStream) Next() (shard.Shard, bool, error) {
	sh, ok, err := m.points.Next()
	if err != nil || !ok {
		return shard.Shard{}, ok, err
	}
	n := sh.Rows()
	vals := make([]float32, n)
	for i := 0; i < n; i++ {
		qsh, idx, ok2, err2 := m.qx.next()
		if err2 != nil {
			return shard.Shard{}, false, err2
		}
		if !ok2 {
			return shard.Shard{}, false, xerrors.New(xerrors.ShapeError, "q(x) stream shorter than points stream")
		}
		vals[i] = qsh.Data[0][idx]
	}
	return sh.WithColumn(shard.ReservedQX, vals), true, nil
}

func (m *mergedQXStream) Close() error {
	err1 := m.points.Close()
	err2 := m.qxStream.Close()
	if err1 != nil {
		return err1
	}
	return err2
}
