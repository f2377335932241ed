// Package seed implements the seeding (initializer) variants from spec.md
// §4.D: naive, k-means++, k-means||, k-mc², afk-mc². Each variant satisfies
// the small Seeder capability spec.md §9 calls for — a tagged-variant
// polymorphism, the same shape as the teacher's opt.Optimizer interface, with
// one concrete constructor per variant instead of registry dispatch.
package seed

import (
	"math/rand"

	"github.com/cwbudde/oocmeans/internal/centroid"
	"github.com/cwbudde/oocmeans/internal/config"
	"github.com/cwbudde/oocmeans/internal/distance"
	"github.com/cwbudde/oocmeans/internal/shard"
	"github.com/cwbudde/oocmeans/internal/xerrors"
)

// Seeder produces a k×d centroid table from a configuration, a distance
// engine, and a factory for fresh, restartable shard streams over the
// feature columns (spec.md §9).
type Seeder interface {
	Seed(cfg *config.Config, eng *distance.Engine, shards func() (shard.Stream, error)) (centroid.Table, error)
}

func rng(cfg *config.Config) *rand.Rand {
	return rand.New(rand.NewSource(cfg.RandomSeed))
}

// minSqDist returns the squared distance from row to its nearest row in
// centroids, using fn's scalar implementation directly — seeding always
// evaluates weights host-side, row by row, since the weighted samplers need
// a per-row weight function rather than a batched shard-vs-table matrix.
func minSqDist(row []float32, centroids [][]float32, fn distance.Func) float64 {
	best := fn.Scalar(row, centroids[0])
	for _, c := range centroids[1:] {
		if d := fn.Scalar(row, c); d < best {
			best = d
		}
	}
	return float64(best) * float64(best)
}

// dimOf peeks the first shard of a fresh stream to learn the feature
// dimensionality without holding more than one shard in memory.
func dimOf(shards func() (shard.Stream, error)) (int, error) {
	s, err := shards()
	if err != nil {
		return 0, err
	}
	defer s.Close()
	sh, ok, err := s.Next()
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, xerrors.New(xerrors.ShapeError, "empty shard stream")
	}
	return len(sh.Data), nil
}

// rowCursor flattens a Stream into one row at a time, independent of shard
// boundaries — used where two independently-chunked streams (points and an
// auxiliary q(x) stream) must be consumed in lockstep by row index.
type rowCursor struct {
	s   shard.Stream
	cur shard.Shard
	i   int
}

func newRowCursor(s shard.Stream) *rowCursor {
	return &rowCursor{s: s}
}

// next returns the next row, or ok=false at end of stream.
func (c *rowCursor) next() (shard.Shard, int, bool, error) {
	for c.i >= c.cur.Rows() {
		sh, ok, err := c.s.Next()
		if err != nil {
			return shard.Shard{}, 0, false, err
		}
		if !ok {
			return shard.Shard{}, 0, false, nil
		}
		c.cur = sh
		c.i = 0
	}
	row, idx := c.cur, c.i
	c.i++
	return row, idx, true, nil
}

// resolveChainLength returns cfg.ChainLength if set, otherwise computes the
// default from the actual row count (spec.md §4.D "Chain-length defaulting")
// when cfg.NHat was never supplied to produce one at construction time.
func resolveChainLength(cfg *config.Config, shards func() (shard.Stream, error)) (int, error) {
	if cfg.ChainLength > 0 {
		return cfg.ChainLength, nil
	}
	s, err := shards()
	if err != nil {
		return 0, err
	}
	defer s.Close()
	digest, err := shard.Fingerprint(s)
	if err != nil {
		return 0, err
	}
	return config.DefaultChainLength(cfg.K, int64(digest.Rows)), nil
}

func uniqueRows(rows [][]float32) bool {
	for i := range rows {
		for j := i + 1; j < len(rows); j++ {
			if rowsEqual(rows[i], rows[j]) {
				return false
			}
		}
	}
	return true
}

func rowsEqual(a, b []float32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
