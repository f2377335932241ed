// Package sample implements the two reservoir samplers shared by every
// seeding scheme (spec.md §4.D "Common helpers across seeders"): uniform
// reservoir sampling and Efraimidis-Spirakis weighted reservoir sampling. Both
// are built shard-by-shard so a size-k reservoir never requires holding more
// than one shard's rows in memory at a time (spec.md §8 scenario 4); per-row
// weight computation within a shard is fanned out across a worker pool with
// golang.org/x/sync/errgroup, the host data-parallelism spec.md §5 calls for.
package sample

import (
	"container/heap"
	"math"
	"math/rand"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/cwbudde/oocmeans/internal/shard"
	"github.com/cwbudde/oocmeans/internal/xerrors"
)

// Row is a materialized feature vector.
type Row = []float32

// ReservoirUniform draws size rows uniformly without weighting from s,
// streaming shard by shard (spec.md §4.D.1 "naive").
func ReservoirUniform(s shard.Stream, size int, rng *rand.Rand) ([]Row, error) {
	reservoir := make([]Row, 0, size)
	seen := 0
	for {
		sh, ok, err := s.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		n := sh.Rows()
		for i := 0; i < n; i++ {
			seen++
			if len(reservoir) < size {
				reservoir = append(reservoir, sh.Row(i))
				continue
			}
			j := rng.Intn(seen)
			if j < size {
				reservoir[j] = sh.Row(i)
			}
		}
	}
	return reservoir, nil
}

// ReservoirUniformWithReplacement draws count rows from s uniformly with
// replacement, in a single pass: count independent size-1 reservoirs share
// the row iteration but draw independently, so each slot ends up uniformly
// distributed over all seen rows regardless of the others (spec.md §4.D.4
// "uniformly sample m candidate rows from the shards (with replacement)").
func ReservoirUniformWithReplacement(s shard.Stream, count int, rng *rand.Rand) ([]Row, error) {
	samples := make([]Row, count)
	seen := 0
	for {
		sh, ok, err := s.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		n := sh.Rows()
		for i := 0; i < n; i++ {
			seen++
			row := sh.Row(i)
			for j := 0; j < count; j++ {
				if rng.Float64() < 1.0/float64(seen) {
					samples[j] = row
				}
			}
		}
	}
	for j, row := range samples {
		if row == nil {
			return nil, xerrors.New(xerrors.ShapeError, "fewer rows than requested with-replacement samples")
		}
		_ = j
	}
	return samples, nil
}

// ReservoirWeighted draws size rows from s with probability proportional to
// weightFn(row), via Efraimidis-Spirakis keys u^(1/w) (spec.md Glossary). The
// uniform draws u_i are taken sequentially off rng to keep the result
// reproducible for a given seed; weightFn(row) — the potentially expensive
// part, e.g. a nearest-centroid scan — is evaluated concurrently across the
// shard's rows.
func ReservoirWeighted(s shard.Stream, size int, weightFn func(row Row) float64, rng *rand.Rand) ([]Row, error) {
	h := &minHeap{}
	heap.Init(h)

	workers := runtime.GOMAXPROCS(0)
	if workers < 1 {
		workers = 1
	}

	for {
		sh, ok, err := s.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		n := sh.Rows()
		if n == 0 {
			continue
		}

		rows := make([]Row, n)
		for i := 0; i < n; i++ {
			rows[i] = sh.Row(i)
		}
		us := make([]float64, n)
		for i := 0; i < n; i++ {
			us[i] = rng.Float64()
		}

		weights := make([]float64, n)
		var g errgroup.Group
		chunk := (n + workers - 1) / workers
		for start := 0; start < n; start += chunk {
			start := start
			end := start + chunk
			if end > n {
				end = n
			}
			g.Go(func() error {
				for i := start; i < end; i++ {
					weights[i] = weightFn(rows[i])
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		for i := 0; i < n; i++ {
			if weights[i] <= 0 {
				continue
			}
			key := math.Pow(us[i], 1/weights[i])
			if h.Len() < size {
				heap.Push(h, item{key: key, row: rows[i]})
				continue
			}
			if key > (*h)[0].key {
				(*h)[0] = item{key: key, row: rows[i]}
				heap.Fix(h, 0)
			}
		}
	}

	out := make([]Row, h.Len())
	for i, it := range *h {
		out[i] = it.row
	}
	return out, nil
}
