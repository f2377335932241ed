package seed

import (
	"github.com/cwbudde/oocmeans/internal/centroid"
	"github.com/cwbudde/oocmeans/internal/config"
	"github.com/cwbudde/oocmeans/internal/distance"
	"github.com/cwbudde/oocmeans/internal/sample"
	"github.com/cwbudde/oocmeans/internal/shard"
)

const kMeansParallelIterations = 5

type kmeansParallelSeeder struct{}

// NewKMeansParallel is k-means|| (spec.md §4.D.3): naive for 1 seed, then 5
// oversampling rounds at factor 2k drawn by the same D² weighting as
// k-means++, collecting roughly 1+10k candidates; the pool is then reduced
// to k in memory by recursing into k-means++.
func NewKMeansParallel() Seeder { return kmeansParallelSeeder{} }

func (kmeansParallelSeeder) Seed(cfg *config.Config, eng *distance.Engine, shards func() (shard.Stream, error)) (centroid.Table, error) {
	d, err := dimOf(shards)
	if err != nil {
		return centroid.Table{}, err
	}
	r := rng(cfg)
	fn := eng.Func()

	first, err := shards()
	if err != nil {
		return centroid.Table{}, err
	}
	seed1, err := sample.ReservoirUniform(first, 1, r)
	first.Close()
	if err != nil {
		return centroid.Table{}, err
	}

	pool := [][]float32{seed1[0]}
	oversample := 2 * cfg.K

	for i := 0; i < kMeansParallelIterations; i++ {
		s, err := shards()
		if err != nil {
			return centroid.Table{}, err
		}
		current := pool
		weightFn := func(row sample.Row) float64 { return minSqDist(row, current, fn) }
		drawn, err := sample.ReservoirWeighted(s, oversample, weightFn, r)
		s.Close()
		if err != nil {
			return centroid.Table{}, err
		}
		pool = append(pool, drawn...)
	}

	poolShard := shard.Shard{Columns: make([]string, d), Data: rowsToColumns(pool, d)}
	memFactory := func() (shard.Stream, error) {
		return shard.NewMemStream([]shard.Shard{poolShard}), nil
	}

	innerCfg := *cfg
	return NewKMeansPlusPlus().Seed(&innerCfg, eng, memFactory)
}

// rowsToColumns transposes row-major candidates into the column-major layout
// a Shard expects.
func rowsToColumns(rows [][]float32, d int) [][]float32 {
	cols := make([][]float32, d)
	for c := range cols {
		cols[c] = make([]float32, len(rows))
	}
	for i, row := range rows {
		for c := 0; c < d; c++ {
			cols[c][i] = row[c]
		}
	}
	return cols
}
