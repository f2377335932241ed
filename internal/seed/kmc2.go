package seed

import (
	"math/rand"

	"github.com/cwbudde/oocmeans/internal/centroid"
	"github.com/cwbudde/oocmeans/internal/config"
	"github.com/cwbudde/oocmeans/internal/distance"
	"github.com/cwbudde/oocmeans/internal/sample"
	"github.com/cwbudde/oocmeans/internal/shard"
)

type kmc2Seeder struct{}

// NewKMC2 is the Markov-chain approximation of D² sampling (spec.md §4.D.4):
// for each of the remaining k-1 centroids, a chain of length m is walked
// over m candidates drawn uniformly with replacement.
func NewKMC2() Seeder { return kmc2Seeder{} }

func (kmc2Seeder) Seed(cfg *config.Config, eng *distance.Engine, shards func() (shard.Stream, error)) (centroid.Table, error) {
	d, err := dimOf(shards)
	if err != nil {
		return centroid.Table{}, err
	}
	r := rng(cfg)
	fn := eng.Func()

	m, err := resolveChainLength(cfg, shards)
	if err != nil {
		return centroid.Table{}, err
	}
	if m < 1 {
		m = 1
	}

	first, err := shards()
	if err != nil {
		return centroid.Table{}, err
	}
	c1, err := sample.ReservoirUniform(first, 1, r)
	first.Close()
	if err != nil {
		return centroid.Table{}, err
	}

	centroids := [][]float32{c1[0]}

	for len(centroids) < cfg.K {
		s, err := shards()
		if err != nil {
			return centroid.Table{}, err
		}
		candidates, err := sample.ReservoirUniformWithReplacement(s, m, r)
		s.Close()
		if err != nil {
			return centroid.Table{}, err
		}
		current := centroids
		weightOf := func(row []float32) float64 { return minSqDist(row, current, fn) }
		centroids = append(centroids, walkChain(candidates, weightOf, r))
	}

	return centroid.New(centroids, d)
}

// walkChain runs the Metropolis-style acceptance chain shared by k-mc² and
// the second phase of afk-mc² (spec.md §4.D.4, §4.D.5): starting from
// candidates[0], each subsequent candidate replaces the current point iff
// w(current) == 0 or w(y)/w(current) > u, u ~ Uniform(0,1).
func walkChain(candidates [][]float32, weightOf func(row []float32) float64, r *rand.Rand) []float32 {
	x := candidates[0]
	wx := weightOf(x)
	for i := 1; i < len(candidates); i++ {
		y := candidates[i]
		wy := weightOf(y)
		u := r.Float64()
		if wx == 0 || (wy/wx) > u {
			x, wx = y, wy
		}
	}
	return x
}
