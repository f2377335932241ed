package seed

import (
	"github.com/cwbudde/oocmeans/internal/centroid"
	"github.com/cwbudde/oocmeans/internal/config"
	"github.com/cwbudde/oocmeans/internal/distance"
	"github.com/cwbudde/oocmeans/internal/sample"
	"github.com/cwbudde/oocmeans/internal/shard"
	"github.com/cwbudde/oocmeans/internal/xerrors"
)

type kmeansPlusPlusSeeder struct{}

// NewKMeansPlusPlus is D² sampling (spec.md §4.D.2): one full pass per new
// centroid, k passes total, each drawing one row with probability
// proportional to its squared distance to the nearest already-chosen
// centroid.
func NewKMeansPlusPlus() Seeder { return kmeansPlusPlusSeeder{} }

func (kmeansPlusPlusSeeder) Seed(cfg *config.Config, eng *distance.Engine, shards func() (shard.Stream, error)) (centroid.Table, error) {
	d, err := dimOf(shards)
	if err != nil {
		return centroid.Table{}, err
	}
	r := rng(cfg)

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
	fn := eng.Func()

	for len(centroids) < cfg.K {
		s, err := shards()
		if err != nil {
			return centroid.Table{}, err
		}
		current := centroids
		weightFn := func(row sample.Row) float64 { return minSqDist(row, current, fn) }
		drawn, err := sample.ReservoirWeighted(s, 1, weightFn, r)
		s.Close()
		if err != nil {
			return centroid.Table{}, err
		}
		if len(drawn) == 0 {
			return centroid.Table{}, xerrors.New(xerrors.ShapeError, "k-means++: fewer than k rows with positive D² weight")
		}
		centroids = append(centroids, drawn[0])
	}

	return centroid.New(centroids, d)
}
