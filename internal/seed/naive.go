package seed

import (
	"log/slog"

	"github.com/cwbudde/oocmeans/internal/centroid"
	"github.com/cwbudde/oocmeans/internal/config"
	"github.com/cwbudde/oocmeans/internal/distance"
	"github.com/cwbudde/oocmeans/internal/sample"
	"github.com/cwbudde/oocmeans/internal/shard"
	"github.com/cwbudde/oocmeans/internal/xerrors"
)

type naiveSeeder struct{}

// NewNaive is the uniform-without-weighting reservoir baseline (spec.md
// §4.D.1): one pass, O(k·d) memory, no quality guarantees. Also the seed for
// k-means|| (spec.md §4.D.3).
func NewNaive() Seeder { return naiveSeeder{} }

func (naiveSeeder) Seed(cfg *config.Config, eng *distance.Engine, shards func() (shard.Stream, error)) (centroid.Table, error) {
	s, err := shards()
	if err != nil {
		return centroid.Table{}, err
	}
	defer s.Close()

	d, err := dimOf(shards)
	if err != nil {
		return centroid.Table{}, err
	}

	rows, err := sample.ReservoirUniform(s, cfg.K, rng(cfg))
	if err != nil {
		return centroid.Table{}, err
	}
	if len(rows) < cfg.K {
		return centroid.Table{}, xerrors.New(xerrors.ShapeError, "fewer rows than k available for naive seeding")
	}
	if !uniqueRows(rows) {
		// naive is the one seeder spec.md §8 allows to fail uniqueness; it
		// must report it, not silently proceed.
		slog.Warn("naive seeding produced duplicate centroid rows", "k", cfg.K)
	}
	return centroid.New(rows, d)
}
