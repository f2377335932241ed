package seed

import (
	"path/filepath"
	"testing"

	"github.com/cwbudde/oocmeans/internal/config"
	"github.com/cwbudde/oocmeans/internal/distance"
	"github.com/cwbudde/oocmeans/internal/shard"
)

// blobs builds three well-separated point clusters as a column-major shard,
// matching spec.md §8 scenario 1 at seeding scale.
func blobs() shard.Shard {
	centers := [][2]float32{{0, 0}, {50, 50}, {-50, 50}}
	var xs, ys []float32
	offsets := []float32{-0.5, -0.2, 0.2, 0.5}
	for _, c := range centers {
		for _, dx := range offsets {
			for _, dy := range offsets {
				xs = append(xs, c[0]+dx)
				ys = append(ys, c[1]+dy)
			}
		}
	}
	return shard.Shard{Columns: []string{"x", "y"}, Data: [][]float32{xs, ys}}
}

func testShardsFactory(sh shard.Shard) func() (shard.Stream, error) {
	return func() (shard.Stream, error) {
		return shard.NewMemStream([]shard.Shard{sh}), nil
	}
}

func testEngine(t *testing.T) *distance.Engine {
	t.Helper()
	fn, err := distance.Get("euclidean")
	if err != nil {
		t.Fatalf("distance.Get: %v", err)
	}
	return distance.NewEngine(fn, nil)
}

func testConfig(t *testing.T, path string, k int, opts ...config.Option) *config.Config {
	t.Helper()
	cfg, err := config.New(path, k, opts...)
	if err != nil {
		t.Fatalf("config.New: %v", err)
	}
	return cfg
}

func TestNaiveSeedReturnsKCentroids(t *testing.T) {
	sh := blobs()
	cfg := testConfig(t, "points.csv", 3, config.WithRandomSeed(1))
	eng := testEngine(t)
	tbl, err := NewNaive().Seed(cfg, eng, testShardsFactory(sh))
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if tbl.K() != 3 || tbl.D() != 2 {
		t.Fatalf("K/D = %d/%d, want 3/2", tbl.K(), tbl.D())
	}
}

func TestNaiveSeedFewerRowsThanK(t *testing.T) {
	sh := shard.Shard{Columns: []string{"x"}, Data: [][]float32{{1, 2}}}
	cfg := testConfig(t, "points.csv", 5, config.WithRandomSeed(1))
	eng := testEngine(t)
	if _, err := NewNaive().Seed(cfg, eng, testShardsFactory(sh)); err == nil {
		t.Fatal("expected ShapeError: fewer rows than k")
	}
}

func TestKMeansPlusPlusProducesUniqueCentroids(t *testing.T) {
	sh := blobs()
	cfg := testConfig(t, "points.csv", 3, config.WithRandomSeed(9))
	eng := testEngine(t)
	tbl, err := NewKMeansPlusPlus().Seed(cfg, eng, testShardsFactory(sh))
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if !uniqueRows(tbl.Rows()) {
		t.Fatalf("k-means++ produced duplicate centroid rows: %v", tbl.Rows())
	}
}

func TestKMeansParallelProducesKCentroids(t *testing.T) {
	sh := blobs()
	cfg := testConfig(t, "points.csv", 3, config.WithRandomSeed(5))
	eng := testEngine(t)
	tbl, err := NewKMeansParallel().Seed(cfg, eng, testShardsFactory(sh))
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if tbl.K() != 3 {
		t.Fatalf("K() = %d, want 3", tbl.K())
	}
}

func TestKMC2ProducesKCentroids(t *testing.T) {
	sh := blobs()
	cfg := testConfig(t, "points.csv", 3, config.WithRandomSeed(2), config.WithChainLength(10))
	eng := testEngine(t)
	tbl, err := NewKMC2().Seed(cfg, eng, testShardsFactory(sh))
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if tbl.K() != 3 || tbl.D() != 2 {
		t.Fatalf("K/D = %d/%d, want 3/2", tbl.K(), tbl.D())
	}
}

func TestResolveChainLengthDefaultsFromActualRowCount(t *testing.T) {
	sh := blobs()
	cfg := testConfig(t, "points.csv", 3, config.WithRandomSeed(1))
	m, err := resolveChainLength(cfg, testShardsFactory(sh))
	if err != nil {
		t.Fatalf("resolveChainLength: %v", err)
	}
	if m < 1 {
		t.Fatalf("resolveChainLength = %d, want >= 1", m)
	}
}

func TestResolveChainLengthHonorsExplicitOverride(t *testing.T) {
	sh := blobs()
	cfg := testConfig(t, "points.csv", 3, config.WithChainLength(7))
	m, err := resolveChainLength(cfg, testShardsFactory(sh))
	if err != nil {
		t.Fatalf("resolveChainLength: %v", err)
	}
	if m != 7 {
		t.Fatalf("resolveChainLength = %d, want 7 (explicit override)", m)
	}
}

func TestAFKMC2ProducesKCentroidsAndPersistsQX(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "points.csv")
	sh := blobs()
	if err := shard.Write(path, shard.NewMemStream([]shard.Shard{sh})); err != nil {
		t.Fatalf("Write fixture: %v", err)
	}

	cfg := testConfig(t, path, 3, config.WithRandomSeed(4), config.WithChainLength(8))
	eng := testEngine(t)
	tbl, err := NewAFKMC2().Seed(cfg, eng, func() (shard.Stream, error) { return shard.Open(path) })
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if tbl.K() != 3 || tbl.D() != 2 {
		t.Fatalf("K/D = %d/%d, want 3/2", tbl.K(), tbl.D())
	}

	qxPath := filepath.Join(dir, "qx.csv")
	s, err := shard.Open(qxPath)
	if err != nil {
		t.Fatalf("afk-mc2 did not persist qx.csv: %v", err)
	}
	defer s.Close()
	shards, err := shard.Collect(s)
	if err != nil {
		t.Fatalf("Collect qx: %v", err)
	}
	rows := 0
	var sum float64
	for _, qsh := range shards {
		if len(qsh.Columns) != 1 || qsh.Columns[0] != shard.ReservedQX {
			t.Fatalf("unexpected qx columns: %v", qsh.Columns)
		}
		rows += qsh.Rows()
		for _, v := range qsh.Data[0] {
			sum += float64(v)
		}
	}
	if rows != sh.Rows() {
		t.Fatalf("qx row count = %d, want %d (aligned 1:1 with points)", rows, sh.Rows())
	}

	// spec.md §8's named testable property for afk-mc²: sum q(x) = 1 ± eps,
	// eps <= 1e-4*n.
	n := float64(sh.Rows())
	eps := 1e-4 * n
	if diff := sum - 1; diff > eps || diff < -eps {
		t.Fatalf("sum q(x) = %v, want 1 +/- %v", sum, eps)
	}
}

func TestUniqueRowsHelper(t *testing.T) {
	if !uniqueRows([][]float32{{1, 2}, {3, 4}}) {
		t.Fatal("uniqueRows false negative")
	}
	if uniqueRows([][]float32{{1, 2}, {1, 2}}) {
		t.Fatal("uniqueRows false positive")
	}
}
