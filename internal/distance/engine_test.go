package distance

import (
	"testing"

	"github.com/cwbudde/oocmeans/internal/centroid"
	"github.com/cwbudde/oocmeans/internal/shard"
)

func tableOf(t *testing.T, rows [][]float32) centroid.Table {
	t.Helper()
	tbl, err := centroid.New(rows, len(rows[0]))
	if err != nil {
		t.Fatalf("centroid.New: %v", err)
	}
	return tbl
}

func TestGetUnknownKey(t *testing.T) {
	if _, err := Get("does-not-exist"); err == nil {
		t.Fatal("expected ConfigError for unknown distance key")
	}
}

func TestGetKnownKeys(t *testing.T) {
	for _, key := range []string{"euclidean", "manhattan", "cosine", "emd"} {
		if _, err := Get(key); err != nil {
			t.Fatalf("Get(%q): %v", key, err)
		}
	}
}

func TestEngineNearestIndexAgreesWithArgMinDistances(t *testing.T) {
	fn, err := Get("euclidean")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	eng := NewEngine(fn, nil)
	tbl := tableOf(t, [][]float32{{0, 0}, {10, 10}, {5, 5}})

	sh := shard.Shard{Columns: []string{"x", "y"}, Data: [][]float32{{0, 9, 5}, {1, 10, 6}}}

	idx, err := eng.NearestIndex(sh, tbl)
	if err != nil {
		t.Fatalf("NearestIndex: %v", err)
	}
	dists, err := eng.Distances(sh, tbl)
	if err != nil {
		t.Fatalf("Distances: %v", err)
	}
	for i, row := range dists {
		best := 0
		for c := 1; c < len(row); c++ {
			if row[c] < row[best] {
				best = c
			}
		}
		if uint32(best) != idx.At(i) {
			t.Fatalf("row %d: nearest_index %d disagrees with arg_min(distances) %d", i, idx.At(i), best)
		}
	}
}

func TestEngineMinimumDistanceZeroForRowsOnCentroids(t *testing.T) {
	fn, err := Get("euclidean")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	eng := NewEngine(fn, nil)
	tbl := tableOf(t, [][]float32{{0, 0}, {10, 10}})
	sh := shard.Shard{Columns: []string{"x", "y"}, Data: [][]float32{{0, 10}, {0, 10}}}

	mins, err := eng.MinimumDistance(sh, tbl)
	if err != nil {
		t.Fatalf("MinimumDistance: %v", err)
	}
	if mins[0] != 0 || mins[1] != 0 {
		t.Fatalf("MinimumDistance = %v, want [0 0] (each row sits on a centroid)", mins)
	}
}

func TestEngineShapeMismatch(t *testing.T) {
	fn, err := Get("euclidean")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	eng := NewEngine(fn, nil)
	tbl := tableOf(t, [][]float32{{0, 0, 0}})
	sh := shard.Shard{Columns: []string{"x", "y"}, Data: [][]float32{{0}, {0}}}
	if _, err := eng.Distances(sh, tbl); err == nil {
		t.Fatal("expected ShapeError for column-count mismatch")
	}
}

func TestAcquireForPassNoopWithoutAccelerator(t *testing.T) {
	fn, err := Get("euclidean")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	eng := NewEngine(fn, nil)
	tbl := tableOf(t, [][]float32{{0, 0}, {1, 1}})
	h, release, err := eng.AcquireForPass(tbl)
	if err != nil {
		t.Fatalf("AcquireForPass: %v", err)
	}
	defer release()
	if h != nil {
		t.Fatal("expected nil handle without an accelerator")
	}

	sh := shard.Shard{Columns: []string{"x", "y"}, Data: [][]float32{{0}, {0}}}
	idx, err := eng.NearestIndexUsing(h, sh, tbl)
	if err != nil {
		t.Fatalf("NearestIndexUsing: %v", err)
	}
	if idx.At(0) != 0 {
		t.Fatalf("NearestIndexUsing.At(0) = %v, want 0", idx.At(0))
	}
}

func TestEuclideanScalarKnownValue(t *testing.T) {
	fn, err := Get("euclidean")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	d := fn.Scalar([]float32{0, 0}, []float32{3, 4})
	if d != 5 {
		t.Fatalf("euclidean(0,0 -> 3,4) = %v, want 5", d)
	}
}

func TestManhattanScalarKnownValue(t *testing.T) {
	fn, err := Get("manhattan")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	d := fn.Scalar([]float32{0, 0}, []float32{3, 4})
	if d != 7 {
		t.Fatalf("manhattan(0,0 -> 3,4) = %v, want 7", d)
	}
}

func TestCosineScalarIdenticalVectors(t *testing.T) {
	fn, err := Get("cosine")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	d := fn.Scalar([]float32{1, 2, 3}, []float32{1, 2, 3})
	if d > 1e-6 {
		t.Fatalf("cosine distance between identical vectors = %v, want ~0", d)
	}
}
