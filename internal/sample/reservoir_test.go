package sample

import (
	"math/rand"
	"testing"

	"github.com/cwbudde/oocmeans/internal/shard"
)

func rowsStream(n int) shard.Stream {
	col := make([]float32, n)
	for i := range col {
		col[i] = float32(i)
	}
	return shard.NewMemStream([]shard.Shard{{Columns: []string{"x"}, Data: [][]float32{col}}})
}

func TestReservoirUniformSizeInvariant(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	out, err := ReservoirUniform(rowsStream(50), 5, r)
	if err != nil {
		t.Fatalf("ReservoirUniform: %v", err)
	}
	if len(out) != 5 {
		t.Fatalf("len(out) = %d, want 5", len(out))
	}
}

func TestReservoirUniformFewerRowsThanSize(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	out, err := ReservoirUniform(rowsStream(3), 5, r)
	if err != nil {
		t.Fatalf("ReservoirUniform: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("len(out) = %d, want 3 (fewer rows than size)", len(out))
	}
}

func TestReservoirUniformWithReplacementSizeInvariant(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	out, err := ReservoirUniformWithReplacement(rowsStream(50), 8, r)
	if err != nil {
		t.Fatalf("ReservoirUniformWithReplacement: %v", err)
	}
	if len(out) != 8 {
		t.Fatalf("len(out) = %d, want 8", len(out))
	}
	for _, row := range out {
		if row == nil {
			t.Fatal("nil sample slot")
		}
	}
}

func TestReservoirUniformWithReplacementTooFewRows(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	if _, err := ReservoirUniformWithReplacement(rowsStream(0), 3, r); err == nil {
		t.Fatal("expected error drawing from an empty stream")
	}
}

func TestReservoirWeightedOnlyPositiveWeightRowsChosen(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	weightFn := func(row Row) float64 {
		if row[0] == 0 {
			return 0
		}
		return 1
	}
	out, err := ReservoirWeighted(rowsStream(20), 5, weightFn, r)
	if err != nil {
		t.Fatalf("ReservoirWeighted: %v", err)
	}
	if len(out) != 5 {
		t.Fatalf("len(out) = %d, want 5", len(out))
	}
	for _, row := range out {
		if row[0] == 0 {
			t.Fatalf("zero-weight row %v was selected", row)
		}
	}
}

func TestReservoirWeightedSizeCappedByPositiveWeightRows(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	// Only 2 rows ever carry positive weight, so a pool of 5 can only ever
	// hold those 2.
	weightFn := func(row Row) float64 {
		if row[0] == 1 || row[0] == 2 {
			return 1
		}
		return 0
	}
	out, err := ReservoirWeighted(rowsStream(10), 5, weightFn, r)
	if err != nil {
		t.Fatalf("ReservoirWeighted: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("len(out) = %d, want 2", len(out))
	}
}

func TestReservoirUniformDeterministicGivenSeed(t *testing.T) {
	r1 := rand.New(rand.NewSource(42))
	r2 := rand.New(rand.NewSource(42))
	out1, err := ReservoirUniform(rowsStream(30), 4, r1)
	if err != nil {
		t.Fatalf("ReservoirUniform: %v", err)
	}
	out2, err := ReservoirUniform(rowsStream(30), 4, r2)
	if err != nil {
		t.Fatalf("ReservoirUniform: %v", err)
	}
	for i := range out1 {
		if out1[i][0] != out2[i][0] {
			t.Fatalf("same seed produced different draws: %v vs %v", out1, out2)
		}
	}
}
