package config

import "testing"

func TestNewRejectsSmallK(t *testing.T) {
	if _, err := New("points.csv", 1); err == nil {
		t.Fatal("expected ConfigError for k < 2")
	}
}

func TestNewRejectsUnknownDistance(t *testing.T) {
	if _, err := New("points.csv", 3, WithDistance("bogus")); err == nil {
		t.Fatal("expected error for unknown distance key")
	}
}

func TestNewRejectsUnknownSeeder(t *testing.T) {
	if _, err := New("points.csv", 3, WithSeeder("bogus")); err == nil {
		t.Fatal("expected error for unknown seeder key")
	}
}

func TestNewDefaults(t *testing.T) {
	cfg, err := New("points.parquet", 4)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if cfg.Seeder != DefaultSeeder || cfg.Distance != DefaultDistance {
		t.Fatalf("defaults not applied: seeder=%s distance=%s", cfg.Seeder, cfg.Distance)
	}
	if cfg.Format != "parquet" {
		t.Fatalf("Format = %s, want parquet (from extension)", cfg.Format)
	}
	if cfg.IterationCap != DefaultIterationCap {
		t.Fatalf("IterationCap = %d, want %d", cfg.IterationCap, DefaultIterationCap)
	}
}

func TestNewFormatDefaultsWhenExtensionMissing(t *testing.T) {
	cfg, err := New("points", 2)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if cfg.Format != DefaultFormat {
		t.Fatalf("Format = %s, want default %s", cfg.Format, DefaultFormat)
	}
}

func TestWithColumnsCopiesSlice(t *testing.T) {
	cols := []string{"a", "b"}
	cfg, err := New("points.csv", 2, WithColumns(cols))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	cols[0] = "mutated"
	if cfg.Columns[0] != "a" {
		t.Fatalf("WithColumns aliased caller's slice: %v", cfg.Columns)
	}
}

func TestWithAcceleratorOverridesDefault(t *testing.T) {
	cfg, err := New("points.csv", 2, WithDistance("cosine"), WithAccelerator(true))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// cosine has no kernel, so the computed default would be false; the
	// explicit override must still win.
	if !cfg.UseAccelerator {
		t.Fatal("WithAccelerator(true) did not override the computed default")
	}
}

func TestChainLengthDefaultedFromNHat(t *testing.T) {
	cfg, err := New("points.csv", 4, WithNHat(1000))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if cfg.ChainLength <= 0 {
		t.Fatalf("ChainLength = %d, want > 0 once n_hat is set", cfg.ChainLength)
	}
}

func TestDefaultChainLengthClampedToNHat(t *testing.T) {
	m := DefaultChainLength(1000, 5)
	if m >= 5 {
		t.Fatalf("DefaultChainLength = %d, want < n_hat (5)", m)
	}
	if m < 1 {
		t.Fatalf("DefaultChainLength = %d, want >= 1", m)
	}
}

func TestClusterResultRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFSStore(dir)
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}
	cfg, err := New("points.csv", 2)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	cr := NewClusterResult([][]float32{{0, 0}, {1, 1}}, 4.5, *cfg)
	if cr.RunID == "" {
		t.Fatal("NewClusterResult did not stamp a RunID")
	}
	if err := store.Save("run1", cr); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := store.Load("run1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.RunID != cr.RunID || loaded.Cost != cr.Cost || len(loaded.Centroids) != 2 {
		t.Fatalf("loaded result does not match saved result: %+v vs %+v", loaded, cr)
	}
}

func TestLoadMissingResultReturnsNotFound(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFSStore(dir)
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}
	_, err = store.Load("nope")
	if _, ok := err.(*NotFoundError); !ok {
		t.Fatalf("Load missing result: got %v, want *NotFoundError", err)
	}
}

func TestClusterResultValidateRejectsKMismatch(t *testing.T) {
	cfg, err := New("points.csv", 3)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	cr := NewClusterResult([][]float32{{0, 0}, {1, 1}}, 1.0, *cfg)
	if err := cr.Validate(); err == nil {
		t.Fatal("expected validation error: K=3 but only 2 centroid rows")
	}
}
