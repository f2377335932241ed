package shard

import (
	"path/filepath"
	"testing"
)

func sampleShards() []Shard {
	return []Shard{
		{
			Columns: []string{"x", "y"},
			Data:    [][]float32{{1, 2, 3}, {4, 5, 6}},
		},
		{
			Columns: []string{"x", "y"},
			Data:    [][]float32{{7}, {8}},
		},
	}
}

func TestShardRowAndRows(t *testing.T) {
	sh := sampleShards()[0]
	if sh.Rows() != 3 {
		t.Fatalf("Rows() = %d, want 3", sh.Rows())
	}
	row := sh.Row(1)
	if row[0] != 2 || row[1] != 5 {
		t.Fatalf("Row(1) = %v, want [2 5]", row)
	}
}

func TestShardSelectReorders(t *testing.T) {
	sh := Shard{Columns: []string{"a", "b", "c"}, Data: [][]float32{{1}, {2}, {3}}}
	out, err := sh.Select([]string{"c", "a"})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if out.Columns[0] != "c" || out.Columns[1] != "a" {
		t.Fatalf("Select did not reorder: %v", out.Columns)
	}
	if out.Data[0][0] != 3 || out.Data[1][0] != 1 {
		t.Fatalf("Select did not carry matching data: %v", out.Data)
	}
}

func TestShardSelectMissingColumn(t *testing.T) {
	sh := Shard{Columns: []string{"a"}, Data: [][]float32{{1}}}
	if _, err := sh.Select([]string{"missing"}); err == nil {
		t.Fatal("expected error for missing column")
	}
}

func TestShardWithColumn(t *testing.T) {
	sh := Shard{Columns: []string{"a"}, Data: [][]float32{{1, 2}}}
	out := sh.WithColumn("b", []float32{3, 4})
	if len(out.Columns) != 2 || out.Columns[1] != "b" {
		t.Fatalf("WithColumn did not append: %v", out.Columns)
	}
	// Replacing an existing column keeps the column count the same.
	out2 := out.WithColumn("a", []float32{9, 9})
	if len(out2.Columns) != 2 {
		t.Fatalf("WithColumn did not replace in place: %v", out2.Columns)
	}
}

func TestFeatureColumnsDropsReserved(t *testing.T) {
	got := FeatureColumns([]string{"x", ReservedAssignments, "y", ReservedQX})
	want := []string{"x", "y"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("FeatureColumns = %v, want %v", got, want)
	}
}

func TestSelectStreamProjectsEveryShard(t *testing.T) {
	s := NewMemStream(sampleShards())
	proj := SelectStream(s, []string{"y"})
	shards, err := Collect(proj)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	for _, sh := range shards {
		if len(sh.Columns) != 1 || sh.Columns[0] != "y" {
			t.Fatalf("shard not projected: %v", sh.Columns)
		}
	}
}

func TestCSVRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "points.csv")
	src := NewMemStream(sampleShards())
	if err := Write(path, src); err != nil {
		t.Fatalf("Write: %v", err)
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	shards, err := Collect(s)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	total := 0
	for _, sh := range shards {
		total += sh.Rows()
	}
	if total != 4 {
		t.Fatalf("round-tripped row count = %d, want 4", total)
	}
}

func TestOpenUnrecognizedExtension(t *testing.T) {
	if _, err := Open("foo.bogus"); err == nil {
		t.Fatal("expected FormatError for unrecognized extension")
	}
}

func TestFingerprintReproducible(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "points.csv")
	if err := Write(path, NewMemStream(sampleShards())); err != nil {
		t.Fatalf("Write: %v", err)
	}

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	d1, err := Fingerprint(s1)
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	d2, err := Fingerprint(s2)
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	s2.Close()

	if d1 != d2 {
		t.Fatalf("Fingerprint not reproducible: %v vs %v", d1, d2)
	}
	if d1.Rows != 4 {
		t.Fatalf("Fingerprint.Rows = %d, want 4", d1.Rows)
	}
}

func TestConvertCSVToCSV(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.csv")
	dst := filepath.Join(dir, "b.csv")
	if err := Write(src, NewMemStream(sampleShards())); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := Convert(src, dst); err != nil {
		t.Fatalf("Convert: %v", err)
	}
	s, err := Open(dst)
	if err != nil {
		t.Fatalf("Open dst: %v", err)
	}
	defer s.Close()
	shards, err := Collect(s)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	total := 0
	for _, sh := range shards {
		total += sh.Rows()
	}
	if total != 4 {
		t.Fatalf("converted row count = %d, want 4", total)
	}
}
