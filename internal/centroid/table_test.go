package centroid

import "testing"

func TestNewRowLengthMismatch(t *testing.T) {
	if _, err := New([][]float32{{1, 2}, {1}}, 2); err == nil {
		t.Fatal("expected ShapeError for mismatched row length")
	}
}

func TestTableRowAndDims(t *testing.T) {
	tbl, err := New([][]float32{{1, 2}, {3, 4}, {5, 6}}, 2)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if tbl.K() != 3 || tbl.D() != 2 {
		t.Fatalf("K/D = %d/%d, want 3/2", tbl.K(), tbl.D())
	}
	if tbl.Row(1)[0] != 3 || tbl.Row(1)[1] != 4 {
		t.Fatalf("Row(1) = %v, want [3 4]", tbl.Row(1))
	}
}

func TestTableEqual(t *testing.T) {
	a, _ := New([][]float32{{1, 2}}, 2)
	b, _ := New([][]float32{{1, 2}}, 2)
	c, _ := New([][]float32{{1, 3}}, 2)
	if !a.Equal(b) {
		t.Fatal("expected equal tables to compare equal")
	}
	if a.Equal(c) {
		t.Fatal("expected differing tables to compare unequal")
	}
}

func TestTableMaxRowL2Change(t *testing.T) {
	a, _ := New([][]float32{{0, 0}, {0, 0}}, 2)
	b, _ := New([][]float32{{3, 4}, {0, 0}}, 2)
	if got := a.MaxRowL2Change(b); got != 5 {
		t.Fatalf("MaxRowL2Change = %v, want 5", got)
	}
}

func TestTableMaxAbs(t *testing.T) {
	tbl, _ := New([][]float32{{-7, 2}, {3, 4}}, 2)
	if got := tbl.MaxAbs(); got != 7 {
		t.Fatalf("MaxAbs = %v, want 7", got)
	}
}

func TestAcquireDeviceNoAcceleratorIsNoop(t *testing.T) {
	tbl, _ := New([][]float32{{1, 2}}, 2)
	h, release, err := AcquireDevice(nil, tbl)
	if err != nil {
		t.Fatalf("AcquireDevice: %v", err)
	}
	defer release()
	if h != nil {
		t.Fatal("expected nil handle when gctx is nil")
	}
}

func TestFromFlatSharesStorage(t *testing.T) {
	flat := []float32{1, 2, 3, 4}
	tbl := FromFlat(flat, 2, 2)
	if tbl.K() != 2 || tbl.D() != 2 {
		t.Fatalf("K/D = %d/%d, want 2/2", tbl.K(), tbl.D())
	}
	if tbl.Row(1)[0] != 3 {
		t.Fatalf("Row(1)[0] = %v, want 3", tbl.Row(1)[0])
	}
}
