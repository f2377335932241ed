package shard

import "testing"

func TestAssignmentWidthBoundaries(t *testing.T) {
	cases := []struct {
		k    int
		want int
	}{
		{1, 1}, {255, 1},
		{256, 2}, {65535, 2},
		{65536, 4}, {1 << 20, 4},
	}
	for _, c := range cases {
		if got := AssignmentWidth(c.k); got != c.want {
			t.Fatalf("AssignmentWidth(%d) = %d, want %d", c.k, got, c.want)
		}
	}
}

func TestAssignmentsSetAtRoundTrip(t *testing.T) {
	for _, k := range []int{3, 300, 70000} {
		a := NewAssignments(k, 5)
		for i := 0; i < 5; i++ {
			a.Set(i, uint32(i%k))
		}
		for i := 0; i < 5; i++ {
			if got := a.At(i); got != uint32(i%k) {
				t.Fatalf("k=%d: At(%d) = %d, want %d", k, i, got, i%k)
			}
		}
		if a.Width() != AssignmentWidth(k) {
			t.Fatalf("Width() = %d, want %d", a.Width(), AssignmentWidth(k))
		}
	}
}

func TestDecodeAssignmentsLERoundTrip(t *testing.T) {
	// k=300 forces 2-byte width; encode 3 values little-endian by hand and
	// confirm the decoder recovers them.
	buf := []byte{
		0x2A, 0x00, // 42
		0xFF, 0x00, // 255
		0x00, 0x01, // 256
	}
	a := DecodeAssignmentsLE(buf, 300, 3)
	want := []uint32{42, 255, 256}
	for i, w := range want {
		if a.At(i) != w {
			t.Fatalf("At(%d) = %d, want %d", i, a.At(i), w)
		}
	}
}
