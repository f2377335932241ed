package shard

// memStream replays a fixed slice of shards — used for in-memory row
// sequences (the FromRows entry point, spec.md §4.E, §9) and for tests that
// don't want to round-trip through disk.
type memStream struct {
	shards []Shard
	i      int
}

// NewMemStream wraps an already-materialized slice of shards as a Stream.
func NewMemStream(shards []Shard) Stream {
	return &memStream{shards: shards}
}

func (m *memStream) Next() (Shard, bool, error) {
	if m.i >= len(m.shards) {
		return Shard{}, false, nil
	}
	sh := m.shards[m.i]
	m.i++
	return sh, true, nil
}

func (m *memStream) Close() error { return nil }

// Collect drains every shard from s into a slice, for tests and for small
// in-memory streams.
func Collect(s Stream) ([]Shard, error) {
	var out []Shard
	for {
		sh, ok, err := s.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, sh)
	}
}
