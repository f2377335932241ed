// Package shard implements the out-of-core shard stream: a lazy, restartable
// sequence of column-addressable row blocks read from (or written to) a
// columnar file on disk. This is "the columnar storage library" collaborator
// from spec.md §1, narrowed to the two operations the rest of the module
// needs: open a file as a lazy sequence of shards, and write a lazy sequence
// of shards to a file.
package shard

import (
	"path/filepath"
	"strings"

	"github.com/cwbudde/oocmeans/internal/xerrors"
)

// ReservedAssignments and ReservedQX are the two column names the rest of the
// module never treats as a feature column (spec.md §6).
const (
	ReservedAssignments = "assignments"
	ReservedQX          = "q(x)"
)

// Shard is a row-aligned block of points: one []float32 per selected column,
// all of equal length (the shard's row count). Column order is significant —
// it is the order downstream centroid tables assume.
type Shard struct {
	Columns []string
	Data    [][]float32
}

// Rows reports the shard's row count (0 for an empty shard with no columns).
func (s Shard) Rows() int {
	if len(s.Data) == 0 {
		return 0
	}
	return len(s.Data[0])
}

// Select restricts and reorders a shard to the named columns, tolerating
// column-reordering between centroid files and point files (spec.md §4.A).
func (s Shard) Select(names []string) (Shard, error) {
	out := Shard{Columns: make([]string, len(names)), Data: make([][]float32, len(names))}
	for i, name := range names {
		idx := -1
		for j, c := range s.Columns {
			if c == name {
				idx = j
				break
			}
		}
		if idx < 0 {
			return Shard{}, xerrors.New(xerrors.ShapeError, "column not found: "+name)
		}
		out.Columns[i] = name
		out.Data[i] = s.Data[idx]
	}
	return out, nil
}

// WithColumn returns a copy of the shard with an additional (or replaced)
// column appended — used by afk-mc² seeding to attach "q(x)".
func (s Shard) WithColumn(name string, values []float32) Shard {
	out := Shard{Columns: make([]string, 0, len(s.Columns)+1), Data: make([][]float32, 0, len(s.Data)+1)}
	for i, c := range s.Columns {
		if c == name {
			continue
		}
		out.Columns = append(out.Columns, c)
		out.Data = append(out.Data, s.Data[i])
	}
	out.Columns = append(out.Columns, name)
	out.Data = append(out.Data, values)
	return out
}

// Row materializes the i-th row across all columns (copies, since Shard's
// storage is column-major).
func (s Shard) Row(i int) []float32 {
	row := make([]float32, len(s.Data))
	for c, col := range s.Data {
		row[c] = col[i]
	}
	return row
}

// FeatureColumns returns names with the reserved columns (assignments, q(x))
// removed, preserving order.
func FeatureColumns(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n == ReservedAssignments || n == ReservedQX {
			continue
		}
		out = append(out, n)
	}
	return out
}

// Stream is a restartable pull iterator over a file's shards. Next returns
// (Shard{}, false, nil) at end of stream. Calling Open on the same path again
// must yield a Stream whose Next() calls reproduce the same shards in the
// same order (spec.md §4.A, §5).
type Stream interface {
	Next() (Shard, bool, error)
	Close() error
}

// Format is the per-extension backend: open a file as a Stream, or drain a
// Stream to a file.
type Format interface {
	Open(path string) (Stream, error)
	Write(path string, s Stream) error
}

var registry = map[string]Format{}

func register(ext string, f Format) { registry[ext] = f }

func formatFor(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	f, ok := registry[ext]
	if !ok {
		return nil, xerrors.New(xerrors.FormatError, "unrecognized extension: "+ext)
	}
	return f, nil
}

// Open opens path as a lazy sequence of shards, dispatching on its
// extension (.parquet, .arrow, .arrows, .csv per spec.md §4.A).
func Open(path string) (Stream, error) {
	f, err := formatFor(path)
	if err != nil {
		return nil, err
	}
	return f.Open(path)
}

// Write drains s to path in the format implied by path's extension.
func Write(path string, s Stream) error {
	f, err := formatFor(path)
	if err != nil {
		return err
	}
	return f.Write(path, s)
}

// selectStream applies Select to every shard of an inner stream — the
// column-subset/reorder projection used both by the CLI's --columns flag and
// by seeding, whose shard factories always hand out already-projected
// feature streams.
type selectStream struct {
	inner   Stream
	columns []string
}

// SelectStream wraps s so every shard it yields is first restricted/reordered
// to columns (spec.md §4.A "tolerating column-reordering").
func SelectStream(s Stream, columns []string) Stream {
	return &selectStream{inner: s, columns: columns}
}

func (s *selectStream) Next() (Shard, bool, error) {
	sh, ok, err := s.inner.Next()
	if err != nil || !ok {
		return Shard{}, ok, err
	}
	out, err := sh.Select(s.columns)
	if err != nil {
		return Shard{}, false, err
	}
	return out, true, nil
}

func (s *selectStream) Close() error { return s.inner.Close() }

// Convert opens srcPath and writes it to dstPath. It always writes dstPath:
// when the two paths share an extension the result is a same-format copy,
// not a no-op, and no caller in this module skips the call in that case.
func Convert(srcPath, dstPath string) error {
	s, err := Open(srcPath)
	if err != nil {
		return err
	}
	defer s.Close()
	return Write(dstPath, s)
}
