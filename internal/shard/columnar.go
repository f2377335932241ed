//go:build columnar

// Package shard, columnar build: wires the real Apache Arrow/Parquet stack
// (github.com/apache/arrow-go/v18) for .parquet/.arrow/.arrows, the same way
// the teacher's internal/fit/gpu/opencl_runtime_gpu.go wires real OpenCL behind
// the "gpu" build tag instead of a portable stub.
package shard

import (
	"context"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/cwbudde/oocmeans/internal/xerrors"
)

func init() {
	register(".parquet", parquetFormat{})
	register(".arrow", arrowFormat{ipcFile: true})
	register(".arrows", arrowFormat{ipcFile: false})
}

var allocator = memory.NewGoAllocator()

func recordToShard(rec arrow.Record) (Shard, error) {
	sh := Shard{Columns: make([]string, rec.NumCols()), Data: make([][]float32, rec.NumCols())}
	n := int(rec.NumRows())
	for i := 0; i < int(rec.NumCols()); i++ {
		sh.Columns[i] = rec.Schema().Field(i).Name
		col, ok := rec.Column(i).(*array.Float32)
		if !ok {
			return Shard{}, xerrors.New(xerrors.ShapeError, "expected float32 column: "+sh.Columns[i])
		}
		vals := make([]float32, n)
		copy(vals, col.Float32Values())
		sh.Data[i] = vals
	}
	return sh, nil
}

func schemaFor(sh Shard) *arrow.Schema {
	fields := make([]arrow.Field, len(sh.Columns))
	for i, name := range sh.Columns {
		fields[i] = arrow.Field{Name: name, Type: arrow.PrimitiveTypes.Float32}
	}
	return arrow.NewSchema(fields, nil)
}

func shardToRecord(sh Shard) arrow.Record {
	schema := schemaFor(sh)
	cols := make([]arrow.Array, len(sh.Columns))
	for i, data := range sh.Data {
		b := array.NewFloat32Builder(allocator)
		b.AppendValues(data, nil)
		cols[i] = b.NewFloat32Array()
	}
	rec := array.NewRecord(schema, cols, int64(sh.Rows()))
	for _, c := range cols {
		c.Release()
	}
	return rec
}

// --- Arrow IPC (.arrow file format, .arrows stream format) ---

type arrowFormat struct{ ipcFile bool }

type arrowFileStream struct {
	fr  *ipc.FileReader
	i   int
	f   *os.File
}

func (s *arrowFileStream) Next() (Shard, bool, error) {
	if s.i >= s.fr.NumRecords() {
		return Shard{}, false, nil
	}
	rec, err := s.fr.Record(s.i)
	if err != nil {
		return Shard{}, false, xerrors.Wrap(xerrors.FormatError, "read arrow record", err)
	}
	s.i++
	defer rec.Release()
	sh, err := recordToShard(rec)
	return sh, err == nil, err
}

func (s *arrowFileStream) Close() error {
	s.fr.Release()
	return s.f.Close()
}

type arrowIPCStream struct {
	rr ipc.Reader
	f  *os.File
}

func (s *arrowIPCStream) Next() (Shard, bool, error) {
	if !s.rr.Next() {
		return Shard{}, false, s.rr.Err()
	}
	rec := s.rr.Record()
	sh, err := recordToShard(rec)
	return sh, err == nil, err
}

func (s *arrowIPCStream) Close() error { return s.f.Close() }

func (f arrowFormat) Open(path string) (Stream, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.IoError, "open "+path, err)
	}
	if f.ipcFile {
		fr, err := ipc.NewFileReader(fh, ipc.WithAllocator(allocator))
		if err != nil {
			fh.Close()
			return nil, xerrors.Wrap(xerrors.FormatError, "open arrow file: "+path, err)
		}
		return &arrowFileStream{fr: fr, f: fh}, nil
	}
	rr, err := ipc.NewReader(fh, ipc.WithAllocator(allocator))
	if err != nil {
		fh.Close()
		return nil, xerrors.Wrap(xerrors.FormatError, "open arrow stream: "+path, err)
	}
	return &arrowIPCStream{rr: rr, f: fh}, nil
}

func (f arrowFormat) Write(path string, s Stream) error {
	tmp := path + ".tmp"
	fh, err := os.Create(tmp)
	if err != nil {
		return xerrors.Wrap(xerrors.IoError, "create "+tmp, err)
	}

	first, ok, err := s.Next()
	if err != nil {
		fh.Close()
		os.Remove(tmp)
		return err
	}
	if !ok {
		fh.Close()
		os.Remove(tmp)
		return xerrors.New(xerrors.FormatError, "empty shard stream, cannot infer schema")
	}
	schema := schemaFor(first)

	var w interface {
		Write(arrow.Record) error
		Close() error
	}
	if f.ipcFile {
		w, err = ipc.NewFileWriter(fh, ipc.WithSchema(schema), ipc.WithAllocator(allocator))
	} else {
		w = ipc.NewWriter(fh, ipc.WithSchema(schema), ipc.WithAllocator(allocator))
	}
	if err != nil {
		fh.Close()
		os.Remove(tmp)
		return xerrors.Wrap(xerrors.FormatError, "create arrow writer", err)
	}

	writeOne := func(sh Shard) error {
		rec := shardToRecord(sh)
		defer rec.Release()
		return w.Write(rec)
	}
	if err := writeOne(first); err != nil {
		fh.Close()
		os.Remove(tmp)
		return xerrors.Wrap(xerrors.IoError, "write record", err)
	}
	for {
		sh, ok, err := s.Next()
		if err != nil {
			fh.Close()
			os.Remove(tmp)
			return err
		}
		if !ok {
			break
		}
		if err := writeOne(sh); err != nil {
			fh.Close()
			os.Remove(tmp)
			return xerrors.Wrap(xerrors.IoError, "write record", err)
		}
	}
	if err := w.Close(); err != nil {
		fh.Close()
		os.Remove(tmp)
		return xerrors.Wrap(xerrors.IoError, "close arrow writer", err)
	}
	if err := fh.Close(); err != nil {
		os.Remove(tmp)
		return xerrors.Wrap(xerrors.IoError, "close "+tmp, err)
	}
	return os.Rename(tmp, path)
}

// --- Parquet ---

type parquetFormat struct{}

type parquetStream struct {
	fr   *pqarrow.FileReader
	rr   pqarrow.RecordReader
	pr   *file.Reader
}

func (s *parquetStream) Next() (Shard, bool, error) {
	if !s.rr.Next() {
		return Shard{}, false, s.rr.Err()
	}
	rec := s.rr.Record()
	sh, err := recordToShard(rec)
	return sh, err == nil, err
}

func (s *parquetStream) Close() error {
	return s.pr.Close()
}

func (parquetFormat) Open(path string) (Stream, error) {
	pr, err := file.OpenParquetFile(path, false)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.FormatError, "open parquet: "+path, err)
	}
	fr, err := pqarrow.NewFileReader(pr, pqarrow.ArrowReadProperties{}, allocator)
	if err != nil {
		pr.Close()
		return nil, xerrors.Wrap(xerrors.FormatError, "parquet arrow reader: "+path, err)
	}
	rr, err := fr.GetRecordReader(context.Background(), nil, nil)
	if err != nil {
		pr.Close()
		return nil, xerrors.Wrap(xerrors.FormatError, "parquet record reader: "+path, err)
	}
	return &parquetStream{fr: fr, rr: rr, pr: pr}, nil
}

func (parquetFormat) Write(path string, s Stream) error {
	tmp := path + ".tmp"
	fh, err := os.Create(tmp)
	if err != nil {
		return xerrors.Wrap(xerrors.IoError, "create "+tmp, err)
	}

	first, ok, err := s.Next()
	if err != nil {
		fh.Close()
		os.Remove(tmp)
		return err
	}
	if !ok {
		fh.Close()
		os.Remove(tmp)
		return xerrors.New(xerrors.FormatError, "empty shard stream, cannot infer schema")
	}
	schema := schemaFor(first)

	props := parquet.NewWriterProperties(parquet.WithAllocator(allocator))
	w, err := pqarrow.NewFileWriter(schema, fh, props, pqarrow.DefaultWriterProps())
	if err != nil {
		fh.Close()
		os.Remove(tmp)
		return xerrors.Wrap(xerrors.FormatError, "create parquet writer", err)
	}

	writeOne := func(sh Shard) error {
		rec := shardToRecord(sh)
		defer rec.Release()
		return w.Write(rec)
	}
	if err := writeOne(first); err != nil {
		fh.Close()
		os.Remove(tmp)
		return xerrors.Wrap(xerrors.IoError, "write row group", err)
	}
	for {
		sh, ok, err := s.Next()
		if err != nil {
			fh.Close()
			os.Remove(tmp)
			return err
		}
		if !ok {
			break
		}
		if err := writeOne(sh); err != nil {
			fh.Close()
			os.Remove(tmp)
			return xerrors.Wrap(xerrors.IoError, "write row group", err)
		}
	}
	if err := w.Close(); err != nil {
		fh.Close()
		os.Remove(tmp)
		return xerrors.Wrap(xerrors.IoError, "close parquet writer", err)
	}
	if err := fh.Close(); err != nil {
		os.Remove(tmp)
		return xerrors.Wrap(xerrors.IoError, "close "+tmp, err)
	}
	return os.Rename(tmp, path)
}
