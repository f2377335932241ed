package shard

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/cwbudde/oocmeans/internal/xerrors"
)

// csvShardRows bounds how many rows one CSV shard holds in memory at a time,
// keeping the CSV backend out-of-core the same way a real Parquet/Arrow
// reader chunks row groups/record batches.
const csvShardRows = 8192

func init() { register(".csv", csvFormat{}) }

type csvFormat struct{}

func (csvFormat) Open(path string) (Stream, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, xerrors.Wrap(xerrors.IoError, "open "+path, err)
		}
		return nil, xerrors.Wrap(xerrors.IoError, "open "+path, err)
	}
	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		f.Close()
		if err == io.EOF {
			return nil, xerrors.New(xerrors.FormatError, "empty csv: "+path)
		}
		return nil, xerrors.Wrap(xerrors.FormatError, "read header: "+path, err)
	}
	return &csvStream{f: f, r: r, header: header}, nil
}

func (csvFormat) Write(path string, s Stream) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return xerrors.Wrap(xerrors.IoError, "create "+tmp, err)
	}
	w := csv.NewWriter(f)

	wroteHeader := false
	row := []string{}
	for {
		sh, ok, err := s.Next()
		if err != nil {
			f.Close()
			os.Remove(tmp)
			return err
		}
		if !ok {
			break
		}
		if !wroteHeader {
			if err := w.Write(sh.Columns); err != nil {
				f.Close()
				os.Remove(tmp)
				return xerrors.Wrap(xerrors.IoError, "write header", err)
			}
			wroteHeader = true
		}
		n := sh.Rows()
		if cap(row) < len(sh.Columns) {
			row = make([]string, len(sh.Columns))
		}
		row = row[:len(sh.Columns)]
		for i := 0; i < n; i++ {
			for c := range sh.Columns {
				row[c] = strconv.FormatFloat(float64(sh.Data[c][i]), 'g', -1, 32)
			}
			if err := w.Write(row); err != nil {
				f.Close()
				os.Remove(tmp)
				return xerrors.Wrap(xerrors.IoError, "write row", err)
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		os.Remove(tmp)
		return xerrors.Wrap(xerrors.IoError, "flush csv", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return xerrors.Wrap(xerrors.IoError, "close "+tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return xerrors.Wrap(xerrors.IoError, "rename into place", err)
	}
	return nil
}

type csvStream struct {
	f      *os.File
	r      *csv.Reader
	header []string
	done   bool
}

func (s *csvStream) Next() (Shard, bool, error) {
	if s.done {
		return Shard{}, false, nil
	}
	cols := make([][]float32, len(s.header))
	for i := range cols {
		cols[i] = make([]float32, 0, csvShardRows)
	}
	read := 0
	for read < csvShardRows {
		rec, err := s.r.Read()
		if err == io.EOF {
			s.done = true
			break
		}
		if err != nil {
			return Shard{}, false, xerrors.Wrap(xerrors.IoError, "read csv row", err)
		}
		if len(rec) != len(s.header) {
			return Shard{}, false, xerrors.New(xerrors.ShapeError, "row/header column count mismatch")
		}
		for i, v := range rec {
			f, err := strconv.ParseFloat(v, 32)
			if err != nil {
				return Shard{}, false, xerrors.Wrap(xerrors.ShapeError, "parse cell", err)
			}
			cols[i] = append(cols[i], float32(f))
		}
		read++
	}
	if read == 0 {
		return Shard{}, false, nil
	}
	return Shard{Columns: append([]string{}, s.header...), Data: cols}, true, nil
}

func (s *csvStream) Close() error {
	return s.f.Close()
}
