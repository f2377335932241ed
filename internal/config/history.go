package config

import (
	"bufio"
	"encoding/json"
	"os"
	"sync"

	"github.com/cwbudde/oocmeans/internal/xerrors"
)

// HistoryEntry is one per-iteration cost record. History is an optional
// feature (spec.md §9: present in earlier source versions, absent from the
// last, "not required by the core"); this repo keeps it as an opt-in JSONL
// log, adapted from the teacher's TraceWriter, since it costs little and the
// file-naming convention in spec.md §6 already reserves history.name.<fmt>
// for it.
type HistoryEntry struct {
	Iteration int     `json:"iteration"`
	Cost      float64 `json:"cost"`
	State     string  `json:"state"`
}

// HistoryWriter appends HistoryEntry records to a JSONL file.
type HistoryWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
}

// NewHistoryWriter creates (or truncates) the history file at path.
func NewHistoryWriter(path string) (*HistoryWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.IoError, "create history file", err)
	}
	return &HistoryWriter{file: f, writer: bufio.NewWriterSize(f, 64*1024)}, nil
}

// Write appends one entry.
func (w *HistoryWriter) Write(entry HistoryEntry) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	data, err := json.Marshal(entry)
	if err != nil {
		return xerrors.Wrap(xerrors.InternalInvariantError, "marshal history entry", err)
	}
	if _, err := w.writer.Write(data); err != nil {
		return xerrors.Wrap(xerrors.IoError, "write history entry", err)
	}
	return w.writer.WriteByte('\n')
}

// Close flushes and closes the history file.
func (w *HistoryWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.writer.Flush(); err != nil {
		w.file.Close()
		return xerrors.Wrap(xerrors.IoError, "flush history writer", err)
	}
	return w.file.Close()
}
