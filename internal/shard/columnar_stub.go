//go:build !columnar

package shard

import "github.com/cwbudde/oocmeans/internal/xerrors"

// Without the columnar build tag, .parquet/.arrow/.arrows are recognized
// extensions that report a clear FormatError instead of silently falling
// through to "unrecognized extension" — the same shape as the teacher's
// renderer_opencl_stub.go reporting ErrBackendUnavailable instead of pretending
// GPU support doesn't exist as a concept.
func init() {
	register(".parquet", unbuiltColumnarFormat{name: "parquet"})
	register(".arrow", unbuiltColumnarFormat{name: "arrow"})
	register(".arrows", unbuiltColumnarFormat{name: "arrow-ipc"})
}

type unbuiltColumnarFormat struct{ name string }

func (f unbuiltColumnarFormat) Open(path string) (Stream, error) {
	return nil, xerrors.New(xerrors.FormatError, f.name+" support requires building with '-tags columnar': "+path)
}

func (f unbuiltColumnarFormat) Write(path string, _ Stream) error {
	return xerrors.New(xerrors.FormatError, f.name+" support requires building with '-tags columnar': "+path)
}
