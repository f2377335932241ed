//go:build !gpu

package gpu

import "fmt"

// BuildLogError carries an OpenCL kernel build log (spec.md §4.C). Without
// the gpu tag no build is ever attempted, but the type is kept so it exists
// under both build configurations.
type BuildLogError struct {
	Log string
	Err error
}

func (e *BuildLogError) Error() string { return fmt.Sprintf("%v\nbuild log:\n%s", e.Err, e.Log) }
func (e *BuildLogError) Unwrap() error { return e.Err }

// Context is a placeholder when GPU support is not compiled in.
type Context struct{}

// NewContext always fails without the gpu tag.
func NewContext(rt *Runtime, distanceFuncBody string, dims, k int) (*Context, error) {
	return nil, ErrNotBuilt
}

func (c *Context) Dims() int       { return 0 }
func (c *Context) Close()          {}
func (c *Context) IndexWidth() int { return 0 }

// DeviceBuffer is a placeholder when GPU support is not compiled in.
type DeviceBuffer struct{}

func (c *Context) UploadCentroids(flat []float32, k, d int) (*DeviceBuffer, error) {
	return nil, ErrNotBuilt
}

func ReleaseBuffer(b *DeviceBuffer) {}

func (c *Context) Distances(points []float32, n int, centroids *DeviceBuffer) ([]float32, error) {
	return nil, ErrNotBuilt
}

func (c *Context) NearestIndex(points []float32, n int, centroids *DeviceBuffer) ([]byte, error) {
	return nil, ErrNotBuilt
}
