//go:build !gpu

package device

// NewOpenCL returns ErrNotBuilt when OpenCL support is not compiled in.
func NewOpenCL() (API, error) {
	return nil, ErrNotBuilt
}
