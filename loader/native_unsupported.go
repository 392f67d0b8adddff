//go:build !((linux || darwin || freebsd) && cgo)

package loader

import "fmt"

// NativeLoader is unavailable on this platform; Open always fails.
type NativeLoader struct{}

func (NativeLoader) Open(path string) (Library, error) {
	return nil, fmt.Errorf("open %s: %w", path, ErrUnsupported)
}
