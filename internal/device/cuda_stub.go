//go:build !cuda || !linux || !cgo

package device

import "fmt"

// newAccelerator reports no device on builds without CUDA support. The
// strategy selector treats this exactly like an absent GPU and falls
// back to CPU strategies.
func newAccelerator() (Device, error) {
	return nil, fmt.Errorf("%w: built without CUDA support (build with -tags cuda on Linux)", ErrUnavailable)
}
