// Package device abstracts the accelerator used by the GPU-backed
// multiplication strategies. The real implementation (CUDA) is selected
// with build tags; every other build gets a stub whose probe reports no
// device, which the strategy layer turns into a CPU fallback.
package device

import (
	"errors"
	"sync"

	"github.com/AdrianGrassin/p1DAA/internal/logging"
)

var (
	// ErrUnavailable reports that no accelerator could be initialized.
	ErrUnavailable = errors.New("device: no accelerator available")

	// ErrDispatchFailed reports a buffer allocation, kernel build, or
	// kernel launch failure. Callers may retry a bounded number of times.
	ErrDispatchFailed = errors.New("device: dispatch failed")

	// ErrTimeout reports that a device operation exceeded its deadline.
	ErrTimeout = errors.New("device: operation timed out")
)

// Info describes a discovered accelerator.
type Info struct {
	Vendor       string
	Name         string
	ComputeUnits int
	GlobalMemory int64
}

// Device is a long-lived accelerator handle. It owns the device context,
// command queue, and compiled kernels for its lifetime; per-call buffers
// come and go through Allocate.
type Device interface {
	// Info returns the static device description.
	Info() Info

	// Allocate reserves a device buffer of the given size in bytes.
	Allocate(size int64) (Buffer, error)

	// DispatchMatMul enqueues the tiled int32 matmul kernel on the
	// device queue. It returns once the work is enqueued; call Sync to
	// wait for completion before reading C back.
	DispatchMatMul(p MatMulParams) error

	// Sync blocks until all enqueued work has completed.
	Sync() error

	// MemoryUsage returns current device memory usage in bytes (free, total).
	MemoryUsage() (free, total int64)

	// Free releases the context, queue, and kernels. Safe to call more
	// than once; only the first call does work.
	Free() error
}

// Buffer is a device-resident allocation.
type Buffer interface {
	// Size returns the buffer size in bytes.
	Size() int64

	// CopyFromHost transfers host memory into the buffer.
	CopyFromHost(src []byte) error

	// CopyToHost transfers the buffer into host memory.
	CopyToHost(dst []byte) error

	// Free releases the buffer. Safe to call more than once.
	Free() error
}

// MatMulParams carries one kernel dispatch: C = A @ B with A [M x K],
// B [K x N], C [M x N], all row-major int32.
type MatMulParams struct {
	A, B, C Buffer
	M, N, K uint32
}

// The process probes for an accelerator at most once; every strategy
// reuses the cached handle. Reinitializing a device context mid-run
// wastes device memory and can invalidate outstanding queues.
var (
	probeOnce sync.Once
	probeDev  Device
	probeErr  error
)

// Probe returns the process-wide accelerator, initializing it on first
// call. Subsequent calls return the cached handle or the cached error.
func Probe() (Device, error) {
	probeOnce.Do(func() {
		probeDev, probeErr = newAccelerator()
		if probeErr != nil {
			logging.Debugf("device probe: %v", probeErr)
			return
		}
		info := probeDev.Info()
		logging.Infof("device probe: %s %s (%d compute units, %d MB)",
			info.Vendor, info.Name, info.ComputeUnits, info.GlobalMemory/(1024*1024))
	})
	return probeDev, probeErr
}

// Available reports whether the process-wide probe found an accelerator.
func Available() bool {
	_, err := Probe()
	return err == nil
}
