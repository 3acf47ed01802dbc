package strategy

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/AdrianGrassin/p1DAA/internal/device"
	"github.com/AdrianGrassin/p1DAA/internal/logging"
	"github.com/AdrianGrassin/p1DAA/internal/matrix"
)

// Accelerator offloads the multiply to a GPU-class device. One call runs
// the protocol: flatten operands into host words, upload to device
// buffers, enqueue the tiled kernel, sync, read the result back. Inputs
// too big for one dispatch (edge over DeviceMaxDim, or footprint over
// DeviceMemFraction of free device memory) are split at the midpoint of
// the larger output axis and recursed; at most MaxInflightChunks leaf
// dispatches run at once. The device context, queue, and kernels are
// acquired once (usually the process-wide probed device) and persist
// across calls; only per-call buffers come and go.
type Accelerator struct {
	dev     device.Device
	ownsDev bool
	cfg     Config
	sem     chan struct{}

	closeOnce sync.Once
	closeErr  error
}

// NewAccelerator builds the strategy on the process-wide probed device.
// Returns device.ErrUnavailable when no accelerator is present; callers
// are expected to fall back to a CPU strategy on that error.
func NewAccelerator(cfg Config) (*Accelerator, error) {
	dev, err := device.Probe()
	if err != nil {
		return nil, err
	}
	return newAccelerator(dev, false, cfg), nil
}

// NewAcceleratorWithDevice builds the strategy on an explicit device. The
// strategy takes ownership and frees the device on Close.
func NewAcceleratorWithDevice(dev device.Device, cfg Config) *Accelerator {
	return newAccelerator(dev, true, cfg)
}

func newAccelerator(dev device.Device, owns bool, cfg Config) *Accelerator {
	cfg = cfg.withDefaults()
	return &Accelerator{
		dev:     dev,
		ownsDev: owns,
		cfg:     cfg,
		sem:     make(chan struct{}, cfg.MaxInflightChunks),
	}
}

func (s *Accelerator) Name() string { return "accelerator" }

// Device exposes the underlying device, mainly for the devices command.
func (s *Accelerator) Device() device.Device { return s.dev }

func (s *Accelerator) Multiply(ctx context.Context, a, b *matrix.Matrix) (*matrix.Matrix, error) {
	if err := checkDims(a, b); err != nil {
		return nil, err
	}
	out, err := matrix.New(a.Rows(), b.Cols())
	if err != nil {
		return nil, err
	}
	if err := s.multiplyInto(ctx, a, b, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Close releases the device when this strategy owns it. Safe to call more
// than once. The shared probed device belongs to the process and is left
// alone.
func (s *Accelerator) Close() error {
	s.closeOnce.Do(func() {
		if s.ownsDev && s.dev != nil {
			s.closeErr = s.dev.Free()
		}
	})
	return s.closeErr
}

// multiplyInto computes a @ b into out, which already has the right
// shape. Oversized work is halved along the larger output axis and both
// halves recurse concurrently; the result is identical to a single
// unchunked dispatch because the sub-blocks tile the output exactly.
func (s *Accelerator) multiplyInto(ctx context.Context, a, b, out *matrix.Matrix) error {
	m, n := a.Rows(), b.Cols()

	if s.fitsDevice(a, b) || (m <= 1 && n <= 1) {
		return s.dispatchWithRetry(ctx, a, b, out)
	}

	if m >= n {
		// Split A's rows; the output row slabs alias out, so the
		// halves write disjoint regions in place.
		mid := m / 2
		aTop, err := a.RowSlab(0, mid)
		if err != nil {
			return err
		}
		aBot, err := a.RowSlab(mid, m)
		if err != nil {
			return err
		}
		outTop, err := out.RowSlab(0, mid)
		if err != nil {
			return err
		}
		outBot, err := out.RowSlab(mid, m)
		if err != nil {
			return err
		}
		logging.Debugf("accelerator: chunking %dx%d output by rows at %d", m, n, mid)
		return s.runHalves(
			func() error { return s.multiplyInto(ctx, aTop, b, outTop) },
			func() error { return s.multiplyInto(ctx, aBot, b, outBot) },
		)
	}

	// Split B's columns. Column ranges are not contiguous in row-major
	// memory, so the halves compute into scratch matrices that are
	// stitched back column-wise.
	mid := n / 2
	logging.Debugf("accelerator: chunking %dx%d output by columns at %d", m, n, mid)
	var leftOut, rightOut *matrix.Matrix
	err := s.runHalves(
		func() error {
			bLeft, err := colSlab(b, 0, mid)
			if err != nil {
				return err
			}
			leftOut, err = matrix.New(m, mid)
			if err != nil {
				return err
			}
			return s.multiplyInto(ctx, a, bLeft, leftOut)
		},
		func() error {
			bRight, err := colSlab(b, mid, n)
			if err != nil {
				return err
			}
			rightOut, err = matrix.New(m, n-mid)
			if err != nil {
				return err
			}
			return s.multiplyInto(ctx, a, bRight, rightOut)
		},
	)
	if err != nil {
		return err
	}
	stitchCols(out, leftOut, 0)
	stitchCols(out, rightOut, int(mid))
	return nil
}

// runHalves executes both halves of a split concurrently and joins before
// returning. The first error wins; the other half still runs to
// completion so no dispatch is left dangling.
func (s *Accelerator) runHalves(first, second func() error) error {
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	run := func(fn func() error) {
		defer wg.Done()
		if err := fn(); err != nil {
			mu.Lock()
			if firstErr == nil {
				firstErr = err
			}
			mu.Unlock()
		}
	}

	wg.Add(2)
	go run(first)
	go run(second)
	wg.Wait()
	return firstErr
}

// fitsDevice reports whether one dispatch can take the whole input. Only
// the output axes are compared against DeviceMaxDim; the reduction length
// never shrinks under row/column splits and the kernel walks it tile by
// tile regardless.
func (s *Accelerator) fitsDevice(a, b *matrix.Matrix) bool {
	m, k, n := a.Rows(), a.Cols(), b.Cols()
	maxDim := s.cfg.DeviceMaxDim
	if m > maxDim || n > maxDim {
		return false
	}
	footprint := 4 * (int64(m)*int64(k) + int64(k)*int64(n) + int64(m)*int64(n))
	free, _ := s.dev.MemoryUsage()
	if free > 0 && float64(footprint) > s.cfg.DeviceMemFraction*float64(free) {
		return false
	}
	return true
}

// dispatchWithRetry runs one leaf dispatch, retrying transient device
// failures (dispatch errors and timeouts) a bounded number of times with
// growing backoff before surfacing the failure.
func (s *Accelerator) dispatchWithRetry(ctx context.Context, a, b, out *matrix.Matrix) error {
	attempts := 1 + s.cfg.DispatchRetries
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = s.dispatch(ctx, a, b, out)
		if err == nil {
			return nil
		}
		retryable := errors.Is(err, device.ErrDispatchFailed) || errors.Is(err, device.ErrTimeout)
		if !retryable || attempt == attempts {
			break
		}
		backoff := s.cfg.RetryBackoff * time.Duration(attempt)
		logging.Warnf("accelerator: dispatch attempt %d/%d failed, retrying in %s: %v",
			attempt, attempts, backoff, err)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

// dispatch runs the full device protocol for one chunk under the
// in-flight semaphore and a size-scaled deadline. A device call cannot
// be interrupted once enqueued, so on timeout or cancellation dispatch
// waits for it to unblock and for the per-call buffers to be freed
// before the error propagates. Nothing it started outlives the return,
// so a retry never races the previous attempt over the output.
func (s *Accelerator) dispatch(ctx context.Context, a, b, out *matrix.Matrix) error {
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	deadline := s.scaledTimeout(a, b)
	timer := time.NewTimer(deadline)
	defer timer.Stop()

	done := make(chan error, 1)
	go func() {
		defer func() { <-s.sem }()
		done <- s.enqueue(a, b, out)
	}()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		<-done
		return fmt.Errorf("%w: %dx%d dispatch exceeded %s", device.ErrTimeout, a.Rows(), b.Cols(), deadline)
	case <-ctx.Done():
		<-done
		return ctx.Err()
	}
}

// scaledTimeout grows the base dispatch deadline with the output size.
func (s *Accelerator) scaledTimeout(a, b *matrix.Matrix) time.Duration {
	cells := int64(a.Rows()) * int64(b.Cols())
	factor := 1 + cells/(1<<22)
	return s.cfg.DispatchTimeout * time.Duration(factor)
}

// enqueue is the marshal/dispatch/unmarshal protocol for one chunk.
// Per-call device buffers are released on every path; the context, queue,
// and kernels persist on the device.
func (s *Accelerator) enqueue(a, b, out *matrix.Matrix) error {
	m, k, n := a.Rows(), a.Cols(), b.Cols()

	aWords := device.Words(a.Data())
	bWords := device.Words(b.Data())
	cWords := device.Words(out.Data())

	aBuf, err := s.dev.Allocate(aWords.Size())
	if err != nil {
		return err
	}
	defer aBuf.Free()

	bBuf, err := s.dev.Allocate(bWords.Size())
	if err != nil {
		return err
	}
	defer bBuf.Free()

	cBuf, err := s.dev.Allocate(cWords.Size())
	if err != nil {
		return err
	}
	defer cBuf.Free()

	if err := aBuf.CopyFromHost(aWords.Bytes()); err != nil {
		return err
	}
	if err := bBuf.CopyFromHost(bWords.Bytes()); err != nil {
		return err
	}

	if err := s.dev.DispatchMatMul(device.MatMulParams{
		A: aBuf, B: bBuf, C: cBuf,
		M: m, N: n, K: k,
	}); err != nil {
		return err
	}
	if err := s.dev.Sync(); err != nil {
		return err
	}

	return cBuf.CopyToHost(cWords.Bytes())
}

// colSlab copies columns [c0, c1) of m into a fresh matrix.
func colSlab(m *matrix.Matrix, c0, c1 uint32) (*matrix.Matrix, error) {
	if c0 >= c1 || c1 > m.Cols() {
		return nil, fmt.Errorf("%w: column slab [%d,%d) of %d", matrix.ErrInvalidArgument, c0, c1, m.Cols())
	}
	out, err := matrix.New(m.Rows(), c1-c0)
	if err != nil {
		return nil, err
	}
	src, dst := m.Data(), out.Data()
	cols, width := int(m.Cols()), int(c1-c0)
	for r := 0; r < int(m.Rows()); r++ {
		copy(dst[r*width:(r+1)*width], src[r*cols+int(c0):r*cols+int(c1)])
	}
	return out, nil
}

// stitchCols writes part into dst starting at column c0.
func stitchCols(dst, part *matrix.Matrix, c0 int) {
	src, out := part.Data(), dst.Data()
	width, cols := int(part.Cols()), int(dst.Cols())
	for r := 0; r < int(part.Rows()); r++ {
		copy(out[r*cols+c0:r*cols+c0+width], src[r*width:(r+1)*width])
	}
}
