package strategy

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/AdrianGrassin/p1DAA/internal/logging"
	"github.com/AdrianGrassin/p1DAA/internal/matrix"
)

// Hybrid splits one multiplication between the accelerator and the CPU.
// Small inputs (rows <= HybridCPUMax) go entirely to the CPU because the
// dispatch overhead dominates; very large ones (rows >= HybridGPUMin) go
// entirely to the accelerator; in between, A's rows are split at the
// midpoint into an accelerator-bound top slab and a CPU-bound bottom
// slab, computed concurrently and stitched by row.
//
// If the accelerator branch fails after its own retries, the whole
// multiplication is re-run on the CPU (partial GPU output is discarded)
// and the accelerator is never used again by this instance.
type Hybrid struct {
	acc *Accelerator
	cpu Strategy
	cfg Config

	accFailed atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// NewHybrid builds the hybrid strategy over an accelerator strategy and a
// CPU strategy. The hybrid owns both and closes them on Close.
func NewHybrid(acc *Accelerator, cpu Strategy, cfg Config) *Hybrid {
	return &Hybrid{acc: acc, cpu: cpu, cfg: cfg.withDefaults()}
}

func (s *Hybrid) Name() string { return "hybrid" }

// AcceleratorFailed reports whether this instance has permanently given
// up on its accelerator.
func (s *Hybrid) AcceleratorFailed() bool { return s.accFailed.Load() }

func (s *Hybrid) Multiply(ctx context.Context, a, b *matrix.Matrix) (*matrix.Matrix, error) {
	if err := checkDims(a, b); err != nil {
		return nil, err
	}
	m := a.Rows()

	if s.accFailed.Load() || m <= s.cfg.HybridCPUMax {
		return s.cpu.Multiply(ctx, a, b)
	}

	if m >= s.cfg.HybridGPUMin {
		out, err := s.acc.Multiply(ctx, a, b)
		if err == nil {
			return out, nil
		}
		return s.failAccelerator(ctx, a, b, err)
	}

	// Split A's rows at the midpoint: top slab to the accelerator,
	// bottom slab to the CPU, both at once. Join before stitching so no
	// partial result leaks when one side finishes early.
	mid := m / 2
	aTop, err := a.RowSlab(0, mid)
	if err != nil {
		return nil, err
	}
	aBot, err := a.RowSlab(mid, m)
	if err != nil {
		return nil, err
	}

	var (
		wg             sync.WaitGroup
		topC, botC     *matrix.Matrix
		accErr, cpuErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		topC, accErr = s.acc.Multiply(ctx, aTop, b)
	}()
	go func() {
		defer wg.Done()
		botC, cpuErr = s.cpu.Multiply(ctx, aBot, b)
	}()
	wg.Wait()

	if accErr != nil {
		return s.failAccelerator(ctx, a, b, accErr)
	}
	if cpuErr != nil {
		return nil, cpuErr
	}

	out, err := matrix.New(m, b.Cols())
	if err != nil {
		return nil, err
	}
	n := int(b.Cols())
	copy(out.Data()[:int(mid)*n], topC.Data())
	copy(out.Data()[int(mid)*n:], botC.Data())
	return out, nil
}

// failAccelerator marks the accelerator dead for this instance and
// re-issues the entire multiplication on the CPU. Re-running the whole
// thing avoids stitching against a half-finished GPU state.
func (s *Hybrid) failAccelerator(ctx context.Context, a, b *matrix.Matrix, cause error) (*matrix.Matrix, error) {
	// Caller cancellation is not a device failure; propagate it as-is.
	if errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded) {
		return nil, cause
	}
	if s.accFailed.CompareAndSwap(false, true) {
		logging.Warnf("hybrid: accelerator disabled for this instance: %v", cause)
	}
	return s.cpu.Multiply(ctx, a, b)
}

// Close closes both underlying strategies. Safe to call more than once.
func (s *Hybrid) Close() error {
	s.closeOnce.Do(func() {
		if err := s.acc.Close(); err != nil {
			s.closeErr = err
		}
		if err := s.cpu.Close(); err != nil && s.closeErr == nil {
			s.closeErr = err
		}
	})
	return s.closeErr
}
