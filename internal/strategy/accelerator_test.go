package strategy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/AdrianGrassin/p1DAA/internal/device"
	"github.com/AdrianGrassin/p1DAA/internal/matrix"
)

func randomPair(t *testing.T, m, k, n uint32) (*matrix.Matrix, *matrix.Matrix) {
	t.Helper()
	a, err := matrix.New(m, k)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	b, err := matrix.New(k, n)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := a.FillRandom(-50, 50); err != nil {
		t.Fatalf("FillRandom failed: %v", err)
	}
	if err := b.FillRandom(-50, 50); err != nil {
		t.Fatalf("FillRandom failed: %v", err)
	}
	return a, b
}

func rowResult(t *testing.T, a, b *matrix.Matrix) *matrix.Matrix {
	t.Helper()
	want, err := NewRow(DefaultConfig()).Multiply(context.Background(), a, b)
	if err != nil {
		t.Fatalf("row baseline failed: %v", err)
	}
	return want
}

func TestAcceleratorChunksOversizedDimension(t *testing.T) {
	dev := &fakeDevice{}
	cfg := DefaultConfig()
	cfg.DeviceMaxDim = 16 // force recursive row and column splits

	acc := NewAcceleratorWithDevice(dev, cfg)
	defer acc.Close()

	a, b := randomPair(t, 40, 24, 33)
	got, err := acc.Multiply(context.Background(), a, b)
	if err != nil {
		t.Fatalf("Multiply failed: %v", err)
	}
	if !got.Equal(rowResult(t, a, b)) {
		t.Error("chunked result differs from unchunked baseline")
	}
	if dev.dispatchCount() < 4 {
		t.Errorf("dispatches = %d, expected chunking to split the work", dev.dispatchCount())
	}
	if dev.peak() > cfg.MaxInflightChunks {
		t.Errorf("peak in-flight dispatches = %d, want <= %d", dev.peak(), cfg.MaxInflightChunks)
	}
}

func TestAcceleratorChunksOnMemoryPressure(t *testing.T) {
	// Free memory only fits a fraction of the 64x64 footprint, so the
	// strategy must subdivide even though the edge is under DeviceMaxDim.
	dev := &fakeDevice{freeMem: 16 * 1024}
	acc := NewAcceleratorWithDevice(dev, DefaultConfig())
	defer acc.Close()

	a, b := randomPair(t, 64, 64, 64)
	got, err := acc.Multiply(context.Background(), a, b)
	if err != nil {
		t.Fatalf("Multiply failed: %v", err)
	}
	if !got.Equal(rowResult(t, a, b)) {
		t.Error("memory-chunked result differs from baseline")
	}
	if dev.dispatchCount() < 2 {
		t.Errorf("dispatches = %d, expected memory pressure to force chunking", dev.dispatchCount())
	}
}

func TestAcceleratorRetriesTransientFailure(t *testing.T) {
	dev := &fakeDevice{failNext: 2}
	cfg := DefaultConfig()
	cfg.RetryBackoff = time.Millisecond

	acc := NewAcceleratorWithDevice(dev, cfg)
	defer acc.Close()

	a, b := randomPair(t, 8, 8, 8)
	got, err := acc.Multiply(context.Background(), a, b)
	if err != nil {
		t.Fatalf("Multiply failed after retries: %v", err)
	}
	if !got.Equal(rowResult(t, a, b)) {
		t.Error("result differs from baseline after retried dispatch")
	}
	if dev.dispatchCount() != 3 {
		t.Errorf("dispatches = %d, want 3 (two failures + one success)", dev.dispatchCount())
	}
}

func TestAcceleratorSurfacesExhaustedRetries(t *testing.T) {
	dev := &fakeDevice{failNext: 100}
	cfg := DefaultConfig()
	cfg.RetryBackoff = time.Millisecond

	acc := NewAcceleratorWithDevice(dev, cfg)
	defer acc.Close()

	a, b := randomPair(t, 8, 8, 8)
	if _, err := acc.Multiply(context.Background(), a, b); !errors.Is(err, device.ErrDispatchFailed) {
		t.Errorf("err = %v, want ErrDispatchFailed", err)
	}
	if dev.dispatchCount() != 1+cfg.DispatchRetries {
		t.Errorf("dispatches = %d, want %d", dev.dispatchCount(), 1+cfg.DispatchRetries)
	}
}

func TestAcceleratorAllocationFailure(t *testing.T) {
	dev := &fakeDevice{failAlloc: true}
	cfg := DefaultConfig()
	cfg.RetryBackoff = time.Millisecond

	acc := NewAcceleratorWithDevice(dev, cfg)
	defer acc.Close()

	a, b := randomPair(t, 8, 8, 8)
	if _, err := acc.Multiply(context.Background(), a, b); !errors.Is(err, device.ErrDispatchFailed) {
		t.Errorf("err = %v, want ErrDispatchFailed", err)
	}
}

func TestAcceleratorTimeout(t *testing.T) {
	dev := &fakeDevice{sleep: 100 * time.Millisecond}
	cfg := DefaultConfig()
	cfg.DispatchTimeout = 5 * time.Millisecond
	cfg.DispatchRetries = -1 // single attempt
	cfg.RetryBackoff = time.Millisecond

	acc := NewAcceleratorWithDevice(dev, cfg)
	defer acc.Close()

	a, b := randomPair(t, 8, 8, 8)
	if _, err := acc.Multiply(context.Background(), a, b); !errors.Is(err, device.ErrTimeout) {
		t.Errorf("err = %v, want ErrTimeout", err)
	}
}

// A timed-out dispatch must be fully joined before the error surfaces:
// no device work still in flight, no abandoned goroutine left to write
// the output while a retry re-dispatches into it.
func TestAcceleratorTimeoutJoinsBeforeReturn(t *testing.T) {
	dev := &fakeDevice{sleep: 30 * time.Millisecond}
	cfg := DefaultConfig()
	cfg.DispatchTimeout = 5 * time.Millisecond
	cfg.RetryBackoff = time.Millisecond

	acc := NewAcceleratorWithDevice(dev, cfg)
	defer acc.Close()

	a, b := randomPair(t, 8, 8, 8)
	if _, err := acc.Multiply(context.Background(), a, b); !errors.Is(err, device.ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if got := dev.inflightNow(); got != 0 {
		t.Errorf("in-flight dispatches after return = %d, want 0", got)
	}
	if dev.peak() > 1 {
		t.Errorf("timed-out attempts overlapped: peak in-flight = %d, want 1", dev.peak())
	}
	if dev.dispatchCount() != 1+cfg.DispatchRetries {
		t.Errorf("dispatches = %d, want %d (every retry waits out its predecessor)",
			dev.dispatchCount(), 1+cfg.DispatchRetries)
	}
}

func TestAcceleratorIdempotentClose(t *testing.T) {
	dev := &fakeDevice{}
	acc := NewAcceleratorWithDevice(dev, DefaultConfig())

	if err := acc.Close(); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}
	if err := acc.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
	if dev.freeCalls != 1 {
		t.Errorf("device freed %d times, want exactly once", dev.freeCalls)
	}
}
