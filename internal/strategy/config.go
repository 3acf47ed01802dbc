package strategy

import "time"

// Config carries the tunables shared by the strategies. Zero values are
// replaced by the corresponding Default field, so callers can override
// just the knobs they care about.
type Config struct {
	// BlockSize is the tile edge for the blocked CPU strategy.
	BlockSize int

	// SmallCutoff is the dimension below which the blocked strategy
	// skips tiling and parallelism and runs the plain triple loop.
	SmallCutoff int

	// Workers is the CPU worker count for parallel loops. 0 means
	// runtime.NumCPU().
	Workers int

	// ParallelCutoff is the output-dimension size below which the naive
	// strategies stay single-threaded.
	ParallelCutoff int

	// DeviceMaxDim is the largest matrix edge dispatched to the
	// accelerator in one kernel; bigger inputs are chunked.
	DeviceMaxDim uint32

	// DeviceMemFraction is the share of free device memory one dispatch
	// may claim before chunking kicks in.
	DeviceMemFraction float64

	// MaxInflightChunks bounds concurrently dispatched chunks.
	MaxInflightChunks int

	// DispatchRetries is the number of extra attempts after a failed
	// device dispatch.
	DispatchRetries int

	// RetryBackoff is the base wait between retries; it grows linearly
	// with the attempt number.
	RetryBackoff time.Duration

	// DispatchTimeout is the base deadline for one device dispatch; it
	// is scaled up with the output size.
	DispatchTimeout time.Duration

	// HybridCPUMax is the row count at or below which the hybrid
	// strategy runs entirely on the CPU.
	HybridCPUMax uint32

	// HybridGPUMin is the row count at or above which the hybrid
	// strategy delegates entirely to the accelerator.
	HybridGPUMin uint32
}

// DefaultConfig returns the tuning used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		BlockSize:         64,
		SmallCutoff:       64,
		Workers:           0,
		ParallelCutoff:    64,
		DeviceMaxDim:      8192,
		DeviceMemFraction: 0.75,
		MaxInflightChunks: 2,
		DispatchRetries:   2,
		RetryBackoff:      50 * time.Millisecond,
		DispatchTimeout:   2 * time.Second,
		HybridCPUMax:      128,
		HybridGPUMin:      4096,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.BlockSize <= 0 {
		c.BlockSize = d.BlockSize
	}
	if c.SmallCutoff <= 0 {
		c.SmallCutoff = d.SmallCutoff
	}
	if c.ParallelCutoff <= 0 {
		c.ParallelCutoff = d.ParallelCutoff
	}
	if c.DeviceMaxDim == 0 {
		c.DeviceMaxDim = d.DeviceMaxDim
	}
	if c.DeviceMemFraction <= 0 || c.DeviceMemFraction > 1 {
		c.DeviceMemFraction = d.DeviceMemFraction
	}
	if c.MaxInflightChunks <= 0 {
		c.MaxInflightChunks = d.MaxInflightChunks
	}
	if c.DispatchRetries == 0 {
		c.DispatchRetries = d.DispatchRetries
	} else if c.DispatchRetries < 0 {
		// negative disables retries
		c.DispatchRetries = 0
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = d.RetryBackoff
	}
	if c.DispatchTimeout <= 0 {
		c.DispatchTimeout = d.DispatchTimeout
	}
	if c.HybridCPUMax == 0 {
		c.HybridCPUMax = d.HybridCPUMax
	}
	if c.HybridGPUMin == 0 {
		c.HybridGPUMin = d.HybridGPUMin
	}
	return c
}
