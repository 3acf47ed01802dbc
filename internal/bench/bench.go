// Package bench runs the throughput measurements: for each matrix size
// and method it times repeated multiplications of freshly randomized
// square operands and aggregates compute time, wall time, memory delta,
// and GFlops. The multiplication core makes no assumptions about how this
// harness drives it.
package bench

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"time"

	"github.com/AdrianGrassin/p1DAA/internal/logging"
	"github.com/AdrianGrassin/p1DAA/internal/matrix"
	"github.com/AdrianGrassin/p1DAA/internal/strategy"
)

// Options configures one benchmark run.
type Options struct {
	Sizes      []int
	Iterations int
	Methods    []string
	RandomLo   int32
	RandomHi   int32
	Config     strategy.Config
}

// DefaultOptions mirrors the sizes and iteration count of the original
// measurement campaign.
func DefaultOptions() Options {
	return Options{
		Sizes:      []int{128, 256, 512, 1024},
		Iterations: 5,
		Methods:    strategy.Methods(),
		RandomLo:   0,
		RandomHi:   100,
		Config:     strategy.DefaultConfig(),
	}
}

// Result is the aggregate for one (size, method) cell.
type Result struct {
	Size   int
	Method string

	ComputeMeanMs float64
	ComputeStdMs  float64
	TotalMeanMs   float64
	TotalStdMs    float64
	MemoryMeanMB  float64
	MemoryStdMB   float64
	GFlops        float64
}

// Run executes the benchmark grid. Strategies are constructed once per
// method and reused across sizes so accelerator setup cost is paid once.
func Run(ctx context.Context, opts Options) ([]Result, error) {
	if opts.Iterations <= 0 {
		return nil, fmt.Errorf("bench: iterations must be positive, got %d", opts.Iterations)
	}

	strategies := make(map[string]strategy.Strategy, len(opts.Methods))
	for _, method := range opts.Methods {
		s, err := strategy.NewWithConfig(method, opts.Config)
		if err != nil {
			return nil, err
		}
		strategies[method] = s
		defer s.Close()
	}

	var results []Result
	for _, size := range opts.Sizes {
		for _, method := range opts.Methods {
			res, err := runCell(ctx, strategies[method], method, size, opts)
			if err != nil {
				return results, err
			}
			logging.Infof("bench: size=%d method=%s compute=%.2fms gflops=%.2f",
				size, method, res.ComputeMeanMs, res.GFlops)
			results = append(results, res)
		}
	}
	return results, nil
}

func runCell(ctx context.Context, s strategy.Strategy, method string, size int, opts Options) (Result, error) {
	computeMs := make([]float64, 0, opts.Iterations)
	totalMs := make([]float64, 0, opts.Iterations)
	memMB := make([]float64, 0, opts.Iterations)

	for it := 0; it < opts.Iterations; it++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		totalStart := time.Now()
		a, err := matrix.New(uint32(size), uint32(size))
		if err != nil {
			return Result{}, err
		}
		b, err := matrix.New(uint32(size), uint32(size))
		if err != nil {
			return Result{}, err
		}
		if err := a.FillRandom(opts.RandomLo, opts.RandomHi); err != nil {
			return Result{}, err
		}
		if err := b.FillRandom(opts.RandomLo, opts.RandomHi); err != nil {
			return Result{}, err
		}

		var before runtime.MemStats
		runtime.ReadMemStats(&before)

		computeStart := time.Now()
		if _, err := s.Multiply(ctx, a, b); err != nil {
			return Result{}, fmt.Errorf("bench: %s size %d: %w", method, size, err)
		}
		compute := time.Since(computeStart)

		var after runtime.MemStats
		runtime.ReadMemStats(&after)

		computeMs = append(computeMs, float64(compute.Microseconds())/1000)
		totalMs = append(totalMs, float64(time.Since(totalStart).Microseconds())/1000)
		memMB = append(memMB, float64(after.TotalAlloc-before.TotalAlloc)/(1024*1024))
	}

	computeMean, computeStd := meanStd(computeMs)
	totalMean, totalStd := meanStd(totalMs)
	memMean, memStd := meanStd(memMB)

	res := Result{
		Size:          size,
		Method:        method,
		ComputeMeanMs: computeMean,
		ComputeStdMs:  computeStd,
		TotalMeanMs:   totalMean,
		TotalStdMs:    totalStd,
		MemoryMeanMB:  memMean,
		MemoryStdMB:   memStd,
	}
	if computeMean > 0 {
		// 2*n^3 multiply-adds per square multiply
		res.GFlops = 2 * math.Pow(float64(size), 3) / (computeMean / 1000) / 1e9
	}
	return res, nil
}

func meanStd(samples []float64) (mean, std float64) {
	if len(samples) == 0 {
		return 0, 0
	}
	for _, v := range samples {
		mean += v
	}
	mean /= float64(len(samples))
	if len(samples) < 2 {
		return mean, 0
	}
	var variance float64
	for _, v := range samples {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(samples) - 1)
	return mean, math.Sqrt(variance)
}
