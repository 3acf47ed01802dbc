package strategy

import (
	"context"

	"github.com/AdrianGrassin/p1DAA/internal/matrix"
)

// Blocked is the cache-tiled CPU strategy. The three loop dimensions are
// partitioned into BlockSize tiles so each operand sub-row stays hot in
// cache across a tile's inner iterations, row-block tiles are spread over
// a worker per span, and the innermost reduction accumulates LaneWidth
// products per step with a scalar remainder loop. Inputs below
// SmallCutoff on every side skip all of that and run the plain triple
// loop; tiling overhead costs more than it saves down there.
type Blocked struct {
	cfg Config
}

// NewBlocked creates the blocked CPU strategy.
func NewBlocked(cfg Config) *Blocked {
	return &Blocked{cfg: cfg.withDefaults()}
}

func (s *Blocked) Name() string { return "blocked" }

func (s *Blocked) Multiply(ctx context.Context, a, b *matrix.Matrix) (*matrix.Matrix, error) {
	if err := checkDims(a, b); err != nil {
		return nil, err
	}
	m, k, n := int(a.Rows()), int(a.Cols()), int(b.Cols())
	out, err := matrix.New(a.Rows(), b.Cols())
	if err != nil {
		return nil, err
	}

	aData, bData, cData := a.Data(), b.Data(), out.Data()

	if m <= s.cfg.SmallCutoff && n <= s.cfg.SmallCutoff && k <= s.cfg.SmallCutoff {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		multiplySmall(aData, bData, cData, m, k, n)
		return out, nil
	}

	bs := s.cfg.BlockSize
	blocks := (m + bs - 1) / bs

	// One parallel unit per span of row blocks; each writes a disjoint
	// row range of C.
	err = forRange(ctx, blocks, s.cfg.Workers, func(firstBlock, lastBlock int) {
		for bi := firstBlock; bi < lastBlock; bi++ {
			i0 := bi * bs
			iMax := min(i0+bs, m)
			for j0 := 0; j0 < n; j0 += bs {
				jMax := min(j0+bs, n)
				for k0 := 0; k0 < k; k0 += bs {
					kMax := min(k0+bs, k)
					for i := i0; i < iMax; i++ {
						aRow := aData[i*k : (i+1)*k]
						cRow := cData[i*n : (i+1)*n]
						for j := j0; j < jMax; j++ {
							cRow[j] += dotStrided(aRow, bData, j, n, k0, kMax)
						}
					}
				}
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Blocked) Close() error { return nil }

// multiplySmall is the untiled triple loop used below the size cutoff.
func multiplySmall(aData, bData, cData []int32, m, k, n int) {
	for i := 0; i < m; i++ {
		aRow := aData[i*k : (i+1)*k]
		cRow := cData[i*n : (i+1)*n]
		for j := 0; j < n; j++ {
			var sum int32
			for kk := 0; kk < k; kk++ {
				sum += aRow[kk] * bData[kk*n+j]
			}
			cRow[j] = sum
		}
	}
}

// dotStrided reduces a[k0:kMax] against column j of b (stride n),
// dispatching on the detected lane width.
func dotStrided(aRow, bData []int32, j, n, k0, kMax int) int32 {
	switch laneWidth {
	case 8:
		return dot8(aRow, bData, j, n, k0, kMax)
	case 4:
		return dot4(aRow, bData, j, n, k0, kMax)
	default:
		var sum int32
		for kk := k0; kk < kMax; kk++ {
			sum += aRow[kk] * bData[kk*n+j]
		}
		return sum
	}
}

// dot8 keeps 8 independent accumulators so the compiler can keep the
// multiply-adds in vector registers; the tail falls back to scalar.
// Integer arithmetic makes the split bit-identical to the scalar loop.
func dot8(aRow, bData []int32, j, n, k0, kMax int) int32 {
	var s0, s1, s2, s3, s4, s5, s6, s7 int32
	kk := k0
	for ; kk+8 <= kMax; kk += 8 {
		base := kk*n + j
		s0 += aRow[kk] * bData[base]
		s1 += aRow[kk+1] * bData[base+n]
		s2 += aRow[kk+2] * bData[base+2*n]
		s3 += aRow[kk+3] * bData[base+3*n]
		s4 += aRow[kk+4] * bData[base+4*n]
		s5 += aRow[kk+5] * bData[base+5*n]
		s6 += aRow[kk+6] * bData[base+6*n]
		s7 += aRow[kk+7] * bData[base+7*n]
	}
	sum := s0 + s1 + s2 + s3 + s4 + s5 + s6 + s7
	for ; kk < kMax; kk++ {
		sum += aRow[kk] * bData[kk*n+j]
	}
	return sum
}

// dot4 is the 4-wide variant for NEON/SSE2 class hardware.
func dot4(aRow, bData []int32, j, n, k0, kMax int) int32 {
	var s0, s1, s2, s3 int32
	kk := k0
	for ; kk+4 <= kMax; kk += 4 {
		base := kk*n + j
		s0 += aRow[kk] * bData[base]
		s1 += aRow[kk+1] * bData[base+n]
		s2 += aRow[kk+2] * bData[base+2*n]
		s3 += aRow[kk+3] * bData[base+3*n]
	}
	sum := s0 + s1 + s2 + s3
	for ; kk < kMax; kk++ {
		sum += aRow[kk] * bData[kk*n+j]
	}
	return sum
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
