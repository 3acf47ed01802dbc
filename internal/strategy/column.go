package strategy

import (
	"context"

	"github.com/AdrianGrassin/p1DAA/internal/matrix"
)

// Column is the naive column-order triple loop: output columns outermost,
// then rows, then the reduction. Under the row-major layout this walks A
// row-strided per inner step and writes C column-strided, which is the
// cache-hostile pattern the benchmark exists to measure. Do not "fix" the
// loop order: the asymmetry against Row is the point of the comparison.
type Column struct {
	cfg Config
}

// NewColumn creates the column-order strategy.
func NewColumn(cfg Config) *Column {
	return &Column{cfg: cfg.withDefaults()}
}

func (s *Column) Name() string { return "column" }

func (s *Column) Multiply(ctx context.Context, a, b *matrix.Matrix) (*matrix.Matrix, error) {
	if err := checkDims(a, b); err != nil {
		return nil, err
	}
	m, k, n := int(a.Rows()), int(a.Cols()), int(b.Cols())
	out, err := matrix.New(a.Rows(), b.Cols())
	if err != nil {
		return nil, err
	}

	aData, bData, cData := a.Data(), b.Data(), out.Data()

	workers := s.cfg.Workers
	if n < s.cfg.ParallelCutoff {
		workers = 1
	}
	// Parallel units own disjoint column ranges of C.
	err = forRange(ctx, n, workers, func(start, end int) {
		for j := start; j < end; j++ {
			for i := 0; i < m; i++ {
				var sum int32
				for kk := 0; kk < k; kk++ {
					sum += aData[i*k+kk] * bData[kk*n+j]
				}
				cData[i*n+j] = sum
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Column) Close() error { return nil }
