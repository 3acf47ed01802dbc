package strategy

import (
	"context"

	"github.com/AdrianGrassin/p1DAA/internal/matrix"
)

// Row is the naive row-order triple loop: output rows outermost, then
// output columns, then the reduction. A is read row-contiguously, B
// column-strided. This is the performance baseline the other strategies
// are measured against.
type Row struct {
	cfg Config
}

// NewRow creates the row-order strategy.
func NewRow(cfg Config) *Row {
	return &Row{cfg: cfg.withDefaults()}
}

func (s *Row) Name() string { return "row" }

func (s *Row) Multiply(ctx context.Context, a, b *matrix.Matrix) (*matrix.Matrix, error) {
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
	if m < s.cfg.ParallelCutoff {
		workers = 1
	}
	err = forRange(ctx, m, workers, func(start, end int) {
		for i := start; i < end; i++ {
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
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Row) Close() error { return nil }
