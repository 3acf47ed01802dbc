// Package strategy implements the interchangeable matrix multiplication
// algorithms: naive row- and column-order loops, the cache-blocked SIMD
// CPU path, the accelerator-offloaded path, and the hybrid CPU+GPU split.
// All of them compute the same C = A @ B over row-major int32 matrices;
// they differ only in how they walk memory and where the work runs.
package strategy

import (
	"context"
	"errors"
	"fmt"

	"github.com/AdrianGrassin/p1DAA/internal/matrix"
)

var (
	// ErrDimensionMismatch reports incompatible operand shapes
	// (A.cols != B.rows).
	ErrDimensionMismatch = errors.New("strategy: dimension mismatch")

	// ErrUnknownMethod reports a method key the selector does not know.
	ErrUnknownMethod = errors.New("strategy: unknown method")
)

// Strategy is one multiplication algorithm. Operands are read-only for
// the duration of Multiply; the result is exclusively owned by the caller
// once returned. Close releases long-lived resources (device handles) and
// is safe to call more than once.
type Strategy interface {
	Name() string
	Multiply(ctx context.Context, a, b *matrix.Matrix) (*matrix.Matrix, error)
	Close() error
}

// checkDims validates the multiply contract A [m x k] @ B [k x n].
func checkDims(a, b *matrix.Matrix) error {
	if a.Cols() != b.Rows() {
		return fmt.Errorf("%w: [%dx%d] @ [%dx%d]",
			ErrDimensionMismatch, a.Rows(), a.Cols(), b.Rows(), b.Cols())
	}
	return nil
}
