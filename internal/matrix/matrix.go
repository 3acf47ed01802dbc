// Package matrix implements the dense row-major int32 matrix shared by
// every multiplication strategy. Element (r,c) lives at data[r*cols+c];
// strategies rely on that layout and must not assume anything else.
package matrix

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrInvalidArgument reports non-positive dimensions or a dimension
	// product that cannot be addressed.
	ErrInvalidArgument = errors.New("matrix: invalid argument")

	// ErrIndexOutOfRange reports an element access outside the matrix bounds.
	ErrIndexOutOfRange = errors.New("matrix: index out of range")
)

// maxElements bounds rows*cols so index arithmetic stays within int range
// on every platform.
const maxElements = math.MaxInt32

// Matrix is a dense row-major matrix of int32 values. The shape is fixed
// at construction; only element values may change afterwards.
type Matrix struct {
	rows uint32
	cols uint32
	data []int32
}

// New allocates a zero-filled matrix of the given shape.
func New(rows, cols uint32) (*Matrix, error) {
	if rows == 0 || cols == 0 {
		return nil, fmt.Errorf("%w: dimensions must be positive, got %dx%d", ErrInvalidArgument, rows, cols)
	}
	if uint64(rows)*uint64(cols) > maxElements {
		return nil, fmt.Errorf("%w: %dx%d exceeds maximum element count", ErrInvalidArgument, rows, cols)
	}
	return &Matrix{
		rows: rows,
		cols: cols,
		data: make([]int32, int(rows)*int(cols)),
	}, nil
}

// FromRows builds a matrix from a rectangular slice of rows. Handy for
// tests and small fixed inputs.
func FromRows(rows [][]int32) (*Matrix, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("%w: empty row set", ErrInvalidArgument)
	}
	cols := len(rows[0])
	m, err := New(uint32(len(rows)), uint32(cols))
	if err != nil {
		return nil, err
	}
	for r, row := range rows {
		if len(row) != cols {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d", ErrInvalidArgument, r, len(row), cols)
		}
		copy(m.data[r*cols:(r+1)*cols], row)
	}
	return m, nil
}

// Rows returns the number of rows.
func (m *Matrix) Rows() uint32 { return m.rows }

// Cols returns the number of columns.
func (m *Matrix) Cols() uint32 { return m.cols }

// Data returns the row-major backing slice. Callers treat it as read-only
// while a multiplication is using the matrix as an operand.
func (m *Matrix) Data() []int32 { return m.data }

// At returns element (r,c). The unsigned comparison catches negative
// indices and overlarge ones in a single test.
func (m *Matrix) At(r, c int) (int32, error) {
	if uint(r) >= uint(m.rows) || uint(c) >= uint(m.cols) {
		return 0, fmt.Errorf("%w: (%d,%d) in %dx%d", ErrIndexOutOfRange, r, c, m.rows, m.cols)
	}
	return m.data[r*int(m.cols)+c], nil
}

// Set stores v at element (r,c) under the same bounds contract as At.
func (m *Matrix) Set(r, c int, v int32) error {
	if uint(r) >= uint(m.rows) || uint(c) >= uint(m.cols) {
		return fmt.Errorf("%w: (%d,%d) in %dx%d", ErrIndexOutOfRange, r, c, m.rows, m.cols)
	}
	m.data[r*int(m.cols)+c] = v
	return nil
}

// RowSlab returns a view over rows [start, end) sharing the backing
// array. It is used to split work by row ranges without copying; callers
// must treat the slab as read-only while the parent is in use elsewhere.
func (m *Matrix) RowSlab(start, end uint32) (*Matrix, error) {
	if start >= end || end > m.rows {
		return nil, fmt.Errorf("%w: slab [%d,%d) of %d rows", ErrInvalidArgument, start, end, m.rows)
	}
	return &Matrix{
		rows: end - start,
		cols: m.cols,
		data: m.data[int(start)*int(m.cols) : int(end)*int(m.cols)],
	}, nil
}

// fillSeed feeds per-chunk generators so concurrent fills do not share a
// stream and repeated fills within one process stay decorrelated.
var fillSeed atomic.Int64

func init() {
	fillSeed.Store(time.Now().UnixNano())
}

// FillRandom fills every element with a pseudo-random value in [lo, hi).
// The buffer is partitioned into contiguous chunks, one goroutine per
// chunk, each chunk with its own generator seeded from a shared counter.
func (m *Matrix) FillRandom(lo, hi int32) error {
	if lo >= hi {
		return fmt.Errorf("%w: random range [%d,%d)", ErrInvalidArgument, lo, hi)
	}
	span := int64(hi) - int64(lo)

	workers := runtime.NumCPU()
	if len(m.data) < 4096 || workers < 2 {
		rng := rand.New(rand.NewSource(fillSeed.Add(1)))
		for i := range m.data {
			m.data[i] = lo + int32(rng.Int63n(span))
		}
		return nil
	}

	chunk := (len(m.data) + workers - 1) / workers
	var wg sync.WaitGroup
	for start := 0; start < len(m.data); start += chunk {
		end := start + chunk
		if end > len(m.data) {
			end = len(m.data)
		}
		wg.Add(1)
		go func(part []int32, seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for i := range part {
				part[i] = lo + int32(rng.Int63n(span))
			}
		}(m.data[start:end], fillSeed.Add(1))
	}
	wg.Wait()
	return nil
}

// Equal reports whether both matrices have the same shape and elements.
func (m *Matrix) Equal(other *Matrix) bool {
	if other == nil || m.rows != other.rows || m.cols != other.cols {
		return false
	}
	for i, v := range m.data {
		if other.data[i] != v {
			return false
		}
	}
	return true
}

// String renders the matrix row by row with fixed-width cells.
func (m *Matrix) String() string {
	width := 1
	for _, v := range m.data {
		if n := len(fmt.Sprintf("%d", v)); n > width {
			width = n
		}
	}

	var sb strings.Builder
	for r := 0; r < int(m.rows); r++ {
		row := m.data[r*int(m.cols) : (r+1)*int(m.cols)]
		for c, v := range row {
			if c > 0 {
				sb.WriteByte(' ')
			}
			fmt.Fprintf(&sb, "%*d", width, v)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
