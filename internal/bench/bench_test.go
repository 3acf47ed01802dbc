package bench

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunSmallGrid(t *testing.T) {
	opts := DefaultOptions()
	opts.Sizes = []int{8, 16}
	opts.Iterations = 2
	opts.Methods = []string{"row", "blocked"}

	results, err := Run(context.Background(), opts)
	require.NoError(t, err)
	require.Len(t, results, 4)

	for _, r := range results {
		assert.Contains(t, opts.Sizes, r.Size)
		assert.Contains(t, opts.Methods, r.Method)
		assert.GreaterOrEqual(t, r.ComputeMeanMs, 0.0)
		assert.GreaterOrEqual(t, r.TotalMeanMs, r.ComputeMeanMs)
	}
}

func TestRunRejectsBadIterations(t *testing.T) {
	opts := DefaultOptions()
	opts.Iterations = 0
	_, err := Run(context.Background(), opts)
	assert.Error(t, err)
}

func TestRunRejectsUnknownMethod(t *testing.T) {
	opts := DefaultOptions()
	opts.Methods = []string{"warp-speed"}
	_, err := Run(context.Background(), opts)
	assert.Error(t, err)
}

func TestWriteCSV(t *testing.T) {
	results := []Result{
		{Size: 128, Method: "row", ComputeMeanMs: 1.5, TotalMeanMs: 2.25, MemoryMeanMB: 0.5, GFlops: 2.796},
		{Size: 128, Method: "blocked", ComputeMeanMs: 0.6, TotalMeanMs: 1.1, MemoryMeanMB: 0.5, GFlops: 6.99},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, results))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, csvHeader, records[0])
	assert.Equal(t, "128", records[1][0])
	assert.Equal(t, "row", records[1][1])
	assert.Equal(t, "1.500", records[1][2])
	assert.Equal(t, "blocked", records[2][1])
}

func TestMeanStd(t *testing.T) {
	mean, std := meanStd([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.InDelta(t, 5.0, mean, 1e-9)
	assert.InDelta(t, 2.138, std, 0.001)

	mean, std = meanStd([]float64{3})
	assert.Equal(t, 3.0, mean)
	assert.Equal(t, 0.0, std)

	mean, std = meanStd(nil)
	assert.Equal(t, 0.0, mean)
	assert.Equal(t, 0.0, std)
}
