package strategy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AdrianGrassin/p1DAA/internal/device"
	"github.com/AdrianGrassin/p1DAA/internal/matrix"
)

func TestSelectorKnownKeys(t *testing.T) {
	cases := []struct {
		key  string
		name string
	}{
		{"row", "row"},
		{"column", "column"},
		{"col", "column"},
		{"blocked", "blocked"},
		{"cpu", "blocked"},
		{"BLOCKED", "blocked"},
		{" row ", "row"},
	}
	for _, tc := range cases {
		s, err := New(tc.key)
		require.NoError(t, err, "key %q", tc.key)
		assert.Equal(t, tc.name, s.Name(), "key %q", tc.key)
		require.NoError(t, s.Close())
	}
}

func TestSelectorUnknownKey(t *testing.T) {
	for _, key := range []string{"", "fast", "gibberish"} {
		_, err := New(key)
		assert.ErrorIs(t, err, ErrUnknownMethod, "key %q", key)
	}
}

// TestSelectorAcceleratorFallback: without a device the accelerator and
// hybrid keys must quietly hand back a working CPU strategy rather than
// fail.
func TestSelectorAcceleratorFallback(t *testing.T) {
	for _, key := range []string{"accelerator", "gpu", "hybrid"} {
		s, err := New(key)
		require.NoError(t, err, "key %q", key)

		if device.Available() {
			// A real device is present on this machine; the key
			// resolves to its accelerator-backed strategy.
			assert.NotEqual(t, "blocked", s.Name(), "key %q", key)
		} else {
			assert.Equal(t, "blocked", s.Name(), "key %q with no device", key)
		}
		require.NoError(t, s.Close())
	}
}

func TestSelectorMultiply(t *testing.T) {
	a, err := matrix.FromRows([][]int32{{1, 2}, {3, 4}})
	require.NoError(t, err)
	b, err := matrix.FromRows([][]int32{{5, 6}, {7, 8}})
	require.NoError(t, err)

	for _, key := range Methods() {
		c, err := Multiply(context.Background(), key, a, b)
		require.NoError(t, err, "method %q", key)

		want, err := matrix.FromRows([][]int32{{19, 22}, {43, 50}})
		require.NoError(t, err)
		assert.True(t, c.Equal(want), "method %q result mismatch", key)
	}
}
