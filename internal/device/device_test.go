package device

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Probe must resolve exactly once per process and hand every caller the
// same outcome, device or not.
func TestProbeIsCached(t *testing.T) {
	dev1, err1 := Probe()
	dev2, err2 := Probe()

	assert.Equal(t, dev1, dev2)
	assert.Equal(t, err1 == nil, err2 == nil)

	if err1 != nil {
		assert.ErrorIs(t, err1, ErrUnavailable)
		assert.False(t, Available())
		return
	}

	require.True(t, Available())
	info := dev1.Info()
	assert.NotEmpty(t, info.Name)
	assert.Greater(t, info.ComputeUnits, 0)
}

func TestHardwareRoundTrip(t *testing.T) {
	dev, err := Probe()
	if err != nil {
		t.Skipf("no accelerator on this machine: %v", err)
	}

	words := []int32{1, -2, 3, -4, 5, -6, 7, -8}
	host := Words(words)

	buf, err := dev.Allocate(host.Size())
	require.NoError(t, err)
	defer buf.Free()

	require.NoError(t, buf.CopyFromHost(host.Bytes()))

	back := make([]int32, len(words))
	require.NoError(t, buf.CopyToHost(Words(back).Bytes()))
	require.NoError(t, dev.Sync())

	assert.Equal(t, words, back)
}

func TestErrorsAreDistinct(t *testing.T) {
	for _, err := range []error{ErrUnavailable, ErrDispatchFailed, ErrTimeout} {
		assert.Error(t, err)
	}
	assert.False(t, errors.Is(ErrDispatchFailed, ErrUnavailable))
	assert.False(t, errors.Is(ErrTimeout, ErrDispatchFailed))
}
