package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWordsSharesMemory(t *testing.T) {
	words := []int32{1, 2, 3}
	h := Words(words)

	assert.Equal(t, int64(12), h.Size())
	assert.Len(t, h.Bytes(), 12)

	// Writing through the byte view must be visible in the words: the
	// two views alias the same allocation.
	b := h.Bytes()
	for i := range b {
		b[i] = 0
	}
	assert.Equal(t, []int32{0, 0, 0}, words)
}

func TestWordsEmpty(t *testing.T) {
	h := Words(nil)
	assert.Nil(t, h.Bytes())
	assert.Equal(t, int64(0), h.Size())
}
