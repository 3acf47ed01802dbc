package device

import "unsafe"

// HostWords is the host side of a transfer. It owns the reinterpretation
// of an int32 slice as raw bytes so that no pointer tricks leak outside
// this package. The backing slice is referenced, not copied; it must stay
// alive (and unmodified, for uploads) until the transfer's Sync completes.
// cgo pins the memory for the duration of each copy call.
type HostWords struct {
	words []int32
}

// Words wraps an int32 slice for transfer to or from a device buffer.
func Words(w []int32) HostWords {
	return HostWords{words: w}
}

// Bytes exposes the words as a byte slice sharing the same memory.
func (h HostWords) Bytes() []byte {
	if len(h.words) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&h.words[0])), len(h.words)*4)
}

// Size returns the transfer size in bytes.
func (h HostWords) Size() int64 {
	return int64(len(h.words)) * 4
}
