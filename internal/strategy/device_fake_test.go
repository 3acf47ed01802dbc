package strategy

import (
	"fmt"
	"sync"
	"time"
	"unsafe"

	"github.com/AdrianGrassin/p1DAA/internal/device"
)

// fakeDevice implements device.Device on the host so the accelerator
// protocol (marshal, chunking, retry, timeout, disposal) can be exercised
// on any machine. Failure knobs inject the transient errors the strategy
// must survive.
type fakeDevice struct {
	mu           sync.Mutex
	dispatches   int
	inflight     int
	peakInflight int
	failNext     int           // fail this many dispatches before succeeding
	failAlloc    bool          // fail every allocation
	sleep        time.Duration // stall each dispatch
	freeCalls    int
	freeMem      int64 // reported free memory; 0 disables the memory check
}

func (d *fakeDevice) Info() device.Info {
	return device.Info{Vendor: "Acme", Name: "FakeAccel 9000", ComputeUnits: 16, GlobalMemory: 1 << 30}
}

func (d *fakeDevice) Allocate(size int64) (device.Buffer, error) {
	d.mu.Lock()
	fail := d.failAlloc
	d.mu.Unlock()
	if fail {
		return nil, fmt.Errorf("%w: fake allocation failure", device.ErrDispatchFailed)
	}
	return &fakeBuffer{data: make([]byte, size)}, nil
}

func (d *fakeDevice) DispatchMatMul(p device.MatMulParams) error {
	d.mu.Lock()
	d.dispatches++
	d.inflight++
	if d.inflight > d.peakInflight {
		d.peakInflight = d.inflight
	}
	shouldFail := d.failNext > 0
	if shouldFail {
		d.failNext--
	}
	sleep := d.sleep
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.inflight--
		d.mu.Unlock()
	}()

	if sleep > 0 {
		time.Sleep(sleep)
	}
	if shouldFail {
		return fmt.Errorf("%w: injected dispatch failure", device.ErrDispatchFailed)
	}

	a := wordsOf(p.A.(*fakeBuffer).data)
	b := wordsOf(p.B.(*fakeBuffer).data)
	c := wordsOf(p.C.(*fakeBuffer).data)
	m, n, k := int(p.M), int(p.N), int(p.K)
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			var sum int32
			for kk := 0; kk < k; kk++ {
				sum += a[i*k+kk] * b[kk*n+j]
			}
			c[i*n+j] = sum
		}
	}
	return nil
}

func (d *fakeDevice) Sync() error { return nil }

func (d *fakeDevice) MemoryUsage() (int64, int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.freeMem, 2 * d.freeMem
}

func (d *fakeDevice) Free() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.freeCalls++
	return nil
}

func (d *fakeDevice) dispatchCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dispatches
}

func (d *fakeDevice) peak() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.peakInflight
}

func (d *fakeDevice) inflightNow() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.inflight
}

type fakeBuffer struct {
	data []byte
}

func (b *fakeBuffer) Size() int64 { return int64(len(b.data)) }

func (b *fakeBuffer) CopyFromHost(src []byte) error {
	if len(src) > len(b.data) {
		return fmt.Errorf("%w: host data %d exceeds buffer %d", device.ErrDispatchFailed, len(src), len(b.data))
	}
	copy(b.data, src)
	return nil
}

func (b *fakeBuffer) CopyToHost(dst []byte) error {
	if len(dst) > len(b.data) {
		return fmt.Errorf("%w: host buffer %d exceeds buffer %d", device.ErrDispatchFailed, len(dst), len(b.data))
	}
	copy(dst, b.data[:len(dst)])
	return nil
}

func (b *fakeBuffer) Free() error { return nil }

// wordsOf reinterprets a byte buffer as int32 words, matching the
// device.Words marshaling on the strategy side.
func wordsOf(data []byte) []int32 {
	if len(data) == 0 {
		return nil
	}
	return unsafe.Slice((*int32)(unsafe.Pointer(&data[0])), len(data)/4)
}
