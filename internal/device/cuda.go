//go:build cuda && linux && cgo

package device

/*
#cgo CFLAGS: -I/opt/cuda/include -I/usr/local/cuda/include
#cgo LDFLAGS: -L/opt/cuda/lib64 -L/usr/local/cuda/lib64 -lcudart -lp1daa_kernels

#include <cuda_runtime.h>
#include <stdlib.h>

// Implemented in kernels/matmul.cu, built by scripts/build_kernels.sh into
// libp1daa_kernels. Enqueues the tiled int32 matmul on the given stream.
extern cudaError_t p1daa_matmul_i32(const int* a, const int* b, int* c,
                                    unsigned m, unsigned n, unsigned k,
                                    cudaStream_t stream);

static const char* cudaErrStr(cudaError_t err) {
    return cudaGetErrorString(err);
}
*/
import "C"

import (
	"fmt"
	"sync"
	"unsafe"
)

// cudaDevice owns the CUDA context, a single command stream, and the
// compiled matmul kernel for its lifetime.
type cudaDevice struct {
	deviceID int
	info     Info
	stream   C.cudaStream_t
	pool     *BufferPool
	freeOnce sync.Once
}

// newAccelerator initializes CUDA device 0. Called once per process via
// the Probe sync.Once.
func newAccelerator() (Device, error) {
	var count C.int
	if err := C.cudaGetDeviceCount(&count); err != C.cudaSuccess {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, C.GoString(C.cudaErrStr(err)))
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: no CUDA devices found", ErrUnavailable)
	}

	const deviceID = 0
	if err := C.cudaSetDevice(C.int(deviceID)); err != C.cudaSuccess {
		return nil, fmt.Errorf("%w: set device %d: %s", ErrUnavailable, deviceID, C.GoString(C.cudaErrStr(err)))
	}

	var props C.struct_cudaDeviceProp
	if err := C.cudaGetDeviceProperties(&props, C.int(deviceID)); err != C.cudaSuccess {
		return nil, fmt.Errorf("%w: device properties: %s", ErrUnavailable, C.GoString(C.cudaErrStr(err)))
	}

	d := &cudaDevice{
		deviceID: deviceID,
		info: Info{
			Vendor:       "NVIDIA",
			Name:         C.GoString(&props.name[0]),
			ComputeUnits: int(props.multiProcessorCount),
			GlobalMemory: int64(props.totalGlobalMem),
		},
	}

	if err := C.cudaStreamCreate(&d.stream); err != C.cudaSuccess {
		return nil, fmt.Errorf("%w: create stream: %s", ErrUnavailable, C.GoString(C.cudaErrStr(err)))
	}

	free, _ := d.MemoryUsage()
	d.pool = NewBufferPool(d.allocateDirect, free/4)

	return d, nil
}

func (d *cudaDevice) Info() Info { return d.info }

func (d *cudaDevice) Allocate(size int64) (Buffer, error) {
	return d.pool.Get(size)
}

func (d *cudaDevice) allocateDirect(size int64) (Buffer, error) {
	var ptr unsafe.Pointer
	if err := C.cudaMalloc(&ptr, C.size_t(size)); err != C.cudaSuccess {
		return nil, fmt.Errorf("%w: cudaMalloc %d bytes: %s", ErrDispatchFailed, size, C.GoString(C.cudaErrStr(err)))
	}
	return &cudaBuffer{ptr: ptr, size: size}, nil
}

func (d *cudaDevice) DispatchMatMul(p MatMulParams) error {
	a, ok := p.A.(*cudaBuffer)
	if !ok {
		return fmt.Errorf("%w: A is not a CUDA buffer", ErrDispatchFailed)
	}
	b, ok := p.B.(*cudaBuffer)
	if !ok {
		return fmt.Errorf("%w: B is not a CUDA buffer", ErrDispatchFailed)
	}
	c, ok := p.C.(*cudaBuffer)
	if !ok {
		return fmt.Errorf("%w: C is not a CUDA buffer", ErrDispatchFailed)
	}

	err := C.p1daa_matmul_i32(
		(*C.int)(a.ptr), (*C.int)(b.ptr), (*C.int)(c.ptr),
		C.uint(p.M), C.uint(p.N), C.uint(p.K), d.stream)
	if err != C.cudaSuccess {
		return fmt.Errorf("%w: matmul launch [%dx%d]@[%dx%d]: %s",
			ErrDispatchFailed, p.M, p.K, p.K, p.N, C.GoString(C.cudaErrStr(err)))
	}
	return nil
}

func (d *cudaDevice) Sync() error {
	if err := C.cudaStreamSynchronize(d.stream); err != C.cudaSuccess {
		return fmt.Errorf("%w: stream sync: %s", ErrDispatchFailed, C.GoString(C.cudaErrStr(err)))
	}
	return nil
}

func (d *cudaDevice) MemoryUsage() (int64, int64) {
	var free, total C.size_t
	if err := C.cudaMemGetInfo(&free, &total); err != C.cudaSuccess {
		return 0, 0
	}
	return int64(free), int64(total)
}

func (d *cudaDevice) Free() error {
	d.freeOnce.Do(func() {
		d.pool.Clear()
		C.cudaStreamDestroy(d.stream)
		C.cudaDeviceReset()
	})
	return nil
}

// cudaBuffer is a device-resident allocation.
type cudaBuffer struct {
	mu   sync.Mutex
	ptr  unsafe.Pointer
	size int64
}

func (b *cudaBuffer) Size() int64 { return b.size }

func (b *cudaBuffer) CopyFromHost(src []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ptr == nil {
		return fmt.Errorf("%w: copy into freed buffer", ErrDispatchFailed)
	}
	if int64(len(src)) > b.size {
		return fmt.Errorf("%w: host data %d exceeds buffer %d", ErrDispatchFailed, len(src), b.size)
	}
	if err := C.cudaMemcpy(b.ptr, unsafe.Pointer(&src[0]), C.size_t(len(src)), C.cudaMemcpyHostToDevice); err != C.cudaSuccess {
		return fmt.Errorf("%w: copy to device: %s", ErrDispatchFailed, C.GoString(C.cudaErrStr(err)))
	}
	return nil
}

func (b *cudaBuffer) CopyToHost(dst []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ptr == nil {
		return fmt.Errorf("%w: copy from freed buffer", ErrDispatchFailed)
	}
	if int64(len(dst)) > b.size {
		return fmt.Errorf("%w: host buffer %d exceeds device buffer %d", ErrDispatchFailed, len(dst), b.size)
	}
	if err := C.cudaMemcpy(unsafe.Pointer(&dst[0]), b.ptr, C.size_t(len(dst)), C.cudaMemcpyDeviceToHost); err != C.cudaSuccess {
		return fmt.Errorf("%w: copy to host: %s", ErrDispatchFailed, C.GoString(C.cudaErrStr(err)))
	}
	return nil
}

func (b *cudaBuffer) Free() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ptr != nil {
		C.cudaFree(b.ptr)
		b.ptr = nil
	}
	return nil
}
