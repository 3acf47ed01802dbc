package device

import (
	"fmt"
	"sync"
)

// BufferPool recycles device buffers between multiply calls. Chunked
// dispatches allocate the same handful of sizes over and over; pooling
// them avoids round trips through the driver allocator.
type BufferPool struct {
	alloc    func(size int64) (Buffer, error)
	mu       sync.Mutex
	free     map[int64][]Buffer // rounded size -> idle buffers
	maxBytes int64
	curBytes int64
	stats    PoolStats
}

// PoolStats tracks buffer pool effectiveness.
type PoolStats struct {
	Allocations int64 // total Get calls
	Reuses      int64 // satisfied from the pool
	Evictions   int64 // freed on Put due to memory pressure
}

// NewBufferPool creates a pool on top of a raw allocator. maxBytes caps
// the total idle bytes retained; 0 keeps nothing (pass-through).
func NewBufferPool(alloc func(size int64) (Buffer, error), maxBytes int64) *BufferPool {
	return &BufferPool{
		alloc:    alloc,
		free:     make(map[int64][]Buffer),
		maxBytes: maxBytes,
	}
}

// Get returns an idle buffer of at least size bytes, allocating when the
// pool has none. Buffers are bucketed by power-of-2 size.
func (p *BufferPool) Get(size int64) (Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: invalid buffer size %d", ErrDispatchFailed, size)
	}
	key := roundUpPow2(size)

	p.mu.Lock()
	p.stats.Allocations++
	if bufs := p.free[key]; len(bufs) > 0 {
		buf := bufs[len(bufs)-1]
		p.free[key] = bufs[:len(bufs)-1]
		p.curBytes -= key
		p.stats.Reuses++
		p.mu.Unlock()
		return &pooledBuffer{Buffer: buf, pool: p}, nil
	}
	p.mu.Unlock()

	buf, err := p.alloc(key)
	if err != nil {
		return nil, err
	}
	return &pooledBuffer{Buffer: buf, pool: p}, nil
}

// pooledBuffer returns itself to the pool on Free. The sync.Once keeps a
// double Free from inserting the same buffer twice.
type pooledBuffer struct {
	Buffer
	pool *BufferPool
	once sync.Once
}

func (b *pooledBuffer) Free() error {
	var err error
	b.once.Do(func() {
		err = b.pool.Put(b.Buffer)
	})
	return err
}

// Put returns a buffer to the pool, freeing it instead when retaining it
// would exceed the pool's byte cap.
func (p *BufferPool) Put(buf Buffer) error {
	if buf == nil {
		return nil
	}
	key := roundUpPow2(buf.Size())

	p.mu.Lock()
	if p.maxBytes > 0 && p.curBytes+key > p.maxBytes {
		p.stats.Evictions++
		p.mu.Unlock()
		return buf.Free()
	}
	p.free[key] = append(p.free[key], buf)
	p.curBytes += key
	p.mu.Unlock()
	return nil
}

// Clear frees every idle buffer. Called on device teardown.
func (p *BufferPool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for key, bufs := range p.free {
		for _, buf := range bufs {
			buf.Free()
		}
		delete(p.free, key)
	}
	p.curBytes = 0
}

// Stats returns a snapshot of the pool counters.
func (p *BufferPool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

func roundUpPow2(n int64) int64 {
	if n <= 0 {
		return 1
	}
	p := int64(1)
	for p < n {
		p <<= 1
	}
	return p
}
