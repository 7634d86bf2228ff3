package dispatch

import "sync"

// BufferPool reuses write buffers across passes so multi-pass wipes do
// not churn the allocator.
type BufferPool struct {
	pools map[int]*sync.Pool
	mu    sync.RWMutex
}

var globalBufferPool = &BufferPool{
	pools: make(map[int]*sync.Pool),
}

// GetBuffer returns a buffer of exactly size bytes.
func GetBuffer(size int) []byte {
	if size <= 0 {
		return nil
	}
	return globalBufferPool.getBuffer(size)
}

// PutBuffer returns a buffer to the pool, scrubbing it first so pattern
// data never leaks between passes.
func PutBuffer(buf []byte) {
	if len(buf) == 0 {
		return
	}
	globalBufferPool.putBuffer(buf)
}

func (bp *BufferPool) getBuffer(size int) []byte {
	poolSize := bp.poolSize(size)

	bp.mu.RLock()
	pool, exists := bp.pools[poolSize]
	bp.mu.RUnlock()

	if !exists {
		bp.mu.Lock()
		pool, exists = bp.pools[poolSize]
		if !exists {
			pool = &sync.Pool{
				New: func() interface{} {
					return make([]byte, poolSize)
				},
			}
			bp.pools[poolSize] = pool
		}
		bp.mu.Unlock()
	}

	buf := pool.Get().([]byte)
	return buf[:size]
}

func (bp *BufferPool) putBuffer(buf []byte) {
	capacity := cap(buf)
	poolSize := bp.poolSize(capacity)

	bp.mu.RLock()
	pool, exists := bp.pools[poolSize]
	bp.mu.RUnlock()

	if exists {
		buf = buf[:capacity]
		for i := range buf {
			buf[i] = 0
		}
		pool.Put(buf)
	}
}

func (bp *BufferPool) poolSize(size int) int {
	sizes := []int{4096, 65536, 1048576, 4194304, 16777216}
	for _, poolSize := range sizes {
		if size <= poolSize {
			return poolSize
		}
	}
	return ((size + 4095) / 4096) * 4096
}
