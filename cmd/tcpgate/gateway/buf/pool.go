package buf

import (
	"sync"
)

const (
	// MinSize is the smallest capacity handed out by Alloc.
	MinSize = 2048

	numPools  = 4
	sizeMulti = 2
)

var (
	poolStu struct {
		once     sync.Once
		pool     [numPools]sync.Pool
		poolSize [numPools]int
	}
)

func createAllocFunc(size int) func() interface{} {
	return func() interface{} {
		return make([]byte, size)
	}
}

func initPool() {
	size := MinSize
	for i := 0; i < numPools; i++ {
		poolStu.pool[i] = sync.Pool{
			New: createAllocFunc(size),
		}
		poolStu.poolSize[i] = size
		size *= sizeMulti
	}
}

// GetPool returns the pool serving slices of at least size bytes, or nil
// when size exceeds the largest tier.
func GetPool(size int) *sync.Pool {
	poolStu.once.Do(initPool)
	for idx, ps := range poolStu.poolSize {
		if size <= ps {
			return &poolStu.pool[idx]
		}
	}
	return nil
}

// Alloc returns a byte slice with len >= size. Minimum length is MinSize.
func Alloc(size int) []byte {
	pool := GetPool(size)
	if pool != nil {
		return pool.Get().([]byte)
	}
	return make([]byte, size)
}

// Free puts a byte slice back into the pool of the largest tier it fits.
func Free(b []byte) {
	poolStu.once.Do(initPool)
	size := cap(b)
	b = b[0:cap(b)]
	for i := numPools - 1; i >= 0; i-- {
		if size == poolStu.poolSize[i] {
			poolStu.pool[i].Put(b) // nolint: staticcheck
			return
		}
	}
}
