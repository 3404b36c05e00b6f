package bufpool

import "sync"

// Slice pools for efficient reuse of typed slices across block-pipeline
// workers. These avoid a fresh allocation every time a worker needs a
// scratch cube or a byte-range buffer for one block.
var (
	cubeSlicePool = sync.Pool{
		New: func() any { return &[]float64{} },
	}
	byteSlicePool = sync.Pool{
		New: func() any { return &[]byte{} },
	}
)

// GetCube retrieves and resizes a []float64 scratch buffer sized edge^3,
// the flattened row-major sample cube a codec.Plugin consumes or produces.
//
// The returned slice has length exactly edge*edge*edge. The caller must
// call the returned cleanup function (typically via defer) to return the
// slice to the pool.
func GetCube(edge int) ([]float64, func()) {
	size := edge * edge * edge

	ptr, _ := cubeSlicePool.Get().(*[]float64)
	slice := (*ptr)[:0]

	if cap(slice) < size {
		slice = make([]float64, size)
		*ptr = slice
	} else {
		slice = slice[:size]
		*ptr = slice
	}

	return slice, func() { cubeSlicePool.Put(ptr) }
}

// GetByteSlice retrieves and resizes a []byte scratch buffer of the
// given size. Nothing in this module calls it; archive's chunk decode
// allocates its own scratch buffer.
func GetByteSlice(size int) ([]byte, func()) {
	ptr, _ := byteSlicePool.Get().(*[]byte)
	slice := (*ptr)[:0]

	if cap(slice) < size {
		slice = make([]byte, size)
		*ptr = slice
	} else {
		slice = slice[:size]
		*ptr = slice
	}

	return slice, func() { byteSlicePool.Put(ptr) }
}
