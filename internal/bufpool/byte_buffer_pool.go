// Package bufpool implements the Compression Buffer Pool component: a set
// of reusable, fixed-capacity byte buffers sized so each one holds E
// block records (length-prefixed codec output) plus their metadata
// slots, where E = max(1, 4 MiB / (codecStateBytes + 4)).
package bufpool

import (
	"io"
	"sync"
)

// DesiredBufferBytes is the per-worker working-set target used to derive
// E, the number of block records one compression buffer holds.
const DesiredBufferBytes = 4 * 1024 * 1024 // 4 MiB

// EntriesPerBuffer returns E, the number of {length, payload} records that
// fit in one worker's compression buffer, given the maximum number of
// bytes a single codec-plugin invocation can produce (codecStateBytes).
//
// E = max(1, DesiredBufferBytes / (codecStateBytes + 4))
//
// The "+4" accounts for the 4-byte little-endian length prefix stored
// ahead of every codec payload.
func EntriesPerBuffer(codecStateBytes int) int {
	entrySize := codecStateBytes + 4
	if entrySize <= 0 {
		return 1
	}

	e := DesiredBufferBytes / entrySize
	if e < 1 {
		return 1
	}

	return e
}

// ByteBuffer is a growable byte slice wrapper reused across flushes to
// avoid per-flush allocation.
type ByteBuffer struct {
	// B is the underlying byte slice.
	B []byte
}

// NewByteBuffer creates a new ByteBuffer with the specified default size.
func NewByteBuffer(defaultSize int) *ByteBuffer {
	return &ByteBuffer{
		B: make([]byte, 0, defaultSize),
	}
}

// Bytes returns the underlying byte slice.
func (bb *ByteBuffer) Bytes() []byte {
	return bb.B
}

// Reset resets the buffer to be empty, but retains the allocated memory for reuse.
func (bb *ByteBuffer) Reset() {
	bb.B = bb.B[:0]
}

// Len returns the length of the buffer.
func (bb *ByteBuffer) Len() int {
	return len(bb.B)
}

// Cap returns the capacity of the buffer.
func (bb *ByteBuffer) Cap() int {
	return cap(bb.B)
}

// MustWrite writes data to the buffer, growing it if necessary.
func (bb *ByteBuffer) MustWrite(data []byte) {
	bb.B = append(bb.B, data...)
}

// Slice returns a slice of the buffer from start to end.
// Panics if the indices are out of bounds.
func (bb *ByteBuffer) Slice(start, end int) []byte {
	if start < 0 || end < start || end > cap(bb.B) {
		panic("bufpool: Slice: invalid indices")
	}

	return bb.B[start:end]
}

// SetLength sets the length of the buffer to n.
// Panics if n is negative or greater than the capacity.
func (bb *ByteBuffer) SetLength(n int) {
	if n < 0 || n > cap(bb.B) {
		panic("bufpool: SetLength: invalid length")
	}
	bb.B = bb.B[:n]
}

// Extend extends the buffer by n bytes if there is sufficient capacity.
func (bb *ByteBuffer) Extend(n int) bool {
	curLen := len(bb.B)
	if cap(bb.B)-curLen < n {
		return false
	}

	bb.B = bb.B[:curLen+n]

	return true
}

// ExtendOrGrow extends the buffer by n bytes, growing it if necessary.
func (bb *ByteBuffer) ExtendOrGrow(n int) {
	if bb.Extend(n) {
		return
	}

	start := len(bb.B)
	bb.Grow(n)
	bb.B = bb.B[:start+n]
}

// Grow grows the buffer to ensure it can hold requiredBytes more bytes
// without reallocating. If the buffer has sufficient capacity, Grow does
// nothing.
//
// The growth strategy is as follows:
//   - For small buffers, grow by a 16KiB default step to minimize reallocations.
//   - For larger buffers, grow by 25% of current capacity to balance memory usage and reallocation cost.
//
// The step is never smaller than requiredBytes. This is the strategy the
// rank byte ocean (package ocean) uses when a reservation exceeds its
// current capacity: it passes the reservation size as requiredBytes, so
// the ocean grows to at least the reserved length, rounded up by the
// step above.
func (bb *ByteBuffer) Grow(requiredBytes int) {
	const defaultGrowBy = 16 * 1024

	available := cap(bb.B) - len(bb.B)
	if available >= requiredBytes {
		return // Sufficient capacity
	}

	growBy := defaultGrowBy
	if cap(bb.B) > 4*defaultGrowBy {
		growBy = cap(bb.B) / 4
	}

	if growBy < requiredBytes {
		growBy = requiredBytes
	}

	newBuf := make([]byte, len(bb.B), len(bb.B)+growBy)
	copy(newBuf, bb.B)
	bb.B = newBuf
}

// Write appends the contents of data to the buffer, growing it as needed.
func (bb *ByteBuffer) Write(data []byte) (int, error) {
	bb.B = append(bb.B, data...)
	return len(data), nil
}

// WriteTo writes the contents of the buffer to w.
func (bb *ByteBuffer) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(bb.B)
	return int64(n), err
}

// ByteBufferPool is a pool of ByteBuffers to minimize allocations.
//
// It uses sync.Pool internally to manage the buffers. The pool can be
// configured with a maximum size threshold to avoid retaining overly
// large buffers that could lead to memory bloat.
type ByteBufferPool struct {
	pool         sync.Pool
	maxThreshold int // Optional maximum size threshold for buffers
}

// NewByteBufferPool creates a new ByteBufferPool with buffers of the specified default size.
func NewByteBufferPool(defaultSize int, maxThreshold int) *ByteBufferPool {
	return &ByteBufferPool{
		pool: sync.Pool{
			New: func() any {
				return NewByteBuffer(defaultSize)
			},
		},
		maxThreshold: maxThreshold,
	}
}

// Get retrieves a ByteBuffer from the pool.
func (bbp *ByteBufferPool) Get() *ByteBuffer {
	bb, _ := bbp.pool.Get().(*ByteBuffer)
	return bb
}

// Put returns a ByteBuffer to the pool for reuse.
func (bbp *ByteBufferPool) Put(bb *ByteBuffer) {
	if bb == nil {
		return
	}

	if bbp.maxThreshold > 0 && cap(bb.B) > bbp.maxThreshold {
		// Discard overly large buffers to prevent memory bloat.
		return
	}

	bb.Reset()
	bbp.pool.Put(bb)
}

// compressionBufferPools caches one ByteBufferPool per distinct
// codecStateBytes value, since E (and therefore the buffer size) depends
// on which codec plugin is active.
var (
	compressionBufferPoolsMu sync.Mutex
	compressionBufferPools   = map[int]*ByteBufferPool{}
)

// CompressionBufferPool returns the shared ByteBufferPool sized for a
// codec plugin whose maximum output size per block is codecStateBytes.
// Each buffer holds 2*BUFFERSIZE bytes, matching the "flush into a buffer
// twice the nominal size" headroom the Block Pipeline's entropy step
// relies on (encode_in_place(buf, len, 2*BUFFERSIZE)).
func CompressionBufferPool(codecStateBytes int) *ByteBufferPool {
	entries := EntriesPerBuffer(codecStateBytes)
	bufferSize := entries * (codecStateBytes + 4)

	compressionBufferPoolsMu.Lock()
	defer compressionBufferPoolsMu.Unlock()

	pool, ok := compressionBufferPools[bufferSize]
	if !ok {
		pool = NewByteBufferPool(2*bufferSize, 4*bufferSize)
		compressionBufferPools[bufferSize] = pool
	}

	return pool
}
