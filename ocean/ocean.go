// Package ocean implements the Byte Ocean & Chunk LUT component: the
// rank-local growable byte store entropy-encoded chunks accumulate into
// during a write, plus the list of chunk start offsets within that
// store.
package ocean

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/blockzip/blockzip/endian"
	"github.com/blockzip/blockzip/errs"
	"github.com/blockzip/blockzip/internal/bufpool"
)

// HeaderLUT is the per-rank tuple serialized near the end of the file:
// the rank's total byte count (including its appended chunk LUT) and
// its chunk count.
type HeaderLUT struct {
	AggregateBytes uint64
	NChunks        int32
}

// Ocean is one rank's byte ocean: a growable byte buffer of
// entropy-encoded chunks, plus the ordered chunk LUT recording where
// each chunk begins. Reserve/Commit implement the reserve-then-copy
// protocol spec.md §4.3 step (b)/(c) requires: the mutex guards only
// offset/id bookkeeping and the grow-on-exhaustion decision, never the
// memcpy itself, so concurrent flushes copy their payloads in parallel.
type Ocean struct {
	mu       sync.Mutex
	buf      *bufpool.ByteBuffer
	chunkLUT []uint64

	pendingWrites   atomic.Uint64
	completedWrites atomic.Uint64

	sealed bool
}

// New creates an Ocean with the given initial capacity. spec.md §4.4:
// initialCapacity should be residentBlocks*8*B³ + 4 MiB, but any
// positive value is accepted — too small a capacity simply exercises
// the grow path on the first flush.
func New(initialCapacity int) *Ocean {
	if initialCapacity < 1 {
		initialCapacity = 1
	}

	return &Ocean{buf: bufpool.NewByteBuffer(initialCapacity)}
}

// Reserve performs step (b) of Flush: it allocates a chunk id, appends
// its start offset to the chunk LUT, and reserves n bytes for the
// chunk's payload. If the byte ocean's current capacity cannot hold the
// reservation, Reserve first waits for every previously reserved write
// to land (pendingWrites == completedWrites) — the readers-drain-before-
// resize discipline spec.md's Rationale describes — before growing by at
// least n bytes (ByteBuffer.Grow rounds the step up to 16 KiB or a
// quarter of the current capacity, whichever is larger).
//
// Reserve must not be called after Seal.
func (o *Ocean) Reserve(n int) (offset uint64, chunkID int, err error) {
	if n < 0 {
		return 0, 0, fmt.Errorf("ocean: reserve: negative length %d", n)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.sealed {
		return 0, 0, fmt.Errorf("ocean: reserve: %w", errs.ErrOceanSealed)
	}

	if o.buf.Cap()-o.buf.Len() < n {
		for o.pendingWrites.Load() != o.completedWrites.Load() {
			runtime.Gosched()
		}
		o.buf.Grow(n)
	}

	offset = uint64(o.buf.Len())
	if !o.buf.Extend(n) {
		return 0, 0, fmt.Errorf("ocean: reserve: grow did not yield enough capacity for %d bytes", n)
	}

	chunkID = len(o.chunkLUT)
	o.chunkLUT = append(o.chunkLUT, offset)
	o.pendingWrites.Add(1)

	return offset, chunkID, nil
}

// Commit performs step (c) of Flush: it copies data into the
// previously reserved [offset, offset+len(data)) range, outside any
// mutex, then atomically marks the write complete.
func (o *Ocean) Commit(offset uint64, data []byte) {
	dst := o.buf.Slice(int(offset), int(offset)+len(data))
	copy(dst, data)
	o.completedWrites.Add(1)
}

// ChunkCount returns the number of chunks reserved so far.
func (o *Ocean) ChunkCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()

	return len(o.chunkLUT)
}

// Seal appends the chunk LUT to the end of the byte ocean (spec.md
// §4.4: "the chunk LUT ... is appended in-place to the end of the byte
// ocean") and returns the resulting HeaderLUT. Seal must be called only
// after every Reserve'd write has been Committed (Design Notes §9,
// open question (a): the prefix scan that follows Seal must see the
// LUT-inclusive byte count). Seal is idempotent for repeat calls.
func (o *Ocean) Seal(engine endian.EndianEngine) (HeaderLUT, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.pendingWrites.Load() != o.completedWrites.Load() {
		return HeaderLUT{}, fmt.Errorf("ocean: seal: %d writes still in flight", o.pendingWrites.Load()-o.completedWrites.Load())
	}

	if !o.sealed {
		lutBytes := make([]byte, 8*len(o.chunkLUT))
		for i, off := range o.chunkLUT {
			engine.PutUint64(lutBytes[8*i:], off)
		}
		o.buf.MustWrite(lutBytes)
		o.sealed = true
	}

	return HeaderLUT{
		AggregateBytes: uint64(o.buf.Len()),
		NChunks:        int32(len(o.chunkLUT)),
	}, nil
}

// Bytes returns the full contents of the byte ocean, valid after Seal.
func (o *Ocean) Bytes() []byte {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.buf.Bytes()
}

// ParseChunkLUT parses nchunks little/big-endian (per engine) uint64
// offsets out of data, the shape of a rank's trailing chunk LUT as
// written by Seal. Used by the reader when reconstructing a rank's
// local chunk table from the file (spec.md §4.7 step d).
func ParseChunkLUT(data []byte, nchunks int, engine endian.EndianEngine) ([]uint64, error) {
	need := 8 * nchunks
	if len(data) < need {
		return nil, fmt.Errorf("ocean: parse chunk lut: need %d bytes, got %d: %w", need, len(data), errs.ErrTruncatedStream)
	}

	offsets := make([]uint64, nchunks)
	for i := range offsets {
		offsets[i] = engine.Uint64(data[8*i:])
	}

	prev := uint64(0)
	for i, off := range offsets {
		if i > 0 && off <= prev {
			return nil, fmt.Errorf("ocean: parse chunk lut: offset %d not strictly increasing: %w", i, errs.ErrChunkLUTNotMonotonic)
		}
		prev = off
	}

	return offsets, nil
}
