package archive

import (
	"fmt"

	"github.com/blockzip/blockzip/endian"
	"github.com/blockzip/blockzip/errs"
	"github.com/blockzip/blockzip/grid"
)

// minDecodeScratch is the starting size of the scratch buffer Fetch
// decodes a chunk into, per spec.md §4.7 step (c): "at least 4 MiB".
const minDecodeScratch = 4 * 1024 * 1024

// maxDecodeScratch bounds how far Fetch will grow that scratch buffer
// before giving up on a chunk that refuses to fit, turning a runaway
// reservation into a reported error instead of unbounded allocation.
const maxDecodeScratch = 1 << 30

// Fetch reconstructs the sample cube for the block at global coordinate
// (ix, iy, iz): it looks the coordinate up in the in-memory index,
// reads its chunk's raw bytes, entropy-decodes the chunk, walks the
// chunk's length-prefixed sub-records to the target sub-id, and
// lossy-decodes that block's payload. Fetch is safe for concurrent use
// across goroutines sharing one Reader, since it touches no mutable
// Reader state beyond the read-only index built by Open.
func (rd *Reader) Fetch(ix, iy, iz int32) ([]float64, error) {
	rec, ok := rd.index[grid.Index3{X: ix, Y: iy, Z: iz}]
	if !ok {
		return nil, fmt.Errorf("archive: fetch: block (%d,%d,%d): %w", ix, iy, iz, errs.ErrBlockNotFound)
	}

	chunkID := int(rec.ChunkID)
	if chunkID < 0 || chunkID+1 >= len(rd.chunkOffsets) {
		return nil, fmt.Errorf("archive: fetch: chunk id %d: %w", chunkID, errs.ErrChunkIDOutOfRange)
	}

	start := rd.chunkOffsets[chunkID]
	end := rd.chunkOffsets[chunkID+1]

	raw := make([]byte, end-start)
	if _, err := rd.r.ReadAt(raw, int64(start)); err != nil {
		return nil, fmt.Errorf("archive: fetch: read chunk %d: %w", chunkID, err)
	}

	decoded, err := decodeChunk(rd.coder, raw)
	if err != nil {
		return nil, fmt.Errorf("archive: fetch: decode chunk %d: %w", chunkID, err)
	}

	payload, err := extractSubRecord(decoded, int(rec.SubID))
	if err != nil {
		return nil, fmt.Errorf("archive: fetch: sub-record %d of chunk %d: %w", rec.SubID, chunkID, err)
	}

	cube, err := rd.plugin.Decompress(payload, rd.header.Precision)
	if err != nil {
		return nil, fmt.Errorf("archive: fetch: decompress block (%d,%d,%d): %w", ix, iy, iz, err)
	}

	return cube, nil
}

// decoder is the subset of entropy.Codec Fetch needs; declared locally
// so fetch.go doesn't have to import entropy just for the interface
// name.
type decoder interface {
	Decode(input []byte, out []byte) (int, error)
}

// decodeChunk entropy-decodes raw into a freshly sized buffer, doubling
// the buffer and retrying when it is too small rather than guessing a
// single exact size up front — a chunk holds a variable number of
// sub-records whose uncompressed size isn't known until decoded.
func decodeChunk(coder decoder, raw []byte) ([]byte, error) {
	for size := minDecodeScratch; size <= maxDecodeScratch; size *= 2 {
		out := make([]byte, size)
		n, err := coder.Decode(raw, out)
		if err == nil {
			return out[:n], nil
		}
		if errs.KindOf(err) != errs.KindResource {
			return nil, err
		}
	}

	return nil, fmt.Errorf("archive: decode chunk: exceeded %d byte scratch buffer: %w", maxDecodeScratch, errs.ErrBufferTooSmall)
}

// EncodeSubRecords concatenates payloads into the length-prefixed chunk
// layout extractSubRecord reads back: each payload preceded by its
// 4-byte little-endian length, in order, so payload i becomes sub-id i.
// The Block Pipeline calls this to build one chunk's plaintext before
// handing it to the entropy stage.
func EncodeSubRecords(payloads [][]byte) []byte {
	engine := endian.GetLittleEndianEngine()

	size := 0
	for _, p := range payloads {
		size += 4 + len(p)
	}

	out := make([]byte, size)
	offset := 0
	for _, p := range payloads {
		engine.PutUint32(out[offset:offset+4], uint32(len(p)))
		offset += 4
		offset += copy(out[offset:], p)
	}

	return out
}

// extractSubRecord walks decoded's length-prefixed sub-records (a
// 4-byte little-endian length followed by that many payload bytes,
// repeated once per block the Block Pipeline folded into this chunk)
// and returns the subID-th payload.
func extractSubRecord(decoded []byte, subID int) ([]byte, error) {
	engine := endian.GetLittleEndianEngine()

	offset := 0
	for i := 0; ; i++ {
		if offset+4 > len(decoded) {
			return nil, fmt.Errorf("archive: sub-record %d: %w", subID, errs.ErrTruncatedStream)
		}

		n := int(engine.Uint32(decoded[offset : offset+4]))
		offset += 4

		if offset+n > len(decoded) {
			return nil, fmt.Errorf("archive: sub-record %d: %w", subID, errs.ErrTruncatedStream)
		}

		if i == subID {
			return decoded[offset : offset+n], nil
		}

		offset += n
	}
}
