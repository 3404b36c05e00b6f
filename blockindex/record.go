// Package blockindex implements the Block Index component: the
// rank-local, dense table mapping every resident block to the chunk and
// position within that chunk holding its compressed payload.
package blockindex

import (
	"github.com/blockzip/blockzip/endian"
	"github.com/blockzip/blockzip/errs"
)

// RecordSize is the fixed on-disk size of a Record: six little-endian
// int32 fields, per spec.md §6's BlockMetadata layout.
const RecordSize = 6 * 4

// Record is the Block Metadata Record: a fixed-layout entry identifying
// where one block's compressed payload lives. ChunkID is rank-local as
// written; archive.Open rewrites it to a file-global chunk id while
// loading the index (spec.md §4.7 step d).
type Record struct {
	GlobalBlockID int32
	SubID         int32
	IX            int32
	IY            int32
	IZ            int32
	ChunkID       int32
}

// Bytes returns the record as a RecordSize-byte slice using engine's
// byte order. Grounded on section.NumericIndexEntry.Bytes's
// stack-allocate-then-copy shape, minus the delta-offset trick: every
// field here is already a fixed-width int32, so there is nothing to
// compress further.
func (r Record) Bytes(engine endian.EndianEngine) []byte {
	var b [RecordSize]byte
	r.WriteToSlice(b[:], 0, engine)

	return b[:]
}

// WriteToSlice writes the record into data at offset and returns the
// next write position, the most efficient form when serializing many
// records back-to-back (as the File Assembler does for a whole rank's
// resident block set). Grounded on
// section.NumericIndexEntry.WriteToSlice.
func (r Record) WriteToSlice(data []byte, offset int, engine endian.EndianEngine) int {
	engine.PutUint32(data[offset:offset+4], uint32(r.GlobalBlockID))
	engine.PutUint32(data[offset+4:offset+8], uint32(r.SubID))
	engine.PutUint32(data[offset+8:offset+12], uint32(r.IX))
	engine.PutUint32(data[offset+12:offset+16], uint32(r.IY))
	engine.PutUint32(data[offset+16:offset+20], uint32(r.IZ))
	engine.PutUint32(data[offset+20:offset+24], uint32(r.ChunkID))

	return offset + RecordSize
}

// ParseRecord parses one Record out of data, grounded on
// section.ParseNumericIndexEntry.
func ParseRecord(data []byte, engine endian.EndianEngine) (Record, error) {
	if len(data) < RecordSize {
		return Record{}, errs.ErrInvalidIndexEntrySize
	}

	return Record{
		GlobalBlockID: int32(engine.Uint32(data[0:4])),
		SubID:         int32(engine.Uint32(data[4:8])),
		IX:            int32(engine.Uint32(data[8:12])),
		IY:            int32(engine.Uint32(data[12:16])),
		IZ:            int32(engine.Uint32(data[16:20])),
		ChunkID:       int32(engine.Uint32(data[20:24])),
	}, nil
}

// Table is the dense, rank-local Block Index: a vector of Records
// indexed by position, sized to the resident block count and populated
// entirely during flushes (spec.md §4.5).
type Table struct {
	records []Record
}

// NewTable creates a Table with size pre-allocated (but logically
// uninitialized) slots, one per resident block.
func NewTable(size int) *Table {
	return &Table{records: make([]Record, size)}
}

// Set stores rec at position i. Table itself does no locking: the Block
// Pipeline calls Set after a flush's Reserve/Commit, outside the Byte
// Ocean's mutex, and each worker writes only the slots of the blocks in
// its own shard, so no two goroutines write the same slot.
func (t *Table) Set(i int, rec Record) { t.records[i] = rec }

// Len returns the number of slots in the table.
func (t *Table) Len() int { return len(t.records) }

// Records returns the table's backing slice in slot order.
func (t *Table) Records() []Record { return t.records }

// Bytes serializes every record back-to-back, the layout the File
// Assembler writes verbatim as one rank's block-index array.
func (t *Table) Bytes(engine endian.EndianEngine) []byte {
	out := make([]byte, RecordSize*len(t.records))
	offset := 0
	for _, rec := range t.records {
		offset = rec.WriteToSlice(out, offset, engine)
	}

	return out
}

// ParseTable parses count back-to-back records out of data.
func ParseTable(data []byte, count int, engine endian.EndianEngine) (*Table, error) {
	if len(data) < RecordSize*count {
		return nil, errs.ErrInvalidIndexEntrySize
	}

	t := NewTable(count)
	for i := 0; i < count; i++ {
		rec, err := ParseRecord(data[i*RecordSize:], engine)
		if err != nil {
			return nil, err
		}
		t.records[i] = rec
	}

	return t, nil
}
