package blockindex_test

import (
	"testing"

	"github.com/blockzip/blockzip/blockindex"
	"github.com/blockzip/blockzip/endian"
	"github.com/stretchr/testify/require"
)

func TestRecordRoundTrip(t *testing.T) {
	engine := endian.GetLittleEndianEngine()
	rec := blockindex.Record{GlobalBlockID: 7, SubID: 2, IX: 1, IY: 2, IZ: 3, ChunkID: 4}

	b := rec.Bytes(engine)
	require.Len(t, b, blockindex.RecordSize)

	got, err := blockindex.ParseRecord(b, engine)
	require.NoError(t, err)
	require.Equal(t, rec, got)
}

func TestParseRecordTooShort(t *testing.T) {
	_, err := blockindex.ParseRecord(make([]byte, 4), endian.GetLittleEndianEngine())
	require.Error(t, err)
}

func TestTableRoundTrip(t *testing.T) {
	engine := endian.GetLittleEndianEngine()
	table := blockindex.NewTable(3)
	table.Set(0, blockindex.Record{GlobalBlockID: 0, ChunkID: 1})
	table.Set(1, blockindex.Record{GlobalBlockID: 1, ChunkID: 1, SubID: 1})
	table.Set(2, blockindex.Record{GlobalBlockID: 2, ChunkID: 2})

	b := table.Bytes(engine)
	require.Len(t, b, 3*blockindex.RecordSize)

	parsed, err := blockindex.ParseTable(b, 3, engine)
	require.NoError(t, err)
	require.Equal(t, table.Records(), parsed.Records())
}
