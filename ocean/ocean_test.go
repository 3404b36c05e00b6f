package ocean_test

import (
	"sync"
	"testing"

	"github.com/blockzip/blockzip/endian"
	"github.com/blockzip/blockzip/ocean"
	"github.com/stretchr/testify/require"
)

func TestReserveCommitSeal(t *testing.T) {
	o := ocean.New(64)

	off0, chunk0, err := o.Reserve(4)
	require.NoError(t, err)
	require.Equal(t, uint64(0), off0)
	require.Equal(t, 0, chunk0)
	o.Commit(off0, []byte{1, 2, 3, 4})

	off1, chunk1, err := o.Reserve(3)
	require.NoError(t, err)
	require.Equal(t, uint64(4), off1)
	require.Equal(t, 1, chunk1)
	o.Commit(off1, []byte{9, 9, 9})

	engine := endian.GetLittleEndianEngine()
	lut, err := o.Seal(engine)
	require.NoError(t, err)
	require.Equal(t, int32(2), lut.NChunks)
	require.Equal(t, uint64(7+16), lut.AggregateBytes)

	raw := o.Bytes()
	require.Equal(t, []byte{1, 2, 3, 4, 9, 9, 9}, raw[:7])

	offsets, err := ocean.ParseChunkLUT(raw[7:], 2, engine)
	require.NoError(t, err)
	require.Equal(t, []uint64{0, 4}, offsets)
}

func TestReserveGrowsUnderTightCapacity(t *testing.T) {
	o := ocean.New(1)

	var wg sync.WaitGroup
	offsets := make([]uint64, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			off, _, err := o.Reserve(8)
			require.NoError(t, err)
			o.Commit(off, make([]byte, 8))
			offsets[i] = off
		}(i)
	}
	wg.Wait()

	seen := map[uint64]bool{}
	for _, off := range offsets {
		require.False(t, seen[off], "duplicate offset %d", off)
		seen[off] = true
	}
	require.Len(t, seen, 20)
}

func TestSealRejectsInFlightWrites(t *testing.T) {
	o := ocean.New(64)

	off, _, err := o.Reserve(4)
	require.NoError(t, err)
	_ = off

	_, err = o.Seal(endian.GetLittleEndianEngine())
	require.Error(t, err)
}

func TestReserveAfterSealFails(t *testing.T) {
	o := ocean.New(64)
	_, err := o.Seal(endian.GetLittleEndianEngine())
	require.NoError(t, err)

	_, _, err = o.Reserve(1)
	require.Error(t, err)
}

func TestParseChunkLUTRejectsNonMonotonic(t *testing.T) {
	engine := endian.GetLittleEndianEngine()
	raw := make([]byte, 16)
	engine.PutUint64(raw[0:], 10)
	engine.PutUint64(raw[8:], 5)

	_, err := ocean.ParseChunkLUT(raw, 2, engine)
	require.Error(t, err)
}
