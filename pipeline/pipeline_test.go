package pipeline_test

import (
	"context"
	"sync"
	"testing"

	"github.com/blockzip/blockzip/archive"
	"github.com/blockzip/blockzip/blockindex"
	"github.com/blockzip/blockzip/codec"
	"github.com/blockzip/blockzip/entropy"
	"github.com/blockzip/blockzip/grid"
	"github.com/blockzip/blockzip/grid/local"
	"github.com/blockzip/blockzip/ocean"
	"github.com/blockzip/blockzip/pipeline"
	"github.com/stretchr/testify/require"
)

type memFile struct {
	mu   sync.Mutex
	data []byte
}

func (m *memFile) WriteAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	end := int(off) + len(p)
	if end > len(m.data) {
		grown := make([]byte, end)
		copy(grown, m.data)
		m.data = grown
	}
	copy(m.data[off:end], p)

	return len(p), nil
}

func (m *memFile) ReadAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := copy(p, m.data[int(off):])

	return n, nil
}

func wavySample(block grid.Block, channel, ix, iy, iz int) float64 {
	return float64(block.GlobalID) + 0.25*float64(ix-iy+iz)
}

func TestRunFillsOceanAndTable(t *testing.T) {
	ctx := context.Background()

	counts := grid.Index3{X: 2, Y: 2, Z: 2}
	topology, err := local.NewTopology(0, 1, counts, 4, 1, [3]float64{1, 1, 1})
	require.NoError(t, err)

	streamer := local.NewStreamer(1, wavySample)
	plugin, err := codec.Create("identity")
	require.NoError(t, err)
	coder, err := entropy.Create("none")
	require.NoError(t, err)

	blocks := topology.ResidentBlocks()
	ocn := ocean.New(4096)
	table := blockindex.NewTable(len(blocks))

	cfg := pipeline.Config{
		Channel:         0,
		Precision:       0,
		MaxPayloadBytes: 8 * 4 * 4 * 4,
		Workers:         3,
	}

	require.NoError(t, pipeline.Run(ctx, topology, streamer, plugin, coder, ocn, table, cfg))

	seen := map[int32]bool{}
	for _, rec := range table.Records() {
		require.False(t, seen[rec.GlobalBlockID], "duplicate global id %d in table", rec.GlobalBlockID)
		seen[rec.GlobalBlockID] = true
	}
	require.Len(t, seen, len(blocks))
	require.Greater(t, ocn.ChunkCount(), 0)
}

func TestRunThenArchiveRoundTrip(t *testing.T) {
	ctx := context.Background()

	counts := grid.Index3{X: 2, Y: 2, Z: 2}
	topology, err := local.NewTopology(0, 1, counts, 4, 1, [3]float64{1, 1, 1})
	require.NoError(t, err)

	streamer := local.NewStreamer(1, wavySample)
	plugin, err := codec.Create("wavelet")
	require.NoError(t, err)
	coder, err := entropy.Create("lz4")
	require.NoError(t, err)

	blocks := topology.ResidentBlocks()
	ocn := ocean.New(4096)
	table := blockindex.NewTable(len(blocks))

	precision := 0.01
	cfg := pipeline.Config{
		Channel:         0,
		Precision:       precision,
		MaxPayloadBytes: 8 * 4 * 4 * 4,
		Workers:         2,
	}
	require.NoError(t, pipeline.Run(ctx, topology, streamer, plugin, coder, ocn, table, cfg))

	comm := local.NewGroup(1, false)[0]
	f := &memFile{}
	archCfg := archive.Config{BlockEdge: 4, Codec: "wavelet", Entropy: "lz4", Precision: precision}
	_, err = archive.Write(ctx, f, comm, topology, ocn, table, archCfg)
	require.NoError(t, err)

	reader, err := archive.Open(f)
	require.NoError(t, err)

	want := make([]float64, 4*4*4)
	for _, block := range blocks {
		require.NoError(t, streamer.Extract(block, 0, want))

		got, err := reader.Fetch(block.Index.X, block.Index.Y, block.Index.Z)
		require.NoError(t, err)
		require.InDeltaSlice(t, want, got, 4*precision)
	}
}
