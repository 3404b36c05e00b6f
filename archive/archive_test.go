package archive_test

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/blockzip/blockzip/archive"
	"github.com/blockzip/blockzip/blockindex"
	"github.com/blockzip/blockzip/codec"
	"github.com/blockzip/blockzip/entropy"
	"github.com/blockzip/blockzip/errs"
	"github.com/blockzip/blockzip/grid"
	"github.com/blockzip/blockzip/grid/local"
	"github.com/blockzip/blockzip/ocean"
	"github.com/stretchr/testify/require"
)

// memFile is a concurrency-safe in-memory stand-in for os.File, the
// shared io.WriterAt/io.ReaderAt every rank's archive.Write call writes
// into and archive.Open later reads back from.
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

	if int(off) >= len(m.data) {
		return 0, io.EOF
	}

	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.ErrUnexpectedEOF
	}

	return n, nil
}

// writeRank runs one rank's whole write path: extract every resident
// block, lossy-compress, fold into one chunk per block, entropy-encode,
// append to the rank's byte ocean, and hand the result to archive.Write.
func writeRank(t *testing.T, ctx context.Context, f *memFile, comm grid.Communicator, topology grid.Topology, streamer grid.Streamer, plugin codec.Plugin, coder entropy.Codec, cfg archive.Config) {
	t.Helper()

	blocks := topology.ResidentBlocks()

	ocn := ocean.New(4096)
	table := blockindex.NewTable(len(blocks))

	cube := make([]float64, cfg.BlockEdge*cfg.BlockEdge*cfg.BlockEdge)
	for i, block := range blocks {
		require.NoError(t, streamer.Extract(block, 0, cube))

		payload, err := plugin.Compress(cube, cfg.Precision)
		require.NoError(t, err)

		chunk := archive.EncodeSubRecords([][]byte{payload})

		buf := make([]byte, len(chunk)*2+64)
		n := copy(buf, chunk)
		encLen, err := coder.EncodeInPlace(buf, n, len(buf))
		require.NoError(t, err)

		offset, chunkID, err := ocn.Reserve(encLen)
		require.NoError(t, err)
		ocn.Commit(offset, buf[:encLen])

		table.Set(i, blockindex.Record{
			GlobalBlockID: block.GlobalID,
			SubID:         0,
			IX:            block.Index.X,
			IY:            block.Index.Y,
			IZ:            block.Index.Z,
			ChunkID:       int32(chunkID),
		})
	}

	_, err := archive.Write(ctx, f, comm, topology, ocn, table, cfg)
	require.NoError(t, err)
}

func smoothSample(block grid.Block, channel, ix, iy, iz int) float64 {
	return float64(block.GlobalID) + 0.1*float64(ix) + 0.01*float64(iy) + 0.001*float64(iz)
}

func TestWriteOpenFetchSingleRank(t *testing.T) {
	ctx := context.Background()

	counts := grid.Index3{X: 1, Y: 1, Z: 1}
	topology, err := local.NewTopology(0, 1, counts, 4, 1, [3]float64{2, 2, 2})
	require.NoError(t, err)

	streamer := local.NewStreamer(1, smoothSample)
	plugin, err := codec.Create("identity")
	require.NoError(t, err)
	coder, err := entropy.Create("none")
	require.NoError(t, err)

	comm := local.NewGroup(1, false)[0]

	f := &memFile{}
	cfg := archive.Config{BlockEdge: 4, Codec: "identity", Entropy: "none", Precision: 0}
	writeRank(t, ctx, f, comm, topology, streamer, plugin, coder, cfg)

	reader, err := archive.Open(f)
	require.NoError(t, err)
	require.Equal(t, "identity", reader.Header().Codec)
	require.Equal(t, "none", reader.Header().Entropy)
	require.Equal(t, 4, reader.Header().BlockEdge)

	cube, err := reader.Fetch(0, 0, 0)
	require.NoError(t, err)

	want := make([]float64, 4*4*4)
	require.NoError(t, streamer.Extract(topology.ResidentBlocks()[0], 0, want))
	require.InDeltaSlice(t, want, cube, 1e-9)
}

func TestWriteOpenFetchMultiRank(t *testing.T) {
	ctx := context.Background()

	counts := grid.Index3{X: 2, Y: 2, Z: 4}
	const nranks = 2

	f := &memFile{}
	comms := local.NewGroup(nranks, false)
	cfg := archive.Config{BlockEdge: 4, Codec: "identity", Entropy: "none", Precision: 0}

	var wg sync.WaitGroup
	topologies := make([]*local.Topology, nranks)
	for r := 0; r < nranks; r++ {
		var err error
		topologies[r], err = local.NewTopology(r, nranks, counts, 4, 1, [3]float64{4, 4, 8})
		require.NoError(t, err)
	}

	for r := 0; r < nranks; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()

			streamer := local.NewStreamer(1, smoothSample)
			plugin, err := codec.Create(cfg.Codec)
			require.NoError(t, err)
			coder, err := entropy.Create(cfg.Entropy)
			require.NoError(t, err)

			writeRank(t, ctx, f, comms[r], topologies[r], streamer, plugin, coder, cfg)
		}(r)
	}
	wg.Wait()

	reader, err := archive.Open(f)
	require.NoError(t, err)

	streamer := local.NewStreamer(1, smoothSample)
	for r := 0; r < nranks; r++ {
		for _, block := range topologies[r].ResidentBlocks() {
			cube, err := reader.Fetch(block.Index.X, block.Index.Y, block.Index.Z)
			require.NoError(t, err)

			want := make([]float64, 4*4*4)
			require.NoError(t, streamer.Extract(block, 0, want))
			require.InDeltaSlice(t, want, cube, 1e-9)
		}
	}
}

func TestOpenRejectsCodecMismatch(t *testing.T) {
	ctx := context.Background()

	counts := grid.Index3{X: 1, Y: 1, Z: 1}
	topology, err := local.NewTopology(0, 1, counts, 4, 1, [3]float64{1, 1, 1})
	require.NoError(t, err)

	streamer := local.NewStreamer(1, smoothSample)
	plugin, err := codec.Create("identity")
	require.NoError(t, err)
	coder, err := entropy.Create("none")
	require.NoError(t, err)

	comm := local.NewGroup(1, false)[0]

	f := &memFile{}
	cfg := archive.Config{BlockEdge: 4, Codec: "identity", Entropy: "none"}
	writeRank(t, ctx, f, comm, topology, streamer, plugin, coder, cfg)

	_, err = archive.Open(f, archive.WithExpectedCodec("wavelet"))
	require.Error(t, err)
	require.Equal(t, errs.KindConfiguration, errs.KindOf(err))
}

func TestBlockCoordsCoversEveryBlock(t *testing.T) {
	ctx := context.Background()

	counts := grid.Index3{X: 2, Y: 1, Z: 1}
	topology, err := local.NewTopology(0, 1, counts, 4, 1, [3]float64{2, 1, 1})
	require.NoError(t, err)

	streamer := local.NewStreamer(1, smoothSample)
	plugin, err := codec.Create("identity")
	require.NoError(t, err)
	coder, err := entropy.Create("none")
	require.NoError(t, err)

	comm := local.NewGroup(1, false)[0]

	f := &memFile{}
	cfg := archive.Config{BlockEdge: 4, Codec: "identity", Entropy: "none"}
	writeRank(t, ctx, f, comm, topology, streamer, plugin, coder, cfg)

	reader, err := archive.Open(f)
	require.NoError(t, err)

	coords := reader.BlockCoords()
	require.Len(t, coords, len(topology.ResidentBlocks()))

	seen := map[grid.Index3]bool{}
	for _, c := range coords {
		seen[c] = true
	}
	for _, block := range topology.ResidentBlocks() {
		require.True(t, seen[block.Index])
	}
}

func TestFetchUnknownBlockFails(t *testing.T) {
	ctx := context.Background()

	counts := grid.Index3{X: 1, Y: 1, Z: 1}
	topology, err := local.NewTopology(0, 1, counts, 4, 1, [3]float64{1, 1, 1})
	require.NoError(t, err)

	streamer := local.NewStreamer(1, smoothSample)
	plugin, err := codec.Create("identity")
	require.NoError(t, err)
	coder, err := entropy.Create("none")
	require.NoError(t, err)

	comm := local.NewGroup(1, false)[0]

	f := &memFile{}
	cfg := archive.Config{BlockEdge: 4, Codec: "identity", Entropy: "none"}
	writeRank(t, ctx, f, comm, topology, streamer, plugin, coder, cfg)

	reader, err := archive.Open(f)
	require.NoError(t, err)

	_, err = reader.Fetch(9, 9, 9)
	require.Error(t, err)
	require.Equal(t, errs.KindPrecondition, errs.KindOf(err))
}
