// Package pipeline implements the Block Pipeline component: the
// per-worker loop that extracts a block's sample cube, runs it through a
// lossy codec.Plugin, batches the result with its peers, and flushes the
// batch through an entropy.Codec into the rank's ocean.Ocean. Grounded on
// SerializerIO_WaveletCompression_MPI_Simple's `_compress`, translated
// from its OpenMP `#pragma omp parallel for` over blocks to
// errgroup-managed goroutines over a static shard of a grid.Topology's
// resident block set.
package pipeline

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/blockzip/blockzip/blockindex"
	"github.com/blockzip/blockzip/codec"
	"github.com/blockzip/blockzip/endian"
	"github.com/blockzip/blockzip/entropy"
	"github.com/blockzip/blockzip/grid"
	"github.com/blockzip/blockzip/internal/bufpool"
	"github.com/blockzip/blockzip/ocean"
)

// Config carries the per-archive settings every Block Pipeline worker
// shares: which channel to extract, the lossy codec's precision knob,
// the worst-case per-block codec output size (spec.md's
// codec_state_bytes, used to size the Compression Buffer Pool), and how
// many workers to fan the resident block set out across.
type Config struct {
	Channel         int
	Precision       float64
	MaxPayloadBytes int
	Workers         int
}

// Run executes the Block Pipeline over topology's resident block set:
// each worker extracts, lossy-compresses, and batches blocks into
// {length, payload} records, flushing each batch through coder into ocn
// once it nears the Compression Buffer Pool's capacity (spec.md §4.3
// steps 1-5), recording every block's Block Metadata Record into table
// with a rank-local chunk id. table must already be sized to
// len(topology.ResidentBlocks()).
func Run(ctx context.Context, topology grid.Topology, streamer grid.Streamer, plugin codec.Plugin, coder entropy.Codec, ocn *ocean.Ocean, table *blockindex.Table, cfg Config) error {
	blocks := topology.ResidentBlocks()
	if table.Len() != len(blocks) {
		return fmt.Errorf("pipeline: table has %d slots, topology has %d resident blocks", table.Len(), len(blocks))
	}

	if len(blocks) == 0 {
		return nil
	}

	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(blocks) {
		workers = len(blocks)
	}

	shardSize := (len(blocks) + workers - 1) / workers

	g, gctx := errgroup.WithContext(ctx)
	for start := 0; start < len(blocks); start += shardSize {
		end := start + shardSize
		if end > len(blocks) {
			end = len(blocks)
		}

		shard := blocks[start:end]
		base := start

		g.Go(func() error {
			return runWorker(gctx, streamer, plugin, coder, ocn, table, shard, base, cfg)
		})
	}

	return g.Wait()
}

// hotblock is a worker's in-flight Block Metadata Record stub, recorded
// when the block's compressed payload is appended to the compression
// buffer and finalized (chunk id, sub-id) once that buffer flushes.
type hotblock struct {
	rec      blockindex.Record
	tableIdx int
}

func runWorker(ctx context.Context, streamer grid.Streamer, plugin codec.Plugin, coder entropy.Codec, ocn *ocean.Ocean, table *blockindex.Table, blocks []grid.Block, tableBase int, cfg Config) error {
	engine := endian.GetLittleEndianEngine()

	entrySize := cfg.MaxPayloadBytes + 4
	entriesPerBuffer := bufpool.EntriesPerBuffer(cfg.MaxPayloadBytes)
	alert := (entriesPerBuffer - 1) * entrySize

	pool := bufpool.CompressionBufferPool(cfg.MaxPayloadBytes)
	bb := pool.Get()
	defer pool.Put(bb)

	hotblocks := make([]hotblock, 0, entriesPerBuffer)

	flush := func() error {
		if bb.Len() == 0 {
			return nil
		}

		capacity := cap(bb.B)
		zlen, err := coder.EncodeInPlace(bb.B[:capacity], bb.Len(), capacity)
		if err != nil {
			return fmt.Errorf("pipeline: flush: entropy encode: %w", err)
		}

		offset, chunkID, err := ocn.Reserve(zlen)
		if err != nil {
			return fmt.Errorf("pipeline: flush: reserve: %w", err)
		}
		ocn.Commit(offset, bb.B[:zlen])

		for i, hb := range hotblocks {
			rec := hb.rec
			rec.SubID = int32(i)
			rec.ChunkID = int32(chunkID)
			table.Set(hb.tableIdx, rec)
		}

		bb.Reset()
		hotblocks = hotblocks[:0]

		return nil
	}

	for i, block := range blocks {
		if err := ctx.Err(); err != nil {
			return err
		}

		cube, cleanup := bufpool.GetCube(block.Edge)

		if err := streamer.Extract(block, cfg.Channel, cube); err != nil {
			cleanup()
			return fmt.Errorf("pipeline: extract block %d: %w", block.GlobalID, err)
		}

		payload, err := plugin.Compress(cube, cfg.Precision)
		cleanup()
		if err != nil {
			return fmt.Errorf("pipeline: compress block %d: %w", block.GlobalID, err)
		}

		lenPrefix := engine.AppendUint32(make([]byte, 0, 4), uint32(len(payload)))
		bb.MustWrite(lenPrefix)
		bb.MustWrite(payload)

		hotblocks = append(hotblocks, hotblock{
			rec: blockindex.Record{
				GlobalBlockID: block.GlobalID,
				IX:            block.Index.X,
				IY:            block.Index.Y,
				IZ:            block.Index.Z,
			},
			tableIdx: tableBase + i,
		})

		if bb.Len() >= alert || len(hotblocks) == entriesPerBuffer {
			if err := flush(); err != nil {
				return err
			}
		}
	}

	return flush()
}
