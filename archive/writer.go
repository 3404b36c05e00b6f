package archive

import (
	"context"
	"fmt"
	"io"

	"github.com/blockzip/blockzip/blockindex"
	"github.com/blockzip/blockzip/endian"
	"github.com/blockzip/blockzip/errs"
	"github.com/blockzip/blockzip/grid"
	"github.com/blockzip/blockzip/ocean"
)

// Config carries the archive-wide fields that must be identical across
// every rank's call to Write — the codec, entropy backend, precision
// knob, and sample representation that apply uniformly to every block
// in the file.
type Config struct {
	BlockEdge int
	Codec     string
	Entropy   string
	Precision float64
	HalfFloat bool
}

// Write performs one rank's share of the File Assembler's five-section
// collective write: byte ocean, mini-header, ASCII header, block index,
// and chunk-LUT header, per spec.md §4.6. ocn must already hold every
// block this rank owns; Write seals it. table must be fully populated.
// w is shared across every rank's Write call, each writing to its own
// byte range — callers running ranks as goroutines over a single
// in-memory or os.File target may call Write concurrently, since
// io.WriterAt's contract already requires that to be safe.
//
// Write returns the archive's global header displacement — the byte
// offset of the ASCII header section — which every rank computes
// identically since cfg and the block counts are precondition-equal
// across ranks (grid.Topology's construction already enforces this for
// grid/local).
func Write(ctx context.Context, w io.WriterAt, comm grid.Communicator, topology grid.Topology, ocn *ocean.Ocean, table *blockindex.Table, cfg Config) (uint64, error) {
	engine := endian.GetLittleEndianEngine()

	lut, err := ocn.Seal(engine)
	if err != nil {
		return 0, fmt.Errorf("archive: write: seal byte ocean: %w", err)
	}

	localBlocks := uint64(table.Len())
	firstRankBlocks, err := comm.Broadcast(ctx, 0, localBlocks)
	if err != nil {
		return 0, fmt.Errorf("archive: write: broadcast block count: %w", err)
	}
	if localBlocks != firstRankBlocks {
		return 0, fmt.Errorf("archive: write: rank %d owns %d blocks, rank 0 owns %d: %w", comm.Rank(), localBlocks, firstRankBlocks, errs.ErrRankBlockCountMismatch)
	}

	myOceanOffset, err := comm.ExclusivePrefixSum(ctx, lut.AggregateBytes)
	if err != nil {
		return 0, fmt.Errorf("archive: write: exclusive prefix sum: %w", err)
	}

	if _, err := w.WriteAt(ocn.Bytes(), int64(MiniHeaderSize)+int64(myOceanOffset)); err != nil {
		return 0, fmt.Errorf("archive: write: byte ocean: %w", err)
	}

	lastRank := comm.Size() - 1
	totalOceanBytes, err := comm.Broadcast(ctx, lastRank, myOceanOffset+lut.AggregateBytes)
	if err != nil {
		return 0, fmt.Errorf("archive: write: broadcast total ocean bytes: %w", err)
	}

	globalHeaderDisplacement := uint64(MiniHeaderSize) + totalOceanBytes

	header := buildHeader(topology, cfg)
	headerBytes := header.Bytes()

	if comm.Rank() == 0 {
		mini := make([]byte, MiniHeaderSize)
		engine.PutUint64(mini[:sizeofSizeT], globalHeaderDisplacement)
		copy(mini[sizeofSizeT:], oceanTitle)
		if _, err := w.WriteAt(mini, 0); err != nil {
			return 0, fmt.Errorf("archive: write: mini-header: %w", err)
		}

		if _, err := w.WriteAt(headerBytes, int64(globalHeaderDisplacement)); err != nil {
			return 0, fmt.Errorf("archive: write: ascii header: %w", err)
		}
	}

	current := globalHeaderDisplacement + uint64(len(headerBytes))

	metadataBytesPerRank := uint64(table.Len() * blockindex.RecordSize)
	if _, err := w.WriteAt(table.Bytes(engine), int64(current)+int64(comm.Rank())*int64(metadataBytesPerRank)); err != nil {
		return 0, fmt.Errorf("archive: write: block index: %w", err)
	}
	current += metadataBytesPerRank * uint64(comm.Size())

	if comm.Rank() == 0 {
		if _, err := w.WriteAt([]byte(lutTitle), int64(current)); err != nil {
			return 0, fmt.Errorf("archive: write: lut title: %w", err)
		}
	}
	current += uint64(len(lutTitle))

	lutBytes := make([]byte, sizeofHeaderLUT)
	engine.PutUint64(lutBytes[:8], lut.AggregateBytes)
	engine.PutUint32(lutBytes[8:12], uint32(lut.NChunks))
	if _, err := w.WriteAt(lutBytes, int64(current)+int64(comm.Rank())*int64(sizeofHeaderLUT)); err != nil {
		return 0, fmt.Errorf("archive: write: header lut: %w", err)
	}

	return globalHeaderDisplacement, nil
}

func buildHeader(topology grid.Topology, cfg Config) Header {
	global := topology.GlobalBlockCounts()
	resident := int32(len(topology.ResidentBlocks()))

	subZ := int32(0)
	if global.X > 0 && global.Y > 0 {
		subZ = resident / (global.X * global.Y)
	}

	return Header{
		BlockEdge:       cfg.BlockEdge,
		Blocks:          global,
		Extent:          topology.Extent(),
		SubdomainBlocks: grid.Index3{X: global.X, Y: global.Y, Z: subZ},
		HalfFloat:       cfg.HalfFloat,
		Codec:           cfg.Codec,
		Precision:       cfg.Precision,
		Entropy:         cfg.Entropy,
	}
}
