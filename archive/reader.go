package archive

import (
	"fmt"
	"io"

	"github.com/blockzip/blockzip/blockindex"
	"github.com/blockzip/blockzip/codec"
	"github.com/blockzip/blockzip/endian"
	"github.com/blockzip/blockzip/entropy"
	"github.com/blockzip/blockzip/errs"
	"github.com/blockzip/blockzip/grid"
	"github.com/blockzip/blockzip/internal/options"
	"github.com/blockzip/blockzip/ocean"
)

// readerConfig holds the optional cross-checks Open can perform against
// a caller's expected runtime configuration, the "reader fed an archive
// whose header names a different codec" scenario spec.md's examples
// call out.
type readerConfig struct {
	expectCodec   string
	expectEntropy string
	expectEdge    int
}

// ReaderOption configures Open.
type ReaderOption = options.Option[*readerConfig]

// WithExpectedCodec fails Open with errs.ErrCodecMismatch if the
// archive's header names a different codec plugin.
func WithExpectedCodec(name string) ReaderOption {
	return options.NoError(func(c *readerConfig) { c.expectCodec = name })
}

// WithExpectedEntropy fails Open with errs.ErrEntropyMismatch if the
// archive's header names a different entropy backend.
func WithExpectedEntropy(name string) ReaderOption {
	return options.NoError(func(c *readerConfig) { c.expectEntropy = name })
}

// WithExpectedBlockEdge fails Open with errs.ErrBlockSizeMismatch if the
// archive's header records a different block edge.
func WithExpectedBlockEdge(edge int) ReaderOption {
	return options.NoError(func(c *readerConfig) { c.expectEdge = edge })
}

// Reader holds the fully-loaded index of an archive: its ASCII header,
// every Block Metadata Record with chunk ids rewritten to file-global,
// and the file-absolute chunk offset table, built by Open per spec.md
// §4.7 steps (a)-(e). Fetch then performs the random-access read.
type Reader struct {
	r          io.ReaderAt
	header     Header
	globalDisp uint64

	chunkOffsets []uint64
	index        map[grid.Index3]blockindex.Record

	plugin codec.Plugin
	coder  entropy.Codec
}

// Header returns the archive's parsed ASCII header.
func (rd *Reader) Header() Header { return rd.header }

// BlockCoords returns the 3-D coordinate of every block the archive's
// index knows about, in no particular order. Used by tools that walk
// every resident block (e.g. a diff against another archive) rather
// than fetching one coordinate at a time.
func (rd *Reader) BlockCoords() []grid.Index3 {
	coords := make([]grid.Index3, 0, len(rd.index))
	for ix := range rd.index {
		coords = append(coords, ix)
	}

	return coords
}

// Open performs the sequential index load: mini-header, ASCII header,
// every rank's block index array, every rank's HeaderLUT, and the
// per-rank chunk LUTs trailing each rank's byte ocean — reconstructing
// one global, sentinel-terminated chunk offset table and patching every
// Record's chunk id from rank-local to global as it goes (spec.md §4.7
// step d).
func Open(r io.ReaderAt, opts ...ReaderOption) (*Reader, error) {
	cfg := &readerConfig{}
	if err := options.Apply(cfg, opts...); err != nil {
		return nil, fmt.Errorf("archive: open: %w", err)
	}

	engine := endian.GetLittleEndianEngine()

	var miniBuf [sizeofSizeT]byte
	if _, err := r.ReadAt(miniBuf[:], 0); err != nil {
		return nil, fmt.Errorf("archive: open: mini-header: %w", err)
	}
	globalDisp := engine.Uint64(miniBuf[:])

	if err := readBannerAt(r, sizeofSizeT, oceanTitle); err != nil {
		return nil, fmt.Errorf("archive: open: %w", err)
	}

	header, err := ParseHeader(io.NewSectionReader(r, int64(globalDisp), 1<<16))
	if err != nil {
		return nil, fmt.Errorf("archive: open: %w", err)
	}

	if header.BigEndian {
		return nil, fmt.Errorf("archive: open: header Endianess is big, reader is little-endian: %w", errs.ErrEndianMismatch)
	}
	if cfg.expectCodec != "" && cfg.expectCodec != header.Codec {
		return nil, fmt.Errorf("archive: open: archive codec %q, expected %q: %w", header.Codec, cfg.expectCodec, errs.ErrCodecMismatch)
	}
	if cfg.expectEntropy != "" && cfg.expectEntropy != header.Entropy {
		return nil, fmt.Errorf("archive: open: archive encoder %q, expected %q: %w", header.Entropy, cfg.expectEntropy, errs.ErrEntropyMismatch)
	}
	if cfg.expectEdge != 0 && cfg.expectEdge != header.BlockEdge {
		return nil, fmt.Errorf("archive: open: archive block edge %d, expected %d: %w", header.BlockEdge, cfg.expectEdge, errs.ErrBlockSizeMismatch)
	}

	plugin, err := codec.Create(header.Codec)
	if err != nil {
		return nil, fmt.Errorf("archive: open: %w", err)
	}

	coder, err := entropy.Create(header.Entropy)
	if err != nil {
		return nil, fmt.Errorf("archive: open: %w", err)
	}

	headerEnd := int64(globalDisp) + int64(len(header.Bytes()))

	nblocks := int(header.Blocks.X) * int(header.Blocks.Y) * int(header.Blocks.Z)
	recordBytes := make([]byte, blockindex.RecordSize*nblocks)
	if _, err := r.ReadAt(recordBytes, headerEnd); err != nil {
		return nil, fmt.Errorf("archive: open: block index: %w", err)
	}

	table, err := blockindex.ParseTable(recordBytes, nblocks, engine)
	if err != nil {
		return nil, fmt.Errorf("archive: open: %w", err)
	}

	bps := int(header.SubdomainBlocks.X) * int(header.SubdomainBlocks.Y) * int(header.SubdomainBlocks.Z)
	if bps <= 0 || nblocks%bps != 0 {
		return nil, fmt.Errorf("archive: open: subdomain block shape inconsistent with global block count: %w", errs.ErrInvalidHeaderSection)
	}
	nranks := nblocks / bps

	lutTitleOffset := headerEnd + int64(nblocks*blockindex.RecordSize)
	if err := readBannerAt(r, lutTitleOffset, lutTitle); err != nil {
		return nil, fmt.Errorf("archive: open: %w", err)
	}

	headerLUTsStart := lutTitleOffset + int64(len(lutTitle))
	headerLUTs := make([]ocean.HeaderLUT, nranks)
	for s := 0; s < nranks; s++ {
		buf := make([]byte, sizeofHeaderLUT)
		if _, err := r.ReadAt(buf, headerLUTsStart+int64(s)*int64(sizeofHeaderLUT)); err != nil {
			return nil, fmt.Errorf("archive: open: header lut %d: %w", s, err)
		}
		headerLUTs[s] = ocean.HeaderLUT{
			AggregateBytes: engine.Uint64(buf[:8]),
			NChunks:        int32(engine.Uint32(buf[8:12])),
		}
	}

	base := uint64(MiniHeaderSize)
	chunkOffsets := make([]uint64, 0, nblocks)
	currBlock := 0
	records := table.Records()

	for s := 0; s < nranks; s++ {
		nglobalchunks := uint64(len(chunkOffsets))
		nchunks := int(headerLUTs[s].NChunks)
		myAmount := headerLUTs[s].AggregateBytes

		lutDataLen := uint64(8 * nchunks)
		if myAmount < lutDataLen {
			return nil, fmt.Errorf("archive: open: rank %d: aggregate bytes %d shorter than its chunk lut: %w", s, myAmount, errs.ErrInvalidHeaderSection)
		}

		lutStart := base + myAmount - lutDataLen
		lutBuf := make([]byte, lutDataLen)
		if _, err := r.ReadAt(lutBuf, int64(lutStart)); err != nil {
			return nil, fmt.Errorf("archive: open: rank %d chunk lut: %w", s, err)
		}

		localOffsets, err := ocean.ParseChunkLUT(lutBuf, nchunks, engine)
		if err != nil {
			return nil, fmt.Errorf("archive: open: rank %d chunk lut: %w", s, err)
		}

		for _, off := range localOffsets {
			chunkOffsets = append(chunkOffsets, base+off)
		}

		for i := 0; i < bps; i++ {
			rec := records[currBlock]
			rec.ChunkID += int32(nglobalchunks)
			table.Set(currBlock, rec)
			currBlock++
		}

		base += myAmount
	}

	if base != globalDisp {
		return nil, fmt.Errorf("archive: open: byte ocean total %d does not reach header displacement %d: %w", base, globalDisp, errs.ErrInvalidHeaderSection)
	}
	chunkOffsets = append(chunkOffsets, base)

	index := make(map[grid.Index3]blockindex.Record, nblocks)
	for _, rec := range table.Records() {
		index[grid.Index3{X: rec.IX, Y: rec.IY, Z: rec.IZ}] = rec
	}

	return &Reader{
		r:            r,
		header:       header,
		globalDisp:   globalDisp,
		chunkOffsets: chunkOffsets,
		index:        index,
		plugin:       plugin,
		coder:        coder,
	}, nil
}
