// Command blockzip-write drives one collective archive write: it builds
// an in-process grid of simulated ranks, fills each rank's resident
// blocks with a synthetic analytic field (standing in for the
// simulation feed spec.md leaves out of scope), runs the Block Pipeline
// over them, and assembles the result into one archive file. Flag
// layout follows the corpus's plain-flag CLI style (falk-nsz-go's
// cmd/nsz).
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/blockzip/blockzip/archive"
	"github.com/blockzip/blockzip/blockindex"
	"github.com/blockzip/blockzip/grid"
	"github.com/blockzip/blockzip/grid/local"
	"github.com/blockzip/blockzip/internal/log"
	"github.com/blockzip/blockzip/ocean"
	"github.com/blockzip/blockzip/pipeline"
	"github.com/blockzip/blockzip/session"
)

func main() {
	out := flag.String("out", "field.bz2", "output archive path")
	blocksFlag := flag.String("blocks", "4x4x4", "global block grid, XxYxZ")
	edge := flag.Int("edge", 32, "block edge length")
	codecName := flag.String("codec", "wavelet", "lossy codec: wavelet|fpzip|zfp|sz|identity")
	threshold := flag.Float64("threshold", 1e-3, "lossy codec precision/threshold")
	entropyName := flag.String("entropy", "zstd", "entropy backend: deflate|lz4|zstd|s2|none")
	halfFloat := flag.Bool("half-float", false, "record HalfFloat: yes in the archive header (informational; samples are still stored as float64)")
	workers := flag.Int("workers", 4, "Block Pipeline workers per rank")
	ranks := flag.Int("ranks", 1, "simulated MPI rank count")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	skipIO := flag.Bool("skip-io", false, "skip the final file write, for benchmarking the pipeline alone")
	flag.Parse()

	if env := os.Getenv("BLOCKZIP_SKIP_IO"); env != "" {
		*skipIO = true
	}

	logger := log.New(os.Stderr, *verbose)

	blocksPerAxis, err := parseIndex3(*blocksFlag)
	if err != nil {
		logger.Error("invalid -blocks", "err", err)
		os.Exit(1)
	}

	if err := run(context.Background(), logger, writeOptions{
		out:           *out,
		blocksPerAxis: blocksPerAxis,
		edge:          *edge,
		codec:         *codecName,
		threshold:     *threshold,
		entropy:       *entropyName,
		halfFloat:     *halfFloat,
		workers:       *workers,
		ranks:         *ranks,
		skipIO:        *skipIO,
	}); err != nil {
		logger.Error("write failed", "err", err)
		os.Exit(1)
	}
}

type writeOptions struct {
	out           string
	blocksPerAxis grid.Index3
	edge          int
	codec         string
	threshold     float64
	entropy       string
	halfFloat     bool
	workers       int
	ranks         int
	skipIO        bool
}

// discardFile is an io.WriterAt that throws every write away, used by
// -skip-io to benchmark the Block Pipeline without touching disk.
type discardFile struct{}

func (discardFile) WriteAt(p []byte, off int64) (int, error) { return len(p), nil }

func run(ctx context.Context, logger *log.Logger, opts writeOptions) error {
	reg := session.NewRegistry()

	var w io.WriterAt
	if opts.skipIO {
		w = discardFile{}
	} else {
		f, err := os.Create(opts.out)
		if err != nil {
			return fmt.Errorf("create %s: %w", opts.out, err)
		}
		defer f.Close()
		w = f
	}

	extent := [3]float64{float64(opts.blocksPerAxis.X), float64(opts.blocksPerAxis.Y), float64(opts.blocksPerAxis.Z)}
	comms := local.NewGroup(opts.ranks, false)

	var wg sync.WaitGroup
	errs := make([]error, opts.ranks)

	for r := 0; r < opts.ranks; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()

			rankLogger := logger.With("rank", r)

			topology, err := local.NewTopology(r, opts.ranks, opts.blocksPerAxis, opts.edge, 1, extent)
			if err != nil {
				errs[r] = fmt.Errorf("rank %d: topology: %w", r, err)
				return
			}

			streamer := local.NewStreamer(1, analyticField)
			blocks := topology.ResidentBlocks()

			ocn := ocean.New(len(blocks)*8*opts.edge*opts.edge*opts.edge + 4*1024*1024)
			table := blockindex.NewTable(len(blocks))

			sessName := fmt.Sprintf("rank-%d", r)
			sess, err := reg.Open(sessName, opts.codec, opts.entropy, opts.threshold)
			if err != nil {
				errs[r] = fmt.Errorf("rank %d: %w", r, err)
				return
			}
			defer reg.Close(sessName)

			pcfg := pipeline.Config{
				Channel:         0,
				Precision:       opts.threshold,
				MaxPayloadBytes: 8*opts.edge*opts.edge*opts.edge + 1024,
				Workers:         opts.workers,
			}
			if err := pipeline.Run(ctx, topology, streamer, sess.Plugin(), sess.Entropy(), ocn, table, pcfg); err != nil {
				errs[r] = fmt.Errorf("rank %d: pipeline: %w", r, err)
				return
			}

			rankLogger.Debug("pipeline complete", "blocks", len(blocks), "chunks", ocn.ChunkCount())

			acfg := archive.Config{
				BlockEdge: opts.edge,
				Codec:     opts.codec,
				Entropy:   opts.entropy,
				Precision: opts.threshold,
				HalfFloat: opts.halfFloat,
			}

			disp, err := archive.Write(ctx, w, comms[r], topology, ocn, table, acfg)
			if err != nil {
				errs[r] = fmt.Errorf("rank %d: assemble: %w", r, err)
				return
			}

			rankLogger.Debug("archive section written", "header_displacement", disp)
		}(r)
	}
	wg.Wait()

	for _, e := range errs {
		if e != nil {
			return e
		}
	}

	logger.Info("archive written", "path", opts.out, "ranks", opts.ranks, "blocks",
		int(opts.blocksPerAxis.X)*int(opts.blocksPerAxis.Y)*int(opts.blocksPerAxis.Z), "skip_io", opts.skipIO)

	return nil
}

// analyticField is a smooth synthetic field (superposed sine waves over
// the global block coordinate) used in place of a real simulation feed.
func analyticField(block grid.Block, _ int, ix, iy, iz int) float64 {
	gx := float64(block.Index.X)*float64(block.Edge) + float64(ix)
	gy := float64(block.Index.Y)*float64(block.Edge) + float64(iy)
	gz := float64(block.Index.Z)*float64(block.Edge) + float64(iz)

	return math.Sin(gx*0.1) + math.Cos(gy*0.13) + 0.5*math.Sin(gz*0.07)
}

func parseIndex3(s string) (grid.Index3, error) {
	parts := strings.Split(strings.ToLower(s), "x")
	if len(parts) != 3 {
		return grid.Index3{}, fmt.Errorf("expected XxYxZ, got %q", s)
	}

	vals := make([]int64, 3)
	for i, p := range parts {
		v, err := strconv.ParseInt(strings.TrimSpace(p), 10, 32)
		if err != nil {
			return grid.Index3{}, fmt.Errorf("expected XxYxZ, got %q: %w", s, err)
		}
		vals[i] = v
	}

	return grid.Index3{X: int32(vals[0]), Y: int32(vals[1]), Z: int32(vals[2])}, nil
}
