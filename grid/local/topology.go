package local

import (
	"fmt"

	"github.com/blockzip/blockzip/errs"
	"github.com/blockzip/blockzip/grid"
)

// Topology is an in-process grid.Topology: the global block grid is
// partitioned into contiguous Z-slabs, one slab per rank, a static split
// in the same spirit as the teacher's `#pragma omp for` static
// partitioning used elsewhere in the corpus for per-thread work splits.
type Topology struct {
	rank, size    int
	blocksPerAxis grid.Index3
	edge          int
	channels      int
	extent        [3]float64
	resident      []grid.Block
}

var _ grid.Topology = (*Topology)(nil)

// NewTopology builds the resident block set for rank out of size ranks,
// given the global per-axis block counts, each block's edge/channel
// count, and the domain's physical extent. It returns
// errs.ErrRankBlockCountMismatch if the Z axis does not divide evenly
// across ranks, since the archive's block-index layout (spec.md §4.6
// step 5) requires every rank to own the same number of blocks.
func NewTopology(rank, size int, blocksPerAxis grid.Index3, edge, channels int, extent [3]float64) (*Topology, error) {
	if size < 1 {
		return nil, fmt.Errorf("grid/local: size must be >= 1")
	}
	if rank < 0 || rank >= size {
		return nil, fmt.Errorf("grid/local: rank %d out of range [0,%d)", rank, size)
	}

	zCount := int(blocksPerAxis.Z)
	if zCount%size != 0 {
		return nil, fmt.Errorf("grid/local: %d Z-blocks do not divide evenly across %d ranks: %w", zCount, size, errs.ErrRankBlockCountMismatch)
	}

	zPerRank := zCount / size
	zStart := rank * zPerRank

	t := &Topology{
		rank:          rank,
		size:          size,
		blocksPerAxis: blocksPerAxis,
		edge:          edge,
		channels:      channels,
		extent:        extent,
	}

	bx, by := int(blocksPerAxis.X), int(blocksPerAxis.Y)
	for z := zStart; z < zStart+zPerRank; z++ {
		for y := 0; y < by; y++ {
			for x := 0; x < bx; x++ {
				globalID := int32(x + bx*(y+by*z))
				t.resident = append(t.resident, grid.Block{
					GlobalID: globalID,
					Index:    grid.Index3{X: int32(x), Y: int32(y), Z: int32(z)},
					Edge:     edge,
					Channels: channels,
				})
			}
		}
	}

	return t, nil
}

func (t *Topology) ResidentBlocks() []grid.Block { return t.resident }

func (t *Topology) GlobalBlockCounts() grid.Index3 { return t.blocksPerAxis }

func (t *Topology) Extent() [3]float64 { return t.extent }
