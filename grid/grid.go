// Package grid defines the small collaborator contracts the Block
// Pipeline and File Assembler are polymorphic over: the MPI-style
// cartesian topology that owns a resident block set, the numerical
// payload supplier that fills one block's sample cube, and the
// collective communicator the File Assembler uses for the cross-process
// prefix scan and broadcast. Real deployments supply their own
// implementations backed by whatever MPI binding or domain decomposition
// library they already use; grid/local is the in-process reference
// implementation used by this module's own tests and CLIs.
package grid

import "context"

// Index3 is a 3-D block coordinate, unique across the global grid.
type Index3 struct {
	X, Y, Z int32
}

// Block identifies one resident block: its dense global id, its 3-D
// coordinate, and the edge length and channel count of its sample cube.
type Block struct {
	GlobalID int32
	Index    Index3
	Edge     int
	Channels int
}

// Topology supplies the set of resident blocks a process owns, the
// 3-D index of each, and the global per-axis block counts — the
// "MPI cartesian topology and its grid-block ownership" spec.md names as
// an out-of-scope collaborator, reduced to the small capability set the
// core actually consumes.
type Topology interface {
	// ResidentBlocks returns this process's resident block set, in a
	// stable order that callers may rely on for deterministic tests.
	ResidentBlocks() []Block

	// GlobalBlockCounts returns the number of blocks per axis across
	// the entire grid (all ranks combined).
	GlobalBlockCounts() Index3

	// Extent returns the per-axis physical extent of the domain,
	// written into the ASCII header's "Extent:" line.
	Extent() [3]float64
}

// Streamer supplies one channel of one block's sample data, the
// "numerical payload" collaborator spec.md names as out of scope,
// reduced to the capability set Design Notes §9 calls for: channel
// count plus an extract-into-cube operation.
type Streamer interface {
	// ChannelCount returns the number of channels available per block.
	ChannelCount() int

	// Extract fills out (length block.Edge^3, row-major, x fastest)
	// with channel's samples for block. out is caller-owned scratch
	// space, typically from internal/bufpool.GetCube.
	Extract(block Block, channel int, out []float64) error
}

// Communicator is the collective-operation contract the File Assembler
// needs from the grid's MPI-style communicator: an exclusive prefix sum
// over per-rank byte counts, and a broadcast of the resulting total.
// grid/local implements this in-process with goroutines standing in for
// ranks; a production binding would wrap real MPI_Exscan/MPI_Bcast
// calls.
type Communicator interface {
	// Rank returns this communicator handle's 0-based rank.
	Rank() int

	// Size returns the total number of ranks in the communicator.
	Size() int

	// ExclusivePrefixSum performs a collective exclusive prefix sum of
	// value across all ranks (rank 0 receives 0) and returns this
	// rank's result. It blocks until every rank has called it.
	ExclusivePrefixSum(ctx context.Context, value uint64) (uint64, error)

	// Broadcast performs a collective broadcast: the value contributed
	// by the rank named "from" is delivered to every rank's return
	// value, including from's own. It blocks until every rank has
	// called it.
	Broadcast(ctx context.Context, from int, value uint64) (uint64, error)

	// CollectiveIO reports whether this communicator prefers file
	// writes as a single collective open (write-at-all) or as
	// independent per-rank writes (write-at) — Design Notes §9's
	// documented either-is-acceptable choice. archive.Write does not
	// consult it: it always issues independent WriteAt calls at
	// explicit offsets.
	CollectiveIO() bool
}
