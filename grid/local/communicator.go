package local

import (
	"context"
	"fmt"
	"sync"

	"github.com/blockzip/blockzip/grid"
)

// group is the shared rendezvous state for one simulated communicator:
// every Communicator handle returned by NewGroup points at the same
// group, so a collective call blocks until all ranks have arrived.
// Cancellation/timeouts are out of scope for the collective ops
// themselves (spec.md §5), matching the real MPI calls they stand in
// for; ctx is only checked on entry.
type group struct {
	mu   sync.Mutex
	cond *sync.Cond
	size int

	gen       int
	arrived   int
	values    []uint64
	results   []uint64
	broadcast uint64

	collectiveIO bool
}

// NewGroup creates size simulated ranks sharing one rendezvous group and
// returns one grid.Communicator per rank, indexed by rank number.
// collectiveIO selects whether Communicator.CollectiveIO reports
// write-at-all (true) or write-at (false) semantics to the File
// Assembler.
func NewGroup(size int, collectiveIO bool) []grid.Communicator {
	if size < 1 {
		size = 1
	}

	g := &group{
		size:         size,
		values:       make([]uint64, size),
		results:      make([]uint64, size),
		collectiveIO: collectiveIO,
	}
	g.cond = sync.NewCond(&g.mu)

	comms := make([]grid.Communicator, size)
	for r := 0; r < size; r++ {
		comms[r] = &Communicator{group: g, rank: r}
	}

	return comms
}

// Communicator is the in-process grid.Communicator implementation: one
// handle per simulated rank, all sharing a *group.
type Communicator struct {
	group *group
	rank  int
}

var _ grid.Communicator = (*Communicator)(nil)

func (c *Communicator) Rank() int { return c.rank }
func (c *Communicator) Size() int { return c.group.size }

func (c *Communicator) CollectiveIO() bool { return c.group.collectiveIO }

func (c *Communicator) ExclusivePrefixSum(ctx context.Context, value uint64) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("grid/local: exclusive prefix sum: %w", err)
	}

	g := c.group
	g.mu.Lock()
	defer g.mu.Unlock()

	myGen := g.gen
	g.values[c.rank] = value
	g.arrived++

	if g.arrived == g.size {
		var sum uint64
		for i := 0; i < g.size; i++ {
			g.results[i] = sum
			sum += g.values[i]
		}
		g.arrived = 0
		g.gen++
		g.cond.Broadcast()
	} else {
		for g.gen == myGen {
			g.cond.Wait()
		}
	}

	return g.results[c.rank], nil
}

func (c *Communicator) Broadcast(ctx context.Context, from int, value uint64) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("grid/local: broadcast: %w", err)
	}

	g := c.group
	g.mu.Lock()
	defer g.mu.Unlock()

	myGen := g.gen

	if c.rank == from {
		g.broadcast = value
	}
	g.arrived++

	if g.arrived == g.size {
		g.arrived = 0
		g.gen++
		g.cond.Broadcast()
	} else {
		for g.gen == myGen {
			g.cond.Wait()
		}
	}

	return g.broadcast, nil
}
