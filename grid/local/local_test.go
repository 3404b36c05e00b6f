package local_test

import (
	"context"
	"sync"
	"testing"

	"github.com/blockzip/blockzip/grid"
	"github.com/blockzip/blockzip/grid/local"
	"github.com/stretchr/testify/require"
)

func TestCommunicatorExclusivePrefixSum(t *testing.T) {
	comms := local.NewGroup(3, false)

	values := []uint64{10, 20, 30}
	want := []uint64{0, 10, 30}

	got := make([]uint64, 3)
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := comms[i].ExclusivePrefixSum(context.Background(), values[i])
			require.NoError(t, err)
			got[i] = r
		}(i)
	}
	wg.Wait()

	require.Equal(t, want, got)
}

func TestCommunicatorBroadcast(t *testing.T) {
	comms := local.NewGroup(4, true)

	got := make([]uint64, 4)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := comms[i].Broadcast(context.Background(), 2, 99)
			require.NoError(t, err)
			got[i] = r
		}(i)
	}
	wg.Wait()

	for _, v := range got {
		require.Equal(t, uint64(99), v)
	}
	require.True(t, comms[0].CollectiveIO())
}

func TestTopologyPartitionsAndStreams(t *testing.T) {
	counts := grid.Index3{X: 2, Y: 2, Z: 4}

	top0, err := local.NewTopology(0, 2, counts, 4, 1, [3]float64{1, 1, 1})
	require.NoError(t, err)
	top1, err := local.NewTopology(1, 2, counts, 4, 1, [3]float64{1, 1, 1})
	require.NoError(t, err)

	require.Len(t, top0.ResidentBlocks(), 8)
	require.Len(t, top1.ResidentBlocks(), 8)

	seen := map[int32]bool{}
	for _, b := range append(top0.ResidentBlocks(), top1.ResidentBlocks()...) {
		require.False(t, seen[b.GlobalID], "duplicate global id %d", b.GlobalID)
		seen[b.GlobalID] = true
	}
	require.Len(t, seen, 16)

	streamer := local.NewStreamer(1, local.ConstantField(3.5))
	out := make([]float64, 4*4*4)
	require.NoError(t, streamer.Extract(top0.ResidentBlocks()[0], 0, out))
	for _, v := range out {
		require.Equal(t, 3.5, v)
	}
}

func TestTopologyRejectsUnevenSplit(t *testing.T) {
	counts := grid.Index3{X: 1, Y: 1, Z: 3}
	_, err := local.NewTopology(0, 2, counts, 2, 1, [3]float64{1, 1, 1})
	require.Error(t, err)
}
