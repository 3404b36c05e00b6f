package local

import (
	"fmt"

	"github.com/blockzip/blockzip/grid"
)

// SampleFunc computes one sample of one channel of one block, in the
// block-local coordinate system (ix, iy, iz each in [0, block.Edge)).
type SampleFunc func(block grid.Block, channel, ix, iy, iz int) float64

// Streamer is an in-process grid.Streamer: it calls a SampleFunc to
// fill each requested cube, standing in for the "numerical payload"
// collaborator spec.md delegates to the simulation code.
type Streamer struct {
	channels int
	sample   SampleFunc
}

var _ grid.Streamer = (*Streamer)(nil)

// NewStreamer creates a Streamer with channels available channels, each
// filled by calling sample.
func NewStreamer(channels int, sample SampleFunc) *Streamer {
	return &Streamer{channels: channels, sample: sample}
}

func (s *Streamer) ChannelCount() int { return s.channels }

func (s *Streamer) Extract(block grid.Block, channel int, out []float64) error {
	if channel < 0 || channel >= s.channels {
		return fmt.Errorf("grid/local: channel %d out of range [0,%d)", channel, s.channels)
	}

	edge := block.Edge
	need := edge * edge * edge
	if len(out) < need {
		return fmt.Errorf("grid/local: extract: out buffer length %d smaller than %d", len(out), need)
	}

	for iz := 0; iz < edge; iz++ {
		for iy := 0; iy < edge; iy++ {
			for ix := 0; ix < edge; ix++ {
				out[ix+edge*(iy+edge*iz)] = s.sample(block, channel, ix, iy, iz)
			}
		}
	}

	return nil
}

// ConstantField returns a SampleFunc producing the same value for every
// sample, used by tests exercising P1/P2 with a trivially predictable
// field.
func ConstantField(value float64) SampleFunc {
	return func(grid.Block, int, int, int, int) float64 { return value }
}
