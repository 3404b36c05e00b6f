package codec

import (
	"encoding/binary"
	"fmt"
	"math"
)

// identityPlugin is the "no-loss" codec: it stores the cube bit-exact,
// ignoring precision entirely. Grounded on the entropy package's
// NoOpCompressor — here the bypass is of the lossy stage rather than the
// lossless one.
type identityPlugin struct{}

func init() { register(identityPlugin{}) }

func (identityPlugin) Name() string { return "identity" }

func (identityPlugin) Compress(cube []float64, _ float64) ([]byte, error) {
	out := make([]byte, 8*len(cube))
	for i, v := range cube {
		binary.LittleEndian.PutUint64(out[8*i:], math.Float64bits(v))
	}

	return out, nil
}

func (identityPlugin) Decompress(data []byte, _ float64) ([]float64, error) {
	if len(data)%8 != 0 {
		return nil, fmt.Errorf("codec: identity: data length %d is not a multiple of 8", len(data))
	}

	n := len(data) / 8
	cube := make([]float64, n)
	for i := range cube {
		cube[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[8*i:]))
	}

	return cube, nil
}
