package codec

import (
	"encoding/binary"
	"fmt"
	"math"
)

// zfpBlockEdge is the block-floating-point tile size zfp itself uses
// (4x4x4), kept here so small-scale structure within a block still gets
// its own quantization baseline instead of one global scale for the
// whole cube.
const zfpBlockEdge = 4

// zfpPlugin approximates zfp's fixed-accuracy mode: the cube is tiled
// into 4x4x4 sub-blocks, each sub-block's mean is subtracted and stored
// as a float64, and residuals are quantized to the absolute error bound
// precision and varint-encoded. Grounded on
// SerializerIO_WaveletCompression_MPI_Simple.h's _USE_ZFP_ branch, where
// precision is passed through unchanged as zfp_acc, an absolute accuracy
// bound rather than a relative one.
type zfpPlugin struct{}

func init() { register(zfpPlugin{}) }

func (zfpPlugin) Name() string { return "zfp" }

func (zfpPlugin) Compress(cube []float64, precision float64) ([]byte, error) {
	edge, err := cubeEdge(len(cube))
	if err != nil {
		return nil, err
	}

	step := precision
	if step <= 0 {
		step = 1e-12
	}

	out := make([]byte, 0, len(cube)*4)
	var tmp [8]byte

	binary.LittleEndian.PutUint32(tmp[:4], uint32(edge))
	out = append(out, tmp[:4]...)

	var varintTmp [binary.MaxVarintLen64]byte

	for bz := 0; bz < edge; bz += zfpBlockEdge {
		for by := 0; by < edge; by += zfpBlockEdge {
			for bx := 0; bx < edge; bx += zfpBlockEdge {
				values := zfpGatherBlock(cube, edge, bx, by, bz)

				var sum float64
				for _, v := range values {
					sum += v
				}
				mean := sum / float64(len(values))

				binary.LittleEndian.PutUint64(tmp[:8], math.Float64bits(mean))
				out = append(out, tmp[:8]...)

				for _, v := range values {
					q := int64(math.Round((v - mean) / step))
					n := binary.PutVarint(varintTmp[:], q)
					out = append(out, varintTmp[:n]...)
				}
			}
		}
	}

	return out, nil
}

func zfpGatherBlock(cube []float64, edge, bx, by, bz int) []float64 {
	values := make([]float64, 0, zfpBlockEdge*zfpBlockEdge*zfpBlockEdge)

	for z := bz; z < bz+zfpBlockEdge && z < edge; z++ {
		for y := by; y < by+zfpBlockEdge && y < edge; y++ {
			for x := bx; x < bx+zfpBlockEdge && x < edge; x++ {
				values = append(values, cube[x+edge*(y+edge*z)])
			}
		}
	}

	return values
}

func zfpScatterBlock(cube []float64, edge, bx, by, bz int, values []float64) {
	i := 0
	for z := bz; z < bz+zfpBlockEdge && z < edge; z++ {
		for y := by; y < by+zfpBlockEdge && y < edge; y++ {
			for x := bx; x < bx+zfpBlockEdge && x < edge; x++ {
				cube[x+edge*(y+edge*z)] = values[i]
				i++
			}
		}
	}
}

func (zfpPlugin) Decompress(data []byte, precision float64) ([]float64, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("codec: zfp: truncated header")
	}

	step := precision
	if step <= 0 {
		step = 1e-12
	}

	edge := int(binary.LittleEndian.Uint32(data[:4]))
	data = data[4:]

	cube := make([]float64, edge*edge*edge)

	for bz := 0; bz < edge; bz += zfpBlockEdge {
		for by := 0; by < edge; by += zfpBlockEdge {
			for bx := 0; bx < edge; bx += zfpBlockEdge {
				if len(data) < 8 {
					return nil, fmt.Errorf("codec: zfp: truncated stream")
				}
				mean := math.Float64frombits(binary.LittleEndian.Uint64(data[:8]))
				data = data[8:]

				count := zfpBlockSampleCount(edge, bx, by, bz)
				values := make([]float64, count)
				for i := 0; i < count; i++ {
					q, n := binary.Varint(data)
					if n <= 0 {
						return nil, fmt.Errorf("codec: zfp: truncated residual stream")
					}
					data = data[n:]
					values[i] = mean + float64(q)*step
				}

				zfpScatterBlock(cube, edge, bx, by, bz, values)
			}
		}
	}

	return cube, nil
}

func zfpBlockSampleCount(edge, bx, by, bz int) int {
	xs := zfpBlockEdge
	if bx+zfpBlockEdge > edge {
		xs = edge - bx
	}
	ys := zfpBlockEdge
	if by+zfpBlockEdge > edge {
		ys = edge - by
	}
	zs := zfpBlockEdge
	if bz+zfpBlockEdge > edge {
		zs = edge - bz
	}

	return xs * ys * zs
}
