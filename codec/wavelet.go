package codec

import (
	"encoding/binary"
	"fmt"
	"math"
)

// waveletPlugin applies a single-level 3-D Haar lifting transform
// followed by uniform scalar quantization, the "wavelet-on-interval
// codec with integer quantization" described alongside the original
// system's WaveletCompressor/wtype knob
// (original source: SerializerIO_WaveletCompression_MPI_Simple.h,
// _USE_WAVZ_ branch). precision is the quantization step: coefficients
// are rounded to the nearest multiple of precision before being
// zigzag/varint-encoded. precision<=0 falls back to a 1e-12 step, which
// is near-lossless but not bit-exact (and gives the worst compression
// ratio of the roster). There is no half-float storage mode.
type waveletPlugin struct{}

func init() { register(waveletPlugin{}) }

func (waveletPlugin) Name() string { return "wavelet" }

// haarLift applies one level of the Haar lifting step (pairwise
// average/difference) along a single axis of a cube stored row-major
// with the given stride and count of pairs.
func haarLift(cube []float64, stride, start, count int) {
	for i := 0; i < count; i++ {
		a := start + 2*i*stride
		b := a + stride
		if b >= len(cube) {
			continue
		}

		avg := (cube[a] + cube[b]) / 2
		diff := cube[a] - cube[b]
		cube[a] = avg
		cube[b] = diff
	}
}

func haarUnlift(cube []float64, stride, start, count int) {
	for i := 0; i < count; i++ {
		a := start + 2*i*stride
		b := a + stride
		if b >= len(cube) {
			continue
		}

		avg := cube[a]
		diff := cube[b]
		cube[a] = avg + diff/2
		cube[b] = avg - diff/2
	}
}

func cubeEdge(n int) (int, error) {
	edge := int(math.Round(math.Cbrt(float64(n))))
	if edge*edge*edge != n {
		return 0, fmt.Errorf("codec: wavelet: sample count %d is not a perfect cube", n)
	}

	return edge, nil
}

func (waveletPlugin) Compress(cube []float64, precision float64) ([]byte, error) {
	edge, err := cubeEdge(len(cube))
	if err != nil {
		return nil, err
	}

	work := make([]float64, len(cube))
	copy(work, cube)

	if edge > 1 {
		for z := 0; z < edge; z++ {
			for y := 0; y < edge; y++ {
				base := edge * (y + edge*z)
				haarLift(work, 1, base, edge/2)
			}
		}
		for z := 0; z < edge; z++ {
			for x := 0; x < edge; x++ {
				base := edge*edge*z + x
				haarLift(work, edge, base, edge/2)
			}
		}
		for y := 0; y < edge; y++ {
			for x := 0; x < edge; x++ {
				base := edge*y + x
				haarLift(work, edge*edge, base, edge/2)
			}
		}
	}

	step := precision
	if step <= 0 {
		step = 1e-12
	}

	out := make([]byte, 0, len(work)*5+binary.MaxVarintLen64)
	var tmp [binary.MaxVarintLen64]byte

	n := binary.PutUvarint(tmp[:], uint64(edge))
	out = append(out, tmp[:n]...)

	for _, v := range work {
		q := int64(math.Round(v / step))
		n := binary.PutVarint(tmp[:], q)
		out = append(out, tmp[:n]...)
	}

	return out, nil
}

func (waveletPlugin) Decompress(data []byte, precision float64) ([]float64, error) {
	step := precision
	if step <= 0 {
		step = 1e-12
	}

	edge64, n := binary.Uvarint(data)
	if n <= 0 {
		return nil, fmt.Errorf("codec: wavelet: malformed edge prefix")
	}
	data = data[n:]
	edge := int(edge64)

	total := edge * edge * edge
	work := make([]float64, 0, total)

	for len(work) < total {
		q, n := binary.Varint(data)
		if n <= 0 {
			return nil, fmt.Errorf("codec: wavelet: truncated coefficient stream")
		}
		data = data[n:]
		work = append(work, float64(q)*step)
	}

	if edge > 1 {
		for y := 0; y < edge; y++ {
			for x := 0; x < edge; x++ {
				base := edge*y + x
				haarUnlift(work, edge*edge, base, edge/2)
			}
		}
		for z := 0; z < edge; z++ {
			for x := 0; x < edge; x++ {
				base := edge*edge*z + x
				haarUnlift(work, edge, base, edge/2)
			}
		}
		for z := 0; z < edge; z++ {
			for y := 0; y < edge; y++ {
				base := edge * (y + edge*z)
				haarUnlift(work, 1, base, edge/2)
			}
		}
	}

	return work, nil
}
