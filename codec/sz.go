package codec

import (
	"encoding/binary"
	"fmt"
	"math"
)

// szPlugin approximates SZ's linear-prediction codec: each sample is
// predicted from the previous two reconstructed samples
// (predicted = 2*prev1 - prev2, SZ's default second-order predictor),
// the residual is quantized to the absolute error bound precision, and
// the quantized residuals are varint-encoded. The first two samples of
// the stream have no full predictor history and fall back to
// zeroth/first-order prediction.
//
// Grounded on the retrieved szd_int16.c reference's linear-prediction +
// quantized-residual decode shape, generalized from int16 storage to an
// absolute float64 error bound (the original system passes precision
// through unchanged as sz_abs_acc).
type szPlugin struct{}

func init() { register(szPlugin{}) }

func (szPlugin) Name() string { return "sz" }

func szPredict(cube []float64, i int) float64 {
	switch {
	case i == 0:
		return 0
	case i == 1:
		return cube[0]
	default:
		return 2*cube[i-1] - cube[i-2]
	}
}

func (szPlugin) Compress(cube []float64, precision float64) ([]byte, error) {
	step := precision
	if step <= 0 {
		step = 1e-12
	}

	out := make([]byte, 0, len(cube)*3+binary.MaxVarintLen64)
	var tmp [binary.MaxVarintLen64]byte

	n := binary.PutUvarint(tmp[:], uint64(len(cube)))
	out = append(out, tmp[:n]...)

	reconstructed := make([]float64, len(cube))
	for i, v := range cube {
		predicted := szPredict(reconstructed, i)
		q := int64(math.Round((v - predicted) / step))
		reconstructed[i] = predicted + float64(q)*step

		n := binary.PutVarint(tmp[:], q)
		out = append(out, tmp[:n]...)
	}

	return out, nil
}

func (szPlugin) Decompress(data []byte, precision float64) ([]float64, error) {
	step := precision
	if step <= 0 {
		step = 1e-12
	}

	count64, n := binary.Uvarint(data)
	if n <= 0 {
		return nil, fmt.Errorf("codec: sz: malformed count prefix")
	}
	data = data[n:]

	cube := make([]float64, int(count64))

	for i := range cube {
		q, n := binary.Varint(data)
		if n <= 0 {
			return nil, fmt.Errorf("codec: sz: truncated residual stream")
		}
		data = data[n:]

		predicted := szPredict(cube, i)
		cube[i] = predicted + float64(q)*step
	}

	return cube, nil
}
