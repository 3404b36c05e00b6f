package codec_test

import (
	"math"
	"testing"

	"github.com/blockzip/blockzip/codec"
	"github.com/stretchr/testify/require"
)

func smoothCube(edge int) []float64 {
	cube := make([]float64, edge*edge*edge)
	for z := 0; z < edge; z++ {
		for y := 0; y < edge; y++ {
			for x := 0; x < edge; x++ {
				cube[x+edge*(y+edge*z)] = math.Sin(float64(x)/3) + math.Cos(float64(y)/5) + float64(z)*0.1
			}
		}
	}

	return cube
}

func TestCreate(t *testing.T) {
	for _, name := range []string{"identity", "wavelet", "fpzip", "zfp", "sz"} {
		p, err := codec.Create(name)
		require.NoError(t, err)
		require.Equal(t, name, p.Name())
	}

	_, err := codec.Create("nonexistent")
	require.Error(t, err)
}

func TestRoundTrip(t *testing.T) {
	cases := []struct {
		name      string
		precision float64
		tol       float64
	}{
		{"identity", 0, 0},
		{"wavelet", 1e-6, 1e-4},
		{"fpzip", 20, 1e-2},
		{"zfp", 1e-6, 1e-5},
		{"sz", 1e-6, 1e-5},
	}

	edge := 8
	cube := smoothCube(edge)

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := codec.Create(tc.name)
			require.NoError(t, err)

			encoded, err := p.Compress(cube, tc.precision)
			require.NoError(t, err)
			require.NotEmpty(t, encoded)

			decoded, err := p.Decompress(encoded, tc.precision)
			require.NoError(t, err)
			require.Len(t, decoded, len(cube))

			for i := range cube {
				require.InDelta(t, cube[i], decoded[i], tc.tol+1e-9, "sample %d", i)
			}
		})
	}
}

func TestNames(t *testing.T) {
	names := codec.Names()
	require.Len(t, names, 5)
}
