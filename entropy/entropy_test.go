package entropy_test

import (
	"math/rand"
	"testing"

	"github.com/blockzip/blockzip/entropy"
	"github.com/blockzip/blockzip/errs"
	"github.com/stretchr/testify/require"
)

func TestCreateUnknownBackendFails(t *testing.T) {
	_, err := entropy.Create("bzip2")
	require.Error(t, err)
	require.ErrorIs(t, err, errs.ErrUnknownEntropy)
}

func TestRoundTripEveryBackend(t *testing.T) {
	// Highly repetitive payload so every backend, including lz4, can
	// actually produce a smaller-or-equal-length block.
	payload := make([]byte, 4096)
	for i := range payload {
		payload[i] = byte(i % 7)
	}

	for _, name := range []string{"none", "deflate", "lz4", "zstd", "s2"} {
		t.Run(name, func(t *testing.T) {
			coder, err := entropy.Create(name)
			require.NoError(t, err)
			require.Equal(t, name, coder.Name())

			buf := make([]byte, len(payload)*2+64)
			n := copy(buf, payload)

			zlen, err := coder.EncodeInPlace(buf, n, len(buf))
			require.NoError(t, err)

			out := make([]byte, len(payload))
			dn, err := coder.Decode(buf[:zlen], out)
			require.NoError(t, err)
			require.Equal(t, payload, out[:dn])
		})
	}
}

func TestLZ4RejectsIncompressibleBlock(t *testing.T) {
	coder, err := entropy.Create("lz4")
	require.NoError(t, err)

	// High-entropy random data: lz4's block compressor returns n==0
	// rather than expanding the output, which must surface as an error
	// instead of a silently truncated, unrecoverable chunk.
	rng := rand.New(rand.NewSource(1))
	payload := make([]byte, 256)
	rng.Read(payload)

	buf := make([]byte, len(payload)*2+64)
	n := copy(buf, payload)

	_, err = coder.EncodeInPlace(buf, n, len(buf))
	require.Error(t, err)
	require.Equal(t, errs.KindResource, errs.KindOf(err))
}

func TestEncodeInPlaceRejectsOverflow(t *testing.T) {
	coder, err := entropy.Create("none")
	require.NoError(t, err)

	buf := make([]byte, 4)
	_, err = coder.EncodeInPlace(buf, 4, 2)
	require.Error(t, err)
	require.Equal(t, errs.KindResource, errs.KindOf(err))
}
