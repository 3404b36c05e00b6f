package entropy

import "github.com/klauspost/compress/s2"

// S2Compressor wraps klauspost/compress/s2, a fork of Snappy tuned for
// throughput, used when the entropy stage must not become the flush
// bottleneck at the expense of compression ratio.
type S2Compressor struct{}

var _ byteCodec = (*S2Compressor)(nil)

// NewS2Compressor creates a new S2 compressor with default settings.
func NewS2Compressor() S2Compressor {
	return S2Compressor{}
}

// Compress compresses the input data using S2 compression.
func (c S2Compressor) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	return s2.Encode(nil, data), nil
}

// Decompress decompresses the input data using S2 decompression.
func (c S2Compressor) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	return s2.Decode(nil, data)
}
