package entropy

// NoOpCompressor bypasses compression, used for "none" entropy backend
// when a block's lossy codec already leaves no exploitable redundancy, or
// for debugging a Block Pipeline flush without the entropy stage in the way.
type NoOpCompressor struct{}

var _ byteCodec = (*NoOpCompressor)(nil)

// NewNoOpCompressor creates a new no-operation compressor that bypasses data.
func NewNoOpCompressor() NoOpCompressor {
	return NoOpCompressor{}
}

// Compress returns data unchanged. The returned slice shares the input's
// underlying array; callers must not mutate data afterward.
func (c NoOpCompressor) Compress(data []byte) ([]byte, error) {
	return data, nil
}

// Decompress returns data unchanged.
func (c NoOpCompressor) Decompress(data []byte) ([]byte, error) {
	return data, nil
}
