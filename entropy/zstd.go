package entropy

// ZstdCompressor wraps klauspost/compress/zstd, favoring compression ratio
// over speed, for byte oceans headed to cold storage rather than an
// interactive read path.
type ZstdCompressor struct{}

var _ byteCodec = (*ZstdCompressor)(nil)

// NewZstdCompressor creates a new Zstd compressor with default settings.
func NewZstdCompressor() ZstdCompressor {
	return ZstdCompressor{}
}
