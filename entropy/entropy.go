// Package entropy implements the Entropy Encoder component: a lossless,
// buffer-size-capped wrapper around a handful of general-purpose
// byte-level compressors, used by the Block Pipeline to shrink each
// rank's byte ocean after the lossy codec.Plugin has run.
package entropy

import (
	"fmt"

	"github.com/blockzip/blockzip/errs"
)

// Compressor compresses a byte slice and returns a newly allocated result.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
}

// Decompressor decompresses a byte slice previously produced by the
// matching Compressor and returns a newly allocated result.
type Decompressor interface {
	Decompress(data []byte) ([]byte, error)
}

// byteCodec combines Compressor and Decompressor; every backend
// implements this in terms of a whole-buffer Compress/Decompress before
// Codec adapts it to the in-place, capacity-checked contract the Block
// Pipeline relies on.
type byteCodec interface {
	Compressor
	Decompressor
}

// Codec is the Entropy Encoder contract (spec.md §4.2): in-place encoding
// of a byte range under a caller-supplied capacity, and capacity-checked
// decoding into an output buffer of known maximum size.
type Codec interface {
	// EncodeInPlace compresses buf[0:length] and writes the result back
	// into buf, returning the new length. It fails with
	// errs.ErrInsufficientSpace if the compressed result would not fit in
	// cap bytes; the caller must then abort the flush (spec.md §4.2: "caller
	// then aborts the flush (fatal)").
	EncodeInPlace(buf []byte, length int, cap int) (int, error)

	// Decode decompresses input and writes the result into out, returning
	// the number of bytes written. It fails with errs.ErrTruncatedStream if
	// the backend rejects input as corrupt (the "none" backend copies input
	// unchanged and rejects nothing), or errs.ErrInsufficientSpace if the
	// decompressed result would not fit in out.
	Decode(input []byte, out []byte) (int, error)

	// Name returns the backend's short identifier, written into the
	// ASCII header's "Encoder:" line and validated on read.
	Name() string
}

// adapter turns a whole-buffer byteCodec into the in-place Codec contract.
type adapter struct {
	name string
	byteCodec
}

func (a *adapter) Name() string { return a.name }

func (a *adapter) EncodeInPlace(buf []byte, length int, cap int) (int, error) {
	out, err := a.Compress(buf[:length])
	if err != nil {
		return 0, fmt.Errorf("entropy: %s: encode: %w", a.name, err)
	}

	if len(out) > cap {
		return 0, fmt.Errorf("entropy: %s: compressed size %d exceeds cap %d: %w", a.name, len(out), cap, errs.ErrInsufficientSpace)
	}

	n := copy(buf, out)

	return n, nil
}

func (a *adapter) Decode(input []byte, out []byte) (int, error) {
	decoded, err := a.Decompress(input)
	if err != nil {
		return 0, fmt.Errorf("entropy: %s: decode: %w: %w", a.name, errs.ErrTruncatedStream, err)
	}

	if len(decoded) > len(out) {
		return 0, fmt.Errorf("entropy: %s: decoded size %d exceeds output buffer %d: %w", a.name, len(decoded), len(out), errs.ErrInsufficientSpace)
	}

	n := copy(out, decoded)

	return n, nil
}

// builtinBackends is the hash-keyed registry of Entropy Encoder backends,
// grounded on the teacher's builtinCodecs map, but keyed by the ASCII
// name recorded in the archive header instead of a packed enum.
var builtinBackends = map[string]Codec{
	"none":    &adapter{name: "none", byteCodec: NoOpCompressor{}},
	"deflate": &adapter{name: "deflate", byteCodec: deflateCompressor{}},
	"lz4":     &adapter{name: "lz4", byteCodec: LZ4Compressor{}},
	"zstd":    &adapter{name: "zstd", byteCodec: ZstdCompressor{}},
	"s2":      &adapter{name: "s2", byteCodec: S2Compressor{}},
}

// Create is a factory function that returns the Codec registered under
// name, or errs.ErrUnknownEntropy if name is not one of the built-in
// backends.
func Create(name string) (Codec, error) {
	codec, ok := builtinBackends[name]
	if !ok {
		return nil, fmt.Errorf("entropy: %q: %w", name, errs.ErrUnknownEntropy)
	}

	return codec, nil
}

// Names returns the built-in backend names in a fixed order (not sorted).
func Names() []string {
	return []string{"none", "deflate", "lz4", "zstd", "s2"}
}
