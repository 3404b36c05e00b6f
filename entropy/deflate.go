package entropy

import (
	"bytes"
	"io"
	"sync"

	"github.com/klauspost/compress/flate"
)

// deflateWriterPool pools flate.Writer instances at the default
// compression level, the "deflate-style general-purpose backend" the
// entropy stage falls back to when a byte ocean needs broad compatibility
// over the speed of lz4/s2 or the ratio of zstd.
var deflateWriterPool = sync.Pool{
	New: func() any {
		w, _ := flate.NewWriter(io.Discard, flate.DefaultCompression)
		return w
	},
}

type deflateCompressor struct{}

var _ byteCodec = (*deflateCompressor)(nil)

// Compress compresses data using DEFLATE at the default compression level.
func (c deflateCompressor) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var buf bytes.Buffer

	w, _ := deflateWriterPool.Get().(*flate.Writer)
	defer deflateWriterPool.Put(w)

	w.Reset(&buf)

	if _, err := w.Write(data); err != nil {
		return nil, err
	}

	if err := w.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decompress inflates data previously produced by Compress.
func (c deflateCompressor) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()

	return io.ReadAll(r)
}
