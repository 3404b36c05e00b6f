// Package codec implements the Codec Plugin component: the lossy,
// per-block numerical transform applied to a sample cube before its
// output is handed to the entropy stage. Every plugin honors the same
// contract regardless of the underlying algorithm, so the Block Pipeline
// never special-cases one over another.
package codec

import (
	"fmt"

	"github.com/blockzip/blockzip/errs"
)

// Plugin compresses and decompresses a single block's flattened,
// row-major sample cube under a precision knob whose meaning is
// plugin-specific (a quantization step, a mantissa-bit count, an
// absolute error bound — each plugin documents its own).
type Plugin interface {
	// Compress transforms cube into a lossy-coded byte payload. The
	// caller owns cube after this call returns; the plugin must not
	// retain it.
	Compress(cube []float64, precision float64) (data []byte, err error)

	// Decompress reconstructs a sample cube from data produced by
	// Compress with the same precision. The returned slice has exactly
	// edge*edge*edge elements, where edge is implied by data's layout.
	Decompress(data []byte, precision float64) (cube []float64, err error)

	// Name returns the plugin's short identifier, written into the
	// ASCII header's "Codec:" line and validated on read.
	Name() string
}

// builtinPlugins is the name-keyed registry of built-in Codec Plugins,
// grounded on the teacher's builtinCodecs map.
var builtinPlugins = map[string]Plugin{}

func register(p Plugin) {
	builtinPlugins[p.Name()] = p
}

// Create is a factory function that returns the Plugin registered under
// name, or errs.ErrUnknownCodec if name is not one of the built-in
// plugins.
func Create(name string) (Plugin, error) {
	p, ok := builtinPlugins[name]
	if !ok {
		return nil, fmt.Errorf("codec: %q: %w", name, errs.ErrUnknownCodec)
	}

	return p, nil
}

// Names returns the list of built-in plugin names, in no particular
// order.
func Names() []string {
	names := make([]string, 0, len(builtinPlugins))
	for name := range builtinPlugins {
		names = append(names, name)
	}

	return names
}
