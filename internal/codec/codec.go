// Package codec defines the destination image and decompressor contracts
// shared by the payload decoders, and a name-keyed registry of decoders.
package codec

import (
	"errors"

	"github.com/rcarmo/go-vc5/internal/logging"
)

var (
	ErrCodecNotFound = errors.New("codec: codec not found")
	ErrInvalidImage  = errors.New("codec: invalid image")
)

// Image is a destination for decoded samples.
type Image interface {
	Width() int
	Height() int
	// BitDepth is the number of significant bits per sample.
	BitDepth() int
	Set(x, y int, v uint16)
}

// Decompressor decodes one payload into its destination image at the
// given pixel offset. A Decompressor is single-use.
type Decompressor interface {
	Decode(offsetX, offsetY int) error
}

// Info describes a payload before it is decoded.
type Info struct {
	Width    int
	Height   int
	BitDepth int
}

// Options configure a decompressor created through the registry.
type Options struct {
	Workers  int
	Codebook string // path to a codebook file; empty uses the built-in table
	Logger   *logging.Logger
}

// Codec creates decompressors for one payload format.
type Codec interface {
	Name() string
	// Probe reads the payload header and reports the destination it needs.
	Probe(data []byte) (Info, error)
	NewDecompressor(data []byte, img Image, opts Options) (Decompressor, error)
}
