package vc5

import (
	"fmt"
	"os"
	"sync"

	"github.com/rcarmo/go-vc5/internal/codec"
)

// Name is the registry name of the VC-5 codec.
const Name = "vc5"

func init() {
	codec.Register(&vc5Codec{})
}

type vc5Codec struct {
	codebooks sync.Map // path -> *Codebook
}

func (c *vc5Codec) Name() string { return Name }

// Probe reports the destination size a payload decodes to. RAW payloads
// are expanded to 16-bit linear samples.
func (c *vc5Codec) Probe(data []byte) (codec.Info, error) {
	h, err := ParseHeader(data)
	if err != nil {
		return codec.Info{}, err
	}
	bits := h.BitsPerComponent
	if h.Format == FormatRAW {
		bits = 16
	}
	return codec.Info{Width: h.Width, Height: h.Height, BitDepth: bits}, nil
}

func (c *vc5Codec) NewDecompressor(data []byte, img codec.Image, opts codec.Options) (codec.Decompressor, error) {
	options := []Option{WithLogger(opts.Logger)}
	if opts.Workers > 0 {
		options = append(options, WithWorkers(opts.Workers))
	}
	if opts.Codebook != "" {
		cb, err := c.codebook(opts.Codebook)
		if err != nil {
			return nil, err
		}
		options = append(options, WithCodebook(cb))
	}
	return NewDecompressor(data, img, options...)
}

// codebook loads a codebook file once and caches it by path.
func (c *vc5Codec) codebook(path string) (*Codebook, error) {
	if cb, ok := c.codebooks.Load(path); ok {
		return cb.(*Codebook), nil
	}
	cb, err := LoadCodebookFile(path)
	if err != nil {
		return nil, err
	}
	actual, _ := c.codebooks.LoadOrStore(path, cb)
	return actual.(*Codebook), nil
}

// LoadCodebookFile reads a YAML codebook from path.
func LoadCodebookFile(path string) (*Codebook, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open codebook: %w", err)
	}
	defer f.Close()

	cb, err := LoadCodebook(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cb, nil
}
