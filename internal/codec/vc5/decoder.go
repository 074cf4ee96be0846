package vc5

import (
	"context"
	"fmt"
	"sync"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/rcarmo/go-vc5/internal/bitstream"
	"github.com/rcarmo/go-vc5/internal/codec"
	"github.com/rcarmo/go-vc5/internal/logging"
)

// Option configures a Decompressor.
type Option func(*Decompressor)

// WithCodebook replaces the built-in entropy codebook.
func WithCodebook(cb *Codebook) Option {
	return func(d *Decompressor) {
		if cb != nil {
			d.codebook = cb
		}
	}
}

// WithWorkers limits how many channels are decoded concurrently. Values
// below one decode channels one at a time.
func WithWorkers(n int) Option {
	return func(d *Decompressor) {
		d.workers = max(n, 1)
	}
}

// WithLogger sets the logger used for decode diagnostics.
func WithLogger(l *logging.Logger) Option {
	return func(d *Decompressor) {
		if l != nil {
			d.log = l
		}
	}
}

// Decompressor decodes one VC-5 payload into a destination image.
type Decompressor struct {
	data     []byte
	img      codec.Image
	codebook *Codebook
	workers  int
	log      *logging.Logger

	mu     sync.Mutex
	used   bool
	header Header
}

var _ codec.Decompressor = (*Decompressor)(nil)

// NewDecompressor prepares a decode of data into img.
func NewDecompressor(data []byte, img codec.Image, opts ...Option) (*Decompressor, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil destination", codec.ErrInvalidImage)
	}
	d := &Decompressor{
		data:     data,
		img:      img,
		codebook: DefaultCodebook(),
		workers:  MaxChannels,
		log:      logging.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Header returns the header parsed by Decode.
func (d *Decompressor) Header() Header {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.header
}

// Decode parses the payload and writes the reconstructed image into the
// destination with its top-left corner at (offsetX, offsetY). A payload
// can be decoded once; on error the destination may be partly written.
func (d *Decompressor) Decode(offsetX, offsetY int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.used {
		return fmt.Errorf("%w: payload already decoded", ErrSequencingViolation)
	}
	d.used = true

	h, blocks, err := scan(d.data)
	d.header = h
	if err != nil {
		return err
	}
	if err := d.checkDestination(h, offsetX, offsetY); err != nil {
		return err
	}

	d.log.Debug("vc5: %dx%d format %d, %d channels (%dx%d pattern), %d levels, %d bits, %d codeblocks",
		h.Width, h.Height, h.Format, h.NumChannels, h.PatternWidth, h.PatternHeight,
		h.NumWavelets, h.BitsPerComponent, len(blocks))

	var logTable *LogTable
	if h.Format == FormatRAW {
		if logTable, err = NewLogTable(d.img.BitDepth()); err != nil {
			return err
		}
	}
	compand := NewCompandTable()

	byChannel := lo.GroupBy(blocks, func(b codeblock) int { return b.channel })
	planes := make([]Plane[int16], h.NumChannels)

	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(d.workers)
	for c := 0; c < h.NumChannels; c++ {
		planes[c] = NewPlane[int16](h.ChannelWidth(), h.ChannelHeight())
		g.Go(func() error {
			if err := d.decodeChannel(ctx, &h, c, byChannel[c], compand, planes[c]); err != nil {
				return fmt.Errorf("channel %d: %w", c, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		d.log.Debug("vc5: decode failed: %v", err)
		return err
	}

	if h.Format == FormatRAW {
		writeRAW(d.img, planes, h, logTable, offsetX, offsetY)
	} else {
		writePattern(d.img, planes, h, offsetX, offsetY)
	}
	return nil
}

func (d *Decompressor) checkDestination(h Header, offsetX, offsetY int) error {
	if offsetX < 0 || offsetY < 0 ||
		offsetX+h.Width > d.img.Width() || offsetY+h.Height > d.img.Height() {
		return fmt.Errorf("%w: %dx%d image at (%d,%d) does not fit %dx%d destination",
			ErrUnsupportedStream, h.Width, h.Height, offsetX, offsetY, d.img.Width(), d.img.Height())
	}
	if h.BitsPerComponent > d.img.BitDepth() {
		return fmt.Errorf("%w: %d-bit components into %d-bit destination",
			ErrUnsupportedStream, h.BitsPerComponent, d.img.BitDepth())
	}
	return nil
}

// decodeChannel entropy-decodes a channel's codeblocks in stream order and
// reconstructs each level as soon as its bands are complete.
func (d *Decompressor) decodeChannel(ctx context.Context, h *Header, channel int, blocks []codeblock, compand *CompandTable, out Plane[int16]) error {
	var t Transform
	defer t.Clear()
	t.Prescale = h.Prescale[channel]

	done := false
	for _, b := range blocks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if done {
			return fmt.Errorf("%w: codeblock after reconstruction", ErrSequencingViolation)
		}

		level, band := h.SubbandLocation(b.subband)
		size := 1 << uint(level+1)
		if err := t.ensureLevel(level, out.Width()/size, out.Height()/size); err != nil {
			return err
		}
		w := &t.Wavelets[level]
		if w.IsBandValid(band) {
			return fmt.Errorf("%w: subband %d decoded twice", ErrCorruptBitstream, b.subband)
		}

		br := bitstream.NewBitReader(b.data)
		plane := w.BandPlane(band)
		var err error
		if band == BandLowLow {
			err = decodeLowpass(br, b.precision, plane)
		} else {
			err = decodeHighpass(br, d.codebook, compand, plane)
		}
		if err != nil {
			return fmt.Errorf("subband %d: %w", b.subband, err)
		}
		w.SetQuant(band, b.quant)
		w.SetBandValid(band)

		if done, err = t.reconstruct(h.NumWavelets, out, h.BitsPerComponent); err != nil {
			return err
		}
	}
	if !done {
		return fmt.Errorf("%w: channel incomplete", ErrSequencingViolation)
	}
	return nil
}
