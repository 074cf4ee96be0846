package vc5

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/rcarmo/go-vc5/internal/bitstream"
)

// Segment tags
const (
	TagChannelCount          = 0x000c
	TagWaveletCount          = 0x000d
	TagSubbandCount          = 0x000e
	TagImageWidth            = 0x0014
	TagImageHeight           = 0x0015
	TagLowpassPrecision      = 0x0023
	TagSubbandNumber         = 0x0030
	TagQuantization          = 0x0035
	TagChannelNumber         = 0x003e
	TagImageFormat           = 0x0054
	TagMaxBitsPerComponent   = 0x0066
	TagPatternWidth          = 0x006a
	TagPatternHeight         = 0x006b
	TagComponentsPerSample   = 0x006c
	TagPrescaleShift         = 0x006d
	TagUniqueImageIdentifier = 0x4004
	TagLargeCodeblock        = 0x6000

	tagLargeChunk = 0x2000
	tagSmallChunk = 0x4000

	segmentSize  = 4
	uuidSegments = 5 // 16-byte identifier + 32-bit sequence number
)

// Header is the decoded stream configuration.
type Header struct {
	NumChannels         int       `yaml:"channels"`
	NumSubbands         int       `yaml:"subbands"`
	NumWavelets         int       `yaml:"wavelets"`
	Width               int       `yaml:"width"`
	Height              int       `yaml:"height"`
	Format              int       `yaml:"format"`
	PatternWidth        int       `yaml:"pattern_width"`
	PatternHeight       int       `yaml:"pattern_height"`
	ComponentsPerSample int       `yaml:"components_per_sample"`
	BitsPerComponent    int       `yaml:"bits_per_component"`
	LowpassPrecision    int       `yaml:"lowpass_precision"`
	SequenceID          uuid.UUID `yaml:"sequence_id"`
	SequenceNumber      uint32    `yaml:"sequence_number"`

	// Prescale[channel][level], level 0 is the finest.
	Prescale [MaxChannels][MaxWavelets]int16 `yaml:"prescale"`
	// Quantization[channel][subband] as recorded by each codeblock.
	Quantization [MaxChannels][MaxSubbands]int16 `yaml:"quantization"`
}

func defaultHeader() Header {
	return Header{
		NumChannels:      1,
		NumSubbands:      MaxSubbands,
		NumWavelets:      MaxWavelets,
		Format:           FormatPattern,
		PatternWidth:     1,
		PatternHeight:    1,
		BitsPerComponent: 12,
		LowpassPrecision: 16,
	}
}

// ChannelWidth returns the width of one channel plane.
func (h Header) ChannelWidth() int { return h.Width / h.PatternWidth }

// ChannelHeight returns the height of one channel plane.
func (h Header) ChannelHeight() int { return h.Height / h.PatternHeight }

// SubbandLocation maps a subband number to its level (0 = finest) and band.
func (h Header) SubbandLocation(subband int) (level, band int) {
	if subband == 0 {
		return h.NumWavelets - 1, BandLowLow
	}
	return h.NumWavelets - 1 - (subband-1)/3, 1 + (subband-1)%3
}

// validate checks the structural constraints that need the whole header.
func (h Header) validate() error {
	if h.NumSubbands != 1+3*h.NumWavelets {
		return fmt.Errorf("%w: %d subbands for %d wavelet levels", ErrUnsupportedStream, h.NumSubbands, h.NumWavelets)
	}
	if h.NumChannels != h.PatternWidth*h.PatternHeight {
		return fmt.Errorf("%w: %d channels for a %dx%d pattern", ErrUnsupportedStream, h.NumChannels, h.PatternWidth, h.PatternHeight)
	}
	if h.Width <= 0 || h.Height <= 0 {
		return fmt.Errorf("%w: image size %dx%d", ErrUnsupportedStream, h.Width, h.Height)
	}
	if h.Width%h.PatternWidth != 0 || h.Height%h.PatternHeight != 0 {
		return fmt.Errorf("%w: image size %dx%d not a multiple of the %dx%d pattern", ErrUnsupportedStream, h.Width, h.Height, h.PatternWidth, h.PatternHeight)
	}
	align := 1 << uint(h.NumWavelets)
	if h.ChannelWidth()%align != 0 || h.ChannelHeight()%align != 0 {
		return fmt.Errorf("%w: channel size %dx%d not divisible by %d", ErrUnsupportedStream, h.ChannelWidth(), h.ChannelHeight(), align)
	}
	if h.Format == FormatRAW && (h.PatternWidth != 2 || h.PatternHeight != 2) {
		return fmt.Errorf("%w: RAW format needs a 2x2 pattern", ErrUnsupportedStream)
	}
	if h.Format == FormatRAW && h.BitsPerComponent != rawBitsPerComponent {
		return fmt.Errorf("%w: RAW format needs %d bits per component, got %d", ErrUnsupportedStream, rawBitsPerComponent, h.BitsPerComponent)
	}
	return nil
}

type layout struct {
	channels, subbands, wavelets int
	width, height                int
	format, patternW, patternH   int
	bits                         int
}

func (h Header) layout() layout {
	return layout{
		h.NumChannels, h.NumSubbands, h.NumWavelets,
		h.Width, h.Height,
		h.Format, h.PatternWidth, h.PatternHeight,
		h.BitsPerComponent,
	}
}

// codeblock is one subband's entropy-coded payload.
type codeblock struct {
	channel   int
	subband   int
	quant     int16
	precision int
	data      []byte
}

// ParseHeader scans the whole stream without decoding coefficients and
// returns its header, including the quantisation table.
func ParseHeader(data []byte) (Header, error) {
	h, _, err := scan(data)
	return h, err
}

// scan walks the segment stream, validating the header and slicing out
// every codeblock in stream order. It stops once every channel has all of
// its subbands.
func scan(data []byte) (Header, []codeblock, error) {
	h := defaultHeader()
	r := bitstream.NewSegmentReader(data)

	var (
		blocks    []codeblock
		seen      [MaxChannels]uint16
		channel   int
		subband   int
		quant     int16
		validated bool
	)

	complete := func() bool {
		if !validated {
			return false
		}
		all := uint16(1)<<uint(h.NumSubbands) - 1
		for c := 0; c < h.NumChannels; c++ {
			if seen[c] != all {
				return false
			}
		}
		return true
	}

	for !complete() {
		rawTag, err := r.Uint16()
		if err != nil {
			return h, nil, truncated(err)
		}
		val, err := r.Uint16()
		if err != nil {
			return h, nil, truncated(err)
		}

		tag := int32(int16(rawTag))
		optional := tag < 0
		if optional {
			tag = -tag
		}

		switch {
		case tag&0xff00 == TagLargeCodeblock:
			if !validated {
				if err := h.validate(); err != nil {
					return h, nil, err
				}
				validated = true
			}
			size := (int(tag&0xff)<<16 | int(val)) * segmentSize
			payload, err := r.Bytes(size)
			if err != nil {
				return h, nil, truncated(err)
			}
			if channel >= h.NumChannels || subband >= h.NumSubbands {
				return h, nil, fmt.Errorf("%w: codeblock for channel %d subband %d", ErrUnsupportedStream, channel, subband)
			}
			if seen[channel]&(1<<uint(subband)) != 0 {
				return h, nil, fmt.Errorf("%w: duplicate codeblock for channel %d subband %d", ErrCorruptBitstream, channel, subband)
			}
			seen[channel] |= 1 << uint(subband)
			// Lowpass coefficients are stored unquantised; the running
			// quantiser belongs to the highpass codeblocks.
			q := quant
			if subband == 0 {
				q = 0
			}
			h.Quantization[channel][subband] = q
			blocks = append(blocks, codeblock{
				channel:   channel,
				subband:   subband,
				quant:     q,
				precision: h.LowpassPrecision,
				data:      payload,
			})

		case tag == TagUniqueImageIdentifier:
			if val < uuidSegments {
				return h, nil, fmt.Errorf("%w: image identifier of %d segments", ErrUnsupportedStream, val)
			}
			id, err := r.Bytes(16)
			if err != nil {
				return h, nil, truncated(err)
			}
			if h.SequenceID, err = uuid.FromBytes(id); err != nil {
				return h, nil, fmt.Errorf("%w: %w", ErrCorruptBitstream, err)
			}
			if h.SequenceNumber, err = r.Uint32(); err != nil {
				return h, nil, truncated(err)
			}
			if err := r.Skip((int(val) - uuidSegments) * segmentSize); err != nil {
				return h, nil, truncated(err)
			}

		case tag&tagSmallChunk != 0:
			if err := r.Skip(int(val) * segmentSize); err != nil {
				return h, nil, truncated(err)
			}

		case tag&tagLargeChunk != 0:
			// container: its payload is further segments

		default:
			before := h.layout()
			if err := h.apply(tag, val, &channel, &subband, &quant); err != nil {
				if errors.Is(err, errUnknownTag) {
					if optional {
						continue
					}
					return h, nil, fmt.Errorf("%w: tag %#04x", ErrUnsupportedStream, tag)
				}
				return h, nil, err
			}
			if validated && h.layout() != before {
				return h, nil, fmt.Errorf("%w: tag %#04x changes the layout after the first codeblock", ErrUnsupportedStream, tag)
			}
		}
	}

	return h, blocks, nil
}

var errUnknownTag = errors.New("vc5: unknown tag")

// apply records one header segment, rejecting values that fall outside
// the fixed maxima as soon as they are seen.
func (h *Header) apply(tag int32, val uint16, channel, subband *int, quant *int16) error {
	v := int(val)
	switch tag {
	case TagChannelCount:
		if v < 1 || v > MaxChannels {
			return fmt.Errorf("%w: %d channels", ErrUnsupportedStream, v)
		}
		h.NumChannels = v
	case TagWaveletCount:
		if v < 1 || v > MaxWavelets {
			return fmt.Errorf("%w: %d wavelet levels", ErrUnsupportedStream, v)
		}
		h.NumWavelets = v
	case TagSubbandCount:
		if v < 1 || v > MaxSubbands {
			return fmt.Errorf("%w: %d subbands", ErrUnsupportedStream, v)
		}
		h.NumSubbands = v
	case TagImageWidth:
		h.Width = v
	case TagImageHeight:
		h.Height = v
	case TagLowpassPrecision:
		if v < 8 || v > 16 {
			return fmt.Errorf("%w: lowpass precision %d", ErrUnsupportedStream, v)
		}
		h.LowpassPrecision = v
	case TagSubbandNumber:
		if v >= MaxSubbands {
			return fmt.Errorf("%w: subband %d", ErrUnsupportedStream, v)
		}
		*subband = v
	case TagQuantization:
		*quant = int16(val)
	case TagChannelNumber:
		if v >= MaxChannels {
			return fmt.Errorf("%w: channel %d", ErrUnsupportedStream, v)
		}
		*channel = v
	case TagImageFormat:
		if v != FormatPattern && v != FormatRAW {
			return fmt.Errorf("%w: image format %d", ErrUnsupportedStream, v)
		}
		h.Format = v
	case TagMaxBitsPerComponent:
		if v < 1 || v > 15 {
			return fmt.Errorf("%w: %d bits per component", ErrUnsupportedStream, v)
		}
		h.BitsPerComponent = v
	case TagPatternWidth:
		if v < 1 || v > 2 {
			return fmt.Errorf("%w: pattern width %d", ErrUnsupportedStream, v)
		}
		h.PatternWidth = v
	case TagPatternHeight:
		if v < 1 || v > 2 {
			return fmt.Errorf("%w: pattern height %d", ErrUnsupportedStream, v)
		}
		h.PatternHeight = v
	case TagComponentsPerSample:
		h.ComponentsPerSample = v
	case TagPrescaleShift:
		for c := *channel; c < MaxChannels; c++ {
			for level := 0; level < MaxWavelets; level++ {
				h.Prescale[c][level] = int16(val>>uint(14-2*level)) & 3
			}
		}
	default:
		return errUnknownTag
	}
	return nil
}

func truncated(err error) error {
	return fmt.Errorf("%w: truncated stream: %w", ErrCorruptBitstream, err)
}
