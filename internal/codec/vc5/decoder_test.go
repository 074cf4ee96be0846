package vc5_test

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcarmo/go-vc5/internal/codec"
	"github.com/rcarmo/go-vc5/internal/codec/vc5"
	"github.com/rcarmo/go-vc5/internal/codec/vc5/vc5test"
	"github.com/rcarmo/go-vc5/internal/logging"
)

func newImage(t *testing.T, w, h, bits int) *codec.RawImage {
	t.Helper()
	img, err := codec.NewRawImage(w, h, bits)
	require.NoError(t, err)
	return img
}

func decode(t *testing.T, data []byte, img codec.Image, opts ...vc5.Option) error {
	t.Helper()
	d, err := vc5.NewDecompressor(data, img, append([]vc5.Option{vc5.WithLogger(logging.Discard())}, opts...)...)
	require.NoError(t, err)
	return d.Decode(0, 0)
}

func assertUniform(t *testing.T, img *codec.RawImage, want uint16) {
	t.Helper()
	for y := 0; y < img.Height(); y++ {
		for x := 0; x < img.Width(); x++ {
			if img.At(x, y) != want {
				t.Fatalf("pixel (%d,%d) = %d, want %d", x, y, img.At(x, y), want)
			}
		}
	}
}

func TestDecode_ConstantLowpass(t *testing.T) {
	tests := []struct {
		name     string
		prescale uint16
		want     uint16
	}{
		{"Prescale2", 0x8000, 1000},
		{"NoPrescale", 0, 250},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := singleLevelStream(t, 4, 4, 1000, tt.prescale)
			img := newImage(t, 8, 8, 12)

			require.NoError(t, decode(t, data, img))
			assertUniform(t, img, tt.want)
		})
	}
}

func TestDecode_TooManyChannels(t *testing.T) {
	s := &vc5test.Stream{}
	s.Tag(vc5.TagImageWidth, 8).
		Tag(vc5.TagImageHeight, 8).
		Tag(vc5.TagChannelCount, 5).
		Tag(vc5.TagSubbandNumber, 0).
		Codeblock([]byte{0xFF, 0xFF, 0xFF, 0xFF})

	img := newImage(t, 8, 8, 12)
	err := decode(t, s.Bytes(), img)

	assert.ErrorIs(t, err, vc5.ErrUnsupportedStream)
	assertUniform(t, img, 0)
}

func TestDecode_TruncatedStream(t *testing.T) {
	data := singleLevelStream(t, 4, 4, 1000, 0x8000)

	for n := 0; n < len(data); n++ {
		img := newImage(t, 8, 8, 12)
		err := decode(t, data[:n], img)
		require.ErrorIs(t, err, vc5.ErrCorruptBitstream, "cut at %d", n)
	}
}

func TestDecode_BandEndsEarly(t *testing.T) {
	s := &vc5test.Stream{}
	s.Tag(vc5.TagImageWidth, 8).
		Tag(vc5.TagImageHeight, 8).
		Tag(vc5.TagWaveletCount, 1).
		Tag(vc5.TagSubbandCount, 4)

	lowpass, err := vc5test.EncodeLowpass(constantPlane(16, 10), 16)
	require.NoError(t, err)
	s.Tag(vc5.TagSubbandNumber, 0).Codeblock(lowpass)

	// Two zeros then the band end: the band needs 16 coefficients.
	var w vc5test.BitWriter
	w.WriteBits(0b01_010, 5)
	w.WriteBits(0b001, 3)
	for sb := 1; sb <= 3; sb++ {
		s.Tag(vc5.TagSubbandNumber, uint16(sb)).Codeblock(w.Bytes())
	}

	err = decode(t, s.Bytes(), newImage(t, 8, 8, 12))
	assert.ErrorIs(t, err, vc5.ErrCorruptBitstream)
}

func TestDecode_RunOverflowsBand(t *testing.T) {
	s := &vc5test.Stream{}
	s.Tag(vc5.TagImageWidth, 4).
		Tag(vc5.TagImageHeight, 4).
		Tag(vc5.TagWaveletCount, 1).
		Tag(vc5.TagSubbandCount, 4)

	lowpass, err := vc5test.EncodeLowpass(constantPlane(4, 10), 16)
	require.NoError(t, err)
	s.Tag(vc5.TagSubbandNumber, 0).Codeblock(lowpass)

	// A run of eight zeros into a four-coefficient band.
	var w vc5test.BitWriter
	w.WriteBits(0b01_00100, 7)
	w.WriteBits(0b001, 3)
	for sb := 1; sb <= 3; sb++ {
		s.Tag(vc5.TagSubbandNumber, uint16(sb)).Codeblock(w.Bytes())
	}

	err = decode(t, s.Bytes(), newImage(t, 4, 4, 12))
	assert.ErrorIs(t, err, vc5.ErrCorruptBitstream)
}

func TestDecode_MissingBandEnd(t *testing.T) {
	s := &vc5test.Stream{}
	s.Tag(vc5.TagImageWidth, 4).
		Tag(vc5.TagImageHeight, 4).
		Tag(vc5.TagWaveletCount, 1).
		Tag(vc5.TagSubbandCount, 4)

	lowpass, err := vc5test.EncodeLowpass(constantPlane(4, 10), 16)
	require.NoError(t, err)
	s.Tag(vc5.TagSubbandNumber, 0).Codeblock(lowpass)

	// Four zeros fill the band, then a +1 where the band end belongs.
	var w vc5test.BitWriter
	w.WriteBits(0b01_011, 5)
	w.WriteBits(0b1_1_0, 3)
	for sb := 1; sb <= 3; sb++ {
		s.Tag(vc5.TagSubbandNumber, uint16(sb)).Codeblock(w.Bytes())
	}

	err = decode(t, s.Bytes(), newImage(t, 4, 4, 12))
	assert.ErrorIs(t, err, vc5.ErrCorruptBitstream)
}

func TestDecode_LowpassOverflow(t *testing.T) {
	data := singleLevelStream(t, 4, 4, 40000, 0)
	err := decode(t, data, newImage(t, 8, 8, 12))
	assert.ErrorIs(t, err, vc5.ErrCorruptBitstream)
}

func TestDecode_RoundTripSingleLevel(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	plane := randomPlane(rng, 16*8, 4)

	data, err := vc5test.Encode(vc5test.Config{Width: 16, Height: 8, Levels: 1}, [][]int32{plane})
	require.NoError(t, err)

	img := newImage(t, 16, 8, 12)
	require.NoError(t, decode(t, data, img))

	for y := 0; y < 8; y++ {
		for x := 0; x < 16; x++ {
			assert.Equal(t, uint16(plane[y*16+x]), img.At(x, y), "(%d,%d)", x, y)
		}
	}
}

func TestDecode_RoundTripThreeLevels(t *testing.T) {
	tests := []struct {
		name  string
		seed  int64
		limit int
	}{
		{"Limit2", 3, 2},
		{"Limit4", 7, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rng := rand.New(rand.NewSource(tt.seed))
			plane := randomPlane(rng, 32*32, tt.limit)

			cfg := vc5test.Config{Width: 32, Height: 32, Levels: 3}
			data, err := vc5test.Encode(cfg, [][]int32{plane})
			require.NoError(t, err)

			img := newImage(t, 32, 32, 12)
			require.NoError(t, decode(t, data, img))

			mismatches := 0
			for y := 0; y < 32; y++ {
				for x := 0; x < 32; x++ {
					if img.At(x, y) != uint16(plane[y*32+x]) {
						mismatches++
					}
				}
			}
			assert.Zero(t, mismatches, "of %d samples", 32*32)
		})
	}
}

// threeLevelStream codes a single 32x32 channel from explicit subband
// coefficients. quant[sb] is written before each highpass codeblock.
func threeLevelStream(t *testing.T, subbands [][]int32, quant []int16) []byte {
	t.Helper()

	s := &vc5test.Stream{}
	s.Tag(vc5.TagImageWidth, 32).
		Tag(vc5.TagImageHeight, 32).
		Tag(vc5.TagChannelCount, 1).
		Tag(vc5.TagWaveletCount, 3).
		Tag(vc5.TagSubbandCount, 10).
		Tag(vc5.TagChannelNumber, 0)

	lowpass, err := vc5test.EncodeLowpass(subbands[0], 16)
	require.NoError(t, err)
	s.Tag(vc5.TagSubbandNumber, 0).Codeblock(lowpass)

	codes := vc5test.NewCodeIndex(vc5.DefaultCodebook())
	compand := vc5.NewCompandTable()
	for sb := 1; sb < len(subbands); sb++ {
		payload, err := vc5test.EncodeHighpass(codes, compand, subbands[sb])
		require.NoError(t, err)
		s.Tag(vc5.TagSubbandNumber, uint16(sb)).
			Tag(vc5.TagQuantization, uint16(quant[sb])).
			Codeblock(payload)
	}
	return s.Bytes()
}

func TestDecode_QuantizedMatchesScaled(t *testing.T) {
	rng := rand.New(rand.NewSource(21))
	quant := []int16{0, 2, 3, 4, 5, 6, 7, 8, 2, 3}

	coded := make([][]int32, 10)
	scaled := make([][]int32, 10)
	unit := make([]int16, 10)
	for sb := range coded {
		level, _ := (vc5.Header{NumWavelets: 3}).SubbandLocation(sb)
		side := 32 >> uint(level+1)
		coded[sb] = make([]int32, side*side)
		scaled[sb] = make([]int32, side*side)
		for i := range coded[sb] {
			if sb == 0 {
				coded[sb][i] = 16000 + int32(rng.Intn(16000))
				scaled[sb][i] = coded[sb][i]
				continue
			}
			c := int32(rng.Intn(7)) - 3
			coded[sb][i] = c
			scaled[sb][i] = c * int32(quant[sb])
		}
		unit[sb] = 1
	}

	a := newImage(t, 32, 32, 12)
	b := newImage(t, 32, 32, 12)
	require.NoError(t, decode(t, threeLevelStream(t, coded, quant), a))
	require.NoError(t, decode(t, threeLevelStream(t, scaled, unit), b))

	assert.Equal(t, b.Pix, a.Pix)
}

func TestDecode_ThreeLevelConstant(t *testing.T) {
	cfg := vc5test.Config{Width: 32, Height: 16, PrescaleShift: 0xA800}
	data, err := vc5test.Encode(cfg, [][]int32{constantPlane(32*16, 1024)})
	require.NoError(t, err)

	img := newImage(t, 32, 16, 12)
	require.NoError(t, decode(t, data, img))
	assertUniform(t, img, 1024)
}

// TestDecode_LowpassNotQuantized checks that a channel's lowpass band does
// not pick up the quantiser left over from the previous channel's highpass
// codeblocks.
func TestDecode_LowpassNotQuantized(t *testing.T) {
	s := &vc5test.Stream{}
	s.Tag(vc5.TagImageWidth, 16).
		Tag(vc5.TagImageHeight, 8).
		Tag(vc5.TagPatternWidth, 2).
		Tag(vc5.TagPatternHeight, 1).
		Tag(vc5.TagChannelCount, 2).
		Tag(vc5.TagWaveletCount, 1).
		Tag(vc5.TagSubbandCount, 4).
		Tag(vc5.TagPrescaleShift, 0x8000)

	lowpass, err := vc5test.EncodeLowpass(constantPlane(4*4, 1000), 16)
	require.NoError(t, err)
	codes := vc5test.NewCodeIndex(vc5.DefaultCodebook())
	zeros, err := vc5test.EncodeHighpass(codes, vc5.NewCompandTable(), make([]int32, 4*4))
	require.NoError(t, err)

	for c := 0; c < 2; c++ {
		s.Tag(vc5.TagChannelNumber, uint16(c))
		s.Tag(vc5.TagSubbandNumber, 0).Codeblock(lowpass)
		for sb := 1; sb <= 3; sb++ {
			s.Tag(vc5.TagSubbandNumber, uint16(sb)).
				Tag(vc5.TagQuantization, 4).
				Codeblock(zeros)
		}
	}
	data := s.Bytes()

	h, err := vc5.ParseHeader(data)
	require.NoError(t, err)
	assert.Equal(t, int16(0), h.Quantization[1][0])
	assert.Equal(t, int16(4), h.Quantization[1][1])

	img := newImage(t, 16, 8, 12)
	require.NoError(t, decode(t, data, img))
	assertUniform(t, img, 1000)
}

func pattern2x2(t *testing.T) ([]byte, [][]int32) {
	t.Helper()
	rng := rand.New(rand.NewSource(11))
	channels := make([][]int32, 4)
	for c := range channels {
		channels[c] = randomPlane(rng, 8*8, 4)
	}
	cfg := vc5test.Config{Width: 16, Height: 16, PatternWidth: 2, PatternHeight: 2, Levels: 1}
	data, err := vc5test.Encode(cfg, channels)
	require.NoError(t, err)
	return data, channels
}

func TestDecode_PatternInterleave(t *testing.T) {
	data, channels := pattern2x2(t)
	img := newImage(t, 16, 16, 12)
	require.NoError(t, decode(t, data, img))

	for c, plane := range channels {
		for y := 0; y < 8; y++ {
			for x := 0; x < 8; x++ {
				assert.Equal(t, uint16(plane[y*8+x]), img.At(c%2+2*x, c/2+2*y), "channel %d (%d,%d)", c, x, y)
			}
		}
	}
}

func TestDecode_WorkerCountDoesNotChangeOutput(t *testing.T) {
	data, _ := pattern2x2(t)

	serial := newImage(t, 16, 16, 12)
	require.NoError(t, decode(t, data, serial, vc5.WithWorkers(1)))

	parallel := newImage(t, 16, 16, 12)
	require.NoError(t, decode(t, data, parallel, vc5.WithWorkers(4)))

	assert.Equal(t, serial.Pix, parallel.Pix)
}

func TestDecode_RAW(t *testing.T) {
	const gs = 1024
	cw := 16
	channels := [][]int32{
		constantPlane(cw*cw, gs),
		constantPlane(cw*cw, 2048),
		constantPlane(cw*cw, 2048),
		constantPlane(cw*cw, 2048),
	}
	cfg := vc5test.Config{
		Width: 32, Height: 32,
		Format:       vc5.FormatRAW,
		PatternWidth: 2, PatternHeight: 2,
		PrescaleShift: 0xA800,
	}
	data, err := vc5test.Encode(cfg, channels)
	require.NoError(t, err)

	img := newImage(t, 32, 32, 16)
	require.NoError(t, decode(t, data, img))

	lt, err := vc5.NewLogTable(16)
	require.NoError(t, err)
	want, err := lt.DecodeLog(gs)
	require.NoError(t, err)
	assertUniform(t, img, uint16(want))
}

func TestDecode_RAWChroma(t *testing.T) {
	cw := 8
	channels := [][]int32{
		constantPlane(cw*cw, 1024),    // gs
		constantPlane(cw*cw, 2048+64), // rg
		constantPlane(cw*cw, 2048-64), // bg
		constantPlane(cw*cw, 2048+32), // gd
	}
	cfg := vc5test.Config{
		Width: 16, Height: 16,
		Format:       vc5.FormatRAW,
		PatternWidth: 2, PatternHeight: 2,
		Levels:        1,
		PrescaleShift: 0x8000,
	}
	data, err := vc5test.Encode(cfg, channels)
	require.NoError(t, err)

	img := newImage(t, 16, 16, 16)
	require.NoError(t, decode(t, data, img))

	lt, err := vc5.NewLogTable(16)
	require.NoError(t, err)
	expect := func(i int32) uint16 {
		v, err := lt.DecodeLog(i)
		require.NoError(t, err)
		return uint16(v)
	}

	assert.Equal(t, expect(1024+128), img.At(0, 0), "red")
	assert.Equal(t, expect(1024+32), img.At(1, 0), "green 1")
	assert.Equal(t, expect(1024-32), img.At(0, 1), "green 2")
	assert.Equal(t, expect(1024-128), img.At(1, 1), "blue")
	assert.Equal(t, img.At(0, 0), img.At(14, 12))
}

func TestDecode_Offset(t *testing.T) {
	data := singleLevelStream(t, 2, 2, 400, 0x8000)
	img := newImage(t, 10, 9, 12)

	d, err := vc5.NewDecompressor(data, img, vc5.WithLogger(logging.Discard()))
	require.NoError(t, err)
	require.NoError(t, d.Decode(3, 5))

	for y := 0; y < 9; y++ {
		for x := 0; x < 10; x++ {
			inside := x >= 3 && x < 7 && y >= 5 && y < 9
			if inside {
				assert.Equal(t, uint16(400), img.At(x, y), "(%d,%d)", x, y)
			} else {
				assert.Equal(t, uint16(0), img.At(x, y), "(%d,%d)", x, y)
			}
		}
	}
}

func TestDecode_DestinationMismatch(t *testing.T) {
	data := singleLevelStream(t, 2, 2, 400, 0x8000)

	tests := []struct {
		name       string
		w, h, bits int
		ox, oy     int
	}{
		{"TooSmall", 3, 4, 12, 0, 0},
		{"OffsetPastEdge", 4, 4, 12, 1, 0},
		{"NegativeOffset", 8, 8, 12, -1, 0},
		{"ShallowDestination", 4, 4, 8, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := newImage(t, tt.w, tt.h, tt.bits)
			d, err := vc5.NewDecompressor(data, img, vc5.WithLogger(logging.Discard()))
			require.NoError(t, err)
			assert.ErrorIs(t, d.Decode(tt.ox, tt.oy), vc5.ErrUnsupportedStream)
		})
	}
}

func TestDecode_Twice(t *testing.T) {
	data := singleLevelStream(t, 2, 2, 400, 0x8000)
	d, err := vc5.NewDecompressor(data, newImage(t, 4, 4, 12), vc5.WithLogger(logging.Discard()))
	require.NoError(t, err)

	require.NoError(t, d.Decode(0, 0))
	assert.Equal(t, 4, d.Header().Width)
	assert.ErrorIs(t, d.Decode(0, 0), vc5.ErrSequencingViolation)
}

func TestDecode_CustomCodebook(t *testing.T) {
	// Swap the roles of the "1" and "01" prefixes of the built-in table.
	var entries []vc5.RLV
	for _, e := range vc5.DefaultCodebook().Entries() {
		switch {
		case e.IsBandEnd():
		case e.Value == 0:
			e.Size-- // 01xxx -> 1xxx
		default:
			e.Size++ // 1xxx -> 01xxx
		}
		entries = append(entries, e)
	}
	cb, err := vc5.NewCodebook(entries)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(3))
	plane := randomPlane(rng, 8*8, 4)
	data, err := vc5test.Encode(vc5test.Config{Width: 8, Height: 8, Levels: 1, Codebook: cb}, [][]int32{plane})
	require.NoError(t, err)

	img := newImage(t, 8, 8, 12)
	require.NoError(t, decode(t, data, img, vc5.WithCodebook(cb)))
	for i, v := range plane {
		assert.Equal(t, uint16(v), img.Pix[i])
	}

	wrong := newImage(t, 8, 8, 12)
	if err := decode(t, data, wrong); err == nil {
		assert.NotEqual(t, img.Pix, wrong.Pix, "built-in codebook misreads the swapped table")
	}
}

func TestDecode_LogsHeader(t *testing.T) {
	var buf bytes.Buffer
	data := singleLevelStream(t, 2, 2, 400, 0x8000)

	d, err := vc5.NewDecompressor(data, newImage(t, 4, 4, 12), vc5.WithLogger(logging.New(&buf, logging.LevelDebug)))
	require.NoError(t, err)
	require.NoError(t, d.Decode(0, 0))

	assert.Contains(t, buf.String(), "vc5: 4x4 format 1, 1 channels")
}

func TestNewDecompressor_NilImage(t *testing.T) {
	_, err := vc5.NewDecompressor(nil, nil)
	assert.ErrorIs(t, err, codec.ErrInvalidImage)
}

func TestRegistry(t *testing.T) {
	data := singleLevelStream(t, 4, 4, 1000, 0x8000)

	c, err := codec.Get(vc5.Name)
	require.NoError(t, err)
	assert.Contains(t, codec.Names(), vc5.Name)

	info, err := c.Probe(data)
	require.NoError(t, err)
	assert.Equal(t, codec.Info{Width: 8, Height: 8, BitDepth: 12}, info)

	img := newImage(t, info.Width, info.Height, info.BitDepth)
	d, err := c.NewDecompressor(data, img, codec.Options{Workers: 2, Logger: logging.Discard()})
	require.NoError(t, err)
	require.NoError(t, d.Decode(0, 0))
	assertUniform(t, img, 1000)
}

func TestRegistry_CodebookFile(t *testing.T) {
	c, err := codec.Get(vc5.Name)
	require.NoError(t, err)

	_, err = c.NewDecompressor(nil, newImage(t, 4, 4, 12), codec.Options{Codebook: t.TempDir() + "/missing.yaml"})
	assert.Error(t, err)
}
