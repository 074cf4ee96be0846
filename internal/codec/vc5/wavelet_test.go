package vc5

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fillBand(p Plane[int16], v int16) {
	for y := 0; y < p.Height(); y++ {
		row := p.Row(y)
		for x := range row {
			row[x] = v
		}
	}
}

func validLevel(t *testing.T, width, height int, lowpass int16) *Wavelet {
	t.Helper()
	var w Wavelet
	require.NoError(t, w.Initialize(width, height, MaxBands))
	fillBand(w.BandPlane(BandLowLow), lowpass)
	for b := 0; b < MaxBands; b++ {
		w.SetBandValid(b)
	}
	return &w
}

func TestWavelet_Lifecycle(t *testing.T) {
	var w Wavelet
	assert.False(t, w.IsInitialized())
	assert.False(t, w.AllBandsValid())

	require.NoError(t, w.Initialize(4, 2, MaxBands))
	assert.True(t, w.IsInitialized())
	assert.Equal(t, 4, w.Width())
	assert.Equal(t, 2, w.Height())
	assert.Equal(t, MaxBands, w.NumBands())

	err := w.Initialize(4, 2, MaxBands)
	assert.ErrorIs(t, err, ErrSequencingViolation, "initialize twice without clear")

	w.SetBandValid(BandLowLow)
	w.SetBandValid(BandHighHigh)
	assert.True(t, w.IsBandValid(BandLowLow))
	assert.False(t, w.IsBandValid(BandLowHigh))
	assert.Equal(t, uint8(0b1001), w.ValidBandMask())
	assert.False(t, w.AllBandsValid())

	w.SetBandValid(BandLowHigh)
	w.SetBandValid(BandHighLow)
	assert.True(t, w.AllBandsValid())

	w.Clear()
	assert.False(t, w.IsInitialized())
	assert.Equal(t, uint8(0), w.ValidBandMask())
	require.NoError(t, w.Initialize(2, 2, 1))
	assert.Equal(t, 1, w.NumBands())
}

func TestWavelet_InitializeRejectsBadShape(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		bands         int
	}{
		{"NoBands", 2, 2, 0},
		{"TooManyBands", 2, 2, MaxBands + 1},
		{"ZeroWidth", 0, 2, MaxBands},
		{"ZeroHeight", 2, 0, MaxBands},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var w Wavelet
			err := w.Initialize(tt.width, tt.height, tt.bands)
			assert.ErrorIs(t, err, ErrUnsupportedStream)
			assert.False(t, w.IsInitialized())
		})
	}
}

func TestWavelet_BandIndexPanics(t *testing.T) {
	var w Wavelet
	require.NoError(t, w.Initialize(2, 2, 2))

	assert.Panics(t, func() { w.SetBandValid(2) })
	assert.Panics(t, func() { w.IsBandValid(-1) })
	assert.Panics(t, func() { w.BandPlane(3) })
	assert.Panics(t, func() { w.SetQuant(4, 1) })
}

func TestWavelet_ReconstructBeforeValid(t *testing.T) {
	var w Wavelet
	require.NoError(t, w.Initialize(2, 2, MaxBands))
	w.SetBandValid(BandLowLow)

	err := w.ReconstructLowband(NewPlane[int16](4, 4), 0, 0)
	assert.ErrorIs(t, err, ErrSequencingViolation)

	var empty Wavelet
	err = empty.ReconstructLowband(NewPlane[int16](4, 4), 0, 0)
	assert.ErrorIs(t, err, ErrSequencingViolation)
}

func TestDequantize(t *testing.T) {
	in := NewPlane[int16](3, 1)
	copy(in.Row(0), []int16{-4, 0, 7})

	tests := []struct {
		name  string
		quant int16
		want  []int16
	}{
		{"Zero", 0, []int16{-4, 0, 7}},
		{"One", 1, []int16{-4, 0, 7}},
		{"Three", 3, []int16{-12, 0, 21}},
		{"Saturates", 10000, []int16{math.MinInt16, 0, math.MaxInt16}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := NewPlane[int16](3, 1)
			Dequantize(out, in, tt.quant)
			assert.Equal(t, tt.want, out.Row(0))
		})
	}

	assert.Panics(t, func() { Dequantize(NewPlane[int16](2, 1), in, 1) })
}

func TestSynthesize_InvertsKnownPair(t *testing.T) {
	// lows/highs of {10, 2, 7, 7, 0, 4, 9, 1} under the forward 2/6 step
	low := []int16{12, 14, 4, 10}
	high := []int16{10, -1, -5, 11}
	dst := make([]int16, 8)

	synthesize(dst, 1, low, 1, high, 1, 4, 0, -1)
	assert.Equal(t, []int16{10, 2, 7, 7, 0, 4, 9, 1}, dst)
}

func TestSynthesize_Strided(t *testing.T) {
	low := []int16{12, 99, 14, 99, 4, 99, 10}
	high := []int16{10, -1, -5, 11}
	dst := make([]int16, 24)

	synthesize(dst, 3, low, 2, high, 1, 4, 0, -1)
	for i, want := range []int16{10, 2, 7, 7, 0, 4, 9, 1} {
		assert.Equal(t, want, dst[3*i], "sample %d", i)
	}
}

func TestSynthesize_ShortRuns(t *testing.T) {
	// {5, 3}: low 8, high 2
	dst := make([]int16, 2)
	synthesize(dst, 1, []int16{8}, 1, []int16{2}, 1, 1, 0, -1)
	assert.Equal(t, []int16{5, 3}, dst)

	dst = make([]int16, 4)
	synthesize(dst, 1, []int16{8, 8}, 1, []int16{0, 0}, 1, 2, 0, -1)
	assert.Equal(t, []int16{4, 4, 4, 4}, dst)
}

func TestReconstructLowband_Constant(t *testing.T) {
	tests := []struct {
		name     string
		prescale int16
		want     int16
	}{
		{"NoPrescale", 0, 25},
		{"Prescale2", 2, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := validLevel(t, 4, 3, 100)
			dest := NewPlane[int16](8, 6)

			require.NoError(t, w.ReconstructLowband(dest, tt.prescale, 0))
			for y := 0; y < 6; y++ {
				for x := 0; x < 8; x++ {
					assert.Equal(t, tt.want, dest.At(x, y), "(%d,%d)", x, y)
				}
			}
		})
	}
}

func TestReconstructLowband_Clamp(t *testing.T) {
	w := validLevel(t, 2, 2, -400)
	dest := NewPlane[int16](4, 4)
	require.NoError(t, w.ReconstructLowband(dest, 2, 12))
	assert.Equal(t, int16(0), dest.At(1, 1), "negative output clamps to zero")

	w = validLevel(t, 2, 2, 8000)
	require.NoError(t, w.ReconstructLowband(dest, 2, 12))
	assert.Equal(t, int16(4095), dest.At(3, 2))

	w = validLevel(t, 2, 2, 8000)
	require.NoError(t, w.ReconstructLowband(dest, 2, 0))
	assert.Equal(t, int16(8000), dest.At(3, 2), "intermediate levels are not clamped")
}

func TestReconstructLowband_AppliesQuant(t *testing.T) {
	quantized := validLevel(t, 4, 4, 64)
	fillBand(quantized.BandPlane(BandLowHigh), 3)
	quantized.SetQuant(BandLowHigh, 4)

	plain := validLevel(t, 4, 4, 64)
	fillBand(plain.BandPlane(BandLowHigh), 12)

	a := NewPlane[int16](8, 8)
	b := NewPlane[int16](8, 8)
	require.NoError(t, quantized.ReconstructLowband(a, 0, 0))
	require.NoError(t, plain.ReconstructLowband(b, 0, 0))

	for y := 0; y < 8; y++ {
		assert.Equal(t, b.Row(y), a.Row(y), "row %d", y)
	}
	assert.Equal(t, int16(3), quantized.BandPlane(BandLowHigh).At(0, 0), "band keeps its decoded values")
}

func TestReconstructLowband_LowpassIgnoresQuant(t *testing.T) {
	w := validLevel(t, 2, 2, 400)
	w.SetQuant(BandLowLow, 4)

	dest := NewPlane[int16](4, 4)
	require.NoError(t, w.ReconstructLowband(dest, 2, 12))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			assert.Equal(t, int16(400), dest.At(x, y), "(%d,%d)", x, y)
		}
	}
}

func TestReconstructLowband_BadPrescale(t *testing.T) {
	w := validLevel(t, 2, 2, 0)
	err := w.ReconstructLowband(NewPlane[int16](4, 4), 4, 0)
	assert.ErrorIs(t, err, ErrUnsupportedStream)
	assert.Panics(t, func() { _ = w.ReconstructLowband(NewPlane[int16](4, 2), 0, 0) })
}
