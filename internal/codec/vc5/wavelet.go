package vc5

import (
	"fmt"
)

// Wavelet is one level of a channel's pyramid: up to four bands of equal
// size, their quantisers and a mask of which bands hold decoded data.
type Wavelet struct {
	width    int
	height   int
	numBands int
	bands    [MaxBands]Plane[int16]
	quant    [MaxBands]int16
	valid    uint8
	ready    bool
}

// Initialize allocates numBands zeroed width x height bands.
func (w *Wavelet) Initialize(width, height, numBands int) error {
	if w.ready {
		return fmt.Errorf("%w: wavelet already initialized", ErrSequencingViolation)
	}
	if numBands < 1 || numBands > MaxBands {
		return fmt.Errorf("%w: %d bands per level", ErrUnsupportedStream, numBands)
	}
	if width < 1 || height < 1 {
		return fmt.Errorf("%w: band size %dx%d", ErrUnsupportedStream, width, height)
	}
	w.width, w.height, w.numBands = width, height, numBands
	for i := 0; i < numBands; i++ {
		w.bands[i] = NewPlane[int16](width, height)
		w.quant[i] = 0
	}
	w.valid = 0
	w.ready = true
	return nil
}

// Clear releases the bands and returns the level to the uninitialized state.
func (w *Wavelet) Clear() {
	*w = Wavelet{}
}

func (w *Wavelet) IsInitialized() bool { return w.ready }
func (w *Wavelet) Width() int          { return w.width }
func (w *Wavelet) Height() int         { return w.height }
func (w *Wavelet) NumBands() int       { return w.numBands }

func (w *Wavelet) checkBand(band int) {
	if band < 0 || band >= w.numBands {
		panic(fmt.Sprintf("vc5: band %d out of range (%d bands)", band, w.numBands))
	}
}

// SetBandValid marks band as decoded.
func (w *Wavelet) SetBandValid(band int) {
	w.checkBand(band)
	w.valid |= 1 << uint(band)
}

// IsBandValid reports whether band has been decoded.
func (w *Wavelet) IsBandValid(band int) bool {
	w.checkBand(band)
	return w.valid&(1<<uint(band)) != 0
}

// ValidBandMask returns one bit per decoded band.
func (w *Wavelet) ValidBandMask() uint8 { return w.valid }

// AllBandsValid reports whether every band of an initialized level is
// decoded.
func (w *Wavelet) AllBandsValid() bool {
	return w.ready && w.valid == uint8(1<<uint(w.numBands))-1
}

// SetQuant records the quantiser band was coded with.
func (w *Wavelet) SetQuant(band int, q int16) {
	w.checkBand(band)
	w.quant[band] = q
}

// Quant returns the quantiser for band.
func (w *Wavelet) Quant(band int) int16 {
	w.checkBand(band)
	return w.quant[band]
}

// BandPlane returns the coefficient plane of band.
func (w *Wavelet) BandPlane(band int) Plane[int16] {
	w.checkBand(band)
	return w.bands[band]
}

// Dequantize writes in scaled by quant into out. A quantiser of 0 or 1
// copies the coefficients unchanged.
func Dequantize(out, in Plane[int16], quant int16) {
	if out.Width() != in.Width() || out.Height() != in.Height() {
		panic(fmt.Sprintf("vc5: dequantize %dx%d into %dx%d", in.Width(), in.Height(), out.Width(), out.Height()))
	}
	for y := 0; y < in.Height(); y++ {
		src, dst := in.Row(y), out.Row(y)
		if quant == 0 || quant == 1 {
			copy(dst, src)
			continue
		}
		q := int64(quant)
		for x, c := range src {
			dst[x] = saturate16(int64(c) * q)
		}
	}
}

// ReconstructLowband dequantises the level's highpass bands and
// synthesises the next finer lowpass plane into dest, which must be twice
// the band size in each dimension. prescale (0..3) is the left shift restored in the
// horizontal pass. A clampBits above zero clamps the output to
// [0, 2^clampBits-1].
func (w *Wavelet) ReconstructLowband(dest Plane[int16], prescale int16, clampBits int) error {
	if !w.AllBandsValid() {
		return fmt.Errorf("%w: reconstruct with band mask %#x of %d bands", ErrSequencingViolation, w.valid, w.numBands)
	}
	if dest.Width() != 2*w.width || dest.Height() != 2*w.height {
		panic(fmt.Sprintf("vc5: reconstruct %dx%d level into %dx%d", w.width, w.height, dest.Width(), dest.Height()))
	}
	if prescale < 0 || prescale > 3 {
		return fmt.Errorf("%w: prescale %d", ErrUnsupportedStream, prescale)
	}

	var bands [MaxBands]Plane[int16]
	for i := 0; i < MaxBands; i++ {
		bands[i] = NewPlane[int16](w.width, w.height)
		if i >= w.numBands {
			continue
		}
		if i == BandLowLow {
			Dequantize(bands[i], w.bands[i], 1)
		} else {
			Dequantize(bands[i], w.bands[i], w.quant[i])
		}
	}

	clampMax := int32(-1)
	if clampBits > 0 {
		clampMax = int32(1)<<uint(clampBits) - 1
	}

	// Vertical: lowlow+highlow -> lowpass rows, lowhigh+highhigh -> highpass rows.
	lowRows := NewPlane[int16](w.width, 2*w.height)
	highRows := NewPlane[int16](w.width, 2*w.height)
	for x := 0; x < w.width; x++ {
		synthesize(lowRows.data[x:], lowRows.stride,
			bands[BandLowLow].data[x:], bands[BandLowLow].stride,
			bands[BandHighLow].data[x:], bands[BandHighLow].stride,
			w.height, 0, -1)
		synthesize(highRows.data[x:], highRows.stride,
			bands[BandLowHigh].data[x:], bands[BandLowHigh].stride,
			bands[BandHighHigh].data[x:], bands[BandHighHigh].stride,
			w.height, 0, -1)
	}

	// Horizontal
	for y := 0; y < 2*w.height; y++ {
		synthesize(dest.Row(y), 1, lowRows.Row(y), 1, highRows.Row(y), 1, w.width, uint(prescale), clampMax)
	}
	return nil
}

// synthesize runs one inverse 2/6 lifting pass over n low/high pairs,
// writing 2n samples. Arguments are strided slices; clampMax < 0 leaves
// the output signed.
func synthesize(dst []int16, dstStride int, low []int16, lowStride int, high []int16, highStride int, n int, descale uint, clampMax int32) {
	l := func(i int) int32 {
		if i < 0 {
			i = 0
		} else if i >= n {
			i = n - 1
		}
		return int32(low[i*lowStride])
	}

	for i := 0; i < n; i++ {
		var evenLows, oddLows int32
		switch {
		case n < 3:
			evenLows = l(i-1) + 8*l(i) - l(i+1)
			oddLows = -l(i-1) + 8*l(i) + l(i+1)
		case i == 0:
			evenLows = 11*l(0) - 4*l(1) + l(2)
			oddLows = 5*l(0) + 4*l(1) - l(2)
		case i == n-1:
			evenLows = -l(n-3) + 4*l(n-2) + 5*l(n-1)
			oddLows = l(n-3) - 4*l(n-2) + 11*l(n-1)
		default:
			evenLows = l(i-1) + 8*l(i) - l(i+1)
			oddLows = -l(i-1) + 8*l(i) + l(i+1)
		}
		h := int32(high[i*highStride])
		even := ((h + (evenLows+4)>>3) << descale) >> 1
		odd := ((-h + (oddLows+4)>>3) << descale) >> 1

		dst[2*i*dstStride] = store16(even, clampMax)
		dst[(2*i+1)*dstStride] = store16(odd, clampMax)
	}
}

func store16(v, clampMax int32) int16 {
	if clampMax >= 0 {
		if v < 0 {
			return 0
		}
		if v > clampMax {
			v = clampMax
		}
	}
	return saturate16(int64(v))
}
