package codec

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
)

// RawImage is a single-plane buffer of unsigned samples.
type RawImage struct {
	Pix    []uint16
	Stride int
	width  int
	height int
	bits   int
}

// NewRawImage allocates a zeroed width x height image of the given depth.
func NewRawImage(width, height, bits int) (*RawImage, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: size %dx%d", ErrInvalidImage, width, height)
	}
	if bits < 1 || bits > 16 {
		return nil, fmt.Errorf("%w: bit depth %d", ErrInvalidImage, bits)
	}
	return &RawImage{
		Pix:    make([]uint16, width*height),
		Stride: width,
		width:  width,
		height: height,
		bits:   bits,
	}, nil
}

func (m *RawImage) Width() int    { return m.width }
func (m *RawImage) Height() int   { return m.height }
func (m *RawImage) BitDepth() int { return m.bits }

// Set stores v at (x, y). Coordinates outside the image panic.
func (m *RawImage) Set(x, y int, v uint16) {
	if x < 0 || y < 0 || x >= m.width || y >= m.height {
		panic(fmt.Sprintf("codec: pixel (%d,%d) outside %dx%d image", x, y, m.width, m.height))
	}
	m.Pix[y*m.Stride+x] = v
}

// At returns the sample at (x, y).
func (m *RawImage) At(x, y int) uint16 {
	if x < 0 || y < 0 || x >= m.width || y >= m.height {
		panic(fmt.Sprintf("codec: pixel (%d,%d) outside %dx%d image", x, y, m.width, m.height))
	}
	return m.Pix[y*m.Stride+x]
}

// AppendLE appends the samples row by row as little-endian uint16.
func (m *RawImage) AppendLE(b []byte) []byte {
	for y := 0; y < m.height; y++ {
		row := m.Pix[y*m.Stride : y*m.Stride+m.width]
		for _, v := range row {
			b = binary.LittleEndian.AppendUint16(b, v)
		}
	}
	return b
}

// Gray16 converts the image to a 16-bit grayscale image, scaling samples
// up to the full 16-bit range.
func (m *RawImage) Gray16() *image.Gray16 {
	img := image.NewGray16(image.Rect(0, 0, m.width, m.height))
	shift := uint(16 - m.bits)
	for y := 0; y < m.height; y++ {
		for x := 0; x < m.width; x++ {
			img.SetGray16(x, y, color.Gray16{Y: m.Pix[y*m.Stride+x] << shift})
		}
	}
	return img
}
