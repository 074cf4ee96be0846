package vc5

import "fmt"

// Sample is the element type a Plane can hold.
type Sample interface {
	~int16 | ~uint16 | ~int32
}

// Plane is a strided 2D view over a sample buffer. A Plane either owns its
// buffer (NewPlane) or borrows a region of another one (PlaneOf, Sub).
type Plane[T Sample] struct {
	data   []T
	width  int
	height int
	stride int
}

// NewPlane allocates a zeroed width x height plane with stride == width.
func NewPlane[T Sample](width, height int) Plane[T] {
	if width < 0 || height < 0 {
		panic(fmt.Sprintf("vc5: invalid plane size %dx%d", width, height))
	}
	return Plane[T]{
		data:   make([]T, width*height),
		width:  width,
		height: height,
		stride: width,
	}
}

// PlaneOf wraps an existing buffer. stride must be >= width and the buffer
// must cover every addressed row.
func PlaneOf[T Sample](data []T, width, height, stride int) Plane[T] {
	if width < 0 || height < 0 || stride < width {
		panic(fmt.Sprintf("vc5: invalid plane geometry %dx%d stride %d", width, height, stride))
	}
	if height > 0 && len(data) < (height-1)*stride+width {
		panic(fmt.Sprintf("vc5: buffer of %d samples too small for %dx%d stride %d", len(data), width, height, stride))
	}
	return Plane[T]{data: data, width: width, height: height, stride: stride}
}

func (p Plane[T]) Width() int  { return p.width }
func (p Plane[T]) Height() int { return p.height }
func (p Plane[T]) Stride() int { return p.stride }

// Len returns the number of addressable samples.
func (p Plane[T]) Len() int { return p.width * p.height }

func (p Plane[T]) check(x, y int) {
	if x < 0 || y < 0 || x >= p.width || y >= p.height {
		panic(fmt.Sprintf("vc5: plane index (%d,%d) out of bounds %dx%d", x, y, p.width, p.height))
	}
}

// At returns the sample at (x, y).
func (p Plane[T]) At(x, y int) T {
	p.check(x, y)
	return p.data[y*p.stride+x]
}

// Set stores v at (x, y).
func (p Plane[T]) Set(x, y int, v T) {
	p.check(x, y)
	p.data[y*p.stride+x] = v
}

// Row returns row y, width samples long, aliasing the plane.
func (p Plane[T]) Row(y int) []T {
	if y < 0 || y >= p.height {
		panic(fmt.Sprintf("vc5: plane row %d out of bounds %d", y, p.height))
	}
	off := y * p.stride
	return p.data[off : off+p.width : off+p.width]
}

// Sub returns a view of the w x h region at (x, y) sharing storage.
func (p Plane[T]) Sub(x, y, w, h int) Plane[T] {
	if x < 0 || y < 0 || w < 0 || h < 0 || x+w > p.width || y+h > p.height {
		panic(fmt.Sprintf("vc5: sub-plane %dx%d at (%d,%d) exceeds %dx%d", w, h, x, y, p.width, p.height))
	}
	if w == 0 || h == 0 {
		return Plane[T]{width: w, height: h, stride: p.stride}
	}
	off := y*p.stride + x
	return Plane[T]{
		data:   p.data[off : off+(h-1)*p.stride+w],
		width:  w,
		height: h,
		stride: p.stride,
	}
}

// Clear zeroes every addressable sample.
func (p Plane[T]) Clear() {
	for y := 0; y < p.height; y++ {
		clear(p.Row(y))
	}
}
