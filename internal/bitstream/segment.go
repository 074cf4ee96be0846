package bitstream

import "encoding/binary"

// SegmentReader reads big-endian fields from a byte slice. Sub-slices
// returned by Bytes alias the underlying data.
type SegmentReader struct {
	data []byte
	pos  int
}

// NewSegmentReader creates a reader positioned at the start of data.
func NewSegmentReader(data []byte) *SegmentReader {
	return &SegmentReader{data: data}
}

// Uint16 reads a big-endian 16-bit value.
func (r *SegmentReader) Uint16() (uint16, error) {
	if r.Remaining() < 2 {
		return 0, ErrOverrun
	}
	v := binary.BigEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return v, nil
}

// Uint32 reads a big-endian 32-bit value.
func (r *SegmentReader) Uint32() (uint32, error) {
	if r.Remaining() < 4 {
		return 0, ErrOverrun
	}
	v := binary.BigEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

// Bytes returns the next n bytes without copying.
func (r *SegmentReader) Bytes(n int) ([]byte, error) {
	if n < 0 || r.Remaining() < n {
		return nil, ErrOverrun
	}
	b := r.data[r.pos : r.pos+n : r.pos+n]
	r.pos += n
	return b, nil
}

// Skip advances by n bytes.
func (r *SegmentReader) Skip(n int) error {
	_, err := r.Bytes(n)
	return err
}

// Pos returns the current byte offset.
func (r *SegmentReader) Pos() int {
	return r.pos
}

// Remaining returns the number of unread bytes.
func (r *SegmentReader) Remaining() int {
	return len(r.data) - r.pos
}
