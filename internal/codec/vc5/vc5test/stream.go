package vc5test

import (
	"encoding/binary"

	"github.com/google/uuid"

	"github.com/rcarmo/go-vc5/internal/codec/vc5"
)

// Stream builds a segment stream.
type Stream struct {
	buf []byte
}

// Tag appends a (tag, value) segment.
func (s *Stream) Tag(tag int, value uint16) *Stream {
	s.buf = binary.BigEndian.AppendUint16(s.buf, uint16(int16(tag)))
	s.buf = binary.BigEndian.AppendUint16(s.buf, value)
	return s
}

// Optional appends a segment with the optional (negated) form of tag.
func (s *Stream) Optional(tag int, value uint16) *Stream {
	return s.Tag(-tag, value)
}

// Codeblock appends a large codeblock chunk carrying payload, zero padded
// to whole segments.
func (s *Stream) Codeblock(payload []byte) *Stream {
	padded := pad(payload)
	n := len(padded) / 4
	s.Tag(vc5.TagLargeCodeblock|(n>>16&0xff), uint16(n))
	s.buf = append(s.buf, padded...)
	return s
}

// Identifier appends the unique image identifier chunk.
func (s *Stream) Identifier(id uuid.UUID, sequence uint32) *Stream {
	s.Tag(vc5.TagUniqueImageIdentifier, 5)
	s.buf = append(s.buf, id[:]...)
	s.buf = binary.BigEndian.AppendUint32(s.buf, sequence)
	return s
}

// Raw appends bytes unchanged.
func (s *Stream) Raw(b []byte) *Stream {
	s.buf = append(s.buf, b...)
	return s
}

// Bytes returns the stream built so far.
func (s *Stream) Bytes() []byte {
	return append([]byte(nil), s.buf...)
}

func pad(b []byte) []byte {
	out := append([]byte(nil), b...)
	for len(out)%4 != 0 {
		out = append(out, 0)
	}
	return out
}
