// Package vc5test provides a reference VC-5 encoder used to build test
// payloads: a bit writer, the forward 2/6 wavelet transform, entropy
// coding against a codebook, and a segment stream builder.
package vc5test

// BitWriter packs values MSB-first.
type BitWriter struct {
	buf   []byte
	acc   uint64
	nbits int
}

// WriteBits appends the low n bits of v.
func (w *BitWriter) WriteBits(v uint32, n int) {
	if n == 0 {
		return
	}
	w.acc = w.acc<<uint(n) | uint64(v)&(1<<uint(n)-1)
	w.nbits += n
	for w.nbits >= 8 {
		w.nbits -= 8
		w.buf = append(w.buf, byte(w.acc>>uint(w.nbits)))
	}
}

// Len returns the number of bits written.
func (w *BitWriter) Len() int {
	return len(w.buf)*8 + w.nbits
}

// Bytes flushes any partial byte (zero padded) and returns the buffer.
func (w *BitWriter) Bytes() []byte {
	out := append([]byte(nil), w.buf...)
	if w.nbits > 0 {
		out = append(out, byte(w.acc<<uint(8-w.nbits)))
	}
	return out
}
