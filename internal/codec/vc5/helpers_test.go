package vc5_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rcarmo/go-vc5/internal/codec/vc5"
	"github.com/rcarmo/go-vc5/internal/codec/vc5/vc5test"
)

func constantPlane(n int, v int32) []int32 {
	p := make([]int32, n)
	for i := range p {
		p[i] = v
	}
	return p
}

func randomPlane(rng *rand.Rand, n, limit int) []int32 {
	p := make([]int32, n)
	for i := range p {
		p[i] = int32(rng.Intn(limit))
	}
	return p
}

// singleLevelStream builds a one-channel, one-level 2w x 2h stream whose
// lowpass band is constant k and whose highpass bands are zero.
func singleLevelStream(t *testing.T, w, h int, k int32, prescale uint16) []byte {
	t.Helper()

	s := &vc5test.Stream{}
	s.Tag(vc5.TagImageWidth, uint16(2*w)).
		Tag(vc5.TagImageHeight, uint16(2*h)).
		Tag(vc5.TagChannelCount, 1).
		Tag(vc5.TagWaveletCount, 1).
		Tag(vc5.TagSubbandCount, 4).
		Tag(vc5.TagPrescaleShift, prescale)

	lowpass, err := vc5test.EncodeLowpass(constantPlane(w*h, k), 16)
	require.NoError(t, err)
	s.Tag(vc5.TagSubbandNumber, 0).Codeblock(lowpass)

	codes := vc5test.NewCodeIndex(vc5.DefaultCodebook())
	zeros, err := vc5test.EncodeHighpass(codes, vc5.NewCompandTable(), make([]int32, w*h))
	require.NoError(t, err)
	for sb := 1; sb <= 3; sb++ {
		s.Tag(vc5.TagSubbandNumber, uint16(sb)).Codeblock(zeros)
	}
	return s.Bytes()
}
