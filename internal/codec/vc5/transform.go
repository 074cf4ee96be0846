package vc5

// Transform is one channel's wavelet pyramid. Wavelets[0] is the finest
// level; Prescale holds the per-level shift restored during synthesis.
type Transform struct {
	Wavelets [MaxWavelets]Wavelet
	Prescale [MaxWavelets]int16
}

// ensureLevel initializes level lazily with bands of width x height.
func (t *Transform) ensureLevel(level, width, height int) error {
	w := &t.Wavelets[level]
	if w.IsInitialized() {
		return nil
	}
	return w.Initialize(width, height, MaxBands)
}

// reconstruct synthesises every level whose bands are complete, coarsest
// first, feeding the lowpass band of the next finer level. The finest level
// is written to out, clamped to clampBits. It reports whether out was
// written.
func (t *Transform) reconstruct(levels int, out Plane[int16], clampBits int) (bool, error) {
	for level := levels - 1; level >= 0; level-- {
		w := &t.Wavelets[level]
		if !w.AllBandsValid() {
			continue
		}

		if level == 0 {
			if err := w.ReconstructLowband(out, t.Prescale[0], clampBits); err != nil {
				return false, err
			}
			w.Clear()
			return true, nil
		}

		finer := &t.Wavelets[level-1]
		if err := t.ensureLevel(level-1, 2*w.Width(), 2*w.Height()); err != nil {
			return false, err
		}
		if finer.IsBandValid(BandLowLow) {
			return false, ErrSequencingViolation
		}
		if err := w.ReconstructLowband(finer.BandPlane(BandLowLow), t.Prescale[level], 0); err != nil {
			return false, err
		}
		finer.SetBandValid(BandLowLow)
		w.Clear()
	}
	return false, nil
}

// Clear releases every level.
func (t *Transform) Clear() {
	for i := range t.Wavelets {
		t.Wavelets[i].Clear()
	}
}
