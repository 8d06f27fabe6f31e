package gaussian

import (
	"fmt"

	"github.com/MrWong99/gaussvad/pkg/dsp"
)

// EstimateNoise returns the per-bin noise power: the mean squared magnitude
// over the first min(nNoiseFrames, len(spectra)) spectra. It fails with
// [dsp.ErrInsufficientData] when that count is zero and with
// [dsp.ErrInputSizeMismatch] when the selected spectra differ in length.
//
// The leading frames are assumed to hold no speech. Nothing checks this;
// speech there inflates the estimate and biases later decisions towards
// silence.
func EstimateNoise(spectra [][]float64, nNoiseFrames int) ([]float64, error) {
	n := min(nNoiseFrames, len(spectra))
	if n <= 0 {
		return nil, fmt.Errorf("gaussian: %w: no frames available for noise estimation", dsp.ErrInsufficientData)
	}

	bins := len(spectra[0])
	noise := make([]float64, bins)
	for m := range n {
		if len(spectra[m]) != bins {
			return nil, fmt.Errorf("gaussian: %w: spectrum %d has %d bins, want %d", dsp.ErrInputSizeMismatch, m, len(spectra[m]), bins)
		}
		for j, y := range spectra[m] {
			noise[j] += y * y
		}
	}
	for j := range noise {
		noise[j] /= float64(n)
	}
	return noise, nil
}
