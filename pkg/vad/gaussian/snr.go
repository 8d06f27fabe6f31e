package gaussian

import (
	"fmt"
	"math"

	"github.com/MrWong99/gaussvad/pkg/dsp"
)

// DefaultAlpha is the default smoothing factor of the decision-directed
// recursion.
const DefaultAlpha = 0.98

// SNRTracker is the decision-directed a-priori SNR estimator written as an
// explicit fold over frames. Each call to [SNRTracker.Step] consumes one
// spectrum and returns that frame's a-priori SNR vector; the only state
// carried between calls is the previous vector.
//
// For the first frame, per bin j:
//
//	xi[0][j] = max(gamma - 1, 0),  gamma = y[0][j]^2 / noise[j]
//
// and for every later frame:
//
//	xi[m][j] = alpha * ampPrev^2 / noise[j] + (1-alpha) * max(gamma - 1, 0)
//	ampPrev  = sqrt(xi[m-1][j] * noise[j])
//
// Zero noise powers are replaced by [Epsilon] in divisions. A tracker is not
// safe for concurrent use.
type SNRTracker struct {
	noise []float64
	alpha float64
	prev  []float64
}

// NewSNRTracker returns a tracker for the given noise power vector. alpha must
// lie in (0, 1). noise is retained and must not be modified afterwards.
func NewSNRTracker(noise []float64, alpha float64) (*SNRTracker, error) {
	if !(alpha > 0 && alpha < 1) {
		return nil, fmt.Errorf("gaussian: %w: alpha %v must be in (0, 1)", dsp.ErrConfiguration, alpha)
	}
	if len(noise) == 0 {
		return nil, fmt.Errorf("gaussian: %w: empty noise power vector", dsp.ErrInsufficientData)
	}
	return &SNRTracker{noise: noise, alpha: alpha}, nil
}

// Step folds one spectrum into the tracker and returns its a-priori SNR
// vector. The returned slice is owned by the caller.
func (t *SNRTracker) Step(spectrum []float64) ([]float64, error) {
	if len(spectrum) != len(t.noise) {
		return nil, fmt.Errorf("gaussian: %w: spectrum has %d bins, noise vector has %d", dsp.ErrInputSizeMismatch, len(spectrum), len(t.noise))
	}

	xi := make([]float64, len(spectrum))
	for j, y := range spectrum {
		np := t.noise[j]
		d := nonZero(np)
		gamma := y * y / d
		posterior := math.Max(gamma-1, 0)
		if t.prev == nil {
			xi[j] = posterior
			continue
		}
		ampPrev := math.Sqrt(t.prev[j] * np)
		xi[j] = t.alpha*(ampPrev*ampPrev/d) + (1-t.alpha)*posterior
	}
	t.prev = append(t.prev[:0], xi...)
	return xi, nil
}

// Started reports whether the tracker has consumed at least one frame.
func (t *SNRTracker) Started() bool { return t.prev != nil }

// Reset forgets the previous frame so the next Step is treated as frame 0.
func (t *SNRTracker) Reset() { t.prev = nil }

// EstimateSNR runs an [SNRTracker] over spectra and returns one a-priori SNR
// vector per frame, in frame order.
func EstimateSNR(spectra [][]float64, noise []float64, alpha float64) ([][]float64, error) {
	tr, err := NewSNRTracker(noise, alpha)
	if err != nil {
		return nil, err
	}
	out := make([][]float64, len(spectra))
	for m, y := range spectra {
		xi, err := tr.Step(y)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", m, err)
		}
		out[m] = xi
	}
	return out, nil
}
