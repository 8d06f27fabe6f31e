package gaussian

import (
	"fmt"
	"math"

	"github.com/MrWong99/gaussvad/pkg/dsp"
)

// DefaultThreshold is the default likelihood-ratio threshold. A frame is
// speech when its average log-likelihood exceeds log(threshold).
const DefaultThreshold = 0.5

var logEpsilon = math.Log(Epsilon)

// binLogLikelihood returns log(max(L, Epsilon)) for one bin, where
//
//	L = 1/(1+xiJ) * exp(gamma*xiJ/(1+xiJ))
//
// is the Gaussian likelihood ratio of speech-plus-noise against noise only.
// xiJ is recomputed from the speech power sigmaS = xi*noise rather than
// taken from xi directly; the two differ only by rounding but downstream
// consumers compare against results produced this way.
func binLogLikelihood(y, xi, noise float64) float64 {
	d := nonZero(noise)
	sigmaS := xi * noise
	gamma := y * y / d
	xiJ := sigmaS / d

	exponent := gamma * xiJ / (1 + xiJ)
	l := (1 / (1 + xiJ)) * math.Exp(exponent)
	if math.IsInf(l, 1) {
		// exp overflowed; the logarithm itself is still finite.
		return math.Max(exponent-math.Log1p(xiJ), logEpsilon)
	}
	return math.Log(math.Max(l, Epsilon))
}

// FrameLogLikelihood returns the average over bins of the per-bin log
// likelihood ratio for one frame. spectrum, xi and noise must have the same
// length.
func FrameLogLikelihood(spectrum, xi, noise []float64) (float64, error) {
	if len(spectrum) != len(noise) || len(xi) != len(noise) {
		return 0, fmt.Errorf("gaussian: %w: spectrum %d, snr %d and noise %d bins differ", dsp.ErrInputSizeMismatch, len(spectrum), len(xi), len(noise))
	}
	if len(noise) == 0 {
		return 0, fmt.Errorf("gaussian: %w: zero bins", dsp.ErrInsufficientData)
	}
	var sum float64
	for j, y := range spectrum {
		sum += binLogLikelihood(y, xi[j], noise[j])
	}
	return sum / float64(len(noise)), nil
}

// IsSpeech applies the decision rule avgLogLikelihood > log(threshold).
func IsSpeech(avgLogLikelihood, threshold float64) bool {
	return avgLogLikelihood > math.Log(threshold)
}

// Probability maps an average log-likelihood ratio to a speech probability
// under equal priors, LR/(1+LR) with LR = exp(avgLogLikelihood).
func Probability(avgLogLikelihood float64) float64 {
	return 1 / (1 + math.Exp(-avgLogLikelihood))
}

// Decide classifies every frame. It returns one speech flag and one average
// log-likelihood per frame, in frame order. threshold must be positive.
func Decide(spectra, xi [][]float64, noise []float64, threshold float64) ([]bool, []float64, error) {
	if !(threshold > 0) {
		return nil, nil, fmt.Errorf("gaussian: %w: threshold %v must be positive", dsp.ErrConfiguration, threshold)
	}
	if len(spectra) != len(xi) {
		return nil, nil, fmt.Errorf("gaussian: %w: %d spectra but %d snr vectors", dsp.ErrInputSizeMismatch, len(spectra), len(xi))
	}

	speech := make([]bool, len(spectra))
	lls := make([]float64, len(spectra))
	for m := range spectra {
		ll, err := FrameLogLikelihood(spectra[m], xi[m], noise)
		if err != nil {
			return nil, nil, fmt.Errorf("frame %d: %w", m, err)
		}
		lls[m] = ll
		speech[m] = IsSpeech(ll, threshold)
	}
	return speech, lls, nil
}
