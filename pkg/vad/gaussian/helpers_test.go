package gaussian_test

import (
	"math"
	"math/rand/v2"
	"testing"
)

// whiteNoise returns n Gaussian samples with the given variance.
func whiteNoise(rng *rand.Rand, n int, variance float64) []float32 {
	sd := math.Sqrt(variance)
	s := make([]float32, n)
	for i := range s {
		s[i] = float32(rng.NormFloat64() * sd)
	}
	return s
}

// sinusoid returns n samples of amplitude*sin(2*pi*freq*t).
func sinusoid(n int, freq, amplitude float64, sampleRate int) []float32 {
	s := make([]float32, n)
	for i := range s {
		s[i] = float32(amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
	}
	return s
}

// randomSpectra returns frames x bins non-negative magnitudes.
func randomSpectra(rng *rand.Rand, frames, bins int, scale float64) [][]float64 {
	out := make([][]float64, frames)
	for m := range out {
		out[m] = make([]float64, bins)
		for j := range out[m] {
			out[m][j] = rng.Float64() * scale
		}
	}
	return out
}

func assertFinite(t *testing.T, name string, vs []float64) {
	t.Helper()
	for i, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("%s[%d] = %v, want finite", name, i, v)
		}
	}
}
