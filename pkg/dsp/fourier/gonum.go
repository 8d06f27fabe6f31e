package fourier

import (
	"math/cmplx"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Gonum adapts gonum's real FFT to [Transform]. gonum's FFT keeps scratch
// space internally, so each concurrent caller borrows its own instance from
// a pool.
type Gonum struct {
	n    int
	pool sync.Pool
}

// NewGonum returns a gonum-backed transform of size n. gonum accepts any
// size, but n must be a positive power of two to keep the variants
// interchangeable.
func NewGonum(n int) (*Gonum, error) {
	if err := checkSize(n); err != nil {
		return nil, err
	}
	g := &Gonum{n: n}
	g.pool.New = func() any { return fourier.NewFFT(n) }
	return g, nil
}

// Size implements [Transform].
func (g *Gonum) Size() int { return g.n }

// Forward implements [Transform]. gonum returns the N/2+1 non-redundant
// coefficients; the upper half is filled by conjugate symmetry.
func (g *Gonum) Forward(frame []float64) ([]float64, error) {
	if err := checkInput(g.n, frame); err != nil {
		return nil, err
	}
	fft := g.pool.Get().(*fourier.FFT)
	coeffs := fft.Coefficients(nil, frame)
	g.pool.Put(fft)

	out := make([]float64, g.n)
	for k, c := range coeffs {
		out[k] = cmplx.Abs(c)
	}
	for k := len(coeffs); k < g.n; k++ {
		out[k] = out[g.n-k]
	}
	return out, nil
}
