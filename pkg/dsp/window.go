package dsp

import (
	"fmt"
	"math"
)

// Hann is a precomputed Hann taper of a fixed length. The coefficients are
// computed once in [NewHann] and never modified, so a single Hann may be
// shared by concurrent callers.
type Hann struct {
	coeffs []float64
}

// NewHann returns a Hann window of the given length with coefficients
//
//	w[i] = 0.5 * (1 - cos(2*pi*i / (length-1)))
//
// A window of length 1 has the single coefficient 1.
func NewHann(length int) (*Hann, error) {
	if length <= 0 {
		return nil, fmt.Errorf("%w: window length %d must be positive", ErrConfiguration, length)
	}
	coeffs := make([]float64, length)
	if length == 1 {
		coeffs[0] = 1
		return &Hann{coeffs: coeffs}, nil
	}
	denom := float64(length - 1)
	for i := range coeffs {
		coeffs[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/denom))
	}
	return &Hann{coeffs: coeffs}, nil
}

// Len returns the window length.
func (h *Hann) Len() int { return len(h.coeffs) }

// Coefficient returns w[i].
func (h *Hann) Coefficient(i int) float64 { return h.coeffs[i] }

// Apply multiplies frame elementwise by the window and returns the tapered
// frame in a new slice. frame is not modified. Returns
// [ErrInputSizeMismatch] if len(frame) differs from the window length.
func (h *Hann) Apply(frame []float32) ([]float64, error) {
	out := make([]float64, len(h.coeffs))
	if err := h.ApplyTo(out, frame); err != nil {
		return nil, err
	}
	return out, nil
}

// ApplyTo is like Apply but writes into dst, which must have the window
// length. It lets hot loops reuse one buffer per worker.
func (h *Hann) ApplyTo(dst []float64, frame []float32) error {
	if len(frame) != len(h.coeffs) || len(dst) != len(h.coeffs) {
		return fmt.Errorf("%w: frame of %d samples for window of %d", ErrInputSizeMismatch, len(frame), len(h.coeffs))
	}
	for i, w := range h.coeffs {
		dst[i] = float64(frame[i]) * w
	}
	return nil
}
