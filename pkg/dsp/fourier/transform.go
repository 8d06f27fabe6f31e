// Package fourier provides the Transform Engine: the magnitude of the
// discrete Fourier transform of a fixed-size real block,
//
//	X[k] = sum_{j=0}^{N-1} x[j] * exp(-2*pi*i*j*k/N),  returned as |X[k]|.
//
// Three interchangeable variants implement [Transform]:
//
//   - [NewDirect] evaluates the sum for every k, O(N²). It is the reference
//     the other variants are checked against.
//   - [NewRadix2] is an iterative radix-2 Cooley-Tukey transform, O(N log N).
//   - [NewGonum] delegates to gonum's real FFT.
//
// All variants precompute their tables at construction. A Transform is
// immutable afterwards and Forward is safe for concurrent use, so a single
// instance should be shared by every frame and every detection run of the
// same size.
package fourier

import (
	"fmt"

	"github.com/MrWong99/gaussvad/pkg/dsp"
)

// Transform computes the magnitude spectrum of a real block of Size()
// samples.
type Transform interface {
	// Size returns the transform length N.
	Size() int

	// Forward returns |X[k]| for k in [0, N). frame must have exactly N
	// samples, otherwise an error wrapping [dsp.ErrInputSizeMismatch] is
	// returned. Only the first N/2+1 values carry information for real input.
	Forward(frame []float64) ([]float64, error)
}

// Kind selects a [Transform] variant.
type Kind string

const (
	KindDirect Kind = "direct"
	KindRadix2 Kind = "radix2"
	KindGonum  Kind = "gonum"
)

// Kinds lists every supported variant.
var Kinds = []Kind{KindRadix2, KindDirect, KindGonum}

// IsValid reports whether k names a supported variant.
func (k Kind) IsValid() bool {
	switch k {
	case KindDirect, KindRadix2, KindGonum:
		return true
	}
	return false
}

// New constructs the variant named by kind. An empty kind selects
// [KindRadix2].
func New(kind Kind, n int) (Transform, error) {
	switch kind {
	case KindRadix2, "":
		return NewRadix2(n)
	case KindDirect:
		return NewDirect(n)
	case KindGonum:
		return NewGonum(n)
	}
	return nil, fmt.Errorf("fourier: %w: unknown transform %q", dsp.ErrConfiguration, kind)
}

// Bins returns the number of non-redundant bins of a real transform of size
// n, i.e. n/2+1.
func Bins(n int) int { return n/2 + 1 }

func checkSize(n int) error {
	if !dsp.IsPowerOfTwo(n) {
		return fmt.Errorf("fourier: %w: size %d is not a positive power of two", dsp.ErrConfiguration, n)
	}
	return nil
}

func checkInput(n int, frame []float64) error {
	if len(frame) != n {
		return fmt.Errorf("fourier: %w: got %d samples, transform size is %d", dsp.ErrInputSizeMismatch, len(frame), n)
	}
	return nil
}
