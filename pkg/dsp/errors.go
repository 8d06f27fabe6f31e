package dsp

import "errors"

var (
	// ErrConfiguration is returned when a stage is constructed with invalid
	// parameters, e.g. a transform size that is not a positive power of two.
	ErrConfiguration = errors.New("dsp: invalid configuration")

	// ErrInsufficientData is returned when the input is too short to produce
	// a single frame, or when no frames are available for noise estimation.
	ErrInsufficientData = errors.New("dsp: insufficient data")

	// ErrInputSizeMismatch is returned when a frame's length does not match
	// the size a stage was constructed for.
	ErrInputSizeMismatch = errors.New("dsp: input size mismatch")
)

// IsPowerOfTwo reports whether n is a positive power of two.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}
