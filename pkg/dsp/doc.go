// Package dsp provides the time-domain building blocks of the detection
// pipeline: slicing a sample sequence into overlapping frames and tapering
// each frame with a Hann window before it is transformed.
//
// The package also owns the error kinds shared by every pipeline stage so
// that callers can classify failures with [errors.Is] regardless of which
// stage produced them.
package dsp
