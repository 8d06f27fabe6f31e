package dsp

import "fmt"

// FrameCount returns the number of complete frames of frameLength samples
// that fit in sampleCount samples when successive frames start hopLength
// samples apart. The trailing partial frame, if any, is not counted.
// It returns 0 when sampleCount < frameLength or either length is not
// positive.
func FrameCount(sampleCount, frameLength, hopLength int) int {
	if frameLength <= 0 || hopLength <= 0 || sampleCount < frameLength {
		return 0
	}
	return (sampleCount-frameLength)/hopLength + 1
}

// FrameOffsets returns the sample offset at which each frame starts:
// 0, hopLength, 2*hopLength, ...
func FrameOffsets(sampleCount, frameLength, hopLength int) []int {
	n := FrameCount(sampleCount, frameLength, hopLength)
	offsets := make([]int, n)
	for i := range offsets {
		offsets[i] = i * hopLength
	}
	return offsets
}

// Frame slices signal into overlapping frames of frameLength samples with
// successive frames starting hopLength samples apart. Each frame is a copy;
// signal is never modified and the returned frames may be mutated freely.
//
// Frame returns [ErrConfiguration] if either length is not positive and
// [ErrInsufficientData] if signal is shorter than one frame.
func Frame(signal []float32, frameLength, hopLength int) ([][]float32, error) {
	if frameLength <= 0 || hopLength <= 0 {
		return nil, fmt.Errorf("%w: frame length %d and hop length %d must be positive", ErrConfiguration, frameLength, hopLength)
	}
	if len(signal) < frameLength {
		return nil, fmt.Errorf("%w: %d samples is shorter than one frame of %d", ErrInsufficientData, len(signal), frameLength)
	}

	offsets := FrameOffsets(len(signal), frameLength, hopLength)
	frames := make([][]float32, len(offsets))
	for i, off := range offsets {
		f := make([]float32, frameLength)
		copy(f, signal[off:off+frameLength])
		frames[i] = f
	}
	return frames, nil
}
