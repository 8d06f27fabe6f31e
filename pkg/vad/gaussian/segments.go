package gaussian

import "github.com/MrWong99/gaussvad/pkg/types"

// Segments merges consecutive speech frames into time segments. A segment
// starts at its first frame's offset and ends where its last frame ends.
func Segments(speech []bool, frameLength, hopLength, sampleRate int) []types.Segment {
	segs := []types.Segment{}
	if sampleRate <= 0 {
		return segs
	}
	rate := float64(sampleRate)
	first := -1
	flush := func(last int) {
		segs = append(segs, types.Segment{
			FirstFrame: first,
			LastFrame:  last,
			Start:      float64(first*hopLength) / rate,
			End:        float64(last*hopLength+frameLength) / rate,
		})
		first = -1
	}
	for m, s := range speech {
		switch {
		case s && first < 0:
			first = m
		case !s && first >= 0:
			flush(m - 1)
		}
	}
	if first >= 0 {
		flush(len(speech) - 1)
	}
	return segs
}
