// Package types defines the shared types used across gaussvad packages.
//
// These types are the lingua franca between the detector, the HTTP service
// and the CLI. Each package defines its own domain types; cross-cutting data
// structures live here to avoid circular imports.
package types

import "time"

// DetectionResult is the outcome of one batch detection run. SpeechFrames
// and LogLikelihood are parallel slices with one entry per analysis frame,
// in chronological order.
type DetectionResult struct {
	// SpeechFrames holds the per-frame speech decision.
	SpeechFrames []bool `json:"speech_frames"`

	// LogLikelihood holds the per-frame average log-likelihood ratio.
	LogLikelihood []float64 `json:"log_likelihood"`

	// FrameTimes holds the start time of each frame in seconds.
	FrameTimes []float64 `json:"frame_times"`

	// Segments merges runs of consecutive speech frames.
	Segments []Segment `json:"segments"`

	// SpeechRatio is the fraction of frames classified as speech.
	SpeechRatio float64 `json:"speech_ratio"`

	FrameLength int `json:"frame_length"`
	HopLength   int `json:"hop_length"`
	SampleRate  int `json:"sample_rate"`
}

// FrameCount returns the number of analysis frames in r.
func (r *DetectionResult) FrameCount() int { return len(r.SpeechFrames) }

// Segment is a contiguous run of speech frames.
type Segment struct {
	// FirstFrame and LastFrame are inclusive frame indices.
	FirstFrame int `json:"first_frame"`
	LastFrame  int `json:"last_frame"`

	// Start is the first frame's start time and End the last frame's end
	// time, both in seconds.
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Duration returns the segment length.
func (s Segment) Duration() time.Duration {
	return time.Duration((s.End - s.Start) * float64(time.Second))
}
