// Package vad exposes frame-level speech detection as per-stream sessions.
//
// A session buffers PCM until a full analysis frame is available, calibrates
// its noise model on the first frames it sees and then reports one
// [VADEvent] per ProcessFrame call. Sessions are independent; an [Engine]
// may be shared, a [SessionHandle] may not.
package vad

import "errors"

// ErrSessionClosed is returned by ProcessFrame after Close.
var ErrSessionClosed = errors.New("vad: session closed")

// Config holds the parameters for a VAD session.
type Config struct {
	// SampleRate is the audio sample rate in Hz. Must match the rate of the PCM
	// frames passed to ProcessFrame. Common values: 8000, 16000, 48000.
	SampleRate int

	// FrameSizeMs is the duration of each audio frame in milliseconds.
	// ProcessFrame returns an error if the supplied frame does not match this
	// size.
	FrameSizeMs int

	// SpeechThreshold is the likelihood-ratio threshold above which a frame
	// starts a speech segment: speech begins when the frame's average
	// log-likelihood exceeds log(SpeechThreshold). Must be positive; zero
	// selects the engine default.
	SpeechThreshold float64

	// SilenceThreshold ends an active speech segment once a frame's average
	// log-likelihood drops to or below log(SilenceThreshold). Must be
	// ≤ SpeechThreshold. Zero means equal to SpeechThreshold (no hysteresis).
	SilenceThreshold float64
}

// FrameBytes returns the byte length of one int16 mono frame under c.
func (c Config) FrameBytes() int {
	return c.SampleRate * c.FrameSizeMs / 1000 * 2
}

// SessionHandle is one stream's detection state.
type SessionHandle interface {
	// ProcessFrame consumes exactly Config.FrameBytes of little-endian int16
	// mono PCM and reports the state after the last completed analysis
	// frame. It does not block.
	ProcessFrame(frame []byte) (VADEvent, error)

	// Reset drops buffered samples, the noise model and the hysteresis state
	// so the next frame starts a new calibration.
	Reset()

	// Close is idempotent. Later ProcessFrame calls fail with
	// [ErrSessionClosed].
	Close() error
}

// Engine creates sessions and is safe for concurrent use.
type Engine interface {
	// NewSession fails when cfg does not fit the engine's detector, for
	// example a sample rate other than the one it was calibrated for.
	NewSession(cfg Config) (SessionHandle, error)
}
