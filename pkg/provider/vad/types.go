package vad

import "fmt"

// VADEvent represents a voice activity detection result for a single audio
// frame.
type VADEvent struct {
	// Type is the detection result.
	Type VADEventType `json:"type"`

	// Probability is the speech probability score (0.0–1.0).
	Probability float64 `json:"probability"`

	// LogLikelihood is the average log-likelihood ratio of the most recent
	// analysis frame.
	LogLikelihood float64 `json:"log_likelihood"`

	// Frame is the index of the most recent analysis frame, or -1 when no
	// analysis frame has completed yet.
	Frame int `json:"frame"`
}

// VADEventType enumerates VAD detection states.
type VADEventType int

const (
	// VADSpeechStart indicates speech has just begun.
	VADSpeechStart VADEventType = iota

	// VADSpeechContinue indicates ongoing speech.
	VADSpeechContinue

	// VADSpeechEnd indicates speech has just ended.
	VADSpeechEnd

	// VADSilence indicates no speech detected.
	VADSilence
)

var eventNames = [...]string{
	VADSpeechStart:    "speech_start",
	VADSpeechContinue: "speech_continue",
	VADSpeechEnd:      "speech_end",
	VADSilence:        "silence",
}

// String returns the snake_case event name.
func (t VADEventType) String() string {
	if t >= 0 && int(t) < len(eventNames) {
		return eventNames[t]
	}
	return fmt.Sprintf("VADEventType(%d)", int(t))
}

// MarshalText encodes the event type as its name.
func (t VADEventType) MarshalText() ([]byte, error) {
	if t < 0 || int(t) >= len(eventNames) {
		return nil, fmt.Errorf("vad: unknown event type %d", int(t))
	}
	return []byte(eventNames[t]), nil
}

// UnmarshalText decodes an event type name.
func (t *VADEventType) UnmarshalText(b []byte) error {
	for i, name := range eventNames {
		if name == string(b) {
			*t = VADEventType(i)
			return nil
		}
	}
	return fmt.Errorf("vad: unknown event type %q", b)
}

// IsSpeech reports whether the event leaves the stream in a speech segment.
func (t VADEventType) IsSpeech() bool {
	return t == VADSpeechStart || t == VADSpeechContinue
}
