package audio

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrDecode is returned when an input cannot be decoded into samples.
var ErrDecode = errors.New("audio: decode failed")

// Clip is a decoded mono recording.
type Clip struct {
	// Samples are normalised to [-1, 1).
	Samples []float32

	// SampleRate in Hz.
	SampleRate int

	// SourceChannels is the channel count of the original file.
	SourceChannels int
}

// DecodeWAV reads a PCM WAV file, downmixes it to mono and resamples it to
// targetRate (when targetRate > 0). Failures wrap [ErrDecode].
func DecodeWAV(r io.ReadSeeker, targetRate int) (*Clip, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: not a valid WAV file", ErrDecode)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: read PCM: %v", ErrDecode, err)
	}
	if buf.Format == nil || buf.Format.NumChannels <= 0 || buf.Format.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: missing format information", ErrDecode)
	}

	channels := buf.Format.NumChannels
	rate := buf.Format.SampleRate
	samples := DownmixFloat32(IntsToFloat32(buf.Data, buf.SourceBitDepth), channels)

	if targetRate > 0 && rate != targetRate {
		slog.Debug("resampling decoded audio",
			"from", Format{SampleRate: rate, Channels: 1},
			"to", Format{SampleRate: targetRate, Channels: 1},
		)
		samples = ResampleFloat32(samples, rate, targetRate)
		rate = targetRate
	}

	return &Clip{
		Samples:        samples,
		SampleRate:     rate,
		SourceChannels: channels,
	}, nil
}

// EncodeWAV writes mono samples as a 16-bit PCM WAV file.
func EncodeWAV(w io.WriteSeeker, samples []float32, sampleRate int) error {
	enc := wav.NewEncoder(w, sampleRate, 16, 1, 1)
	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(toInt16(s))
	}
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("audio: write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("audio: close wav: %w", err)
	}
	return nil
}
