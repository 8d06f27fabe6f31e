package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/gaussvad/pkg/dsp"
	"github.com/MrWong99/gaussvad/pkg/dsp/fourier"
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, fills defaults and validates
// the result. An empty document yields the default configuration.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values. It expects
// defaults to have been applied and returns a joined error listing all
// validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	// Detector
	d := cfg.Detector
	if !dsp.IsPowerOfTwo(d.FrameLength) {
		errs = append(errs, fmt.Errorf("detector.frame_length %d must be a positive power of two", d.FrameLength))
	}
	if d.HopLength < 1 || d.HopLength > d.FrameLength {
		errs = append(errs, fmt.Errorf("detector.hop_length %d is out of range [1, %d]", d.HopLength, d.FrameLength))
	}
	if d.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("detector.sample_rate %d must be positive", d.SampleRate))
	}
	if d.NoiseFrames < 1 {
		errs = append(errs, fmt.Errorf("detector.noise_frames %d must be at least 1", d.NoiseFrames))
	}
	if !(d.Alpha > 0 && d.Alpha < 1) {
		errs = append(errs, fmt.Errorf("detector.alpha %.4g is out of range (0, 1)", d.Alpha))
	}
	if !(d.Threshold > 0) {
		errs = append(errs, fmt.Errorf("detector.threshold %.4g must be positive", d.Threshold))
	}
	if d.Transform != "" && !d.Transform.IsValid() {
		errs = append(errs, fmt.Errorf("detector.transform %q is invalid; valid values: %s", d.Transform, kindList()))
	}
	if d.Workers < 0 {
		errs = append(errs, fmt.Errorf("detector.workers %d must not be negative", d.Workers))
	}
	if d.Workers > 64 {
		slog.Warn("detector.workers is unusually high", "workers", d.Workers)
	}

	// Stream
	s := cfg.Stream
	if s.FrameSizeMs <= 0 {
		errs = append(errs, fmt.Errorf("stream.frame_size_ms %d must be positive", s.FrameSizeMs))
	} else if d.SampleRate > 0 && s.Session(d.SampleRate).FrameBytes() == 0 {
		errs = append(errs, fmt.Errorf("stream.frame_size_ms %d holds no samples at %d Hz", s.FrameSizeMs, d.SampleRate))
	}
	if s.SpeechThreshold < 0 {
		errs = append(errs, fmt.Errorf("stream.speech_threshold %.4g must be positive", s.SpeechThreshold))
	}
	if s.SilenceThreshold < 0 {
		errs = append(errs, fmt.Errorf("stream.silence_threshold %.4g must be positive", s.SilenceThreshold))
	}
	if speech, silence := s.Thresholds(d.Threshold); silence > speech {
		errs = append(errs, fmt.Errorf("stream.silence_threshold %.4g exceeds speech threshold %.4g", silence, speech))
	}
	if s.MaxUploadBytes < 0 {
		errs = append(errs, fmt.Errorf("stream.max_upload_bytes %d must not be negative", s.MaxUploadBytes))
	}

	// Telemetry
	if p := cfg.Telemetry.MetricsPath; p != "" && !strings.HasPrefix(p, "/") {
		errs = append(errs, fmt.Errorf("telemetry.metrics_path %q must start with /", p))
	}

	return errors.Join(errs...)
}

func kindList() string {
	names := make([]string, 0, len(fourier.Kinds))
	for _, k := range fourier.Kinds {
		names = append(names, string(k))
	}
	return strings.Join(names, ", ")
}
