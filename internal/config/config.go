// Package config provides the configuration schema, loader, and hot-reload
// watcher for the gaussvad service and CLI.
package config

import (
	"github.com/MrWong99/gaussvad/pkg/dsp/fourier"
	"github.com/MrWong99/gaussvad/pkg/provider/vad"
	"github.com/MrWong99/gaussvad/pkg/vad/gaussian"
)

// LogLevel controls log verbosity for the gaussvad server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Defaults applied by [ApplyDefaults] to zero-valued fields.
const (
	DefaultListenAddr     = ":8080"
	DefaultFrameSizeMs    = 20
	DefaultMaxUploadBytes = 64 << 20
	DefaultServiceName    = "gaussvad"
	DefaultMetricsPath    = "/metrics"
)

// Config is the root configuration structure for gaussvad.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Detector  DetectorConfig  `yaml:"detector"`
	Stream    StreamConfig    `yaml:"stream"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig holds network and logging settings for the HTTP service.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// DetectorConfig mirrors [gaussian.Config] in YAML form.
type DetectorConfig struct {
	// FrameLength is the analysis frame size in samples; a power of two.
	FrameLength int `yaml:"frame_length"`

	// HopLength is the frame advance in samples, in [1, FrameLength].
	HopLength int `yaml:"hop_length"`

	// SampleRate is the rate all audio is resampled to before detection.
	SampleRate int `yaml:"sample_rate"`

	// NoiseFrames is the number of leading frames used for the noise estimate.
	NoiseFrames int `yaml:"noise_frames"`

	// Alpha is the decision-directed smoothing factor in (0, 1).
	Alpha float64 `yaml:"alpha"`

	// Threshold is the likelihood-ratio decision threshold, > 0.
	Threshold float64 `yaml:"threshold"`

	// Transform selects the DFT implementation: radix2, direct or gonum.
	Transform fourier.Kind `yaml:"transform"`

	// Workers bounds spectrum goroutines; 0 means GOMAXPROCS.
	Workers int `yaml:"workers"`
}

// Gaussian converts d to the detector's configuration.
func (d DetectorConfig) Gaussian() gaussian.Config {
	return gaussian.Config{
		FrameLength: d.FrameLength,
		HopLength:   d.HopLength,
		SampleRate:  d.SampleRate,
		NoiseFrames: d.NoiseFrames,
		Alpha:       d.Alpha,
		Threshold:   d.Threshold,
		Transform:   d.Transform,
		Workers:     d.Workers,
	}
}

// StreamConfig configures WebSocket streaming sessions.
type StreamConfig struct {
	// FrameSizeMs is the duration of each PCM frame a client sends.
	FrameSizeMs int `yaml:"frame_size_ms"`

	// SpeechThreshold starts a speech segment. Zero means detector.threshold.
	SpeechThreshold float64 `yaml:"speech_threshold"`

	// SilenceThreshold ends a speech segment. Zero means SpeechThreshold.
	SilenceThreshold float64 `yaml:"silence_threshold"`

	// MaxUploadBytes caps the body of POST /v1/detect.
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
}

// Session returns the streaming session configuration at sampleRate.
func (s StreamConfig) Session(sampleRate int) vad.Config {
	return vad.Config{
		SampleRate:       sampleRate,
		FrameSizeMs:      s.FrameSizeMs,
		SpeechThreshold:  s.SpeechThreshold,
		SilenceThreshold: s.SilenceThreshold,
	}
}

// Thresholds resolves the zero-valued fallbacks against detectorThreshold.
// The stream fields themselves stay zero so that a later change to the
// detector threshold, from a reload or a command-line override, still
// reaches streams.
func (s StreamConfig) Thresholds(detectorThreshold float64) (speech, silence float64) {
	speech, silence = s.SpeechThreshold, s.SilenceThreshold
	if speech == 0 {
		speech = detectorThreshold
	}
	if silence == 0 {
		silence = speech
	}
	return speech, silence
}

// TelemetryConfig holds OpenTelemetry settings.
type TelemetryConfig struct {
	// ServiceName is reported as the service.name resource attribute.
	ServiceName string `yaml:"service_name"`

	// MetricsPath is where the Prometheus handler is mounted.
	MetricsPath string `yaml:"metrics_path"`
}

// ApplyDefaults fills zero-valued fields of cfg with the standard values.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}

	def := gaussian.DefaultConfig()
	d := &cfg.Detector
	if d.FrameLength == 0 {
		d.FrameLength = def.FrameLength
	}
	if d.HopLength == 0 {
		d.HopLength = d.FrameLength / 2
	}
	if d.SampleRate == 0 {
		d.SampleRate = def.SampleRate
	}
	if d.NoiseFrames == 0 {
		d.NoiseFrames = def.NoiseFrames
	}
	if d.Alpha == 0 {
		d.Alpha = def.Alpha
	}
	if d.Threshold == 0 {
		d.Threshold = def.Threshold
	}
	if d.Transform == "" {
		d.Transform = def.Transform
	}

	if cfg.Stream.FrameSizeMs == 0 {
		cfg.Stream.FrameSizeMs = DefaultFrameSizeMs
	}
	if cfg.Stream.MaxUploadBytes == 0 {
		cfg.Stream.MaxUploadBytes = DefaultMaxUploadBytes
	}

	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = DefaultServiceName
	}
	if cfg.Telemetry.MetricsPath == "" {
		cfg.Telemetry.MetricsPath = DefaultMetricsPath
	}
}

// Default returns a configuration with every field at its default.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
