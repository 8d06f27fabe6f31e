package gaussian

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/gaussvad/pkg/dsp"
	"github.com/MrWong99/gaussvad/pkg/dsp/fourier"
	"github.com/MrWong99/gaussvad/pkg/types"
)

// Stage names reported to a [StageObserver].
const (
	StageSpectra  = "spectra"
	StageNoise    = "noise"
	StageSNR      = "snr"
	StageDecision = "decision"
)

// Config holds the detector parameters. The zero value is not usable; start
// from [DefaultConfig].
type Config struct {
	// FrameLength is the analysis frame and transform size. Must be a power
	// of two.
	FrameLength int

	// HopLength is the distance in samples between successive frame starts.
	// Must be in [1, FrameLength].
	HopLength int

	// SampleRate is the rate of the input samples in Hz. Only used to express
	// frame positions in seconds.
	SampleRate int

	// NoiseFrames is the number of leading frames assumed to contain noise
	// only. Clamped to the available frame count.
	NoiseFrames int

	// Alpha is the decision-directed smoothing factor in (0, 1).
	Alpha float64

	// Threshold is the likelihood-ratio threshold; must be positive.
	Threshold float64

	// Transform selects the Transform Engine variant.
	Transform fourier.Kind

	// Workers bounds the goroutines computing spectra. Zero means
	// GOMAXPROCS.
	Workers int
}

// DefaultConfig returns the standard parameters: 1024-sample frames with a
// 512-sample hop at 16 kHz, ten noise frames, alpha 0.98 and threshold 0.5.
func DefaultConfig() Config {
	return Config{
		FrameLength: 1024,
		HopLength:   512,
		SampleRate:  16000,
		NoiseFrames: 10,
		Alpha:       DefaultAlpha,
		Threshold:   DefaultThreshold,
		Transform:   fourier.KindRadix2,
	}
}

// Validate reports every invalid field as a joined error wrapping
// [dsp.ErrConfiguration].
func (c Config) Validate() error {
	var errs []error
	if !dsp.IsPowerOfTwo(c.FrameLength) {
		errs = append(errs, fmt.Errorf("%w: frame length %d is not a positive power of two", dsp.ErrConfiguration, c.FrameLength))
	}
	if c.HopLength < 1 || c.HopLength > c.FrameLength {
		errs = append(errs, fmt.Errorf("%w: hop length %d must be in [1, %d]", dsp.ErrConfiguration, c.HopLength, c.FrameLength))
	}
	if c.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("%w: sample rate %d must be positive", dsp.ErrConfiguration, c.SampleRate))
	}
	if c.NoiseFrames < 1 {
		errs = append(errs, fmt.Errorf("%w: noise frames %d must be at least 1", dsp.ErrConfiguration, c.NoiseFrames))
	}
	if !(c.Alpha > 0 && c.Alpha < 1) {
		errs = append(errs, fmt.Errorf("%w: alpha %v must be in (0, 1)", dsp.ErrConfiguration, c.Alpha))
	}
	if !(c.Threshold > 0) {
		errs = append(errs, fmt.Errorf("%w: threshold %v must be positive", dsp.ErrConfiguration, c.Threshold))
	}
	if c.Transform != "" && !c.Transform.IsValid() {
		errs = append(errs, fmt.Errorf("%w: unknown transform %q", dsp.ErrConfiguration, c.Transform))
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("%w: workers %d must not be negative", dsp.ErrConfiguration, c.Workers))
	}
	return errors.Join(errs...)
}

// StageObserver is notified after each pipeline stage completes.
type StageObserver func(ctx context.Context, stage string, elapsed time.Duration)

// Option is a functional option for [NewDetector].
type Option func(*Detector)

// WithTransform injects a Transform instead of constructing the one named by
// Config.Transform. Its size must equal Config.FrameLength.
func WithTransform(t fourier.Transform) Option {
	return func(d *Detector) { d.transform = t }
}

// WithStageObserver registers fn to be called with the duration of every
// stage.
func WithStageObserver(fn StageObserver) Option {
	return func(d *Detector) { d.observe = fn }
}

// Detector runs the full pipeline over one recording at a time. The window
// and transform tables are built once in [NewDetector] and shared read-only,
// so a Detector is safe for concurrent use by multiple goroutines.
type Detector struct {
	cfg       Config
	window    *dsp.Hann
	transform fourier.Transform
	observe   StageObserver
}

// NewDetector validates cfg and precomputes the window and transform.
func NewDetector(cfg Config, opts ...Option) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("gaussian: %w", err)
	}
	d := &Detector{cfg: cfg}
	for _, o := range opts {
		o(d)
	}

	window, err := dsp.NewHann(cfg.FrameLength)
	if err != nil {
		return nil, fmt.Errorf("gaussian: %w", err)
	}
	d.window = window

	if d.transform == nil {
		d.transform, err = fourier.New(cfg.Transform, cfg.FrameLength)
		if err != nil {
			return nil, fmt.Errorf("gaussian: %w", err)
		}
	}
	if d.transform.Size() != cfg.FrameLength {
		return nil, fmt.Errorf("gaussian: %w: transform size %d does not match frame length %d", dsp.ErrConfiguration, d.transform.Size(), cfg.FrameLength)
	}
	return d, nil
}

// Config returns the detector's configuration.
func (d *Detector) Config() Config { return d.cfg }

// Transform returns the transform the detector runs.
func (d *Detector) Transform() fourier.Transform { return d.transform }

// Bins returns the number of frequency bins per spectrum.
func (d *Detector) Bins() int { return fourier.Bins(d.cfg.FrameLength) }

// Spectrum windows and transforms a single frame and returns its
// non-redundant magnitudes.
func (d *Detector) Spectrum(frame []float32) ([]float64, error) {
	buf := make([]float64, d.cfg.FrameLength)
	return d.spectrum(buf, frame)
}

func (d *Detector) spectrum(buf []float64, frame []float32) ([]float64, error) {
	if err := d.window.ApplyTo(buf, frame); err != nil {
		return nil, err
	}
	mag, err := d.transform.Forward(buf)
	if err != nil {
		return nil, err
	}
	out := make([]float64, d.Bins())
	copy(out, mag)
	return out, nil
}

// Spectra frames samples and returns one magnitude spectrum per frame, in
// frame order. Frames are independent, so they are split into contiguous
// chunks and processed concurrently. Cancelling ctx aborts the computation.
func (d *Detector) Spectra(ctx context.Context, samples []float32) ([][]float64, error) {
	frames, err := dsp.Frame(samples, d.cfg.FrameLength, d.cfg.HopLength)
	if err != nil {
		return nil, fmt.Errorf("gaussian: %w", err)
	}

	workers := d.cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	workers = min(workers, len(frames))
	chunk := (len(frames) + workers - 1) / workers

	spectra := make([][]float64, len(frames))
	eg, egCtx := errgroup.WithContext(ctx)
	for lo := 0; lo < len(frames); lo += chunk {
		hi := min(lo+chunk, len(frames))
		eg.Go(func() error {
			buf := make([]float64, d.cfg.FrameLength)
			for m := lo; m < hi; m++ {
				if err := egCtx.Err(); err != nil {
					return err
				}
				s, err := d.spectrum(buf, frames[m])
				if err != nil {
					return fmt.Errorf("gaussian: frame %d: %w", m, err)
				}
				spectra[m] = s
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return spectra, nil
}

// Detect runs the pipeline over samples and returns one decision and one
// average log-likelihood per frame. It fails with [dsp.ErrInsufficientData]
// when samples is shorter than one frame.
func (d *Detector) Detect(ctx context.Context, samples []float32) (*types.DetectionResult, error) {
	start := time.Now()
	spectra, err := d.Spectra(ctx, samples)
	if err != nil {
		return nil, err
	}
	d.stageDone(ctx, StageSpectra, start)

	start = time.Now()
	noise, err := EstimateNoise(spectra, d.cfg.NoiseFrames)
	if err != nil {
		return nil, err
	}
	d.stageDone(ctx, StageNoise, start)

	start = time.Now()
	xi, err := EstimateSNR(spectra, noise, d.cfg.Alpha)
	if err != nil {
		return nil, err
	}
	d.stageDone(ctx, StageSNR, start)

	start = time.Now()
	speech, lls, err := Decide(spectra, xi, noise, d.cfg.Threshold)
	if err != nil {
		return nil, err
	}
	d.stageDone(ctx, StageDecision, start)

	return d.result(speech, lls), nil
}

func (d *Detector) stageDone(ctx context.Context, stage string, start time.Time) {
	if d.observe != nil {
		d.observe(ctx, stage, time.Since(start))
	}
}

func (d *Detector) result(speech []bool, lls []float64) *types.DetectionResult {
	times := make([]float64, len(speech))
	nSpeech := 0
	for m, s := range speech {
		times[m] = float64(m*d.cfg.HopLength) / float64(d.cfg.SampleRate)
		if s {
			nSpeech++
		}
	}
	return &types.DetectionResult{
		SpeechFrames:  speech,
		LogLikelihood: lls,
		FrameTimes:    times,
		Segments:      Segments(speech, d.cfg.FrameLength, d.cfg.HopLength, d.cfg.SampleRate),
		SpeechRatio:   float64(nSpeech) / float64(len(speech)),
		FrameLength:   d.cfg.FrameLength,
		HopLength:     d.cfg.HopLength,
		SampleRate:    d.cfg.SampleRate,
	}
}
