// Package gaussian provides a [vad.Engine] backed by the statistical
// likelihood-ratio detector in pkg/vad/gaussian, run incrementally over a
// live PCM stream.
//
// Each session buffers incoming samples and analyses a frame whenever a full
// frame is available. The first NoiseFrames analysis frames calibrate the
// noise estimate and report [vad.VADSilence]; once calibration completes the
// SNR recursion is replayed over them and every later frame costs one SNR
// step and one decision. With SilenceThreshold equal to SpeechThreshold the
// per-frame decisions match the batch detector on the same signal.
package gaussian

import (
	"fmt"
	"math"
	"sync"

	"github.com/MrWong99/gaussvad/pkg/audio"
	"github.com/MrWong99/gaussvad/pkg/dsp"
	"github.com/MrWong99/gaussvad/pkg/provider/vad"
	model "github.com/MrWong99/gaussvad/pkg/vad/gaussian"
)

// Engine creates streaming sessions sharing one precomputed detector. It is
// safe for concurrent use.
type Engine struct {
	det *model.Detector
}

var _ vad.Engine = (*Engine)(nil)

// New returns an Engine for the given detector configuration.
func New(cfg model.Config, opts ...model.Option) (*Engine, error) {
	det, err := model.NewDetector(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &Engine{det: det}, nil
}

// NewFromDetector wraps an existing detector.
func NewFromDetector(det *model.Detector) *Engine {
	return &Engine{det: det}
}

// DefaultSessionConfig returns a session configuration at the detector's
// sample rate with frameSizeMs frames and the detector's threshold.
func (e *Engine) DefaultSessionConfig(frameSizeMs int) vad.Config {
	c := e.det.Config()
	return vad.Config{
		SampleRate:       c.SampleRate,
		FrameSizeMs:      frameSizeMs,
		SpeechThreshold:  c.Threshold,
		SilenceThreshold: c.Threshold,
	}
}

// NewSession implements [vad.Engine]. The session sample rate must equal the
// detector's.
func (e *Engine) NewSession(cfg vad.Config) (vad.SessionHandle, error) {
	dc := e.det.Config()
	if cfg.SampleRate != dc.SampleRate {
		return nil, fmt.Errorf("gaussian: %w: session sample rate %d, detector runs at %d", dsp.ErrConfiguration, cfg.SampleRate, dc.SampleRate)
	}
	if cfg.FrameSizeMs <= 0 || cfg.FrameBytes() <= 0 {
		return nil, fmt.Errorf("gaussian: %w: frame size %d ms holds no samples at %d Hz", dsp.ErrConfiguration, cfg.FrameSizeMs, cfg.SampleRate)
	}
	if cfg.SpeechThreshold == 0 {
		cfg.SpeechThreshold = dc.Threshold
	}
	if cfg.SilenceThreshold == 0 {
		cfg.SilenceThreshold = cfg.SpeechThreshold
	}
	if !(cfg.SpeechThreshold > 0) || !(cfg.SilenceThreshold > 0) {
		return nil, fmt.Errorf("gaussian: %w: thresholds must be positive", dsp.ErrConfiguration)
	}
	if cfg.SilenceThreshold > cfg.SpeechThreshold {
		return nil, fmt.Errorf("gaussian: %w: silence threshold %v above speech threshold %v", dsp.ErrConfiguration, cfg.SilenceThreshold, cfg.SpeechThreshold)
	}

	return &session{
		det:        e.det,
		cfg:        cfg,
		frameBytes: cfg.FrameBytes(),
		speechLog:  math.Log(cfg.SpeechThreshold),
		silenceLog: math.Log(cfg.SilenceThreshold),
		lastFrame:  -1,
	}, nil
}

// session implements [vad.SessionHandle]. The mutex only guards against
// Close racing a ProcessFrame; sessions are meant for a single goroutine.
type session struct {
	det        *model.Detector
	cfg        vad.Config
	frameBytes int
	speechLog  float64
	silenceLog float64

	mu      sync.Mutex
	closed  bool
	pending []float32

	// Calibration lead-in, cleared once the noise estimate exists.
	calibration [][]float64
	noise       []float64
	tracker     *model.SNRTracker

	frames    int
	inSpeech  bool
	lastLL    float64
	lastFrame int
}

// ProcessFrame implements [vad.SessionHandle]. When one call completes
// several analysis frames, the returned event compares the speech state
// before the call with the state after its last frame.
func (s *session) ProcessFrame(frame []byte) (vad.VADEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return vad.VADEvent{}, vad.ErrSessionClosed
	}
	if len(frame) != s.frameBytes {
		return vad.VADEvent{}, fmt.Errorf("gaussian: %w: frame of %d bytes, want %d", dsp.ErrInputSizeMismatch, len(frame), s.frameBytes)
	}

	was := s.inSpeech
	s.pending = append(s.pending, audio.PCM16ToFloat32(frame)...)

	dc := s.det.Config()
	for len(s.pending) >= dc.FrameLength {
		spectrum, err := s.det.Spectrum(s.pending[:dc.FrameLength])
		if err != nil {
			return vad.VADEvent{}, err
		}
		s.pending = append(s.pending[:0], s.pending[dc.HopLength:]...)
		if err := s.analyse(spectrum); err != nil {
			return vad.VADEvent{}, err
		}
	}

	return s.event(was), nil
}

func (s *session) analyse(spectrum []float64) error {
	s.frames++
	if s.noise != nil {
		xi, err := s.tracker.Step(spectrum)
		if err != nil {
			return err
		}
		return s.decide(spectrum, xi)
	}

	dc := s.det.Config()
	s.calibration = append(s.calibration, spectrum)
	if len(s.calibration) < dc.NoiseFrames {
		return nil
	}

	noise, err := model.EstimateNoise(s.calibration, dc.NoiseFrames)
	if err != nil {
		return err
	}
	tracker, err := model.NewSNRTracker(noise, dc.Alpha)
	if err != nil {
		return err
	}
	s.noise, s.tracker = noise, tracker
	for _, y := range s.calibration {
		xi, err := s.tracker.Step(y)
		if err != nil {
			return err
		}
		if err := s.decide(y, xi); err != nil {
			return err
		}
	}
	s.calibration = nil
	return nil
}

// decide applies the hysteresis rule to one frame's log-likelihood.
func (s *session) decide(spectrum, xi []float64) error {
	ll, err := model.FrameLogLikelihood(spectrum, xi, s.noise)
	if err != nil {
		return err
	}
	if s.inSpeech {
		s.inSpeech = ll > s.silenceLog
	} else {
		s.inSpeech = ll > s.speechLog
	}
	s.lastLL = ll
	s.lastFrame = s.frames - 1
	return nil
}

func (s *session) event(was bool) vad.VADEvent {
	ev := vad.VADEvent{
		Type:          vad.VADSilence,
		LogLikelihood: s.lastLL,
		Frame:         s.lastFrame,
	}
	if s.lastFrame >= 0 {
		ev.Probability = model.Probability(s.lastLL)
	}
	switch {
	case !was && s.inSpeech:
		ev.Type = vad.VADSpeechStart
	case was && s.inSpeech:
		ev.Type = vad.VADSpeechContinue
	case was && !s.inSpeech:
		ev.Type = vad.VADSpeechEnd
	}
	return ev
}

// Reset implements [vad.SessionHandle]. The noise estimate is discarded too,
// so the next frames calibrate again.
func (s *session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = nil
	s.calibration = nil
	s.noise = nil
	s.tracker = nil
	s.frames = 0
	s.inSpeech = false
	s.lastLL = 0
	s.lastFrame = -1
}

// Close implements [vad.SessionHandle].
func (s *session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.pending = nil
	s.calibration = nil
	return nil
}
