package gaussian_test

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/MrWong99/gaussvad/pkg/audio"
	"github.com/MrWong99/gaussvad/pkg/dsp"
	"github.com/MrWong99/gaussvad/pkg/provider/vad"
	"github.com/MrWong99/gaussvad/pkg/provider/vad/gaussian"
	model "github.com/MrWong99/gaussvad/pkg/vad/gaussian"
)

const (
	rate = 16000
	// 32 ms at 16 kHz is 512 samples, one hop of the default detector.
	hopMs = 32
)

func newEngine(t *testing.T) *gaussian.Engine {
	t.Helper()
	e, err := gaussian.New(model.DefaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func newSession(t *testing.T, e *gaussian.Engine, cfg vad.Config) vad.SessionHandle {
	t.Helper()
	s, err := e.NewSession(cfg)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func noise(rng *rand.Rand, n int, variance float64) []float32 {
	sd := math.Sqrt(variance)
	s := make([]float32, n)
	for i := range s {
		s[i] = float32(rng.NormFloat64() * sd)
	}
	return s
}

func tone(n int, freq, amplitude float64) []float32 {
	s := make([]float32, n)
	for i := range s {
		s[i] = float32(amplitude * math.Sin(2*math.Pi*freq*float64(i)/rate))
	}
	return s
}

// pcmSignal returns ten frames of noise followed by ten frames of a 500 Hz
// tone (and optionally ten more frames of noise) as int16 PCM.
func pcmSignal(seed uint64, trailingNoise bool) []byte {
	rng := rand.New(rand.NewPCG(seed, 7))
	sig := noise(rng, 10*1024, 0.01)
	sig = append(sig, tone(10*1024, 500, 0.9)...)
	if trailingNoise {
		sig = append(sig, noise(rng, 10*1024, 0.01)...)
	}
	return audio.Float32ToPCM16(sig)
}

func feed(t *testing.T, s vad.SessionHandle, pcm []byte, chunk int) []vad.VADEvent {
	t.Helper()
	var events []vad.VADEvent
	for off := 0; off+chunk <= len(pcm); off += chunk {
		ev, err := s.ProcessFrame(pcm[off : off+chunk])
		if err != nil {
			t.Fatalf("ProcessFrame at byte %d: %v", off, err)
		}
		events = append(events, ev)
	}
	return events
}

func TestSession_MatchesBatchDetector(t *testing.T) {
	t.Parallel()
	e := newEngine(t)
	pcm := pcmSignal(3, false)

	det, err := model.NewDetector(model.DefaultConfig())
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}
	want, err := det.Detect(context.Background(), audio.PCM16ToFloat32(pcm))
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}

	s := newSession(t, e, e.DefaultSessionConfig(hopMs))
	events := feed(t, s, pcm, 1024)

	// Chunk k completes analysis frame k-1; the first ten frames calibrate.
	for k, ev := range events {
		if k < 10 {
			if ev.Type != vad.VADSilence || ev.Frame != -1 {
				t.Fatalf("lead-in event %d = %+v, want silence at frame -1", k, ev)
			}
			continue
		}
		m := k - 1
		if ev.Frame != m {
			t.Fatalf("event %d frame = %d, want %d", k, ev.Frame, m)
		}
		if math.Abs(ev.LogLikelihood-want.LogLikelihood[m]) > 1e-9 {
			t.Errorf("frame %d log-likelihood = %v, batch %v", m, ev.LogLikelihood, want.LogLikelihood[m])
		}
		if ev.Type.IsSpeech() != want.SpeechFrames[m] {
			t.Errorf("frame %d event %v, batch speech=%v", m, ev.Type, want.SpeechFrames[m])
		}
		if p := model.Probability(ev.LogLikelihood); ev.Probability != p {
			t.Errorf("frame %d probability = %v, want %v", m, ev.Probability, p)
		}
	}
	if got, want := events[len(events)-1].Frame, want.FrameCount()-1; got != want {
		t.Errorf("last frame = %d, want %d", got, want)
	}
}

func TestSession_Hysteresis(t *testing.T) {
	t.Parallel()
	e := newEngine(t)
	pcm := pcmSignal(5, true)
	speech := math.Exp(10)

	count := func(events []vad.VADEvent, typ vad.VADEventType) int {
		n := 0
		for _, ev := range events {
			if ev.Type == typ {
				n++
			}
		}
		return n
	}

	tests := []struct {
		name     string
		silence  float64
		wantEnds bool
	}{
		{name: "no hysteresis", silence: speech, wantEnds: true},
		{name: "sticky speech", silence: 1e-300, wantEnds: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			s := newSession(t, e, vad.Config{
				SampleRate:       rate,
				FrameSizeMs:      hopMs,
				SpeechThreshold:  speech,
				SilenceThreshold: tc.silence,
			})
			events := feed(t, s, pcm, 1024)

			if count(events, vad.VADSpeechStart) == 0 {
				t.Fatal("tone never started a speech segment")
			}
			if got := count(events, vad.VADSpeechEnd) > 0; got != tc.wantEnds {
				t.Errorf("speech ended = %v, want %v", got, tc.wantEnds)
			}
		})
	}
}

func TestSession_EventTransitions(t *testing.T) {
	t.Parallel()
	e := newEngine(t)
	s := newSession(t, e, vad.Config{SampleRate: rate, FrameSizeMs: hopMs, SpeechThreshold: math.Exp(10)})
	events := feed(t, s, pcmSignal(11, true), 1024)

	inSpeech := false
	for i, ev := range events {
		switch ev.Type {
		case vad.VADSpeechStart:
			if inSpeech {
				t.Fatalf("event %d: start while in speech", i)
			}
		case vad.VADSpeechContinue, vad.VADSpeechEnd:
			if !inSpeech {
				t.Fatalf("event %d: %v outside speech", i, ev.Type)
			}
		case vad.VADSilence:
			if inSpeech {
				t.Fatalf("event %d: silence while in speech", i)
			}
		}
		inSpeech = ev.Type.IsSpeech()
	}
}

func TestSession_SeveralFramesPerCall(t *testing.T) {
	t.Parallel()
	e := newEngine(t)
	// 64 ms is two hops, so every call after the first completes two frames.
	s := newSession(t, e, e.DefaultSessionConfig(64))
	events := feed(t, s, pcmSignal(2, false), 2048)

	last := events[len(events)-1]
	if last.Frame != 38 {
		t.Errorf("last frame = %d, want 38", last.Frame)
	}
	for i := 6; i < len(events); i++ {
		if d := events[i].Frame - events[i-1].Frame; d != 2 {
			t.Fatalf("event %d advanced %d frames, want 2", i, d)
		}
	}
}

func TestSession_FrameSizeMismatch(t *testing.T) {
	t.Parallel()
	e := newEngine(t)
	s := newSession(t, e, e.DefaultSessionConfig(20))

	_, err := s.ProcessFrame(make([]byte, 100))
	if !errors.Is(err, dsp.ErrInputSizeMismatch) {
		t.Fatalf("err = %v, want ErrInputSizeMismatch", err)
	}
	if _, err := s.ProcessFrame(make([]byte, 640)); err != nil {
		t.Fatalf("correct size: %v", err)
	}
}

func TestSession_Reset(t *testing.T) {
	t.Parallel()
	e := newEngine(t)
	s := newSession(t, e, e.DefaultSessionConfig(hopMs))
	pcm := pcmSignal(4, false)

	first := feed(t, s, pcm, 1024)
	s.Reset()
	second := feed(t, s, pcm, 1024)

	if len(first) != len(second) {
		t.Fatalf("event counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("event %d after reset = %+v, want %+v", i, second[i], first[i])
		}
	}
}

func TestSession_Close(t *testing.T) {
	t.Parallel()
	e := newEngine(t)
	s, err := e.NewSession(e.DefaultSessionConfig(hopMs))
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if _, err := s.ProcessFrame(make([]byte, 1024)); !errors.Is(err, vad.ErrSessionClosed) {
		t.Fatalf("ProcessFrame after Close: %v, want ErrSessionClosed", err)
	}
}

func TestEngine_NewSessionValidation(t *testing.T) {
	t.Parallel()
	e := newEngine(t)

	tests := []struct {
		name string
		cfg  vad.Config
	}{
		{name: "sample rate mismatch", cfg: vad.Config{SampleRate: 48000, FrameSizeMs: 20}},
		{name: "zero frame size", cfg: vad.Config{SampleRate: rate}},
		{name: "negative speech threshold", cfg: vad.Config{SampleRate: rate, FrameSizeMs: 20, SpeechThreshold: -1}},
		{name: "silence above speech", cfg: vad.Config{SampleRate: rate, FrameSizeMs: 20, SpeechThreshold: 1, SilenceThreshold: 2}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := e.NewSession(tc.cfg)
			if !errors.Is(err, dsp.ErrConfiguration) {
				t.Fatalf("err = %v, want ErrConfiguration", err)
			}
		})
	}
}

func TestEngine_ConcurrentSessions(t *testing.T) {
	t.Parallel()
	e := newEngine(t)
	pcm := pcmSignal(9, false)

	const n = 4
	results := make([][]vad.VADEvent, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := e.NewSession(e.DefaultSessionConfig(hopMs))
			if err != nil {
				t.Errorf("NewSession: %v", err)
				return
			}
			defer s.Close()
			for off := 0; off+1024 <= len(pcm); off += 1024 {
				ev, err := s.ProcessFrame(pcm[off : off+1024])
				if err != nil {
					t.Errorf("ProcessFrame: %v", err)
					return
				}
				results[i] = append(results[i], ev)
			}
		}()
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if len(results[i]) != len(results[0]) {
			t.Fatalf("session %d produced %d events, want %d", i, len(results[i]), len(results[0]))
		}
		for k := range results[0] {
			if results[i][k] != results[0][k] {
				t.Fatalf("session %d event %d differs", i, k)
			}
		}
	}
}
