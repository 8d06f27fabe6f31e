package gaussian_test

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/gaussvad/pkg/dsp"
	"github.com/MrWong99/gaussvad/pkg/dsp/fourier"
	"github.com/MrWong99/gaussvad/pkg/vad/gaussian"
)

func newDetector(t *testing.T, cfg gaussian.Config, opts ...gaussian.Option) *gaussian.Detector {
	t.Helper()
	d, err := gaussian.NewDetector(cfg, opts...)
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}
	return d
}

// noiseThenTone builds ten frame lengths of white noise (variance 0.01)
// followed by ten frame lengths of a unit-amplitude 500 Hz tone.
func noiseThenTone(seed uint64) []float32 {
	const frame = 1024
	rng := rand.New(rand.NewPCG(seed, 99))
	sig := whiteNoise(rng, 10*frame, 0.01)
	return append(sig, sinusoid(10*frame, 500, 1.0, 16000)...)
}

func countTrue(bs []bool) int {
	n := 0
	for _, b := range bs {
		if b {
			n++
		}
	}
	return n
}

func TestDetect_NoiseThenTone(t *testing.T) {
	t.Parallel()
	d := newDetector(t, gaussian.DefaultConfig())

	res, err := d.Detect(context.Background(), noiseThenTone(1))
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}

	// 20480 samples, 1024-sample frames, 512 hop.
	if got, want := res.FrameCount(), (20480-1024)/512+1; got != want {
		t.Fatalf("frame count = %d, want %d", got, want)
	}
	assertFinite(t, "log_likelihood", res.LogLikelihood)

	// Frames 0..18 lie entirely in the noise, frame 19 straddles the
	// boundary and frames 20..38 lie entirely in the tone.
	noise := res.LogLikelihood[:19]
	tone := res.LogLikelihood[20:]

	if got := countTrue(res.SpeechFrames[20:]); got < len(tone)*9/10 {
		t.Errorf("tone frames classified speech: %d of %d", got, len(tone))
	}
	if maxNoise, minTone := slices.Max(noise), slices.Min(tone); maxNoise >= minTone {
		t.Errorf("noise log-likelihood %v overlaps tone %v", maxNoise, minTone)
	}

	// Stationary noise scores close to zero average log-likelihood, so a
	// likelihood threshold above one separates it from the tone.
	strict := gaussian.DefaultConfig()
	strict.Threshold = 2
	res2, err := newDetector(t, strict).Detect(context.Background(), noiseThenTone(1))
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if got := countTrue(res2.SpeechFrames[:19]); got > 19/10 {
		t.Errorf("noise frames classified speech at threshold 2: %d of 19", got)
	}
	if got := countTrue(res2.SpeechFrames[20:]); got < len(tone)*9/10 {
		t.Errorf("tone frames classified speech at threshold 2: %d of %d", got, len(tone))
	}

	if len(res2.Segments) == 0 {
		t.Fatal("no speech segments")
	}
	last := res2.Segments[len(res2.Segments)-1]
	if last.LastFrame != res2.FrameCount()-1 {
		t.Errorf("last segment ends at frame %d, want %d", last.LastFrame, res2.FrameCount()-1)
	}
	if math.Abs(last.End-20480.0/16000) > 1e-9 {
		t.Errorf("last segment end = %v s, want %v s", last.End, 20480.0/16000)
	}
}

// At the default threshold of 0.5 the decision boundary is log(0.5), about
// -0.69, while stationary noise averages close to zero. The literal rule
// therefore marks calibration-level noise as speech; this pins that
// behaviour so a change to it is deliberate.
func TestDetect_DefaultThresholdOnNoise(t *testing.T) {
	t.Parallel()
	d := newDetector(t, gaussian.DefaultConfig())
	boundary := math.Log(gaussian.DefaultConfig().Threshold)

	for seed := uint64(1); seed <= 5; seed++ {
		res, err := d.Detect(context.Background(), noiseThenTone(seed))
		if err != nil {
			t.Fatalf("seed %d: Detect: %v", seed, err)
		}
		for m, ll := range res.LogLikelihood[:19] {
			if ll <= boundary {
				t.Errorf("seed %d frame %d: noise log-likelihood %v at or below log(0.5)", seed, m, ll)
			}
			if !res.SpeechFrames[m] {
				t.Errorf("seed %d frame %d: noise frame not classified speech at threshold 0.5", seed, m)
			}
		}
		if got := countTrue(res.SpeechFrames[20:]); got < len(res.SpeechFrames[20:])*9/10 {
			t.Errorf("seed %d: tone frames classified speech: %d of %d", seed, got, len(res.SpeechFrames[20:]))
		}
	}
}

func TestDetect_ExactlyOneFrame(t *testing.T) {
	t.Parallel()
	cfg := gaussian.DefaultConfig()
	for _, hop := range []int{1, 512, 1024} {
		cfg.HopLength = hop
		rng := rand.New(rand.NewPCG(2, 3))
		res, err := newDetector(t, cfg).Detect(context.Background(), whiteNoise(rng, 1024, 0.01))
		if err != nil {
			t.Fatalf("hop %d: Detect: %v", hop, err)
		}
		if res.FrameCount() != 1 || len(res.LogLikelihood) != 1 {
			t.Errorf("hop %d: got %d frames, want 1", hop, res.FrameCount())
		}
	}
}

func TestDetect_TooShort(t *testing.T) {
	t.Parallel()
	d := newDetector(t, gaussian.DefaultConfig())
	for _, n := range []int{0, 1, 1023} {
		res, err := d.Detect(context.Background(), make([]float32, n))
		if !errors.Is(err, dsp.ErrInsufficientData) {
			t.Errorf("len %d: err = %v, want ErrInsufficientData", n, err)
		}
		if res != nil {
			t.Errorf("len %d: got result %+v, want nil", n, res)
		}
	}
}

func TestDetect_SilenceIsFinite(t *testing.T) {
	t.Parallel()
	d := newDetector(t, gaussian.DefaultConfig())
	res, err := d.Detect(context.Background(), make([]float32, 8192))
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	assertFinite(t, "log_likelihood", res.LogLikelihood)
}

func TestDetect_WorkersAndTransformsAgree(t *testing.T) {
	t.Parallel()
	sig := noiseThenTone(7)

	base := gaussian.DefaultConfig()
	base.Workers = 1
	want, err := newDetector(t, base).Detect(context.Background(), sig)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}

	for _, workers := range []int{2, 3, 16, 0} {
		cfg := base
		cfg.Workers = workers
		got, err := newDetector(t, cfg).Detect(context.Background(), sig)
		if err != nil {
			t.Fatalf("workers %d: Detect: %v", workers, err)
		}
		if !slices.Equal(got.LogLikelihood, want.LogLikelihood) {
			t.Errorf("workers %d: log-likelihoods differ from sequential run", workers)
		}
	}

	for _, kind := range []fourier.Kind{fourier.KindDirect, fourier.KindGonum} {
		cfg := base
		cfg.Transform = kind
		got, err := newDetector(t, cfg).Detect(context.Background(), sig)
		if err != nil {
			t.Fatalf("%s: Detect: %v", kind, err)
		}
		if !slices.Equal(got.SpeechFrames, want.SpeechFrames) {
			t.Errorf("%s: speech decisions differ from radix2", kind)
		}
	}
}

func TestDetect_Cancelled(t *testing.T) {
	t.Parallel()
	d := newDetector(t, gaussian.DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := d.Detect(ctx, noiseThenTone(3)); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestDetect_StageObserver(t *testing.T) {
	t.Parallel()
	var (
		mu     sync.Mutex
		stages []string
	)
	obs := func(_ context.Context, stage string, elapsed time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		if elapsed < 0 {
			t.Errorf("stage %s: negative duration", stage)
		}
		stages = append(stages, stage)
	}
	d := newDetector(t, gaussian.DefaultConfig(), gaussian.WithStageObserver(obs))
	if _, err := d.Detect(context.Background(), noiseThenTone(4)); err != nil {
		t.Fatalf("Detect: %v", err)
	}
	want := []string{gaussian.StageSpectra, gaussian.StageNoise, gaussian.StageSNR, gaussian.StageDecision}
	if !slices.Equal(stages, want) {
		t.Errorf("stages = %v, want %v", stages, want)
	}
}

func TestNewDetector_InvalidConfig(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(*gaussian.Config)
	}{
		{"frame not power of two", func(c *gaussian.Config) { c.FrameLength = 1000 }},
		{"hop zero", func(c *gaussian.Config) { c.HopLength = 0 }},
		{"hop beyond frame", func(c *gaussian.Config) { c.HopLength = 2048 }},
		{"sample rate", func(c *gaussian.Config) { c.SampleRate = 0 }},
		{"noise frames", func(c *gaussian.Config) { c.NoiseFrames = 0 }},
		{"alpha one", func(c *gaussian.Config) { c.Alpha = 1 }},
		{"threshold zero", func(c *gaussian.Config) { c.Threshold = 0 }},
		{"transform", func(c *gaussian.Config) { c.Transform = "wavelet" }},
		{"workers", func(c *gaussian.Config) { c.Workers = -1 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := gaussian.DefaultConfig()
			tc.mutate(&cfg)
			if _, err := gaussian.NewDetector(cfg); !errors.Is(err, dsp.ErrConfiguration) {
				t.Errorf("err = %v, want ErrConfiguration", err)
			}
		})
	}
}

func TestNewDetector_TransformSizeMismatch(t *testing.T) {
	t.Parallel()
	tr, err := fourier.NewRadix2(512)
	if err != nil {
		t.Fatalf("NewRadix2: %v", err)
	}
	if _, err := gaussian.NewDetector(gaussian.DefaultConfig(), gaussian.WithTransform(tr)); !errors.Is(err, dsp.ErrConfiguration) {
		t.Errorf("err = %v, want ErrConfiguration", err)
	}
}

func TestSegments(t *testing.T) {
	t.Parallel()
	speech := []bool{false, true, true, false, true}
	segs := gaussian.Segments(speech, 4, 2, 2)
	if len(segs) != 2 {
		t.Fatalf("got %d segments, want 2", len(segs))
	}
	if segs[0].FirstFrame != 1 || segs[0].LastFrame != 2 || segs[0].Start != 1 || segs[0].End != 4 {
		t.Errorf("segment 0 = %+v", segs[0])
	}
	if segs[1].FirstFrame != 4 || segs[1].LastFrame != 4 || segs[1].Start != 4 || segs[1].End != 6 {
		t.Errorf("segment 1 = %+v", segs[1])
	}
	if got := gaussian.Segments([]bool{false, false}, 4, 2, 2); len(got) != 0 {
		t.Errorf("all-silent input produced %d segments", len(got))
	}
}
