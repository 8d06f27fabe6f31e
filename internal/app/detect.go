package app

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/MrWong99/gaussvad/internal/observe"
	"github.com/MrWong99/gaussvad/pkg/audio"
	"github.com/MrWong99/gaussvad/pkg/dsp"
	"github.com/MrWong99/gaussvad/pkg/dsp/fourier"
	"github.com/MrWong99/gaussvad/pkg/vad/gaussian"
)

// handleDetect serves POST /v1/detect. The body is a WAV file; the optional
// query parameters threshold and transform override the configured
// detector for this request only.
func (a *App) handleDetect(w http.ResponseWriter, r *http.Request) {
	ctx, span := observe.StartSpan(r.Context(), "gaussvad.detect")
	var err error
	defer func() { observe.EndSpan(span, err) }()

	fail := func(e error) {
		err = e
		kind, status := classify(e)
		a.metrics.RecordError(ctx, kind)
		observe.Logger(ctx).Warn("detect failed", "kind", kind, "err", e)
		writeJSON(w, status, errorBody{Error: e.Error(), Kind: kind})
	}

	cfg := a.Config()
	det, err := a.requestDetector(r)
	if err != nil {
		fail(err)
		return
	}
	dc := det.Config()
	span.SetAttributes(
		attribute.String("transform", string(dc.Transform)),
		attribute.Float64("threshold", dc.Threshold),
	)

	body := http.MaxBytesReader(w, r.Body, cfg.Stream.MaxUploadBytes)
	data, err := io.ReadAll(body)
	if err != nil {
		fail(err)
		return
	}

	clip, err := audio.DecodeWAV(bytes.NewReader(data), dc.SampleRate)
	if err != nil {
		fail(err)
		return
	}
	span.SetAttributes(
		attribute.Int("samples", len(clip.Samples)),
		attribute.Int("source_channels", clip.SourceChannels),
	)

	start := time.Now()
	res, err := det.Detect(ctx, clip.Samples)
	if err != nil {
		fail(err)
		return
	}
	a.metrics.RecordDetection(ctx, res, time.Since(start), string(dc.Transform))

	observe.Logger(ctx).Debug("detect completed",
		"frames", res.FrameCount(),
		"segments", len(res.Segments),
		"speech_ratio", res.SpeechRatio,
	)
	writeJSON(w, http.StatusOK, res)
}

// requestDetector returns the active detector, or a one-off detector when
// the request overrides threshold or transform.
func (a *App) requestDetector(r *http.Request) (*gaussian.Detector, error) {
	det := a.Detector()
	q := r.URL.Query()
	if !q.Has("threshold") && !q.Has("transform") {
		return det, nil
	}

	cfg := det.Config()
	if v := q.Get("threshold"); q.Has("threshold") {
		th, err := strconv.ParseFloat(v, 64)
		if err != nil || !(th > 0) {
			return nil, fmt.Errorf("%w: threshold %q must be a positive number", dsp.ErrConfiguration, v)
		}
		cfg.Threshold = th
	}
	if v := q.Get("transform"); q.Has("transform") {
		kind := fourier.Kind(v)
		if !kind.IsValid() {
			return nil, fmt.Errorf("%w: unknown transform %q", dsp.ErrConfiguration, v)
		}
		cfg.Transform = kind
	}
	return a.buildDetector(cfg)
}
