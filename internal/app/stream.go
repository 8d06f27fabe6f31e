package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/MrWong99/gaussvad/internal/observe"
	"github.com/MrWong99/gaussvad/pkg/audio"
	"github.com/MrWong99/gaussvad/pkg/dsp"
)

// streamReadLimit caps a single WebSocket message.
const streamReadLimit = 1 << 20

// handleStream serves GET /v1/stream. Clients send binary messages of
// little-endian int16 PCM and receive one JSON [vad.VADEvent] per complete
// session frame. The optional query parameters sample_rate and channels
// describe the client's format when it differs from the detector's; audio
// is converted and re-chunked to stream.frame_size_ms frames.
func (a *App) handleStream(w http.ResponseWriter, r *http.Request) {
	ctx, span := observe.StartSpan(r.Context(), "gaussvad.stream")
	var err error
	defer func() { observe.EndSpan(span, err) }()
	log := observe.Logger(ctx)

	cfg := a.Config()
	det := a.Detector()
	rate := det.Config().SampleRate
	in, err := clientFormat(r, rate)
	if err != nil {
		kind, status := classify(err)
		writeJSON(w, status, errorBody{Error: err.Error(), Kind: kind})
		return
	}

	sessCfg := cfg.Stream.Session(rate)
	sess, err := a.streamEngine(det).NewSession(sessCfg)
	if err != nil {
		kind, status := classify(err)
		a.metrics.RecordError(ctx, kind)
		writeJSON(w, status, errorBody{Error: err.Error(), Kind: kind})
		return
	}
	defer sess.Close()

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Warn("websocket accept failed", "err", err)
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(streamReadLimit)

	a.metrics.ActiveStreams.Add(ctx, 1)
	defer a.metrics.ActiveStreams.Add(context.WithoutCancel(ctx), -1)

	stop := context.AfterFunc(a.streams, func() {
		conn.Close(websocket.StatusGoingAway, "server shutting down")
	})
	defer stop()

	conv := audio.NewFormatConverter(in, rate)
	log.Info("stream opened",
		"client_format", in,
		"converting", !conv.Passthrough(),
		"frame_size_ms", sessCfg.FrameSizeMs,
	)

	chunker := audio.NewChunker(sessCfg.FrameBytes())
	lastFrame := -1
	events := 0

	for {
		typ, data, rerr := conn.Read(ctx)
		if rerr != nil {
			switch websocket.CloseStatus(rerr) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				log.Info("stream closed", "events", events)
				return
			}
			if ctx.Err() != nil {
				return
			}
			err = rerr
			log.Warn("stream read failed", "err", rerr)
			return
		}
		if typ != websocket.MessageBinary {
			conn.Close(websocket.StatusUnsupportedData, "expected binary PCM frames")
			return
		}

		for _, chunk := range chunker.Push(conv.Convert(data)) {
			ev, perr := sess.ProcessFrame(chunk)
			if perr != nil {
				err = perr
				kind, _ := classify(perr)
				a.metrics.RecordError(ctx, kind)
				conn.Close(websocket.StatusInternalError, kind)
				return
			}
			analysed := 0
			if ev.Frame > lastFrame {
				analysed = ev.Frame - lastFrame
				lastFrame = ev.Frame
			}
			a.metrics.RecordStreamEvent(ctx, ev.Type.String(), analysed, ev.Type.IsSpeech())

			if werr := wsjson.Write(ctx, conn, ev); werr != nil {
				if !errors.Is(werr, context.Canceled) {
					err = werr
				}
				return
			}
			events++
		}
	}
}

// clientFormat parses the sample_rate and channels query parameters.
func clientFormat(r *http.Request, defaultRate int) (audio.Format, error) {
	f := audio.Format{SampleRate: defaultRate, Channels: 1}
	q := r.URL.Query()
	if v := q.Get("sample_rate"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return f, fmt.Errorf("%w: sample_rate %q must be a positive integer", dsp.ErrConfiguration, v)
		}
		f.SampleRate = n
	}
	if v := q.Get("channels"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || (n != 1 && n != 2) {
			return f, fmt.Errorf("%w: channels %q must be 1 or 2", dsp.ErrConfiguration, v)
		}
		f.Channels = n
	}
	return f, nil
}
