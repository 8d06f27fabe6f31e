// Package app wires the detector, the streaming VAD engine, configuration
// hot reload and observability into the gaussvad HTTP service.
//
// The App struct owns the full lifecycle: New builds the detector and the
// route table, Run serves HTTP until the context is cancelled, and Shutdown
// drains in-flight requests and runs registered closers in order.
//
// For testing, inject doubles via functional options (WithEngine,
// WithMetrics). When an option is not provided, New creates the real
// implementation from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrWong99/gaussvad/internal/config"
	"github.com/MrWong99/gaussvad/internal/health"
	"github.com/MrWong99/gaussvad/internal/observe"
	"github.com/MrWong99/gaussvad/pkg/dsp/fourier"
	"github.com/MrWong99/gaussvad/pkg/provider/vad"
	streamvad "github.com/MrWong99/gaussvad/pkg/provider/vad/gaussian"
	"github.com/MrWong99/gaussvad/pkg/vad/gaussian"
)

// readHeaderTimeout bounds how long a client may take to send request headers.
const readHeaderTimeout = 10 * time.Second

// App owns the HTTP service and the detector it serves.
type App struct {
	cfg atomic.Pointer[config.Config]
	det atomic.Pointer[gaussian.Detector]

	// engine, when injected, serves every stream instead of one built from
	// the current detector.
	engine vad.Engine

	metrics        *observe.Metrics
	metricsHandler http.Handler
	level          *slog.LevelVar
	health         *health.Handler
	handler        http.Handler

	server *http.Server

	// streams is cancelled on shutdown to end open WebSocket streams, which
	// http.Server.Shutdown does not track.
	streams       context.Context
	cancelStreams context.CancelFunc

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithEngine serves streams from e instead of the configured detector.
func WithEngine(e vad.Engine) Option {
	return func(a *App) { a.engine = e }
}

// WithMetrics records to m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithMetricsHandler mounts h at telemetry.metrics_path. Without it no
// metrics route is registered.
func WithMetricsHandler(h http.Handler) Option {
	return func(a *App) { a.metricsHandler = h }
}

// WithLevelVar lets config reloads change the log level through lv.
func WithLevelVar(lv *slog.LevelVar) Option {
	return func(a *App) { a.level = lv }
}

// WithCloser registers fn to run during Shutdown, after the HTTP server has
// stopped. Closers run in registration order.
func WithCloser(fn func() error) Option {
	return func(a *App) { a.closers = append(a.closers, fn) }
}

// New creates an App from cfg, which must already be validated.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{}
	a.streams, a.cancelStreams = context.WithCancel(context.Background())
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	det, err := a.buildDetector(cfg.Detector.Gaussian())
	if err != nil {
		return nil, fmt.Errorf("app: build detector: %w", err)
	}
	a.det.Store(det)
	a.cfg.Store(cfg)

	a.health = health.New(
		health.TransformCheck(func() fourier.Transform { return a.Detector().Transform() }),
		health.Checker{Name: "config", Check: func(context.Context) error { return config.Validate(a.Config()) }},
	)
	a.handler = a.routes(cfg)
	return a, nil
}

func (a *App) buildDetector(cfg gaussian.Config) (*gaussian.Detector, error) {
	return gaussian.NewDetector(cfg, gaussian.WithStageObserver(a.metrics.StageObserver()))
}

// routes builds the route table. Paths that depend on config are fixed at
// construction.
func (a *App) routes(cfg *config.Config) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/detect", a.handleDetect)
	mux.HandleFunc("GET /v1/stream", a.handleStream)
	a.health.Register(mux)
	if a.metricsHandler != nil {
		mux.Handle("GET "+cfg.Telemetry.MetricsPath, a.metricsHandler)
	}
	return observe.Middleware(a.metrics)(mux)
}

// Handler returns the service's root handler.
func (a *App) Handler() http.Handler { return a.handler }

// Config returns the active configuration.
func (a *App) Config() *config.Config { return a.cfg.Load() }

// Detector returns the active detector. Requests hold on to the detector
// they started with, so a reload never changes a request midway.
func (a *App) Detector() *gaussian.Detector { return a.det.Load() }

// streamEngine returns the engine a new stream is created from. det must be
// the detector the caller already loaded so that the session and the
// stream's sample rate come from the same snapshot.
func (a *App) streamEngine(det *gaussian.Detector) vad.Engine {
	if a.engine != nil {
		return a.engine
	}
	return streamvad.NewFromDetector(det)
}

// ApplyConfig applies the hot-reloadable differences between old and new.
// It is suitable as a [config.Watcher] callback. If the new detector cannot
// be built the previous detector settings stay active and every other
// change is still applied.
func (a *App) ApplyConfig(old, new *config.Config) {
	d := config.Diff(old, new)

	if d.LogLevelChanged && a.level != nil {
		a.level.Set(slogLevel(d.NewLogLevel))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}

	if d.DetectorChanged {
		det, err := a.buildDetector(new.Detector.Gaussian())
		if err != nil {
			slog.Error("config reload: keeping previous detector", "err", err)
			kept := *new
			kept.Detector = a.Config().Detector
			new = &kept
		} else {
			a.det.Store(det)
			slog.Info("detector reloaded",
				"frame_length", new.Detector.FrameLength,
				"hop_length", new.Detector.HopLength,
				"threshold", new.Detector.Threshold,
				"transform", new.Detector.Transform,
			)
		}
	}

	for _, field := range d.RestartRequired {
		slog.Warn("config reload: change takes effect after restart", "field", field)
	}
	a.cfg.Store(new)
}

// Run serves HTTP on server.listen_addr until ctx is cancelled or the
// listener fails. It does not shut the server down; call [App.Shutdown].
func (a *App) Run(ctx context.Context) error {
	cfg := a.Config()
	a.server = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	a.server.RegisterOnShutdown(a.cancelStreams)

	errCh := make(chan error, 1)
	go func() {
		var err error
		if tls := cfg.Server.TLS; tls != nil {
			err = a.server.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = a.server.ListenAndServe()
		}
		errCh <- err
	}()
	slog.Info("http server listening", "addr", cfg.Server.ListenAddr, "tls", cfg.Server.TLS != nil)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: serve: %w", err)
	}
}

// Shutdown stops the HTTP server, waiting for in-flight requests until ctx
// expires, then runs the registered closers. It is safe to call more than
// once; later calls return nil.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	a.stopOnce.Do(func() {
		defer a.cancelStreams()
		if a.server != nil {
			if err := a.server.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("app: http shutdown: %w", err))
			}
		}
		for _, c := range a.closers {
			if err := c(); err != nil {
				errs = append(errs, err)
			}
		}
	})
	return errors.Join(errs...)
}

func slogLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
