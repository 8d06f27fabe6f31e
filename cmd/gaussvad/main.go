// Command gaussvad runs the Gaussian statistical voice activity detector,
// either over WAV files given on the command line or as an HTTP service.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrWong99/gaussvad/internal/app"
	"github.com/MrWong99/gaussvad/internal/config"
	"github.com/MrWong99/gaussvad/internal/observe"
	"github.com/MrWong99/gaussvad/pkg/audio"
	"github.com/MrWong99/gaussvad/pkg/dsp/fourier"
	"github.com/MrWong99/gaussvad/pkg/types"
	"github.com/MrWong99/gaussvad/pkg/vad/gaussian"
)

// shutdownTimeout bounds the graceful shutdown of the HTTP service.
const shutdownTimeout = 15 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "", "path to the YAML configuration file (built-in defaults when empty)")
	serve := flag.Bool("serve", false, "start the HTTP service instead of analysing files")
	format := flag.String("format", "text", "output format for file analysis: text or json")
	var ov overrides
	flag.Float64Var(&ov.threshold, "threshold", 0, "override detector.threshold (0 keeps the configured value)")
	flag.StringVar(&ov.transform, "transform", "", "override detector.transform (direct, radix2 or gonum)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: gaussvad [flags] file.wav ...\n       gaussvad -serve [flags]\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := loadConfig(*configPath, ov)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gaussvad: %v\n", err)
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger, level := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *serve {
		return runServer(ctx, cfg, *configPath, ov, level)
	}

	if *format != "text" && *format != "json" {
		fmt.Fprintf(os.Stderr, "gaussvad: unknown format %q (want text or json)\n", *format)
		return 1
	}
	if flag.NArg() == 0 {
		flag.Usage()
		return 1
	}
	return analyseFiles(ctx, os.Stdout, cfg, *format, flag.Args())
}

// overrides holds detector settings given on the command line. They take
// precedence over the config file, including on reload.
type overrides struct {
	threshold float64
	transform string
}

func (o overrides) apply(cfg *config.Config) {
	if o.threshold != 0 {
		cfg.Detector.Threshold = o.threshold
	}
	if o.transform != "" {
		cfg.Detector.Transform = fourier.Kind(o.transform)
	}
}

// loadConfig reads path, or starts from the defaults when path is empty,
// then applies ov and validates the result.
func loadConfig(path string, ov overrides) (*config.Config, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("config file %q not found", path)
			}
			return nil, err
		}
	}
	ov.apply(cfg)
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ── HTTP service ──────────────────────────────────────────────────────────────

func runServer(ctx context.Context, cfg *config.Config, configPath string, ov overrides, level *slog.LevelVar) int {
	slog.Info("gaussvad starting",
		"config", configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
		"transform", cfg.Detector.Transform,
	)

	// ── Telemetry ─────────────────────────────────────────────────────────────
	provider, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: cfg.Telemetry.ServiceName})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	metrics, err := observe.NewMetrics(provider.MeterProvider)
	if err != nil {
		slog.Error("failed to create metrics", "err", err)
		_ = provider.Shutdown(context.Background())
		return 1
	}

	application, err := app.New(cfg,
		app.WithMetrics(metrics),
		app.WithMetricsHandler(provider.MetricsHandler()),
		app.WithLevelVar(level),
		app.WithCloser(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return provider.Shutdown(ctx)
		}),
	)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		_ = provider.Shutdown(context.Background())
		return 1
	}

	// ── Config hot reload ─────────────────────────────────────────────────────
	if configPath != "" {
		w, err := config.NewWatcher(configPath, func(old, new *config.Config) {
			ov.apply(new)
			application.ApplyConfig(old, new)
		})
		if err != nil {
			slog.Warn("config hot reload disabled", "err", err)
		} else {
			defer w.Stop()
		}
	}

	slog.Info("server ready, press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		_ = application.Shutdown(context.Background())
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	slog.Info("shutdown signal received, stopping")
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── File analysis ─────────────────────────────────────────────────────────────

// fileResult is one entry of the JSON output.
type fileResult struct {
	File   string                 `json:"file"`
	Result *types.DetectionResult `json:"result,omitempty"`
	Error  string                 `json:"error,omitempty"`
}

// analyseFiles runs the detector over every file and writes the results to
// out. A failing file is reported and does not stop the others; the exit
// code is 1 if any file failed.
func analyseFiles(ctx context.Context, out io.Writer, cfg *config.Config, format string, paths []string) int {
	det, err := gaussian.NewDetector(cfg.Detector.Gaussian())
	if err != nil {
		slog.Error("failed to build detector", "err", err)
		return 1
	}

	code := 0
	results := make([]fileResult, 0, len(paths))
	for _, path := range paths {
		res, err := analyseFile(ctx, det, path)
		if err != nil {
			slog.Error("analysis failed", "file", path, "err", err)
			code = 1
			results = append(results, fileResult{File: path, Error: err.Error()})
			continue
		}
		results = append(results, fileResult{File: path, Result: res})
	}

	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			slog.Error("write results", "err", err)
			return 1
		}
		return code
	}
	for _, r := range results {
		if r.Result != nil {
			printSegments(out, r.File, r.Result)
		}
	}
	return code
}

func analyseFile(ctx context.Context, det *gaussian.Detector, path string) (*types.DetectionResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	clip, err := audio.DecodeWAV(f, det.Config().SampleRate)
	if err != nil {
		return nil, err
	}
	slog.Debug("decoded", "file", path, "samples", len(clip.Samples), "source_channels", clip.SourceChannels)
	return det.Detect(ctx, clip.Samples)
}

func printSegments(out io.Writer, path string, res *types.DetectionResult) {
	fmt.Fprintf(out, "%s: %d frames, %d segments, speech ratio %.3f\n",
		path, res.FrameCount(), len(res.Segments), res.SpeechRatio)
	for _, s := range res.Segments {
		fmt.Fprintf(out, "  %8.3fs - %8.3fs  frames %d-%d\n", s.Start, s.End, s.FirstFrame, s.LastFrame)
	}
}

// ── Logger ─────────────────────────────────────────────────────────────────────

// newLogger returns a text logger on stderr whose level can be changed at
// runtime through the returned LevelVar.
func newLogger(level config.LogLevel) (*slog.Logger, *slog.LevelVar) {
	lv := new(slog.LevelVar)
	switch level {
	case config.LogDebug:
		lv.Set(slog.LevelDebug)
	case config.LogWarn:
		lv.Set(slog.LevelWarn)
	case config.LogError:
		lv.Set(slog.LevelError)
	default:
		lv.Set(slog.LevelInfo)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lv})), lv
}
