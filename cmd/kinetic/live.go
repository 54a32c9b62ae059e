package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/san-kum/kinetic/internal/capture"
	"github.com/san-kum/kinetic/internal/config"
	"github.com/san-kum/kinetic/internal/control"
	"github.com/san-kum/kinetic/internal/inference"
	"github.com/san-kum/kinetic/internal/metrics"
	"github.com/san-kum/kinetic/internal/particles"
	"github.com/san-kum/kinetic/internal/shape"
	"github.com/san-kum/kinetic/internal/storage"
	"github.com/san-kum/kinetic/internal/viz"
)

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	tr, err := inference.NewGeminiTransport(cmd.Context(), cfg.APIKey())
	if errors.Is(err, inference.ErrNoAPIKey) {
		return fmt.Errorf("%w: set %s in the environment or a .env file", err, cfg.APIKeyEnv)
	}
	if err != nil {
		return err
	}
	return runSession(cmd, cfg, tr, cfg.Model, autoStart)
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	if !cmd.Flags().Changed("source") && !cmd.Flags().Changed("dir") {
		cfg.Capture.Source = config.SourceBlank
	}

	st := storage.New(cfg.DataDir)
	meta, err := resolveRun(st, args)
	if err != nil {
		return err
	}
	samples, err := st.LoadTension(meta.ID)
	if err != nil {
		return err
	}
	tr := &inference.ReplayTransport{Cues: cuesFrom(samples), Speed: speed, Loop: loop}

	// a replay is not recorded again
	cfg.Record = false
	return runSession(cmd, cfg, tr, "replay:"+meta.ID, true)
}

// cuesFrom turns a recorded timeline into replay cues.
func cuesFrom(samples []storage.Sample) []inference.Cue {
	cues := make([]inference.Cue, len(samples))
	for i, s := range samples {
		cues[i] = inference.Cue{
			Offset:  time.Duration(s.Time * float64(time.Second)),
			Tension: s.Tension,
		}
	}
	return cues
}

func runSession(cmd *cobra.Command, cfg *config.Config, tr inference.Transport, modelName string, start bool) error {
	logger, closer, err := openLog(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	m := metrics.New("")
	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr, m, logger)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
	}

	anim, err := buildAnimator(cfg)
	if err != nil {
		return err
	}

	var st *storage.Store
	if cfg.Record {
		st = storage.New(cfg.DataDir)
		if err := st.Init(); err != nil {
			return err
		}
	}

	src, desc := buildSource(cfg, logger)
	c := control.New(control.Options{
		Source:     src,
		SourceSize: capture.Size{Width: cfg.Capture.SourceWidth, Height: cfg.Capture.SourceHeight},
		Transport:  tr,
		Model:      cfg.Model,
		Animator:   anim,
		Loop: capture.LoopConfig{
			Interval:    cfg.Interval(),
			Width:       cfg.Capture.Width,
			Height:      cfg.Capture.Height,
			Quality:     cfg.JPEGQuality(),
			MaxInFlight: cfg.Capture.MaxInFlight,
		},
		Store:      st,
		SourceName: cfg.Capture.Source,
		Logger:     logger,
		Metrics:    m,
	})
	defer c.Stop()

	logger.Info("session", "model", modelName, "source", desc, "template", cfg.Template, "color", cfg.Color)

	if start {
		if err := c.Start(cmd.Context()); err != nil {
			return err
		}
	}

	opts := viz.Options{
		FPS:      cfg.FPS,
		Theme:    cfg.Theme,
		Subtitle: modelName + " · " + desc,
		GIFDir:   filepath.Join(cfg.DataDir, "gifs"),
	}
	if menu {
		return viz.RunLauncher(c, looks(), opts)
	}
	return viz.Run(c, opts)
}

func buildAnimator(cfg *config.Config) (*particles.Animator, error) {
	tmpl, err := shape.ParseTemplate(cfg.Template)
	if err != nil {
		return nil, err
	}
	col, err := particles.ParseColor(cfg.Color)
	if err != nil {
		return nil, err
	}
	var rng *rand.Rand
	if cfg.Seed != 0 {
		rng = rand.New(rand.NewPCG(cfg.Seed, cfg.Seed))
	}
	return particles.New(cfg.Particles, tmpl, col, rng), nil
}

// buildSource returns the configured frame source and a short description
// for the status panel.
func buildSource(cfg *config.Config, logger *slog.Logger) (capture.Source, string) {
	switch cfg.Capture.Source {
	case config.SourceDir:
		return &capture.DirSource{Dir: cfg.Capture.Dir}, "images " + cfg.Capture.Dir
	case config.SourceBlank:
		return &capture.BlankSource{}, "no camera"
	default:
		return &capture.BrowserSource{Addr: cfg.Capture.Listen, Logger: logger},
			"camera http://" + cfg.Capture.Listen + "/"
	}
}

func serveMetrics(addr string, m *metrics.Metrics, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()
	return srv
}

// looks converts the config presets for the launcher.
func looks() []viz.Look {
	var out []viz.Look
	for _, name := range config.ListPresets() {
		p := config.GetPreset(name)
		tmpl, err := shape.ParseTemplate(p.Template)
		if err != nil {
			continue
		}
		col, err := particles.ParseColor(p.Color)
		if err != nil {
			continue
		}
		out = append(out, viz.Look{
			Name:        name,
			Description: p.Description,
			Template:    tmpl,
			Color:       col,
			Theme:       p.Theme,
		})
	}
	return out
}
