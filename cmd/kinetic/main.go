package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/san-kum/kinetic/internal/config"
)

var (
	dataDir     string
	configFile  string
	preset      string
	template    string
	color       string
	theme       string
	model       string
	source      string
	imageDir    string
	listen      string
	intervalMs  int
	fps         int
	particleN   int
	seed        uint64
	metricsAddr string
	record      bool
	logLevel    string
	menu        bool
	// replay
	speed     float64
	loop      bool
	autoStart bool
	// export
	tension   float64
	frames    int
	outPath   string
	outWidth  int
	outHeight int
	yaw       float64
	pitch     float64
	svgPath   string
	jsonOut   string
	rate      float64
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "kinetic",
		Short:        "gesture-driven particle visualizer",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			_ = godotenv.Load()
		},
		RunE: runLive,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&dataDir, "data", config.DefaultDataDir, "data directory for runs, logs and recordings")
	pf.StringVar(&configFile, "config", "", "config file path (yaml)")
	pf.StringVar(&preset, "preset", "", "apply a named look")
	pf.StringVar(&template, "template", "sphere", "initial shape")
	pf.StringVar(&color, "color", "blue", "initial color (palette name or #rrggbb)")
	pf.StringVar(&theme, "theme", config.DefaultTheme, "panel theme")
	pf.StringVar(&model, "model", "", "live model name")
	pf.StringVar(&source, "source", config.SourceBrowser, "frame source: browser, dir or blank")
	pf.StringVar(&imageDir, "dir", "", "image directory for the dir source")
	pf.StringVar(&listen, "listen", config.DefaultListen, "address of the browser capture page")
	pf.IntVar(&intervalMs, "interval", config.DefaultIntervalMs, "capture interval in milliseconds")
	pf.IntVar(&fps, "fps", config.DefaultFPS, "render frame rate")
	pf.IntVar(&particleN, "particles", 3000, "particle count")
	pf.Uint64Var(&seed, "seed", 0, "shape generator seed (0 = random)")
	pf.StringVar(&metricsAddr, "metrics", "", "serve prometheus metrics on this address")
	pf.BoolVar(&record, "record", true, "record tension reports under the data directory")
	pf.StringVar(&logLevel, "log-level", config.DefaultLogLevel, "log level")

	rootCmd.Flags().BoolVar(&menu, "menu", false, "pick a look before starting")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the live visualization",
		Args:  cobra.NoArgs,
		RunE:  runLive,
	}
	runCmd.Flags().BoolVar(&menu, "menu", false, "pick a look before starting")
	runCmd.Flags().BoolVar(&autoStart, "start", false, "connect immediately")

	replayCmd := &cobra.Command{
		Use:   "replay [run_id]",
		Short: "drive the visualization from a recorded run",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runReplay,
	}
	replayCmd.Flags().Float64Var(&speed, "speed", 1, "playback speed")
	replayCmd.Flags().BoolVar(&loop, "loop", false, "loop the timeline")

	shapesCmd := &cobra.Command{
		Use:   "shapes",
		Short: "list shapes and their extents",
		Args:  cobra.NoArgs,
		RunE:  listShapes,
	}

	exportCmd := &cobra.Command{
		Use:   "export [template]",
		Short: "render a settled frame to SVG",
		Args:  cobra.MaximumNArgs(1),
		RunE:  exportFrame,
	}
	exportCmd.Flags().Float64Var(&tension, "tension", 0.5, "tension to settle at")
	exportCmd.Flags().IntVar(&frames, "frames", 240, "frames to step before rendering")
	exportCmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default <template>.svg)")
	exportCmd.Flags().IntVar(&outWidth, "width", 800, "image width")
	exportCmd.Flags().IntVar(&outHeight, "height", 600, "image height")
	exportCmd.Flags().Float64Var(&yaw, "yaw", 0, "camera yaw in radians")
	exportCmd.Flags().Float64Var(&pitch, "pitch", 0, "camera pitch in radians")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list recorded runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a run's tension timeline",
		Args:  cobra.MaximumNArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&svgPath, "svg", "", "also write the timeline as SVG")
	plotCmd.Flags().Float64Var(&rate, "rate", 10, "resample rate in Hz")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "summary statistics and spectrum of a run",
		Args:  cobra.MaximumNArgs(1),
		RunE:  analyzeRun,
	}
	analyzeCmd.Flags().Float64Var(&rate, "rate", 10, "resample rate in Hz")

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export a run as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE:  exportJSON,
	}
	exportJSONCmd.Flags().StringVarP(&jsonOut, "out", "o", "-", "output file, - for stdout")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list looks",
		Args:  cobra.NoArgs,
		RunE:  listPresets,
	}

	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "write a default config file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "kinetic.yaml"
			if len(args) > 0 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := config.Save(path, config.DefaultConfig()); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", path)
			return nil
		},
	}

	rootCmd.AddCommand(runCmd, replayCmd, shapesCmd, exportCmd, listCmd, plotCmd, analyzeCmd, exportJSONCmd, presetsCmd, initCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfig layers the config file, the preset and explicitly set flags,
// in that order.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}
	if preset != "" {
		if err := cfg.ApplyPreset(preset); err != nil {
			return nil, fmt.Errorf("%w (available: %v)", err, config.ListPresets())
		}
	}
	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed
	if changed("data") {
		cfg.DataDir = dataDir
	}
	if changed("template") {
		cfg.Template = template
	}
	if changed("color") {
		cfg.Color = color
	}
	if changed("theme") {
		cfg.Theme = theme
	}
	if changed("model") {
		cfg.Model = model
	}
	if changed("source") {
		cfg.Capture.Source = source
	}
	if changed("dir") {
		cfg.Capture.Dir = imageDir
		if !changed("source") {
			cfg.Capture.Source = config.SourceDir
		}
	}
	if changed("listen") {
		cfg.Capture.Listen = listen
	}
	if changed("interval") {
		cfg.Capture.IntervalMs = intervalMs
	}
	if changed("fps") {
		cfg.FPS = fps
	}
	if changed("particles") {
		cfg.Particles = particleN
	}
	if changed("seed") {
		cfg.Seed = seed
	}
	if changed("metrics") {
		cfg.MetricsAddr = metricsAddr
	}
	if changed("record") {
		cfg.Record = record
	}
	if changed("log-level") {
		cfg.LogLevel = logLevel
	}
}

// openLog sends slog output to the log file under the data directory; the
// terminal belongs to the TUI.
func openLog(cfg *config.Config) (*slog.Logger, io.Closer, error) {
	level, err := cfg.Level()
	if err != nil {
		return nil, nil, err
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, nil, err
	}
	path := cfg.LogFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(cfg.DataDir, path)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, err
	}
	logger := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level}))
	return logger, f, nil
}
