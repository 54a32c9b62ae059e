package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/kinetic/internal/analysis"
	"github.com/san-kum/kinetic/internal/export"
	"github.com/san-kum/kinetic/internal/storage"
)

// openStore opens the run store of the resolved config.
func openStore(cmd *cobra.Command) (*storage.Store, error) {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return nil, err
	}
	return storage.New(cfg.DataDir), nil
}

// resolveRun loads the run named by args[0], or the latest run.
func resolveRun(st *storage.Store, args []string) (*storage.RunMetadata, error) {
	if len(args) > 0 {
		return st.Load(args[0])
	}
	meta, err := st.Latest()
	if err != nil {
		return nil, fmt.Errorf("no runs in %s: %w", st.Dir(), err)
	}
	return meta, nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTEMPLATE\tSOURCE\tTIME\tDURATION\tREPORTS\tMEAN")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.1fs\t%d\t%.2f\n",
			run.ID,
			run.Template,
			run.Source,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Duration,
			run.Reports,
			run.Stats["mean"],
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	meta, err := resolveRun(st, args)
	if err != nil {
		return err
	}
	samples, err := st.LoadTension(meta.ID)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		return fmt.Errorf("run %s has no tension reports", meta.ID)
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("template: %s\n", meta.Template)
	fmt.Printf("reports: %d over %.1fs\n\n", len(samples), meta.Duration)

	series := analysis.Resample(samples, rate)
	if len(series) < 2 {
		series = []float64{samples[0].Tension, samples[0].Tension}
	}
	graph := asciigraph.Plot(series,
		asciigraph.Height(10),
		asciigraph.Width(80),
		asciigraph.LowerBound(0),
		asciigraph.UpperBound(1),
		asciigraph.Caption(fmt.Sprintf("tension (%.0f Hz)", rate)),
	)
	fmt.Println(graph)

	if svgPath != "" {
		svg := export.TimelineSVG(samples, 800, 200, "#3b82f6")
		if err := os.WriteFile(svgPath, []byte(svg), 0644); err != nil {
			return err
		}
		fmt.Printf("\nwrote %s\n", svgPath)
	}
	return nil
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	meta, err := resolveRun(st, args)
	if err != nil {
		return err
	}
	samples, err := st.LoadTension(meta.ID)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		return fmt.Errorf("run %s has no tension reports", meta.ID)
	}

	fmt.Printf("analysis: %s\n\n", meta.ID)

	stats := analysis.Summarize(samples)
	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, name := range names {
		fmt.Fprintf(w, "%s\t%.4f\n", name, stats[name])
	}
	if err := w.Flush(); err != nil {
		return err
	}

	series := analysis.Resample(samples, rate)
	ps := analysis.Spectrum(series)
	if len(ps) < 2 {
		fmt.Println("\nnot enough data for a spectrum")
		return nil
	}
	fmt.Println()
	fmt.Println(asciigraph.Plot(ps,
		asciigraph.Height(10),
		asciigraph.Width(80),
		asciigraph.Caption("magnitude spectrum"),
	))

	freq := analysis.DominantFrequency(series, rate)
	fmt.Printf("\ndominant frequency: %.3f hz\n", freq)
	if freq > 0 {
		fmt.Printf("period: %.2f s\n", 1.0/freq)
	}
	return nil
}

func exportJSON(cmd *cobra.Command, args []string) error {
	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	meta, err := resolveRun(st, args)
	if err != nil {
		return err
	}
	return st.ExportJSON(meta.ID, jsonOut)
}
