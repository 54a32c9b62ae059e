package main

import (
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/san-kum/kinetic/internal/config"
	"github.com/san-kum/kinetic/internal/export"
	"github.com/san-kum/kinetic/internal/geom"
	"github.com/san-kum/kinetic/internal/particles"
	"github.com/san-kum/kinetic/internal/shape"
	"github.com/san-kum/kinetic/internal/viz"
)

// extents returns the per-axis bounds and the largest distance from the
// origin of a point cloud.
func extents(points []geom.Vec3) (lo, hi geom.Vec3, radius float64) {
	if len(points) == 0 {
		return
	}
	lo, hi = points[0], points[0]
	for _, p := range points {
		lo = geom.Vec3{X: math.Min(lo.X, p.X), Y: math.Min(lo.Y, p.Y), Z: math.Min(lo.Z, p.Z)}
		hi = geom.Vec3{X: math.Max(hi.X, p.X), Y: math.Max(hi.Y, p.Y), Z: math.Max(hi.Z, p.Z)}
		radius = math.Max(radius, p.Length())
	}
	return
}

func listShapes(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	s := cfg.Seed
	if s == 0 {
		s = 1
	}
	rng := rand.New(rand.NewPCG(s, s))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tNAME\tLABEL\tPOINTS\tRADIUS\tX\tY\tZ")
	for i, t := range shape.Templates {
		pts := shape.Generate(t, cfg.Particles, rng)
		lo, hi, r := extents(pts)
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%.2f\t[%.2f, %.2f]\t[%.2f, %.2f]\t[%.2f, %.2f]\n",
			i+1, t, t.Label(), len(pts), r, lo.X, hi.X, lo.Y, hi.Y, lo.Z, hi.Z)
	}
	return w.Flush()
}

func exportFrame(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	if len(args) > 0 {
		cfg.Template = args[0]
	}
	anim, err := buildAnimator(cfg)
	if err != nil {
		return err
	}

	frame := export.Settle(anim, tension, frames, cfg.FPS)
	cam := viz.NewCamera()
	cam.Yaw, cam.Pitch = yaw, pitch
	svg := export.FrameSVG(frame, cam, anim.Color(), outWidth, outHeight)

	path := outPath
	if path == "" {
		path = anim.Template().String() + ".svg"
	}
	if err := os.WriteFile(path, []byte(svg), 0644); err != nil {
		return err
	}
	fmt.Printf("wrote %s (%s, tension %.2f, %d particles)\n", path, anim.Template().Label(), tension, anim.Count())
	return nil
}

func listPresets(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSHAPE\tCOLOR\tTHEME\tDESCRIPTION")
	for _, name := range config.ListPresets() {
		p := config.GetPreset(name)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", name, p.Template, p.Color, p.Theme, p.Description)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\nshapes: ")
	for i, t := range shape.Templates {
		if i > 0 {
			fmt.Print(", ")
		}
		fmt.Print(t.Label())
	}
	fmt.Printf("\ncolors: ")
	for i, sw := range particles.Palette {
		if i > 0 {
			fmt.Print(", ")
		}
		fmt.Print(sw.Name)
	}
	fmt.Println()
	return nil
}
