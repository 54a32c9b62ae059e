package particles

import (
	"fmt"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// DefaultColor is the initial particle color.
const DefaultColor = "#3b82f6"

// Color is the shared display color of the particle field.
type Color struct {
	colorful.Color
}

// Swatch is one entry of the color selector.
type Swatch struct {
	Name string
	Hex  string
}

// Palette is the fixed set offered by the color selector.
var Palette = []Swatch{
	{"red", "#ef4444"},
	{"orange", "#f97316"},
	{"yellow", "#eab308"},
	{"green", "#22c55e"},
	{"cyan", "#06b6d4"},
	{"blue", "#3b82f6"},
	{"purple", "#a855f7"},
	{"pink", "#ec4899"},
	{"white", "#ffffff"},
}

// ParseColor accepts a palette name or a #rrggbb hex string.
func ParseColor(s string) (Color, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, sw := range Palette {
		if sw.Name == s {
			s = sw.Hex
			break
		}
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return Color{}, fmt.Errorf("particles: invalid color %q: %w", s, err)
	}
	return Color{c}, nil
}

// MustParseColor is ParseColor for constants.
func MustParseColor(s string) Color {
	c, err := ParseColor(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Lerp moves c toward o by alpha, component-wise on the sRGB values.
func (c Color) Lerp(o Color, alpha float64) Color {
	return Color{c.BlendRgb(o.Color, alpha)}
}

// PaletteIndex returns the palette position of hex, or -1.
func PaletteIndex(hex string) int {
	hex = strings.ToLower(hex)
	for i, sw := range Palette {
		if sw.Hex == hex {
			return i
		}
	}
	return -1
}
