package config

import (
	"fmt"
	"sort"
)

// Preset is a named look: template, color and theme.
type Preset struct {
	Description string
	Template    string
	Color       string
	Theme       string
}

var Presets = map[string]*Preset{
	"calm": {
		Description: "slow cyan sphere",
		Template:    "sphere", Color: "cyan", Theme: "ocean",
	},
	"cosmos": {
		Description: "ringed planet in violet",
		Template:    "saturn", Color: "purple", Theme: "default",
	},
	"zen": {
		Description: "seated figure in white",
		Template:    "zen", Color: "white", Theme: "mono",
	},
	"celebrate": {
		Description: "golden fireworks, open hands to burst",
		Template:    "fireworks", Color: "yellow", Theme: "sunset",
	},
	"love": {
		Description: "pink heart",
		Template:    "heart", Color: "pink", Theme: "sunset",
	},
	"bloom": {
		Description: "green rose curve",
		Template:    "flower", Color: "green", Theme: "forest",
	},
}

func GetPreset(name string) *Preset {
	p, ok := Presets[name]
	if !ok {
		return nil
	}
	return p
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ApplyPreset overwrites the look of c with preset name.
func (c *Config) ApplyPreset(name string) error {
	p := GetPreset(name)
	if p == nil {
		return fmt.Errorf("%w: unknown preset %q", ErrInvalid, name)
	}
	c.Template = p.Template
	c.Color = p.Color
	c.Theme = p.Theme
	return nil
}
