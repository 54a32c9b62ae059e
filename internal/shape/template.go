package shape

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownTemplate is returned by ParseTemplate for names outside the set.
var ErrUnknownTemplate = errors.New("shape: unknown template")

// Template selects one of the fixed target arrangements.
type Template int

const (
	Sphere Template = iota
	Heart
	Flower
	Saturn
	MeditatingFigure
	Fireworks
)

// Templates lists every template in selector order.
var Templates = []Template{Sphere, Heart, Flower, Saturn, MeditatingFigure, Fireworks}

var templateNames = map[Template]string{
	Sphere:           "sphere",
	Heart:            "heart",
	Flower:           "flower",
	Saturn:           "saturn",
	MeditatingFigure: "zen",
	Fireworks:        "fireworks",
}

var templateLabels = map[Template]string{
	Sphere:           "Sphere",
	Heart:            "Heart",
	Flower:           "Flower",
	Saturn:           "Saturn",
	MeditatingFigure: "Zen",
	Fireworks:        "Fireworks",
}

func (t Template) String() string {
	if name, ok := templateNames[t]; ok {
		return name
	}
	return fmt.Sprintf("template(%d)", int(t))
}

// Label is the display name shown in the selector.
func (t Template) Label() string {
	if label, ok := templateLabels[t]; ok {
		return label
	}
	return t.String()
}

// Valid reports whether t is one of the enumerated templates.
func (t Template) Valid() bool {
	_, ok := templateNames[t]
	return ok
}

// ParseTemplate accepts the canonical names plus a few aliases.
func ParseTemplate(name string) (Template, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sphere":
		return Sphere, nil
	case "heart":
		return Heart, nil
	case "flower":
		return Flower, nil
	case "saturn", "ring":
		return Saturn, nil
	case "zen", "meditating", "buddha":
		return MeditatingFigure, nil
	case "fireworks", "firework":
		return Fireworks, nil
	}
	return Sphere, fmt.Errorf("%w: %q", ErrUnknownTemplate, name)
}

// MarshalText lets templates round-trip through yaml and flags.
func (t Template) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownTemplate, int(t))
	}
	return []byte(t.String()), nil
}

func (t *Template) UnmarshalText(b []byte) error {
	parsed, err := ParseTemplate(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
