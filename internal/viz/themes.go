package viz

import "github.com/charmbracelet/lipgloss"

// Theme is the color scheme of the status panel. Particles always use the
// blended particle color.
type Theme struct {
	Name      string
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Accent    lipgloss.Color
	Text      lipgloss.Color
	Muted     lipgloss.Color
	Success   lipgloss.Color
	Warning   lipgloss.Color
	Error     lipgloss.Color
}

var (
	ThemeDefault = Theme{
		Name:      "default",
		Primary:   lipgloss.Color("#3b82f6"),
		Secondary: lipgloss.Color("#a855f7"),
		Accent:    lipgloss.Color("#06b6d4"),
		Text:      lipgloss.Color("#e5e7eb"),
		Muted:     lipgloss.Color("#6b7280"),
		Success:   lipgloss.Color("#22c55e"),
		Warning:   lipgloss.Color("#eab308"),
		Error:     lipgloss.Color("#ef4444"),
	}

	ThemeOcean = Theme{
		Name:      "ocean",
		Primary:   lipgloss.Color("#0077be"),
		Secondary: lipgloss.Color("#00a8cc"),
		Accent:    lipgloss.Color("#ffd700"),
		Text:      lipgloss.Color("#e0f0ff"),
		Muted:     lipgloss.Color("#4488aa"),
		Success:   lipgloss.Color("#00ff88"),
		Warning:   lipgloss.Color("#ffcc00"),
		Error:     lipgloss.Color("#ff4444"),
	}

	ThemeSunset = Theme{
		Name:      "sunset",
		Primary:   lipgloss.Color("#ff6b6b"),
		Secondary: lipgloss.Color("#feca57"),
		Accent:    lipgloss.Color("#ff9ff3"),
		Text:      lipgloss.Color("#fff5f5"),
		Muted:     lipgloss.Color("#8b6b8c"),
		Success:   lipgloss.Color("#5fd068"),
		Warning:   lipgloss.Color("#ffc048"),
		Error:     lipgloss.Color("#ff4757"),
	}

	ThemeMono = Theme{
		Name:      "mono",
		Primary:   lipgloss.Color("#ffffff"),
		Secondary: lipgloss.Color("#cccccc"),
		Accent:    lipgloss.Color("#999999"),
		Text:      lipgloss.Color("#ffffff"),
		Muted:     lipgloss.Color("#777777"),
		Success:   lipgloss.Color("#ffffff"),
		Warning:   lipgloss.Color("#bbbbbb"),
		Error:     lipgloss.Color("#ff0000"),
	}

	ThemeForest = Theme{
		Name:      "forest",
		Primary:   lipgloss.Color("#22c55e"),
		Secondary: lipgloss.Color("#84cc16"),
		Accent:    lipgloss.Color("#facc15"),
		Text:      lipgloss.Color("#ecfccb"),
		Muted:     lipgloss.Color("#4d7c0f"),
		Success:   lipgloss.Color("#86efac"),
		Warning:   lipgloss.Color("#fbbf24"),
		Error:     lipgloss.Color("#f87171"),
	}

	Themes = []Theme{
		ThemeDefault,
		ThemeOcean,
		ThemeSunset,
		ThemeMono,
		ThemeForest,
	}
)

// GetTheme returns the named theme, or the default theme and false.
func GetTheme(name string) (Theme, bool) {
	for _, t := range Themes {
		if t.Name == name {
			return t, true
		}
	}
	return ThemeDefault, false
}

// NextTheme returns the theme after name, wrapping around.
func NextTheme(name string) Theme {
	for i, t := range Themes {
		if t.Name == name {
			return Themes[(i+1)%len(Themes)]
		}
	}
	return Themes[0]
}

func ThemeNames() []string {
	names := make([]string, len(Themes))
	for i, t := range Themes {
		names[i] = t.Name
	}
	return names
}
