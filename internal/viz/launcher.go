package viz

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/kinetic/internal/particles"
	"github.com/san-kum/kinetic/internal/shape"
)

// Look is a named shape, color and theme offered by the launcher.
type Look struct {
	Name        string
	Description string
	Template    shape.Template
	Color       particles.Color
	Theme       string
}

// launcher shows a look picker, then hands over to the live view.
type launcher struct {
	driver Driver
	looks  []Look
	opts   Options
	cursor int
	chosen bool
	live   Model
	styles styles
}

func NewLauncher(d Driver, looks []Look, opts Options) tea.Model {
	theme, _ := GetTheme(opts.Theme)
	return launcher{driver: d, looks: looks, opts: opts, styles: newStyles(theme)}
}

func (l launcher) Init() tea.Cmd { return nil }

func (l launcher) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if l.chosen {
		next, cmd := l.live.Update(msg)
		l.live = next.(Model)
		return l, cmd
	}
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return l, nil
	}
	switch key.String() {
	case "q", "ctrl+c":
		return l, tea.Quit
	case "up", "k":
		if l.cursor > 0 {
			l.cursor--
		}
	case "down", "j":
		if l.cursor < len(l.looks)-1 {
			l.cursor++
		}
	case "enter":
		if len(l.looks) > 0 {
			look := l.looks[l.cursor]
			l.driver.SetTemplate(look.Template)
			l.driver.SetColor(look.Color)
			if look.Theme != "" {
				l.opts.Theme = look.Theme
			}
		}
		return l.begin()
	case "esc", "s":
		return l.begin()
	}
	return l, nil
}

func (l launcher) begin() (tea.Model, tea.Cmd) {
	l.chosen = true
	l.live = NewModel(l.driver, l.opts)
	return l, l.live.Init()
}

func (l launcher) View() string {
	if l.chosen {
		return l.live.View()
	}
	st := l.styles
	var b strings.Builder
	b.WriteString(st.title.Render("KINETIC") + "\n")
	b.WriteString(st.muted.Render("pick a look") + "\n\n")
	for i, look := range l.looks {
		name := fmt.Sprintf("%-10s", look.Name)
		desc := st.muted.Render(look.Description)
		swatch := lipgloss.NewStyle().Foreground(lipgloss.Color(look.Color.Hex())).Render("●")
		if i == l.cursor {
			b.WriteString(st.ok.Render("▸ "+name) + " " + swatch + " " + desc + "\n")
		} else {
			b.WriteString("  " + st.value.UnsetBold().Render(name) + " " + swatch + " " + desc + "\n")
		}
	}
	b.WriteString(st.keyHint.Render("↑↓:Move Enter:Select S:Skip Q:Quit"))
	return lipgloss.NewStyle().Padding(1, 2).Render(b.String())
}

// RunLauncher runs the look picker followed by the live view.
func RunLauncher(d Driver, looks []Look, opts Options) error {
	_, err := tea.NewProgram(NewLauncher(d, looks, opts), tea.WithAltScreen()).Run()
	return err
}
