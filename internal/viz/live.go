package viz

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/kinetic/internal/control"
	"github.com/san-kum/kinetic/internal/inference"
	"github.com/san-kum/kinetic/internal/particles"
	"github.com/san-kum/kinetic/internal/shape"
)

const (
	width           = 80
	height          = 24
	historyCapacity = 240
	noticeTTL       = 5 * time.Second
	rotateStep      = 0.1
)

// Driver is the live visualization the TUI displays and controls.
// *control.Controller implements it.
type Driver interface {
	Animator() *particles.Animator
	Tension() float64
	State() inference.State
	Running() bool
	Toggle(ctx context.Context) error
	Notices() <-chan control.Notice
	SetTemplate(shape.Template)
	SetColor(particles.Color)
}

// Options configures the live view.
type Options struct {
	FPS   int
	Theme string
	// Subtitle is shown under the title, usually the model and source.
	Subtitle string
	// GIFDir receives recordings made with the g key.
	GIFDir string
}

type TickMsg time.Time

type toggledMsg struct{ err error }

type gifSavedMsg struct {
	path string
	err  error
}

// Model is the bubbletea model of the live visualization.
type Model struct {
	driver   Driver
	opts     Options
	frame    time.Duration
	canvas   *Canvas
	camera   *Camera
	theme    Theme
	styles   styles
	start    time.Time
	last     time.Time
	ticks    int
	drawn    int
	autoSpin bool
	showHelp bool
	toggling bool

	spring   harmonica.Spring
	gauge    float64
	gaugeVel float64
	history  []float64

	notice   control.Notice
	noticeAt time.Time

	gif *gifRecorder
}

// NewModel builds the view. A zero FPS uses 60.
func NewModel(d Driver, opts Options) Model {
	if opts.FPS <= 0 {
		opts.FPS = 60
	}
	theme, _ := GetTheme(opts.Theme)
	return Model{
		driver:   d,
		opts:     opts,
		frame:    time.Second / time.Duration(opts.FPS),
		canvas:   NewCanvas(width-panelWidth/2, height),
		camera:   NewCamera(),
		theme:    theme,
		styles:   newStyles(theme),
		autoSpin: true,
		spring:   harmonica.NewSpring(harmonica.FPS(opts.FPS), 6.0, 0.6),
		gauge:    d.Tension(),
	}
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.frame, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return m.tick()
}

// Update handles input and advances the particle field on every tick.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		w := msg.Width - panelWidth - 6
		h := msg.Height - 2
		m.canvas.Resize(max(w, 10), max(h, 5))
	case TickMsg:
		m.step(time.Time(msg))
		return m, m.tick()
	case toggledMsg:
		m.toggling = false
		if msg.err != nil {
			m.setNotice(control.Notice{Level: control.Failure, Text: msg.err.Error()}, time.Now())
		}
	case gifSavedMsg:
		if msg.err != nil {
			m.setNotice(control.Notice{Level: control.Warning, Text: "gif: " + msg.err.Error()}, time.Now())
		} else {
			m.setNotice(control.Notice{Level: control.Info, Text: "saved " + msg.path}, time.Now())
		}
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch key {
	case "q", "ctrl+c":
		return m, tea.Quit
	case " ":
		if m.toggling {
			return m, nil
		}
		m.toggling = true
		d := m.driver
		return m, func() tea.Msg {
			return toggledMsg{err: d.Toggle(context.Background())}
		}
	case "1", "2", "3", "4", "5", "6":
		i := int(key[0] - '1')
		if i < len(shape.Templates) {
			m.driver.SetTemplate(shape.Templates[i])
		}
	case "c":
		m.cycleColor(1)
	case "C":
		m.cycleColor(-1)
	case "x":
		m.camera.RotateX(rotateStep)
	case "X":
		m.camera.RotateX(-rotateStep)
	case "y":
		m.camera.RotateY(rotateStep)
	case "Y":
		m.camera.RotateY(-rotateStep)
	case "z":
		m.camera.RotateZ(rotateStep)
	case "Z":
		m.camera.RotateZ(-rotateStep)
	case "+", "=":
		m.camera.ZoomIn()
	case "-", "_":
		m.camera.ZoomOut()
	case "a":
		m.autoSpin = !m.autoSpin
	case "t":
		m.theme = NextTheme(m.theme.Name)
		m.styles = newStyles(m.theme)
	case "g":
		if m.gif == nil {
			m.gif = newGIFRecorder(m.opts.FPS)
			return m, nil
		}
		rec, dir := m.gif, m.opts.GIFDir
		m.gif = nil
		return m, func() tea.Msg {
			path, err := rec.Save(dir, time.Now())
			return gifSavedMsg{path: path, err: err}
		}
	case "?":
		m.showHelp = !m.showHelp
	}
	return m, nil
}

func (m *Model) cycleColor(dir int) {
	n := len(particles.Palette)
	i := particles.PaletteIndex(m.driver.Animator().TargetColor().Hex())
	if i < 0 {
		i = 0
		if dir < 0 {
			i = n - 1
		}
	} else {
		i = (i + dir + n) % n
	}
	m.driver.SetColor(particles.MustParseColor(particles.Palette[i].Hex))
}

// step advances the field to now and redraws the canvas.
func (m *Model) step(now time.Time) {
	if m.start.IsZero() {
		m.start, m.last = now, now
	}
	dt := now.Sub(m.last).Seconds()
	m.last = now
	m.ticks++

	t := m.driver.Tension()
	anim := m.driver.Animator()
	anim.Step(now.Sub(m.start).Seconds(), t)

	if m.autoSpin && m.driver.State() != inference.Connected {
		m.camera.AutoRotate(dt)
	}
	m.drawn = Render(m.canvas, m.camera, anim.Transforms())

	m.gauge, m.gaugeVel = m.spring.Update(m.gauge, m.gaugeVel, t)
	m.history = append(m.history, t)
	if len(m.history) > historyCapacity {
		m.history = m.history[1:]
	}

	m.drainNotices(now)
	if m.notice.Text != "" && now.Sub(m.noticeAt) > noticeTTL {
		m.notice = control.Notice{}
	}

	if m.gif != nil {
		m.gif.Capture(m.canvas, anim.Color())
	}
}

func (m *Model) drainNotices(now time.Time) {
	for {
		select {
		case n := <-m.driver.Notices():
			m.setNotice(n, now)
		default:
			return
		}
	}
}

func (m *Model) setNotice(n control.Notice, now time.Time) {
	m.notice, m.noticeAt = n, now
}

// View renders the particle canvas and the status panel.
func (m Model) View() string {
	anim := m.driver.Animator()
	particleStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color(anim.Color().Hex())).
		Padding(1, 2)
	canvasView := particleStyle.Render(m.canvas.String())

	st := m.styles
	var s strings.Builder
	s.WriteString(st.title.Render(GradientText("KINETIC", m.theme.Primary, m.theme.Secondary)) + "\n")
	if m.opts.Subtitle != "" {
		s.WriteString(st.muted.Render(m.opts.Subtitle) + "\n")
	}
	s.WriteString(m.status() + "\n\n")

	s.WriteString(st.label.Render("Shape") + st.value.Render(anim.Template().Label()) + "\n")
	s.WriteString(st.label.Render("Color") + st.value.Render(colorName(anim.TargetColor())) + "\n")
	s.WriteString(st.label.Render("Particles") + st.value.Render(fmt.Sprintf("%d / %d", m.drawn, anim.Count())) + "\n")
	s.WriteString(st.label.Render("Theme") + st.value.Render(m.theme.Name) + "\n\n")

	t := m.driver.Tension()
	s.WriteString(st.label.Render("Tension") + st.value.Render(fmt.Sprintf("%3.0f%%", t*100)) + "\n")
	s.WriteString(Gauge(m.theme, m.gauge, panelWidth-6) + "\n")
	if len(m.history) > 1 {
		chart := asciigraph.Plot(m.history,
			asciigraph.Height(5),
			asciigraph.Width(panelWidth-14),
			asciigraph.LowerBound(0),
			asciigraph.UpperBound(1),
			asciigraph.Precision(1),
			asciigraph.Caption("tension"))
		s.WriteString(st.graph.Render(chart) + "\n")
	}

	if m.notice.Text != "" {
		s.WriteString("\n" + m.noticeStyle().Render(m.notice.Text) + "\n")
	}
	if m.gif != nil {
		s.WriteString(st.err.Render(fmt.Sprintf("● REC %d frames", m.gif.Len())) + "\n")
	}

	s.WriteString("\n" + Separator(m.theme, panelWidth-6) + "\n")
	s.WriteString(st.keyHint.Render("SP:Start/Stop 1-6:Shape C:Color\nT:Theme G:Record ?:Help Q:Quit"))

	main := lipgloss.JoinHorizontal(lipgloss.Top, canvasView, st.panel.Render(s.String()))
	if m.showHelp {
		return lipgloss.JoinVertical(lipgloss.Left, st.help.Render(helpText), main)
	}
	return main
}

const helpText = `KEYBOARD SHORTCUTS

Space     Start/stop camera and connection
1-6       Sphere, Heart, Flower, Saturn, Zen, Fireworks
c / C     Next / previous color
x y z     Rotate (shift reverses)
+ / -     Zoom in / out
a         Toggle auto-rotate
t         Cycle themes
g         Toggle GIF recording
?         Toggle this help
q         Quit`

func (m Model) status() string {
	st := m.styles
	switch m.driver.State() {
	case inference.Connected:
		return st.ok.Render("● LIVE")
	case inference.Connecting:
		return st.warn.Render(Spinner(m.ticks/4) + " CONNECTING")
	}
	if m.toggling {
		verb := " STARTING"
		if m.driver.Running() {
			verb = " STOPPING"
		}
		return st.warn.Render(Spinner(m.ticks/4) + verb)
	}
	return st.muted.Render("○ OFFLINE")
}

func (m Model) noticeStyle() lipgloss.Style {
	switch m.notice.Level {
	case control.Failure:
		return m.styles.err
	case control.Warning:
		return m.styles.warn
	}
	return m.styles.ok
}

func colorName(c particles.Color) string {
	hex := c.Hex()
	if i := particles.PaletteIndex(hex); i >= 0 {
		return particles.Palette[i].Name
	}
	return hex
}

// Run starts the live view in the alternate screen and blocks until quit.
func Run(d Driver, opts Options) error {
	_, err := tea.NewProgram(NewModel(d, opts), tea.WithAltScreen()).Run()
	return err
}
