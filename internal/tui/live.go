package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/fixstep/internal/dynamo"
	"github.com/san-kum/fixstep/internal/integrators"
	"github.com/san-kum/fixstep/internal/metrics"
)

const (
	historyLen = 120
	maxSpeed   = 64
)

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(16*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Live steps an integrator in real time and draws the state, a history plot
// of the first component and the integrator's counters.
type Live struct {
	model    string
	integ    integrators.Integrator
	x0, x    dynamo.State
	u        dynamo.Control
	t0       float64
	dt       float64
	steps    int
	k        int
	speed    int
	paused   bool
	err      error
	history  []float64
	defect   *metrics.Defect
	canvas   *Canvas
	width    int
	height   int
	lastTick time.Time
	fps      float64
}

func NewLive(model string, integ integrators.Integrator, x0 dynamo.State, duration float64) (*Live, error) {
	if err := dynamo.CheckState(integ.System(), "initial state", x0); err != nil {
		return nil, err
	}
	dt := integ.StepSize()
	l := &Live{
		model:  model,
		integ:  integ,
		x0:     x0.Clone(),
		u:      make(dynamo.Control, integ.System().ControlDim()),
		dt:     dt,
		steps:  int(duration/dt + 1e-9),
		speed:  1,
		canvas: NewCanvas(60, 14),
		width:  80,
		height: 24,
	}
	if col, ok := integ.(integrators.Collocator); ok {
		l.defect = metrics.NewDefect(col)
	}
	l.reset()
	return l, nil
}

func (l *Live) reset() {
	l.x = l.x0.Clone()
	l.k = 0
	l.err = nil
	l.paused = false
	l.history = append(l.history[:0], l.x[0])
	l.integ.ResetStats()
	if l.defect != nil {
		l.defect.Reset()
	}
	l.observe()
}

func (l *Live) clock() float64 { return l.t0 + float64(l.k)*l.dt }

// Done reports whether the run reached its duration or stopped on an error.
func (l *Live) Done() bool { return l.k >= l.steps || l.err != nil }

func (l *Live) Err() error { return l.err }

func (l *Live) State() dynamo.State { return l.x.Clone() }

func (l *Live) observe() {
	if l.defect == nil {
		return
	}
	t := l.clock()
	if err := l.integ.ControlInput().Control(t, l.u); err != nil {
		l.err = err
		return
	}
	l.defect.Observe(l.x, l.u, t)
}

// Advance performs up to n steps and stops early at the end of the run.
func (l *Live) Advance(n int) {
	for i := 0; i < n && !l.Done(); i++ {
		if err := l.integ.Step(l.clock(), l.dt, l.x, l.x); err != nil {
			l.err = err
			return
		}
		l.k++
		l.observe()
		l.history = append(l.history, l.x[0])
		if len(l.history) > historyLen {
			l.history = l.history[1:]
		}
	}
}

func (l *Live) Init() tea.Cmd { return tick() }

func (l *Live) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return l, tea.Quit
		case " ", "p":
			l.paused = !l.paused
		case "r":
			l.reset()
		case "+", "=":
			l.speed = min(l.speed*2, maxSpeed)
		case "-", "_":
			l.speed = max(l.speed/2, 1)
		case "0":
			l.speed = 1
		}
		return l, nil
	case tea.WindowSizeMsg:
		l.width, l.height = msg.Width, msg.Height
		cw, ch := max(l.width-8, 40), max(l.height-18, 8)
		l.canvas = NewCanvas(cw, ch)
		return l, nil
	case tickMsg:
		now := time.Time(msg)
		if !l.lastTick.IsZero() {
			if d := now.Sub(l.lastTick).Seconds(); d > 0 {
				l.fps = 1 / d
			}
		}
		l.lastTick = now
		if !l.paused {
			l.Advance(l.speed)
		}
		return l, tick()
	}
	return l, nil
}

func (l *Live) View() string {
	var b strings.Builder

	info := l.integ.Info()
	status := green.Render("● running")
	switch {
	case l.err != nil:
		status = red.Render("✕ failed")
	case l.Done():
		status = cyan.Render("■ done")
	case l.paused:
		status = yellow.Render("○ paused")
	}
	b.WriteString(fmt.Sprintf("\n   %s  %s  %s  %s\n",
		cyan.Render(l.model), white.Render(info.Name), dim.Render(fmt.Sprintf("dt=%g", l.dt)), status))

	progress := 1.0
	if l.steps > 0 {
		progress = min(float64(l.k)/float64(l.steps), 1)
	}
	barWidth := 36
	filled := int(progress * float64(barWidth))
	bar := cyan.Render(strings.Repeat("━", filled)) + dimmer.Render(strings.Repeat("─", barWidth-filled))
	b.WriteString(fmt.Sprintf("   %s %s  %s  %s\n\n", bar,
		dim.Render(fmt.Sprintf("%.2fs/%.2fs", l.clock(), l.t0+float64(l.steps)*l.dt)),
		dim.Render(fmt.Sprintf("x%d", l.speed)),
		dim.Render(fmt.Sprintf("%.0ffps", l.fps))))

	l.canvas.Draw(l.model, l.x)
	b.WriteString(l.canvas.String())

	b.WriteString("\n   ")
	labels := stateLabels[l.model]
	for i, v := range l.x {
		if i >= 6 {
			break
		}
		label := fmt.Sprintf("x%d", i)
		if i < len(labels) {
			label = labels[i]
		}
		b.WriteString(dim.Render(label+"=") + white.Render(fmt.Sprintf("%.4f", v)) + "  ")
	}
	b.WriteString("\n")

	st := l.integ.Stats()
	line := fmt.Sprintf("steps %d  evals %d", st.Steps, st.Evaluations)
	if !info.Explicit {
		line += fmt.Sprintf("  newton %d  jacobians %d", st.NewtonIterations, st.JacobianEvaluations)
	}
	if l.defect != nil {
		line += fmt.Sprintf("  defect %.2e", l.defect.Value())
	}
	b.WriteString("   " + magenta.Render(line) + "\n")

	if len(l.history) > 1 {
		caption := "x0"
		if len(labels) > 0 {
			caption = labels[0]
		}
		graph := asciigraph.Plot(l.history, asciigraph.Height(6), asciigraph.Width(min(l.width-12, 72)), asciigraph.Caption(caption))
		b.WriteString("\n" + indent(graph, "   ") + "\n")
	}

	if l.err != nil {
		b.WriteString("\n   " + red.Render(l.err.Error()) + "\n")
	}
	b.WriteString("\n" + dim.Render("   space pause  ±speed  r reset  q quit") + "\n")
	return b.String()
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}

// Run blocks until the user quits. A run that stopped on an integrator
// failure returns that failure.
func Run(l *Live) error {
	_, err := tea.NewProgram(l, tea.WithAltScreen()).Run()
	if err != nil {
		return err
	}
	return l.err
}
