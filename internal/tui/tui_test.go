package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/san-kum/fixstep/internal/dynamo"
	"github.com/san-kum/fixstep/internal/integrators"
	"github.com/san-kum/fixstep/internal/physics"
)

func newTestLive(t *testing.T, integ integrators.Integrator, x0 dynamo.State, duration float64) *Live {
	t.Helper()
	l, err := NewLive("pendulum", integ, x0, duration)
	if err != nil {
		t.Fatal(err)
	}
	return l
}

func TestCanvas_Line(t *testing.T) {
	c := NewCanvas(10, 5)
	c.Line(0, 0, 4, 4, '#')
	for i := 0; i <= 4; i++ {
		if c.At(i, i) != '#' {
			t.Errorf("missing point (%d,%d)", i, i)
		}
	}
	c.Set(100, 100, 'x')
	if c.At(100, 100) != 0 {
		t.Error("out of range access should be ignored")
	}
	c.Clear()
	if c.At(2, 2) != ' ' {
		t.Error("clear should blank the canvas")
	}
}

func TestCanvas_Draw(t *testing.T) {
	tests := []struct {
		model string
		x     dynamo.State
		want  rune
	}{
		{"pendulum", dynamo.State{0.3, 0}, '⬤'},
		{"cartpole", dynamo.State{0, 0, 0.1, 0}, '●'},
		{"spring_mass", dynamo.State{1, 0}, '█'},
		{"lorenz", dynamo.State{1, -2, 3}, '█'},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			c := NewCanvas(60, 14)
			c.Draw(tt.model, tt.x)
			if !strings.ContainsRune(c.String(), tt.want) {
				t.Errorf("expected %q in drawing:\n%s", tt.want, c.String())
			}
		})
	}
}

func TestLive_Advance(t *testing.T) {
	rk4, err := integrators.NewRK4(physics.NewPendulum(), 0.01)
	if err != nil {
		t.Fatal(err)
	}
	l := newTestLive(t, rk4, dynamo.State{0.5, 0}, 0.1)

	l.Advance(4)
	if l.k != 4 || l.Done() {
		t.Errorf("after 4 steps k=%d done=%v", l.k, l.Done())
	}
	l.Advance(100)
	if l.k != 10 || !l.Done() {
		t.Errorf("run should stop at 10 steps, got k=%d", l.k)
	}
	if rk4.Stats().Steps != 10 {
		t.Errorf("integrator stepped %d times", rk4.Stats().Steps)
	}

	l.reset()
	if l.k != 0 || l.State()[0] != 0.5 || rk4.Stats().Steps != 0 {
		t.Error("reset should restore the initial state and counters")
	}
}

func TestLive_DefectForCollocators(t *testing.T) {
	trap, err := integrators.NewImplicitTrapezoidal(physics.NewPendulum(), 0.01, integrators.DefaultNewtonOptions())
	if err != nil {
		t.Fatal(err)
	}
	l := newTestLive(t, trap, dynamo.State{1, 0}, 0.2)
	if l.defect == nil {
		t.Fatal("trapezoidal should get a defect metric")
	}
	l.Advance(20)
	if d := l.defect.Value(); d > 1e-9 {
		t.Errorf("defect %g", d)
	}
	if !strings.Contains(l.View(), "newton") {
		t.Error("implicit schemes should show newton counters")
	}
}

type failing struct{ physics.Pendulum }

func (f *failing) Derive(x dynamo.State, u dynamo.Control, t float64, dx dynamo.State) error {
	return errors.New("boom")
}

func TestLive_StopsOnError(t *testing.T) {
	rk4, err := integrators.NewRK4(&failing{Pendulum: *physics.NewPendulum()}, 0.01)
	if err != nil {
		t.Fatal(err)
	}
	l := newTestLive(t, rk4, dynamo.State{0.5, 0}, 1)
	l.Advance(5)
	if !errors.Is(l.Err(), dynamo.ErrEvaluation) {
		t.Errorf("expected evaluation error, got %v", l.Err())
	}
	if !l.Done() || l.k != 0 {
		t.Errorf("run should stop without advancing, k=%d", l.k)
	}
	if !strings.Contains(l.View(), "failed") {
		t.Error("view should show the failure")
	}
}

func TestLive_Update(t *testing.T) {
	rk4, err := integrators.NewRK4(physics.NewPendulum(), 0.01)
	if err != nil {
		t.Fatal(err)
	}
	l := newTestLive(t, rk4, dynamo.State{0.5, 0}, 1)

	key := func(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

	l.Update(key("+"))
	l.Update(key("+"))
	if l.speed != 4 {
		t.Errorf("speed = %d, want 4", l.speed)
	}
	_, cmd := l.Update(tickMsg(time.Now()))
	if cmd == nil {
		t.Error("tick should schedule the next tick")
	}
	if l.k != 4 {
		t.Errorf("one tick at speed 4 should take 4 steps, got %d", l.k)
	}

	l.Update(key("p"))
	l.Update(tickMsg(time.Now()))
	if l.k != 4 {
		t.Error("paused model must not step")
	}

	l.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	if l.canvas.w != 112 {
		t.Errorf("canvas width %d", l.canvas.w)
	}

	view := l.View()
	for _, want := range []string{"pendulum", "rk4", "paused", "θ="} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}

	_, cmd = l.Update(key("q"))
	if cmd == nil {
		t.Error("q should quit")
	}
}

func TestNewLive_DimensionMismatch(t *testing.T) {
	rk4, err := integrators.NewRK4(physics.NewPendulum(), 0.01)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewLive("pendulum", rk4, dynamo.State{1, 2, 3}, 1); !errors.Is(err, dynamo.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}
