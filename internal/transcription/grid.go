package transcription

import (
	"fmt"
	"math"

	"github.com/san-kum/fixstep/internal/dynamo"
	"github.com/san-kum/fixstep/internal/integrators"
)

// Grid holds the states and controls at N uniformly spaced nodes
// T0, T0+Dt, ..., T0+(N-1)Dt.
type Grid struct {
	T0       float64
	Dt       float64
	States   []dynamo.State
	Controls []dynamo.Control
}

// NewGrid returns a grid for sys with the given number of nodes. Every state
// starts at x0 and the controls are sampled from in.
func NewGrid(sys dynamo.System, t0, dt float64, nodes int, x0 dynamo.State, in dynamo.ControlInput) (*Grid, error) {
	if err := dynamo.CheckState(sys, "initial state", x0); err != nil {
		return nil, err
	}
	if nodes < 2 {
		return nil, fmt.Errorf("%w: grid needs at least 2 nodes, got %d", dynamo.ErrDimensionMismatch, nodes)
	}
	g := &Grid{
		T0:       t0,
		Dt:       dt,
		States:   make([]dynamo.State, nodes),
		Controls: make([]dynamo.Control, nodes),
	}
	for k, t := range g.Times() {
		g.States[k] = x0.Clone()
		g.Controls[k] = make(dynamo.Control, sys.ControlDim())
		if err := in.Control(t, g.Controls[k]); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func (g *Grid) Nodes() int { return len(g.States) }

func (g *Grid) Times() []float64 {
	times := make([]float64, len(g.States))
	for k := range times {
		times[k] = g.T0 + float64(k)*g.Dt
	}
	return times
}

func (g *Grid) Clone() *Grid {
	out := &Grid{
		T0:       g.T0,
		Dt:       g.Dt,
		States:   make([]dynamo.State, len(g.States)),
		Controls: make([]dynamo.Control, len(g.Controls)),
	}
	for k := range g.States {
		out.States[k] = g.States[k].Clone()
	}
	for k := range g.Controls {
		out.Controls[k] = g.Controls[k].Clone()
	}
	return out
}

func (g *Grid) validate(sys dynamo.System, dT float64) error {
	if len(g.States) < 2 {
		return fmt.Errorf("%w: grid needs at least 2 nodes, got %d", dynamo.ErrDimensionMismatch, len(g.States))
	}
	if len(g.Controls) != len(g.States) {
		return fmt.Errorf("%w: %d states but %d controls", dynamo.ErrDimensionMismatch, len(g.States), len(g.Controls))
	}
	if math.Abs(g.Dt-dT) > 1e-12*dT {
		return fmt.Errorf("%w: grid dt %g, integrator dt %g", integrators.ErrGridStep, g.Dt, dT)
	}
	for k := range g.States {
		if err := dynamo.CheckState(sys, fmt.Sprintf("node %d state", k), g.States[k]); err != nil {
			return err
		}
		if err := dynamo.CheckControl(sys, fmt.Sprintf("node %d control", k), g.Controls[k]); err != nil {
			return err
		}
	}
	return nil
}
