package integrators

import (
	"errors"
	"math"

	"github.com/san-kum/fixstep/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// decay is x' = -rate*x + u for every component.
type decay struct {
	rate float64
	n, m int
}

func (d *decay) StateDim() int   { return d.n }
func (d *decay) ControlDim() int { return d.m }

func (d *decay) Derive(x dynamo.State, u dynamo.Control, t float64, dx dynamo.State) error {
	for i := range x {
		dx[i] = -d.rate * x[i]
		if d.m > 0 {
			dx[i] += u[0]
		}
	}
	return nil
}

func (d *decay) StateJacobian(x dynamo.State, u dynamo.Control, t float64, jac *mat.Dense) error {
	for i := 0; i < d.n; i++ {
		jac.Set(i, i, -d.rate)
	}
	return nil
}

func (d *decay) ControlJacobian(x dynamo.State, u dynamo.Control, t float64, jac *mat.Dense) error {
	for i := 0; i < d.n; i++ {
		jac.Set(i, 0, 1)
	}
	return nil
}

// oscillator is the harmonic oscillator q'' = -q with state [q, v].
type oscillator struct{}

func (oscillator) StateDim() int   { return 2 }
func (oscillator) ControlDim() int { return 0 }

func (oscillator) Derive(x dynamo.State, u dynamo.Control, t float64, dx dynamo.State) error {
	dx[0] = x[1]
	dx[1] = -x[0]
	return nil
}

func (oscillator) StateJacobian(x dynamo.State, u dynamo.Control, t float64, jac *mat.Dense) error {
	jac.Set(0, 1, 1)
	jac.Set(1, 0, -1)
	return nil
}

func (oscillator) ControlJacobian(x dynamo.State, u dynamo.Control, t float64, jac *mat.Dense) error {
	return nil
}

// pendulum is a damped pendulum driven by a torque, state [theta, omega].
type pendulum struct {
	g, l, m, b float64
}

func newPendulum() *pendulum { return &pendulum{g: 9.81, l: 1, m: 1, b: 0.1} }

func (p *pendulum) StateDim() int   { return 2 }
func (p *pendulum) ControlDim() int { return 1 }

func (p *pendulum) Derive(x dynamo.State, u dynamo.Control, t float64, dx dynamo.State) error {
	dx[0] = x[1]
	dx[1] = -p.g/p.l*math.Sin(x[0]) - p.b*x[1] + u[0]/(p.m*p.l*p.l)
	return nil
}

func (p *pendulum) StateJacobian(x dynamo.State, u dynamo.Control, t float64, jac *mat.Dense) error {
	jac.Set(0, 1, 1)
	jac.Set(1, 0, -p.g/p.l*math.Cos(x[0]))
	jac.Set(1, 1, -p.b)
	return nil
}

func (p *pendulum) ControlJacobian(x dynamo.State, u dynamo.Control, t float64, jac *mat.Dense) error {
	jac.Set(1, 0, 1/(p.m*p.l*p.l))
	return nil
}

// cubic is x' = -x^3, nonlinear enough that one Newton update never suffices.
type cubic struct{}

func (cubic) StateDim() int   { return 1 }
func (cubic) ControlDim() int { return 0 }

func (cubic) Derive(x dynamo.State, u dynamo.Control, t float64, dx dynamo.State) error {
	dx[0] = -x[0] * x[0] * x[0]
	return nil
}

func (cubic) StateJacobian(x dynamo.State, u dynamo.Control, t float64, jac *mat.Dense) error {
	jac.Set(0, 0, -3*x[0]*x[0])
	return nil
}

func (cubic) ControlJacobian(x dynamo.State, u dynamo.Control, t float64, jac *mat.Dense) error {
	return nil
}

var errBoom = errors.New("boom")

// failing fails every evaluation after the first `after` calls.
type failing struct {
	calls int
	after int
}

func (f *failing) StateDim() int   { return 2 }
func (f *failing) ControlDim() int { return 0 }

func (f *failing) Derive(x dynamo.State, u dynamo.Control, t float64, dx dynamo.State) error {
	f.calls++
	if f.calls > f.after {
		return errBoom
	}
	dx[0] = x[1]
	dx[1] = -x[0]
	return nil
}

func (f *failing) StateJacobian(x dynamo.State, u dynamo.Control, t float64, jac *mat.Dense) error {
	return oscillator{}.StateJacobian(x, u, t, jac)
}

func (f *failing) ControlJacobian(x dynamo.State, u dynamo.Control, t float64, jac *mat.Dense) error {
	return nil
}

// noJacobian hides the Jacobian methods of the wrapped system.
type noJacobian struct {
	dynamo.System
}
