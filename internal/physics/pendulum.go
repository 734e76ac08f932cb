package physics

import (
	"math"

	"github.com/san-kum/fixstep/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// Pendulum is a damped rigid pendulum with state [theta, omega] and a torque
// applied at the pivot.
type Pendulum struct {
	Mass    float64
	Length  float64
	Damping float64
	Gravity float64
}

func NewPendulum() *Pendulum {
	return &Pendulum{
		Mass:    1.0,
		Length:  1.0,
		Damping: 0.1,
		Gravity: 9.81,
	}
}

func (p *Pendulum) StateDim() int {
	return 2
}

func (p *Pendulum) ControlDim() int {
	return 1
}

func (p *Pendulum) DefaultState() dynamo.State { return dynamo.State{0.5, 0} }

func (p *Pendulum) inertia() float64 { return p.Mass * p.Length * p.Length }

func (p *Pendulum) Derive(x dynamo.State, u dynamo.Control, t float64, dx dynamo.State) error {
	theta, omega := x[0], x[1]
	dx[0] = omega
	dx[1] = (-p.Damping*omega - p.Mass*p.Gravity*p.Length*math.Sin(theta) + u[0]) / p.inertia()
	return nil
}

func (p *Pendulum) StateJacobian(x dynamo.State, u dynamo.Control, t float64, jac *mat.Dense) error {
	jac.Set(0, 0, 0)
	jac.Set(0, 1, 1)
	jac.Set(1, 0, -p.Gravity/p.Length*math.Cos(x[0]))
	jac.Set(1, 1, -p.Damping/p.inertia())
	return nil
}

func (p *Pendulum) ControlJacobian(x dynamo.State, u dynamo.Control, t float64, jac *mat.Dense) error {
	jac.Set(0, 0, 0)
	jac.Set(1, 0, 1/p.inertia())
	return nil
}

func (p *Pendulum) Energy(x dynamo.State) float64 {
	// KE = 0.5 * m * (L*omega)^2
	// PE = m * g * L * (1 - cos(theta))
	v := p.Length * x[1]
	ke := 0.5 * p.Mass * v * v
	pe := p.Mass * p.Gravity * p.Length * (1.0 - math.Cos(x[0]))
	return ke + pe
}

func (p *Pendulum) GetParams() map[string]float64 {
	return map[string]float64{
		"mass":    p.Mass,
		"length":  p.Length,
		"damping": p.Damping,
		"gravity": p.Gravity,
	}
}

func (p *Pendulum) SetParam(name string, value float64) error {
	switch name {
	case "mass":
		if err := positive(name, value); err != nil {
			return err
		}
		p.Mass = value
	case "length":
		if err := positive(name, value); err != nil {
			return err
		}
		p.Length = value
	case "damping":
		if err := nonNegative(name, value); err != nil {
			return err
		}
		p.Damping = value
	case "gravity":
		if err := finite(name, value); err != nil {
			return err
		}
		p.Gravity = value
	default:
		return unknownParam(name)
	}
	return nil
}
