package physics

import (
	"github.com/san-kum/fixstep/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

type Lorenz struct{ sigma, rho, beta float64 }

func NewLorenz() *Lorenz          { return &Lorenz{10.0, 28.0, 8.0 / 3.0} }
func (l *Lorenz) StateDim() int   { return 3 }
func (l *Lorenz) ControlDim() int { return 0 }

// Derive calculates the Lorenz attractor derivatives.
func (l *Lorenz) Derive(s dynamo.State, _ dynamo.Control, _ float64, dx dynamo.State) error {
	dx[0] = l.sigma * (s[1] - s[0])
	dx[1] = s[0]*(l.rho-s[2]) - s[1]
	dx[2] = s[0]*s[1] - l.beta*s[2]
	return nil
}

func (l *Lorenz) StateJacobian(s dynamo.State, _ dynamo.Control, _ float64, jac *mat.Dense) error {
	jac.SetRow(0, []float64{-l.sigma, l.sigma, 0})
	jac.SetRow(1, []float64{l.rho - s[2], -1, -s[0]})
	jac.SetRow(2, []float64{s[1], s[0], -l.beta})
	return nil
}

func (l *Lorenz) ControlJacobian(dynamo.State, dynamo.Control, float64, *mat.Dense) error {
	return dynamo.ErrNotSupported
}

func (l *Lorenz) DefaultState() dynamo.State { return dynamo.State{1.0, 1.0, 1.0} }
func (l *Lorenz) GetParams() map[string]float64 {
	return map[string]float64{"sigma": l.sigma, "rho": l.rho, "beta": l.beta}
}
func (l *Lorenz) SetParam(n string, v float64) error {
	if err := finite(n, v); err != nil {
		return err
	}
	switch n {
	case "sigma":
		l.sigma = v
	case "rho":
		l.rho = v
	case "beta":
		l.beta = v
	default:
		return unknownParam(n)
	}
	return nil
}
