package physics

import (
	"github.com/san-kum/fixstep/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// VanDerPol implements the Van der Pol oscillator.
// State: [x, y] where y = dx/dt
// Equations:
//
//	dx/dt = y
//	dy/dt = μ(1 - x²)y - x
//
// Large μ makes the system stiff.
type VanDerPol struct {
	mu float64 // Nonlinearity parameter
}

func NewVanDerPol() *VanDerPol {
	return &VanDerPol{
		mu: 1.0, // Classic value for limit cycle
	}
}

func (v *VanDerPol) StateDim() int   { return 2 }
func (v *VanDerPol) ControlDim() int { return 0 }

func (v *VanDerPol) Derive(state dynamo.State, _ dynamo.Control, _ float64, dx dynamo.State) error {
	x, y := state[0], state[1]
	dx[0] = y
	dx[1] = v.mu*(1-x*x)*y - x
	return nil
}

func (v *VanDerPol) StateJacobian(state dynamo.State, _ dynamo.Control, _ float64, jac *mat.Dense) error {
	x, y := state[0], state[1]
	jac.Set(0, 0, 0)
	jac.Set(0, 1, 1)
	jac.Set(1, 0, -2*v.mu*x*y-1)
	jac.Set(1, 1, v.mu*(1-x*x))
	return nil
}

func (v *VanDerPol) ControlJacobian(dynamo.State, dynamo.Control, float64, *mat.Dense) error {
	return dynamo.ErrNotSupported
}

func (v *VanDerPol) DefaultState() dynamo.State {
	return dynamo.State{2.0, 0.0}
}

// GetParams implements dynamo.Configurable
func (v *VanDerPol) GetParams() map[string]float64 {
	return map[string]float64{
		"mu": v.mu,
	}
}

// SetParam implements dynamo.Configurable
func (v *VanDerPol) SetParam(name string, value float64) error {
	if name != "mu" {
		return unknownParam(name)
	}
	if err := nonNegative(name, value); err != nil {
		return err
	}
	v.mu = value
	return nil
}
