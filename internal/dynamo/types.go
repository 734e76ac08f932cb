package dynamo

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s State) Norm() float64 {
	sum := 0.0
	for _, v := range s {
		sum += v * v
	}
	return math.Sqrt(sum)
}

// NormInf returns the largest absolute entry of s.
func (s State) NormInf() float64 {
	m := 0.0
	for _, v := range s {
		if a := math.Abs(v); a > m || math.IsNaN(a) {
			m = a
		}
	}
	return m
}

func (s State) Add(other State) State {
	mustMatch(len(s), len(other))
	result := make(State, len(s))
	for i := range s {
		result[i] = s[i] + other[i]
	}
	return result
}

func (s State) Sub(other State) State {
	mustMatch(len(s), len(other))
	result := make(State, len(s))
	for i := range s {
		result[i] = s[i] - other[i]
	}
	return result
}

func (s State) Scale(factor float64) State {
	result := make(State, len(s))
	for i := range s {
		result[i] = s[i] * factor
	}
	return result
}

func mustMatch(a, b int) {
	if a != b {
		panic(ErrDimensionMismatch)
	}
}

type Control []float64

func (u Control) Clone() Control {
	if u == nil {
		return nil
	}
	c := make(Control, len(u))
	copy(c, u)
	return c
}

// System evaluates the state derivative f(x, u, t) into dx.
// Implementations must not retain x, u or dx.
type System interface {
	Derive(x State, u Control, t float64, dx State) error
	StateDim() int
	ControlDim() int
}

// Jacobian is implemented by systems that provide analytic partial
// derivatives of f. jac is caller-owned and pre-sized: n×n for the state
// Jacobian and n×m for the control Jacobian. ControlJacobian is never
// called for systems with ControlDim() == 0.
type Jacobian interface {
	StateJacobian(x State, u Control, t float64, jac *mat.Dense) error
	ControlJacobian(x State, u Control, t float64, jac *mat.Dense) error
}

type DifferentiableSystem interface {
	System
	Jacobian
}

// ControlInput supplies the control applied at time t, written into u.
type ControlInput interface {
	Control(t float64, u Control) error
}

type Hamiltonian interface {
	Energy(x State) float64
}

type Configurable interface {
	GetParams() map[string]float64
	SetParam(name string, value float64) error
}
