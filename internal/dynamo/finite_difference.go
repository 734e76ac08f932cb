package dynamo

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// DefaultDifferenceStep is the relative perturbation used by FiniteDifference.
const DefaultDifferenceStep = 1e-6

// FiniteDifference equips a System with central-difference Jacobians so it
// can be used where a DifferentiableSystem is required.
type FiniteDifference struct {
	System
	Step float64

	xp, xm State
	up, um Control
	fp, fm State
}

func NewFiniteDifference(sys System, step float64) *FiniteDifference {
	if step <= 0 {
		step = DefaultDifferenceStep
	}
	n, m := sys.StateDim(), sys.ControlDim()
	return &FiniteDifference{
		System: sys,
		Step:   step,
		xp:     make(State, n),
		xm:     make(State, n),
		up:     make(Control, m),
		um:     make(Control, m),
		fp:     make(State, n),
		fm:     make(State, n),
	}
}

func (f *FiniteDifference) StateJacobian(x State, u Control, t float64, jac *mat.Dense) error {
	n := f.StateDim()
	if r, c := jac.Dims(); r != n || c != n {
		return fmt.Errorf("%w: state jacobian is %dx%d, want %dx%d", ErrDimensionMismatch, r, c, n, n)
	}
	for j := 0; j < n; j++ {
		h := f.Step * math.Max(1, math.Abs(x[j]))
		copy(f.xp, x)
		copy(f.xm, x)
		f.xp[j] += h
		f.xm[j] -= h
		if err := f.Derive(f.xp, u, t, f.fp); err != nil {
			return err
		}
		if err := f.Derive(f.xm, u, t, f.fm); err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			jac.Set(i, j, (f.fp[i]-f.fm[i])/(2*h))
		}
	}
	return nil
}

func (f *FiniteDifference) ControlJacobian(x State, u Control, t float64, jac *mat.Dense) error {
	n, m := f.StateDim(), f.ControlDim()
	if r, c := jac.Dims(); r != n || c != m {
		return fmt.Errorf("%w: control jacobian is %dx%d, want %dx%d", ErrDimensionMismatch, r, c, n, m)
	}
	for j := 0; j < m; j++ {
		h := f.Step * math.Max(1, math.Abs(u[j]))
		copy(f.up, u)
		copy(f.um, u)
		f.up[j] += h
		f.um[j] -= h
		if err := f.Derive(x, f.up, t, f.fp); err != nil {
			return err
		}
		if err := f.Derive(x, f.um, t, f.fm); err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			jac.Set(i, j, (f.fp[i]-f.fm[i])/(2*h))
		}
	}
	return nil
}
