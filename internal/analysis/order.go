package analysis

import (
	"fmt"
	"math"

	"github.com/san-kum/fixstep/internal/dynamo"
	"github.com/san-kum/fixstep/internal/integrators"
	"github.com/san-kum/fixstep/internal/physics"
	"gonum.org/v1/gonum/mat"
)

// Factory builds an integrator for a given step size.
type Factory func(dT float64) (integrators.Integrator, error)

// Exact returns the reference solution at t.
type Exact func(t float64) dynamo.State

// Integrate steps from x0 at t0 to tf with a fixed dT that must divide the
// interval evenly.
func Integrate(integ integrators.Integrator, x0 dynamo.State, t0, tf, dT float64) (dynamo.State, error) {
	steps, err := stepCount(t0, tf, dT)
	if err != nil {
		return nil, err
	}
	x := x0.Clone()
	for k := 0; k < steps; k++ {
		if err := integ.Step(t0+float64(k)*dT, dT, x, x); err != nil {
			return nil, fmt.Errorf("step %d: %w", k, err)
		}
	}
	return x, nil
}

func stepCount(t0, tf, dT float64) (int, error) {
	span := tf - t0
	if !(span > 0) || !(dT > 0) {
		return 0, fmt.Errorf("analysis: need tf > t0 and dT > 0, got [%g, %g] with %g", t0, tf, dT)
	}
	steps := math.Round(span / dT)
	if steps < 1 || math.Abs(steps*dT-span) > 1e-9*math.Max(1, span) {
		return 0, fmt.Errorf("analysis: step %g does not divide [%g, %g]", dT, t0, tf)
	}
	return int(steps), nil
}

// GlobalError integrates with dT and returns the infinity-norm error against
// exact at tf.
func GlobalError(factory Factory, x0 dynamo.State, t0, tf, dT float64, exact Exact) (float64, error) {
	integ, err := factory(dT)
	if err != nil {
		return 0, err
	}
	x, err := Integrate(integ, x0, t0, tf, dT)
	if err != nil {
		return 0, err
	}
	ref := exact(tf)
	if len(ref) != len(x) {
		return 0, fmt.Errorf("%w: reference has %d entries, state %d", dynamo.ErrDimensionMismatch, len(ref), len(x))
	}
	return x.Sub(ref).NormInf(), nil
}

// ObservedOrder returns log2(e(dT)/e(dT/2)).
func ObservedOrder(factory Factory, x0 dynamo.State, t0, tf, dT float64, exact Exact) (float64, error) {
	coarse, err := GlobalError(factory, x0, t0, tf, dT, exact)
	if err != nil {
		return 0, err
	}
	fine, err := GlobalError(factory, x0, t0, tf, dT/2, exact)
	if err != nil {
		return 0, err
	}
	if fine == 0 || coarse == 0 {
		return math.Inf(1), nil
	}
	return math.Log2(coarse / fine), nil
}

type ConvergenceRow struct {
	Dt    float64 `json:"dt"`
	Error float64 `json:"error"`
	Order float64 `json:"order"` // NaN on the first row
}

// ConvergenceTable halves dT levels-1 times and reports the error and the
// observed order between consecutive rows.
func ConvergenceTable(factory Factory, x0 dynamo.State, t0, tf, dT float64, levels int, exact Exact) ([]ConvergenceRow, error) {
	rows := make([]ConvergenceRow, 0, levels)
	h := dT
	for i := 0; i < levels; i++ {
		e, err := GlobalError(factory, x0, t0, tf, h, exact)
		if err != nil {
			return rows, err
		}
		row := ConvergenceRow{Dt: h, Error: e, Order: math.NaN()}
		if i > 0 && e > 0 {
			row.Order = math.Log2(rows[i-1].Error / e)
		}
		rows = append(rows, row)
		h /= 2
	}
	return rows, nil
}

// LinearSolution returns t -> e^{A(t-t0)} x0 for an unforced linear system.
func LinearSolution(sys *physics.Linear, x0 dynamo.State, t0 float64) Exact {
	a := sys.A()
	n, _ := a.Dims()
	x0v := mat.NewVecDense(n, x0.Clone())
	return func(t float64) dynamo.State {
		var at, expAt mat.Dense
		at.Scale(t-t0, a)
		expAt.Exp(&at)
		out := make(dynamo.State, n)
		mat.NewVecDense(n, out).MulVec(&expAt, x0v)
		return out
	}
}

// Reference integrates once from t0 to tf with the fine step dT and returns
// an Exact that is only defined at tf, for systems without a closed form.
// Other times yield nil.
func Reference(factory Factory, x0 dynamo.State, t0, tf, dT float64) (Exact, error) {
	integ, err := factory(dT)
	if err != nil {
		return nil, err
	}
	ref, err := Integrate(integ, x0, t0, tf, dT)
	if err != nil {
		return nil, fmt.Errorf("reference solution: %w", err)
	}
	return func(t float64) dynamo.State {
		if math.Abs(t-tf) > 1e-9*math.Max(1, math.Abs(tf)) {
			return nil
		}
		return ref.Clone()
	}, nil
}
