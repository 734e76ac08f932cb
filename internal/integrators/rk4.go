package integrators

import (
	"fmt"

	"github.com/san-kum/fixstep/internal/dynamo"
)

// ExplicitRK integrates with any explicit Butcher tableau. The control is
// sampled once at t0 and held across all stages.
type ExplicitRK struct {
	fixedStep
	name    string
	tableau Tableau

	k       []dynamo.State
	scratch dynamo.State
	out     dynamo.State
}

func NewExplicitRK(dyn dynamo.System, dT float64, name string, tab Tableau) (*ExplicitRK, error) {
	if err := tab.Validate(); err != nil {
		return nil, err
	}
	base, err := newFixedStep(dyn, dT)
	if err != nil {
		return nil, err
	}
	r := &ExplicitRK{
		fixedStep: base,
		name:      name,
		tableau:   tab.clone(),
		k:         make([]dynamo.State, tab.Stages()),
		scratch:   make(dynamo.State, base.n),
		out:       make(dynamo.State, base.n),
	}
	for i := range r.k {
		r.k[i] = make(dynamo.State, base.n)
	}
	return r, nil
}

// NewRK4 returns the classical fourth-order Runge-Kutta scheme.
func NewRK4(dyn dynamo.System, dT float64) (*ExplicitRK, error) {
	return NewExplicitRK(dyn, dT, "rk4", ClassicRK4())
}

func NewHeun(dyn dynamo.System, dT float64) (*ExplicitRK, error) {
	return NewExplicitRK(dyn, dT, "heun", Heun())
}

func (r *ExplicitRK) Info() Info {
	return Info{Name: r.name, Explicit: true, Stages: r.tableau.Stages(), Order: r.tableau.Order}
}

func (r *ExplicitRK) Tableau() Tableau { return r.tableau.clone() }

func (r *ExplicitRK) Step(t0, dT float64, x0, x1 dynamo.State) error {
	if err := r.checkIO(dT, x0, x1); err != nil {
		return r.fail(err)
	}
	if err := r.sampleControl(t0, r.u0); err != nil {
		return r.fail(err)
	}

	n := r.n
	for i, row := range r.tableau.A {
		copy(r.scratch, x0)
		for j, a := range row {
			if a == 0 {
				continue
			}
			ha := dT * a
			for l := 0; l < n; l++ {
				r.scratch[l] += ha * r.k[j][l]
			}
		}
		ti := t0 + r.tableau.C[i]*dT
		if err := r.derive(r.scratch, r.u0, ti, r.k[i]); err != nil {
			r.log.Warn("stage evaluation failed", "integrator", r.name, "stage", i+1, "t", ti, "error", err)
			return r.fail(evalError(fmt.Sprintf("%s stage %d", r.name, i+1), ti, err))
		}
	}

	copy(r.out, x0)
	for i, b := range r.tableau.B {
		if b == 0 {
			continue
		}
		hb := dT * b
		for l := 0; l < n; l++ {
			r.out[l] += hb * r.k[i][l]
		}
	}

	copy(x1, r.out)
	r.commit(t0 + dT)
	return nil
}
