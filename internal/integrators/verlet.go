package integrators

import (
	"fmt"

	"github.com/san-kum/fixstep/internal/dynamo"
)

// Verlet is velocity Verlet for states laid out as [q..., v...]. The second
// evaluation uses the new positions with the old velocities, so it is exact
// only for velocity-independent forces.
type Verlet struct {
	fixedStep
	half    int
	a0, a1  dynamo.State
	scratch dynamo.State
	out     dynamo.State
}

func NewVerlet(dyn dynamo.System, dT float64) (*Verlet, error) {
	base, err := newFixedStep(dyn, dT)
	if err != nil {
		return nil, err
	}
	if base.n%2 != 0 {
		return nil, fmt.Errorf("%w: verlet needs an even state dimension, got %d", dynamo.ErrDimensionMismatch, base.n)
	}
	return &Verlet{
		fixedStep: base,
		half:      base.n / 2,
		a0:        make(dynamo.State, base.n),
		a1:        make(dynamo.State, base.n),
		scratch:   make(dynamo.State, base.n),
		out:       make(dynamo.State, base.n),
	}, nil
}

func (v *Verlet) Info() Info {
	return Info{Name: "verlet", Explicit: true, Stages: 2, Order: 2}
}

func (v *Verlet) Step(t0, dT float64, x0, x1 dynamo.State) error {
	if err := v.checkIO(dT, x0, x1); err != nil {
		return v.fail(err)
	}
	if err := v.sampleControl(t0, v.u0); err != nil {
		return v.fail(err)
	}
	if err := v.derive(x0, v.u0, t0, v.a0); err != nil {
		return v.fail(evalError("verlet acceleration", t0, err))
	}

	half := v.half
	dt2 := dT * dT
	for i := 0; i < half; i++ {
		v.out[i] = x0[i] + x0[half+i]*dT + 0.5*v.a0[half+i]*dt2
		v.scratch[i] = v.out[i]
		v.scratch[half+i] = x0[half+i]
	}

	t1 := t0 + dT
	if err := v.derive(v.scratch, v.u0, t1, v.a1); err != nil {
		return v.fail(evalError("verlet acceleration", t1, err))
	}
	halfDt := 0.5 * dT
	for i := 0; i < half; i++ {
		v.out[half+i] = x0[half+i] + (v.a0[half+i]+v.a1[half+i])*halfDt
	}

	copy(x1, v.out)
	v.commit(t1)
	return nil
}
