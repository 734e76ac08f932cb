package integrators

import (
	"github.com/san-kum/fixstep/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// ForwardEuler is the first-order explicit scheme x1 = x0 + dT f(t0, x0, u0).
// It doubles as a collocator when the system provides analytic Jacobians.
type ForwardEuler struct {
	fixedStep
	dx    dynamo.State
	out   dynamo.State
	collo colloBuffers
}

func NewForwardEuler(dyn dynamo.System, dT float64) (*ForwardEuler, error) {
	base, err := newFixedStep(dyn, dT)
	if err != nil {
		return nil, err
	}
	return &ForwardEuler{
		fixedStep: base,
		dx:        make(dynamo.State, base.n),
		out:       make(dynamo.State, base.n),
		collo:     newColloBuffers(base.n, base.m),
	}, nil
}

func (e *ForwardEuler) Info() Info {
	return Info{Name: "euler", Explicit: true, Stages: 1, Order: 1}
}

func (e *ForwardEuler) Step(t0, dT float64, x0, x1 dynamo.State) error {
	if err := e.checkIO(dT, x0, x1); err != nil {
		return e.fail(err)
	}
	if err := e.sampleControl(t0, e.u0); err != nil {
		return e.fail(err)
	}
	if err := e.derive(x0, e.u0, t0, e.dx); err != nil {
		e.log.Warn("evaluation failed", "integrator", "euler", "t", t0, "error", err)
		return e.fail(evalError("euler derivative", t0, err))
	}
	for i := range e.out {
		e.out[i] = x0[i] + dT*e.dx[i]
	}
	copy(x1, e.out)
	e.commit(t0 + dT)
	return nil
}

func (e *ForwardEuler) CollocationConstraint(points []dynamo.State, controls []dynamo.Control, t float64, residual dynamo.State) error {
	if err := e.checkCollocation(points, controls); err != nil {
		return err
	}
	if err := dynamo.CheckState(e.dyn, "residual", residual); err != nil {
		return err
	}
	if err := e.derive(points[0], controls[0], t, e.collo.f0); err != nil {
		return evalError("euler collocation", t, err)
	}
	dT := e.dT
	for i := range e.collo.residual {
		e.collo.residual[i] = points[1][i] - points[0][i] - dT*e.collo.f0[i]
	}
	copy(residual, e.collo.residual)
	return nil
}

func (e *ForwardEuler) CollocationJacobian(points []dynamo.State, controls []dynamo.Control, t float64, stateJacs, controlJacs []*mat.Dense) error {
	jac, ok := e.dyn.(dynamo.Jacobian)
	if !ok {
		return dynamo.ErrNoJacobian
	}
	if err := e.checkCollocation(points, controls); err != nil {
		return err
	}
	if err := e.checkJacobianBlocks(stateJacs, controlJacs); err != nil {
		return err
	}
	c := &e.collo
	if err := e.jacobians(jac, points[0], controls[0], t, c.a, c.b); err != nil {
		return err
	}

	// d/dx_k = -I - dT A_k, d/dx_{k+1} = I
	c.stateJ[0].Scale(-e.dT, c.a)
	c.stateJ[0].Sub(c.stateJ[0], c.identity)
	c.stateJ[1].Copy(c.identity)
	if e.m > 0 {
		c.controlJ[0].Scale(-e.dT, c.b)
		c.controlJ[1].Zero()
	}
	c.publish(stateJacs, controlJacs)
	return nil
}
