package integrators

import (
	"fmt"
	"math"

	"github.com/san-kum/fixstep/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// ImplicitTrapezoidal is the second-order implicit trapezoidal rule
//
//	x1 = x0 + dT/2 (f(t0, x0, u0) + f(t0+dT, x1, u1))
//
// solved with Newton's method from an explicit Euler predictor. The Newton
// matrix I - dT/2 A(x1) is rebuilt from the analytic state Jacobian on every
// iteration and factorized with a dense LU.
type ImplicitTrapezoidal struct {
	fixedStep
	jac  dynamo.Jacobian
	opts NewtonOptions

	f0, f1   dynamo.State
	xk       dynamo.State
	g        dynamo.State
	delta    dynamo.State
	gVec     *mat.VecDense
	deltaVec *mat.VecDense
	a        *mat.Dense
	newton   *mat.Dense
	lu       mat.LU

	collo colloBuffers
}

func NewImplicitTrapezoidal(dyn dynamo.DifferentiableSystem, dT float64, opts NewtonOptions) (*ImplicitTrapezoidal, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	base, err := newFixedStep(dyn, dT)
	if err != nil {
		return nil, err
	}
	n := base.n
	r := &ImplicitTrapezoidal{
		fixedStep: base,
		jac:       dyn,
		opts:      opts,
		f0:        make(dynamo.State, n),
		f1:        make(dynamo.State, n),
		xk:        make(dynamo.State, n),
		g:         make(dynamo.State, n),
		delta:     make(dynamo.State, n),
		a:         mat.NewDense(n, n, nil),
		newton:    mat.NewDense(n, n, nil),
		collo:     newColloBuffers(n, base.m),
	}
	r.gVec = mat.NewVecDense(n, r.g)
	r.deltaVec = mat.NewVecDense(n, r.delta)
	return r, nil
}

func (r *ImplicitTrapezoidal) Info() Info {
	return Info{Name: "trapezoidal", Explicit: false, Stages: 2, Order: 2}
}

func (r *ImplicitTrapezoidal) NewtonOptions() NewtonOptions { return r.opts }

func (r *ImplicitTrapezoidal) SetNewtonOptions(opts NewtonOptions) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	r.opts = opts
	return nil
}

func (r *ImplicitTrapezoidal) Step(t0, dT float64, x0, x1 dynamo.State) error {
	if err := r.checkIO(dT, x0, x1); err != nil {
		return r.fail(err)
	}
	t1 := t0 + dT
	if err := r.sampleControl(t0, r.u0); err != nil {
		return r.fail(err)
	}
	if err := r.sampleControl(t1, r.u1); err != nil {
		return r.fail(err)
	}
	if err := r.derive(x0, r.u0, t0, r.f0); err != nil {
		r.log.Warn("evaluation failed", "integrator", "trapezoidal", "t", t0, "error", err)
		return r.fail(evalError("trapezoidal derivative", t0, err))
	}

	h2 := dT / 2
	for i := range r.xk {
		r.xk[i] = x0[i] + dT*r.f0[i]
	}

	for iter := 0; ; iter++ {
		if err := r.derive(r.xk, r.u1, t1, r.f1); err != nil {
			r.stats.NewtonIterations += iter
			r.log.Warn("evaluation failed", "integrator", "trapezoidal", "t", t1, "iteration", iter, "error", err)
			return r.fail(evalError("trapezoidal derivative", t1, err))
		}
		for i := range r.g {
			r.g[i] = r.xk[i] - x0[i] - h2*(r.f0[i]+r.f1[i])
		}
		res := r.g.NormInf()
		if res <= r.opts.Tolerance {
			r.stats.NewtonIterations += iter
			r.log.Debug("newton converged", "t", t1, "iterations", iter, "residual", res)
			copy(x1, r.xk)
			r.commit(t1)
			return nil
		}
		if iter == r.opts.MaxIterations || math.IsNaN(res) || math.IsInf(res, 0) {
			r.stats.NewtonIterations += iter
			err := &ConvergenceError{Time: t1, Iterations: iter, Residual: res}
			r.log.Warn("newton failed", "t", t1, "iterations", iter, "residual", res)
			return r.fail(err)
		}
		if err := r.update(t1, h2); err != nil {
			r.stats.NewtonIterations += iter + 1
			r.log.Warn("newton update failed", "t", t1, "iteration", iter+1, "error", err)
			return r.fail(err)
		}
	}
}

// update applies one Newton correction xk -= (I - h2 A)^-1 g.
func (r *ImplicitTrapezoidal) update(t1, h2 float64) error {
	r.stats.JacobianEvaluations++
	r.a.Zero()
	if err := r.jac.StateJacobian(r.xk, r.u1, t1, r.a); err != nil {
		return evalError("state jacobian", t1, err)
	}
	r.newton.Scale(-h2, r.a)
	r.newton.Add(r.collo.identity, r.newton)

	r.lu.Factorize(r.newton)
	// the determinant underflows for large n, so only the condition number counts
	if cond := r.lu.Cond(); math.IsInf(cond, 1) || math.IsNaN(cond) {
		return fmt.Errorf("%w at t=%g", dynamo.ErrSingularJacobian, t1)
	}
	if err := r.lu.SolveVecTo(r.deltaVec, false, r.gVec); err != nil {
		return fmt.Errorf("%w at t=%g: %v", dynamo.ErrSingularJacobian, t1, err)
	}
	for i := range r.xk {
		r.xk[i] -= r.delta[i]
	}
	return nil
}

func (r *ImplicitTrapezoidal) CollocationConstraint(points []dynamo.State, controls []dynamo.Control, t float64, residual dynamo.State) error {
	if err := r.checkCollocation(points, controls); err != nil {
		return err
	}
	if err := dynamo.CheckState(r.dyn, "residual", residual); err != nil {
		return err
	}
	c := &r.collo
	if err := r.derive(points[0], controls[0], t, c.f0); err != nil {
		return evalError("trapezoidal collocation", t, err)
	}
	t1 := t + r.dT
	if err := r.derive(points[1], controls[1], t1, c.f1); err != nil {
		return evalError("trapezoidal collocation", t1, err)
	}
	h2 := r.dT / 2
	for i := range c.residual {
		c.residual[i] = points[1][i] - points[0][i] - h2*(c.f0[i]+c.f1[i])
	}
	copy(residual, c.residual)
	return nil
}

func (r *ImplicitTrapezoidal) CollocationJacobian(points []dynamo.State, controls []dynamo.Control, t float64, stateJacs, controlJacs []*mat.Dense) error {
	if err := r.checkCollocation(points, controls); err != nil {
		return err
	}
	if err := r.checkJacobianBlocks(stateJacs, controlJacs); err != nil {
		return err
	}
	c := &r.collo
	h2 := r.dT / 2

	// d/dx_k = -I - h2 A_k, d/du_k = -h2 B_k
	if err := r.jacobians(r.jac, points[0], controls[0], t, c.a, c.b); err != nil {
		return err
	}
	c.stateJ[0].Scale(-h2, c.a)
	c.stateJ[0].Sub(c.stateJ[0], c.identity)
	if r.m > 0 {
		c.controlJ[0].Scale(-h2, c.b)
	}

	// d/dx_{k+1} = I - h2 A_{k+1}, d/du_{k+1} = -h2 B_{k+1}
	if err := r.jacobians(r.jac, points[1], controls[1], t+r.dT, c.a, c.b); err != nil {
		return err
	}
	c.stateJ[1].Scale(-h2, c.a)
	c.stateJ[1].Add(c.identity, c.stateJ[1])
	if r.m > 0 {
		c.controlJ[1].Scale(-h2, c.b)
	}

	c.publish(stateJacs, controlJacs)
	return nil
}
