package integrators

import (
	"errors"
	"fmt"

	"github.com/san-kum/fixstep/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrCollocationPoints is returned when a collocation call does not get
	// exactly two points and two controls (or two Jacobian blocks).
	ErrCollocationPoints = errors.New("integrators: collocation needs exactly two points")

	// ErrGridStep is returned when a grid spacing differs from the step size
	// of the collocator it is transcribed with.
	ErrGridStep = errors.New("integrators: grid spacing does not match step size")
)

var pointNames = [2]string{"points[0]", "points[1]"}
var controlNames = [2]string{"controls[0]", "controls[1]"}

// NewCollocationJacobians allocates the caller-side blocks for
// CollocationJacobian. controlJacs is nil when m is zero.
func NewCollocationJacobians(n, m int) (stateJacs, controlJacs []*mat.Dense) {
	stateJacs = []*mat.Dense{mat.NewDense(n, n, nil), mat.NewDense(n, n, nil)}
	if m > 0 {
		controlJacs = []*mat.Dense{mat.NewDense(n, m, nil), mat.NewDense(n, m, nil)}
	}
	return stateJacs, controlJacs
}

func (f *fixedStep) checkCollocation(points []dynamo.State, controls []dynamo.Control) error {
	if len(points) != 2 || len(controls) != 2 {
		return fmt.Errorf("%w: got %d points and %d controls", ErrCollocationPoints, len(points), len(controls))
	}
	for i := range points {
		if err := dynamo.CheckState(f.dyn, pointNames[i], points[i]); err != nil {
			return err
		}
		if err := dynamo.CheckControl(f.dyn, controlNames[i], controls[i]); err != nil {
			return err
		}
	}
	return nil
}

func (f *fixedStep) checkJacobianBlocks(stateJacs, controlJacs []*mat.Dense) error {
	if len(stateJacs) != 2 {
		return fmt.Errorf("%w: got %d state jacobian blocks", ErrCollocationPoints, len(stateJacs))
	}
	for i, j := range stateJacs {
		if err := checkBlock(j, f.n, f.n, "state", i); err != nil {
			return err
		}
	}
	if f.m == 0 {
		return nil
	}
	if len(controlJacs) != 2 {
		return fmt.Errorf("%w: got %d control jacobian blocks", ErrCollocationPoints, len(controlJacs))
	}
	for i, j := range controlJacs {
		if err := checkBlock(j, f.n, f.m, "control", i); err != nil {
			return err
		}
	}
	return nil
}

func checkBlock(j *mat.Dense, rows, cols int, kind string, i int) error {
	if j == nil {
		return fmt.Errorf("%w: %s jacobian block %d is nil", dynamo.ErrDimensionMismatch, kind, i)
	}
	if r, c := j.Dims(); r != rows || c != cols {
		return fmt.Errorf("%w: %s jacobian block %d is %dx%d, want %dx%d", dynamo.ErrDimensionMismatch, kind, i, r, c, rows, cols)
	}
	return nil
}

// jacobians evaluates the analytic state and (for m > 0) control Jacobians
// into the given work matrices.
func (f *fixedStep) jacobians(jac dynamo.Jacobian, x dynamo.State, u dynamo.Control, t float64, a, b *mat.Dense) error {
	f.stats.JacobianEvaluations++
	a.Zero()
	if err := jac.StateJacobian(x, u, t, a); err != nil {
		return evalError("state jacobian", t, err)
	}
	if f.m == 0 {
		return nil
	}
	b.Zero()
	if err := jac.ControlJacobian(x, u, t, b); err != nil {
		return evalError("control jacobian", t, err)
	}
	return nil
}

// colloBuffers are the work matrices a collocator fills before copying into
// caller blocks.
type colloBuffers struct {
	identity *mat.Dense
	a, b     *mat.Dense
	stateJ   [2]*mat.Dense
	controlJ [2]*mat.Dense
	f0, f1   dynamo.State
	residual dynamo.State
}

func newColloBuffers(n, m int) colloBuffers {
	c := colloBuffers{
		identity: identity(n),
		a:        mat.NewDense(n, n, nil),
		f0:       make(dynamo.State, n),
		f1:       make(dynamo.State, n),
		residual: make(dynamo.State, n),
	}
	c.stateJ[0] = mat.NewDense(n, n, nil)
	c.stateJ[1] = mat.NewDense(n, n, nil)
	if m > 0 {
		c.b = mat.NewDense(n, m, nil)
		c.controlJ[0] = mat.NewDense(n, m, nil)
		c.controlJ[1] = mat.NewDense(n, m, nil)
	}
	return c
}

// publish copies the work blocks into the caller's matrices.
func (c *colloBuffers) publish(stateJacs, controlJacs []*mat.Dense) {
	for i := 0; i < 2; i++ {
		stateJacs[i].Copy(c.stateJ[i])
		if c.controlJ[i] != nil {
			controlJacs[i].Copy(c.controlJ[i])
		}
	}
}

func identity(n int) *mat.Dense {
	id := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		id.Set(i, i, 1)
	}
	return id
}
