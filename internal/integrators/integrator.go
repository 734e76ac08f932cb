package integrators

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/san-kum/fixstep/internal/control"
	"github.com/san-kum/fixstep/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// Info describes a scheme.
type Info struct {
	Name     string
	Explicit bool
	Stages   int
	Order    int
}

// Stats counts work done by an integrator since construction or the last
// ResetStats. Counters never influence results.
type Stats struct {
	Steps               int
	Evaluations         int
	JacobianEvaluations int
	NewtonIterations    int
	Failures            int
	LastTime            float64
}

// Integrator advances a bound system by one fixed step.
//
// Step writes the state reached from x0 at t0 after dT into x1, which may
// alias x0. On error x1 is left untouched and the integrator stays usable.
// Instances hold private scratch buffers: use one per goroutine.
type Integrator interface {
	Info() Info
	System() dynamo.System
	StepSize() float64
	SetStepSize(dT float64) error
	ControlInput() dynamo.ControlInput
	SetControlInput(in dynamo.ControlInput) error
	SetLogger(l *slog.Logger)
	Stats() Stats
	ResetStats()
	Step(t0, dT float64, x0, x1 dynamo.State) error
}

// Collocator is an integrator that also exposes its scheme as an algebraic
// constraint between two consecutive grid nodes, for direct transcription.
// Both methods use StepSize() as the interval length and require exactly two
// points and two controls.
type Collocator interface {
	Integrator
	CollocationConstraint(points []dynamo.State, controls []dynamo.Control, t float64, residual dynamo.State) error
	CollocationJacobian(points []dynamo.State, controls []dynamo.Control, t float64, stateJacs, controlJacs []*mat.Dense) error
}

// fixedStep is the bookkeeping shared by every scheme.
type fixedStep struct {
	dyn      dynamo.System
	controls dynamo.ControlInput
	dT       float64
	n, m     int
	u0, u1   dynamo.Control
	stats    Stats
	log      *slog.Logger
}

func newFixedStep(dyn dynamo.System, dT float64) (fixedStep, error) {
	if dyn == nil {
		return fixedStep{}, fmt.Errorf("integrators: nil system")
	}
	n, m := dyn.StateDim(), dyn.ControlDim()
	if n < 1 || m < 0 {
		return fixedStep{}, fmt.Errorf("%w: system declares state dimension %d and control dimension %d", dynamo.ErrDimensionMismatch, n, m)
	}
	if err := checkStep(dT); err != nil {
		return fixedStep{}, err
	}
	return fixedStep{
		dyn:      dyn,
		controls: control.NewZero(m),
		dT:       dT,
		n:        n,
		m:        m,
		u0:       make(dynamo.Control, m),
		u1:       make(dynamo.Control, m),
		log:      slog.New(slog.DiscardHandler),
	}, nil
}

func (f *fixedStep) System() dynamo.System { return f.dyn }

func (f *fixedStep) StepSize() float64 { return f.dT }

func (f *fixedStep) SetStepSize(dT float64) error {
	if err := checkStep(dT); err != nil {
		return err
	}
	f.dT = dT
	return nil
}

func (f *fixedStep) ControlInput() dynamo.ControlInput { return f.controls }

func (f *fixedStep) SetControlInput(in dynamo.ControlInput) error {
	if in == nil {
		return fmt.Errorf("integrators: nil control input")
	}
	f.controls = in
	return nil
}

func (f *fixedStep) SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(slog.DiscardHandler)
	}
	f.log = l
}

func (f *fixedStep) Stats() Stats { return f.stats }

func (f *fixedStep) ResetStats() { f.stats = Stats{} }

func checkStep(dT float64) error {
	if !(dT > 0) || math.IsInf(dT, 1) {
		return fmt.Errorf("%w: got %g", dynamo.ErrInvalidStep, dT)
	}
	return nil
}

func (f *fixedStep) checkIO(dT float64, x0, x1 dynamo.State) error {
	if err := checkStep(dT); err != nil {
		return err
	}
	if err := dynamo.CheckState(f.dyn, "x0", x0); err != nil {
		return err
	}
	return dynamo.CheckState(f.dyn, "x1", x1)
}

func (f *fixedStep) sampleControl(t float64, u dynamo.Control) error {
	if err := f.controls.Control(t, u); err != nil {
		return fmt.Errorf("integrators: control input at t=%g: %w", t, err)
	}
	return nil
}

func (f *fixedStep) derive(x dynamo.State, u dynamo.Control, t float64, dx dynamo.State) error {
	f.stats.Evaluations++
	return f.dyn.Derive(x, u, t, dx)
}

func evalError(op string, t float64, err error) error {
	return &dynamo.EvalError{Op: op, Time: t, Err: err}
}

func (f *fixedStep) commit(t float64) {
	f.stats.Steps++
	f.stats.LastTime = t
}

func (f *fixedStep) fail(err error) error {
	f.stats.Failures++
	return err
}
