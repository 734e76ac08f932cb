package integrators

import (
	"errors"
	"math"
	"testing"

	. "github.com/onsi/gomega"
	"github.com/san-kum/fixstep/internal/control"
	"github.com/san-kum/fixstep/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

func newTrapezoidal(t *testing.T, sys dynamo.DifferentiableSystem, dT float64) *ImplicitTrapezoidal {
	t.Helper()
	tr, err := NewImplicitTrapezoidal(sys, dT, DefaultNewtonOptions())
	if err != nil {
		t.Fatalf("NewImplicitTrapezoidal: %v", err)
	}
	return tr
}

func TestTrapezoidal_Decay(t *testing.T) {
	g := NewWithT(t)
	tr := newTrapezoidal(t, &decay{rate: 1, n: 1}, 0.1)

	x1 := make(dynamo.State, 1)
	g.Expect(tr.Step(0, 0.1, dynamo.State{1}, x1)).To(Succeed())
	g.Expect(x1[0]).To(BeNumerically("~", 0.904762, 1e-5))
	g.Expect(x1[0]).To(BeNumerically("~", 0.95/1.05, 1e-12))

	// linear dynamics: the first Newton update is exact
	g.Expect(tr.Stats().NewtonIterations).To(Equal(1))
	g.Expect(tr.Info().Explicit).To(BeFalse())
}

func TestTrapezoidal_Oscillator(t *testing.T) {
	tr := newTrapezoidal(t, oscillator{}, 0.01)

	x := dynamo.State{1, 0}
	for i := 0; i < 100; i++ {
		if err := tr.Step(float64(i)*0.01, 0.01, x, x); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
	if math.Abs(x[0]-math.Cos(1)) > 1e-4 || math.Abs(x[1]+math.Sin(1)) > 1e-4 {
		t.Errorf("got %v, want [cos(1), -sin(1)]", x)
	}
	// the trapezoidal rule preserves the quadratic invariant of a linear oscillator
	if e := x[0]*x[0] + x[1]*x[1]; math.Abs(e-1) > 1e-9 {
		t.Errorf("energy drifted to %.12f", e)
	}
}

func TestTrapezoidal_Deterministic(t *testing.T) {
	g := NewWithT(t)
	tr := newTrapezoidal(t, newPendulum(), 0.05)
	g.Expect(tr.SetControlInput(control.NewConstant(dynamo.Control{0.5}))).To(Succeed())

	x0 := dynamo.State{1.2, 0.3}
	a := make(dynamo.State, 2)
	b := make(dynamo.State, 2)
	g.Expect(tr.Step(0.2, 0.05, x0, a)).To(Succeed())
	g.Expect(tr.Step(0.2, 0.05, x0, b)).To(Succeed())
	g.Expect(a).To(Equal(b))
}

func TestTrapezoidal_ResidualVanishesOnStep(t *testing.T) {
	g := NewWithT(t)
	const dT = 0.05
	tr := newTrapezoidal(t, newPendulum(), dT)
	torque, err := control.NewInterpolated([]float64{0, 1}, []dynamo.Control{{-1}, {2}})
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(tr.SetControlInput(torque)).To(Succeed())

	t0 := 0.3
	x0 := dynamo.State{0.8, -0.4}
	x1 := make(dynamo.State, 2)
	g.Expect(tr.Step(t0, dT, x0, x1)).To(Succeed())

	u0 := make(dynamo.Control, 1)
	u1 := make(dynamo.Control, 1)
	g.Expect(torque.Control(t0, u0)).To(Succeed())
	g.Expect(torque.Control(t0+dT, u1)).To(Succeed())

	res := make(dynamo.State, 2)
	g.Expect(tr.CollocationConstraint([]dynamo.State{x0, x1}, []dynamo.Control{u0, u1}, t0, res)).To(Succeed())
	g.Expect(res.NormInf()).To(BeNumerically("<=", 1e-9))
}

// numericBlock differentiates the collocation residual with respect to one
// of the four arguments by central differences.
func numericBlock(t *testing.T, c Collocator, points []dynamo.State, controls []dynamo.Control, tm float64, which int) *mat.Dense {
	t.Helper()
	const h = 1e-6
	n := len(points[0])
	var target []float64
	switch which {
	case 0, 1:
		target = points[which]
	default:
		target = controls[which-2]
	}
	block := mat.NewDense(n, len(target), nil)
	plus := make(dynamo.State, n)
	minus := make(dynamo.State, n)
	for j := range target {
		orig := target[j]
		target[j] = orig + h
		if err := c.CollocationConstraint(points, controls, tm, plus); err != nil {
			t.Fatal(err)
		}
		target[j] = orig - h
		if err := c.CollocationConstraint(points, controls, tm, minus); err != nil {
			t.Fatal(err)
		}
		target[j] = orig
		for i := 0; i < n; i++ {
			block.Set(i, j, (plus[i]-minus[i])/(2*h))
		}
	}
	return block
}

func TestTrapezoidal_JacobianMatchesFiniteDifferences(t *testing.T) {
	tr := newTrapezoidal(t, newPendulum(), 0.1)
	points := []dynamo.State{{0.7, 0.2}, {0.72, 0.1}}
	controls := []dynamo.Control{{0.4}, {-0.3}}
	const tm = 1.1

	stateJacs, controlJacs := NewCollocationJacobians(2, 1)
	if err := tr.CollocationJacobian(points, controls, tm, stateJacs, controlJacs); err != nil {
		t.Fatal(err)
	}

	analytic := []*mat.Dense{stateJacs[0], stateJacs[1], controlJacs[0], controlJacs[1]}
	names := []string{"dx_k", "dx_k+1", "du_k", "du_k+1"}
	for i, want := range analytic {
		got := numericBlock(t, tr, points, controls, tm, i)
		if !mat.EqualApprox(got, want, 1e-6) {
			t.Errorf("%s: analytic\n%v\nfinite difference\n%v", names[i], mat.Formatted(want), mat.Formatted(got))
		}
	}

	// -I - dT/2 A_k and I - dT/2 A_{k+1} on the diagonal of the velocity row
	if got := stateJacs[0].At(1, 1); math.Abs(got-(-1+0.05*0.1)) > 1e-12 {
		t.Errorf("dr/dx_k[1][1] = %g", got)
	}
	if got := stateJacs[1].At(1, 1); math.Abs(got-(1+0.05*0.1)) > 1e-12 {
		t.Errorf("dr/dx_k+1[1][1] = %g", got)
	}
}

func TestTrapezoidal_CollocationWithoutInputs(t *testing.T) {
	g := NewWithT(t)
	tr := newTrapezoidal(t, oscillator{}, 0.1)
	points := []dynamo.State{{1, 0}, {0.99, -0.1}}
	controls := []dynamo.Control{nil, nil}

	stateJacs, controlJacs := NewCollocationJacobians(2, 0)
	g.Expect(controlJacs).To(BeNil())
	g.Expect(tr.CollocationJacobian(points, controls, 0, stateJacs, nil)).To(Succeed())
	g.Expect(stateJacs[1].At(0, 0)).To(Equal(1.0))
	g.Expect(stateJacs[1].At(0, 1)).To(BeNumerically("~", -0.05, 1e-15))
	g.Expect(stateJacs[0].At(0, 0)).To(Equal(-1.0))

	// control slots are ignored without inputs
	_, stray := NewCollocationJacobians(2, 1)
	stray[0].Set(1, 0, 7)
	g.Expect(tr.CollocationJacobian(points, controls, 0, stateJacs, stray)).To(Succeed())
	g.Expect(tr.CollocationJacobian(points, controls, 0, stateJacs, stray[:1])).To(Succeed())
	g.Expect(stray[0].At(1, 0)).To(Equal(7.0))
	g.Expect(stray[1].At(0, 0)).To(Equal(0.0))
}

func TestTrapezoidal_CollocationContractViolations(t *testing.T) {
	tr := newTrapezoidal(t, newPendulum(), 0.1)
	good := []dynamo.State{{0, 0}, {0, 0}}
	goodU := []dynamo.Control{{0}, {0}}

	tests := []struct {
		name     string
		points   []dynamo.State
		controls []dynamo.Control
		want     error
	}{
		{"three points", []dynamo.State{{0, 0}, {0, 0}, {0, 0}}, []dynamo.Control{{0}, {0}, {0}}, ErrCollocationPoints},
		{"one point", []dynamo.State{{0, 0}}, []dynamo.Control{{0}}, ErrCollocationPoints},
		{"missing control", good, []dynamo.Control{{0}}, ErrCollocationPoints},
		{"wide state", []dynamo.State{{0, 0, 0}, {0, 0}}, goodU, dynamo.ErrDimensionMismatch},
		{"wide control", good, []dynamo.Control{{0}, {0, 1}}, dynamo.ErrDimensionMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := dynamo.State{5, 5}
			if err := tr.CollocationConstraint(tt.points, tt.controls, 0, res); !errors.Is(err, tt.want) {
				t.Errorf("CollocationConstraint: expected %v, got %v", tt.want, err)
			}
			if res[0] != 5 || res[1] != 5 {
				t.Errorf("residual was written on failure: %v", res)
			}
			sj, cj := NewCollocationJacobians(2, 1)
			if err := tr.CollocationJacobian(tt.points, tt.controls, 0, sj, cj); !errors.Is(err, tt.want) {
				t.Errorf("CollocationJacobian: expected %v, got %v", tt.want, err)
			}
		})
	}

	t.Run("bad blocks", func(t *testing.T) {
		sj, cj := NewCollocationJacobians(3, 1)
		if err := tr.CollocationJacobian(good, goodU, 0, sj, cj); !errors.Is(err, dynamo.ErrDimensionMismatch) {
			t.Errorf("expected ErrDimensionMismatch, got %v", err)
		}
		sj, _ = NewCollocationJacobians(2, 1)
		if err := tr.CollocationJacobian(good, goodU, 0, sj, nil); !errors.Is(err, ErrCollocationPoints) {
			t.Errorf("expected ErrCollocationPoints, got %v", err)
		}
	})
}

func TestTrapezoidal_NotConverged(t *testing.T) {
	g := NewWithT(t)
	tr, err := NewImplicitTrapezoidal(cubic{}, 0.5, NewtonOptions{Tolerance: 1e-15, MaxIterations: 1})
	g.Expect(err).NotTo(HaveOccurred())

	out := dynamo.State{9}
	err = tr.Step(0, 0.5, dynamo.State{1}, out)
	g.Expect(err).To(MatchError(dynamo.ErrNotConverged))

	var ce *ConvergenceError
	g.Expect(errors.As(err, &ce)).To(BeTrue())
	g.Expect(ce.Iterations).To(Equal(1))
	g.Expect(ce.Residual).To(BeNumerically(">", 1e-15))
	g.Expect(ce.Time).To(Equal(0.5))
	g.Expect(out).To(Equal(dynamo.State{9}))

	g.Expect(tr.SetNewtonOptions(DefaultNewtonOptions())).To(Succeed())
	g.Expect(tr.Step(0, 0.5, dynamo.State{1}, out)).To(Succeed())
	g.Expect(tr.Stats().Failures).To(Equal(1))
}

func TestTrapezoidal_SingularNewtonMatrix(t *testing.T) {
	// I - dT/2 * 4 vanishes for dT = 0.5
	tr := newTrapezoidal(t, &decay{rate: -4, n: 1}, 0.5)
	out := dynamo.State{9}
	err := tr.Step(0, 0.5, dynamo.State{1}, out)
	if !errors.Is(err, dynamo.ErrSingularJacobian) {
		t.Fatalf("expected ErrSingularJacobian, got %v", err)
	}
	if out[0] != 9 {
		t.Errorf("output written on failure: %v", out)
	}
}

func TestTrapezoidal_LargeWellConditionedSystem(t *testing.T) {
	g := NewWithT(t)
	// Newton matrix is 0.1 I: condition number 1, determinant 1e-400
	n := 400
	tr := newTrapezoidal(t, &decay{rate: -1.8, n: n}, 1)

	x0 := make(dynamo.State, n)
	for i := range x0 {
		x0[i] = 1
	}
	x1 := make(dynamo.State, n)
	g.Expect(tr.Step(0, 1, x0, x1)).To(Succeed())
	for i := range x1 {
		g.Expect(x1[i]).To(BeNumerically("~", 19, 1e-9), "component %d", i)
	}
	g.Expect(tr.Stats().NewtonIterations).To(Equal(1))
}

func TestTrapezoidal_EvaluationFailure(t *testing.T) {
	g := NewWithT(t)
	tr := newTrapezoidal(t, &failing{after: 1}, 0.1)

	out := dynamo.State{7, 7}
	err := tr.Step(0, 0.1, dynamo.State{1, 0}, out)
	g.Expect(err).To(MatchError(dynamo.ErrEvaluation))
	g.Expect(err).To(MatchError(errBoom))
	g.Expect(out).To(Equal(dynamo.State{7, 7}))
}

func TestNewtonOptions_Validate(t *testing.T) {
	tests := []struct {
		name    string
		opts    NewtonOptions
		wantErr bool
	}{
		{"default", DefaultNewtonOptions(), false},
		{"zero tolerance", NewtonOptions{Tolerance: 0, MaxIterations: 10}, true},
		{"nan tolerance", NewtonOptions{Tolerance: math.NaN(), MaxIterations: 10}, true},
		{"no iterations", NewtonOptions{Tolerance: 1e-8, MaxIterations: 0}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			_, err = NewImplicitTrapezoidal(oscillator{}, 0.1, tt.opts)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewImplicitTrapezoidal() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
