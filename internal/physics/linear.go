package physics

import (
	"fmt"

	"github.com/san-kum/fixstep/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// Linear is the time-invariant system x' = Ax + Bu.
type Linear struct {
	a, b *mat.Dense
	n, m int
}

// NewLinear copies A (n×n) and B (n×m). B may be nil for a system without
// inputs.
func NewLinear(a, b mat.Matrix) (*Linear, error) {
	if a == nil {
		return nil, fmt.Errorf("physics: linear system needs a state matrix")
	}
	n, c := a.Dims()
	if n != c || n == 0 {
		return nil, fmt.Errorf("%w: state matrix is %dx%d", dynamo.ErrDimensionMismatch, n, c)
	}
	l := &Linear{a: mat.DenseCopyOf(a), n: n}
	if b != nil {
		r, m := b.Dims()
		if r != n {
			return nil, fmt.Errorf("%w: input matrix has %d rows, state matrix %d", dynamo.ErrDimensionMismatch, r, n)
		}
		l.b = mat.DenseCopyOf(b)
		l.m = m
	}
	return l, nil
}

// NewDecay returns the scalar system x' = -rate*x.
func NewDecay(rate float64) *Linear {
	return &Linear{a: mat.NewDense(1, 1, []float64{-rate}), n: 1}
}

func (l *Linear) StateDim() int   { return l.n }
func (l *Linear) ControlDim() int { return l.m }

// A returns a copy of the state matrix.
func (l *Linear) A() *mat.Dense { return mat.DenseCopyOf(l.a) }

func (l *Linear) DefaultState() dynamo.State {
	x := make(dynamo.State, l.n)
	for i := range x {
		x[i] = 1
	}
	return x
}

func (l *Linear) Derive(x dynamo.State, u dynamo.Control, t float64, dx dynamo.State) error {
	out := mat.NewVecDense(l.n, dx)
	out.MulVec(l.a, mat.NewVecDense(l.n, x))
	if l.m == 0 {
		return nil
	}
	var bu mat.VecDense
	bu.MulVec(l.b, mat.NewVecDense(l.m, u))
	out.AddVec(out, &bu)
	return nil
}

func (l *Linear) StateJacobian(x dynamo.State, u dynamo.Control, t float64, jac *mat.Dense) error {
	jac.Copy(l.a)
	return nil
}

func (l *Linear) ControlJacobian(x dynamo.State, u dynamo.Control, t float64, jac *mat.Dense) error {
	if l.m == 0 {
		return dynamo.ErrNotSupported
	}
	jac.Copy(l.b)
	return nil
}

// GetParams exposes the entries of A as a_ij (zero-based).
func (l *Linear) GetParams() map[string]float64 {
	params := make(map[string]float64, l.n*l.n)
	for i := 0; i < l.n; i++ {
		for j := 0; j < l.n; j++ {
			params[fmt.Sprintf("a_%d%d", i, j)] = l.a.At(i, j)
		}
	}
	if l.n == 1 {
		params["rate"] = -l.a.At(0, 0)
	}
	return params
}

func (l *Linear) SetParam(name string, value float64) error {
	if err := finite(name, value); err != nil {
		return err
	}
	if name == "rate" && l.n == 1 {
		l.a.Set(0, 0, -value)
		return nil
	}
	var i, j int
	if _, err := fmt.Sscanf(name, "a_%1d%1d", &i, &j); err != nil || i >= l.n || j >= l.n {
		return unknownParam(name)
	}
	l.a.Set(i, j, value)
	return nil
}
