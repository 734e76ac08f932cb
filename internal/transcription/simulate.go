package transcription

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/edp1096/sparse"
	"github.com/san-kum/fixstep/internal/dynamo"
	"github.com/san-kum/fixstep/internal/integrators"
)

// Solution is the outcome of Simulate.
type Solution struct {
	Grid       *Grid
	Iterations int
	Residual   float64
}

// Simulator solves all collocation constraints of a grid for the states
// x_1 .. x_{N-1}, holding x_0 and every control fixed. The Newton matrix is
// block lower bidiagonal and is factorized with a sparse LU.
type Simulator struct {
	problem *Problem
	opts    integrators.NewtonOptions
	log     *slog.Logger
}

func NewSimulator(col integrators.Collocator, opts integrators.NewtonOptions) (*Simulator, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Simulator{
		problem: NewProblem(col),
		opts:    opts,
		log:     slog.New(slog.DiscardHandler),
	}, nil
}

func (s *Simulator) SetLogger(l *slog.Logger) {
	if l != nil {
		s.log = l
	}
}

func (s *Simulator) Problem() *Problem { return s.problem }

// Simulate runs Newton from the states already on g, which serve as the
// initial guess. g itself is left untouched. Convergence means the infinity
// norm of the stacked residual is at most the tolerance; running out of
// iterations yields a *integrators.ConvergenceError. ctx is checked between
// iterations.
func (s *Simulator) Simulate(ctx context.Context, g *Grid) (*Solution, error) {
	p := s.problem
	if err := g.validate(p.col.System(), p.col.StepSize()); err != nil {
		return nil, err
	}

	work := g.Clone()
	size := p.NumConstraints(work)
	tEnd := work.T0 + float64(work.Nodes()-1)*work.Dt

	matrix, err := sparse.Create(int64(size), &sparse.Configuration{
		Real:           true,
		Expandable:     true,
		TiesMultiplier: 5,
		PrinterWidth:   140,
	})
	if err != nil {
		return nil, fmt.Errorf("transcription: sparse matrix: %w", err)
	}
	defer matrix.Destroy()

	residual := make([]float64, size)
	rhs := make([]float64, size+1)

	for iter := 0; ; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := p.constraints(work, residual); err != nil {
			return nil, err
		}
		res := dynamo.State(residual).NormInf()
		s.log.Debug("transcription newton", "iteration", iter, "residual", res)

		if res <= s.opts.Tolerance {
			return &Solution{Grid: work, Iterations: iter, Residual: res}, nil
		}
		if iter == s.opts.MaxIterations || math.IsNaN(res) || math.IsInf(res, 0) {
			s.log.Warn("transcription newton failed", "iterations", iter, "residual", res)
			return nil, &integrators.ConvergenceError{Time: tEnd, Iterations: iter, Residual: res}
		}

		matrix.Clear()
		n := p.n
		err := p.visit(work, func(row, col int, v float64) {
			// x_0 and the controls are fixed; x_k maps to unknown column k-1
			if col < n || col >= work.Nodes()*n {
				return
			}
			matrix.GetElement(int64(row+1), int64(col-n+1)).Real += v
		})
		if err != nil {
			return nil, err
		}

		rhs[0] = 0
		copy(rhs[1:], residual)
		if err := matrix.Factor(); err != nil {
			return nil, fmt.Errorf("%w: %v", dynamo.ErrSingularJacobian, err)
		}
		delta, err := matrix.Solve(rhs)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", dynamo.ErrSingularJacobian, err)
		}

		for k := 1; k < work.Nodes(); k++ {
			x := work.States[k]
			for j := range x {
				x[j] -= delta[(k-1)*n+j+1]
			}
		}
	}
}

// Simulate is a one-shot helper around Simulator with default Newton
// options.
func Simulate(ctx context.Context, col integrators.Collocator, g *Grid) (*Solution, error) {
	sim, err := NewSimulator(col, integrators.DefaultNewtonOptions())
	if err != nil {
		return nil, err
	}
	return sim.Simulate(ctx, g)
}
