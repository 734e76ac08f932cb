package transcription

import (
	"fmt"

	"github.com/san-kum/fixstep/internal/dynamo"
	"github.com/san-kum/fixstep/internal/integrators"
	"gonum.org/v1/gonum/mat"
)

// Entry is one element of a sparse Jacobian in triplet form.
type Entry struct {
	Row   int
	Col   int
	Value float64
}

// Problem evaluates the stacked collocation constraints of one scheme over a
// grid. It owns scratch buffers and is not safe for concurrent use.
type Problem struct {
	col      integrators.Collocator
	n, m     int
	residual dynamo.State
	stateJ   []*mat.Dense
	controlJ []*mat.Dense
}

func NewProblem(col integrators.Collocator) *Problem {
	sys := col.System()
	n, m := sys.StateDim(), sys.ControlDim()
	stateJ, controlJ := integrators.NewCollocationJacobians(n, m)
	return &Problem{
		col:      col,
		n:        n,
		m:        m,
		residual: make(dynamo.State, n),
		stateJ:   stateJ,
		controlJ: controlJ,
	}
}

func (p *Problem) Collocator() integrators.Collocator { return p.col }

func (p *Problem) NumConstraints(g *Grid) int { return (g.Nodes() - 1) * p.n }

func (p *Problem) NumVariables(g *Grid) int { return g.Nodes() * (p.n + p.m) }

// StateIndex is the variable column of component j of x_k.
func (p *Problem) StateIndex(k, j int) int { return k*p.n + j }

// ControlIndex is the variable column of component j of u_k on g.
func (p *Problem) ControlIndex(g *Grid, k, j int) int { return g.Nodes()*p.n + k*p.m + j }

// Constraints writes all (N-1)*n residuals into out. The contents of out are
// unspecified when an error is returned.
func (p *Problem) Constraints(g *Grid, out []float64) error {
	if err := g.validate(p.col.System(), p.col.StepSize()); err != nil {
		return err
	}
	if want := p.NumConstraints(g); len(out) != want {
		return fmt.Errorf("%w: constraint buffer has %d entries, want %d", dynamo.ErrDimensionMismatch, len(out), want)
	}
	return p.constraints(g, out)
}

func (p *Problem) constraints(g *Grid, out []float64) error {
	times := g.Times()
	for k := 0; k < g.Nodes()-1; k++ {
		if err := p.col.CollocationConstraint(g.States[k:k+2], g.Controls[k:k+2], times[k], p.residual); err != nil {
			return fmt.Errorf("interval %d: %w", k, err)
		}
		copy(out[k*p.n:(k+1)*p.n], p.residual)
	}
	return nil
}

// Jacobian returns every entry of the constraint Jacobian's block pattern,
// zeros included, so the structure depends only on the grid size.
func (p *Problem) Jacobian(g *Grid) ([]Entry, error) {
	if err := g.validate(p.col.System(), p.col.StepSize()); err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, (g.Nodes()-1)*2*p.n*(p.n+p.m))
	err := p.visit(g, func(row, col int, v float64) {
		entries = append(entries, Entry{Row: row, Col: col, Value: v})
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// DenseJacobian materializes the constraint Jacobian as a
// NumConstraints × NumVariables matrix.
func (p *Problem) DenseJacobian(g *Grid) (*mat.Dense, error) {
	if err := g.validate(p.col.System(), p.col.StepSize()); err != nil {
		return nil, err
	}
	jac := mat.NewDense(p.NumConstraints(g), p.NumVariables(g), nil)
	err := p.visit(g, func(row, col int, v float64) {
		jac.Set(row, col, jac.At(row, col)+v)
	})
	if err != nil {
		return nil, err
	}
	return jac, nil
}

// visit evaluates the collocation Jacobian of every interval and passes each
// block entry to fn with its constraint row and variable column.
func (p *Problem) visit(g *Grid, fn func(row, col int, v float64)) error {
	times := g.Times()
	for k := 0; k < g.Nodes()-1; k++ {
		if err := p.col.CollocationJacobian(g.States[k:k+2], g.Controls[k:k+2], times[k], p.stateJ, p.controlJ); err != nil {
			return fmt.Errorf("interval %d: %w", k, err)
		}
		for b := 0; b < 2; b++ {
			node := k + b
			for i := 0; i < p.n; i++ {
				row := k*p.n + i
				for j := 0; j < p.n; j++ {
					fn(row, p.StateIndex(node, j), p.stateJ[b].At(i, j))
				}
				for j := 0; j < p.m; j++ {
					fn(row, p.ControlIndex(g, node, j), p.controlJ[b].At(i, j))
				}
			}
		}
	}
	return nil
}

// NumericJacobian approximates the constraint Jacobian by central differences
// with step h in every grid variable. It is meant for checking DenseJacobian.
func (p *Problem) NumericJacobian(g *Grid, h float64) (*mat.Dense, error) {
	if err := g.validate(p.col.System(), p.col.StepSize()); err != nil {
		return nil, err
	}
	if !(h > 0) {
		return nil, fmt.Errorf("%w: difference step %g", dynamo.ErrInvalidStep, h)
	}
	rows, cols := p.NumConstraints(g), p.NumVariables(g)
	jac := mat.NewDense(rows, cols, nil)
	plus := make([]float64, rows)
	minus := make([]float64, rows)
	work := g.Clone()
	for col := 0; col < cols; col++ {
		v := p.variable(work, col)
		orig := *v
		*v = orig + h
		if err := p.constraints(work, plus); err != nil {
			return nil, err
		}
		*v = orig - h
		if err := p.constraints(work, minus); err != nil {
			return nil, err
		}
		*v = orig
		for row := 0; row < rows; row++ {
			jac.Set(row, col, (plus[row]-minus[row])/(2*h))
		}
	}
	return jac, nil
}

func (p *Problem) variable(g *Grid, col int) *float64 {
	if split := g.Nodes() * p.n; col >= split {
		idx := col - split
		return &g.Controls[idx/p.m][idx%p.m]
	}
	return &g.States[col/p.n][col%p.n]
}
