package integrators

import (
	"fmt"
	"math"

	"github.com/san-kum/fixstep/internal/dynamo"
)

const (
	DefaultNewtonTolerance     = 1e-10
	DefaultNewtonMaxIterations = 50
)

// NewtonOptions controls the implicit solve. Convergence is declared when the
// infinity norm of the residual drops to Tolerance or below.
type NewtonOptions struct {
	Tolerance     float64 `yaml:"tolerance" json:"tolerance"`
	MaxIterations int     `yaml:"max_iterations" json:"max_iterations"`
}

func DefaultNewtonOptions() NewtonOptions {
	return NewtonOptions{
		Tolerance:     DefaultNewtonTolerance,
		MaxIterations: DefaultNewtonMaxIterations,
	}
}

func (o NewtonOptions) Validate() error {
	if !(o.Tolerance > 0) || math.IsInf(o.Tolerance, 1) {
		return fmt.Errorf("integrators: newton tolerance must be finite and positive, got %g", o.Tolerance)
	}
	if o.MaxIterations < 1 {
		return fmt.Errorf("integrators: newton max iterations must be at least 1, got %d", o.MaxIterations)
	}
	return nil
}

// ConvergenceError reports a Newton solve that ran out of iterations or
// produced a non-finite residual.
type ConvergenceError struct {
	Time       float64
	Iterations int
	Residual   float64
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("integrators: newton did not converge at t=%g after %d iterations (residual %.3e)", e.Time, e.Iterations, e.Residual)
}

func (e *ConvergenceError) Is(target error) bool {
	return target == dynamo.ErrNotConverged
}
