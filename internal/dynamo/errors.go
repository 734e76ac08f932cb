package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for integration operations.
var (
	// ErrInvalidState indicates a state vector with NaN or Inf entries.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")

	// ErrDimensionMismatch indicates mismatched state/control dimensions.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch between state and system")

	// ErrInvalidStep indicates a step size that is not finite and positive.
	ErrInvalidStep = errors.New("dynamo: step size must be finite and positive")

	// ErrEvaluation indicates the system could not evaluate its dynamics.
	ErrEvaluation = errors.New("dynamo: dynamics evaluation failed")

	// ErrNotConverged indicates an implicit solve ran out of iterations.
	ErrNotConverged = errors.New("dynamo: implicit solve did not converge")

	// ErrSingularJacobian indicates a Newton matrix that cannot be factorized.
	ErrSingularJacobian = errors.New("dynamo: singular newton matrix")

	// ErrNoJacobian indicates the system does not provide analytic Jacobians.
	ErrNoJacobian = errors.New("dynamo: system does not provide jacobians")

	// ErrNotSupported indicates an operation the integrator does not implement.
	ErrNotSupported = errors.New("dynamo: operation not supported")

	// ErrParameterBounds indicates a parameter value is outside valid range.
	ErrParameterBounds = errors.New("dynamo: parameter out of valid bounds")
)

// EvalError reports a failed call into a System.
type EvalError struct {
	Op   string
	Time float64
	Err  error
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("dynamo: %s at t=%g: %v", e.Op, e.Time, e.Err)
}

func (e *EvalError) Unwrap() error {
	return e.Err
}

func (e *EvalError) Is(target error) bool {
	return target == ErrEvaluation
}

// CheckState reports whether x matches the state dimension of sys.
func CheckState(sys System, what string, x State) error {
	if n := sys.StateDim(); len(x) != n {
		return fmt.Errorf("%w: %s has %d entries, system state dimension is %d", ErrDimensionMismatch, what, len(x), n)
	}
	return nil
}

// CheckControl reports whether u matches the control dimension of sys.
// A nil control is accepted for systems without inputs.
func CheckControl(sys System, what string, u Control) error {
	if m := sys.ControlDim(); len(u) != m {
		return fmt.Errorf("%w: %s has %d entries, system control dimension is %d", ErrDimensionMismatch, what, len(u), m)
	}
	return nil
}
