package physics

import (
	"fmt"
	"math"

	"github.com/san-kum/fixstep/internal/dynamo"
)

func positive(name string, v float64) error {
	if !(v > 0) || math.IsInf(v, 1) {
		return fmt.Errorf("%w: %s must be positive, got %g", dynamo.ErrParameterBounds, name, v)
	}
	return nil
}

func nonNegative(name string, v float64) error {
	if !(v >= 0) || math.IsInf(v, 1) {
		return fmt.Errorf("%w: %s must be non-negative, got %g", dynamo.ErrParameterBounds, name, v)
	}
	return nil
}

func finite(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %s must be finite, got %g", dynamo.ErrParameterBounds, name, v)
	}
	return nil
}

func unknownParam(name string) error {
	return fmt.Errorf("unknown param: %s", name)
}
