package control

import (
	"fmt"

	"github.com/san-kum/fixstep/internal/dynamo"
)

// Constant applies the same control vector at every time.
// Set may be called between steps, never during one.
type Constant struct {
	U dynamo.Control
}

func NewConstant(u dynamo.Control) *Constant {
	return &Constant{
		U: u.Clone(),
	}
}

// Set replaces the stored control vector. The width must not change.
func (c *Constant) Set(u dynamo.Control) error {
	if len(u) != len(c.U) {
		return errWidth(len(u), len(c.U))
	}
	copy(c.U, u)
	return nil
}

func (c *Constant) Control(t float64, u dynamo.Control) error {
	if len(u) != len(c.U) {
		return errWidth(len(u), len(c.U))
	}
	copy(u, c.U)
	return nil
}

func errWidth(got, want int) error {
	return fmt.Errorf("%w: control buffer has %d entries, source provides %d", dynamo.ErrDimensionMismatch, got, want)
}
