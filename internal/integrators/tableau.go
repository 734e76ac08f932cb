package integrators

import (
	"fmt"
	"math"
)

// Tableau holds the Butcher coefficients of an explicit Runge-Kutta scheme.
// Row i of A lists a_ij for j < i only, so every valid tableau is explicit.
type Tableau struct {
	A     [][]float64
	B     []float64
	C     []float64
	Order int
}

// ClassicRK4 returns the classical four-stage, fourth-order tableau.
func ClassicRK4() Tableau {
	return Tableau{
		A: [][]float64{
			{},
			{0.5},
			{0, 0.5},
			{0, 0, 1},
		},
		B:     []float64{1.0 / 6.0, 1.0 / 3.0, 1.0 / 3.0, 1.0 / 6.0},
		C:     []float64{0, 0.5, 0.5, 1},
		Order: 4,
	}
}

// Heun returns the two-stage, second-order explicit trapezoidal tableau.
func Heun() Tableau {
	return Tableau{
		A: [][]float64{
			{},
			{1},
		},
		B:     []float64{0.5, 0.5},
		C:     []float64{0, 1},
		Order: 2,
	}
}

func (t Tableau) Stages() int { return len(t.B) }

func (t Tableau) Validate() error {
	s := len(t.B)
	if s == 0 {
		return fmt.Errorf("integrators: tableau has no stages")
	}
	if len(t.A) != s || len(t.C) != s {
		return fmt.Errorf("integrators: tableau has %d weights, %d rows and %d nodes", s, len(t.A), len(t.C))
	}
	sumB := 0.0
	for i := 0; i < s; i++ {
		if len(t.A[i]) != i {
			return fmt.Errorf("integrators: tableau row %d has %d entries, explicit schemes need %d", i, len(t.A[i]), i)
		}
		row := 0.0
		for _, a := range t.A[i] {
			row += a
		}
		if math.Abs(row-t.C[i]) > 1e-12 {
			return fmt.Errorf("integrators: tableau node c[%d]=%g does not match row sum %g", i, t.C[i], row)
		}
		sumB += t.B[i]
	}
	if math.Abs(sumB-1) > 1e-12 {
		return fmt.Errorf("integrators: tableau weights sum to %g, want 1", sumB)
	}
	if t.Order < 1 {
		return fmt.Errorf("integrators: tableau order must be positive")
	}
	return nil
}

func (t Tableau) clone() Tableau {
	c := Tableau{
		A:     make([][]float64, len(t.A)),
		B:     append([]float64(nil), t.B...),
		C:     append([]float64(nil), t.C...),
		Order: t.Order,
	}
	for i, row := range t.A {
		c.A[i] = append([]float64{}, row...)
	}
	return c
}
