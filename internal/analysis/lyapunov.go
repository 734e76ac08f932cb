package analysis

import (
	"fmt"
	"math"

	"github.com/san-kum/fixstep/internal/dynamo"
	"github.com/san-kum/fixstep/internal/integrators"
)

// LyapunovExponent estimates the largest Lyapunov exponent using the
// trajectory separation method. A positive value indicates chaos.
//
// Algorithm:
// 1. Run two nearby trajectories with the same integrator
// 2. After every step measure their separation and pull the perturbed one
// back to the initial distance along the separation direction
// 3. λ ≈ mean of ln(|δx|/δ0) per unit time
func LyapunovExponent(
	integ integrators.Integrator,
	x0 dynamo.State,
	dt, duration float64,
	perturbation float64,
) (float64, error) {
	if len(x0) == 0 {
		return 0, nil
	}
	if !(perturbation > 0) {
		return 0, fmt.Errorf("analysis: perturbation must be positive, got %g", perturbation)
	}

	x := x0.Clone()
	xp := x0.Clone()
	xp[0] += perturbation
	d0 := perturbation

	steps := int(duration/dt + 1e-9)
	sumLog := 0.0
	count := 0

	for k := 0; k < steps; k++ {
		t := float64(k) * dt
		if err := integ.Step(t, dt, x, x); err != nil {
			return 0, err
		}
		if err := integ.Step(t, dt, xp, xp); err != nil {
			return 0, err
		}

		sep := 0.0
		for i := range x {
			diff := xp[i] - x[i]
			sep += diff * diff
		}
		sep = math.Sqrt(sep)
		if sep == 0 {
			continue
		}

		sumLog += math.Log(sep / d0)
		count++

		scale := d0 / sep
		for i := range xp {
			xp[i] = x[i] + (xp[i]-x[i])*scale
		}
	}

	if count == 0 {
		return 0, nil
	}
	return sumLog / (float64(count) * dt), nil
}
