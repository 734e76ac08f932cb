// Package integrators provides fixed-step schemes for dynamo.System.
//
// Every scheme implements Integrator: it is bound to one system and step size
// at construction and advances a caller-owned state buffer by one step per
// call. ImplicitTrapezoidal and ForwardEuler also implement Collocator, which
// exposes the scheme as an algebraic constraint between two grid nodes and its
// exact Jacobian, as used by the transcription package.
//
//	rk4, _ := integrators.NewRK4(sys, 0.01)
//	x := dynamo.State{1, 0}
//	for k := 0; k < 100; k++ {
//		if err := rk4.Step(float64(k)*0.01, 0.01, x, x); err != nil {
//			return err
//		}
//	}
//
// Integrators own scratch buffers and are not safe for concurrent use.
package integrators
