// Package dynamo provides core primitives for fixed-step integration of
// dynamical systems.
//
// The package defines the vocabulary shared by every integrator and model:
//
//   - [State]: vector representing system state
//   - [Control]: input vector, held constant over one integration step
//   - [System]: capability that evaluates dX/dt = f(X, u, t)
//   - [Jacobian]: optional analytic partial derivatives of f
//   - [ControlInput]: time-varying control source consumed by integrators
//
// Systems write derivatives into caller-owned buffers and report failures
// through returned errors; integrators never own the system they step.
//
// # Example
//
//	dyn := physics.NewPendulum()
//	integ, _ := integrators.NewRK4(dyn, 0.01)
//	x1 := make(dynamo.State, dyn.StateDim())
//	err := integ.Step(0, 0.01, x0, x1)
//
// # Thread Safety
//
// Integrators only read from a System. A System shared by integrators running
// on different goroutines must tolerate concurrent calls to Derive and the
// Jacobian methods; nothing in this module enforces that.
package dynamo
