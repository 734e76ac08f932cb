// Package physics provides dynamical system models for the integrators.
//
// Each model implements [dynamo.System]. All of them except [CartPole] also
// implement [dynamo.Jacobian] with analytic partial derivatives, which the
// implicit trapezoidal rule and the collocation constraints require:
//
//   - [Linear]: x' = Ax + Bu, and [NewDecay] for scalar exponential decay
//   - [Pendulum]: damped pendulum driven by a torque
//   - [SpringMass]: chain of masses and springs pushed by a force
//   - [VanDerPol]: relaxation oscillator with a stable limit cycle
//   - [Lorenz]: butterfly attractor
//   - [CartPole]: inverted pendulum on a cart, no analytic Jacobian
//
// Many models also implement [dynamo.Configurable] for runtime parameter
// adjustment and [dynamo.Hamiltonian] for energy calculation.
//
// # Energy Conservation
//
// For Hamiltonian systems, use [dynamo.Hamiltonian] to monitor energy drift:
//
//	dyn := physics.NewPendulum()
//	if h, ok := dyn.(dynamo.Hamiltonian); ok {
//	    energy := h.Energy(state)
//	}
//
// Models are read-only during Derive and may be shared by integrators running
// in parallel, as long as nobody calls SetParam concurrently.
package physics
