// Package control provides time-varying control inputs for integrators.
//
// Every source implements [dynamo.ControlInput] and writes the control
// applied at time t into a caller-owned buffer:
//
//   - [Zero]: no actuation, any dimension
//   - [Constant]: a fixed control vector, optionally updated between steps
//   - [Schedule]: piecewise-constant (zero-order hold) values on a time grid
//   - [Interpolated]: piecewise-linear (first-order hold) values on a time grid
//
// # Usage
//
//	sched, _ := control.NewSchedule([]float64{0, 1}, []dynamo.Control{{0}, {2}})
//	_ = integ.SetControlInput(sched)
//	// Step samples u(t0) (and u(t0+dT) for implicit schemes)
package control
