// Package analysis measures integrator accuracy and system behavior.
//
//   - [ObservedOrder]: convergence order from two step sizes
//   - [ConvergenceTable]: global error over a sequence of halved steps
//   - [LinearSolution]: closed-form e^{At}x0 reference for linear systems
//   - [LyapunovExponent]: largest Lyapunov exponent via trajectory separation
//
// # Convergence Order
//
// A scheme of order p has global error C·dT^p, so halving the step divides
// the error by 2^p:
//
//	p, err := analysis.ObservedOrder(factory, x0, 0, 1, 0.1, exact)
//	// p ≈ 4 for RK4, ≈ 2 for the trapezoidal rule
package analysis
