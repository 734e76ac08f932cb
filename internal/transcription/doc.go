// Package transcription assembles the collocation constraints of a fixed-step
// scheme over a uniform time grid, as a direct transcription optimizer would
// see them: one stacked residual vector and its sparse Jacobian with respect
// to every grid state and control.
//
// Variables are ordered [x_0 .. x_{N-1}, u_0 .. u_{N-1}], and interval k
// contributes constraint rows k*n .. k*n+n-1.
//
// Simulate solves the same constraints for the states with x_0 and the
// controls held fixed. This reproduces stepping the integrator node by node,
// but as one sparse Newton solve over the whole horizon.
package transcription
