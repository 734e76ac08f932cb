package integrators

import (
	"testing"

	"github.com/san-kum/fixstep/internal/dynamo"
)

func benchmarkStep(b *testing.B, integ Integrator) {
	x := dynamo.State{0.5, 0.0}
	dt := integ.StepSize()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := integ.Step(0, dt, x, x); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkEuler(b *testing.B) {
	integ, _ := NewForwardEuler(newPendulum(), 0.01)
	benchmarkStep(b, integ)
}

func BenchmarkRK4(b *testing.B) {
	integ, _ := NewRK4(newPendulum(), 0.01)
	benchmarkStep(b, integ)
}

func BenchmarkVerlet(b *testing.B) {
	integ, _ := NewVerlet(newPendulum(), 0.01)
	benchmarkStep(b, integ)
}

func BenchmarkTrapezoidal(b *testing.B) {
	integ, _ := NewImplicitTrapezoidal(newPendulum(), 0.01, DefaultNewtonOptions())
	benchmarkStep(b, integ)
}

func BenchmarkTrapezoidalCollocationJacobian(b *testing.B) {
	integ, _ := NewImplicitTrapezoidal(newPendulum(), 0.01, DefaultNewtonOptions())
	points := []dynamo.State{{0.5, 0}, {0.49, -0.05}}
	controls := []dynamo.Control{{0}, {0}}
	sj, cj := NewCollocationJacobians(2, 1)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := integ.CollocationJacobian(points, controls, 0, sj, cj); err != nil {
			b.Fatal(err)
		}
	}
}
