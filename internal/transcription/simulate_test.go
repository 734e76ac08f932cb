package transcription_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/fixstep/internal/control"
	"github.com/san-kum/fixstep/internal/dynamo"
	"github.com/san-kum/fixstep/internal/integrators"
	"github.com/san-kum/fixstep/internal/physics"
	"github.com/san-kum/fixstep/internal/transcription"
)

var _ = Describe("Simulate", func() {
	ctx := context.Background()

	Context("with the trapezoidal rule on a driven pendulum", func() {
		var (
			trap *integrators.ImplicitTrapezoidal
			grid *transcription.Grid
		)

		BeforeEach(func() {
			pend := physics.NewPendulum()
			var err error
			trap, err = integrators.NewImplicitTrapezoidal(pend, dt, integrators.DefaultNewtonOptions())
			Expect(err).NotTo(HaveOccurred())
			Expect(trap.SetControlInput(ramp())).To(Succeed())
			grid, err = transcription.NewGrid(pend, 0, dt, 11, dynamo.State{1.0, 0}, ramp())
			Expect(err).NotTo(HaveOccurred())
		})

		It("reproduces repeated steps", func() {
			sol, err := transcription.Simulate(ctx, trap, grid)
			Expect(err).NotTo(HaveOccurred())
			Expect(sol.Residual).To(BeNumerically("<=", integrators.DefaultNewtonTolerance))
			Expect(sol.Iterations).To(BeNumerically(">", 1))

			want := stepped(trap, grid)
			for k := range want.States {
				Expect(sol.Grid.States[k][0]).To(BeNumerically("~", want.States[k][0], 1e-8), "node %d", k)
				Expect(sol.Grid.States[k][1]).To(BeNumerically("~", want.States[k][1], 1e-8), "node %d", k)
			}
		})

		It("leaves the input grid and the initial state alone", func() {
			before := grid.Clone()
			sol, err := transcription.Simulate(ctx, trap, grid)
			Expect(err).NotTo(HaveOccurred())
			Expect(grid).To(Equal(before))
			Expect(sol.Grid.States[0]).To(Equal(dynamo.State{1.0, 0}))
			Expect(sol.Grid.Controls).To(Equal(grid.Controls))
		})

		It("reports non-convergence", func() {
			sim, err := transcription.NewSimulator(trap, integrators.NewtonOptions{Tolerance: 1e-14, MaxIterations: 1})
			Expect(err).NotTo(HaveOccurred())
			_, err = sim.Simulate(ctx, grid)
			Expect(err).To(MatchError(dynamo.ErrNotConverged))

			var conv *integrators.ConvergenceError
			Expect(errors.As(err, &conv)).To(BeTrue())
			Expect(conv.Iterations).To(Equal(1))
			Expect(conv.Time).To(BeNumerically("~", 0.5, 1e-12))
		})

		It("stops when the context is cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := transcription.Simulate(cctx, trap, grid)
			Expect(err).To(MatchError(context.Canceled))
		})

		It("rejects a grid with the wrong spacing", func() {
			grid.Dt = dt / 2
			_, err := transcription.Simulate(ctx, trap, grid)
			Expect(err).To(MatchError(integrators.ErrGridStep))
		})
	})

	Context("with a linear system", func() {
		It("converges in one Newton update", func() {
			decay := physics.NewDecay(2)
			euler, err := integrators.NewForwardEuler(decay, 0.1)
			Expect(err).NotTo(HaveOccurred())
			grid, err := transcription.NewGrid(decay, 0, 0.1, 11, dynamo.State{1}, control.NewZero(0))
			Expect(err).NotTo(HaveOccurred())

			sol, err := transcription.Simulate(ctx, euler, grid)
			Expect(err).NotTo(HaveOccurred())
			Expect(sol.Iterations).To(Equal(1))

			want := 1.0
			for k := 1; k < grid.Nodes(); k++ {
				want *= 0.8
				Expect(sol.Grid.States[k][0]).To(BeNumerically("~", want, 1e-12))
			}
		})

		It("returns immediately from a grid that already satisfies the constraints", func() {
			decay := physics.NewDecay(1)
			trap, err := integrators.NewImplicitTrapezoidal(decay, 0.1, integrators.DefaultNewtonOptions())
			Expect(err).NotTo(HaveOccurred())
			grid, err := transcription.NewGrid(decay, 0, 0.1, 4, dynamo.State{1}, control.NewZero(0))
			Expect(err).NotTo(HaveOccurred())

			sol, err := transcription.Simulate(ctx, trap, stepped(trap, grid))
			Expect(err).NotTo(HaveOccurred())
			Expect(sol.Iterations).To(Equal(0))
		})
	})

	It("validates Newton options", func() {
		trap, err := integrators.NewImplicitTrapezoidal(physics.NewDecay(1), 0.1, integrators.DefaultNewtonOptions())
		Expect(err).NotTo(HaveOccurred())
		_, err = transcription.NewSimulator(trap, integrators.NewtonOptions{})
		Expect(err).To(HaveOccurred())
	})
})
