package transcription_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/fixstep/internal/control"
	"github.com/san-kum/fixstep/internal/dynamo"
	"github.com/san-kum/fixstep/internal/integrators"
	"github.com/san-kum/fixstep/internal/physics"
	"github.com/san-kum/fixstep/internal/transcription"
)

const dt = 0.05

func ramp() dynamo.ControlInput {
	in, err := control.NewInterpolated([]float64{0, 1}, []dynamo.Control{{-1}, {2}})
	Expect(err).NotTo(HaveOccurred())
	return in
}

// stepped fills the grid by stepping integ node by node.
func stepped(integ integrators.Integrator, g *transcription.Grid) *transcription.Grid {
	out := g.Clone()
	times := out.Times()
	for k := 0; k+1 < out.Nodes(); k++ {
		Expect(integ.Step(times[k], out.Dt, out.States[k], out.States[k+1])).To(Succeed())
	}
	return out
}

var _ = Describe("Grid", func() {
	It("derives node times from T0 and Dt", func() {
		g, err := transcription.NewGrid(physics.NewDecay(1), 1, 0.25, 5, dynamo.State{1}, control.NewZero(0))
		Expect(err).NotTo(HaveOccurred())
		Expect(g.Nodes()).To(Equal(5))
		Expect(g.Times()).To(Equal([]float64{1, 1.25, 1.5, 1.75, 2}))
	})

	It("samples controls at every node", func() {
		g, err := transcription.NewGrid(physics.NewPendulum(), 0, 0.5, 3, dynamo.State{0, 0}, ramp())
		Expect(err).NotTo(HaveOccurred())
		Expect(g.Controls).To(Equal([]dynamo.Control{{-1}, {0.5}, {2}}))
	})

	It("rejects short grids and mismatched initial states", func() {
		_, err := transcription.NewGrid(physics.NewDecay(1), 0, 0.1, 1, dynamo.State{1}, control.NewZero(0))
		Expect(err).To(MatchError(dynamo.ErrDimensionMismatch))
		_, err = transcription.NewGrid(physics.NewDecay(1), 0, 0.1, 3, dynamo.State{1, 2}, control.NewZero(0))
		Expect(err).To(MatchError(dynamo.ErrDimensionMismatch))
	})

	It("clones deeply", func() {
		g, err := transcription.NewGrid(physics.NewPendulum(), 0, dt, 3, dynamo.State{0.1, 0}, ramp())
		Expect(err).NotTo(HaveOccurred())
		c := g.Clone()
		c.States[1][0] = 9
		c.Controls[1][0] = 9
		Expect(g.States[1][0]).To(Equal(0.1))
		Expect(g.Controls[1][0]).NotTo(Equal(9.0))
	})
})

var _ = Describe("Problem", func() {
	var (
		pend  *physics.Pendulum
		trap  *integrators.ImplicitTrapezoidal
		grid  *transcription.Grid
		probl *transcription.Problem
	)

	BeforeEach(func() {
		var err error
		pend = physics.NewPendulum()
		trap, err = integrators.NewImplicitTrapezoidal(pend, dt, integrators.DefaultNewtonOptions())
		Expect(err).NotTo(HaveOccurred())
		Expect(trap.SetControlInput(ramp())).To(Succeed())

		grid, err = transcription.NewGrid(pend, 0, dt, 6, dynamo.State{0.8, -0.3}, ramp())
		Expect(err).NotTo(HaveOccurred())
		probl = transcription.NewProblem(trap)
	})

	It("sizes constraints and variables", func() {
		Expect(probl.NumConstraints(grid)).To(Equal(10))
		Expect(probl.NumVariables(grid)).To(Equal(18))
		Expect(probl.StateIndex(2, 1)).To(Equal(5))
		Expect(probl.ControlIndex(grid, 2, 0)).To(Equal(14))
	})

	It("is satisfied by the trajectory the integrator steps", func() {
		traj := stepped(trap, grid)
		out := make([]float64, probl.NumConstraints(traj))
		Expect(probl.Constraints(traj, out)).To(Succeed())
		Expect(dynamo.State(out).NormInf()).To(BeNumerically("<=", 1e-9))
	})

	It("is violated by a constant guess", func() {
		out := make([]float64, probl.NumConstraints(grid))
		Expect(probl.Constraints(grid, out)).To(Succeed())
		Expect(dynamo.State(out).NormInf()).To(BeNumerically(">", 1e-3))
	})

	It("returns the full block pattern as triplets", func() {
		entries, err := probl.Jacobian(grid)
		Expect(err).NotTo(HaveOccurred())
		// 5 intervals × 2 nodes × n rows × (n + m) columns
		Expect(entries).To(HaveLen(5 * 2 * 2 * 3))
		for _, e := range entries {
			Expect(e.Row).To(BeNumerically("<", 10))
			Expect(e.Col).To(BeNumerically("<", 18))
		}
	})

	It("matches finite differences of the constraints", func() {
		traj := stepped(trap, grid)
		traj.States[3][0] += 0.2

		dense, err := probl.DenseJacobian(traj)
		Expect(err).NotTo(HaveOccurred())
		numeric, err := probl.NumericJacobian(traj, 1e-6)
		Expect(err).NotTo(HaveOccurred())

		rows, cols := dense.Dims()
		Expect(rows).To(Equal(10))
		Expect(cols).To(Equal(18))
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				Expect(dense.At(i, j)).To(BeNumerically("~", numeric.At(i, j), 1e-6), "entry (%d,%d)", i, j)
			}
		}
	})

	It("rejects a non-positive difference step", func() {
		_, err := probl.NumericJacobian(grid, 0)
		Expect(err).To(MatchError(dynamo.ErrInvalidStep))
	})

	It("rejects a grid whose spacing differs from the step size", func() {
		grid.Dt = 2 * dt
		out := make([]float64, probl.NumConstraints(grid))
		Expect(probl.Constraints(grid, out)).To(MatchError(integrators.ErrGridStep))
		_, err := probl.Jacobian(grid)
		Expect(err).To(MatchError(integrators.ErrGridStep))
	})

	It("rejects mismatched buffers and nodes", func() {
		Expect(probl.Constraints(grid, make([]float64, 3))).To(MatchError(dynamo.ErrDimensionMismatch))

		grid.Controls = grid.Controls[:4]
		_, err := probl.DenseJacobian(grid)
		Expect(err).To(MatchError(dynamo.ErrDimensionMismatch))
	})

	It("reports missing analytic jacobians", func() {
		cart := physics.NewCartPole()
		euler, err := integrators.NewForwardEuler(cart, dt)
		Expect(err).NotTo(HaveOccurred())
		g, err := transcription.NewGrid(cart, 0, dt, 3, cart.DefaultState(), control.NewZero(1))
		Expect(err).NotTo(HaveOccurred())

		_, err = transcription.NewProblem(euler).Jacobian(g)
		Expect(errors.Is(err, dynamo.ErrNoJacobian)).To(BeTrue())

		fd := dynamo.NewFiniteDifference(cart, dynamo.DefaultDifferenceStep)
		euler, err = integrators.NewForwardEuler(fd, dt)
		Expect(err).NotTo(HaveOccurred())
		_, err = transcription.NewProblem(euler).Jacobian(g)
		Expect(err).NotTo(HaveOccurred())
	})
})
