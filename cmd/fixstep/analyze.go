package main

import (
	"fmt"
	"math"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/fixstep/internal/analysis"
	"github.com/san-kum/fixstep/internal/config"
	"github.com/san-kum/fixstep/internal/dynamo"
	"github.com/san-kum/fixstep/internal/experiment"
	"github.com/san-kum/fixstep/internal/integrators"
	"github.com/san-kum/fixstep/internal/physics"
	"github.com/san-kum/fixstep/internal/transcription"
	"github.com/san-kum/fixstep/internal/tui"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"
)

// bound is a model resolved from a config: the system with its parameters
// applied, the initial state and the control input.
type bound struct {
	cfg      *config.Config
	dyn      dynamo.System
	x0       dynamo.State
	controls dynamo.ControlInput
}

func bind(cfg *config.Config) (*bound, error) {
	exp, err := registry.Prepare(cfg, log)
	if err != nil {
		return nil, err
	}
	dyn := exp.GetSimulator().Integrator().System()
	controls, err := cfg.ControlInput(dyn.ControlDim())
	if err != nil {
		return nil, err
	}
	return &bound{cfg: cfg, dyn: dyn, x0: exp.InitialState(), controls: controls}, nil
}

// factory builds fresh integrators of the named scheme for b's system.
func (b *bound) factory(name string) analysis.Factory {
	return func(dT float64) (integrators.Integrator, error) {
		integ, err := registry.GetIntegrator(name, b.dyn, dT, b.cfg.Newton)
		if err != nil {
			return nil, err
		}
		return integ, integ.SetControlInput(b.controls)
	}
}

// exact is the closed-form solution of an unforced linear model, or nil.
func (b *bound) exact() analysis.Exact {
	lin, ok := b.dyn.(*physics.Linear)
	if !ok || lin.ControlDim() > 0 {
		return nil
	}
	return analysis.LinearSolution(lin, b.x0, 0)
}

// collocator builds a collocation scheme for b's system, falling back to
// finite-difference Jacobians when the model has no analytic ones.
func (b *bound) collocator() (integrators.Collocator, error) {
	integ, err := registry.GetIntegrator(b.cfg.Integrator, experiment.Differentiable(b.dyn), b.cfg.Dt, b.cfg.Newton)
	if err != nil {
		return nil, err
	}
	col, ok := integ.(integrators.Collocator)
	if !ok {
		return nil, fmt.Errorf("integrator %s is not a collocation scheme", b.cfg.Integrator)
	}
	return col, col.SetControlInput(b.controls)
}

func newCompareCmd() *cobra.Command {
	var f simFlags
	cmd := &cobra.Command{
		Use:   "compare [model] [integrator1] [integrator2] ...",
		Short: "compare integrators on the same model",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := f.resolve(cmd, args[0])
			if err != nil {
				return err
			}
			b, err := bind(base)
			if err != nil {
				return err
			}
			exact := b.exact()

			fmt.Printf("comparing integrators for %s (dt=%.4f, duration=%.1fs)\n\n", base.Model, base.Dt, base.Duration)
			header := fmt.Sprintf("%-12s  %-12s  %-12s  %-8s  %-12s", "integrator", "final_x0", "energy_drift", "newton", "time_ms")
			if exact != nil {
				header += fmt.Sprintf("  %-12s", "error")
			}
			fmt.Println(tui.Header.Render(header))
			fmt.Println(strings.Repeat("-", len(header)))

			for _, name := range args[1:] {
				cfg := base.Clone()
				cfg.Integrator = name
				exp, err := registry.Prepare(cfg, log)
				if err != nil {
					fmt.Printf("%-12s  error: %v\n", name, err)
					continue
				}

				start := time.Now()
				result, err := exp.Run(cmd.Context())
				elapsed := time.Since(start)
				if err != nil {
					fmt.Printf("%-12s  error: %v\n", name, err)
					continue
				}

				final := result.Final()
				line := fmt.Sprintf("%-12s  %12.6f  %12.2e  %8d  %12.2f",
					name, final[0], result.EnergyDrift, result.Stats.NewtonIterations, float64(elapsed.Microseconds())/1000)
				if exact != nil {
					ref := exact(result.Times[len(result.Times)-1])
					line += fmt.Sprintf("  %12.2e", final.Sub(ref).NormInf())
				}
				fmt.Println(line)
			}
			return nil
		},
	}
	f.register(cmd, "rk4", 0.01, 10.0)
	return cmd
}

func newOrderCmd() *cobra.Command {
	var (
		f      simFlags
		levels int
	)
	cmd := &cobra.Command{
		Use:   "order [model] [integrator]",
		Short: "estimate the observed convergence order",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if levels < 2 {
				return fmt.Errorf("order needs at least 2 levels, got %d", levels)
			}
			cfg, err := f.resolve(cmd, args[0])
			if err != nil {
				return err
			}
			cfg.Integrator = args[1]
			b, err := bind(cfg)
			if err != nil {
				return err
			}

			factory := b.factory(cfg.Integrator)
			scheme, err := factory(cfg.Dt)
			if err != nil {
				return err
			}

			exact := b.exact()
			source := "closed form"
			if exact == nil {
				fine := cfg.Dt / math.Pow(2, float64(levels+3))
				exact, err = analysis.Reference(b.factory("rk4"), b.x0, 0, cfg.Duration, fine)
				if err != nil {
					return err
				}
				source = fmt.Sprintf("rk4 reference, dt=%.3g", fine)
			}

			rows, err := analysis.ConvergenceTable(factory, b.x0, 0, cfg.Duration, cfg.Dt, levels, exact)
			if err != nil {
				return err
			}

			fmt.Println(tui.Header.Render(fmt.Sprintf("%s on %s over %gs (%s)", cfg.Integrator, cfg.Model, cfg.Duration, source)))
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "DT\tERROR\tORDER")
			logErr := make([]float64, 0, len(rows))
			for _, r := range rows {
				order := "-"
				if !math.IsNaN(r.Order) {
					order = fmt.Sprintf("%.3f", r.Order)
				}
				fmt.Fprintf(w, "%.5g\t%.3e\t%s\n", r.Dt, r.Error, order)
				if r.Error > 0 {
					logErr = append(logErr, math.Log10(r.Error))
				}
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Printf("\nexpected order: %d\n", scheme.Info().Order)

			if len(logErr) > 1 {
				fmt.Println()
				fmt.Println(asciigraph.Plot(logErr,
					asciigraph.Height(8),
					asciigraph.Width(40),
					asciigraph.Caption("log10 error per halving"),
				))
			}
			return nil
		},
	}
	f.register(cmd, "rk4", 0.1, 1.0)
	cmd.Flags().IntVar(&levels, "levels", 4, "number of step sizes")
	return cmd
}

func newCollocateCmd() *cobra.Command {
	var f simFlags
	cmd := &cobra.Command{
		Use:   "collocate [model]",
		Short: "check the collocation residual and jacobian on one interval",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.resolve(cmd, args[0])
			if err != nil {
				return err
			}
			b, err := bind(cfg)
			if err != nil {
				return err
			}
			col, err := b.collocator()
			if err != nil {
				return err
			}

			grid, err := transcription.NewGrid(b.dyn, 0, cfg.Dt, 2, b.x0, b.controls)
			if err != nil {
				return err
			}
			problem := transcription.NewProblem(col)
			residual := make([]float64, problem.NumConstraints(grid))

			if err := problem.Constraints(grid, residual); err != nil {
				return err
			}
			fmt.Printf("%s on %s, dt=%g\n", cfg.Integrator, cfg.Model, cfg.Dt)
			fmt.Printf("residual at constant guess: %.3e\n", dynamo.State(residual).NormInf())

			if err := col.Step(0, cfg.Dt, grid.States[0], grid.States[1]); err != nil {
				return err
			}
			if err := problem.Constraints(grid, residual); err != nil {
				return err
			}
			fmt.Printf("residual after one step:    %.3e\n", dynamo.State(residual).NormInf())

			analytic, err := problem.DenseJacobian(grid)
			if err != nil {
				return err
			}
			numeric, err := problem.NumericJacobian(grid, 1e-6)
			if err != nil {
				return err
			}
			var diff mat.Dense
			diff.Sub(analytic, numeric)
			fmt.Printf("jacobian vs finite differences: %.3e\n\n", mat.Norm(&diff, math.Inf(1)))
			fmt.Printf("jacobian [x_k x_k+1 u_k u_k+1] =\n%v\n", mat.Formatted(analytic, mat.Prefix("  "), mat.Squeeze()))
			return nil
		},
	}
	f.register(cmd, "trapezoidal", 0.05, 1.0)
	return cmd
}

func newTranscribeCmd() *cobra.Command {
	var (
		f     simFlags
		nodes int
	)
	cmd := &cobra.Command{
		Use:   "transcribe [model]",
		Short: "solve all collocation constraints of a grid at once and compare with stepping",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.resolve(cmd, args[0])
			if err != nil {
				return err
			}
			b, err := bind(cfg)
			if err != nil {
				return err
			}
			col, err := b.collocator()
			if err != nil {
				return err
			}

			grid, err := transcription.NewGrid(b.dyn, 0, cfg.Dt, nodes, b.x0, b.controls)
			if err != nil {
				return err
			}
			stepped := grid.Clone()
			times := stepped.Times()
			for k := 0; k+1 < stepped.Nodes(); k++ {
				if err := col.Step(times[k], cfg.Dt, stepped.States[k], stepped.States[k+1]); err != nil {
					return err
				}
			}

			solver, err := transcription.NewSimulator(col, cfg.Newton)
			if err != nil {
				return err
			}
			solver.SetLogger(log)

			start := time.Now()
			sol, err := solver.Simulate(cmd.Context(), grid)
			if err != nil {
				return err
			}
			elapsed := time.Since(start)

			maxDiff := 0.0
			for k := range sol.Grid.States {
				maxDiff = math.Max(maxDiff, sol.Grid.States[k].Sub(stepped.States[k]).NormInf())
			}

			fmt.Printf("%s on %s, %d nodes, dt=%g\n", cfg.Integrator, cfg.Model, nodes, cfg.Dt)
			fmt.Printf("newton iterations: %d\n", sol.Iterations)
			fmt.Printf("residual: %.3e\n", sol.Residual)
			fmt.Printf("max difference from stepping: %.3e\n", maxDiff)
			fmt.Printf("solved in %v\n\n", elapsed)

			series := make([]float64, len(sol.Grid.States))
			for k, s := range sol.Grid.States {
				series[k] = s[0]
			}
			fmt.Println(asciigraph.Plot(series,
				asciigraph.Height(10),
				asciigraph.Width(80),
				asciigraph.Caption("x0 of the transcribed trajectory"),
			))
			return nil
		},
	}
	f.register(cmd, "trapezoidal", 0.05, 1.0)
	cmd.Flags().IntVar(&nodes, "nodes", 51, "number of grid nodes")
	return cmd
}
