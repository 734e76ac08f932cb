package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/fixstep/internal/automation"
	"github.com/san-kum/fixstep/internal/logger"
	"github.com/san-kum/fixstep/internal/storage"
	"github.com/san-kum/fixstep/internal/tui"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	var f simFlags
	cmd := &cobra.Command{
		Use:   "run [model]",
		Short: "run simulation and save it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulation(cmd, args[0], &f)
		},
	}
	f.register(cmd, "rk4", 0.01, 10.0)
	return cmd
}

func runSimulation(cmd *cobra.Command, model string, f *simFlags) error {
	cfg, err := f.resolve(cmd, model)
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	exp, err := registry.Prepare(cfg, log)
	if err != nil {
		return err
	}

	fmt.Printf("running %s simulation (%s, dt=%g)...\n", model, cfg.Integrator, cfg.Dt)
	start := time.Now()

	result, err := exp.Run(cmd.Context())
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	runID, err := st.Save(cfg, result)
	if err != nil {
		return err
	}

	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("steps: %d\n", result.StepsTaken)
	fmt.Printf("final state: %v\n", result.Final())
	if result.Stats.NewtonIterations > 0 {
		fmt.Printf("newton iterations: %d (%.2f per step)\n",
			result.Stats.NewtonIterations, float64(result.Stats.NewtonIterations)/float64(max(result.StepsTaken, 1)))
	}
	printMetrics(result.Metrics)
	return nil
}

func printMetrics(metrics map[string]float64) {
	if len(metrics) == 0 {
		return
	}
	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println("\nmetrics:")
	for _, name := range names {
		fmt.Printf("  %s: %.6g\n", name, metrics[name])
	}
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "list runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runs, err := storage.New(dataDir).List()
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("no runs found")
				return nil
			}

			fmt.Println(tui.Header.Render(fmt.Sprintf("%d runs in %s", len(runs), dataDir)))
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tMODEL\tTIME\tDURATION\tDT\tINTEG\tCTRL\tSTEPS")
			for _, run := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%.2fs\t%.4fs\t%s\t%s\t%d\n",
					run.ID,
					run.Model,
					run.Timestamp.Format("2006-01-02 15:04:05"),
					run.Duration,
					run.Dt,
					run.Integrator,
					run.Control,
					run.StepsTaken,
				)
			}
			return w.Flush()
		},
	}
}

var captions = map[string][]string{
	"pendulum":    {"theta (angle)", "omega (angular velocity)"},
	"cartpole":    {"cart position", "cart velocity", "pole angle", "pole angular velocity"},
	"spring_mass": {"position", "velocity"},
	"lorenz":      {"x", "y", "z"},
}

func newPlotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot run results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st := storage.New(dataDir)
			meta, err := st.Load(args[0])
			if err != nil {
				return err
			}
			traj, err := st.LoadTrajectory(args[0])
			if err != nil {
				return err
			}
			if len(traj.States) == 0 {
				return fmt.Errorf("no data to plot")
			}

			fmt.Printf("run: %s\n", meta.ID)
			fmt.Printf("model: %s (%s)\n", meta.Model, meta.Integrator)
			fmt.Printf("samples: %d over %.3gs\n\n", len(traj.States), traj.Times[len(traj.Times)-1]-traj.Times[0])

			numVars := min(len(traj.States[0]), 6)
			for varIdx := 0; varIdx < numVars; varIdx++ {
				data := make([]float64, len(traj.States))
				for i, s := range traj.States {
					data[i] = s[varIdx]
				}

				caption := fmt.Sprintf("x%d vs time", varIdx)
				if labels, ok := captions[meta.Model]; ok && varIdx < len(labels) {
					caption = labels[varIdx]
				}
				fmt.Println(asciigraph.Plot(data,
					asciigraph.Height(10),
					asciigraph.Width(80),
					asciigraph.Caption(caption),
				))
				fmt.Println()
			}
			return nil
		},
	}
}

func newExportJSONCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run data to JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return storage.New(dataDir).ExportJSON(args[0], os.Stdout)
		},
	}
}

func newScenarioCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scenario [file]",
		Short: "run every step of a scenario file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := automation.LoadScenario(args[0])
			if err != nil {
				return err
			}
			st := storage.New(dataDir)
			if err := st.Init(); err != nil {
				return err
			}

			fmt.Printf("scenario: %s (%d steps)\n", sc.Name, len(sc.Steps))
			if sc.Description != "" {
				fmt.Println(sc.Description)
			}
			results, err := automation.RunScenario(cmd.Context(), sc, registry, st, log)
			for i, res := range results {
				step := sc.Steps[i]
				saved := step.SaveAs
				if saved == "" {
					saved = "-"
				}
				fmt.Printf("  %d. %s/%s steps=%d saved=%s final=%v\n",
					i+1, step.Config.Model, res.Integrator, res.StepsTaken, saved, res.Final())
			}
			return err
		},
	}
}

func newSweepCmd() *cobra.Command {
	var (
		f      simFlags
		points int
		lo, hi float64
	)
	cmd := &cobra.Command{
		Use:   "sweep [model] [param]",
		Short: "sweep one model parameter over a range",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.resolve(cmd, args[0])
			if err != nil {
				return err
			}
			results, err := automation.RunSweep(cmd.Context(), &automation.ParameterSweep{
				Base:      cfg,
				ParamName: args[1],
				ParamMin:  lo,
				ParamMax:  hi,
				NumSteps:  points,
			}, registry, log)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "%s\tMIN ENERGY\tMAX ENERGY\tFINAL\n", args[1])
			for _, r := range results {
				fmt.Fprintf(w, "%.4g\t%.6g\t%.6g\t%v\n", r.ParamValue, r.MinEnergy, r.MaxEnergy, r.FinalState)
			}
			return w.Flush()
		},
	}
	f.register(cmd, "rk4", 0.01, 10.0)
	cmd.Flags().IntVar(&points, "points", 5, "number of parameter values")
	cmd.Flags().Float64Var(&lo, "min", 0.5, "lowest parameter value")
	cmd.Flags().Float64Var(&hi, "max", 2.0, "highest parameter value")
	return cmd
}

func newMonteCarloCmd() *cobra.Command {
	var (
		f       simFlags
		trials  int
		workers int
		perturb float64
	)
	cmd := &cobra.Command{
		Use:   "montecarlo [model]",
		Short: "run perturbed initial states in parallel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.resolve(cmd, args[0])
			if err != nil {
				return err
			}
			start := time.Now()
			results, err := automation.RunMonteCarlo(cmd.Context(), &automation.MonteCarloConfig{
				Base:         cfg,
				Perturbation: perturb,
				NumTrials:    trials,
				Workers:      workers,
			}, registry)
			if err != nil {
				return err
			}
			stable, unstable := automation.MonteCarloStats(results)
			fmt.Printf("%d trials in %v (seed %d)\n", len(results), time.Since(start), cfg.Seed)
			fmt.Printf("stable: %d\nunstable: %d\n", stable, unstable)
			return nil
		},
	}
	f.register(cmd, "rk4", 0.01, 10.0)
	cmd.Flags().IntVar(&trials, "trials", 100, "number of trials")
	cmd.Flags().IntVar(&workers, "workers", 0, "parallel workers (0 uses GOMAXPROCS)")
	cmd.Flags().Float64Var(&perturb, "perturb", 0.1, "uniform perturbation of every state component")
	return cmd
}

func newLiveCmd() *cobra.Command {
	var f simFlags
	cmd := &cobra.Command{
		Use:   "live [model]",
		Short: "step a simulation with live visualization",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.resolve(cmd, args[0])
			if err != nil {
				return err
			}
			// the terminal belongs to the view
			exp, err := registry.Prepare(cfg, logger.Discard())
			if err != nil {
				return err
			}
			live, err := tui.NewLive(cfg.Model, exp.GetSimulator().Integrator(), exp.InitialState(), cfg.Duration)
			if err != nil {
				return err
			}
			return tui.Run(live)
		},
	}
	f.register(cmd, "rk4", 0.01, 30.0)
	return cmd
}
