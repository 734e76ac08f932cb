package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/san-kum/fixstep/internal/config"
	"github.com/san-kum/fixstep/internal/experiment"
	"github.com/san-kum/fixstep/internal/logger"
	"github.com/spf13/cobra"
)

var (
	dataDir  string
	logLevel string

	log      *slog.Logger
	registry = experiment.NewRegistry()
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "fixstep",
		Short:        "fixed-step integration and collocation lab",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !logger.ValidLevel(logLevel) {
				return fmt.Errorf("invalid log level: %s", logLevel)
			}
			log = logger.NewPretty(logLevel, os.Stderr)
			logger.SetDefault(log)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".fixstep", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newRunCmd(),
		newListCmd(),
		newPlotCmd(),
		newExportJSONCmd(),
		newCompareCmd(),
		newOrderCmd(),
		newCollocateCmd(),
		newTranscribeCmd(),
		newScenarioCmd(),
		newSweepCmd(),
		newMonteCarloCmd(),
		newLiveCmd(),
		newPresetsCmd(),
		newModelsCmd(),
	)
	return rootCmd
}

func newPresetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets [model]",
		Short: "list available presets for a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			presets := config.ListPresets(args[0])
			if len(presets) == 0 {
				fmt.Printf("no presets for model: %s\n", args[0])
				return nil
			}
			fmt.Printf("presets for %s:\n", args[0])
			for _, p := range presets {
				cfg := config.GetPreset(args[0], p)
				fmt.Printf("  %-12s %s dt=%g time=%g control=%s\n", p, cfg.Integrator, cfg.Dt, cfg.Duration, cfg.Control.Kind)
			}
			return nil
		},
	}
}

func newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "list models and integrators",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("models:")
			for _, name := range registry.ListModels() {
				dyn, err := registry.GetModel(name)
				if err != nil {
					return err
				}
				fmt.Printf("  %-14s n=%d m=%d\n", name, dyn.StateDim(), dyn.ControlDim())
			}
			fmt.Println("integrators:")
			for _, name := range registry.ListIntegrators() {
				fmt.Printf("  %s\n", name)
			}
			return nil
		},
	}
}
