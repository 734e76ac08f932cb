package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/san-kum/fixstep/internal/config"
	"github.com/san-kum/fixstep/internal/integrators"
	"github.com/san-kum/fixstep/internal/logger"
	"github.com/spf13/cobra"
)

// simFlags are the flags shared by every command that builds a simulation
// from a model name. Each command owns its own set so defaults can differ.
type simFlags struct {
	integrator string
	dt         float64
	duration   float64
	seed       int64
	state      []float64
	control    []float64
	params     map[string]string
	tol        float64
	maxIter    int
	configFile string
	preset     string
}

func (f *simFlags) register(cmd *cobra.Command, integ string, dt, duration float64) {
	newton := integrators.DefaultNewtonOptions()
	fs := cmd.Flags()
	fs.StringVar(&f.integrator, "integrator", integ, "integrator (rk4, heun, euler, verlet, trapezoidal)")
	fs.Float64Var(&f.dt, "dt", dt, "timestep")
	fs.Float64Var(&f.duration, "time", duration, "duration")
	fs.Int64Var(&f.seed, "seed", 0, "random seed")
	fs.Float64SliceVar(&f.state, "state", nil, "initial state, comma separated")
	fs.Float64SliceVar(&f.control, "control", nil, "constant control, comma separated")
	fs.StringToStringVar(&f.params, "param", nil, "model parameter name=value")
	fs.Float64Var(&f.tol, "tol", newton.Tolerance, "newton residual tolerance")
	fs.IntVar(&f.maxIter, "max-iter", newton.MaxIterations, "newton iteration limit")
	fs.StringVar(&f.configFile, "config", "", "config file path (yaml)")
	fs.StringVar(&f.preset, "preset", "", "use preset configuration")
}

// resolve builds the config for model. A preset replaces the flag defaults,
// a config file refines the preset, and flags set explicitly win over both.
func (f *simFlags) resolve(cmd *cobra.Command, model string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	cfg.Model = model
	cfg.Integrator = f.integrator
	cfg.Dt = f.dt
	cfg.Duration = f.duration

	if f.preset != "" {
		p := config.GetPreset(model, f.preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", f.preset, config.ListPresets(model))
		}
		cfg = p
	}

	if f.configFile != "" {
		if err := config.LoadInto(f.configFile, cfg); err != nil {
			return nil, err
		}
		if cfg.Model != model {
			return nil, fmt.Errorf("config file %s is for model %s, not %s", f.configFile, cfg.Model, model)
		}
	}

	changed := cmd.Flags().Changed
	if changed("integrator") {
		cfg.Integrator = f.integrator
	}
	if changed("dt") {
		cfg.Dt = f.dt
	}
	if changed("time") {
		cfg.Duration = f.duration
	}
	if changed("seed") {
		cfg.Seed = f.seed
	}
	if changed("state") {
		cfg.InitState = append([]float64(nil), f.state...)
	}
	if changed("control") {
		cfg.Control = config.ControlConfig{
			Kind:   config.ControlConstant,
			Values: [][]float64{append([]float64(nil), f.control...)},
		}
	}
	if changed("param") {
		if cfg.Params == nil {
			cfg.Params = make(map[string]float64, len(f.params))
		}
		for name, raw := range f.params {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("param %s: %w", name, err)
			}
			cfg.Params[name] = v
		}
	}
	if changed("tol") {
		cfg.Newton.Tolerance = f.tol
	}
	if changed("max-iter") {
		cfg.Newton.MaxIterations = f.maxIter
	}

	// a config file may ask for a different level unless the flag was given
	if cfg.LogLevel != "" && cfg.LogLevel != logLevel && !changed("log-level") {
		log = logger.NewPretty(cfg.LogLevel, os.Stderr)
		logger.SetDefault(log)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
