package config

import (
	"sort"

	"github.com/san-kum/fixstep/internal/integrators"
)

func preset(model, integ string, dt, duration float64, x0 ...float64) *Config {
	return &Config{
		Model:      model,
		Integrator: integ,
		Dt:         dt,
		Duration:   duration,
		InitState:  x0,
		Control:    ControlConfig{Kind: ControlZero},
		Newton:     integrators.DefaultNewtonOptions(),
		LogLevel:   "info",
	}
}

func withControl(cfg *Config, cc ControlConfig) *Config {
	cfg.Control = cc
	return cfg
}

func withParams(cfg *Config, params map[string]float64) *Config {
	cfg.Params = params
	return cfg
}

var Presets = map[string]map[string]*Config{
	"pendulum": {
		"small":    preset("pendulum", "rk4", 0.01, 20.0, 0.2, 0.0),
		"large":    preset("pendulum", "rk4", 0.01, 20.0, 2.5, 0.0),
		"spinning": preset("pendulum", "rk4", 0.01, 30.0, 0.1, 8.0),
		"driven": withControl(preset("pendulum", "trapezoidal", 0.02, 20.0, 0.0, 0.0),
			ControlConfig{Kind: ControlSchedule, Times: []float64{0, 5, 10}, Values: [][]float64{{2}, {-2}, {0}}}),
	},
	"cartpole": {
		"freefall": preset("cartpole", "rk4", 0.01, 10.0, 0.0, 0.0, 0.1, 0.0),
		"push": withControl(preset("cartpole", "rk4", 0.01, 5.0, 0.0, 0.0, 0.1, 0.0),
			ControlConfig{Kind: ControlConstant, Values: [][]float64{{1}}}),
	},
	"spring_mass": {
		"bounce": preset("spring_mass", "verlet", 0.01, 20.0, 2.0, 0.0),
		"fast":   preset("spring_mass", "rk4", 0.01, 10.0, 1.0, 5.0),
		"ramp": withControl(preset("spring_mass", "trapezoidal", 0.01, 10.0, 0.0, 0.0),
			ControlConfig{Kind: ControlInterpolated, Times: []float64{0, 5}, Values: [][]float64{{0}, {10}}}),
	},
	"vanderpol": {
		"limit_cycle": preset("vanderpol", "rk4", 0.01, 30.0, 2.0, 0.0),
		"stiff": withParams(preset("vanderpol", "trapezoidal", 0.01, 20.0, 2.0, 0.0),
			map[string]float64{"mu": 50}),
	},
	"lorenz": {
		"butterfly": preset("lorenz", "rk4", 0.005, 40.0, 1.0, 1.0, 1.0),
	},
	"decay": {
		"unit": preset("decay", "trapezoidal", 0.1, 5.0, 1.0),
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(model, preset string) *Config {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	cfg, ok := modelPresets[preset]
	if !ok {
		return nil
	}
	return cfg.Clone()
}

func ListPresets(model string) []string {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(modelPresets))
	for name := range modelPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
