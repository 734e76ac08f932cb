package config

import (
	"fmt"
	"math"
	"os"

	"github.com/san-kum/fixstep/internal/control"
	"github.com/san-kum/fixstep/internal/dynamo"
	"github.com/san-kum/fixstep/internal/integrators"
	"github.com/san-kum/fixstep/internal/logger"
	"gopkg.in/yaml.v3"
)

const (
	DefaultDt       = 0.01
	DefaultDuration = 10.0
)

// Control source kinds.
const (
	ControlZero         = "zero"
	ControlConstant     = "constant"
	ControlSchedule     = "schedule"
	ControlInterpolated = "interpolated"
)

type Config struct {
	Model      string                    `yaml:"model"`
	Integrator string                    `yaml:"integrator"`
	Dt         float64                   `yaml:"dt"`
	Duration   float64                   `yaml:"duration"`
	Seed       int64                     `yaml:"seed,omitempty"`
	InitState  []float64                 `yaml:"init_state,omitempty"`
	Params     map[string]float64        `yaml:"params,omitempty"`
	Control    ControlConfig             `yaml:"control"`
	Newton     integrators.NewtonOptions `yaml:"newton"`
	LogLevel   string                    `yaml:"log_level"`
}

// ControlConfig describes the control input. Constant uses Values[0];
// schedule and interpolated pair Times[i] with Values[i].
type ControlConfig struct {
	Kind   string      `yaml:"kind"`
	Values [][]float64 `yaml:"values,omitempty"`
	Times  []float64   `yaml:"times,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Model:      "pendulum",
		Integrator: "rk4",
		Dt:         DefaultDt,
		Duration:   DefaultDuration,
		Control:    ControlConfig{Kind: ControlZero},
		Newton:     integrators.DefaultNewtonOptions(),
		LogLevel:   "info",
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// LoadInto decodes the file at path over cfg, so a file can refine a preset.
// cfg is left untouched when an error is returned.
func LoadInto(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	out := cfg.Clone()
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := out.Validate(); err != nil {
		return fmt.Errorf("invalid config file %s: %w", path, err)
	}
	*cfg = *out
	return nil
}

// Parse decodes YAML over DefaultConfig and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	out.InitState = append([]float64(nil), c.InitState...)
	if c.Params != nil {
		out.Params = make(map[string]float64, len(c.Params))
		for k, v := range c.Params {
			out.Params[k] = v
		}
	}
	out.Control.Times = append([]float64(nil), c.Control.Times...)
	out.Control.Values = make([][]float64, len(c.Control.Values))
	for i, v := range c.Control.Values {
		out.Control.Values[i] = append([]float64(nil), v...)
	}
	return &out
}

func (c *Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("model cannot be empty")
	}
	if c.Integrator == "" {
		return fmt.Errorf("integrator cannot be empty")
	}
	if !(c.Dt > 0) || math.IsInf(c.Dt, 1) {
		return fmt.Errorf("dt must be positive, got %g", c.Dt)
	}
	if !(c.Duration >= c.Dt) || math.IsInf(c.Duration, 1) {
		return fmt.Errorf("duration must cover at least one step of %g, got %g", c.Dt, c.Duration)
	}
	for i, v := range c.InitState {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("init_state[%d] is not finite", i)
		}
	}
	if err := c.Control.validate(); err != nil {
		return fmt.Errorf("control validation failed: %w", err)
	}
	if err := c.Newton.Validate(); err != nil {
		return fmt.Errorf("newton validation failed: %w", err)
	}
	if !logger.ValidLevel(c.LogLevel) {
		return fmt.Errorf("invalid log_level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}
	return nil
}

func (cc ControlConfig) validate() error {
	switch cc.Kind {
	case "", ControlZero:
		return nil
	case ControlConstant:
		if len(cc.Values) != 1 {
			return fmt.Errorf("constant control needs exactly one value vector, got %d", len(cc.Values))
		}
		return nil
	case ControlSchedule, ControlInterpolated:
		if len(cc.Times) == 0 || len(cc.Times) != len(cc.Values) {
			return fmt.Errorf("%s control needs matching times and values, got %d and %d", cc.Kind, len(cc.Times), len(cc.Values))
		}
		return nil
	default:
		return fmt.Errorf("invalid control kind: %s (must be zero, constant, schedule, or interpolated)", cc.Kind)
	}
}

// ControlInput builds the configured control source for a system with m
// inputs.
func (c *Config) ControlInput(m int) (dynamo.ControlInput, error) {
	cc := c.Control
	values := make([]dynamo.Control, len(cc.Values))
	for i, v := range cc.Values {
		if len(v) != m {
			return nil, fmt.Errorf("%w: control value %d has %d entries, model takes %d", dynamo.ErrDimensionMismatch, i, len(v), m)
		}
		values[i] = dynamo.Control(v)
	}

	switch cc.Kind {
	case "", ControlZero:
		return control.NewZero(m), nil
	case ControlConstant:
		if len(values) != 1 {
			return nil, fmt.Errorf("constant control needs exactly one value vector")
		}
		return control.NewConstant(values[0]), nil
	case ControlSchedule:
		return control.NewSchedule(cc.Times, values)
	case ControlInterpolated:
		return control.NewInterpolated(cc.Times, values)
	default:
		return nil, fmt.Errorf("invalid control kind: %s", cc.Kind)
	}
}

// ApplyParams sets every configured parameter on a configurable system.
func (c *Config) ApplyParams(sys dynamo.System) error {
	if len(c.Params) == 0 {
		return nil
	}
	cs, ok := sys.(dynamo.Configurable)
	if !ok {
		return fmt.Errorf("model %s has no tunable parameters", c.Model)
	}
	for name, v := range c.Params {
		if err := cs.SetParam(name, v); err != nil {
			return fmt.Errorf("param %s: %w", name, err)
		}
	}
	return nil
}
