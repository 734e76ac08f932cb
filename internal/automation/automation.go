package automation

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"os"

	"github.com/san-kum/fixstep/internal/config"
	"github.com/san-kum/fixstep/internal/dynamo"
	"github.com/san-kum/fixstep/internal/experiment"
	"github.com/san-kum/fixstep/internal/integrators"
	"github.com/san-kum/fixstep/internal/sim"
	"gopkg.in/yaml.v3"
)

// Scenario defines a scripted simulation sequence
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []ScenarioStep `yaml:"steps"`
}

// ScenarioStep is one run of a scenario. Its keys are those of a config
// file plus an optional preset, which supplies the values the step leaves
// out, and save_as, which names the stored run.
type ScenarioStep struct {
	Preset string
	SaveAs string
	Config *config.Config
}

func (s *ScenarioStep) UnmarshalYAML(value *yaml.Node) error {
	var head struct {
		Model  string `yaml:"model"`
		Preset string `yaml:"preset"`
		SaveAs string `yaml:"save_as"`
	}
	if err := value.Decode(&head); err != nil {
		return err
	}

	cfg := config.DefaultConfig()
	if head.Preset != "" {
		cfg = config.GetPreset(head.Model, head.Preset)
		if cfg == nil {
			return fmt.Errorf("unknown preset %s for model %s", head.Preset, head.Model)
		}
	}
	if err := value.Decode(cfg); err != nil {
		return err
	}

	s.Preset = head.Preset
	s.SaveAs = head.SaveAs
	s.Config = cfg
	return nil
}

// Saver persists a finished scenario step.
type Saver interface {
	SaveAs(runID string, cfg *config.Config, result *sim.Result) error
}

// LoadScenario loads a scenario from a YAML file
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file %s: %w", path, err)
	}
	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse scenario file %s: %w", path, err)
	}
	return scenario, nil
}

func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, err
	}
	if len(scenario.Steps) == 0 {
		return nil, fmt.Errorf("scenario %q has no steps", scenario.Name)
	}
	for i, step := range scenario.Steps {
		if err := step.Config.Validate(); err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	return &scenario, nil
}

// RunScenario executes all steps in order and stops at the first failure,
// returning the results gathered so far. Steps with save_as are handed to
// saver when it is non-nil.
func RunScenario(ctx context.Context, scenario *Scenario, registry *experiment.Registry, saver Saver, log *slog.Logger) ([]*sim.Result, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	results := make([]*sim.Result, 0, len(scenario.Steps))

	for i, step := range scenario.Steps {
		log.Info("running scenario step", "scenario", scenario.Name, "step", i+1, "of", len(scenario.Steps),
			"model", step.Config.Model, "integrator", step.Config.Integrator)

		exp, err := registry.Prepare(step.Config, log)
		if err != nil {
			return results, fmt.Errorf("step %d setup: %w", i+1, err)
		}
		result, err := exp.Run(ctx)
		if err != nil {
			return results, fmt.Errorf("step %d run: %w", i+1, err)
		}
		results = append(results, result)

		if step.SaveAs != "" && saver != nil {
			if err := saver.SaveAs(step.SaveAs, step.Config, result); err != nil {
				return results, fmt.Errorf("step %d save: %w", i+1, err)
			}
		}
	}

	return results, nil
}

// ParameterSweep runs simulations across a range of parameter values
type ParameterSweep struct {
	Base      *config.Config
	ParamName string
	ParamMin  float64
	ParamMax  float64
	NumSteps  int
}

// SweepResult holds results from a parameter sweep
type SweepResult struct {
	ParamValue float64
	FinalState dynamo.State
	MaxEnergy  float64
	MinEnergy  float64
}

// RunSweep executes a parameter sweep
func RunSweep(ctx context.Context, sweep *ParameterSweep, registry *experiment.Registry, log *slog.Logger) ([]SweepResult, error) {
	if sweep.NumSteps < 2 {
		return nil, fmt.Errorf("sweep needs at least 2 points, got %d", sweep.NumSteps)
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	results := make([]SweepResult, 0, sweep.NumSteps)
	paramStep := (sweep.ParamMax - sweep.ParamMin) / float64(sweep.NumSteps-1)

	for i := 0; i < sweep.NumSteps; i++ {
		paramVal := sweep.ParamMin + float64(i)*paramStep

		cfg := sweep.Base.Clone()
		if cfg.Params == nil {
			cfg.Params = make(map[string]float64)
		}
		cfg.Params[sweep.ParamName] = paramVal

		exp, err := registry.Prepare(cfg, log)
		if err != nil {
			return results, fmt.Errorf("%s=%g: %w", sweep.ParamName, paramVal, err)
		}
		result, err := exp.Run(ctx)
		if err != nil {
			return results, fmt.Errorf("%s=%g: %w", sweep.ParamName, paramVal, err)
		}

		sr := SweepResult{ParamValue: paramVal, FinalState: result.Final()}
		if h, ok := exp.GetSimulator().Integrator().System().(dynamo.Hamiltonian); ok {
			sr.MinEnergy, sr.MaxEnergy = math.Inf(1), math.Inf(-1)
			for _, s := range result.States {
				e := h.Energy(s)
				sr.MinEnergy = math.Min(sr.MinEnergy, e)
				sr.MaxEnergy = math.Max(sr.MaxEnergy, e)
			}
		}
		results = append(results, sr)

		log.Debug("sweep point done", "param", sweep.ParamName, "value", paramVal, "point", i+1, "of", sweep.NumSteps)
	}

	return results, nil
}

// MonteCarloConfig defines Monte Carlo simulation parameters
type MonteCarloConfig struct {
	Base         *config.Config
	Perturbation float64
	NumTrials    int
	Workers      int
}

// MonteCarloResult holds statistics from Monte Carlo runs
type MonteCarloResult struct {
	TrialID    int
	InitState  dynamo.State
	FinalState dynamo.State
	Stable     bool // Did simulation remain bounded?
}

// RunMonteCarlo perturbs the base initial state uniformly within
// ±Perturbation and runs every trial through a sim.Ensemble. The draws are
// reproducible for a fixed Base.Seed. A trial that blows up is reported as
// unstable; an integrator failure aborts the whole batch.
func RunMonteCarlo(ctx context.Context, cfg *MonteCarloConfig, registry *experiment.Registry) ([]MonteCarloResult, error) {
	base := cfg.Base
	if err := base.Validate(); err != nil {
		return nil, err
	}
	if cfg.NumTrials < 1 {
		return nil, fmt.Errorf("monte carlo needs at least one trial")
	}

	factory := func() (integrators.Integrator, error) {
		dyn, err := registry.GetModel(base.Model)
		if err != nil {
			return nil, err
		}
		if err := base.ApplyParams(dyn); err != nil {
			return nil, err
		}
		integ, err := registry.GetIntegrator(base.Integrator, dyn, base.Dt, base.Newton)
		if err != nil {
			return nil, err
		}
		controls, err := base.ControlInput(dyn.ControlDim())
		if err != nil {
			return nil, err
		}
		return integ, integ.SetControlInput(controls)
	}

	sample, err := factory()
	if err != nil {
		return nil, err
	}
	x0 := dynamo.State(base.InitState)
	if len(x0) == 0 {
		d, ok := sample.System().(interface{ DefaultState() dynamo.State })
		if !ok {
			return nil, fmt.Errorf("model %s needs an explicit initial state", base.Model)
		}
		x0 = d.DefaultState()
	}

	rng := rand.New(rand.NewSource(base.Seed))
	inits := make([]dynamo.State, cfg.NumTrials)
	for trial := range inits {
		s := make(dynamo.State, len(x0))
		for i, v := range x0 {
			s[i] = v + (rng.Float64()-0.5)*2*cfg.Perturbation
		}
		inits[trial] = s
	}

	ens := sim.NewEnsemble(factory).WithWorkers(cfg.Workers)
	runs, err := ens.Run(ctx, inits, sim.Config{Dt: base.Dt, Duration: base.Duration})
	if err != nil {
		return nil, err
	}

	results := make([]MonteCarloResult, cfg.NumTrials)
	for trial, res := range runs {
		final := res.Final()
		results[trial] = MonteCarloResult{
			TrialID:    trial,
			InitState:  inits[trial],
			FinalState: final,
			Stable:     bounded(final),
		}
	}
	return results, nil
}

func bounded(x dynamo.State) bool {
	for _, v := range x {
		if math.IsNaN(v) || math.Abs(v) > experiment.StabilityThreshold {
			return false
		}
	}
	return len(x) > 0
}

// MonteCarloStats computes summary statistics from Monte Carlo results
func MonteCarloStats(results []MonteCarloResult) (stableCount int, unstableCount int) {
	for _, r := range results {
		if r.Stable {
			stableCount++
		} else {
			unstableCount++
		}
	}
	return
}
