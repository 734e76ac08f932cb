package experiment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/san-kum/fixstep/internal/config"
	"github.com/san-kum/fixstep/internal/dynamo"
	"github.com/san-kum/fixstep/internal/integrators"
	"github.com/san-kum/fixstep/internal/sim"
)

type defaulted interface {
	DefaultState() dynamo.State
}

type Experiment struct {
	cfg       *config.Config
	x0        dynamo.State
	simulator *sim.Simulator
	log       *slog.Logger
}

func New(cfg *config.Config) *Experiment {
	return &Experiment{
		cfg: cfg,
		log: slog.New(slog.DiscardHandler),
	}
}

func (e *Experiment) SetLogger(l *slog.Logger) {
	if l != nil {
		e.log = l
	}
}

// Setup binds the experiment to an integrator. The initial state comes from
// the config, falling back to the model's default state.
func (e *Experiment) Setup(integ integrators.Integrator, metrics []sim.Metric) error {
	dyn := integ.System()
	switch {
	case len(e.cfg.InitState) > 0:
		e.x0 = dynamo.State(e.cfg.InitState).Clone()
	default:
		d, ok := dyn.(defaulted)
		if !ok {
			return fmt.Errorf("model %s needs an explicit initial state", e.cfg.Model)
		}
		e.x0 = d.DefaultState()
	}
	if err := dynamo.CheckState(dyn, "initial state", e.x0); err != nil {
		return err
	}

	integ.SetLogger(e.log)
	e.simulator = sim.New(integ)
	e.simulator.SetLogger(e.log)
	for _, m := range metrics {
		e.simulator.AddMetric(m)
	}
	return nil
}

func (e *Experiment) Run(ctx context.Context) (*sim.Result, error) {
	if e.simulator == nil {
		return nil, fmt.Errorf("experiment not setup")
	}

	simCfg := sim.Config{
		Dt:            e.cfg.Dt,
		Duration:      e.cfg.Duration,
		ValidateState: true,
	}
	return e.simulator.Run(ctx, e.x0, simCfg)
}

func (e *Experiment) Config() *config.Config { return e.cfg }

func (e *Experiment) InitialState() dynamo.State { return e.x0.Clone() }

// GetSimulator returns the underlying simulator for adding observers
func (e *Experiment) GetSimulator() *sim.Simulator {
	return e.simulator
}

// Prepare resolves a validated config against the registry: it builds the
// model, applies parameters, binds the integrator and control input, and
// attaches the default metrics.
func (r *Registry) Prepare(cfg *config.Config, log *slog.Logger) (*Experiment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	dyn, err := r.GetModel(cfg.Model)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyParams(dyn); err != nil {
		return nil, err
	}
	integ, err := r.GetIntegrator(cfg.Integrator, dyn, cfg.Dt, cfg.Newton)
	if err != nil {
		return nil, err
	}
	controls, err := cfg.ControlInput(dyn.ControlDim())
	if err != nil {
		return nil, err
	}
	if err := integ.SetControlInput(controls); err != nil {
		return nil, err
	}

	exp := New(cfg)
	exp.SetLogger(log)
	if err := exp.Setup(integ, r.DefaultMetrics(integ)); err != nil {
		return nil, err
	}
	return exp, nil
}
