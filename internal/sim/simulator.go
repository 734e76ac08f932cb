package sim

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/san-kum/fixstep/internal/dynamo"
	"github.com/san-kum/fixstep/internal/integrators"
)

type Simulator struct {
	integ     integrators.Integrator
	metrics   []Metric
	observers []Observer
	log       *slog.Logger
}

func New(integ integrators.Integrator) *Simulator {
	return &Simulator{
		integ:     integ,
		metrics:   make([]Metric, 0),
		observers: make([]Observer, 0),
		log:       slog.New(slog.DiscardHandler),
	}
}

func (s *Simulator) AddMetric(m Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o Observer) { s.observers = append(s.observers, o) }

func (s *Simulator) SetLogger(l *slog.Logger) {
	if l != nil {
		s.log = l
	}
}

func (s *Simulator) Integrator() integrators.Integrator { return s.integ }

// Run integrates from x0 over cfg and records every accepted state. On an
// integrator failure the partial result is returned together with a
// *SimulationError. Cancellation returns the partial result and ctx.Err().
func (s *Simulator) Run(ctx context.Context, x0 dynamo.State, cfg Config) (*Result, error) {
	if err := s.validateConfig(x0, cfg); err != nil {
		return nil, err
	}

	steps := cfg.Steps()
	m := s.integ.System().ControlDim()
	result := &Result{
		Integrator: s.integ.Info().Name,
		States:     make([]dynamo.State, 0, steps+1),
		Controls:   make([]dynamo.Control, 0, steps),
		Times:      make([]float64, 0, steps+1),
		Metrics:    make(map[string]float64),
	}

	for _, mt := range s.metrics {
		mt.Reset()
	}
	before := s.integ.Stats()

	x := x0.Clone()
	next := make(dynamo.State, len(x))
	t := cfg.T0
	dt := cfg.Dt

	result.States = append(result.States, x.Clone())
	result.Times = append(result.Times, t)

	initialEnergy := s.computeEnergy(x)
	s.log.Info("simulation started", "integrator", result.Integrator, "dt", dt, "steps", steps)

	var runErr error
	observed := false
	for i := 0; i < steps; i++ {
		select {
		case <-ctx.Done():
			runErr = ctx.Err()
		default:
		}
		if runErr != nil {
			break
		}

		u := make(dynamo.Control, m)
		if err := s.integ.ControlInput().Control(t, u); err != nil {
			runErr = &SimulationError{Step: i, Time: t, State: x.Clone(), Wrapped: err}
			break
		}

		for _, mt := range s.metrics {
			mt.Observe(x, u, t)
		}
		observed = true
		for _, obs := range s.observers {
			obs.OnStep(x, u, t)
		}

		if err := s.integ.Step(t, dt, x, next); err != nil {
			runErr = &SimulationError{Step: i, Time: t, State: x.Clone(), Wrapped: err}
			break
		}
		if cfg.ValidateState && !next.IsValid() {
			runErr = &SimulationError{Step: i, Time: t, State: x.Clone(), Wrapped: dynamo.ErrInvalidState}
			break
		}

		x, next = next, x
		t = cfg.T0 + float64(i+1)*dt
		result.StepsTaken++
		observed = false

		result.States = append(result.States, x.Clone())
		result.Controls = append(result.Controls, u)
		result.Times = append(result.Times, t)
	}

	// metrics see every recorded state, so the last interval is closed too
	if !observed {
		u := make(dynamo.Control, m)
		if err := s.integ.ControlInput().Control(t, u); err == nil {
			for _, mt := range s.metrics {
				mt.Observe(x, u, t)
			}
		}
	}

	finalEnergy := s.computeEnergy(x)
	if initialEnergy != 0 {
		result.EnergyDrift = math.Abs(finalEnergy-initialEnergy) / math.Abs(initialEnergy)
	}

	for _, mt := range s.metrics {
		result.Metrics[mt.Name()] = mt.Value()
	}
	result.Stats = statsSince(before, s.integ.Stats())

	if runErr != nil {
		s.log.Warn("simulation stopped", "steps", result.StepsTaken, "error", runErr)
		return result, runErr
	}
	s.log.Info("simulation finished", "steps", result.StepsTaken, "evaluations", result.Stats.Evaluations)
	return result, nil
}

func (s *Simulator) validateConfig(x0 dynamo.State, cfg Config) error {
	if !(cfg.Dt > 0) || math.IsInf(cfg.Dt, 1) {
		return fmt.Errorf("dt must be positive, got %f", cfg.Dt)
	}
	if !(cfg.Duration > 0) || math.IsInf(cfg.Duration, 1) {
		return fmt.Errorf("duration must be positive, got %f", cfg.Duration)
	}
	if cfg.Steps() < 1 {
		return fmt.Errorf("duration %g is shorter than one step of %g", cfg.Duration, cfg.Dt)
	}
	if err := dynamo.CheckState(s.integ.System(), "initial state", x0); err != nil {
		return err
	}
	if !x0.IsValid() {
		return fmt.Errorf("initial state: %w", dynamo.ErrInvalidState)
	}
	return s.integ.SetStepSize(cfg.Dt)
}

func (s *Simulator) computeEnergy(x dynamo.State) float64 {
	if ec, ok := s.integ.System().(dynamo.Hamiltonian); ok {
		return ec.Energy(x)
	}
	return 0
}

// RunWithCallback steps without recording. The callback sees each state
// before it is advanced and stops the run by returning false.
func (s *Simulator) RunWithCallback(ctx context.Context, x0 dynamo.State, cfg Config, callback func(dynamo.State, dynamo.Control, float64) bool) error {
	if err := s.validateConfig(x0, cfg); err != nil {
		return err
	}

	x := x0.Clone()
	u := make(dynamo.Control, s.integ.System().ControlDim())
	dt := cfg.Dt

	for i := 0; i < cfg.Steps(); i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		t := cfg.T0 + float64(i)*dt
		if err := s.integ.ControlInput().Control(t, u); err != nil {
			return &SimulationError{Step: i, Time: t, State: x.Clone(), Wrapped: err}
		}
		if !callback(x, u, t) {
			return nil
		}

		if err := s.integ.Step(t, dt, x, x); err != nil {
			return &SimulationError{Step: i, Time: t, State: x.Clone(), Wrapped: err}
		}
		if cfg.ValidateState && !x.IsValid() {
			return fmt.Errorf("invalid state at t=%.4f: %w", t+dt, dynamo.ErrInvalidState)
		}
	}

	return nil
}

func statsSince(before, after integrators.Stats) integrators.Stats {
	return integrators.Stats{
		Steps:               after.Steps - before.Steps,
		Evaluations:         after.Evaluations - before.Evaluations,
		JacobianEvaluations: after.JacobianEvaluations - before.JacobianEvaluations,
		NewtonIterations:    after.NewtonIterations - before.NewtonIterations,
		Failures:            after.Failures - before.Failures,
		LastTime:            after.LastTime,
	}
}
