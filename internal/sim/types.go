package sim

import (
	"fmt"

	"github.com/san-kum/fixstep/internal/dynamo"
	"github.com/san-kum/fixstep/internal/integrators"
)

type Metric interface {
	Name() string
	Observe(x dynamo.State, u dynamo.Control, t float64)
	Value() float64
	Reset()
}

type Observer interface {
	OnStep(x dynamo.State, u dynamo.Control, t float64)
}

type Config struct {
	T0            float64
	Dt            float64
	Duration      float64
	ValidateState bool
}

func DefaultConfig() Config {
	return Config{
		Dt:            0.01,
		Duration:      10.0,
		ValidateState: true,
	}
}

// Steps is the number of whole steps of Dt that fit in Duration.
func (c Config) Steps() int {
	return int(c.Duration/c.Dt + 1e-9)
}

type Result struct {
	Integrator  string
	States      []dynamo.State
	Controls    []dynamo.Control
	Times       []float64
	Metrics     map[string]float64
	EnergyDrift float64
	StepsTaken  int
	Stats       integrators.Stats
}

// Final returns the last recorded state.
func (r *Result) Final() dynamo.State {
	if len(r.States) == 0 {
		return nil
	}
	return r.States[len(r.States)-1]
}

// SimulationError reports the step at which a run stopped. State is the last
// accepted state, from which the failing step started.
type SimulationError struct {
	Step    int
	Time    float64
	State   dynamo.State
	Wrapped error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("sim: step %d at t=%.4f: %v", e.Step, e.Time, e.Wrapped)
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}
