package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/fixstep/internal/dynamo"
	"github.com/san-kum/fixstep/internal/integrators"
	"github.com/san-kum/fixstep/internal/metrics"
	"github.com/san-kum/fixstep/internal/physics"
	"github.com/san-kum/fixstep/internal/sim"
)

// IntegratorFactory binds a scheme to a system and step size.
type IntegratorFactory func(dyn dynamo.System, dt float64, opts integrators.NewtonOptions) (integrators.Integrator, error)

// StabilityThreshold is the state magnitude the default stability metric
// treats as a blow-up.
const StabilityThreshold = 1e6

type Registry struct {
	models      map[string]func() dynamo.System
	integrators map[string]IntegratorFactory
}

func NewRegistry() *Registry {
	r := &Registry{
		models:      make(map[string]func() dynamo.System),
		integrators: make(map[string]IntegratorFactory),
	}

	r.models["pendulum"] = func() dynamo.System { return physics.NewPendulum() }
	r.models["cartpole"] = func() dynamo.System { return physics.NewCartPole() }
	r.models["spring_mass"] = func() dynamo.System { return physics.NewSpringMass() }
	r.models["spring_chain"] = func() dynamo.System { return physics.NewSpringMassChain(3) }
	r.models["vanderpol"] = func() dynamo.System { return physics.NewVanDerPol() }
	r.models["lorenz"] = func() dynamo.System { return physics.NewLorenz() }
	r.models["decay"] = func() dynamo.System { return physics.NewDecay(1) }

	r.integrators["rk4"] = func(dyn dynamo.System, dt float64, _ integrators.NewtonOptions) (integrators.Integrator, error) {
		return integrators.NewRK4(dyn, dt)
	}
	r.integrators["heun"] = func(dyn dynamo.System, dt float64, _ integrators.NewtonOptions) (integrators.Integrator, error) {
		return integrators.NewHeun(dyn, dt)
	}
	r.integrators["euler"] = func(dyn dynamo.System, dt float64, _ integrators.NewtonOptions) (integrators.Integrator, error) {
		return integrators.NewForwardEuler(dyn, dt)
	}
	r.integrators["verlet"] = func(dyn dynamo.System, dt float64, _ integrators.NewtonOptions) (integrators.Integrator, error) {
		return integrators.NewVerlet(dyn, dt)
	}
	r.integrators["trapezoidal"] = func(dyn dynamo.System, dt float64, opts integrators.NewtonOptions) (integrators.Integrator, error) {
		return integrators.NewImplicitTrapezoidal(Differentiable(dyn), dt, opts)
	}

	return r
}

// Differentiable returns dyn itself when it provides analytic Jacobians and
// a central-difference wrapper otherwise.
func Differentiable(dyn dynamo.System) dynamo.DifferentiableSystem {
	if d, ok := dyn.(dynamo.DifferentiableSystem); ok {
		return d
	}
	return dynamo.NewFiniteDifference(dyn, dynamo.DefaultDifferenceStep)
}

func (r *Registry) GetModel(name string) (dynamo.System, error) {
	fn, ok := r.models[name]
	if !ok {
		return nil, fmt.Errorf("unknown model: %s", name)
	}
	return fn(), nil
}

func (r *Registry) GetIntegrator(name string, dyn dynamo.System, dt float64, opts integrators.NewtonOptions) (integrators.Integrator, error) {
	fn, ok := r.integrators[name]
	if !ok {
		return nil, fmt.Errorf("unknown integrator: %s", name)
	}
	return fn(dyn, dt, opts)
}

func (r *Registry) ListModels() []string {
	return sortedKeys(r.models)
}

func (r *Registry) ListIntegrators() []string {
	return sortedKeys(r.integrators)
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultMetrics picks the metrics that make sense for the run: energy
// tracking for Hamiltonian systems, control effort for driven ones, and the
// collocation defect for schemes that expose their constraint.
func (r *Registry) DefaultMetrics(integ integrators.Integrator) []sim.Metric {
	dyn := integ.System()
	ms := []sim.Metric{metrics.NewStability(StabilityThreshold)}
	if _, ok := dyn.(dynamo.Hamiltonian); ok {
		ms = append(ms, metrics.NewEnergy(dyn), metrics.NewEnergyDrift(dyn))
	}
	if dyn.ControlDim() > 0 {
		ms = append(ms, metrics.NewControlEffort())
	}
	if col, ok := integ.(integrators.Collocator); ok {
		ms = append(ms, metrics.NewDefect(col))
	}
	return ms
}
