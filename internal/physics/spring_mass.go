package physics

import (
	"github.com/san-kum/fixstep/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

const (
	DefaultMass      = 1.0
	DefaultStiffness = 10.0
	DefaultDamping   = 0.5
)

// SpringMass is a chain of masses joined by springs, anchored to a wall on
// the left and, when Stiffness has NumMasses+1 entries, on the right too.
// The state is [positions..., velocities...] and the single input pushes the
// first mass.
type SpringMass struct {
	NumMasses int
	Masses    []float64
	Stiffness []float64
	Damping   []float64
}

func NewSpringMass() *SpringMass {
	return &SpringMass{
		NumMasses: 1,
		Masses:    []float64{DefaultMass},
		Stiffness: []float64{DefaultStiffness},
		Damping:   []float64{DefaultDamping},
	}
}

func NewSpringMassChain(n int) *SpringMass {
	masses := make([]float64, n)
	stiffness := make([]float64, n+1)
	damping := make([]float64, n)

	for i := 0; i < n; i++ {
		masses[i] = DefaultMass
		stiffness[i] = DefaultStiffness
		damping[i] = 0.2
	}
	stiffness[n] = DefaultStiffness

	return &SpringMass{
		NumMasses: n,
		Masses:    masses,
		Stiffness: stiffness,
		Damping:   damping,
	}
}

func (s *SpringMass) StateDim() int   { return s.NumMasses * 2 }
func (s *SpringMass) ControlDim() int { return 1 }

func (s *SpringMass) DefaultState() dynamo.State {
	x := make(dynamo.State, s.StateDim())
	x[0] = 1
	return x
}

func (s *SpringMass) rightWall() bool { return len(s.Stiffness) > s.NumMasses }

func (s *SpringMass) Derive(x dynamo.State, u dynamo.Control, t float64, dx dynamo.State) error {
	n := s.NumMasses
	for i := 0; i < n; i++ {
		dx[i] = x[n+i]
	}

	for i := 0; i < n; i++ {
		pos, vel := x[i], x[n+i]

		var forceLeft, forceRight float64
		if i == 0 {
			forceLeft = -s.Stiffness[0] * pos
		} else {
			forceLeft = -s.Stiffness[i] * (pos - x[i-1])
		}

		if i == n-1 {
			if s.rightWall() {
				forceRight = -s.Stiffness[n] * pos
			}
		} else {
			forceRight = -s.Stiffness[i+1] * (pos - x[i+1])
		}

		totalForce := forceLeft + forceRight - s.Damping[i]*vel
		if i == 0 {
			totalForce += u[0]
		}
		dx[n+i] = totalForce / s.Masses[i]
	}
	return nil
}

func (s *SpringMass) StateJacobian(x dynamo.State, u dynamo.Control, t float64, jac *mat.Dense) error {
	n := s.NumMasses
	jac.Zero()
	for i := 0; i < n; i++ {
		jac.Set(i, n+i, 1)

		m := s.Masses[i]
		diag := -s.Stiffness[i]
		if i > 0 {
			jac.Set(n+i, i-1, s.Stiffness[i]/m)
		}
		if i < n-1 {
			diag -= s.Stiffness[i+1]
			jac.Set(n+i, i+1, s.Stiffness[i+1]/m)
		} else if s.rightWall() {
			diag -= s.Stiffness[n]
		}
		jac.Set(n+i, i, diag/m)
		jac.Set(n+i, n+i, -s.Damping[i]/m)
	}
	return nil
}

func (s *SpringMass) ControlJacobian(x dynamo.State, u dynamo.Control, t float64, jac *mat.Dense) error {
	jac.Zero()
	jac.Set(s.NumMasses, 0, 1/s.Masses[0])
	return nil
}

func (s *SpringMass) Energy(x dynamo.State) float64 {
	n := s.NumMasses
	energy := 0.0

	for i := 0; i < n; i++ {
		v := x[n+i]
		energy += 0.5 * s.Masses[i] * v * v
	}

	for i := 0; i < n; i++ {
		pos := x[i]
		if i == 0 {
			energy += 0.5 * s.Stiffness[0] * pos * pos
		} else {
			stretch := pos - x[i-1]
			energy += 0.5 * s.Stiffness[i] * stretch * stretch
		}
	}

	if s.rightWall() {
		energy += 0.5 * s.Stiffness[n] * x[n-1] * x[n-1]
	}

	return energy
}

// GetParams reports the parameters of the first mass, which are the only
// ones SetParam can change.
func (s *SpringMass) GetParams() map[string]float64 {
	return map[string]float64{
		"mass":      s.Masses[0],
		"stiffness": s.Stiffness[0],
		"damping":   s.Damping[0],
	}
}

func (s *SpringMass) SetParam(name string, value float64) error {
	switch name {
	case "mass":
		if err := positive(name, value); err != nil {
			return err
		}
		s.Masses[0] = value
	case "stiffness":
		if err := nonNegative(name, value); err != nil {
			return err
		}
		s.Stiffness[0] = value
	case "damping":
		if err := nonNegative(name, value); err != nil {
			return err
		}
		s.Damping[0] = value
	default:
		return unknownParam(name)
	}
	return nil
}
