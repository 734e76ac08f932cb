package physics

import (
	"math"

	"github.com/san-kum/fixstep/internal/dynamo"
)

// CartPole is the classic inverted pendulum on a cart, state
// [pos, vel, theta, omega] and a horizontal force on the cart. It has no
// analytic Jacobian: wrap it in dynamo.FiniteDifference for implicit schemes.
type CartPole struct {
	CartMass   float64
	PoleMass   float64
	PoleLength float64
	Gravity    float64
}

func NewCartPole() *CartPole {
	return &CartPole{
		CartMass:   1.0,
		PoleMass:   0.1,
		PoleLength: 1.0,
		Gravity:    9.81,
	}
}

func (c *CartPole) StateDim() int {
	return 4
}

func (c *CartPole) ControlDim() int {
	return 1
}

func (c *CartPole) DefaultState() dynamo.State { return dynamo.State{0, 0, 0.1, 0} }

func (c *CartPole) Derive(x dynamo.State, u dynamo.Control, t float64, dx dynamo.State) error {
	vel := x[1]
	theta := x[2]
	omega := x[3]
	force := u[0]

	mc := c.CartMass
	mp := c.PoleMass
	l := c.PoleLength
	g := c.Gravity

	sint := math.Sin(theta)
	cost := math.Cos(theta)

	temp := (force + mp*l*omega*omega*sint) / (mc + mp)
	thetaacc := (g*sint - cost*temp) / (l * (4.0/3.0 - mp*cost*cost/(mc+mp)))
	xacc := temp - mp*l*thetaacc*cost/(mc+mp)

	dx[0] = vel
	dx[1] = xacc
	dx[2] = omega
	dx[3] = thetaacc
	return nil
}

func (c *CartPole) GetParams() map[string]float64 {
	return map[string]float64{
		"cart_mass":   c.CartMass,
		"pole_mass":   c.PoleMass,
		"pole_length": c.PoleLength,
		"gravity":     c.Gravity,
	}
}

func (c *CartPole) SetParam(name string, value float64) error {
	switch name {
	case "cart_mass":
		if err := positive(name, value); err != nil {
			return err
		}
		c.CartMass = value
	case "pole_mass":
		if err := positive(name, value); err != nil {
			return err
		}
		c.PoleMass = value
	case "pole_length":
		if err := positive(name, value); err != nil {
			return err
		}
		c.PoleLength = value
	case "gravity":
		if err := finite(name, value); err != nil {
			return err
		}
		c.Gravity = value
	default:
		return unknownParam(name)
	}
	return nil
}
