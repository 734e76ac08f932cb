package control

import (
	"fmt"
	"math"
	"sort"

	"github.com/san-kum/fixstep/internal/dynamo"
)

// knotSlack absorbs round-off when a step lands on a knot computed as t0 + k*dT.
const knotSlack = 1e-9

type knots struct {
	times  []float64
	values []dynamo.Control
	width  int
}

func newKnots(times []float64, values []dynamo.Control) (knots, error) {
	if len(times) == 0 {
		return knots{}, fmt.Errorf("control: schedule needs at least one knot")
	}
	if len(times) != len(values) {
		return knots{}, fmt.Errorf("control: %d knot times but %d values", len(times), len(values))
	}
	width := len(values[0])
	k := knots{
		times:  make([]float64, len(times)),
		values: make([]dynamo.Control, len(values)),
		width:  width,
	}
	for i := range times {
		if math.IsNaN(times[i]) || math.IsInf(times[i], 0) {
			return knots{}, fmt.Errorf("control: knot %d time is not finite", i)
		}
		if i > 0 && times[i] <= times[i-1] {
			return knots{}, fmt.Errorf("control: knot times must be strictly increasing (knot %d: %g <= %g)", i, times[i], times[i-1])
		}
		if len(values[i]) != width {
			return knots{}, fmt.Errorf("%w: knot %d has %d entries, knot 0 has %d", dynamo.ErrDimensionMismatch, i, len(values[i]), width)
		}
		k.times[i] = times[i]
		k.values[i] = values[i].Clone()
	}
	return k, nil
}

// segment returns the index of the last knot at or before t, or 0 before the first.
func (k knots) segment(t float64) int {
	slack := knotSlack * math.Max(1, math.Abs(t))
	i := sort.Search(len(k.times), func(i int) bool { return k.times[i] > t+slack })
	if i == 0 {
		return 0
	}
	return i - 1
}

// Schedule holds each knot value until the next knot (zero-order hold).
type Schedule struct {
	knots
}

func NewSchedule(times []float64, values []dynamo.Control) (*Schedule, error) {
	k, err := newKnots(times, values)
	if err != nil {
		return nil, err
	}
	return &Schedule{knots: k}, nil
}

func (s *Schedule) Dim() int { return s.width }

func (s *Schedule) Control(t float64, u dynamo.Control) error {
	if len(u) != s.width {
		return errWidth(len(u), s.width)
	}
	copy(u, s.values[s.segment(t)])
	return nil
}

// Interpolated blends linearly between knots and clamps outside them.
type Interpolated struct {
	knots
}

func NewInterpolated(times []float64, values []dynamo.Control) (*Interpolated, error) {
	k, err := newKnots(times, values)
	if err != nil {
		return nil, err
	}
	return &Interpolated{knots: k}, nil
}

func (p *Interpolated) Dim() int { return p.width }

func (p *Interpolated) Control(t float64, u dynamo.Control) error {
	if len(u) != p.width {
		return errWidth(len(u), p.width)
	}
	last := len(p.times) - 1
	if t <= p.times[0] {
		copy(u, p.values[0])
		return nil
	}
	if t >= p.times[last] {
		copy(u, p.values[last])
		return nil
	}
	i := p.segment(t)
	if i == last {
		copy(u, p.values[last])
		return nil
	}
	alpha := (t - p.times[i]) / (p.times[i+1] - p.times[i])
	alpha = math.Min(1, math.Max(0, alpha))
	for j := range u {
		u[j] = (1-alpha)*p.values[i][j] + alpha*p.values[i+1][j]
	}
	return nil
}
