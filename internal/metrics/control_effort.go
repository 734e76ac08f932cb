package metrics

import (
	"math"

	"github.com/san-kum/fixstep/internal/dynamo"
)

// ControlEffort is the RMS control norm over the observed time span. Each
// sample holds until the next one, matching how the simulator applies u
// across a step.
type ControlEffort struct {
	name     string
	integral float64
	t0       float64
	prevT    float64
	prev     float64 // |u|^2 of the last sample
	samples  int
}

func NewControlEffort() *ControlEffort {
	return &ControlEffort{name: "control_effort"}
}

func (c *ControlEffort) Name() string { return c.name }

func (c *ControlEffort) Observe(x dynamo.State, u dynamo.Control, t float64) {
	if c.samples == 0 {
		c.t0 = t
	} else if dt := t - c.prevT; dt > 0 {
		c.integral += c.prev * dt
	}
	sq := 0.0
	for _, v := range u {
		sq += v * v
	}
	c.prev = sq
	c.prevT = t
	c.samples++
}

// Value is zero before any sample. With a single sample, or when every
// sample shares one time, it is the norm of the latest control.
func (c *ControlEffort) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	span := c.prevT - c.t0
	if span <= 0 {
		return math.Sqrt(c.prev)
	}
	return math.Sqrt(c.integral / span)
}

func (c *ControlEffort) Reset() {
	*c = ControlEffort{name: c.name}
}
