package metrics

import (
	"github.com/san-kum/fixstep/internal/dynamo"
	"github.com/san-kum/fixstep/internal/integrators"
)

// Defect tracks the largest collocation residual between consecutive
// observed samples. Fed with the trajectory of the same scheme it measures
// how tightly each implicit step was solved; fed with another scheme's
// trajectory it measures the local disagreement between the two. The
// simulator observes the final state as well, so the last interval counts.
type Defect struct {
	name  string
	col   integrators.Collocator
	prevX dynamo.State
	prevU dynamo.Control
	prevT float64
	have  bool
	res   dynamo.State
	max   float64
	err   error
}

func NewDefect(col integrators.Collocator) *Defect {
	n := col.System().StateDim()
	return &Defect{
		name:  "collocation_defect",
		col:   col,
		prevX: make(dynamo.State, n),
		prevU: make(dynamo.Control, col.System().ControlDim()),
		res:   make(dynamo.State, n),
	}
}

func (d *Defect) Name() string { return d.name }

func (d *Defect) Observe(x dynamo.State, u dynamo.Control, t float64) {
	if d.have && d.err == nil {
		points := []dynamo.State{d.prevX, x}
		controls := []dynamo.Control{d.prevU, u}
		if err := d.col.CollocationConstraint(points, controls, d.prevT, d.res); err != nil {
			d.err = err
		} else if r := d.res.NormInf(); r > d.max {
			d.max = r
		}
	}
	copy(d.prevX, x)
	copy(d.prevU, u)
	d.prevT = t
	d.have = true
}

func (d *Defect) Value() float64 { return d.max }

// Err returns the first error raised while evaluating a residual.
func (d *Defect) Err() error { return d.err }

func (d *Defect) Reset() {
	d.have = false
	d.max = 0
	d.err = nil
}
