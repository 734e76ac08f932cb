package metrics

import (
	"math"

	"github.com/san-kum/fixstep/internal/dynamo"
)

// Stability is the fraction of samples whose every component stays finite
// and within the threshold in absolute value.
type Stability struct {
	name       string
	threshold  float64
	violations int
	samples    int
	firstT     float64
}

func NewStability(threshold float64) *Stability {
	return &Stability{
		name:      "stability",
		threshold: threshold,
	}
}

func (s *Stability) Name() string { return s.name }

func (s *Stability) Observe(x dynamo.State, u dynamo.Control, t float64) {
	s.samples++
	for _, v := range x {
		// NaN fails every comparison, so test for the bound instead
		if !(math.Abs(v) <= s.threshold) {
			if s.violations == 0 {
				s.firstT = t
			}
			s.violations++
			return
		}
	}
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1
	}
	return 1 - float64(s.violations)/float64(s.samples)
}

// FirstViolation reports when the state first left the bound.
func (s *Stability) FirstViolation() (float64, bool) {
	return s.firstT, s.violations > 0
}

func (s *Stability) Reset() {
	s.violations = 0
	s.samples = 0
	s.firstT = 0
}
