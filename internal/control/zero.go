package control

import "github.com/san-kum/fixstep/internal/dynamo"

type Zero struct {
	dim int
}

func NewZero(dim int) *Zero {
	return &Zero{
		dim: dim,
	}
}

func (z *Zero) Dim() int { return z.dim }

func (z *Zero) Control(t float64, u dynamo.Control) error {
	if len(u) != z.dim {
		return errWidth(len(u), z.dim)
	}
	for i := range u {
		u[i] = 0
	}
	return nil
}
