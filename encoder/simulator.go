package encoder

import (
	"context"
	"math"
	"time"
)

// Discrete simulation step size
const stepSize = 25 * time.Millisecond

// Simulator turns a Counter at a constant rate, standing in for a telescope
// being pushed around the sky when no encoders are wired up.
type Simulator struct {
	c *Counter
	// Rates are in ticks/second.
	rates [2]float64
	// remainders carry fractional ticks between steps
	remainders [2]float64
}

func NewSimulator(c *Counter, azRate, altRate float64) *Simulator {
	return &Simulator{c: c, rates: [2]float64{azRate, altRate}}
}

func (s *Simulator) Run(ctx context.Context) error {
	t := time.NewTicker(stepSize)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
		s.step(stepSize)
	}
}

func (s *Simulator) step(dt time.Duration) {
	for _, axis := range Axes {
		move := s.rates[axis]*dt.Seconds() + s.remainders[axis]
		whole := math.Trunc(move)
		s.remainders[axis] = move - whole
		if whole != 0 {
			s.c.Add(axis, int64(whole))
		}
	}
}
