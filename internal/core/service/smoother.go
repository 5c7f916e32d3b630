package service

// Default smoother factors tuned for a roughly 30 second sample cadence.
const (
	DefaultFastFactor  = 0.75
	DefaultSlowFactor  = 0.10
	DefaultDecayFactor = 0.05
)

// Smoother tracks one power channel on three timescales: the instant
// value, a fast and a slow exponential average, and a ratcheting decay
// floor. The floor rises immediately with the fast average but falls
// only slowly, so a momentary cloud does not re-arm low-solar behaviour.
type Smoother struct {
	fastFactor  float64
	slowFactor  float64
	decayFactor float64

	value  float64
	fast   float64
	slow   float64
	floor  float64
	seeded bool
}

func NewSmoother() *Smoother {
	return NewSmootherWithFactors(DefaultFastFactor, DefaultSlowFactor, DefaultDecayFactor)
}

func NewSmootherWithFactors(fast, slow, decay float64) *Smoother {
	return &Smoother{
		fastFactor:  fast,
		slowFactor:  slow,
		decayFactor: decay,
	}
}

func (s *Smoother) Update(value float64) {
	s.value = value
	if !s.seeded {
		s.seeded = true
		s.fast = value
		s.slow = value
	} else {
		s.fast = value*s.fastFactor + s.fast*(1-s.fastFactor)
		s.slow = value*s.slowFactor + s.slow*(1-s.slowFactor)
	}
	merged := s.fast*s.decayFactor + s.floor*(1-s.decayFactor)
	if merged > s.fast {
		s.floor = merged
	} else {
		s.floor = s.fast
	}
}

func (s *Smoother) Value() float64 { return s.value }

func (s *Smoother) Fast() float64 { return s.fast }

func (s *Smoother) Slow() float64 { return s.slow }

// DecayFloor is the ratcheted lower bound on the fast average.
func (s *Smoother) DecayFloor() float64 { return s.floor }
