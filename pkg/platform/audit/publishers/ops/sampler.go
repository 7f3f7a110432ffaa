package ops

import "math/rand/v2"

// Sampler keeps a fraction of events per action. Access checks are the
// high-volume case; everything else defaults to being kept.
type Sampler struct {
	fallback float64
	rates    map[string]float64
	draw     func() float64
}

// NewSampler clamps every rate into [0,1]. overrides is copied.
func NewSampler(fallback float64, overrides map[string]float64) *Sampler {
	s := &Sampler{
		fallback: clampRate(fallback),
		rates:    make(map[string]float64, len(overrides)),
		draw:     rand.Float64, //nolint:gosec // sampling, not security
	}
	for action, rate := range overrides {
		s.rates[action] = clampRate(rate)
	}
	return s
}

// Keep reports whether an event for action should be recorded.
func (s *Sampler) Keep(action string) bool {
	rate, ok := s.rates[action]
	if !ok {
		rate = s.fallback
	}
	switch rate {
	case 0:
		return false
	case 1:
		return true
	}
	return s.draw() < rate
}

func clampRate(r float64) float64 {
	return min(max(r, 0), 1)
}
