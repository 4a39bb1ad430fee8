package pipeline

import "math"

const (
	// AttackWeight is the share of a rising sample that is taken at once.
	AttackWeight = 0.7
	// ReleaseWeight is the share of a falling sample that is taken at once.
	ReleaseWeight = 0.2
)

// LevelSmoother turns raw amplitude samples into a meter-friendly level:
// fast rise on speech onset, slow decay on silence.
//
// Not safe for concurrent use; the orchestrator loop owns it.
type LevelSmoother struct {
	level float64
}

// Update feeds one raw sample in [0,1] and returns the smoothed level.
// Out of range input is clamped and NaN counts as silence.
func (s *LevelSmoother) Update(raw float64) float64 {
	raw = clampUnit(raw)

	weight := ReleaseWeight
	if raw > s.level {
		weight = AttackWeight
	}

	s.level = clampUnit(weight*raw + (1-weight)*s.level)

	return s.level
}

// Level returns the last smoothed value.
func (s *LevelSmoother) Level() float64 {
	return s.level
}

// Reset drops back to silence.
func (s *LevelSmoother) Reset() {
	s.level = 0
}

func clampUnit(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
