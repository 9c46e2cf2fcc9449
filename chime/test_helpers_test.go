package chime

import (
	"math"
	"math/rand"
)

// fixedSource returns the same uniform draw every time and cycles Intn.
type fixedSource struct {
	u float64
	k int
}

func (s *fixedSource) Float64() float64 { return s.u }

func (s *fixedSource) Intn(n int) int {
	v := s.k % n
	s.k++
	return v
}

func seeded(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

func constantWind(level float64) WindModel {
	return WindFunc(func(float64) float64 { return level })
}

// shortParams is a small, windy configuration that strikes within the first
// second.
func shortParams(seconds float64) *Params {
	p := NewDefaultParams()
	p.Wind = constantWind(5)
	p.SetDuration(seconds)
	return p
}

func maxAbs(x []float64) float64 {
	m := 0.0
	for _, v := range x {
		if a := math.Abs(v); a > m {
			m = a
		}
	}
	return m
}
