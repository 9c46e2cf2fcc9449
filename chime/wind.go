package chime

import (
	"math"
	"math/rand"
)

// WindModel maps elapsed time in seconds to a wind-force scalar.
type WindModel interface {
	Force(t float64) float64
}

// WindFunc adapts a plain function to WindModel.
type WindFunc func(t float64) float64

// Force implements WindModel.
func (f WindFunc) Force(t float64) float64 { return f(t) }

// Segment is one piece of a piecewise-linear wind envelope: the force ramps
// linearly from the previous segment's level to Level over Duration seconds.
type Segment struct {
	Duration float64
	Level    float64
}

// Envelope is a piecewise-linear wind profile. The level before the first
// segment is 0, and the force is 0 for t < 0 and after the last segment.
type Envelope struct {
	Segments []Segment
}

// DefaultEnvelope is calm for 2 s, ramps to 2.0 over 8 s, holds for 10 s and
// then drops to calm.
func DefaultEnvelope() *Envelope {
	return &Envelope{Segments: []Segment{
		{Duration: 2, Level: 0},
		{Duration: 8, Level: 2},
		{Duration: 10, Level: 2},
	}}
}

// RandomEnvelope draws a gust with randomized segment durations: a calm lead-in,
// a rise to level, a plateau, a fall back to calm and a calm tail.
func RandomEnvelope(rng Source, level float64) *Envelope {
	return &Envelope{Segments: []Segment{
		{Duration: 1 + rng.Float64(), Level: 0},
		{Duration: 2 + 2*rng.Float64(), Level: level},
		{Duration: 8 + 4*rng.Float64(), Level: level},
		{Duration: 2 + 3*rng.Float64(), Level: 0},
		{Duration: 4 + rng.Float64(), Level: 0},
	}}
}

// GustMaxEnd is the longest envelope RandomEnvelope can draw, in seconds.
const GustMaxEnd = 2 + 4 + 12 + 5 + 5

// Gust is a RandomEnvelope bound to a seed. NewEngine redraws it from
// Params.Seed, so each seed plays its own gust shape.
type Gust struct {
	Level float64
	Seed  int64
	env   *Envelope
}

// NewGust draws the gust for seed.
func NewGust(level float64, seed int64) *Gust {
	return &Gust{
		Level: level,
		Seed:  seed,
		env:   RandomEnvelope(rand.New(rand.NewSource(seed)), level),
	}
}

// Force implements WindModel.
func (g *Gust) Force(t float64) float64 {
	return g.env.Force(t)
}

// Envelope returns a copy of the drawn envelope.
func (g *Gust) Envelope() *Envelope {
	return &Envelope{Segments: append([]Segment(nil), g.env.Segments...)}
}

// Reseed returns the gust drawn for seed, or g itself when the seed matches.
func (g *Gust) Reseed(seed int64) *Gust {
	if seed == g.Seed && g.env != nil {
		return g
	}
	return NewGust(g.Level, seed)
}

func (g *Gust) validate() error {
	if g == nil || g.env == nil {
		return configErrorf("gust wind was not drawn; use NewGust")
	}
	if !(g.Level >= 0) || math.IsInf(g.Level, 0) {
		return configErrorf("gust level must be finite and >= 0, got %g", g.Level)
	}
	return nil
}

// Force implements WindModel.
func (e *Envelope) Force(t float64) float64 {
	if e == nil || t < 0 {
		return 0
	}
	start := 0.0
	prev := 0.0
	for _, s := range e.Segments {
		end := start + s.Duration
		if t < end {
			if s.Duration <= 0 {
				return s.Level
			}
			return prev + (s.Level-prev)*(t-start)/s.Duration
		}
		start = end
		prev = s.Level
	}
	return 0
}

// End returns the total envelope duration in seconds.
func (e *Envelope) End() float64 {
	if e == nil {
		return 0
	}
	var total float64
	for _, s := range e.Segments {
		total += s.Duration
	}
	return total
}

// Peak returns the largest segment level.
func (e *Envelope) Peak() float64 {
	if e == nil {
		return 0
	}
	peak := 0.0
	for _, s := range e.Segments {
		if s.Level > peak {
			peak = s.Level
		}
	}
	return peak
}

// Scaled returns a copy whose peak level equals level. An all-calm envelope is
// returned unchanged.
func (e *Envelope) Scaled(level float64) *Envelope {
	out := &Envelope{Segments: append([]Segment(nil), e.Segments...)}
	peak := e.Peak()
	if peak <= 0 {
		return out
	}
	g := level / peak
	for i := range out.Segments {
		out.Segments[i].Level *= g
	}
	return out
}

func (e *Envelope) validate() error {
	if e == nil || len(e.Segments) == 0 {
		return configErrorf("wind envelope has no segments")
	}
	for i, s := range e.Segments {
		if s.Duration < 0 || math.IsNaN(s.Duration) || math.IsInf(s.Duration, 0) {
			return configErrorf("wind segment %d: duration must be finite and >= 0, got %g", i, s.Duration)
		}
		if math.IsNaN(s.Level) || math.IsInf(s.Level, 0) {
			return configErrorf("wind segment %d: level must be finite", i)
		}
	}
	return nil
}
