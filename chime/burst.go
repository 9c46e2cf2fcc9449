package chime

import "math"

const (
	// BurstDecay is the per-sample amplitude ratio of an excitation burst.
	BurstDecay = 0.97
	// BurstWindowSeconds is the length of a burst.
	BurstWindowSeconds = 0.02
	// BurstEnergyFloor keeps strikes audible at zero energy.
	BurstEnergyFloor = 0.1
)

// Burst generates the decaying noise excitation of one tube. It is silent
// until Reset and returns to silence once the burst window has elapsed.
type Burst struct {
	window int
	rng    Source

	active bool
	start  int
	energy float64
	amp    float64
}

// NewBurst creates an idle burst generator.
func NewBurst(sampleRate int, rng Source) *Burst {
	return &Burst{
		window: int(math.Round(BurstWindowSeconds * float64(sampleRate))),
		rng:    rng,
	}
}

// Window returns the burst length W in samples; a burst spans W+1 samples.
func (b *Burst) Window() int {
	return b.window
}

// Active reports whether a burst is in progress.
func (b *Burst) Active() bool {
	return b.active
}

// Reset starts a burst at sample n with the energy snapshot e.
func (b *Burst) Reset(n int, e float64) {
	b.start = n
	b.energy = e
	b.amp = math.Sqrt(math.Max(e, 0) + BurstEnergyFloor)
	b.active = true
}

// Update returns the excitation sample for index n.
func (b *Burst) Update(n int) float64 {
	if !b.active {
		return 0
	}
	elapsed := n - b.start
	if elapsed < 0 {
		return 0
	}
	if elapsed > b.window {
		b.active = false
		return 0
	}
	d := b.amp * math.Pow(BurstDecay, float64(elapsed))
	s := 2*b.rng.Float64() - 1
	return s * d
}
