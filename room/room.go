// Package room adds a simple acoustic space around a rendered chime: a
// synthetic mono room impulse response and a partitioned convolver that
// applies it (or an IR loaded from WAV) to the composite.
package room

import (
	"fmt"
	"math"
	"math/rand"
)

// Config controls synthetic room IR generation.
type Config struct {
	SampleRate int
	DurationS  float64
	Seed       int64
	EarlyCount int
	LateLevel  float64
	Brightness float64
	LowDecayS  float64
	HighDecayS float64
	FadeOutS   float64 // Cosine fade-out at the end; 0 = no fade

	NormalizePeak float64
}

// DefaultConfig returns a small porch-like space at sampleRate.
func DefaultConfig(sampleRate int) Config {
	return Config{
		SampleRate:    sampleRate,
		DurationS:     1.2,
		Seed:          1,
		EarlyCount:    24,
		LateLevel:     0.06,
		Brightness:    0.8,
		LowDecayS:     1.0,
		HighDecayS:    0.2,
		FadeOutS:      0.01,
		NormalizePeak: 0.9,
	}
}

func (c *Config) Validate() error {
	if c.SampleRate < 8000 {
		return fmt.Errorf("sample rate too low: %d", c.SampleRate)
	}
	if c.DurationS <= 0 {
		return fmt.Errorf("duration must be > 0")
	}
	if c.EarlyCount < 0 {
		return fmt.Errorf("early count must be >= 0")
	}
	if c.LateLevel < 0 {
		return fmt.Errorf("late level must be >= 0")
	}
	if c.Brightness <= 0 {
		return fmt.Errorf("brightness must be > 0")
	}
	if c.LowDecayS <= 0 || c.HighDecayS <= 0 {
		return fmt.Errorf("decay seconds must be > 0")
	}
	if c.FadeOutS < 0 {
		return fmt.Errorf("fade-out must be >= 0")
	}
	if c.NormalizePeak <= 0 {
		return fmt.Errorf("normalize peak must be > 0")
	}
	return nil
}

// Generate synthesizes a mono room IR: a unit direct path, early reflections
// in the first 50 ms and a two-band diffuse tail.
func Generate(cfg Config) ([]float32, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	n := max(1, int(math.Round(cfg.DurationS*float64(cfg.SampleRate))))
	buf := make([]float64, n)
	buf[0] = 1

	rng := rand.New(rand.NewSource(cfg.Seed))

	for i := 0; i < cfg.EarlyCount; i++ {
		t := 0.001 + 0.049*rng.Float64()
		idx := int(t * float64(cfg.SampleRate))
		if idx <= 0 || idx >= n {
			continue
		}
		amp := (0.10 + 0.35*rng.Float64()) * math.Exp(-t*20.0)
		amp *= math.Pow(0.5+0.5*rng.Float64(), 1.0/cfg.Brightness)
		if rng.Intn(2) == 0 {
			amp = -amp
		}
		buf[idx] += amp
	}

	if cfg.LateLevel > 0 {
		bright := max(0, 0.3*(cfg.Brightness-0.3))
		lp, hp := 0.0, 0.0
		for i := 0; i < n; i++ {
			t := float64(i) / float64(cfg.SampleRate)
			lowEnv := math.Exp(-t / (0.75 * cfg.LowDecayS))
			highEnv := math.Exp(-t / (0.75 * cfg.HighDecayS))
			noise := rng.NormFloat64()
			lp = 0.985*lp + 0.015*noise
			hp = 0.15*noise - 0.15*hp
			buf[i] += cfg.LateLevel * (lowEnv*lp + bright*highEnv*hp)
		}
	}

	fadeOut(buf, cfg.FadeOutS, cfg.SampleRate)

	peak := maxAbs(buf)
	if peak < 1e-12 {
		peak = 1e-12
	}
	s := cfg.NormalizePeak / peak
	out := make([]float32, n)
	for i, v := range buf {
		out[i] = float32(v * s)
	}
	return out, nil
}

func fadeOut(buf []float64, fadeS float64, sampleRate int) {
	if fadeS <= 0 || len(buf) == 0 {
		return
	}
	m := min(len(buf), int(math.Round(fadeS*float64(sampleRate))))
	start := len(buf) - m
	for i := 0; i < m; i++ {
		t := float64(i) / float64(m)
		buf[start+i] *= 0.5 * (1.0 + math.Cos(t*math.Pi))
	}
}

func maxAbs(x []float64) float64 {
	m := 0.0
	for _, v := range x {
		m = math.Max(m, math.Abs(v))
	}
	return m
}
