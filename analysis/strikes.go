package analysis

import "github.com/cwbudde/algo-chimes/chime"

// StrikeStats summarizes the strikes of one render.
type StrikeStats struct {
	Count   int   `json:"count"`
	PerTube []int `json:"per_tube"`

	// RatePerSecond is Count over the whole run.
	RatePerSecond float64 `json:"rate_per_second"`
	// MeanInterval is the mean time between consecutive strikes in seconds,
	// or 0 with fewer than two strikes.
	MeanInterval float64 `json:"mean_interval_s"`
	// MeanEnergy is the average energy snapshot of all strikes.
	MeanEnergy float64 `json:"mean_energy"`
}

// SummarizeStrikes computes statistics for strikes over a run of the given
// length.
func SummarizeStrikes(strikes []chime.Strike, tubes, samples, sampleRate int) StrikeStats {
	st := StrikeStats{
		Count:   len(strikes),
		PerTube: make([]int, tubes),
	}
	var energy float64
	for _, s := range strikes {
		if s.Tube >= 0 && s.Tube < tubes {
			st.PerTube[s.Tube]++
		}
		energy += s.Energy
	}
	if st.Count > 0 {
		st.MeanEnergy = energy / float64(st.Count)
	}
	if samples > 0 && sampleRate > 0 {
		st.RatePerSecond = float64(st.Count) * float64(sampleRate) / float64(samples)
	}
	if st.Count > 1 && sampleRate > 0 {
		span := strikes[len(strikes)-1].Sample - strikes[0].Sample
		st.MeanInterval = float64(span) / float64(st.Count-1) / float64(sampleRate)
	}
	return st
}

// StrikeRate returns the strikes per second within [fromSec, toSec).
func StrikeRate(strikes []chime.Strike, sampleRate int, fromSec, toSec float64) float64 {
	if toSec <= fromSec || sampleRate <= 0 {
		return 0
	}
	from := fromSec * float64(sampleRate)
	to := toSec * float64(sampleRate)
	count := 0
	for _, s := range strikes {
		if n := float64(s.Sample); n >= from && n < to {
			count++
		}
	}
	return float64(count) / (toSec - fromSec)
}

// Timeline bins strikes into width columns over samples. Each column holds
// the tube struck most recently in it (1-based) or 0.
func Timeline(strikes []chime.Strike, samples, width int) []int {
	if width <= 0 || samples <= 0 {
		return nil
	}
	cols := make([]int, width)
	for _, s := range strikes {
		c := int(int64(s.Sample) * int64(width) / int64(samples))
		if c >= 0 && c < width {
			cols[c] = s.Tube + 1
		}
	}
	return cols
}
