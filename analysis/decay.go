// Package analysis measures rendered chime audio: decay times, spectral
// peaks, strike statistics and distances between renders.
package analysis

import (
	"errors"
	"math"

	"github.com/cwbudde/algo-chimes/chime"
)

// ErrTooShort is returned when a signal has too few frames to measure.
var ErrTooShort = errors.New("analysis: signal too short")

// Envelope frame and hop sizes in samples.
const (
	EnvelopeFrame = 256
	EnvelopeHop   = 128
)

// DecayRate fits a line to the RMS envelope in dB from its peak down to 60 dB
// below it (or the end of x) and returns the slope in dB per second. The
// result is negative for a decaying signal and NaN when x is too short.
func DecayRate(x []float64, sampleRate int) float64 {
	if sampleRate <= 0 {
		return math.NaN()
	}
	env := rmsEnvelope(x, EnvelopeFrame, EnvelopeHop)
	return decaySlopeDBPerS(env, float64(EnvelopeHop)/float64(sampleRate))
}

// EstimateT60 returns the time x takes to fall to chime.T60Floor of its peak
// amplitude, extrapolated from the fitted decay slope. This is the decay time
// a chime.Mode is configured with.
func EstimateT60(x []float64, sampleRate int) (float64, error) {
	return EstimateDecayTime(x, sampleRate, -20*math.Log10(chime.T60Floor))
}

// EstimateDecayTime returns the time x takes to decay by dropDB.
func EstimateDecayTime(x []float64, sampleRate int, dropDB float64) (float64, error) {
	slope := DecayRate(x, sampleRate)
	if !isFinite(slope) {
		return 0, ErrTooShort
	}
	if slope >= 0 {
		return math.Inf(1), nil
	}
	return dropDB / -slope, nil
}

func rms1(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(x)))
}

func rmsEnvelope(x []float64, frame int, hop int) []float64 {
	if frame <= 0 || hop <= 0 || len(x) < frame {
		return nil
	}
	n := 1 + (len(x)-frame)/hop
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		start := i * hop
		out[i] = rms1(x[start : start+frame])
	}
	return out
}

func linToDB(x float64) float64 {
	if x < 1e-12 {
		x = 1e-12
	}
	return 20.0 * math.Log10(x)
}

func decaySlopeDBPerS(env []float64, hopSec float64) float64 {
	if len(env) < 8 || hopSec <= 0 {
		return math.NaN()
	}
	peak := -math.MaxFloat64
	peakIdx := 0
	for i, v := range env {
		if db := linToDB(v); db > peak {
			peak = db
			peakIdx = i
		}
	}
	start := peakIdx + 1
	if start >= len(env)-4 {
		return math.NaN()
	}

	threshold := peak - 60.0
	end := len(env)
	for i := start; i < len(env); i++ {
		if linToDB(env[i]) < threshold {
			end = i
			break
		}
	}
	if end-start < 6 {
		return math.NaN()
	}

	var sx, sy, sxx, sxy float64
	n := float64(end - start)
	for i := start; i < end; i++ {
		x := float64(i-start) * hopSec
		y := linToDB(env[i])
		sx += x
		sy += y
		sxx += x * x
		sxy += x * y
	}
	den := n*sxx - sx*sx
	if math.Abs(den) < 1e-12 {
		return math.NaN()
	}
	return (n*sxy - sx*sy) / den
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
