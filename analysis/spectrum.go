package analysis

import (
	"fmt"
	"math"
	"math/cmplx"

	algofft "github.com/cwbudde/algo-fft"
)

// MaxFFTSize bounds the transform length used by NewSpectrum.
const MaxFFTSize = 1 << 16

// Spectrum is a Hann-windowed magnitude spectrum.
type Spectrum struct {
	SampleRate int
	Size       int
	BinHz      float64
	Mag        []float64
}

// NewSpectrum transforms the first MaxFFTSize samples of x, zero-padded to a
// power of two.
func NewSpectrum(x []float64, sampleRate int) (*Spectrum, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("analysis: sample rate must be > 0, got %d", sampleRate)
	}
	if len(x) < 16 {
		return nil, ErrTooShort
	}
	n := len(x)
	if n > MaxFFTSize {
		n = MaxFFTSize
	}
	size := nextPow2(n)

	plan, err := algofft.NewPlanReal64(size)
	if err != nil {
		return nil, fmt.Errorf("analysis: fft plan: %w", err)
	}
	buf := make([]float64, size)
	for i := 0; i < n; i++ {
		w := 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
		buf[i] = x[i] * w
	}
	spec := make([]complex128, size/2+1)
	plan.Forward(spec, buf)

	mag := make([]float64, len(spec))
	for k, c := range spec {
		mag[k] = cmplx.Abs(c)
	}
	return &Spectrum{
		SampleRate: sampleRate,
		Size:       size,
		BinHz:      float64(sampleRate) / float64(size),
		Mag:        mag,
	}, nil
}

// PeakFrequency returns the strongest frequency in [loHz, hiHz], refined by
// parabolic interpolation of the log magnitude. It returns NaN when the band
// holds no bins.
func (s *Spectrum) PeakFrequency(loHz, hiHz float64) float64 {
	lo := int(math.Ceil(loHz / s.BinHz))
	hi := int(math.Floor(hiHz / s.BinHz))
	if lo < 1 {
		lo = 1
	}
	if hi > len(s.Mag)-2 {
		hi = len(s.Mag) - 2
	}
	if lo > hi {
		return math.NaN()
	}
	best := lo
	for k := lo + 1; k <= hi; k++ {
		if s.Mag[k] > s.Mag[best] {
			best = k
		}
	}
	a := linToDB(s.Mag[best-1])
	b := linToDB(s.Mag[best])
	c := linToDB(s.Mag[best+1])
	offset := 0.0
	if den := a - 2*b + c; den < 0 {
		offset = 0.5 * (a - c) / den
	}
	return (float64(best) + offset) * s.BinHz
}

// BandLevelDB returns the mean magnitude in [loHz, hiHz] in dB.
func (s *Spectrum) BandLevelDB(loHz, hiHz float64) float64 {
	lo := int(math.Ceil(loHz / s.BinHz))
	hi := int(math.Floor(hiHz / s.BinHz))
	if lo < 0 {
		lo = 0
	}
	if hi >= len(s.Mag) {
		hi = len(s.Mag) - 1
	}
	if lo > hi {
		return math.Inf(-1)
	}
	var sum float64
	for k := lo; k <= hi; k++ {
		sum += s.Mag[k]
	}
	return linToDB(sum / float64(hi-lo+1))
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
