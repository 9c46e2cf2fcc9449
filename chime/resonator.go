package chime

import (
	"fmt"
	"math"

	dspcore "github.com/cwbudde/algo-dsp/dsp/core"
	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"
)

// T60Floor is the amplitude ratio a mode decays to after T60 seconds.
const T60Floor = 1e-6

// PhaseConvention selects how the normalized pole angle is computed. Both
// conventions are numerically equivalent.
type PhaseConvention int

const (
	// PhasePerSampleRate uses 2*pi*f/Fs.
	PhasePerSampleRate PhaseConvention = iota
	// PhasePerSamplePeriod uses 2*pi*f*Ts.
	PhasePerSamplePeriod
)

func (c PhaseConvention) String() string {
	switch c {
	case PhasePerSampleRate:
		return "per-sample-rate"
	case PhasePerSamplePeriod:
		return "per-sample-period"
	default:
		return fmt.Sprintf("PhaseConvention(%d)", int(c))
	}
}

// Mode describes one resonant mode of a tube.
type Mode struct {
	Freq float64 `json:"freq"`
	T60  float64 `json:"t60"`
	Gain float64 `json:"gain"`
}

// Coefficients is the second-order band-pass section derived from a Mode.
type Coefficients struct {
	R        float64
	CosTheta float64
	SinTheta float64
	A0       float64
	B        [3]float64
	A        [3]float64
}

// Section is the engine-independent numerator/denominator pair of one mode.
type Section struct {
	B [3]float64 `json:"b"`
	A [3]float64 `json:"a"`
}

// CoefficientTable holds sections ordered per tube, then per mode.
type CoefficientTable [][]Section

// PoleRadius returns the radius at which an impulse response decays to
// T60Floor after t60 seconds.
func PoleRadius(t60 float64, sampleRate int) float64 {
	return math.Pow(T60Floor, 1.0/(t60*float64(sampleRate)))
}

// NewCoefficients derives the resonator section for m.
func NewCoefficients(m Mode, sampleRate int, conv PhaseConvention) (Coefficients, error) {
	if sampleRate <= 0 {
		return Coefficients{}, configErrorf("sample rate must be > 0, got %d", sampleRate)
	}
	if !(m.T60 > 0) || math.IsInf(m.T60, 0) {
		return Coefficients{}, configErrorf("T60 must be finite and > 0, got %g", m.T60)
	}
	fs := float64(sampleRate)
	var w float64
	switch conv {
	case PhasePerSampleRate:
		w = 2 * math.Pi * m.Freq / fs
	case PhasePerSamplePeriod:
		w = 2 * math.Pi * m.Freq * (1 / fs)
	default:
		return Coefficients{}, configErrorf("unknown phase convention %d", int(conv))
	}

	r := PoleRadius(m.T60, sampleRate)
	r2 := r * r
	cosT := math.Cos(w) * 2 * r / (1 + r2)
	sinT := math.Sqrt(1 - cosT*cosT)
	a0 := (1 + r2) * sinT
	c := Coefficients{
		R:        r,
		CosTheta: cosT,
		SinTheta: sinT,
		A0:       a0,
		B:        [3]float64{a0 * m.Gain, 0, -a0 * m.Gain},
		A:        [3]float64{1, -2 * r * cosT, r2},
	}
	if !(r > 0 && r < 1) {
		return Coefficients{}, fmt.Errorf("%w: pole radius %g outside (0,1) for T60 %g", ErrComputation, r, m.T60)
	}
	return c, nil
}

// Section returns the numerator/denominator pair.
func (c Coefficients) Section() Section {
	return Section{B: c.B, A: c.A}
}

// Biquad returns the section in algo-dsp's normalized form.
func (c Coefficients) Biquad() biquad.Coefficients {
	return biquad.Coefficients{
		B0: c.B[0],
		B1: c.B[1],
		B2: c.B[2],
		A1: c.A[1],
		A2: c.A[2],
	}
}

// ResonatorBank is the set of mode filters of one tube.
type ResonatorBank struct {
	coefs []Coefficients
}

// NewResonatorBank derives one section per mode.
func NewResonatorBank(modes []Mode, sampleRate int, conv PhaseConvention) (*ResonatorBank, error) {
	coefs := make([]Coefficients, 0, len(modes))
	for k, m := range modes {
		c, err := NewCoefficients(m, sampleRate, conv)
		if err != nil {
			return nil, fmt.Errorf("mode %d: %w", k, err)
		}
		coefs = append(coefs, c)
	}
	return &ResonatorBank{coefs: coefs}, nil
}

// Coefficients returns the bank's sections in mode order.
func (rb *ResonatorBank) Coefficients() []Coefficients {
	return append([]Coefficients(nil), rb.coefs...)
}

// Sections returns the bank's numerator/denominator pairs in mode order.
func (rb *ResonatorBank) Sections() []Section {
	out := make([]Section, len(rb.coefs))
	for i, c := range rb.coefs {
		out[i] = c.Section()
	}
	return out
}

// Process filters x through every mode, each from zero state, and returns the
// mode sum normalized by the mode count.
func (rb *ResonatorBank) Process(x []float64) ([]float64, error) {
	if len(rb.coefs) == 0 {
		return nil, fmt.Errorf("%w: resonator bank has no modes", ErrComputation)
	}
	out := make([]float64, len(x))
	if len(x) == 0 {
		return out, nil
	}
	y := make([]float64, len(x))
	for _, c := range rb.coefs {
		if c.A[0] != 1 {
			return nil, fmt.Errorf("%w: denominator not normalized: a0=%g", ErrComputation, c.A[0])
		}
		biquad.NewSection(c.Biquad()).ProcessBlockTo(y, x)
		for i, v := range y {
			out[i] += v
		}
	}
	g := 1.0 / float64(len(rb.coefs))
	for i := range out {
		out[i] = dspcore.FlushDenormals(out[i] * g)
	}
	return out, nil
}
