package chime

import (
	"fmt"
	"math"
)

// EdgePolicy selects how held trigger states become burst resets.
type EdgePolicy int

const (
	// EdgeRising strikes a tube once, on the sample the trigger state changes
	// into it.
	EdgeRising EdgePolicy = iota
	// EdgeRunEnd strikes a tube once, on the last sample of a run of that
	// state.
	EdgeRunEnd
	// EdgeLevel re-arms the burst on every sample the state is held.
	EdgeLevel
)

func (p EdgePolicy) String() string {
	switch p {
	case EdgeRising:
		return "rising"
	case EdgeRunEnd:
		return "run-end"
	case EdgeLevel:
		return "level"
	default:
		return fmt.Sprintf("EdgePolicy(%d)", int(p))
	}
}

// ParseEdgePolicy parses the String form of an EdgePolicy.
func ParseEdgePolicy(s string) (EdgePolicy, error) {
	switch s {
	case "rising", "":
		return EdgeRising, nil
	case "run-end":
		return EdgeRunEnd, nil
	case "level":
		return EdgeLevel, nil
	}
	return 0, configErrorf("unknown edge policy %q (want rising|run-end|level)", s)
}

// ParsePhaseConvention parses the String form of a PhaseConvention.
func ParsePhaseConvention(s string) (PhaseConvention, error) {
	switch s {
	case "per-sample-rate", "":
		return PhasePerSampleRate, nil
	case "per-sample-period":
		return PhasePerSamplePeriod, nil
	}
	return 0, configErrorf("unknown phase convention %q", s)
}

// Params holds a complete engine configuration.
type Params struct {
	SampleRate int
	Samples    int
	Seed       int64

	// Tubes[i][k] is mode k of tube i. Every tube has the same mode count.
	Tubes [][]Mode

	Wind WindModel

	// Dwell interval between trigger decisions, in seconds.
	DwellMin float64
	DwellMax float64

	EdgePolicy EdgePolicy
	Phase      PhaseConvention

	// Workers bounds the parallel filtering stage; 0 uses GOMAXPROCS.
	Workers int
}

// DefaultSampleRate is the engine's native rate.
const DefaultSampleRate = 11025

// DefaultDuration is the default run length in seconds.
const DefaultDuration = 25.0

// DefaultFrequencies is the five-tube tuning, five modes per tube.
var DefaultFrequencies = [][]float64{
	{219.8, 590.2, 1115.4, 1766.2, 2513.9},
	{245.8, 657.6, 1239.2, 1955.3, 2773.1},
	{293.9, 782.4, 1465.2, 2311.8, 3278.8},
	{331.6, 875.5, 1633.0, 2576.5, 3654.2},
	{366.1, 967.5, 1794.2, 2831.0, 4015.1},
}

// DefaultT60 holds the decay time of each mode index, shared by all tubes.
var DefaultT60 = []float64{40, 7, 2, 1, 0.5}

// DefaultGains holds the gain of each mode index, shared by all tubes.
var DefaultGains = []float64{0.0787, 0.1849, 1.0000, 0.0136, 0.0275}

// NewDefaultParams creates the default five-tube configuration.
func NewDefaultParams() *Params {
	tubes, _ := TubesFromTable(DefaultFrequencies, DefaultT60, DefaultGains)
	return &Params{
		SampleRate: DefaultSampleRate,
		Samples:    int(DefaultDuration * DefaultSampleRate),
		Seed:       1,
		Tubes:      tubes,
		Wind:       DefaultEnvelope(),
		DwellMin:   0.03,
		DwellMax:   0.05,
		EdgePolicy: EdgeRising,
		Phase:      PhasePerSampleRate,
	}
}

// TubesFromTable builds per-tube modes from a frequency table and per-mode
// decay times and gains shared by all tubes.
func TubesFromTable(freqs [][]float64, t60 []float64, gains []float64) ([][]Mode, error) {
	if len(freqs) == 0 {
		return nil, configErrorf("frequency table is empty")
	}
	k := len(freqs[0])
	if len(t60) != k {
		return nil, configErrorf("t60 has %d entries, want %d", len(t60), k)
	}
	if len(gains) != k {
		return nil, configErrorf("gains has %d entries, want %d", len(gains), k)
	}
	tubes := make([][]Mode, len(freqs))
	for i, row := range freqs {
		if len(row) != k {
			return nil, configErrorf("tube %d has %d modes, want %d", i, len(row), k)
		}
		modes := make([]Mode, k)
		for j, f := range row {
			modes[j] = Mode{Freq: f, T60: t60[j], Gain: gains[j]}
		}
		tubes[i] = modes
	}
	return tubes, nil
}

// SetDuration sets the run length in seconds.
func (p *Params) SetDuration(seconds float64) {
	p.Samples = int(math.Round(seconds * float64(p.SampleRate)))
}

// Duration returns the run length in seconds.
func (p *Params) Duration() float64 {
	if p.SampleRate <= 0 {
		return 0
	}
	return float64(p.Samples) / float64(p.SampleRate)
}

// DurationForWind sets the run length to the end of an envelope wind model,
// plus tail seconds for the last strikes to ring out. A Gust uses
// GustMaxEnd so that any reseeded draw fits. Other wind models leave the
// length unchanged.
func (p *Params) DurationForWind(tail float64) {
	switch w := p.Wind.(type) {
	case *Envelope:
		p.SetDuration(w.End() + tail)
	case *Gust:
		p.SetDuration(GustMaxEnd + tail)
	}
}

// DwellSamples returns the dwell interval in samples.
func (p *Params) DwellSamples() (int, int) {
	fs := float64(p.SampleRate)
	return int(math.Round(p.DwellMin * fs)), int(math.Round(p.DwellMax * fs))
}

// TubeCount returns N.
func (p *Params) TubeCount() int {
	return len(p.Tubes)
}

// ModeCount returns K, or 0 when there are no tubes.
func (p *Params) ModeCount() int {
	if len(p.Tubes) == 0 {
		return 0
	}
	return len(p.Tubes[0])
}

// Clone returns a deep copy. The wind model is shared.
func (p *Params) Clone() *Params {
	d := *p
	d.Tubes = make([][]Mode, len(p.Tubes))
	for i, t := range p.Tubes {
		d.Tubes[i] = append([]Mode(nil), t...)
	}
	return &d
}

// Validate checks the configuration and reports the first problem found.
func (p *Params) Validate() error {
	if p == nil {
		return configErrorf("nil params")
	}
	if p.SampleRate <= 0 {
		return configErrorf("sample rate must be > 0, got %d", p.SampleRate)
	}
	if p.Samples < 1 {
		return configErrorf("run length must be >= 1 sample, got %d", p.Samples)
	}
	if len(p.Tubes) == 0 {
		return configErrorf("at least one tube is required")
	}
	k := len(p.Tubes[0])
	if k == 0 {
		return configErrorf("tube 0 has no modes")
	}
	nyquist := 0.5 * float64(p.SampleRate)
	for i, modes := range p.Tubes {
		if len(modes) != k {
			return configErrorf("tube %d has %d modes, want %d", i, len(modes), k)
		}
		for j, m := range modes {
			if !(m.Freq > 0) || m.Freq >= nyquist {
				return configErrorf("tube %d mode %d: frequency %g outside (0, %g)", i, j, m.Freq, nyquist)
			}
			if !(m.T60 > 0) || math.IsInf(m.T60, 0) {
				return configErrorf("tube %d mode %d: T60 must be finite and > 0, got %g", i, j, m.T60)
			}
			if math.IsNaN(m.Gain) || math.IsInf(m.Gain, 0) {
				return configErrorf("tube %d mode %d: gain must be finite", i, j)
			}
		}
	}
	if p.Wind == nil {
		return configErrorf("wind model is required")
	}
	switch w := p.Wind.(type) {
	case *Envelope:
		if err := w.validate(); err != nil {
			return err
		}
	case *Gust:
		if err := w.validate(); err != nil {
			return err
		}
	}
	lo, hi := p.DwellSamples()
	if lo < 1 {
		return configErrorf("dwell minimum %gs is shorter than one sample", p.DwellMin)
	}
	if lo > hi {
		return configErrorf("empty dwell range [%d, %d] samples", lo, hi)
	}
	switch p.EdgePolicy {
	case EdgeRising, EdgeRunEnd, EdgeLevel:
	default:
		return configErrorf("unknown edge policy %d", int(p.EdgePolicy))
	}
	switch p.Phase {
	case PhasePerSampleRate, PhasePerSamplePeriod:
	default:
		return configErrorf("unknown phase convention %d", int(p.Phase))
	}
	if p.Workers < 0 {
		return configErrorf("workers must be >= 0, got %d", p.Workers)
	}
	return nil
}

func configErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfig, fmt.Sprintf(format, args...))
}
