package chime

import (
	"fmt"
	"math"
	"math/rand"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Strike is one burst reset.
type Strike struct {
	Sample int     `json:"sample"`
	Tube   int     `json:"tube"`
	Energy float64 `json:"energy"`
}

// Diagnostics are the per-sample control signals of a render.
type Diagnostics struct {
	Wind    []float64
	Energy  []float64
	HitProb []float64
	States  []State
	Strikes []Strike
}

// Result holds the output buffers of one render.
type Result struct {
	SampleRate int
	// Excitation[i] is the burst sequence fed to tube i.
	Excitation [][]float64
	// Tubes[i] is tube i's resonator output, normalized by the mode count.
	Tubes [][]float64
	// Mix is the sum of all tubes normalized by tube and mode count.
	Mix []float64

	Diagnostics
}

// Engine renders wind chime performances for one validated configuration.
type Engine struct {
	params   *Params
	banks    []*ResonatorBank
	dwellMin int
	dwellMax int
	workers  int
}

// NewEngine validates params and derives the resonator coefficients.
func NewEngine(params *Params) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	p := params.Clone()
	if g, ok := p.Wind.(*Gust); ok {
		p.Wind = g.Reseed(p.Seed)
	}
	banks := make([]*ResonatorBank, len(p.Tubes))
	for i, modes := range p.Tubes {
		b, err := NewResonatorBank(modes, p.SampleRate, p.Phase)
		if err != nil {
			return nil, fmt.Errorf("tube %d: %w", i, err)
		}
		banks[i] = b
	}
	lo, hi := p.DwellSamples()
	workers := p.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Engine{
		params:   p,
		banks:    banks,
		dwellMin: lo,
		dwellMax: hi,
		workers:  workers,
	}, nil
}

// SampleRate returns the render sample rate.
func (e *Engine) SampleRate() int {
	return e.params.SampleRate
}

// Samples returns the run length in samples.
func (e *Engine) Samples() int {
	return e.params.Samples
}

// CoefficientTable returns the resonator sections of every tube.
func (e *Engine) CoefficientTable() CoefficientTable {
	table := make(CoefficientTable, len(e.banks))
	for i, b := range e.banks {
		table[i] = b.Sections()
	}
	return table
}

// Render runs the full simulation. Every call starts from fresh state seeded
// with Params.Seed, so repeated renders are identical.
func (e *Engine) Render() (*Result, error) {
	p := e.params
	rng := rand.New(rand.NewSource(p.Seed))

	diag, err := e.scan(rng)
	if err != nil {
		return nil, err
	}
	diag.Strikes = extractStrikes(diag.States, diag.Energy, p.EdgePolicy)

	excitation := e.excite(diag.Strikes, diag.Energy, rng)
	tubes, err := e.filter(excitation)
	if err != nil {
		return nil, err
	}
	mix, err := mixTubes(tubes, p.Samples)
	if err != nil {
		return nil, err
	}
	return &Result{
		SampleRate:  p.SampleRate,
		Excitation:  excitation,
		Tubes:       tubes,
		Mix:         mix,
		Diagnostics: diag,
	}, nil
}

// Simulate runs only the control path: wind, energy, trigger states and
// strikes. It draws the same random sequence as the first stage of Render, so
// its strikes match Render's for the same seed.
func (e *Engine) Simulate() (Diagnostics, error) {
	rng := rand.New(rand.NewSource(e.params.Seed))
	diag, err := e.scan(rng)
	if err != nil {
		return Diagnostics{}, err
	}
	diag.Strikes = extractStrikes(diag.States, diag.Energy, e.params.EdgePolicy)
	return diag, nil
}

// RenderTubePreview renders a single strike of one tube at the given energy,
// starting at sample 0.
func (e *Engine) RenderTubePreview(tube int, energy float64, samples int) ([]float64, error) {
	if tube < 0 || tube >= len(e.banks) {
		return nil, configErrorf("tube %d out of range [0, %d)", tube, len(e.banks))
	}
	if samples < 1 {
		return nil, configErrorf("preview length must be >= 1 sample, got %d", samples)
	}
	rng := rand.New(rand.NewSource(e.params.Seed))
	b := NewBurst(e.params.SampleRate, rng)
	b.Reset(0, energy)
	x := make([]float64, samples)
	for n := range x {
		x[n] = b.Update(n)
	}
	return e.banks[tube].Process(x)
}

// scan is the sequential pass: wind, energy, hit probability and trigger
// state for every sample.
func (e *Engine) scan(rng Source) (Diagnostics, error) {
	p := e.params
	m := p.Samples
	d := Diagnostics{
		Wind:    make([]float64, m),
		Energy:  make([]float64, m),
		HitProb: make([]float64, m),
		States:  make([]State, m),
	}
	integ := NewEnergyIntegrator(p.SampleRate, p.Wind)
	trig, err := NewTrigger(len(p.Tubes), e.dwellMin, e.dwellMax, rng)
	if err != nil {
		return d, err
	}
	ts := 1.0 / float64(p.SampleRate)
	for n := 0; n < m; n++ {
		d.Wind[n] = p.Wind.Force(float64(n) * ts)
		en, err := integ.Step(n)
		if err != nil {
			return d, err
		}
		prob := HitProbability(en)
		d.Energy[n] = en
		d.HitProb[n] = prob
		d.States[n] = trig.Update(n, prob)
	}
	return d, nil
}

// extractStrikes converts held trigger states into burst resets.
func extractStrikes(states []State, energy []float64, policy EdgePolicy) []Strike {
	var strikes []Strike
	for n, s := range states {
		if s == Idle {
			continue
		}
		switch policy {
		case EdgeRising:
			if n > 0 && states[n-1] == s {
				continue
			}
		case EdgeRunEnd:
			if n+1 < len(states) && states[n+1] == s {
				continue
			}
		case EdgeLevel:
		}
		strikes = append(strikes, Strike{Sample: n, Tube: s.Tube(), Energy: energy[n]})
	}
	return strikes
}

// excite builds each tube's burst sequence, tube by tube, from one stream.
func (e *Engine) excite(strikes []Strike, energy []float64, rng Source) [][]float64 {
	p := e.params
	perTube := make([][]int, len(p.Tubes))
	for _, s := range strikes {
		perTube[s.Tube] = append(perTube[s.Tube], s.Sample)
	}

	out := make([][]float64, len(p.Tubes))
	for i := range out {
		b := NewBurst(p.SampleRate, rng)
		x := make([]float64, p.Samples)
		pending := perTube[i]
		for n := range x {
			if len(pending) > 0 && pending[0] == n {
				b.Reset(n, energy[n])
				pending = pending[1:]
			}
			x[n] = b.Update(n)
		}
		out[i] = x
	}
	return out
}

// filter runs every tube's resonator bank. Tubes share no state, so the
// passes run in parallel.
func (e *Engine) filter(excitation [][]float64) ([][]float64, error) {
	tubes := make([][]float64, len(excitation))
	var g errgroup.Group
	g.SetLimit(e.workers)
	for i := range excitation {
		g.Go(func() error {
			y, err := e.banks[i].Process(excitation[i])
			if err != nil {
				return fmt.Errorf("tube %d: %w", i, err)
			}
			tubes[i] = y
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return tubes, nil
}

func mixTubes(tubes [][]float64, samples int) ([]float64, error) {
	if len(tubes) == 0 {
		return nil, fmt.Errorf("%w: no tubes to mix", ErrComputation)
	}
	mix := make([]float64, samples)
	g := 1.0 / float64(len(tubes))
	for _, t := range tubes {
		for n, v := range t {
			mix[n] += v * g
		}
	}
	for n, v := range mix {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: non-finite output at sample %d", ErrComputation, n)
		}
	}
	return mix, nil
}
