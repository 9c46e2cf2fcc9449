package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cwbudde/mayfly"

	"github.com/cwbudde/algo-chimes/analysis"
	"github.com/cwbudde/algo-chimes/chime"
	"github.com/cwbudde/algo-chimes/preset"
)

type knobDef struct {
	Name string
	Min  float64
	Max  float64
}

type candidate struct {
	Vals []float64
}

type runReport struct {
	PresetPath    string             `json:"preset_path"`
	OutputPreset  string             `json:"output_preset"`
	TargetRate    float64            `json:"target_rate_per_s"`
	WindowFromSec float64            `json:"window_from_s"`
	WindowToSec   float64            `json:"window_to_s"`
	Trials        int                `json:"trials"`
	DurationSec   float64            `json:"elapsed_seconds"`
	Evaluations   int                `json:"evaluations"`
	MayflyVariant string             `json:"mayfly_variant"`
	BestScore     float64            `json:"best_score"`
	BestRate      float64            `json:"best_rate_per_s"`
	BestKnobs     map[string]float64 `json:"best_knobs"`
	StartKnobs    map[string]float64 `json:"start_knobs"`
	StartRate     float64            `json:"start_rate_per_s"`
}

func main() {
	presetPath := flag.String("preset", "", "Base preset JSON path (defaults when empty)")
	outputPreset := flag.String("output-preset", "out/fitted-chimes.json", "Path to write the fitted preset JSON")
	reportPath := flag.String("report", "", "Optional report JSON path (default: <output-preset>.report.json)")
	targetRate := flag.Float64("target-rate", 3.0, "Target strikes per second inside the fit window")
	from := flag.Float64("from", 10, "Fit window start in seconds")
	to := flag.Float64("to", 20, "Fit window end in seconds")
	trials := flag.Int("trials", 4, "Seeds averaged per evaluation")
	seed := flag.Int64("seed", 1, "Random seed")
	timeBudget := flag.Float64("time-budget", 60.0, "Optimization time budget in seconds")
	maxEvals := flag.Int("max-evals", 400, "Maximum objective evaluations")
	reportEvery := flag.Int("report-every", 20, "Print progress every N evaluations")

	mayflyVariant := flag.String("mayfly-variant", "desma", "Mayfly variant: ma|desma|olce|eobbma|gsasma|mpma|aoblmoa")
	mayflyPop := flag.Int("mayfly-pop", 10, "Male and female population size per Mayfly run")
	mayflyRoundEvals := flag.Int("mayfly-round-evals", 120, "Target eval budget per Mayfly round")
	flag.Parse()

	if *targetRate <= 0 {
		die("target-rate must be > 0")
	}
	if *to <= *from || *from < 0 {
		die("fit window [%g, %g) is empty", *from, *to)
	}
	if *trials < 1 {
		*trials = 1
	}
	if *maxEvals < 1 {
		die("max-evals must be >= 1")
	}
	if *reportEvery < 1 {
		*reportEvery = 1
	}
	if *mayflyPop < 2 {
		*mayflyPop = 2
	}
	if *mayflyRoundEvals < *mayflyPop*2 {
		*mayflyRoundEvals = *mayflyPop * 2
	}
	if *reportPath == "" {
		*reportPath = *outputPreset + ".report.json"
	}

	base := chime.NewDefaultParams()
	if *presetPath != "" {
		var err error
		base, err = preset.LoadJSON(*presetPath)
		if err != nil {
			die("failed to load preset: %v", err)
		}
	}
	env, ok := baseEnvelope(base.Wind)
	if !ok {
		die("chime-fit needs an envelope wind, preset has %T", base.Wind)
	}
	if base.Duration() < *to {
		base.SetDuration(*to)
	}

	defs := knobDefs()
	fit := &fitter{
		base:       base,
		envelope:   env,
		defs:       defs,
		targetRate: *targetRate,
		from:       *from,
		to:         *to,
		trials:     *trials,
	}

	start := time.Now()
	deadline := start.Add(time.Duration(*timeBudget * float64(time.Second)))

	best := initCandidate(base, env, defs)
	bestScore, bestRate, err := fit.evaluate(best)
	if err != nil {
		die("initial evaluation failed: %v", err)
	}
	startCand, startRate := best, bestRate
	evals := 1
	fmt.Printf("Start rate=%.3f/s target=%.3f/s score=%.4f\n", bestRate, *targetRate, bestScore)

	round := 0
	for evals < *maxEvals && time.Now().Before(deadline) {
		round++
		budget := min(*mayflyRoundEvals, *maxEvals-evals)
		iters := max(1, budget/(2*(*mayflyPop)))

		cfg, err := newMayflyConfig(strings.ToLower(*mayflyVariant), *mayflyPop, len(defs), iters)
		if err != nil {
			die("invalid mayfly variant: %v", err)
		}
		cfg.Rand = rand.New(rand.NewSource(*seed + int64(round)*7919))
		cfg.ObjectiveFunc = func(pos []float64) float64 {
			if evals >= *maxEvals || time.Now().After(deadline) {
				return bestScore + 1.0
			}
			cand := fromNormalized(pos, defs)
			score, rate, err := fit.evaluate(cand)
			evals++
			if err != nil {
				return bestScore + 0.8
			}
			if score < bestScore {
				best, bestScore, bestRate = cand, score, rate
				fmt.Printf("Improved eval=%d rate=%.3f/s score=%.4f %s\n", evals, rate, score, formatKnobs(defs, cand))
			}
			if evals%*reportEvery == 0 {
				fmt.Printf("Progress round=%d eval=%d elapsed=%.1fs best=%.4f\n", round, evals, time.Since(start).Seconds(), bestScore)
			}
			return score
		}

		if _, err := runMayfly(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "mayfly round %d failed: %v\n", round, err)
			continue
		}
	}

	out := fit.presetFile(best)
	if err := writeJSON(*outputPreset, out); err != nil {
		die("write preset: %v", err)
	}
	rep := runReport{
		PresetPath:    *presetPath,
		OutputPreset:  *outputPreset,
		TargetRate:    *targetRate,
		WindowFromSec: *from,
		WindowToSec:   *to,
		Trials:        *trials,
		DurationSec:   time.Since(start).Seconds(),
		Evaluations:   evals,
		MayflyVariant: strings.ToLower(*mayflyVariant),
		BestScore:     bestScore,
		BestRate:      bestRate,
		BestKnobs:     knobMap(defs, best),
		StartKnobs:    knobMap(defs, startCand),
		StartRate:     startRate,
	}
	if err := writeJSON(*reportPath, rep); err != nil {
		die("write report: %v", err)
	}
	fmt.Printf("Done: %d evals in %.1fs, rate=%.3f/s (target %.3f/s)\n", evals, rep.DurationSec, bestRate, *targetRate)
	fmt.Printf("Wrote %s and %s\n", *outputPreset, *reportPath)
}

// fitter scores candidates by how far their mean strike rate inside the fit
// window is from the target.
type fitter struct {
	base       *chime.Params
	envelope   *chime.Envelope
	defs       []knobDef
	targetRate float64
	from, to   float64
	trials     int
}

func (f *fitter) apply(c candidate) *chime.Params {
	p := f.base.Clone()
	k := knobMap(f.defs, c)
	p.Wind = f.envelope.Scaled(k["wind_level"])
	p.DwellMin = k["dwell_min_s"]
	p.DwellMax = k["dwell_min_s"] + k["dwell_span_s"]
	return p
}

func (f *fitter) evaluate(c candidate) (float64, float64, error) {
	p := f.apply(c)
	var total float64
	for i := 0; i < f.trials; i++ {
		p.Seed = f.base.Seed + int64(i)
		eng, err := chime.NewEngine(p)
		if err != nil {
			return 0, 0, err
		}
		diag, err := eng.Simulate()
		if err != nil {
			return 0, 0, err
		}
		total += analysis.StrikeRate(diag.Strikes, p.SampleRate, f.from, f.to)
	}
	rate := total / float64(f.trials)
	return math.Abs(rate-f.targetRate) / f.targetRate, rate, nil
}

func (f *fitter) presetFile(c candidate) *preset.File {
	p := f.apply(c)
	env := p.Wind.(*chime.Envelope)
	segs := make([]preset.SegmentSetting, len(env.Segments))
	for i, s := range env.Segments {
		segs[i] = preset.SegmentSetting{DurationS: s.Duration, Level: s.Level}
	}
	duration := p.Duration()
	seed := f.base.Seed
	return &preset.File{
		SampleRate: &p.SampleRate,
		DurationS:  &duration,
		Seed:       &seed,
		DwellMinS:  &p.DwellMin,
		DwellMaxS:  &p.DwellMax,
		EdgePolicy: p.EdgePolicy.String(),
		Wind:       &preset.WindSetting{Segments: segs},
		Tubes:      p.Tubes,
	}
}

// baseEnvelope returns the envelope the fitter scales. A gust is frozen at
// its drawn shape.
func baseEnvelope(w chime.WindModel) (*chime.Envelope, bool) {
	switch w := w.(type) {
	case *chime.Envelope:
		return w, true
	case *chime.Gust:
		return w.Envelope(), true
	}
	return nil, false
}

func knobDefs() []knobDef {
	return []knobDef{
		{Name: "wind_level", Min: 0.1, Max: 8},
		{Name: "dwell_min_s", Min: 0.005, Max: 0.2},
		{Name: "dwell_span_s", Min: 0, Max: 0.1},
	}
}

func initCandidate(p *chime.Params, env *chime.Envelope, defs []knobDef) candidate {
	start := map[string]float64{
		"wind_level":   env.Peak(),
		"dwell_min_s":  p.DwellMin,
		"dwell_span_s": p.DwellMax - p.DwellMin,
	}
	vals := make([]float64, len(defs))
	for i, d := range defs {
		vals[i] = clamp(start[d.Name], d.Min, d.Max)
	}
	return candidate{Vals: vals}
}

func fromNormalized(pos []float64, defs []knobDef) candidate {
	vals := make([]float64, len(defs))
	for i := range defs {
		x := 0.0
		if i < len(pos) {
			x = clamp(pos[i], 0, 1)
		}
		vals[i] = defs[i].Min + x*(defs[i].Max-defs[i].Min)
	}
	return candidate{Vals: vals}
}

func knobMap(defs []knobDef, c candidate) map[string]float64 {
	m := make(map[string]float64, len(defs))
	for i, d := range defs {
		m[d.Name] = c.Vals[i]
	}
	return m
}

func formatKnobs(defs []knobDef, c candidate) string {
	parts := make([]string, len(defs))
	for i, d := range defs {
		parts[i] = fmt.Sprintf("%s=%.4f", d.Name, c.Vals[i])
	}
	return strings.Join(parts, " ")
}

func newMayflyConfig(variant string, pop int, dims int, iters int) (*mayfly.Config, error) {
	var cfg *mayfly.Config
	switch variant {
	case "ma":
		cfg = mayfly.NewDefaultConfig()
	case "desma":
		cfg = mayfly.NewDESMAConfig()
	case "olce":
		cfg = mayfly.NewOLCEConfig()
	case "eobbma":
		cfg = mayfly.NewEOBBMAConfig()
	case "gsasma":
		cfg = mayfly.NewGSASMAConfig()
	case "mpma":
		cfg = mayfly.NewMPMAConfig()
	case "aoblmoa":
		cfg = mayfly.NewAOBLMOAConfig()
	default:
		return nil, fmt.Errorf("unsupported variant %q", variant)
	}
	cfg.ProblemSize = dims
	cfg.LowerBound = 0.0
	cfg.UpperBound = 1.0
	cfg.MaxIterations = iters
	cfg.NPop = pop
	cfg.NPopF = pop
	cfg.NC = 2 * pop
	cfg.NM = max(1, int(math.Round(0.05*float64(pop))))
	return cfg, nil
}

func runMayfly(cfg *mayfly.Config) (_ *mayfly.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("mayfly panic: %v", r)
		}
	}()
	return mayfly.Optimize(cfg)
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return os.WriteFile(path, b, 0o644)
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
