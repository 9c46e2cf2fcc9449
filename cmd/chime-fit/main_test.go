package main

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-chimes/chime"
	"github.com/cwbudde/algo-chimes/preset"
)

func TestNewMayflyConfigVariants(t *testing.T) {
	for _, v := range []string{"ma", "desma", "olce", "eobbma", "gsasma", "mpma", "aoblmoa"} {
		cfg, err := newMayflyConfig(v, 10, 3, 4)
		if err != nil {
			t.Fatalf("%s: %v", v, err)
		}
		if cfg.ProblemSize != 3 || cfg.MaxIterations != 4 || cfg.NPop != 10 || cfg.NC != 20 || cfg.NM != 1 {
			t.Fatalf("%s: unexpected config %+v", v, cfg)
		}
	}
	if _, err := newMayflyConfig("pso", 10, 3, 4); err == nil {
		t.Fatalf("expected error for unknown variant")
	}
}

func TestFromNormalizedClampsToKnobRange(t *testing.T) {
	defs := knobDefs()
	c := fromNormalized([]float64{-1, 0.5, 2}, defs)
	if c.Vals[0] != defs[0].Min {
		t.Fatalf("wind_level: got %g want %g", c.Vals[0], defs[0].Min)
	}
	if want := (defs[1].Min + defs[1].Max) / 2; math.Abs(c.Vals[1]-want) > 1e-12 {
		t.Fatalf("dwell_min_s: got %g want %g", c.Vals[1], want)
	}
	if c.Vals[2] != defs[2].Max {
		t.Fatalf("dwell_span_s: got %g want %g", c.Vals[2], defs[2].Max)
	}
	short := fromNormalized(nil, defs)
	if short.Vals[1] != defs[1].Min {
		t.Fatalf("missing positions should map to the minimum")
	}
}

func TestInitCandidateReadsDefaults(t *testing.T) {
	p := chime.NewDefaultParams()
	env := p.Wind.(*chime.Envelope)
	k := knobMap(knobDefs(), initCandidate(p, env, knobDefs()))
	if k["wind_level"] != 2 || k["dwell_min_s"] != 0.03 || math.Abs(k["dwell_span_s"]-0.02) > 1e-12 {
		t.Fatalf("unexpected start knobs %v", k)
	}
}

func newTestFitter(target float64) *fitter {
	p := chime.NewDefaultParams()
	p.SetDuration(8)
	return &fitter{
		base:       p,
		envelope:   chime.DefaultEnvelope(),
		defs:       knobDefs(),
		targetRate: target,
		from:       4,
		to:         8,
		trials:     2,
	}
}

func TestEvaluateScoresRelativeRateError(t *testing.T) {
	f := newTestFitter(3)
	c := initCandidate(f.base, f.envelope, f.defs)
	score, rate, err := f.evaluate(c)
	if err != nil {
		t.Fatal(err)
	}
	if rate <= 0 {
		t.Fatalf("expected strikes in the fit window, got rate %g", rate)
	}
	if want := math.Abs(rate-3) / 3; math.Abs(score-want) > 1e-12 {
		t.Fatalf("score %g, want %g", score, want)
	}

	again, _, err := f.evaluate(c)
	if err != nil {
		t.Fatal(err)
	}
	if again != score {
		t.Fatalf("evaluation is not deterministic: %g vs %g", score, again)
	}
}

func TestStrongerWindRaisesRate(t *testing.T) {
	f := newTestFitter(3)
	calm := fromNormalized([]float64{0, 0.1, 0.1}, f.defs)
	gusty := fromNormalized([]float64{1, 0.1, 0.1}, f.defs)
	_, calmRate, err := f.evaluate(calm)
	if err != nil {
		t.Fatal(err)
	}
	_, gustyRate, err := f.evaluate(gusty)
	if err != nil {
		t.Fatal(err)
	}
	if gustyRate <= calmRate {
		t.Fatalf("expected stronger wind to strike more often: calm %g gusty %g", calmRate, gustyRate)
	}
}

func TestPresetFileRoundTripsThroughLoader(t *testing.T) {
	f := newTestFitter(3)
	c := fromNormalized([]float64{0.5, 0.2, 0.3}, f.defs)
	want := f.apply(c)

	got := chime.NewDefaultParams()
	if err := preset.ApplyFile(got, f.presetFile(c)); err != nil {
		t.Fatal(err)
	}
	if err := got.Validate(); err != nil {
		t.Fatal(err)
	}
	if got.Samples != want.Samples || got.DwellMin != want.DwellMin || got.DwellMax != want.DwellMax {
		t.Fatalf("preset mismatch: samples %d/%d dwell %g..%g vs %g..%g",
			got.Samples, want.Samples, got.DwellMin, got.DwellMax, want.DwellMin, want.DwellMax)
	}
	env := got.Wind.(*chime.Envelope)
	if math.Abs(env.Peak()-knobMap(f.defs, c)["wind_level"]) > 1e-12 {
		t.Fatalf("wind peak %g does not match knob", env.Peak())
	}
}

func TestBaseEnvelopeAcceptsGust(t *testing.T) {
	g := chime.NewGust(1.5, 4)
	env, ok := baseEnvelope(g)
	if !ok {
		t.Fatalf("expected gust to yield an envelope")
	}
	if env.Force(5) != g.Force(5) || env.Peak() != 1.5 {
		t.Fatalf("gust envelope mismatch: %v", env.Segments)
	}
	if _, ok := baseEnvelope(chime.WindFunc(func(float64) float64 { return 1 })); ok {
		t.Fatalf("expected plain wind functions to be rejected")
	}
}
