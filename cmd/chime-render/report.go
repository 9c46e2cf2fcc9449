package main

import (
	"math"

	"github.com/cwbudde/algo-chimes/analysis"
	"github.com/cwbudde/algo-chimes/chime"
)

type renderReport struct {
	Preset     string               `json:"preset,omitempty"`
	SampleRate int                  `json:"sample_rate"`
	Samples    int                  `json:"samples"`
	Seed       int64                `json:"seed"`
	EdgePolicy string               `json:"edge_policy"`
	Tubes      int                  `json:"tubes"`
	Modes      int                  `json:"modes"`
	ElapsedSec float64              `json:"elapsed_sec"`
	OutputGain float64              `json:"output_gain"`
	Strikes    analysis.StrikeStats `json:"strikes"`
	StrikeList []chime.Strike       `json:"strike_list"`
	Previews   []previewReport      `json:"previews,omitempty"`
	Reference  string               `json:"reference,omitempty"`
	Comparison *analysis.Metrics    `json:"comparison,omitempty"`
}

// previewReport compares a single-strike preview against the tube's
// configured strongest mode.
type previewReport struct {
	Tube          int     `json:"tube"`
	ModeFreqHz    float64 `json:"mode_freq_hz"`
	ModeT60       float64 `json:"mode_t60"`
	PeakFreqHz    float64 `json:"peak_freq_hz"`
	EstimatedT60  float64 `json:"estimated_t60,omitempty"`
	DecayDBPerSec float64 `json:"decay_db_per_s,omitempty"`
}

func measurePreview(tube int, y []float64, p *chime.Params) previewReport {
	modes := p.Tubes[tube]
	strongest := modes[0]
	for _, m := range modes[1:] {
		if math.Abs(m.Gain) > math.Abs(strongest.Gain) {
			strongest = m
		}
	}
	r := previewReport{
		Tube:       tube + 1,
		ModeFreqHz: strongest.Freq,
		ModeT60:    strongest.T60,
		PeakFreqHz: math.NaN(),
	}
	if spec, err := analysis.NewSpectrum(y, p.SampleRate); err == nil {
		r.PeakFreqHz = spec.PeakFrequency(strongest.Freq*0.9, strongest.Freq*1.1)
	}
	if t60, err := analysis.EstimateT60(y, p.SampleRate); err == nil && !math.IsInf(t60, 0) {
		r.EstimatedT60 = t60
	}
	if slope := analysis.DecayRate(y, p.SampleRate); !math.IsNaN(slope) {
		r.DecayDBPerSec = slope
	}
	if math.IsNaN(r.PeakFreqHz) {
		r.PeakFreqHz = 0
	}
	return r
}
