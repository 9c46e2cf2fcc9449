package analysis

import "math"

// Metrics contains distance measurements between two renders.
type Metrics struct {
	SampleRate int `json:"sample_rate"`

	ReferenceFrames int `json:"reference_frames"`
	CandidateFrames int `json:"candidate_frames"`
	AlignedFrames   int `json:"aligned_frames"`
	LagSamples      int `json:"lag_samples"`

	TimeRMSE        float64 `json:"time_rmse"`
	EnvelopeRMSEDB  float64 `json:"envelope_rmse_db"`
	SpectralRMSEDB  float64 `json:"spectral_rmse_db"`
	RefDecayDBPerS  float64 `json:"ref_decay_db_per_s"`
	CandDecayDBPerS float64 `json:"cand_decay_db_per_s"`
	DecayDiffDBPerS float64 `json:"decay_diff_db_per_s"`

	Score      float64 `json:"score"`
	Similarity float64 `json:"similarity"`
}

// Compare aligns candidate to reference and returns distance metrics with a
// combined score in [0,1]; 0 means identical.
func Compare(reference []float64, candidate []float64, sampleRate int) Metrics {
	m := Metrics{
		SampleRate:      sampleRate,
		ReferenceFrames: len(reference),
		CandidateFrames: len(candidate),
		Score:           1,
	}
	ref := trimLeadingSilence(reference, 1e-6)
	cand := trimLeadingSilence(candidate, 1e-6)
	if sampleRate <= 0 || len(ref) == 0 || len(cand) == 0 {
		return m
	}
	ref = normalizeRMS(ref, 0.1)
	cand = normalizeRMS(cand, 0.1)

	maxLag := min(sampleRate/2, len(ref)-1, len(cand)-1)
	maxLag = max(maxLag, 1)
	m.LagSamples = estimateLag(ref, cand, maxLag)

	refA, candA := alignByLag(ref, cand, m.LagSamples)
	n := min(len(refA), len(candA))
	if n < 4*EnvelopeFrame {
		return m
	}
	refA = refA[:n]
	candA = candA[:n]
	m.AlignedFrames = n

	m.TimeRMSE = rmse(refA, candA)

	refEnv := rmsEnvelope(refA, EnvelopeFrame, EnvelopeHop)
	candEnv := rmsEnvelope(candA, EnvelopeFrame, EnvelopeHop)
	envDiff := make([]float64, min(len(refEnv), len(candEnv)))
	for i := range envDiff {
		envDiff[i] = linToDB(refEnv[i]) - linToDB(candEnv[i])
	}
	m.EnvelopeRMSEDB = rms1(envDiff)

	refSpec, err1 := NewSpectrum(refA, sampleRate)
	candSpec, err2 := NewSpectrum(candA, sampleRate)
	if err1 == nil && err2 == nil {
		d := make([]float64, len(refSpec.Mag)-1)
		for k := range d {
			d[k] = linToDB(refSpec.Mag[k+1]) - linToDB(candSpec.Mag[k+1])
		}
		m.SpectralRMSEDB = rms1(d)
	}

	hopSec := float64(EnvelopeHop) / float64(sampleRate)
	// Unmeasurable decays stay zero so Metrics always encodes as JSON.
	refDecay := decaySlopeDBPerS(refEnv, hopSec)
	candDecay := decaySlopeDBPerS(candEnv, hopSec)
	if isFinite(refDecay) && isFinite(candDecay) {
		m.RefDecayDBPerS = refDecay
		m.CandDecayDBPerS = candDecay
		m.DecayDiffDBPerS = math.Abs(refDecay - candDecay)
	}

	timeNorm := clamp01(m.TimeRMSE / 0.25)
	envNorm := clamp01(m.EnvelopeRMSEDB / 30.0)
	specNorm := clamp01(m.SpectralRMSEDB / 30.0)
	decNorm := clamp01(m.DecayDiffDBPerS / 40.0)
	m.Score = clamp01(0.30*timeNorm + 0.25*envNorm + 0.30*specNorm + 0.15*decNorm)
	m.Similarity = clamp01(math.Exp(-4.0 * m.Score))
	return m
}

func trimLeadingSilence(x []float64, threshold float64) []float64 {
	for i, v := range x {
		if math.Abs(v) > threshold {
			return x[i:]
		}
	}
	return nil
}

func normalizeRMS(x []float64, target float64) []float64 {
	r := rms1(x)
	if r <= 1e-12 {
		return append([]float64(nil), x...)
	}
	g := target / r
	out := make([]float64, len(x))
	for i := range x {
		out[i] = x[i] * g
	}
	return out
}

func estimateLag(ref []float64, cand []float64, maxLag int) int {
	step := 2
	if len(ref) > 200000 || len(cand) > 200000 {
		step = 4
	}
	bestLag := 0
	best := math.Inf(-1)
	for lag := -maxLag; lag <= maxLag; lag++ {
		if s := dotAtLag(ref, cand, lag, step); s > best {
			best = s
			bestLag = lag
		}
	}
	return bestLag
}

func dotAtLag(a []float64, b []float64, lag int, step int) float64 {
	ai, bi := lag, 0
	if lag < 0 {
		ai, bi = 0, -lag
	}
	n := min(len(a)-ai, len(b)-bi)
	var sum float64
	for i := 0; i < n; i += step {
		sum += a[ai+i] * b[bi+i]
	}
	return sum
}

func alignByLag(ref []float64, cand []float64, lag int) ([]float64, []float64) {
	if lag >= 0 {
		if lag >= len(ref) {
			return nil, nil
		}
		return ref[lag:], cand
	}
	if -lag >= len(cand) {
		return nil, nil
	}
	return ref, cand[-lag:]
}

func rmse(a []float64, b []float64) float64 {
	n := min(len(a), len(b))
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum / float64(n))
}

func clamp01(x float64) float64 {
	return math.Min(1, math.Max(0, x))
}
