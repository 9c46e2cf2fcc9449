package chime

import (
	"errors"
	"math"
	"testing"
)

// directForm filters x with the plain difference equation
// y[n] = b0 x[n] + b1 x[n-1] + b2 x[n-2] - a1 y[n-1] - a2 y[n-2].
func directForm(b, a [3]float64, x []float64) []float64 {
	y := make([]float64, len(x))
	var x1, x2, y1, y2 float64
	for i, v := range x {
		out := b[0]*v + b[1]*x1 + b[2]*x2 - a[1]*y1 - a[2]*y2
		x2, x1 = x1, v
		y2, y1 = y1, out
		y[i] = out
	}
	return y
}

func TestCoefficientsMatchReferenceTable(t *testing.T) {
	cases := []struct {
		mode   Mode
		b0     float64
		a1, a2 float64
		pole   float64
	}{
		{Mode{Freq: 219.8, T60: 40, Gain: 0.0787}, 0.019664537132491156, -1.9842670792615222, 0.9999373465861271, 0.9999686728023669},
		{Mode{Freq: 1465.2, T60: 2, Gain: 1}, 1.48169510912585, -1.3414809631742195, 0.9987476772777912, 0.9993736424770223},
	}
	for _, tc := range cases {
		c, err := NewCoefficients(tc.mode, DefaultSampleRate, PhasePerSampleRate)
		if err != nil {
			t.Fatalf("NewCoefficients(%+v): %v", tc.mode, err)
		}
		const tol = 1e-12
		if math.Abs(c.B[0]-tc.b0) > tol || c.B[1] != 0 || math.Abs(c.B[2]+tc.b0) > tol {
			t.Fatalf("%g Hz: b = %v, want [%g 0 %g]", tc.mode.Freq, c.B, tc.b0, -tc.b0)
		}
		if c.A[0] != 1 || math.Abs(c.A[1]-tc.a1) > tol || math.Abs(c.A[2]-tc.a2) > tol {
			t.Fatalf("%g Hz: a = %v, want [1 %g %g]", tc.mode.Freq, c.A, tc.a1, tc.a2)
		}
		if math.Abs(c.R-tc.pole) > tol {
			t.Fatalf("%g Hz: R = %g, want %g", tc.mode.Freq, c.R, tc.pole)
		}
	}
}

func TestPhaseConventionsAgree(t *testing.T) {
	for _, row := range DefaultFrequencies {
		for k, f := range row {
			m := Mode{Freq: f, T60: DefaultT60[k], Gain: DefaultGains[k]}
			a, err := NewCoefficients(m, DefaultSampleRate, PhasePerSampleRate)
			if err != nil {
				t.Fatal(err)
			}
			b, err := NewCoefficients(m, DefaultSampleRate, PhasePerSamplePeriod)
			if err != nil {
				t.Fatal(err)
			}
			for i := range a.A {
				if math.Abs(a.A[i]-b.A[i]) > 1e-12 || math.Abs(a.B[i]-b.B[i]) > 1e-12 {
					t.Fatalf("%g Hz: conventions disagree: %v/%v vs %v/%v", f, a.B, a.A, b.B, b.A)
				}
			}
		}
	}
}

// The free response of a pole pair satisfies
// y[n]^2 - y[n-1]*y[n+1] = C^2 * R^(2n) * sin^2(theta), so its square root
// tracks the decay envelope exactly.
func TestImpulseResponseDecaysInT60(t *testing.T) {
	const sampleRate = 11025
	const t60 = 1.0
	c, err := NewCoefficients(Mode{Freq: 440, T60: t60, Gain: 1}, sampleRate, PhasePerSampleRate)
	if err != nil {
		t.Fatal(err)
	}
	x := make([]float64, 2*sampleRate)
	x[0] = 1
	y := directForm(c.B, c.A, x)
	env := func(n int) float64 {
		return math.Sqrt(y[n]*y[n] - y[n-1]*y[n+1])
	}
	const n0 = 3
	ref := env(n0)
	crossing := -1
	for n := n0 + 1; n < len(y)-1; n++ {
		if env(n)/ref <= T60Floor {
			crossing = n - n0
			break
		}
	}
	want := t60 * sampleRate
	if crossing < 0 || math.Abs(float64(crossing)-want) > 1 {
		t.Fatalf("envelope reached %g after %d samples, want %g", T60Floor, crossing, want)
	}
}

func TestCoefficientsBiquadView(t *testing.T) {
	c, err := NewCoefficients(Mode{Freq: 1000, T60: 0.5, Gain: 0.3}, 44100, PhasePerSampleRate)
	if err != nil {
		t.Fatal(err)
	}
	bq := c.Biquad()
	if bq.B0 != c.B[0] || bq.B1 != 0 || bq.B2 != c.B[2] || bq.A1 != c.A[1] || bq.A2 != c.A[2] {
		t.Fatalf("biquad view mismatch: %+v vs %v/%v", bq, c.B, c.A)
	}
	s := c.Section()
	if s.B != c.B || s.A != c.A {
		t.Fatalf("section mismatch")
	}
}

func TestNewCoefficientsErrors(t *testing.T) {
	cases := []struct {
		name string
		mode Mode
		sr   int
		conv PhaseConvention
		want error
	}{
		{"zero t60", Mode{Freq: 440, T60: 0, Gain: 1}, 11025, PhasePerSampleRate, ErrConfig},
		{"negative t60", Mode{Freq: 440, T60: -1, Gain: 1}, 11025, PhasePerSampleRate, ErrConfig},
		{"infinite t60", Mode{Freq: 440, T60: math.Inf(1), Gain: 1}, 11025, PhasePerSampleRate, ErrConfig},
		{"nan t60", Mode{Freq: 440, T60: math.NaN(), Gain: 1}, 11025, PhasePerSampleRate, ErrConfig},
		{"zero rate", Mode{Freq: 440, T60: 1, Gain: 1}, 0, PhasePerSampleRate, ErrConfig},
		{"bad phase", Mode{Freq: 440, T60: 1, Gain: 1}, 11025, PhaseConvention(9), ErrConfig},
		{"pole at unit circle", Mode{Freq: 440, T60: 1e300, Gain: 1}, 11025, PhasePerSampleRate, ErrComputation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewCoefficients(tc.mode, tc.sr, tc.conv)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestResonatorBankNormalizesByModeCount(t *testing.T) {
	m := Mode{Freq: 700, T60: 0.3, Gain: 1}
	single, err := NewResonatorBank([]Mode{m}, 11025, PhasePerSampleRate)
	if err != nil {
		t.Fatal(err)
	}
	triple, err := NewResonatorBank([]Mode{m, m, m}, 11025, PhasePerSampleRate)
	if err != nil {
		t.Fatal(err)
	}
	x := make([]float64, 2000)
	rng := seeded(4)
	for i := 0; i < 200; i++ {
		x[i] = 2*rng.Float64() - 1
	}
	a, err := single.Process(x)
	if err != nil {
		t.Fatal(err)
	}
	b, err := triple.Process(x)
	if err != nil {
		t.Fatal(err)
	}
	for n := range a {
		if math.Abs(a[n]-b[n]) > 1e-12 {
			t.Fatalf("sample %d: single %g vs triple %g", n, a[n], b[n])
		}
	}
	if len(triple.Sections()) != 3 || len(triple.Coefficients()) != 3 {
		t.Fatalf("expected three sections")
	}
}

func TestResonatorBankRejectsEmptyAndBadModes(t *testing.T) {
	empty, err := NewResonatorBank(nil, 11025, PhasePerSampleRate)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := empty.Process(make([]float64, 4)); !errors.Is(err, ErrComputation) {
		t.Fatalf("expected ErrComputation for empty bank, got %v", err)
	}
	_, err = NewResonatorBank([]Mode{{Freq: 100, T60: 1, Gain: 1}, {Freq: 200, T60: 0, Gain: 1}}, 11025, PhasePerSampleRate)
	if !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}

func TestResonatorBankMatchesDifferenceEquation(t *testing.T) {
	modes := []Mode{{Freq: 293.9, T60: 2, Gain: 0.5}, {Freq: 1465.2, T60: 0.5, Gain: 1}}
	bank, err := NewResonatorBank(modes, DefaultSampleRate, PhasePerSampleRate)
	if err != nil {
		t.Fatal(err)
	}
	x := make([]float64, 4096)
	rng := seeded(9)
	for i := 0; i < 300; i++ {
		x[i] = 2*rng.Float64() - 1
	}
	got, err := bank.Process(x)
	if err != nil {
		t.Fatal(err)
	}
	want := make([]float64, len(x))
	for _, c := range bank.Coefficients() {
		for i, v := range directForm(c.B, c.A, x) {
			want[i] += v / float64(len(modes))
		}
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9*(1+math.Abs(want[i])) {
			t.Fatalf("sample %d: bank %g, difference equation %g", i, got[i], want[i])
		}
	}

	empty, err := bank.Process(nil)
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected empty output for empty input, got %v, %v", empty, err)
	}
}
