package wavio

import (
	"math"
	"path/filepath"
	"testing"
)

func TestWriteAndReadMonoWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "tone.wav")
	const sr = 11025
	x := make([]float64, sr/10)
	for i := range x {
		x[i] = 0.5 * math.Sin(2*math.Pi*440*float64(i)/sr)
	}
	if err := WriteMonoWAV(path, x, sr, 0.9); err != nil {
		t.Fatalf("WriteMonoWAV: %v", err)
	}
	got, rate, err := ReadWAVMono(path)
	if err != nil {
		t.Fatalf("ReadWAVMono: %v", err)
	}
	if rate != sr {
		t.Fatalf("expected rate %d got %d", sr, rate)
	}
	if len(got) != len(x) {
		t.Fatalf("expected %d frames got %d", len(x), len(got))
	}
	// Compare shapes; the decoded scale depends on the source bit depth.
	g, w := Peak(got), Peak(x)
	if g == 0 {
		t.Fatalf("decoded silence")
	}
	for i := range x {
		if math.Abs(got[i]/g-x[i]/w) > 1e-3 {
			t.Fatalf("sample %d: got %f want %f", i, got[i]/g, x[i]/w)
		}
	}
}

func TestResampleIfNeeded(t *testing.T) {
	x := make([]float64, 11025)
	same, err := ResampleIfNeeded(x, 11025, 11025)
	if err != nil || len(same) != len(x) {
		t.Fatalf("expected passthrough, got len=%d err=%v", len(same), err)
	}
	up, err := ResampleIfNeeded(x, 11025, 44100)
	if err != nil {
		t.Fatalf("ResampleIfNeeded: %v", err)
	}
	if math.Abs(float64(len(up))-44100) > 64 {
		t.Fatalf("expected about 44100 samples, got %d", len(up))
	}
}

func TestDBToGain(t *testing.T) {
	for _, db := range []float64{-40, -6, 0, 6} {
		want := math.Pow(10, db/20)
		if got := DBToGain(db); math.Abs(got-want)/want > 1e-2 {
			t.Fatalf("DBToGain(%g) = %g, want %g", db, got, want)
		}
	}
}

func TestHeadroomGainAndPeak(t *testing.T) {
	if p := Peak([]float64{0.1, -0.8, 0.3}); p != 0.8 {
		t.Fatalf("expected peak 0.8 got %g", p)
	}
	if g := HeadroomGain(0.5, 0.9); g != 1.8 {
		t.Fatalf("expected gain 1.8 got %g", g)
	}
	if g := HeadroomGain(0, 0.9); g != 1 {
		t.Fatalf("expected unity gain for silence got %g", g)
	}
}

func TestParseWorkers(t *testing.T) {
	if n, err := ParseWorkers("auto"); err != nil || n != 0 {
		t.Fatalf("auto: n=%d err=%v", n, err)
	}
	if n, err := ParseWorkers(" 4 "); err != nil || n != 4 {
		t.Fatalf("4: n=%d err=%v", n, err)
	}
	for _, bad := range []string{"", "0", "-2", "many"} {
		if _, err := ParseWorkers(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}
