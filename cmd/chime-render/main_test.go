package main

import (
	"strings"
	"testing"

	"github.com/cwbudde/algo-chimes/chime"
	"github.com/cwbudde/algo-chimes/internal/wavio"
)

func TestTimelineRows(t *testing.T) {
	strikes := []chime.Strike{{Sample: 0, Tube: 0}, {Sample: 500, Tube: 1}, {Sample: 999, Tube: 1}}
	rows := timelineRows(strikes, 1000, 2, 10)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows got %d", len(rows))
	}
	if rows[0] != "tube 1 |........." {
		t.Fatalf("unexpected row 0: %q", rows[0])
	}
	if rows[1] != "tube 2 .....|...|" {
		t.Fatalf("unexpected row 1: %q", rows[1])
	}
}

func TestTubeFileName(t *testing.T) {
	if got := tubeFileName(0, ""); got != "tube_1.wav" {
		t.Fatalf("expected tube_1.wav got %s", got)
	}
	if got := tubeFileName(4, "_preview"); got != "tube_5_preview.wav" {
		t.Fatalf("expected tube_5_preview.wav got %s", got)
	}
}

func TestMeasurePreviewFindsStrongestMode(t *testing.T) {
	p := chime.NewDefaultParams()
	eng, err := chime.NewEngine(p)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	y, err := eng.RenderTubePreview(2, 0.2, 3*p.SampleRate)
	if err != nil {
		t.Fatalf("RenderTubePreview: %v", err)
	}
	r := measurePreview(2, y, p)
	if r.ModeFreqHz != 1465.2 || r.Tube != 3 {
		t.Fatalf("expected strongest mode 1465.2 Hz of tube 3, got %+v", r)
	}
	if d := r.PeakFreqHz - 1465.2; d > 2 || d < -2 {
		t.Fatalf("expected spectral peak near 1465.2 Hz got %.2f", r.PeakFreqHz)
	}
	if !strings.Contains(tubeFileName(2, "_preview"), "3") {
		t.Fatalf("preview file name should be 1-based")
	}
}

func TestRoomIRSynth(t *testing.T) {
	ir, err := roomIR(" Synth ", 11025, 0.5, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(ir) != 5513 {
		t.Fatalf("expected 5513 IR samples, got %d", len(ir))
	}
	if _, err := roomIR("does-not-exist.wav", 11025, 0.5, 3); err == nil {
		t.Fatalf("expected error for missing IR file")
	}
}

func TestOutputGainKeepsEveryFileInRange(t *testing.T) {
	eng, err := chime.NewEngine(chime.NewDefaultParams())
	if err != nil {
		t.Fatal(err)
	}
	res, err := eng.Render()
	if err != nil {
		t.Fatal(err)
	}
	mixGain := outputGain(res.Mix, 0.9, 0)
	louder := 0
	for i, tube := range res.Tubes {
		peak := wavio.Peak(tube)
		if peak == 0 {
			continue
		}
		if scaled := peak * outputGain(tube, 0.9, 0); scaled > 1 {
			t.Fatalf("tube %d: scaled peak %.3f clips", i+1, scaled)
		}
		if peak*mixGain > 1 {
			louder++
		}
	}
	if louder == 0 {
		t.Fatalf("expected at least one tube to exceed full scale under the composite gain")
	}
}
