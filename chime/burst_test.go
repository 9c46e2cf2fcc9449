package chime

import (
	"math"
	"testing"
)

func TestBurstSilentBeforeReset(t *testing.T) {
	b := NewBurst(11025, seeded(1))
	for n := 0; n < 1000; n++ {
		if v := b.Update(n); v != 0 {
			t.Fatalf("expected silence before reset, got %g at %d", v, n)
		}
	}
}

func TestBurstWindowAndDecay(t *testing.T) {
	const sampleRate = 11025
	src := &fixedSource{u: 1}
	b := NewBurst(sampleRate, src)
	if b.Window() != 221 {
		t.Fatalf("expected window 221, got %d", b.Window())
	}
	const start, energy = 100, 0.9
	b.Reset(start, energy)

	amp := math.Sqrt(energy + BurstEnergyFloor)
	if v := b.Update(start); math.Abs(v-amp) > 1e-12 {
		t.Fatalf("first sample %g, want %g", v, amp)
	}
	prev := amp
	for n := start + 1; n <= start+b.Window(); n++ {
		v := b.Update(n)
		if math.Abs(v/prev-BurstDecay) > 1e-12 {
			t.Fatalf("decay ratio %g at %d, want %g", v/prev, n, BurstDecay)
		}
		prev = v
	}
	if v := b.Update(start + b.Window() + 1); v != 0 {
		t.Fatalf("expected silence after window, got %g", v)
	}
	if b.Active() {
		t.Fatalf("burst should be inactive after its window")
	}
	if v := b.Update(start + 5000); v != 0 {
		t.Fatalf("expected silence long after window, got %g", v)
	}
}

func TestBurstBoundedByEnergy(t *testing.T) {
	b := NewBurst(11025, seeded(9))
	for _, e := range []float64{0, 0.5, 3, 10} {
		b.Reset(0, e)
		bound := math.Sqrt(e + BurstEnergyFloor)
		nonzero := 0
		for n := 0; n <= b.Window()+10; n++ {
			v := b.Update(n)
			if math.Abs(v) > bound {
				t.Fatalf("|x|=%g exceeds bound %g at energy %g", math.Abs(v), bound, e)
			}
			if n > b.Window() && v != 0 {
				t.Fatalf("nonzero sample %g outside window", v)
			}
			if v != 0 {
				nonzero++
			}
		}
		if nonzero < b.Window()/2 {
			t.Fatalf("expected noise inside window, only %d nonzero samples", nonzero)
		}
	}
}

func TestBurstResetRestarts(t *testing.T) {
	src := &fixedSource{u: 1}
	b := NewBurst(1000, src)
	b.Reset(0, 0)
	for n := 0; n < 10; n++ {
		b.Update(n)
	}
	b.Reset(10, 0)
	if v := b.Update(10); math.Abs(v-math.Sqrt(BurstEnergyFloor)) > 1e-12 {
		t.Fatalf("expected full amplitude after re-reset, got %g", v)
	}
}

func TestBurstNegativeEnergyClamped(t *testing.T) {
	b := NewBurst(1000, &fixedSource{u: 1})
	b.Reset(0, -5)
	if v := b.Update(0); math.Abs(v-math.Sqrt(BurstEnergyFloor)) > 1e-12 {
		t.Fatalf("expected floor amplitude for negative energy, got %g", v)
	}
}
