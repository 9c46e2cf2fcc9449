package chime

import (
	"fmt"
	"math"
)

// EnergyDecay is the leak factor of the energy integrator.
const EnergyDecay = 0.9999

// EnergyIntegrator turns the wind force into a stored energy value, one sample
// at a time. It owns the only energy state of a render.
type EnergyIntegrator struct {
	ts   float64
	wind WindModel
	e    float64
}

// NewEnergyIntegrator creates an integrator seeded with zero energy.
func NewEnergyIntegrator(sampleRate int, wind WindModel) *EnergyIntegrator {
	return &EnergyIntegrator{
		ts:   1.0 / float64(sampleRate),
		wind: wind,
	}
}

// Step advances the integrator for sample n using the wind force at the
// previous sample time and returns the new energy. Sample 0 holds the seed
// energy and reads no wind.
func (ei *EnergyIntegrator) Step(n int) (float64, error) {
	if n <= 0 {
		return ei.e, nil
	}
	dn := ei.ts * ei.wind.Force(float64(n-1)*ei.ts)
	e := EnergyDecay * (ei.e + dn)
	if math.IsNaN(e) || math.IsInf(e, 0) {
		return ei.e, fmt.Errorf("%w: non-finite energy at sample %d", ErrComputation, n)
	}
	ei.e = e
	return e, nil
}

// Value returns the current energy.
func (ei *EnergyIntegrator) Value() float64 {
	return ei.e
}

// Reset returns the integrator to zero energy.
func (ei *EnergyIntegrator) Reset() {
	ei.e = 0
}

// HitProbability maps energy to a strike probability on a logistic curve.
// HitProbability(0) == 0.01.
func HitProbability(e float64) float64 {
	return 1.0 / (1.0 + 99.0*math.Exp(-2.0*e))
}
