package wavio

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cwbudde/algo-approx"
)

// DBToGain converts decibels to a linear amplitude factor.
func DBToGain(db float64) float64 {
	const ln10Over20 = 0.11512925464970228
	return float64(approx.FastExp(float32(db * ln10Over20)))
}

// HeadroomGain returns the factor that scales a signal with the given peak to
// target, or 1 for a silent signal.
func HeadroomGain(peak, target float64) float64 {
	if peak <= 0 {
		return 1
	}
	return target / peak
}

func ParseWorkers(raw string) (int, error) {
	v := strings.ToLower(strings.TrimSpace(raw))
	if v == "" {
		return 0, fmt.Errorf("empty value (use integer >= 1 or 'auto')")
	}
	if v == "auto" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%q (use integer >= 1 or 'auto')", raw)
	}
	if n < 1 {
		return 0, fmt.Errorf("%d (must be >= 1 or 'auto')", n)
	}
	return n, nil
}
