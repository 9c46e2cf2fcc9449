package room

import (
	"fmt"

	dspconv "github.com/cwbudde/algo-dsp/dsp/conv"

	"github.com/cwbudde/algo-chimes/internal/wavio"
)

// PartSize is the convolver block length in samples.
const PartSize = 128

// Convolver applies an impulse response with streaming overlap-add.
type Convolver struct {
	irLen int
	ola   *dspconv.StreamingOverlapAddT[float32, complex64]
	in    []float32
	out   []float32
}

// NewConvolver creates a convolver for ir. An empty IR is an identity.
func NewConvolver(ir []float32) (*Convolver, error) {
	if len(ir) == 0 {
		ir = []float32{1}
	}
	ola, err := dspconv.NewStreamingOverlapAdd32(ir, PartSize)
	if err != nil {
		return nil, fmt.Errorf("room: convolver: %w", err)
	}
	return &Convolver{
		irLen: len(ir),
		ola:   ola,
		in:    make([]float32, PartSize),
		out:   make([]float32, PartSize),
	}, nil
}

// Len returns the impulse response length.
func (c *Convolver) Len() int { return c.irLen }

// Reset clears the overlap history.
func (c *Convolver) Reset() { c.ola.Reset() }

// Process convolves x and returns len(x) output samples. History carries
// across calls until Reset.
func (c *Convolver) Process(x []float64) ([]float64, error) {
	y := make([]float64, len(x))
	for pos := 0; pos < len(x); pos += PartSize {
		end := min(pos+PartSize, len(x))
		clear(c.in)
		for i := pos; i < end; i++ {
			c.in[i-pos] = float32(x[i])
		}
		if err := c.ola.ProcessBlockTo(c.out, c.in); err != nil {
			return nil, fmt.Errorf("room: convolve block at %d: %w", pos, err)
		}
		for i := pos; i < end; i++ {
			y[i] = float64(c.out[i-pos])
		}
	}
	return y, nil
}

// Apply returns (1-wet)*dry + wet*(dry convolved with ir), same length as dry.
func Apply(dry []float64, ir []float32, wet float64) ([]float64, error) {
	if wet < 0 || wet > 1 {
		return nil, fmt.Errorf("room: wet mix %g outside [0,1]", wet)
	}
	c, err := NewConvolver(ir)
	if err != nil {
		return nil, err
	}
	y, err := c.Process(dry)
	if err != nil {
		return nil, err
	}
	for i := range y {
		y[i] = (1-wet)*dry[i] + wet*y[i]
	}
	return y, nil
}

// LoadIR reads a WAV impulse response, folds it to mono, resamples it to
// sampleRate and normalizes its peak to 1.
func LoadIR(path string, sampleRate int) ([]float32, error) {
	x, sr, err := wavio.ReadWAVMono(path)
	if err != nil {
		return nil, err
	}
	if len(x) == 0 {
		return nil, fmt.Errorf("empty wav data: %s", path)
	}
	x, err = wavio.ResampleIfNeeded(x, sr, sampleRate)
	if err != nil {
		return nil, err
	}
	peak := wavio.Peak(x)
	if peak == 0 {
		return nil, fmt.Errorf("silent impulse response: %s", path)
	}
	return wavio.ToFloat32(x, 1/peak), nil
}
