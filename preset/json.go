package preset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cwbudde/algo-chimes/chime"
	"github.com/cwbudde/algo-chimes/windscript"
)

// WindTail is the ring-out time appended to an envelope wind when the preset
// does not set duration_s.
const WindTail = 5.0

// DefaultRandomLevel is the plateau of a random gust when wind.level is unset.
// The gust shape follows the render seed, not the seed at load time.
const DefaultRandomLevel = 2.0

// File is the JSON schema for chime presets.
type File struct {
	SampleRate      *int         `json:"sample_rate"`
	DurationS       *float64     `json:"duration_s"`
	Seed            *int64       `json:"seed"`
	DwellMinS       *float64     `json:"dwell_min_s"`
	DwellMaxS       *float64     `json:"dwell_max_s"`
	EdgePolicy      string       `json:"edge_policy"`
	PhaseConvention string       `json:"phase_convention"`
	Workers         *int         `json:"workers"`
	Wind            *WindSetting `json:"wind"`

	// Either a frequency table with per-mode T60 and gain shared by all
	// tubes, or explicit per-tube modes.
	Frequencies [][]float64    `json:"frequencies"`
	T60         []float64      `json:"t60"`
	Gains       []float64      `json:"gains"`
	Tubes       [][]chime.Mode `json:"tubes"`
}

// WindSetting selects the wind model. Segments, random and script are
// mutually exclusive.
type WindSetting struct {
	Segments []SegmentSetting `json:"segments"`
	Random   *bool            `json:"random"`
	Level    *float64         `json:"level"`
	Script   string           `json:"script"`
}

// SegmentSetting is one piece of a piecewise-linear wind envelope.
type SegmentSetting struct {
	DurationS float64 `json:"duration_s"`
	Level     float64 `json:"level"`
}

// LoadJSON loads a preset JSON file and applies it on top of default params.
// A relative wind script path resolves against the preset's directory.
func LoadJSON(path string) (*chime.Params, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f File
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	p := chime.NewDefaultParams()
	if err := applyAndValidate(p, &f, filepath.Dir(path)); err != nil {
		return nil, err
	}
	return p, nil
}

// applyAndValidate applies f and validates the result. A scripted wind
// loaded along the way is closed when either step fails.
func applyAndValidate(p *chime.Params, f *File, baseDir string) error {
	err := applyFile(p, f, baseDir)
	if err == nil {
		err = p.Validate()
	}
	if err != nil {
		CloseWind(p)
	}
	return err
}

// ApplyFile applies a parsed preset file onto an existing params object.
// Relative script paths resolve against the working directory.
func ApplyFile(dst *chime.Params, f *File) error {
	return applyFile(dst, f, "")
}

func applyFile(dst *chime.Params, f *File, baseDir string) error {
	if dst == nil {
		return fmt.Errorf("nil destination params")
	}
	if f == nil {
		return nil
	}

	if f.SampleRate != nil {
		if *f.SampleRate <= 0 {
			return fieldErr("sample_rate must be > 0")
		}
		seconds := dst.Duration()
		dst.SampleRate = *f.SampleRate
		dst.SetDuration(seconds)
	}
	if f.Seed != nil {
		dst.Seed = *f.Seed
	}
	if f.DwellMinS != nil {
		if *f.DwellMinS <= 0 {
			return fieldErr("dwell_min_s must be > 0")
		}
		dst.DwellMin = *f.DwellMinS
	}
	if f.DwellMaxS != nil {
		if *f.DwellMaxS < dst.DwellMin {
			return fieldErr("dwell_max_s must be >= dwell_min_s (%g)", dst.DwellMin)
		}
		dst.DwellMax = *f.DwellMaxS
	}
	if s := strings.TrimSpace(f.EdgePolicy); s != "" {
		policy, err := chime.ParseEdgePolicy(s)
		if err != nil {
			return fmt.Errorf("edge_policy: %w", err)
		}
		dst.EdgePolicy = policy
	}
	if s := strings.TrimSpace(f.PhaseConvention); s != "" {
		conv, err := chime.ParsePhaseConvention(s)
		if err != nil {
			return fmt.Errorf("phase_convention: %w", err)
		}
		dst.Phase = conv
	}
	if f.Workers != nil {
		if *f.Workers < 0 {
			return fieldErr("workers must be >= 0")
		}
		dst.Workers = *f.Workers
	}

	if err := applyModes(dst, f); err != nil {
		return err
	}

	windChanged, err := applyWind(dst, f.Wind, baseDir)
	if err != nil {
		return err
	}

	if f.DurationS != nil {
		if *f.DurationS <= 0 {
			return fieldErr("duration_s must be > 0")
		}
		dst.SetDuration(*f.DurationS)
	} else if windChanged {
		dst.DurationForWind(WindTail)
	}
	return nil
}

func applyModes(dst *chime.Params, f *File) error {
	if f.Tubes != nil && f.Frequencies != nil {
		return fieldErr("tubes and frequencies are mutually exclusive")
	}

	if f.Tubes != nil {
		if len(f.Tubes) == 0 {
			return fieldErr("tubes must not be empty")
		}
		k := len(f.Tubes[0])
		for i, modes := range f.Tubes {
			if len(modes) == 0 {
				return fieldErr("tubes[%d] has no modes", i)
			}
			if len(modes) != k {
				return fieldErr("tubes[%d] has %d modes, want %d", i, len(modes), k)
			}
		}
		dst.Tubes = cloneTubes(f.Tubes)
		if f.T60 != nil || f.Gains != nil {
			return overrideShared(dst, f)
		}
		return nil
	}

	if f.Frequencies != nil {
		if len(f.Frequencies) == 0 {
			return fieldErr("frequencies must not be empty")
		}
		k := len(f.Frequencies[0])
		for i, row := range f.Frequencies {
			if len(row) != k {
				return fieldErr("frequencies[%d] has %d modes, want %d", i, len(row), k)
			}
		}
		t60 := f.T60
		if t60 == nil {
			t60 = chime.DefaultT60
		}
		gains := f.Gains
		if gains == nil {
			gains = chime.DefaultGains
		}
		if len(t60) != k {
			return fieldErr("t60 has %d entries, want %d", len(t60), k)
		}
		if len(gains) != k {
			return fieldErr("gains has %d entries, want %d", len(gains), k)
		}
		tubes, err := chime.TubesFromTable(f.Frequencies, t60, gains)
		if err != nil {
			return err
		}
		dst.Tubes = tubes
		return nil
	}

	return overrideShared(dst, f)
}

// overrideShared replaces the per-mode T60 and gain of every tube.
func overrideShared(dst *chime.Params, f *File) error {
	k := dst.ModeCount()
	if f.T60 != nil && len(f.T60) != k {
		return fieldErr("t60 has %d entries, want %d", len(f.T60), k)
	}
	if f.Gains != nil && len(f.Gains) != k {
		return fieldErr("gains has %d entries, want %d", len(f.Gains), k)
	}
	for i := range dst.Tubes {
		for j := range dst.Tubes[i] {
			if f.T60 != nil {
				if f.T60[j] <= 0 {
					return fieldErr("t60[%d] must be > 0", j)
				}
				dst.Tubes[i][j].T60 = f.T60[j]
			}
			if f.Gains != nil {
				dst.Tubes[i][j].Gain = f.Gains[j]
			}
		}
	}
	return nil
}

// applyWind installs the wind model described by w and reports whether the
// wind changed.
func applyWind(dst *chime.Params, w *WindSetting, baseDir string) (bool, error) {
	if w == nil {
		return false, nil
	}
	random := w.Random != nil && *w.Random
	sources := 0
	for _, set := range []bool{len(w.Segments) > 0, random, w.Script != ""} {
		if set {
			sources++
		}
	}
	if sources > 1 {
		return false, fieldErr("wind.segments, wind.random and wind.script are mutually exclusive")
	}
	if w.Level != nil && *w.Level < 0 {
		return false, fieldErr("wind.level must be >= 0")
	}

	switch {
	case w.Script != "":
		if w.Level != nil {
			return false, fieldErr("wind.level cannot scale a wind.script")
		}
		path := strings.TrimSpace(w.Script)
		if baseDir != "" && !filepath.IsAbs(path) {
			path = filepath.Clean(filepath.Join(baseDir, path))
		}
		s, err := windscript.LoadFile(path)
		if err != nil {
			return false, fmt.Errorf("wind.script: %w", err)
		}
		dst.Wind = s
		// Scripts have no known end, so the run length is left alone.
		return false, nil

	case random:
		level := DefaultRandomLevel
		if w.Level != nil {
			level = *w.Level
		}
		dst.Wind = chime.NewGust(level, dst.Seed)
		return true, nil

	case len(w.Segments) > 0:
		env := &chime.Envelope{Segments: make([]chime.Segment, len(w.Segments))}
		for i, s := range w.Segments {
			if s.DurationS < 0 {
				return false, fieldErr("wind.segments[%d].duration_s must be >= 0", i)
			}
			env.Segments[i] = chime.Segment{Duration: s.DurationS, Level: s.Level}
		}
		if w.Level != nil {
			env = env.Scaled(*w.Level)
		}
		dst.Wind = env
		return true, nil

	case w.Level != nil:
		switch cur := dst.Wind.(type) {
		case *chime.Envelope:
			dst.Wind = cur.Scaled(*w.Level)
		case *chime.Gust:
			dst.Wind = chime.NewGust(*w.Level, cur.Seed)
		default:
			return false, fieldErr("wind.level needs an envelope wind")
		}
		return true, nil
	}
	return false, nil
}

// CloseWind releases the Lua state of a scripted wind model. Other wind
// models are left alone.
func CloseWind(p *chime.Params) {
	if s, ok := p.Wind.(*windscript.Script); ok {
		s.Close()
	}
}

func cloneTubes(src [][]chime.Mode) [][]chime.Mode {
	out := make([][]chime.Mode, len(src))
	for i, t := range src {
		out[i] = append([]chime.Mode(nil), t...)
	}
	return out
}

func fieldErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", chime.ErrConfig, fmt.Sprintf(format, args...))
}
