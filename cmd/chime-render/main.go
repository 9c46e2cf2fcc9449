package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cwbudde/algo-chimes/analysis"
	"github.com/cwbudde/algo-chimes/chime"
	"github.com/cwbudde/algo-chimes/internal/wavio"
	"github.com/cwbudde/algo-chimes/preset"
	"github.com/cwbudde/algo-chimes/room"
)

func main() {
	presetPath := flag.String("preset", "", "Preset JSON file path (defaults when empty)")
	seed := flag.Int64("seed", -1, "Random seed override (-1 keeps the preset seed)")
	duration := flag.Float64("duration", 0, "Run length override in seconds (0 keeps the preset length)")
	edge := flag.String("edge", "", "Edge policy override: rising|run-end|level")
	workersFlag := flag.String("workers", "auto", "Parallel tube filters: integer >= 1 or 'auto'")
	outDir := flag.String("out-dir", "out", "Directory for tube_N.wav and chimes.wav")
	outRate := flag.Int("out-rate", 0, "Resample WAV output to this rate in Hz (0 keeps the render rate)")
	headroom := flag.Float64("headroom", 0.9, "Peak level of the composite after normalization")
	gainDB := flag.Float64("gain-db", 0, "Extra output gain in dB applied after headroom normalization")
	perTube := flag.Bool("tubes", true, "Write one WAV per tube")
	preview := flag.Float64("preview", 0, "Also write a single-strike tube_N_preview.wav of this many seconds")
	previewEnergy := flag.Float64("preview-energy", 0.2, "Energy snapshot for -preview strikes")
	coefsPath := flag.String("coefs", "", "Write the resonator coefficient table as JSON")
	reportPath := flag.String("report", "", "Write a JSON render report")
	refPath := flag.String("ref", "", "Reference WAV to compare the composite against")
	roomFlag := flag.String("room", "", "Room IR for chimes_room.wav: 'synth' or a WAV path (empty disables)")
	roomMix := flag.Float64("room-mix", 0.3, "Wet level of the room signal in [0,1]")
	roomSeconds := flag.Float64("room-seconds", 1.2, "Length of the synthetic room IR in seconds")
	flag.Parse()

	params := chime.NewDefaultParams()
	if *presetPath != "" {
		var err error
		params, err = preset.LoadJSON(*presetPath)
		if err != nil {
			die("Error loading preset %q: %v", *presetPath, err)
		}
	}
	defer preset.CloseWind(params)
	if *seed >= 0 {
		params.Seed = *seed
	}
	if *duration > 0 {
		params.SetDuration(*duration)
	}
	if *edge != "" {
		policy, err := chime.ParseEdgePolicy(strings.TrimSpace(*edge))
		if err != nil {
			die("invalid -edge: %v", err)
		}
		params.EdgePolicy = policy
	}
	workers, err := wavio.ParseWorkers(*workersFlag)
	if err != nil {
		die("invalid -workers: %v", err)
	}
	params.Workers = workers
	if *headroom <= 0 || *headroom > 1 {
		die("-headroom must be in (0,1], got %g", *headroom)
	}

	eng, err := chime.NewEngine(params)
	if err != nil {
		die("invalid configuration: %v", err)
	}

	fmt.Printf("Rendering %d tubes x %d modes for %.2f s at %d Hz (seed %d, edge %s)...\n",
		params.TubeCount(), params.ModeCount(), params.Duration(), params.SampleRate, params.Seed, params.EdgePolicy)
	start := time.Now()
	res, err := eng.Render()
	if err != nil {
		die("render failed: %v", err)
	}
	elapsed := time.Since(start)
	fmt.Printf("Rendered %d samples in %.2fs (%.1fx real time)\n",
		len(res.Mix), elapsed.Seconds(), params.Duration()/elapsed.Seconds())

	stats := analysis.SummarizeStrikes(res.Strikes, params.TubeCount(), params.Samples, params.SampleRate)
	fmt.Printf("Strikes: %d (%.2f/s), per tube %v\n", stats.Count, stats.RatePerSecond, stats.PerTube)
	printTimeline(os.Stdout, res.Strikes, params.Samples, params.TubeCount())

	rate := params.SampleRate
	if *outRate > 0 {
		rate = *outRate
	}
	// Each file is normalized to its own peak.
	write := func(name string, x []float64) float64 {
		y, err := wavio.ResampleIfNeeded(x, params.SampleRate, rate)
		if err != nil {
			die("resample %s: %v", name, err)
		}
		g := outputGain(y, *headroom, *gainDB)
		path := filepath.Join(*outDir, name)
		if err := wavio.WriteMonoWAV(path, y, rate, g); err != nil {
			die("write %s: %v", path, err)
		}
		fmt.Printf("Wrote %s (gain %.3f)\n", path, g)
		return g
	}

	gain := write("chimes.wav", res.Mix)
	if *perTube {
		for i, tube := range res.Tubes {
			write(tubeFileName(i, ""), tube)
		}
	}

	if *roomFlag != "" {
		ir, err := roomIR(*roomFlag, params.SampleRate, *roomSeconds, params.Seed)
		if err != nil {
			die("room IR: %v", err)
		}
		wet, err := room.Apply(res.Mix, ir, *roomMix)
		if err != nil {
			die("room: %v", err)
		}
		fmt.Printf("Room IR %d samples, wet %.2f\n", len(ir), *roomMix)
		write("chimes_room.wav", wet)
	}

	var previews []previewReport
	if *preview > 0 {
		n := int(*preview * float64(params.SampleRate))
		for i := 0; i < params.TubeCount(); i++ {
			y, err := eng.RenderTubePreview(i, *previewEnergy, n)
			if err != nil {
				die("preview tube %d: %v", i+1, err)
			}
			write(tubeFileName(i, "_preview"), y)
			previews = append(previews, measurePreview(i, y, params))
		}
	}

	if *coefsPath != "" {
		if err := writeJSON(*coefsPath, eng.CoefficientTable()); err != nil {
			die("write coefficient table: %v", err)
		}
		fmt.Printf("Wrote %s\n", *coefsPath)
	}

	var metrics *analysis.Metrics
	if *refPath != "" {
		ref, refRate, err := wavio.ReadWAVMono(*refPath)
		if err != nil {
			die("read reference: %v", err)
		}
		ref, err = wavio.ResampleIfNeeded(ref, refRate, params.SampleRate)
		if err != nil {
			die("resample reference: %v", err)
		}
		m := analysis.Compare(ref, res.Mix, params.SampleRate)
		metrics = &m
		fmt.Printf("Reference %s: score %.4f similarity %.4f (env %.2f dB, spec %.2f dB, lag %d)\n",
			*refPath, m.Score, m.Similarity, m.EnvelopeRMSEDB, m.SpectralRMSEDB, m.LagSamples)
	}

	if *reportPath != "" {
		r := renderReport{
			Preset:     *presetPath,
			SampleRate: params.SampleRate,
			Samples:    params.Samples,
			Seed:       params.Seed,
			EdgePolicy: params.EdgePolicy.String(),
			Tubes:      params.TubeCount(),
			Modes:      params.ModeCount(),
			ElapsedSec: elapsed.Seconds(),
			OutputGain: gain,
			Strikes:    stats,
			StrikeList: res.Strikes,
			Previews:   previews,
			Reference:  *refPath,
			Comparison: metrics,
		}
		if err := writeJSON(*reportPath, r); err != nil {
			die("write report: %v", err)
		}
		fmt.Printf("Wrote %s\n", *reportPath)
	}
}

// outputGain scales x's peak to headroom, then applies gainDB.
func outputGain(x []float64, headroom, gainDB float64) float64 {
	return wavio.HeadroomGain(wavio.Peak(x), headroom) * wavio.DBToGain(gainDB)
}

// roomIR returns a synthetic room IR for "synth", otherwise loads the WAV at src.
func roomIR(src string, sampleRate int, seconds float64, seed int64) ([]float32, error) {
	if strings.EqualFold(strings.TrimSpace(src), "synth") {
		cfg := room.DefaultConfig(sampleRate)
		cfg.DurationS = seconds
		cfg.Seed = seed
		return room.Generate(cfg)
	}
	return room.LoadIR(src, sampleRate)
}

func tubeFileName(tube int, suffix string) string {
	return fmt.Sprintf("tube_%d%s.wav", tube+1, suffix)
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return os.WriteFile(path, b, 0o644)
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
