package main

import (
	"bytes"
	"encoding/binary"
	"flag"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/cwbudde/algo-chimes/chime"
	"github.com/cwbudde/algo-chimes/internal/wavio"
	"github.com/cwbudde/algo-chimes/preset"
)

func main() {
	presetPath := flag.String("preset", "", "Preset JSON file path (defaults when empty)")
	seed := flag.Int64("seed", -1, "Random seed override (-1 keeps the preset seed)")
	count := flag.Int("count", 1, "Number of batches to play back to back; batch i uses seed+i")
	deviceRate := flag.Int("device-rate", 44100, "Playback sample rate in Hz")
	headroom := flag.Float64("headroom", 0.9, "Peak level after normalization")
	bufferMs := flag.Int("buffer-ms", 100, "Audio device buffer in milliseconds")
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
	if *count < 1 {
		die("-count must be >= 1, got %d", *count)
	}
	if *headroom <= 0 || *headroom > 1 {
		die("-headroom must be in (0,1], got %g", *headroom)
	}

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   *deviceRate,
		ChannelCount: 1,
		Format:       oto.FormatFloat32LE,
		BufferSize:   time.Duration(*bufferMs) * time.Millisecond,
	})
	if err != nil {
		die("audio device: %v", err)
	}
	<-ready

	baseSeed := params.Seed
	for i := 0; i < *count; i++ {
		params.Seed = baseSeed + int64(i)
		pcm, err := renderBatch(params, *deviceRate, *headroom)
		if err != nil {
			die("batch %d: %v", i+1, err)
		}
		fmt.Printf("Playing batch %d/%d (seed %d, %.1f s)...\n", i+1, *count, params.Seed, params.Duration())
		player := ctx.NewPlayer(bytes.NewReader(pcm))
		player.Play()
		for player.IsPlaying() {
			time.Sleep(50 * time.Millisecond)
		}
		if err := player.Close(); err != nil {
			die("player: %v", err)
		}
	}
}

// renderBatch renders one performance and returns it as normalized
// little-endian float32 PCM at deviceRate.
func renderBatch(params *chime.Params, deviceRate int, headroom float64) ([]byte, error) {
	eng, err := chime.NewEngine(params)
	if err != nil {
		return nil, err
	}
	res, err := eng.Render()
	if err != nil {
		return nil, err
	}
	y, err := wavio.ResampleIfNeeded(res.Mix, params.SampleRate, deviceRate)
	if err != nil {
		return nil, err
	}
	return encodeFloat32LE(y, wavio.HeadroomGain(wavio.Peak(y), headroom)), nil
}

func encodeFloat32LE(x []float64, gain float64) []byte {
	out := make([]byte, 4*len(x))
	for i, v := range x {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(float32(v*gain)))
	}
	return out
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
