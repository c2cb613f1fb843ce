package quality

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/tidwall/gjson"
)

// Probe is the container-level measurement of one audio file.
type Probe struct {
	// Bitrate is the encoded bitrate in bits per second.
	Bitrate int
	// Duration in seconds.
	Duration float64
	// Size in bytes.
	Size int64
	// SampleRate in Hz.
	SampleRate int
	Channels   int
}

// Prober measures audio files. Injectable so the analyzer is testable without
// media fixtures.
type Prober interface {
	Probe(ctx context.Context, path string) (Probe, error)
}

// FFProbe probes through the ffprobe binary, which must be on PATH.
type FFProbe struct{}

func (FFProbe) Probe(ctx context.Context, path string) (Probe, error) {
	out, err := exec.CommandContext(
		ctx,
		"ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	).Output()
	if nil != err {
		return Probe{}, fmt.Errorf("failed to probe %s: %v", path, err)
	}

	if !gjson.ValidBytes(out) {
		return Probe{}, fmt.Errorf("malformed ffprobe output for %s", path)
	}

	result := gjson.ParseBytes(out)
	audio := result.Get(`streams.#(codec_type=="audio")`)

	return Probe{
		Bitrate:    int(result.Get("format.bit_rate").Int()),
		Duration:   result.Get("format.duration").Float(),
		Size:       result.Get("format.size").Int(),
		SampleRate: int(audio.Get("sample_rate").Int()),
		Channels:   int(audio.Get("channels").Int()),
	}, nil
}
