// Package quality measures the audio quality of a library: per-file bitrate,
// sample rate, and duration via ffprobe, corrected by the original-bitrate
// provenance tag so transcodes cannot masquerade as high quality.
package quality

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/amalgan/trackman/tags"
	"github.com/amalgan/trackman/unit"
)

// Bitrate thresholds in bits per second.
const (
	lowBitrate  = 128 * unit.Kilobyte
	highBitrate = 256 * unit.Kilobyte
)

// probeConcurrency bounds parallel ffprobe processes.
const probeConcurrency = 8

// Info is the quality verdict for one file. Bitrate is the effective source
// bitrate: when a lower original bitrate is recorded in the file's provenance
// tags, it wins over the encoded one, and the file counts as upsampled.
type Info struct {
	Path           string
	Format         string
	Duration       float64
	Bitrate        int
	EncodedBitrate int
	Upsampled      bool
	SampleRate     int
	Channels       int
	SizeMB         float64
	MBPerMinute    float64
}

type Analyzer struct {
	prober Prober
	reader tags.Reader
}

func NewAnalyzer(prober Prober, reader tags.Reader) *Analyzer {
	return &Analyzer{prober: prober, reader: reader}
}

// AnalyzeFile measures a single file.
func (a *Analyzer) AnalyzeFile(ctx context.Context, path string) (Info, error) {
	probe, err := a.prober.Probe(ctx, path)
	if nil != err {
		return Info{}, err
	}

	info := Info{ //nolint:exhaustruct
		Path:           path,
		Format:         strings.ToUpper(strings.TrimPrefix(filepath.Ext(path), ".")),
		Duration:       probe.Duration,
		Bitrate:        probe.Bitrate,
		EncodedBitrate: probe.Bitrate,
		SampleRate:     probe.SampleRate,
		Channels:       probe.Channels,
	}

	// A provenance-recorded original bitrate below the encoded one means the
	// file was upsampled somewhere along the way; the source quality is the
	// honest number.
	if original := a.originalBitrate(path); original > 0 {
		if probe.Bitrate == 0 || original < probe.Bitrate {
			info.Bitrate = original
			info.Upsampled = probe.Bitrate > 0
		}
	}

	if probe.Duration > 0 && probe.Size > 0 {
		info.SizeMB = float64(probe.Size) / unit.Mebibyte
		info.MBPerMinute = info.SizeMB / (probe.Duration / 60)
	}

	return info, nil
}

// originalBitrate reads the provenance bitrate tag, in bits per second.
// The tag stores kbps, possibly fractional. Absent or malformed tags yield 0.
func (a *Analyzer) originalBitrate(path string) int {
	f, err := a.reader.Read(path)
	if nil != err {
		return 0
	}

	raw := f.Custom(tags.KeyOriginalBitrate)
	if raw == "" {
		return 0
	}

	kbps, err := strconv.ParseFloat(raw, 64)
	if nil != err || kbps <= 0 {
		return 0
	}

	return int(kbps * unit.Kilobyte)
}

// AnalyzeLibrary measures every supported file in dir, probing concurrently.
// Files that fail to probe are dropped from the result, not fatal.
func (a *Analyzer) AnalyzeLibrary(ctx context.Context, dir string) ([]Info, error) {
	files, err := tags.ListAudioFiles(dir)
	if nil != err {
		return nil, fmt.Errorf("failed to list library files: %v", err)
	}

	var (
		mu    sync.Mutex
		infos []Info
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(probeConcurrency)
	for _, path := range files {
		g.Go(func() error {
			info, err := a.AnalyzeFile(gctx, path)
			if nil != err {
				return nil //nolint:nilerr
			}

			mu.Lock()
			infos = append(infos, info)
			mu.Unlock()

			return nil
		})
	}

	if err := g.Wait(); nil != err {
		return nil, fmt.Errorf("failed to analyze library: %v", err)
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Path < infos[j].Path })

	return infos, nil
}

// FormatSummary aggregates the files of one container format.
type FormatSummary struct {
	Format      string
	Count       int
	AvgBitrate  int
	MinBitrate  int
	MaxBitrate  int
	SampleRates []int
	Low         int
	Medium      int
	High        int
}

// Summarize groups the measurements by format, in format name order.
func Summarize(infos []Info) []FormatSummary {
	byFormat := make(map[string][]Info)
	for _, info := range infos {
		byFormat[info.Format] = append(byFormat[info.Format], info)
	}

	formats := make([]string, 0, len(byFormat))
	for f := range byFormat {
		formats = append(formats, f)
	}
	sort.Strings(formats)

	summaries := make([]FormatSummary, 0, len(formats))
	for _, format := range formats {
		group := byFormat[format]
		s := FormatSummary{Format: format, Count: len(group)} //nolint:exhaustruct

		rates := make(map[int]struct{})
		var sum, n int
		for _, info := range group {
			if info.SampleRate > 0 {
				rates[info.SampleRate] = struct{}{}
			}

			if info.Bitrate <= 0 {
				continue
			}

			sum += info.Bitrate
			n++
			if s.MinBitrate == 0 || info.Bitrate < s.MinBitrate {
				s.MinBitrate = info.Bitrate
			}
			if info.Bitrate > s.MaxBitrate {
				s.MaxBitrate = info.Bitrate
			}

			switch {
			case info.Bitrate < lowBitrate:
				s.Low++
			case info.Bitrate < highBitrate:
				s.Medium++
			default:
				s.High++
			}
		}

		if n > 0 {
			s.AvgBitrate = sum / n
		}

		for rate := range rates {
			s.SampleRates = append(s.SampleRates, rate)
		}
		sort.Ints(s.SampleRates)

		summaries = append(summaries, s)
	}

	return summaries
}

// Upsampled returns the files whose encoded bitrate overstates the source,
// most inflated first.
func Upsampled(infos []Info) []Info {
	var out []Info
	for _, info := range infos {
		if info.Upsampled {
			out = append(out, info)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].EncodedBitrate-out[i].Bitrate > out[j].EncodedBitrate-out[j].Bitrate
	})

	return out
}

// LowQuality returns the files below the low-bitrate threshold.
func LowQuality(infos []Info) []Info {
	var out []Info
	for _, info := range infos {
		if info.Bitrate > 0 && info.Bitrate < lowBitrate {
			out = append(out, info)
		}
	}

	return out
}

// Outliers returns up to n lowest- and highest-bitrate files, both ordered
// worst-first and best-first respectively.
func Outliers(infos []Info, n int) (lowest, highest []Info) {
	var rated []Info
	for _, info := range infos {
		if info.Bitrate > 0 {
			rated = append(rated, info)
		}
	}

	sort.Slice(rated, func(i, j int) bool { return rated[i].Bitrate < rated[j].Bitrate })

	if len(rated) < n {
		n = len(rated)
	}

	lowest = rated[:n]

	highest = make([]Info, 0, n)
	for i := len(rated) - 1; i >= len(rated)-n; i-- {
		highest = append(highest, rated[i])
	}

	return lowest, highest
}

// FormatBitrate renders bits per second for humans.
func FormatBitrate(bitrate int) string {
	switch {
	case bitrate >= unit.Megabyte:
		return fmt.Sprintf("%.1f Mbps", float64(bitrate)/unit.Megabyte)
	case bitrate >= unit.Kilobyte:
		return fmt.Sprintf("%d kbps", bitrate/unit.Kilobyte)
	default:
		return fmt.Sprintf("%d bps", bitrate)
	}
}

// FormatSampleRate renders Hz for humans.
func FormatSampleRate(rate int) string {
	if rate >= 1000 {
		return fmt.Sprintf("%.1f kHz", float64(rate)/1000)
	}

	return fmt.Sprintf("%d Hz", rate)
}

// FormatDuration renders seconds as M:SS.
func FormatDuration(seconds float64) string {
	return fmt.Sprintf("%d:%02d", int(seconds)/60, int(seconds)%60)
}
