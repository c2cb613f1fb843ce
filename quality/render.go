package quality

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
)

// RenderSummary writes the per-format quality summary.
func RenderSummary(w io.Writer, summaries []FormatSummary) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Format", "Files", "Avg Bitrate", "Range", "Sample Rates", "Low", "Med", "High"})
	for _, s := range summaries {
		bitrateRange := "-"
		if s.MinBitrate > 0 {
			bitrateRange = fmt.Sprintf("%s - %s", FormatBitrate(s.MinBitrate), FormatBitrate(s.MaxBitrate))
		}

		rates := make([]string, 0, len(s.SampleRates))
		for _, r := range s.SampleRates {
			rates = append(rates, FormatSampleRate(r))
		}

		t.AppendRow(table.Row{
			s.Format,
			s.Count,
			FormatBitrate(s.AvgBitrate),
			bitrateRange,
			strings.Join(rates, ", "),
			s.Low,
			s.Medium,
			s.High,
		})
	}
	t.Render()
}

// RenderDetailed writes one row per file, highest bitrate first.
func RenderDetailed(w io.Writer, infos []Info) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"File", "Format", "Bitrate", "Sample Rate", "Duration", "Size"})
	for _, info := range infos {
		bitrate := FormatBitrate(info.Bitrate)
		if info.Upsampled {
			bitrate = fmt.Sprintf("%s (encoded as %s)", bitrate, FormatBitrate(info.EncodedBitrate))
		}

		size := "-"
		if info.SizeMB > 0 {
			size = fmt.Sprintf("%.1f MB (%.1f MB/min)", info.SizeMB, info.MBPerMinute)
		}

		t.AppendRow(table.Row{
			filepath.Base(info.Path),
			info.Format,
			bitrate,
			FormatSampleRate(info.SampleRate),
			FormatDuration(info.Duration),
			size,
		})
	}
	t.Render()
}

// RenderUpsampled writes the source-vs-encoded listing of upsampled files.
func RenderUpsampled(w io.Writer, infos []Info) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"File", "Source", "Encoded As"})
	for _, info := range infos {
		t.AppendRow(table.Row{
			filepath.Base(info.Path),
			FormatBitrate(info.Bitrate),
			FormatBitrate(info.EncodedBitrate),
		})
	}
	t.Render()
}
