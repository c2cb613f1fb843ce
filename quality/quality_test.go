package quality_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amalgan/trackman/quality"
	"github.com/amalgan/trackman/tags"
)

type fakeProber map[string]quality.Probe

func (p fakeProber) Probe(_ context.Context, path string) (quality.Probe, error) {
	probe, ok := p[path]
	if !ok {
		return quality.Probe{}, errors.New("probe failed")
	}

	return probe, nil
}

type fakeReader map[string]*tags.File

func (r fakeReader) Read(path string) (*tags.File, error) {
	f, ok := r[path]
	if !ok {
		return nil, errors.New("no tags")
	}

	return f, nil
}

func TestAnalyzeFile(t *testing.T) {
	t.Parallel()

	prober := fakeProber{
		"/music/song.m4a": {
			Bitrate:    256000,
			Duration:   180,
			Size:       6 * 1024 * 1024,
			SampleRate: 44100,
			Channels:   2,
		},
	}

	a := quality.NewAnalyzer(prober, fakeReader{})

	info, err := a.AnalyzeFile(context.Background(), "/music/song.m4a")
	require.NoError(t, err)
	assert.Equal(t, "M4A", info.Format)
	assert.Equal(t, 256000, info.Bitrate)
	assert.Equal(t, 256000, info.EncodedBitrate)
	assert.False(t, info.Upsampled)
	assert.Equal(t, 44100, info.SampleRate)
	assert.InEpsilon(t, 6.0, info.SizeMB, 0.01)
	assert.InEpsilon(t, 2.0, info.MBPerMinute, 0.01)
}

func TestAnalyzeFileProvenanceOverride(t *testing.T) {
	t.Parallel()

	prober := fakeProber{
		"/music/song.m4a": {Bitrate: 256000, Duration: 180, SampleRate: 44100},
	}
	reader := fakeReader{
		"/music/song.m4a": tags.NewFile("A", "T", map[string]string{
			tags.KeyOriginalBitrate: "129.86",
		}),
	}

	info, err := quality.NewAnalyzer(prober, reader).AnalyzeFile(context.Background(), "/music/song.m4a")
	require.NoError(t, err)
	assert.Equal(t, 129860, info.Bitrate, "fractional kbps tag converts to bps")
	assert.Equal(t, 256000, info.EncodedBitrate)
	assert.True(t, info.Upsampled)
}

func TestAnalyzeFileProvenanceHigherThanEncoded(t *testing.T) {
	t.Parallel()

	prober := fakeProber{"/music/song.mp3": {Bitrate: 128000, Duration: 60}}
	reader := fakeReader{
		"/music/song.mp3": tags.NewFile("A", "T", map[string]string{
			tags.KeyOriginalBitrate: "320",
		}),
	}

	info, err := quality.NewAnalyzer(prober, reader).AnalyzeFile(context.Background(), "/music/song.mp3")
	require.NoError(t, err)
	assert.Equal(t, 128000, info.Bitrate, "the lower number is the truth")
	assert.False(t, info.Upsampled)
}

func TestAnalyzeFileMalformedBitrateTag(t *testing.T) {
	t.Parallel()

	prober := fakeProber{"/music/song.mp3": {Bitrate: 192000}}
	reader := fakeReader{
		"/music/song.mp3": tags.NewFile("A", "T", map[string]string{
			tags.KeyOriginalBitrate: "lossless",
		}),
	}

	info, err := quality.NewAnalyzer(prober, reader).AnalyzeFile(context.Background(), "/music/song.mp3")
	require.NoError(t, err)
	assert.Equal(t, 192000, info.Bitrate)
	assert.False(t, info.Upsampled)
}

func TestAnalyzeLibraryDropsFailedProbes(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, name := range []string{"a.mp3", "b.m4a", "broken.flac"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o600))
	}

	prober := fakeProber{
		filepath.Join(dir, "a.mp3"): {Bitrate: 192000, SampleRate: 44100},
		filepath.Join(dir, "b.m4a"): {Bitrate: 256000, SampleRate: 48000},
	}

	infos, err := quality.NewAnalyzer(prober, fakeReader{}).AnalyzeLibrary(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, infos, 2, "unprobeable files drop out")
	assert.Equal(t, "MP3", infos[0].Format)
	assert.Equal(t, "M4A", infos[1].Format)
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	infos := []quality.Info{
		{Path: "a.mp3", Format: "MP3", Bitrate: 96000, EncodedBitrate: 96000, SampleRate: 44100},   //nolint:exhaustruct
		{Path: "b.mp3", Format: "MP3", Bitrate: 192000, EncodedBitrate: 192000, SampleRate: 44100}, //nolint:exhaustruct
		{Path: "c.mp3", Format: "MP3", Bitrate: 320000, EncodedBitrate: 320000, SampleRate: 48000}, //nolint:exhaustruct
		{Path: "d.m4a", Format: "M4A", Bitrate: 256000, EncodedBitrate: 256000, SampleRate: 44100}, //nolint:exhaustruct
	}

	summaries := quality.Summarize(infos)
	require.Len(t, summaries, 2)

	m4a := summaries[0]
	assert.Equal(t, "M4A", m4a.Format)
	assert.Equal(t, 1, m4a.Count)
	assert.Equal(t, 256000, m4a.AvgBitrate)

	mp3 := summaries[1]
	assert.Equal(t, "MP3", mp3.Format)
	assert.Equal(t, 3, mp3.Count)
	assert.Equal(t, (96000+192000+320000)/3, mp3.AvgBitrate)
	assert.Equal(t, 96000, mp3.MinBitrate)
	assert.Equal(t, 320000, mp3.MaxBitrate)
	assert.Equal(t, []int{44100, 48000}, mp3.SampleRates)
	assert.Equal(t, 1, mp3.Low)
	assert.Equal(t, 1, mp3.Medium)
	assert.Equal(t, 1, mp3.High)
}

func TestUpsampledSortsByInflation(t *testing.T) {
	t.Parallel()

	infos := []quality.Info{
		{Path: "mild.m4a", Bitrate: 200000, EncodedBitrate: 256000, Upsampled: true},  //nolint:exhaustruct
		{Path: "honest.m4a", Bitrate: 256000, EncodedBitrate: 256000},                 //nolint:exhaustruct
		{Path: "severe.m4a", Bitrate: 96000, EncodedBitrate: 320000, Upsampled: true}, //nolint:exhaustruct
	}

	up := quality.Upsampled(infos)
	require.Len(t, up, 2)
	assert.Equal(t, "severe.m4a", up[0].Path)
	assert.Equal(t, "mild.m4a", up[1].Path)
}

func TestLowQuality(t *testing.T) {
	t.Parallel()

	infos := []quality.Info{
		{Path: "bad.mp3", Bitrate: 96000},   //nolint:exhaustruct
		{Path: "ok.mp3", Bitrate: 192000},   //nolint:exhaustruct
		{Path: "unknown.mp3", Bitrate: 0},   //nolint:exhaustruct
		{Path: "edge.mp3", Bitrate: 127999}, //nolint:exhaustruct
	}

	low := quality.LowQuality(infos)
	require.Len(t, low, 2)
	assert.Equal(t, "bad.mp3", low[0].Path)
	assert.Equal(t, "edge.mp3", low[1].Path)
}

func TestOutliers(t *testing.T) {
	t.Parallel()

	infos := []quality.Info{
		{Path: "c.mp3", Bitrate: 320000}, //nolint:exhaustruct
		{Path: "a.mp3", Bitrate: 96000},  //nolint:exhaustruct
		{Path: "b.mp3", Bitrate: 192000}, //nolint:exhaustruct
		{Path: "z.mp3", Bitrate: 0},      //nolint:exhaustruct
	}

	lowest, highest := quality.Outliers(infos, 2)
	require.Len(t, lowest, 2)
	assert.Equal(t, "a.mp3", lowest[0].Path)
	assert.Equal(t, "b.mp3", lowest[1].Path)
	require.Len(t, highest, 2)
	assert.Equal(t, "c.mp3", highest[0].Path)
	assert.Equal(t, "b.mp3", highest[1].Path)
}

func TestFormatHelpers(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "320 kbps", quality.FormatBitrate(320000))
	assert.Equal(t, "1.4 Mbps", quality.FormatBitrate(1411000))
	assert.Equal(t, "500 bps", quality.FormatBitrate(500))
	assert.Equal(t, "44.1 kHz", quality.FormatSampleRate(44100))
	assert.Equal(t, "800 Hz", quality.FormatSampleRate(800))
	assert.Equal(t, "3:05", quality.FormatDuration(185))
	assert.Equal(t, "0:09", quality.FormatDuration(9.7))
}

func TestRenderSummary(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	quality.RenderSummary(&out, quality.Summarize([]quality.Info{
		{Path: "a.mp3", Format: "MP3", Bitrate: 192000, EncodedBitrate: 192000, SampleRate: 44100}, //nolint:exhaustruct
	}))

	rendered := out.String()
	assert.Contains(t, rendered, "MP3")
	assert.Contains(t, rendered, "192 kbps")
	assert.Contains(t, rendered, "44.1 kHz")
}
