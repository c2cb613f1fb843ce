package downloader_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amalgan/trackman/config"
	"github.com/amalgan/trackman/downloader"
	"github.com/amalgan/trackman/history"
	"github.com/amalgan/trackman/ratelimit"
	"github.com/amalgan/trackman/review"
)

func newConfig(t *testing.T) *config.Config {
	t.Helper()

	dir := t.TempDir()

	return &config.Config{ //nolint:exhaustruct
		Library: config.Library{
			Dir:         filepath.Join(dir, "library"),
			FailedLog:   filepath.Join(dir, "failed.txt"),
			ReviewCSV:   filepath.Join(dir, "review.csv"),
			HistoryPath: filepath.Join(dir, "history.db"),
		},
		Duplicates: config.Duplicates{Handling: "keep"},
		Downloads:  config.Downloads{DefaultFormat: "auto", PlaylistThreshold: 50},
	}
}

func newDownloader(t *testing.T, conf *config.Config) *downloader.Downloader {
	t.Helper()

	confirm := func(string) (bool, error) {
		t.Fatal("unexpected confirmation prompt")
		return false, nil
	}

	d, err := downloader.New(zerolog.Nop(), conf, ratelimit.NewSet(), "", confirm)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	return d
}

func TestResolveFormat(t *testing.T) {
	conf := newConfig(t)
	d := newDownloader(t, conf)

	assert.Equal(t, "m4a", d.ResolveFormat(""))
	assert.Equal(t, "m4a", d.ResolveFormat("auto"))
	assert.Equal(t, "mp3", d.ResolveFormat("mp3"))

	conf.Downloads.DefaultFormat = "mp3"
	assert.Equal(t, "mp3", d.ResolveFormat(""))
}

func TestDownloadDirect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("fake mp3 bytes"))
	}))
	t.Cleanup(srv.Close)

	conf := newConfig(t)
	d := newDownloader(t, conf)

	url := srv.URL + "/song.mp3"
	require.NoError(t, d.Download(context.Background(), url, ""))

	entries, err := os.ReadDir(conf.Library.Dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ".mp3", filepath.Ext(entries[0].Name()))

	// Tagless downloads get flagged for metadata review.
	queue := review.NewQueue(zerolog.Nop(), nil, conf.Library.ReviewCSV)
	pending, err := queue.Pending()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, url, pending[0].SourceURL)

	require.NoError(t, d.Close())
	hist, err := history.NewStore(conf.Library.HistoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = hist.Close() })

	entry, found, err := hist.Find(context.Background(), url)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "direct", entry.Source)
	assert.WithinDuration(t, time.Now(), entry.DownloadedAt, time.Minute)
}

func TestDownloadSkipsAlreadyDownloaded(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		_, _ = w.Write([]byte("fake mp3 bytes"))
	}))
	t.Cleanup(srv.Close)

	conf := newConfig(t)
	url := srv.URL + "/song.mp3"

	hist, err := history.NewStore(conf.Library.HistoryPath)
	require.NoError(t, err)
	require.NoError(t, hist.Record(context.Background(), history.Entry{
		URL:          url,
		ISRC:         "",
		Path:         "/library/old.mp3",
		Source:       "direct",
		DownloadedAt: time.Now().UTC(),
	}))
	require.NoError(t, hist.Close())

	d := newDownloader(t, conf)
	require.NoError(t, d.Download(context.Background(), url, ""))

	assert.Zero(t, requests.Load())
}

func TestDownloadFailureIsLogged(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	conf := newConfig(t)
	d := newDownloader(t, conf)

	url := srv.URL + "/gone.mp3"
	require.Error(t, d.Download(context.Background(), url, ""))

	data, err := os.ReadFile(conf.Library.FailedLog)
	require.NoError(t, err)
	line := string(data)
	assert.Contains(t, line, " | "+url+" | ")
	assert.Contains(t, line, "404")
}

func TestDownloadInvalidURL(t *testing.T) {
	conf := newConfig(t)
	d := newDownloader(t, conf)

	require.Error(t, d.Download(context.Background(), "not a url", ""))
}
