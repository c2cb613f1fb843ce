package history_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amalgan/trackman/history"
)

func newStore(t *testing.T) *history.Store {
	t.Helper()

	store, err := history.NewStore(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, store.Close()) })

	return store
}

func TestRecordAndFind(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newStore(t)

	entry := history.Entry{
		URL:          "https://open.spotify.com/track/abc123",
		ISRC:         "USRC17607839",
		Path:         "/music/Artist - Title.m4a",
		Source:       "dab",
		DownloadedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, store.Record(ctx, entry))

	got, found, err := store.Find(ctx, entry.URL)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, entry, got)
}

func TestFindMatchesCanonicalURL(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newStore(t)

	require.NoError(t, store.Record(ctx, history.Entry{
		URL:          "https://open.spotify.com/track/abc123",
		Path:         "/music/a.m4a",
		Source:       "dab",
		DownloadedAt: time.Now(),
	}))

	for _, url := range []string{
		"https://open.spotify.com/track/abc123?si=xyz789",
		"https://open.spotify.com/track/abc123/",
		"HTTPS://OPEN.SPOTIFY.COM/TRACK/ABC123",
	} {
		_, found, err := store.Find(ctx, url)
		require.NoError(t, err, url)
		assert.True(t, found, url)
	}

	_, found, err := store.Find(ctx, "https://open.spotify.com/track/other")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRecordReplacesSameTrack(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newStore(t)

	url := "https://soundcloud.com/artist/track"
	require.NoError(t, store.Record(ctx, history.Entry{
		URL: url, Path: "/music/old.mp3", Source: "soundcloud", DownloadedAt: time.Now(),
	}))
	require.NoError(t, store.Record(ctx, history.Entry{
		URL: url + "?utm=1", Path: "/music/new.m4a", Source: "dab", DownloadedAt: time.Now(),
	}))

	entries, err := store.All(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1, "same canonical URL must overwrite")
	assert.Equal(t, "/music/new.m4a", entries[0].Path)
}

func TestAllMostRecentFirst(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newStore(t)

	base := time.Now().UTC()
	for i, url := range []string{
		"https://example.com/a",
		"https://example.com/b",
		"https://example.com/c",
	} {
		require.NoError(t, store.Record(ctx, history.Entry{
			URL:          url,
			Path:         "/music/x.m4a",
			Source:       "direct",
			DownloadedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	entries, err := store.All(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "https://example.com/c", entries[0].URL)
	assert.Equal(t, "https://example.com/a", entries[2].URL)
}

func TestAllEmpty(t *testing.T) {
	t.Parallel()

	entries, err := newStore(t).All(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}
