package songlink_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amalgan/trackman/ratelimit"
	"github.com/amalgan/trackman/sources/songlink"
)

const linksDoc = `{
	"entitiesByUniqueId": {
		"SPOTIFY_SONG::4cOdK2wGLETKBW3PvgPWqT": {
			"title": "Never Gonna Give You Up",
			"artistName": "Rick Astley"
		}
	},
	"linksByPlatform": {
		"spotify": {"url": "https://open.spotify.com/track/4cOdK2wGLETKBW3PvgPWqT"},
		"youtube": {"url": "https://www.youtube.com/watch?v=dQw4w9WgXcQ"},
		"tidal": {}
	}
}`

func newClient(t *testing.T, handler http.HandlerFunc) *songlink.Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := songlink.NewClient(zerolog.Nop(), ratelimit.NewLimiter(1000, 1000), "")
	require.NoError(t, err)
	client.SetAPIBase(server.URL)

	return client
}

func TestFindPlatforms(t *testing.T) {
	t.Parallel()

	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.URL.Query().Get("url"))
		_, _ = w.Write([]byte(linksDoc))
	})

	platforms, err := client.FindPlatforms(context.Background(), "https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"spotify": "https://open.spotify.com/track/4cOdK2wGLETKBW3PvgPWqT",
		"youtube": "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
	}, platforms, "platforms without a url are dropped")
}

func TestFindSpotifyURL(t *testing.T) {
	t.Parallel()

	client := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(linksDoc))
	})

	url, err := client.FindSpotifyURL(context.Background(), "https://soundcloud.com/a/b")
	require.NoError(t, err)
	assert.Equal(t, "https://open.spotify.com/track/4cOdK2wGLETKBW3PvgPWqT", url)
}

func TestFindSpotifyURLNoMatch(t *testing.T) {
	t.Parallel()

	client := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"linksByPlatform":{}}`))
	})

	url, err := client.FindSpotifyURL(context.Background(), "https://soundcloud.com/a/b")
	require.NoError(t, err)
	assert.Empty(t, url)
}

func TestFindTrackInfo(t *testing.T) {
	t.Parallel()

	client := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(linksDoc))
	})

	info, err := client.FindTrackInfo(context.Background(), "https://soundcloud.com/a/b")
	require.NoError(t, err)
	assert.Equal(t, "Never Gonna Give You Up", info.Title)
	assert.Equal(t, "Rick Astley", info.Artist)
}

func TestLookupsAreCached(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	client := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(linksDoc))
	})

	ctx := context.Background()
	_, err := client.FindPlatforms(ctx, "https://soundcloud.com/a/b")
	require.NoError(t, err)
	_, err = client.FindSpotifyURL(ctx, "https://soundcloud.com/a/b")
	require.NoError(t, err)
	_, err = client.FindTrackInfo(ctx, "https://soundcloud.com/a/b")
	require.NoError(t, err)

	assert.Equal(t, int32(1), hits.Load())
}

func TestLookupRetriesTransientFailures(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	client := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(linksDoc))
	})

	platforms, err := client.FindPlatforms(context.Background(), "https://soundcloud.com/a/b")
	require.NoError(t, err)
	assert.Len(t, platforms, 2)
	assert.Equal(t, int32(3), hits.Load())
}
