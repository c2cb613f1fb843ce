package spotify_test

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
	"github.com/amalgan/trackman/sources/spotify"
)

func TestExtractTrackID(t *testing.T) {
	t.Parallel()

	for _, tt := range []struct {
		url  string
		want string
	}{
		{url: "https://open.spotify.com/track/4cOdK2wGLETKBW3PvgPWqT", want: "4cOdK2wGLETKBW3PvgPWqT"},
		{url: "https://open.spotify.com/track/4cOdK2wGLETKBW3PvgPWqT?si=abc", want: "4cOdK2wGLETKBW3PvgPWqT"},
		{url: "spotify:track:4cOdK2wGLETKBW3PvgPWqT", want: "4cOdK2wGLETKBW3PvgPWqT"},
		{url: "https://open.spotify.com/album/xyz", want: ""},
		{url: "https://youtube.com/watch?v=abc", want: ""},
	} {
		assert.Equal(t, tt.want, spotify.ExtractTrackID(tt.url), tt.url)
	}
}

func TestTrackArtistJoinsAllCredits(t *testing.T) {
	t.Parallel()

	track := spotify.Track{Artists: []string{"Daft Punk", "Pharrell Williams"}} //nolint:exhaustruct
	assert.Equal(t, "Daft Punk, Pharrell Williams", track.Artist())
}

func newClient(t *testing.T) (*spotify.Client, *atomic.Int32) {
	t.Helper()

	var tokenRequests atomic.Int32

	accounts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenRequests.Add(1)
		user, pass, ok := r.BasicAuth()
		if !ok || user != "id" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"tok","token_type":"Bearer","expires_in":3600}`))
	}))
	t.Cleanup(accounts.Close)

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		require.Equal(t, "/tracks/4cOdK2wGLETKBW3PvgPWqT", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"name": "Get Lucky",
			"album": {"name": "Random Access Memories"},
			"artists": [{"name": "Daft Punk"}, {"name": "Pharrell Williams"}],
			"external_ids": {"isrc": "USQX91300108"}
		}`))
	}))
	t.Cleanup(api.Close)

	client, err := spotify.NewClient(zerolog.Nop(), ratelimit.NewLimiter(1000, 1000), "id", "secret", "")
	require.NoError(t, err)
	client.SetEndpoints(accounts.URL, api.URL)

	return client, &tokenRequests
}

func TestLookupTrack(t *testing.T) {
	t.Parallel()

	client, _ := newClient(t)

	track, err := client.LookupTrack(context.Background(), "4cOdK2wGLETKBW3PvgPWqT")
	require.NoError(t, err)
	assert.Equal(t, "USQX91300108", track.ISRC)
	assert.Equal(t, "Get Lucky", track.Title)
	assert.Equal(t, "Random Access Memories", track.Album)
	assert.Equal(t, []string{"Daft Punk", "Pharrell Williams"}, track.Artists)
}

func TestTokenIsReused(t *testing.T) {
	t.Parallel()

	client, tokenRequests := newClient(t)

	ctx := context.Background()
	for range 3 {
		_, err := client.LookupTrack(ctx, "4cOdK2wGLETKBW3PvgPWqT")
		require.NoError(t, err)
	}

	assert.Equal(t, int32(1), tokenRequests.Load())
}

func TestLookupWithoutCredentials(t *testing.T) {
	t.Parallel()

	client, err := spotify.NewClient(zerolog.Nop(), ratelimit.NewLimiter(1, 1), "", "", "")
	require.NoError(t, err)
	assert.False(t, client.Enabled())

	_, err = client.LookupTrack(context.Background(), "abc")
	require.ErrorIs(t, err, spotify.ErrNoCredentials)
}
