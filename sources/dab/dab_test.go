package dab_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amalgan/trackman/config"
	"github.com/amalgan/trackman/ratelimit"
	"github.com/amalgan/trackman/sources/dab"
)

// server is a minimal DAB API stand-in. It counts search hits so the tests
// can observe caching.
type server struct {
	*httptest.Server

	searches int
	rejected bool
}

func newServer(t *testing.T) *server {
	t.Helper()

	s := &server{} //nolint:exhaustruct
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		if s.rejected {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "tok", Path: "/"}) //nolint:exhaustruct
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/api/search", func(w http.ResponseWriter, r *http.Request) {
		s.searches++
		if _, err := r.Cookie("session"); nil != err {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		switch r.URL.Query().Get("q") {
		case "USRC17607839":
			_, _ = w.Write([]byte(`{"tracks":[{"id":42,"title":"Song","artist":"Artist","isrc":"USRC17607839"}]}`))
		case "GBHOARD00001":
			_, _ = w.Write([]byte(`{"tracks":[{"id":7,"title":"Wrong","artist":"Artist","isrc":"OTHER0000000"}]}`))
		default:
			_, _ = w.Write([]byte(`{"tracks":[]}`))
		}
	})
	mux.HandleFunc("/api/stream", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"url":"` + s.URL + `/files/track.flac"}`))
	})
	mux.HandleFunc("/files/track.flac", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("fLaC-bytes"))
	})

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)

	return s
}

func newClient(t *testing.T, s *server) *dab.Client {
	t.Helper()

	conf := config.DAB{
		Endpoint: s.URL,
		Email:    "user@example.com",
		Password: "secret",
	}

	client, err := dab.NewClient(zerolog.Nop(), conf, ratelimit.NewLimiter(1000, 1000), "")
	require.NoError(t, err)

	return client
}

func TestSearchByISRC(t *testing.T) {
	t.Parallel()

	s := newServer(t)
	client := newClient(t, s)

	track, err := client.SearchByISRC(context.Background(), "USRC17607839")
	require.NoError(t, err)
	assert.Equal(t, 42, track.ID)
	assert.Equal(t, "Artist", track.Artist)
	assert.Equal(t, "USRC17607839", track.ISRC)
}

func TestSearchByISRCCachesResults(t *testing.T) {
	t.Parallel()

	s := newServer(t)
	client := newClient(t, s)

	for range 3 {
		_, err := client.SearchByISRC(context.Background(), "USRC17607839")
		require.NoError(t, err)
	}

	assert.Equal(t, 1, s.searches, "repeated lookups must be served from cache")
}

func TestSearchByISRCRejectsMismatchedHit(t *testing.T) {
	t.Parallel()

	s := newServer(t)
	client := newClient(t, s)

	_, err := client.SearchByISRC(context.Background(), "GBHOARD00001")
	require.ErrorIs(t, err, dab.ErrTrackNotFound)
}

func TestSearchByISRCNotFound(t *testing.T) {
	t.Parallel()

	s := newServer(t)
	client := newClient(t, s)

	_, err := client.SearchByISRC(context.Background(), "ZZZZZ0000000")
	require.ErrorIs(t, err, dab.ErrTrackNotFound)
}

func TestInvalidCredentials(t *testing.T) {
	t.Parallel()

	s := newServer(t)
	s.rejected = true
	client := newClient(t, s)

	_, err := client.SearchByISRC(context.Background(), "USRC17607839")
	require.ErrorIs(t, err, dab.ErrInvalidCredentials)
}

func TestDownloadTrack(t *testing.T) {
	t.Parallel()

	s := newServer(t)
	client := newClient(t, s)

	path := filepath.Join(t.TempDir(), "downloads", "Artist - Song.flac")
	require.NoError(t, client.DownloadTrack(context.Background(), 42, dab.QualityFLAC, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "fLaC-bytes", string(data))

	assert.NoFileExists(t, path+".part", "temp file must be moved into place")
}
