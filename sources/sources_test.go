package sources_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amalgan/trackman/sources"
)

func TestDetect(t *testing.T) {
	t.Parallel()

	for _, tt := range []struct {
		url  string
		want sources.Type
	}{
		{url: "https://open.spotify.com/track/4cOdK2wGLETKBW3PvgPWqT", want: sources.TypeSpotify},
		{url: "https://spotify.com/track/abc", want: sources.TypeSpotify},
		{url: "https://www.youtube.com/watch?v=dQw4w9WgXcQ", want: sources.TypeYouTube},
		{url: "https://youtu.be/dQw4w9WgXcQ", want: sources.TypeYouTube},
		{url: "https://music.youtube.com/watch?v=abc", want: sources.TypeYouTube},
		{url: "https://soundcloud.com/artist/track", want: sources.TypeSoundCloud},
		{url: "https://example.com/files/song.mp3", want: sources.TypeDirect},
		{url: "http://cdn.example.net/a.m4a", want: sources.TypeDirect},
	} {
		got, err := sources.Detect(tt.url)
		require.NoError(t, err, tt.url)
		assert.Equal(t, tt.want, got, tt.url)
	}
}

func TestDetectRejectsInvalidURLs(t *testing.T) {
	t.Parallel()

	for _, url := range []string{
		"spotify.com/track/abc",
		"ftp://example.com/song.mp3",
		"not a url",
		"https://",
		"",
	} {
		_, err := sources.Detect(url)
		require.Error(t, err, url)
	}
}
