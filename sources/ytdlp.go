package sources

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

// PlaylistEntry is one track of a probed playlist.
type PlaylistEntry struct {
	URL   string
	Title string
}

// Playlist is the result of probing a URL that may name a playlist.
type Playlist struct {
	Title   string
	Entries []PlaylistEntry
}

// IsPlaylist reports whether the probed URL was a playlist at all.
func (p Playlist) IsPlaylist() bool {
	return len(p.Entries) > 0
}

// ErrRestricted marks playlists yt-dlp cannot access: private, members-only,
// or deleted content.
var ErrRestricted = errors.New("content is private or unavailable")

var restrictedIndicators = []string{
	"private",
	"unavailable",
	"does not exist",
	"sign in",
	"members-only",
	"join this channel",
}

// ProbePlaylist asks yt-dlp whether the URL is a playlist and, if so, lists
// its entries without downloading anything.
func ProbePlaylist(ctx context.Context, logger zerolog.Logger, rawURL string) (Playlist, error) {
	cmd := exec.CommandContext(
		ctx,
		"yt-dlp",
		"--quiet",
		"--no-warnings",
		"--flat-playlist",
		"--dump-single-json",
		rawURL,
	)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true} //nolint:exhaustruct
	logger.Debug().Strs("args", cmd.Args).Msg("Probing playlist")

	out, err := cmd.Output()
	if nil != err {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			stderr := strings.ToLower(string(exitErr.Stderr))
			for _, indicator := range restrictedIndicators {
				if strings.Contains(stderr, indicator) {
					return Playlist{}, ErrRestricted
				}
			}
		}

		return Playlist{}, fmt.Errorf("failed to probe %s: %v", rawURL, err)
	}

	result := gjson.ParseBytes(out)
	if result.Get("_type").String() != "playlist" {
		return Playlist{}, nil
	}

	playlist := Playlist{Title: result.Get("title").String()} //nolint:exhaustruct
	for _, entry := range result.Get("entries").Array() {
		u := entry.Get("url").String()
		if u == "" {
			continue
		}

		playlist.Entries = append(playlist.Entries, PlaylistEntry{
			URL:   u,
			Title: entry.Get("title").String(),
		})
	}

	return playlist, nil
}

// FetchYTDLP downloads a single track through yt-dlp, extracting audio in the
// requested format, and returns the path of the file it produced.
func FetchYTDLP(
	ctx context.Context,
	logger zerolog.Logger,
	rawURL, destDir, format string,
) (string, error) {
	if err := os.MkdirAll(destDir, 0o755); nil != err {
		return "", fmt.Errorf("failed to create download directory: %v", err)
	}

	template := filepath.Join(destDir, ".ytdlp_%(id)s.%(ext)s")
	cmd := exec.CommandContext(
		ctx,
		"yt-dlp",
		"--quiet",
		"--no-warnings",
		"--no-playlist",
		"--extract-audio",
		"--audio-format", format,
		"--audio-quality", "0",
		"--embed-metadata",
		"--print", "after_move:filepath",
		"--output", template,
		rawURL,
	)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true} //nolint:exhaustruct
	logger.Debug().Strs("args", cmd.Args).Msg("Starting yt-dlp")

	out, err := cmd.Output()
	if nil != err {
		return "", fmt.Errorf("yt-dlp failed for %s: %v", rawURL, err)
	}

	path := strings.TrimSpace(string(out))
	if path == "" {
		return "", fmt.Errorf("yt-dlp produced no file for %s", rawURL)
	}

	return path, nil
}

// FetchSpotDL downloads a Spotify track through spotdl, which resolves the
// actual audio from YouTube Music. Returns the path of the newest supported
// audio file spotdl wrote, since spotdl does not report it.
func FetchSpotDL(
	ctx context.Context,
	logger zerolog.Logger,
	rawURL, destDir, format string,
) (string, error) {
	if err := os.MkdirAll(destDir, 0o755); nil != err {
		return "", fmt.Errorf("failed to create download directory: %v", err)
	}

	staging, err := os.MkdirTemp(destDir, ".spotdl-")
	if nil != err {
		return "", fmt.Errorf("failed to create staging directory: %v", err)
	}
	defer os.RemoveAll(staging)

	cmd := exec.CommandContext(
		ctx,
		"spotdl",
		"download", rawURL,
		"--format", format,
		"--output", filepath.Join(staging, "{artist} - {title}.{output-ext}"),
	)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true} //nolint:exhaustruct
	logger.Debug().Strs("args", cmd.Args).Msg("Starting spotdl")

	if err := cmd.Run(); nil != err {
		return "", fmt.Errorf("spotdl failed for %s: %v", rawURL, err)
	}

	entries, err := os.ReadDir(staging)
	if nil != err {
		return "", fmt.Errorf("failed to read staging directory: %v", err)
	}

	for _, entry := range entries {
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".mp3", ".m4a", ".flac":
			src := filepath.Join(staging, entry.Name())
			dst := filepath.Join(destDir, entry.Name())
			if err := os.Rename(src, dst); nil != err {
				return "", fmt.Errorf("failed to move spotdl download into place: %v", err)
			}

			return dst, nil
		}
	}

	return "", fmt.Errorf("spotdl produced no audio file for %s", rawURL)
}
