// Package tags reads and writes audio file metadata. Each supported container
// format gets its own reader behind a single capability interface so callers
// never branch on file type.
package tags

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Custom tag keys shared across container formats. MP3 stores them as TXXX
// user-defined frames, M4A as iTunes freeform atoms, FLAC as vorbis comments.
const (
	KeyISRC            = "ISRC"
	KeyTrackURL        = "TRACK_URL"
	KeyPlaylistURL     = "PLAYLIST_URL"
	KeySource          = "SOURCE"
	KeyOriginalFormat  = "ORIGINAL_FORMAT"
	KeyOriginalBitrate = "ORIGINAL_BITRATE"
)

// SupportedExtensions is the allow-list of audio containers trackman scans.
// Extend here, nowhere else.
var SupportedExtensions = []string{".mp3", ".m4a", ".flac"}

func IsSupported(path string) bool {
	return slices.Contains(SupportedExtensions, strings.ToLower(filepath.Ext(path)))
}

// File is a read-only view of one audio file's tags. Absent fields are empty
// strings.
type File struct {
	Artist string
	Title  string
	custom map[string]string
}

// NewFile builds a tag view directly. Format readers populate views through
// it, and test fakes standing in for a Reader do the same.
func NewFile(artist, title string, custom map[string]string) *File {
	f := &File{Artist: artist, Title: title} //nolint:exhaustruct
	for k, v := range custom {
		f.setCustom(k, v)
	}

	return f
}

// Custom returns the value of a custom tag by key, case-insensitively, or an
// empty string when the tag is absent.
func (f *File) Custom(key string) string {
	if f.custom == nil {
		return ""
	}

	return f.custom[strings.ToUpper(key)]
}

func (f *File) setCustom(key, value string) {
	if f.custom == nil {
		f.custom = make(map[string]string)
	}

	f.custom[strings.ToUpper(key)] = value
}

// Reader reads the tag view of an audio file. Implementations return an error
// for unreadable or foreign files; callers that treat absence as routine
// convert that error to an empty view themselves.
type Reader interface {
	Read(path string) (*File, error)
}

// NewReader returns the default extension-dispatching reader.
func NewReader() Reader {
	return extReader{}
}

type extReader struct{}

func (extReader) Read(path string) (*File, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".mp3":
		return readMP3(path)
	case ".m4a", ".flac":
		return readNative(path)
	default:
		return nil, fmt.Errorf("unsupported audio container: %s", ext)
	}
}

// ListAudioFiles returns the supported audio files directly inside dir,
// non-recursively, with case-insensitive extension matching.
func ListAudioFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if nil != err {
		return nil, fmt.Errorf("failed to read directory %s: %v", dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}

		if IsSupported(e.Name()) {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}

	return files, nil
}
