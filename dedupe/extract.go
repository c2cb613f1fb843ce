package dedupe

import (
	"github.com/amalgan/trackman/tags"
)

// ExtractMetadata reads the artist and title tags of an audio file. A missing
// file, foreign container, or unreadable tag all collapse to two empty
// strings: absent metadata is a routine outcome here, never an error.
func ExtractMetadata(r tags.Reader, path string) (artist, title string) {
	f, err := r.Read(path)
	if nil != err {
		return "", ""
	}

	return f.Artist, f.Title
}
