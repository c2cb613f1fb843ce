package dedupe

import (
	"fmt"
	"strings"

	"github.com/amalgan/trackman/tags"
)

// Matcher runs the read-only duplicate-matching strategies against one
// library directory. It never mutates the filesystem and is safe to call
// repeatedly on an unchanging directory.
type Matcher struct {
	reader tags.Reader
	dir    string
}

func NewMatcher(r tags.Reader, dir string) *Matcher {
	return &Matcher{reader: r, dir: dir}
}

// FindByMetadata returns the library files whose normalized (artist, title)
// pair exactly equals the normalized query pair. A query with either field
// empty after normalization matches nothing: absence of metadata can never
// establish a duplicate.
func (m *Matcher) FindByMetadata(artist, title string) ([]string, error) {
	normArtist, normTitle := NormalizeMetadata(artist, title)
	if normArtist == "" || normTitle == "" {
		return nil, nil
	}

	files, err := tags.ListAudioFiles(m.dir)
	if nil != err {
		return nil, fmt.Errorf("failed to list library files: %v", err)
	}

	var matches []string
	for _, path := range files {
		existingArtist, existingTitle := ExtractMetadata(m.reader, path)
		a, t := NormalizeMetadata(existingArtist, existingTitle)
		if a == normArtist && t == normTitle {
			matches = append(matches, path)
		}
	}

	return matches, nil
}

// FindByISRC returns the library files whose stored ISRC tag equals the query
// case-insensitively. An empty query matches nothing.
func (m *Matcher) FindByISRC(isrc string) ([]string, error) {
	if isrc == "" {
		return nil, nil
	}

	files, err := tags.ListAudioFiles(m.dir)
	if nil != err {
		return nil, fmt.Errorf("failed to list library files: %v", err)
	}

	var matches []string
	for _, path := range files {
		f, err := m.reader.Read(path)
		if nil != err {
			continue
		}

		if existing := f.Custom(tags.KeyISRC); existing != "" && strings.EqualFold(existing, isrc) {
			matches = append(matches, path)
		}
	}

	return matches, nil
}

// FindByTrackURL returns the library files whose stored source URL refers to
// the same track as the query, after canonicalization on both sides. An empty
// query matches nothing.
func (m *Matcher) FindByTrackURL(trackURL string) ([]string, error) {
	if trackURL == "" {
		return nil, nil
	}

	query := CanonicalTrackURL(trackURL)

	files, err := tags.ListAudioFiles(m.dir)
	if nil != err {
		return nil, fmt.Errorf("failed to list library files: %v", err)
	}

	var matches []string
	for _, path := range files {
		f, err := m.reader.Read(path)
		if nil != err {
			continue
		}

		if existing := f.Custom(tags.KeyTrackURL); existing != "" && CanonicalTrackURL(existing) == query {
			matches = append(matches, path)
		}
	}

	return matches, nil
}

// CanonicalTrackURL reduces a track URL to its identity-bearing form: the
// query string is dropped, exactly one trailing slash is dropped, and the
// result is lowercased. Two URLs differing only in those respects refer to
// the same track.
func CanonicalTrackURL(u string) string {
	if i := strings.IndexByte(u, '?'); i >= 0 {
		u = u[:i]
	}

	u = strings.TrimSuffix(u, "/")

	return strings.ToLower(u)
}
