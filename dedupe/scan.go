package dedupe

import (
	"fmt"

	"github.com/amalgan/trackman/tags"
)

// GroupKeySeparator joins the normalized artist and title into a duplicate
// group key.
const GroupKeySeparator = "|||"

// GroupKey builds the duplicate group key for a normalized metadata pair.
func GroupKey(normArtist, normTitle string) string {
	return normArtist + GroupKeySeparator + normTitle
}

// ScanLibrary partitions a directory into duplicate groups: a map from
// normalized "artist|||title" keys to the files sharing that pair. Only
// groups with two or more members are returned; files with absent metadata
// are excluded entirely. The scan is read-only and built fresh on every call,
// since the directory is the single source of truth and may change between
// scans.
func ScanLibrary(r tags.Reader, dir string) (map[string][]string, error) {
	files, err := tags.ListAudioFiles(dir)
	if nil != err {
		return nil, fmt.Errorf("failed to list library files: %v", err)
	}

	groups := make(map[string][]string)
	for _, path := range files {
		artist, title := ExtractMetadata(r, path)
		if artist == "" || title == "" {
			continue
		}

		normArtist, normTitle := NormalizeMetadata(artist, title)
		key := GroupKey(normArtist, normTitle)
		groups[key] = append(groups[key], path)
	}

	for key, paths := range groups {
		if len(paths) < 2 {
			delete(groups, key)
		}
	}

	return groups, nil
}

// CheckFile reports the duplicates of one specific file against the library
// directory, excluding the file itself. It performs no mutation. A file
// without metadata has no duplicates by definition.
func CheckFile(r tags.Reader, path, dir string) ([]string, error) {
	artist, title := ExtractMetadata(r, path)
	if artist == "" || title == "" {
		return nil, nil
	}

	matches, err := NewMatcher(r, dir).FindByMetadata(artist, title)
	if nil != err {
		return nil, err
	}

	return excludeSelf(matches, path), nil
}
