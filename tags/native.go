package tags

import (
	"fmt"
	"os"
	"strings"

	"github.com/dhowden/tag"
)

// readNative reads M4A and FLAC tags. Custom fields arrive through the raw
// tag map: iTunes freeform atoms are keyed like "----:com.apple.iTunes:ISRC"
// on M4A, vorbis comments by bare field name on FLAC.
func readNative(path string) (*File, error) {
	fh, err := os.Open(path)
	if nil != err {
		return nil, fmt.Errorf("failed to open %s: %v", path, err)
	}
	defer fh.Close()

	m, err := tag.ReadFrom(fh)
	if nil != err {
		return nil, fmt.Errorf("failed to parse tags of %s: %v", path, err)
	}

	f := &File{ //nolint:exhaustruct
		Artist: m.Artist(),
		Title:  m.Title(),
	}

	for rawKey, rawValue := range m.Raw() {
		key := customKey(rawKey)
		if key == "" {
			continue
		}

		switch v := rawValue.(type) {
		case string:
			f.setCustom(key, v)
		case []byte:
			f.setCustom(key, string(v))
		}
	}

	return f, nil
}

var customKeys = []string{
	KeyISRC,
	KeyTrackURL,
	KeyPlaylistURL,
	KeySource,
	KeyOriginalFormat,
	KeyOriginalBitrate,
}

// customKey maps a raw tag key to one of the known custom keys, tolerating
// both the bare vorbis form ("isrc") and the namespaced freeform atom form
// ("----:com.apple.iTunes:ISRC").
func customKey(rawKey string) string {
	lower := strings.ToLower(rawKey)
	for _, k := range customKeys {
		kl := strings.ToLower(k)
		if lower == kl || strings.HasSuffix(lower, ":"+kl) {
			return k
		}
	}

	return ""
}
