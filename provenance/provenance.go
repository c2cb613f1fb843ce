// Package provenance records where a downloaded track came from and what
// quality it originally had, persisted inside the audio file's own tags so it
// survives moves and renames.
package provenance

import (
	"context"
	"fmt"
	"strconv"

	"github.com/amalgan/trackman/tags"
)

// Provenance captures the origin of a downloaded track. TrackURL and Source
// are always present; the rest is recorded when known.
type Provenance struct {
	TrackURL        string
	PlaylistURL     string
	Source          string
	OriginalFormat  string
	OriginalBitrate int
	ISRC            string
}

// Values renders the record as tag key/value pairs, omitting unset fields.
func (p Provenance) Values() map[string]string {
	values := map[string]string{
		tags.KeyTrackURL: p.TrackURL,
		tags.KeySource:   p.Source,
	}

	if p.PlaylistURL != "" {
		values[tags.KeyPlaylistURL] = p.PlaylistURL
	}

	if p.OriginalFormat != "" {
		values[tags.KeyOriginalFormat] = p.OriginalFormat
	}

	if p.OriginalBitrate > 0 {
		values[tags.KeyOriginalBitrate] = strconv.Itoa(p.OriginalBitrate)
	}

	if p.ISRC != "" {
		values[tags.KeyISRC] = p.ISRC
	}

	return values
}

// Apply writes the record into the file's custom tags.
func (p Provenance) Apply(ctx context.Context, path string) error {
	if err := tags.WriteCustom(ctx, path, p.Values()); nil != err {
		return fmt.Errorf("failed to write provenance tags to %s: %v", path, err)
	}

	return nil
}

// Read reconstructs the record stored in a file's tags. Files that were never
// tagged by the downloader yield a zero record and no error.
func Read(r tags.Reader, path string) (Provenance, error) {
	f, err := r.Read(path)
	if nil != err {
		return Provenance{}, fmt.Errorf("failed to read tags of %s: %v", path, err)
	}

	p := Provenance{
		TrackURL:       f.Custom(tags.KeyTrackURL),
		PlaylistURL:    f.Custom(tags.KeyPlaylistURL),
		Source:         f.Custom(tags.KeySource),
		OriginalFormat: f.Custom(tags.KeyOriginalFormat),
		ISRC:           f.Custom(tags.KeyISRC),
	}

	if raw := f.Custom(tags.KeyOriginalBitrate); raw != "" {
		bitrate, err := strconv.Atoi(raw)
		if nil != err {
			return Provenance{}, fmt.Errorf("malformed original bitrate tag in %s: %q", path, raw)
		}

		p.OriginalBitrate = bitrate
	}

	return p, nil
}
