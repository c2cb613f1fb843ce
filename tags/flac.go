package tags

import (
	"fmt"
	"strings"

	"github.com/go-flac/flacvorbis"
	flac "github.com/go-flac/go-flac"
)

// WriteFLAC updates artist and title vorbis comments in place.
func WriteFLAC(path, artist, title string) error {
	return writeFLACFields(path, map[string]string{
		flacvorbis.FIELD_ARTIST: artist,
		flacvorbis.FIELD_TITLE:  title,
	})
}

// WriteFLACCustom sets custom vorbis comments in place.
func WriteFLACCustom(path string, values map[string]string) error {
	return writeFLACFields(path, values)
}

func writeFLACFields(path string, values map[string]string) error {
	f, err := flac.ParseFile(path)
	if nil != err {
		return fmt.Errorf("failed to parse flac file %s: %v", path, err)
	}

	cmt, idx := findVorbisComment(f)
	if cmt == nil {
		cmt = flacvorbis.New()
	}

	for k, v := range values {
		removeVorbisField(cmt, k)
		if err := cmt.Add(strings.ToUpper(k), v); nil != err {
			return fmt.Errorf("failed to add vorbis comment %s: %v", k, err)
		}
	}

	block := cmt.Marshal()
	if idx >= 0 {
		f.Meta[idx] = &block
	} else {
		f.Meta = append(f.Meta, &block)
	}

	if err := f.Save(path); nil != err {
		return fmt.Errorf("failed to save flac file %s: %v", path, err)
	}

	return nil
}

func findVorbisComment(f *flac.File) (*flacvorbis.MetaDataBlockVorbisComment, int) {
	for idx, meta := range f.Meta {
		if meta.Type != flac.VorbisComment {
			continue
		}

		cmt, err := flacvorbis.ParseFromMetaDataBlock(*meta)
		if nil != err {
			continue
		}

		return cmt, idx
	}

	return nil, -1
}

func removeVorbisField(cmt *flacvorbis.MetaDataBlockVorbisComment, field string) {
	prefix := strings.ToUpper(field) + "="
	kept := cmt.Comments[:0]
	for _, c := range cmt.Comments {
		if !strings.HasPrefix(strings.ToUpper(c), prefix) {
			kept = append(kept, c)
		}
	}
	cmt.Comments = kept
}
