package tags

import (
	"fmt"

	"github.com/bogem/id3v2/v2"
)

func readMP3(path string) (*File, error) {
	t, err := id3v2.Open(path, id3v2.Options{Parse: true}) //nolint:exhaustruct
	if nil != err {
		return nil, fmt.Errorf("failed to parse id3 tag of %s: %v", path, err)
	}
	defer t.Close()

	f := &File{ //nolint:exhaustruct
		Artist: t.Artist(),
		Title:  t.Title(),
	}

	for _, frame := range t.GetFrames(t.CommonID("User defined text information frame")) {
		udt, ok := frame.(id3v2.UserDefinedTextFrame)
		if !ok {
			continue
		}

		f.setCustom(udt.Description, udt.Value)
	}

	return f, nil
}

// WriteMP3 updates artist and title in place, preserving existing frames.
func WriteMP3(path, artist, title string) error {
	t, err := id3v2.Open(path, id3v2.Options{Parse: true}) //nolint:exhaustruct
	if nil != err {
		return fmt.Errorf("failed to parse id3 tag of %s: %v", path, err)
	}
	defer t.Close()

	t.SetArtist(artist)
	t.SetTitle(title)

	if err := t.Save(); nil != err {
		return fmt.Errorf("failed to save id3 tag of %s: %v", path, err)
	}

	return nil
}

// WriteMP3Custom sets user-defined TXXX frames in place. Existing frames with
// the same description are replaced.
func WriteMP3Custom(path string, values map[string]string) error {
	t, err := id3v2.Open(path, id3v2.Options{Parse: true}) //nolint:exhaustruct
	if nil != err {
		return fmt.Errorf("failed to parse id3 tag of %s: %v", path, err)
	}
	defer t.Close()

	id := t.CommonID("User defined text information frame")

	kept := make([]id3v2.Framer, 0)
	for _, frame := range t.GetFrames(id) {
		udt, ok := frame.(id3v2.UserDefinedTextFrame)
		if !ok {
			continue
		}

		if _, replaced := values[udt.Description]; !replaced {
			kept = append(kept, udt)
		}
	}

	t.DeleteFrames(id)
	for _, frame := range kept {
		t.AddFrame(id, frame)
	}

	for k, v := range values {
		t.AddUserDefinedTextFrame(id3v2.UserDefinedTextFrame{
			Encoding:    id3v2.EncodingUTF8,
			Description: k,
			Value:       v,
		})
	}

	if err := t.Save(); nil != err {
		return fmt.Errorf("failed to save id3 tag of %s: %v", path, err)
	}

	return nil
}
