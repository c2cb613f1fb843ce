package tags

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// WriteMetadata rewrites the artist and title tags of an audio file in place.
// MP3 and FLAC are edited natively; M4A goes through ffmpeg since atom
// surgery is not worth hand-rolling for a stream-copy remux.
func WriteMetadata(ctx context.Context, path, artist, title string) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".mp3":
		return WriteMP3(path, artist, title)
	case ".flac":
		return WriteFLAC(path, artist, title)
	case ".m4a":
		return writeM4A(ctx, path, map[string]string{
			"artist": artist,
			"title":  title,
		})
	default:
		return fmt.Errorf("unsupported audio container: %s", ext)
	}
}

// WriteCustom stores custom key/value tags on an audio file in place.
func WriteCustom(ctx context.Context, path string, values map[string]string) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".mp3":
		return WriteMP3Custom(path, values)
	case ".flac":
		return WriteFLACCustom(path, values)
	case ".m4a":
		return writeM4A(ctx, path, values)
	default:
		return fmt.Errorf("unsupported audio container: %s", ext)
	}
}

// writeM4A remuxes the file with ffmpeg, stream-copying audio and setting the
// given metadata entries. The original file is replaced only on success.
func writeM4A(ctx context.Context, path string, values map[string]string) error {
	tmp := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".tagging.m4a")

	args := []string{"-y", "-i", path, "-c", "copy"}
	for k, v := range values {
		args = append(args, "-metadata", fmt.Sprintf("%s=%s", k, v))
	}
	args = append(args, "-f", "mp4", tmp)

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	if out, err := cmd.CombinedOutput(); nil != err {
		if removeErr := os.Remove(tmp); nil != removeErr && !os.IsNotExist(removeErr) {
			return fmt.Errorf("ffmpeg metadata rewrite failed: %v: %s (temp file left at %s)", err, out, tmp)
		}

		return fmt.Errorf("ffmpeg metadata rewrite failed: %v: %s", err, out)
	}

	if err := os.Rename(tmp, path); nil != err {
		return fmt.Errorf("failed to replace %s with tagged copy: %v", path, err)
	}

	return nil
}
