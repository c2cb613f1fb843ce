package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"

	"github.com/amalgan/trackman/httputil"
)

// FetchDirect downloads a direct audio URL into destDir, returning the path
// of the temp file it wrote. The caller owns the file and is responsible for
// naming and tagging it. An error never leaves a partial file behind.
//
// The extension comes from the URL path when it names a supported container,
// falling back to sniffing the downloaded bytes.
func FetchDirect(
	ctx context.Context,
	logger zerolog.Logger,
	rawURL, destDir, socks5 string,
) (path string, err error) {
	client, err := httputil.NewClient(0, socks5)
	if nil != err {
		return "", fmt.Errorf("failed to create download client: %v", err)
	}
	client.Timeout = 0 // Large files on slow links; the context bounds the download.

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if nil != err {
		return "", fmt.Errorf("failed to create download request: %v", err)
	}

	resp, err := client.Do(req)
	if nil != err {
		return "", fmt.Errorf("failed to send download request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	if err := os.MkdirAll(destDir, 0o755); nil != err {
		return "", fmt.Errorf("failed to create download directory: %v", err)
	}

	stem := urlStem(rawURL)
	tmp := filepath.Join(destDir, ".tmp_"+stem+time.Now().Format("_150405"))
	f, err := os.Create(tmp)
	if nil != err {
		return "", fmt.Errorf("failed to create temp download file: %v", err)
	}
	defer func() {
		if nil != err {
			_ = os.Remove(tmp)
			logger.Debug().Str("path", tmp).Msg("Cleaned up temp download file")
		}
	}()

	bar := progressbar.DefaultBytes(resp.ContentLength, "downloading")
	if _, err = io.Copy(io.MultiWriter(f, bar), resp.Body); nil != err {
		_ = f.Close()
		return "", fmt.Errorf("failed to write download: %v", err)
	}

	if err = f.Close(); nil != err {
		return "", fmt.Errorf("failed to close temp download file: %v", err)
	}

	ext := urlExt(rawURL)
	if ext == "" {
		if ext, err = sniffExt(tmp); nil != err {
			return "", err
		}
	}

	final := filepath.Join(destDir, stem+ext)
	if _, statErr := os.Stat(final); nil == statErr {
		final = filepath.Join(destDir, stem+time.Now().Format("_150405")+ext)
	}
	if err = os.Rename(tmp, final); nil != err {
		return "", fmt.Errorf("failed to rename temp download file: %v", err)
	}

	return final, nil
}

func urlStem(rawURL string) string {
	u, err := url.Parse(rawURL)
	if nil != err {
		return "download"
	}

	name := filepath.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return "download"
	}

	return strings.TrimSuffix(name, filepath.Ext(name))
}

func urlExt(rawURL string) string {
	u, err := url.Parse(rawURL)
	if nil != err {
		return ""
	}

	switch ext := strings.ToLower(filepath.Ext(u.Path)); ext {
	case ".mp3", ".m4a", ".flac":
		return ext
	default:
		return ""
	}
}

// sniffExt detects the audio container from the file's bytes.
func sniffExt(path string) (string, error) {
	mt, err := mimetype.DetectFile(path)
	if nil != err {
		return "", fmt.Errorf("failed to detect downloaded file type: %v", err)
	}

	for _, ext := range []string{".mp3", ".m4a", ".flac"} {
		if mt.Extension() == ext {
			return ext, nil
		}
	}

	return "", fmt.Errorf("downloaded file has unsupported type %s", mt.String())
}
