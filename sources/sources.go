// Package sources routes track URLs to the service that can download them
// and hosts the per-service download handlers.
package sources

import (
	"fmt"
	"net/url"
	"strings"
)

// Type identifies which handler downloads a URL.
type Type string

const (
	TypeSpotify    Type = "spotify"
	TypeYouTube    Type = "youtube"
	TypeSoundCloud Type = "soundcloud"
	// TypeDirect is the fallback: the URL is assumed to point at an audio
	// file itself.
	TypeDirect Type = "direct"
)

// Detect classifies a track URL by its host. Malformed URLs, URLs without an
// http(s) scheme, and URLs without a host are rejected.
func Detect(rawURL string) (Type, error) {
	u, err := url.Parse(rawURL)
	if nil != err {
		return "", fmt.Errorf("invalid URL %q: %v", rawURL, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid URL %q: must start with http:// or https://", rawURL)
	}

	if u.Host == "" {
		return "", fmt.Errorf("invalid URL %q: missing domain name", rawURL)
	}

	switch host := strings.ToLower(u.Host); {
	case strings.Contains(host, "spotify.com"):
		return TypeSpotify, nil
	case strings.Contains(host, "youtube.com"), strings.Contains(host, "youtu.be"):
		return TypeYouTube, nil
	case strings.Contains(host, "soundcloud.com"):
		return TypeSoundCloud, nil
	default:
		return TypeDirect, nil
	}
}
