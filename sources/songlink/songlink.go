// Package songlink is a client for the song.link (Odesli) API, used to hop
// from any platform's track URL to its Spotify equivalent, which is where
// ISRCs live.
package songlink

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"github.com/tidwall/gjson"

	"github.com/amalgan/trackman/cache"
	"github.com/amalgan/trackman/httputil"
	"github.com/amalgan/trackman/ratelimit"
)

const apiBase = "https://api.song.link/v1-alpha.1/links"

const userAgent = "trackman/0.2.0"

// TrackInfo is the display metadata song.link knows about a track.
type TrackInfo struct {
	Title  string
	Artist string
}

type Client struct {
	logger  zerolog.Logger
	http    *http.Client
	limiter *ratelimit.Limiter
	lookups *cache.Cache[[]byte]
	apiBase string
}

func NewClient(logger zerolog.Logger, limiter *ratelimit.Limiter, socks5 string) (*Client, error) {
	httpClient, err := httputil.NewClient(10*time.Second, socks5)
	if nil != err {
		return nil, fmt.Errorf("failed to create song.link HTTP client: %v", err)
	}

	return &Client{
		logger:  logger,
		http:    httpClient,
		limiter: limiter,
		lookups: cache.New[[]byte](500),
		apiBase: apiBase,
	}, nil
}

// lookup fetches the raw links document for a URL, retrying transient
// failures and caching the body; song.link's free tier is slow and strict, so
// a playlist with repeated tracks must not re-query it.
func (c *Client) lookup(ctx context.Context, trackURL string) ([]byte, error) {
	body, err := c.lookups.Fetch(trackURL, cache.DefaultLookupTTL, func() ([]byte, error) {
		var respBody []byte
		err := retry.Do(
			ctx,
			retry.WithMaxRetries(3, retry.NewFibonacci(1*time.Second)),
			func(ctx context.Context) error {
				b, err := c.fetch(ctx, trackURL)
				if nil != err {
					return retry.RetryableError(err)
				}
				respBody = b

				return nil
			},
		)
		if nil != err {
			return nil, err
		}

		return respBody, nil
	})
	if nil != err {
		return nil, fmt.Errorf("failed to look up %s on song.link: %w", trackURL, err)
	}

	return body, nil
}

func (c *Client) fetch(ctx context.Context, trackURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); nil != err {
		return nil, err
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodGet,
		c.apiBase+"?url="+url.QueryEscape(trackURL),
		nil,
	)
	if nil != err {
		return nil, fmt.Errorf("failed to create lookup request: %v", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if nil != err {
		return nil, fmt.Errorf("failed to send lookup request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("lookup failed with status %d", resp.StatusCode)
	}

	respBody, err := httputil.ReadResponseBody(resp)
	if nil != err {
		return nil, fmt.Errorf("failed to read lookup response: %v", err)
	}

	if !gjson.ValidBytes(respBody) {
		return nil, fmt.Errorf("malformed lookup response for %s", trackURL)
	}

	return respBody, nil
}

// FindPlatforms returns the platform -> URL links song.link knows for the
// track.
func (c *Client) FindPlatforms(ctx context.Context, trackURL string) (map[string]string, error) {
	body, err := c.lookup(ctx, trackURL)
	if nil != err {
		return nil, err
	}

	platforms := make(map[string]string)
	gjson.GetBytes(body, "linksByPlatform").ForEach(func(platform, info gjson.Result) bool {
		if u := info.Get("url").String(); u != "" {
			platforms[platform.String()] = u
		}

		return true
	})

	return platforms, nil
}

// FindSpotifyURL returns the track's Spotify URL, or "" when song.link has no
// Spotify match.
func (c *Client) FindSpotifyURL(ctx context.Context, trackURL string) (string, error) {
	platforms, err := c.FindPlatforms(ctx, trackURL)
	if nil != err {
		return "", err
	}

	return platforms["spotify"], nil
}

// FindTrackInfo returns the track's display metadata, taken from the first
// entity of the links document.
func (c *Client) FindTrackInfo(ctx context.Context, trackURL string) (TrackInfo, error) {
	body, err := c.lookup(ctx, trackURL)
	if nil != err {
		return TrackInfo{}, err
	}

	var info TrackInfo
	gjson.GetBytes(body, "entitiesByUniqueId").ForEach(func(_, entity gjson.Result) bool {
		info = TrackInfo{
			Title:  entity.Get("title").String(),
			Artist: entity.Get("artistName").String(),
		}

		return false
	})

	return info, nil
}
