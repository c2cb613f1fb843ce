// Package dab is a client for the DAB Music API, the preferred source for
// lossless downloads: tracks are located by ISRC and streamed as FLAC.
package dab

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/amalgan/trackman/cache"
	"github.com/amalgan/trackman/config"
	"github.com/amalgan/trackman/httputil"
	"github.com/amalgan/trackman/ratelimit"
)

// Stream quality identifiers of the DAB API.
const (
	QualityFLAC = 27
	QualityMP3  = 5
)

const userAgent = "trackman/0.2.0"

var (
	ErrInvalidCredentials = errors.New("invalid DAB credentials")
	ErrTrackNotFound      = errors.New("track not found on DAB")
)

// Track is one search result.
type Track struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	AlbumTitle  string `json:"albumTitle"`
	AlbumCover  string `json:"albumCover"`
	ReleaseDate string `json:"releaseDate"`
	ISRC        string `json:"isrc"`
	UPC         string `json:"upc"`
	Label       string `json:"label"`
}

type Client struct {
	logger   zerolog.Logger
	http     *http.Client
	limiter  *ratelimit.Limiter
	searches *cache.Cache[Track]
	endpoint string
	loggedIn bool
	email    string
	password string
}

// NewClient builds an unauthenticated client; the session is established
// lazily on first use so that merely enabling DAB in config costs nothing.
func NewClient(
	logger zerolog.Logger,
	conf config.DAB,
	limiter *ratelimit.Limiter,
	socks5 string,
) (*Client, error) {
	httpClient, err := httputil.NewClient(60*time.Second, socks5)
	if nil != err {
		return nil, fmt.Errorf("failed to create DAB HTTP client: %v", err)
	}

	// The login session lives in a cookie.
	jar, err := cookiejar.New(nil)
	if nil != err {
		return nil, fmt.Errorf("failed to create cookie jar: %v", err)
	}
	httpClient.Jar = jar

	return &Client{
		logger:   logger,
		http:     httpClient,
		limiter:  limiter,
		searches: cache.New[Track](1000),
		endpoint: conf.Endpoint,
		loggedIn: false,
		email:    conf.Email,
		password: conf.Password,
	}, nil
}

// login authenticates and stores the session cookie. Transient failures are
// retried with exponential backoff; a 401 is terminal.
func (c *Client) login(ctx context.Context) error {
	if c.loggedIn {
		return nil
	}

	body, err := json.Marshal(map[string]string{
		"email":    c.email,
		"password": c.password,
	})
	if nil != err {
		return fmt.Errorf("failed to encode login request: %v", err)
	}

	operation := func() error {
		req, err := http.NewRequestWithContext(
			ctx,
			http.MethodPost,
			c.endpoint+"/api/auth/login",
			bytes.NewReader(body),
		)
		if nil != err {
			return backoff.Permanent(fmt.Errorf("failed to create login request: %v", err))
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", userAgent)

		resp, err := c.http.Do(req)
		if nil != err {
			return fmt.Errorf("failed to send login request: %v", err)
		}
		defer resp.Body.Close()

		switch code := resp.StatusCode; {
		case code == http.StatusOK:
			return nil
		case code == http.StatusUnauthorized:
			return backoff.Permanent(ErrInvalidCredentials)
		case code >= 500:
			return fmt.Errorf("login failed with status %d", code)
		default:
			return backoff.Permanent(fmt.Errorf("login failed with status %d", code))
		}
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 4),
		ctx,
	)
	if err := backoff.Retry(operation, policy); nil != err {
		return fmt.Errorf("failed to login to DAB: %w", err)
	}

	c.logger.Info().Msg("Logged in to DAB")
	c.loggedIn = true

	return nil
}

// SearchByISRC locates a track by its ISRC. The returned track's own ISRC is
// verified against the query; a hit with a different ISRC is treated as not
// found. Results are cached.
func (c *Client) SearchByISRC(ctx context.Context, isrc string) (Track, error) {
	if err := c.login(ctx); nil != err {
		return Track{}, err
	}

	track, err := c.searches.Fetch(isrc, cache.DefaultSearchTTL, func() (Track, error) {
		return c.searchByISRC(ctx, isrc)
	})
	if nil != err {
		return Track{}, err
	}

	return track, nil
}

func (c *Client) searchByISRC(ctx context.Context, isrc string) (Track, error) {
	if err := c.limiter.Wait(ctx); nil != err {
		return Track{}, err
	}

	reqURL, err := url.Parse(c.endpoint + "/api/search")
	if nil != err {
		return Track{}, fmt.Errorf("failed to parse search URL: %v", err)
	}
	params := make(url.Values, 2)
	params.Add("q", isrc)
	params.Add("type", "track")
	reqURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if nil != err {
		return Track{}, fmt.Errorf("failed to create search request: %v", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if nil != err {
		return Track{}, fmt.Errorf("failed to send search request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Track{}, fmt.Errorf("search failed with status %d", resp.StatusCode)
	}

	respBody, err := httputil.ReadResponseBody(resp)
	if nil != err {
		return Track{}, fmt.Errorf("failed to read search response: %v", err)
	}

	var result struct {
		Tracks []Track `json:"tracks"`
	}
	if err := json.Unmarshal(respBody, &result); nil != err {
		return Track{}, fmt.Errorf("failed to decode search response: %v", err)
	}

	if len(result.Tracks) == 0 {
		return Track{}, ErrTrackNotFound
	}

	track := result.Tracks[0]
	if track.ISRC != isrc {
		c.logger.
			Warn().
			Str("expected", isrc).
			Str("got", track.ISRC).
			Msg("DAB search hit has a different ISRC")

		return Track{}, ErrTrackNotFound
	}

	return track, nil
}

// DownloadTrack streams the track into path at the given quality, writing
// through a temp file so an interrupted download never leaves a partial file
// behind.
func (c *Client) DownloadTrack(ctx context.Context, trackID, quality int, path string) (err error) {
	if err := c.login(ctx); nil != err {
		return err
	}

	if err := c.limiter.Wait(ctx); nil != err {
		return err
	}

	streamURL, err := c.streamURL(ctx, trackID, quality)
	if nil != err {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if nil != err {
		return fmt.Errorf("failed to create stream download request: %v", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if nil != err {
		return fmt.Errorf("failed to send stream download request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stream download failed with status %d", resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); nil != err {
		return fmt.Errorf("failed to create download directory: %v", err)
	}

	tmp := path + ".part"
	f, err := os.Create(tmp)
	if nil != err {
		return fmt.Errorf("failed to create download file: %v", err)
	}
	defer func() {
		if nil != err {
			_ = os.Remove(tmp)
		}
	}()

	if _, err = io.Copy(f, resp.Body); nil != err {
		_ = f.Close()
		return fmt.Errorf("failed to write downloaded stream: %v", err)
	}

	if err = f.Close(); nil != err {
		return fmt.Errorf("failed to close download file: %v", err)
	}

	if err = os.Rename(tmp, path); nil != err {
		return fmt.Errorf("failed to move download into place: %v", err)
	}

	return nil
}

func (c *Client) streamURL(ctx context.Context, trackID, quality int) (string, error) {
	reqURL, err := url.Parse(c.endpoint + "/api/stream")
	if nil != err {
		return "", fmt.Errorf("failed to parse stream URL: %v", err)
	}
	params := make(url.Values, 2)
	params.Add("trackId", strconv.Itoa(trackID))
	params.Add("quality", strconv.Itoa(quality))
	reqURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if nil != err {
		return "", fmt.Errorf("failed to create stream request: %v", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if nil != err {
		return "", fmt.Errorf("failed to send stream request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("stream request failed with status %d", resp.StatusCode)
	}

	respBody, err := httputil.ReadResponseBody(resp)
	if nil != err {
		return "", fmt.Errorf("failed to read stream response: %v", err)
	}

	var result struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(respBody, &result); nil != err {
		return "", fmt.Errorf("failed to decode stream response: %v", err)
	}

	if result.URL == "" {
		return "", errors.New("no stream URL returned")
	}

	return result.URL, nil
}
