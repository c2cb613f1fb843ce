// Package spotify is a minimal Spotify Web API client: client-credentials
// auth plus the one track lookup the downloader needs to learn a track's ISRC
// and canonical artist/title.
package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/amalgan/trackman/httputil"
	"github.com/amalgan/trackman/ratelimit"
)

const (
	accountsURL = "https://accounts.spotify.com/api/token"
	apiURL      = "https://api.spotify.com/v1"
)

const userAgent = "trackman/0.2.0"

var ErrNoCredentials = errors.New("spotify client credentials not configured")

var trackIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`spotify\.com/track/([a-zA-Z0-9]+)`),
	regexp.MustCompile(`spotify:track:([a-zA-Z0-9]+)`),
}

// ExtractTrackID pulls the track ID out of an open.spotify.com URL or a
// spotify: URI. Returns "" when the input is not a track reference.
func ExtractTrackID(trackURL string) string {
	for _, p := range trackIDPatterns {
		if m := p.FindStringSubmatch(trackURL); m != nil {
			return m[1]
		}
	}

	return ""
}

// Track is the slice of Spotify's track object the downloader uses. Artists
// keeps every credited artist so multi-artist tracks tag and name correctly.
type Track struct {
	ISRC    string
	Title   string
	Album   string
	Artists []string
}

// Artist joins the credited artists for tagging and filenames.
func (t Track) Artist() string {
	return strings.Join(t.Artists, ", ")
}

type Client struct {
	logger       zerolog.Logger
	http         *http.Client
	limiter      *ratelimit.Limiter
	clientID     string
	clientSecret string
	accountsURL  string
	apiURL       string
	token        string
	tokenExpiry  time.Time
}

func NewClient(
	logger zerolog.Logger,
	limiter *ratelimit.Limiter,
	clientID, clientSecret, socks5 string,
) (*Client, error) {
	httpClient, err := httputil.NewClient(10*time.Second, socks5)
	if nil != err {
		return nil, fmt.Errorf("failed to create spotify HTTP client: %v", err)
	}

	return &Client{ //nolint:exhaustruct
		logger:       logger,
		http:         httpClient,
		limiter:      limiter,
		clientID:     clientID,
		clientSecret: clientSecret,
		accountsURL:  accountsURL,
		apiURL:       apiURL,
	}, nil
}

// Enabled reports whether credentials were configured; without them ISRC
// lookups are skipped rather than failed.
func (c *Client) Enabled() bool {
	return c.clientID != "" && c.clientSecret != ""
}

func (c *Client) authenticate(ctx context.Context) error {
	if !c.Enabled() {
		return ErrNoCredentials
	}

	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.accountsURL,
		strings.NewReader(form.Encode()),
	)
	if nil != err {
		return fmt.Errorf("failed to create token request: %v", err)
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if nil != err {
		return fmt.Errorf("failed to send token request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("token request failed with status %d", resp.StatusCode)
	}

	respBody, err := httputil.ReadResponseBody(resp)
	if nil != err {
		return fmt.Errorf("failed to read token response: %v", err)
	}

	result := gjson.ParseBytes(respBody)
	token := result.Get("access_token").String()
	if token == "" {
		return errors.New("token response carries no access token")
	}

	c.token = token
	// Renew a minute early so an in-flight request never crosses expiry.
	c.tokenExpiry = time.Now().Add(time.Duration(result.Get("expires_in").Int()-60) * time.Second)

	return nil
}

// LookupTrack fetches the track by ID.
func (c *Client) LookupTrack(ctx context.Context, trackID string) (Track, error) {
	if err := c.authenticate(ctx); nil != err {
		return Track{}, err
	}

	if err := c.limiter.Wait(ctx); nil != err {
		return Track{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"/tracks/"+trackID, nil)
	if nil != err {
		return Track{}, fmt.Errorf("failed to create track request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if nil != err {
		return Track{}, fmt.Errorf("failed to send track request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Track{}, fmt.Errorf("track request failed with status %d", resp.StatusCode)
	}

	respBody, err := httputil.ReadResponseBody(resp)
	if nil != err {
		return Track{}, fmt.Errorf("failed to read track response: %v", err)
	}

	result := gjson.ParseBytes(respBody)

	track := Track{ //nolint:exhaustruct
		ISRC:  result.Get("external_ids.isrc").String(),
		Title: result.Get("name").String(),
		Album: result.Get("album.name").String(),
	}
	for _, artist := range result.Get("artists.#.name").Array() {
		track.Artists = append(track.Artists, artist.String())
	}

	return track, nil
}
