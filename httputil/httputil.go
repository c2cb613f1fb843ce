// Package httputil holds the HTTP plumbing shared by the API clients:
// response body handling and client construction with optional SOCKS5
// proxying.
package httputil

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/proxy"
)

func ReadResponseBody(resp *http.Response) ([]byte, error) {
	respBody, err := io.ReadAll(resp.Body)
	if nil != err {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("unexpected empty response body")
		}

		return nil, fmt.Errorf("failed to read response body: %v", err)
	}

	return respBody, nil
}

// NewClient builds an HTTP client, optionally dialing through a SOCKS5 proxy
// given as "host:port" or "user:pass@host:port".
func NewClient(timeout time.Duration, socks5 string) (*http.Client, error) {
	client := &http.Client{Timeout: timeout} //nolint:exhaustruct
	if socks5 == "" {
		return client, nil
	}

	u, err := url.Parse("socks5://" + socks5)
	if nil != err {
		return nil, fmt.Errorf("failed to parse SOCKS5 proxy address %q: %v", socks5, err)
	}

	var auth *proxy.Auth
	if u.User != nil {
		password, _ := u.User.Password()
		auth = &proxy.Auth{User: u.User.Username(), Password: password}
	}

	dialer, err := proxy.SOCKS5("tcp", u.Host, auth, proxy.Direct)
	if nil != err {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %v", err)
	}

	dc, ok := dialer.(proxy.ContextDialer)
	if !ok {
		return nil, errors.New("failed to cast proxy to ContextDialer")
	}

	client.Transport = &http.Transport{DialContext: dc.DialContext} //nolint:exhaustruct

	return client, nil
}
