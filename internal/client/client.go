// Package client implements the collaborators the uploader talks to over
// HTTP: object storage, the resumable upload protocol and the media record
// table.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"mediadrop/internal/uploader"
)

const (
	objectPath    = "/storage/v1/object/"
	publicPath    = "/storage/v1/object/public/"
	resumablePath = "/storage/v1/upload/resumable"
	recordsPath   = "/rest/v1/media_files"
)

// Config points the clients at a mediadrop server.
type Config struct {
	BaseURL string
	// HTTPClient defaults to a client without an overall timeout, since
	// object bodies can take arbitrarily long. Requests are bounded by their
	// context instead.
	HTTPClient *http.Client
}

type base struct {
	url  string
	http *http.Client
}

func newBase(cfg Config) base {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				MaxIdleConnsPerHost:   8,
				IdleConnTimeout:       90 * time.Second,
				ResponseHeaderTimeout: 2 * time.Minute,
			},
		}
	}
	return base{url: strings.TrimRight(cfg.BaseURL, "/"), http: hc}
}

func (b base) newRequest(ctx context.Context, auth uploader.AuthSession, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if auth.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+auth.AccessToken)
	}
	return req, nil
}

func (b base) do(req *http.Request) (*http.Response, error) {
	resp, err := b.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	return resp, nil
}

// statusError turns an unexpected response into a StatusError carrying the
// server's error message. The body is consumed and closed.
func statusError(op string, resp *http.Response) error {
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var payload struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(data))
	if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
		msg = payload.Error
	}
	return &uploader.StatusError{Op: op, StatusCode: resp.StatusCode, Message: msg}
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
}
