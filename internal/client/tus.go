package client

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"mediadrop/internal/tus"
	"mediadrop/internal/uploader"
)

// TusClient speaks tus 1.0.0 with the creation and termination extensions.
type TusClient struct {
	base
}

func NewTusClient(cfg Config) *TusClient {
	return &TusClient{base: newBase(cfg)}
}

// Endpoint is the collection URL sessions are created under.
func (c *TusClient) Endpoint() string {
	return c.url + resumablePath
}

func (c *TusClient) Create(ctx context.Context, auth uploader.AuthSession, in uploader.CreateSessionRequest) (string, error) {
	req, err := c.newRequest(ctx, auth, http.MethodPost, c.Endpoint(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set(tus.HeaderResumable, tus.Version)
	req.Header.Set(tus.HeaderUploadLength, strconv.FormatInt(in.Size, 10))
	req.Header.Set(tus.HeaderUploadMetadata, tus.EncodeMetadata(map[string]string{
		tus.MetaBucket:       in.Metadata.Bucket,
		tus.MetaObject:       in.Metadata.ObjectName,
		tus.MetaContentType:  in.Metadata.ContentType,
		tus.MetaCacheControl: in.Metadata.CacheControl,
	}))
	req.Header.Set(tus.HeaderUpsert, strconv.FormatBool(in.Upsert))

	resp, err := c.do(req)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusCreated {
		return "", statusError("create upload", resp)
	}
	drain(resp)

	loc := resp.Header.Get("Location")
	if loc == "" {
		return "", fmt.Errorf("create upload: response has no Location")
	}
	return resolve(c.Endpoint(), loc)
}

func (c *TusClient) Offset(ctx context.Context, auth uploader.AuthSession, sessionURL string) (int64, error) {
	req, err := c.newRequest(ctx, auth, http.MethodHead, sessionURL, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set(tus.HeaderResumable, tus.Version)

	resp, err := c.do(req)
	if err != nil {
		return 0, err
	}
	if gone(resp.StatusCode) {
		drain(resp)
		return 0, uploader.ErrSessionNotFound
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return 0, statusError("get offset", resp)
	}
	drain(resp)
	return parseOffset(resp)
}

func (c *TusClient) Append(ctx context.Context, auth uploader.AuthSession, sessionURL string, offset int64, chunk []byte) (int64, error) {
	req, err := c.newRequest(ctx, auth, http.MethodPatch, sessionURL, bytes.NewReader(chunk))
	if err != nil {
		return 0, err
	}
	req.Header.Set(tus.HeaderResumable, tus.Version)
	req.Header.Set("Content-Type", tus.OffsetContentType)
	req.Header.Set(tus.HeaderUploadOffset, strconv.FormatInt(offset, 10))

	resp, err := c.do(req)
	if err != nil {
		return 0, err
	}
	if gone(resp.StatusCode) {
		drain(resp)
		return 0, uploader.ErrSessionNotFound
	}
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return 0, statusError("append chunk", resp)
	}
	drain(resp)
	return parseOffset(resp)
}

// Terminate deletes a session. A session the server no longer knows counts
// as terminated.
func (c *TusClient) Terminate(ctx context.Context, auth uploader.AuthSession, sessionURL string) error {
	req, err := c.newRequest(ctx, auth, http.MethodDelete, sessionURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set(tus.HeaderResumable, tus.Version)

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusNoContent && !gone(resp.StatusCode) {
		return statusError("terminate upload", resp)
	}
	drain(resp)
	return nil
}

func gone(status int) bool {
	return status == http.StatusNotFound || status == http.StatusGone
}

func parseOffset(resp *http.Response) (int64, error) {
	v := resp.Header.Get(tus.HeaderUploadOffset)
	off, err := strconv.ParseInt(v, 10, 64)
	if err != nil || off < 0 {
		return 0, fmt.Errorf("invalid %s header %q", tus.HeaderUploadOffset, v)
	}
	return off, nil
}

func resolve(endpoint, location string) (string, error) {
	base, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("invalid Location %q: %w", location, err)
	}
	return base.ResolveReference(ref).String(), nil
}
