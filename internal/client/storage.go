package client

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"mediadrop/internal/tus"
	"mediadrop/internal/uploader"
)

// StorageClient stores whole objects through the server's storage API.
type StorageClient struct {
	base
}

func NewStorageClient(cfg Config) *StorageClient {
	return &StorageClient{base: newBase(cfg)}
}

func (c *StorageClient) Put(ctx context.Context, auth uploader.AuthSession, bucket, key string, body io.Reader, size int64, opts uploader.PutOptions) error {
	req, err := c.newRequest(ctx, auth, http.MethodPut, c.url+objectPath+bucket+"/"+key, body)
	if err != nil {
		return err
	}
	req.ContentLength = size
	if opts.ContentType != "" {
		req.Header.Set("Content-Type", opts.ContentType)
	}
	if opts.CacheControl != "" {
		req.Header.Set("Cache-Control", opts.CacheControl)
	}
	req.Header.Set(tus.HeaderUpsert, strconv.FormatBool(opts.Upsert))

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return statusError("put object", resp)
	}
	drain(resp)
	return nil
}

func (c *StorageClient) PublicURL(bucket, key string) string {
	return c.url + publicPath + bucket + "/" + key
}

// Remove deletes an object. An object that is already gone is not an error.
func (c *StorageClient) Remove(ctx context.Context, auth uploader.AuthSession, bucket, key string) error {
	req, err := c.newRequest(ctx, auth, http.MethodDelete, c.url+objectPath+bucket+"/"+key, nil)
	if err != nil {
		return err
	}

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusNotFound:
		drain(resp)
		return nil
	default:
		return statusError("remove object", resp)
	}
}
