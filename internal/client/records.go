package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"mediadrop/internal/core"
	"mediadrop/internal/uploader"
)

// RecordsClient reads and writes the media_files table over REST.
type RecordsClient struct {
	base
}

func NewRecordsClient(cfg Config) *RecordsClient {
	return &RecordsClient{base: newBase(cfg)}
}

func (c *RecordsClient) Insert(ctx context.Context, auth uploader.AuthSession, rec core.MediaFileRecord) (core.MediaFileRecord, error) {
	body, err := json.Marshal(rec)
	if err != nil {
		return core.MediaFileRecord{}, fmt.Errorf("encode record: %w", err)
	}

	req, err := c.newRequest(ctx, auth, http.MethodPost, c.url+recordsPath, bytes.NewReader(body))
	if err != nil {
		return core.MediaFileRecord{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return core.MediaFileRecord{}, err
	}
	if resp.StatusCode != http.StatusCreated {
		return core.MediaFileRecord{}, statusError("insert record", resp)
	}
	defer resp.Body.Close()

	var out core.MediaFileRecord
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return core.MediaFileRecord{}, fmt.Errorf("decode record: %w", err)
	}
	return out, nil
}

func (c *RecordsClient) Delete(ctx context.Context, auth uploader.AuthSession, id string) error {
	req, err := c.newRequest(ctx, auth, http.MethodDelete, c.url+recordsPath+"/"+url.PathEscape(id), nil)
	if err != nil {
		return err
	}

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return statusError("delete record", resp)
	}
	drain(resp)
	return nil
}

// List returns the caller's records, newest first.
func (c *RecordsClient) List(ctx context.Context, auth uploader.AuthSession, limit int) ([]core.MediaFileRecord, error) {
	u := c.url + recordsPath
	if limit > 0 {
		u += "?limit=" + strconv.Itoa(limit)
	}
	req, err := c.newRequest(ctx, auth, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError("list records", resp)
	}
	defer resp.Body.Close()

	var out []core.MediaFileRecord
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	return out, nil
}
