package mods

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

type httpClient struct {
	http    *http.Client
	headers map[string]string
}

func (c httpClient) do(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "protonmc")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	return c.http.Do(req)
}

func (c httpClient) getJSON(ctx context.Context, url string, v any) error {
	resp, err := c.do(ctx, url)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, url); err != nil {
		return err
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// save downloads url into dir/name via a temporary file.
func (c httpClient) save(ctx context.Context, url, dir, name string) error {
	resp, err := c.do(ctx, url)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, url); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	dest := filepath.Join(dir, name)
	tmp, err := os.CreateTemp(dir, ".download-*")
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), dest)
}
