// Package provision installs game server software and the Java runtimes it needs.
package provision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Endpoints are the upstream services used for catalogues and downloads.
type Endpoints struct {
	MojangManifest  string
	PaperProject    string
	FabricMeta      string
	ForgePromotions string
	ForgeMaven      string
	NeoForgeMaven   string
	Spigot          string
	Adoptium        string
}

// DefaultEndpoints returns the public upstream URLs.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		MojangManifest:  "https://piston-meta.mojang.com/mc/game/version_manifest_v2.json",
		PaperProject:    "https://api.papermc.io/v2/projects/paper",
		FabricMeta:      "https://meta.fabricmc.net/v2",
		ForgePromotions: "https://files.minecraftforge.net/net/minecraftforge/forge/promotions_slim.json",
		ForgeMaven:      "https://maven.minecraftforge.net/net/minecraftforge/forge",
		NeoForgeMaven:   "https://maven.neoforged.net/releases/net/neoforged/neoforge",
		Spigot:          "https://download.getbukkit.org/spigot",
		Adoptium:        "https://api.adoptium.net/v3",
	}
}

// ErrUpstream wraps non-200 answers from an upstream service.
var ErrUpstream = errors.New("upstream request failed")

// NewHTTPClient returns a traced client for upstream calls.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// Client talks to the upstream catalogues.
type Client struct {
	http      *http.Client
	endpoints Endpoints
}

// NewClient creates a Client. A nil httpClient gets a traced client without timeout,
// since server and JDK downloads can take minutes.
func NewClient(httpClient *http.Client, endpoints Endpoints) *Client {
	if httpClient == nil {
		httpClient = NewHTTPClient(0)
	}
	return &Client{http: httpClient, endpoints: endpoints}
}

func (c *Client) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "protonmc")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: GET %s: %s", ErrUpstream, url, resp.Status)
	}
	return resp, nil
}

func (c *Client) getJSON(ctx context.Context, url string, v any) error {
	resp, err := c.get(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

// download writes url to dest through a temporary file so a failed
// transfer never leaves a truncated dest behind.
func (c *Client) download(ctx context.Context, url, dest string) error {
	resp, err := c.get(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	tmp := dest + ".download"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("download %s: %w", url, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dest)
}
