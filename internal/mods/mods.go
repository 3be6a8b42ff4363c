// Package mods searches mod platforms and manages the jars in a server's mods or plugins folder.
package mods

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"protonmc/internal/model"
)

var (
	ErrMissingAPIKey   = errors.New("CURSEFORGE_API_KEY is not configured")
	ErrNoCompatible    = errors.New("no compatible files found")
	ErrUnknownPlatform = errors.New("unknown mod platform")
	ErrInvalidFile     = errors.New("invalid mod file name")
	ErrUpstream        = errors.New("mod platform request failed")
)

// Query narrows a search or download to what a server can load.
type Query struct {
	Text        string
	Kind        model.AddonKind
	Loader      model.ServerType
	GameVersion string
	Limit       int
}

// QueryFor builds a query matching srv.
func QueryFor(srv model.Server, text string, limit int) Query {
	if limit <= 0 || limit > 100 {
		limit = 40
	}
	return Query{
		Text:        text,
		Kind:        srv.Type.AddonKind(),
		Loader:      srv.Type,
		GameVersion: srv.GameVersion,
		Limit:       limit,
	}
}

// Platform is a mod hosting site.
type Platform interface {
	Name() model.Platform
	Search(ctx context.Context, q Query) ([]model.ModSearchResult, error)
	// Download fetches the first file of projectID compatible with q into dir
	// and returns the file name.
	Download(ctx context.Context, projectID string, q Query, dir string) (string, error)
}

// Registry resolves platforms by name.
type Registry map[model.Platform]Platform

// NewRegistry indexes platforms by Name.
func NewRegistry(platforms ...Platform) Registry {
	r := Registry{}
	for _, p := range platforms {
		r[p.Name()] = p
	}
	return r
}

// Get returns the named platform.
func (r Registry) Get(name string) (Platform, error) {
	p, ok := r[model.Platform(strings.ToLower(strings.TrimSpace(name)))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlatform, name)
	}
	return p, nil
}

// pluginLoaders are the loader tags Bukkit-compatible servers accept.
func pluginLoaders(t model.ServerType) []string {
	if t == model.ServerTypePaper {
		return []string{"paper", "spigot", "bukkit"}
	}
	return []string{"spigot", "bukkit"}
}

// cleanFileName guards against upstream file names with path components.
func cleanFileName(name string) (string, error) {
	base := filepath.Base(filepath.Clean("/" + name))
	if base == "/" || base == "." || !strings.HasSuffix(strings.ToLower(base), ".jar") {
		return "", fmt.Errorf("%w: %q", ErrInvalidFile, name)
	}
	return base, nil
}

func checkStatus(resp *http.Response, what string) error {
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s: %s", ErrUpstream, what, resp.Status)
	}
	return nil
}
