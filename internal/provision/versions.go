package provision

import (
	"context"
	"encoding/xml"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/mod/semver"

	"protonmc/internal/model"
)

type mojangManifest struct {
	Versions []struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		URL  string `json:"url"`
	} `json:"versions"`
}

type mojangVersion struct {
	Downloads struct {
		Server struct {
			URL string `json:"url"`
		} `json:"server"`
	} `json:"downloads"`
}

type paperProject struct {
	Versions []string `json:"versions"`
}

type fabricGameVersion struct {
	Version string `json:"version"`
	Stable  bool   `json:"stable"`
}

type forgePromotions struct {
	Promos map[string]string `json:"promos"`
}

type mavenMetadata struct {
	Versions []string `xml:"versioning>versions>version"`
}

// GameVersions returns the Minecraft versions installable for a server type, newest first.
func (c *Client) GameVersions(ctx context.Context, typ model.ServerType) ([]string, error) {
	var versions []string
	var err error
	switch typ {
	case model.ServerTypeVanilla, model.ServerTypeSpigot:
		versions, err = c.mojangReleases(ctx)
	case model.ServerTypePaper:
		versions, err = c.paperVersions(ctx)
	case model.ServerTypeFabric:
		versions, err = c.fabricVersions(ctx)
	case model.ServerTypeForge:
		versions, err = c.forgeVersions(ctx)
	case model.ServerTypeNeoForge:
		versions, err = c.neoForgeGameVersions(ctx)
	default:
		return nil, fmt.Errorf("unknown server type %q", typ)
	}
	if err != nil {
		return nil, err
	}
	return SortNewestFirst(versions), nil
}

func (c *Client) mojangReleases(ctx context.Context) ([]string, error) {
	var m mojangManifest
	if err := c.getJSON(ctx, c.endpoints.MojangManifest, &m); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(m.Versions))
	for _, v := range m.Versions {
		if v.Type == "release" {
			out = append(out, v.ID)
		}
	}
	return out, nil
}

func (c *Client) mojangServerURL(ctx context.Context, version string) (string, error) {
	var m mojangManifest
	if err := c.getJSON(ctx, c.endpoints.MojangManifest, &m); err != nil {
		return "", err
	}
	for _, v := range m.Versions {
		if v.ID != version {
			continue
		}
		var detail mojangVersion
		if err := c.getJSON(ctx, v.URL, &detail); err != nil {
			return "", err
		}
		if detail.Downloads.Server.URL == "" {
			return "", fmt.Errorf("version %s has no server download", version)
		}
		return detail.Downloads.Server.URL, nil
	}
	return "", fmt.Errorf("unknown minecraft version %s", version)
}

func (c *Client) paperVersions(ctx context.Context) ([]string, error) {
	var p paperProject
	if err := c.getJSON(ctx, c.endpoints.PaperProject, &p); err != nil {
		return nil, err
	}
	return p.Versions, nil
}

func (c *Client) fabricVersions(ctx context.Context) ([]string, error) {
	var list []fabricGameVersion
	if err := c.getJSON(ctx, c.endpoints.FabricMeta+"/versions/game", &list); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(list))
	for _, v := range list {
		if v.Stable {
			out = append(out, v.Version)
		}
	}
	return out, nil
}

func (c *Client) forgePromotions(ctx context.Context) (map[string]string, error) {
	var p forgePromotions
	if err := c.getJSON(ctx, c.endpoints.ForgePromotions, &p); err != nil {
		return nil, err
	}
	return p.Promos, nil
}

func (c *Client) forgeVersions(ctx context.Context) ([]string, error) {
	promos, err := c.forgePromotions(ctx)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var out []string
	for key := range promos {
		mc, _, ok := strings.Cut(key, "-")
		if ok && !seen[mc] {
			seen[mc] = true
			out = append(out, mc)
		}
	}
	return out, nil
}

func (c *Client) neoForgeVersions(ctx context.Context) ([]string, error) {
	resp, err := c.get(ctx, c.endpoints.NeoForgeMaven+"/maven-metadata.xml")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var meta mavenMetadata
	if err := xml.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return nil, fmt.Errorf("decode neoforge metadata: %w", err)
	}
	return meta.Versions, nil
}

func (c *Client) neoForgeGameVersions(ctx context.Context) ([]string, error) {
	all, err := c.neoForgeVersions(ctx)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var out []string
	for _, v := range all {
		mc, ok := NeoForgeGameVersion(v)
		if ok && !seen[mc] {
			seen[mc] = true
			out = append(out, mc)
		}
	}
	return out, nil
}

// NeoForgeGameVersion maps a NeoForge version to its Minecraft version:
// "20.4.237" is 1.20.4 and "21.0.12-beta" is 1.21.
func NeoForgeGameVersion(neo string) (string, bool) {
	base, _, _ := strings.Cut(neo, "-")
	parts := strings.Split(base, ".")
	if len(parts) < 2 {
		return "", false
	}
	for _, p := range parts[:2] {
		if p == "" || strings.Trim(p, "0123456789") != "" {
			return "", false
		}
	}
	if parts[1] == "0" {
		return "1." + parts[0], true
	}
	return "1." + parts[0] + "." + parts[1], true
}

// latestNeoForge returns the newest NeoForge build for a Minecraft version,
// preferring stable builds over betas.
func latestNeoForge(all []string, gameVersion string) (string, bool) {
	var stable, any string
	for _, v := range all {
		mc, ok := NeoForgeGameVersion(v)
		if !ok || mc != gameVersion {
			continue
		}
		if any == "" || compareVersions(v, any) > 0 {
			any = v
		}
		if !strings.Contains(v, "-") && (stable == "" || compareVersions(v, stable) > 0) {
			stable = v
		}
	}
	if stable != "" {
		return stable, true
	}
	return any, any != ""
}

// SortNewestFirst orders dotted versions descending. Unparseable entries go last.
func SortNewestFirst(versions []string) []string {
	out := append([]string(nil), versions...)
	sort.SliceStable(out, func(a, b int) bool {
		return compareVersions(out[a], out[b]) > 0
	})
	return out
}

func compareVersions(a, b string) int {
	return semver.Compare(canonical(a), canonical(b))
}

// canonical turns "1.20" or "20.4.237-beta" into a semver string.
// Extra numeric components beyond patch are dropped.
func canonical(v string) string {
	base, pre, hasPre := strings.Cut(v, "-")
	parts := strings.Split(base, ".")
	if len(parts) > 3 {
		parts = parts[:3]
	}
	s := "v" + strings.Join(parts, ".")
	if hasPre {
		s += "-" + pre
	}
	if !semver.IsValid(s) {
		return ""
	}
	return s
}
