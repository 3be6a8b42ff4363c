package mods

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"protonmc/internal/model"
)

// DefaultCurseForgeURL is the public CurseForge API.
const DefaultCurseForgeURL = "https://api.curseforge.com/v1"

const (
	curseForgeMinecraft   = 432
	curseForgeModsClass   = 6
	curseForgePluginClass = 5
)

// CurseForge searches and downloads from curseforge.com. It needs an API key.
type CurseForge struct {
	base   string
	apiKey string
	client httpClient
}

// NewCurseForge creates a CurseForge client.
func NewCurseForge(base, apiKey string, hc *http.Client) *CurseForge {
	return &CurseForge{
		base:   base,
		apiKey: apiKey,
		client: httpClient{http: hc, headers: map[string]string{"x-api-key": apiKey}},
	}
}

func (c *CurseForge) Name() model.Platform { return model.PlatformCurseForge }

type curseForgeSearch struct {
	Data []struct {
		ID            int64  `json:"id"`
		Name          string `json:"name"`
		Summary       string `json:"summary"`
		DownloadCount int64  `json:"downloadCount"`
		Authors       []struct {
			Name string `json:"name"`
		} `json:"authors"`
		Links struct {
			WebsiteURL string `json:"websiteUrl"`
		} `json:"links"`
		Logo *struct {
			URL string `json:"url"`
		} `json:"logo"`
	} `json:"data"`
}

type curseForgeFiles struct {
	Data []struct {
		FileName    string `json:"fileName"`
		DownloadURL string `json:"downloadUrl"`
	} `json:"data"`
}

// modLoaderType maps a server type to CurseForge's ModLoaderType enum.
func modLoaderType(t model.ServerType) int {
	switch t {
	case model.ServerTypeForge:
		return 1
	case model.ServerTypeFabric:
		return 4
	case model.ServerTypeNeoForge:
		return 6
	default:
		return 0
	}
}

func (c *CurseForge) Search(ctx context.Context, q Query) ([]model.ModSearchResult, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	params := url.Values{}
	params.Set("gameId", strconv.Itoa(curseForgeMinecraft))
	params.Set("sortField", "2")
	params.Set("sortOrder", "desc")
	params.Set("searchFilter", q.Text)
	params.Set("pageSize", strconv.Itoa(q.Limit))
	if q.GameVersion != "" {
		params.Set("gameVersion", q.GameVersion)
	}
	if q.Kind == model.AddonPlugin {
		params.Set("classId", strconv.Itoa(curseForgePluginClass))
	} else {
		params.Set("classId", strconv.Itoa(curseForgeModsClass))
		if lt := modLoaderType(q.Loader); lt != 0 {
			params.Set("modLoaderType", strconv.Itoa(lt))
		}
	}

	var res curseForgeSearch
	if err := c.client.getJSON(ctx, c.base+"/mods/search?"+params.Encode(), &res); err != nil {
		return nil, err
	}
	out := make([]model.ModSearchResult, 0, len(res.Data))
	for _, d := range res.Data {
		r := model.ModSearchResult{
			Platform:  model.PlatformCurseForge,
			ProjectID: strconv.FormatInt(d.ID, 10),
			Name:      d.Name,
			Summary:   d.Summary,
			Downloads: d.DownloadCount,
			Link:      d.Links.WebsiteURL,
		}
		if len(d.Authors) > 0 {
			r.Author = d.Authors[0].Name
		}
		if d.Logo != nil {
			r.Logo = d.Logo.URL
		}
		out = append(out, r)
	}
	return out, nil
}

func (c *CurseForge) Download(ctx context.Context, projectID string, q Query, dir string) (string, error) {
	if c.apiKey == "" {
		return "", ErrMissingAPIKey
	}
	if _, err := strconv.ParseInt(projectID, 10, 64); err != nil {
		return "", fmt.Errorf("invalid curseforge project id %q", projectID)
	}
	params := url.Values{}
	if q.Kind == model.AddonMod {
		if q.GameVersion != "" {
			params.Set("gameVersion", q.GameVersion)
		}
		if lt := modLoaderType(q.Loader); lt != 0 {
			params.Set("modLoaderType", strconv.Itoa(lt))
		}
	}

	var files curseForgeFiles
	endpoint := fmt.Sprintf("%s/mods/%s/files?%s", c.base, projectID, params.Encode())
	if err := c.client.getJSON(ctx, endpoint, &files); err != nil {
		return "", err
	}
	if len(files.Data) == 0 {
		return "", ErrNoCompatible
	}
	f := files.Data[0]
	if f.DownloadURL == "" {
		return "", fmt.Errorf("%w: the author disabled third-party downloads", ErrNoCompatible)
	}
	name, err := cleanFileName(f.FileName)
	if err != nil {
		return "", err
	}
	cdn := httpClient{http: c.client.http}
	if err := cdn.save(ctx, f.DownloadURL, dir, name); err != nil {
		return "", err
	}
	return name, nil
}
