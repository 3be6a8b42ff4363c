package mods

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"protonmc/internal/model"
)

// DefaultModrinthURL is the public Modrinth API.
const DefaultModrinthURL = "https://api.modrinth.com/v2"

// Modrinth searches and downloads from modrinth.com.
type Modrinth struct {
	base   string
	client httpClient
}

// NewModrinth creates a Modrinth client against base.
func NewModrinth(base string, hc *http.Client) *Modrinth {
	return &Modrinth{base: base, client: httpClient{http: hc}}
}

func (m *Modrinth) Name() model.Platform { return model.PlatformModrinth }

type modrinthSearch struct {
	Hits []struct {
		ProjectID   string `json:"project_id"`
		Slug        string `json:"slug"`
		Title       string `json:"title"`
		Author      string `json:"author"`
		Description string `json:"description"`
		Downloads   int64  `json:"downloads"`
		IconURL     string `json:"icon_url"`
	} `json:"hits"`
}

type modrinthVersion struct {
	Files []struct {
		URL      string `json:"url"`
		Filename string `json:"filename"`
		Primary  bool   `json:"primary"`
	} `json:"files"`
}

func (m *Modrinth) loaders(q Query) []string {
	if q.Kind == model.AddonPlugin {
		return pluginLoaders(q.Loader)
	}
	return []string{string(q.Loader)}
}

func (m *Modrinth) Search(ctx context.Context, q Query) ([]model.ModSearchResult, error) {
	projectType := string(q.Kind)
	var loaderFacet []string
	for _, l := range m.loaders(q) {
		loaderFacet = append(loaderFacet, "categories:"+l)
	}
	facets := [][]string{{"project_type:" + projectType}, loaderFacet}
	if q.GameVersion != "" {
		facets = append(facets, []string{"versions:" + q.GameVersion})
	}
	rawFacets, err := json.Marshal(facets)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("query", q.Text)
	params.Set("limit", strconv.Itoa(q.Limit))
	params.Set("facets", string(rawFacets))

	var res modrinthSearch
	if err := m.client.getJSON(ctx, m.base+"/search?"+params.Encode(), &res); err != nil {
		return nil, err
	}
	out := make([]model.ModSearchResult, 0, len(res.Hits))
	for _, h := range res.Hits {
		out = append(out, model.ModSearchResult{
			Platform:  model.PlatformModrinth,
			ProjectID: h.ProjectID,
			Name:      h.Title,
			Author:    h.Author,
			Summary:   h.Description,
			Downloads: h.Downloads,
			Logo:      h.IconURL,
			Link:      fmt.Sprintf("https://modrinth.com/%s/%s", projectType, h.Slug),
		})
	}
	return out, nil
}

func (m *Modrinth) Download(ctx context.Context, projectID string, q Query, dir string) (string, error) {
	loaders, err := json.Marshal(m.loaders(q))
	if err != nil {
		return "", err
	}
	params := url.Values{}
	params.Set("loaders", string(loaders))
	if q.Kind == model.AddonMod && q.GameVersion != "" {
		versions, _ := json.Marshal([]string{q.GameVersion})
		params.Set("game_versions", string(versions))
	}

	var found []modrinthVersion
	endpoint := fmt.Sprintf("%s/project/%s/version?%s", m.base, url.PathEscape(projectID), params.Encode())
	if err := m.client.getJSON(ctx, endpoint, &found); err != nil {
		return "", err
	}
	if len(found) == 0 || len(found[0].Files) == 0 {
		return "", ErrNoCompatible
	}

	file := found[0].Files[0]
	for _, f := range found[0].Files {
		if f.Primary {
			file = f
			break
		}
	}
	name, err := cleanFileName(file.Filename)
	if err != nil {
		return "", err
	}
	if err := m.client.save(ctx, file.URL, dir, name); err != nil {
		return "", err
	}
	return name, nil
}
