package mods

import (
	"encoding/json"
	"io"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/klauspost/compress/zip"
	"gopkg.in/yaml.v3"
)

type fabricModJSON struct {
	Name string `json:"name"`
}

type forgeModsTOML struct {
	Mods []struct {
		DisplayName string `toml:"displayName"`
	} `toml:"mods"`
}

type mcmodEntry struct {
	Name string `json:"name"`
}

type pluginYAML struct {
	Name string `yaml:"name"`
}

// metadataReaders are tried in order; the first one yielding a name wins.
var metadataReaders = []struct {
	path  string
	parse func([]byte) string
}{
	{"fabric.mod.json", parseFabric},
	{"META-INF/mods.toml", parseModsTOML},
	{"META-INF/neoforge.mods.toml", parseModsTOML},
	{"mcmod.info", parseMcmodInfo},
	{"plugin.yml", parsePluginYAML},
	{"paper-plugin.yml", parsePluginYAML},
}

// DisplayName returns the mod or plugin name declared inside a jar,
// or the file name when the jar has no readable metadata.
func DisplayName(jarPath string) string {
	fallback := filepath.Base(jarPath)
	zr, err := zip.OpenReader(jarPath)
	if err != nil {
		return fallback
	}
	defer zr.Close()

	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}
	for _, r := range metadataReaders {
		f, ok := files[r.path]
		if !ok {
			continue
		}
		data, err := readZipFile(f)
		if err != nil {
			continue
		}
		if name := strings.TrimSpace(r.parse(data)); name != "" {
			return name
		}
	}
	return fallback
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(io.LimitReader(rc, 1<<20))
}

func parseFabric(data []byte) string {
	var m fabricModJSON
	if json.Unmarshal(data, &m) != nil {
		return ""
	}
	return m.Name
}

func parseModsTOML(data []byte) string {
	var m forgeModsTOML
	if _, err := toml.Decode(string(data), &m); err != nil || len(m.Mods) == 0 {
		return ""
	}
	name := m.Mods[0].DisplayName
	// Forge substitutes ${...} from the jar manifest; the raw placeholder is useless.
	if strings.Contains(name, "${") {
		return ""
	}
	return name
}

func parseMcmodInfo(data []byte) string {
	var list []mcmodEntry
	if json.Unmarshal(data, &list) == nil && len(list) > 0 {
		return list[0].Name
	}
	var v2 struct {
		ModList []mcmodEntry `json:"modList"`
	}
	if json.Unmarshal(data, &v2) == nil && len(v2.ModList) > 0 {
		return v2.ModList[0].Name
	}
	return ""
}

func parsePluginYAML(data []byte) string {
	var p pluginYAML
	if yaml.Unmarshal(data, &p) != nil {
		return ""
	}
	return p.Name
}
