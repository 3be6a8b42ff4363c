package minecraft

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// PropertiesFile is the server settings file inside a server folder.
const PropertiesFile = "server.properties"

var hiddenProperties = map[string]bool{
	"rcon.password": true,
	"rcon.port":     true,
	"query.port":    true,
	"server-ip":     true,
}

// ErrHiddenProperty is returned when an update targets a protected key.
var ErrHiddenProperty = errors.New("property cannot be changed from the panel")

// ReadProperties parses server.properties, leaving out comments and network secrets.
func ReadProperties(dir string) (map[string]string, error) {
	f, err := os.Open(filepath.Join(dir, PropertiesFile))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	props := map[string]string{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		key, value, ok := splitProperty(sc.Text())
		if !ok || hiddenProperties[key] {
			continue
		}
		props[key] = value
	}
	return props, sc.Err()
}

// UpdateProperties rewrites the values of existing keys in place and
// returns the keys that were changed. Unknown keys are ignored.
func UpdateProperties(dir string, updates map[string]string) ([]string, error) {
	for key := range updates {
		if hiddenProperties[key] {
			return nil, fmt.Errorf("%w: %s", ErrHiddenProperty, key)
		}
	}

	path := filepath.Join(dir, PropertiesFile)
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	lines := strings.Split(string(raw), "\n")
	var changed []string
	for idx, line := range lines {
		key, _, ok := splitProperty(line)
		if !ok {
			continue
		}
		if value, want := updates[key]; want {
			lines[idx] = key + "=" + sanitizeValue(value)
			changed = append(changed, key)
		}
	}
	if len(changed) == 0 {
		return nil, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")), info.Mode().Perm()); err != nil {
		return nil, err
	}
	sort.Strings(changed)
	return changed, nil
}

func splitProperty(line string) (key, value string, ok bool) {
	line = strings.TrimRight(line, "\r")
	if strings.HasPrefix(strings.TrimSpace(line), "#") {
		return "", "", false
	}
	key, value, ok = strings.Cut(line, "=")
	if !ok {
		return "", "", false
	}
	return strings.TrimSpace(key), value, true
}

func sanitizeValue(v string) string {
	return strings.NewReplacer("\r", "", "\n", "").Replace(v)
}

// ListFiles lists entries of a folder inside the server directory as name -> "file"|"folder".
func ListFiles(serverDir, folder string) (map[string]string, error) {
	dir, err := SafeJoin(serverDir, folder)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			out[e.Name()] = "folder"
		} else {
			out[e.Name()] = "file"
		}
	}
	return out, nil
}

// ErrPathEscapes is returned for paths that leave their root.
var ErrPathEscapes = errors.New("path escapes server directory")

// SafeJoin joins rel under root and rejects results outside root, either
// lexically or through a symlink inside root.
func SafeJoin(root, rel string) (string, error) {
	root = filepath.Clean(root)
	joined := filepath.Join(root, filepath.FromSlash(rel))
	if !within(root, joined) {
		return "", ErrPathEscapes
	}
	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		// nothing on disk yet to follow
		return joined, nil
	}
	realJoined, err := resolveExisting(joined)
	if err != nil {
		return "", err
	}
	if !within(realRoot, realJoined) {
		return "", ErrPathEscapes
	}
	return joined, nil
}

func within(root, p string) bool {
	return p == root || strings.HasPrefix(p, root+string(filepath.Separator))
}

// resolveExisting follows symlinks in the longest existing prefix of p and
// appends the part that does not exist yet.
func resolveExisting(p string) (string, error) {
	var rest []string
	for {
		resolved, err := filepath.EvalSymlinks(p)
		if err == nil {
			return filepath.Join(append([]string{resolved}, rest...)...), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(p)
		if parent == p {
			return "", err
		}
		rest = append([]string{filepath.Base(p)}, rest...)
		p = parent
	}
}
