package mods

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"protonmc/internal/archive"
	"protonmc/internal/model"
)

// ErrNotFound is returned when a jar does not exist in the folder.
var ErrNotFound = errors.New("mod file not found")

// List returns the jars in dir with their display names, sorted by file name.
// A missing folder yields an empty list.
func List(dir string) ([]model.InstalledMod, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return []model.InstalledMod{}, nil
	}
	if err != nil {
		return nil, err
	}
	out := make([]model.InstalledMod, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".jar") {
			continue
		}
		out = append(out, model.InstalledMod{
			File: e.Name(),
			Name: DisplayName(filepath.Join(dir, e.Name())),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].File < out[j].File })
	return out, nil
}

// Remove deletes one jar from dir.
func Remove(dir, file string) error {
	name, err := cleanFileName(file)
	if err != nil || name != file {
		return ErrInvalidFile
	}
	err = os.Remove(filepath.Join(dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return ErrNotFound
	}
	return err
}

// WriteZip streams the folder as a zip archive.
func WriteZip(ctx context.Context, dir string, w io.Writer) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return archive.ZipDir(ctx, dir, w, archive.Options{})
}
