package provision

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"protonmc/internal/logging"
)

// RequiredJava returns the Java major version a Minecraft version runs on.
func RequiredJava(gameVersion string) int {
	parts := strings.Split(strings.TrimSpace(gameVersion), ".")
	if len(parts) < 2 || parts[0] != "1" {
		return 21
	}
	minor, err := strconv.Atoi(parts[1])
	if err != nil {
		return 21
	}
	patch := 0
	if len(parts) > 2 {
		patch, _ = strconv.Atoi(parts[2])
	}
	switch {
	case minor <= 15:
		return 8
	case minor <= 17:
		return 16
	case minor < 20, minor == 20 && patch <= 4:
		return 17
	default:
		return 21
	}
}

// JDKManager finds installed JDKs under a directory and downloads missing ones.
type JDKManager struct {
	dir         string
	autoInstall bool
	client      *Client
	log         *logging.Logger

	mu sync.Mutex
}

// NewJDKManager creates a manager rooted at dir.
func NewJDKManager(dir string, autoInstall bool, client *Client, log *logging.Logger) *JDKManager {
	if log == nil {
		log = logging.Nop()
	}
	return &JDKManager{dir: dir, autoInstall: autoInstall, client: client, log: log}
}

// Installed maps Java major versions to JDK home directories.
func (j *JDKManager) Installed() (map[int]string, error) {
	entries, err := os.ReadDir(j.dir)
	if errors.Is(err, os.ErrNotExist) {
		return map[int]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	out := map[int]string{}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		major, ok := JavaMajorFromDir(e.Name())
		if !ok {
			continue
		}
		home := filepath.Join(j.dir, e.Name())
		if _, err := os.Stat(filepath.Join(home, "bin", "java")); err != nil {
			continue
		}
		out[major] = home
	}
	return out, nil
}

// JavaHome resolves the JDK for a game version. With auto install off and no
// matching JDK it returns "" so the caller falls back to java on PATH.
func (j *JDKManager) JavaHome(ctx context.Context, gameVersion string) (string, error) {
	major := RequiredJava(gameVersion)

	j.mu.Lock()
	defer j.mu.Unlock()

	installed, err := j.Installed()
	if err != nil {
		return "", err
	}
	if home, ok := installed[major]; ok {
		return home, nil
	}
	if !j.autoInstall {
		j.log.Warn("jdk_missing_using_path", "major", major, "game_version", gameVersion)
		return "", nil
	}
	return j.install(ctx, major)
}

func (j *JDKManager) install(ctx context.Context, major int) (string, error) {
	j.log.Info("jdk_install_start", "major", major)
	if err := os.MkdirAll(j.dir, 0o755); err != nil {
		return "", err
	}
	url := fmt.Sprintf("%s/binary/latest/%d/ga/linux/%s/jdk/hotspot/normal/eclipse",
		j.client.endpoints.Adoptium, major, adoptiumArch())
	archive := filepath.Join(j.dir, fmt.Sprintf("jdk-%d.tar.gz", major))
	if err := j.client.download(ctx, url, archive); err != nil {
		return "", fmt.Errorf("download jdk %d: %w", major, err)
	}
	defer os.Remove(archive)

	if err := untarGz(archive, j.dir); err != nil {
		return "", fmt.Errorf("extract jdk %d: %w", major, err)
	}
	installed, err := j.Installed()
	if err != nil {
		return "", err
	}
	home, ok := installed[major]
	if !ok {
		return "", fmt.Errorf("jdk %d archive did not contain a usable java", major)
	}
	j.log.Info("jdk_install_success", "major", major, "home", home)
	return home, nil
}

func adoptiumArch() string {
	switch runtime.GOARCH {
	case "amd64":
		return "x64"
	case "arm64":
		return "aarch64"
	case "386":
		return "x32"
	default:
		return runtime.GOARCH
	}
}

// JavaMajorFromDir reads the major version out of a JDK folder name such as
// "jdk-17.0.9+9", "jdk8u392-b08" or "jdk1.8.0_392".
func JavaMajorFromDir(name string) (int, bool) {
	var nums []string
	cur := ""
	for _, r := range name + " " {
		if r >= '0' && r <= '9' {
			cur += string(r)
			continue
		}
		if cur != "" {
			nums = append(nums, cur)
			cur = ""
		}
	}
	if len(nums) == 0 {
		return 0, false
	}
	pick := nums[0]
	if pick == "1" && len(nums) > 1 {
		pick = nums[1]
	}
	n, err := strconv.Atoi(pick)
	if err != nil || n == 0 {
		return 0, false
	}
	return n, true
}

func untarGz(archive, dest string) error {
	f, err := os.Open(archive)
	if err != nil {
		return err
	}
	defer f.Close()
	gr, err := gzip.NewReader(f)
	if err != nil {
		return err
	}
	defer gr.Close()

	root := filepath.Clean(dest)
	tr := tar.NewReader(gr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		target := filepath.Join(root, hdr.Name)
		if target != root && !strings.HasPrefix(target, root+string(filepath.Separator)) {
			return fmt.Errorf("archive entry %q escapes destination", hdr.Name)
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode)&0o777)
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return err
			}
			if err := out.Close(); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if filepath.IsAbs(hdr.Linkname) {
				continue
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			_ = os.Remove(target)
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return err
			}
		}
	}
}
