package minecraft

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleProperties = `#Minecraft server properties
#Mon Jan 01 00:00:00 UTC 2024
motd=A Minecraft Server
max-players=20
rcon.password=secret
server-ip=
pvp=true
`

func writeProperties(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, PropertiesFile), []byte(sampleProperties), 0o644))
	return dir
}

func TestReadProperties(t *testing.T) {
	dir := writeProperties(t)

	props, err := ReadProperties(dir)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"motd":        "A Minecraft Server",
		"max-players": "20",
		"pvp":         "true",
	}, props)
}

func TestReadProperties_Missing(t *testing.T) {
	_, err := ReadProperties(t.TempDir())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestUpdateProperties(t *testing.T) {
	dir := writeProperties(t)

	changed, err := UpdateProperties(dir, map[string]string{"max-players": "50", "unknown-key": "x", "motd": "hi\nthere"})
	require.NoError(t, err)
	assert.Equal(t, []string{"max-players", "motd"}, changed)

	raw, err := os.ReadFile(filepath.Join(dir, PropertiesFile))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "max-players=50\n")
	assert.Contains(t, string(raw), "motd=hithere\n")
	assert.Contains(t, string(raw), "rcon.password=secret\n")
	assert.NotContains(t, string(raw), "unknown-key")
}

func TestUpdateProperties_HiddenKeyRejected(t *testing.T) {
	dir := writeProperties(t)

	_, err := UpdateProperties(dir, map[string]string{"rcon.password": "x"})
	assert.ErrorIs(t, err, ErrHiddenProperty)
}

func TestListFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "world", "region"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "world", "level.dat"), []byte("x"), 0o644))

	files, err := ListFiles(dir, "world")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"region": "folder", "level.dat": "file"}, files)

	_, err = ListFiles(dir, "../..")
	assert.ErrorIs(t, err, ErrPathEscapes)
}

func TestSafeJoin(t *testing.T) {
	root := filepath.Join(t.TempDir(), "srv")

	p, err := SafeJoin(root, "")
	require.NoError(t, err)
	assert.Equal(t, root, p)

	p, err = SafeJoin(root, "mods/a.jar")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "mods", "a.jar"), p)

	_, err = SafeJoin(root, "../other")
	assert.ErrorIs(t, err, ErrPathEscapes)
}

func TestSafeJoin_Symlinks(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "srv")
	outside := filepath.Join(base, "outside")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "world"), 0o755))
	require.NoError(t, os.MkdirAll(outside, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret.txt"), []byte("x"), 0o644))
	if err := os.Symlink(outside, filepath.Join(root, "escape")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	require.NoError(t, os.Symlink(filepath.Join(root, "world"), filepath.Join(root, "world-link")))

	_, err := SafeJoin(root, "escape")
	assert.ErrorIs(t, err, ErrPathEscapes)
	_, err = SafeJoin(root, "escape/secret.txt")
	assert.ErrorIs(t, err, ErrPathEscapes)
	_, err = SafeJoin(root, "escape/new/file.txt")
	assert.ErrorIs(t, err, ErrPathEscapes)

	_, err = ListFiles(root, "escape")
	assert.ErrorIs(t, err, ErrPathEscapes)

	p, err := SafeJoin(root, "world-link/level.dat")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "world-link", "level.dat"), p)

	// a root that is itself a symlink still admits its own contents
	linkedRoot := filepath.Join(base, "srv-link")
	require.NoError(t, os.Symlink(root, linkedRoot))
	p, err = SafeJoin(linkedRoot, "world")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(linkedRoot, "world"), p)
}
