package cli

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"protonmc/internal/auth"
	"protonmc/internal/model"
	repomocks "protonmc/internal/repository/mocks"
	"protonmc/internal/service"
	svcmocks "protonmc/internal/service/mocks"
	"protonmc/internal/storage"
)

type fakeBackend struct {
	users   *repomocks.MockUserRepository
	servers *repomocks.MockServerRepository
	auth    *svcmocks.MockAuthService
}

// useFakeBackend swaps openBackend and the password prompts for the test's duration.
func useFakeBackend(t *testing.T, password string) *fakeBackend {
	t.Helper()
	f := &fakeBackend{
		users:   new(repomocks.MockUserRepository),
		servers: new(repomocks.MockServerRepository),
		auth:    new(svcmocks.MockAuthService),
	}

	prevOpen, prevPrompt, prevRead := openBackend, promptPassword, readPassword
	openBackend = func(context.Context) (*backend, error) {
		return &backend{Users: f.users, Servers: f.servers, Auth: f.auth}, nil
	}
	promptPassword = func(string) (string, error) { return password, nil }
	readPassword = func(string) (string, error) { return password, nil }
	t.Cleanup(func() {
		openBackend, promptPassword, readPassword = prevOpen, prevPrompt, prevRead
		f.users.AssertExpectations(t)
		f.servers.AssertExpectations(t)
		f.auth.AssertExpectations(t)
	})
	return f
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	setupImport, setupType, setupVersion = "", string(model.ServerTypeSpigot), ""
	userLevel = 1
	envFile = filepath.Join(t.TempDir(), ".env")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestEnsureSecretKey_GeneratesAndKeepsOtherEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("DB_DRIVER=sqlite\n"), 0o600))

	generated, err := ensureSecretKey(path)
	require.NoError(t, err)
	assert.True(t, generated)

	env, err := godotenv.Read(path)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", env["DB_DRIVER"])
	assert.Len(t, env[secretKeyVar], 64)

	generated, err = ensureSecretKey(path)
	require.NoError(t, err)
	assert.False(t, generated)

	again, err := godotenv.Read(path)
	require.NoError(t, err)
	assert.Equal(t, env[secretKeyVar], again[secretKeyVar])
}

func TestEnsureSecretKey_CreatesMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")

	generated, err := ensureSecretKey(path)
	require.NoError(t, err)
	assert.True(t, generated)
	assert.FileExists(t, path)
}

func TestLoadEnv_MissingFileIsIgnored(t *testing.T) {
	assert.NoError(t, loadEnv(filepath.Join(t.TempDir(), "nope.env")))
}

func TestImportLegacyServers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "servers.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"Survival": {"server_folder": "/srv/mc/survival", "backup_folder": "/srv/mc/backups/survival"},
		"Creative": {"server_folder": "/srv/mc/creative", "backup_folder": ""},
		"Broken":   {"backup_folder": "/x"}
	}`), 0o600))

	repo := new(repomocks.MockServerRepository)
	repo.On("FindByName", mock.Anything, "Creative").Return(&model.Server{Name: "Creative"}, nil)
	repo.On("FindByName", mock.Anything, "Survival").Return(nil, sql.ErrNoRows)
	repo.On("Create", mock.Anything, mock.MatchedBy(func(s *model.Server) bool {
		return s.Name == "Survival" &&
			s.Type == model.ServerTypePaper &&
			s.GameVersion == "1.20.4" &&
			s.Directory == "/srv/mc/survival" &&
			s.BackupFolder == "backups/Survival"
	})).Return(nil)

	var out bytes.Buffer
	n, err := importLegacyServers(context.Background(), legacyImport{
		Servers: repo,
		Type:    model.ServerTypePaper,
		Version: "1.20.4",
		Out:     &out,
	}, path)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Contains(t, out.String(), `skipped "Broken": no server_folder`)
	assert.Contains(t, out.String(), `skipped "Creative": already registered`)
	assert.Contains(t, out.String(), `imported "Survival"`)
	repo.AssertExpectations(t)
}

func TestImportLegacyServers_UploadsArchives(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	backupDir := filepath.Join(dir, "backups", "survival")
	require.NoError(t, os.MkdirAll(backupDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(backupDir, "1-2-2023_4-5-6.zip"), []byte("zip-a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(backupDir, "known.zip"), []byte("zip-b"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(backupDir, "notes.txt"), []byte("n"), 0o644))
	stamp := time.Date(2023, 1, 2, 4, 5, 6, 0, time.UTC)
	require.NoError(t, os.Chtimes(filepath.Join(backupDir, "1-2-2023_4-5-6.zip"), stamp, stamp))

	path := filepath.Join(dir, "servers.json")
	raw, err := json.Marshal(map[string]legacyServer{
		"survival": {ServerFolder: filepath.Join(dir, "survival"), BackupFolder: backupDir},
		"creative": {ServerFolder: filepath.Join(dir, "creative"), BackupFolder: filepath.Join(dir, "missing")},
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	store, err := storage.NewLocal(filepath.Join(dir, "store"))
	require.NoError(t, err)
	servers := new(repomocks.MockServerRepository)
	servers.On("FindByName", mock.Anything, mock.Anything).Return(nil, sql.ErrNoRows)
	servers.On("Create", mock.Anything, mock.Anything).Return(nil)
	backups := new(repomocks.MockBackupRepository)
	backups.On("FindByName", mock.Anything, "survival", "known").Return(&model.Backup{Name: "known"}, nil)
	backups.On("FindByName", mock.Anything, "survival", "1-2-2023_4-5-6").Return(nil, sql.ErrNoRows)
	backups.On("Create", mock.Anything, mock.MatchedBy(func(b *model.Backup) bool {
		return b.Server == "survival" &&
			b.Name == "1-2-2023_4-5-6" &&
			b.ObjectKey == "backups/survival/1-2-2023_4-5-6.zip" &&
			b.Size == 5 &&
			b.CreatedAt.Equal(stamp) &&
			b.ID != ""
	})).Return(&model.Backup{}, nil).Once()

	var out bytes.Buffer
	n, err := importLegacyServers(ctx, legacyImport{
		Servers: servers,
		Backups: backups,
		Store:   store,
		Type:    model.ServerTypeSpigot,
		Out:     &out,
	}, path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Contains(t, out.String(), `imported 1 backup(s) of "survival"`)
	assert.Contains(t, out.String(), "no backup folder at")

	rc, _, err := store.Get(ctx, "backups/survival/1-2-2023_4-5-6.zip")
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "zip-a", string(data))

	_, _, err = store.Get(ctx, "backups/survival/known.zip")
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)
	servers.AssertExpectations(t)
	backups.AssertExpectations(t)
}

func TestImportLegacyServers_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "servers.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o600))

	_, err := importLegacyServers(context.Background(), legacyImport{
		Servers: new(repomocks.MockServerRepository),
		Out:     &bytes.Buffer{},
	}, path)
	assert.ErrorContains(t, err, "failed to decode")
}

func TestSetup_CreatesAdminOnEmptyDatabase(t *testing.T) {
	f := useFakeBackend(t, "hunter22")
	f.users.On("Count", mock.Anything).Return(0, nil)
	f.auth.On("EnsureAdmin", mock.Anything, "hunter22").Return(true, nil)

	out, err := execute(t, "setup")
	require.NoError(t, err)
	assert.Contains(t, out, "Generated SECRET_KEY")
	assert.Contains(t, out, `Created user "admin" with full permissions`)
}

func TestSetup_SkipsAdminWhenUsersExist(t *testing.T) {
	f := useFakeBackend(t, "")
	f.users.On("Count", mock.Anything).Return(2, nil)

	out, err := execute(t, "setup")
	require.NoError(t, err)
	assert.Contains(t, out, "2 user(s) already exist")
	f.auth.AssertNotCalled(t, "EnsureAdmin", mock.Anything, mock.Anything)
}

func TestSetup_RejectsUnknownImportType(t *testing.T) {
	f := useFakeBackend(t, "")
	f.users.On("Count", mock.Anything).Return(1, nil)

	_, err := execute(t, "setup", "--import", "servers.json", "--type", "bukkit")
	assert.ErrorContains(t, err, `unknown server type "bukkit"`)
}

func TestUsersAdd(t *testing.T) {
	f := useFakeBackend(t, "s3cret")
	f.auth.On("CreateUser", mock.Anything, "alex", "s3cret", 3).
		Return(&model.User{Username: "alex", Permissions: 3}, nil)

	out, err := execute(t, "users", "add", "alex", "--level", "3")
	require.NoError(t, err)
	assert.Contains(t, out, `Created user "alex" with level 3`)
}

func TestUsersAdd_PropagatesServiceError(t *testing.T) {
	f := useFakeBackend(t, "s3cret")
	f.auth.On("CreateUser", mock.Anything, "alex", "s3cret", 9).Return(nil, service.ErrInvalidLevel)

	_, err := execute(t, "users", "add", "alex", "--level", "9")
	assert.ErrorIs(t, err, service.ErrInvalidLevel)
}

func TestUsersList(t *testing.T) {
	f := useFakeBackend(t, "")
	f.auth.On("ListUsers", mock.Anything).Return([]model.User{
		{Username: "admin", Permissions: auth.MaxLevel},
		{Username: "guest", Permissions: 0},
	}, nil)

	out, err := execute(t, "users", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "USERNAME")
	assert.Contains(t, out, "admin")
	assert.Contains(t, out, "guest")
	assert.Contains(t, out, auth.PermViewServers)
}

func TestUsersDelete(t *testing.T) {
	f := useFakeBackend(t, "")
	f.auth.On("DeleteUser", mock.Anything, "guest").Return(nil)

	out, err := execute(t, "users", "delete", "guest")
	require.NoError(t, err)
	assert.Contains(t, out, `Deleted user "guest"`)
}

func TestUsersPasswd(t *testing.T) {
	f := useFakeBackend(t, "n3w")
	f.auth.On("SetPassword", mock.Anything, "admin", "n3w").Return(nil)

	out, err := execute(t, "users", "passwd", "admin")
	require.NoError(t, err)
	assert.Contains(t, out, `Password updated for "admin"`)
}

func TestUsersLevel(t *testing.T) {
	f := useFakeBackend(t, "")
	f.auth.On("SetPermissions", mock.Anything, "alex", 4).Return(nil)

	out, err := execute(t, "users", "level", "alex", "-l", "4")
	require.NoError(t, err)
	assert.Contains(t, out, `User "alex" now has level 4`)
}

func TestUsersCommands_RequireUsername(t *testing.T) {
	for _, cmd := range []string{"add", "delete", "passwd", "level"} {
		t.Run(cmd, func(t *testing.T) {
			_, err := execute(t, "users", cmd)
			assert.Error(t, err)
		})
	}
}

func TestHashPassword_FromArgument(t *testing.T) {
	out, err := execute(t, "hash-password", "correct horse")
	require.NoError(t, err)

	ok, err := auth.VerifyPassword("correct horse", strings.TrimSpace(out))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHashPassword_Prompted(t *testing.T) {
	useFakeBackend(t, "from terminal")

	out, err := execute(t, "hash-password")
	require.NoError(t, err)
	assert.Contains(t, out, "$argon2id$")
}

func TestHashPassword_EmptyPromptFails(t *testing.T) {
	prev := readPassword
	readPassword = func(string) (string, error) { return "", nil }
	t.Cleanup(func() { readPassword = prev })

	_, err := execute(t, "hash-password")
	assert.True(t, errors.Is(err, auth.ErrEmptyPassword))
}
