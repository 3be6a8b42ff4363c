package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"protonmc/internal/archive"
	"protonmc/internal/minecraft"
	"protonmc/internal/model"
	"protonmc/internal/repository"
	repoMocks "protonmc/internal/repository/mocks"
	"protonmc/internal/storage"
	storeMocks "protonmc/internal/storage/mocks"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type recordedBackup struct {
	mu  sync.Mutex
	oks []bool
}

func (r *recordedBackup) BackupFinished(_ string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.oks = append(r.oks, ok)
}

type backupFixture struct {
	svc      BackupService
	repo     *repoMocks.MockBackupRepository
	store    storage.Storage
	manager  *minecraft.Manager
	notifier *fakeNotifier
	recorder *recordedBackup
	srvDir   string
}

func newBackupFixture(t *testing.T, store storage.Storage) *backupFixture {
	t.Helper()
	if store == nil {
		var err error
		store, err = storage.NewLocal(t.TempDir())
		require.NoError(t, err)
	}
	f := &backupFixture{
		repo:     new(repoMocks.MockBackupRepository),
		store:    store,
		manager:  minecraft.NewManager(minecraft.Options{}),
		notifier: &fakeNotifier{},
		recorder: &recordedBackup{},
		srvDir:   filepath.Join(t.TempDir(), "survival"),
	}
	require.NoError(t, os.MkdirAll(filepath.Join(f.srvDir, "world"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(f.srvDir, "world", "level.dat"), []byte("level"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(f.srvDir, "server.properties"), []byte("motd=hi\n"), 0o644))
	f.manager.Register(model.Server{Name: "survival", Directory: f.srvDir, BackupFolder: "backups/survival"})

	svc := NewBackupService(BackupDeps{
		Repo:     f.repo,
		Store:    f.store,
		Manager:  f.manager,
		Notifier: f.notifier,
		Recorder: f.recorder,
		Location: time.UTC,
		TempDir:  t.TempDir(),
	})
	svc.(*backupService).now = func() time.Time { return time.Date(2024, 3, 7, 9, 5, 2, 0, time.UTC) }
	f.svc = svc
	return f
}

func TestBackupService_Run(t *testing.T) {
	ctx := context.Background()
	f := newBackupFixture(t, nil)
	f.repo.On("FindByName", ctx, "survival", "3-7-2024_9-5-2").Return(nil, sql.ErrNoRows)
	f.repo.On("Create", ctx, mock.MatchedBy(func(b *model.Backup) bool {
		return b.Server == "survival" && b.ObjectKey == "backups/survival/3-7-2024_9-5-2.zip" && b.Size > 0
	})).Return(&model.Backup{ID: "b1", Name: "3-7-2024_9-5-2"}, nil)

	b, err := f.svc.Run(ctx, "survival")
	require.NoError(t, err)
	assert.Equal(t, "3-7-2024_9-5-2", b.Name)

	rc, info, err := f.store.Get(ctx, "backups/survival/3-7-2024_9-5-2.zip")
	require.NoError(t, err)
	rc.Close()
	assert.Greater(t, info.Size, int64(0))
	assert.Equal(t, []bool{true}, f.recorder.oks)

	progress, err := f.svc.Progress("survival")
	require.NoError(t, err)
	assert.Equal(t, model.BackupProgress{}, progress)
	f.repo.AssertExpectations(t)
}

func TestBackupService_RunNameCollision(t *testing.T) {
	ctx := context.Background()
	f := newBackupFixture(t, nil)
	f.repo.On("FindByName", ctx, "survival", "3-7-2024_9-5-2").Return(&model.Backup{}, nil)
	f.repo.On("FindByName", ctx, "survival", "3-7-2024_9-5-2-1").Return(nil, sql.ErrNoRows)
	f.repo.On("Create", ctx, mock.MatchedBy(func(b *model.Backup) bool {
		return b.Name == "3-7-2024_9-5-2-1"
	})).Return(&model.Backup{Name: "3-7-2024_9-5-2-1"}, nil)

	b, err := f.svc.Run(ctx, "survival")
	require.NoError(t, err)
	assert.Equal(t, "3-7-2024_9-5-2-1", b.Name)
}

func TestBackupService_RunRollsBackStorage(t *testing.T) {
	ctx := context.Background()
	f := newBackupFixture(t, nil)
	f.repo.On("FindByName", ctx, "survival", mock.Anything).Return(nil, sql.ErrNoRows)
	f.repo.On("Create", ctx, mock.Anything).Return(nil, errors.New("db fail"))

	_, err := f.svc.Run(ctx, "survival")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db save failed: db fail")

	_, _, err = f.store.Get(ctx, "backups/survival/3-7-2024_9-5-2.zip")
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)
	assert.Equal(t, []bool{false}, f.recorder.oks)
	assert.Equal(t, "error", f.notifier.last().level)
}

func TestBackupService_RunRollbackFailure(t *testing.T) {
	ctx := context.Background()
	mStore := new(storeMocks.MockStorage)
	f := newBackupFixture(t, mStore)
	f.repo.On("FindByName", ctx, "survival", mock.Anything).Return(nil, sql.ErrNoRows)
	mStore.On("Put", ctx, "backups/survival/3-7-2024_9-5-2.zip", mock.Anything, mock.MatchedBy(func(o storage.PutObjectOptions) bool {
		return o.ContentType == "application/zip" && o.Size > 0
	})).Return(func(ctx context.Context, key string, r io.Reader, opt storage.PutObjectOptions) storage.ObjectInfo {
		return storage.ObjectInfo{Key: key, Size: opt.Size}
	}, nil)
	f.repo.On("Create", ctx, mock.Anything).Return(nil, errors.New("db fail"))
	mStore.On("Delete", ctx, "backups/survival/3-7-2024_9-5-2.zip").Return(errors.New("delete fail"))

	_, err := f.svc.Run(ctx, "survival")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rollback delete failed: delete fail")
	mStore.AssertExpectations(t)
}

func TestBackupService_StartRejectsConcurrentJobs(t *testing.T) {
	ctx := context.Background()
	f := newBackupFixture(t, nil)
	svc := f.svc.(*backupService)
	require.True(t, svc.acquire("survival"))
	svc.setPercent("survival", 42)

	started, err := f.svc.Start(ctx, "survival")
	require.NoError(t, err)
	assert.False(t, started)

	progress, err := f.svc.Progress("survival")
	require.NoError(t, err)
	assert.Equal(t, model.BackupProgress{InProgress: true, Percent: 42}, progress)

	_, err = f.svc.Run(ctx, "survival")
	assert.ErrorIs(t, err, ErrBackupInProgress)

	_, err = f.svc.Start(ctx, "ghost")
	assert.ErrorIs(t, err, ErrServerNotFound)
}

func TestBackupService_StartRunsInBackground(t *testing.T) {
	ctx := context.Background()
	f := newBackupFixture(t, nil)
	f.repo.On("FindByName", mock.Anything, "survival", mock.Anything).Return(nil, sql.ErrNoRows)
	f.repo.On("Create", mock.Anything, mock.Anything).Return(&model.Backup{Name: "3-7-2024_9-5-2"}, nil)

	started, err := f.svc.Start(ctx, "survival")
	require.NoError(t, err)
	assert.True(t, started)

	f.svc.(*backupService).wg.Wait()
	progress, _ := f.svc.Progress("survival")
	assert.False(t, progress.InProgress)
	assert.Equal(t, "Backup 3-7-2024_9-5-2 finished.", f.notifier.last().message)
}

func TestBackupService_Restore(t *testing.T) {
	ctx := context.Background()
	f := newBackupFixture(t, nil)
	f.repo.On("FindByName", ctx, "survival", "3-7-2024_9-5-2").Return(nil, sql.ErrNoRows).Once()
	var stored *model.Backup
	f.repo.On("Create", ctx, mock.Anything).Run(func(args mock.Arguments) {
		stored = args.Get(1).(*model.Backup)
	}).Return(&model.Backup{}, nil)

	_, err := f.svc.Run(ctx, "survival")
	require.NoError(t, err)
	require.NotNil(t, stored)

	// mutate the world after the backup
	require.NoError(t, os.WriteFile(filepath.Join(f.srvDir, "world", "level.dat"), []byte("griefed"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(f.srvDir, "junk.txt"), []byte("x"), 0o644))

	f.repo.On("FindByName", ctx, "survival", stored.Name).Return(stored, nil)
	require.NoError(t, f.svc.Restore(ctx, "survival", stored.Name))

	data, err := os.ReadFile(filepath.Join(f.srvDir, "world", "level.dat"))
	require.NoError(t, err)
	assert.Equal(t, "level", string(data))
	assert.NoFileExists(t, filepath.Join(f.srvDir, "junk.txt"))
}

func TestBackupService_RestoreRequiresStoppedServer(t *testing.T) {
	ctx := context.Background()
	f := newBackupFixture(t, nil)
	inst, _ := f.manager.Get("survival")

	require.NoError(t, inst.BeginCreating())
	assert.ErrorIs(t, f.svc.Restore(ctx, "survival", "x"), ErrServerCreating)
	inst.FinishCreating()

	require.NoError(t, inst.BeginRestoring())
	assert.ErrorIs(t, f.svc.Restore(ctx, "survival", "x"), ErrServerRestoring)
	inst.FinishRestoring()

	assert.Equal(t, model.StateStopped, inst.State())
}

// stateOnGet records the instance state while the archive is being fetched.
type stateOnGet struct {
	storage.Storage
	inst *minecraft.Instance
	seen model.ServerState
}

func (s *stateOnGet) Get(ctx context.Context, key string) (io.ReadCloser, storage.ObjectInfo, error) {
	s.seen = s.inst.State()
	return s.Storage.Get(ctx, key)
}

func TestBackupService_RestoreHoldsServer(t *testing.T) {
	ctx := context.Background()
	local, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)
	wrapped := &stateOnGet{Storage: local}
	f := newBackupFixture(t, wrapped)
	inst, _ := f.manager.Get("survival")
	wrapped.inst = inst

	f.repo.On("FindByName", ctx, "survival", "3-7-2024_9-5-2").Return(nil, sql.ErrNoRows).Once()
	var stored *model.Backup
	f.repo.On("Create", ctx, mock.Anything).Run(func(args mock.Arguments) {
		stored = args.Get(1).(*model.Backup)
	}).Return(&model.Backup{}, nil)
	_, err = f.svc.Run(ctx, "survival")
	require.NoError(t, err)

	f.repo.On("FindByName", ctx, "survival", stored.Name).Return(stored, nil)
	require.NoError(t, f.svc.Restore(ctx, "survival", stored.Name))

	assert.Equal(t, model.StateRestoring, wrapped.seen)
	assert.Equal(t, model.StateStopped, inst.State())
}

func TestBackupService_RestoreRejectsUnsafeArchive(t *testing.T) {
	ctx := context.Background()
	f := newBackupFixture(t, nil)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("world/level.dat")
	require.NoError(t, err)
	_, err = w.Write([]byte("replaced"))
	require.NoError(t, err)
	_, err = zw.Create("../escape.txt")
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	_, err = f.store.Put(ctx, "backups/survival/evil.zip", bytes.NewReader(buf.Bytes()), storage.PutObjectOptions{Size: int64(buf.Len())})
	require.NoError(t, err)
	evil := model.Backup{ID: "b9", Server: "survival", Name: "evil", ObjectKey: "backups/survival/evil.zip"}
	f.repo.On("FindByName", ctx, "survival", "evil").Return(&evil, nil)

	err = f.svc.Restore(ctx, "survival", "evil")
	assert.ErrorIs(t, err, archive.ErrUnsafePath)

	data, err := os.ReadFile(filepath.Join(f.srvDir, "world", "level.dat"))
	require.NoError(t, err)
	assert.Equal(t, "level", string(data))
	assert.FileExists(t, filepath.Join(f.srvDir, "server.properties"))
	assert.NoFileExists(t, filepath.Join(filepath.Dir(f.srvDir), "escape.txt"))

	inst, _ := f.manager.Get("survival")
	assert.Equal(t, model.StateStopped, inst.State())
}

func TestBackupService_RunIgnoresHostBackupFolder(t *testing.T) {
	ctx := context.Background()
	f := newBackupFixture(t, nil)
	f.manager.Register(model.Server{Name: "legacy", Directory: f.srvDir, BackupFolder: "/srv/mc/backups/legacy"})
	f.repo.On("FindByName", ctx, "legacy", "3-7-2024_9-5-2").Return(nil, sql.ErrNoRows)
	f.repo.On("Create", ctx, mock.MatchedBy(func(b *model.Backup) bool {
		return b.ObjectKey == "backups/legacy/3-7-2024_9-5-2.zip"
	})).Return(&model.Backup{Name: "3-7-2024_9-5-2"}, nil)

	_, err := f.svc.Run(ctx, "legacy")
	require.NoError(t, err)

	rc, _, err := f.store.Get(ctx, "backups/legacy/3-7-2024_9-5-2.zip")
	require.NoError(t, err)
	rc.Close()
	f.repo.AssertExpectations(t)
}

func TestKeyPrefix(t *testing.T) {
	cases := map[string]string{
		"":                         "backups/survival",
		"/srv/mc/backups":          "backups/survival",
		`C:\mc\backups`:            "backups/survival",
		"../outside":               "backups/survival",
		"..":                       "backups/survival",
		"archive/survival/":        "archive/survival",
		"archive/./survival//x/..": "archive/survival",
	}
	for folder, want := range cases {
		got := keyPrefix(model.Server{Name: "survival", BackupFolder: folder})
		assert.Equal(t, want, got, folder)
	}
}

func TestBackupName(t *testing.T) {
	assert.Equal(t, "3-7-2024_9-5-2", BackupName(time.Date(2024, 3, 7, 9, 5, 2, 0, time.UTC)))
	assert.Equal(t, "12-31-2023_23-59-0", BackupName(time.Date(2023, 12, 31, 23, 59, 0, 0, time.UTC)))
	assert.Equal(t, "1-1-2025_0-0-0", BackupName(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestBackupService_PercentStaysInRange(t *testing.T) {
	f := newBackupFixture(t, nil)
	svc := f.svc.(*backupService)
	require.True(t, svc.acquire("survival"))

	svc.setPercent("survival", 130)
	progress, err := f.svc.Progress("survival")
	require.NoError(t, err)
	assert.Equal(t, 100, progress.Percent)

	svc.setPercent("survival", -5)
	progress, _ = f.svc.Progress("survival")
	assert.Equal(t, 0, progress.Percent)
}

func TestBackupService_ListOpenDelete(t *testing.T) {
	ctx := context.Background()
	f := newBackupFixture(t, nil)
	_, err := f.store.Put(ctx, "backups/survival/old.zip", strings.NewReader("zip"), storage.PutObjectOptions{Size: 3})
	require.NoError(t, err)
	old := model.Backup{ID: "b1", Server: "survival", Name: "old", ObjectKey: "backups/survival/old.zip"}

	f.repo.On("ListByServer", ctx, "survival", repository.PageQuery{}).
		Return(&repository.PageResult[model.Backup]{Items: []model.Backup{old}, Total: 1}, nil)
	f.repo.On("FindByName", ctx, "survival", "old").Return(&old, nil)
	f.repo.On("FindByName", ctx, "survival", "missing").Return(nil, sql.ErrNoRows)
	f.repo.On("Delete", ctx, "b1").Return(nil)

	list, err := f.svc.List(ctx, "survival")
	require.NoError(t, err)
	assert.Equal(t, []model.Backup{old}, list)

	rc, b, err := f.svc.Open(ctx, "survival", "old")
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "zip", string(data))
	assert.Equal(t, "old", b.Name)

	_, err = f.svc.DownloadURL(ctx, "survival", "old")
	assert.ErrorIs(t, err, storage.ErrPresignUnsupported)

	_, _, err = f.svc.Open(ctx, "survival", "missing")
	assert.ErrorIs(t, err, ErrBackupNotFound)

	require.NoError(t, f.svc.Delete(ctx, "survival", "old"))
	_, _, err = f.store.Get(ctx, "backups/survival/old.zip")
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)

	require.NoError(t, f.svc.DeleteAll(ctx, "survival"))
	f.repo.AssertExpectations(t)
}
