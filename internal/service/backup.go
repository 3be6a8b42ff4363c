package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"protonmc/internal/archive"
	"protonmc/internal/events"
	"protonmc/internal/logging"
	"protonmc/internal/minecraft"
	"protonmc/internal/model"
	"protonmc/internal/repository"
	"protonmc/internal/storage"
)

var (
	ErrBackupInProgress = errors.New("a backup for this server is already in progress")
	ErrBackupNotFound   = errors.New("backup not found")
)

// BackupName renders t as M-D-YYYY_H-M-S without zero padding.
func BackupName(t time.Time) string {
	return fmt.Sprintf("%d-%d-%d_%d-%d-%d", t.Month(), t.Day(), t.Year(), t.Hour(), t.Minute(), t.Second())
}

// BackupRecorder observes finished backup jobs.
type BackupRecorder interface {
	BackupFinished(server string, ok bool)
}

// BackupService archives server folders into object storage.
type BackupService interface {
	// Start launches a backup in the background. It returns false when one is already running.
	Start(ctx context.Context, server string) (bool, error)
	// Run archives the server synchronously.
	Run(ctx context.Context, server string) (*model.Backup, error)
	Progress(server string) (model.BackupProgress, error)
	// List returns the server's backups, newest first.
	List(ctx context.Context, server string) ([]model.Backup, error)
	// Open streams a backup archive. The caller closes the reader.
	Open(ctx context.Context, server, name string) (io.ReadCloser, *model.Backup, error)
	// DownloadURL returns a presigned URL, or storage.ErrPresignUnsupported.
	DownloadURL(ctx context.Context, server, name string) (string, error)
	// Restore replaces the server folder with the archive contents. The server must be stopped.
	Restore(ctx context.Context, server, name string) error
	Delete(ctx context.Context, server, name string) error
	DeleteAll(ctx context.Context, server string) error
}

// BackupDeps groups the collaborators of NewBackupService.
type BackupDeps struct {
	Repo       repository.BackupRepository
	Store      storage.Storage
	Manager    *minecraft.Manager
	Notifier   Notifier
	Recorder   BackupRecorder
	Location   *time.Location
	TempDir    string
	PresignTTL time.Duration
	Logger     *logging.Logger
}

type backupService struct {
	repo       repository.BackupRepository
	store      storage.Storage
	manager    *minecraft.Manager
	notifier   Notifier
	recorder   BackupRecorder
	loc        *time.Location
	tempDir    string
	presignTTL time.Duration
	log        *logging.Logger
	now        func() time.Time

	mu     sync.Mutex
	active map[string]int
	wg     sync.WaitGroup
}

// NewBackupService constructs a BackupService.
func NewBackupService(d BackupDeps) BackupService {
	if d.Logger == nil {
		d.Logger = logging.Nop()
	}
	if d.Location == nil {
		d.Location = time.Local
	}
	if d.PresignTTL <= 0 {
		d.PresignTTL = 15 * time.Minute
	}
	return &backupService{
		repo:       d.Repo,
		store:      d.Store,
		manager:    d.Manager,
		notifier:   d.Notifier,
		recorder:   d.Recorder,
		loc:        d.Location,
		tempDir:    d.TempDir,
		presignTTL: d.PresignTTL,
		log:        d.Logger.With("component", "backups"),
		now:        time.Now,
		active:     map[string]int{},
	}
}

// BackupPrefix is the default storage key prefix for a server's archives.
func BackupPrefix(server string) string {
	return path.Join("backups", server)
}

// keyPrefix returns the configured backup folder when it is a relative
// slash-separated key, and BackupPrefix otherwise.
func keyPrefix(srv model.Server) string {
	folder := srv.BackupFolder
	if folder == "" || path.IsAbs(folder) || strings.Contains(folder, `\`) {
		return BackupPrefix(srv.Name)
	}
	clean := path.Clean(folder)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return BackupPrefix(srv.Name)
	}
	return clean
}

func (s *backupService) server(name string) (model.Server, *minecraft.Instance, error) {
	inst, ok := s.manager.Get(name)
	if !ok {
		return model.Server{}, nil, ErrServerNotFound
	}
	return inst.Server(), inst, nil
}

// acquire marks server busy; the percent starts at 0.
func (s *backupService) acquire(server string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.active[server]; busy {
		return false
	}
	s.active[server] = 0
	return true
}

func (s *backupService) release(server string) {
	s.mu.Lock()
	delete(s.active, server)
	s.mu.Unlock()
}

func (s *backupService) setPercent(server string, pct int) {
	pct = min(max(pct, 0), 100)
	s.mu.Lock()
	if _, ok := s.active[server]; ok {
		s.active[server] = pct
	}
	s.mu.Unlock()
}

func (s *backupService) Start(ctx context.Context, server string) (bool, error) {
	srv, _, err := s.server(server)
	if err != nil {
		return false, err
	}
	if !s.acquire(server) {
		return false, nil
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.release(server)
		// the job outlives the request
		if _, err := s.run(context.WithoutCancel(ctx), srv); err != nil {
			s.log.Error("backup_failed", "server", server, "error", err)
		}
	}()
	return true, nil
}

func (s *backupService) Run(ctx context.Context, server string) (*model.Backup, error) {
	srv, _, err := s.server(server)
	if err != nil {
		return nil, err
	}
	if !s.acquire(server) {
		return nil, ErrBackupInProgress
	}
	defer s.release(server)
	return s.run(ctx, srv)
}

func (s *backupService) run(ctx context.Context, srv model.Server) (*model.Backup, error) {
	b, err := s.archive(ctx, srv)
	if s.recorder != nil {
		s.recorder.BackupFinished(srv.Name, err == nil)
	}
	if err != nil {
		s.notify(srv.Name, fmt.Sprintf("Backup of %s failed: %v", srv.Name, err), events.NotifyError)
		return nil, err
	}
	s.log.Info("backup_done", "server", srv.Name, "backup", b.Name, "size", b.Size)
	s.notify(srv.Name, fmt.Sprintf("Backup %s finished.", b.Name), events.NotifySuccess)
	return b, nil
}

func (s *backupService) notify(server, msg, level string) {
	if s.notifier != nil {
		s.notifier.Notify(server, msg, level)
	}
}

func (s *backupService) uniqueName(ctx context.Context, server string) (string, error) {
	base := BackupName(s.now().In(s.loc))
	name := base
	for i := 1; ; i++ {
		_, err := s.repo.FindByName(ctx, server, name)
		if isNoRows(err) {
			return name, nil
		}
		if err != nil {
			return "", err
		}
		name = fmt.Sprintf("%s-%d", base, i)
	}
}

func (s *backupService) archive(ctx context.Context, srv model.Server) (*model.Backup, error) {
	name, err := s.uniqueName(ctx, srv.Name)
	if err != nil {
		return nil, err
	}
	tmp, err := os.CreateTemp(s.tempDir, "backup-*.zip")
	if err != nil {
		return nil, fmt.Errorf("create temp archive: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	log := s.log.With("server", srv.Name)
	err = archive.ZipDir(ctx, srv.Directory, tmp, archive.Options{
		Progress: func(done, total int64) {
			if total > 0 {
				s.setPercent(srv.Name, int(done*100/total))
			}
		},
		OnSkip: func(p string, err error) {
			log.Warn("backup_file_skipped", "path", p, "error", err)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("zip server folder: %w", err)
	}
	size, err := tmp.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, err
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	key := path.Join(keyPrefix(srv), name+".zip")
	info, err := s.store.Put(ctx, key, tmp, storage.PutObjectOptions{
		Size:        size,
		ContentType: "application/zip",
		Metadata:    map[string]string{"server": srv.Name},
	})
	if err != nil {
		return nil, fmt.Errorf("upload to storage: %w", err)
	}

	b := &model.Backup{
		ID:        uuid.New().String(),
		Server:    srv.Name,
		Name:      name,
		ObjectKey: info.Key,
		Size:      info.Size,
		CreatedAt: s.now().UTC(),
	}
	stored, err := s.repo.Create(ctx, b)
	if err != nil {
		// Rollback: delete the object from storage
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			return nil, fmt.Errorf("db save failed: %v; rollback delete failed: %v", err, delErr)
		}
		return nil, fmt.Errorf("db save failed: %w", err)
	}
	return stored, nil
}

func (s *backupService) Progress(server string) (model.BackupProgress, error) {
	if _, _, err := s.server(server); err != nil {
		return model.BackupProgress{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	pct, busy := s.active[server]
	if !busy {
		return model.BackupProgress{}, nil
	}
	return model.BackupProgress{InProgress: true, Percent: pct}, nil
}

func (s *backupService) List(ctx context.Context, server string) ([]model.Backup, error) {
	if _, _, err := s.server(server); err != nil {
		return nil, err
	}
	res, err := s.repo.ListByServer(ctx, server, repository.PageQuery{})
	if err != nil {
		return nil, err
	}
	return res.Items, nil
}

func (s *backupService) find(ctx context.Context, server, name string) (*model.Backup, error) {
	if _, _, err := s.server(server); err != nil {
		return nil, err
	}
	b, err := s.repo.FindByName(ctx, server, name)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrBackupNotFound
		}
		return nil, err
	}
	return b, nil
}

func (s *backupService) Open(ctx context.Context, server, name string) (io.ReadCloser, *model.Backup, error) {
	b, err := s.find(ctx, server, name)
	if err != nil {
		return nil, nil, err
	}
	rc, _, err := s.store.Get(ctx, b.ObjectKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, nil, ErrBackupNotFound
		}
		return nil, nil, err
	}
	return rc, b, nil
}

func (s *backupService) DownloadURL(ctx context.Context, server, name string) (string, error) {
	b, err := s.find(ctx, server, name)
	if err != nil {
		return "", err
	}
	return s.store.PresignGet(ctx, b.ObjectKey, s.presignTTL)
}

func (s *backupService) Restore(ctx context.Context, server, name string) error {
	srv, inst, err := s.server(server)
	if err != nil {
		return err
	}
	if !s.acquire(server) {
		return ErrBackupInProgress
	}
	defer s.release(server)
	if err := inst.BeginRestoring(); err != nil {
		if err := reserved(inst); err != nil {
			return err
		}
		return ErrServerRunning
	}
	defer inst.FinishRestoring()

	rc, b, err := s.Open(ctx, server, name)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.tempDir, "restore-*.zip")
	if err != nil {
		rc.Close()
		return err
	}
	defer os.Remove(tmp.Name())
	_, err = io.Copy(tmp, rc)
	rc.Close()
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("download backup: %w", err)
	}

	if err := archive.Replace(ctx, tmp.Name(), srv.Directory); err != nil {
		return fmt.Errorf("restore backup: %w", err)
	}
	s.log.Info("backup_restored", "server", server, "backup", b.Name)
	s.notify(server, fmt.Sprintf("Backup %s restored.", b.Name), events.NotifySuccess)
	return nil
}

func (s *backupService) Delete(ctx context.Context, server, name string) error {
	b, err := s.find(ctx, server, name)
	if err != nil {
		return err
	}
	return s.remove(ctx, b)
}

// remove deletes storage first; if this fails the row is kept so the object stays reachable.
func (s *backupService) remove(ctx context.Context, b *model.Backup) error {
	if err := s.store.Delete(ctx, b.ObjectKey); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
		return fmt.Errorf("delete storage: %w", err)
	}
	return s.repo.Delete(ctx, b.ID)
}

func (s *backupService) DeleteAll(ctx context.Context, server string) error {
	res, err := s.repo.ListByServer(ctx, server, repository.PageQuery{})
	if err != nil {
		return err
	}
	for i := range res.Items {
		if err := s.remove(ctx, &res.Items[i]); err != nil {
			return err
		}
	}
	return nil
}
