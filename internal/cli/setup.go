package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"protonmc/internal/model"
	"protonmc/internal/repository"
	"protonmc/internal/service"
	"protonmc/internal/storage"
)

var (
	setupImport  string
	setupType    string
	setupVersion string
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Prepare the environment, database and admin account",
	Long: `Prepares a ProtonMC installation:
  - writes a random SECRET_KEY to the env file when it has none
  - creates or migrates the database schema
  - creates the "admin" account (full permissions) when there are no users

Servers from a legacy servers.json can be registered with --import.`,
	Args: cobra.NoArgs,
	RunE: runSetup,
}

func init() {
	setupCmd.Flags().StringVar(&setupImport, "import", "", "legacy servers.json to register")
	setupCmd.Flags().StringVar(&setupType, "type", string(model.ServerTypeSpigot), "server type recorded for imported servers")
	setupCmd.Flags().StringVar(&setupVersion, "game-version", "", "game version recorded for imported servers")
	rootCmd.AddCommand(setupCmd)
}

func runSetup(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	generated, err := ensureSecretKey(envFile)
	if err != nil {
		return err
	}
	if generated {
		fmt.Fprintf(out, "Generated SECRET_KEY in %s\n", envFile)
	} else {
		fmt.Fprintf(out, "SECRET_KEY already set in %s\n", envFile)
	}

	b, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer b.Close()
	fmt.Fprintln(out, "Database is up to date")

	n, err := b.Users.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count users: %w", err)
	}
	if n == 0 {
		password, err := promptPassword(service.DefaultAdminUser)
		if err != nil {
			return err
		}
		created, err := b.Auth.EnsureAdmin(ctx, password)
		if err != nil {
			return fmt.Errorf("failed to create admin: %w", err)
		}
		if created {
			fmt.Fprintf(out, "Created user %q with full permissions\n", service.DefaultAdminUser)
		}
	} else {
		fmt.Fprintf(out, "%d user(s) already exist\n", n)
	}

	if setupImport == "" {
		return nil
	}
	typ, ok := model.ParseServerType(setupType)
	if !ok {
		return fmt.Errorf("unknown server type %q", setupType)
	}
	imported, err := importLegacyServers(ctx, legacyImport{
		Servers: b.Servers,
		Backups: b.Backups,
		Store:   b.Store,
		Type:    typ,
		Version: setupVersion,
		Out:     out,
	}, setupImport)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Imported %d server(s) from %s\n", imported, setupImport)
	return nil
}

type legacyServer struct {
	ServerFolder string `json:"server_folder"`
	BackupFolder string `json:"backup_folder"`
}

// legacyImport registers servers from a servers.json file. When Backups and
// Store are set, the zip archives found in each backup_folder are uploaded
// under the server's storage prefix and recorded as backups.
type legacyImport struct {
	Servers repository.ServerRepository
	Backups repository.BackupRepository
	Store   storage.Storage
	Type    model.ServerType
	Version string
	Out     io.Writer
}

// importLegacyServers registers every entry of a servers.json file that is
// not already known. Existing rows are left untouched.
func importLegacyServers(ctx context.Context, imp legacyImport, file string) (int, error) {
	raw, err := os.ReadFile(file)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", file, err)
	}
	var entries map[string]legacyServer
	if err := json.Unmarshal(raw, &entries); err != nil {
		return 0, fmt.Errorf("failed to decode %s: %w", file, err)
	}

	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	out := imp.Out
	imported := 0
	for _, name := range names {
		entry := entries[name]
		if strings.TrimSpace(entry.ServerFolder) == "" {
			fmt.Fprintf(out, "  skipped %q: no server_folder\n", name)
			continue
		}

		_, err := imp.Servers.FindByName(ctx, name)
		switch {
		case err == nil:
			fmt.Fprintf(out, "  skipped %q: already registered\n", name)
			continue
		case !errors.Is(err, sql.ErrNoRows):
			return imported, err
		}

		// backup_folder is a host path; archives live under the storage prefix
		srv := &model.Server{
			Name:         name,
			Type:         imp.Type,
			GameVersion:  imp.Version,
			Directory:    filepath.Clean(entry.ServerFolder),
			BackupFolder: service.BackupPrefix(name),
			CreatedAt:    time.Now().UTC(),
		}
		if err := imp.Servers.Create(ctx, srv); err != nil {
			return imported, fmt.Errorf("failed to import %q: %w", name, err)
		}
		fmt.Fprintf(out, "  imported %q\n", name)
		imported++

		if entry.BackupFolder == "" || imp.Backups == nil || imp.Store == nil {
			continue
		}
		n, err := importLegacyBackups(ctx, imp, srv, entry.BackupFolder)
		if err != nil {
			return imported, fmt.Errorf("failed to import backups of %q: %w", name, err)
		}
		if n > 0 {
			fmt.Fprintf(out, "  imported %d backup(s) of %q\n", n, name)
		}
	}
	return imported, nil
}

// importLegacyBackups uploads every *.zip in dir. The backup name is the
// file name without the extension and its date is the file's mtime.
func importLegacyBackups(ctx context.Context, imp legacyImport, srv *model.Server, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(imp.Out, "  no backup folder at %s\n", dir)
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	n := 0
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".zip") {
			continue
		}
		name := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		if _, err := imp.Backups.FindByName(ctx, srv.Name, name); err == nil {
			continue
		} else if !errors.Is(err, sql.ErrNoRows) {
			return n, err
		}
		info, err := e.Info()
		if err != nil {
			return n, err
		}
		if err := uploadLegacyBackup(ctx, imp, srv, filepath.Join(dir, e.Name()), name, info); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func uploadLegacyBackup(ctx context.Context, imp legacyImport, srv *model.Server, file, name string, info fs.FileInfo) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	key := path.Join(srv.BackupFolder, name+".zip")
	obj, err := imp.Store.Put(ctx, key, f, storage.PutObjectOptions{
		Size:        info.Size(),
		ContentType: "application/zip",
		Metadata:    map[string]string{"server": srv.Name},
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", file, err)
	}
	_, err = imp.Backups.Create(ctx, &model.Backup{
		ID:        uuid.New().String(),
		Server:    srv.Name,
		Name:      name,
		ObjectKey: obj.Key,
		Size:      obj.Size,
		CreatedAt: info.ModTime().UTC(),
	})
	if err != nil {
		if delErr := imp.Store.Delete(ctx, key); delErr != nil {
			return fmt.Errorf("record %s: %v; rollback delete failed: %v", name, err, delErr)
		}
		return fmt.Errorf("record %s: %w", name, err)
	}
	return nil
}
