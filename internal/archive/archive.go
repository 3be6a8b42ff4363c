// Package archive zips server folders and restores them.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
)

// ErrUnsafePath is returned for archive entries that would land outside the destination.
var ErrUnsafePath = errors.New("archive entry escapes destination")

// Progress is called after each file with the bytes read so far and the total.
type Progress func(done, total int64)

// SkipFunc is called for files that could not be read; the file is left out of the archive.
type SkipFunc func(path string, err error)

// Options tune ZipDir.
type Options struct {
	Progress Progress
	OnSkip   SkipFunc
	// Exclude reports whether a slash-separated relative path should be left out.
	Exclude func(rel string) bool
}

// DirSize sums the sizes of regular files under root.
func DirSize(root string) (int64, error) {
	var total int64
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.Type().IsRegular() {
			if info, err := d.Info(); err == nil {
				total += info.Size()
			}
		}
		return nil
	})
	return total, err
}

// ZipDir writes every regular file under root to w as a deflate zip.
func ZipDir(ctx context.Context, root string, w io.Writer, opts Options) error {
	total, err := DirSize(root)
	if err != nil {
		return err
	}

	zw := zip.NewWriter(w)
	var done int64
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if opts.OnSkip != nil {
				opts.OnSkip(path, err)
			}
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if opts.Exclude != nil && opts.Exclude(rel) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			_, err := zw.Create(rel + "/")
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}

		n, err := addFile(zw, path, rel)
		if err != nil {
			if isWriteErr(err) {
				return err
			}
			if opts.OnSkip != nil {
				opts.OnSkip(path, err)
			}
		}
		done += n
		if opts.Progress != nil {
			opts.Progress(done, total)
		}
		return nil
	})
	if walkErr != nil {
		zw.Close()
		return walkErr
	}
	return zw.Close()
}

type writeErr struct{ err error }

func (e writeErr) Error() string { return e.err.Error() }
func (e writeErr) Unwrap() error { return e.err }

func isWriteErr(err error) bool {
	var we writeErr
	return errors.As(err, &we)
}

func addFile(zw *zip.Writer, path, rel string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return 0, err
	}
	hdr.Name = rel
	hdr.Method = zip.Deflate

	dst, err := zw.CreateHeader(hdr)
	if err != nil {
		return 0, writeErr{err}
	}
	src := &readTracker{r: f}
	n, err := io.Copy(dst, src)
	if err != nil && src.err == nil {
		return n, writeErr{err}
	}
	return n, err
}

// readTracker remembers read failures so they can be told apart from write failures.
type readTracker struct {
	r   io.Reader
	err error
}

func (t *readTracker) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && err != io.EOF {
		t.err = err
	}
	return n, err
}

// Extract unpacks the zip at src into dest. Every entry name is checked
// before the first file is written.
func Extract(ctx context.Context, src, dest string) error {
	zr, err := zip.OpenReader(src)
	if err != nil {
		return err
	}
	defer zr.Close()

	root := filepath.Clean(dest)
	targets := make([]string, len(zr.File))
	for i, f := range zr.File {
		if targets[i], err = safeTarget(root, f.Name); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(root, 0o755); err != nil {
		return err
	}
	for i, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(targets[i], 0o755); err != nil {
				return err
			}
			continue
		}
		if err := extractFile(f, targets[i]); err != nil {
			return fmt.Errorf("extract %s: %w", f.Name, err)
		}
	}
	return nil
}

// Replace extracts src into a staging folder next to dest and swaps it in.
// dest keeps its previous contents when extraction fails for any reason.
func Replace(ctx context.Context, src, dest string) error {
	root := filepath.Clean(dest)
	parent := filepath.Dir(root)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return err
	}
	staging, err := os.MkdirTemp(parent, "."+filepath.Base(root)+"-restore-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(staging)

	if err := Extract(ctx, src, staging); err != nil {
		return err
	}
	if err := os.Chmod(staging, 0o755); err != nil {
		return err
	}

	previous := staging + "-previous"
	hadPrevious := true
	if err := os.Rename(root, previous); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("move current folder aside: %w", err)
		}
		hadPrevious = false
	}
	if err := os.Rename(staging, root); err != nil {
		if hadPrevious {
			_ = os.Rename(previous, root)
		}
		return fmt.Errorf("swap in restored folder: %w", err)
	}
	if hadPrevious {
		if err := os.RemoveAll(previous); err != nil {
			return fmt.Errorf("remove previous folder %s: %w", previous, err)
		}
	}
	return nil
}

func safeTarget(root, name string) (string, error) {
	if strings.Contains(name, `\`) || filepath.IsAbs(name) || strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	target := filepath.Join(root, filepath.FromSlash(name))
	if target != root && !strings.HasPrefix(target, root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	return target, nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	mode := f.Mode().Perm()
	if mode == 0 {
		mode = 0o644
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
