package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// localStorage keeps objects as files under a root directory; keys map to relative paths.
type localStorage struct {
	root string
}

// NewLocal creates a filesystem-backed Storage rooted at dir.
func NewLocal(dir string) (Storage, error) {
	if dir == "" {
		return nil, fmt.Errorf("local storage dir is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve storage dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &localStorage{root: abs}, nil
}

func (l *localStorage) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if key == "" || filepath.IsAbs(clean) || clean == "." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || clean == ".." {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(l.root, clean), nil
}

// Put writes to a temp file in the target directory and renames it into place.
func (l *localStorage) Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error) {
	dst, err := l.path(key)
	if err != nil {
		return ObjectInfo{}, err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return ObjectInfo{}, err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return ObjectInfo{}, err
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, contextReader{ctx: ctx, r: r})
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return ObjectInfo{}, err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return ObjectInfo{}, err
	}
	return ObjectInfo{
		Key:          key,
		Size:         n,
		ContentType:  opt.ContentType,
		LastModified: time.Now(),
		Metadata:     opt.Metadata,
	}, nil
}

// Get opens the file behind key.
func (l *localStorage) Get(_ context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	p, err := l.path(key)
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ObjectInfo{}, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return nil, ObjectInfo{}, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, ObjectInfo{}, err
	}
	return f, ObjectInfo{
		Key:          key,
		Size:         st.Size(),
		ContentType:  "application/zip",
		LastModified: st.ModTime(),
	}, nil
}

// Delete removes the file behind key.
func (l *localStorage) Delete(_ context.Context, key string) error {
	p, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return err
	}
	return nil
}

// PresignGet is not available on local disk; callers stream through Get instead.
func (l *localStorage) PresignGet(context.Context, string, time.Duration) (string, error) {
	return "", ErrPresignUnsupported
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
