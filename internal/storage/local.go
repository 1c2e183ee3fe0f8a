package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/xid"
)

// compile-time check that *Local implements Store
var _ Store = (*Local)(nil)

// Local stores uploads as plain files in one directory.
//
// Generated names use xid — 20 URL-safe characters, sortable by creation
// time — plus the original file's extension so content types survive a
// round trip through the filesystem.
type Local struct {
	dir string
}

// NewLocal creates the upload directory if needed and returns the store.
func NewLocal(dir string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: creating upload dir %s: %w", dir, err)
	}
	return &Local{dir: dir}, nil
}

// Save writes the content to a new file and returns its public reference.
func (l *Local) Save(_ context.Context, originalName, _ string, _ int64, r io.Reader) (string, error) {
	name := xid.New().String() + safeExt(originalName)

	f, err := os.Create(filepath.Join(l.dir, name))
	if err != nil {
		return "", fmt.Errorf("storage: creating upload file: %w", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("storage: writing upload: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("storage: closing upload: %w", err)
	}

	return URLPrefix + name, nil
}

// Open returns the file content and a content type guessed from the
// extension.
func (l *Local) Open(_ context.Context, name string) (io.ReadCloser, string, error) {
	if name != filepath.Base(name) {
		return nil, "", fmt.Errorf("storage: invalid object name %q", name)
	}

	f, err := os.Open(filepath.Join(l.dir, name))
	if err != nil {
		return nil, "", fmt.Errorf("storage: opening %s: %w", name, err)
	}

	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return f, contentType, nil
}

// Remove deletes the file behind a reference.
func (l *Local) Remove(_ context.Context, ref string) error {
	name, err := NameFromRef(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(l.dir, name)); err != nil {
		return fmt.Errorf("storage: removing %s: %w", name, err)
	}
	return nil
}

// safeExt returns a lowercased extension safe to append to a generated
// name. Anything odd (no extension, absurd length, traversal characters)
// degrades to no extension rather than an error — the upload still works,
// it just serves as octet-stream.
func safeExt(originalName string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(originalName)))
	if len(ext) > 10 || strings.ContainsAny(ext, "/\\") {
		return ""
	}
	return ext
}
