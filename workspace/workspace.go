// Package workspace provides the scratch directory a single video edit works
// in.  Every invocation gets its own directory, and Remove deletes it on all
// exit paths.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	apperrors "github.com/Skryldev/media-editor/errors"
)

// Dir is a per-invocation temporary directory.
type Dir struct {
	root        string
	permissions os.FileMode
}

// New creates a fresh directory under parent (os.TempDir() when empty).
// The caller must defer Remove.
func New(ctx context.Context, parent string) (*Dir, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryStorage, "workspace.new", err)
	}
	if parent == "" {
		parent = os.TempDir()
	}
	root := filepath.Join(parent, "media-edit-"+uuid.NewString())
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryStorage, "workspace.mkdir", err)
	}
	return &Dir{root: root, permissions: 0o600}, nil
}

// Root returns the directory path.
func (d *Dir) Root() string { return d.root }

// Path resolves name inside the workspace.  Names that would escape it are
// rejected.
func (d *Dir) Path(name string) (string, error) {
	p := filepath.Join(d.root, filepath.Clean("/"+name))
	if p != d.root && !strings.HasPrefix(p, d.root+string(filepath.Separator)) {
		return "", apperrors.New(apperrors.CategoryStorage, "workspace.path", fmt.Errorf("name %q escapes workspace", name))
	}
	return p, nil
}

// Mkdir creates a subdirectory and returns its path.
func (d *Dir) Mkdir(name string) (string, error) {
	p, err := d.Path(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(p, 0o700); err != nil {
		return "", apperrors.Wrap(apperrors.CategoryStorage, "workspace.mkdir", err)
	}
	return p, nil
}

// Put writes r to name and returns the file path.
func (d *Dir) Put(ctx context.Context, name string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", apperrors.Wrap(apperrors.CategoryStorage, "workspace.put", err)
	}
	p, err := d.Path(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		return "", apperrors.Wrap(apperrors.CategoryStorage, "workspace.put.mkdir", err)
	}

	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, d.permissions)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CategoryStorage, "workspace.put.open", err)
	}
	if err := copyAndClose(f, r); err != nil {
		return "", err
	}
	return p, nil
}

// copyAndClose drains r into w.  A failed Close is an error too.
func copyAndClose(w io.WriteCloser, r io.Reader) error {
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return apperrors.Wrap(apperrors.CategoryStorage, "workspace.put.copy", err)
	}
	if err := w.Close(); err != nil {
		return apperrors.Wrap(apperrors.CategoryStorage, "workspace.put.close", err)
	}
	return nil
}

// ReadFile returns the contents of name.
func (d *Dir) ReadFile(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryStorage, "workspace.read", err)
	}
	p, err := d.Path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperrors.New(apperrors.CategoryStorage, "workspace.read", fmt.Errorf("file not found: %s", name))
		}
		return nil, apperrors.Wrap(apperrors.CategoryStorage, "workspace.read", err)
	}
	return data, nil
}

// Glob lists files in the workspace matching pattern, sorted by name.
func (d *Dir) Glob(pattern string) ([]string, error) {
	p, err := d.Path(pattern)
	if err != nil {
		return nil, err
	}
	matches, err := filepath.Glob(p)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryStorage, "workspace.glob", err)
	}
	return matches, nil
}

// Remove deletes the workspace and everything in it.  It is safe to call
// more than once.
func (d *Dir) Remove() error {
	if err := os.RemoveAll(d.root); err != nil && !errors.Is(err, os.ErrNotExist) {
		return apperrors.Wrap(apperrors.CategoryStorage, "workspace.remove", err)
	}
	return nil
}
