package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/starford/folio/internal/apperr"
)

const (
	tmpPrefix = ".folio-tmp-"
	// touchStep is the minimum mtime advance per touch, so two touches inside
	// one clock tick still change the signal.
	touchStep = time.Microsecond
)

// FS implements Provider backed by the local file system.
type FS struct {
	root string // absolute path to the store directory
}

// NewFS creates a new FS provider rooted at the given directory, creating it
// when missing.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	if err := ensureDir(abs); err != nil {
		return nil, err
	}
	return &FS{root: abs}, nil
}

// ensureDir creates dir unless it already exists as a directory.
func ensureDir(dir string) error {
	info, err := os.Stat(dir)
	switch {
	case err == nil && info.IsDir():
		return nil
	case err == nil:
		return fmt.Errorf("storage: %s: %w", dir, apperr.ErrDirectoryConflict)
	case !errors.Is(err, fs.ErrNotExist):
		return &apperr.IOError{Op: "stat", Path: dir, Err: err}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		if errors.Is(err, syscall.ENOTDIR) {
			return fmt.Errorf("storage: %s: %w", dir, apperr.ErrDirectoryConflict)
		}
		return &apperr.IOError{Op: "mkdir", Path: dir, Err: err}
	}
	return nil
}

// escapeName maps a tag or id to exactly one file name. Escaped names never
// start with a dot, which keeps them apart from temp files.
func escapeName(s string) (string, error) {
	if s == "" || s == "." || s == ".." {
		return "", fmt.Errorf("storage: %q: %w", s, apperr.ErrInvalidID)
	}
	name := url.PathEscape(s)
	if strings.HasPrefix(name, ".") {
		name = "%2E" + name[1:]
	}
	return name, nil
}

// Root returns the absolute store root.
func (f *FS) Root() string { return f.root }

// Dir returns the directory for typeTag.
func (f *FS) Dir(typeTag string) (string, error) {
	name, err := escapeName(typeTag)
	if err != nil {
		return "", err
	}
	return filepath.Join(f.root, name), nil
}

func (f *FS) filePath(typeTag, id string) (string, error) {
	dir, err := f.Dir(typeTag)
	if err != nil {
		return "", err
	}
	name, err := escapeName(id)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// EnsureDir creates the directory for typeTag.
func (f *FS) EnsureDir(typeTag string) error {
	dir, err := f.Dir(typeTag)
	if err != nil {
		return err
	}
	return ensureDir(dir)
}

// Write atomically writes content: tmp file → fsync → rename.
func (f *FS) Write(typeTag, id string, content []byte) error {
	abs, err := f.filePath(typeTag, id)
	if err != nil {
		return err
	}
	tmpName, err := writeTemp(filepath.Dir(abs), content)
	if err != nil {
		return err
	}
	if err := os.Rename(tmpName, abs); err != nil {
		_ = os.Remove(tmpName)
		return &apperr.IOError{Op: "rename", Path: abs, Err: err}
	}
	return nil
}

// Create is Write for a record that must not exist yet: the synced tmp file
// is hard-linked into place, which fails with apperr.ErrAlreadyExists when a
// record file is already present.
func (f *FS) Create(typeTag, id string, content []byte) error {
	abs, err := f.filePath(typeTag, id)
	if err != nil {
		return err
	}
	tmpName, err := writeTemp(filepath.Dir(abs), content)
	if err != nil {
		return err
	}
	defer os.Remove(tmpName)
	if err := os.Link(tmpName, abs); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("storage: create %s/%s: %w", typeTag, id, apperr.ErrAlreadyExists)
		}
		return &apperr.IOError{Op: "link", Path: abs, Err: err}
	}
	return nil
}

// writeTemp writes content to a synced temp file in dir and returns its name.
func writeTemp(dir string, content []byte) (string, error) {
	if err := ensureDir(dir); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(dir, tmpPrefix+"*")
	if err != nil {
		return "", &apperr.IOError{Op: "create temp", Path: dir, Err: err}
	}
	tmpName := tmp.Name()

	// Clean up on any failure path.
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return "", &apperr.IOError{Op: "write", Path: tmpName, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		return "", &apperr.IOError{Op: "fsync", Path: tmpName, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return "", &apperr.IOError{Op: "close", Path: tmpName, Err: err}
	}
	success = true
	return tmpName, nil
}

// Read returns the raw bytes of a record file.
func (f *FS) Read(typeTag, id string) ([]byte, error) {
	abs, err := f.filePath(typeTag, id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("storage: read %s/%s: %w", typeTag, id, apperr.ErrNotFound)
		}
		return nil, &apperr.IOError{Op: "read", Path: abs, Err: err}
	}
	return data, nil
}

// Delete removes a record file.
func (f *FS) Delete(typeTag, id string) error {
	abs, err := f.filePath(typeTag, id)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &apperr.IOError{Op: "delete", Path: abs, Err: err}
	}
	return nil
}

// List reads every record file of typeTag. A missing directory lists as empty.
// Files that vanish between the listing and the read are skipped.
func (f *FS) List(typeTag string) ([]Entry, error) {
	dir, err := f.Dir(typeTag)
	if err != nil {
		return nil, err
	}
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, &apperr.IOError{Op: "list", Path: dir, Err: err}
	}
	out := make([]Entry, 0, len(dirEntries))
	for _, d := range dirEntries {
		if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			continue
		}
		id, err := url.PathUnescape(d.Name())
		if err != nil {
			continue
		}
		p := filepath.Join(dir, d.Name())
		data, err := os.ReadFile(p)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, &apperr.IOError{Op: "read", Path: p, Err: err}
		}
		var mod time.Time
		if info, err := d.Info(); err == nil {
			mod = info.ModTime()
		}
		out = append(out, Entry{ID: id, Data: data, ModTime: mod})
	}
	return out, nil
}

// Types lists the type directories under the root in name order.
func (f *FS) Types() ([]string, error) {
	dirEntries, err := os.ReadDir(f.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, &apperr.IOError{Op: "list", Path: f.root, Err: err}
	}
	var tags []string
	for _, d := range dirEntries {
		if !d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			continue
		}
		tag, err := url.PathUnescape(d.Name())
		if err != nil {
			continue
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

// Touch advances the modification time of the type directory and marks it as
// a commit (see Committed). A directory that does not exist has nothing to
// signal.
func (f *FS) Touch(typeTag string) error {
	dir, err := f.Dir(typeTag)
	if err != nil {
		return err
	}
	if err := Stamp(dir); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// RemoveDir deletes the type directory and every record in it. The directory
// is first moved aside so a watcher recreating the path never races the
// recursive delete.
func (f *FS) RemoveDir(typeTag string) error {
	dir, err := f.Dir(typeTag)
	if err != nil {
		return err
	}
	return discard(dir, f.root)
}

// Reset deletes and recreates the store root.
func (f *FS) Reset() error {
	if err := discard(f.root, filepath.Dir(f.root)); err != nil {
		return err
	}
	return ensureDir(f.root)
}

// discard renames path into a fresh temp directory under parent and removes
// it from there. A missing path is not an error.
func discard(path, parent string) error {
	if _, err := os.Lstat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	trash, err := os.MkdirTemp(parent, tmpPrefix+"trash-*")
	if err != nil {
		return &apperr.IOError{Op: "remove", Path: path, Err: err}
	}
	defer func() { _ = os.RemoveAll(trash) }()

	if err := os.Rename(path, filepath.Join(trash, "old")); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return &apperr.IOError{Op: "remove", Path: path, Err: err}
	}
	return nil
}
