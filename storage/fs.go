package storage

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/karrick/godirwalk"
)

// Filesystem is the Storage implementation of a local filesystem, rooted at
// a canonicalized absolute path.
type Filesystem struct {
	root string
}

// NewFilesystem creates a Filesystem rooted at given path. The root is
// created if it does not exist yet.
func NewFilesystem(root string) (*Filesystem, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, os.ModePerm); err != nil {
		return nil, err
	}
	canonical, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, err
	}
	return &Filesystem{root: canonical}, nil
}

// Root returns the canonicalized root path.
func (f *Filesystem) Root() string {
	return f.root
}

// List returns the entries directly under given prefix.
func (f *Filesystem) List(ctx context.Context, prefix string) ([]*Entry, error) {
	dir := filepath.Join(f.root, filepath.FromSlash(prefix))

	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	dirents, err := godirwalk.ReadDirents(dir, nil)
	if err != nil {
		return nil, err
	}

	entries := make([]*Entry, 0, len(dirents))
	for _, dirent := range dirents {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entries = append(entries, &Entry{
			Name:  dirent.Name(),
			IsDir: dirent.IsDir(),
		})
	}
	return entries, nil
}

// Put writes body under given key. The bytes go to a temporary file in the
// target directory first and are renamed into place, so readers never
// observe a partial object.
func (f *Filesystem) Put(ctx context.Context, key string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	target := filepath.Join(f.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(target), os.ModePerm); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".tmp*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), target)
}

// Delete removes the object under given key. An absent key is not an error.
func (f *Filesystem) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := os.Remove(filepath.Join(f.root, filepath.FromSlash(key)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
