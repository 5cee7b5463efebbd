package blobstore

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/trusted-programming/tree-grepper/internal/application/common/slogger"
)

const (
	blobDirPerm  = 0o755
	blobFilePerm = 0o644
)

// FileStore keeps one file per key below a root directory. Key segments map to
// directories.
type FileStore struct {
	root string
}

// NewFileStore creates the root directory if needed.
func NewFileStore(root string) (*FileStore, error) {
	if root == "" {
		return nil, storeError(opOpen, "", errors.New("file store root is empty"))
	}
	if err := os.MkdirAll(root, blobDirPerm); err != nil {
		return nil, storeError(opOpen, root, err)
	}
	return &FileStore{root: root}, nil
}

// Root returns the store directory.
func (s *FileStore) Root() string {
	return s.root
}

func (s *FileStore) path(key string) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(key)), nil
}

// Get reads the value stored under key.
func (s *FileStore) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path, err := s.path(key)
	if err != nil {
		return "", storeError(opGet, key, err)
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", notFound(key)
	}
	if err != nil {
		return "", storeError(opGet, key, err)
	}
	return string(data), nil
}

// Put writes value through a temporary file renamed into place.
func (s *FileStore) Put(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.path(key)
	if err != nil {
		return storeError(opPut, key, err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, blobDirPerm); err != nil {
		return storeError(opPut, key, err)
	}

	tmp, err := os.CreateTemp(dir, ".blob-*")
	if err != nil {
		return storeError(opPut, key, err)
	}
	if _, err := tmp.WriteString(value); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return storeError(opPut, key, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return storeError(opPut, key, err)
	}
	if err := os.Chmod(tmp.Name(), blobFilePerm); err != nil {
		_ = os.Remove(tmp.Name())
		return storeError(opPut, key, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return storeError(opPut, key, err)
	}

	slogger.Debug(ctx, "blob written", slogger.Fields{"backend": "file", "key": key, "bytes": len(value)})
	return nil
}

// Delete removes key. A missing key is not an error.
func (s *FileStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.path(key)
	if err != nil {
		return storeError(opDelete, key, err)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return storeError(opDelete, key, err)
	}
	return nil
}

// Keys walks the root and returns every key starting with prefix, sorted.
func (s *FileStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".blob-") {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, storeError(opKeys, prefix, err)
	}
	sort.Strings(keys)
	return keys, nil
}

// Close is a no-op.
func (s *FileStore) Close() error {
	return nil
}
