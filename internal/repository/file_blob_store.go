package repository

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileBlobStore keeps model artifacts as flat files under one directory.
type FileBlobStore struct {
	dir string
}

func NewFileBlobStore(dir string) (*FileBlobStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create models dir: %w", err)
	}
	return &FileBlobStore{dir: dir}, nil
}

// Put writes the blob atomically: a rename swaps the new content in, so a
// concurrent Get never sees a half-written file.
func (s *FileBlobStore) Put(name string, data []byte) error {
	tmp := filepath.Join(s.dir, name+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write blob: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(s.dir, name)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("commit blob: %w", err)
	}
	return nil
}

func (s *FileBlobStore) Get(name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return nil, fmt.Errorf("read blob: %w", err)
	}
	return data, nil
}

func (s *FileBlobStore) Exists(name string) bool {
	_, err := os.Stat(filepath.Join(s.dir, name))
	return err == nil
}
