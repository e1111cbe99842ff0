package artifacts

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"solvency/internal/domain"
)

// FileStore keeps one directory per epoch under Root, one file per artifact.
type FileStore struct {
	Root string
}

func NewFileStore(root string) (*FileStore, error) {
	if root == "" {
		return nil, errors.New("artifact directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact directory: %w", err)
	}
	return &FileStore{Root: root}, nil
}

func (s *FileStore) Put(_ context.Context, epochID, name string, data []byte) error {
	if err := validateKey(epochID, name); err != nil {
		return err
	}
	dir := filepath.Join(s.Root, epochID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create epoch directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+name+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(dir, name))
}

func (s *FileStore) Get(_ context.Context, epochID, name string) ([]byte, error) {
	if err := validateKey(epochID, name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.Root, epochID, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s/%s: %w", epochID, name, domain.ErrNotFound)
	}
	return data, err
}

func (s *FileStore) Exists(_ context.Context, epochID, name string) (bool, error) {
	if err := validateKey(epochID, name); err != nil {
		return false, err
	}
	_, err := os.Stat(filepath.Join(s.Root, epochID, name))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

func (s *FileStore) List(_ context.Context, epochID string) ([]string, error) {
	if err := domain.ValidateEpochID(epochID); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(filepath.Join(s.Root, epochID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("epoch %s: %w", epochID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() && e.Name()[0] != '.' {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *FileStore) Epochs(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.Root)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() && domain.ValidateEpochID(e.Name()) == nil {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}
