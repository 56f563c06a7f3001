package local

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/CaioWing/harbor-console/internal/domain"
	"github.com/CaioWing/harbor-console/internal/storage"
)

const tempPrefix = ".staging-"

// LocalStore keeps staged uploads as flat files in one directory.
type LocalStore struct {
	basePath string
}

func New(basePath string) (*LocalStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	return &LocalStore{basePath: basePath}, nil
}

func (s *LocalStore) path(name string) (string, error) {
	clean := filepath.Base(name)
	if name == "" || clean != name || clean == "." || clean == ".." || strings.HasPrefix(clean, ".") {
		return "", fmt.Errorf("staged file name %q: %w", name, domain.ErrInvalidInput)
	}
	return filepath.Join(s.basePath, clean), nil
}

// Save writes reader under name, replacing any previous file atomically.
func (s *LocalStore) Save(name string, reader io.Reader) (storage.StagedFile, error) {
	path, err := s.path(name)
	if err != nil {
		return storage.StagedFile{}, err
	}

	tmp, err := os.CreateTemp(s.basePath, tempPrefix+"*")
	if err != nil {
		return storage.StagedFile{}, fmt.Errorf("create file: %w", err)
	}

	n, err := io.Copy(tmp, reader)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return storage.StagedFile{}, fmt.Errorf("write file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return storage.StagedFile{}, fmt.Errorf("commit file: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return storage.StagedFile{}, fmt.Errorf("stat file: %w", err)
	}
	return storage.StagedFile{Name: name, Size: n, ModTime: info.ModTime()}, nil
}

type blob struct {
	*os.File
	name string
	size int64
}

func (b *blob) Name() string { return b.name }
func (b *blob) Size() int64  { return b.size }

func (s *LocalStore) Open(name string) (storage.Blob, error) {
	path, err := s.path(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("staged file %s: %w", name, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("open file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat file: %w", err)
	}
	return &blob{File: f, name: name, size: info.Size()}, nil
}

// List returns staged files ordered by name. In-progress writes are skipped.
func (s *LocalStore) List() ([]storage.StagedFile, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, fmt.Errorf("read staging dir: %w", err)
	}

	files := []storage.StagedFile{}
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, storage.StagedFile{Name: e.Name(), Size: info.Size(), ModTime: info.ModTime()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

func (s *LocalStore) Delete(name string) error {
	path, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}
