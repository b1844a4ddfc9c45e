package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// File stores one JSON document per client under a directory. Writes go
// through a temp file and rename so a crash never leaves a half-written slot.
type File struct {
	dir string
	mu  sync.Mutex
}

// NewFile creates a file-backed provider rooted at dir
func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("kvstore: create dir %s: %w", dir, err)
	}
	return &File{dir: dir}, nil
}

// ForClient returns the slot for clientID
func (f *File) ForClient(clientID string) Store {
	return &fileStore{parent: f, path: filepath.Join(f.dir, clientKey(clientID)+".json")}
}

type fileStore struct {
	parent *File
	path   string
}

func (s *fileStore) load() (map[string]string, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("kvstore: read %s: %w", s.path, err)
	}

	doc := map[string]string{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		// an unreadable document behaves like an empty slot
		return map[string]string{}, nil
	}
	return doc, nil
}

func (s *fileStore) save(doc map[string]string) error {
	if len(doc) == 0 {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("kvstore: remove %s: %w", s.path, err)
		}
		return nil
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("kvstore: encode: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("kvstore: create temp: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(raw); err != nil {
		return fmt.Errorf("kvstore: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("kvstore: fsync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("kvstore: close temp: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("kvstore: rename: %w", err)
	}
	return nil
}

func (s *fileStore) Get(_ context.Context, key string) (string, bool, error) {
	s.parent.mu.Lock()
	defer s.parent.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return "", false, err
	}
	v, ok := doc[key]
	return v, ok, nil
}

func (s *fileStore) Set(_ context.Context, key, value string) error {
	s.parent.mu.Lock()
	defer s.parent.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	doc[key] = value
	return s.save(doc)
}

func (s *fileStore) Delete(_ context.Context, key string) error {
	s.parent.mu.Lock()
	defer s.parent.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := doc[key]; !ok {
		return nil
	}
	delete(doc, key)
	return s.save(doc)
}
