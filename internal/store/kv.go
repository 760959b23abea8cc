package store

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"syscall"
)

// ErrCapacity marks a write the underlying medium rejected for lack of
// space.
var ErrCapacity = errors.New("storage capacity exceeded")

// KV is the minimal key/value contract the adapter persists through.
type KV interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
}

// FileKV stores each key as a JSON document in a directory.
type FileKV struct {
	dir string
}

func NewFileKV(dir string) (*FileKV, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileKV{dir: dir}, nil
}

func (f *FileKV) path(key string) string {
	return filepath.Join(f.dir, key+".json")
}

func (f *FileKV) Get(key string) (string, bool, error) {
	data, err := os.ReadFile(f.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(data), true, nil
}

func (f *FileKV) Set(key, value string) error {
	err := os.WriteFile(f.path(key), []byte(value), 0o644)
	if errors.Is(err, syscall.ENOSPC) {
		return ErrCapacity
	}
	return err
}

func (f *FileKV) Delete(key string) error {
	err := os.Remove(f.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// MemKV is an in-memory KV for tests, with optional fault injection.
type MemKV struct {
	mu     sync.Mutex
	data   map[string]string
	SetErr error
	GetErr error
}

func NewMemKV() *MemKV {
	return &MemKV{data: make(map[string]string)}
}

func (m *MemKV) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return "", false, m.GetErr
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemKV) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetErr != nil {
		return m.SetErr
	}
	m.data[key] = value
	return nil
}

func (m *MemKV) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}
