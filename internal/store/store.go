// Package store provides the agent's durable state storage.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrNotFound is returned when a key has never been written.
var ErrNotFound = errors.New("store: key not found")

// Store persists the agent's single state blob and its alarm time. The state
// lives under the key "state"; the alarm is a separate durable field so it
// survives independently of state writes.
type Store interface {
	LoadState(v any) error
	SaveState(v any) error
	LoadAlarm() (time.Time, error)
	SaveAlarm(t time.Time) error
	DeleteAlarm() error
}

// FileStore is a file-backed Store. One JSON file per key under dataDir.
type FileStore struct {
	mu      sync.Mutex
	logger  *zap.Logger
	dataDir string
}

// NewFileStore creates dataDir if needed and returns a FileStore.
func NewFileStore(logger *zap.Logger, dataDir string) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &FileStore{
		logger:  logger.Named("store"),
		dataDir: dataDir,
	}, nil
}

func (fs *FileStore) path(key string) string {
	return filepath.Join(fs.dataDir, key+".json")
}

func (fs *FileStore) read(key string, v any) error {
	data, err := os.ReadFile(fs.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to read %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return nil
}

// write is atomic: marshal, write a temp file, rename over the target.
func (fs *FileStore) write(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	tmp := fs.path(key) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := os.Rename(tmp, fs.path(key)); err != nil {
		return fmt.Errorf("failed to commit %s: %w", key, err)
	}
	return nil
}

// LoadState reads the state blob into v.
func (fs *FileStore) LoadState(v any) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.read("state", v)
}

// SaveState writes the state blob.
func (fs *FileStore) SaveState(v any) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.write("state", v)
}

// LoadAlarm reads the scheduled alarm time.
func (fs *FileStore) LoadAlarm() (time.Time, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	var t time.Time
	if err := fs.read("alarm", &t); err != nil {
		return time.Time{}, err
	}
	return t, nil
}

// SaveAlarm writes the scheduled alarm time.
func (fs *FileStore) SaveAlarm(t time.Time) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.write("alarm", t)
}

// DeleteAlarm clears the scheduled alarm.
func (fs *FileStore) DeleteAlarm() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	err := os.Remove(fs.path("alarm"))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete alarm: %w", err)
	}
	return nil
}

// MemStore is an in-memory Store for tests.
type MemStore struct {
	mu    sync.Mutex
	state []byte
	alarm *time.Time
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{}
}

// LoadState reads the state blob into v.
func (ms *MemStore) LoadState(v any) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.state == nil {
		return ErrNotFound
	}
	return json.Unmarshal(ms.state, v)
}

// SaveState writes the state blob.
func (ms *MemStore) SaveState(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.state = data
	return nil
}

// LoadAlarm reads the scheduled alarm time.
func (ms *MemStore) LoadAlarm() (time.Time, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.alarm == nil {
		return time.Time{}, ErrNotFound
	}
	return *ms.alarm, nil
}

// SaveAlarm writes the scheduled alarm time.
func (ms *MemStore) SaveAlarm(t time.Time) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.alarm = &t
	return nil
}

// DeleteAlarm clears the scheduled alarm.
func (ms *MemStore) DeleteAlarm() error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.alarm = nil
	return nil
}
