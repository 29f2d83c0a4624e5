// Package prefs implements the device-local preference store: the blocked
// user set, the mute flag, and the last-used nickname. Values are persisted
// on every mutation and read once at startup. Nothing here is ever sent to
// the server; blocking in particular is per-device.
package prefs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
)

const keyPrefix = "velora."

// Storage is a simple durable key->string store. The default implementation
// is file-backed; tests substitute an in-memory map.
type Storage interface {
	Get(key string) (string, bool)
	Set(key, value string) error
}

// Store holds local session preferences on top of a Storage backend.
type Store struct {
	mu      sync.Mutex
	storage Storage

	blocked  map[string]struct{}
	muted    bool
	nickname string
}

// New reads persisted preferences from storage once and returns the store.
func New(storage Storage) *Store {
	s := &Store{
		storage: storage,
		blocked: make(map[string]struct{}),
	}

	if raw, ok := storage.Get(keyPrefix + "blocked"); ok && raw != "" {
		var names []string
		if err := json.Unmarshal([]byte(raw), &names); err == nil {
			for _, name := range names {
				s.blocked[name] = struct{}{}
			}
		}
	}
	if raw, ok := storage.Get(keyPrefix + "muted"); ok {
		s.muted, _ = strconv.ParseBool(raw)
	}
	if raw, ok := storage.Get(keyPrefix + "nickname"); ok {
		s.nickname = raw
	}

	return s
}

// Blocked reports whether the nickname is on the block list.
func (s *Store) Blocked(nickname string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.blocked[nickname]
	return ok
}

// BlockedUsers returns the block list in stable order.
func (s *Store) BlockedUsers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.blocked))
	for name := range s.blocked {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Block adds a nickname to the block list and persists it.
func (s *Store) Block(nickname string) error {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return fmt.Errorf("nickname must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocked[nickname] = struct{}{}
	return s.persistBlockedLocked()
}

// Unblock removes a nickname from the block list and persists it.
func (s *Store) Unblock(nickname string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blocked, nickname)
	return s.persistBlockedLocked()
}

// Muted reports the mute flag.
func (s *Store) Muted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}

// SetMuted updates and persists the mute flag.
func (s *Store) SetMuted(muted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.muted = muted
	return s.storage.Set(keyPrefix+"muted", strconv.FormatBool(muted))
}

// Nickname returns the last persisted nickname, the returning-session
// shortcut. It is a convenience cache, not a credential; callers must
// re-validate it against current account status.
func (s *Store) Nickname() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nickname
}

// SetNickname updates and persists the nickname shortcut.
func (s *Store) SetNickname(nickname string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nickname = nickname
	return s.storage.Set(keyPrefix+"nickname", nickname)
}

func (s *Store) persistBlockedLocked() error {
	names := make([]string, 0, len(s.blocked))
	for name := range s.blocked {
		names = append(names, name)
	}
	sort.Strings(names)

	payload, err := json.Marshal(names)
	if err != nil {
		return err
	}
	return s.storage.Set(keyPrefix+"blocked", string(payload))
}

// FileStorage persists keys as a single JSON document on disk. The process is
// the only writer, so a plain rewrite on every Set is sufficient.
type FileStorage struct {
	mu   sync.Mutex
	path string
	data map[string]string
}

// NewFileStorage loads (or initialises) the JSON document at path.
func NewFileStorage(path string) (*FileStorage, error) {
	storage := &FileStorage{path: path, data: make(map[string]string)}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return storage, nil
		}
		return nil, fmt.Errorf("read preferences: %w", err)
	}

	if err := json.Unmarshal(raw, &storage.data); err != nil {
		return nil, fmt.Errorf("parse preferences: %w", err)
	}

	return storage, nil
}

// Get returns the stored value for key.
func (f *FileStorage) Get(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	value, ok := f.data[key]
	return value, ok
}

// Set writes the value and flushes the document to disk.
func (f *FileStorage) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.data[key] = value
	payload, err := json.MarshalIndent(f.data, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(f.path, payload, 0o644)
}

// MemoryStorage is an in-memory Storage used by tests.
type MemoryStorage struct {
	mu   sync.Mutex
	data map[string]string
}

// NewMemoryStorage returns an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{data: make(map[string]string)}
}

// Get returns the stored value for key.
func (m *MemoryStorage) Get(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.data[key]
	return value, ok
}

// Set stores the value for key.
func (m *MemoryStorage) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}
