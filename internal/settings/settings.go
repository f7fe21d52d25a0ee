// Package settings persists the client's local settings in a dotenv file.
package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/joho/godotenv"
)

// KeyAPIKey is the only setting: the upstream API credential.
const KeyAPIKey = "OPENAI_API_KEY"

// Store reads and writes the settings file. Values are stored as entered,
// without validation.
type Store struct {
	mu   sync.Mutex
	path string
}

// New returns a Store backed by path.
func New(path string) *Store {
	return &Store{path: path}
}

// DefaultPath returns the settings file location under the user config dir.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	return filepath.Join(dir, "newyears25", "settings.env"), nil
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// Load returns all settings. A missing file yields an empty map.
func (s *Store) Load() (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() (map[string]string, error) {
	values, err := godotenv.Read(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read settings %s: %w", s.path, err)
	}
	return values, nil
}

// Get returns the value for key, or "" if unset.
func (s *Store) Get(key string) (string, error) {
	values, err := s.Load()
	if err != nil {
		return "", err
	}
	return values[key], nil
}

// Set stores value under key, keeping the other settings.
func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		return err
	}
	values[key] = value

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	if err := godotenv.Write(values, s.path); err != nil {
		return fmt.Errorf("write settings %s: %w", s.path, err)
	}
	if err := os.Chmod(s.path, 0o600); err != nil {
		return fmt.Errorf("restrict settings file: %w", err)
	}
	return nil
}

// APIKey returns the stored API key.
func (s *Store) APIKey() (string, error) { return s.Get(KeyAPIKey) }

// SetAPIKey stores the API key.
func (s *Store) SetAPIKey(value string) error { return s.Set(KeyAPIKey, value) }
