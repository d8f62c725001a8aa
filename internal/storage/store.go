// Package storage provides the key-value persistence used for history,
// API keys, rate-limit counters and transcript snapshots.
package storage

import (
	"errors"
	"os"
	"path/filepath"
)

// ErrNotFound is returned by Get when the key has no value.
var ErrNotFound = errors.New("key not found")

// Store is a string key-value store. Values are opaque JSON blobs.
type Store interface {
	Get(key string) (string, error) // returns ErrNotFound if absent
	Set(key, value string) error
	Remove(key string) error
	Keys() ([]string, error)
	Close() error
}

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Open returns the Store for backend rooted at dir.
func Open(backend, dir string) (Store, error) {
	switch backend {
	case BackendSQLite:
		return OpenSQLite(filepath.Join(dir, "minutes.sqlite"))
	case BackendFile, "":
		return NewFileStore(filepath.Join(dir, "store"))
	default:
		return nil, errors.New("unknown storage backend: " + backend)
	}
}

// DataDir returns the minutes-specific XDG data directory.
// Path: $XDG_DATA_HOME/minutes or ~/.local/share/minutes
func DataDir() (string, error) {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, "minutes"), nil
}

// Size returns the number of bytes held by the given keys, counting both key
// and value lengths. Missing keys count as zero.
func Size(s Store, keys ...string) int {
	total := 0
	for _, k := range keys {
		v, err := s.Get(k)
		if err != nil {
			continue
		}
		total += len(k) + len(v)
	}
	return total
}
