// Package session keeps a best-effort copy of the current transcript so it
// survives a restart.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/fakeyudi/minutes/internal/storage"
)

// Key is the storage key of the snapshot.
const Key = "webSpeechApp_currentText"

// MaxAge is how long a snapshot stays restorable.
const MaxAge = 24 * time.Hour

const snapshotVersion = 1

// ErrNoSnapshot is returned by Restore when nothing usable is stored.
var ErrNoSnapshot = errors.New("no saved transcript")

// SnapshotStore persists the current transcript.
type SnapshotStore interface {
	Save(s *Snapshot) error
	Restore() (*Snapshot, error) // returns ErrNoSnapshot if none is usable
	Delete() error
}

// kvStore is the concrete SnapshotStore over a storage.Store.
type kvStore struct {
	kv    storage.Store
	clock clock.Clock
}

// NewSnapshotStore returns a SnapshotStore backed by kv. A nil clock uses the
// wall clock.
func NewSnapshotStore(kv storage.Store, clk clock.Clock) SnapshotStore {
	if clk == nil {
		clk = clock.New()
	}
	return &kvStore{kv: kv, clock: clk}
}

// Save stores s stamped with the current time. Blank transcripts are not saved.
func (k *kvStore) Save(s *Snapshot) error {
	if strings.TrimSpace(s.Original) == "" {
		return nil
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	now := k.clock.Now()
	s.Timestamp = now.UnixMilli()
	if err := storage.SaveRecord(k.kv, Key, snapshotVersion, s, now); err != nil {
		return fmt.Errorf("failed to persist transcript snapshot: %w", err)
	}
	return nil
}

// Restore returns the stored snapshot when it is younger than MaxAge and not
// blank. Anything else is removed and reported as ErrNoSnapshot.
func (k *kvStore) Restore() (*Snapshot, error) {
	var s Snapshot
	err := storage.LoadRecord(k.kv, Key, snapshotVersion, &s, func(from int, data json.RawMessage) (json.RawMessage, error) {
		// Unversioned snapshots share the current shape.
		return data, nil
	})
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		if derr := k.Delete(); derr != nil {
			return nil, derr
		}
		return nil, ErrNoSnapshot
	}

	age := k.clock.Now().Sub(time.UnixMilli(s.Timestamp))
	if age >= MaxAge || strings.TrimSpace(s.Original) == "" {
		if err := k.Delete(); err != nil {
			return nil, err
		}
		return nil, ErrNoSnapshot
	}
	return &s, nil
}

// Delete removes the snapshot.
func (k *kvStore) Delete() error {
	if err := k.kv.Remove(Key); err != nil {
		return fmt.Errorf("failed to delete transcript snapshot: %w", err)
	}
	return nil
}
