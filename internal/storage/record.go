package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnsupportedVersion is returned when a record was written by a newer
	// schema, or by an older one with no migration path.
	ErrUnsupportedVersion = errors.New("unsupported record version")
	// ErrCorrupt is returned when a stored value cannot be decoded at all.
	ErrCorrupt = errors.New("corrupt record")
)

// Record is the envelope every persisted value is wrapped in.
type Record struct {
	Version int             `json:"version"`
	SavedAt int64           `json:"saved_at"` // unix millis
	Data    json.RawMessage `json:"data"`
}

// MigrateFunc upgrades data stored at an older version to the current shape.
// Values written before the envelope existed are passed with version 0.
type MigrateFunc func(from int, data json.RawMessage) (json.RawMessage, error)

// SaveRecord marshals v and stores it under key wrapped in a Record stamped
// with now.
func SaveRecord(s Store, key string, version int, v any, now time.Time) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	rec, err := json.Marshal(Record{Version: version, SavedAt: now.UnixMilli(), Data: data})
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	return s.Set(key, string(rec))
}

// LoadRecord reads key into v. A record at version decodes directly, an older
// one goes through migrate, a newer one returns ErrUnsupportedVersion.
// Returns ErrNotFound if the key is absent.
func LoadRecord(s Store, key string, version int, v any, migrate MigrateFunc) error {
	raw, err := s.Get(key)
	if err != nil {
		return err
	}

	from, data, err := unwrap([]byte(raw))
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}

	switch {
	case from > version:
		return fmt.Errorf("%s at version %d: %w", key, from, ErrUnsupportedVersion)
	case from < version:
		if migrate == nil {
			return fmt.Errorf("%s at version %d: %w", key, from, ErrUnsupportedVersion)
		}
		data, err = migrate(from, data)
		if err != nil {
			return fmt.Errorf("migrating %s from version %d: %w", key, from, err)
		}
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%s: %w: %v", key, ErrCorrupt, err)
	}
	return nil
}

// unwrap splits a stored value into its version and payload. Anything that is
// valid JSON but not an envelope is a legacy value at version 0.
func unwrap(raw []byte) (int, json.RawMessage, error) {
	if !json.Valid(raw) {
		return 0, nil, ErrCorrupt
	}
	var env struct {
		Version *int            `json:"version"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err == nil && env.Version != nil && env.Data != nil {
		return *env.Version, env.Data, nil
	}
	return 0, raw, nil
}
