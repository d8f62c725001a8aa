// Package history keeps the persisted, bounded list of saved transcripts.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/fakeyudi/minutes/internal/storage"
)

// Storage keys.
const (
	Key         = "webSpeechApp_history"
	MetadataKey = "webSpeechApp_history_metadata"
)

const (
	// SchemaVersion is the record version written for the entry list.
	SchemaVersion = 1
	// DefaultMaxItems caps the list when no limit is configured.
	DefaultMaxItems = 500
	// RetentionDisabled keeps entries regardless of age.
	RetentionDisabled = -1
	// DateLayout renders timestamps as ja-JP locale strings, 24-hour clock.
	DateLayout = "2006/1/2 15:04:05"
)

// Entry is one saved transcript.
type Entry struct {
	Text      string `json:"text" validate:"required"`
	Hiragana  string `json:"hiragana,omitempty"`
	Date      string `json:"date"`
	Timestamp int64  `json:"timestamp" validate:"gte=0"` // unix millis
}

// Metadata describes the stored list.
type Metadata struct {
	LastSaved     string `json:"lastSaved"`
	RetentionDays int    `json:"retentionDays"`
	MaxItems      int    `json:"maxItems"`
	Version       string `json:"version"`
}

// DisplayEntry pairs an entry with its chronological index.
type DisplayEntry struct {
	Index int
	Entry Entry
}

// Options configures a Store.
type Options struct {
	MaxItems      int // <= 0 means DefaultMaxItems
	RetentionDays int // RetentionDisabled or 0 keeps everything
	Clock         clock.Clock
	Logger        *zap.Logger
}

// Store is the in-memory list mirrored to a storage key. Every mutation
// rewrites the whole list.
type Store struct {
	mu      sync.Mutex
	kv      storage.Store
	entries []Entry

	maxItems      int
	retentionDays int
	clock         clock.Clock
	logger        *zap.Logger
}

// New loads the list from kv. Unreadable or future-version records are
// ignored and the store starts empty.
func New(kv storage.Store, opts Options) (*Store, error) {
	if opts.MaxItems <= 0 {
		opts.MaxItems = DefaultMaxItems
	}
	if opts.RetentionDays == 0 {
		opts.RetentionDays = RetentionDisabled
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	s := &Store{
		kv:            kv,
		maxItems:      opts.MaxItems,
		retentionDays: opts.RetentionDays,
		clock:         opts.Clock,
		logger:        opts.Logger,
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// migrate accepts the bare array written before records were versioned.
func migrate(from int, data json.RawMessage) (json.RawMessage, error) {
	if from == 0 {
		return data, nil
	}
	return nil, fmt.Errorf("no migration from version %d", from)
}

// Reload replaces the in-memory list with what is stored, as after a change
// made by another process.
func (s *Store) Reload() error {
	var entries []Entry
	err := storage.LoadRecord(s.kv, Key, SchemaVersion, &entries, migrate)
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrNotFound):
		entries = nil
	case errors.Is(err, storage.ErrUnsupportedVersion), errors.Is(err, storage.ErrCorrupt):
		s.logger.Warn("ignoring unreadable history record", zap.Error(err))
		entries = nil
	default:
		return fmt.Errorf("loading history: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = entries
	if s.pruneLocked() {
		return s.saveLocked()
	}
	return nil
}

// pruneLocked applies retention and the item cap. It reports whether
// anything was dropped.
func (s *Store) pruneLocked() bool {
	before := len(s.entries)
	if s.retentionDays > 0 {
		cutoff := s.clock.Now().Add(-time.Duration(s.retentionDays) * 24 * time.Hour).UnixMilli()
		kept := s.entries[:0]
		for _, e := range s.entries {
			if e.Timestamp >= cutoff {
				kept = append(kept, e)
			}
		}
		s.entries = kept
	}
	if over := len(s.entries) - s.maxItems; over > 0 {
		s.entries = append([]Entry(nil), s.entries[over:]...)
	}
	return len(s.entries) != before
}

func (s *Store) saveLocked() error {
	if err := storage.SaveRecord(s.kv, Key, SchemaVersion, s.entries, s.clock.Now()); err != nil {
		return fmt.Errorf("saving history: %w", err)
	}
	meta := Metadata{
		LastSaved:     s.clock.Now().Format(time.RFC3339),
		RetentionDays: s.retentionDays,
		MaxItems:      s.maxItems,
		Version:       fmt.Sprint(SchemaVersion),
	}
	if err := storage.SaveRecord(s.kv, MetadataKey, SchemaVersion, meta, s.clock.Now()); err != nil {
		return fmt.Errorf("saving history metadata: %w", err)
	}
	return nil
}

// Append records text with an optional reading. Blank text is ignored and
// returns (nil, nil). The oldest entry is evicted when the cap is exceeded.
func (s *Store) Append(text, hiragana string) (*Entry, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	now := s.clock.Now()
	e := Entry{
		Text:      text,
		Hiragana:  hiragana,
		Date:      now.Format(DateLayout),
		Timestamp: now.UnixMilli(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	s.pruneLocked()
	if err := s.saveLocked(); err != nil {
		return nil, err
	}
	s.logger.Info("history entry added", zap.Int("length", len([]rune(text))), zap.Int("total", len(s.entries)))
	return &e, nil
}

// Remove deletes the entry at the chronological index. Out-of-range indexes
// return (nil, nil).
func (s *Store) Remove(index int) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.entries) {
		return nil, nil
	}
	removed := s.entries[index]
	s.entries = append(s.entries[:index:index], s.entries[index+1:]...)
	if err := s.saveLocked(); err != nil {
		return nil, err
	}
	return &removed, nil
}

// Get returns the entry at the chronological index.
func (s *Store) Get(index int) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.entries) {
		return Entry{}, false
	}
	return s.entries[index], true
}

// Entries returns a copy of the list in append order.
func (s *Store) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Entry(nil), s.entries...)
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// MaxItems returns the configured cap.
func (s *Store) MaxItems() int { return s.maxItems }

// Search returns entries whose text contains query, ignoring case. A blank
// query returns everything.
func (s *Store) Search(query string) []Entry {
	entries := s.Entries()
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return entries
	}
	var out []Entry
	for _, e := range entries {
		if strings.Contains(strings.ToLower(e.Text), q) {
			out = append(out, e)
		}
	}
	return out
}

// Display returns the entries matching query newest first, each carrying its
// chronological index for Remove and Get.
func (s *Store) Display(query string) []DisplayEntry {
	entries := s.Entries()
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]DisplayEntry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		if q != "" && !strings.Contains(strings.ToLower(entries[i].Text), q) {
			continue
		}
		out = append(out, DisplayEntry{Index: i, Entry: entries[i]})
	}
	return out
}

// Clear removes every entry.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	return s.saveLocked()
}

// Export renders the list in format ("json", "csv" or "txt").
func (s *Store) Export(format string) ([]byte, error) {
	r, err := RendererFor(format)
	if err != nil {
		return nil, err
	}
	return r.Render(s.Entries())
}

// Import replaces the whole list with data. Only JSON arrays of entries are
// accepted; anything else leaves the store untouched. The imported list is
// kept as is; the cap and retention apply from the next load or append.
func (s *Store) Import(data []byte, format string) error {
	p, err := ParserFor(format)
	if err != nil {
		return err
	}
	entries, err := p.Parse(data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.entries
	s.entries = entries
	if err := s.saveLocked(); err != nil {
		s.entries = prev
		return err
	}
	s.logger.Info("history imported", zap.Int("total", len(s.entries)))
	return nil
}

// DownloadName is the file name used when saving one entry as text.
func (s *Store) DownloadName(index int) string {
	return fmt.Sprintf("speech-history-%s-%d.txt", s.clock.Now().Format("2006-01-02"), index+1)
}

// DownloadText is the file body used when saving one entry as text.
func DownloadText(e Entry) string {
	var sb strings.Builder
	sb.WriteString(e.Date + "\n\n" + e.Text + "\n")
	if e.Hiragana != "" {
		sb.WriteString("\n" + e.Hiragana + "\n")
	}
	return sb.String()
}
