package history

import (
	"math"
	"strconv"
	"unicode/utf8"

	"github.com/fakeyudi/minutes/internal/storage"
)

// Stats summarizes the stored list.
type Stats struct {
	TotalItems      int    `json:"totalItems"`
	MaxItems        int    `json:"maxItems"`
	RetentionDays   int    `json:"retentionDays"`
	TotalCharacters int    `json:"totalCharacters"`
	AverageLength   int    `json:"averageLength"`
	Oldest          string `json:"oldestEntry,omitempty"`
	Newest          string `json:"newestEntry,omitempty"`
	StorageBytes    int    `json:"storageBytes"`
	StorageSize     string `json:"storageSize"`
}

// Stats computes the current statistics.
func (s *Store) Stats() Stats {
	entries := s.Entries()
	st := Stats{
		TotalItems:    len(entries),
		MaxItems:      s.maxItems,
		RetentionDays: s.retentionDays,
	}
	for _, e := range entries {
		st.TotalCharacters += utf8.RuneCountInString(e.Text)
	}
	if len(entries) > 0 {
		st.AverageLength = int(math.Round(float64(st.TotalCharacters) / float64(len(entries))))
		st.Oldest = entries[0].Date
		st.Newest = entries[len(entries)-1].Date
	}
	st.StorageBytes = storage.Size(s.kv, Key, MetadataKey)
	st.StorageSize = FormatBytes(st.StorageBytes)
	return st
}

// FormatBytes renders n with a binary unit and at most two decimals.
func FormatBytes(n int) string {
	if n <= 0 {
		return "0 Bytes"
	}
	units := []string{"Bytes", "KB", "MB", "GB"}
	i := int(math.Floor(math.Log(float64(n)) / math.Log(1024)))
	if i >= len(units) {
		i = len(units) - 1
	}
	v := float64(n) / math.Pow(1024, float64(i))
	v = math.Round(v*100) / 100
	return strconv.FormatFloat(v, 'f', -1, 64) + " " + units[i]
}
