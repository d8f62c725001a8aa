// Package timeline holds the ordered, speaker-attributed utterances of a
// conversation.
package timeline

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// PaletteSize is the number of distinct speaker colors.
const PaletteSize = 8

// Utterance is one attributed unit of speech.
type Utterance struct {
	ID   string `json:"-"`
	Name string `json:"name"`
	Text string `json:"text"`
}

// Document is the exchange shape of a timeline.
type Document struct {
	Utterances []Utterance `json:"utterances"`
}

// Timeline is an editable list of utterances.
type Timeline struct {
	mu         sync.Mutex
	items      []Utterance
	colorIndex map[string]int
}

// New returns an empty Timeline.
func New() *Timeline {
	return &Timeline{colorIndex: make(map[string]int)}
}

// Add appends an utterance. Both name and text blank is ignored.
func (t *Timeline) Add(name, text string) bool {
	name, text = strings.TrimSpace(name), strings.TrimSpace(text)
	if name == "" && text == "" {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = append(t.items, Utterance{ID: uuid.NewString(), Name: name, Text: text})
	t.colorLocked(name)
	return true
}

// Edit replaces the utterance at i. It returns false when i is out of range.
func (t *Timeline) Edit(i int, name, text string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i < 0 || i >= len(t.items) {
		return false
	}
	t.items[i].Name = strings.TrimSpace(name)
	t.items[i].Text = strings.TrimSpace(text)
	t.colorLocked(t.items[i].Name)
	return true
}

// Delete removes the utterance at i. It returns false when i is out of range.
func (t *Timeline) Delete(i int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i < 0 || i >= len(t.items) {
		return false
	}
	t.items = append(t.items[:i:i], t.items[i+1:]...)
	return true
}

// Replace discards the current utterances and loads doc, dropping each
// speaker's leading self-introduction from the text.
func (t *Timeline) Replace(doc Document) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = t.items[:0]
	t.colorIndex = make(map[string]int)
	for _, u := range doc.Utterances {
		name := strings.TrimSpace(u.Name)
		t.items = append(t.items, Utterance{
			ID:   uuid.NewString(),
			Name: name,
			Text: StripSelfIntro(name, u.Text),
		})
		t.colorLocked(name)
	}
}

// Clear removes every utterance.
func (t *Timeline) Clear() {
	t.Replace(Document{})
}

// Len returns the number of utterances.
func (t *Timeline) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.items)
}

// Utterances returns a copy of the list.
func (t *Timeline) Utterances() []Utterance {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Utterance(nil), t.items...)
}

// Document returns the exchange form of the timeline.
func (t *Timeline) Document() Document {
	items := t.Utterances()
	if items == nil {
		items = []Utterance{}
	}
	return Document{Utterances: items}
}

// ExportJSON renders the timeline with 2-space indentation.
func (t *Timeline) ExportJSON() ([]byte, error) {
	return json.MarshalIndent(t.Document(), "", "  ")
}

// ColorIndex returns the palette slot of name, assigning the next slot the
// first time a name is seen.
func (t *Timeline) ColorIndex(name string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.colorLocked(strings.TrimSpace(name))
}

func (t *Timeline) colorLocked(name string) int {
	if idx, ok := t.colorIndex[name]; ok {
		return idx
	}
	idx := len(t.colorIndex) % PaletteSize
	t.colorIndex[name] = idx
	return idx
}
