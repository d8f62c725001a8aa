package tui

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap/zaptest"

	"github.com/fakeyudi/minutes/internal/app"
	"github.com/fakeyudi/minutes/internal/history"
	"github.com/fakeyudi/minutes/internal/recognition"
	"github.com/fakeyudi/minutes/internal/storage"
	"github.com/fakeyudi/minutes/internal/tabs"
)

func newTestModel(t *testing.T) (Model, *app.App) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	kv, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	hist, err := history.New(kv, history.Options{Logger: logger})
	if err != nil {
		t.Fatal(err)
	}
	a, err := app.New(app.Components{
		Session: recognition.New(nil, "ja-JP", logger),
		History: hist,
	}, app.Options{Logger: logger})
	if err != nil {
		t.Fatal(err)
	}
	m := New(context.Background(), a, Options{ExportDir: t.TempDir(), Logger: logger})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return next.(Model), a
}

func press(t *testing.T, m Model, keys ...string) Model {
	t.Helper()
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		case "tab":
			msg = tea.KeyMsg{Type: tea.KeyTab}
		case "down":
			msg = tea.KeyMsg{Type: tea.KeyDown}
		case " ":
			msg = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		next, _ := m.Update(msg)
		m = next.(Model)
	}
	return m
}

func TestTabKeys(t *testing.T) {
	m, a := newTestModel(t)
	m = press(t, m, "2")
	if a.Tabs().Current() != tabs.History {
		t.Fatalf("tab = %s, want history", a.Tabs().Current())
	}
	m = press(t, m, "tab")
	if a.Tabs().Current() != tabs.Limits {
		t.Fatalf("tab = %s, want limits", a.Tabs().Current())
	}
	m = press(t, m, "tab")
	if a.Tabs().Current() != tabs.Main {
		t.Fatalf("tab = %s, want main", a.Tabs().Current())
	}
	if !strings.Contains(m.View(), "Live") {
		t.Error("view should show the tab bar")
	}
}

func TestToggleWithoutRecognizerShowsError(t *testing.T) {
	m, _ := newTestModel(t)
	m = press(t, m, " ")
	if m.statusKind != app.StatusError || m.status != app.ErrRecognitionUnavailable.Error() {
		t.Fatalf("status = %s %q", m.statusKind, m.status)
	}
	if !strings.Contains(m.View(), "no recognizer") {
		t.Error("status bar should report the missing recognizer")
	}
}

func TestHistoryOutputAndDelete(t *testing.T) {
	m, a := newTestModel(t)
	a.History().Append("古い", "")
	a.History().Append("新しい", "")

	m = press(t, m, "2")
	if !strings.Contains(m.View(), "新しい") {
		t.Fatal("history view missing entry")
	}
	// Newest first: the cursor starts on 新しい.
	m = press(t, m, "down", "enter")
	if final, _ := a.Transcript(); final != "古い" {
		t.Fatalf("output = %q, want 古い", final)
	}
	if a.Tabs().Current() != tabs.Main {
		t.Fatal("output should switch to the live tab")
	}

	m = press(t, m, "2", "d")
	if a.History().Len() != 1 {
		t.Fatalf("history len = %d after delete", a.History().Len())
	}
}

func TestSearchInput(t *testing.T) {
	m, a := newTestModel(t)
	a.History().Append("りんご", "")
	a.History().Append("みかん", "")

	m = press(t, m, "2", "/", "み")
	if a.Tabs().Query() != "み" {
		t.Fatalf("query = %q", a.Tabs().Query())
	}
	view := m.View()
	if strings.Contains(view, "りんご") || !strings.Contains(view, "みかん") {
		t.Fatalf("filtered view wrong:\n%s", view)
	}
	m = press(t, m, "esc")
	if m.mode != inputNone {
		t.Fatal("esc should leave search mode")
	}
	if a.Tabs().Query() != "み" {
		t.Fatal("leaving search keeps the filter")
	}
}

func TestTranscriptEventRenders(t *testing.T) {
	m, _ := newTestModel(t)
	next, _ := m.Update(appEventMsg{app.TranscriptEvent{Final: "確定", Interim: "途中", Hiragana: "かくてい"}})
	m = next.(Model)
	view := m.View()
	for _, want := range []string{"確定", "途中", "かくてい"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestSaveWithoutTextReportsError(t *testing.T) {
	m, a := newTestModel(t)
	m = press(t, m, "s")
	if m.statusKind != app.StatusError {
		t.Fatalf("status = %s %q", m.statusKind, m.status)
	}
	if a.History().Len() != 0 {
		t.Fatal("nothing should be saved")
	}
}
