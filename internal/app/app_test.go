package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap/zaptest"

	"github.com/fakeyudi/minutes/internal/config"
	"github.com/fakeyudi/minutes/internal/gemini"
	"github.com/fakeyudi/minutes/internal/hiragana"
	"github.com/fakeyudi/minutes/internal/history"
	"github.com/fakeyudi/minutes/internal/recognition"
	"github.com/fakeyudi/minutes/internal/session"
	"github.com/fakeyudi/minutes/internal/storage"
	"github.com/fakeyudi/minutes/internal/tabs"
)

type fakeEngine struct {
	mu            sync.Mutex
	starts, stops int
	events        chan recognition.EngineEvent
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{events: make(chan recognition.EngineEvent, 16)}
}

func (f *fakeEngine) Start(recognition.Options) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	return nil
}

func (f *fakeEngine) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	return nil
}

func (f *fakeEngine) Events() <-chan recognition.EngineEvent { return f.events }

func (f *fakeEngine) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts, f.stops
}

type fakeSynth struct {
	mu     sync.Mutex
	spoken []string
}

func (f *fakeSynth) SynthesisAvailable() bool { return true }

func (f *fakeSynth) Speak(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spoken = append(f.spoken, text)
	return nil
}

// markTokenizer reads text as itself behind a marker so converted text is
// easy to tell apart.
type markTokenizer struct{}

func (markTokenizer) Tokenize(text string) ([]hiragana.Token, error) {
	return []hiragana.Token{{Surface: text, Reading: "よみ:" + text}}, nil
}

type fixture struct {
	app     *App
	engine  *fakeEngine
	synth   *fakeSynth
	kv      storage.Store
	session *recognition.Session
}

func newFixture(t *testing.T, clk clock.Clock) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	kv, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	hist, err := history.New(kv, history.Options{MaxItems: 10, Logger: logger})
	if err != nil {
		t.Fatal(err)
	}
	conv := hiragana.NewConverter(logger)
	if err := conv.Init(context.Background(), func() (hiragana.Tokenizer, error) { return markTokenizer{}, nil }); err != nil {
		t.Fatal(err)
	}
	eng := newFakeEngine()
	synth := &fakeSynth{}
	sess := recognition.New(eng, "ja-JP", logger)
	a, err := New(Components{
		Session:   sess,
		History:   hist,
		Converter: conv,
		Synth:     synth,
		Snapshots: session.NewSnapshotStore(kv, clk),
		KV:        kv,
	}, Options{ResumeDelay: 10 * time.Millisecond, Clock: clk, Logger: logger})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &fixture{app: a, engine: eng, synth: synth, kv: kv, session: sess}
}

func (f *fixture) say(text string) {
	f.session.Handle(recognition.EngineEvent{
		Kind:    recognition.EngineResult,
		Results: []recognition.Segment{{Transcript: text, IsFinal: true}},
	})
}

func TestNewRequiresSessionAndHistory(t *testing.T) {
	kv, _ := storage.NewFileStore(t.TempDir())
	hist, _ := history.New(kv, history.Options{})

	if _, err := New(Components{History: hist}, Options{}); !errors.Is(err, ErrRequiredBinding) {
		t.Errorf("missing session: err = %v", err)
	}
	if _, err := New(Components{Session: recognition.New(nil, "", nil)}, Options{}); !errors.Is(err, ErrRequiredBinding) {
		t.Errorf("missing history: err = %v", err)
	}
	a, err := New(Components{Session: recognition.New(nil, "", nil), History: hist}, Options{})
	if err != nil {
		t.Fatalf("optional parts missing: %v", err)
	}
	if err := a.SpeakAll(); !errors.Is(err, ErrEmptyTranscript) {
		t.Errorf("SpeakAll on empty: %v", err)
	}
	if _, err := a.Summarize(context.Background()); !errors.Is(err, ErrSummarizerUnavailable) {
		t.Errorf("Summarize unbound: %v", err)
	}
	if err := a.ToggleListening(); !errors.Is(err, ErrRecognitionUnavailable) {
		t.Errorf("ToggleListening unbound: %v", err)
	}
}

func TestResultUpdatesTranscriptAndReading(t *testing.T) {
	f := newFixture(t, clock.NewMock())
	var got []TranscriptEvent
	f.app.Subscribe(func(ev Event) {
		if te, ok := ev.(TranscriptEvent); ok {
			got = append(got, te)
		}
	})

	f.say("今日は")
	final, reading := f.app.Transcript()
	if final != "今日は" || reading != "よみ:今日は" {
		t.Fatalf("Transcript() = %q, %q", final, reading)
	}
	if len(got) != 1 || got[0].Hiragana != "よみ:今日は" {
		t.Fatalf("events = %+v", got)
	}
}

func TestToggleListening(t *testing.T) {
	f := newFixture(t, clock.NewMock())
	if err := f.app.ToggleListening(); err != nil {
		t.Fatal(err)
	}
	f.session.Handle(recognition.EngineEvent{Kind: recognition.EngineStarted})
	if err := f.app.ToggleListening(); err != nil {
		t.Fatal(err)
	}
	starts, stops := f.engine.counts()
	if starts != 1 || stops != 1 {
		t.Fatalf("starts=%d stops=%d", starts, stops)
	}
}

func TestClearDoesNotSaveToHistory(t *testing.T) {
	f := newFixture(t, clock.NewMock())
	f.say("消える")
	f.app.Clear()

	if final, _ := f.app.Transcript(); final != "" {
		t.Fatalf("final after clear = %q", final)
	}
	if f.app.History().Len() != 0 {
		t.Fatalf("history len = %d, want 0", f.app.History().Len())
	}
}

func TestSaveToHistory(t *testing.T) {
	f := newFixture(t, clock.NewMock())
	if _, err := f.app.SaveToHistory(); !errors.Is(err, ErrEmptyTranscript) {
		t.Fatalf("blank save: %v", err)
	}
	f.say("記録")
	e, err := f.app.SaveToHistory()
	if err != nil {
		t.Fatal(err)
	}
	if e.Text != "記録" || e.Hiragana != "よみ:記録" {
		t.Fatalf("entry = %+v", e)
	}
}

func TestOutputHistorySwitchesToMain(t *testing.T) {
	f := newFixture(t, clock.NewMock())
	if _, err := f.app.History().Append("過去の発言", "かこのはつげん"); err != nil {
		t.Fatal(err)
	}
	f.app.Tabs().Switch(tabs.History)

	if err := f.app.OutputHistory(0); err != nil {
		t.Fatal(err)
	}
	final, reading := f.app.Transcript()
	if final != "過去の発言" || reading != "かこのはつげん" {
		t.Fatalf("Transcript() = %q, %q", final, reading)
	}
	if f.app.Tabs().Current() != tabs.Main {
		t.Fatalf("tab = %s, want main", f.app.Tabs().Current())
	}
	if err := f.app.OutputHistory(5); err == nil {
		t.Fatal("OutputHistory(out of range) = nil")
	}
}

func TestSpeakPausesAndResumesListening(t *testing.T) {
	f := newFixture(t, clock.NewMock())
	f.app.ToggleListening()
	f.session.Handle(recognition.EngineEvent{Kind: recognition.EngineStarted})
	f.say("読み上げ")

	if err := f.app.SpeakAll(); err != nil {
		t.Fatal(err)
	}
	f.session.Handle(recognition.EngineEvent{Kind: recognition.EngineSpeechStart})
	if _, stops := f.engine.counts(); stops != 1 {
		t.Fatalf("stops = %d, want 1", stops)
	}
	f.session.Handle(recognition.EngineEvent{Kind: recognition.EngineEnded})
	f.session.Handle(recognition.EngineEvent{Kind: recognition.EngineSpeechEnd})

	deadline := time.Now().Add(2 * time.Second)
	for {
		if starts, _ := f.engine.counts(); starts == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("listening did not resume")
		}
		time.Sleep(5 * time.Millisecond)
	}

	f.session.Handle(recognition.EngineEvent{Kind: recognition.EngineStarted})
	if final, _ := f.app.Transcript(); final != "読み上げ" {
		t.Fatalf("transcript lost on resume: %q", final)
	}
}

func TestSpeakNewReadsOnlyAddedText(t *testing.T) {
	f := newFixture(t, clock.NewMock())
	f.say("前半")
	if err := f.app.SpeakAll(); err != nil {
		t.Fatal(err)
	}
	f.session.Handle(recognition.EngineEvent{Kind: recognition.EngineSpeechStart})
	f.session.Handle(recognition.EngineEvent{Kind: recognition.EngineSpeechEnd})

	if err := f.app.SpeakNew(); !errors.Is(err, ErrNothingNew) {
		t.Fatalf("SpeakNew with nothing new: %v", err)
	}
	f.say("後半")
	if err := f.app.SpeakNew(); err != nil {
		t.Fatal(err)
	}
	f.synth.mu.Lock()
	defer f.synth.mu.Unlock()
	if last := f.synth.spoken[len(f.synth.spoken)-1]; last != "後半" {
		t.Fatalf("spoke %q, want 後半", last)
	}
}

func TestSaveTxt(t *testing.T) {
	mock := clock.NewMock()
	mock.Set(time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC))
	f := newFixture(t, mock)
	dir := t.TempDir()

	if _, err := f.app.SaveTxt(dir); !errors.Is(err, ErrEmptyTranscript) {
		t.Fatalf("blank SaveTxt: %v", err)
	}
	f.say("保存する")
	path, err := f.app.SaveTxt(dir)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "speech-text-2025-03-04-05-06-07.txt" {
		t.Fatalf("name = %s", filepath.Base(path))
	}
	data, _ := os.ReadFile(path)
	if string(data) != "保存する\n" {
		t.Fatalf("content = %q", data)
	}
}

func TestSnapshotRestoresAcrossRestart(t *testing.T) {
	mock := clock.NewMock()
	mock.Set(time.Now())
	f := newFixture(t, mock)
	f.say("再起動前")

	hist, _ := history.New(f.kv, history.Options{})
	b, err := New(Components{
		Session:   recognition.New(nil, "", nil),
		History:   hist,
		Snapshots: session.NewSnapshotStore(f.kv, mock),
	}, Options{Clock: mock})
	if err != nil {
		t.Fatal(err)
	}
	if !b.Restore() {
		t.Fatal("Restore() = false")
	}
	final, reading := b.Transcript()
	if final != "再起動前" || reading != "よみ:再起動前" {
		t.Fatalf("restored %q, %q", final, reading)
	}

	f.app.Clear()
	if b.Restore() {
		t.Fatal("Restore() after clear = true")
	}
}

func TestRecorderCapturesSpokenEntry(t *testing.T) {
	f := newFixture(t, clock.NewMock())
	if msg := f.app.ToggleRecorder(); msg == "" {
		t.Fatal("no prompt for name phase")
	}
	f.say("佐藤さん")
	f.app.ToggleRecorder()
	f.app.ToggleRecorder()
	f.say("よろしくお願いします")
	f.app.ToggleRecorder()

	us := f.app.Timeline().Utterances()
	if len(us) != 1 || us[0].Name != "佐藤さん" || us[0].Text != "よろしくお願いします" {
		t.Fatalf("utterances = %+v", us)
	}
}

func TestOpenAndIdentifySpeakers(t *testing.T) {
	reply := "```json\n{\"utterances\":[{\"name\":\"田中\",\"text\":\"こんにちは\"},{\"name\":\"鈴木\",\"text\":\"どうも\"}]}\n```"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-goog-api-key") != "env-key" {
			t.Errorf("api key header = %q", r.Header.Get("x-goog-api-key"))
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"candidates":[{"content":{"parts":[{"text":%q}]}}],"usageMetadata":{"totalTokenCount":5}}`, reply)
	}))
	defer srv.Close()

	cfg := config.Defaults()
	cfg.DataDir = t.TempDir()
	cfg.APIBaseURL = srv.URL
	cfg.APIKey = "env-key"
	a, err := Open(cfg, nil, nil, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer a.Close()

	a.Session().SetFinalText("田中です。こんにちは。鈴木です。どうも。")
	res, err := a.IdentifySpeakers(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Document == nil {
		t.Fatalf("reply not parsed: %s", res.Raw)
	}
	us := a.Timeline().Utterances()
	if len(us) != 2 || us[0].Name != "田中" || us[1].Text != "どうも" {
		t.Fatalf("timeline = %+v", us)
	}

	stats := a.Summarizer().Stats()
	var requests int
	for _, s := range stats {
		if s.Model == cfg.Model {
			requests = s.Requests.Used
		}
	}
	if requests != 1 {
		t.Fatalf("ledger requests = %d, want 1 (%+v)", requests, stats)
	}
	if !strings.Contains(res.Raw, "utterances") {
		t.Fatalf("raw = %q", res.Raw)
	}
}

func TestEnvironmentKeyOverridesStoredKey(t *testing.T) {
	sent := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sent <- r.Header.Get("x-goog-api-key")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"candidates":[{"content":{"parts":[{"text":"要約"}]}}],"usageMetadata":{"totalTokenCount":3}}`)
	}))
	defer srv.Close()

	dir := t.TempDir()
	kv, err := storage.Open("file", dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := kv.Set(gemini.KeyStorageKey, "stored-key"); err != nil {
		t.Fatal(err)
	}
	kv.Close()

	cfg := config.Defaults()
	cfg.DataDir = dir
	cfg.APIBaseURL = srv.URL
	cfg.APIKey = "env-key"
	a, err := Open(cfg, nil, nil, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer a.Close()

	a.Session().SetFinalText("今日の議題です。")
	if _, err := a.Summarize(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := <-sent; got != "env-key" {
		t.Fatalf("x-goog-api-key = %q, want env-key", got)
	}
	if got, _ := a.Store().Get(gemini.KeyStorageKey); got != "stored-key" {
		t.Fatalf("stored key = %q, the environment key must not be persisted", got)
	}
}
