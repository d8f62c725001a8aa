// Package app is the application context: it owns every component, wires
// their events together and exposes the user actions.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/bep/debounce"
	"go.uber.org/zap"

	"github.com/fakeyudi/minutes/internal/gemini"
	"github.com/fakeyudi/minutes/internal/hiragana"
	"github.com/fakeyudi/minutes/internal/history"
	"github.com/fakeyudi/minutes/internal/recognition"
	"github.com/fakeyudi/minutes/internal/session"
	"github.com/fakeyudi/minutes/internal/storage"
	"github.com/fakeyudi/minutes/internal/tabs"
	"github.com/fakeyudi/minutes/internal/timeline"
)

// DefaultResumeDelay is how long after playback ends listening resumes.
const DefaultResumeDelay = 500 * time.Millisecond

var (
	// ErrRequiredBinding is returned by New when a required component is nil.
	ErrRequiredBinding = errors.New("required component missing")

	ErrRecognitionUnavailable = errors.New("speech recognition is not available")
	ErrStartRefused           = errors.New("speech recognition could not start")
	ErrSynthesisUnavailable   = errors.New("speech synthesis is not available")
	ErrSummarizerUnavailable  = errors.New("summarization is not available")
	ErrEmptyTranscript        = errors.New("there is no text")
	ErrNothingNew             = errors.New("no text was added since the last reading")
)

// Synthesizer reads text aloud. Playback progress arrives through the
// recognition session as speech events.
type Synthesizer interface {
	SynthesisAvailable() bool
	Speak(text string) error
}

// Components are the parts an App is built from. Session and History are
// required; the rest disable their feature when nil.
type Components struct {
	Session    *recognition.Session
	History    *history.Store
	Converter  *hiragana.Converter
	Summarizer *gemini.Adapter
	Synth      Synthesizer
	Snapshots  session.SnapshotStore
	Timeline   *timeline.Timeline
	KV         storage.Store // closed by Close
}

// Options tunes an App.
type Options struct {
	ResumeDelay time.Duration
	Clock       clock.Clock
	Logger      *zap.Logger
}

// App is created once at startup and handed to the CLI or the TUI.
type App struct {
	session    *recognition.Session
	history    *history.Store
	converter  *hiragana.Converter
	summarizer *gemini.Adapter
	synth      Synthesizer
	snapshots  session.SnapshotStore
	timeline   *timeline.Timeline
	recorder   *timeline.Recorder
	tabs       *tabs.Machine
	kv         storage.Store

	clock  clock.Clock
	logger *zap.Logger
	resume func(func())

	mu            sync.Mutex
	hiraganaText  string
	hiraganaSrc   string
	lastSpoken    string
	pendingSpoken string
	paused        bool // listening was stopped for playback

	lmu       sync.Mutex
	listeners []func(Event)
}

// New checks the bindings and wires component events to the App.
func New(c Components, opts Options) (*App, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.ResumeDelay <= 0 {
		opts.ResumeDelay = DefaultResumeDelay
	}
	if c.Session == nil {
		return nil, fmt.Errorf("%w: recognition session", ErrRequiredBinding)
	}
	if c.History == nil {
		return nil, fmt.Errorf("%w: history store", ErrRequiredBinding)
	}
	log := opts.Logger
	if c.Converter == nil {
		log.Warn("hiragana converter not bound, readings disabled")
	}
	if c.Summarizer == nil {
		log.Warn("summarizer not bound, Gemini features disabled")
	}
	if c.Synth == nil {
		log.Warn("speech synthesis not bound, reading aloud disabled")
	}
	if c.Snapshots == nil {
		log.Warn("snapshot store not bound, transcript will not survive restarts")
	}
	if c.Timeline == nil {
		c.Timeline = timeline.New()
	}

	a := &App{
		session:    c.Session,
		history:    c.History,
		converter:  c.Converter,
		summarizer: c.Summarizer,
		synth:      c.Synth,
		snapshots:  c.Snapshots,
		timeline:   c.Timeline,
		recorder:   timeline.NewRecorder(c.Timeline),
		kv:         c.KV,
		clock:      opts.Clock,
		logger:     log,
		resume:     debounce.New(opts.ResumeDelay),
	}
	a.tabs = tabs.New(func(string) { a.emit(HistoryEvent{}) })

	a.session.Subscribe(a.onSession)
	if a.converter != nil {
		a.converter.Subscribe(a.onDictionary)
	}
	return a, nil
}

// Subscribe registers fn for every App event. fn may run on any goroutine.
func (a *App) Subscribe(fn func(Event)) {
	a.lmu.Lock()
	defer a.lmu.Unlock()
	a.listeners = append(a.listeners, fn)
}

func (a *App) emit(ev Event) {
	a.lmu.Lock()
	ls := make([]func(Event), len(a.listeners))
	copy(ls, a.listeners)
	a.lmu.Unlock()
	for _, fn := range ls {
		fn(ev)
	}
}

func (a *App) status(kind StatusKind, format string, args ...any) {
	a.emit(StatusEvent{Kind: kind, Text: fmt.Sprintf(format, args...)})
}

func (a *App) Session() *recognition.Session { return a.session }
func (a *App) History() *history.Store       { return a.history }
func (a *App) Timeline() *timeline.Timeline  { return a.timeline }
func (a *App) Tabs() *tabs.Machine           { return a.tabs }

// Store returns the key-value store the components persist to, or nil.
func (a *App) Store() storage.Store { return a.kv }

// Summarizer returns the Gemini adapter, or nil when it is not bound.
func (a *App) Summarizer() *gemini.Adapter { return a.summarizer }

// Converter returns the hiragana converter, or nil when it is not bound.
func (a *App) Converter() *hiragana.Converter { return a.converter }

// Run feeds recognition events until ctx is done.
func (a *App) Run(ctx context.Context) {
	a.session.Run(ctx)
}

// InitDictionary loads the tokenizer with load. It blocks; callers usually
// run it on its own goroutine.
func (a *App) InitDictionary(ctx context.Context, load hiragana.Loader) error {
	if a.converter == nil {
		return nil
	}
	return a.converter.Init(ctx, load)
}

// Transcript returns the final text and its reading.
func (a *App) Transcript() (final, reading string) {
	final = a.session.FinalText()
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.hiraganaSrc == final {
		return final, a.hiraganaText
	}
	return final, ""
}

func (a *App) onSession(ev recognition.Event) {
	switch ev := ev.(type) {
	case recognition.ResultEvent:
		a.mu.Lock()
		if ev.NewFinalPortion != "" {
			a.recorder.Write(ev.NewFinalPortion)
		}
		reading := a.readingLocked(ev.FinalText)
		a.mu.Unlock()

		a.emit(TranscriptEvent{Final: ev.FinalText, Interim: ev.InterimText, Hiragana: reading})
		if ev.NewFinalPortion != "" {
			a.Snapshot()
		}
	case recognition.StateEvent:
		listening := ev.State == recognition.StateStarted
		a.emit(ListeningEvent{Listening: listening, SessionID: ev.SessionID})
		if listening {
			a.status(StatusInfo, "Listening...")
		} else {
			a.status(StatusInfo, "Stopped")
		}
	case recognition.ErrorEvent:
		a.status(StatusError, "%s", ev.Category.Describe())
	case recognition.SpeechEvent:
		a.onSpeech(ev.Speaking)
	}
}

// readingLocked returns the reading of final, converting it only when the
// text changed.
func (a *App) readingLocked(final string) string {
	if final != a.hiraganaSrc {
		a.hiraganaSrc = final
		a.hiraganaText = ""
		if a.converter != nil {
			a.hiraganaText = a.converter.Convert(final)
		}
	}
	return a.hiraganaText
}

func (a *App) onDictionary(ev hiragana.StatusEvent) {
	a.emit(DictionaryEvent{StatusEvent: ev})
	switch ev.State {
	case hiragana.StateReady:
		final := a.session.FinalText()
		a.mu.Lock()
		a.hiraganaSrc = ""
		reading := a.readingLocked(final)
		a.mu.Unlock()
		a.emit(TranscriptEvent{Final: final, Interim: a.session.InterimText(), Hiragana: reading})
		a.status(StatusSuccess, "Dictionary ready")
	case hiragana.StateFailed:
		a.status(StatusError, "Dictionary failed to load: %s", ev.Message)
	}
}

func (a *App) onSpeech(speaking bool) {
	if speaking {
		if a.session.Running() && a.session.Stop() {
			a.mu.Lock()
			a.paused = true
			a.mu.Unlock()
		}
		return
	}

	a.mu.Lock()
	a.lastSpoken = a.pendingSpoken
	paused := a.paused
	a.paused = false
	a.mu.Unlock()

	if paused {
		a.resume(func() {
			if !a.session.ResumeAfterSpeechSynthesis() {
				a.status(StatusError, "Could not resume listening")
			}
		})
	}
}

// ToggleListening starts recognition when idle and stops it otherwise.
func (a *App) ToggleListening() error {
	if a.session.Running() {
		a.session.Stop()
		return nil
	}
	if !a.session.Available() {
		return ErrRecognitionUnavailable
	}
	if !a.session.Start() {
		// A start may already be pending; Stop cancels it.
		if a.session.Stop() {
			return nil
		}
		return ErrStartRefused
	}
	return nil
}

// Clear empties the transcript without saving it to history.
func (a *App) Clear() {
	a.session.Clear()
	a.mu.Lock()
	a.lastSpoken = ""
	a.pendingSpoken = ""
	a.mu.Unlock()
	if a.snapshots != nil {
		if err := a.snapshots.Delete(); err != nil {
			a.logger.Warn("deleting snapshot failed", zap.Error(err))
		}
	}
	a.status(StatusInfo, "Cleared")
}

// SaveToHistory appends the current transcript to history.
func (a *App) SaveToHistory() (*history.Entry, error) {
	final, reading := a.Transcript()
	if strings.TrimSpace(final) == "" {
		return nil, ErrEmptyTranscript
	}
	e, err := a.history.Append(final, reading)
	if err != nil {
		return nil, err
	}
	a.emit(HistoryEvent{})
	a.status(StatusSuccess, "Saved to history")
	return e, nil
}

// OutputHistory puts history entry index back on the main view.
func (a *App) OutputHistory(index int) error {
	e, ok := a.history.Get(index)
	if !ok {
		return fmt.Errorf("no history entry %d", index)
	}
	a.mu.Lock()
	a.hiraganaSrc = e.Text
	a.hiraganaText = e.Hiragana
	if a.hiraganaText == "" && a.converter != nil {
		a.hiraganaText = a.converter.Convert(e.Text)
	}
	a.mu.Unlock()

	a.session.SetFinalText(e.Text)
	a.tabs.Switch(tabs.Main)
	return nil
}

// DeleteHistory removes history entry index.
func (a *App) DeleteHistory(index int) error {
	e, err := a.history.Remove(index)
	if err != nil {
		return err
	}
	if e == nil {
		return fmt.Errorf("no history entry %d", index)
	}
	a.emit(HistoryEvent{})
	return nil
}

// ImportHistory replaces the history with an exported file.
func (a *App) ImportHistory(data []byte, format string) error {
	if err := a.history.Import(data, format); err != nil {
		return err
	}
	a.emit(HistoryEvent{})
	return nil
}

// ReloadHistory rereads the history after another process changed it.
func (a *App) ReloadHistory() error {
	if err := a.history.Reload(); err != nil {
		return err
	}
	a.emit(HistoryEvent{})
	return nil
}

// Summarize asks Gemini for a summary of the transcript.
func (a *App) Summarize(ctx context.Context) (string, error) {
	if a.summarizer == nil {
		return "", ErrSummarizerUnavailable
	}
	final, _ := a.Transcript()
	return a.summarizer.Summarize(ctx, final)
}

// IdentifySpeakers splits the transcript into utterances and loads them
// into the timeline when the reply parses.
func (a *App) IdentifySpeakers(ctx context.Context) (*gemini.SpeakerResult, error) {
	if a.summarizer == nil {
		return nil, ErrSummarizerUnavailable
	}
	final, _ := a.Transcript()
	res, err := a.summarizer.IdentifySpeakers(ctx, final)
	if err != nil {
		return nil, err
	}
	if res.Document != nil {
		a.timeline.Replace(*res.Document)
		a.emit(TimelineEvent{})
	}
	return res, nil
}

// SummarizeSpeakers summarizes the timeline per speaker.
func (a *App) SummarizeSpeakers(ctx context.Context) (string, error) {
	if a.summarizer == nil {
		return "", ErrSummarizerUnavailable
	}
	return a.summarizer.SummarizeSpeakers(ctx, a.timeline.Utterances())
}

// ToggleRecorder starts or finishes a spoken timeline entry and returns the
// prompt to show.
func (a *App) ToggleRecorder() string {
	a.mu.Lock()
	msg := a.recorder.Toggle()
	a.mu.Unlock()
	a.emit(TimelineEvent{})
	return msg
}

// RecorderPhase returns the step of the spoken timeline entry.
func (a *App) RecorderPhase() timeline.Phase {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.recorder.Phase()
}

// SpeakAll reads the whole transcript aloud.
func (a *App) SpeakAll() error {
	final := strings.TrimSpace(a.session.FinalText())
	if final == "" {
		return ErrEmptyTranscript
	}
	return a.speak(final, final)
}

// SpeakNew reads only what was added since the last reading.
func (a *App) SpeakNew() error {
	final := strings.TrimSpace(a.session.FinalText())
	a.mu.Lock()
	last := a.lastSpoken
	a.mu.Unlock()

	part := final
	if strings.HasPrefix(final, last) {
		part = final[len(last):]
	}
	if strings.TrimSpace(part) == "" {
		return ErrNothingNew
	}
	return a.speak(part, final)
}

func (a *App) speak(text, spoken string) error {
	if a.synth == nil || !a.synth.SynthesisAvailable() {
		return ErrSynthesisUnavailable
	}
	a.mu.Lock()
	a.pendingSpoken = spoken
	a.mu.Unlock()
	if err := a.synth.Speak(text); err != nil {
		return fmt.Errorf("speaking: %w", err)
	}
	return nil
}

// TxtName is the file name SaveTxt writes at t.
func TxtName(t time.Time) string {
	return "speech-text-" + t.UTC().Format("2006-01-02-15-04-05") + ".txt"
}

// SaveTxt writes the transcript to a text file in dir and returns its path.
func (a *App) SaveTxt(dir string) (string, error) {
	final := strings.TrimSpace(a.session.FinalText())
	if final == "" {
		return "", ErrEmptyTranscript
	}
	path := filepath.Join(dir, TxtName(a.clock.Now()))
	if err := os.WriteFile(path, []byte(final+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	a.status(StatusSuccess, "Saved %s", filepath.Base(path))
	return path, nil
}

// Snapshot stores the transcript for recovery after a restart.
func (a *App) Snapshot() {
	if a.snapshots == nil {
		return
	}
	final, reading := a.Transcript()
	snap := &session.Snapshot{ID: a.session.ID(), Original: final, Hiragana: reading}
	if err := a.snapshots.Save(snap); err != nil {
		a.logger.Warn("saving snapshot failed", zap.Error(err))
	}
}

// Restore loads the stored snapshot into the transcript. It reports whether
// anything was restored.
func (a *App) Restore() bool {
	if a.snapshots == nil {
		return false
	}
	snap, err := a.snapshots.Restore()
	if err != nil {
		if !errors.Is(err, session.ErrNoSnapshot) {
			a.logger.Warn("restoring snapshot failed", zap.Error(err))
		}
		return false
	}
	a.mu.Lock()
	a.hiraganaSrc = snap.Original
	a.hiraganaText = snap.Hiragana
	a.mu.Unlock()
	a.session.SetFinalText(snap.Original)
	a.logger.Info("transcript restored", zap.String("snapshot_id", snap.ID))
	return true
}

// Close stops listening and closes storage.
func (a *App) Close() error {
	if a.session.Running() {
		a.session.Stop()
	}
	if a.kv != nil {
		return a.kv.Close()
	}
	return nil
}
