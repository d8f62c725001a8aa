package recognition

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
	"pgregory.net/rapid"
)

// fakeEngine records requests and lets tests push events.
type fakeEngine struct {
	starts, stops int
	startErr      error
	events        chan EngineEvent
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{events: make(chan EngineEvent, 16)}
}

func (f *fakeEngine) Start(Options) error {
	f.starts++
	return f.startErr
}

func (f *fakeEngine) Stop() error {
	f.stops++
	return nil
}

func (f *fakeEngine) Events() <-chan EngineEvent { return f.events }

func final(text string) Segment   { return Segment{Transcript: text, IsFinal: true} }
func interim(text string) Segment { return Segment{Transcript: text} }

func TestStartFailsWhenUnavailable(t *testing.T) {
	s := New(nil, "ja-JP", zaptest.NewLogger(t))
	if s.Start() {
		t.Fatal("Start() with no engine = true, want false")
	}
	if s.Available() {
		t.Fatal("Available() = true, want false")
	}
}

func TestStartTwiceRejected(t *testing.T) {
	eng := newFakeEngine()
	s := New(eng, "ja-JP", zaptest.NewLogger(t))

	if !s.Start() {
		t.Fatal("first Start() = false")
	}
	if s.Start() {
		t.Fatal("Start() while pending = true, want false")
	}
	s.Handle(EngineEvent{Kind: EngineStarted})
	if s.Start() {
		t.Fatal("Start() while running = true, want false")
	}
	if eng.starts != 1 {
		t.Fatalf("engine starts = %d, want 1", eng.starts)
	}
}

func TestStartEngineRefuses(t *testing.T) {
	eng := newFakeEngine()
	eng.startErr = errors.New("invalid state")
	s := New(eng, "ja-JP", zaptest.NewLogger(t))
	if s.Start() {
		t.Fatal("Start() = true when engine refused")
	}
}

func TestStopWhenIdle(t *testing.T) {
	eng := newFakeEngine()
	s := New(eng, "ja-JP", zaptest.NewLogger(t))
	if s.Stop() {
		t.Fatal("Stop() while idle = true, want false")
	}
	if eng.stops != 0 {
		t.Fatalf("engine stops = %d, want 0", eng.stops)
	}
}

func TestSingleFinalSegment(t *testing.T) {
	s := New(newFakeEngine(), "ja-JP", zaptest.NewLogger(t))
	var got ResultEvent
	s.Subscribe(func(ev Event) {
		if r, ok := ev.(ResultEvent); ok {
			got = r
		}
	})

	s.Start()
	s.Handle(EngineEvent{Kind: EngineStarted})
	s.Handle(EngineEvent{Kind: EngineResult, ResultIndex: 0, Results: []Segment{final("こんにちは")}})

	if s.FinalText() != "こんにちは" {
		t.Errorf("FinalText = %q", s.FinalText())
	}
	if got.NewFinalPortion != "こんにちは" {
		t.Errorf("NewFinalPortion = %q", got.NewFinalPortion)
	}
}

func TestInterimReplacedNotAppended(t *testing.T) {
	s := New(newFakeEngine(), "ja-JP", zaptest.NewLogger(t))
	s.Handle(EngineEvent{Kind: EngineStarted})
	s.Handle(EngineEvent{Kind: EngineResult, Results: []Segment{interim("こん")}})
	s.Handle(EngineEvent{Kind: EngineResult, Results: []Segment{interim("こんにち")}})
	if s.InterimText() != "こんにち" {
		t.Fatalf("InterimText = %q, want こんにち", s.InterimText())
	}
	if s.FinalText() != "" {
		t.Fatalf("FinalText = %q, want empty", s.FinalText())
	}
}

func TestStartedResetsUnlessResuming(t *testing.T) {
	eng := newFakeEngine()
	s := New(eng, "ja-JP", zaptest.NewLogger(t))

	s.Start()
	s.Handle(EngineEvent{Kind: EngineStarted})
	s.Handle(EngineEvent{Kind: EngineResult, Results: []Segment{final("前半")}})
	s.Handle(EngineEvent{Kind: EngineEnded})

	if !s.ResumeAfterSpeechSynthesis() {
		t.Fatal("ResumeAfterSpeechSynthesis() = false")
	}
	s.Handle(EngineEvent{Kind: EngineStarted})
	if s.FinalText() != "前半" {
		t.Fatalf("FinalText after resume = %q, want 前半", s.FinalText())
	}

	// The resume flag is one-shot.
	s.Handle(EngineEvent{Kind: EngineEnded})
	s.Start()
	s.Handle(EngineEvent{Kind: EngineStarted})
	if s.FinalText() != "" {
		t.Fatalf("FinalText after plain start = %q, want empty", s.FinalText())
	}
}

func TestErrorForcesStop(t *testing.T) {
	eng := newFakeEngine()
	s := New(eng, "ja-JP", zaptest.NewLogger(t))
	var gotErr ErrorEvent
	s.Subscribe(func(ev Event) {
		if e, ok := ev.(ErrorEvent); ok {
			gotErr = e
		}
	})

	s.Start()
	s.Handle(EngineEvent{Kind: EngineStarted})
	s.Handle(EngineEvent{Kind: EngineError, Code: "not-allowed"})

	if gotErr.Category != ErrPermissionDenied {
		t.Errorf("category = %q, want permission-denied", gotErr.Category)
	}
	if eng.stops != 1 {
		t.Errorf("engine stops = %d, want 1", eng.stops)
	}
	s.Handle(EngineEvent{Kind: EngineEnded})
	if s.Running() {
		t.Error("Running() = true after ended")
	}
}

func TestCategorize(t *testing.T) {
	cases := map[string]ErrorCategory{
		"no-speech":           ErrNoSpeech,
		"audio-capture":       ErrAudioCapture,
		"not-allowed":         ErrPermissionDenied,
		"service-not-allowed": ErrPermissionDenied,
		"network":             ErrOther,
		"":                    ErrOther,
	}
	for code, want := range cases {
		if got := Categorize(code); got != want {
			t.Errorf("Categorize(%q) = %q, want %q", code, got, want)
		}
	}
}

func TestRunDeliversInOrder(t *testing.T) {
	eng := newFakeEngine()
	s := New(eng, "ja-JP", zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	eng.events <- EngineEvent{Kind: EngineStarted}
	eng.events <- EngineEvent{Kind: EngineResult, Results: []Segment{final("あ")}}
	eng.events <- EngineEvent{Kind: EngineResult, ResultIndex: 1, Results: []Segment{final("あ"), final("い")}}
	close(eng.events)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after channel close")
	}
	if s.FinalText() != "あい" {
		t.Fatalf("FinalText = %q, want あい", s.FinalText())
	}
}

// Feature: minutes, Property 2: Final text is the ordered concatenation of finalized segments
func TestFinalTextAccumulation(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		s := New(newFakeEngine(), "ja-JP", nil)
		var last ResultEvent
		s.Subscribe(func(ev Event) {
			if r, ok := ev.(ResultEvent); ok {
				last = r
			}
		})
		s.Handle(EngineEvent{Kind: EngineStarted})

		word := rapid.StringMatching(`[あ-ん]{1,4}`)
		var committed []Segment // finalized segments of the span so far
		var want strings.Builder

		n := rapid.IntRange(1, 15).Draw(rt, "events")
		for i := 0; i < n; i++ {
			newFinals := rapid.IntRange(0, 3).Draw(rt, "finals")
			interims := rapid.IntRange(0, 2).Draw(rt, "interims")

			index := len(committed)
			results := append([]Segment{}, committed...)
			var portion, interimWant strings.Builder
			for j := 0; j < newFinals; j++ {
				seg := final(word.Draw(rt, "final"))
				results = append(results, seg)
				portion.WriteString(seg.Transcript)
			}
			for j := 0; j < interims; j++ {
				seg := interim(word.Draw(rt, "interim"))
				results = append(results, seg)
				interimWant.WriteString(seg.Transcript)
			}
			committed = results[:index+newFinals]
			want.WriteString(portion.String())

			s.Handle(EngineEvent{Kind: EngineResult, ResultIndex: index, Results: results})

			if last.NewFinalPortion != portion.String() {
				rt.Fatalf("event %d: NewFinalPortion = %q, want %q", i, last.NewFinalPortion, portion.String())
			}
			if s.InterimText() != interimWant.String() {
				rt.Fatalf("event %d: InterimText = %q, want %q", i, s.InterimText(), interimWant.String())
			}
		}
		if s.FinalText() != want.String() {
			rt.Fatalf("FinalText = %q, want %q", s.FinalText(), want.String())
		}
	})
}
