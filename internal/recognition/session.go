// Package recognition accumulates a continuous speech-recognition span into
// a final and an interim transcript.
package recognition

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Session owns the transcript for the lifetime of the process. Engine events
// must be fed to Handle in delivery order, normally by Run.
type Session struct {
	mu     sync.Mutex
	engine Engine
	opts   Options
	logger *zap.Logger

	running bool
	pending bool // Start requested, started not yet received
	resume  bool // one-shot: keep the transcript on the next started
	id      string

	finalText   string
	interimText string

	listeners []func(Event)
}

// New returns a Session over engine. A nil engine means recognition is not
// available and Start always fails.
func New(engine Engine, lang string, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	if lang == "" {
		lang = "ja-JP"
	}
	return &Session{
		engine: engine,
		opts:   Options{Lang: lang, Continuous: true, InterimResults: true},
		logger: logger,
	}
}

// Subscribe registers fn for every event. Listeners run synchronously on the
// goroutine that produced the event.
func (s *Session) Subscribe(fn func(Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Session) emit(ev Event) {
	s.mu.Lock()
	ls := make([]func(Event), len(s.listeners))
	copy(ls, s.listeners)
	s.mu.Unlock()
	for _, fn := range ls {
		fn(ev)
	}
}

// Available reports whether an engine is attached.
func (s *Session) Available() bool { return s.engine != nil }

// Start requests a new listening span. It returns false when recognition is
// unavailable, already running, or the engine refuses the request.
func (s *Session) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startLocked()
}

func (s *Session) startLocked() bool {
	if s.engine == nil {
		s.logger.Warn("recognition unavailable")
		return false
	}
	if s.running || s.pending {
		return false
	}
	if err := s.engine.Start(s.opts); err != nil {
		s.logger.Error("recognition start failed", zap.Error(err))
		return false
	}
	s.pending = true
	return true
}

// Stop requests the end of the current span. It returns false when nothing
// is running. The ended transition arrives later.
func (s *Session) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine == nil || (!s.running && !s.pending) {
		return false
	}
	if err := s.engine.Stop(); err != nil {
		s.logger.Error("recognition stop failed", zap.Error(err))
		return false
	}
	return true
}

// ResumeAfterSpeechSynthesis starts listening again while keeping the
// transcript gathered before playback.
func (s *Session) ResumeAfterSpeechSynthesis() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resume = true
	if !s.startLocked() {
		s.resume = false
		return false
	}
	return true
}

// Running reports whether the engine confirmed a span that has not ended.
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// ID returns the identifier of the current or last span.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

func (s *Session) FinalText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finalText
}

func (s *Session) InterimText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interimText
}

// SetFinalText replaces the transcript, as when replaying a history entry or
// restoring after a restart.
func (s *Session) SetFinalText(text string) {
	s.mu.Lock()
	s.finalText = text
	s.interimText = ""
	s.mu.Unlock()
	s.emit(ResultEvent{FinalText: text})
}

// Clear empties the transcript.
func (s *Session) Clear() {
	s.SetFinalText("")
}

// Run feeds engine events to Handle until ctx is done or the engine closes
// its event channel.
func (s *Session) Run(ctx context.Context) {
	if s.engine == nil {
		return
	}
	events := s.engine.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.Handle(ev)
		}
	}
}

// Handle applies one engine event.
func (s *Session) Handle(ev EngineEvent) {
	switch ev.Kind {
	case EngineStarted:
		s.handleStarted()
	case EngineResult:
		s.handleResult(ev.ResultIndex, ev.Results)
	case EngineError:
		s.handleError(ev.Code, ev.Message)
	case EngineEnded:
		s.handleEnded()
	case EngineSpeechStart:
		s.emit(SpeechEvent{Speaking: true})
	case EngineSpeechEnd:
		s.emit(SpeechEvent{Speaking: false})
	default:
		s.logger.Debug("ignoring engine event", zap.String("kind", string(ev.Kind)))
	}
}

func (s *Session) handleStarted() {
	s.mu.Lock()
	s.running = true
	s.pending = false
	s.id = uuid.NewString()
	if s.resume {
		s.resume = false
	} else {
		s.finalText = ""
		s.interimText = ""
	}
	id := s.id
	s.mu.Unlock()

	s.logger.Info("recognition started", zap.String("session_id", id))
	s.emit(StateEvent{State: StateStarted, SessionID: id})
}

func (s *Session) handleResult(index int, results []Segment) {
	if index < 0 {
		index = 0
	}
	var newFinal, interim strings.Builder
	for i := index; i < len(results); i++ {
		if results[i].IsFinal {
			newFinal.WriteString(results[i].Transcript)
		} else {
			interim.WriteString(results[i].Transcript)
		}
	}

	s.mu.Lock()
	s.finalText += newFinal.String()
	s.interimText = interim.String()
	ev := ResultEvent{
		FinalText:       s.finalText,
		InterimText:     s.interimText,
		NewFinalPortion: newFinal.String(),
	}
	s.mu.Unlock()

	s.emit(ev)
}

func (s *Session) handleError(code, message string) {
	cat := Categorize(code)
	s.logger.Warn("recognition error",
		zap.String("code", code),
		zap.String("category", string(cat)),
		zap.String("message", message),
	)

	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	s.emit(ErrorEvent{Category: cat, Code: code, Message: message})
	if running {
		s.Stop()
	}
}

func (s *Session) handleEnded() {
	s.mu.Lock()
	s.running = false
	s.pending = false
	id := s.id
	s.mu.Unlock()

	s.logger.Info("recognition ended", zap.String("session_id", id))
	s.emit(StateEvent{State: StateEnded, SessionID: id})
}
