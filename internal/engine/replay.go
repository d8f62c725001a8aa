package engine

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fakeyudi/minutes/internal/recognition"
)

// ReplayEngine plays back NDJSON recognition events read from r, one line per
// event, spaced by delay. Start and end are generated by the engine itself.
type ReplayEngine struct {
	mu      sync.Mutex
	scanner *bufio.Scanner
	delay   time.Duration
	events  chan recognition.EngineEvent
	stop    chan struct{}
	active  bool
	logger  *zap.Logger
}

// NewReplayEngine returns an engine replaying r.
func NewReplayEngine(r io.Reader, delay time.Duration, logger *zap.Logger) *ReplayEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	return &ReplayEngine{
		scanner: scanner,
		delay:   delay,
		events:  make(chan recognition.EngineEvent, 64),
		logger:  logger,
	}
}

func (e *ReplayEngine) Start(recognition.Options) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active {
		return errors.New("replay already running")
	}
	e.active = true
	e.stop = make(chan struct{})
	go e.replay(e.stop)
	return nil
}

func (e *ReplayEngine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.active {
		return errors.New("replay not running")
	}
	close(e.stop)
	e.active = false
	return nil
}

func (e *ReplayEngine) Events() <-chan recognition.EngineEvent { return e.events }

func (e *ReplayEngine) replay(stop <-chan struct{}) {
	e.events <- recognition.EngineEvent{Kind: recognition.EngineStarted}
	defer func() {
		e.mu.Lock()
		if e.stop == stop {
			e.active = false
		}
		e.mu.Unlock()
		e.events <- recognition.EngineEvent{Kind: recognition.EngineEnded}
	}()

	for e.scanner.Scan() {
		var ev recognition.EngineEvent
		if err := json.Unmarshal(e.scanner.Bytes(), &ev); err != nil {
			e.logger.Warn("skipping malformed replay line", zap.Error(err))
			continue
		}
		if ev.Kind == recognition.EngineStarted || ev.Kind == recognition.EngineEnded {
			continue
		}
		select {
		case <-stop:
			return
		case <-time.After(e.delay):
		}
		e.events <- ev
	}
}
