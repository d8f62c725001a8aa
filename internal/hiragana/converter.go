// Package hiragana derives a hiragana reading for Japanese text using a
// dictionary-backed morphological tokenizer.
package hiragana

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// ErrorMarker is appended to the input when conversion fails.
const ErrorMarker = " (ひらがな変換エラー)"

// DefaultTimeout bounds dictionary loading.
const DefaultTimeout = 30 * time.Second

// Token is one morpheme. Reading is katakana and may be empty or "*".
type Token struct {
	Surface string
	Reading string
}

// Tokenizer splits text into morphemes.
type Tokenizer interface {
	Tokenize(text string) ([]Token, error)
}

// Loader builds a Tokenizer. It may take several seconds.
type Loader func() (Tokenizer, error)

// State is the converter's readiness.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateInitializing  State = "initializing"
	StateReady         State = "ready"
	StateFailed        State = "failed"
)

// StatusEvent reports a state change or initialization progress.
type StatusEvent struct {
	State   State
	Elapsed time.Duration // set while initializing
	Message string        // set when failed
}

// Converter turns text into hiragana once its tokenizer is ready.
type Converter struct {
	mu        sync.RWMutex
	tokenizer Tokenizer
	state     State
	message   string

	clock     clock.Clock
	timeout   time.Duration
	logger    *zap.Logger
	listeners []func(StatusEvent)
}

// Option configures a Converter.
type Option func(*Converter)

// WithClock replaces the wall clock used for progress and timeout.
func WithClock(c clock.Clock) Option { return func(cv *Converter) { cv.clock = c } }

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option { return func(cv *Converter) { cv.timeout = d } }

// NewConverter returns an uninitialized Converter.
func NewConverter(logger *zap.Logger, opts ...Option) *Converter {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Converter{
		state:   StateUninitialized,
		clock:   clock.New(),
		timeout: DefaultTimeout,
		logger:  logger,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Subscribe registers fn for status events.
func (c *Converter) Subscribe(fn func(StatusEvent)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

func (c *Converter) emit(ev StatusEvent) {
	c.mu.RLock()
	ls := make([]func(StatusEvent), len(c.listeners))
	copy(ls, c.listeners)
	c.mu.RUnlock()
	for _, fn := range ls {
		fn(ev)
	}
}

// State returns the current state and, when failed, its message.
func (c *Converter) State() (State, string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state, c.message
}

// Ready reports whether Convert will use the tokenizer.
func (c *Converter) Ready() bool {
	s, _ := c.State()
	return s == StateReady
}

// Init loads the tokenizer and blocks until it is ready, fails, times out, or
// ctx is cancelled. Progress is reported once a second. Calling Init while
// initializing or ready is a no-op.
func (c *Converter) Init(ctx context.Context, load Loader) error {
	c.mu.Lock()
	if c.state == StateInitializing || c.state == StateReady {
		c.mu.Unlock()
		return nil
	}
	c.state = StateInitializing
	c.message = ""
	c.mu.Unlock()

	start := c.clock.Now()
	ticker := c.clock.Ticker(time.Second)
	defer ticker.Stop()
	deadline := c.clock.Timer(c.timeout)
	defer deadline.Stop()

	type result struct {
		t   Tokenizer
		err error
	}
	done := make(chan result, 1)
	go func() {
		t, err := load()
		done <- result{t, err}
	}()

	c.logger.Info("loading tokenizer dictionary")
	c.emit(StatusEvent{State: StateInitializing})

	for {
		select {
		case r := <-done:
			if r.err != nil {
				return c.fail(fmt.Errorf("loading dictionary: %w", r.err))
			}
			if r.t == nil {
				return c.fail(errors.New("loading dictionary: no tokenizer"))
			}
			c.mu.Lock()
			c.tokenizer = r.t
			c.state = StateReady
			c.mu.Unlock()
			c.logger.Info("tokenizer ready", zap.Duration("elapsed", c.clock.Since(start)))
			c.emit(StatusEvent{State: StateReady})
			return nil
		case <-ticker.C:
			c.emit(StatusEvent{State: StateInitializing, Elapsed: c.clock.Since(start)})
		case <-deadline.C:
			return c.fail(fmt.Errorf("dictionary loading timed out after %s", c.timeout))
		case <-ctx.Done():
			return c.fail(ctx.Err())
		}
	}
}

func (c *Converter) fail(err error) error {
	c.mu.Lock()
	c.state = StateFailed
	c.message = err.Error()
	c.mu.Unlock()
	c.logger.Error("tokenizer initialization failed", zap.Error(err))
	c.emit(StatusEvent{State: StateFailed, Message: err.Error()})
	return err
}

// Convert returns the hiragana reading of text. It returns text unchanged when
// the tokenizer is not ready or text is blank, and text with ErrorMarker when
// tokenization fails.
func (c *Converter) Convert(text string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	c.mu.RLock()
	t, state := c.tokenizer, c.state
	c.mu.RUnlock()
	if state != StateReady || t == nil {
		return text
	}

	tokens, err := t.Tokenize(text)
	if err != nil {
		c.logger.Warn("hiragana conversion failed", zap.Error(err))
		return text + ErrorMarker
	}

	var sb strings.Builder
	for _, tok := range tokens {
		if tok.Reading != "" && tok.Reading != "*" {
			sb.WriteString(KatakanaToHiragana(tok.Reading))
		} else {
			sb.WriteString(KatakanaToHiragana(tok.Surface))
		}
	}
	return sb.String()
}
