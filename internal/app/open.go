package app

import (
	"fmt"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/fakeyudi/minutes/internal/config"
	"github.com/fakeyudi/minutes/internal/gemini"
	"github.com/fakeyudi/minutes/internal/hiragana"
	"github.com/fakeyudi/minutes/internal/history"
	"github.com/fakeyudi/minutes/internal/recognition"
	"github.com/fakeyudi/minutes/internal/session"
	"github.com/fakeyudi/minutes/internal/storage"
)

// Open builds every component from cfg. eng and synth may be nil when no
// recognizer is reachable.
func Open(cfg config.Config, eng recognition.Engine, synth Synthesizer, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	kv, err := storage.Open(cfg.Storage, cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}
	clk := clock.New()

	hist, err := history.New(kv, history.Options{
		MaxItems:      cfg.HistoryMaxItems,
		RetentionDays: cfg.HistoryRetentionDays,
		Clock:         clk,
		Logger:        logger.Named("history"),
	})
	if err != nil {
		kv.Close()
		return nil, fmt.Errorf("loading history: %w", err)
	}

	ledger := gemini.NewLedger(kv, clk, gemini.DefaultLimits, logger.Named("ratelimit"))
	client := gemini.NewClient(cfg.APIBaseURL, ledger, logger.Named("gemini"))
	adapter := gemini.NewAdapter(client, kv, cfg.Model, gemini.CallOptions{
		MaxRetries: cfg.MaxRetries,
		BaseDelay:  cfg.RetryBaseDelay.Duration,
	}, logger.Named("gemini"))
	if cfg.APIKey != "" {
		adapter.UseKey(cfg.APIKey)
	}

	c := Components{
		Session:    recognition.New(eng, cfg.Locale, logger.Named("recognition")),
		History:    hist,
		Converter:  hiragana.NewConverter(logger.Named("hiragana"), hiragana.WithClock(clk), hiragana.WithTimeout(cfg.DictionaryTimeout.Duration)),
		Summarizer: adapter,
		Synth:      synth,
		Snapshots:  session.NewSnapshotStore(kv, clk),
		KV:         kv,
	}
	a, err := New(c, Options{Clock: clk, Logger: logger})
	if err != nil {
		kv.Close()
		return nil, err
	}
	return a, nil
}
