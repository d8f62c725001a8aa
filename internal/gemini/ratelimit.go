package gemini

import (
	"errors"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/fakeyudi/minutes/internal/storage"
)

// DailyKey stores the per-day request counters.
const DailyKey = "gemini_rate_daily"

const (
	window        = time.Minute
	dailyVersion  = 1
	dateKeyLayout = "2006-01-02"
)

// Limits are the free-tier quotas of a model. RPD 0 means no daily cap.
type Limits struct {
	RPM int
	TPM int
	RPD int
}

// DefaultLimits lists the tracked models.
var DefaultLimits = map[string]Limits{
	"gemini-2.5-pro":        {RPM: 5, TPM: 250000, RPD: 100},
	"gemini-2.5-flash":      {RPM: 10, TPM: 250000, RPD: 250},
	"gemini-2.5-flash-lite": {RPM: 15, TPM: 250000, RPD: 1000},
	"gemini-2.0-flash":      {RPM: 15, TPM: 1000000, RPD: 200},
	"gemini-2.0-flash-lite": {RPM: 30, TPM: 1000000, RPD: 200},
	"gemini-2.0-flash-exp":  {RPM: 10, TPM: 250000},
}

// WindowStats are the usage counters of one window.
type WindowStats struct {
	Used      int `json:"used"`
	Limit     int `json:"limit"`
	Remaining int `json:"remaining"`
}

// DailyStats are the calendar-day counters.
type DailyStats struct {
	Used       int `json:"used"`
	Limit      int `json:"limit"`
	Remaining  int `json:"remaining"`
	Percentage int `json:"percentage"`
}

// ModelStats is the rate picture of one model.
type ModelStats struct {
	Model    string      `json:"model"`
	Requests WindowStats `json:"requests"`
	Tokens   WindowStats `json:"tokens"`
	Daily    *DailyStats `json:"daily,omitempty"`
}

type tokenMark struct {
	at     time.Time
	tokens int
}

type dailyRecord struct {
	Date   string             `json:"date"`
	Models map[string][]int64 `json:"models"` // unix millis of each request
}

// Ledger tracks requests and tokens per model over the trailing minute and
// the current local day. Only the daily counters are persisted.
type Ledger struct {
	mu       sync.Mutex
	clock    clock.Clock
	kv       storage.Store
	limits   map[string]Limits
	requests map[string][]time.Time
	tokens   map[string][]tokenMark
	daily    dailyRecord
	logger   *zap.Logger
}

// NewLedger returns a Ledger with the daily counters read from kv, which may
// be nil. Nil limits use DefaultLimits and a nil clock the wall clock.
func NewLedger(kv storage.Store, clk clock.Clock, limits map[string]Limits, logger *zap.Logger) *Ledger {
	if clk == nil {
		clk = clock.New()
	}
	if limits == nil {
		limits = DefaultLimits
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Ledger{
		clock:    clk,
		kv:       kv,
		limits:   limits,
		requests: make(map[string][]time.Time),
		tokens:   make(map[string][]tokenMark),
		logger:   logger,
	}
	if kv != nil {
		err := storage.LoadRecord(kv, DailyKey, dailyVersion, &l.daily, nil)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			logger.Warn("ignoring unreadable daily rate record", zap.Error(err))
		}
	}
	l.rollDayLocked()
	return l
}

// Limits returns the quotas of model and whether it is tracked.
func (l *Ledger) Limits(model string) (Limits, bool) {
	lim, ok := l.limits[model]
	return lim, ok
}

// Record notes one successful request that used tokens.
func (l *Ledger) Record(model string, tokens int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	l.purgeLocked(model, now)
	l.requests[model] = append(l.requests[model], now)
	l.tokens[model] = append(l.tokens[model], tokenMark{at: now, tokens: tokens})

	l.rollDayLocked()
	l.daily.Models[model] = append(l.daily.Models[model], now.UnixMilli())
	if l.kv != nil {
		if err := storage.SaveRecord(l.kv, DailyKey, dailyVersion, l.daily, now); err != nil {
			l.logger.Warn("saving daily rate record failed", zap.Error(err))
		}
	}
}

// rollDayLocked resets the daily counters when the local date changed.
func (l *Ledger) rollDayLocked() {
	today := l.clock.Now().Format(dateKeyLayout)
	if l.daily.Date != today || l.daily.Models == nil {
		if l.daily.Date != "" && l.daily.Date != today {
			l.logger.Info("daily rate counters reset", zap.String("previous", l.daily.Date))
		}
		l.daily = dailyRecord{Date: today, Models: make(map[string][]int64)}
	}
}

// purgeLocked drops window entries older than one minute.
func (l *Ledger) purgeLocked(model string, now time.Time) {
	cutoff := now.Add(-window)

	reqs := l.requests[model]
	i := 0
	for i < len(reqs) && !reqs[i].After(cutoff) {
		i++
	}
	l.requests[model] = reqs[i:]

	toks := l.tokens[model]
	j := 0
	for j < len(toks) && !toks[j].at.After(cutoff) {
		j++
	}
	l.tokens[model] = toks[j:]
}

// StatsFor returns the current usage of model. Untracked models report false.
func (l *Ledger) StatsFor(model string) (ModelStats, bool) {
	lim, ok := l.limits[model]
	if !ok {
		return ModelStats{}, false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	l.purgeLocked(model, now)
	l.rollDayLocked()

	used := len(l.requests[model])
	tokens := 0
	for _, t := range l.tokens[model] {
		tokens += t.tokens
	}

	st := ModelStats{
		Model:    model,
		Requests: WindowStats{Used: used, Limit: lim.RPM, Remaining: max(lim.RPM-used, 0)},
		Tokens:   WindowStats{Used: tokens, Limit: lim.TPM, Remaining: max(lim.TPM-tokens, 0)},
	}
	if lim.RPD > 0 {
		d := len(l.daily.Models[model])
		st.Daily = &DailyStats{
			Used:       d,
			Limit:      lim.RPD,
			Remaining:  max(lim.RPD-d, 0),
			Percentage: int(math.Round(float64(d) / float64(lim.RPD) * 100)),
		}
	}
	return st, true
}

// Stats returns usage for every tracked model, sorted by name.
func (l *Ledger) Stats() []ModelStats {
	models := make([]string, 0, len(l.limits))
	for m := range l.limits {
		models = append(models, m)
	}
	sort.Strings(models)

	out := make([]ModelStats, 0, len(models))
	for _, m := range models {
		st, _ := l.StatsFor(m)
		out = append(out, st)
	}
	return out
}
